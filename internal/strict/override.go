package strict

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// Override is the process-wide tri-state strict-mode override.
type Override int32

const (
	// OverrideUnset defers to each query's own flag.
	OverrideUnset Override = iota

	// OverrideForceOn enforces strict mode everywhere.
	OverrideForceOn

	// OverrideForceOff disables enforcement everywhere.
	OverrideForceOff
)

func (o Override) String() string {
	switch o {
	case OverrideUnset:
		return "unset"
	case OverrideForceOn:
		return "true"
	case OverrideForceOff:
		return "false"
	default:
		return fmt.Sprintf("Override(%d)", int32(o))
	}
}

var globalOverride atomic.Int32

// SetOverride sets the process-wide override. Takes effect on the next check.
func SetOverride(o Override) {
	globalOverride.Store(int32(o))
}

// ResetOverride clears the override. Tests that call SetOverride should
// register it with t.Cleanup.
func ResetOverride() {
	globalOverride.Store(int32(OverrideUnset))
}

// CurrentOverride returns the override in effect right now.
func CurrentOverride() Override {
	return Override(globalOverride.Load())
}

// ParseOverride parses a configuration value: "" or "unset", "true"/"on",
// "false"/"off".
func ParseOverride(s string) (Override, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "unset", "none":
		return OverrideUnset, nil
	case "true", "on", "1":
		return OverrideForceOn, nil
	case "false", "off", "0":
		return OverrideForceOff, nil
	default:
		return OverrideUnset, fmt.Errorf("invalid strict override %q: want unset, true or false", s)
	}
}

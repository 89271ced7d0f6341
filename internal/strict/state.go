package strict

import "weak"

// State is the enforcement token attached to queries and records.
//
// The zero value is disabled, not a child and not prefetching.
type State struct {
	enabled       bool
	isChild       bool
	isForPrefetch bool
	parentType    string
	parentField   string

	// root points at the state of the query that materialized the record
	// this state (or an ancestor) belongs to. Lookup only.
	root weak.Pointer[State]
}

// Enabled reports the effective state: the global override when set,
// otherwise the local flag.
func (s State) Enabled() bool {
	switch CurrentOverride() {
	case OverrideForceOn:
		return true
	case OverrideForceOff:
		return false
	}
	return s.enabled
}

// LocallyEnabled reports the local flag, ignoring the override.
func (s State) LocallyEnabled() bool { return s.enabled }

// IsChild reports whether the state was derived from a record.
func (s State) IsChild() bool { return s.isChild }

// ParentType is the type of the record this state was derived from.
func (s State) ParentType() string { return s.parentType }

// ParentField is the relation accessed to derive this state.
func (s State) ParentField() string { return s.parentField }

// HasRoot reports whether a root query state has been recorded.
func (s State) HasRoot() bool { return s.root != weak.Pointer[State]{} }

// Activate returns an enabled copy.
func (s State) Activate() State {
	c := s.Clone()
	c.enabled = true
	return c
}

// Clone returns a field-by-field copy, root included.
func (s State) Clone() State {
	return s
}

// WithEnabled returns a copy whose local flag is enabled.
func (s State) WithEnabled(enabled bool) State {
	c := s.Clone()
	c.enabled = enabled
	return c
}

// ForRecord returns the state for a record materialized by the query that
// owns s. The record is a child, and its root is s unless one was already
// inherited.
func (s *State) ForRecord() State {
	c := s.Clone()
	c.isChild = true
	if !c.HasRoot() {
		c.root = weak.Make(s)
	}
	return c
}

// Derive returns the state for an object reached from a record of
// parentType through parentField. The prefetch flag is carried unchanged.
func (s State) Derive(parentType, parentField string) State {
	c := s.Clone()
	c.isChild = true
	c.parentType = parentType
	c.parentField = parentField
	return c
}

// Prefetch marks s as populating collection caches for the duration of fn.
// The mark is cleared whether fn succeeds or fails.
func (s *State) Prefetch(fn func() error) error {
	s.isForPrefetch = true
	defer func() { s.isForPrefetch = false }()
	return fn()
}

// IsPrefetching reports whether the root query (or s itself when no root is
// recorded) is populating collection caches. A root that no longer exists is
// not prefetching.
func (s State) IsPrefetching() bool {
	if s.HasRoot() {
		if root := s.root.Value(); root != nil {
			return root.IsPrefetching()
		}
		return false
	}
	return s.isForPrefetch
}

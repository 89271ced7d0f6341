package lookup

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Separator joins path segments.
const Separator = "."

// legacySeparator is accepted on input and rewritten to Separator.
const legacySeparator = "__"

// InvalidPathError reports a malformed lookup path (empty segment).
type InvalidPathError struct {
	// Path is the raw input as supplied by the caller.
	Path string

	// Reason describes what is wrong with it.
	Reason string
}

func (e *InvalidPathError) Error() string {
	return fmt.Sprintf("invalid lookup path %q: %s", e.Path, e.Reason)
}

// IsInvalidPath returns true if err is (or wraps) an InvalidPathError.
func IsInvalidPath(err error) bool {
	var ipe *InvalidPathError
	return errors.As(err, &ipe)
}

// Path is an immutable, validated lookup path.
//
// The zero Path is not valid; construct with ParsePath.
type Path struct {
	key      string
	segments []string
}

// ParsePath validates and canonicalizes a single dotted path.
// Any empty segment (leading, trailing or doubled separator) is rejected.
func ParsePath(raw string) (Path, error) {
	canonical := strings.ReplaceAll(raw, legacySeparator, Separator)
	parts := strings.Split(canonical, Separator)

	segments := make([]string, len(parts))
	for i, part := range parts {
		if part == "" {
			return Path{}, &InvalidPathError{
				Path:   raw,
				Reason: fmt.Sprintf("segment %d is empty", i),
			}
		}
		segments[i] = norm.NFC.String(part)
	}

	return Path{
		key:      strings.Join(segments, Separator),
		segments: segments,
	}, nil
}

// String returns the full dotted key.
func (p Path) String() string {
	return p.key
}

// Segments returns a copy of the path segments.
func (p Path) Segments() []string {
	return slices.Clone(p.segments)
}

// Len returns the number of segments.
func (p Path) Len() int {
	return len(p.segments)
}

// Depth is Len()-1: top-level relations have depth 0.
func (p Path) Depth() int {
	return len(p.segments) - 1
}

// Segment returns the i-th segment.
func (p Path) Segment(i int) string {
	return p.segments[i]
}

// Last returns the final segment.
func (p Path) Last() string {
	return p.segments[len(p.segments)-1]
}

// Prefix returns the dotted key of the first n segments.
func (p Path) Prefix(n int) string {
	return strings.Join(p.segments[:n], Separator)
}

// Suffix returns the dotted key of the segments after the first n.
func (p Path) Suffix(n int) string {
	return strings.Join(p.segments[n:], Separator)
}

// Compare orders paths by (depth, segments lexicographically).
func Compare(a, b Path) int {
	if a.Depth() != b.Depth() {
		if a.Depth() < b.Depth() {
			return -1
		}
		return 1
	}
	return slices.Compare(a.segments, b.segments)
}

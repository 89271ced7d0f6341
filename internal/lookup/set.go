package lookup

import (
	"slices"
)

// Set is an ordered, closed, deduplicated collection of lookup paths.
// Build one with Normalize.
type Set struct {
	byDepth map[int][]Path
	keys    map[string]struct{}
}

// Normalize builds a Set from raw dotted paths.
//
// Every prefix of every raw path is added (closure). Duplicates collapse.
// Returns an InvalidPathError for the first malformed path encountered.
func Normalize(raw ...string) (*Set, error) {
	set := &Set{
		byDepth: make(map[int][]Path),
		keys:    make(map[string]struct{}),
	}

	for _, r := range raw {
		p, err := ParsePath(r)
		if err != nil {
			return nil, err
		}
		for n := 1; n <= p.Len(); n++ {
			prefix, err := ParsePath(p.Prefix(n))
			if err != nil {
				return nil, err
			}
			set.add(prefix)
		}
	}

	return set, nil
}

// add inserts p keeping its depth bucket sorted. No-op for duplicates.
func (s *Set) add(p Path) {
	if _, ok := s.keys[p.String()]; ok {
		return
	}
	s.keys[p.String()] = struct{}{}

	bucket := s.byDepth[p.Depth()]
	i, _ := slices.BinarySearchFunc(bucket, p, Compare)
	s.byDepth[p.Depth()] = slices.Insert(bucket, i, p)
}

// Len returns the number of distinct paths.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.keys)
}

// Contains reports whether the dotted key is in the set.
func (s *Set) Contains(key string) bool {
	if s == nil {
		return false
	}
	_, ok := s.keys[key]
	return ok
}

// Depths returns the populated depths in ascending order.
func (s *Set) Depths() []int {
	if s == nil {
		return nil
	}
	depths := make([]int, 0, len(s.byDepth))
	for d := range s.byDepth {
		depths = append(depths, d)
	}
	slices.Sort(depths)
	return depths
}

// AtDepth returns the paths at one depth in lexicographic order.
func (s *Set) AtDepth(depth int) []Path {
	if s == nil {
		return nil
	}
	return slices.Clone(s.byDepth[depth])
}

// Paths returns all paths in iteration order (ORD-1): ascending depth,
// lexicographic within a depth.
func (s *Set) Paths() []Path {
	paths := make([]Path, 0, s.Len())
	for _, d := range s.Depths() {
		paths = append(paths, s.byDepth[d]...)
	}
	return paths
}

// Strings returns the dotted keys in iteration order.
func (s *Set) Strings() []string {
	paths := s.Paths()
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = p.String()
	}
	return out
}

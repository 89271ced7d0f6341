// Package ir provides the scalar value types shared by rows, filters and
// fixtures in strictfetch.
//
// This package contains value definitions only. Every other internal package
// may import ir; ir imports nothing internal.
//
// Key design constraints:
//   - NO float types: column values are string, int64, bool or null
//   - Values are comparable and can be used directly as map keys, which is how
//     collection fetches group child rows by their owner key
//   - Null is an explicit type, never a nil interface
package ir

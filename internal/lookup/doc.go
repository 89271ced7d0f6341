// Package lookup parses and canonicalizes dotted relation paths.
//
// A lookup path names a chain of relations starting at a root model, for
// example "pizzas.toppings" on Restaurant. Normalize turns an arbitrary
// collection of such strings into a Set that is:
//
//   - closed: every prefix of every requested path is present, so "a.b.c"
//     also yields "a" and "a.b"
//   - deduplicated: equality is by the full dotted string
//   - ordered: ascending depth first, then lexicographic by segments
//
// CRITICAL PATTERNS:
//
// ORD-1: Parent Before Child
// Set iteration order is a hard dependency of the fetch planner. A path is
// always visited after all of its prefixes, which is what lets the planner
// push descendants down into an ancestor's sub-query.
//
// The Django-style "__" separator is accepted as an alias for "." and is
// rewritten on parse. Segments are NFC-normalized so that canonically
// equivalent names compare equal.
package lookup

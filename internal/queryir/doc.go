// Package queryir describes one SELECT against the model registry in a
// backend-neutral form.
//
// A Select names a root model and optionally:
//   - a Filter (Equals, In, And) over the root model's scalar fields
//   - Joins: dotted to-one paths fetched inline in the same statement
//   - Only / Defer: restrictions on which root scalars are loaded
//   - an Owner link: the relation of another model whose records this
//     statement is collecting, keyed by the owners' link values
//   - a Limit
//
// The SQL backend (querysql) compiles a Select into exactly one statement.
// Collection fetches issue one Select per collection level, never one per
// owner record.
//
// SEALED INTERFACES:
//
// Predicate is a sealed interface using the marker method pattern. Only types
// in this package implement it, so backends can switch exhaustively:
//
//	switch p := pred.(type) {
//	case Equals:
//	case In:
//	case And:
//	}
//
// CRITICAL PATTERNS:
//
// Deterministic Ordering
// Backends MUST order every result by the root primary key (and the owner
// key for collection fetches). Result order is part of the contract.
//
// ir.Value Types Only
// All literal values in predicates and owner keys are ir.Value (no floats).
package queryir

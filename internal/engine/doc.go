// Package engine executes queryir statements against the store and decodes
// the results into row graphs.
//
// One Execute call issues exactly one SQL statement. Inline joins come back
// as nested rows on Row.Joined; collection fetches carry the owner key each
// row belongs to in Row.OwnerKey. The engine knows nothing about strict
// mode, prefetch trees or records: orchestrating several statements into a
// result set is the orm package's job.
//
// Compiled statements are cached by shape (see querysql.Shape) in an LRU, so
// repeated fetches of the same query only bind fresh parameters.
//
// CRITICAL PATTERNS:
//
// Deterministic Ordering
// Every statement orders by the root primary key. Rows are returned in that
// order and joined rows never reorder their parents.
//
// ir.Value Types Only
// Column values decode to ir.Value through store.DecodeColumn. A float
// anywhere in a result is a decode error.
//
// Every statement is tagged with a query id (UUIDv7 in production, a
// sequential id in tests) and logged through log/slog at debug level.
package engine

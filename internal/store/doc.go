// Package store provides the SQLite database that strictfetch queries run
// against.
//
// Tables are derived from a schema.Registry by Migrate: one table per model
// (integer primary key "id", one column per scalar, foreign keys for to-one
// relations) and one join table per many-to-many relation. A catalog table
// records which model owns each table.
//
// # Critical Patterns
//
// Deterministic Query Results
//   - Every query the engine issues orders by the root primary key
//   - Ids are assigned by SQLite in insertion order, so seeded data sets
//     are identical across runs
//
// No Floats
//   - Column types are INTEGER and TEXT only; bools are stored as 0/1 and
//     decoded back through DecodeColumn
package store

// Package testutil provides shared fixtures for strictfetch tests: the
// restaurant domain schema, a deterministic seeder, and predictable query
// ids for golden traces.
package testutil

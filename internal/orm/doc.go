// Package orm is the query model strict fetching is enforced on.
//
// A QuerySet describes one root fetch: filters, column restriction, inline
// to-one joins (SelectRelated) and collection fetches (PrefetchRelated).
// Every chaining method returns a new QuerySet; the receiver is never
// modified. Fetch executes the root statement, materializes Records and then
// walks the prefetch tree, issuing one statement per prefetch regardless of
// how many owners it covers.
//
// Records are read through checked accessors:
//
//	rec.Value(ctx, "name")   // scalar column
//	rec.One(ctx, "location") // to-one relation
//	rec.Many("pizzas")       // to-many relation, as a child QuerySet
//	rec.Attr("menu")         // Prefetch.ToAttr results
//
// Every accessor funnels through one checkedGet, which hands the access to
// strict.Decide. When the record's state is not strict, unfetched members are
// loaded lazily with an extra statement; when it is, the access fails with a
// *strict.ViolationError instead.
//
// CRITICAL PATTERNS:
//
// Materialization: a strict query hands each record State.ForRecord of its
// own state, so every record can ask the root query whether a prefetch is
// running. A non-strict query leaves records with the zero state.
//
// Prefetch propagation: a prefetch sub-query is strict when the owner records
// are strict or when the sub-query itself was made strict with Strict().
//
// Mutation guard: chaining off a populated child QuerySet (one returned by
// Record.Many) records QUERY_MUTATED_AFTER_FETCH, returned by the next
// Fetch. Root QuerySets may be re-chained after they have been fetched.
//
// FetchRelated wraps lookup.Normalize and plan.Build:
//
//	qs := db.Objects("Restaurant").Strict().
//		FetchRelated("location", "pizzas.toppings", "userfavorite_set")
//	// 4 statements on Fetch, none afterwards
package orm

// Package plan turns a normalized lookup set into fetch instructions on a
// query: inline joins for to-one relations, collection sub-queries for
// to-many relations.
//
// Build walks the set once, parents before children (ORD-1). Each path is
// attached to the longest proper prefix that already owns a collection
// sub-query, or to the root query when none does:
//
//	{"pizzas", "pizzas.toppings"}     root prefetches "pizzas";
//	                                  the pizzas sub-query prefetches "toppings"
//	{"location"}                      root joins "location"
//	{"best_pizza", "best_pizza.toppings"}
//	                                  root joins "best_pizza";
//	                                  root prefetches "best_pizza.toppings"
//
// Descendants of a collection are pushed into its sub-query instead of being
// fetched again from the root, so a lookup set costs one statement per
// distinct to-many path.
//
// The builder is generic over the query handle, so it has no dependency on
// how queries execute.
package plan

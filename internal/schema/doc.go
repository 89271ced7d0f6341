// Package schema describes models, their columns and the relations between
// them, and resolves a (model, field) pair to a field descriptor.
//
// Models are declared with their scalar columns and their forward relations
// (foreign key, one-to-one, many-to-many). Registry.Finalize derives the
// reverse side of every forward relation the way an ORM does:
//
//	Restaurant.location   foreign_key  → Location.restaurants (related_name) or Location.restaurant_set
//	UserFavorite.user     one_to_one   → User.userfavorite (to-one)
//	Restaurant.pizzas     many_to_many → Pizza.restaurants / Pizza.restaurant_set
//
// Every field has a Kind: Scalar, ToOne or ToMany. The fetch planner only
// cares about the Kind and Target; the SQL compiler also uses Link.
//
// Unknown names are reported with UnknownFieldError and UnknownModelError.
// Callers propagate these unchanged.
package schema

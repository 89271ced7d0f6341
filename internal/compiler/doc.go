// Package compiler turns CUE model definitions into a schema.Registry.
//
// Schema files declare models under a top-level "model" struct:
//
//	model: Restaurant: {
//		table: "restaurant"            // optional, defaults to lowercased name
//		fields: {
//			name: string
//			open: bool
//		}
//		relations: {
//			location: {type: "foreign_key", target: "Location", related_name: "restaurants"}
//			pizzas:   {type: "many_to_many", target: "Pizza", related_name: "restaurants"}
//		}
//	}
//
// Field types use CUE kinds directly (string, int, bool). Floats are
// forbidden. Every model gets an integer "id" primary key; declaring
// it is an error. Declaration order is preserved.
//
// Uses the CUE SDK's Go API directly (not a CLI subprocess).
package compiler

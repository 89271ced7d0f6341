package queryir

import "github.com/roach88/strictfetch/internal/ir"

// Predicate represents a filter condition over the root model's scalars.
//
// This is a sealed interface - only types in this package implement it.
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
}

// Equals represents a field-equals-literal predicate.
//
//	<field> = <value>
//
// Comparing to ir.Null{} matches NULL columns (IS NULL).
type Equals struct {
	Field string   // Scalar field name on the root model
	Value ir.Value // Literal value (constrained to ir.Value types)
}

func (Equals) predicateNode() {}

// In represents a field-in-list predicate.
//
//	<field> IN (<values>...)
//
// An empty list matches nothing.
type In struct {
	Field  string
	Values []ir.Value
}

func (In) predicateNode() {}

// And represents a conjunction of predicates. Empty means always true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Owner links a collection fetch back to the records that own it.
//
// Field is a relation on OwnerModel whose target is the Select's Model.
// Keys are the owners' values for the relation's local column (the primary
// key for reverse and many-to-many links, the foreign key column for a
// forward to-one link). Every result row carries the key of the owner it
// belongs to, so a many-to-many target shared by two owners is returned
// twice.
type Owner struct {
	OwnerModel string
	Field      string
	Keys       []ir.Value
}

// Select represents one statement against a root model.
//
//	SELECT <root columns>, <joined columns>[, <owner key>]
//	FROM <root table> [LEFT JOIN ...]
//	WHERE <filter> [AND <owner link>]
//	ORDER BY <root pk>[, <owner key>]
//	[LIMIT n]
type Select struct {
	Model  string    // Root model name
	Filter Predicate // WHERE conditions (nil = no filter)

	// Joins are dotted paths of to-one relations from Model, fetched inline.
	// Every proper prefix of a join path must itself be listed.
	Joins []string

	// Only restricts loaded root scalars; empty means all scalars.
	Only []string

	// Defer excludes root scalars from loading.
	Defer []string

	// Owner is set for collection (prefetch) fetches.
	Owner *Owner

	// Limit caps the number of rows; 0 means no limit.
	Limit int
}

// EqualsField is a convenience for a single Equals filter.
func EqualsField(field string, v ir.Value) Predicate {
	return Equals{Field: field, Value: v}
}

// Conjoin adds p to an existing filter, flattening conjunctions.
func Conjoin(existing, p Predicate) Predicate {
	if existing == nil {
		return p
	}
	if p == nil {
		return existing
	}
	var preds []Predicate
	if and, ok := existing.(And); ok {
		preds = append(preds, and.Predicates...)
	} else {
		preds = append(preds, existing)
	}
	return And{Predicates: append(preds, p)}
}

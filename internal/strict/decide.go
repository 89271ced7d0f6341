package strict

import "fmt"

// AccessKind classifies a checked access.
type AccessKind int

const (
	// AccessScalar reads a column value.
	AccessScalar AccessKind = iota

	// AccessToOne reads a single related record.
	AccessToOne

	// AccessToMany reads a related collection.
	AccessToMany

	// AccessMutation chains a new operation onto a query.
	AccessMutation
)

func (k AccessKind) String() string {
	switch k {
	case AccessScalar:
		return "scalar"
	case AccessToOne:
		return "to_one"
	case AccessToMany:
		return "to_many"
	case AccessMutation:
		return "mutation"
	default:
		return fmt.Sprintf("AccessKind(%d)", int(k))
	}
}

// Access describes one member read (or query mutation) to be checked.
type Access struct {
	Kind AccessKind

	// Model and Field name the owning record type and accessed member.
	Model string
	Field string

	// Loaded: the scalar's value is present on the record.
	Loaded bool

	// InAncestor: a deferred scalar can be read from a cached ancestor
	// snapshot (e.g. a foreign key column whose related record is cached).
	InAncestor bool

	// Cached: the relation's cache is populated on the record.
	Cached bool

	// Executed: the query being mutated already holds results.
	Executed bool
}

// Decide applies the decision table. A nil result means the access may go
// ahead; for a cached relation the caller derives the child state with
// State.Derive.
func Decide(s State, a Access) error {
	if !s.Enabled() {
		return nil
	}

	switch a.Kind {
	case AccessScalar:
		if a.Loaded || a.InAncestor {
			return nil
		}
		return DeferredFieldAccessed(a.Model, a.Field)

	case AccessToOne:
		if a.Cached {
			return nil
		}
		return RelationNotFetched(a.Model, a.Field)

	case AccessToMany:
		if s.IsPrefetching() || a.Cached {
			return nil
		}
		return RelationNotFetched(a.Model, a.Field)

	case AccessMutation:
		// Root queries may be re-chained after fetch; populated children may not
		if s.IsChild() && a.Executed {
			model, field := s.ParentType(), s.ParentField()
			if model == "" {
				model, field = a.Model, a.Field
			}
			return QueryMutatedAfterFetch(model, field)
		}
		return nil

	default:
		return fmt.Errorf("unknown access kind %v", a.Kind)
	}
}

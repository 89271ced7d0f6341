package queryir

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/strictfetch/internal/schema"
)

// ValidationError lists every problem found in a Select.
type ValidationError struct {
	Model    string
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid select on %s: %s", e.Model, strings.Join(e.Problems, "; "))
}

// IsValidationError checks if an error is a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Validate checks a Select against the schema.
//
// Rules:
//  1. Filter, Only and Defer name scalar fields of the root model
//  2. Each join path is a chain of to-one relations whose proper prefixes
//     are also joined
//  3. Owner.Field is a relation on Owner.OwnerModel targeting the root model
//  4. Limit is not negative
//
// Validate is a pure function with no side effects.
func Validate(r schema.Resolver, sel Select) error {
	v := &validator{resolver: r, model: sel.Model}

	if sel.Model == "" {
		v.addProblem("model is required")
		return v.result()
	}

	if sel.Filter != nil {
		v.validatePredicate(sel.Filter)
	}
	v.validateJoins(sel.Joins)
	for _, f := range sel.Only {
		v.requireScalar("only", f)
	}
	for _, f := range sel.Defer {
		v.requireScalar("defer", f)
	}
	if sel.Owner != nil {
		v.validateOwner(*sel.Owner)
	}
	if sel.Limit < 0 {
		v.addProblem("limit %d is negative", sel.Limit)
	}

	return v.result()
}

// validator accumulates problems during traversal.
type validator struct {
	resolver schema.Resolver
	model    string
	problems []string
}

func (v *validator) addProblem(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) result() error {
	if len(v.problems) == 0 {
		return nil
	}
	return &ValidationError{Model: v.model, Problems: v.problems}
}

func (v *validator) requireScalar(clause, field string) {
	f, err := v.resolver.Resolve(v.model, field)
	if err != nil {
		v.addProblem("%s: %v", clause, err)
		return
	}
	if f.Kind != schema.Scalar {
		v.addProblem("%s: %s.%s is a relation, not a column", clause, v.model, field)
	}
}

func (v *validator) validatePredicate(p Predicate) {
	switch pred := p.(type) {
	case Equals:
		v.requireScalar("filter", pred.Field)
	case In:
		v.requireScalar("filter", pred.Field)
	case And:
		for _, sub := range pred.Predicates {
			v.validatePredicate(sub)
		}
	case nil:
	default:
		v.addProblem("filter: unsupported predicate type %T", p)
	}
}

func (v *validator) validateJoins(joins []string) {
	listed := make(map[string]bool, len(joins))
	for _, j := range joins {
		listed[j] = true
	}

	for _, j := range joins {
		segments := strings.Split(j, ".")
		model := v.model
		for i, seg := range segments {
			if i > 0 {
				prefix := strings.Join(segments[:i], ".")
				if !listed[prefix] {
					v.addProblem("join %q: prefix %q is not joined", j, prefix)
				}
			}
			f, err := v.resolver.Resolve(model, seg)
			if err != nil {
				v.addProblem("join %q: %v", j, err)
				break
			}
			if f.Kind != schema.ToOne {
				v.addProblem("join %q: %s.%s is %s, only to_one relations can be joined", j, model, seg, f.Kind)
				break
			}
			model = f.Target
		}
	}
}

func (v *validator) validateOwner(o Owner) {
	f, err := v.resolver.Resolve(o.OwnerModel, o.Field)
	if err != nil {
		v.addProblem("owner: %v", err)
		return
	}
	if !f.IsRelation() {
		v.addProblem("owner: %s.%s is not a relation", o.OwnerModel, o.Field)
		return
	}
	if f.Target != v.model {
		v.addProblem("owner: %s.%s targets %s, not %s", o.OwnerModel, o.Field, f.Target, v.model)
	}
}

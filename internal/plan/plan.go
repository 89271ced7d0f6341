package plan

import (
	"fmt"

	"github.com/roach88/strictfetch/internal/lookup"
	"github.com/roach88/strictfetch/internal/schema"
)

// Query is the query handle the builder augments. Every method returns a new
// handle; the receiver is unchanged.
type Query[Q any] interface {
	// Model is the name of the model the query returns.
	Model() string

	// SelectRelated adds an inline join for a dotted to-one path.
	SelectRelated(paths ...string) Q

	// PrefetchRelated adds collection fetches.
	PrefetchRelated(prefetches ...*Prefetch[Q]) Q
}

// Prefetch is a collection fetch attached to a query.
//
// Path is relative to the query the prefetch is attached to. Query is the
// sub-query used to fetch the collection; a zero Query means the default
// query for the relation's target, chosen by the query implementation. The builder replaces Query in place as
// descendants are attached, and every holder of the pointer sees the change.
type Prefetch[Q any] struct {
	Path   string
	Query  Q
	ToAttr string
}

// StepKind is the instruction a lookup path produced.
type StepKind string

const (
	StepJoin     StepKind = "join"
	StepPrefetch StepKind = "prefetch"
)

// Step records one decision made by the builder.
type Step struct {
	// Path is the full dotted lookup path.
	Path string

	Kind StepKind

	// Through is the owned sub-query the step was attached to ("" for root).
	Through string

	// Relative is the path given to SelectRelated or the Prefetch.
	Relative string

	// Model is the target model of the final segment.
	Model string
}

// Builder accumulates fetch instructions for one root query.
type Builder[Q Query[Q]] struct {
	root     Q
	resolver schema.Resolver
	newQuery func(model string) Q

	// owned maps a full dotted path to the prefetch that owns its sub-query.
	owned map[string]*Prefetch[Q]
	steps []Step
}

// NewBuilder creates a builder. newQuery creates the default sub-query for a
// collection's target model.
func NewBuilder[Q Query[Q]](root Q, r schema.Resolver, newQuery func(model string) Q) *Builder[Q] {
	return &Builder[Q]{
		root:     root,
		resolver: r,
		newQuery: newQuery,
		owned:    make(map[string]*Prefetch[Q]),
	}
}

// Build applies every path in set to root and returns the augmented query.
// set must be normalized: parents are processed before children.
func Build[Q Query[Q]](root Q, set *lookup.Set, r schema.Resolver, newQuery func(model string) Q) (Q, []Step, error) {
	b := NewBuilder(root, r, newQuery)
	for _, p := range set.Paths() {
		if err := b.Add(p); err != nil {
			var zero Q
			return zero, nil, err
		}
	}
	return b.Query(), b.Steps(), nil
}

// Add applies one path. Unknown segments propagate the resolver's error.
func (b *Builder[Q]) Add(p lookup.Path) error {
	f, err := b.resolve(p)
	if err != nil {
		return err
	}

	through, relative := b.attachment(p)

	switch f.Kind {
	case schema.ToOne:
		b.apply(through, func(q Q) Q { return q.SelectRelated(relative) })
		b.steps = append(b.steps, Step{Path: p.String(), Kind: StepJoin, Through: through, Relative: relative, Model: f.Target})

	case schema.ToMany:
		if _, ok := b.owned[p.String()]; ok {
			return nil
		}
		pf := &Prefetch[Q]{Path: relative, Query: b.newQuery(f.Target)}
		b.owned[p.String()] = pf
		b.apply(through, func(q Q) Q { return q.PrefetchRelated(pf) })
		b.steps = append(b.steps, Step{Path: p.String(), Kind: StepPrefetch, Through: through, Relative: relative, Model: f.Target})

	default:
		return fmt.Errorf("lookup %q: %s.%s is not a relation", p, f.Model, f.Name)
	}
	return nil
}

// Own registers pf as the owner of the sub-query at the full dotted path.
// Adding path again is a no-op and paths below it attach to pf.Query, which
// must be set.
func (b *Builder[Q]) Own(path string, pf *Prefetch[Q]) {
	b.owned[path] = pf
}

// Query returns the augmented root query.
func (b *Builder[Q]) Query() Q {
	return b.root
}

// Steps returns the decisions made so far, in order.
func (b *Builder[Q]) Steps() []Step {
	out := make([]Step, len(b.steps))
	copy(out, b.steps)
	return out
}

// Owned reports whether path owns a collection sub-query.
func (b *Builder[Q]) Owned(path string) (*Prefetch[Q], bool) {
	pf, ok := b.owned[path]
	return pf, ok
}

// resolve walks the schema from the root model through every segment.
func (b *Builder[Q]) resolve(p lookup.Path) (schema.Field, error) {
	model := b.root.Model()
	var f schema.Field
	for i, seg := range p.Segments() {
		var err error
		f, err = b.resolver.Resolve(model, seg)
		if err != nil {
			return schema.Field{}, err
		}
		if i < p.Len()-1 {
			if !f.IsRelation() {
				return schema.Field{}, fmt.Errorf("lookup %q: %s.%s is not a relation", p, model, seg)
			}
			model = f.Target
		}
	}
	return f, nil
}

// attachment finds the longest proper prefix of p that owns a sub-query.
// Returns the prefix ("" for root) and p relative to it.
func (b *Builder[Q]) attachment(p lookup.Path) (string, string) {
	for n := p.Len() - 1; n > 0; n-- {
		prefix := p.Prefix(n)
		if _, ok := b.owned[prefix]; ok {
			return prefix, p.Suffix(n)
		}
	}
	return "", p.String()
}

// apply rewrites the query at the attachment point.
func (b *Builder[Q]) apply(through string, fn func(Q) Q) {
	if through == "" {
		b.root = fn(b.root)
		return
	}
	pf := b.owned[through]
	pf.Query = fn(pf.Query)
}

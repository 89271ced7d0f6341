package orm

import (
	"context"
	"fmt"
	"slices"

	"github.com/roach88/strictfetch/internal/engine"
	"github.com/roach88/strictfetch/internal/ir"
	"github.com/roach88/strictfetch/internal/queryir"
	"github.com/roach88/strictfetch/internal/schema"
	"github.com/roach88/strictfetch/internal/strict"
)

// Record is one materialized row of a model.
type Record struct {
	db    *DB
	model string

	// values holds loaded scalars. A missing key is a deferred column.
	values map[string]ir.Value

	// toOne caches to-one relations. A present key with a nil record is an
	// empty relation.
	toOne map[string]*Record

	// toMany caches prefetched collections.
	toMany map[string][]*Record

	// attrs holds Prefetch.ToAttr results.
	attrs map[string][]*Record

	// link is the owner key the row was fetched for, set on prefetched
	// records.
	link ir.Value

	state strict.State
}

func newRecord(db *DB, row *engine.Row, st strict.State) *Record {
	r := &Record{
		db:     db,
		model:  row.Model,
		values: make(map[string]ir.Value, len(row.Values)),
		toOne:  make(map[string]*Record, len(row.Joined)),
		toMany: make(map[string][]*Record),
		attrs:  make(map[string][]*Record),
		link:   row.OwnerKey,
		state:  st,
	}
	for k, v := range row.Values {
		r.values[k] = v
	}
	for name, joined := range row.Joined {
		if joined == nil {
			r.toOne[name] = nil
			continue
		}
		r.toOne[name] = newRecord(db, joined, st)
	}
	return r
}

// Model returns the record's model name.
func (r *Record) Model() string {
	return r.model
}

// ID returns the primary key. It is always loaded.
func (r *Record) ID() int64 {
	if v, ok := r.values[schema.PrimaryKey].(ir.Int); ok {
		return int64(v)
	}
	return 0
}

// State returns the record's strict state.
func (r *Record) State() strict.State {
	return r.state
}

// IsStrict reports whether strict mode is in effect for the record.
func (r *Record) IsStrict() bool {
	return r.state.Enabled()
}

// Loaded returns the names of the loaded scalars in declaration order.
func (r *Record) Loaded() []string {
	m, err := r.db.reg.Model(r.model)
	if err != nil {
		return nil
	}
	var out []string
	for _, f := range m.Scalars() {
		if _, ok := r.values[f.Name]; ok {
			out = append(out, f.Name)
		}
	}
	return out
}

// IsCached reports whether a relation was joined or prefetched.
func (r *Record) IsCached(field string) bool {
	if _, ok := r.toOne[field]; ok {
		return true
	}
	_, ok := r.toMany[field]
	return ok
}

// Value reads a scalar column.
//
// A deferred column fails with DEFERRED_FIELD_ACCESSED in strict mode and is
// loaded with one statement otherwise. A deferred foreign key column whose
// relation is cached is answered from the cached record.
func (r *Record) Value(ctx context.Context, field string) (ir.Value, error) {
	f, err := r.field(field, schema.Scalar)
	if err != nil {
		return nil, err
	}
	if err := r.checkedGet(f); err != nil {
		return nil, err
	}

	if v, ok := r.values[field]; ok {
		return v, nil
	}
	if v, ok := r.ancestorValue(f); ok {
		return v, nil
	}
	return r.loadScalar(ctx, f)
}

// One reads a to-one relation. The result is nil for an empty relation.
//
// An unfetched relation fails with RELATION_NOT_FETCHED in strict mode and
// is loaded (and cached) with one statement otherwise.
func (r *Record) One(ctx context.Context, field string) (*Record, error) {
	f, err := r.field(field, schema.ToOne)
	if err != nil {
		return nil, err
	}
	if err := r.checkedGet(f); err != nil {
		return nil, err
	}

	related, ok := r.toOne[field]
	if !ok {
		related, err = r.loadOne(ctx, f)
		if err != nil {
			return nil, err
		}
		r.toOne[field] = related
	}

	if related != nil && r.state.Enabled() {
		related.state = r.state.Derive(r.model, field)
	}
	return related, nil
}

// Many returns the QuerySet of a to-many relation.
//
// When the relation was prefetched the QuerySet is already populated:
// Fetch and All return the cached records, and chaining any narrowing
// operation off it (Filter, Only, PrefetchRelated...) is a
// QUERY_MUTATED_AFTER_FETCH violation in strict mode. Otherwise the QuerySet
// selects the related records on Fetch, which fails with
// RELATION_NOT_FETCHED in strict mode.
func (r *Record) Many(field string) *QuerySet {
	f, err := r.field(field, schema.ToMany)
	if err != nil {
		qs := r.db.Objects(f.Target)
		qs.err = err
		return qs
	}

	qs := r.db.Objects(f.Target)
	*qs.state = r.state.Derive(r.model, field)
	qs.owner = &queryir.Owner{
		OwnerModel: r.model,
		Field:      field,
		Keys:       []ir.Value{r.ownerKey(f)},
	}

	if cached, ok := r.toMany[field]; ok {
		qs.result = cached
		qs.executed = true
		return qs
	}

	qs.check = func() error {
		return r.checkedGet(f)
	}
	return qs
}

// Attr returns the records a Prefetch stored under ToAttr.
func (r *Record) Attr(name string) ([]*Record, bool) {
	records, ok := r.attrs[name]
	return slices.Clone(records), ok
}

// checkedGet applies the decision table to an access of f.
func (r *Record) checkedGet(f schema.Field) error {
	a := strict.Access{Model: r.model, Field: f.Name}
	switch f.Kind {
	case schema.Scalar:
		a.Kind = strict.AccessScalar
		_, a.Loaded = r.values[f.Name]
		_, a.InAncestor = r.ancestorValue(f)
	case schema.ToOne:
		a.Kind = strict.AccessToOne
		_, a.Cached = r.toOne[f.Name]
	case schema.ToMany:
		a.Kind = strict.AccessToMany
		_, a.Cached = r.toMany[f.Name]
	}
	return strict.Decide(r.state, a)
}

// field resolves name on the record's model and checks its kind.
func (r *Record) field(name string, kind schema.Kind) (schema.Field, error) {
	f, err := r.db.reg.Resolve(r.model, name)
	if err != nil {
		return f, err
	}
	if f.Kind != kind {
		return f, fmt.Errorf("%s.%s is a %s field, not %s", r.model, name, f.Kind, kind)
	}
	return f, nil
}

// ancestorValue answers a foreign key column from its cached relation.
func (r *Record) ancestorValue(f schema.Field) (ir.Value, bool) {
	m, err := r.db.reg.Model(r.model)
	if err != nil {
		return nil, false
	}
	for _, rel := range m.Relations() {
		if rel.Link.Kind != schema.LinkForeignKey || rel.Link.LocalColumn != f.Column {
			continue
		}
		related, ok := r.toOne[rel.Name]
		if !ok {
			return nil, false
		}
		if related == nil {
			return ir.Null{}, true
		}
		return ir.Int(related.ID()), true
	}
	return nil, false
}

// ownerKey returns the value the owner link of relation f matches on.
func (r *Record) ownerKey(f schema.Field) ir.Value {
	if f.Link.Kind == schema.LinkForeignKey {
		if v, ok := r.values[f.Link.LocalColumn]; ok {
			return v
		}
		return ir.Null{}
	}
	return ir.Int(r.ID())
}

// loadScalar selects one deferred column and stores it on the record.
func (r *Record) loadScalar(ctx context.Context, f schema.Field) (ir.Value, error) {
	rows, err := r.db.exec.Execute(ctx, queryir.Select{
		Model:  r.model,
		Filter: queryir.EqualsField(schema.PrimaryKey, ir.Int(r.ID())),
		Only:   []string{f.Name},
	})
	if err != nil {
		return nil, fmt.Errorf("load %s.%s: %w", r.model, f.Name, err)
	}
	if len(rows) == 0 {
		return nil, &NotFoundError{Model: r.model, ID: r.ID()}
	}
	v, ok := rows[0].Values[f.Name]
	if !ok {
		v = ir.Null{}
	}
	r.values[f.Name] = v
	return v, nil
}

// loadOne selects the related record of an uncached to-one relation.
func (r *Record) loadOne(ctx context.Context, f schema.Field) (*Record, error) {
	key := r.ownerKey(f)
	if f.Link.Kind == schema.LinkForeignKey {
		if _, loaded := r.values[f.Link.LocalColumn]; !loaded {
			var err error
			if key, err = r.loadScalar(ctx, schema.Field{Name: f.Link.LocalColumn, Column: f.Link.LocalColumn}); err != nil {
				return nil, err
			}
		}
	}
	if ir.IsNull(key) {
		return nil, nil
	}

	rows, err := r.db.exec.Execute(ctx, queryir.Select{
		Model: f.Target,
		Owner: &queryir.Owner{OwnerModel: r.model, Field: f.Name, Keys: []ir.Value{key}},
		Limit: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("load %s.%s: %w", r.model, f.Name, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return newRecord(r.db, rows[0], strict.State{}), nil
}

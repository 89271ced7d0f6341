package orm

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/roach88/strictfetch/internal/engine"
	"github.com/roach88/strictfetch/internal/ir"
	"github.com/roach88/strictfetch/internal/lookup"
	"github.com/roach88/strictfetch/internal/plan"
	"github.com/roach88/strictfetch/internal/queryir"
	"github.com/roach88/strictfetch/internal/schema"
	"github.com/roach88/strictfetch/internal/strict"
)

// Prefetch is a collection fetch attached to a QuerySet. A nil Query fetches
// every related record with the target model's default QuerySet.
type Prefetch = plan.Prefetch[*QuerySet]

// Prefetches wraps plain lookup paths as default prefetches.
func Prefetches(paths ...string) []*Prefetch {
	out := make([]*Prefetch, len(paths))
	for i, p := range paths {
		out[i] = &Prefetch{Path: p}
	}
	return out
}

// QuerySet is an immutable description of a fetch plus, once fetched, its
// results.
//
// Thread-safety: NOT safe for concurrent use. A QuerySet and the records it
// materializes belong to one unit of work.
type QuerySet struct {
	db    *DB
	model string

	filter     queryir.Predicate
	joins      []string
	only       []string
	deferred   []string
	prefetches []*Prefetch
	owner      *queryir.Owner
	limit      int

	// state is heap-allocated so records can hold a weak pointer to it.
	state *strict.State

	// check runs before executing a child QuerySet whose relation was not
	// prefetched. Carried across clones.
	check func() error

	executed bool
	result   []*Record

	// err is reported by the next Fetch (unknown model, bad lookup,
	// mutation of a populated child).
	err error
}

// Model returns the name of the model the QuerySet returns.
func (qs *QuerySet) Model() string {
	return qs.model
}

// State returns a copy of the QuerySet's strict state.
func (qs *QuerySet) State() strict.State {
	return *qs.state
}

// IsStrict reports whether strict mode is in effect for the QuerySet.
func (qs *QuerySet) IsStrict() bool {
	return qs.state.Enabled()
}

// Executed reports whether the QuerySet holds results.
func (qs *QuerySet) Executed() bool {
	return qs.executed
}

// Err returns the error the next Fetch will report, if any.
func (qs *QuerySet) Err() error {
	return qs.err
}

// clone copies the description. Results are not copied.
func (qs *QuerySet) clone() *QuerySet {
	st := *qs.state
	return &QuerySet{
		db:         qs.db,
		model:      qs.model,
		filter:     qs.filter,
		joins:      slices.Clone(qs.joins),
		only:       slices.Clone(qs.only),
		deferred:   slices.Clone(qs.deferred),
		prefetches: slices.Clone(qs.prefetches),
		owner:      qs.owner,
		limit:      qs.limit,
		state:      &st,
		check:      qs.check,
		err:        qs.err,
	}
}

// chain clones qs for a new operation, recording a mutation violation when
// qs is a populated strict child.
func (qs *QuerySet) chain() *QuerySet {
	c := qs.clone()
	if c.err == nil {
		c.err = strict.Decide(*qs.state, strict.Access{
			Kind:     strict.AccessMutation,
			Model:    qs.model,
			Executed: qs.executed,
		})
	}
	return c
}

// fail returns a clone carrying err.
func (qs *QuerySet) fail(err error) *QuerySet {
	c := qs.chain()
	if c.err == nil {
		c.err = err
	}
	return c
}

// Strict returns a copy with strict mode enabled.
func (qs *QuerySet) Strict() *QuerySet {
	c := qs.chain()
	*c.state = c.state.Activate()
	return c
}

// All returns a copy of the QuerySet. A populated child QuerySet (a
// prefetched collection) is returned as is, with its cached records.
func (qs *QuerySet) All() *QuerySet {
	if qs.executed && qs.owner != nil {
		return qs
	}
	return qs.chain()
}

// Filter narrows the QuerySet to records whose field equals v. Comparing
// with ir.Null{} matches NULL columns.
func (qs *QuerySet) Filter(field string, v ir.Value) *QuerySet {
	c := qs.chain()
	c.filter = queryir.Conjoin(c.filter, queryir.EqualsField(field, v))
	return c
}

// FilterIn narrows the QuerySet to records whose field is one of values.
func (qs *QuerySet) FilterIn(field string, values ...ir.Value) *QuerySet {
	c := qs.chain()
	c.filter = queryir.Conjoin(c.filter, queryir.In{Field: field, Values: slices.Clone(values)})
	return c
}

// Only restricts the loaded columns to fields (plus the primary key).
func (qs *QuerySet) Only(fields ...string) *QuerySet {
	c := qs.chain()
	c.only = appendUnique(c.only, fields...)
	return c
}

// Defer excludes fields from the loaded columns.
func (qs *QuerySet) Defer(fields ...string) *QuerySet {
	c := qs.chain()
	c.deferred = appendUnique(c.deferred, fields...)
	return c
}

// SelectRelated joins dotted to-one paths into the root statement. Every
// prefix of a path is joined as well.
func (qs *QuerySet) SelectRelated(paths ...string) *QuerySet {
	c := qs.chain()
	for _, raw := range paths {
		p, err := lookup.ParsePath(raw)
		if err != nil {
			if c.err == nil {
				c.err = err
			}
			return c
		}
		for n := 1; n <= p.Len(); n++ {
			c.joins = appendUnique(c.joins, p.Prefix(n))
		}
	}
	return c
}

// PrefetchRelated attaches collection fetches. The Prefetch values are
// shared, not copied.
func (qs *QuerySet) PrefetchRelated(prefetches ...*Prefetch) *QuerySet {
	c := qs.chain()
	c.prefetches = append(c.prefetches, prefetches...)
	return c
}

// FetchRelated plans paths into inline joins and nested prefetches. An
// empty list returns qs unchanged.
func (qs *QuerySet) FetchRelated(paths ...string) *QuerySet {
	if len(paths) == 0 {
		return qs
	}
	out, _, err := qs.Plan(paths...)
	if err != nil {
		return qs.fail(err)
	}
	return out
}

// Plan is FetchRelated that also returns the builder's decisions.
func (qs *QuerySet) Plan(paths ...string) (*QuerySet, []plan.Step, error) {
	set, err := lookup.Normalize(paths...)
	if err != nil {
		return nil, nil, err
	}

	// Paths already prefetched are extended rather than fetched twice. The
	// builder edits prefetches in place, so it works on a copy of the tree.
	root := qs.chain()
	owned := make(map[string]*Prefetch)
	root.prefetches = qs.db.copyPrefetches(qs.model, "", root.prefetches, owned)

	b := plan.NewBuilder(root, qs.db.reg, qs.db.Objects)
	for path, pf := range owned {
		b.Own(path, pf)
	}
	for _, p := range set.Paths() {
		if err := b.Add(p); err != nil {
			return nil, nil, err
		}
	}
	return b.Query(), b.Steps(), nil
}

// Prefetches returns the attached prefetches.
func (qs *QuerySet) Prefetches() []*Prefetch {
	return slices.Clone(qs.prefetches)
}

// Select returns the root statement Fetch issues.
func (qs *QuerySet) Select() queryir.Select {
	return queryir.Select{
		Model:  qs.model,
		Filter: qs.filter,
		Joins:  slices.Clone(qs.joins),
		Only:   slices.Clone(qs.only),
		Defer:  slices.Clone(qs.deferred),
		Owner:  qs.owner,
		Limit:  qs.limit,
	}
}

// Fetch executes the QuerySet and its prefetches, once. Later calls return
// the cached records.
func (qs *QuerySet) Fetch(ctx context.Context) ([]*Record, error) {
	if qs.err != nil {
		return nil, qs.err
	}
	if qs.executed {
		return qs.result, nil
	}
	if err := qs.verify(); err != nil {
		return nil, err
	}

	rows, err := qs.db.exec.Execute(ctx, qs.Select())
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", qs.model, err)
	}

	records := qs.materialize(rows)

	if len(qs.prefetches) > 0 && len(records) > 0 {
		err := qs.state.Prefetch(func() error {
			return qs.db.prefetch(ctx, qs.model, records, qs.prefetches)
		})
		if err != nil {
			return nil, err
		}
	}

	slog.Debug("fetched",
		"model", qs.model,
		"records", len(records),
		"prefetches", len(qs.prefetches),
		"strict", qs.state.Enabled())

	qs.result = records
	qs.executed = true
	return records, nil
}

// verify runs the relation check for child QuerySets.
func (qs *QuerySet) verify() error {
	if qs.check == nil || !qs.state.Enabled() {
		return nil
	}
	return qs.check()
}

// materialize builds records from rows. A strict QuerySet gives each record
// (and every record joined into it) a state rooted at its own.
func (qs *QuerySet) materialize(rows []*engine.Row) []*Record {
	var st strict.State
	if qs.state.Enabled() {
		st = qs.state.ForRecord()
	}
	out := make([]*Record, len(rows))
	for i, row := range rows {
		out[i] = newRecord(qs.db, row, st)
	}
	return out
}

// Get returns the record with primary key id.
func (qs *QuerySet) Get(ctx context.Context, id int64) (*Record, error) {
	records, err := qs.Filter(schema.PrimaryKey, ir.Int(id)).Fetch(ctx)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, &NotFoundError{Model: qs.model, ID: id}
	}
	return records[0], nil
}

// First returns the record with the lowest primary key, or nil when the
// QuerySet is empty. A fetched QuerySet answers from its results.
func (qs *QuerySet) First(ctx context.Context) (*Record, error) {
	if qs.err != nil {
		return nil, qs.err
	}
	if qs.executed {
		if len(qs.result) == 0 {
			return nil, nil
		}
		return qs.result[0], nil
	}

	c := qs.clone()
	c.limit = 1
	records, err := c.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}

// Exists reports whether the QuerySet has any record. A fetched QuerySet
// answers from its results; otherwise one row is selected and no prefetch
// runs.
func (qs *QuerySet) Exists(ctx context.Context) (bool, error) {
	n, err := qs.count(ctx, 1)
	return n > 0, err
}

// Count returns the number of records. A fetched QuerySet answers from its
// results; otherwise only primary keys are selected and no prefetch runs.
func (qs *QuerySet) Count(ctx context.Context) (int, error) {
	return qs.count(ctx, qs.limit)
}

func (qs *QuerySet) count(ctx context.Context, limit int) (int, error) {
	if qs.err != nil {
		return 0, qs.err
	}
	if qs.executed {
		return len(qs.result), nil
	}
	if err := qs.verify(); err != nil {
		return 0, err
	}

	sel := qs.Select()
	sel.Joins = nil
	sel.Defer = nil
	sel.Only = []string{schema.PrimaryKey}
	sel.Limit = limit
	rows, err := qs.db.exec.Execute(ctx, sel)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", qs.model, err)
	}
	return len(rows), nil
}

func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		if !slices.Contains(dst, v) {
			dst = append(dst, v)
		}
	}
	return dst
}

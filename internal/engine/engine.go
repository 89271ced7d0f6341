package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/roach88/strictfetch/internal/ir"
	"github.com/roach88/strictfetch/internal/queryir"
	"github.com/roach88/strictfetch/internal/querysql"
	"github.com/roach88/strictfetch/internal/schema"
	"github.com/roach88/strictfetch/internal/store"
)

// DefaultCacheSize is the default number of compiled statement shapes kept.
const DefaultCacheSize = 256

// Row is one decoded result row.
type Row struct {
	// Model is the model the row belongs to.
	Model string

	// Values holds the loaded scalars by field name. A field missing
	// from Values was not selected (deferred).
	Values map[string]ir.Value

	// Joined holds inline-joined to-one rows by relation name. A present
	// key with a nil row means the relation is empty (NULL foreign key or
	// no reverse match).
	Joined map[string]*Row

	// OwnerKey is the owner's link value for collection fetches.
	OwnerKey ir.Value
}

// ID returns the row's primary key.
func (r *Row) ID() ir.Value {
	if v, ok := r.Values[schema.PrimaryKey]; ok {
		return v
	}
	return ir.Null{}
}

// QueryEvent describes one executed statement.
type QueryEvent struct {
	ID     string
	Model  string
	SQL    string
	Params []any
	Rows   int
	Cached bool
}

// Stats counts engine activity since creation or the last ResetStats.
type Stats struct {
	Queries     int64
	CacheHits   int64
	CacheMisses int64
}

// Engine executes selects against one store.
//
// Thread-safety: Execute is safe for concurrent use. The statement cache is
// internally locked and counters are atomic.
type Engine struct {
	store    *store.Store
	reg      *schema.Registry
	compiler *querysql.SQLCompiler
	cache    *lru.Cache[string, *prepared]
	ids      QueryIDGenerator
	observer func(QueryEvent)

	cacheSize int
	queries   atomic.Int64
	hits      atomic.Int64
	misses    atomic.Int64
}

// Option allows configuration of engine parameters.
type Option func(*Engine)

// WithQueryIDGenerator replaces the UUIDv7 query id generator.
func WithQueryIDGenerator(g QueryIDGenerator) Option {
	return func(e *Engine) {
		e.ids = g
	}
}

// WithCacheSize sets the number of cached statement shapes.
//
// Default: 256 (DefaultCacheSize)
func WithCacheSize(n int) Option {
	return func(e *Engine) {
		e.cacheSize = n
	}
}

// WithObserver registers fn to be called after every executed statement.
// Used by the scenario harness to build golden traces.
func WithObserver(fn func(QueryEvent)) Option {
	return func(e *Engine) {
		e.observer = fn
	}
}

// New creates an Engine over a migrated store.
func New(s *store.Store, reg *schema.Registry, opts ...Option) (*Engine, error) {
	if err := reg.Finalize(); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	e := &Engine{
		store:     s,
		reg:       reg,
		compiler:  querysql.NewSQLCompiler(reg),
		ids:       UUIDv7Generator{},
		cacheSize: DefaultCacheSize,
	}

	// Apply options
	for _, opt := range opts {
		opt(e)
	}

	cache, err := lru.New[string, *prepared](e.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("engine: statement cache: %w", err)
	}
	e.cache = cache

	return e, nil
}

// Registry returns the model registry the engine compiles against.
func (e *Engine) Registry() *schema.Registry {
	return e.reg
}

// Stats returns a snapshot of the counters.
func (e *Engine) Stats() Stats {
	return Stats{
		Queries:     e.queries.Load(),
		CacheHits:   e.hits.Load(),
		CacheMisses: e.misses.Load(),
	}
}

// ResetStats zeroes the counters. The statement cache is kept.
func (e *Engine) ResetStats() {
	e.queries.Store(0)
	e.hits.Store(0)
	e.misses.Store(0)
}

// Explain compiles sel without executing it.
func (e *Engine) Explain(sel queryir.Select) (*querysql.Statement, error) {
	stmt, err := e.compiler.Compile(sel)
	if err != nil {
		return nil, &ExecError{Code: ErrCodeCompile, Model: sel.Model, Err: err}
	}
	return stmt, nil
}

// Execute runs sel as one statement and returns its rows in order.
func (e *Engine) Execute(ctx context.Context, sel queryir.Select) ([]*Row, error) {
	p, cached, err := e.prepare(sel)
	if err != nil {
		return nil, err
	}

	params := querysql.Bind(sel)
	id := e.ids.Generate()

	slog.Debug("executing query",
		"query_id", id,
		"model", sel.Model,
		"sql", p.stmt.SQL,
		"params", len(params),
		"cached", cached)

	e.queries.Add(1)
	rows, err := e.store.Query(ctx, p.stmt.SQL, params...)
	if err != nil {
		return nil, &ExecError{Code: ErrCodeQuery, Model: sel.Model, QueryID: id, Err: err}
	}
	defer rows.Close()

	var out []*Row
	raw := make([]any, len(p.stmt.Columns))
	ptrs := make([]any, len(raw))
	for i := range raw {
		ptrs[i] = &raw[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, &ExecError{Code: ErrCodeQuery, Model: sel.Model, QueryID: id, Err: err}
		}
		row, err := p.decode(raw)
		if err != nil {
			return nil, &ExecError{Code: ErrCodeDecode, Model: sel.Model, QueryID: id, Err: err}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, &ExecError{Code: ErrCodeQuery, Model: sel.Model, QueryID: id, Err: err}
	}

	slog.Debug("query complete",
		"query_id", id,
		"model", sel.Model,
		"rows", len(out))

	if e.observer != nil {
		e.observer(QueryEvent{
			ID:     id,
			Model:  sel.Model,
			SQL:    p.stmt.SQL,
			Params: params,
			Rows:   len(out),
			Cached: cached,
		})
	}

	return out, nil
}

// prepared is a compiled statement plus what decoding its rows needs.
type prepared struct {
	stmt *querysql.Statement

	// fields[i] describes stmt.Columns[i]; zero for the owner column.
	fields []schema.Field

	// models maps each join path ("" for root) to its model name.
	models map[string]string

	// paths lists join paths parents first.
	paths []string
}

// prepare returns the cached statement for sel's shape, compiling on a miss.
func (e *Engine) prepare(sel queryir.Select) (*prepared, bool, error) {
	key := querysql.Shape(sel)
	if p, ok := e.cache.Get(key); ok {
		e.hits.Add(1)
		return p, true, nil
	}
	e.misses.Add(1)

	stmt, err := e.compiler.Compile(sel)
	if err != nil {
		return nil, false, &ExecError{Code: ErrCodeCompile, Model: sel.Model, Err: err}
	}

	p := &prepared{
		stmt:   stmt,
		fields: make([]schema.Field, len(stmt.Columns)),
		models: map[string]string{"": sel.Model},
	}

	for i, col := range stmt.Columns {
		if col.Field == "" {
			continue // owner key
		}
		model, err := e.modelFor(p, col.Path)
		if err != nil {
			return nil, false, &ExecError{Code: ErrCodeCompile, Model: sel.Model, Err: err}
		}
		f, err := e.reg.Resolve(model, col.Field)
		if err != nil {
			return nil, false, &ExecError{Code: ErrCodeCompile, Model: sel.Model, Err: err}
		}
		p.fields[i] = f
	}

	e.cache.Add(key, p)
	return p, false, nil
}

// modelFor resolves the model at a join path, memoizing it on p.
func (e *Engine) modelFor(p *prepared, path string) (string, error) {
	if m, ok := p.models[path]; ok {
		return m, nil
	}
	parent, name := "", path
	if i := strings.LastIndex(path, "."); i >= 0 {
		parent, name = path[:i], path[i+1:]
	}
	parentModel, err := e.modelFor(p, parent)
	if err != nil {
		return "", err
	}
	f, err := e.reg.Resolve(parentModel, name)
	if err != nil {
		return "", err
	}
	p.models[path] = f.Target
	p.paths = append(p.paths, path)
	return f.Target, nil
}

// decode assembles one row graph from raw column values.
func (p *prepared) decode(raw []any) (*Row, error) {
	byPath := map[string]*Row{"": newRow(p.models[""])}

	var ownerKey ir.Value
	for i, col := range p.stmt.Columns {
		if col.Field == "" {
			v, err := ir.FromSQL(raw[i])
			if err != nil {
				return nil, fmt.Errorf("owner key: %w", err)
			}
			ownerKey = v
			continue
		}
		row, ok := byPath[col.Path]
		if !ok {
			row = newRow(p.models[col.Path])
			byPath[col.Path] = row
		}
		v, err := store.DecodeColumn(p.fields[i], raw[i])
		if err != nil {
			return nil, err
		}
		row.Values[col.Field] = v
	}

	root := byPath[""]
	root.OwnerKey = ownerKey

	// Attach joined rows parents first; an unmatched LEFT JOIN has a NULL id
	for _, path := range p.paths {
		parentPath, name := "", path
		if i := strings.LastIndex(path, "."); i >= 0 {
			parentPath, name = path[:i], path[i+1:]
		}
		parent := byPath[parentPath]
		if parent == nil {
			continue // parent relation was empty
		}
		row := byPath[path]
		if row != nil && ir.IsNull(row.ID()) {
			row = nil
			byPath[path] = nil
		}
		parent.Joined[name] = row
	}

	return root, nil
}

func newRow(model string) *Row {
	return &Row{
		Model:  model,
		Values: make(map[string]ir.Value),
		Joined: make(map[string]*Row),
	}
}

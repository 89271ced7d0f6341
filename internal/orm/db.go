package orm

import (
	"context"

	"github.com/roach88/strictfetch/internal/engine"
	"github.com/roach88/strictfetch/internal/queryir"
	"github.com/roach88/strictfetch/internal/schema"
	"github.com/roach88/strictfetch/internal/strict"
)

// Executor runs one statement. Implemented by engine.Engine.
type Executor interface {
	Execute(ctx context.Context, sel queryir.Select) ([]*engine.Row, error)
}

// DB binds an executor to the registry its queries are resolved against.
type DB struct {
	exec Executor
	reg  *schema.Registry
}

// New creates a DB.
func New(exec Executor, reg *schema.Registry) *DB {
	return &DB{exec: exec, reg: reg}
}

// Registry returns the model registry.
func (db *DB) Registry() *schema.Registry {
	return db.reg
}

// Objects returns a QuerySet over every record of model. An unknown model is
// reported by the first Fetch.
func (db *DB) Objects(model string) *QuerySet {
	qs := &QuerySet{
		db:    db,
		model: model,
		state: &strict.State{},
	}
	if _, err := db.reg.Model(model); err != nil {
		qs.err = err
	}
	return qs
}

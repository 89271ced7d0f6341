package orm

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/strictfetch/internal/engine"
	"github.com/roach88/strictfetch/internal/ir"
	"github.com/roach88/strictfetch/internal/store"
	"github.com/roach88/strictfetch/internal/strict"
	"github.com/roach88/strictfetch/internal/testutil"
)

type testEnv struct {
	ctx    context.Context
	db     *DB
	engine *engine.Engine
	fx     *testutil.PizzaFixture
}

// setupPizza opens a seeded pizza database. The strict override is reset
// when the test ends.
func setupPizza(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	reg := testutil.PizzaRegistry(t)
	s, err := store.Open(filepath.Join(t.TempDir(), "orm.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(ctx, reg))

	fx, err := testutil.SeedPizza(ctx, s)
	require.NoError(t, err)

	e, err := engine.New(s, reg, engine.WithQueryIDGenerator(testutil.NewSequentialIDGenerator("q")))
	require.NoError(t, err)

	t.Cleanup(strict.ResetOverride)
	return &testEnv{ctx: ctx, db: New(e, reg), engine: e, fx: fx}
}

// queries returns the statements issued since the last call.
func (env *testEnv) queries() int64 {
	n := env.engine.Stats().Queries
	env.engine.ResetStats()
	return n
}

func (env *testEnv) fetch(t *testing.T, qs *QuerySet) []*Record {
	t.Helper()
	records, err := qs.Fetch(env.ctx)
	require.NoError(t, err)
	return records
}

func (env *testEnv) first(t *testing.T, qs *QuerySet) *Record {
	t.Helper()
	records := env.fetch(t, qs)
	require.NotEmpty(t, records)
	return records[0]
}

func (env *testEnv) one(t *testing.T, r *Record, field string) *Record {
	t.Helper()
	related, err := r.One(env.ctx, field)
	require.NoError(t, err)
	return related
}

func (env *testEnv) value(t *testing.T, r *Record, field string) ir.Value {
	t.Helper()
	v, err := r.Value(env.ctx, field)
	require.NoError(t, err)
	return v
}

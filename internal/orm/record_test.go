package orm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/strictfetch/internal/ir"
	"github.com/roach88/strictfetch/internal/schema"
	"github.com/roach88/strictfetch/internal/strict"
)

func TestRecord_UnknownField(t *testing.T) {
	env := setupPizza(t)
	r := env.first(t, env.db.Objects("Restaurant"))

	_, err := r.Value(env.ctx, "rating")
	assert.True(t, schema.IsUnknownField(err))

	_, err = r.One(env.ctx, "owner")
	assert.True(t, schema.IsUnknownField(err))

	_, err = r.Many("reviews").Fetch(env.ctx)
	assert.True(t, schema.IsUnknownField(err))
}

func TestRecord_WrongAccessor(t *testing.T) {
	env := setupPizza(t)
	r := env.first(t, env.db.Objects("Restaurant").Strict())

	_, err := r.Value(env.ctx, "location")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Restaurant.location is a to_one field, not scalar")
	assert.False(t, strict.IsViolation(err))

	_, err = r.One(env.ctx, "pizzas")
	assert.Contains(t, err.Error(), "is a to_many field, not to_one")

	_, err = r.Many("name").Fetch(env.ctx)
	assert.Contains(t, err.Error(), "is a scalar field, not to_many")
}

func TestRecord_LoadedAndCached(t *testing.T) {
	env := setupPizza(t)

	r := env.first(t, env.db.Objects("Restaurant").Only("name").SelectRelated("location"))
	assert.Equal(t, []string{"id", "name", "location_id"}, r.Loaded())
	assert.True(t, r.IsCached("location"))
	assert.False(t, r.IsCached("best_pizza"))
	assert.False(t, r.IsCached("pizzas"))
}

func TestRecord_LazyToOneIsCached(t *testing.T) {
	env := setupPizza(t)

	r := env.first(t, env.db.Objects("Restaurant"))
	env.queries()

	best := env.one(t, r, "best_pizza")
	assert.Equal(t, int64(1), best.ID())
	assert.Equal(t, int64(1), env.queries())
	assert.True(t, r.IsCached("best_pizza"))

	assert.Same(t, best, env.one(t, r, "best_pizza"))
	assert.Zero(t, env.queries())
}

func TestRecord_LazyToOneWithDeferredForeignKey(t *testing.T) {
	env := setupPizza(t)

	r := env.first(t, env.db.Objects("Restaurant").Only("name"))
	env.queries()

	loc := env.one(t, r, "location")
	require.NotNil(t, loc)
	assert.Equal(t, ir.String("Naples"), env.value(t, loc, "city"))
	assert.Equal(t, int64(2), env.queries(), "foreign key column, then the location")
}

func TestRecord_LazyReverseOneToOne(t *testing.T) {
	env := setupPizza(t)

	user := env.first(t, env.db.Objects("User"))
	fav := env.one(t, user, "userfavorite")
	require.NotNil(t, fav)
	assert.Equal(t, env.fx.Favorites[0], fav.ID())

	profile := env.one(t, user, "profile")
	assert.Nil(t, profile, "a NULL foreign key is empty without a query")
}

func TestRecord_StrictForeignKeyColumnIsLoaded(t *testing.T) {
	env := setupPizza(t)

	r := env.first(t, env.db.Objects("Restaurant").Strict())
	assert.Equal(t, ir.Int(env.fx.Locations[0]), env.value(t, r, "location_id"))
}

func TestRecord_JoinedRecordsInheritState(t *testing.T) {
	env := setupPizza(t)

	fav := env.first(t, env.db.Objects("UserFavorite").SelectRelated("restaurant").Strict())
	rest := env.one(t, fav, "restaurant")
	assert.True(t, rest.IsStrict())
	assert.Equal(t, "UserFavorite", rest.State().ParentType())
	assert.Equal(t, "restaurant", rest.State().ParentField())

	_, err := rest.One(env.ctx, "location")
	assert.True(t, strict.IsRelationNotFetched(err))
	assert.Contains(t, err.Error(), "Restaurant.location")
}

func TestRecord_AttrMissing(t *testing.T) {
	env := setupPizza(t)
	r := env.first(t, env.db.Objects("Topping"))

	records, ok := r.Attr("pizzas")
	assert.False(t, ok)
	assert.Empty(t, records)
}

func TestRecord_ManyNonStrictChainingQueries(t *testing.T) {
	env := setupPizza(t)

	r := env.first(t, env.db.Objects("Restaurant").PrefetchRelated(Prefetches("pizzas")...))
	env.queries()

	cached := r.Many("pizzas")
	assert.True(t, cached.Executed())
	assert.Len(t, env.fetch(t, cached), 3)
	assert.Zero(t, env.queries())

	filtered := env.fetch(t, cached.Filter("name", ir.String("pizza-3")))
	assert.Equal(t, []int64{3}, ids(filtered))
	assert.Equal(t, int64(1), env.queries(), "non-strict children re-query when chained")
}

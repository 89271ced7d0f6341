package querysql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/strictfetch/internal/ir"
	"github.com/roach88/strictfetch/internal/queryir"
	"github.com/roach88/strictfetch/internal/testutil"
)

func newCompiler(t *testing.T) *SQLCompiler {
	t.Helper()
	return NewSQLCompiler(testutil.PizzaRegistry(t))
}

func TestCompile_SimpleSelect(t *testing.T) {
	c := newCompiler(t)

	stmt, err := c.Compile(queryir.Select{
		Model:  "Topping",
		Filter: queryir.EqualsField("name", ir.String("cheese")),
		Limit:  1,
	})
	require.NoError(t, err)

	assert.Equal(t,
		`SELECT t0."id", t0."name" FROM "topping" AS t0 WHERE t0."name" = ? ORDER BY t0."id" ASC LIMIT ?`,
		stmt.SQL)

	// Verify parameterized query (no interpolation)
	assert.NotContains(t, stmt.SQL, "cheese")
	assert.Equal(t, []any{"cheese", int64(1)}, stmt.Params)
	assert.Equal(t, []Column{{Field: "id"}, {Field: "name"}}, stmt.Columns)
	assert.Equal(t, []string{"id", "name"}, stmt.Loaded)
	assert.False(t, stmt.HasOwner)
}

func TestCompile_OrderByMandatory(t *testing.T) {
	c := newCompiler(t)

	testCases := []queryir.Select{
		{Model: "Topping"},
		{Model: "Restaurant", Joins: []string{"location"}},
		{Model: "Pizza", Owner: &queryir.Owner{OwnerModel: "Restaurant", Field: "pizzas", Keys: []ir.Value{ir.Int(1)}}},
		{Model: "User", Filter: queryir.In{Field: "id", Values: []ir.Value{ir.Int(1), ir.Int(2)}}},
	}

	for _, sel := range testCases {
		t.Run(sel.Model, func(t *testing.T) {
			stmt, err := c.Compile(sel)
			require.NoError(t, err)
			assert.Contains(t, stmt.SQL, ` ORDER BY t0."id" ASC`, "statements order by the primary key")
		})
	}
}

func TestCompile_Join(t *testing.T) {
	c := newCompiler(t)

	stmt, err := c.Compile(queryir.Select{Model: "Restaurant", Joins: []string{"location"}})
	require.NoError(t, err)

	assert.Equal(t,
		`SELECT t0."id", t0."name", t0."best_pizza_id", t0."location_id", t1."id", t1."city"`+
			` FROM "restaurant" AS t0 LEFT JOIN "location" AS t1 ON t1."id" = t0."location_id"`+
			` ORDER BY t0."id" ASC`,
		stmt.SQL)
	assert.Empty(t, stmt.Params)
	assert.Equal(t, []Column{
		{Field: "id"}, {Field: "name"}, {Field: "best_pizza_id"}, {Field: "location_id"},
		{Path: "location", Field: "id"}, {Path: "location", Field: "city"},
	}, stmt.Columns)
}

func TestCompile_NestedJoinOrdersParentsFirst(t *testing.T) {
	c := newCompiler(t)

	stmt, err := c.Compile(queryir.Select{
		Model: "UserFavorite",
		Joins: []string{"restaurant.location", "user", "restaurant"},
	})
	require.NoError(t, err)

	assert.Contains(t, stmt.SQL, `LEFT JOIN "restaurant" AS t1 ON t1."id" = t0."restaurant_id"`)
	assert.Contains(t, stmt.SQL, `LEFT JOIN "user" AS t2 ON t2."id" = t0."user_id"`)
	assert.Contains(t, stmt.SQL, `LEFT JOIN "location" AS t3 ON t3."id" = t1."location_id"`)

	last := stmt.Columns[len(stmt.Columns)-1]
	assert.Equal(t, Column{Path: "restaurant.location", Field: "city"}, last)
}

func TestCompile_ReverseOneToOneJoin(t *testing.T) {
	c := newCompiler(t)

	stmt, err := c.Compile(queryir.Select{Model: "User", Joins: []string{"userfavorite"}})
	require.NoError(t, err)

	// "user" is quoted because it is an SQL keyword
	assert.Contains(t, stmt.SQL, `FROM "user" AS t0`)
	assert.Contains(t, stmt.SQL, `LEFT JOIN "userfavorite" AS t1 ON t1."user_id" = t0."id"`)
}

func TestCompile_OwnerManyToMany(t *testing.T) {
	c := newCompiler(t)

	stmt, err := c.Compile(queryir.Select{
		Model: "Pizza",
		Owner: &queryir.Owner{OwnerModel: "Restaurant", Field: "pizzas", Keys: []ir.Value{ir.Int(1), ir.Int(2)}},
	})
	require.NoError(t, err)

	assert.Equal(t,
		`SELECT t0."id", t0."name", tt."restaurant_id" AS "__owner" FROM "pizza" AS t0`+
			` INNER JOIN "restaurant_pizzas" AS tt ON tt."pizza_id" = t0."id"`+
			` WHERE tt."restaurant_id" IN (?, ?) ORDER BY t0."id" ASC, "__owner" ASC`,
		stmt.SQL)
	assert.Equal(t, []any{int64(1), int64(2)}, stmt.Params)
	assert.True(t, stmt.HasOwner)
	assert.Equal(t, Column{}, stmt.Columns[len(stmt.Columns)-1])
}

func TestCompile_OwnerReverseForeignKey(t *testing.T) {
	c := newCompiler(t)

	stmt, err := c.Compile(queryir.Select{
		Model: "UserFavorite",
		Owner: &queryir.Owner{OwnerModel: "Restaurant", Field: "userfavorite_set", Keys: []ir.Value{ir.Int(7)}},
	})
	require.NoError(t, err)

	assert.Equal(t,
		`SELECT t0."id", t0."restaurant_id", t0."user_id", t0."restaurant_id" AS "__owner" FROM "userfavorite" AS t0`+
			` WHERE t0."restaurant_id" IN (?) ORDER BY t0."id" ASC, "__owner" ASC`,
		stmt.SQL)
	assert.Equal(t, []any{int64(7)}, stmt.Params)
}

func TestCompile_OwnerForwardForeignKey(t *testing.T) {
	c := newCompiler(t)

	stmt, err := c.Compile(queryir.Select{
		Model: "User",
		Owner: &queryir.Owner{OwnerModel: "UserFavorite", Field: "user", Keys: []ir.Value{ir.Int(3)}},
	})
	require.NoError(t, err)
	assert.Contains(t, stmt.SQL, `t0."id" AS "__owner"`)
	assert.Contains(t, stmt.SQL, `WHERE t0."id" IN (?)`)
}

func TestCompile_OwnerWithoutKeysMatchesNothing(t *testing.T) {
	c := newCompiler(t)

	stmt, err := c.Compile(queryir.Select{
		Model: "Pizza",
		Owner: &queryir.Owner{OwnerModel: "Restaurant", Field: "pizzas"},
	})
	require.NoError(t, err)
	assert.Contains(t, stmt.SQL, "WHERE 0 = 1")
	assert.Empty(t, stmt.Params)
}

func TestCompile_OnlyAndDefer(t *testing.T) {
	c := newCompiler(t)

	stmt, err := c.Compile(queryir.Select{Model: "Topping", Only: []string{"id"}})
	require.NoError(t, err)
	assert.Equal(t, `SELECT t0."id" FROM "topping" AS t0 ORDER BY t0."id" ASC`, stmt.SQL)

	stmt, err = c.Compile(queryir.Select{Model: "Topping", Defer: []string{"name", "id"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"id"}, stmt.Loaded, "the primary key is never deferred")

	// Joined foreign keys are loaded even when not listed
	stmt, err = c.Compile(queryir.Select{Model: "Restaurant", Only: []string{"name"}, Joins: []string{"location"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name", "location_id"}, stmt.Loaded)
}

func TestCompile_Predicates(t *testing.T) {
	c := newCompiler(t)

	stmt, err := c.Compile(queryir.Select{
		Model: "User",
		Filter: queryir.And{Predicates: []queryir.Predicate{
			queryir.EqualsField("profile_id", ir.Null{}),
			queryir.In{Field: "id", Values: []ir.Value{ir.Int(1), ir.Int(2)}},
			queryir.In{Field: "username"},
			queryir.And{},
		}},
	})
	require.NoError(t, err)

	assert.Contains(t, stmt.SQL,
		`WHERE (t0."profile_id" IS NULL AND t0."id" IN (?, ?) AND 0 = 1 AND 1 = 1)`)
	assert.Equal(t, []any{int64(1), int64(2)}, stmt.Params)
}

func TestCompile_InvalidSelect(t *testing.T) {
	c := newCompiler(t)

	_, err := c.Compile(queryir.Select{Model: "Restaurant", Joins: []string{"pizzas"}})
	require.Error(t, err)
	assert.True(t, queryir.IsValidationError(err))
}

func TestBind_MatchesCompile(t *testing.T) {
	c := newCompiler(t)

	sel := queryir.Select{
		Model: "UserFavorite",
		Filter: queryir.And{Predicates: []queryir.Predicate{
			queryir.EqualsField("user_id", ir.Int(4)),
			queryir.EqualsField("restaurant_id", ir.Null{}),
		}},
		Owner: &queryir.Owner{OwnerModel: "Restaurant", Field: "userfavorite_set", Keys: []ir.Value{ir.Int(1), ir.Int(2)}},
		Limit: 3,
	}

	stmt, err := c.Compile(sel)
	require.NoError(t, err)
	assert.Equal(t, stmt.Params, Bind(sel))
}

func TestShape(t *testing.T) {
	a := queryir.Select{Model: "Topping", Filter: queryir.EqualsField("name", ir.String("a"))}
	b := queryir.Select{Model: "Topping", Filter: queryir.EqualsField("name", ir.String("b"))}
	assert.Equal(t, Shape(a), Shape(b), "literal values do not change the shape")

	n := queryir.Select{Model: "Topping", Filter: queryir.EqualsField("name", ir.Null{})}
	assert.NotEqual(t, Shape(a), Shape(n))

	one := queryir.Select{Model: "Pizza", Owner: &queryir.Owner{OwnerModel: "Restaurant", Field: "pizzas", Keys: []ir.Value{ir.Int(1)}}}
	two := queryir.Select{Model: "Pizza", Owner: &queryir.Owner{OwnerModel: "Restaurant", Field: "pizzas", Keys: []ir.Value{ir.Int(1), ir.Int(2)}}}
	assert.NotEqual(t, Shape(one), Shape(two), "placeholder count is part of the shape")

	j1 := queryir.Select{Model: "UserFavorite", Joins: []string{"user", "restaurant"}}
	j2 := queryir.Select{Model: "UserFavorite", Joins: []string{"restaurant", "user"}}
	assert.Equal(t, Shape(j1), Shape(j2))
}

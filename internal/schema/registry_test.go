package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pizzaRegistry mirrors the restaurant domain used across the test suites.
func pizzaRegistry(t *testing.T) *Registry {
	t.Helper()

	topping := NewModel("Topping", "")
	require.NoError(t, topping.AddScalar("name", TypeString))

	pizza := NewModel("Pizza", "")
	require.NoError(t, pizza.AddScalar("name", TypeString))
	require.NoError(t, pizza.AddRelation(RelationSpec{Name: "toppings", Type: ManyToMany, Target: "Topping"}))

	location := NewModel("Location", "")
	require.NoError(t, location.AddScalar("city", TypeString))

	restaurant := NewModel("Restaurant", "")
	require.NoError(t, restaurant.AddRelation(RelationSpec{Name: "pizzas", Type: ManyToMany, Target: "Pizza", RelatedName: "restaurants"}))
	require.NoError(t, restaurant.AddRelation(RelationSpec{Name: "best_pizza", Type: ForeignKey, Target: "Pizza", RelatedName: "championed_by"}))
	require.NoError(t, restaurant.AddRelation(RelationSpec{Name: "location", Type: ForeignKey, Target: "Location", RelatedName: "restaurants"}))

	user := NewModel("User", "")
	require.NoError(t, user.AddScalar("username", TypeString))

	favorite := NewModel("UserFavorite", "")
	require.NoError(t, favorite.AddRelation(RelationSpec{Name: "restaurant", Type: ForeignKey, Target: "Restaurant"}))
	require.NoError(t, favorite.AddRelation(RelationSpec{Name: "user", Type: OneToOne, Target: "User"}))

	reg := NewRegistry()
	for _, m := range []*Model{topping, pizza, location, restaurant, user, favorite} {
		require.NoError(t, reg.Add(m))
	}
	require.NoError(t, reg.Finalize())
	return reg
}

func TestResolve_ForwardRelations(t *testing.T) {
	reg := pizzaRegistry(t)

	f, err := reg.Resolve("Restaurant", "location")
	require.NoError(t, err)
	assert.Equal(t, ToOne, f.Kind)
	assert.Equal(t, "Location", f.Target)
	assert.Equal(t, LinkForeignKey, f.Link.Kind)
	assert.Equal(t, "location_id", f.Link.LocalColumn)
	assert.False(t, f.Reverse)

	f, err = reg.Resolve("Restaurant", "pizzas")
	require.NoError(t, err)
	assert.Equal(t, ToMany, f.Kind)
	assert.Equal(t, LinkThrough, f.Link.Kind)
	assert.Equal(t, "restaurant_pizzas", f.Link.Through)
	assert.Equal(t, "restaurant_id", f.Link.ThroughLocal)
	assert.Equal(t, "pizza_id", f.Link.ThroughRemote)
}

func TestResolve_ForeignKeyAddsColumn(t *testing.T) {
	reg := pizzaRegistry(t)

	f, err := reg.Resolve("Restaurant", "location_id")
	require.NoError(t, err)
	assert.Equal(t, Scalar, f.Kind)
	assert.Equal(t, TypeInt, f.Type)
	assert.False(t, f.Unique)

	f, err = reg.Resolve("UserFavorite", "user_id")
	require.NoError(t, err)
	assert.True(t, f.Unique, "one-to-one columns are unique")
}

func TestFinalize_DerivesReverseAccessors(t *testing.T) {
	reg := pizzaRegistry(t)

	tests := []struct {
		model  string
		field  string
		kind   Kind
		target string
	}{
		{"Location", "restaurants", ToMany, "Restaurant"},
		{"Pizza", "championed_by", ToMany, "Restaurant"},
		{"Pizza", "restaurants", ToMany, "Restaurant"},
		{"Topping", "pizza_set", ToMany, "Pizza"},
		{"Restaurant", "userfavorite_set", ToMany, "UserFavorite"},
		{"User", "userfavorite", ToOne, "UserFavorite"},
	}

	for _, tt := range tests {
		t.Run(tt.model+"."+tt.field, func(t *testing.T) {
			f, err := reg.Resolve(tt.model, tt.field)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, f.Kind)
			assert.Equal(t, tt.target, f.Target)
			assert.True(t, f.Reverse)
		})
	}
}

func TestFinalize_ReverseManyToManySwapsThroughColumns(t *testing.T) {
	reg := pizzaRegistry(t)

	f, err := reg.Resolve("Topping", "pizza_set")
	require.NoError(t, err)
	assert.Equal(t, "pizza_toppings", f.Link.Through)
	assert.Equal(t, "topping_id", f.Link.ThroughLocal)
	assert.Equal(t, "pizza_id", f.Link.ThroughRemote)
}

func TestFinalize_ThroughTables(t *testing.T) {
	reg := pizzaRegistry(t)

	tables := reg.ThroughTables()
	require.Len(t, tables, 2)
	assert.Equal(t, "pizza_toppings", tables[0].Name)
	assert.Equal(t, "restaurant_pizzas", tables[1].Name)
}

func TestFinalize_UnknownTarget(t *testing.T) {
	m := NewModel("Orphan", "")
	require.NoError(t, m.AddRelation(RelationSpec{Name: "parent", Type: ForeignKey, Target: "Missing"}))

	reg := NewRegistry()
	require.NoError(t, reg.Add(m))

	err := reg.Finalize()
	require.Error(t, err)
	assert.True(t, IsUnknownModel(err))
}

func TestFinalize_NoReverse(t *testing.T) {
	a := NewModel("A", "")
	b := NewModel("B", "")
	require.NoError(t, b.AddRelation(RelationSpec{Name: "a", Type: ForeignKey, Target: "A", RelatedName: NoReverse}))

	reg := NewRegistry()
	require.NoError(t, reg.Add(a))
	require.NoError(t, reg.Add(b))
	require.NoError(t, reg.Finalize())

	assert.Empty(t, a.Relations())
}

func TestFinalize_ReverseNameClash(t *testing.T) {
	a := NewModel("A", "")
	require.NoError(t, a.AddScalar("b_set", TypeString))
	b := NewModel("B", "")
	require.NoError(t, b.AddRelation(RelationSpec{Name: "a", Type: ForeignKey, Target: "A"}))

	reg := NewRegistry()
	require.NoError(t, reg.Add(a))
	require.NoError(t, reg.Add(b))

	err := reg.Finalize()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate field")
}

func TestSelfReferentialManyToMany(t *testing.T) {
	u := NewModel("Person", "")
	require.NoError(t, u.AddRelation(RelationSpec{Name: "friends", Type: ManyToMany, Target: "Person", RelatedName: NoReverse}))

	f, ok := u.Field("friends")
	require.True(t, ok)
	assert.Equal(t, "from_person_id", f.Link.ThroughLocal)
	assert.Equal(t, "to_person_id", f.Link.ThroughRemote)
}

func TestResolve_Unknown(t *testing.T) {
	reg := pizzaRegistry(t)

	_, err := reg.Resolve("Restaurant", "chef")
	require.Error(t, err)
	assert.True(t, IsUnknownField(err))
	assert.Equal(t, `unknown field "chef" on model Restaurant`, err.Error())

	_, err = reg.Resolve("Bakery", "id")
	require.Error(t, err)
	assert.True(t, IsUnknownModel(err))
}

func TestAddColumn_Validation(t *testing.T) {
	m := NewModel("Thing", "things")
	assert.Equal(t, "things", m.Table)

	err := m.AddScalar("weight", ColumnType("float"))
	require.Error(t, err)

	err = m.AddScalar("id", TypeInt)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate field")
}

func TestAddRelation_Validation(t *testing.T) {
	m := NewModel("Thing", "")

	require.Error(t, m.AddRelation(RelationSpec{Name: "x", Type: ForeignKey}))
	require.Error(t, m.AddRelation(RelationSpec{Name: "x", Type: "belongs_to", Target: "Other"}))
}

func TestAdd_AfterFinalize(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Finalize())
	require.Error(t, reg.Add(NewModel("Late", "")))
}

func TestModel_FieldLists(t *testing.T) {
	reg := pizzaRegistry(t)
	restaurant, err := reg.Model("Restaurant")
	require.NoError(t, err)

	var scalars []string
	for _, f := range restaurant.Scalars() {
		scalars = append(scalars, f.Name)
	}
	assert.Equal(t, []string{"id", "best_pizza_id", "location_id"}, scalars)

	var relations []string
	for _, f := range restaurant.Relations() {
		relations = append(relations, f.Name)
	}
	assert.Equal(t, []string{"pizzas", "best_pizza", "location", "userfavorite_set"}, relations)
	assert.Len(t, restaurant.ForwardRelations(), 3)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "scalar", Scalar.String())
	assert.Equal(t, "to_one", ToOne.String())
	assert.Equal(t, "to_many", ToMany.String())
	assert.Equal(t, "Kind(9)", Kind(9).String())
}

package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/roach88/strictfetch/internal/compiler"
	"github.com/roach88/strictfetch/internal/ir"
	"github.com/roach88/strictfetch/internal/schema"
)

// PizzaSchema is the restaurant domain used across the test suites.
const PizzaSchema = `
model: Profile: {}

model: User: {
	fields: username: string
	relations: profile: {type: "one_to_one", target: "Profile", nullable: true}
}

model: Topping: {
	fields: name: string
}

model: Pizza: {
	fields: name: string
	relations: toppings: {type: "many_to_many", target: "Topping"}
}

model: Location: {
	fields: city: string
}

model: Restaurant: {
	fields: name: string
	relations: {
		pizzas: {type: "many_to_many", target: "Pizza", related_name: "restaurants"}
		best_pizza: {type: "foreign_key", target: "Pizza", related_name: "championed_by"}
		location: {type: "foreign_key", target: "Location", related_name: "restaurants"}
	}
}

model: UserFavorite: {
	relations: {
		restaurant: {type: "foreign_key", target: "Restaurant"}
		user: {type: "one_to_one", target: "User"}
	}
}
`

// PizzaRegistry compiles PizzaSchema.
func PizzaRegistry(t testing.TB) *schema.Registry {
	t.Helper()
	reg, err := compiler.CompileSchemaString(PizzaSchema)
	if err != nil {
		t.Fatalf("compile pizza schema: %v", err)
	}
	return reg
}

// Seeder creates records. Implemented by store.Store.
type Seeder interface {
	Create(ctx context.Context, model string, fields map[string]ir.Value) (int64, error)
	AddLinks(ctx context.Context, model, relation string, ownerID int64, targetIDs ...int64) error
}

// PizzaFixture holds the ids created by SeedPizza.
type PizzaFixture struct {
	Restaurants []int64
	Favorites   []int64
	Users       []int64
	Locations   []int64
	Pizzas      []int64
	Toppings    []int64
}

// SeedPizza creates two user favorites. Each favorite has its own user and
// restaurant; each restaurant has a location, a best pizza and three menu
// pizzas; each pizza has three toppings.
//
// Ids are assigned in creation order, so the data set is identical on every
// run: 2 locations, 8 pizzas, 24 toppings, 2 restaurants, 2 users.
func SeedPizza(ctx context.Context, s Seeder) (*PizzaFixture, error) {
	fx := &PizzaFixture{}

	pizza := func() (int64, error) {
		n := len(fx.Pizzas) + 1
		id, err := s.Create(ctx, "Pizza", map[string]ir.Value{"name": ir.String(fmt.Sprintf("pizza-%d", n))})
		if err != nil {
			return 0, err
		}
		var toppings []int64
		for range 3 {
			tid, err := s.Create(ctx, "Topping", map[string]ir.Value{
				"name": ir.String(fmt.Sprintf("topping-%d", len(fx.Toppings)+1)),
			})
			if err != nil {
				return 0, err
			}
			fx.Toppings = append(fx.Toppings, tid)
			toppings = append(toppings, tid)
		}
		if err := s.AddLinks(ctx, "Pizza", "toppings", id, toppings...); err != nil {
			return 0, err
		}
		fx.Pizzas = append(fx.Pizzas, id)
		return id, nil
	}

	cities := []string{"Naples", "Chicago"}
	for i, city := range cities {
		loc, err := s.Create(ctx, "Location", map[string]ir.Value{"city": ir.String(city)})
		if err != nil {
			return nil, fmt.Errorf("seed location: %w", err)
		}
		fx.Locations = append(fx.Locations, loc)

		best, err := pizza()
		if err != nil {
			return nil, fmt.Errorf("seed best pizza: %w", err)
		}

		rest, err := s.Create(ctx, "Restaurant", map[string]ir.Value{
			"name":          ir.String(fmt.Sprintf("restaurant-%d", i+1)),
			"location_id":   ir.Int(loc),
			"best_pizza_id": ir.Int(best),
		})
		if err != nil {
			return nil, fmt.Errorf("seed restaurant: %w", err)
		}
		fx.Restaurants = append(fx.Restaurants, rest)

		var menu []int64
		for range 3 {
			p, err := pizza()
			if err != nil {
				return nil, fmt.Errorf("seed menu pizza: %w", err)
			}
			menu = append(menu, p)
		}
		if err := s.AddLinks(ctx, "Restaurant", "pizzas", rest, menu...); err != nil {
			return nil, fmt.Errorf("seed menu: %w", err)
		}

		user, err := s.Create(ctx, "User", map[string]ir.Value{
			"username":   ir.String(fmt.Sprintf("user-%d", i+1)),
			"profile_id": ir.Null{},
		})
		if err != nil {
			return nil, fmt.Errorf("seed user: %w", err)
		}
		fx.Users = append(fx.Users, user)

		fav, err := s.Create(ctx, "UserFavorite", map[string]ir.Value{
			"restaurant_id": ir.Int(rest),
			"user_id":       ir.Int(user),
		})
		if err != nil {
			return nil, fmt.Errorf("seed favorite: %w", err)
		}
		fx.Favorites = append(fx.Favorites, fav)
	}

	return fx, nil
}

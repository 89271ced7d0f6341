package harness

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/strictfetch/internal/ir"
	"github.com/roach88/strictfetch/internal/orm"
)

func TestParseAccess(t *testing.T) {
	tests := []struct {
		expr string
		want []accessOp
	}{
		{"[0]", []accessOp{{kind: opIndex, index: 0}}},
		{"[1].location.city", []accessOp{
			{kind: opIndex, index: 1},
			{kind: opField, name: "location"},
			{kind: opField, name: "city"},
		}},
		{"[0].pizzas[2].toppings.all()", []accessOp{
			{kind: opIndex, index: 0},
			{kind: opField, name: "pizzas"},
			{kind: opIndex, index: 2},
			{kind: opField, name: "toppings"},
			{kind: opCall, name: "all"},
		}},
		{"filter(name = pizza-2).count()", []accessOp{
			{kind: opCall, name: "filter", arg: "name = pizza-2"},
			{kind: opCall, name: "count"},
		}},
		{"[0].pizzas.prefetch(restaurants.location)", []accessOp{
			{kind: opIndex, index: 0},
			{kind: opField, name: "pizzas"},
			{kind: opCall, name: "prefetch", arg: "restaurants.location"},
		}},
		{"[0].attr(fans)[0]", []accessOp{
			{kind: opIndex, index: 0},
			{kind: opCall, name: "attr", arg: "fans"},
			{kind: opIndex, index: 0},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			ops, err := parseAccess(tt.expr)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, ops, cmp.AllowUnexported(accessOp{})); diff != "" {
				t.Errorf("ops mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseAccess_Errors(t *testing.T) {
	tests := []struct {
		expr string
		want string
	}{
		{"", "access is empty"},
		{"[0", "unclosed ["},
		{"[-1]", "bad index"},
		{"[0]..name", "empty name"},
		{"[0].", "empty name"},
		{"count(", "unclosed ("},
		{"(x)", "unexpected"},
		{"[0].pizzas.update()", "unknown call update()"},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			_, err := parseAccess(tt.expr)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseLiteral(t *testing.T) {
	assert.Equal(t, ir.Null{}, parseLiteral("null"))
	assert.Equal(t, ir.Bool(true), parseLiteral("true"))
	assert.Equal(t, ir.Int(42), parseLiteral("42"))
	assert.Equal(t, ir.String("pizza-2"), parseLiteral("pizza-2"))
	assert.Equal(t, ir.String("42"), parseLiteral(`"42"`))
}

func TestRender(t *testing.T) {
	assert.Equal(t, "null", render(nil))
	assert.Equal(t, "Naples", render(ir.String("Naples")))
	assert.Equal(t, "7", render(ir.Int(7)))
	assert.Equal(t, "null", render(ir.Null{}))
	assert.Equal(t, "true", render(true))
	assert.Equal(t, "3", render(3))
	assert.Equal(t, "[]", render([]*orm.Record{}))
}

package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeSchema writes src as schema.cue in a fresh directory.
func writeSchema(t *testing.T, src string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "schema.cue"), []byte(src), 0o644))
	return dir
}

func runCompileCommand(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestCompilePizzaSchema(t *testing.T) {
	output, err := runCompileCommand(t, "text", pizzaSchemaDir)
	require.NoError(t, err)

	assert.Contains(t, output, "✓ Compiled 7 model(s), 7 relation(s), 2 through table(s)")
	assert.Contains(t, output, "Restaurant (restaurant)")
	assert.Contains(t, output, "  name: string")
	assert.Contains(t, output, "  location: to_one → Location\n")
	assert.Contains(t, output, "  championed_by: to_many → Restaurant (reverse)")
	assert.Contains(t, output, "  pizza_set: to_many → Pizza (reverse)")
}

func TestCompilePizzaSchemaJSON(t *testing.T) {
	output, err := runCompileCommand(t, "json", pizzaSchemaDir)
	require.NoError(t, err)

	var resp struct {
		Status string            `json:"status"`
		Data   CompilationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Len(t, resp.Data.Models, 7)
	assert.ElementsMatch(t, []string{"restaurant_pizzas", "pizza_toppings"}, resp.Data.Through)

	var restaurant *ModelInfo
	for i := range resp.Data.Models {
		if resp.Data.Models[i].Name == "Restaurant" {
			restaurant = &resp.Data.Models[i]
		}
	}
	require.NotNil(t, restaurant)
	assert.Contains(t, restaurant.Fields, FieldInfo{Name: "id", Kind: "scalar", Type: "int", Column: "id"})
	assert.Contains(t, restaurant.Fields, FieldInfo{Name: "best_pizza", Kind: "to_one", Target: "Pizza"})
	assert.Contains(t, restaurant.Fields, FieldInfo{Name: "userfavorite_set", Kind: "to_many", Target: "UserFavorite", Reverse: true})
}

func TestCompileOutputToFile(t *testing.T) {
	outputFile := filepath.Join(t.TempDir(), "registry.json")

	output, err := runCompileCommand(t, "text", pizzaSchemaDir, "--output", outputFile)
	require.NoError(t, err)
	assert.Contains(t, output, "Wrote registry to "+outputFile)

	data, err := os.ReadFile(outputFile)
	require.NoError(t, err)

	var result CompilationResult
	require.NoError(t, json.Unmarshal(data, &result))
	assert.Len(t, result.Models, 7)
}

func TestCompileOutputWriteFailure(t *testing.T) {
	outputFile := filepath.Join(t.TempDir(), "missing", "registry.json")

	output, err := runCompileCommand(t, "text", pizzaSchemaDir, "-o", outputFile)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "E007")
	assert.Contains(t, output, "writing output file")
}

func TestCompileNonExistentDirectory(t *testing.T) {
	output, err := runCompileCommand(t, "text", "/nonexistent/directory/path")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "E005") // ErrCodeNotFound
	assert.Contains(t, output, "not found")
}

func TestCompileEmptyDirectory(t *testing.T) {
	output, err := runCompileCommand(t, "text", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "E003")
	assert.Contains(t, output, "no CUE files found")
}

func TestCompileFloatRejection(t *testing.T) {
	dir := writeSchema(t, `
package test

model: Pizza: {
	fields: {
		name:  string
		price: float
	}
}
`)

	output, err := runCompileCommand(t, "text", dir)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, output, "✗ Compilation failed")
	assert.Contains(t, output, "E101: float types are forbidden")
	assert.Contains(t, output, "schema.cue:")
}

func TestCompileErrorsJSON(t *testing.T) {
	dir := writeSchema(t, `
package test

model: Pizza: fields: price: float
model: Topping: fields: weight: number
`)

	output, err := runCompileCommand(t, "json", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "compilation failed with 2 error(s)")

	var resp struct {
		Status string     `json:"status"`
		Error  *CLIError  `json:"error"`
		Data   []CLIError `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "E101", resp.Error.Code)
	assert.Len(t, resp.Data, 2)
}

func TestCompileUnknownTarget(t *testing.T) {
	dir := writeSchema(t, `
package test

model: Restaurant: relations: location: {type: "foreign_key", target: "Location"}
`)

	output, err := runCompileCommand(t, "text", dir)
	require.Error(t, err)
	assert.Contains(t, output, "E105")
	assert.Contains(t, output, "Location")
}

func TestCalculateStats(t *testing.T) {
	result := &CompilationResult{
		Models: []ModelInfo{
			{Name: "Location", Fields: []FieldInfo{
				{Name: "id", Kind: "scalar"},
				{Name: "city", Kind: "scalar"},
				{Name: "restaurant_set", Kind: "to_many", Reverse: true},
			}},
			{Name: "Restaurant", Fields: []FieldInfo{
				{Name: "id", Kind: "scalar"},
				{Name: "location", Kind: "to_one"},
			}},
		},
		Through: []string{},
	}

	stats := calculateStats(result)
	assert.Equal(t, CompilationStats{ModelCount: 2, ScalarCount: 3, RelationCount: 1}, stats)
}

func TestMapFieldToErrorCode(t *testing.T) {
	tests := []struct {
		field string
		want  string
	}{
		{"type", ErrCodeInvalidType},
		{"model.Pizza.fields.id", ErrCodeInvalidField},
		{"model.Restaurant.relations.location.target", ErrCodeInvalidRelation},
		{"model", ErrCodeRegistry},
		{"cue", ErrCodeGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			assert.Equal(t, tt.want, MapFieldToErrorCode(tt.field))
		})
	}
}

package harness

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestScenarios runs every scenario under testdata/scenarios and compares
// its snapshot with the golden file of the same name.
func TestScenarios(t *testing.T) {
	files, err := DiscoverScenarios(scenarioDir)
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, file := range files {
		name := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario(file)
			require.NoError(t, err)
			assert.Equal(t, name, scenario.Name, "file name matches scenario name")

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestSnapshot_Errors(t *testing.T) {
	result := NewResult()
	result.Plan = "Location\n"
	result.AddQueryTrace("q-0001", "Location", 2)
	result.AddStepTrace("[0].city", OutcomeOK, "Naples", 0)
	result.AddError("steps[0] [0].city: expected value Rome, got Naples")

	want := "scenario: demo\n" +
		"plan:\n" +
		"  Location\n" +
		"trace:\n" +
		"  1 query q-0001 Location rows=2\n" +
		"  2 step [0].city => ok Naples (queries=0)\n" +
		"errors:\n" +
		"  steps[0] [0].city: expected value Rome, got Naples\n"
	assert.Equal(t, want, string(Snapshot("demo", result)))
}

package harness

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Snapshot renders a result as deterministic text: the scenario name, the
// fetch plan and every trace event in order.
//
//	scenario: fk_lazy_load
//	plan:
//	  Restaurant
//	trace:
//	  1 query q-0001 Restaurant rows=2
//	  2 step [0].location => ok Location#1 (queries=1)
//	  3 query q-0002 Location rows=1
//
// Query events of a step are listed before the step itself.
func Snapshot(name string, result *Result) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "scenario: %s\n", name)

	b.WriteString("plan:\n")
	for _, line := range strings.Split(strings.TrimRight(result.Plan, "\n"), "\n") {
		if line != "" {
			fmt.Fprintf(&b, "  %s\n", line)
		}
	}

	b.WriteString("trace:\n")
	for _, ev := range result.Trace {
		switch ev.Type {
		case EventQuery:
			fmt.Fprintf(&b, "  %d query %s %s rows=%d\n", ev.Seq, ev.QueryID, ev.Model, ev.Rows)
		case EventStep:
			fmt.Fprintf(&b, "  %d step %s => %s %s (queries=%d)\n", ev.Seq, ev.Access, ev.Outcome, ev.Value, ev.Queries)
		}
	}

	if len(result.Errors) > 0 {
		b.WriteString("errors:\n")
		for _, msg := range result.Errors {
			fmt.Fprintf(&b, "  %s\n", msg)
		}
	}
	return b.Bytes()
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file. The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}

	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares the given result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, Snapshot(scenarioName, result))
}

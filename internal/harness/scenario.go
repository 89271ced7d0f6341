package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/strictfetch/internal/strict"
)

// SeedPizza names the built-in restaurant data set (see testutil.SeedPizza).
const SeedPizza = "pizza"

// Scenario defines a strict-fetch conformance scenario.
// A scenario runs one root query against a fresh database and checks what
// each access step does with the materialized records.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Schema is inline CUE source declaring the models.
	Schema string `yaml:"schema,omitempty"`

	// SchemaDir is a directory of CUE files, relative to the scenario file.
	SchemaDir string `yaml:"schema_dir,omitempty"`

	// Seed loads a built-in data set before the fixtures. "pizza" also
	// supplies the schema when none is given.
	Seed string `yaml:"seed,omitempty"`

	// Override is the global strict override for the run: unset, true or
	// false. The previous override is restored afterwards.
	Override string `yaml:"override,omitempty"`

	// Fixtures create rows and many-to-many links, in order.
	Fixtures []Fixture `yaml:"fixtures,omitempty"`

	// Query is the root query of the scenario.
	Query QuerySpec `yaml:"query"`

	// ExpectQueries is the number of statements the root fetch must issue,
	// prefetches included. Nil skips the check.
	ExpectQueries *int `yaml:"expect_queries,omitempty"`

	// Steps are evaluated in order against the fetched records.
	Steps []Step `yaml:"steps"`
}

// Fixture creates one row (Model and Fields) or attaches many-to-many
// targets to an owner row (Link, Owner and Targets).
type Fixture struct {
	Model  string         `yaml:"model,omitempty"`
	Fields map[string]any `yaml:"fields,omitempty"`

	// Link is "Model.relation".
	Link    string  `yaml:"link,omitempty"`
	Owner   int64   `yaml:"owner,omitempty"`
	Targets []int64 `yaml:"targets,omitempty"`
}

// QuerySpec describes a QuerySet.
type QuerySpec struct {
	Model  string `yaml:"model"`
	Strict bool   `yaml:"strict,omitempty"`

	// Filter is applied as equality filters in key order.
	Filter map[string]any `yaml:"filter,omitempty"`

	Only          []string       `yaml:"only,omitempty"`
	Defer         []string       `yaml:"defer,omitempty"`
	SelectRelated []string       `yaml:"select_related,omitempty"`
	FetchRelated  []string       `yaml:"fetch_related,omitempty"`
	Prefetch      []PrefetchSpec `yaml:"prefetch,omitempty"`
}

// PrefetchSpec describes one Prefetch. A nil Query uses the target model's
// default QuerySet.
type PrefetchSpec struct {
	Path   string     `yaml:"path"`
	ToAttr string     `yaml:"to_attr,omitempty"`
	Query  *QuerySpec `yaml:"query,omitempty"`
}

// Step evaluates one access expression.
type Step struct {
	// Access is the expression to evaluate (see the package documentation).
	Access string `yaml:"access"`

	// Expect is the expected outcome. Defaults to ok.
	Expect string `yaml:"expect,omitempty"`

	// Value is compared with the rendered result of a successful step.
	// Nil skips the check.
	Value any `yaml:"value,omitempty"`

	// Queries is the number of statements the step must issue. Nil skips
	// the check.
	Queries *int `yaml:"queries,omitempty"`
}

// Step outcomes.
const (
	OutcomeOK                     = "ok"
	OutcomeRelationNotFetched     = "relation_not_fetched"
	OutcomeDeferredFieldAccessed  = "deferred_field_accessed"
	OutcomeQueryMutatedAfterFetch = "query_mutated_after_fetch"
	OutcomeError                  = "error"
)

var outcomes = []string{
	OutcomeOK,
	OutcomeRelationNotFetched,
	OutcomeDeferredFieldAccessed,
	OutcomeQueryMutatedAfterFetch,
	OutcomeError,
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// SchemaDir is resolved relative to the scenario file.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving SchemaDir relative to the provided base path.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if scenario.SchemaDir != "" && !filepath.IsAbs(scenario.SchemaDir) && basePath != "" {
		scenario.SchemaDir = filepath.Join(basePath, scenario.SchemaDir)
	}
	if scenario.SchemaDir != "" {
		if _, err := os.Stat(scenario.SchemaDir); os.IsNotExist(err) {
			return nil, fmt.Errorf("invalid scenario: schema_dir not found: %s", scenario.SchemaDir)
		}
	}

	return scenario, nil
}

// ParseScenario parses scenario YAML. SchemaDir is left as written.
func ParseScenario(data []byte) (*Scenario, error) {
	// Parse YAML with strict field validation (catches typos like "step:" vs "steps:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Schema != "" && s.SchemaDir != "" {
		return fmt.Errorf("schema and schema_dir are mutually exclusive")
	}

	if s.Seed != "" && s.Seed != SeedPizza {
		return fmt.Errorf("unknown seed %q (want %q)", s.Seed, SeedPizza)
	}

	if s.Schema == "" && s.SchemaDir == "" && s.Seed == "" {
		return fmt.Errorf("one of schema, schema_dir or seed is required")
	}

	if _, err := strict.ParseOverride(s.Override); err != nil {
		return err
	}

	for i, f := range s.Fixtures {
		if err := validateFixture(f); err != nil {
			return fmt.Errorf("fixtures[%d]: %w", i, err)
		}
	}

	if err := validateQuery(&s.Query); err != nil {
		return fmt.Errorf("query: %w", err)
	}

	if len(s.Steps) == 0 && s.ExpectQueries == nil {
		return fmt.Errorf("steps list or expect_queries is required")
	}

	for i, step := range s.Steps {
		if step.Access == "" {
			return fmt.Errorf("steps[%d]: access is required", i)
		}
		if _, err := parseAccess(step.Access); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
		if step.Expect != "" && !slices.Contains(outcomes, step.Expect) {
			return fmt.Errorf("steps[%d]: unknown expect %q (want one of %s)", i, step.Expect, strings.Join(outcomes, ", "))
		}
		if step.Value != nil && step.Expect != "" && step.Expect != OutcomeOK {
			return fmt.Errorf("steps[%d]: value requires expect %q", i, OutcomeOK)
		}
	}

	return nil
}

func validateFixture(f Fixture) error {
	switch {
	case f.Model != "" && f.Link != "":
		return fmt.Errorf("model and link are mutually exclusive")
	case f.Model != "":
		if len(f.Targets) > 0 || f.Owner != 0 {
			return fmt.Errorf("owner and targets require link")
		}
	case f.Link != "":
		if _, _, ok := strings.Cut(f.Link, "."); !ok {
			return fmt.Errorf("link %q must be Model.relation", f.Link)
		}
		if f.Owner == 0 {
			return fmt.Errorf("link requires owner")
		}
		if len(f.Fields) > 0 {
			return fmt.Errorf("fields require model")
		}
	default:
		return fmt.Errorf("model or link is required")
	}
	return nil
}

func validateQuery(q *QuerySpec) error {
	if q.Model == "" {
		return fmt.Errorf("model is required")
	}
	for i, pf := range q.Prefetch {
		if pf.Path == "" {
			return fmt.Errorf("prefetch[%d]: path is required", i)
		}
		if pf.Query != nil {
			if err := validateQuery(pf.Query); err != nil {
				return fmt.Errorf("prefetch[%d].query: %w", i, err)
			}
		}
	}
	return nil
}

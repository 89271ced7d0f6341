package harness

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/strictfetch/internal/compiler"
	"github.com/roach88/strictfetch/internal/engine"
	"github.com/roach88/strictfetch/internal/ir"
	"github.com/roach88/strictfetch/internal/orm"
	"github.com/roach88/strictfetch/internal/schema"
	"github.com/roach88/strictfetch/internal/store"
	"github.com/roach88/strictfetch/internal/strict"
	"github.com/roach88/strictfetch/internal/testutil"
)

// Harness is the scenario execution environment: one fresh database, one
// engine and one orm.DB.
type Harness struct {
	store  *store.Store
	engine *engine.Engine
	db     *orm.DB
	eval   *evaluator
	result *Result
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation. Query ids
// are sequential, so traces are reproducible.
//
// Execution flow:
// 1. Compile the schema and migrate a fresh in-memory database
// 2. Load the seed data set and the fixtures
// 3. Apply the global strict override
// 4. Fetch the root query and check expect_queries
// 5. Evaluate every step, checking outcome, value and statement count
//
// A returned error means the scenario could not be set up. Failed
// expectations are reported in Result.Errors.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	reg, err := loadRegistry(scenario)
	if err != nil {
		return nil, fmt.Errorf("failed to load schema: %w", err)
	}

	// Create fresh in-memory SQLite database
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	if err := st.Migrate(ctx, reg); err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	if scenario.Seed == SeedPizza {
		if _, err := testutil.SeedPizza(ctx, st); err != nil {
			return nil, fmt.Errorf("failed to seed: %w", err)
		}
	}
	if err := loadFixtures(ctx, st, scenario.Fixtures); err != nil {
		return nil, err
	}

	h := &Harness{store: st, result: NewResult()}
	h.engine, err = engine.New(st, reg,
		engine.WithQueryIDGenerator(testutil.NewSequentialIDGenerator("q")),
		engine.WithObserver(func(ev engine.QueryEvent) {
			h.result.AddQueryTrace(ev.ID, ev.Model, ev.Rows)
		}),
	)
	if err != nil {
		return nil, err
	}
	h.db = orm.New(h.engine, reg)
	h.eval = &evaluator{db: h.db}

	override, err := strict.ParseOverride(scenario.Override)
	if err != nil {
		return nil, err
	}
	previous := strict.CurrentOverride()
	strict.SetOverride(override)
	defer strict.SetOverride(previous)

	root, err := h.buildQuery(&scenario.Query)
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	h.result.Plan = root.Describe().String()

	if _, err := root.Fetch(ctx); err != nil {
		h.result.AddError(fmt.Sprintf("fetch %s: %v", scenario.Query.Model, err))
		return h.result, nil
	}
	if n := h.result.QueryCount(); scenario.ExpectQueries != nil && n != *scenario.ExpectQueries {
		h.result.AddError(fmt.Sprintf("fetch: expected %d queries, got %d", *scenario.ExpectQueries, n))
	}

	for i, step := range scenario.Steps {
		h.runStep(ctx, root, i, step)
	}

	return h.result, nil
}

// runStep evaluates one step against the fetched root and records it.
func (h *Harness) runStep(ctx context.Context, root *orm.QuerySet, i int, step Step) {
	ops, err := parseAccess(step.Access)
	if err != nil {
		h.result.AddError(fmt.Sprintf("steps[%d]: %v", i, err))
		return
	}

	before := h.result.QueryCount()
	v, err := h.eval.evaluate(ctx, root, ops)
	issued := h.result.QueryCount() - before

	outcome := outcomeOf(err)
	var value string
	if err != nil {
		value = errorText(err)
	} else {
		value = render(v)
	}
	h.result.AddStepTrace(step.Access, outcome, value, issued)

	expect := step.Expect
	if expect == "" {
		expect = OutcomeOK
	}
	if outcome != expect {
		msg := fmt.Sprintf("steps[%d] %s: expected %s, got %s", i, step.Access, expect, outcome)
		if err != nil {
			msg += ": " + err.Error()
		}
		h.result.AddError(msg)
	}
	if step.Value != nil && err == nil && value != fmt.Sprint(step.Value) {
		h.result.AddError(fmt.Sprintf("steps[%d] %s: expected value %v, got %s", i, step.Access, step.Value, value))
	}
	if step.Queries != nil && issued != *step.Queries {
		h.result.AddError(fmt.Sprintf("steps[%d] %s: expected %d queries, got %d", i, step.Access, *step.Queries, issued))
	}
}

// buildQuery turns a QuerySpec into a QuerySet. Lookup errors surface here
// rather than at fetch time.
func (h *Harness) buildQuery(q *QuerySpec) (*orm.QuerySet, error) {
	qs := h.db.Objects(q.Model)
	if q.Strict {
		qs = qs.Strict()
	}

	keys := make([]string, 0, len(q.Filter))
	for k := range q.Filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v, err := ir.FromAny(q.Filter[k])
		if err != nil {
			return nil, fmt.Errorf("filter %s: %w", k, err)
		}
		qs = qs.Filter(k, v)
	}

	if len(q.Only) > 0 {
		qs = qs.Only(q.Only...)
	}
	if len(q.Defer) > 0 {
		qs = qs.Defer(q.Defer...)
	}
	if len(q.SelectRelated) > 0 {
		qs = qs.SelectRelated(q.SelectRelated...)
	}
	qs = qs.FetchRelated(q.FetchRelated...)

	for i, spec := range q.Prefetch {
		pf := &orm.Prefetch{Path: spec.Path, ToAttr: spec.ToAttr}
		if spec.Query != nil {
			sub, err := h.buildQuery(spec.Query)
			if err != nil {
				return nil, fmt.Errorf("prefetch[%d]: %w", i, err)
			}
			pf.Query = sub
		}
		qs = qs.PrefetchRelated(pf)
	}

	return qs, qs.Err()
}

func loadRegistry(s *Scenario) (*schema.Registry, error) {
	switch {
	case s.Schema != "":
		return compiler.CompileSchemaString(s.Schema)
	case s.SchemaDir != "":
		return compiler.LoadSchemaDir(s.SchemaDir)
	default:
		return compiler.CompileSchemaString(testutil.PizzaSchema)
	}
}

func loadFixtures(ctx context.Context, st *store.Store, fixtures []Fixture) error {
	for i, f := range fixtures {
		if f.Link != "" {
			model, relation, _ := strings.Cut(f.Link, ".")
			if err := st.AddLinks(ctx, model, relation, f.Owner, f.Targets...); err != nil {
				return fmt.Errorf("fixtures[%d]: %w", i, err)
			}
			continue
		}

		fields := make(map[string]ir.Value, len(f.Fields))
		for name, raw := range f.Fields {
			v, err := ir.FromAny(raw)
			if err != nil {
				return fmt.Errorf("fixtures[%d].%s: %w", i, name, err)
			}
			fields[name] = v
		}
		if _, err := st.Create(ctx, f.Model, fields); err != nil {
			return fmt.Errorf("fixtures[%d]: %w", i, err)
		}
	}
	return nil
}

// outcomeOf maps a step error to its outcome name.
func outcomeOf(err error) string {
	if err == nil {
		return OutcomeOK
	}
	if v, ok := strict.AsViolation(err); ok {
		return strings.ToLower(v.Code)
	}
	return OutcomeError
}

// errorText renders a step error. Violations are rendered without wrapping
// context.
func errorText(err error) string {
	if v, ok := strict.AsViolation(err); ok {
		return v.Error()
	}
	return err.Error()
}

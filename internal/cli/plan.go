package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/strictfetch/internal/engine"
	"github.com/roach88/strictfetch/internal/ir"
	"github.com/roach88/strictfetch/internal/orm"
	"github.com/roach88/strictfetch/internal/plan"
	"github.com/roach88/strictfetch/internal/store"
	"github.com/roach88/strictfetch/internal/testutil"
)

// PlanOptions holds flags for the plan command.
type PlanOptions struct {
	*RootOptions
	Strict        bool
	Filters       []string // field=value
	Only          []string
	Defer         []string
	SelectRelated []string
	Prefetch      []string
	FetchRelated  []string
	Seed          string
	Execute       bool
}

// PlanStatement is one compiled or executed statement.
type PlanStatement struct {
	ID     string `json:"id,omitempty"`
	Model  string `json:"model"`
	SQL    string `json:"sql"`
	Params []any  `json:"params,omitempty"`
	Rows   *int   `json:"rows,omitempty"`
}

// PlanStep is one decision made for a fetch_related path.
type PlanStep struct {
	Path    string `json:"path"`
	Kind    string `json:"kind"`
	Through string `json:"through,omitempty"`
	Model   string `json:"model"`
}

// PlanResult is the output of the plan command.
type PlanResult struct {
	Plan       *orm.PlanNode   `json:"plan"`
	Steps      []PlanStep      `json:"steps,omitempty"`
	Root       PlanStatement   `json:"root"`
	Statements []PlanStatement `json:"statements,omitempty"`
}

// NewPlanCommand creates the plan command.
func NewPlanCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PlanOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "plan <model>",
		Short: "Show how a query fetches its relations",
		Long: `Build a query against the configured schema and print its fetch plan.

The plan lists the joined paths and the prefetch tree, followed by the
root SQL statement. fetch_related paths report whether each path was
joined or prefetched. With --execute the query runs against the database
and every issued statement is shown.

Examples:
  strictfetch plan Restaurant --fetch-related location,pizzas.toppings
  strictfetch plan Pizza --strict --select-related championed_by --execute --seed pizza`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "enable strict mode on the query")
	cmd.Flags().StringSliceVar(&opts.Filters, "filter", nil, "equality filter field=value (repeatable)")
	cmd.Flags().StringSliceVar(&opts.Only, "only", nil, "load only these fields")
	cmd.Flags().StringSliceVar(&opts.Defer, "defer", nil, "defer these fields")
	cmd.Flags().StringSliceVar(&opts.SelectRelated, "select-related", nil, "to-one paths to join")
	cmd.Flags().StringSliceVar(&opts.Prefetch, "prefetch", nil, "paths to prefetch")
	cmd.Flags().StringSliceVar(&opts.FetchRelated, "fetch-related", nil, "paths to join or prefetch as appropriate")
	cmd.Flags().StringVar(&opts.Seed, "seed", "", "load a seed data set before executing (pizza)")
	cmd.Flags().BoolVar(&opts.Execute, "execute", false, "run the query and show every statement")

	return cmd
}

func runPlan(ctx context.Context, opts *PlanOptions, model string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	cfg := opts.Config

	if opts.Seed != "" && opts.Seed != "pizza" {
		return outputCompileError(formatter, ErrCodeGeneric, fmt.Sprintf("unknown seed %q (want \"pizza\")", opts.Seed), nil)
	}

	loadResult, loadErrors := LoadSchema(cfg.Schema, LoadModeFailFast)
	if len(loadErrors) > 0 {
		loadErr := firstLoadError(loadErrors)
		return outputCompileError(formatter, loadErr.Code, loadErr.Message, nil)
	}
	reg := loadResult.Registry

	st, err := store.Open(cfg.Database)
	if err != nil {
		return outputCompileError(formatter, ErrCodeGeneric, err.Error(), nil)
	}
	defer st.Close()

	if err := st.Migrate(ctx, reg); err != nil {
		return outputCompileError(formatter, ErrCodeGeneric, err.Error(), nil)
	}
	if formatter.Verbose {
		tables, err := st.Tables(ctx)
		if err != nil {
			return outputCompileError(formatter, ErrCodeGeneric, err.Error(), nil)
		}
		for _, ti := range tables {
			formatter.VerboseLog("Table %s (%s of %s)", ti.Name, ti.Kind, ti.Model)
		}
	}
	if opts.Seed != "" {
		if _, err := testutil.SeedPizza(ctx, st); err != nil {
			return outputCompileError(formatter, ErrCodeGeneric, fmt.Sprintf("seeding: %v", err), nil)
		}
	}

	result := &PlanResult{}
	eng, err := engine.New(st, reg, engine.WithObserver(func(ev engine.QueryEvent) {
		rows := ev.Rows
		result.Statements = append(result.Statements, PlanStatement{
			ID:     ev.ID,
			Model:  ev.Model,
			SQL:    ev.SQL,
			Params: ev.Params,
			Rows:   &rows,
		})
	}))
	if err != nil {
		return outputCompileError(formatter, ErrCodeGeneric, err.Error(), nil)
	}
	db := orm.New(eng, reg)

	qs, steps, err := buildPlanQuery(db, model, opts)
	if err != nil {
		return outputCompileError(formatter, ErrCodeInvalidLookup, err.Error(), nil)
	}
	for _, s := range steps {
		result.Steps = append(result.Steps, PlanStep{
			Path:    s.Path,
			Kind:    string(s.Kind),
			Through: s.Through,
			Model:   s.Model,
		})
	}
	result.Plan = qs.Describe()

	stmt, err := eng.Explain(qs.Select())
	if err != nil {
		return outputCompileError(formatter, ErrCodeQueryFailed, err.Error(), nil)
	}
	result.Root = PlanStatement{Model: model, SQL: stmt.SQL, Params: stmt.Params}

	if opts.Execute {
		formatter.VerboseLog("Executing %s against %s", model, cfg.Database)
		if _, err := qs.Fetch(ctx); err != nil {
			return outputCompileError(formatter, ErrCodeQueryFailed, err.Error(), nil)
		}
	}

	return outputPlan(formatter, result)
}

// buildPlanQuery applies the command's flags to a fresh QuerySet in the
// same order the QuerySet methods would be chained by hand.
func buildPlanQuery(db *orm.DB, model string, opts *PlanOptions) (*orm.QuerySet, []plan.Step, error) {
	qs := db.Objects(model)
	if opts.Strict {
		qs = qs.Strict()
	}
	for _, f := range opts.Filters {
		field, raw, ok := strings.Cut(f, "=")
		if !ok || field == "" {
			return nil, nil, fmt.Errorf("filter %q must be field=value", f)
		}
		qs = qs.Filter(field, parseFilterValue(raw))
	}
	if len(opts.Only) > 0 {
		qs = qs.Only(opts.Only...)
	}
	if len(opts.Defer) > 0 {
		qs = qs.Defer(opts.Defer...)
	}
	if len(opts.SelectRelated) > 0 {
		qs = qs.SelectRelated(opts.SelectRelated...)
	}
	if len(opts.Prefetch) > 0 {
		qs = qs.PrefetchRelated(orm.Prefetches(opts.Prefetch...)...)
	}
	if err := qs.Err(); err != nil {
		return nil, nil, err
	}
	if len(opts.FetchRelated) == 0 {
		return qs, nil, nil
	}
	return qs.Plan(opts.FetchRelated...)
}

// parseFilterValue reads integers, booleans and null; anything else is a
// string.
func parseFilterValue(raw string) ir.Value {
	switch raw {
	case "null":
		return ir.Null{}
	case "true":
		return ir.Bool(true)
	case "false":
		return ir.Bool(false)
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return ir.Int(n)
	}
	return ir.String(raw)
}

func outputPlan(formatter *OutputFormatter, result *PlanResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintln(w, "Plan:")
	for _, line := range strings.Split(strings.TrimRight(result.Plan.String(), "\n"), "\n") {
		fmt.Fprintf(w, "  %s\n", line)
	}

	if len(result.Steps) > 0 {
		fmt.Fprintln(w, "\nSteps:")
		for _, s := range result.Steps {
			if s.Through != "" {
				fmt.Fprintf(w, "  %s: %s %s (via %s)\n", s.Path, s.Kind, s.Model, s.Through)
			} else {
				fmt.Fprintf(w, "  %s: %s %s\n", s.Path, s.Kind, s.Model)
			}
		}
	}

	fmt.Fprintln(w, "\nSQL:")
	fmt.Fprintf(w, "  %s\n", result.Root.SQL)
	if len(result.Root.Params) > 0 {
		fmt.Fprintf(w, "  params: %v\n", result.Root.Params)
	}

	if len(result.Statements) > 0 {
		fmt.Fprintf(w, "\nExecuted %d statement(s):\n", len(result.Statements))
		for i, s := range result.Statements {
			fmt.Fprintf(w, "  %d. %s rows=%d\n", i+1, s.Model, *s.Rows)
			fmt.Fprintf(w, "     %s\n", s.SQL)
		}
	}

	return nil
}

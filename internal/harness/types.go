package harness

// Trace event types.
const (
	EventQuery = "query"
	EventStep  = "step"
)

// TraceEvent is one entry of a scenario trace: a statement the engine ran
// or the outcome of an access step.
type TraceEvent struct {
	Type string `json:"type"`

	// Query events.
	QueryID string `json:"query_id,omitempty"`
	Model   string `json:"model,omitempty"`
	Rows    int    `json:"rows,omitempty"`

	// Step events.
	Access  string `json:"access,omitempty"`
	Outcome string `json:"outcome,omitempty"`
	Value   string `json:"value,omitempty"`
	Queries int    `json:"queries,omitempty"`

	Seq int `json:"seq"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every expectation matched.
	Pass bool `json:"pass"`

	// Plan is the rendered fetch plan of the root query.
	Plan string `json:"plan"`

	// Trace contains every statement and step outcome in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddQueryTrace appends a statement to the trace.
func (r *Result) AddQueryTrace(queryID, model string, rows int) {
	r.Trace = append(r.Trace, TraceEvent{
		Type:    EventQuery,
		QueryID: queryID,
		Model:   model,
		Rows:    rows,
		Seq:     len(r.Trace) + 1,
	})
}

// AddStepTrace appends a step outcome to the trace.
func (r *Result) AddStepTrace(access, outcome, value string, queries int) {
	r.Trace = append(r.Trace, TraceEvent{
		Type:    EventStep,
		Access:  access,
		Outcome: outcome,
		Value:   value,
		Queries: queries,
		Seq:     len(r.Trace) + 1,
	})
}

// QueryCount returns the number of query events in the trace.
func (r *Result) QueryCount() int {
	n := 0
	for _, ev := range r.Trace {
		if ev.Type == EventQuery {
			n++
		}
	}
	return n
}

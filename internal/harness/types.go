package harness

import "github.com/roach88/jsondb/internal/events"

// TraceEvent records one executed step.
type TraceEvent struct {
	Seq    int64  `json:"seq"`
	Phase  string `json:"phase"` // "setup" or "flow"
	Op     string `json:"op"`
	Path   string `json:"path,omitempty"`
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"` // record.ErrorCode of a failed step

	// Events lists what the step published, as "topic payload".
	Events []string `json:"events,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace contains every executed step in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains expectation and assertion failures.
	Errors []string `json:"errors,omitempty"`

	// Events is every event published during the scenario.
	Events []events.Event `json:"-"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddStep appends a step to the trace and to the event log.
func (r *Result) AddStep(ev TraceEvent, published []events.Event) {
	for _, e := range published {
		ev.Events = append(ev.Events, e.Topic+" "+e.Payload)
	}
	r.Trace = append(r.Trace, ev)
	r.Events = append(r.Events, published...)
}

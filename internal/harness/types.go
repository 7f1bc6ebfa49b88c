package harness

import (
	"fmt"

	"github.com/roach88/scormseq/internal/model"
)

// TraceEvent is one recorded step outcome. Navigation events carry the
// request and its result; progress events carry the reported values.
type TraceEvent struct {
	Seq  int    `json:"seq"`
	Kind string `json:"kind"`

	// Navigation fields.
	Request    model.NavigationRequest `json:"request,omitempty"`
	Target     string                  `json:"target,omitempty"`
	Success    bool                    `json:"success,omitempty"`
	Delivered  string                  `json:"delivered,omitempty"`
	Reason     model.RejectionReason   `json:"reason,omitempty"`
	Redirected model.RuleAction        `json:"redirected,omitempty"`

	// Progress fields.
	Activity  string   `json:"activity,omitempty"`
	Completed *bool    `json:"completed,omitempty"`
	Satisfied *bool    `json:"satisfied,omitempty"`
	Measure   *float64 `json:"measure,omitempty"`

	// Phase after the step executed.
	Phase model.SessionPhase `json:"phase"`
}

// Result is the outcome of running a scenario.
type Result struct {
	ScenarioName string
	Trace        []TraceEvent
	Final        *model.SessionSnapshot
	Errors       []string
}

// NewResult creates an empty result for a scenario.
func NewResult(name string) *Result {
	return &Result{ScenarioName: name}
}

// Passed reports whether every expectation and assertion held.
func (r *Result) Passed() bool { return len(r.Errors) == 0 }

// AddError records a failed expectation or assertion.
func (r *Result) AddError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

package harness

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/scormseq/internal/compiler"
	"github.com/roach88/scormseq/internal/flow"
	"github.com/roach88/scormseq/internal/model"
	"github.com/roach88/scormseq/internal/session"
	"github.com/roach88/scormseq/internal/testutil"
)

// Harness drives one session through a scenario's steps.
type Harness struct {
	session *session.Session
	logger  *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each run starts a fresh session with a fixed session identifier and a
// seeded selection source, so the trace is fully reproducible.
//
// Step errors that the scenario declares (a rejected request with an expect
// clause) are part of normal execution; engine errors that no expect clause
// anticipates, such as a redirection loop, abort the run.
func Run(scenario *Scenario) (*Result, error) {
	return RunWithLogger(scenario, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// RunWithLogger is Run with step-level logging, for the CLI.
func RunWithLogger(scenario *Scenario, logger *slog.Logger) (*Result, error) {
	cfg, err := compiler.LoadFile(scenario.Config)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	sessionID := scenario.SessionID
	if sessionID == "" {
		sessionID = "test-session-default"
	}

	sess, err := session.Initialize(cfg,
		session.WithIDGenerator(testutil.NewFixedIDGenerator(sessionID)),
		session.WithSelectionSource(flow.SeededSource{Seed: scenario.Seed}),
	)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: initialize: %w", scenario.Name, err)
	}

	h := &Harness{session: sess, logger: logger}

	result := NewResult(scenario.Name)
	for i, step := range scenario.Steps {
		if step.Update != nil {
			if err := h.executeUpdate(i, step.Update, result); err != nil {
				return nil, err
			}
			continue
		}
		if err := h.executeRequest(i, step, result); err != nil {
			return nil, err
		}
	}

	result.Final = sess.GetState()
	if scenario.Final != nil {
		EvaluateFinal(result, scenario.Final)
	}

	return result, nil
}

func (h *Harness) executeRequest(i int, step Step, result *Result) error {
	res, err := h.session.ProcessNavigation(step.Request, step.Target)
	if err != nil {
		var loopErr *session.RedirectionLoopError
		if errors.As(err, &loopErr) && step.Expect != nil && step.Expect.Reason == "redirection-loop" {
			result.Trace = append(result.Trace, TraceEvent{
				Seq:     i + 1,
				Kind:    "navigation",
				Request: step.Request,
				Target:  step.Target,
				Reason:  "redirection-loop",
				Phase:   h.session.Phase(),
			})
			return nil
		}
		return fmt.Errorf("step %d (%s): %w", i, step.Request, err)
	}

	ev := TraceEvent{
		Seq:        i + 1,
		Kind:       "navigation",
		Request:    step.Request,
		Target:     step.Target,
		Success:    res.Success,
		Delivered:  res.TargetID,
		Reason:     res.Reason,
		Redirected: res.Redirected,
		Phase:      h.session.Phase(),
	}
	result.Trace = append(result.Trace, ev)

	h.logger.Info("navigation step",
		"step", i,
		"request", step.Request,
		"success", res.Success,
		"delivered", res.TargetID,
		"reason", res.Reason,
	)

	h.validateExpect(i, step, res, result)
	return nil
}

func (h *Harness) validateExpect(i int, step Step, res model.NavigationResult, result *Result) {
	if step.Expect == nil {
		if !res.Success {
			result.AddError("step %d (%s): rejected with %q, no rejection expected", i, step.Request, res.Reason)
		}
		return
	}

	e := step.Expect
	if e.Success != nil && res.Success != *e.Success {
		result.AddError("step %d (%s): success = %v, want %v", i, step.Request, res.Success, *e.Success)
	}
	if e.Delivered != "" && res.TargetID != e.Delivered {
		result.AddError("step %d (%s): delivered %q, want %q", i, step.Request, res.TargetID, e.Delivered)
	}
	if e.Reason != "" && e.Reason != "redirection-loop" && string(res.Reason) != e.Reason {
		result.AddError("step %d (%s): reason %q, want %q", i, step.Request, res.Reason, e.Reason)
	}
	if e.Redirected != "" && string(res.Redirected) != e.Redirected {
		result.AddError("step %d (%s): redirected %q, want %q", i, step.Request, res.Redirected, e.Redirected)
	}
	if e.Phase != "" && string(h.session.Phase()) != e.Phase {
		result.AddError("step %d (%s): phase %q, want %q", i, step.Request, h.session.Phase(), e.Phase)
	}
}

func (h *Harness) executeUpdate(i int, upd *UpdateStep, result *Result) error {
	err := h.session.UpdateActivityProgress(upd.Activity, session.ProgressUpdate{
		Completed: upd.Completed,
		Satisfied: upd.Satisfied,
		Measure:   upd.Measure,
	})
	if err != nil {
		return fmt.Errorf("step %d (update %s): %w", i, upd.Activity, err)
	}

	result.Trace = append(result.Trace, TraceEvent{
		Seq:       i + 1,
		Kind:      "progress",
		Activity:  upd.Activity,
		Completed: upd.Completed,
		Satisfied: upd.Satisfied,
		Measure:   upd.Measure,
		Phase:     h.session.Phase(),
	})

	h.logger.Info("progress step", "step", i, "activity", upd.Activity)
	return nil
}

package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/scormseq/internal/model"
)

// TraceSnapshot captures a scenario run for golden file comparison: the
// full trace plus the final phase.
type TraceSnapshot struct {
	ScenarioName string
	SessionID    string
	Trace        []TraceEvent
	FinalPhase   model.SessionPhase
}

// toCanonicalMap lowers the snapshot to the restricted value tree the
// canonical marshaler accepts. Measures render at fixed precision.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, ev := range s.Trace {
		eventMap := map[string]any{
			"seq":   ev.Seq,
			"kind":  ev.Kind,
			"phase": string(ev.Phase),
		}
		if ev.Kind == "navigation" {
			eventMap["request"] = string(ev.Request)
			eventMap["success"] = ev.Success
			if ev.Target != "" {
				eventMap["target"] = ev.Target
			}
			if ev.Delivered != "" {
				eventMap["delivered"] = ev.Delivered
			}
			if ev.Reason != "" {
				eventMap["reason"] = string(ev.Reason)
			}
			if ev.Redirected != "" {
				eventMap["redirected"] = string(ev.Redirected)
			}
		} else {
			eventMap["activity"] = ev.Activity
			if ev.Completed != nil {
				eventMap["completed"] = *ev.Completed
			}
			if ev.Satisfied != nil {
				eventMap["satisfied"] = *ev.Satisfied
			}
			if ev.Measure != nil {
				eventMap["measure"] = model.Measure(*ev.Measure)
			}
		}
		traceList[i] = eventMap
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"session_id":    s.SessionID,
		"trace":         traceList,
		"final_phase":   string(s.FinalPhase),
	}
}

// RunWithGolden executes a scenario and compares its trace against the
// golden file testdata/golden/{scenario.Name}.golden. Regenerate with:
//
//	go test ./internal/harness -update
//
// Scenario expectation failures are reported through t directly; only
// infrastructure failures return an error.
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}

	for _, msg := range result.Errors {
		t.Error(msg)
	}

	return AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an already-obtained result against a golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		SessionID:    result.Final.SessionID,
		Trace:        result.Trace,
		FinalPhase:   result.Final.Phase,
	}

	traceJSON, err := model.MarshalCanonical(snapshot.toCanonicalMap())
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)

	return nil
}

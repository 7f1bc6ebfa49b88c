package harness

import (
	"math"

	"github.com/roach88/scormseq/internal/model"
)

// measureTolerance absorbs float accumulation from weighted measure rollup.
const measureTolerance = 1e-9

// EvaluateFinal checks the final-state assertions against the result's
// snapshot, recording every mismatch. Collects all failures instead of
// stopping at the first.
func EvaluateFinal(result *Result, final *FinalState) {
	snap := result.Final
	if snap == nil {
		result.AddError("final: no snapshot recorded")
		return
	}

	if final.Phase != "" && string(snap.Phase) != final.Phase {
		result.AddError("final: phase = %q, want %q", snap.Phase, final.Phase)
	}
	if final.Current != "" && snap.CurrentID != final.Current {
		result.AddError("final: current = %q, want %q", snap.CurrentID, final.Current)
	}
	if final.Suspended != "" && snap.SuspendedID != final.Suspended {
		result.AddError("final: suspended = %q, want %q", snap.SuspendedID, final.Suspended)
	}

	for id, expect := range final.Activities {
		evaluateActivity(result, snap, id, expect)
	}

	for key, expect := range final.Globals {
		evaluateGlobal(result, snap, key, expect)
	}
}

func evaluateActivity(result *Result, snap *model.SessionSnapshot, id string, expect ActivityExpect) {
	tracking, ok := snap.Activities[id]
	if !ok {
		result.AddError("final: activity %q not in snapshot", id)
		return
	}

	if expect.Completion != "" && string(tracking.Completion) != expect.Completion {
		result.AddError("final: %s completion = %q, want %q", id, tracking.Completion, expect.Completion)
	}
	if expect.Satisfied != "" && string(tracking.Objective.SatisfiedStatus) != expect.Satisfied {
		result.AddError("final: %s satisfied = %q, want %q", id, tracking.Objective.SatisfiedStatus, expect.Satisfied)
	}
	if expect.Measure != nil {
		if !tracking.Objective.MeasureKnown {
			result.AddError("final: %s measure unknown, want %v", id, *expect.Measure)
		} else if math.Abs(tracking.Objective.Measure-*expect.Measure) > measureTolerance {
			result.AddError("final: %s measure = %v, want %v", id, tracking.Objective.Measure, *expect.Measure)
		}
	}
	if expect.Attempts != nil && tracking.AttemptCount != *expect.Attempts {
		result.AddError("final: %s attempts = %d, want %d", id, tracking.AttemptCount, *expect.Attempts)
	}
	if expect.Suspended != nil && tracking.Suspended != *expect.Suspended {
		result.AddError("final: %s suspended = %v, want %v", id, tracking.Suspended, *expect.Suspended)
	}
}

func evaluateGlobal(result *Result, snap *model.SessionSnapshot, key string, expect GlobalExpect) {
	global, ok := snap.Globals[key]
	if !ok {
		result.AddError("final: global %q not in snapshot", key)
		return
	}

	if expect.Satisfied != "" && string(global.SatisfiedStatus) != expect.Satisfied {
		result.AddError("final: global %s satisfied = %q, want %q", key, global.SatisfiedStatus, expect.Satisfied)
	}
	if expect.Measure != nil {
		if !global.MeasureKnown {
			result.AddError("final: global %s measure unknown, want %v", key, *expect.Measure)
		} else if math.Abs(global.Measure-*expect.Measure) > measureTolerance {
			result.AddError("final: global %s measure = %v, want %v", key, global.Measure, *expect.Measure)
		}
	}
}

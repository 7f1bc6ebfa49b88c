package model

import "time"

// CompletionStatus is an activity's rolled-up or reported progress status.
type CompletionStatus string

const (
	CompletionUnknown    CompletionStatus = "unknown"
	CompletionIncomplete CompletionStatus = "incomplete"
	CompletionCompleted  CompletionStatus = "completed"
)

// SatisfiedStatus is an objective's satisfaction status.
type SatisfiedStatus string

const (
	SatisfiedUnknown SatisfiedStatus = "unknown"
	Satisfied        SatisfiedStatus = "satisfied"
	NotSatisfied     SatisfiedStatus = "not_satisfied"
)

// ObjectiveTracking is the per-attempt state of one objective.
type ObjectiveTracking struct {
	SatisfiedStatus SatisfiedStatus `json:"satisfied_status"`
	Measure         float64         `json:"measure"`
	MeasureKnown    bool            `json:"measure_known"`
}

// NewObjectiveTracking returns the unknown/empty objective state.
func NewObjectiveTracking() ObjectiveTracking {
	return ObjectiveTracking{SatisfiedStatus: SatisfiedUnknown}
}

// ActivityTracking is the mutable per-activity runtime state, cumulative
// across attempts except where noted. The tree package owns one instance per
// activity; only the navigation processor and rollup engine mutate it.
type ActivityTracking struct {
	AttemptCount int `json:"attempt_count"`

	// Per-attempt fields, reset on each new attempt.
	AttemptCompletionAmount    float64       `json:"attempt_completion_amount"`
	AttemptAbsoluteDuration    time.Duration `json:"attempt_absolute_duration"`
	AttemptExperiencedDuration time.Duration `json:"attempt_experienced_duration"`

	Completion CompletionStatus  `json:"completion"`
	Objective  ObjectiveTracking `json:"objective"`

	// Secondary objective state keyed by objective id.
	Objectives map[string]ObjectiveTracking `json:"objectives,omitempty"`

	Suspended bool `json:"suspended"`
	Active    bool `json:"active"`

	// Derived limit flags, recomputed by the limit checker before rule
	// evaluation. Data for "limit exceeded" conditions, not control flow.
	AttemptLimitExceeded  bool `json:"attempt_limit_exceeded"`
	DurationLimitExceeded bool `json:"duration_limit_exceeded"`

	// Selection/randomization state, stable for the remainder of the
	// cluster's attempt once chosen. Entries are arena ordinals of the
	// selected children in traversal order.
	SelectedChildren  []int `json:"selected_children,omitempty"`
	SelectionDone     bool  `json:"selection_done"`
	RandomizationDone bool  `json:"randomization_done"`
}

// NewActivityTracking returns the initial (never attempted) tracking state.
func NewActivityTracking() *ActivityTracking {
	return &ActivityTracking{
		Completion: CompletionUnknown,
		Objective:  NewObjectiveTracking(),
	}
}

// Attempted reports whether the activity has ever begun an attempt.
func (t *ActivityTracking) Attempted() bool { return t.AttemptCount > 0 }

// ProgressKnown reports whether the activity's progress status is known.
func (t *ActivityTracking) ProgressKnown() bool { return t.Completion != CompletionUnknown }

// BeginAttempt increments the attempt count and resets per-attempt state.
func (t *ActivityTracking) BeginAttempt() {
	t.AttemptCount++
	t.AttemptCompletionAmount = 0
	t.AttemptAbsoluteDuration = 0
	t.AttemptExperiencedDuration = 0
	t.Active = true
	t.Suspended = false
}

// ObjectiveFor returns the tracking state for a named secondary objective,
// creating the unknown state on first access. The empty id addresses the
// primary objective.
func (t *ActivityTracking) ObjectiveFor(id string) ObjectiveTracking {
	if id == "" {
		return t.Objective
	}
	if o, ok := t.Objectives[id]; ok {
		return o
	}
	return NewObjectiveTracking()
}

// SetObjective stores tracking state for a named objective. The empty id
// addresses the primary objective.
func (t *ActivityTracking) SetObjective(id string, o ObjectiveTracking) {
	if id == "" {
		t.Objective = o
		return
	}
	if t.Objectives == nil {
		t.Objectives = make(map[string]ObjectiveTracking)
	}
	t.Objectives[id] = o
}

// Clone returns a deep copy of the tracking state. Used for snapshotting and
// rejection-purity verification.
func (t *ActivityTracking) Clone() *ActivityTracking {
	c := *t
	if t.Objectives != nil {
		c.Objectives = make(map[string]ObjectiveTracking, len(t.Objectives))
		for k, v := range t.Objectives {
			c.Objectives[k] = v
		}
	}
	if t.SelectedChildren != nil {
		c.SelectedChildren = append([]int(nil), t.SelectedChildren...)
	}
	return &c
}

// GlobalObjective is the shared value stored under a global objective key.
type GlobalObjective struct {
	SatisfiedStatus SatisfiedStatus `json:"satisfied_status"`
	Measure         float64         `json:"measure"`
	MeasureKnown    bool            `json:"measure_known"`
}

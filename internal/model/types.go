package model

import "time"

// ActivityConfig is the tree-shaped sequencing configuration for one activity,
// as produced by the manifest-parsing collaborator (or the YAML compiler).
// Children are owned by value; the tree package flattens this into an arena.
type ActivityConfig struct {
	ID    string `json:"id" yaml:"id"`
	Title string `json:"title" yaml:"title"`

	ControlModes     ControlModes          `json:"control_modes" yaml:"control_modes"`
	PreRules         []SequencingRule      `json:"pre_rules,omitempty" yaml:"pre_rules,omitempty"`
	PostRules        []SequencingRule      `json:"post_rules,omitempty" yaml:"post_rules,omitempty"`
	ExitRules        []SequencingRule      `json:"exit_rules,omitempty" yaml:"exit_rules,omitempty"`
	Limits           LimitConditions       `json:"limits" yaml:"limits"`
	RollupRules      []RollupRule          `json:"rollup_rules,omitempty" yaml:"rollup_rules,omitempty"`
	RollupControls   RollupControls        `json:"rollup_controls" yaml:"rollup_controls"`
	Considerations   RollupConsiderations  `json:"considerations" yaml:"considerations"`
	PrimaryObjective *Objective            `json:"primary_objective,omitempty" yaml:"primary_objective,omitempty"`
	Objectives       []Objective           `json:"objectives,omitempty" yaml:"objectives,omitempty"`
	Randomization    RandomizationControls `json:"randomization" yaml:"randomization"`
	Delivery         DeliveryControls      `json:"delivery" yaml:"delivery"`

	Children []ActivityConfig `json:"children,omitempty" yaml:"children,omitempty"`
}

// IsLeaf reports whether this configuration node is a launchable leaf.
func (c *ActivityConfig) IsLeaf() bool {
	return len(c.Children) == 0
}

// ControlModes are the per-activity flags governing whether flow and choice
// navigation may cross this activity.
//
// Defaults follow the content packaging standard: choice and choice_exit
// default to true, everything else to false. The compiler applies defaults;
// the model stores resolved values only.
type ControlModes struct {
	Choice          bool `json:"choice" yaml:"choice"`
	ChoiceExit      bool `json:"choice_exit" yaml:"choice_exit"`
	Flow            bool `json:"flow" yaml:"flow"`
	FlowExit        bool `json:"flow_exit" yaml:"flow_exit"`
	ForwardOnly     bool `json:"forward_only" yaml:"forward_only"`
	ConstrainChoice bool `json:"constrain_choice" yaml:"constrain_choice"`
}

// DefaultControlModes returns the standard defaults applied when a config
// omits the control_modes block entirely.
func DefaultControlModes() ControlModes {
	return ControlModes{
		Choice:     true,
		ChoiceExit: true,
		FlowExit:   true,
	}
}

// LimitConditions bound how often and for how long an activity may be
// attempted. Nil/zero fields mean "no limit". Durations are data consumed by
// rule evaluation, never scheduling.
type LimitConditions struct {
	AttemptLimit             int           `json:"attempt_limit,omitempty" yaml:"attempt_limit,omitempty"`
	AbsoluteDurationLimit    time.Duration `json:"absolute_duration_limit,omitempty" yaml:"absolute_duration_limit,omitempty"`
	ExperiencedDurationLimit time.Duration `json:"experienced_duration_limit,omitempty" yaml:"experienced_duration_limit,omitempty"`
}

// HasAttemptLimit reports whether an attempt count limit is configured.
func (l LimitConditions) HasAttemptLimit() bool { return l.AttemptLimit > 0 }

// HasDurationLimit reports whether any duration limit is configured.
func (l LimitConditions) HasDurationLimit() bool {
	return l.AbsoluteDurationLimit > 0 || l.ExperiencedDurationLimit > 0
}

// Objective declares a learning objective on an activity. The primary
// objective contributes to rollup; secondary objectives exist for global
// sharing only.
type Objective struct {
	ID                   string             `json:"id" yaml:"id"`
	SatisfiedByMeasure   bool               `json:"satisfied_by_measure,omitempty" yaml:"satisfied_by_measure,omitempty"`
	MinNormalizedMeasure float64            `json:"min_normalized_measure,omitempty" yaml:"min_normalized_measure,omitempty"`
	MapInfo              []ObjectiveMapping `json:"map_info,omitempty" yaml:"map_info,omitempty"`
}

// ObjectiveMapping aliases a local objective to a global objective key with
// independent read/write permissions per field.
type ObjectiveMapping struct {
	TargetID               string `json:"target_id" yaml:"target_id"`
	ReadSatisfiedStatus    bool   `json:"read_satisfied_status" yaml:"read_satisfied_status"`
	ReadNormalizedMeasure  bool   `json:"read_normalized_measure" yaml:"read_normalized_measure"`
	WriteSatisfiedStatus   bool   `json:"write_satisfied_status" yaml:"write_satisfied_status"`
	WriteNormalizedMeasure bool   `json:"write_normalized_measure" yaml:"write_normalized_measure"`
}

// SelectionTiming controls when child selection or reordering happens.
type SelectionTiming string

const (
	TimingNever            SelectionTiming = "never"
	TimingOnce             SelectionTiming = "once"
	TimingOnEachNewAttempt SelectionTiming = "on_each_new_attempt"
)

// ValidTimings defines allowed selection/randomization timing values.
var ValidTimings = map[SelectionTiming]bool{
	TimingNever:            true,
	TimingOnce:             true,
	TimingOnEachNewAttempt: true,
}

// RandomizationControls configure child subset selection and reordering on a
// cluster. SelectCount of zero means "all children".
type RandomizationControls struct {
	SelectionTiming     SelectionTiming `json:"selection_timing,omitempty" yaml:"selection_timing,omitempty"`
	SelectCount         int             `json:"select_count,omitempty" yaml:"select_count,omitempty"`
	RandomizationTiming SelectionTiming `json:"randomization_timing,omitempty" yaml:"randomization_timing,omitempty"`
	ReorderChildren     bool            `json:"reorder_children,omitempty" yaml:"reorder_children,omitempty"`
}

// DeliveryControls configure how tracking data is sourced for an activity.
type DeliveryControls struct {
	Tracked                bool `json:"tracked" yaml:"tracked"`
	CompletionSetByContent bool `json:"completion_set_by_content,omitempty" yaml:"completion_set_by_content,omitempty"`
	ObjectiveSetByContent  bool `json:"objective_set_by_content,omitempty" yaml:"objective_set_by_content,omitempty"`
}

// DefaultDeliveryControls returns the standard defaults (tracked=true).
func DefaultDeliveryControls() DeliveryControls {
	return DeliveryControls{Tracked: true}
}

// RollupControls configure whether and how an activity contributes to its
// parent's rollup. ObjectiveMeasureWeight participates in weighted-measure
// satisfaction rollup; the standard default weight is 1.0.
type RollupControls struct {
	RollupObjectiveSatisfied bool    `json:"rollup_objective_satisfied" yaml:"rollup_objective_satisfied"`
	RollupProgressCompletion bool    `json:"rollup_progress_completion" yaml:"rollup_progress_completion"`
	ObjectiveMeasureWeight   float64 `json:"objective_measure_weight" yaml:"objective_measure_weight"`
}

// DefaultRollupControls returns the standard defaults (both contributions on,
// weight 1.0).
func DefaultRollupControls() RollupControls {
	return RollupControls{
		RollupObjectiveSatisfied: true,
		RollupProgressCompletion: true,
		ObjectiveMeasureWeight:   1.0,
	}
}

// ConsiderationRequirement qualifies when a child is required for a rollup
// outcome.
type ConsiderationRequirement string

const (
	ConsiderAlways         ConsiderationRequirement = "always"
	ConsiderIfAttempted    ConsiderationRequirement = "if_attempted"
	ConsiderIfNotSkipped   ConsiderationRequirement = "if_not_skipped"
	ConsiderIfNotSuspended ConsiderationRequirement = "if_not_suspended"
)

// ValidConsiderationRequirements defines allowed requirement values.
var ValidConsiderationRequirements = map[ConsiderationRequirement]bool{
	ConsiderAlways:         true,
	ConsiderIfAttempted:    true,
	ConsiderIfNotSkipped:   true,
	ConsiderIfNotSuspended: true,
}

// RollupConsiderations qualify a child's participation in its parent's rollup.
// Empty fields default to "always".
type RollupConsiderations struct {
	RequiredForSatisfied        ConsiderationRequirement `json:"required_for_satisfied,omitempty" yaml:"required_for_satisfied,omitempty"`
	RequiredForNotSatisfied     ConsiderationRequirement `json:"required_for_not_satisfied,omitempty" yaml:"required_for_not_satisfied,omitempty"`
	RequiredForCompleted        ConsiderationRequirement `json:"required_for_completed,omitempty" yaml:"required_for_completed,omitempty"`
	RequiredForIncomplete       ConsiderationRequirement `json:"required_for_incomplete,omitempty" yaml:"required_for_incomplete,omitempty"`
	MeasureSatisfactionIfActive bool                     `json:"measure_satisfaction_if_active,omitempty" yaml:"measure_satisfaction_if_active,omitempty"`
}

// Requirement returns the requirement for a rollup action, applying the
// "always" default for unset fields.
func (c RollupConsiderations) Requirement(action RollupAction) ConsiderationRequirement {
	var r ConsiderationRequirement
	switch action {
	case RollupSatisfied:
		r = c.RequiredForSatisfied
	case RollupNotSatisfied:
		r = c.RequiredForNotSatisfied
	case RollupCompleted:
		r = c.RequiredForCompleted
	case RollupIncomplete:
		r = c.RequiredForIncomplete
	}
	if r == "" {
		return ConsiderAlways
	}
	return r
}

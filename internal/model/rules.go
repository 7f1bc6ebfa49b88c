package model

// RuleSetKind identifies which of the three sequencing rule sets a rule
// belongs to. The action vocabulary differs per kind.
type RuleSetKind string

const (
	RuleSetPre  RuleSetKind = "pre"
	RuleSetPost RuleSetKind = "post"
	RuleSetExit RuleSetKind = "exit"
)

// ConditionCombination joins a rule's conditions.
type ConditionCombination string

const (
	CombinationAll ConditionCombination = "all"
	CombinationAny ConditionCombination = "any"
)

// ValidCombinations defines allowed condition combinations.
var ValidCombinations = map[ConditionCombination]bool{
	CombinationAll: true,
	CombinationAny: true,
}

// ConditionType names a rule condition. The vocabulary is closed; the
// compiler rejects anything outside this set.
type ConditionType string

const (
	ConditionSatisfied             ConditionType = "satisfied"
	ConditionObjectiveStatusKnown  ConditionType = "objective_status_known"
	ConditionObjectiveMeasureKnown ConditionType = "objective_measure_known"
	ConditionMeasureGreaterThan    ConditionType = "objective_measure_greater_than"
	ConditionMeasureLessThan       ConditionType = "objective_measure_less_than"
	ConditionCompleted             ConditionType = "completed"
	ConditionProgressKnown         ConditionType = "activity_progress_known"
	ConditionAttempted             ConditionType = "attempted"
	ConditionAttemptLimitExceeded  ConditionType = "attempt_limit_exceeded"
	ConditionDurationLimitExceeded ConditionType = "duration_limit_exceeded"
	ConditionAlways                ConditionType = "always"
)

// ValidConditionTypes defines the closed condition vocabulary.
var ValidConditionTypes = map[ConditionType]bool{
	ConditionSatisfied:             true,
	ConditionObjectiveStatusKnown:  true,
	ConditionObjectiveMeasureKnown: true,
	ConditionMeasureGreaterThan:    true,
	ConditionMeasureLessThan:       true,
	ConditionCompleted:             true,
	ConditionProgressKnown:         true,
	ConditionAttempted:             true,
	ConditionAttemptLimitExceeded:  true,
	ConditionDurationLimitExceeded: true,
	ConditionAlways:                true,
}

// RuleCondition is one condition within a sequencing rule. ReferencedObjective
// is empty for "the activity's primary objective". Threshold applies to the
// measure comparison conditions only. Negate inverts the truth value; an
// unknown underlying value stays unknown and the condition evaluates false
// either way.
type RuleCondition struct {
	Type                ConditionType `json:"type" yaml:"type"`
	Negate              bool          `json:"negate,omitempty" yaml:"negate,omitempty"`
	ReferencedObjective string        `json:"referenced_objective,omitempty" yaml:"referenced_objective,omitempty"`
	Threshold           float64       `json:"threshold,omitempty" yaml:"threshold,omitempty"`
}

// RuleAction is the action a matched rule produces. Validity depends on the
// rule set kind; see ValidActionsFor.
type RuleAction string

const (
	// Pre-condition actions.
	ActionSkip                 RuleAction = "skip"
	ActionDisabled             RuleAction = "disabled"
	ActionHiddenFromChoice     RuleAction = "hidden_from_choice"
	ActionStopForwardTraversal RuleAction = "stop_forward_traversal"

	// Post-condition actions.
	ActionExitParent RuleAction = "exit_parent"
	ActionExitAll    RuleAction = "exit_all"
	ActionRetry      RuleAction = "retry"
	ActionRetryAll   RuleAction = "retry_all"
	ActionContinue   RuleAction = "continue"
	ActionPrevious   RuleAction = "previous"

	// Exit-condition actions.
	ActionExit RuleAction = "exit"
)

var validPreActions = map[RuleAction]bool{
	ActionSkip:                 true,
	ActionDisabled:             true,
	ActionHiddenFromChoice:     true,
	ActionStopForwardTraversal: true,
}

var validPostActions = map[RuleAction]bool{
	ActionExitParent: true,
	ActionExitAll:    true,
	ActionRetry:      true,
	ActionRetryAll:   true,
	ActionContinue:   true,
	ActionPrevious:   true,
}

var validExitActions = map[RuleAction]bool{
	ActionExit: true,
}

// ValidActionsFor returns the closed action vocabulary for a rule set kind.
// Returns nil for an unknown kind.
func ValidActionsFor(kind RuleSetKind) map[RuleAction]bool {
	switch kind {
	case RuleSetPre:
		return validPreActions
	case RuleSetPost:
		return validPostActions
	case RuleSetExit:
		return validExitActions
	default:
		return nil
	}
}

// SequencingRule pairs an ordered condition list with the action taken when
// the combination evaluates true. Rules within a set fire first-match-wins in
// declared order.
type SequencingRule struct {
	Combination ConditionCombination `json:"combination" yaml:"combination"`
	Conditions  []RuleCondition      `json:"conditions" yaml:"conditions"`
	Action      RuleAction           `json:"action" yaml:"action"`
}

// RollupChildSet selects which children a rollup rule quantifies over.
type RollupChildSet string

const (
	ChildSetAll            RollupChildSet = "all"
	ChildSetAny            RollupChildSet = "any"
	ChildSetNone           RollupChildSet = "none"
	ChildSetAtLeastCount   RollupChildSet = "at_least_count"
	ChildSetAtLeastPercent RollupChildSet = "at_least_percent"
)

// ValidChildSets defines allowed rollup child sets.
var ValidChildSets = map[RollupChildSet]bool{
	ChildSetAll:            true,
	ChildSetAny:            true,
	ChildSetNone:           true,
	ChildSetAtLeastCount:   true,
	ChildSetAtLeastPercent: true,
}

// RollupAction is the status written to the parent when a rollup rule fires.
type RollupAction string

const (
	RollupSatisfied    RollupAction = "satisfied"
	RollupNotSatisfied RollupAction = "not_satisfied"
	RollupCompleted    RollupAction = "completed"
	RollupIncomplete   RollupAction = "incomplete"
)

// ValidRollupActions defines allowed rollup actions.
var ValidRollupActions = map[RollupAction]bool{
	RollupSatisfied:    true,
	RollupNotSatisfied: true,
	RollupCompleted:    true,
	RollupIncomplete:   true,
}

// RollupRule is a custom rollup rule on a cluster: the rule fires when the
// quantified child set evaluates its conditions true, producing Action on the
// parent. Conditions reuse the sequencing condition vocabulary evaluated
// against each child.
type RollupRule struct {
	ChildSet       RollupChildSet       `json:"child_set" yaml:"child_set"`
	MinimumCount   int                  `json:"minimum_count,omitempty" yaml:"minimum_count,omitempty"`
	MinimumPercent float64              `json:"minimum_percent,omitempty" yaml:"minimum_percent,omitempty"`
	Combination    ConditionCombination `json:"combination" yaml:"combination"`
	Conditions     []RuleCondition      `json:"conditions" yaml:"conditions"`
	Action         RollupAction         `json:"action" yaml:"action"`
}

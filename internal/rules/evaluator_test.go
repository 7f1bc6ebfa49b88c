package rules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/scormseq/internal/model"
	"github.com/roach88/scormseq/internal/tree"
)

// buildActivity wraps a leaf configuration in a minimal tree and returns the
// leaf, so conditions evaluate against real tracking state.
func buildActivity(t *testing.T, cfg model.ActivityConfig) *tree.Activity {
	t.Helper()
	cfg.ControlModes = model.DefaultControlModes()
	cfg.Delivery = model.DefaultDeliveryControls()
	cfg.RollupControls = model.DefaultRollupControls()
	tr, err := tree.Build(&cfg)
	require.NoError(t, err)
	return tr.Root()
}

func cond(typ model.ConditionType) model.RuleCondition {
	return model.RuleCondition{Type: typ}
}

func TestConditionTruthTable(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*model.ActivityTracking)
		cond  model.RuleCondition
		want  bool
	}{
		{
			name: "satisfied true",
			setup: func(tr *model.ActivityTracking) {
				tr.Objective = model.ObjectiveTracking{SatisfiedStatus: model.Satisfied}
			},
			cond: cond(model.ConditionSatisfied),
			want: true,
		},
		{
			name: "satisfied false on not_satisfied",
			setup: func(tr *model.ActivityTracking) {
				tr.Objective = model.ObjectiveTracking{SatisfiedStatus: model.NotSatisfied}
			},
			cond: cond(model.ConditionSatisfied),
			want: false,
		},
		{
			name:  "satisfied unknown never fires",
			setup: func(*model.ActivityTracking) {},
			cond:  cond(model.ConditionSatisfied),
			want:  false,
		},
		{
			name:  "negated satisfied on unknown stays unknown",
			setup: func(*model.ActivityTracking) {},
			cond:  model.RuleCondition{Type: model.ConditionSatisfied, Negate: true},
			want:  false,
		},
		{
			name: "negated satisfied on known false fires",
			setup: func(tr *model.ActivityTracking) {
				tr.Objective = model.ObjectiveTracking{SatisfiedStatus: model.NotSatisfied}
			},
			cond: model.RuleCondition{Type: model.ConditionSatisfied, Negate: true},
			want: true,
		},
		{
			name:  "objective status known is binary",
			setup: func(*model.ActivityTracking) {},
			cond:  cond(model.ConditionObjectiveStatusKnown),
			want:  false,
		},
		{
			name: "negated status known fires while unknown",
			setup: func(tr *model.ActivityTracking) {
				tr.Objective = model.ObjectiveTracking{SatisfiedStatus: model.SatisfiedUnknown}
			},
			cond: model.RuleCondition{Type: model.ConditionObjectiveStatusKnown, Negate: true},
			want: true,
		},
		{
			name: "measure greater than",
			setup: func(tr *model.ActivityTracking) {
				tr.Objective = model.ObjectiveTracking{Measure: 0.8, MeasureKnown: true}
			},
			cond: model.RuleCondition{Type: model.ConditionMeasureGreaterThan, Threshold: 0.7},
			want: true,
		},
		{
			name: "measure greater than is strict",
			setup: func(tr *model.ActivityTracking) {
				tr.Objective = model.ObjectiveTracking{Measure: 0.7, MeasureKnown: true}
			},
			cond: model.RuleCondition{Type: model.ConditionMeasureGreaterThan, Threshold: 0.7},
			want: false,
		},
		{
			name:  "unknown measure never compares",
			setup: func(*model.ActivityTracking) {},
			cond:  model.RuleCondition{Type: model.ConditionMeasureLessThan, Threshold: 0.5},
			want:  false,
		},
		{
			name: "measure less than",
			setup: func(tr *model.ActivityTracking) {
				tr.Objective = model.ObjectiveTracking{Measure: 0.2, MeasureKnown: true}
			},
			cond: model.RuleCondition{Type: model.ConditionMeasureLessThan, Threshold: 0.5},
			want: true,
		},
		{
			name: "completed",
			setup: func(tr *model.ActivityTracking) {
				tr.Completion = model.CompletionCompleted
			},
			cond: cond(model.ConditionCompleted),
			want: true,
		},
		{
			name:  "completed unknown",
			setup: func(*model.ActivityTracking) {},
			cond:  cond(model.ConditionCompleted),
			want:  false,
		},
		{
			name: "progress known",
			setup: func(tr *model.ActivityTracking) {
				tr.Completion = model.CompletionIncomplete
			},
			cond: cond(model.ConditionProgressKnown),
			want: true,
		},
		{
			name: "attempted",
			setup: func(tr *model.ActivityTracking) {
				tr.AttemptCount = 1
			},
			cond: cond(model.ConditionAttempted),
			want: true,
		},
		{
			name:  "not attempted",
			setup: func(*model.ActivityTracking) {},
			cond:  cond(model.ConditionAttempted),
			want:  false,
		},
		{
			name: "attempt limit exceeded flag",
			setup: func(tr *model.ActivityTracking) {
				tr.AttemptLimitExceeded = true
			},
			cond: cond(model.ConditionAttemptLimitExceeded),
			want: true,
		},
		{
			name: "duration limit exceeded flag",
			setup: func(tr *model.ActivityTracking) {
				tr.DurationLimitExceeded = true
			},
			cond: cond(model.ConditionDurationLimitExceeded),
			want: true,
		},
		{
			name:  "always",
			setup: func(*model.ActivityTracking) {},
			cond:  cond(model.ConditionAlways),
			want:  true,
		},
		{
			name:  "negated always",
			setup: func(*model.ActivityTracking) {},
			cond:  model.RuleCondition{Type: model.ConditionAlways, Negate: true},
			want:  false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a := buildActivity(t, model.ActivityConfig{ID: "leaf"})
			tc.setup(a.Tracking)
			got := ConditionsMet(model.CombinationAll, []model.RuleCondition{tc.cond}, a, nil)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestEmptyConditionListNeverMatches(t *testing.T) {
	a := buildActivity(t, model.ActivityConfig{ID: "leaf"})
	assert.False(t, ConditionsMet(model.CombinationAll, nil, a, nil))
	assert.False(t, ConditionsMet(model.CombinationAny, nil, a, nil))
}

func TestCombinationAll(t *testing.T) {
	a := buildActivity(t, model.ActivityConfig{ID: "leaf"})
	a.Tracking.Completion = model.CompletionCompleted
	a.Tracking.Objective = model.ObjectiveTracking{SatisfiedStatus: model.Satisfied}

	conds := []model.RuleCondition{cond(model.ConditionCompleted), cond(model.ConditionSatisfied)}
	assert.True(t, ConditionsMet(model.CombinationAll, conds, a, nil))

	// One known-false member sinks the conjunction.
	a.Tracking.Completion = model.CompletionIncomplete
	assert.False(t, ConditionsMet(model.CombinationAll, conds, a, nil))

	// One unknown member makes the conjunction unknown, never true.
	a.Tracking.Completion = model.CompletionUnknown
	assert.False(t, ConditionsMet(model.CombinationAll, conds, a, nil))
}

func TestCombinationAny(t *testing.T) {
	a := buildActivity(t, model.ActivityConfig{ID: "leaf"})
	a.Tracking.Completion = model.CompletionCompleted

	conds := []model.RuleCondition{cond(model.ConditionSatisfied), cond(model.ConditionCompleted)}
	// Satisfied is unknown, completed is true: any fires.
	assert.True(t, ConditionsMet(model.CombinationAny, conds, a, nil))

	a.Tracking.Completion = model.CompletionIncomplete
	// Unknown or false, no true member: does not fire.
	assert.False(t, ConditionsMet(model.CombinationAny, conds, a, nil))
}

func TestEvaluateFirstMatchWins(t *testing.T) {
	cfg := model.ActivityConfig{
		ID: "leaf",
		PreRules: []model.SequencingRule{
			{
				Conditions: []model.RuleCondition{cond(model.ConditionCompleted)},
				Action:     model.ActionSkip,
			},
			{
				Conditions: []model.RuleCondition{cond(model.ConditionAlways)},
				Action:     model.ActionDisabled,
			},
		},
	}
	a := buildActivity(t, cfg)

	// First rule unknown, second matches.
	action, matched := Evaluate(model.RuleSetPre, a, nil)
	require.True(t, matched)
	assert.Equal(t, model.ActionDisabled, action)

	// First rule now matches; the second is not consulted.
	a.Tracking.Completion = model.CompletionCompleted
	action, matched = Evaluate(model.RuleSetPre, a, nil)
	require.True(t, matched)
	assert.Equal(t, model.ActionSkip, action)
}

func TestEvaluateNoMatchingRule(t *testing.T) {
	a := buildActivity(t, model.ActivityConfig{ID: "leaf"})
	_, matched := Evaluate(model.RuleSetPre, a, nil)
	assert.False(t, matched)
	_, matched = Evaluate(model.RuleSetPost, a, nil)
	assert.False(t, matched)
}

func TestEvaluateSelectsRuleSetByKind(t *testing.T) {
	cfg := model.ActivityConfig{
		ID: "leaf",
		PostRules: []model.SequencingRule{{
			Conditions: []model.RuleCondition{cond(model.ConditionAlways)},
			Action:     model.ActionContinue,
		}},
		ExitRules: []model.SequencingRule{{
			Conditions: []model.RuleCondition{cond(model.ConditionAlways)},
			Action:     model.ActionExit,
		}},
	}
	a := buildActivity(t, cfg)

	action, matched := Evaluate(model.RuleSetPost, a, nil)
	require.True(t, matched)
	assert.Equal(t, model.ActionContinue, action)

	action, matched = Evaluate(model.RuleSetExit, a, nil)
	require.True(t, matched)
	assert.Equal(t, model.ActionExit, action)

	_, matched = Evaluate(model.RuleSetPre, a, nil)
	assert.False(t, matched)
}

func TestCustomResolverOverridesLocalState(t *testing.T) {
	a := buildActivity(t, model.ActivityConfig{ID: "leaf"})

	resolver := func(*tree.Activity, string) model.ObjectiveTracking {
		return model.ObjectiveTracking{SatisfiedStatus: model.Satisfied}
	}
	assert.True(t, ConditionsMet(model.CombinationAll,
		[]model.RuleCondition{cond(model.ConditionSatisfied)}, a, resolver))
	assert.False(t, ConditionsMet(model.CombinationAll,
		[]model.RuleCondition{cond(model.ConditionSatisfied)}, a, LocalResolver))
}

func TestCheckLimits(t *testing.T) {
	tr := model.NewActivityTracking()

	s := CheckLimits(model.LimitConditions{}, tr)
	assert.False(t, s.Any())

	// Attempt limit is inclusive: count == limit is exceeded.
	tr.AttemptCount = 2
	s = CheckLimits(model.LimitConditions{AttemptLimit: 3}, tr)
	assert.False(t, s.AttemptLimitExceeded)
	tr.AttemptCount = 3
	s = CheckLimits(model.LimitConditions{AttemptLimit: 3}, tr)
	assert.True(t, s.AttemptLimitExceeded)
	assert.True(t, s.Any())

	tr = model.NewActivityTracking()
	tr.AttemptAbsoluteDuration = 30 * time.Minute
	s = CheckLimits(model.LimitConditions{AbsoluteDurationLimit: 30 * time.Minute}, tr)
	assert.True(t, s.DurationLimitExceeded)

	tr = model.NewActivityTracking()
	tr.AttemptExperiencedDuration = 10 * time.Minute
	s = CheckLimits(model.LimitConditions{ExperiencedDurationLimit: 15 * time.Minute}, tr)
	assert.False(t, s.DurationLimitExceeded)
}

func TestApplyLimitsStoresDerivedFlags(t *testing.T) {
	tr := model.NewActivityTracking()
	tr.AttemptCount = 1

	ApplyLimits(model.LimitConditions{AttemptLimit: 1}, tr)
	assert.True(t, tr.AttemptLimitExceeded)
	assert.False(t, tr.DurationLimitExceeded)

	// Flags are recomputed, not sticky.
	ApplyLimits(model.LimitConditions{AttemptLimit: 5}, tr)
	assert.False(t, tr.AttemptLimitExceeded)
}

package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewActivityTrackingInitialState(t *testing.T) {
	tr := NewActivityTracking()

	assert.Equal(t, CompletionUnknown, tr.Completion)
	assert.Equal(t, SatisfiedUnknown, tr.Objective.SatisfiedStatus)
	assert.False(t, tr.Objective.MeasureKnown)
	assert.Zero(t, tr.AttemptCount)
	assert.False(t, tr.Attempted())
	assert.False(t, tr.ProgressKnown())
}

func TestBeginAttemptResetsPerAttemptState(t *testing.T) {
	tr := NewActivityTracking()
	tr.AttemptCompletionAmount = 0.5
	tr.AttemptAbsoluteDuration = 100
	tr.AttemptExperiencedDuration = 80
	tr.Suspended = true

	tr.BeginAttempt()

	assert.Equal(t, 1, tr.AttemptCount)
	assert.Zero(t, tr.AttemptCompletionAmount)
	assert.Zero(t, tr.AttemptAbsoluteDuration)
	assert.Zero(t, tr.AttemptExperiencedDuration)
	assert.True(t, tr.Active)
	assert.False(t, tr.Suspended)

	tr.BeginAttempt()
	assert.Equal(t, 2, tr.AttemptCount)
}

func TestObjectiveForPrimaryAndSecondary(t *testing.T) {
	tr := NewActivityTracking()
	tr.Objective = ObjectiveTracking{SatisfiedStatus: Satisfied}

	assert.Equal(t, Satisfied, tr.ObjectiveFor("").SatisfiedStatus)
	// Unset secondary objectives read back as unknown.
	assert.Equal(t, SatisfiedUnknown, tr.ObjectiveFor("obj-2").SatisfiedStatus)

	tr.SetObjective("obj-2", ObjectiveTracking{SatisfiedStatus: NotSatisfied, Measure: 0.2, MeasureKnown: true})
	got := tr.ObjectiveFor("obj-2")
	assert.Equal(t, NotSatisfied, got.SatisfiedStatus)
	assert.Equal(t, 0.2, got.Measure)

	tr.SetObjective("", ObjectiveTracking{SatisfiedStatus: NotSatisfied})
	assert.Equal(t, NotSatisfied, tr.Objective.SatisfiedStatus)
}

func TestCloneIsDeep(t *testing.T) {
	tr := NewActivityTracking()
	tr.AttemptCount = 3
	tr.SetObjective("obj-2", ObjectiveTracking{SatisfiedStatus: Satisfied})
	tr.SelectedChildren = []int{1, 2}

	c := tr.Clone()
	require.Equal(t, tr.AttemptCount, c.AttemptCount)
	require.Equal(t, Satisfied, c.ObjectiveFor("obj-2").SatisfiedStatus)

	c.SetObjective("obj-2", ObjectiveTracking{SatisfiedStatus: NotSatisfied})
	c.SelectedChildren[0] = 99
	c.AttemptCount = 0

	assert.Equal(t, Satisfied, tr.ObjectiveFor("obj-2").SatisfiedStatus)
	assert.Equal(t, []int{1, 2}, tr.SelectedChildren)
	assert.Equal(t, 3, tr.AttemptCount)
}

func TestConsiderationRequirementDefaults(t *testing.T) {
	var c RollupConsiderations
	for _, action := range []RollupAction{RollupSatisfied, RollupNotSatisfied, RollupCompleted, RollupIncomplete} {
		assert.Equal(t, ConsiderAlways, c.Requirement(action))
	}

	c = RollupConsiderations{
		RequiredForCompleted: ConsiderIfAttempted,
		RequiredForSatisfied: ConsiderIfNotSuspended,
	}
	assert.Equal(t, ConsiderIfAttempted, c.Requirement(RollupCompleted))
	assert.Equal(t, ConsiderIfNotSuspended, c.Requirement(RollupSatisfied))
	assert.Equal(t, ConsiderAlways, c.Requirement(RollupIncomplete))
}

func TestValidActionsPerRuleSet(t *testing.T) {
	pre := ValidActionsFor(RuleSetPre)
	assert.True(t, pre[ActionSkip])
	assert.True(t, pre[ActionStopForwardTraversal])
	assert.False(t, pre[ActionRetry])
	assert.False(t, pre[ActionExit])

	post := ValidActionsFor(RuleSetPost)
	assert.True(t, post[ActionContinue])
	assert.True(t, post[ActionExitParent])
	assert.False(t, post[ActionSkip])

	exit := ValidActionsFor(RuleSetExit)
	assert.True(t, exit[ActionExit])
	assert.False(t, exit[ActionContinue])

	assert.Nil(t, ValidActionsFor("bogus"))
}

func TestLimitConditionPredicates(t *testing.T) {
	var l LimitConditions
	assert.False(t, l.HasAttemptLimit())
	assert.False(t, l.HasDurationLimit())

	l.AttemptLimit = 2
	assert.True(t, l.HasAttemptLimit())

	l = LimitConditions{ExperiencedDurationLimit: 1}
	assert.True(t, l.HasDurationLimit())
}

package rollup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/scormseq/internal/model"
	"github.com/roach88/scormseq/internal/tree"
)

func leaf(id string) model.ActivityConfig {
	return model.ActivityConfig{
		ID:             id,
		ControlModes:   model.DefaultControlModes(),
		RollupControls: model.DefaultRollupControls(),
		Delivery:       model.DefaultDeliveryControls(),
	}
}

func cluster(id string, children ...model.ActivityConfig) model.ActivityConfig {
	c := leaf(id)
	c.ControlModes.Flow = true
	c.Children = children
	return c
}

func buildTree(t *testing.T, cfg model.ActivityConfig) *tree.Tree {
	t.Helper()
	tr, err := tree.Build(&cfg)
	require.NoError(t, err)
	return tr
}

func mustFind(t *testing.T, tr *tree.Tree, id string) *tree.Activity {
	t.Helper()
	a, ok := tr.Find(id)
	require.True(t, ok, "activity %q", id)
	return a
}

func setCompleted(a *tree.Activity) {
	a.Tracking.AttemptCount = 1
	a.Tracking.Completion = model.CompletionCompleted
}

func setSatisfied(a *tree.Activity, measure float64) {
	a.Tracking.AttemptCount = 1
	a.Tracking.Objective = model.ObjectiveTracking{
		SatisfiedStatus: model.Satisfied,
		Measure:         measure,
		MeasureKnown:    true,
	}
}

func TestDefaultCompletionAllChildren(t *testing.T) {
	tr := buildTree(t, cluster("course", leaf("a"), leaf("b")))
	e := New(tr, NewGlobalMap())
	a, b := mustFind(t, tr, "a"), mustFind(t, tr, "b")

	setCompleted(a)
	e.RollupFrom(a)
	// One child still unknown: the cluster stays unknown.
	assert.Equal(t, model.CompletionUnknown, tr.Root().Tracking.Completion)

	setCompleted(b)
	e.RollupFrom(b)
	assert.Equal(t, model.CompletionCompleted, tr.Root().Tracking.Completion)
}

func TestDefaultCompletionAnyIncomplete(t *testing.T) {
	tr := buildTree(t, cluster("course", leaf("a"), leaf("b")))
	e := New(tr, NewGlobalMap())
	a, b := mustFind(t, tr, "a"), mustFind(t, tr, "b")

	setCompleted(a)
	b.Tracking.Completion = model.CompletionIncomplete
	e.RollupFrom(b)
	assert.Equal(t, model.CompletionIncomplete, tr.Root().Tracking.Completion)
}

func TestDefaultSatisfactionAllChildren(t *testing.T) {
	tr := buildTree(t, cluster("course", leaf("a"), leaf("b")))
	e := New(tr, NewGlobalMap())
	a, b := mustFind(t, tr, "a"), mustFind(t, tr, "b")

	setSatisfied(a, 1.0)
	e.RollupFrom(a)
	assert.Equal(t, model.SatisfiedUnknown, tr.Root().Tracking.Objective.SatisfiedStatus)

	setSatisfied(b, 1.0)
	e.RollupFrom(b)
	assert.Equal(t, model.Satisfied, tr.Root().Tracking.Objective.SatisfiedStatus)
}

func TestDefaultSatisfactionAnyNotSatisfied(t *testing.T) {
	tr := buildTree(t, cluster("course", leaf("a"), leaf("b")))
	e := New(tr, NewGlobalMap())
	a, b := mustFind(t, tr, "a"), mustFind(t, tr, "b")

	setSatisfied(a, 1.0)
	b.Tracking.Objective = model.ObjectiveTracking{SatisfiedStatus: model.NotSatisfied}
	e.RollupFrom(b)
	assert.Equal(t, model.NotSatisfied, tr.Root().Tracking.Objective.SatisfiedStatus)
}

func TestMeasureRollupIsWeighted(t *testing.T) {
	a := leaf("a")
	a.RollupControls.ObjectiveMeasureWeight = 1.0
	b := leaf("b")
	b.RollupControls.ObjectiveMeasureWeight = 3.0
	tr := buildTree(t, cluster("course", a, b))
	e := New(tr, NewGlobalMap())

	setSatisfied(mustFind(t, tr, "a"), 1.0)
	setSatisfied(mustFind(t, tr, "b"), 0.5)
	e.RollupFrom(mustFind(t, tr, "b"))

	obj := tr.Root().Tracking.Objective
	require.True(t, obj.MeasureKnown)
	assert.InDelta(t, 0.625, obj.Measure, 1e-9)
}

func TestMeasureRollupIgnoresUnknownAndZeroWeight(t *testing.T) {
	a := leaf("a")
	b := leaf("b")
	b.RollupControls.ObjectiveMeasureWeight = 0
	tr := buildTree(t, cluster("course", a, b))
	e := New(tr, NewGlobalMap())

	setSatisfied(mustFind(t, tr, "a"), 0.8)
	// b never reports a measure and has zero weight anyway.
	mustFind(t, tr, "b").Tracking.AttemptCount = 1
	e.RollupFrom(mustFind(t, tr, "a"))

	obj := tr.Root().Tracking.Objective
	require.True(t, obj.MeasureKnown)
	assert.InDelta(t, 0.8, obj.Measure, 1e-9)
}

func TestSatisfactionByMeasureThreshold(t *testing.T) {
	cfg := cluster("course", leaf("a"))
	cfg.PrimaryObjective = &model.Objective{
		SatisfiedByMeasure:   true,
		MinNormalizedMeasure: 0.7,
	}
	tr := buildTree(t, cfg)
	e := New(tr, NewGlobalMap())
	a := mustFind(t, tr, "a")

	setSatisfied(a, 0.8)
	e.RollupFrom(a)
	assert.Equal(t, model.Satisfied, tr.Root().Tracking.Objective.SatisfiedStatus)

	a.Tracking.Objective = model.ObjectiveTracking{
		SatisfiedStatus: model.Satisfied, Measure: 0.5, MeasureKnown: true,
	}
	e.RollupFrom(a)
	assert.Equal(t, model.NotSatisfied, tr.Root().Tracking.Objective.SatisfiedStatus)
}

func TestCustomRollupRuleFires(t *testing.T) {
	cfg := cluster("course", leaf("a"), leaf("b"), leaf("c"))
	cfg.RollupRules = []model.RollupRule{{
		ChildSet:     model.ChildSetAtLeastCount,
		MinimumCount: 2,
		Conditions:   []model.RuleCondition{{Type: model.ConditionCompleted}},
		Action:       model.RollupCompleted,
	}}
	tr := buildTree(t, cfg)
	e := New(tr, NewGlobalMap())

	setCompleted(mustFind(t, tr, "a"))
	e.RollupFrom(mustFind(t, tr, "a"))
	assert.Equal(t, model.CompletionUnknown, tr.Root().Tracking.Completion)

	setCompleted(mustFind(t, tr, "b"))
	e.RollupFrom(mustFind(t, tr, "b"))
	assert.Equal(t, model.CompletionCompleted, tr.Root().Tracking.Completion)
}

func TestCustomRulesSuppressDefaultAlgorithm(t *testing.T) {
	cfg := cluster("course", leaf("a"))
	cfg.RollupRules = []model.RollupRule{{
		ChildSet:       model.ChildSetAtLeastPercent,
		MinimumPercent: 2.0, // unattainable
		Conditions:     []model.RuleCondition{{Type: model.ConditionCompleted}},
		Action:         model.RollupCompleted,
	}}
	tr := buildTree(t, cfg)
	e := New(tr, NewGlobalMap())

	setCompleted(mustFind(t, tr, "a"))
	e.RollupFrom(mustFind(t, tr, "a"))
	// All children completed, but the declared rule replaces the default
	// algorithm and did not fire.
	assert.Equal(t, model.CompletionUnknown, tr.Root().Tracking.Completion)
}

func TestRollupRuleChildSetQuantifiers(t *testing.T) {
	completedCond := []model.RuleCondition{{Type: model.ConditionCompleted}}

	tests := []struct {
		name string
		rule model.RollupRule
		want model.CompletionStatus
	}{
		{
			name: "any fires on one match",
			rule: model.RollupRule{ChildSet: model.ChildSetAny, Conditions: completedCond, Action: model.RollupCompleted},
			want: model.CompletionCompleted,
		},
		{
			name: "all does not fire on partial match",
			rule: model.RollupRule{ChildSet: model.ChildSetAll, Conditions: completedCond, Action: model.RollupCompleted},
			want: model.CompletionUnknown,
		},
		{
			name: "none does not fire when a child matches",
			rule: model.RollupRule{ChildSet: model.ChildSetNone, Conditions: completedCond, Action: model.RollupIncomplete},
			want: model.CompletionUnknown,
		},
		{
			name: "at_least_percent half",
			rule: model.RollupRule{ChildSet: model.ChildSetAtLeastPercent, MinimumPercent: 0.5, Conditions: completedCond, Action: model.RollupCompleted},
			want: model.CompletionCompleted,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := cluster("course", leaf("a"), leaf("b"))
			cfg.RollupRules = []model.RollupRule{tc.rule}
			tr := buildTree(t, cfg)
			e := New(tr, NewGlobalMap())

			// Exactly one of two children completed.
			setCompleted(mustFind(t, tr, "a"))
			mustFind(t, tr, "b").Tracking.AttemptCount = 1
			e.RollupFrom(mustFind(t, tr, "a"))
			assert.Equal(t, tc.want, tr.Root().Tracking.Completion)
		})
	}
}

func TestNonContributingChildExcluded(t *testing.T) {
	b := leaf("b")
	b.RollupControls.RollupProgressCompletion = false
	tr := buildTree(t, cluster("course", leaf("a"), b))
	e := New(tr, NewGlobalMap())

	setCompleted(mustFind(t, tr, "a"))
	e.RollupFrom(mustFind(t, tr, "a"))
	// b never completes but does not contribute; a alone decides.
	assert.Equal(t, model.CompletionCompleted, tr.Root().Tracking.Completion)
}

func TestUntrackedChildExcluded(t *testing.T) {
	b := leaf("b")
	b.Delivery.Tracked = false
	tr := buildTree(t, cluster("course", leaf("a"), b))
	e := New(tr, NewGlobalMap())

	setCompleted(mustFind(t, tr, "a"))
	setSatisfied(mustFind(t, tr, "a"), 1.0)
	e.RollupFrom(mustFind(t, tr, "a"))
	assert.Equal(t, model.CompletionCompleted, tr.Root().Tracking.Completion)
	assert.Equal(t, model.Satisfied, tr.Root().Tracking.Objective.SatisfiedStatus)
}

func TestIfAttemptedConsideration(t *testing.T) {
	b := leaf("b")
	b.Considerations = model.RollupConsiderations{RequiredForCompleted: model.ConsiderIfAttempted}
	tr := buildTree(t, cluster("course", leaf("a"), b))
	e := New(tr, NewGlobalMap())

	setCompleted(mustFind(t, tr, "a"))
	e.RollupFrom(mustFind(t, tr, "a"))
	// b was never attempted, so completion ignores it.
	assert.Equal(t, model.CompletionCompleted, tr.Root().Tracking.Completion)
}

func TestRollupPropagatesThroughAncestors(t *testing.T) {
	tr := buildTree(t, cluster("course",
		cluster("module-1", leaf("lesson-1")),
		cluster("module-2", leaf("lesson-2")),
	))
	e := New(tr, NewGlobalMap())

	setCompleted(mustFind(t, tr, "lesson-1"))
	e.RollupFrom(mustFind(t, tr, "lesson-1"))
	assert.Equal(t, model.CompletionCompleted, mustFind(t, tr, "module-1").Tracking.Completion)
	assert.Equal(t, model.CompletionUnknown, tr.Root().Tracking.Completion)

	setCompleted(mustFind(t, tr, "lesson-2"))
	e.RollupFrom(mustFind(t, tr, "lesson-2"))
	assert.Equal(t, model.CompletionCompleted, mustFind(t, tr, "module-2").Tracking.Completion)
	assert.Equal(t, model.CompletionCompleted, tr.Root().Tracking.Completion)
}

func TestRollupReRunOnUnchangedStateIsNoOp(t *testing.T) {
	tr := buildTree(t, cluster("course",
		cluster("module-1", leaf("lesson-1"), leaf("lesson-2")),
	))
	globals := NewGlobalMap()
	e := New(tr, globals)

	setCompleted(mustFind(t, tr, "lesson-1"))
	setSatisfied(mustFind(t, tr, "lesson-1"), 0.9)
	e.RollupFrom(mustFind(t, tr, "lesson-1"))

	before := tr.SnapshotTracking()
	beforeGlobals := globals.Clone()

	e.RollupFrom(mustFind(t, tr, "lesson-1"))

	after := tr.SnapshotTracking()
	for id, want := range before {
		assert.Equal(t, want, after[id], "activity %s", id)
	}
	assert.Equal(t, beforeGlobals, globals)
}

func TestContentSetStatusNotOverwritten(t *testing.T) {
	cfg := cluster("course", leaf("a"))
	cfg.Delivery.CompletionSetByContent = true
	cfg.Delivery.ObjectiveSetByContent = true
	tr := buildTree(t, cfg)
	e := New(tr, NewGlobalMap())

	tr.Root().Tracking.Completion = model.CompletionIncomplete
	setCompleted(mustFind(t, tr, "a"))
	setSatisfied(mustFind(t, tr, "a"), 1.0)
	e.RollupFrom(mustFind(t, tr, "a"))

	assert.Equal(t, model.CompletionIncomplete, tr.Root().Tracking.Completion)
	assert.Equal(t, model.SatisfiedUnknown, tr.Root().Tracking.Objective.SatisfiedStatus)
}

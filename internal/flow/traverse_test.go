package flow

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/scormseq/internal/model"
	"github.com/roach88/scormseq/internal/testutil"
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

func preRule(action model.RuleAction) model.SequencingRule {
	return model.SequencingRule{
		Conditions: []model.RuleCondition{{Type: model.ConditionAlways}},
		Action:     action,
	}
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

func TestStartDescendsToFirstLeaf(t *testing.T) {
	tr := buildTree(t, cluster("course",
		cluster("module-1", leaf("lesson-1"), leaf("lesson-2")),
		leaf("lesson-3"),
	))
	trav := New(tr, nil, testutil.IdentitySource{})

	a, reason, ok := trav.Start()
	require.True(t, ok, "reason: %s", reason)
	assert.Equal(t, "lesson-1", a.ID())
}

func TestStartOnLeafRootDeliversRoot(t *testing.T) {
	tr := buildTree(t, leaf("solo"))
	trav := New(tr, nil, testutil.IdentitySource{})

	a, _, ok := trav.Start()
	require.True(t, ok)
	assert.Equal(t, "solo", a.ID())
}

func TestStartFailsWhenFlowDisabled(t *testing.T) {
	cfg := cluster("course", leaf("lesson-1"))
	cfg.ControlModes.Flow = false
	tr := buildTree(t, cfg)
	trav := New(tr, nil, testutil.IdentitySource{})

	_, reason, ok := trav.Start()
	assert.False(t, ok)
	assert.Equal(t, model.ReasonFlowDisabled, reason)
}

func TestFlowForwardAcrossSiblingsAndClusters(t *testing.T) {
	tr := buildTree(t, cluster("course",
		cluster("module-1", leaf("lesson-1"), leaf("lesson-2")),
		cluster("module-2", leaf("lesson-3")),
	))
	trav := New(tr, nil, testutil.IdentitySource{})

	a, _, ok := trav.FlowFrom(mustFind(t, tr, "lesson-1"), Forward)
	require.True(t, ok)
	assert.Equal(t, "lesson-2", a.ID())

	// Crossing a module boundary climbs out and descends into the next.
	a, _, ok = trav.FlowFrom(mustFind(t, tr, "lesson-2"), Forward)
	require.True(t, ok)
	assert.Equal(t, "lesson-3", a.ID())

	_, reason, ok := trav.FlowFrom(mustFind(t, tr, "lesson-3"), Forward)
	assert.False(t, ok)
	assert.Equal(t, model.ReasonNoMoreActivities, reason)
}

func TestFlowBackward(t *testing.T) {
	tr := buildTree(t, cluster("course",
		cluster("module-1", leaf("lesson-1"), leaf("lesson-2")),
		leaf("lesson-3"),
	))
	trav := New(tr, nil, testutil.IdentitySource{})

	// Backward into a cluster lands on its last leaf.
	a, _, ok := trav.FlowFrom(mustFind(t, tr, "lesson-3"), Backward)
	require.True(t, ok)
	assert.Equal(t, "lesson-2", a.ID())

	a, _, ok = trav.FlowFrom(mustFind(t, tr, "lesson-2"), Backward)
	require.True(t, ok)
	assert.Equal(t, "lesson-1", a.ID())

	_, reason, ok := trav.FlowFrom(mustFind(t, tr, "lesson-1"), Backward)
	assert.False(t, ok)
	assert.Equal(t, model.ReasonNoMoreActivities, reason)
}

func TestForwardOnlyBlocksBackwardFlow(t *testing.T) {
	cfg := cluster("course", leaf("lesson-1"), leaf("lesson-2"))
	cfg.ControlModes.ForwardOnly = true
	tr := buildTree(t, cfg)
	trav := New(tr, nil, testutil.IdentitySource{})

	_, reason, ok := trav.FlowFrom(mustFind(t, tr, "lesson-2"), Backward)
	assert.False(t, ok)
	assert.Equal(t, model.ReasonFlowDisabled, reason)

	a, _, ok := trav.FlowFrom(mustFind(t, tr, "lesson-1"), Forward)
	require.True(t, ok)
	assert.Equal(t, "lesson-2", a.ID())
}

func TestFlowExitBlocksClimbingOut(t *testing.T) {
	inner := cluster("module-1", leaf("lesson-1"))
	inner.ControlModes.FlowExit = false
	tr := buildTree(t, cluster("course", inner, leaf("lesson-2")))
	trav := New(tr, nil, testutil.IdentitySource{})

	_, reason, ok := trav.FlowFrom(mustFind(t, tr, "lesson-1"), Forward)
	assert.False(t, ok)
	assert.Equal(t, model.ReasonFlowDisabled, reason)
}

func TestSkippedActivitiesArePassedOver(t *testing.T) {
	skipped := leaf("skipped")
	skipped.PreRules = []model.SequencingRule{preRule(model.ActionSkip)}
	tr := buildTree(t, cluster("course", leaf("lesson-1"), skipped, leaf("lesson-3")))
	trav := New(tr, nil, testutil.IdentitySource{})

	a, _, ok := trav.FlowFrom(mustFind(t, tr, "lesson-1"), Forward)
	require.True(t, ok)
	assert.Equal(t, "lesson-3", a.ID())

	a, _, ok = trav.FlowFrom(mustFind(t, tr, "lesson-3"), Backward)
	require.True(t, ok)
	assert.Equal(t, "lesson-1", a.ID())
}

func TestDisabledActivityExcludedFromFlow(t *testing.T) {
	disabled := leaf("disabled")
	disabled.PreRules = []model.SequencingRule{preRule(model.ActionDisabled)}
	tr := buildTree(t, cluster("course", disabled, leaf("lesson-2")))
	trav := New(tr, nil, testutil.IdentitySource{})

	a, _, ok := trav.Start()
	require.True(t, ok)
	assert.Equal(t, "lesson-2", a.ID())
}

func TestClusterWithoutDeliverableLeafIsPassedOver(t *testing.T) {
	skipped := leaf("skipped")
	skipped.PreRules = []model.SequencingRule{preRule(model.ActionSkip)}
	tr := buildTree(t, cluster("course", cluster("module-1", skipped), leaf("lesson-2")))
	trav := New(tr, nil, testutil.IdentitySource{})

	a, _, ok := trav.Start()
	require.True(t, ok)
	assert.Equal(t, "lesson-2", a.ID())
}

func TestStopForwardTraversal(t *testing.T) {
	gate := leaf("gate")
	gate.PreRules = []model.SequencingRule{preRule(model.ActionStopForwardTraversal)}
	tr := buildTree(t, cluster("course", leaf("lesson-1"), gate, leaf("lesson-3")))
	trav := New(tr, nil, testutil.IdentitySource{})

	_, reason, ok := trav.FlowFrom(mustFind(t, tr, "lesson-1"), Forward)
	assert.False(t, ok)
	assert.Equal(t, model.ReasonStopForward, reason)

	// The barrier only applies to forward traversal.
	a, _, ok := trav.FlowFrom(mustFind(t, tr, "lesson-3"), Backward)
	require.True(t, ok)
	assert.Equal(t, "gate", a.ID())
}

func TestFlowIntoResolvesClusterToLeaf(t *testing.T) {
	tr := buildTree(t, cluster("course", cluster("module-1", leaf("lesson-1"))))
	trav := New(tr, nil, testutil.IdentitySource{})

	a, _, ok := trav.FlowInto(mustFind(t, tr, "module-1"))
	require.True(t, ok)
	assert.Equal(t, "lesson-1", a.ID())

	a, _, ok = trav.FlowInto(mustFind(t, tr, "lesson-1"))
	require.True(t, ok)
	assert.Equal(t, "lesson-1", a.ID())
}

func TestSelectionSubsetKeepsDeclaredOrder(t *testing.T) {
	cfg := cluster("course", leaf("a"), leaf("b"), leaf("c"))
	cfg.Randomization = model.RandomizationControls{
		SelectionTiming: model.TimingOnce,
		SelectCount:     2,
	}
	tr := buildTree(t, cfg)
	trav := New(tr, nil, testutil.IdentitySource{})

	// Identity permutation selects the first two children in order.
	a, _, ok := trav.Start()
	require.True(t, ok)
	assert.Equal(t, "a", a.ID())

	a, _, ok = trav.FlowFrom(mustFind(t, tr, "a"), Forward)
	require.True(t, ok)
	assert.Equal(t, "b", a.ID())

	_, reason, ok := trav.FlowFrom(mustFind(t, tr, "b"), Forward)
	assert.False(t, ok)
	assert.Equal(t, model.ReasonNoMoreActivities, reason)

	// The choice is cached on the cluster's tracking state.
	root := tr.Root()
	assert.True(t, root.Tracking.SelectionDone)
	assert.Equal(t, []int{1, 2}, root.Tracking.SelectedChildren)
}

func TestReorderAppliesPermutation(t *testing.T) {
	cfg := cluster("course", leaf("a"), leaf("b"), leaf("c"))
	cfg.Randomization = model.RandomizationControls{
		RandomizationTiming: model.TimingOnce,
		ReorderChildren:     true,
	}
	tr := buildTree(t, cfg)
	trav := New(tr, nil, testutil.ReverseSource{})

	a, _, ok := trav.Start()
	require.True(t, ok)
	assert.Equal(t, "c", a.ID())

	a, _, ok = trav.FlowFrom(mustFind(t, tr, "c"), Forward)
	require.True(t, ok)
	assert.Equal(t, "b", a.ID())
}

func TestReadOnlyTraversalWritesNoSelectionState(t *testing.T) {
	cfg := cluster("course", leaf("a"), leaf("b"))
	cfg.Randomization = model.RandomizationControls{
		SelectionTiming: model.TimingOnce,
		SelectCount:     1,
	}
	tr := buildTree(t, cfg)
	trav := New(tr, nil, testutil.IdentitySource{})

	a, _, ok := trav.ReadOnly().Start()
	require.True(t, ok)
	assert.Equal(t, "a", a.ID())
	assert.False(t, tr.Root().Tracking.SelectionDone)

	// The writing traverser then makes the identical choice.
	a, _, ok = trav.Start()
	require.True(t, ok)
	assert.Equal(t, "a", a.ID())
	assert.True(t, tr.Root().Tracking.SelectionDone)
}

func TestSeededSourceIsDeterministic(t *testing.T) {
	src := SeededSource{Seed: 42}

	p1 := src.Perm("course/0/select", 6)
	p2 := src.Perm("course/0/select", 6)
	assert.Equal(t, p1, p2)

	// Any output is a valid permutation of [0, n).
	sorted := append([]int(nil), p1...)
	sort.Ints(sorted)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, sorted)
}

func TestResetSelectionHonorsTiming(t *testing.T) {
	cfg := cluster("course", leaf("a"), leaf("b"))
	cfg.Randomization = model.RandomizationControls{SelectionTiming: model.TimingOnEachNewAttempt, SelectCount: 1}
	tr := buildTree(t, cfg)
	root := tr.Root()
	root.Tracking.SelectedChildren = []int{1}
	root.Tracking.SelectionDone = true
	root.Tracking.RandomizationDone = true

	ResetSelection(root)
	assert.False(t, root.Tracking.SelectionDone)
	assert.Nil(t, root.Tracking.SelectedChildren)

	// "once" timing keeps the selection across attempts.
	cfg2 := cluster("course", leaf("a"), leaf("b"))
	cfg2.Randomization = model.RandomizationControls{SelectionTiming: model.TimingOnce, SelectCount: 1}
	tr2 := buildTree(t, cfg2)
	root2 := tr2.Root()
	root2.Tracking.SelectedChildren = []int{1}
	root2.Tracking.SelectionDone = true

	ResetSelection(root2)
	assert.True(t, root2.Tracking.SelectionDone)
	assert.Equal(t, []int{1}, root2.Tracking.SelectedChildren)
}

// Package flow implements the flow and choice traversal subprocesses: the
// tree-walking algorithms that turn Start/Continue/Previous and
// Choice(target) requests into a deliverable leaf activity, honoring control
// modes, pre-condition rules, and selection/randomization controls.
//
// Traversal never mutates tracking state except to cache a cluster's child
// selection, and even that cache is redundant: selection is a deterministic
// function of the session's selection source, so read-only walks recompute it
// identically.
package flow

import (
	"fmt"
	"log/slog"

	"github.com/roach88/scormseq/internal/model"
	"github.com/roach88/scormseq/internal/rules"
	"github.com/roach88/scormseq/internal/tree"
)

// Direction of a flow traversal.
type Direction int

const (
	Forward Direction = iota
	Backward
)

// String returns the direction name for logging.
func (d Direction) String() string {
	if d == Backward {
		return "backward"
	}
	return "forward"
}

// Traverser walks the activity tree for one session. It is not safe for
// concurrent use; the session serializes all calls.
type Traverser struct {
	tree     *tree.Tree
	resolve  rules.ObjectiveResolver
	source   SelectionSource
	readonly bool
}

// New creates a Traverser over the given tree. The resolver supplies
// objective state for pre-condition evaluation (including read-mapped
// globals); the source drives selection randomization.
func New(t *tree.Tree, resolve rules.ObjectiveResolver, source SelectionSource) *Traverser {
	if resolve == nil {
		resolve = rules.LocalResolver
	}
	return &Traverser{tree: t, resolve: resolve, source: source}
}

// ReadOnly returns a copy of the traverser that never writes selection state.
// Used for navigation-validity dry runs.
func (tr *Traverser) ReadOnly() *Traverser {
	cp := *tr
	cp.readonly = true
	return &cp
}

// Start flows forward from the tree root to the first deliverable leaf.
func (tr *Traverser) Start() (*tree.Activity, model.RejectionReason, bool) {
	root := tr.tree.Root()
	if root.IsLeaf() {
		if reason, blocked := tr.excluded(root); blocked {
			return nil, reason, false
		}
		return root, "", true
	}
	return tr.descend(root, Forward)
}

// FlowFrom walks from the current activity in the given direction to the
// next deliverable leaf. The walk never re-enters the current activity's own
// subtree.
func (tr *Traverser) FlowFrom(from *tree.Activity, dir Direction) (*tree.Activity, model.RejectionReason, bool) {
	cand, reason, ok := tr.step(from, dir)
	for ok {
		slog.Debug("flow candidate", "activity", cand.ID(), "direction", dir.String())

		action, matched := rules.Evaluate(model.RuleSetPre, cand, tr.resolve)
		if matched {
			switch action {
			case model.ActionSkip, model.ActionDisabled:
				// Excluded from candidacy, subtree included. Continue the
				// walk in the same direction.
				cand, reason, ok = tr.step(cand, dir)
				continue
			case model.ActionStopForwardTraversal:
				if dir == Forward {
					return nil, model.ReasonStopForward, false
				}
			}
		}

		if cand.IsLeaf() {
			return cand, "", true
		}

		// Flowing into a cluster recurses to its first (or last) eligible
		// leaf. A cluster with no deliverable leaf is passed over.
		leaf, dreason, dok := tr.descend(cand, dir)
		if dok {
			return leaf, "", true
		}
		if dreason != model.ReasonNoMoreActivities && dreason != "" {
			return nil, dreason, false
		}
		cand, reason, ok = tr.step(cand, dir)
	}
	return nil, reason, false
}

// FlowInto resolves an activity to a deliverable leaf: the activity itself
// when it is a leaf, otherwise the first eligible leaf under it.
func (tr *Traverser) FlowInto(a *tree.Activity) (*tree.Activity, model.RejectionReason, bool) {
	if a.IsLeaf() {
		return a, "", true
	}
	return tr.descend(a, Forward)
}

// step moves to the adjacent candidate in document order without entering the
// starting activity's subtree: next/previous sibling, climbing out of
// exhausted clusters. Control modes are enforced at each boundary.
func (tr *Traverser) step(from *tree.Activity, dir Direction) (*tree.Activity, model.RejectionReason, bool) {
	a := from
	for {
		p := tr.tree.ParentOf(a)
		if p == nil {
			return nil, model.ReasonNoMoreActivities, false
		}
		if !p.Config.ControlModes.Flow {
			return nil, model.ReasonFlowDisabled, false
		}
		if dir == Backward && p.Config.ControlModes.ForwardOnly {
			return nil, model.ReasonFlowDisabled, false
		}

		sib := tr.adjacentSibling(p, a, dir)
		if sib != nil {
			return sib, "", true
		}

		// Sibling list exhausted: climb out of p and keep walking. Forward
		// climbs need p to permit flow exit.
		if dir == Forward && !p.Config.ControlModes.FlowExit {
			return nil, model.ReasonFlowDisabled, false
		}
		a = p
	}
}

// adjacentSibling returns the sibling next to a within p's effective child
// order, or nil when a is at the boundary (or deselected).
func (tr *Traverser) adjacentSibling(p, a *tree.Activity, dir Direction) *tree.Activity {
	children := tr.effectiveChildren(p)
	idx := -1
	for i, c := range children {
		if c.Ordinal == a.Ordinal {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	if dir == Forward {
		if idx+1 < len(children) {
			return children[idx+1]
		}
		return nil
	}
	if idx > 0 {
		return children[idx-1]
	}
	return nil
}

// descend flows into a cluster toward its first (forward) or last (backward)
// deliverable leaf. Returns no-more-activities when the cluster has no
// deliverable leaf; harder rejections (flow disabled, stop forward) propagate.
func (tr *Traverser) descend(c *tree.Activity, dir Direction) (*tree.Activity, model.RejectionReason, bool) {
	if !c.Config.ControlModes.Flow {
		return nil, model.ReasonFlowDisabled, false
	}

	children := tr.effectiveChildren(c)
	if dir == Backward {
		reversed := make([]*tree.Activity, len(children))
		for i, ch := range children {
			reversed[len(children)-1-i] = ch
		}
		children = reversed
	}

	for _, child := range children {
		action, matched := rules.Evaluate(model.RuleSetPre, child, tr.resolve)
		if matched {
			switch action {
			case model.ActionSkip, model.ActionDisabled:
				continue
			case model.ActionStopForwardTraversal:
				if dir == Forward {
					return nil, model.ReasonStopForward, false
				}
			}
		}
		if child.IsLeaf() {
			return child, "", true
		}
		leaf, reason, ok := tr.descend(child, dir)
		if ok {
			return leaf, "", true
		}
		if reason != model.ReasonNoMoreActivities && reason != "" {
			return nil, reason, false
		}
	}
	return nil, model.ReasonNoMoreActivities, false
}

// excluded reports whether an activity's own pre-condition rules bar it from
// delivery (skip or disabled).
func (tr *Traverser) excluded(a *tree.Activity) (model.RejectionReason, bool) {
	action, matched := rules.Evaluate(model.RuleSetPre, a, tr.resolve)
	if matched && (action == model.ActionSkip || action == model.ActionDisabled) {
		return model.ReasonNoMoreActivities, true
	}
	return "", false
}

// effectiveChildren returns a cluster's children after selection and
// reordering, in traversal order. The result is cached on the cluster's
// tracking state (unless read-only) and is stable for the remainder of the
// attempt; the deterministic source makes recomputation equivalent.
func (tr *Traverser) effectiveChildren(c *tree.Activity) []*tree.Activity {
	ordinals := c.Tracking.SelectedChildren
	if !c.Tracking.SelectionDone {
		ordinals = tr.computeSelection(c)
		if !tr.readonly {
			c.Tracking.SelectedChildren = ordinals
			c.Tracking.SelectionDone = true
			c.Tracking.RandomizationDone = true
		}
	}

	out := make([]*tree.Activity, len(ordinals))
	for i, ord := range ordinals {
		out[i] = tr.tree.At(ord)
	}
	return out
}

// computeSelection derives a cluster's selected child ordinals from its
// randomization controls. Keyed by activity and attempt count so
// on-each-new-attempt timings reselect after the session resets the cached
// flags.
func (tr *Traverser) computeSelection(c *tree.Activity) []int {
	cfg := c.Config.Randomization
	positions := make([]int, len(c.Children))
	for i := range positions {
		positions[i] = i
	}

	key := fmt.Sprintf("%s/%d", c.ID(), c.Tracking.AttemptCount)

	if cfg.SelectionTiming != "" && cfg.SelectionTiming != model.TimingNever &&
		cfg.SelectCount > 0 && cfg.SelectCount < len(positions) {
		perm := tr.source.Perm(key+"/select", len(positions))
		chosen := make(map[int]bool, cfg.SelectCount)
		for _, p := range perm[:cfg.SelectCount] {
			chosen[p] = true
		}
		// Order-preserving subset unless reordering applies below.
		kept := positions[:0]
		for _, p := range positions {
			if chosen[p] {
				kept = append(kept, p)
			}
		}
		positions = kept
	}

	if cfg.RandomizationTiming != "" && cfg.RandomizationTiming != model.TimingNever && cfg.ReorderChildren {
		perm := tr.source.Perm(key+"/reorder", len(positions))
		reordered := make([]int, len(positions))
		for i, p := range perm {
			reordered[i] = positions[p]
		}
		positions = reordered
	}

	ordinals := make([]int, len(positions))
	for i, pos := range positions {
		ordinals[i] = c.Children[pos]
	}
	return ordinals
}

// ResetSelection clears cached selection state on a cluster whose timing
// re-selects on each new attempt. Called by the session when a new attempt
// begins on the cluster.
func ResetSelection(c *tree.Activity) {
	cfg := c.Config.Randomization
	if cfg.SelectionTiming == model.TimingOnEachNewAttempt || cfg.RandomizationTiming == model.TimingOnEachNewAttempt {
		c.Tracking.SelectedChildren = nil
		c.Tracking.SelectionDone = false
		c.Tracking.RandomizationDone = false
	}
}

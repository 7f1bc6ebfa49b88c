package flow

import (
	"log/slog"

	"github.com/roach88/scormseq/internal/model"
	"github.com/roach88/scormseq/internal/rules"
	"github.com/roach88/scormseq/internal/tree"
)

// Choose validates a choice navigation to target from the current activity
// (nil when the session has no current activity) and resolves the deliverable
// leaf. A cluster target flows forward into its first eligible leaf.
//
// Reachability requires, in order:
//  1. choice=true on every cluster between the root and the target whose
//     children the path passes through,
//  2. hidden-from-choice / disabled not matched by the target's pre-rules,
//  3. choice_exit=true on every activity the move exits,
//  4. the constrained-choice boundary, when an activity at or above the
//     current one sets constrain_choice.
func (tr *Traverser) Choose(current, target *tree.Activity) (*tree.Activity, model.RejectionReason, bool) {
	// (1) Every ancestor must permit choosing among its children.
	for anc := range tr.tree.Ancestors(target) {
		if !anc.Config.ControlModes.Choice {
			slog.Debug("choice blocked by control mode", "target", target.ID(), "ancestor", anc.ID())
			return nil, model.ReasonChoiceNotAllowed, false
		}
	}

	// (2) The target's own pre-condition rules.
	if action, matched := rules.Evaluate(model.RuleSetPre, target, tr.resolve); matched {
		switch action {
		case model.ActionHiddenFromChoice, model.ActionDisabled, model.ActionSkip:
			slog.Debug("choice blocked by pre-condition rule", "target", target.ID(), "action", string(action))
			return nil, model.ReasonChoiceNotAllowed, false
		}
	}

	if current != nil {
		// (3) Exiting activities must permit choice exit.
		for _, exited := range tr.tree.ExitedBy(current, target) {
			if !exited.Config.ControlModes.ChoiceExit {
				return nil, model.ReasonChoiceNotAllowed, false
			}
		}

		// (4) Constrained choice.
		if boundary := tr.constrainBoundary(current); boundary != nil {
			if !tr.withinBoundary(target, boundary) {
				slog.Debug("choice blocked by constrained boundary",
					"target", target.ID(), "boundary", boundary.ID())
				return nil, model.ReasonChoiceNotAllowed, false
			}
		}
	}

	if target.IsLeaf() {
		return target, "", true
	}
	return tr.descend(target, Forward)
}

// constrainBoundary returns the nearest activity at or above current with
// constrain_choice set, or nil.
func (tr *Traverser) constrainBoundary(current *tree.Activity) *tree.Activity {
	if current.Config.ControlModes.ConstrainChoice {
		return current
	}
	for anc := range tr.tree.Ancestors(current) {
		if anc.Config.ControlModes.ConstrainChoice {
			return anc
		}
	}
	return nil
}

// withinBoundary reports whether target stays inside the constrained region:
// the boundary activity, its siblings, and their descendants.
func (tr *Traverser) withinBoundary(target, boundary *tree.Activity) bool {
	region := tr.tree.ParentOf(boundary)
	if region == nil {
		// Boundary is the root; the whole tree is in range.
		return true
	}
	if target.Ordinal == region.Ordinal {
		return true
	}
	return tr.tree.IsAncestor(region, target)
}

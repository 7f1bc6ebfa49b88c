// Package rollup implements the rollup engine: after an activity's attempt
// ends, completion and satisfaction status are recomputed bottom-up from the
// ended activity's parent toward the root, using each cluster's custom rollup
// rules or the default algorithms, and write-mapped global objectives are
// published along the way.
//
// Rollup stops propagating the moment an ancestor's computed status does not
// change, which both bounds the work and makes a second pass over an
// unchanged subtree a no-op.
package rollup

import (
	"log/slog"

	"github.com/roach88/scormseq/internal/model"
	"github.com/roach88/scormseq/internal/rules"
	"github.com/roach88/scormseq/internal/tree"
)

// Engine recomputes ancestor status after attempt-ending events. Cluster
// progress and satisfaction are only ever written here, never directly by a
// navigation request.
type Engine struct {
	tree    *tree.Tree
	globals GlobalMap
	resolve rules.ObjectiveResolver
}

// New creates a rollup engine over the tree and global objective map.
func New(t *tree.Tree, globals GlobalMap) *Engine {
	return &Engine{tree: t, globals: globals, resolve: Resolver(globals)}
}

// RollupFrom publishes the ended activity's global objectives, then walks
// ancestors bottom-up recomputing each cluster's status. Propagation stops at
// the first ancestor whose status is unchanged.
func (e *Engine) RollupFrom(ended *tree.Activity) {
	PublishGlobals(ended, e.globals)

	for p := e.tree.ParentOf(ended); p != nil; p = e.tree.ParentOf(p) {
		changed := e.rollupActivity(p)
		PublishGlobals(p, e.globals)
		if !changed {
			slog.Debug("rollup converged", "activity", p.ID())
			return
		}
		slog.Debug("rollup updated ancestor",
			"activity", p.ID(),
			"completion", string(p.Tracking.Completion),
			"satisfied", string(p.Tracking.Objective.SatisfiedStatus),
		)
	}
}

// rollupActivity recomputes one cluster's measure, satisfaction, and
// completion. Returns whether any observable status changed.
func (e *Engine) rollupActivity(p *tree.Activity) bool {
	before := p.Tracking.Objective
	beforeCompletion := p.Tracking.Completion

	e.rollupMeasure(p)
	e.rollupSatisfaction(p)
	e.rollupCompletion(p)

	return p.Tracking.Objective != before || p.Tracking.Completion != beforeCompletion
}

// rollupMeasure computes the weighted average of children's normalized
// measures. Children with unknown measures or zero weight do not contribute;
// no contributors leaves the measure unknown.
func (e *Engine) rollupMeasure(p *tree.Activity) {
	if p.Config.Delivery.ObjectiveSetByContent {
		return
	}

	var weighted, totalWeight float64
	for _, ord := range p.Children {
		child := e.tree.At(ord)
		rc := child.Config.RollupControls
		if !rc.RollupObjectiveSatisfied || rc.ObjectiveMeasureWeight <= 0 {
			continue
		}
		obj := e.resolve(child, "")
		if !obj.MeasureKnown {
			continue
		}
		weighted += obj.Measure * rc.ObjectiveMeasureWeight
		totalWeight += rc.ObjectiveMeasureWeight
	}

	obj := p.Tracking.Objective
	if totalWeight > 0 {
		obj.Measure = weighted / totalWeight
		obj.MeasureKnown = true
	}
	p.Tracking.Objective = obj
}

// rollupSatisfaction applies custom satisfaction rules when declared,
// otherwise the default algorithm: measure-threshold satisfaction when the
// primary objective is satisfied by measure, else "all considered children
// satisfied".
func (e *Engine) rollupSatisfaction(p *tree.Activity) {
	if p.Config.Delivery.ObjectiveSetByContent {
		return
	}

	if status, ok := e.applyCustomRules(p, model.RollupSatisfied, model.RollupNotSatisfied); ok {
		obj := p.Tracking.Objective
		if status {
			obj.SatisfiedStatus = model.Satisfied
		} else {
			obj.SatisfiedStatus = model.NotSatisfied
		}
		p.Tracking.Objective = obj
		return
	}
	if hasCustomRules(p, model.RollupSatisfied, model.RollupNotSatisfied) {
		// Custom rules declared but none fired: status stands.
		return
	}

	obj := p.Tracking.Objective

	// Measure-weighted satisfaction.
	if po := p.Config.PrimaryObjective; po != nil && po.SatisfiedByMeasure {
		if obj.MeasureKnown {
			if obj.Measure >= po.MinNormalizedMeasure {
				obj.SatisfiedStatus = model.Satisfied
			} else {
				obj.SatisfiedStatus = model.NotSatisfied
			}
			p.Tracking.Objective = obj
		}
		return
	}

	considered := e.consideredChildren(p, model.RollupSatisfied, func(c *tree.Activity) bool {
		return c.Config.RollupControls.RollupObjectiveSatisfied
	})
	if len(considered) == 0 {
		return
	}

	allSatisfied := true
	anyNotSatisfied := false
	for _, c := range considered {
		switch e.resolve(c, "").SatisfiedStatus {
		case model.Satisfied:
		case model.NotSatisfied:
			allSatisfied = false
			anyNotSatisfied = true
		default:
			allSatisfied = false
		}
	}
	switch {
	case allSatisfied:
		obj.SatisfiedStatus = model.Satisfied
	case anyNotSatisfied:
		obj.SatisfiedStatus = model.NotSatisfied
	}
	p.Tracking.Objective = obj
}

// rollupCompletion applies custom completion rules when declared, otherwise
// the default "all considered children completed" algorithm.
func (e *Engine) rollupCompletion(p *tree.Activity) {
	if p.Config.Delivery.CompletionSetByContent {
		return
	}

	if status, ok := e.applyCustomRules(p, model.RollupCompleted, model.RollupIncomplete); ok {
		if status {
			p.Tracking.Completion = model.CompletionCompleted
		} else {
			p.Tracking.Completion = model.CompletionIncomplete
		}
		return
	}
	if hasCustomRules(p, model.RollupCompleted, model.RollupIncomplete) {
		return
	}

	considered := e.consideredChildren(p, model.RollupCompleted, func(c *tree.Activity) bool {
		return c.Config.RollupControls.RollupProgressCompletion
	})
	if len(considered) == 0 {
		return
	}

	allCompleted := true
	anyIncomplete := false
	for _, c := range considered {
		switch c.Tracking.Completion {
		case model.CompletionCompleted:
		case model.CompletionIncomplete:
			allCompleted = false
			anyIncomplete = true
		default:
			allCompleted = false
		}
	}
	switch {
	case allCompleted:
		p.Tracking.Completion = model.CompletionCompleted
	case anyIncomplete:
		p.Tracking.Completion = model.CompletionIncomplete
	}
}

// applyCustomRules evaluates the cluster's rollup rules whose action is one
// of the positive/negative pair, in declared order, first match wins.
// Returns (true, true) for the positive action, (false, true) for the
// negative, and ok=false when no rule in the pair fired.
func (e *Engine) applyCustomRules(p *tree.Activity, positive, negative model.RollupAction) (bool, bool) {
	contributes := func(c *tree.Activity) bool {
		if positive == model.RollupCompleted {
			return c.Config.RollupControls.RollupProgressCompletion
		}
		return c.Config.RollupControls.RollupObjectiveSatisfied
	}
	for _, rule := range p.Config.RollupRules {
		if rule.Action != positive && rule.Action != negative {
			continue
		}
		if e.ruleFires(rule, e.consideredChildren(p, rule.Action, contributes)) {
			return rule.Action == positive, true
		}
	}
	return false, false
}

// hasCustomRules reports whether the cluster declares any rollup rule with
// one of the two actions. When it does, the default algorithm for that
// status category is suppressed.
func hasCustomRules(p *tree.Activity, actions ...model.RollupAction) bool {
	for _, rule := range p.Config.RollupRules {
		for _, a := range actions {
			if rule.Action == a {
				return true
			}
		}
	}
	return false
}

// ruleFires quantifies a rollup rule's per-child conditions over the
// considered child set.
func (e *Engine) ruleFires(rule model.RollupRule, considered []*tree.Activity) bool {
	if len(considered) == 0 {
		return false
	}

	matching := 0
	for _, c := range considered {
		if rules.ConditionsMet(rule.Combination, rule.Conditions, c, e.resolve) {
			matching++
		}
	}

	switch rule.ChildSet {
	case model.ChildSetAll:
		return matching == len(considered)
	case model.ChildSetAny:
		return matching > 0
	case model.ChildSetNone:
		return matching == 0
	case model.ChildSetAtLeastCount:
		return matching >= rule.MinimumCount
	case model.ChildSetAtLeastPercent:
		return float64(matching)/float64(len(considered)) >= rule.MinimumPercent
	default:
		return false
	}
}

// consideredChildren filters a cluster's children down to those contributing
// to rollup for the given action: tracked, contribution enabled, and the
// rollup-consideration requirement met.
func (e *Engine) consideredChildren(p *tree.Activity, action model.RollupAction, contributes func(*tree.Activity) bool) []*tree.Activity {
	var out []*tree.Activity
	for _, ord := range p.Children {
		c := e.tree.At(ord)
		if !c.Config.Delivery.Tracked || !contributes(c) {
			continue
		}
		if !e.meetsRequirement(c, c.Config.Considerations.Requirement(action)) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func (e *Engine) meetsRequirement(c *tree.Activity, req model.ConsiderationRequirement) bool {
	switch req {
	case model.ConsiderIfAttempted:
		return c.Tracking.Attempted()
	case model.ConsiderIfNotSuspended:
		return !c.Tracking.Suspended
	case model.ConsiderIfNotSkipped:
		action, matched := rules.Evaluate(model.RuleSetPre, c, e.resolve)
		return !(matched && action == model.ActionSkip)
	default:
		return true
	}
}

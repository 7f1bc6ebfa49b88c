// Package rules implements the sequencing rule evaluator and the limit
// conditions checker.
//
// Evaluation is a pure function of (activity snapshot, rule set): an explicit
// ordered scan in which the first rule whose condition combination evaluates
// true determines the action and later rules are not consulted. Absence of a
// matching rule yields "no action", never an error.
//
// Conditions evaluate tri-state. An unknown underlying value makes the
// condition unknown, negated or not, and an unknown combination never fires
// a rule.
package rules

import (
	"github.com/roach88/scormseq/internal/model"
	"github.com/roach88/scormseq/internal/tree"
)

// ObjectiveResolver resolves an activity's objective tracking state at
// evaluation time. The session supplies a resolver that consults read-mapped
// global objectives; LocalResolver ignores globals.
type ObjectiveResolver func(a *tree.Activity, objectiveID string) model.ObjectiveTracking

// LocalResolver resolves objectives from the activity's own tracking state
// only, with no global objective map consultation.
func LocalResolver(a *tree.Activity, objectiveID string) model.ObjectiveTracking {
	return a.Tracking.ObjectiveFor(objectiveID)
}

// truth is the tri-state result of a condition evaluation.
type truth int

const (
	truthUnknown truth = iota
	truthFalse
	truthTrue
)

func (v truth) negate() truth {
	switch v {
	case truthTrue:
		return truthFalse
	case truthFalse:
		return truthTrue
	default:
		return truthUnknown
	}
}

func known(b bool) truth {
	if b {
		return truthTrue
	}
	return truthFalse
}

// Evaluate scans the activity's rule set of the given kind in declared order
// and returns the first matching rule's action. The second return value is
// false when no rule matched.
func Evaluate(kind model.RuleSetKind, a *tree.Activity, resolve ObjectiveResolver) (model.RuleAction, bool) {
	var set []model.SequencingRule
	switch kind {
	case model.RuleSetPre:
		set = a.Config.PreRules
	case model.RuleSetPost:
		set = a.Config.PostRules
	case model.RuleSetExit:
		set = a.Config.ExitRules
	default:
		return "", false
	}

	for _, rule := range set {
		if ConditionsMet(rule.Combination, rule.Conditions, a, resolve) {
			return rule.Action, true
		}
	}
	return "", false
}

// ConditionsMet reports whether a condition combination evaluates true for
// the activity. An empty condition list never matches. Also used by the
// rollup engine to evaluate rollup rule conditions against each child.
func ConditionsMet(comb model.ConditionCombination, conds []model.RuleCondition, a *tree.Activity, resolve ObjectiveResolver) bool {
	if len(conds) == 0 {
		return false
	}
	if resolve == nil {
		resolve = LocalResolver
	}

	result := combine(comb, conds, a, resolve)
	return result == truthTrue
}

func combine(comb model.ConditionCombination, conds []model.RuleCondition, a *tree.Activity, resolve ObjectiveResolver) truth {
	if comb == model.CombinationAny {
		out := truthFalse
		for _, c := range conds {
			switch evalCondition(c, a, resolve) {
			case truthTrue:
				return truthTrue
			case truthUnknown:
				out = truthUnknown
			}
		}
		return out
	}

	// Default combination is "all".
	out := truthTrue
	for _, c := range conds {
		switch evalCondition(c, a, resolve) {
		case truthFalse:
			return truthFalse
		case truthUnknown:
			out = truthUnknown
		}
	}
	return out
}

func evalCondition(c model.RuleCondition, a *tree.Activity, resolve ObjectiveResolver) truth {
	v := rawCondition(c, a, resolve)
	if c.Negate {
		v = v.negate()
	}
	return v
}

func rawCondition(c model.RuleCondition, a *tree.Activity, resolve ObjectiveResolver) truth {
	t := a.Tracking

	switch c.Type {
	case model.ConditionSatisfied:
		switch resolve(a, c.ReferencedObjective).SatisfiedStatus {
		case model.Satisfied:
			return truthTrue
		case model.NotSatisfied:
			return truthFalse
		default:
			return truthUnknown
		}

	case model.ConditionObjectiveStatusKnown:
		return known(resolve(a, c.ReferencedObjective).SatisfiedStatus != model.SatisfiedUnknown)

	case model.ConditionObjectiveMeasureKnown:
		return known(resolve(a, c.ReferencedObjective).MeasureKnown)

	case model.ConditionMeasureGreaterThan:
		obj := resolve(a, c.ReferencedObjective)
		if !obj.MeasureKnown {
			return truthUnknown
		}
		return known(obj.Measure > c.Threshold)

	case model.ConditionMeasureLessThan:
		obj := resolve(a, c.ReferencedObjective)
		if !obj.MeasureKnown {
			return truthUnknown
		}
		return known(obj.Measure < c.Threshold)

	case model.ConditionCompleted:
		switch t.Completion {
		case model.CompletionCompleted:
			return truthTrue
		case model.CompletionIncomplete:
			return truthFalse
		default:
			return truthUnknown
		}

	case model.ConditionProgressKnown:
		return known(t.ProgressKnown())

	case model.ConditionAttempted:
		return known(t.Attempted())

	case model.ConditionAttemptLimitExceeded:
		return known(t.AttemptLimitExceeded)

	case model.ConditionDurationLimitExceeded:
		return known(t.DurationLimitExceeded)

	case model.ConditionAlways:
		return truthTrue

	default:
		// Unknown condition types are rejected at tree build; an unknown
		// result here can never fire a rule.
		return truthUnknown
	}
}

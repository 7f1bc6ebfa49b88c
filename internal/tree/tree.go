// Package tree implements the activity tree store: an arena of activities
// addressed by stable integer ordinals, built once from a sequencing
// configuration and mutated only through tracking state.
//
// Parent/child relationships are arena indices, not pointers, so no ownership
// cycle exists. Configuration is immutable after Build; tracking state is the
// only mutable surface.
package tree

import (
	"fmt"

	"github.com/roach88/scormseq/internal/model"
)

// Activity is one node in the built tree. Config fields are read-only after
// Build; Tracking is mutated by the session's navigation processor and the
// rollup engine only.
type Activity struct {
	// Ordinal is the arena index, assigned in document pre-order. Stable for
	// the life of the tree.
	Ordinal int

	// Parent is the arena index of the parent, or -1 for the root.
	Parent int

	// Children holds arena indices in declared document order.
	Children []int

	// Position is the index among siblings, 0-based.
	Position int

	// Depth is the distance from the root (root = 0).
	Depth int

	Config   *model.ActivityConfig
	Tracking *model.ActivityTracking
}

// ID returns the activity's stable identifier.
func (a *Activity) ID() string { return a.Config.ID }

// IsLeaf reports whether the activity is a launchable leaf.
func (a *Activity) IsLeaf() bool { return len(a.Children) == 0 }

// Tree is the arena-backed activity tree.
type Tree struct {
	arena []*Activity
	byID  map[string]int
}

// Build flattens a sequencing configuration into an arena tree. It
// re-validates what the upstream parser must already guarantee: every
// identifier is present and unique, every rule references a resolvable
// objective, and every enum value is within its closed vocabulary. Any
// violation returns an *InvalidTreeError.
func Build(cfg *model.ActivityConfig) (*Tree, error) {
	if cfg == nil {
		return nil, &InvalidTreeError{Message: "nil configuration"}
	}

	t := &Tree{byID: make(map[string]int)}
	if err := t.add(cfg, -1, 0, 0); err != nil {
		return nil, err
	}

	for _, a := range t.arena {
		if err := validateActivity(a.Config); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// add appends cfg and its subtree to the arena in pre-order.
func (t *Tree) add(cfg *model.ActivityConfig, parent, position, depth int) error {
	if cfg.ID == "" {
		return &InvalidTreeError{Message: "activity with empty identifier"}
	}
	if _, dup := t.byID[cfg.ID]; dup {
		return &InvalidTreeError{ActivityID: cfg.ID, Message: "duplicate activity identifier"}
	}

	a := &Activity{
		Ordinal:  len(t.arena),
		Parent:   parent,
		Position: position,
		Depth:    depth,
		Config:   cfg,
		Tracking: model.NewActivityTracking(),
	}
	t.arena = append(t.arena, a)
	t.byID[cfg.ID] = a.Ordinal

	for i := range cfg.Children {
		child := &cfg.Children[i]
		childOrd := len(t.arena)
		if err := t.add(child, a.Ordinal, i, depth+1); err != nil {
			return err
		}
		a.Children = append(a.Children, childOrd)
	}
	return nil
}

// Root returns the root activity.
func (t *Tree) Root() *Activity { return t.arena[0] }

// Len returns the number of activities in the tree.
func (t *Tree) Len() int { return len(t.arena) }

// Find returns the activity with the given identifier.
func (t *Tree) Find(id string) (*Activity, bool) {
	ord, ok := t.byID[id]
	if !ok {
		return nil, false
	}
	return t.arena[ord], true
}

// At returns the activity at an arena ordinal. Panics on an out-of-range
// ordinal; ordinals only come from the tree itself.
func (t *Tree) At(ordinal int) *Activity { return t.arena[ordinal] }

// ParentOf returns the parent activity, or nil for the root.
func (t *Tree) ParentOf(a *Activity) *Activity {
	if a.Parent < 0 {
		return nil
	}
	return t.arena[a.Parent]
}

// SnapshotTracking returns a deep copy of every activity's tracking state,
// keyed by identifier.
func (t *Tree) SnapshotTracking() map[string]*model.ActivityTracking {
	out := make(map[string]*model.ActivityTracking, len(t.arena))
	for _, a := range t.arena {
		out[a.ID()] = a.Tracking.Clone()
	}
	return out
}

// RestoreTracking replaces every activity's tracking state from a snapshot.
// Returns an error if the snapshot references an unknown activity or misses
// one; a partial snapshot cannot represent a resumable session.
func (t *Tree) RestoreTracking(states map[string]*model.ActivityTracking) error {
	for id := range states {
		if _, ok := t.byID[id]; !ok {
			return fmt.Errorf("restore tracking: unknown activity %q", id)
		}
	}
	for _, a := range t.arena {
		st, ok := states[a.ID()]
		if !ok {
			return fmt.Errorf("restore tracking: missing activity %q", a.ID())
		}
		a.Tracking = st.Clone()
	}
	return nil
}

// validateActivity checks closed vocabularies and objective references for a
// single activity's configuration.
func validateActivity(cfg *model.ActivityConfig) error {
	declared := map[string]bool{"": true} // empty = primary
	if cfg.PrimaryObjective != nil && cfg.PrimaryObjective.ID != "" {
		declared[cfg.PrimaryObjective.ID] = true
	}
	for _, o := range cfg.Objectives {
		if o.ID == "" {
			return &InvalidTreeError{ActivityID: cfg.ID, Field: "objectives", Message: "secondary objective with empty id"}
		}
		declared[o.ID] = true
	}

	for _, set := range []struct {
		kind  model.RuleSetKind
		rules []model.SequencingRule
	}{
		{model.RuleSetPre, cfg.PreRules},
		{model.RuleSetPost, cfg.PostRules},
		{model.RuleSetExit, cfg.ExitRules},
	} {
		valid := model.ValidActionsFor(set.kind)
		for i, rule := range set.rules {
			if !valid[rule.Action] {
				return &InvalidTreeError{
					ActivityID: cfg.ID,
					Field:      fmt.Sprintf("%s_rules[%d].action", set.kind, i),
					Message:    fmt.Sprintf("action %q not valid for %s-condition rules", rule.Action, set.kind),
				}
			}
			if err := validateConditions(cfg.ID, string(set.kind), i, rule.Combination, rule.Conditions, declared); err != nil {
				return err
			}
		}
	}

	for i, rule := range cfg.RollupRules {
		if !model.ValidChildSets[rule.ChildSet] {
			return &InvalidTreeError{
				ActivityID: cfg.ID,
				Field:      fmt.Sprintf("rollup_rules[%d].child_set", i),
				Message:    fmt.Sprintf("unknown child set %q", rule.ChildSet),
			}
		}
		if !model.ValidRollupActions[rule.Action] {
			return &InvalidTreeError{
				ActivityID: cfg.ID,
				Field:      fmt.Sprintf("rollup_rules[%d].action", i),
				Message:    fmt.Sprintf("unknown rollup action %q", rule.Action),
			}
		}
		if err := validateConditions(cfg.ID, "rollup", i, rule.Combination, rule.Conditions, declared); err != nil {
			return err
		}
	}

	if tm := cfg.Randomization.SelectionTiming; tm != "" && !model.ValidTimings[tm] {
		return &InvalidTreeError{ActivityID: cfg.ID, Field: "randomization.selection_timing", Message: fmt.Sprintf("unknown timing %q", tm)}
	}
	if tm := cfg.Randomization.RandomizationTiming; tm != "" && !model.ValidTimings[tm] {
		return &InvalidTreeError{ActivityID: cfg.ID, Field: "randomization.randomization_timing", Message: fmt.Sprintf("unknown timing %q", tm)}
	}
	if cfg.Randomization.SelectCount < 0 {
		return &InvalidTreeError{ActivityID: cfg.ID, Field: "randomization.select_count", Message: "negative select count"}
	}
	if cfg.Randomization.SelectCount > len(cfg.Children) {
		return &InvalidTreeError{ActivityID: cfg.ID, Field: "randomization.select_count", Message: "select count exceeds child count"}
	}
	return nil
}

func validateConditions(activityID, set string, rule int, comb model.ConditionCombination, conds []model.RuleCondition, declared map[string]bool) error {
	if comb != "" && !model.ValidCombinations[comb] {
		return &InvalidTreeError{
			ActivityID: activityID,
			Field:      fmt.Sprintf("%s_rules[%d].combination", set, rule),
			Message:    fmt.Sprintf("unknown combination %q", comb),
		}
	}
	for j, cond := range conds {
		if !model.ValidConditionTypes[cond.Type] {
			return &InvalidTreeError{
				ActivityID: activityID,
				Field:      fmt.Sprintf("%s_rules[%d].conditions[%d]", set, rule, j),
				Message:    fmt.Sprintf("unknown condition %q", cond.Type),
			}
		}
		// Rollup conditions evaluate against children, whose objectives are
		// not known here; only sequencing rules resolve objective refs.
		if set != "rollup" && cond.ReferencedObjective != "" && !declared[cond.ReferencedObjective] {
			return &InvalidTreeError{
				ActivityID: activityID,
				Field:      fmt.Sprintf("%s_rules[%d].conditions[%d].referenced_objective", set, rule, j),
				Message:    fmt.Sprintf("unresolved objective reference %q", cond.ReferencedObjective),
			}
		}
	}
	return nil
}

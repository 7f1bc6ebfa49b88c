package rollup

import (
	"github.com/roach88/scormseq/internal/model"
	"github.com/roach88/scormseq/internal/rules"
	"github.com/roach88/scormseq/internal/tree"
)

// GlobalMap is the session-scoped store for objectives declared global to the
// system. Multiple activities may alias the same key; writes within one
// rollup pass are last-writer-wins in post-order.
type GlobalMap map[string]model.GlobalObjective

// NewGlobalMap returns an empty global objective map.
func NewGlobalMap() GlobalMap {
	return make(GlobalMap)
}

// Clone returns a copy of the map. Used for snapshotting.
func (g GlobalMap) Clone() GlobalMap {
	out := make(GlobalMap, len(g))
	for k, v := range g {
		out[k] = v
	}
	return out
}

// Resolver returns an objective resolver that overlays read-mapped global
// values on top of local tracking state. Reads resolve at evaluation time;
// nothing is pushed eagerly into activities.
func Resolver(globals GlobalMap) rules.ObjectiveResolver {
	return func(a *tree.Activity, objectiveID string) model.ObjectiveTracking {
		local := a.Tracking.ObjectiveFor(objectiveID)

		decl := findObjective(a, objectiveID)
		if decl == nil {
			return local
		}
		for _, m := range decl.MapInfo {
			g, ok := globals[m.TargetID]
			if !ok {
				continue
			}
			if m.ReadSatisfiedStatus && g.SatisfiedStatus != model.SatisfiedUnknown {
				local.SatisfiedStatus = g.SatisfiedStatus
			}
			if m.ReadNormalizedMeasure && g.MeasureKnown {
				local.Measure = g.Measure
				local.MeasureKnown = true
			}
		}
		return local
	}
}

// PublishGlobals writes an activity's objective state into every global key
// its map-info grants write permission for. Called when the activity's
// attempt ends and after each rollup recomputation of an ancestor.
func PublishGlobals(a *tree.Activity, globals GlobalMap) {
	publish := func(decl *model.Objective, state model.ObjectiveTracking) {
		for _, m := range decl.MapInfo {
			if !m.WriteSatisfiedStatus && !m.WriteNormalizedMeasure {
				continue
			}
			g := globals[m.TargetID]
			if m.WriteSatisfiedStatus {
				g.SatisfiedStatus = state.SatisfiedStatus
			}
			if m.WriteNormalizedMeasure {
				g.Measure = state.Measure
				g.MeasureKnown = state.MeasureKnown
			}
			globals[m.TargetID] = g
		}
	}

	if p := a.Config.PrimaryObjective; p != nil {
		publish(p, a.Tracking.Objective)
	}
	for i := range a.Config.Objectives {
		decl := &a.Config.Objectives[i]
		publish(decl, a.Tracking.ObjectiveFor(decl.ID))
	}
}

// findObjective locates an objective declaration on the activity. The empty
// id (and a matching explicit id) addresses the primary objective.
func findObjective(a *tree.Activity, objectiveID string) *model.Objective {
	p := a.Config.PrimaryObjective
	if objectiveID == "" {
		return p
	}
	if p != nil && p.ID == objectiveID {
		return p
	}
	for i := range a.Config.Objectives {
		if a.Config.Objectives[i].ID == objectiveID {
			return &a.Config.Objectives[i]
		}
	}
	return nil
}

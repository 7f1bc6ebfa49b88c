package session

import (
	"github.com/roach88/scormseq/internal/flow"
	"github.com/roach88/scormseq/internal/model"
)

// validityLocked computes per-request navigation validity with read-only dry
// runs: traversal is consulted but no tracking state is written. The RTE
// layer feeds these flags back to content (e.g. to grey out a Continue
// button).
func (s *Session) validityLocked() model.NavigationValidity {
	ro := s.traverser.ReadOnly()
	var v model.NavigationValidity

	switch s.phase {
	case model.PhaseNotStarted:
		_, _, ok := ro.Start()
		v.Start = ok

	case model.PhaseSuspended:
		v.ResumeAll = s.suspended != nil

	case model.PhaseActive:
		if s.current != nil {
			_, _, ok := ro.FlowFrom(s.current, flow.Forward)
			v.Continue = ok
			_, _, ok = ro.FlowFrom(s.current, flow.Backward)
			v.Previous = ok
			v.SuspendAll = true
		}
		v.Choice = make(map[string]bool, s.tree.Len())
		for a := range s.tree.PreOrder(s.tree.Root()) {
			_, _, ok := ro.Choose(s.current, a)
			v.Choice[a.ID()] = ok
		}
	}
	return v
}

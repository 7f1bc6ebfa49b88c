package session

import (
	"fmt"
	"log/slog"

	"github.com/roach88/scormseq/internal/flow"
	"github.com/roach88/scormseq/internal/model"
	"github.com/roach88/scormseq/internal/rollup"
	"github.com/roach88/scormseq/internal/rules"
	"github.com/roach88/scormseq/internal/tree"
)

// maxRedirects is the per-request redirection budget. A post-condition action
// may rewrite the caller's request once; a second rewrite within the same
// request indicates a contradictory rule set and is fatal.
const maxRedirects = 1

// ProcessNavigation consumes one navigation request and either delivers a new
// current activity, ends/suspends the session, or returns a structured
// rejection. A request that cannot be satisfied never mutates session state;
// a fatal sequencing error (redirection loop) likewise leaves state
// untouched.
func (s *Session) ProcessNavigation(req model.NavigationRequest, targetID string) (model.NavigationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !model.ValidRequests[req] {
		return model.NavigationResult{}, fmt.Errorf("unknown navigation request %q", req)
	}

	backup := s.backupLocked()
	redirects := 0
	res, err := s.processLocked(req, req, targetID, &redirects)
	if err != nil || !res.Success {
		s.restoreBackupLocked(backup)
	}

	if err != nil {
		slog.Error("navigation failed",
			"session_id", s.id,
			"request", string(req),
			"error", err,
		)
		return model.NavigationResult{}, err
	}

	if res.Success {
		slog.Info("navigation processed",
			"session_id", s.id,
			"request", string(req),
			"target", res.TargetID,
			"phase", string(s.phase),
		)
	} else {
		slog.Info("navigation rejected",
			"session_id", s.id,
			"request", string(req),
			"reason", string(res.Reason),
		)
	}
	return res, nil
}

// processLocked handles one (possibly redirected) request. orig is the
// caller's original request, kept for result reporting; req is the effective
// request after redirection.
func (s *Session) processLocked(orig, req model.NavigationRequest, targetID string, redirects *int) (model.NavigationResult, error) {
	res := model.NavigationResult{Request: orig, Success: true}
	if *redirects > 0 {
		res.Redirected = postActionFor(req)
	}

	switch req {
	case model.RequestStart:
		if s.phase != model.PhaseNotStarted {
			return model.Rejected(orig, model.ReasonInvalidState), nil
		}
		leaf, reason, ok := s.traverser.Start()
		if !ok {
			return model.Rejected(orig, reason), nil
		}
		s.deliverLocked(nil, leaf)
		res.TargetID = leaf.ID()
		return res, nil

	case model.RequestResumeAll:
		if s.phase != model.PhaseSuspended {
			return model.Rejected(orig, model.ReasonInvalidState), nil
		}
		if s.suspended == nil {
			return model.Rejected(orig, model.ReasonNotSuspended), nil
		}
		resumed := s.suspended
		resumed.Tracking.Suspended = false
		resumed.Tracking.Active = true
		for anc := range s.tree.Ancestors(resumed) {
			anc.Tracking.Suspended = false
			anc.Tracking.Active = true
		}
		s.current = resumed
		s.suspended = nil
		s.phase = model.PhaseActive
		res.TargetID = resumed.ID()
		return res, nil

	case model.RequestContinue, model.RequestPrevious:
		if s.phase != model.PhaseActive {
			return model.Rejected(orig, model.ReasonInvalidState), nil
		}
		if s.current == nil {
			return model.Rejected(orig, model.ReasonNoCurrent), nil
		}
		redirect, err := s.terminateCurrentLocked(orig, true, redirects)
		if err != nil {
			return model.NavigationResult{}, err
		}
		if redirect != "" {
			return s.processLocked(orig, redirect, "", redirects)
		}
		dir := flow.Forward
		if req == model.RequestPrevious {
			dir = flow.Backward
		}
		origin := s.current
		leaf, reason, ok := s.traverser.FlowFrom(origin, dir)
		if !ok {
			return model.Rejected(orig, reason), nil
		}
		s.deliverLocked(origin, leaf)
		res.TargetID = leaf.ID()
		return res, nil

	case model.RequestChoice:
		if s.phase != model.PhaseActive {
			return model.Rejected(orig, model.ReasonInvalidState), nil
		}
		target, ok := s.tree.Find(targetID)
		if !ok {
			return model.Rejected(orig, model.ReasonUnknownActivity), nil
		}
		// Validate reachability before any mutation.
		if _, reason, ok := s.traverser.ReadOnly().Choose(s.current, target); !ok {
			return model.Rejected(orig, reason), nil
		}
		if s.current != nil && s.current.Ordinal != target.Ordinal {
			// The outgoing activity's termination is authoritative: its
			// post-condition redirect overrides the caller's target.
			redirect, err := s.terminateCurrentLocked(orig, true, redirects)
			if err != nil {
				return model.NavigationResult{}, err
			}
			if redirect != "" {
				return s.processLocked(orig, redirect, "", redirects)
			}
		}
		origin := s.current
		leaf, reason, ok := s.traverser.Choose(origin, target)
		if !ok {
			return model.Rejected(orig, reason), nil
		}
		s.deliverLocked(origin, leaf)
		res.TargetID = leaf.ID()
		return res, nil

	case model.RequestRetry:
		if s.phase != model.PhaseActive {
			return model.Rejected(orig, model.ReasonInvalidState), nil
		}
		if s.current == nil {
			return model.Rejected(orig, model.ReasonNoCurrent), nil
		}
		redirect, err := s.terminateCurrentLocked(orig, true, redirects)
		if err != nil {
			return model.NavigationResult{}, err
		}
		if redirect != "" {
			return s.processLocked(orig, redirect, "", redirects)
		}
		// Re-enter in place: a fresh attempt on the same activity. When
		// exit_parent moved the current pointer to a cluster, re-entry flows
		// into its first eligible leaf.
		target := s.current
		leaf, reason, ok := s.traverser.FlowInto(target)
		if !ok {
			return model.Rejected(orig, reason), nil
		}
		s.deliverLocked(target, leaf)
		res.TargetID = leaf.ID()
		return res, nil

	case model.RequestRetryAll:
		if s.phase != model.PhaseActive {
			return model.Rejected(orig, model.ReasonInvalidState), nil
		}
		if s.current != nil {
			redirect, err := s.terminateCurrentLocked(orig, true, redirects)
			if err != nil {
				return model.NavigationResult{}, err
			}
			if redirect != "" {
				return s.processLocked(orig, redirect, "", redirects)
			}
			for anc := range s.tree.Ancestors(s.current) {
				anc.Tracking.Active = false
			}
		}
		leaf, reason, ok := s.traverser.Start()
		if !ok {
			return model.Rejected(orig, reason), nil
		}
		s.deliverLocked(nil, leaf)
		res.TargetID = leaf.ID()
		return res, nil

	case model.RequestExit:
		if s.phase != model.PhaseActive {
			return model.Rejected(orig, model.ReasonInvalidState), nil
		}
		if s.current == nil {
			return model.Rejected(orig, model.ReasonNoCurrent), nil
		}
		redirect, err := s.terminateCurrentLocked(orig, true, redirects)
		if err != nil {
			return model.NavigationResult{}, err
		}
		if redirect != "" {
			return s.processLocked(orig, redirect, "", redirects)
		}
		s.endSessionLocked(true)
		return res, nil

	case model.RequestExitAll:
		if s.phase != model.PhaseActive {
			return model.Rejected(orig, model.ReasonInvalidState), nil
		}
		if s.current != nil {
			if _, err := s.terminateCurrentLocked(orig, false, redirects); err != nil {
				return model.NavigationResult{}, err
			}
		}
		s.endSessionLocked(true)
		return res, nil

	case model.RequestSuspendAll:
		if s.phase != model.PhaseActive {
			return model.Rejected(orig, model.ReasonInvalidState), nil
		}
		if s.current == nil {
			return model.Rejected(orig, model.ReasonNoCurrent), nil
		}
		s.current.Tracking.Suspended = true
		s.current.Tracking.Active = false
		for anc := range s.tree.Ancestors(s.current) {
			anc.Tracking.Suspended = true
			anc.Tracking.Active = false
		}
		s.suspended = s.current
		s.current = nil
		s.phase = model.PhaseSuspended
		return res, nil

	case model.RequestAbandon:
		if s.phase != model.PhaseActive {
			return model.Rejected(orig, model.ReasonInvalidState), nil
		}
		if s.current == nil {
			return model.Rejected(orig, model.ReasonNoCurrent), nil
		}
		// Abandoned attempts are discarded: no rule evaluation, no rollup.
		s.current.Tracking.Active = false
		s.endSessionLocked(false)
		return res, nil

	case model.RequestAbandonAll:
		if s.phase != model.PhaseActive {
			return model.Rejected(orig, model.ReasonInvalidState), nil
		}
		if s.current != nil {
			s.current.Tracking.Active = false
		}
		s.endSessionLocked(false)
		return res, nil

	default:
		return model.NavigationResult{}, fmt.Errorf("unknown navigation request %q", req)
	}
}

// terminateCurrentLocked ends the current activity's attempt: exit-condition
// rules run first, limits are refreshed, the attempt ends, rollup runs, and
// post-condition rules may return a redirected request. exit_parent walks up
// structurally, ending ancestor attempts and consulting their post rules.
//
// The redirection budget is shared across one caller request; exceeding it
// returns a *RedirectionLoopError.
func (s *Session) terminateCurrentLocked(orig model.NavigationRequest, evalRules bool, redirects *int) (model.NavigationRequest, error) {
	cur := s.current

	rules.ApplyLimits(cur.Config.Limits, cur.Tracking)

	if evalRules {
		if action, matched := rules.Evaluate(model.RuleSetExit, cur, s.resolve); matched && action == model.ActionExit {
			slog.Debug("exit-condition rule matched", "session_id", s.id, "activity", cur.ID())
		}
	}

	s.endAttemptLocked(cur)

	if !evalRules {
		return "", nil
	}

	for {
		action, matched := rules.Evaluate(model.RuleSetPost, cur, s.resolve)
		if !matched {
			return "", nil
		}

		if action == model.ActionExitParent {
			parent := s.tree.ParentOf(cur)
			if parent == nil {
				return "", nil
			}
			s.endAttemptLocked(parent)
			s.current = parent
			cur = parent
			continue
		}

		*redirects++
		if *redirects > maxRedirects {
			return "", &RedirectionLoopError{
				Request:    string(orig),
				ActivityID: cur.ID(),
				Redirects:  *redirects,
			}
		}
		slog.Debug("post-condition redirect",
			"session_id", s.id,
			"activity", cur.ID(),
			"action", string(action),
		)
		return requestForPostAction(action), nil
	}
}

// endAttemptLocked marks the attempt ended and rolls the result up through
// the ancestors. Untracked activities still end but contribute nothing.
func (s *Session) endAttemptLocked(a *tree.Activity) {
	a.Tracking.Active = false
	rules.ApplyLimits(a.Config.Limits, a.Tracking)
	if a.Config.Delivery.Tracked {
		s.rollup.RollupFrom(a)
	} else {
		rollup.PublishGlobals(a, s.globals)
	}
}

// endSessionLocked deactivates the current chain and moves to the ended
// phase. With finalize, open ancestor attempts end with rollup.
func (s *Session) endSessionLocked(finalize bool) {
	if s.current != nil {
		for anc := range s.tree.Ancestors(s.current) {
			if finalize && anc.Tracking.Active {
				s.endAttemptLocked(anc)
			} else {
				anc.Tracking.Active = false
			}
		}
		s.current = nil
	}
	s.suspended = nil
	s.phase = model.PhaseEnded
}

// deliverLocked makes leaf the current activity: clusters exited by the move
// go inactive, activities entered on the root-to-leaf path begin fresh
// attempts, and the session becomes active.
func (s *Session) deliverLocked(origin, leaf *tree.Activity) {
	if origin != nil && origin.Ordinal != leaf.Ordinal {
		for _, exited := range s.tree.ExitedBy(origin, leaf) {
			exited.Tracking.Active = false
		}
	}

	// Root-to-leaf entry path.
	var path []*tree.Activity
	for a := leaf; a != nil; a = s.tree.ParentOf(a) {
		path = append(path, a)
	}
	for i := len(path) - 1; i >= 0; i-- {
		a := path[i]
		if !a.Tracking.Active {
			a.Tracking.BeginAttempt()
			flow.ResetSelection(a)
		}
	}

	s.current = leaf
	s.phase = model.PhaseActive
}

// requestForPostAction maps a post-condition action to the request it
// redirects to.
func requestForPostAction(action model.RuleAction) model.NavigationRequest {
	switch action {
	case model.ActionRetry:
		return model.RequestRetry
	case model.ActionRetryAll:
		return model.RequestRetryAll
	case model.ActionContinue:
		return model.RequestContinue
	case model.ActionPrevious:
		return model.RequestPrevious
	case model.ActionExitAll:
		return model.RequestExitAll
	default:
		return ""
	}
}

// postActionFor is the inverse mapping, used to report which action rewrote
// the caller's request.
func postActionFor(req model.NavigationRequest) model.RuleAction {
	switch req {
	case model.RequestRetry:
		return model.ActionRetry
	case model.RequestRetryAll:
		return model.ActionRetryAll
	case model.RequestContinue:
		return model.ActionContinue
	case model.RequestPrevious:
		return model.ActionPrevious
	case model.RequestExitAll:
		return model.ActionExitAll
	default:
		return ""
	}
}

// backup captures the mutable session state for all-or-nothing request
// processing.
type backup struct {
	tracking    map[string]*model.ActivityTracking
	globals     rollup.GlobalMap
	phase       model.SessionPhase
	currentID   string
	suspendedID string
}

func (s *Session) backupLocked() backup {
	b := backup{
		tracking: s.tree.SnapshotTracking(),
		globals:  s.globals.Clone(),
		phase:    s.phase,
	}
	if s.current != nil {
		b.currentID = s.current.ID()
	}
	if s.suspended != nil {
		b.suspendedID = s.suspended.ID()
	}
	return b
}

func (s *Session) restoreBackupLocked(b backup) {
	// RestoreTracking cannot fail here: the snapshot came from this tree.
	_ = s.tree.RestoreTracking(b.tracking)
	clear(s.globals)
	for k, v := range b.globals {
		s.globals[k] = v
	}
	s.phase = b.phase
	s.current = nil
	if b.currentID != "" {
		s.current, _ = s.tree.Find(b.currentID)
	}
	s.suspended = nil
	if b.suspendedID != "" {
		s.suspended, _ = s.tree.Find(b.suspendedID)
	}
}

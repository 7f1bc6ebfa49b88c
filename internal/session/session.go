// Package session implements the sequencing session: the aggregate root
// owning the activity tree, the global objective map, the current-activity
// pointer, and the lifecycle phase, together with the navigation request
// processor that is the only mutation path besides rollup.
//
// Thread-safety model: every operation takes the session mutex, serializing
// all mutating calls into a single logical session actor. Snapshot reads are
// consistent because they hold the same mutex; independent sessions share no
// state and may run in parallel.
package session

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/roach88/scormseq/internal/flow"
	"github.com/roach88/scormseq/internal/model"
	"github.com/roach88/scormseq/internal/rollup"
	"github.com/roach88/scormseq/internal/rules"
	"github.com/roach88/scormseq/internal/tree"
)

// IDGenerator generates session identifiers. Implemented by UUIDv7Generator
// (production) and testutil.FixedIDGenerator (tests).
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 session identifiers.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Session is one learner's sequencing session over one content package.
type Session struct {
	mu sync.Mutex

	id        string
	tree      *tree.Tree
	globals   rollup.GlobalMap
	rollup    *rollup.Engine
	traverser *flow.Traverser
	resolve   rules.ObjectiveResolver

	phase     model.SessionPhase
	current   *tree.Activity
	suspended *tree.Activity
}

// Option configures session construction.
type Option func(*options)

type options struct {
	idGen  IDGenerator
	source flow.SelectionSource
}

// WithIDGenerator overrides the session id generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(o *options) { o.idGen = g }
}

// WithSelectionSource overrides the randomization source. The default is a
// SeededSource keyed off the generated session id, which keeps a session's
// selections stable across snapshot/resume.
func WithSelectionSource(s flow.SelectionSource) Option {
	return func(o *options) { o.source = s }
}

// Initialize builds the activity tree from a sequencing configuration and
// creates a session in the not-started phase. Returns an
// *tree.InvalidTreeError (wrapped) for a malformed configuration; no session
// is created in that case.
func Initialize(cfg *model.ActivityConfig, opts ...Option) (*Session, error) {
	o := &options{idGen: UUIDv7Generator{}}
	for _, opt := range opts {
		opt(o)
	}

	t, err := tree.Build(cfg)
	if err != nil {
		return nil, fmt.Errorf("initialize session: %w", err)
	}

	id := o.idGen.Generate()
	if o.source == nil {
		o.source = flow.SeededSource{Seed: seedFromID(id)}
	}

	globals := rollup.NewGlobalMap()
	resolve := rollup.Resolver(globals)

	s := &Session{
		id:        id,
		tree:      t,
		globals:   globals,
		rollup:    rollup.New(t, globals),
		traverser: flow.New(t, resolve, o.source),
		resolve:   resolve,
		phase:     model.PhaseNotStarted,
	}

	slog.Info("session initialized", "session_id", id, "activities", t.Len())
	return s, nil
}

// seedFromID folds a session id into a PRNG seed.
func seedFromID(id string) int64 {
	var seed int64
	for _, b := range []byte(id) {
		seed = seed*131 + int64(b)
	}
	return seed
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Phase returns the current lifecycle phase.
func (s *Session) Phase() model.SessionPhase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// CurrentID returns the current activity's identifier, or "" when none.
func (s *Session) CurrentID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return ""
	}
	return s.current.ID()
}

// GetState returns the externally observable session snapshot: phase,
// current/suspended activity, all tracking state, global objectives, and
// per-request navigation validity computed by read-only dry runs.
func (s *Session) GetState() *model.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() *model.SessionSnapshot {
	snap := &model.SessionSnapshot{
		SessionID:  s.id,
		Phase:      s.phase,
		Activities: s.tree.SnapshotTracking(),
		Globals:    s.globals.Clone(),
		Validity:   s.validityLocked(),
	}
	if s.current != nil {
		snap.CurrentID = s.current.ID()
	}
	if s.suspended != nil {
		snap.SuspendedID = s.suspended.ID()
	}
	return snap
}

// Restore replaces the session's mutable state from a snapshot taken earlier
// from a session over the same configuration. The snapshot plus the original
// configuration reproduce the session bit-for-bit.
func (s *Session) Restore(snap *model.SessionSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.tree.RestoreTracking(snap.Activities); err != nil {
		return fmt.Errorf("restore session: %w", err)
	}

	s.current = nil
	if snap.CurrentID != "" {
		a, ok := s.tree.Find(snap.CurrentID)
		if !ok {
			return fmt.Errorf("restore session: current %q: %w", snap.CurrentID, ErrUnknownActivity)
		}
		s.current = a
	}
	s.suspended = nil
	if snap.SuspendedID != "" {
		a, ok := s.tree.Find(snap.SuspendedID)
		if !ok {
			return fmt.Errorf("restore session: suspended %q: %w", snap.SuspendedID, ErrUnknownActivity)
		}
		s.suspended = a
	}

	clear(s.globals)
	for k, v := range snap.Globals {
		s.globals[k] = v
	}
	s.id = snap.SessionID
	s.phase = snap.Phase

	slog.Info("session restored", "session_id", s.id, "phase", string(s.phase))
	return nil
}

// ProgressUpdate carries SCO-reported tracking data through the direct write
// path. Nil fields are not written.
type ProgressUpdate struct {
	Completed *bool
	Satisfied *bool
	Measure   *float64
}

// UpdateActivityProgress applies SCO-reported completion, satisfaction, and
// measure to a leaf activity. Setting completion or satisfaction triggers
// rollup from the activity; a pure measure update does not.
func (s *Session) UpdateActivityProgress(activityID string, upd ProgressUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase == model.PhaseEnded {
		return ErrSessionEnded
	}
	a, ok := s.tree.Find(activityID)
	if !ok {
		return fmt.Errorf("update progress: %q: %w", activityID, ErrUnknownActivity)
	}
	if !a.IsLeaf() {
		return fmt.Errorf("update progress: %q: %w", activityID, ErrNotDeliverable)
	}
	if upd.Measure != nil && (*upd.Measure < -1.0 || *upd.Measure > 1.0) {
		return fmt.Errorf("update progress: measure %v outside [-1.0, 1.0]", *upd.Measure)
	}

	t := a.Tracking
	if upd.Completed != nil {
		if *upd.Completed {
			t.Completion = model.CompletionCompleted
		} else {
			t.Completion = model.CompletionIncomplete
		}
	}
	obj := t.Objective
	if upd.Satisfied != nil {
		if *upd.Satisfied {
			obj.SatisfiedStatus = model.Satisfied
		} else {
			obj.SatisfiedStatus = model.NotSatisfied
		}
	}
	if upd.Measure != nil {
		obj.Measure = *upd.Measure
		obj.MeasureKnown = true
	}
	t.Objective = obj

	slog.Debug("progress updated",
		"session_id", s.id,
		"activity", activityID,
		"completion", string(t.Completion),
		"satisfied", string(obj.SatisfiedStatus),
	)

	if upd.Completed != nil || upd.Satisfied != nil {
		s.rollup.RollupFrom(a)
	}
	return nil
}

// Terminate ends the session unconditionally. The current attempt (if any)
// is ended and rolled up first.
func (s *Session) Terminate() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase == model.PhaseEnded {
		return
	}
	if s.current != nil {
		s.endAttemptLocked(s.current)
		for p := s.tree.ParentOf(s.current); p != nil; p = s.tree.ParentOf(p) {
			p.Tracking.Active = false
		}
		s.current = nil
	}
	s.suspended = nil
	s.phase = model.PhaseEnded
	slog.Info("session terminated", "session_id", s.id)
}

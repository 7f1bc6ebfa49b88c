package rules

import "github.com/roach88/scormseq/internal/model"

// LimitStatus reports which configured limits an activity's tracking state
// has exceeded. Exceeding a limit is a signal consumed by the "limit
// exceeded" rule conditions on the next evaluation; it never alters control
// flow by itself.
type LimitStatus struct {
	AttemptLimitExceeded  bool
	DurationLimitExceeded bool
}

// Any reports whether any limit is exceeded.
func (s LimitStatus) Any() bool {
	return s.AttemptLimitExceeded || s.DurationLimitExceeded
}

// CheckLimits evaluates an activity's limit configuration against its
// tracking state. Pure: no mutation, no clock access; durations are data
// accumulated by the caller.
func CheckLimits(cfg model.LimitConditions, t *model.ActivityTracking) LimitStatus {
	var s LimitStatus
	if cfg.HasAttemptLimit() && t.AttemptCount >= cfg.AttemptLimit {
		s.AttemptLimitExceeded = true
	}
	if cfg.AbsoluteDurationLimit > 0 && t.AttemptAbsoluteDuration >= cfg.AbsoluteDurationLimit {
		s.DurationLimitExceeded = true
	}
	if cfg.ExperiencedDurationLimit > 0 && t.AttemptExperiencedDuration >= cfg.ExperiencedDurationLimit {
		s.DurationLimitExceeded = true
	}
	return s
}

// ApplyLimits recomputes and stores the derived limit flags on the tracking
// state. Called by the navigation processor before each rule evaluation pass.
func ApplyLimits(cfg model.LimitConditions, t *model.ActivityTracking) {
	s := CheckLimits(cfg, t)
	t.AttemptLimitExceeded = s.AttemptLimitExceeded
	t.DurationLimitExceeded = s.DurationLimitExceeded
}

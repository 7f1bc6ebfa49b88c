package session

import (
	"errors"
	"fmt"
)

// RedirectionLoopError reports a contradictory rule configuration: a post- or
// exit-condition action re-triggered a second redirection within a single
// navigation request. Fatal; the call aborts without mutating session state.
type RedirectionLoopError struct {
	// Request is the caller's original navigation request.
	Request string

	// ActivityID is the activity whose rules redirected.
	ActivityID string

	// Redirects counts the redirections attempted.
	Redirects int
}

// Error implements the error interface.
func (e *RedirectionLoopError) Error() string {
	return fmt.Sprintf("redirection loop: request %q redirected %d times (activity %q)",
		e.Request, e.Redirects, e.ActivityID)
}

// IsRedirectionLoop reports whether err is (or wraps) a RedirectionLoopError.
func IsRedirectionLoop(err error) bool {
	var rle *RedirectionLoopError
	return errors.As(err, &rle)
}

// ErrUnknownActivity is returned by direct-path operations addressing an
// activity identifier that is not in the tree.
var ErrUnknownActivity = errors.New("unknown activity")

// ErrNotDeliverable is returned when a progress update addresses a cluster.
// Cluster status is only ever written by rollup.
var ErrNotDeliverable = errors.New("activity is not a launchable leaf")

// ErrSessionEnded is returned by mutating operations on an ended session.
var ErrSessionEnded = errors.New("session has ended")

package tree

import (
	"errors"
	"fmt"
)

// InvalidTreeError reports a malformed or unresolved sequencing
// configuration. Fatal: surfaced at session initialize, no session is
// created.
type InvalidTreeError struct {
	// ActivityID locates the offending activity, when known.
	ActivityID string

	// Field names the offending configuration field, when known.
	Field string

	// Message is a human-readable description.
	Message string
}

// Error implements the error interface.
func (e *InvalidTreeError) Error() string {
	switch {
	case e.ActivityID != "" && e.Field != "":
		return fmt.Sprintf("invalid tree: activity %q: %s: %s", e.ActivityID, e.Field, e.Message)
	case e.ActivityID != "":
		return fmt.Sprintf("invalid tree: activity %q: %s", e.ActivityID, e.Message)
	default:
		return fmt.Sprintf("invalid tree: %s", e.Message)
	}
}

// IsInvalidTree reports whether err is (or wraps) an InvalidTreeError.
func IsInvalidTree(err error) bool {
	var ite *InvalidTreeError
	return errors.As(err, &ite)
}

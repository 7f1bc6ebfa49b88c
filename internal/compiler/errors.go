package compiler

import (
	"errors"
	"fmt"
	"strings"

	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// SchemaIssue is one schema violation with its source position when the
// validator could attribute one.
type SchemaIssue struct {
	Path    string
	Message string
	Pos     token.Pos
}

func (i SchemaIssue) String() string {
	if i.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			i.Pos.Filename(), i.Pos.Line(), i.Pos.Column(), i.Path, i.Message)
	}
	if i.Path != "" {
		return fmt.Sprintf("%s: %s", i.Path, i.Message)
	}
	return i.Message
}

// SchemaError collects every violation found during schema validation; it
// does not fail fast.
type SchemaError struct {
	Issues []SchemaIssue
}

func (e *SchemaError) Error() string {
	if len(e.Issues) == 1 {
		return "invalid config: " + e.Issues[0].String()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "invalid config: %d violations:", len(e.Issues))
	for _, issue := range e.Issues {
		b.WriteString("\n  ")
		b.WriteString(issue.String())
	}
	return b.String()
}

// IsSchemaError reports whether err is (or wraps) a SchemaError, returning it.
func IsSchemaError(err error) (*SchemaError, bool) {
	var se *SchemaError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// newSchemaError splits a CUE validation error into per-violation issues.
func newSchemaError(err error) *SchemaError {
	se := &SchemaError{}
	for _, sub := range cueerrors.Errors(err) {
		issue := SchemaIssue{
			Path:    strings.Join(sub.Path(), "."),
			Message: sub.Error(),
		}
		if positions := cueerrors.Positions(sub); len(positions) > 0 {
			issue.Pos = positions[0]
		}
		se.Issues = append(se.Issues, issue)
	}
	if len(se.Issues) == 0 {
		se.Issues = append(se.Issues, SchemaIssue{Message: err.Error()})
	}
	return se
}

package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tdmcli/tdmcli/internal/ops"
)

// NotFoundError indicates no template matched the given name.
type NotFoundError struct {
	Type string // "template"
	ID   string // the name that was not found
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Type, e.ID)
}

// Is lets errors.Is treat a NotFoundError like ops.ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ops.ErrNotFound
}

// AmbiguousError indicates a name prefix matched more than one template.
type AmbiguousError struct {
	Prefix  string
	Matches []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("ambiguous name %q matches: %s", e.Prefix, strings.Join(e.Matches, ", "))
}

// ValidationError indicates a bad command-line argument.
type ValidationError struct {
	Field   string // the argument that failed validation
	Message string // what went wrong
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
	}
	return e.Message
}

// AbortedError indicates the user declined a confirmation prompt.
type AbortedError struct {
	Operation string
}

func (e *AbortedError) Error() string {
	return e.Operation + " aborted"
}

var hints = []struct {
	err  error
	hint string
}{
	{ops.ErrPartialFailure, "some files were already written; check the destination before retrying"},
	{ops.ErrInvalidArchive, "the file is not a tdmcli archive or it is damaged"},
	{ops.ErrInvalidName, `names cannot contain / \ < > : " | ? *, start with a dot, end with a dot or space, or be a reserved device name`},
	{ops.ErrNameConflict, "choose another name or delete the existing template first"},
	{ops.ErrNotFound, "run 'tdmcli list' to see registered templates"},
	{ops.ErrAccessDenied, "check the permissions of the directory involved"},
}

// Hint returns a suggestion for resolving err, or "" if there is none.
func Hint(err error) string {
	var amb *AmbiguousError
	if errors.As(err, &amb) {
		return "type more of the name to pick one template"
	}
	for _, h := range hints {
		if errors.Is(err, h.err) {
			return h.hint
		}
	}
	return ""
}

// FormatError returns a user-friendly error message.
// It prefixes the error with "error: " for consistent CLI output and adds a
// "hint: " line when one applies.
func FormatError(err error) string {
	if err == nil {
		return ""
	}
	msg := "error: " + err.Error()
	if hint := Hint(err); hint != "" {
		msg += "\nhint: " + hint
	}
	return msg
}

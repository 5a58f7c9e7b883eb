package cli

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tdmcli/tdmcli/internal/ops"
)

func TestNotFoundError(t *testing.T) {
	err := &NotFoundError{Type: "template", ID: "hello"}
	assert.Equal(t, `template "hello" not found`, err.Error())
	assert.ErrorIs(t, err, ops.ErrNotFound)
}

func TestAmbiguousError(t *testing.T) {
	err := &AmbiguousError{Prefix: "we", Matches: []string{"web", "webapp"}}
	assert.Equal(t, `ambiguous name "we" matches: web, webapp`, err.Error())
}

func TestValidationError(t *testing.T) {
	// With field
	err := &ValidationError{Field: "archive", Message: "must end in .tdmcli"}
	assert.Equal(t, "invalid archive: must end in .tdmcli", err.Error())

	// Without field
	err = &ValidationError{Message: "template name is required"}
	assert.Equal(t, "template name is required", err.Error())
}

func TestAbortedError(t *testing.T) {
	assert.Equal(t, "change-dir aborted", (&AbortedError{Operation: "change-dir"}).Error())
}

func TestFormatError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "nil error",
			err:  nil,
			want: "",
		},
		{
			name: "plain error has no hint",
			err:  errors.New("something went wrong"),
			want: "error: something went wrong",
		},
		{
			name: "name conflict",
			err:  &ops.Error{Op: "create", Name: "hello", Kind: ops.KindNameConflict, Err: errors.New(`template "hello" already exists`)},
			want: "error: create \"hello\": template \"hello\" already exists\n" +
				"hint: choose another name or delete the existing template first",
		},
		{
			name: "not found from prefix matching",
			err:  &NotFoundError{Type: "template", ID: "x"},
			want: "error: template \"x\" not found\n" +
				"hint: run 'tdmcli list' to see registered templates",
		},
		{
			name: "ambiguous prefix",
			err:  fmt.Errorf("get: %w", &AmbiguousError{Prefix: "w", Matches: []string{"web", "wiki"}}),
			want: "error: get: ambiguous name \"w\" matches: web, wiki\n" +
				"hint: type more of the name to pick one template",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatError(tt.err))
		})
	}
}

func TestHintPrefersPartialFailure(t *testing.T) {
	err := &ops.Error{Op: "get", Kind: ops.KindPartialFailure, Err: ops.ErrAccessDenied}
	assert.Contains(t, Hint(err), "already written")
}

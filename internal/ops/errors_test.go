package ops

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tdmcli/tdmcli/internal/archive"
	"github.com/tdmcli/tdmcli/internal/fsutil"
	"github.com/tdmcli/tdmcli/internal/model"
)

func TestErrorString(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "with name and path",
			err:  &Error{Op: "get", Name: "hello", Path: "/t/hello", Kind: KindNotFound, Err: errors.New("snapshot directory is missing")},
			want: `get "hello": snapshot directory is missing (/t/hello)`,
		},
		{
			name: "kind only",
			err:  &Error{Op: "list", Kind: KindIO},
			want: "list: i/o error",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestWrapErrorKinds(t *testing.T) {
	partial := &fsutil.PathError{Op: "copy", Path: "/x", Kind: fsutil.KindAccessDenied, Err: fs.ErrPermission, Partial: true}

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"missing file", &fs.PathError{Op: "open", Path: "/x", Err: fs.ErrNotExist}, KindNotFound},
		{"permission", &fs.PathError{Op: "open", Path: "/x", Err: fs.ErrPermission}, KindAccessDenied},
		{"exists", fmt.Errorf("wrap: %w", fsutil.ErrExists), KindNameConflict},
		{"archive", fmt.Errorf("%w: bad magic", archive.ErrInvalidArchive), KindInvalidArchive},
		{"name", fmt.Errorf("%w: empty", model.ErrInvalidName), KindInvalidName},
		{"partial copy", partial, KindPartialFailure},
		{"other", errors.New("boom"), KindIO},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := wrapError("op", "n", tt.err)
			assert.Equal(t, tt.want, err.Kind)
			assert.ErrorIs(t, err, tt.err)
		})
	}

	t.Run("partial copy also matches its cause", func(t *testing.T) {
		err := wrapError("get", "n", partial)
		assert.ErrorIs(t, err, ErrPartialFailure)
		assert.ErrorIs(t, err, ErrAccessDenied)
		assert.NotErrorIs(t, err, ErrNotFound)
	})

	t.Run("existing engine errors pass through", func(t *testing.T) {
		inner := newError("create", "x", KindNameConflict, "taken")
		assert.Same(t, inner, wrapError("other", "y", fmt.Errorf("ctx: %w", inner)))
	})
}

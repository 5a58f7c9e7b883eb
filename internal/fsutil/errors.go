// Package fsutil copies, moves, and removes directory trees.
package fsutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"syscall"
)

// Kind classifies a filesystem failure.
type Kind int

const (
	KindIO Kind = iota
	KindNotFound
	KindAccessDenied
	KindExists
	KindPartial
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindAccessDenied:
		return "access denied"
	case KindExists:
		return "already exists"
	case KindPartial:
		return "partial failure"
	default:
		return "i/o error"
	}
}

var (
	ErrNotFound     = errors.New("not found")
	ErrAccessDenied = errors.New("access denied")
	ErrExists       = errors.New("already exists")
	ErrPartial      = errors.New("partial failure")
)

// PathError records a failed operation on a single path.
type PathError struct {
	Op   string // "copy", "mkdir", "move", "remove", ...
	Path string // the path that failed
	Kind Kind
	Err  error

	// Partial is set when some entries were already written before the failure.
	Partial bool
}

func (e *PathError) Error() string {
	msg := fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
	if e.Partial {
		msg += " (some entries were already transferred)"
	}
	return msg
}

func (e *PathError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's kind so callers can use errors.Is.
func (e *PathError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrAccessDenied:
		return e.Kind == KindAccessDenied
	case ErrExists:
		return e.Kind == KindExists
	case ErrPartial:
		return e.Partial
	}
	return false
}

// newPathError classifies err and wraps it with op and path.
func newPathError(op, path string, err error) *PathError {
	var pe *PathError
	if errors.As(err, &pe) {
		return pe
	}
	return &PathError{Op: op, Path: path, Kind: classify(err), Err: err}
}

func classify(err error) Kind {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return KindNotFound
	case errors.Is(err, fs.ErrPermission), errors.Is(err, syscall.EROFS):
		return KindAccessDenied
	case errors.Is(err, fs.ErrExist):
		return KindExists
	default:
		return KindIO
	}
}

// IsDir reports whether path exists and is a directory.
// A missing path is not an error.
func IsDir(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, newPathError("stat", path, err)
	}
	return info.IsDir(), nil
}

// Exists reports whether anything exists at path.
func Exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

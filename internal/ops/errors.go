package ops

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/tdmcli/tdmcli/internal/archive"
	"github.com/tdmcli/tdmcli/internal/fsutil"
	"github.com/tdmcli/tdmcli/internal/model"
)

// Kind classifies an engine failure.
type Kind string

const (
	KindNotFound       Kind = "not found"
	KindNameConflict   Kind = "name already in use"
	KindInvalidName    Kind = "invalid name"
	KindInvalidPath    Kind = "invalid path"
	KindAccessDenied   Kind = "access denied"
	KindInvalidArchive Kind = "invalid archive"
	KindPartialFailure Kind = "partial failure"
	KindIO             Kind = "i/o error"
)

// Sentinel errors for use with errors.Is.
var (
	ErrNotFound       = errors.New("not found")
	ErrNameConflict   = errors.New("name already in use")
	ErrInvalidName    = errors.New("invalid name")
	ErrInvalidPath    = errors.New("invalid path")
	ErrAccessDenied   = errors.New("access denied")
	ErrInvalidArchive = errors.New("invalid archive")
	ErrPartialFailure = errors.New("partial failure")
)

var sentinelKinds = map[error]Kind{
	ErrNotFound:       KindNotFound,
	ErrNameConflict:   KindNameConflict,
	ErrInvalidName:    KindInvalidName,
	ErrInvalidPath:    KindInvalidPath,
	ErrAccessDenied:   KindAccessDenied,
	ErrInvalidArchive: KindInvalidArchive,
	ErrPartialFailure: KindPartialFailure,
}

// Error is returned by every engine operation. It names the command and
// template involved and keeps the underlying filesystem or archive error.
type Error struct {
	Op   string // command name, e.g. "create"
	Name string // template name, if any
	Path string // path involved, if not already part of Err
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Name != "" {
		fmt.Fprintf(&b, " %q", e.Name)
	}
	b.WriteString(": ")
	if e.Err != nil {
		b.WriteString(e.Err.Error())
	} else {
		b.WriteString(string(e.Kind))
	}
	if e.Path != "" {
		fmt.Fprintf(&b, " (%s)", e.Path)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error's kind, and also the sentinel of any
// kind the underlying error carries (a partial copy aborted by a permission
// error is both ErrPartialFailure and ErrAccessDenied).
func (e *Error) Is(target error) bool {
	k, ok := sentinelKinds[target]
	if !ok {
		return false
	}
	return e.Kind == k || (e.Err != nil && matches(e.Err, k))
}

// newError builds an Error with an explicit kind.
func newError(op, name string, kind Kind, format string, args ...any) *Error {
	return &Error{Op: op, Name: name, Kind: kind, Err: fmt.Errorf(format, args...)}
}

// wrapError classifies err and attaches the command and template name.
func wrapError(op, name string, err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Op: op, Name: name, Kind: kindOf(err), Err: err}
}

// kindOf classifies errors coming from the copier, the archive packer, and the
// filesystem. The order matters: a partial copy is reported as such even
// though it also carries the failing entry's kind.
func kindOf(err error) Kind {
	for _, k := range []Kind{
		KindInvalidArchive,
		KindInvalidName,
		KindPartialFailure,
		KindAccessDenied,
		KindNotFound,
		KindNameConflict,
	} {
		if matches(err, k) {
			return k
		}
	}
	return KindIO
}

func matches(err error, k Kind) bool {
	switch k {
	case KindNotFound:
		return errors.Is(err, fsutil.ErrNotFound) || errors.Is(err, fs.ErrNotExist)
	case KindNameConflict:
		return errors.Is(err, fsutil.ErrExists) || errors.Is(err, fs.ErrExist)
	case KindInvalidName:
		return errors.Is(err, model.ErrInvalidName)
	case KindAccessDenied:
		return errors.Is(err, fsutil.ErrAccessDenied) || errors.Is(err, fs.ErrPermission)
	case KindInvalidArchive:
		return errors.Is(err, archive.ErrInvalidArchive)
	case KindPartialFailure:
		return errors.Is(err, fsutil.ErrPartial)
	}
	return false
}

// MoveError reports the outcome of an aborted change-dir.
type MoveError struct {
	Moved      []string // templates moved before the failure
	Failed     string   // template whose move failed
	NotMoved   []string // templates never attempted
	RolledBack []string // moved templates successfully moved back
	Err        error
}

func (e *MoveError) Error() string {
	msg := fmt.Sprintf("moving %q failed: %v", e.Failed, e.Err)
	if len(e.Moved) > 0 {
		msg += fmt.Sprintf("; moved before failure: %s", strings.Join(e.Moved, ", "))
	}
	if len(e.NotMoved) > 0 {
		msg += fmt.Sprintf("; not moved: %s", strings.Join(e.NotMoved, ", "))
	}
	if len(e.Moved) > 0 {
		if len(e.RolledBack) == len(e.Moved) {
			msg += "; all moved templates were restored"
		} else {
			msg += fmt.Sprintf("; restored: %s", strings.Join(e.RolledBack, ", "))
		}
	}
	return msg
}

func (e *MoveError) Unwrap() error {
	return e.Err
}

// Package ops implements the template registry engine: create, get, delete,
// list, change-dir, import, export and validate.
//
// Every operation receives the Registry explicitly, mutates it only after the
// filesystem work succeeded, and persists it through the Store before
// returning. There is no other state between calls.
package ops

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tdmcli/tdmcli/internal/fsutil"
	"github.com/tdmcli/tdmcli/internal/log"
	"github.com/tdmcli/tdmcli/internal/model"
)

// stagingPrefix names in-progress snapshot directories inside the template
// directory. Template names cannot start with a dot, so these never collide.
const stagingPrefix = ".staging-"

// Options configures an Engine.
type Options struct {
	// Workers bounds concurrent file copies (0 uses fsutil.DefaultWorkers).
	Workers int

	// Now returns the current time (for tests).
	Now func() time.Time
}

// Engine orchestrates the registry store, the tree copier and the archive packer.
type Engine struct {
	store   Store
	workers int
	now     func() time.Time
}

// NewEngine returns an engine persisting through store.
func NewEngine(store Store, opts Options) *Engine {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{store: store, workers: opts.Workers, now: now}
}

// Load reads the registry from the store.
func (e *Engine) Load() (*model.Registry, error) {
	return e.store.Load()
}

// Execute validates cmd, loads the registry and runs the command against it.
func (e *Engine) Execute(ctx context.Context, cmd Command) (Result, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	reg, err := e.store.Load()
	if err != nil {
		return nil, &Error{Op: cmd.Op(), Kind: KindIO, Err: err}
	}
	return cmd.run(ctx, e, reg)
}

func (e *Engine) copyOptions() fsutil.CopyOptions {
	return fsutil.CopyOptions{Workers: e.workers}
}

// save persists reg, wrapping failures for op.
func (e *Engine) save(op, name string, reg *model.Registry) error {
	if err := e.store.Save(reg); err != nil {
		return wrapError(op, name, err)
	}
	return nil
}

// snapshotPath returns where the snapshot for name lives in reg's template directory.
func snapshotPath(reg *model.Registry, name string) string {
	return filepath.Join(reg.TemplateDirectory, name)
}

// newStagingDir returns a fresh staging path inside the template directory.
func newStagingDir(reg *model.Registry) string {
	return filepath.Join(reg.TemplateDirectory, stagingPrefix+uuid.NewString())
}

// isStagingDir reports whether a template directory entry is a leftover staging dir.
func isStagingDir(name string) bool {
	return strings.HasPrefix(name, stagingPrefix)
}

// commitStaging renames a fully written staging directory to its final place.
// The staging directory is removed if the rename fails.
func commitStaging(staging, dest string) error {
	if err := os.Rename(staging, dest); err != nil {
		discardStaging(staging)
		return err
	}
	return nil
}

// discardStaging removes a staging directory, logging failures.
func discardStaging(staging string) {
	if err := os.RemoveAll(staging); err != nil {
		log.Warn(log.CatEngine, "could not remove staging directory", "path", staging, "error", err)
	}
}

// isWithin reports whether path equals parent or lies below it.
func isWithin(path, parent string) bool {
	rel, err := filepath.Rel(parent, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// isOrphan reports whether t's snapshot directory is missing.
func isOrphan(t *model.Template) bool {
	ok, err := fsutil.IsDir(t.StoredPath)
	return err == nil && !ok
}

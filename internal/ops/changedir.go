package ops

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tdmcli/tdmcli/internal/fsutil"
	"github.com/tdmcli/tdmcli/internal/log"
	"github.com/tdmcli/tdmcli/internal/model"
)

// relocation is one planned snapshot move.
type relocation struct {
	name   string
	from   string
	to     string
	orphan bool
}

// ChangeDir moves every snapshot into dir and makes dir the template
// directory.
//
// All targets are checked before anything moves; if any already exists the
// command fails with KindNameConflict and nothing is touched. Snapshots are
// then moved one at a time. If a move fails, snapshots already moved are
// moved back and a KindPartialFailure error wrapping a *MoveError is
// returned. The registry changes only after every move succeeded.
func (e *Engine) ChangeDir(ctx context.Context, reg *model.Registry, dir string) (*ChangeDirResult, error) {
	const op = "change-dir"

	newDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, &Error{Op: op, Path: dir, Kind: KindInvalidPath, Err: err}
	}
	oldDir := reg.TemplateDirectory
	res := &ChangeDirResult{OldDir: oldDir, NewDir: newDir}
	if samePath(newDir, oldDir) {
		res.Unchanged = true
		return res, nil
	}

	for _, t := range reg.Templates() {
		if isWithin(newDir, t.StoredPath) {
			return nil, &Error{Op: op, Name: t.Name, Path: newDir, Kind: KindInvalidPath,
				Err: fmt.Errorf("new directory lies inside the snapshot of %q", t.Name)}
		}
	}
	if err := fsutil.EnsureWritableDir(newDir); err != nil {
		return nil, wrapError(op, "", err)
	}

	plan, err := planRelocation(reg, newDir)
	if err != nil {
		return nil, err
	}

	var moved []relocation
	for i, m := range plan {
		if m.orphan {
			log.Warn(log.CatEngine, "snapshot missing, updating path only", "name", m.name, "path", m.from)
			continue
		}
		err := ctx.Err()
		if err == nil {
			err = fsutil.MoveTree(ctx, m.from, m.to, e.copyOptions())
		}
		if err != nil {
			me := &MoveError{Failed: m.name, Err: err}
			for _, n := range plan[i+1:] {
				if !n.orphan {
					me.NotMoved = append(me.NotMoved, n.name)
				}
			}
			for _, mm := range moved {
				me.Moved = append(me.Moved, mm.name)
			}
			me.RolledBack = rollback(moved)
			log.Error(log.CatEngine, "change-dir aborted", "failed", m.name, "moved", len(moved), "error", err)
			return nil, &Error{Op: op, Name: m.name, Path: m.from, Kind: KindPartialFailure, Err: me}
		}
		log.Debug(log.CatEngine, "moved snapshot", "name", m.name, "from", m.from, "to", m.to)
		moved = append(moved, m)
	}

	next := reg.Clone()
	next.TemplateDirectory = newDir
	for _, m := range plan {
		next.Lookup(m.name).StoredPath = m.to
	}
	if err := e.store.Save(next); err != nil {
		rollback(moved)
		return nil, wrapError(op, "", err)
	}
	*reg = *next

	for _, m := range moved {
		res.Moved = append(res.Moved, m.name)
	}
	if empty, _ := fsutil.IsEmptyDir(oldDir); empty {
		if err := os.Remove(oldDir); err != nil {
			log.Warn(log.CatEngine, "could not remove old template directory", "path", oldDir, "error", err)
		} else {
			res.OldRemoved = true
		}
	}
	log.Info(log.CatEngine, "changed template directory", "from", oldDir, "to", newDir, "moved", len(moved))
	return res, nil
}

// planRelocation computes where each snapshot goes and refuses the whole
// change if any target is already taken. Snapshots inside the current
// template directory keep their relative path; others keep their base name.
func planRelocation(reg *model.Registry, newDir string) ([]relocation, error) {
	const op = "change-dir"

	var (
		plan      []relocation
		conflicts []string
		targets   = make(map[string]string)
	)
	for _, t := range reg.Templates() {
		rel := filepath.Base(t.StoredPath)
		if isSnapshotOf(reg, t.StoredPath) {
			rel, _ = filepath.Rel(reg.TemplateDirectory, t.StoredPath)
		}
		to := filepath.Join(newDir, rel)

		key := strings.ToLower(to)
		if other, ok := targets[key]; ok {
			conflicts = append(conflicts, fmt.Sprintf("%s (same target as %s)", t.Name, other))
			continue
		}
		targets[key] = t.Name

		if fsutil.Exists(to) {
			conflicts = append(conflicts, t.Name)
			continue
		}
		plan = append(plan, relocation{name: t.Name, from: t.StoredPath, to: to, orphan: isOrphan(t)})
	}

	if len(conflicts) > 0 {
		sort.Strings(conflicts)
		return nil, &Error{Op: op, Path: newDir, Kind: KindNameConflict,
			Err: fmt.Errorf("target already exists for: %s", strings.Join(conflicts, ", "))}
	}
	return plan, nil
}

// rollback moves already relocated snapshots back, newest first, and returns
// the names that were restored.
func rollback(moved []relocation) []string {
	var restored []string
	for i := len(moved) - 1; i >= 0; i-- {
		m := moved[i]
		if err := fsutil.MoveTree(context.Background(), m.to, m.from, fsutil.CopyOptions{}); err != nil {
			log.ErrorErr(log.CatEngine, "could not move snapshot back", err, "name", m.name, "path", m.to)
			continue
		}
		restored = append([]string{m.name}, restored...)
	}
	return restored
}

// samePath reports whether a and b name the same directory.
func samePath(a, b string) bool {
	if filepath.Clean(a) == filepath.Clean(b) {
		return true
	}
	ai, err := os.Stat(a)
	if err != nil {
		return false
	}
	bi, err := os.Stat(b)
	if err != nil {
		return false
	}
	return os.SameFile(ai, bi)
}

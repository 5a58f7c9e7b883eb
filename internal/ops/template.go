package ops

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tdmcli/tdmcli/internal/fsutil"
	"github.com/tdmcli/tdmcli/internal/ignore"
	"github.com/tdmcli/tdmcli/internal/log"
	"github.com/tdmcli/tdmcli/internal/model"
)

// CreateOptions selects which parts of the source tree go into a snapshot.
type CreateOptions struct {
	// Hidden includes directories whose name starts with a dot.
	Hidden bool
	// ExcludeIgnore leaves the .tdmignore file itself out of the snapshot.
	ExcludeIgnore bool
}

// Create snapshots the directory source as template name.
//
// The tree is copied into a staging directory inside the template directory
// and renamed into place only once the copy is complete, so a failed create
// never leaves a half-written snapshot under the template's name. When the
// template directory lies inside source it is skipped, as are hidden
// directories (unless copts.Hidden) and paths matched by source/.tdmignore.
func (e *Engine) Create(ctx context.Context, reg *model.Registry, name, source string, copts CreateOptions) (*CreateResult, error) {
	const op = "create"

	if err := validateName(op, name); err != nil {
		return nil, err
	}
	if existing := reg.Lookup(name); existing != nil {
		return nil, newError(op, name, KindNameConflict, "template %q already exists", existing.Name)
	}

	src, err := sourceDir(op, name, source)
	if err != nil {
		return nil, err
	}
	templateDir := reg.TemplateDirectory
	if isWithin(src, templateDir) {
		return nil, &Error{Op: op, Name: name, Path: src, Kind: KindInvalidPath,
			Err: fmt.Errorf("source lies inside the template directory")}
	}

	dest := snapshotPath(reg, name)
	if fsutil.Exists(dest) {
		return nil, &Error{Op: op, Name: name, Path: dest, Kind: KindNameConflict,
			Err: fmt.Errorf("snapshot directory already exists")}
	}
	if err := fsutil.EnsureWritableDir(templateDir); err != nil {
		return nil, wrapError(op, name, err)
	}

	rules, err := ignore.Load(src)
	if err != nil {
		return nil, &Error{Op: op, Name: name, Path: filepath.Join(src, ignore.FileName), Kind: KindInvalidPath, Err: err}
	}
	nested := ""
	if isWithin(templateDir, src) {
		rel, _ := filepath.Rel(src, templateDir)
		nested = filepath.ToSlash(rel)
		log.Debug(log.CatEngine, "skipping nested template directory", "rel", nested)
	}
	opts := e.copyOptions()
	opts.Skip = snapshotFilter(nested, rules, copts)

	staging := newStagingDir(reg)
	copied, err := fsutil.CopyTree(ctx, src, staging, opts)
	if err != nil {
		discardStaging(staging)
		return nil, wrapError(op, name, err)
	}
	if err := commitStaging(staging, dest); err != nil {
		return nil, wrapError(op, name, err)
	}

	t := &model.Template{Name: name, StoredPath: dest, Created: e.now().UTC().Truncate(time.Second)}
	reg.Add(t)
	if err := e.save(op, name, reg); err != nil {
		reg.Remove(name)
		if rmErr := os.RemoveAll(dest); rmErr != nil {
			log.Warn(log.CatEngine, "could not remove unregistered snapshot", "path", dest, "error", rmErr)
		}
		return nil, err
	}

	log.Info(log.CatEngine, "created template", "name", name, "src", src, "files", copied.Files, "skipped", copied.Skipped)
	return &CreateResult{Template: t, Copy: copied}, nil
}

// Get materializes template name into dest. dest is created if missing;
// existing files with the same relative path are overwritten and other files
// in dest are left alone.
func (e *Engine) Get(ctx context.Context, reg *model.Registry, name, dest string) (*GetResult, error) {
	const op = "get"

	t, err := lookup(op, reg, name)
	if err != nil {
		return nil, err
	}
	if err := requireSnapshot(op, t); err != nil {
		return nil, err
	}

	dst, err := filepath.Abs(dest)
	if err != nil {
		return nil, &Error{Op: op, Name: t.Name, Path: dest, Kind: KindInvalidPath, Err: err}
	}
	if isWithin(dst, t.StoredPath) {
		return nil, &Error{Op: op, Name: t.Name, Path: dst, Kind: KindInvalidPath,
			Err: fmt.Errorf("destination lies inside the snapshot")}
	}
	if fsutil.Exists(dst) {
		isDir, err := fsutil.IsDir(dst)
		if err != nil {
			return nil, wrapError(op, t.Name, err)
		}
		if !isDir {
			return nil, &Error{Op: op, Name: t.Name, Path: dst, Kind: KindInvalidPath,
				Err: fmt.Errorf("destination is not a directory")}
		}
	}

	copied, err := fsutil.CopyTree(ctx, t.StoredPath, dst, e.copyOptions())
	if err != nil {
		return nil, wrapError(op, t.Name, err)
	}

	log.Info(log.CatEngine, "materialized template", "name", t.Name, "dest", dst,
		"files", copied.Files, "overwritten", copied.Overwritten)
	return &GetResult{Template: t, Dest: dst, Copy: copied}, nil
}

// Delete removes template name from the registry and deletes its snapshot.
// A snapshot that is already gone is not an error. Snapshots outside the
// template directory are never removed from disk. The snapshot is only
// removed once the registry without it has been saved.
func (e *Engine) Delete(reg *model.Registry, name string) (*DeleteResult, error) {
	const op = "delete"

	t, err := lookup(op, reg, name)
	if err != nil {
		return nil, err
	}
	res := &DeleteResult{Name: t.Name}
	var trash string

	isDir, err := fsutil.IsDir(t.StoredPath)
	switch {
	case err != nil:
		return nil, wrapError(op, t.Name, err)
	case !isDir:
		res.Orphan = true
		log.Warn(log.CatEngine, "snapshot already missing", "name", t.Name, "path", t.StoredPath)
	case !isSnapshotOf(reg, t.StoredPath):
		res.Kept = true
		log.Warn(log.CatEngine, "snapshot outside template directory left on disk", "name", t.Name, "path", t.StoredPath)
	default:
		// Moved aside first so a failed save can put it back.
		trash = newStagingDir(reg)
		if err := os.Rename(t.StoredPath, trash); err != nil {
			return nil, wrapError(op, t.Name, err)
		}
	}

	reg.Remove(t.Name)
	if err := e.save(op, t.Name, reg); err != nil {
		reg.Add(t)
		if trash != "" {
			if rbErr := os.Rename(trash, t.StoredPath); rbErr != nil {
				log.Error(log.CatEngine, "could not restore snapshot", "name", t.Name, "path", trash, "error", rbErr)
			}
		}
		return nil, err
	}
	if trash != "" {
		if err := fsutil.RemoveTree(trash); err != nil {
			log.Warn(log.CatEngine, "could not remove deleted snapshot", "path", trash, "error", err)
		}
	}

	log.Info(log.CatEngine, "deleted template", "name", t.Name)
	return res, nil
}

// List returns the registered templates sorted by name. It never mutates
// the registry.
func (e *Engine) List(reg *model.Registry) *ListResult {
	res := &ListResult{TemplateDir: reg.TemplateDirectory, Templates: reg.Templates()}
	for _, t := range res.Templates {
		if isOrphan(t) {
			res.Orphans = append(res.Orphans, t.Name)
		}
	}
	return res
}

// snapshotFilter decides which source entries stay out of a snapshot.
// nested is the slash-separated path of a template directory inside the
// source, or "".
func snapshotFilter(nested string, rules *ignore.Rules, copts CreateOptions) func(string, fs.DirEntry) bool {
	return func(rel string, d fs.DirEntry) bool {
		if rel == ignore.FileName {
			return copts.ExcludeIgnore
		}
		if d.IsDir() {
			if rel == nested {
				return true
			}
			if !copts.Hidden && strings.HasPrefix(d.Name(), ".") {
				return true
			}
		}
		return rules.Match(rel)
	}
}

// lookup resolves name case-insensitively.
func lookup(op string, reg *model.Registry, name string) (*model.Template, error) {
	t := reg.Lookup(name)
	if t == nil {
		return nil, newError(op, name, KindNotFound, "no template named %q", name)
	}
	return t, nil
}

// requireSnapshot fails with KindNotFound when t's snapshot directory is missing.
func requireSnapshot(op string, t *model.Template) error {
	isDir, err := fsutil.IsDir(t.StoredPath)
	if err != nil {
		return wrapError(op, t.Name, err)
	}
	if !isDir {
		log.Warn(log.CatEngine, "registered template has no snapshot", "name", t.Name, "path", t.StoredPath)
		return &Error{Op: op, Name: t.Name, Path: t.StoredPath, Kind: KindNotFound,
			Err: fmt.Errorf("snapshot directory is missing")}
	}
	return nil
}

// sourceDir resolves source to an absolute directory path.
func sourceDir(op, name, source string) (string, error) {
	src, err := filepath.Abs(source)
	if err != nil {
		return "", &Error{Op: op, Name: name, Path: source, Kind: KindInvalidPath, Err: err}
	}
	isDir, err := fsutil.IsDir(src)
	if err != nil {
		return "", wrapError(op, name, err)
	}
	if !isDir {
		if fsutil.Exists(src) {
			return "", &Error{Op: op, Name: name, Path: src, Kind: KindInvalidPath,
				Err: fmt.Errorf("source is not a directory")}
		}
		return "", &Error{Op: op, Name: name, Path: src, Kind: KindNotFound,
			Err: fmt.Errorf("source directory does not exist")}
	}
	return src, nil
}

// isSnapshotOf reports whether path lies strictly inside reg's template directory.
func isSnapshotOf(reg *model.Registry, path string) bool {
	return isWithin(path, reg.TemplateDirectory) && filepath.Clean(path) != filepath.Clean(reg.TemplateDirectory)
}

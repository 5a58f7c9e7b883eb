package ops

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tdmcli/tdmcli/internal/archive"
	"github.com/tdmcli/tdmcli/internal/fsutil"
	"github.com/tdmcli/tdmcli/internal/log"
	"github.com/tdmcli/tdmcli/internal/model"
)

// Import registers the template stored in archiveFile. When name is empty
// the archive's file name without the .tdmcli extension is used.
// The archive header is checked before anything is written, and the tree is
// unpacked into a staging directory so a corrupt payload leaves no trace.
func (e *Engine) Import(ctx context.Context, reg *model.Registry, archiveFile, name string) (*ImportResult, error) {
	const op = "import"

	path, err := filepath.Abs(archiveFile)
	if err != nil {
		return nil, &Error{Op: op, Name: name, Path: archiveFile, Kind: KindInvalidPath, Err: err}
	}
	if _, err := archive.ReadHeader(path); err != nil {
		return nil, wrapError(op, name, err)
	}

	if name == "" {
		name = model.NameFromArchive(path)
	}
	if err := validateName(op, name); err != nil {
		return nil, err
	}
	if existing := reg.Lookup(name); existing != nil {
		return nil, newError(op, name, KindNameConflict, "template %q already exists", existing.Name)
	}

	dest := snapshotPath(reg, name)
	if fsutil.Exists(dest) {
		return nil, &Error{Op: op, Name: name, Path: dest, Kind: KindNameConflict,
			Err: fmt.Errorf("snapshot directory already exists")}
	}
	if err := fsutil.EnsureWritableDir(reg.TemplateDirectory); err != nil {
		return nil, wrapError(op, name, err)
	}

	staging := newStagingDir(reg)
	m, err := archive.Unpack(ctx, path, staging)
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

	log.Info(log.CatEngine, "imported template", "name", name, "archive", path, "files", m.Files)
	return &ImportResult{Template: t, Manifest: m}, nil
}

// Export writes template name to outDir/<name>.tdmcli, creating outDir if
// needed. An existing archive with the same name is replaced.
func (e *Engine) Export(ctx context.Context, reg *model.Registry, name, outDir string) (*ExportResult, error) {
	const op = "export"

	t, err := lookup(op, reg, name)
	if err != nil {
		return nil, err
	}
	if err := requireSnapshot(op, t); err != nil {
		return nil, err
	}

	out, err := filepath.Abs(outDir)
	if err != nil {
		return nil, &Error{Op: op, Name: t.Name, Path: outDir, Kind: KindInvalidPath, Err: err}
	}
	if isWithin(out, t.StoredPath) {
		return nil, &Error{Op: op, Name: t.Name, Path: out, Kind: KindInvalidPath,
			Err: fmt.Errorf("output directory lies inside the snapshot")}
	}
	if err := fsutil.EnsureWritableDir(out); err != nil {
		return nil, wrapError(op, t.Name, err)
	}

	file := filepath.Join(out, model.ArchiveFileName(t.Name))
	if fsutil.Exists(file) {
		log.Info(log.CatEngine, "replacing existing archive", "path", file)
	}
	m, err := archive.Pack(ctx, t.StoredPath, file)
	if err != nil {
		return nil, wrapError(op, t.Name, err)
	}

	log.Info(log.CatEngine, "exported template", "name", t.Name, "archive", file, "files", m.Files)
	return &ExportResult{Name: t.Name, Archive: file, Manifest: m}, nil
}

package ops

import (
	"context"
	"strings"

	"github.com/tdmcli/tdmcli/internal/archive"
	"github.com/tdmcli/tdmcli/internal/fsutil"
	"github.com/tdmcli/tdmcli/internal/model"
)

// Command is one engine operation. The set is closed: only the command
// types in this package implement it.
type Command interface {
	// Op returns the command name used in errors and logs.
	Op() string
	// Validate checks arguments that do not depend on the registry.
	Validate() error

	run(ctx context.Context, e *Engine, reg *model.Registry) (Result, error)
}

// Result is the typed outcome of a Command.
type Result interface {
	result()
}

// CreateCmd snapshots Source under Name.
type CreateCmd struct {
	Name    string
	Source  string
	Options CreateOptions
}

// GetCmd materializes template Name into Dest.
type GetCmd struct {
	Name string
	Dest string
}

// DeleteCmd removes template Name and its snapshot.
type DeleteCmd struct {
	Name string
}

// ListCmd lists registered templates.
type ListCmd struct{}

// ChangeDirCmd moves every snapshot into Dir and makes it the template directory.
type ChangeDirCmd struct {
	Dir string
}

// ImportCmd registers the template contained in Archive. An empty Name uses
// the archive file name without its extension.
type ImportCmd struct {
	Archive string
	Name    string
}

// ExportCmd writes template Name to OutDir/<Name>.tdmcli.
type ExportCmd struct {
	Name   string
	OutDir string
}

// ValidateCmd checks the registry against the template directory.
// With Fix, repairable problems are repaired.
type ValidateCmd struct {
	Fix bool
}

func (CreateCmd) Op() string    { return "create" }
func (GetCmd) Op() string       { return "get" }
func (DeleteCmd) Op() string    { return "delete" }
func (ListCmd) Op() string      { return "list" }
func (ChangeDirCmd) Op() string { return "change-dir" }
func (ImportCmd) Op() string    { return "import" }
func (ExportCmd) Op() string    { return "export" }
func (ValidateCmd) Op() string  { return "validate" }

func (c CreateCmd) Validate() error {
	if err := validateName(c.Op(), c.Name); err != nil {
		return err
	}
	return requirePath(c.Op(), c.Name, "source", c.Source)
}

func (c GetCmd) Validate() error {
	if err := requireName(c.Op(), c.Name); err != nil {
		return err
	}
	return requirePath(c.Op(), c.Name, "destination", c.Dest)
}

func (c DeleteCmd) Validate() error { return requireName(c.Op(), c.Name) }

func (ListCmd) Validate() error { return nil }

func (c ChangeDirCmd) Validate() error { return requirePath(c.Op(), "", "directory", c.Dir) }

func (c ImportCmd) Validate() error {
	if err := requirePath(c.Op(), c.Name, "archive", c.Archive); err != nil {
		return err
	}
	if c.Name != "" {
		return validateName(c.Op(), c.Name)
	}
	return nil
}

func (c ExportCmd) Validate() error {
	if err := requireName(c.Op(), c.Name); err != nil {
		return err
	}
	return requirePath(c.Op(), c.Name, "output directory", c.OutDir)
}

func (ValidateCmd) Validate() error { return nil }

func (c CreateCmd) run(ctx context.Context, e *Engine, reg *model.Registry) (Result, error) {
	return e.Create(ctx, reg, c.Name, c.Source, c.Options)
}

func (c GetCmd) run(ctx context.Context, e *Engine, reg *model.Registry) (Result, error) {
	return e.Get(ctx, reg, c.Name, c.Dest)
}

func (c DeleteCmd) run(_ context.Context, e *Engine, reg *model.Registry) (Result, error) {
	return e.Delete(reg, c.Name)
}

func (ListCmd) run(_ context.Context, e *Engine, reg *model.Registry) (Result, error) {
	return e.List(reg), nil
}

func (c ChangeDirCmd) run(ctx context.Context, e *Engine, reg *model.Registry) (Result, error) {
	return e.ChangeDir(ctx, reg, c.Dir)
}

func (c ImportCmd) run(ctx context.Context, e *Engine, reg *model.Registry) (Result, error) {
	return e.Import(ctx, reg, c.Archive, c.Name)
}

func (c ExportCmd) run(ctx context.Context, e *Engine, reg *model.Registry) (Result, error) {
	return e.Export(ctx, reg, c.Name, c.OutDir)
}

func (c ValidateCmd) run(_ context.Context, e *Engine, reg *model.Registry) (Result, error) {
	return e.Validate(reg, c.Fix)
}

// CreateResult describes a newly created template.
type CreateResult struct {
	Template *model.Template
	Copy     *fsutil.CopyResult
}

// GetResult describes a materialized template.
type GetResult struct {
	Template *model.Template
	Dest     string
	Copy     *fsutil.CopyResult
}

// DeleteResult describes a removed template.
type DeleteResult struct {
	Name string
	// Orphan is set when the snapshot directory was already missing.
	Orphan bool
	// Kept is set when the snapshot lies outside the template directory
	// and was left on disk.
	Kept bool
}

// ListResult holds the registered templates in name order.
type ListResult struct {
	TemplateDir string
	Templates   []*model.Template
	// Orphans names templates whose snapshot directory is missing.
	Orphans []string
}

// Names returns the template names in list order.
func (r *ListResult) Names() []string {
	names := make([]string, len(r.Templates))
	for i, t := range r.Templates {
		names[i] = t.Name
	}
	return names
}

// IsOrphan reports whether name was found without a snapshot directory.
func (r *ListResult) IsOrphan(name string) bool {
	for _, o := range r.Orphans {
		if strings.EqualFold(o, name) {
			return true
		}
	}
	return false
}

// ChangeDirResult describes a template directory change.
type ChangeDirResult struct {
	OldDir string
	NewDir string
	Moved  []string
	// Unchanged is set when the new directory equals the current one.
	Unchanged bool
	// OldRemoved is set when the old directory was left empty and removed.
	OldRemoved bool
}

// ImportResult describes an imported template.
type ImportResult struct {
	Template *model.Template
	Manifest *archive.Manifest
}

// ExportResult describes a written archive.
type ExportResult struct {
	Name     string
	Archive  string
	Manifest *archive.Manifest
}

func (*CreateResult) result()    {}
func (*GetResult) result()       {}
func (*DeleteResult) result()    {}
func (*ListResult) result()      {}
func (*ChangeDirResult) result() {}
func (*ImportResult) result()    {}
func (*ExportResult) result()    {}
func (*ValidateResult) result()  {}

func validateName(op, name string) error {
	if err := model.ValidateName(name); err != nil {
		return &Error{Op: op, Name: name, Kind: KindInvalidName, Err: err}
	}
	return nil
}

func requireName(op, name string) error {
	if strings.TrimSpace(name) == "" {
		return newError(op, "", KindInvalidName, "template name is required")
	}
	return nil
}

func requirePath(op, name, what, path string) error {
	if strings.TrimSpace(path) == "" {
		return newError(op, name, KindInvalidPath, "%s path is required", what)
	}
	return nil
}

package ops

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/tdmcli/tdmcli/internal/log"
	"github.com/tdmcli/tdmcli/internal/model"
)

// IssueKind classifies a registry consistency problem.
type IssueKind string

const (
	// IssueOrphan is a registered template whose snapshot directory is missing.
	IssueOrphan IssueKind = "orphaned entry"
	// IssueOutside is a snapshot stored outside the template directory.
	IssueOutside IssueKind = "outside template directory"
	// IssueUntracked is a directory in the template directory no template refers to.
	IssueUntracked IssueKind = "untracked directory"
	// IssueStaging is a staging directory left behind by an interrupted create or import.
	IssueStaging IssueKind = "leftover staging directory"
)

// Issue is one problem found by Validate.
type Issue struct {
	Kind  IssueKind
	Name  string // template name, empty for directories
	Path  string
	Fixed bool
}

// ValidateResult lists the problems found in the registry.
type ValidateResult struct {
	TemplateDir string
	Checked     int
	Issues      []Issue
}

// OK reports whether no problems were found.
func (r *ValidateResult) OK() bool {
	return len(r.Issues) == 0
}

// Fixed returns the number of repaired issues.
func (r *ValidateResult) Fixed() int {
	n := 0
	for _, is := range r.Issues {
		if is.Fixed {
			n++
		}
	}
	return n
}

// Validate compares the registry with the template directory. With fix,
// orphaned entries are dropped from the registry and leftover staging
// directories are removed. Untracked directories are only reported.
func (e *Engine) Validate(reg *model.Registry, fix bool) (*ValidateResult, error) {
	const op = "validate"

	res := &ValidateResult{TemplateDir: reg.TemplateDirectory, Checked: reg.Len()}
	tracked := make(map[string]bool)
	for _, t := range reg.Templates() {
		tracked[strings.ToLower(filepath.Clean(t.StoredPath))] = true
		switch {
		case isOrphan(t):
			res.Issues = append(res.Issues, Issue{Kind: IssueOrphan, Name: t.Name, Path: t.StoredPath})
		case !isSnapshotOf(reg, t.StoredPath):
			res.Issues = append(res.Issues, Issue{Kind: IssueOutside, Name: t.Name, Path: t.StoredPath})
		}
	}

	entries, err := os.ReadDir(reg.TemplateDirectory)
	if err != nil && !os.IsNotExist(err) {
		return nil, wrapError(op, "", err)
	}
	for _, de := range entries {
		if !de.IsDir() {
			continue
		}
		path := filepath.Join(reg.TemplateDirectory, de.Name())
		switch {
		case isStagingDir(de.Name()):
			res.Issues = append(res.Issues, Issue{Kind: IssueStaging, Path: path})
		case strings.HasPrefix(de.Name(), "."):
			// hidden, never a template
		case !tracked[strings.ToLower(path)]:
			res.Issues = append(res.Issues, Issue{Kind: IssueUntracked, Path: path})
		}
	}

	if !fix {
		return res, nil
	}

	next := reg.Clone()
	dropped := false
	for i := range res.Issues {
		is := &res.Issues[i]
		switch is.Kind {
		case IssueOrphan:
			next.Remove(is.Name)
			dropped = true
			is.Fixed = true
		case IssueStaging:
			if err := os.RemoveAll(is.Path); err != nil {
				log.Warn(log.CatEngine, "could not remove staging directory", "path", is.Path, "error", err)
				continue
			}
			is.Fixed = true
		}
	}
	if dropped {
		if err := e.save(op, "", next); err != nil {
			return nil, err
		}
		*reg = *next
	}

	log.Info(log.CatEngine, "validated registry", "issues", len(res.Issues), "fixed", res.Fixed())
	return res, nil
}

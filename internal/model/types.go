// Package model defines the core data structures for tdmcli.
package model

import (
	"sort"
	"strings"
	"time"
)

// RegistryVersion is the current version of the registry document.
const RegistryVersion = 1

// Template is a named snapshot of a directory tree.
type Template struct {
	Name       string    `yaml:"name"`
	StoredPath string    `yaml:"stored_path"`
	Created    time.Time `yaml:"created,omitempty"`
}

// Registry is the persisted mapping of template names to snapshot locations
// plus the configured template directory.
type Registry struct {
	Version           int                  `yaml:"version"`
	TemplateDirectory string               `yaml:"template_directory"`
	Entries           map[string]*Template `yaml:"-"`
}

// NewRegistry returns an empty registry rooted at templateDir.
func NewRegistry(templateDir string) *Registry {
	return &Registry{
		Version:           RegistryVersion,
		TemplateDirectory: templateDir,
		Entries:           make(map[string]*Template),
	}
}

// key returns the lookup key for a template name.
// Names are matched case-insensitively.
func key(name string) string {
	return strings.ToLower(name)
}

// Lookup returns the template with the given name, or nil.
func (r *Registry) Lookup(name string) *Template {
	if r.Entries == nil {
		return nil
	}
	return r.Entries[key(name)]
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	return r.Lookup(name) != nil
}

// Add registers t, replacing any entry with the same name.
func (r *Registry) Add(t *Template) {
	if r.Entries == nil {
		r.Entries = make(map[string]*Template)
	}
	r.Entries[key(t.Name)] = t
}

// Remove drops the entry for name. It reports whether an entry was removed.
func (r *Registry) Remove(name string) bool {
	k := key(name)
	if _, ok := r.Entries[k]; !ok {
		return false
	}
	delete(r.Entries, k)
	return true
}

// Len returns the number of registered templates.
func (r *Registry) Len() int {
	return len(r.Entries)
}

// Templates returns all templates sorted by name (case-insensitive).
func (r *Registry) Templates() []*Template {
	templates := make([]*Template, 0, len(r.Entries))
	for _, t := range r.Entries {
		templates = append(templates, t)
	}
	sort.Slice(templates, func(i, j int) bool {
		ki, kj := key(templates[i].Name), key(templates[j].Name)
		if ki != kj {
			return ki < kj
		}
		return templates[i].Name < templates[j].Name
	})
	return templates
}

// Names returns all template names sorted case-insensitively.
func (r *Registry) Names() []string {
	templates := r.Templates()
	names := make([]string, len(templates))
	for i, t := range templates {
		names[i] = t.Name
	}
	return names
}

// Clone returns a deep copy of the registry.
func (r *Registry) Clone() *Registry {
	c := &Registry{
		Version:           r.Version,
		TemplateDirectory: r.TemplateDirectory,
		Entries:           make(map[string]*Template, len(r.Entries)),
	}
	for k, t := range r.Entries {
		cp := *t
		c.Entries[k] = &cp
	}
	return c
}

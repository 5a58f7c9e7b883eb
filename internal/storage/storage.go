// Package storage persists the template registry and reads user configuration.
package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/tdmcli/tdmcli/internal/log"
	"github.com/tdmcli/tdmcli/internal/model"
)

const (
	// appDir is the name of the per-user configuration directory.
	appDir = "tdmcli"
	// registryFile is the name of the registry file within the root.
	registryFile = "registry.yaml"
	// backupSuffix is appended to the registry file name for the previous version.
	backupSuffix = ".bak"
	// templatesDir is the default template directory within the root.
	templatesDir = "templates"

	// homeEnv overrides the configuration root.
	homeEnv = "TDMCLI_HOME"
)

// Storage provides access to the registry file in the per-user configuration
// directory. The registry lives outside the template directory so it survives
// change-dir and accidental deletion of snapshots.
type Storage struct {
	root        string // directory containing registry.yaml
	templateDir string // template directory used when no registry exists yet
}

// DefaultRoot returns the per-user configuration directory for tdmcli.
// TDMCLI_HOME takes precedence over the platform default.
func DefaultRoot() (string, error) {
	if home := os.Getenv(homeEnv); home != "" {
		return filepath.Abs(home)
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate user config directory: %w", err)
	}
	return filepath.Join(dir, appDir), nil
}

// Open returns a Storage rooted at root, creating the directory if needed.
// templateDir is the template directory a fresh registry starts with;
// if empty it defaults to root/templates.
func Open(root, templateDir string) (*Storage, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", root, err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", root, err)
	}

	if templateDir == "" {
		templateDir = filepath.Join(root, templatesDir)
	}
	templateDir, err = filepath.Abs(templateDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", templateDir, err)
	}

	return &Storage{root: root, templateDir: templateDir}, nil
}

// Root returns the configuration directory.
func (s *Storage) Root() string {
	return s.root
}

// RegistryPath returns the path to the registry file.
func (s *Storage) RegistryPath() string {
	return filepath.Join(s.root, registryFile)
}

// BackupPath returns the path to the previous registry version.
func (s *Storage) BackupPath() string {
	return s.RegistryPath() + backupSuffix
}

// DefaultTemplateDir returns the template directory of a fresh registry.
func (s *Storage) DefaultTemplateDir() string {
	return s.templateDir
}

// Load reads the registry. A missing registry file is not an error: the
// first run gets an empty registry using the default template directory.
func (s *Storage) Load() (*model.Registry, error) {
	path := s.RegistryPath()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Debug(log.CatStore, "no registry yet, using defaults", "path", path, "template_dir", s.templateDir)
			return model.NewRegistry(s.templateDir), nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	r, err := model.UnmarshalRegistry(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if r.TemplateDirectory == "" {
		r.TemplateDirectory = s.templateDir
	}

	log.Debug(log.CatStore, "loaded registry", "path", path, "templates", r.Len())
	return r, nil
}

// Save writes the registry atomically: the new content goes to a temporary
// file in the same directory, which is synced and renamed over the registry.
// A reader never observes a half-written file. The previous registry is kept
// as registry.yaml.bak.
func (s *Storage) Save(r *model.Registry) error {
	data, err := model.MarshalRegistry(r)
	if err != nil {
		return err
	}

	path := s.RegistryPath()
	if err := backupFile(path, s.BackupPath()); err != nil {
		log.Warn(log.CatStore, "could not back up registry", "path", path, "error", err)
	}

	if err := writeFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	log.Debug(log.CatStore, "saved registry", "path", path, "templates", r.Len())
	return nil
}

// writeFileAtomic writes data to path through a temporary file and rename.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// backupFile copies path to backupPath. A missing source is not an error.
func backupFile(path, backupPath string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return writeFileAtomic(backupPath, data, 0o644)
}

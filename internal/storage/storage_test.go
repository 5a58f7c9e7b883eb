package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tdmcli/tdmcli/internal/model"
)

func TestOpen(t *testing.T) {
	t.Run("creates root directory", func(t *testing.T) {
		root := filepath.Join(t.TempDir(), "cfg", "tdmcli")

		s, err := Open(root, "")
		require.NoError(t, err)

		info, err := os.Stat(root)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
		assert.Equal(t, root, s.Root())
	})

	t.Run("default template dir is under root", func(t *testing.T) {
		root := t.TempDir()
		s, err := Open(root, "")
		require.NoError(t, err)

		assert.Equal(t, filepath.Join(root, "templates"), s.DefaultTemplateDir())
	})

	t.Run("explicit template dir is used", func(t *testing.T) {
		root := t.TempDir()
		tmplDir := filepath.Join(t.TempDir(), "mine")
		s, err := Open(root, tmplDir)
		require.NoError(t, err)

		assert.Equal(t, tmplDir, s.DefaultTemplateDir())
	})

	t.Run("root that is a file fails", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

		s, err := Open(file, "")
		require.Error(t, err)
		assert.Nil(t, s)
	})
}

func TestDefaultRoot(t *testing.T) {
	t.Run("TDMCLI_HOME overrides", func(t *testing.T) {
		home := t.TempDir()
		t.Setenv("TDMCLI_HOME", home)

		root, err := DefaultRoot()
		require.NoError(t, err)
		assert.Equal(t, home, root)
	})

	t.Run("falls back to user config dir", func(t *testing.T) {
		t.Setenv("TDMCLI_HOME", "")
		cfgDir, err := os.UserConfigDir()
		if err != nil {
			t.Skip("no user config dir on this system")
		}

		root, err := DefaultRoot()
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(cfgDir, "tdmcli"), root)
	})
}

func TestLoad(t *testing.T) {
	t.Run("first run returns empty registry", func(t *testing.T) {
		root := t.TempDir()
		s, err := Open(root, "")
		require.NoError(t, err)

		r, err := s.Load()
		require.NoError(t, err)
		assert.Equal(t, 0, r.Len())
		assert.Equal(t, filepath.Join(root, "templates"), r.TemplateDirectory)

		_, err = os.Stat(s.RegistryPath())
		assert.True(t, os.IsNotExist(err), "Load must not create the registry file")
	})

	t.Run("malformed registry returns error with filename", func(t *testing.T) {
		s, err := Open(t.TempDir(), "")
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(s.RegistryPath(), []byte("templates: [unclosed"), 0o644))

		_, err = s.Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "registry.yaml")
	})

	t.Run("missing template directory falls back to default", func(t *testing.T) {
		s, err := Open(t.TempDir(), "")
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(s.RegistryPath(), []byte("version: 1\n"), 0o644))

		r, err := s.Load()
		require.NoError(t, err)
		assert.Equal(t, s.DefaultTemplateDir(), r.TemplateDirectory)
	})
}

func TestSave(t *testing.T) {
	t.Run("save then load preserves registry", func(t *testing.T) {
		s, err := Open(t.TempDir(), "")
		require.NoError(t, err)

		created := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
		r := model.NewRegistry("/data/templates")
		r.Add(&model.Template{Name: "hello", StoredPath: "/data/templates/hello", Created: created})
		r.Add(&model.Template{Name: "World", StoredPath: "/data/templates/World"})

		require.NoError(t, s.Save(r))

		loaded, err := s.Load()
		require.NoError(t, err)
		assert.Equal(t, "/data/templates", loaded.TemplateDirectory)
		assert.Equal(t, []string{"hello", "World"}, loaded.Names())
		assert.True(t, loaded.Lookup("hello").Created.Equal(created))
	})

	t.Run("previous version is kept as backup", func(t *testing.T) {
		s, err := Open(t.TempDir(), "")
		require.NoError(t, err)

		r := model.NewRegistry("/t")
		r.Add(&model.Template{Name: "first", StoredPath: "/t/first"})
		require.NoError(t, s.Save(r))

		r.Add(&model.Template{Name: "second", StoredPath: "/t/second"})
		require.NoError(t, s.Save(r))

		backup, err := os.ReadFile(s.BackupPath())
		require.NoError(t, err)
		prev, err := model.UnmarshalRegistry(backup)
		require.NoError(t, err)
		assert.Equal(t, []string{"first"}, prev.Names())
	})

	t.Run("no temporary files are left behind", func(t *testing.T) {
		root := t.TempDir()
		s, err := Open(root, "")
		require.NoError(t, err)

		require.NoError(t, s.Save(model.NewRegistry("/t")))
		require.NoError(t, s.Save(model.NewRegistry("/t")))

		entries, err := os.ReadDir(root)
		require.NoError(t, err)
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		assert.ElementsMatch(t, []string{"registry.yaml", "registry.yaml.bak"}, names)
	})

	t.Run("failed save keeps previous registry readable", func(t *testing.T) {
		if os.Geteuid() == 0 {
			t.Skip("permission bits are not enforced")
		}
		root := t.TempDir()
		s, err := Open(root, "")
		require.NoError(t, err)

		r := model.NewRegistry("/t")
		r.Add(&model.Template{Name: "keep", StoredPath: "/t/keep"})
		require.NoError(t, s.Save(r))

		require.NoError(t, os.Chmod(root, 0o555))
		t.Cleanup(func() { os.Chmod(root, 0o755) })

		r.Add(&model.Template{Name: "lost", StoredPath: "/t/lost"})
		require.Error(t, s.Save(r))

		require.NoError(t, os.Chmod(root, 0o755))
		loaded, err := s.Load()
		require.NoError(t, err)
		assert.Equal(t, []string{"keep"}, loaded.Names())
	})
}

func TestStoragePaths(t *testing.T) {
	root := t.TempDir()
	s, err := Open(root, "")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(root, "registry.yaml"), s.RegistryPath())
	assert.Equal(t, filepath.Join(root, "registry.yaml.bak"), s.BackupPath())
	assert.Equal(t, filepath.Join(root, "config.yaml"), s.ConfigPath())
}

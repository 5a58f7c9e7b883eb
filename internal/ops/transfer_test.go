package ops

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportImport(t *testing.T) {
	ctx := context.Background()

	t.Run("round trip into another registry", func(t *testing.T) {
		src := t.TempDir()
		writeTree(t, src, map[string]string{
			"README.md":       "# hello",
			"cmd/app/main.go": "package main",
			"assets/":         "",
		})

		e1, _ := setupEngine(t)
		reg1 := loadRegistry(t, e1)
		_, err := e1.Create(ctx, reg1, "hello", src, CreateOptions{})
		require.NoError(t, err)

		out := filepath.Join(t.TempDir(), "exports")
		exp, err := e1.Export(ctx, reg1, "HELLO", out)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(out, "hello.tdmcli"), exp.Archive)
		assert.FileExists(t, exp.Archive)
		assert.Equal(t, 2, exp.Manifest.Files)

		e2, _ := setupEngine(t)
		reg2 := loadRegistry(t, e2)
		imp, err := e2.Import(ctx, reg2, exp.Archive, "")
		require.NoError(t, err)
		assert.Equal(t, "hello", imp.Template.Name)
		assert.Equal(t, testNow, imp.Template.Created)

		assert.Equal(t, readTree(t, src), readTree(t, imp.Template.StoredPath))
		assert.True(t, loadRegistry(t, e2).Has("hello"))

		dst := t.TempDir()
		_, err = e2.Get(ctx, reg2, "hello", dst)
		require.NoError(t, err)
		assert.Equal(t, readTree(t, src), readTree(t, dst))
	})

	t.Run("import under an explicit name", func(t *testing.T) {
		e, _ := setupEngine(t)
		reg := loadRegistry(t, e)
		_, err := e.Create(ctx, reg, "orig", t.TempDir(), CreateOptions{})
		require.NoError(t, err)
		exp, err := e.Export(ctx, reg, "orig", t.TempDir())
		require.NoError(t, err)

		imp, err := e.Import(ctx, reg, exp.Archive, "copy")
		require.NoError(t, err)
		assert.Equal(t, "copy", imp.Template.Name)
		assert.Equal(t, []string{"copy", "orig"}, reg.Names())
	})

	t.Run("import name conflict", func(t *testing.T) {
		e, _ := setupEngine(t)
		reg := loadRegistry(t, e)
		_, err := e.Create(ctx, reg, "dup", t.TempDir(), CreateOptions{})
		require.NoError(t, err)
		exp, err := e.Export(ctx, reg, "dup", t.TempDir())
		require.NoError(t, err)

		_, err = e.Import(ctx, reg, exp.Archive, "")
		assert.ErrorIs(t, err, ErrNameConflict)
		assert.Equal(t, 1, reg.Len())
	})

	t.Run("invalid archive leaves nothing behind", func(t *testing.T) {
		e, _ := setupEngine(t)
		reg := loadRegistry(t, e)
		bogus := filepath.Join(t.TempDir(), "bogus.tdmcli")
		require.NoError(t, os.WriteFile(bogus, []byte("PK\x03\x04 definitely a zip"), 0o644))

		_, err := e.Import(ctx, reg, bogus, "")
		assert.ErrorIs(t, err, ErrInvalidArchive)
		assert.Equal(t, 0, reg.Len())
		assert.NoDirExists(t, reg.TemplateDirectory)
	})

	t.Run("corrupt payload removes staging directory", func(t *testing.T) {
		e, _ := setupEngine(t)
		reg := loadRegistry(t, e)
		src := t.TempDir()
		writeTree(t, src, map[string]string{"big.txt": string(make([]byte, 64*1024))})
		_, err := e.Create(ctx, reg, "x", src, CreateOptions{})
		require.NoError(t, err)
		exp, err := e.Export(ctx, reg, "x", t.TempDir())
		require.NoError(t, err)

		data, err := os.ReadFile(exp.Archive)
		require.NoError(t, err)
		truncated := filepath.Join(t.TempDir(), "y.tdmcli")
		require.NoError(t, os.WriteFile(truncated, data[:len(data)/2], 0o644))

		_, err = e.Import(ctx, reg, truncated, "")
		assert.ErrorIs(t, err, ErrInvalidArchive)
		assert.False(t, reg.Has("y"))
		assert.Equal(t, []string{"x"}, dirNames(t, reg.TemplateDirectory))
	})

	t.Run("import name from archive must be valid", func(t *testing.T) {
		e, _ := setupEngine(t)
		reg := loadRegistry(t, e)
		_, err := e.Create(ctx, reg, "ok", t.TempDir(), CreateOptions{})
		require.NoError(t, err)
		exp, err := e.Export(ctx, reg, "ok", t.TempDir())
		require.NoError(t, err)

		renamed := filepath.Join(filepath.Dir(exp.Archive), "aux.tdmcli")
		require.NoError(t, os.Rename(exp.Archive, renamed))
		_, err = e.Import(ctx, reg, renamed, "")
		assert.ErrorIs(t, err, ErrInvalidName)
	})

	t.Run("missing archive is not found", func(t *testing.T) {
		e, _ := setupEngine(t)
		reg := loadRegistry(t, e)
		_, err := e.Import(ctx, reg, filepath.Join(t.TempDir(), "none.tdmcli"), "")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("export of unknown template", func(t *testing.T) {
		e, _ := setupEngine(t)
		reg := loadRegistry(t, e)
		_, err := e.Export(ctx, reg, "nope", t.TempDir())
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("export replaces an existing archive", func(t *testing.T) {
		e, _ := setupEngine(t)
		reg := loadRegistry(t, e)
		_, err := e.Create(ctx, reg, "x", t.TempDir(), CreateOptions{})
		require.NoError(t, err)
		out := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(out, "x.tdmcli"), []byte("stale"), 0o644))

		exp, err := e.Export(ctx, reg, "x", out)
		require.NoError(t, err)
		data, err := os.ReadFile(exp.Archive)
		require.NoError(t, err)
		assert.NotEqual(t, "stale", string(data))
		assert.Equal(t, []string{"x.tdmcli"}, dirNames(t, out))
	})

	t.Run("export to a file path is refused", func(t *testing.T) {
		e, _ := setupEngine(t)
		reg := loadRegistry(t, e)
		_, err := e.Create(ctx, reg, "x", t.TempDir(), CreateOptions{})
		require.NoError(t, err)
		file := filepath.Join(t.TempDir(), "f")
		require.NoError(t, os.WriteFile(file, nil, 0o644))

		_, err = e.Export(ctx, reg, "x", file)
		require.Error(t, err)
	})
}

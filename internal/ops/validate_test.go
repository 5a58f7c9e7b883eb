package ops

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tdmcli/tdmcli/internal/model"
)

func TestValidate(t *testing.T) {
	ctx := context.Background()

	t.Run("clean registry", func(t *testing.T) {
		e, _ := setupEngine(t)
		reg := loadRegistry(t, e)
		populate(t, e, reg, "a", "b")

		res, err := e.Validate(reg, false)
		require.NoError(t, err)
		assert.True(t, res.OK())
		assert.Equal(t, 2, res.Checked)
	})

	t.Run("missing template directory is fine", func(t *testing.T) {
		e, _ := setupEngine(t)
		reg := loadRegistry(t, e)

		res, err := e.Validate(reg, true)
		require.NoError(t, err)
		assert.True(t, res.OK())
	})

	t.Run("reports and fixes problems", func(t *testing.T) {
		e, _ := setupEngine(t)
		reg := loadRegistry(t, e)
		populate(t, e, reg, "kept", "ghost")
		require.NoError(t, os.RemoveAll(reg.Lookup("ghost").StoredPath))

		outside := t.TempDir()
		reg.Add(&model.Template{Name: "ext", StoredPath: outside})

		stale := filepath.Join(reg.TemplateDirectory, stagingPrefix+"0000")
		writeTree(t, stale, map[string]string{"half.txt": "x"})
		untracked := filepath.Join(reg.TemplateDirectory, "stray")
		require.NoError(t, os.MkdirAll(untracked, 0o755))

		res, err := e.Validate(reg, false)
		require.NoError(t, err)
		assert.Equal(t, []Issue{
			{Kind: IssueOutside, Name: "ext", Path: outside},
			{Kind: IssueOrphan, Name: "ghost", Path: filepath.Join(reg.TemplateDirectory, "ghost")},
			{Kind: IssueStaging, Path: stale},
			{Kind: IssueUntracked, Path: untracked},
		}, res.Issues)
		assert.Equal(t, 0, res.Fixed())
		assert.True(t, reg.Has("ghost"))

		res, err = e.Validate(reg, true)
		require.NoError(t, err)
		assert.Equal(t, 2, res.Fixed())
		assert.False(t, reg.Has("ghost"))
		assert.False(t, loadRegistry(t, e).Has("ghost"))
		assert.NoDirExists(t, stale)
		assert.DirExists(t, untracked)
		assert.DirExists(t, outside)

		res, err = e.Validate(reg, false)
		require.NoError(t, err)
		assert.Len(t, res.Issues, 2)
	})

	t.Run("runs through Execute", func(t *testing.T) {
		e, _ := setupEngine(t)
		res, err := e.Execute(ctx, ValidateCmd{})
		require.NoError(t, err)
		assert.True(t, res.(*ValidateResult).OK())
	})
}

package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindFilesByExtensions(t *testing.T) {
	// --- Arrange ---
	root := t.TempDir()
	for _, rel := range []string{"b.yaml", "a.json", "nested/c.HCL", "nested/deep/d.yml", "notes.txt"} {
		p := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	}

	// --- Act ---
	files, err := FindFilesByExtensions(root, ".yaml", ".yml", ".json", ".hcl")

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "a.json"),
		filepath.Join(root, "b.yaml"),
		filepath.Join(root, "nested", "c.HCL"),
		filepath.Join(root, "nested", "deep", "d.yml"),
	}, files)
}

func TestFindFilesByExtensions_Panics(t *testing.T) {
	assert.Panics(t, func() { _, _ = FindFilesByExtensions(t.TempDir()) })
	assert.Panics(t, func() { _, _ = FindFilesByExtensions(t.TempDir(), "") })
}

func TestFindFilesByExtensions_MissingRoot(t *testing.T) {
	_, err := FindFilesByExtensions(filepath.Join(t.TempDir(), "absent"), ".yaml")
	assert.Error(t, err)
}

package analyses_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/repolens/internal/domain/analyses"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func TestWalkStructure(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.js", "console.log('a');\n")
	writeFile(t, root, "b.py", "print('b')\n")
	writeFile(t, root, "README.md", "# readme\n")
	writeFile(t, root, "src/deep/nested/c.js", "x\n")
	writeFile(t, root, ".git/HEAD", "ref: refs/heads/main\n")

	s, err := analyses.WalkStructure(root)
	require.NoError(t, err)

	assert.Equal(t, 4, s.TotalFiles, "files under .git must not count")
	assert.Equal(t, 3, s.TotalDirs, "src, deep, nested; .git excluded")
	assert.Equal(t, 4, s.MaxDepth)
	assert.Equal(t, 2, s.Extensions[".js"])
	assert.Equal(t, 1, s.Extensions[".py"])
	assert.Equal(t, 1, s.Extensions[".md"])

	var sawNested bool
	for _, f := range s.Files {
		if f.Path == "src/deep/nested/c.js" {
			sawNested = true
			assert.False(t, f.IsDir)
			assert.Equal(t, ".js", f.Extension)
			assert.Equal(t, int64(2), f.Size)
		}
	}
	assert.True(t, sawNested)
}

func TestWalkStructure_EmptyRepository(t *testing.T) {
	s, err := analyses.WalkStructure(t.TempDir())
	require.NoError(t, err)

	assert.Zero(t, s.TotalFiles)
	assert.Zero(t, s.TotalDirs)
	assert.Zero(t, s.MaxDepth)
	assert.Empty(t, s.Files)
}

func TestWalkStructure_MissingRoot(t *testing.T) {
	_, err := analyses.WalkStructure(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestWalkStructure_DeepTree(t *testing.T) {
	root := t.TempDir()
	rel := ""
	for i := 0; i < 60; i++ {
		rel = filepath.Join(rel, "d")
	}
	writeFile(t, root, filepath.ToSlash(filepath.Join(rel, "leaf.go")), "package d\n")

	s, err := analyses.WalkStructure(root)
	require.NoError(t, err)
	assert.Equal(t, 61, s.MaxDepth)
	assert.Equal(t, 1, s.TotalFiles)
	assert.Equal(t, 60, s.TotalDirs)
}

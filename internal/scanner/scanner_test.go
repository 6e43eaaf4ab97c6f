package scanner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestScan_YieldsCodeFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/a.ts", "function f() {}")
	writeFile(t, root, "src/b.py", "def f(): pass")
	writeFile(t, root, "README.md", "# readme")
	writeFile(t, root, "image.png", "binary")

	files, err := New(root, 0, nil).Scan()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"src/a.ts", "src/b.py", "README.md"}, files)
}

func TestScan_IgnoresDefaultDirs(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/a.ts", "x")
	writeFile(t, root, "node_modules/pkg/index.js", "x")
	writeFile(t, root, ".git/config.json", "x")
	writeFile(t, root, "dist/out.js", "x")
	writeFile(t, root, ".syntheo/semantics/config.json", "{}")

	files, err := New(root, 0, nil).Scan()
	require.NoError(t, err)
	assert.Equal(t, []string{"src/a.ts"}, files)
}

func TestScan_ExcludePatterns(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/a.ts", "x")
	writeFile(t, root, "src/a.test.ts", "x")

	files, err := New(root, 0, []string{"*.test.ts"}).Scan()
	require.NoError(t, err)
	assert.Equal(t, []string{"src/a.ts"}, files)
}

func TestScan_MaxFileSize(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "small.ts", "x")
	writeFile(t, root, "big.ts", string(make([]byte, 2048)))

	files, err := New(root, 1024, nil).Scan()
	require.NoError(t, err)
	assert.Equal(t, []string{"small.ts"}, files)
}

func TestScan_SkipsSymlinkedDirs(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "real/a.ts", "x")
	if err := os.Symlink(filepath.Join(root, "real"), filepath.Join(root, "link")); err != nil {
		t.Skip("symlinks unavailable")
	}

	files, err := New(root, 0, nil).Scan()
	require.NoError(t, err)
	assert.Equal(t, []string{"real/a.ts"}, files)
}

func TestScan_EmptyWorkspace(t *testing.T) {
	files, err := New(t.TempDir(), 0, nil).Scan()
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestCandidate(t *testing.T) {
	s := New(t.TempDir(), 0, []string{"generated/*"})

	assert.True(t, s.Candidate("src/a.ts"))
	assert.False(t, s.Candidate("src/a.bin"))
	assert.False(t, s.Candidate("node_modules/x/y.js"))
	assert.False(t, s.Candidate("generated/a.ts"))
}

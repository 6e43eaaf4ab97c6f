package hasher

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashBytes(t *testing.T) {
	// Known SHA-256 of the empty string.
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", HashBytes(nil))
	assert.NotEqual(t, HashBytes([]byte("a")), HashBytes([]byte("b")))
}

func TestHashFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0644))

	hash, size, err := HashFile(path)
	require.NoError(t, err)
	assert.Equal(t, int64(5), size)
	assert.Equal(t, HashBytes([]byte("hello")), hash)
}

func TestHashFile_Missing(t *testing.T) {
	_, _, err := HashFile(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestBlockID_Deterministic(t *testing.T) {
	a := BlockID("src/a.ts", 1, 10, "function_declaration", 0)
	b := BlockID("src/a.ts", 1, 10, "function_declaration", 0)
	assert.Equal(t, a, b)
	assert.Len(t, a, 16)

	// Every component of the identity tuple participates.
	assert.NotEqual(t, a, BlockID("src/b.ts", 1, 10, "function_declaration", 0))
	assert.NotEqual(t, a, BlockID("src/a.ts", 2, 10, "function_declaration", 0))
	assert.NotEqual(t, a, BlockID("src/a.ts", 1, 11, "function_declaration", 0))
	assert.NotEqual(t, a, BlockID("src/a.ts", 1, 10, "class_declaration", 0))
	assert.NotEqual(t, a, BlockID("src/a.ts", 1, 10, "function_declaration", 1))
}

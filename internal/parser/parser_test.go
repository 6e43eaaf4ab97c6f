package parser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"src/app.ts", "typescript"},
		{"src/App.tsx", "tsx"},
		{"lib/util.js", "javascript"},
		{"main.py", "python"},
		{"server.go", "go"},
		{"README.md", "markdown"},
		{"schema.SQL", "sql"},
		{"binary.exe", ""},
		{"noext", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DetectLanguage(tt.path), tt.path)
	}
}

func TestParse_TypeScriptFunction(t *testing.T) {
	src := []byte("export function getUserById(id: string) { return db.users.find(id); }\n")

	root, err := New().Parse(context.Background(), src, "typescript")
	require.NoError(t, err)
	require.NotNil(t, root)

	fn := findKind(root, "function_declaration")
	require.NotNil(t, fn)
	assert.Equal(t, 1, fn.StartLine)
	assert.Equal(t, "getUserById", fn.Identifier())
}

func TestParse_PythonFunction(t *testing.T) {
	src := []byte("def fetch_user(id):\n    return db.users.get(id)\n")

	root, err := New().Parse(context.Background(), src, "python")
	require.NoError(t, err)

	fn := findKind(root, "function_definition")
	require.NotNil(t, fn)
	assert.Equal(t, "fetch_user", fn.Identifier())
	assert.Equal(t, 1, fn.StartLine)
	assert.Equal(t, 2, fn.EndLine)
}

func TestParse_UnknownLanguage(t *testing.T) {
	_, err := New().Parse(context.Background(), []byte("hello"), "cobol")
	assert.Error(t, err)
}

func findKind(n *Node, kind string) *Node {
	if n.Kind == kind {
		return n
	}
	for _, c := range n.Children {
		if found := findKind(c, kind); found != nil {
			return found
		}
	}
	return nil
}

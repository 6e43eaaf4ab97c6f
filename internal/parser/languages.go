package parser

import (
	"path/filepath"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// Registry maps language names to tree-sitter grammars.
type Registry struct {
	mu       sync.RWMutex
	grammars map[string]*sitter.Language
}

// DefaultRegistry returns a registry with the built-in grammars.
func DefaultRegistry() *Registry {
	r := &Registry{grammars: make(map[string]*sitter.Language)}
	r.Register("typescript", typescript.GetLanguage())
	r.Register("tsx", tsx.GetLanguage())
	r.Register("javascript", javascript.GetLanguage())
	r.Register("python", python.GetLanguage())
	r.Register("go", golang.GetLanguage())
	return r
}

// Register adds a grammar under the given language name.
func (r *Registry) Register(language string, lang *sitter.Language) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.grammars[language] = lang
}

// Grammar returns the grammar for a language, or nil.
func (r *Registry) Grammar(language string) *sitter.Language {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.grammars[language]
}

// extLanguages maps file extensions (without dot) to language names.
// Extensions without a grammar still get a language label; their files are
// indexed as whole-file blocks.
var extLanguages = map[string]string{
	"ts":    "typescript",
	"tsx":   "tsx",
	"js":    "javascript",
	"jsx":   "javascript",
	"mjs":   "javascript",
	"cjs":   "javascript",
	"py":    "python",
	"pyi":   "python",
	"go":    "go",
	"java":  "java",
	"rs":    "rust",
	"rb":    "ruby",
	"php":   "php",
	"cs":    "csharp",
	"kt":    "kotlin",
	"kts":   "kotlin",
	"swift": "swift",
	"html":  "html",
	"css":   "css",
	"scss":  "css",
	"sql":   "sql",
	"md":    "markdown",
	"json":  "json",
	"yaml":  "yaml",
	"yml":   "yaml",
	"xml":   "xml",
}

// DetectLanguage returns the language name for a file path, or "" when the
// extension is not recognized.
func DetectLanguage(path string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	return extLanguages[ext]
}

// KnownExtensions returns the set of recognized file extensions.
func KnownExtensions() map[string]bool {
	exts := make(map[string]bool, len(extLanguages))
	for ext := range extLanguages {
		exts[ext] = true
	}
	return exts
}

package scanner

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/syntheo/syntheo/internal/parser"
)

// maxDepth bounds the directory descent.
const maxDepth = 50

// defaultIgnoreDirs are skipped at any depth.
var defaultIgnoreDirs = map[string]bool{
	"node_modules": true,
	".git":         true,
	"dist":         true,
	"build":        true,
	"coverage":     true,
	".next":        true,
	".nuxt":        true,
	"target":       true,
	"bin":          true,
	"obj":          true,
	".syntheo":     true,
}

// Scanner walks a workspace yielding candidate source files.
type Scanner struct {
	root            string
	maxFileSize     int64
	excludePatterns []string
	extensions      map[string]bool
}

// New creates a scanner rooted at the workspace directory. excludePatterns
// are shell globs matched against slash-separated relative paths.
func New(root string, maxFileSize int64, excludePatterns []string) *Scanner {
	return &Scanner{
		root:            root,
		maxFileSize:     maxFileSize,
		excludePatterns: excludePatterns,
		extensions:      parser.KnownExtensions(),
	}
}

// Scan returns workspace-relative, slash-separated paths of candidate
// files in walk order. Symlinked directories are not followed.
func (s *Scanner) Scan() ([]string, error) {
	var files []string

	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable entries are skipped, not fatal.
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel, relErr := filepath.Rel(s.root, path)
		if relErr != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if s.SkipDir(d.Name()) {
				return filepath.SkipDir
			}
			if strings.Count(rel, "/")+1 > maxDepth {
				return filepath.SkipDir
			}
			// Symlink loops are avoided by not descending into symlinked
			// directories at all.
			if d.Type()&fs.ModeSymlink != 0 {
				return filepath.SkipDir
			}
			if s.excluded(rel) {
				return filepath.SkipDir
			}
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		if !s.Candidate(rel) {
			return nil
		}
		if s.maxFileSize > 0 {
			if info, err := d.Info(); err != nil || info.Size() > s.maxFileSize {
				return nil
			}
		}

		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// SkipDir reports whether a directory name is never descended into.
func (s *Scanner) SkipDir(name string) bool {
	return defaultIgnoreDirs[name] || strings.HasPrefix(name, ".")
}

// Candidate reports whether a relative path has an indexable extension and
// is not excluded. Used by the watcher to filter events with the same rules
// as the walk.
func (s *Scanner) Candidate(rel string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(rel), "."))
	if !s.extensions[ext] {
		return false
	}
	for _, part := range strings.Split(rel, "/") {
		if defaultIgnoreDirs[part] {
			return false
		}
	}
	return !s.excluded(rel)
}

func (s *Scanner) excluded(rel string) bool {
	for _, pattern := range s.excludePatterns {
		if ok, _ := filepath.Match(pattern, rel); ok {
			return true
		}
		if ok, _ := filepath.Match(pattern, filepath.Base(rel)); ok {
			return true
		}
	}
	return false
}

// Stat returns mtime (ms epoch) and size for a workspace-relative path.
func (s *Scanner) Stat(rel string) (mtimeMS, size int64, err error) {
	info, err := os.Stat(filepath.Join(s.root, filepath.FromSlash(rel)))
	if err != nil {
		return 0, 0, err
	}
	return info.ModTime().UnixMilli(), info.Size(), nil
}

// Abs resolves a workspace-relative path.
func (s *Scanner) Abs(rel string) string {
	return filepath.Join(s.root, filepath.FromSlash(rel))
}

package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Entry is the change-detection record for one file.
type Entry struct {
	Hash         string `json:"hash"`
	LastModified int64  `json:"lastModified"` // mtime, ms epoch
	Size         int64  `json:"size"`
}

// HashCache answers "has this file changed since last ingest?" without
// rehashing when the mtime matches. It is loaded at startup and persisted
// at the end of each ingest run.
type HashCache struct {
	mu      sync.Mutex
	path    string
	entries map[string]Entry
	dirty   bool
}

// Load reads the cache snapshot at path. A missing file yields an empty
// cache; a corrupt one is discarded and rebuilt on the next ingest.
func Load(path string) (*HashCache, error) {
	c := &HashCache{
		path:    path,
		entries: make(map[string]Entry),
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read hash cache: %w", err)
	}

	if err := json.Unmarshal(data, &c.entries); err != nil {
		c.entries = make(map[string]Entry)
		c.dirty = true
	}
	return c, nil
}

// MaybeChanged reports whether the file could have changed. It returns true
// unless an entry exists with a matching mtime; size is recorded but the
// mtime is authoritative.
func (c *HashCache) MaybeChanged(path string, mtimeMS, size int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[path]
	if !ok {
		return true
	}
	return entry.LastModified != mtimeMS
}

// ConfirmUnchanged is the second-chance check: given the freshly computed
// content hash, it reports whether the content is identical to the cached
// one, letting the caller skip re-embedding a touched-but-unmodified file.
func (c *HashCache) ConfirmUnchanged(path, contentHash string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[path]
	return ok && entry.Hash == contentHash
}

// Touch refreshes only the mtime of an existing entry, used after the
// second-chance check confirms unchanged content.
func (c *HashCache) Touch(path string, mtimeMS int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[path]
	if !ok {
		return
	}
	entry.LastModified = mtimeMS
	c.entries[path] = entry
	c.dirty = true
}

// Record upserts the entry after a successful ingest.
func (c *HashCache) Record(path, contentHash string, mtimeMS, size int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[path] = Entry{Hash: contentHash, LastModified: mtimeMS, Size: size}
	c.dirty = true
}

// Remove drops the entry for a deleted file.
func (c *HashCache) Remove(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[path]; !ok {
		return
	}
	delete(c.entries, path)
	c.dirty = true
}

// Len returns the number of cached files.
func (c *HashCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Persist writes the snapshot to disk only when dirty, then clears the
// dirty flag.
func (c *HashCache) Persist() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.dirty {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c.entries, "", "  ")
	if err != nil {
		return err
	}

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return err
	}
	c.dirty = false
	return nil
}

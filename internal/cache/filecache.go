// Package cache holds the two memoization layers behind incremental scans:
// a flat per-file cache and a recursive directory aggregate cache, plus the
// durable JSON store both persist to. Staleness is detected lazily by
// signature comparison on access; entries are never evicted by age.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/diskmon/diskmon/internal/signature"
)

const fileSchemaVersion = 1

// FileEntry is the last-known state of a single file. Entries are replaced
// wholesale on signature mismatch, never merged.
type FileEntry struct {
	Path      string              `json:"path"`
	Sig       signature.Signature `json:"sig"`
	Size      int64               `json:"size"`
	Tags      []string            `json:"tags,omitempty"`
	ScannedAt time.Time           `json:"scanned_at"`
}

// FileCache maps absolute paths to their last observed metadata and
// classification. Safe for concurrent use; each key is replaced atomically.
type FileCache struct {
	mu      sync.RWMutex
	entries map[string]FileEntry
}

// NewFileCache returns an empty file cache.
func NewFileCache() *FileCache {
	return &FileCache{entries: make(map[string]FileEntry)}
}

// Lookup stats path, compares the live signature against the stored entry
// and returns the entry when it is still valid. A miss is the expected
// common case and is never an error.
func (c *FileCache) Lookup(path string) (FileEntry, bool) {
	live, ok := signature.StatFile(path)
	if !ok {
		return FileEntry{}, false
	}
	return c.Match(path, live)
}

// Match compares an already computed live signature against the stored
// entry. The scan engine uses this form because it holds the stat result
// from directory enumeration.
func (c *FileCache) Match(path string, live signature.Signature) (FileEntry, bool) {
	if live.IsZero() {
		return FileEntry{}, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[path]
	if !ok || e.Sig != live {
		return FileEntry{}, false
	}
	return e, true
}

// Record replaces any existing entry for the path unconditionally.
func (c *FileCache) Record(e FileEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[e.Path] = e
}

// Purge removes the entry for path. Called after a downstream consumer
// deletes the file so the cache never reports a file that no longer exists.
func (c *FileCache) Purge(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, path)
}

// Prune drops entries whose path no longer exists on disk and returns the
// number removed.
func (c *FileCache) Prune() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for path := range c.entries {
		if _, err := os.Lstat(path); os.IsNotExist(err) {
			delete(c.entries, path)
			removed++
		}
	}
	return removed
}

// Clear empties the cache.
func (c *FileCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]FileEntry)
}

// Len returns the number of cached entries.
func (c *FileCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Entries returns a copy of the current mapping.
func (c *FileCache) Entries() map[string]FileEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]FileEntry, len(c.entries))
	for k, v := range c.entries {
		out[k] = v
	}
	return out
}

type fileSnapshot struct {
	Version int                  `json:"version"`
	SavedAt time.Time            `json:"saved_at"`
	Entries map[string]FileEntry `json:"entries"`
}

// Export serializes the full mapping as a versioned JSON blob.
func (c *FileCache) Export() ([]byte, error) {
	c.mu.RLock()
	snap := fileSnapshot{
		Version: fileSchemaVersion,
		SavedAt: time.Now(),
		Entries: make(map[string]FileEntry, len(c.entries)),
	}
	for k, v := range c.entries {
		snap.Entries[k] = v
	}
	c.mu.RUnlock()

	return json.MarshalIndent(snap, "", "  ")
}

// Import replaces the cache wholesale from a blob produced by Export.
// Blobs with an unknown schema version are rejected rather than silently
// misinterpreted.
func (c *FileCache) Import(blob []byte) error {
	var snap fileSnapshot
	if err := json.Unmarshal(blob, &snap); err != nil {
		return fmt.Errorf("failed to parse file cache blob: %w", err)
	}
	if snap.Version != fileSchemaVersion {
		return fmt.Errorf("unsupported file cache schema version %d", snap.Version)
	}

	entries := snap.Entries
	if entries == nil {
		entries = make(map[string]FileEntry)
	}

	c.mu.Lock()
	c.entries = entries
	c.mu.Unlock()
	return nil
}

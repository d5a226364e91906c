package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/diskmon/diskmon/internal/signature"
)

const dirSchemaVersion = 1

// DirSummary is the recursively computed aggregate for a directory subtree.
// Children are inlined copies, not references: a summary is self-contained
// and can be read or persisted independently of its parent.
//
// Invariant: TotalSize and FileCount equal the sum over direct files plus
// the sum of all children's TotalSize/FileCount.
type DirSummary struct {
	Sig       signature.Signature    `json:"sig"`
	TotalSize int64                  `json:"total_size"`
	FileCount int64                  `json:"file_count"`
	Partial   bool                   `json:"partial,omitempty"`
	Children  map[string]*DirSummary `json:"children,omitempty"`
}

// Clone returns a deep copy of the summary.
func (s *DirSummary) Clone() *DirSummary {
	if s == nil {
		return nil
	}
	out := &DirSummary{
		Sig:       s.Sig,
		TotalSize: s.TotalSize,
		FileCount: s.FileCount,
		Partial:   s.Partial,
	}
	if len(s.Children) > 0 {
		out.Children = make(map[string]*DirSummary, len(s.Children))
		for name, child := range s.Children {
			out.Children[name] = child.Clone()
		}
	}
	return out
}

// DirCount returns the number of directories in the subtree, counting the
// summary's own directory.
func (s *DirSummary) DirCount() int64 {
	if s == nil {
		return 0
	}
	n := int64(1)
	for _, child := range s.Children {
		n += child.DirCount()
	}
	return n
}

// DirCache maps (scan policy, directory path) to subtree summaries. The
// policy is part of the key because the same path has different, equally
// valid aggregates under different inclusion rules.
type DirCache struct {
	mu      sync.RWMutex
	entries map[string]*DirSummary
}

// NewDirCache returns an empty directory cache.
func NewDirCache() *DirCache {
	return &DirCache{entries: make(map[string]*DirSummary)}
}

// dirKey builds the composite cache key. The separator cannot appear in
// either component.
func dirKey(policyKey, path string) string {
	return policyKey + "\x00" + path
}

// splitDirKey returns the path component of a composite key.
func splitDirKey(key string) string {
	if i := strings.IndexByte(key, 0); i >= 0 {
		return key[i+1:]
	}
	return key
}

// Lookup stats the directory and returns its cached summary when the live
// signature still matches. The caller owns the returned copy.
func (c *DirCache) Lookup(path, policyKey string) (*DirSummary, bool) {
	live, ok := signature.StatDir(path)
	if !ok {
		return nil, false
	}
	return c.Match(path, policyKey, live)
}

// Match is Lookup with the live signature supplied by the caller.
func (c *DirCache) Match(path, policyKey string, live signature.Signature) (*DirSummary, bool) {
	if live.IsZero() {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.entries[dirKey(policyKey, path)]
	if !ok || s.Sig != live {
		return nil, false
	}
	return s.Clone(), true
}

// Record replaces the cached summary for (path, policyKey). The cache keeps
// its own deep copy so later mutation by the caller cannot corrupt it.
func (c *DirCache) Record(path, policyKey string, s *DirSummary) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[dirKey(policyKey, path)] = s.Clone()
}

// InvalidateSubtree removes cached summaries for path and, across every
// policy, for any key whose path is a descendant or an ancestor of it.
// Ancestors must go too: their totals are derived from the invalidated
// subtree, and because summaries inline their children a surviving
// ancestor entry would re-serve the dropped data wholesale on the next
// warm scan. Used when a consumer knows a subtree changed and wants
// recomputation instead of waiting for signature drift. Returns the
// number of entries removed.
func (c *DirCache) InvalidateSubtree(path string) int {
	sep := string(os.PathSeparator)
	prefix := strings.TrimSuffix(path, sep) + sep

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key := range c.entries {
		p := splitDirKey(key)
		stale := p == path || strings.HasPrefix(p, prefix)
		if !stale {
			stale = strings.HasPrefix(path, strings.TrimSuffix(p, sep)+sep)
		}
		if stale {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Prune drops entries whose directory no longer exists and returns the
// number removed.
func (c *DirCache) Prune() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key := range c.entries {
		if _, err := os.Stat(splitDirKey(key)); os.IsNotExist(err) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Clear empties the cache.
func (c *DirCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*DirSummary)
}

// Len returns the number of cached summaries.
func (c *DirCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

type dirSnapshot struct {
	Version int                    `json:"version"`
	SavedAt time.Time              `json:"saved_at"`
	Entries map[string]*DirSummary `json:"entries"`
}

// Export serializes the full mapping as a versioned JSON blob.
func (c *DirCache) Export() ([]byte, error) {
	c.mu.RLock()
	snap := dirSnapshot{
		Version: dirSchemaVersion,
		SavedAt: time.Now(),
		Entries: make(map[string]*DirSummary, len(c.entries)),
	}
	for k, v := range c.entries {
		snap.Entries[k] = v.Clone()
	}
	c.mu.RUnlock()

	return json.MarshalIndent(snap, "", "  ")
}

// Import replaces the cache wholesale from a blob produced by Export.
func (c *DirCache) Import(blob []byte) error {
	var snap dirSnapshot
	if err := json.Unmarshal(blob, &snap); err != nil {
		return fmt.Errorf("failed to parse directory cache blob: %w", err)
	}
	if snap.Version != dirSchemaVersion {
		return fmt.Errorf("unsupported directory cache schema version %d", snap.Version)
	}

	entries := snap.Entries
	if entries == nil {
		entries = make(map[string]*DirSummary)
	}

	c.mu.Lock()
	c.entries = entries
	c.mu.Unlock()
	return nil
}

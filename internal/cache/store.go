package cache

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	fileCacheName = "file_cache.json"
	dirCacheName  = "dir_cache.json"
)

// Store persists both caches as JSON files under a data directory. The
// cache is an optimization, not a source of truth: a missing or corrupted
// store loads as an empty cache instead of failing the scan.
type Store struct {
	dir string
}

// NewStore creates the data directory if needed and returns a store for it.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// DefaultDir returns the per-user cache directory. If the home directory
// cannot be determined the cache lands under the system temp directory.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "diskmon")
	}
	return filepath.Join(home, ".cache", "diskmon")
}

// Dir returns the store's data directory.
func (s *Store) Dir() string {
	return s.dir
}

// LoadFileCache reads the persisted file cache. Unreadable or incompatible
// data yields an empty cache.
func (s *Store) LoadFileCache() *FileCache {
	c := NewFileCache()
	blob, err := os.ReadFile(filepath.Join(s.dir, fileCacheName))
	if err != nil {
		return c
	}
	if err := c.Import(blob); err != nil {
		return NewFileCache()
	}
	return c
}

// LoadDirCache reads the persisted directory cache. Unreadable or
// incompatible data yields an empty cache.
func (s *Store) LoadDirCache() *DirCache {
	c := NewDirCache()
	blob, err := os.ReadFile(filepath.Join(s.dir, dirCacheName))
	if err != nil {
		return c
	}
	if err := c.Import(blob); err != nil {
		return NewDirCache()
	}
	return c
}

// SaveFileCache writes the file cache to durable storage.
func (s *Store) SaveFileCache(c *FileCache) error {
	blob, err := c.Export()
	if err != nil {
		return fmt.Errorf("failed to serialize file cache: %w", err)
	}
	return s.write(fileCacheName, blob)
}

// SaveDirCache writes the directory cache to durable storage.
func (s *Store) SaveDirCache(c *DirCache) error {
	blob, err := c.Export()
	if err != nil {
		return fmt.Errorf("failed to serialize directory cache: %w", err)
	}
	return s.write(dirCacheName, blob)
}

// write replaces the named cache file via a temp file and rename so a crash
// mid-write never leaves a truncated store behind.
func (s *Store) write(name string, blob []byte) error {
	tmp := filepath.Join(s.dir, name+".tmp")
	if err := os.WriteFile(tmp, blob, 0644); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(s.dir, name)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace cache file: %w", err)
	}
	return nil
}

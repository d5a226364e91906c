package cache

import (
	"os"
	"path/filepath"
	"testing"
)

func TestStoreLoadMissingYieldsEmpty(t *testing.T) {
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	if n := s.LoadFileCache().Len(); n != 0 {
		t.Errorf("expected empty file cache, got %d entries", n)
	}
	if n := s.LoadDirCache().Len(); n != 0 {
		t.Errorf("expected empty directory cache, got %d entries", n)
	}
}

func TestStoreCorruptFileYieldsEmpty(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir)
	if err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{fileCacheName, dirCacheName} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("{corrupt"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	// Corruption is recovered by starting fresh, never surfaced as a scan
	// failure.
	if n := s.LoadFileCache().Len(); n != 0 {
		t.Errorf("expected empty file cache from corrupt store, got %d", n)
	}
	if n := s.LoadDirCache().Len(); n != 0 {
		t.Errorf("expected empty directory cache from corrupt store, got %d", n)
	}
}

func TestStoreSaveLoadRoundTrip(t *testing.T) {
	dataDir := t.TempDir()
	s, err := NewStore(dataDir)
	if err != nil {
		t.Fatal(err)
	}

	scanned := t.TempDir()
	path := writeFile(t, scanned, "a.tmp", "hello")

	fc := NewFileCache()
	fc.Record(fileEntryFor(t, path))
	dc := NewDirCache()
	dc.Record(scanned, "p", dirSummaryFor(t, scanned))

	if err := s.SaveFileCache(fc); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveDirCache(dc); err != nil {
		t.Fatal(err)
	}

	if n := s.LoadFileCache().Len(); n != 1 {
		t.Errorf("expected 1 file entry after reload, got %d", n)
	}
	if n := s.LoadDirCache().Len(); n != 1 {
		t.Errorf("expected 1 directory entry after reload, got %d", n)
	}
}

func TestStoreWriteLeavesNoTempFiles(t *testing.T) {
	dataDir := t.TempDir()
	s, err := NewStore(dataDir)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SaveFileCache(NewFileCache()); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(dataDir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".tmp" {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

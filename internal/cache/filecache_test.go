package cache

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/diskmon/diskmon/internal/signature"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func fileEntryFor(t *testing.T, path string) FileEntry {
	t.Helper()
	sig, ok := signature.StatFile(path)
	if !ok {
		t.Fatalf("no signature for %s", path)
	}
	return FileEntry{
		Path:      path,
		Sig:       sig,
		Size:      sig.Size,
		ScannedAt: time.Now(),
	}
}

func TestFileCacheLookupMissIsNotAnError(t *testing.T) {
	c := NewFileCache()
	if _, ok := c.Lookup(filepath.Join(t.TempDir(), "nope")); ok {
		t.Error("expected miss for missing path")
	}
}

func TestFileCacheLookupHit(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.log", "hello")

	c := NewFileCache()
	c.Record(fileEntryFor(t, path))

	e, ok := c.Lookup(path)
	if !ok {
		t.Fatal("expected hit for unchanged file")
	}
	if e.Size != 5 {
		t.Errorf("expected size 5, got %d", e.Size)
	}
}

func TestFileCacheLookupInvalidAfterChange(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.log", "hello")

	c := NewFileCache()
	c.Record(fileEntryFor(t, path))

	writeFile(t, dir, "a.log", "hello, world")

	if _, ok := c.Lookup(path); ok {
		t.Error("expected miss after size change")
	}
}

func TestFileCacheRecordReplaces(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.log", "hello")

	c := NewFileCache()
	e := fileEntryFor(t, path)
	e.Tags = []string{"log file"}
	c.Record(e)

	// Full replace: the new entry has no tags and must not inherit any.
	e2 := fileEntryFor(t, path)
	c.Record(e2)

	got, ok := c.Lookup(path)
	if !ok {
		t.Fatal("expected hit")
	}
	if len(got.Tags) != 0 {
		t.Errorf("expected tags to be replaced, got %v", got.Tags)
	}
}

func TestFileCachePurge(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.log", "hello")

	c := NewFileCache()
	c.Record(fileEntryFor(t, path))
	c.Purge(path)

	if _, ok := c.Lookup(path); ok {
		t.Error("expected miss after purge")
	}
	if c.Len() != 0 {
		t.Errorf("expected empty cache, got %d entries", c.Len())
	}
}

func TestFileCachePrune(t *testing.T) {
	dir := t.TempDir()
	kept := writeFile(t, dir, "kept.log", "hello")
	gone := writeFile(t, dir, "gone.log", "hello")

	c := NewFileCache()
	c.Record(fileEntryFor(t, kept))
	c.Record(fileEntryFor(t, gone))

	if err := os.Remove(gone); err != nil {
		t.Fatal(err)
	}

	if removed := c.Prune(); removed != 1 {
		t.Errorf("expected 1 pruned entry, got %d", removed)
	}
	if _, ok := c.Lookup(kept); !ok {
		t.Error("prune removed a live entry")
	}
}

func TestFileCacheExportImportRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.log", "hello")

	c := NewFileCache()
	e := fileEntryFor(t, path)
	e.Tags = []string{"temporary file (.log)"}
	c.Record(e)

	blob, err := c.Export()
	if err != nil {
		t.Fatal(err)
	}

	fresh := NewFileCache()
	if err := fresh.Import(blob); err != nil {
		t.Fatal(err)
	}

	got, ok := fresh.Lookup(path)
	if !ok {
		t.Fatal("expected hit after import")
	}
	if len(got.Tags) != 1 || got.Tags[0] != "temporary file (.log)" {
		t.Errorf("tags lost in round trip: %v", got.Tags)
	}
}

func TestFileCacheImportRejectsGarbage(t *testing.T) {
	c := NewFileCache()
	if err := c.Import([]byte("{not json")); err == nil {
		t.Error("expected error for corrupt blob")
	}
}

func TestFileCacheImportRejectsUnknownVersion(t *testing.T) {
	c := NewFileCache()
	if err := c.Import([]byte(`{"version": 99, "entries": {}}`)); err == nil {
		t.Error("expected error for unknown schema version")
	}
}

func TestFileCacheImportReplacesWholesale(t *testing.T) {
	dir := t.TempDir()
	old := writeFile(t, dir, "old.log", "hello")

	c := NewFileCache()
	c.Record(fileEntryFor(t, old))

	empty := NewFileCache()
	blob, err := empty.Export()
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Import(blob); err != nil {
		t.Fatal(err)
	}
	if c.Len() != 0 {
		t.Errorf("import should replace wholesale, %d entries remain", c.Len())
	}
}

func TestFileCacheConcurrentAccess(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.log", "hello")

	c := NewFileCache()
	entry := fileEntryFor(t, path)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Record(entry)
				c.Lookup(path)
				c.Len()
			}
		}()
	}
	wg.Wait()

	if _, ok := c.Lookup(path); !ok {
		t.Error("expected hit after concurrent writes")
	}
}

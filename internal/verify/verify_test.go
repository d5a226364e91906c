package verify

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/diskmon/diskmon/internal/scan"
)

func writeBytes(t *testing.T, path string, n int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, make([]byte, n), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestRecountTotals(t *testing.T) {
	root := t.TempDir()
	writeBytes(t, filepath.Join(root, "a"), 1000)
	writeBytes(t, filepath.Join(root, "S", "b"), 2000)
	writeBytes(t, filepath.Join(root, "S", "T", "c"), 300)

	got, err := Recount(root, scan.Policy{})
	if err != nil {
		t.Fatal(err)
	}
	if got.TotalSize != 3300 || got.FileCount != 3 {
		t.Errorf("recount = %d/%d, want 3300/3", got.TotalSize, got.FileCount)
	}
}

func TestRecountRespectsPolicy(t *testing.T) {
	root := t.TempDir()
	writeBytes(t, filepath.Join(root, "a"), 1000)
	writeBytes(t, filepath.Join(root, "skipped", "b"), 2000)
	writeBytes(t, filepath.Join(root, "c.log"), 500)

	pol := scan.Policy{ExcludePatterns: []string{"skipped", "*.log"}}
	got, err := Recount(root, pol)
	if err != nil {
		t.Fatal(err)
	}
	if got.TotalSize != 1000 || got.FileCount != 1 {
		t.Errorf("recount = %d/%d, want 1000/1", got.TotalSize, got.FileCount)
	}
}

func TestRecountMatchesScan(t *testing.T) {
	root := t.TempDir()
	writeBytes(t, filepath.Join(root, "a"), 1000)
	writeBytes(t, filepath.Join(root, "S", "b"), 2000)

	e := scan.New(scan.Options{})
	pol := scan.Policy{}

	// Warm scan so the second pass is served from cache, then verify the
	// cached totals against an uncached recount.
	if _, err := e.Scan(context.Background(), root, pol, scan.Callbacks{}); err != nil {
		t.Fatal(err)
	}
	rep, err := e.Scan(context.Background(), root, pol, scan.Callbacks{})
	if err != nil {
		t.Fatal(err)
	}

	live, err := Recount(root, pol)
	if err != nil {
		t.Fatal(err)
	}
	if m := Check(rep, live); m != nil {
		t.Errorf("cached view disagrees with recount: %+v", m)
	}
}

func TestCheckReportsMismatch(t *testing.T) {
	rep := &scan.Report{TotalSize: 100, FileCount: 2}
	m := Check(rep, Result{TotalSize: 150, FileCount: 3})
	if m == nil {
		t.Fatal("expected mismatch")
	}
	if m.ReportedSize != 100 || m.LiveSize != 150 {
		t.Errorf("unexpected mismatch %+v", m)
	}
}

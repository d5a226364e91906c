package reporter

import (
	"testing"
	"time"
)

// ====== History Tests ======

func TestHistorySaveLoadRoundTrip(t *testing.T) {
	h, err := NewHistory(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	rec := sampleRecord()
	rec.ID = ""
	if err := h.Save(rec); err != nil {
		t.Fatal(err)
	}
	if rec.ID == "" {
		t.Fatal("Save did not assign an ID")
	}

	got, err := h.Load(rec.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Root != rec.Root || got.TotalSize != rec.TotalSize {
		t.Errorf("record lost in round trip: %+v", got)
	}
}

func TestHistoryListNewestFirst(t *testing.T) {
	h, err := NewHistory(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	old := sampleRecord()
	old.ID = "scan_old"
	old.Timestamp = time.Now().Add(-time.Hour)
	recent := sampleRecord()
	recent.ID = "scan_recent"
	recent.Timestamp = time.Now()

	if err := h.Save(old); err != nil {
		t.Fatal(err)
	}
	if err := h.Save(recent); err != nil {
		t.Fatal(err)
	}

	records, err := h.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 || records[0].ID != "scan_recent" {
		t.Errorf("unexpected ordering: %+v", records)
	}
}

func TestHistoryLatestMatchesRootAndPolicy(t *testing.T) {
	h, err := NewHistory(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	other := sampleRecord()
	other.ID = "scan_other"
	other.Root = "/other"
	match := sampleRecord()
	match.ID = "scan_match"

	if err := h.Save(other); err != nil {
		t.Fatal(err)
	}
	if err := h.Save(match); err != nil {
		t.Fatal(err)
	}

	got, err := h.Latest("/srv/data", "abc")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.ID != "scan_match" {
		t.Errorf("Latest = %+v, want scan_match", got)
	}

	none, err := h.Latest("/missing", "abc")
	if err != nil {
		t.Fatal(err)
	}
	if none != nil {
		t.Errorf("expected nil for unknown root, got %+v", none)
	}
}

func TestHistoryCleanOld(t *testing.T) {
	h, err := NewHistory(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	stale := sampleRecord()
	stale.ID = "scan_stale"
	stale.Timestamp = time.Now().AddDate(0, 0, -60)
	fresh := sampleRecord()
	fresh.ID = "scan_fresh"
	fresh.Timestamp = time.Now()

	if err := h.Save(stale); err != nil {
		t.Fatal(err)
	}
	if err := h.Save(fresh); err != nil {
		t.Fatal(err)
	}

	removed, err := h.CleanOld(30)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Errorf("removed %d records, want 1", removed)
	}

	records, err := h.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].ID != "scan_fresh" {
		t.Errorf("unexpected survivors: %+v", records)
	}
}

// ====== Delta Tests ======

func TestNewLargeFiles(t *testing.T) {
	prev := sampleRecord()
	cur := sampleRecord()
	cur.LargeFiles = append(cur.LargeFiles, LargeFile{Path: "/srv/data/new.bin", Size: 999})

	fresh := NewLargeFiles(prev, cur)
	if len(fresh) != 1 || fresh[0].Path != "/srv/data/new.bin" {
		t.Errorf("delta = %+v, want only new.bin", fresh)
	}
}

func TestNewLargeFilesNoPrevious(t *testing.T) {
	cur := sampleRecord()
	fresh := NewLargeFiles(nil, cur)
	if len(fresh) != len(cur.LargeFiles) {
		t.Errorf("expected all files new on first scan, got %d", len(fresh))
	}
}

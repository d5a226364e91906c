package reporter

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// History persists finished scan records, one JSON file per scan, so the
// current run can be compared against earlier ones.
type History struct {
	dir string
}

// NewHistory creates a history rooted at dir, creating it if needed.
func NewHistory(dir string) (*History, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}
	return &History{dir: dir}, nil
}

// Dir returns the history directory path.
func (h *History) Dir() string {
	return h.dir
}

// Save writes a record to disk, assigning an ID and timestamp when unset.
func (h *History) Save(rec *ScanRecord) error {
	if rec.ID == "" {
		rec.ID = fmt.Sprintf("scan_%d", time.Now().UnixNano())
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal scan record: %w", err)
	}

	filename := filepath.Join(h.dir, rec.ID+".json")
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write scan record: %w", err)
	}

	return nil
}

// Load reads a record by ID.
func (h *History) Load(id string) (*ScanRecord, error) {
	data, err := os.ReadFile(filepath.Join(h.dir, id+".json"))
	if err != nil {
		return nil, fmt.Errorf("failed to read scan record: %w", err)
	}

	var rec ScanRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal scan record: %w", err)
	}

	return &rec, nil
}

// List returns all saved records, newest first. Unreadable files are
// skipped.
func (h *History) List() ([]*ScanRecord, error) {
	entries, err := os.ReadDir(h.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read history directory: %w", err)
	}

	var records []*ScanRecord
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		id := entry.Name()[:len(entry.Name())-5]
		rec, err := h.Load(id)
		if err != nil {
			continue
		}
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Timestamp.After(records[j].Timestamp)
	})

	return records, nil
}

// Latest returns the most recent record matching root and policy, or nil
// when no earlier scan exists.
func (h *History) Latest(root, policyKey string) (*ScanRecord, error) {
	records, err := h.List()
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		if rec.Root == root && rec.PolicyKey == policyKey {
			return rec, nil
		}
	}
	return nil, nil
}

// Delete removes a record by ID.
func (h *History) Delete(id string) error {
	if err := os.Remove(filepath.Join(h.dir, id+".json")); err != nil {
		return fmt.Errorf("failed to delete scan record: %w", err)
	}
	return nil
}

// CleanOld removes records older than the given number of days and returns
// how many were deleted.
func (h *History) CleanOld(days int) (int, error) {
	records, err := h.List()
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().AddDate(0, 0, -days)
	removed := 0
	for _, rec := range records {
		if rec.Timestamp.Before(cutoff) {
			if err := h.Delete(rec.ID); err != nil {
				continue
			}
			removed++
		}
	}
	return removed, nil
}

// NewLargeFiles returns the large files in current that were absent from
// previous, keyed by path. A nil previous yields every large file.
func NewLargeFiles(previous, current *ScanRecord) []LargeFile {
	if current == nil {
		return nil
	}
	if previous == nil {
		return append([]LargeFile(nil), current.LargeFiles...)
	}

	known := make(map[string]bool, len(previous.LargeFiles))
	for _, f := range previous.LargeFiles {
		known[f.Path] = true
	}

	var fresh []LargeFile
	for _, f := range current.LargeFiles {
		if !known[f.Path] {
			fresh = append(fresh, f)
		}
	}
	return fresh
}

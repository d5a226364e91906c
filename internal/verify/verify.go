// Package verify recounts a subtree without consulting any cache and
// compares the result against what the incremental scanner reported. A
// disagreement means a cache summary went stale without its signature
// drifting (deep in-place writes) or the tree changed between runs.
package verify

import (
	"io/fs"
	"sync/atomic"

	"github.com/charlievieth/fastwalk"

	"github.com/diskmon/diskmon/internal/scan"
)

// Result holds the totals of one uncached recount.
type Result struct {
	TotalSize int64
	FileCount int64
	Errors    int64
}

// Recount walks root in parallel, applying the same exclusion policy as
// the scanner but bypassing every cache. Unreadable entries are counted as
// errors and skipped.
func Recount(root string, pol scan.Policy) (Result, error) {
	var size, count, errs atomic.Int64

	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			errs.Add(1)
			if d != nil && d.IsDir() {
				return fastwalk.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if path != root && pol.ExcludesDir(path) {
				return fastwalk.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if pol.ExcludesFile(path) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			errs.Add(1)
			return nil
		}
		size.Add(info.Size())
		count.Add(1)
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	return Result{
		TotalSize: size.Load(),
		FileCount: count.Load(),
		Errors:    errs.Load(),
	}, nil
}

// Mismatch describes a disagreement between the scanner's report and an
// uncached recount.
type Mismatch struct {
	ReportedSize  int64
	LiveSize      int64
	ReportedCount int64
	LiveCount     int64
}

// Check compares a scan report against a live recount; nil means the
// cached view is consistent with the filesystem.
func Check(rep *scan.Report, live Result) *Mismatch {
	if rep.TotalSize == live.TotalSize && rep.FileCount == live.FileCount {
		return nil
	}
	return &Mismatch{
		ReportedSize:  rep.TotalSize,
		LiveSize:      live.TotalSize,
		ReportedCount: rep.FileCount,
		LiveCount:     live.FileCount,
	}
}

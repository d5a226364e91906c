// Package reclaim deletes files a scan flagged as reclaimable and keeps
// the size caches consistent with what was removed. Every target passes
// safety checks before deletion: validated path, no symlink swap, minimum
// age. Dry-run reports what would be freed without touching anything.
package reclaim

import (
	"os"
	"time"

	"github.com/diskmon/diskmon/internal/reporter"
)

// DefaultMinAge is how recently a file may have been modified and still
// be eligible for removal. Freshly written files are left alone.
const DefaultMinAge = time.Hour

// Purger removes cache entries for deleted files. *scan.Engine satisfies it.
type Purger interface {
	PurgeEntry(path string)
}

// Options configures a Reclaimer.
type Options struct {
	// DryRun simulates removal without deleting anything.
	DryRun bool
	// MinAge skips files modified more recently than this. Zero means
	// DefaultMinAge.
	MinAge time.Duration
	// Purger receives a purge call for every deleted file so stale cache
	// entries never outlive the files they describe. Optional.
	Purger Purger
}

// Result is the outcome of a removal pass.
type Result struct {
	Deleted []string
	Freed   int64
	Skipped map[string]string
	Errors  []*RemoveError
	DryRun  bool
}

// Reclaimer deletes flagged files with safeguards.
type Reclaimer struct {
	dryRun    bool
	minAge    time.Duration
	purger    Purger
	validator *Validator
}

// New creates a Reclaimer.
func New(opts Options) *Reclaimer {
	minAge := opts.MinAge
	if minAge == 0 {
		minAge = DefaultMinAge
	}
	return &Reclaimer{
		dryRun:    opts.DryRun,
		minAge:    minAge,
		purger:    opts.Purger,
		validator: NewValidator(),
	}
}

// Validator exposes the path validator for callers that add protections.
func (r *Reclaimer) Validator() *Validator {
	return r.validator
}

// Remove deletes the given files. Individual failures are collected in the
// result, not returned: one stubborn file should not stop the rest.
func (r *Reclaimer) Remove(files []reporter.LargeFile) *Result {
	result := &Result{
		Skipped: make(map[string]string),
		DryRun:  r.dryRun,
	}

	if r.dryRun {
		for _, f := range files {
			result.Deleted = append(result.Deleted, f.Path)
			result.Freed += f.Size
		}
		return result
	}

	for _, f := range files {
		if err := r.removeWithRetry(f, result); err != nil {
			result.Errors = append(result.Errors, err)
		}
	}
	return result
}

var retryDelays = []time.Duration{
	100 * time.Millisecond,
	500 * time.Millisecond,
	2 * time.Second,
}

// removeWithRetry retries transient failures with backoff.
func (r *Reclaimer) removeWithRetry(f reporter.LargeFile, result *Result) *RemoveError {
	var lastErr *RemoveError
	for attempt := 0; ; attempt++ {
		lastErr = r.removeOne(f, result)
		if lastErr == nil || !lastErr.Retryable || attempt >= len(retryDelays) {
			return lastErr
		}
		time.Sleep(retryDelays[attempt])
	}
}

// removeOne deletes a single file after re-checking it is still what the
// scan saw. Lstat is used so a path swapped for a symlink between scan and
// removal is caught instead of followed.
func (r *Reclaimer) removeOne(f reporter.LargeFile, result *Result) *RemoveError {
	if err := r.validator.ValidateForRemoval(f.Path); err != nil {
		result.Skipped[f.Path] = err.Error()
		return &RemoveError{Path: f.Path, Reason: ReasonUnsafePath, Original: err}
	}

	info, err := os.Lstat(f.Path)
	if err != nil {
		if os.IsNotExist(err) {
			// Already gone. The cache entry still has to go.
			r.purge(f.Path)
			result.Skipped[f.Path] = "already removed"
			return nil
		}
		return categorizeError(f.Path, err)
	}

	if info.Mode()&os.ModeSymlink != 0 {
		result.Skipped[f.Path] = "path changed to a symlink"
		return &RemoveError{Path: f.Path, Reason: ReasonUnsafePath}
	}
	if info.IsDir() {
		result.Skipped[f.Path] = "is a directory"
		return &RemoveError{Path: f.Path, Reason: ReasonIsDirectory}
	}
	if time.Since(info.ModTime()) < r.minAge {
		result.Skipped[f.Path] = "modified too recently"
		return nil
	}

	if err := os.Remove(f.Path); err != nil {
		remErr := categorizeError(f.Path, err)
		result.Skipped[f.Path] = remErr.Reason.String()
		return remErr
	}

	r.purge(f.Path)
	result.Deleted = append(result.Deleted, f.Path)
	result.Freed += info.Size()
	return nil
}

func (r *Reclaimer) purge(path string) {
	if r.purger != nil {
		r.purger.PurgeEntry(path)
	}
}

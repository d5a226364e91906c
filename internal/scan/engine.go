// Package scan implements the incremental traversal engine. A scan descends
// from a root directory, consulting the file cache for leaves and the
// directory aggregate cache for whole subtrees, recomputes only stale
// branches, merges results bottom-up and persists checkpoints along the
// way. One engine owns its caches; there is no ambient global state, so
// independent engines can scan different roots concurrently.
package scan

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/tevino/abool/v2"

	"github.com/diskmon/diskmon/internal/cache"
	"github.com/diskmon/diskmon/internal/signature"
)

// DefaultCheckpointEvery is the number of processed entries between cache
// checkpoints when no explicit batch size is configured.
const DefaultCheckpointEvery = 500

// ErrScanRunning is returned when Scan is called while a traversal is
// already in flight on the same engine.
var ErrScanRunning = errors.New("scan already running")

var errCancelled = errors.New("scan cancelled")

// Classifier is the external predicate deciding whether a file is suspect.
// It returns human-readable reason tags, or nil for a clean file. The
// engine records the result; it has no opinion of its own.
type Classifier func(path string, info os.FileInfo) []string

// Options configures a new engine.
type Options struct {
	// Store provides durable cache persistence. When nil the engine runs
	// with in-memory caches only and checkpointing is disabled.
	Store *cache.Store

	// Classifier flags suspect files. When nil, nothing is flagged.
	Classifier Classifier

	// CheckpointEvery is the entry batch size between cache checkpoints.
	// Zero selects DefaultCheckpointEvery; negative disables checkpoints.
	CheckpointEvery int
}

// Engine orchestrates traversal passes over filesystem subtrees.
type Engine struct {
	files           *cache.FileCache
	dirs            *cache.DirCache
	store           *cache.Store
	classify        Classifier
	checkpointEvery int

	cancelled *abool.AtomicBool
	state     atomic.Int32

	// Filesystem access points, swappable in tests to count stat traffic.
	readDir func(string) ([]os.DirEntry, error)
	statDir func(string) (signature.Signature, bool)
}

// New builds an engine, loading previously persisted caches when a store is
// configured.
func New(opts Options) *Engine {
	e := &Engine{
		store:           opts.Store,
		classify:        opts.Classifier,
		checkpointEvery: opts.CheckpointEvery,
		cancelled:       abool.New(),
		readDir:         os.ReadDir,
		statDir:         signature.StatDir,
	}
	if e.classify == nil {
		e.classify = func(string, os.FileInfo) []string { return nil }
	}
	if e.checkpointEvery == 0 {
		e.checkpointEvery = DefaultCheckpointEvery
	}
	if e.store != nil {
		e.files = e.store.LoadFileCache()
		e.dirs = e.store.LoadDirCache()
	} else {
		e.files = cache.NewFileCache()
		e.dirs = cache.NewDirCache()
	}
	return e
}

// State returns the engine's current traversal state. Callers waiting for a
// cancelled scan must poll for a terminal state rather than assume the
// worker stopped the moment the flag was set.
func (e *Engine) State() State {
	return State(e.state.Load())
}

// Cancel requests cooperative cancellation of the running scan. Safe from
// any goroutine. A cancel issued while no scan is running is discarded
// when the next scan begins.
func (e *Engine) Cancel() {
	e.cancelled.Set()
}

// FileCache exposes the engine's file cache to collaborators (reporting,
// verification).
func (e *Engine) FileCache() *cache.FileCache {
	return e.files
}

// DirCache exposes the engine's directory aggregate cache.
func (e *Engine) DirCache() *cache.DirCache {
	return e.dirs
}

// PurgeEntry removes a file from the file cache. Called by cleanup tooling
// after it deletes the file.
func (e *Engine) PurgeEntry(path string) {
	e.files.Purge(path)
}

// InvalidateSubtree drops cached directory summaries for path, all of its
// descendants and all of its ancestors across every policy, forcing
// recomputation on the next scan. Ancestors are included because their
// inlined totals embed the invalidated subtree. Returns the number of
// summaries dropped.
func (e *Engine) InvalidateSubtree(path string) int {
	return e.dirs.InvalidateSubtree(filepath.Clean(path))
}

// PruneCaches drops cache entries whose paths no longer exist.
func (e *Engine) PruneCaches() (files, dirs int) {
	return e.files.Prune(), e.dirs.Prune()
}

// ClearCaches empties both caches.
func (e *Engine) ClearCaches() {
	e.files.Clear()
	e.dirs.Clear()
}

// ExportCaches serializes both caches for inspection or transfer.
func (e *Engine) ExportCaches() (fileBlob, dirBlob []byte, err error) {
	fileBlob, err = e.files.Export()
	if err != nil {
		return nil, nil, err
	}
	dirBlob, err = e.dirs.Export()
	if err != nil {
		return nil, nil, err
	}
	return fileBlob, dirBlob, nil
}

// ImportCaches replaces either cache from an exported blob; a nil blob
// leaves that cache untouched.
func (e *Engine) ImportCaches(fileBlob, dirBlob []byte) error {
	if fileBlob != nil {
		if err := e.files.Import(fileBlob); err != nil {
			return err
		}
	}
	if dirBlob != nil {
		if err := e.dirs.Import(dirBlob); err != nil {
			return err
		}
	}
	return nil
}

// SaveCaches persists both caches to the configured store.
func (e *Engine) SaveCaches() error {
	if e.store == nil {
		return nil
	}
	return errors.Join(
		e.store.SaveFileCache(e.files),
		e.store.SaveDirCache(e.dirs),
	)
}

// scanState carries per-invocation bookkeeping so concurrent invocations on
// distinct engines never share mutable traversal state.
type scanState struct {
	pol             Policy
	polKey          string
	cb              Callbacks
	progress        Progress
	large           int64
	suspect         int64
	sinceCheckpoint int
	errs            []string
}

func (st *scanState) recordError(path string, err error) {
	st.progress.Errors++
	if len(st.errs) < 100 {
		st.errs = append(st.errs, fmt.Sprintf("%s: %v", path, err))
	}
}

// Scan runs one traversal pass from root under the given policy, invoking
// callbacks as classified files and completed directory summaries become
// available. Cancellation yields OutcomeCancelled and a nil error; only a
// root that cannot be statted or enumerated yields OutcomeFailed.
func (e *Engine) Scan(ctx context.Context, root string, pol Policy, cb Callbacks) (*Report, error) {
	if !e.begin() {
		return nil, ErrScanRunning
	}

	start := time.Now()
	st := &scanState{pol: pol, polKey: pol.Key(), cb: cb}
	st.progress.StartTime = start

	rep := &Report{Root: root, PolicyKey: st.polKey}
	finish := func(s State, o Outcome) {
		rep.Outcome = o
		rep.CacheHits = st.progress.CacheHits
		rep.Skipped = st.progress.Skipped
		rep.LargeFiles = st.large
		rep.SuspectFiles = st.suspect
		rep.Errors = st.errs
		rep.Elapsed = time.Since(start)
		e.state.Store(int32(s))
	}

	info, err := os.Stat(root)
	if err != nil {
		finish(StateFailed, OutcomeFailed)
		rep.Reason = err.Error()
		return rep, fmt.Errorf("cannot scan root %s: %w", root, err)
	}
	if !info.IsDir() {
		finish(StateFailed, OutcomeFailed)
		rep.Reason = "not a directory"
		return rep, fmt.Errorf("cannot scan root %s: not a directory", root)
	}

	sum, scanErr := e.visitDir(ctx, st, filepath.Clean(root))

	// Final checkpoint: everything recorded so far is complete and
	// consistent, even when the pass itself was cancelled or failed.
	if err := e.SaveCaches(); err != nil {
		st.errs = append(st.errs, err.Error())
	}

	switch {
	case errors.Is(scanErr, errCancelled):
		finish(StateCancelled, OutcomeCancelled)
		rep.Reason = "cancelled"
		return rep, nil
	case scanErr != nil:
		finish(StateFailed, OutcomeFailed)
		rep.Reason = scanErr.Error()
		return rep, fmt.Errorf("cannot enumerate root %s: %w", root, scanErr)
	default:
		finish(StateCompleted, OutcomeCompleted)
		rep.TotalSize = sum.TotalSize
		rep.FileCount = sum.FileCount
		rep.Partial = sum.Partial
		return rep, nil
	}
}

// begin transitions the engine into Running and clears any stale cancel
// flag in the same step, so a Cancel left over from before the scan cannot
// abort it.
func (e *Engine) begin() bool {
	for {
		cur := e.state.Load()
		if State(cur) == StateRunning {
			return false
		}
		if e.state.CompareAndSwap(cur, int32(StateRunning)) {
			e.cancelled.UnSet()
			return true
		}
	}
}

func (e *Engine) interrupted(ctx context.Context) bool {
	return e.cancelled.IsSet() || ctx.Err() != nil
}

// visitDir computes the summary for one directory, reusing the cached
// summary wholesale when it validates. Cancellation aborts before a summary
// is written: an incomplete total cached as complete would corrupt every
// ancestor aggregate.
func (e *Engine) visitDir(ctx context.Context, st *scanState, dir string) (*cache.DirSummary, error) {
	if e.interrupted(ctx) {
		return nil, errCancelled
	}

	live, haveSig := e.statDir(dir)
	if haveSig {
		if cached, ok := e.dirs.Match(dir, st.polKey, live); ok && e.validateChildren(dir, cached) {
			// Credit the whole adopted subtree so warm and cold scans
			// report the same counters. The adopted directory itself was
			// already counted as an entry by its parent's loop.
			subDirs := cached.DirCount()
			st.progress.CacheHits++
			st.progress.Dirs += subDirs
			st.progress.Files += cached.FileCount
			st.progress.Entries += cached.FileCount + subDirs - 1
			st.progress.TotalSize += cached.TotalSize
			e.emitDir(st, dir, cached)
			e.emitProgress(st, dir)
			return cached, nil
		}
	}

	entries, err := e.readDir(dir)
	if err != nil {
		return nil, err
	}

	sum := &cache.DirSummary{Sig: live, Children: make(map[string]*cache.DirSummary)}

	for _, de := range entries {
		if e.interrupted(ctx) {
			return nil, errCancelled
		}
		path := filepath.Join(dir, de.Name())
		st.progress.Entries++

		typ := de.Type()
		switch {
		case typ.IsDir():
			if st.pol.ExcludesDir(path) {
				st.progress.Skipped++
				e.emitProgress(st, path)
				continue
			}
			child, err := e.visitDir(ctx, st, path)
			if err != nil {
				if errors.Is(err, errCancelled) {
					return nil, errCancelled
				}
				// Inaccessible subtree: skip it and flag the aggregate as
				// an undercount rather than failing the pass.
				st.recordError(path, err)
				sum.Partial = true
				continue
			}
			sum.Children[de.Name()] = child
			sum.TotalSize += child.TotalSize
			sum.FileCount += child.FileCount
			if child.Partial {
				sum.Partial = true
			}
		case typ&os.ModeSymlink != 0:
			// Never followed; counting the target would double-count.
			st.progress.Skipped++
		case typ.IsRegular():
			e.visitFile(st, path, de, sum)
		default:
			// Sockets, devices, pipes.
			st.progress.Skipped++
		}

		e.maybeCheckpoint(st)
		e.emitProgress(st, path)
	}

	if haveSig {
		e.dirs.Record(dir, st.polKey, sum)
	}
	st.progress.Dirs++
	e.emitDir(st, dir, sum)
	e.emitProgress(st, dir)
	return sum, nil
}

func (e *Engine) visitFile(st *scanState, path string, de os.DirEntry, sum *cache.DirSummary) {
	if st.pol.ExcludesFile(path) {
		st.progress.Skipped++
		return
	}

	info, err := de.Info()
	if err != nil {
		st.recordError(path, err)
		sum.Partial = true
		return
	}
	live := signature.File(info)

	entry, hit := e.files.Match(path, live)
	if hit {
		st.progress.CacheHits++
	} else {
		entry = cache.FileEntry{
			Path:      path,
			Sig:       live,
			Size:      info.Size(),
			Tags:      e.classify(path, info),
			ScannedAt: time.Now(),
		}
		e.files.Record(entry)
	}

	sum.TotalSize += entry.Size
	sum.FileCount++
	st.progress.Files++
	st.progress.TotalSize += entry.Size

	large := st.pol.MinFileSize > 0 && entry.Size >= st.pol.MinFileSize
	if large {
		st.large++
	}
	if len(entry.Tags) > 0 {
		st.suspect++
	}
	if (large || len(entry.Tags) > 0) && st.cb.OnFile != nil {
		st.cb.OnFile(FileResult{
			Path:      path,
			Size:      entry.Size,
			ModTime:   info.ModTime(),
			Large:     large,
			Tags:      entry.Tags,
			FromCache: hit,
		})
	}
}

// validateChildren checks that every cached child directory, recursively,
// still matches its live signature. Directory mtimes only reflect changes
// to immediate children, so adopting a cached subtree requires walking the
// cached child entries; this costs one stat per directory and no file
// stats. A write that modifies a deep file in place without disturbing any
// directory signature is not detected; verify.Recount exists to catch
// that drift.
func (e *Engine) validateChildren(dir string, sum *cache.DirSummary) bool {
	for name, child := range sum.Children {
		path := filepath.Join(dir, name)
		live, ok := e.statDir(path)
		if !ok || live != child.Sig {
			return false
		}
		if !e.validateChildren(path, child) {
			return false
		}
	}
	return true
}

func (e *Engine) maybeCheckpoint(st *scanState) {
	if e.store == nil || e.checkpointEvery <= 0 {
		return
	}
	st.sinceCheckpoint++
	if st.sinceCheckpoint < e.checkpointEvery {
		return
	}
	st.sinceCheckpoint = 0
	if err := e.SaveCaches(); err != nil {
		st.errs = append(st.errs, err.Error())
	}
}

func (e *Engine) emitDir(st *scanState, dir string, sum *cache.DirSummary) {
	if st.cb.OnDir != nil {
		st.cb.OnDir(DirResult{Path: dir, Summary: sum})
	}
}

func (e *Engine) emitProgress(st *scanState, path string) {
	if st.cb.OnProgress != nil {
		st.progress.CurrentPath = path
		st.cb.OnProgress(st.progress)
	}
}

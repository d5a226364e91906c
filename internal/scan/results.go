package scan

import (
	"time"

	"github.com/diskmon/diskmon/internal/cache"
)

// State is the engine's traversal state. Running is re-entrant across
// directory recursion; each directory visit is a sub-invocation of the same
// state, not a separate one.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateCancelled
	StateFailed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is the terminal result of one scan invocation. Cancellation is a
// normal outcome, not an error.
type Outcome int

const (
	OutcomeCompleted Outcome = iota
	OutcomeCancelled
	OutcomeFailed
)

// String returns a human-readable outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// FileResult is emitted as soon as a scanned file qualifies for reporting:
// Large when it meets the policy's size threshold, tagged when the external
// classifier flagged it. At least one of the two holds.
type FileResult struct {
	Path      string
	Size      int64
	ModTime   time.Time
	Large     bool
	Tags      []string
	FromCache bool
}

// DirResult is emitted once a directory's summary has been computed and
// recorded, always after all of its children's results.
type DirResult struct {
	Path    string
	Summary *cache.DirSummary
}

// Progress is a point-in-time snapshot published at entry granularity.
type Progress struct {
	CurrentPath string
	Entries     int64
	Files       int64
	Dirs        int64
	CacheHits   int64
	Skipped     int64
	Errors      int64
	TotalSize   int64
	StartTime   time.Time
}

// Callbacks receive incremental scan output. They are invoked from the scan
// goroutine; implementations that cross goroutines must be safe for that
// (the progress package provides a ready-made bridge).
type Callbacks struct {
	OnFile     func(FileResult)
	OnDir      func(DirResult)
	OnProgress func(Progress)
}

// Report is the terminal description of one scan invocation. Results
// already delivered through callbacks before a failure or cancellation
// remain valid and are not rolled back.
type Report struct {
	Root         string
	PolicyKey    string
	Outcome      Outcome
	Reason       string
	TotalSize    int64
	FileCount    int64
	LargeFiles   int64
	SuspectFiles int64
	CacheHits    int64
	Skipped      int64
	Partial      bool
	Errors       []string
	Elapsed      time.Duration
}

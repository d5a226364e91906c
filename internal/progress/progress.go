// Package progress fans scan progress out to interested consumers. The
// engine publishes from its own goroutine; subscribers (TUI, CLI progress
// bar, daemon log) receive snapshots over buffered channels and may lag
// without blocking the scan.
package progress

import (
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/diskmon/diskmon/internal/scan"
)

// Phase represents the current phase of operation
type Phase string

const (
	PhaseScanning  Phase = "scanning"
	PhaseComplete  Phase = "complete"
	PhaseCancelled Phase = "cancelled"
	PhaseError     Phase = "error"
)

// Update is one published progress snapshot.
type Update struct {
	Phase    Phase
	Snapshot scan.Progress
	Err      error
}

// Reporter provides thread-safe progress fan-out.
type Reporter struct {
	mu        sync.RWMutex
	last      *Update
	listeners []chan Update
}

// NewReporter creates a new progress reporter
func NewReporter() *Reporter {
	return &Reporter{
		listeners: make([]chan Update, 0),
	}
}

// Subscribe returns a channel that receives progress updates
func (r *Reporter) Subscribe() <-chan Update {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch := make(chan Update, 16)
	r.listeners = append(r.listeners, ch)
	return ch
}

// Unsubscribe closes and removes a listener channel
func (r *Reporter) Unsubscribe(ch <-chan Update) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, listener := range r.listeners {
		if listener == ch {
			close(listener)
			r.listeners = append(r.listeners[:i], r.listeners[i+1:]...)
			return
		}
	}
}

// Publish records the update and notifies listeners without blocking; a
// slow listener misses intermediate snapshots.
func (r *Reporter) Publish(u Update) {
	r.mu.Lock()
	r.last = &u
	listeners := make([]chan Update, len(r.listeners))
	copy(listeners, r.listeners)
	r.mu.Unlock()

	for _, listener := range listeners {
		select {
		case listener <- u:
		default:
		}
	}
}

// Finish publishes the terminal update and closes all listener channels so
// ranging subscribers terminate. A listener whose buffer is full misses the
// terminal snapshot; Last always holds it.
func (r *Reporter) Finish(phase Phase, snapshot scan.Progress, err error) {
	u := Update{Phase: phase, Snapshot: snapshot, Err: err}

	r.mu.Lock()
	r.last = &u
	listeners := r.listeners
	r.listeners = nil
	r.mu.Unlock()

	for _, listener := range listeners {
		select {
		case listener <- u:
		default:
		}
		close(listener)
	}
}

// Last returns the most recent update, or nil before the first publish.
func (r *Reporter) Last() *Update {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.last
}

// Callback adapts the reporter to the engine's progress hook.
func (r *Reporter) Callback() func(scan.Progress) {
	return func(p scan.Progress) {
		r.Publish(Update{Phase: PhaseScanning, Snapshot: p})
	}
}

// Format returns a single-line human-readable rendering of an update.
func Format(u *Update) string {
	if u == nil {
		return "Initializing..."
	}

	p := u.Snapshot
	elapsed := time.Since(p.StartTime)

	switch u.Phase {
	case PhaseScanning:
		return fmt.Sprintf("Scanning... %d files, %d dirs (%s) [%s]",
			p.Files,
			p.Dirs,
			humanize.IBytes(uint64(p.TotalSize)),
			FormatDuration(elapsed))
	case PhaseComplete:
		return fmt.Sprintf("Scan complete: %d files (%s) in %s, %d cache hits",
			p.Files,
			humanize.IBytes(uint64(p.TotalSize)),
			FormatDuration(elapsed),
			p.CacheHits)
	case PhaseCancelled:
		return fmt.Sprintf("Scan cancelled after %s (%d files seen)",
			FormatDuration(elapsed), p.Files)
	case PhaseError:
		return fmt.Sprintf("Scan error: %v", u.Err)
	default:
		return "Scanning..."
	}
}

// FormatDuration formats duration in human-readable format
func FormatDuration(d time.Duration) string {
	d = d.Round(time.Second)

	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

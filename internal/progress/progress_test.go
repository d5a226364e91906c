package progress

import (
	"strings"
	"testing"
	"time"

	"github.com/diskmon/diskmon/internal/scan"
)

func TestSubscribeReceivesUpdates(t *testing.T) {
	r := NewReporter()
	ch := r.Subscribe()

	r.Publish(Update{Phase: PhaseScanning, Snapshot: scan.Progress{Files: 3}})

	select {
	case u := <-ch:
		if u.Snapshot.Files != 3 {
			t.Errorf("got %d files, want 3", u.Snapshot.Files)
		}
	case <-time.After(time.Second):
		t.Fatal("no update received")
	}
}

func TestPublishDoesNotBlockOnSlowListener(t *testing.T) {
	r := NewReporter()
	r.Subscribe() // never drained

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			r.Publish(Update{Phase: PhaseScanning})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full listener channel")
	}
}

func TestFinishClosesListeners(t *testing.T) {
	r := NewReporter()
	ch := r.Subscribe()

	r.Finish(PhaseComplete, scan.Progress{Files: 2}, nil)

	var last Update
	for u := range ch {
		last = u
	}
	if last.Phase != PhaseComplete {
		t.Errorf("terminal phase = %s, want complete", last.Phase)
	}
	if r.Last().Phase != PhaseComplete {
		t.Error("Last() does not reflect terminal update")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	r := NewReporter()
	ch := r.Subscribe()
	r.Unsubscribe(ch)

	if _, open := <-ch; open {
		t.Error("channel still open after unsubscribe")
	}
	r.Publish(Update{Phase: PhaseScanning})
}

func TestCallbackPublishes(t *testing.T) {
	r := NewReporter()
	ch := r.Subscribe()

	cb := r.Callback()
	cb(scan.Progress{Files: 7, TotalSize: 1024})

	select {
	case u := <-ch:
		if u.Phase != PhaseScanning || u.Snapshot.Files != 7 {
			t.Errorf("unexpected update %+v", u)
		}
	case <-time.After(time.Second):
		t.Fatal("callback did not publish")
	}
}

func TestFormat(t *testing.T) {
	if got := Format(nil); got != "Initializing..." {
		t.Errorf("Format(nil) = %q", got)
	}

	u := &Update{
		Phase:    PhaseScanning,
		Snapshot: scan.Progress{Files: 10, Dirs: 2, TotalSize: 2048, StartTime: time.Now()},
	}
	if got := Format(u); !strings.Contains(got, "10 files") {
		t.Errorf("Format(scanning) = %q", got)
	}

	u.Phase = PhaseComplete
	if got := Format(u); !strings.Contains(got, "Scan complete") {
		t.Errorf("Format(complete) = %q", got)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{5 * time.Second, "5s"},
		{90 * time.Second, "1m30s"},
		{3*time.Hour + 4*time.Minute + 5*time.Second, "3h4m5s"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.in); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

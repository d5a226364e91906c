package daemon

import (
	"testing"

	"github.com/diskmon/diskmon/internal/config"
)

func TestJobPolicyOverrides(t *testing.T) {
	cfg := config.GetDefault()
	cfg.MinFileSize = "100MB"
	d := &Daemon{config: cfg}

	base := d.jobPolicy(&ScanJob{Name: "plain"})
	if base.MinFileSize != cfg.Threshold() {
		t.Errorf("base threshold = %d, want %d", base.MinFileSize, cfg.Threshold())
	}
	if base.IncludeSystem {
		t.Error("base policy should not include system dirs")
	}

	over := d.jobPolicy(&ScanJob{Name: "big", MinFileSize: "1GB", IncludeSystem: true})
	if over.MinFileSize <= base.MinFileSize {
		t.Errorf("override threshold = %d, want larger than %d", over.MinFileSize, base.MinFileSize)
	}
	if !over.IncludeSystem {
		t.Error("override should include system dirs")
	}

	// Traversal-relevant overrides must change the cache identity.
	if base.Key() == over.Key() {
		t.Error("overridden policy shares a cache key with the base policy")
	}
}

func TestJobFromSchedule(t *testing.T) {
	job := jobFromSchedule(config.ScanSchedule{
		Name:          "nightly",
		Schedule:      "0 3 * * *",
		Roots:         []string{"/srv"},
		MinFileSize:   "1GB",
		SkipIfRunning: true,
	})

	if job.Name != "nightly" || job.Schedule != "0 3 * * *" {
		t.Errorf("unexpected job %+v", job)
	}
	if len(job.Roots) != 1 || job.Roots[0] != "/srv" {
		t.Errorf("roots not carried over: %v", job.Roots)
	}
	if !job.SkipIfRunning {
		t.Error("SkipIfRunning not carried over")
	}
}

func TestNewRequiresEnabledDaemon(t *testing.T) {
	cfg := config.GetDefault()
	if _, err := New(cfg); err == nil {
		t.Error("expected error when daemon is not configured")
	}

	cfg.Daemon = &config.DaemonConfig{Enabled: false}
	if _, err := New(cfg); err == nil {
		t.Error("expected error when daemon is disabled")
	}
}

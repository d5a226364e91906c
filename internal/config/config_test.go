package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// =============================================================================
// GetDefault Tests
// =============================================================================

func TestGetDefault(t *testing.T) {
	cfg := GetDefault()

	if cfg == nil {
		t.Fatal("GetDefault returned nil")
	}
	if cfg.IncludeSystem {
		t.Error("expected IncludeSystem to be disabled by default")
	}
	if cfg.MinFileSize != "100MB" {
		t.Errorf("expected MinFileSize '100MB', got %q", cfg.MinFileSize)
	}
	if cfg.CheckpointEvery != 500 {
		t.Errorf("expected CheckpointEvery 500, got %d", cfg.CheckpointEvery)
	}
	if len(cfg.ExcludeDirs) == 0 {
		t.Error("expected system directories excluded by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestDefaultThreshold(t *testing.T) {
	cfg := GetDefault()
	if got := cfg.Threshold(); got != 100*1000*1000 && got != 100*1024*1024 {
		t.Errorf("unexpected default threshold %d", got)
	}
}

// =============================================================================
// Load Tests
// =============================================================================

func TestLoadNonExistentFile(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	if err != nil {
		t.Fatalf("Load should not error for non-existent file: %v", err)
	}

	// Should return default config
	if cfg == nil {
		t.Fatal("Load returned nil config")
	}
	if cfg.MinFileSize != "100MB" {
		t.Error("expected default MinFileSize")
	}
}

func TestLoadValidConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
scan_roots:
  - "/srv/data"
min_file_size: "1GB"
include_system: true
checkpoint_every: 50
verbose: true
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(cfg.ScanRoots) != 1 || cfg.ScanRoots[0] != "/srv/data" {
		t.Errorf("unexpected scan roots: %v", cfg.ScanRoots)
	}
	if cfg.MinFileSize != "1GB" {
		t.Errorf("expected MinFileSize '1GB', got %q", cfg.MinFileSize)
	}
	if !cfg.IncludeSystem {
		t.Error("expected IncludeSystem to be true")
	}
	if cfg.CheckpointEvery != 50 {
		t.Errorf("expected CheckpointEvery 50, got %d", cfg.CheckpointEvery)
	}
	if !cfg.Verbose {
		t.Error("expected Verbose to be true")
	}
}

func TestLoadPartialConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	// Only override one value; the rest must keep their defaults.
	configContent := `
min_file_size: "250MB"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.MinFileSize != "250MB" {
		t.Errorf("expected MinFileSize '250MB', got %q", cfg.MinFileSize)
	}
	if cfg.CheckpointEvery != 500 {
		t.Errorf("expected default CheckpointEvery 500, got %d", cfg.CheckpointEvery)
	}
	if len(cfg.ExcludeDirs) == 0 {
		t.Error("expected default exclude dirs to survive partial override")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
scan_roots: [invalid
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	if _, err := Load(configPath); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestLoadInvalidMinFileSize(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
min_file_size: "lots"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	if _, err := Load(configPath); err == nil {
		t.Error("expected error for unparseable min_file_size")
	}
}

func TestLoadInvalidExcludePattern(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
exclude_patterns:
  - "[invalid"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	if _, err := Load(configPath); err == nil {
		t.Error("expected error for invalid exclude pattern")
	}
}

func TestLoadRelativeExcludeDir(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
exclude_dirs:
  - "relative/path"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	if _, err := Load(configPath); err == nil {
		t.Error("expected error for relative exclude dir")
	}
}

// =============================================================================
// Daemon Config Tests
// =============================================================================

func TestLoadDaemonConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
daemon:
  enabled: true
  schedules:
    - name: nightly
      schedule: "0 3 * * *"
      roots: ["/srv/data"]
      min_file_size: "1GB"
      skip_if_running: true
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Daemon == nil || !cfg.Daemon.Enabled {
		t.Fatal("expected daemon to be enabled")
	}
	if len(cfg.Daemon.Schedules) != 1 {
		t.Fatalf("expected 1 schedule, got %d", len(cfg.Daemon.Schedules))
	}
	sched := cfg.Daemon.Schedules[0]
	if sched.Name != "nightly" || sched.Schedule != "0 3 * * *" {
		t.Errorf("unexpected schedule %+v", sched)
	}
	if !sched.SkipIfRunning {
		t.Error("expected SkipIfRunning to be true")
	}
}

func TestValidateRejectsBadCron(t *testing.T) {
	cfg := GetDefault()
	cfg.Daemon = &DaemonConfig{
		Schedules: []ScanSchedule{{Name: "broken", Schedule: "not a cron"}},
	}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for invalid cron expression")
	}
}

func TestValidateRejectsDuplicateScheduleNames(t *testing.T) {
	cfg := GetDefault()
	cfg.Daemon = &DaemonConfig{
		Schedules: []ScanSchedule{
			{Name: "daily", Schedule: "0 3 * * *"},
			{Name: "daily", Schedule: "0 4 * * *"},
		},
	}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for duplicate schedule names")
	}
}

// =============================================================================
// Save Tests
// =============================================================================

func TestSaveConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "subdir", "config.yaml")

	cfg := GetDefault()
	cfg.MinFileSize = "2GB"
	cfg.Verbose = true

	if err := Save(cfg, configPath); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(configPath)
	if err != nil {
		t.Fatalf("failed to load saved config: %v", err)
	}
	if loaded.MinFileSize != "2GB" {
		t.Errorf("expected MinFileSize '2GB' after save/load, got %q", loaded.MinFileSize)
	}
	if !loaded.Verbose {
		t.Error("expected Verbose to be true after save/load")
	}
}

func TestSaveCreatesDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "deep", "nested", "dir", "config.yaml")

	if err := Save(GetDefault(), configPath); err != nil {
		t.Fatalf("Save failed to create nested directories: %v", err)
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Error("config file was not created in nested directory")
	}
}

// =============================================================================
// Path Helpers
// =============================================================================

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	if got := ExpandHome("~"); got != home {
		t.Errorf("ExpandHome(~) = %q, want %q", got, home)
	}
	if got := ExpandHome("~/Downloads"); got != filepath.Join(home, "Downloads") {
		t.Errorf("ExpandHome(~/Downloads) = %q", got)
	}
	if got := ExpandHome("/absolute"); got != "/absolute" {
		t.Errorf("ExpandHome(/absolute) = %q, want unchanged", got)
	}
}

func TestGetConfigPath(t *testing.T) {
	path, err := GetConfigPath()
	if err != nil {
		t.Fatalf("GetConfigPath failed: %v", err)
	}
	if !filepath.IsAbs(path) {
		t.Error("GetConfigPath should return absolute path")
	}
	if filepath.Base(path) != "config.yaml" {
		t.Errorf("expected path to end with config.yaml, got %s", filepath.Base(path))
	}
	if !strings.Contains(path, "diskmon") {
		t.Errorf("expected diskmon config dir, got %s", path)
	}
}

// =============================================================================
// Edge Cases
// =============================================================================

func TestLoadEmptyConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	if err := os.WriteFile(configPath, []byte(""), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed for empty config: %v", err)
	}
	if cfg.MinFileSize != "100MB" {
		t.Error("expected defaults for empty config")
	}
}

func TestLoadConfigWithComments(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
# This is a comment
min_file_size: "500MB"  # inline comment
# Another comment
verbose: true
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed for config with comments: %v", err)
	}
	if cfg.MinFileSize != "500MB" {
		t.Errorf("expected MinFileSize '500MB', got %q", cfg.MinFileSize)
	}
	if !cfg.Verbose {
		t.Error("expected Verbose to be true")
	}
}

// Package config loads and validates the YAML configuration controlling
// scan roots, exclusion policy and the background scheduler.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/diskmon/diskmon/pkg/utils"
)

// Config represents the application configuration
type Config struct {
	// ScanRoots are the directories scanned by default when no root is
	// given on the command line. Entries may start with ~.
	ScanRoots []string `yaml:"scan_roots"`

	// MinFileSize is the large-file reporting threshold, e.g. "100MB".
	MinFileSize string `yaml:"min_file_size"`

	// IncludeSystem descends into the excluded system directories.
	IncludeSystem bool `yaml:"include_system"`

	// ExcludeDirs are absolute directory prefixes never descended into
	// unless IncludeSystem is set.
	ExcludeDirs []string `yaml:"exclude_dirs"`

	// ExcludePatterns are glob patterns matched against base names.
	ExcludePatterns []string `yaml:"exclude_patterns"`

	// CheckpointEvery is the number of scanned entries between cache
	// checkpoints. Zero selects the built-in default; negative disables
	// checkpointing.
	CheckpointEvery int `yaml:"checkpoint_every"`

	// DataDir overrides where caches and scan history are persisted.
	DataDir string `yaml:"data_dir"`

	Verbose bool `yaml:"verbose"`

	Daemon *DaemonConfig `yaml:"daemon,omitempty"`
}

// DaemonConfig holds background scheduler configuration
type DaemonConfig struct {
	Enabled   bool           `yaml:"enabled"`
	PidFile   string         `yaml:"pid_file"`
	LogFile   string         `yaml:"log_file"`
	Schedules []ScanSchedule `yaml:"schedules"`
}

// ScanSchedule defines a recurring scan
type ScanSchedule struct {
	Name     string `yaml:"name"`
	Schedule string `yaml:"schedule"` // Cron expression
	// Roots overrides the global scan roots for this schedule.
	Roots []string `yaml:"roots,omitempty"`
	// MinFileSize overrides the global threshold for this schedule.
	MinFileSize   string `yaml:"min_file_size,omitempty"`
	IncludeSystem bool   `yaml:"include_system"`
	// SkipIfRunning drops a firing when the previous scan is still going.
	SkipIfRunning bool `yaml:"skip_if_running"`
}

// Load loads configuration from a file, layering it over the defaults so a
// partial file only overrides what it names.
func Load(configPath string) (*Config, error) {
	config := GetDefault()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return config, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Save saves configuration to a file
func Save(config *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.MinFileSize != "" {
		if _, err := utils.ParseSize(c.MinFileSize); err != nil {
			return fmt.Errorf("invalid min_file_size: %w", err)
		}
	}

	for _, pattern := range c.ExcludePatterns {
		if _, err := filepath.Match(pattern, "probe"); err != nil {
			return fmt.Errorf("invalid exclude pattern '%s': %w", pattern, err)
		}
	}

	for _, path := range c.ExcludeDirs {
		if !filepath.IsAbs(path) {
			return fmt.Errorf("exclude dir must be absolute: %s", path)
		}
	}

	if c.Daemon != nil {
		seen := make(map[string]bool)
		for _, sched := range c.Daemon.Schedules {
			if sched.Name == "" {
				return fmt.Errorf("schedule without a name")
			}
			if seen[sched.Name] {
				return fmt.Errorf("duplicate schedule name: %s", sched.Name)
			}
			seen[sched.Name] = true

			if _, err := cron.ParseStandard(sched.Schedule); err != nil {
				return fmt.Errorf("invalid cron expression for schedule '%s': %w", sched.Name, err)
			}
			if sched.MinFileSize != "" {
				if _, err := utils.ParseSize(sched.MinFileSize); err != nil {
					return fmt.Errorf("invalid min_file_size for schedule '%s': %w", sched.Name, err)
				}
			}
		}
	}

	return nil
}

// Threshold returns the parsed large-file threshold in bytes.
func (c *Config) Threshold() int64 {
	if c.MinFileSize == "" {
		return 0
	}
	n, err := utils.ParseSize(c.MinFileSize)
	if err != nil {
		return 0
	}
	return n
}

// ExpandedRoots returns the scan roots with ~ expanded to the home
// directory.
func (c *Config) ExpandedRoots() []string {
	out := make([]string, 0, len(c.ScanRoots))
	for _, root := range c.ScanRoots {
		out = append(out, ExpandHome(root))
	}
	return out
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if path == "~" {
		return home
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}

// GetConfigPath returns the default config path
func GetConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	configDir := filepath.Join(homeDir, ".config", "diskmon")
	return filepath.Join(configDir, "config.yaml"), nil
}

// EnsureConfigExists creates a default config file if it doesn't exist
func EnsureConfigExists() (string, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return "", err
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := Save(GetDefault(), configPath); err != nil {
			return "", err
		}
	}

	return configPath, nil
}

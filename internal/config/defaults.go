package config

// GetDefault returns the default configuration
func GetDefault() *Config {
	return &Config{
		ScanRoots:   []string{"~"},
		MinFileSize: "100MB",
		// System trees are huge, volatile and rarely what the user wants
		// sized; opt in with include_system.
		IncludeSystem: false,
		ExcludeDirs: []string{
			"/proc",
			"/sys",
			"/dev",
			"/run",
			"/tmp",
			"/var/run",
		},
		ExcludePatterns: []string{
			".Trash",
			"lost+found",
		},
		CheckpointEvery: 500,
		DataDir:         "", // empty selects ~/.cache/diskmon
		Verbose:         false,
	}
}

// GetExampleConfig returns an example configuration with comments
func GetExampleConfig() string {
	return `# diskmon configuration file
# Location: ~/.config/diskmon/config.yaml

# Directories scanned when no root is given on the command line.
# ~ expands to your home directory.
scan_roots:
  - "~"

# Files at or above this size are reported as large.
min_file_size: "100MB"

# Descend into system directories (/proc, /sys, ...). Off by default.
include_system: false

# Absolute directory prefixes skipped unless include_system is true.
exclude_dirs:
  - "/proc"
  - "/sys"
  - "/dev"
  - "/run"
  - "/tmp"
  - "/var/run"

# Glob patterns matched against entry base names; matches are skipped.
exclude_patterns:
  - ".Trash"
  - "lost+found"

# Entries scanned between cache checkpoints. 0 uses the built-in default,
# a negative value disables checkpointing.
checkpoint_every: 500

# Where caches and scan history live. Empty selects ~/.cache/diskmon.
data_dir: ""

verbose: false

# Background scheduler. Each schedule is a cron expression; the scan runs
# with the global policy unless overridden per schedule.
# daemon:
#   enabled: true
#   schedules:
#     - name: nightly-home
#       schedule: "0 3 * * *"
#       roots: ["~"]
#       min_file_size: "250MB"
#       skip_if_running: true
`
}

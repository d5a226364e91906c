// Package daemon runs scans in the background on cron schedules, keeping
// the caches warm and the scan history current.
package daemon

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/diskmon/diskmon/internal/cache"
	"github.com/diskmon/diskmon/internal/classify"
	"github.com/diskmon/diskmon/internal/config"
	"github.com/diskmon/diskmon/internal/reporter"
	"github.com/diskmon/diskmon/internal/scan"
	"github.com/diskmon/diskmon/pkg/utils"
)

// Daemon owns one scan engine and a scheduler driving it.
type Daemon struct {
	config      *config.Config
	engine      *scan.Engine
	history     *reporter.History
	scheduler   *Scheduler
	logger      *Logger
	running     bool
	shutdownCtx context.Context
	cancelFunc  context.CancelFunc
	mu          sync.RWMutex
}

// New creates a new daemon instance
func New(cfg *config.Config) (*Daemon, error) {
	if cfg.Daemon == nil || !cfg.Daemon.Enabled {
		return nil, fmt.Errorf("daemon not enabled in configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())

	logger, err := NewLogger(cfg.Daemon.LogFile, cfg.Verbose)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	dataDir := config.ExpandHome(cfg.DataDir)
	if dataDir == "" {
		dataDir = cache.DefaultDir()
	}
	store, err := cache.NewStore(dataDir)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open cache store: %w", err)
	}
	history, err := reporter.NewHistory(filepath.Join(dataDir, "history"))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open scan history: %w", err)
	}

	daemon := &Daemon{
		config: cfg,
		engine: scan.New(scan.Options{
			Store:           store,
			Classifier:      classify.Suspect,
			CheckpointEvery: cfg.CheckpointEvery,
		}),
		history:     history,
		logger:      logger,
		shutdownCtx: ctx,
		cancelFunc:  cancel,
	}

	daemon.scheduler = NewScheduler(daemon, cfg.Daemon.Schedules)

	return daemon, nil
}

// Start starts the daemon and blocks until it is stopped.
func (d *Daemon) Start() error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon already running")
	}
	d.running = true
	d.mu.Unlock()

	d.logger.Info("Starting scan daemon")

	if err := d.acquireLock(); err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer d.releaseLock()

	if err := d.writePidFile(); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	defer d.removePidFile()

	d.setupSignalHandlers()

	if err := d.scheduler.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer d.scheduler.Stop()

	d.logger.Info("Daemon started successfully")

	<-d.shutdownCtx.Done()

	d.logger.Info("Daemon shutting down")

	// A scan in flight stops at its next entry; its partial results were
	// already checkpointed.
	d.engine.Cancel()

	d.mu.Lock()
	d.running = false
	d.mu.Unlock()

	return nil
}

// Stop stops the daemon
func (d *Daemon) Stop() {
	if d.cancelFunc != nil {
		d.cancelFunc()
	}
}

// IsRunning returns whether the daemon is running
func (d *Daemon) IsRunning() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.running
}

// RunScanJob executes one scheduled scan across the job's roots.
func (d *Daemon) RunScanJob(job *ScanJob) error {
	if job.SkipIfRunning && d.engine.State() == scan.StateRunning {
		d.logger.Warn("Skipping job %s: previous scan still running", job.Name)
		return nil
	}

	d.logger.Info("Running scan job: %s", job.Name)
	startTime := time.Now()

	pol := d.jobPolicy(job)
	roots := job.Roots
	if len(roots) == 0 {
		roots = d.config.ExpandedRoots()
	}

	for _, root := range roots {
		root = config.ExpandHome(root)

		previous, err := d.history.Latest(root, pol.Key())
		if err != nil {
			d.logger.Warn("Cannot read history for %s: %v", root, err)
		}

		collector := reporter.NewCollector()
		rep, err := d.engine.Scan(d.shutdownCtx, root, pol, scan.Callbacks{
			OnFile: collector.OnFile,
		})
		if err != nil {
			d.logger.Error("Scan failed for job %s root %s: %v", job.Name, root, err)
			continue
		}
		if rep.Outcome != scan.OutcomeCompleted {
			d.logger.Warn("Scan of %s ended %s", root, rep.Outcome)
			continue
		}

		record := collector.Record(rep)
		if err := d.history.Save(record); err != nil {
			d.logger.Error("Cannot save scan record for %s: %v", root, err)
		}

		d.logger.Info("Scan of %s: %s in %d files, %d cache hits",
			root, utils.FormatBytes(rep.TotalSize), rep.FileCount, rep.CacheHits)

		if fresh := reporter.NewLargeFiles(previous, record); len(fresh) > 0 {
			d.logger.Info("%d new large files under %s since last scan", len(fresh), root)
			for i, f := range fresh {
				if i >= 5 {
					break
				}
				d.logger.Info("  new: %s (%s)", f.Path, utils.FormatBytes(f.Size))
			}
		}
	}

	d.logger.Info("Scan job %s completed in %v", job.Name, time.Since(startTime).Round(time.Second))
	return nil
}

// jobPolicy builds the scan policy for a job, starting from the global
// configuration and applying per-schedule overrides.
func (d *Daemon) jobPolicy(job *ScanJob) scan.Policy {
	pol := scan.Policy{
		MinFileSize:     d.config.Threshold(),
		IncludeSystem:   d.config.IncludeSystem || job.IncludeSystem,
		ExcludeDirs:     d.config.ExcludeDirs,
		ExcludePatterns: d.config.ExcludePatterns,
	}
	if job.MinFileSize != "" {
		if n, err := utils.ParseSize(job.MinFileSize); err == nil {
			pol.MinFileSize = n
		}
	}
	return pol
}

// setupSignalHandlers sets up signal handlers for graceful shutdown
func (d *Daemon) setupSignalHandlers() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	go func() {
		for sig := range sigChan {
			switch sig {
			case syscall.SIGINT, syscall.SIGTERM:
				d.logger.Info("Received shutdown signal: %v", sig)
				d.Stop()
			case syscall.SIGHUP:
				d.logger.Info("Received reload signal")
				// TODO: reload config and rebuild the schedule set
			}
		}
	}()
}

// acquireLock acquires the lock file
func (d *Daemon) acquireLock() error {
	lockFile := d.lockPath()

	file, err := os.OpenFile(lockFile, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("daemon already running (lock file exists)")
		}
		return err
	}

	_, err = fmt.Fprintf(file, "%d\n", os.Getpid())
	file.Close()
	return err
}

// releaseLock releases the lock file
func (d *Daemon) releaseLock() error {
	return os.Remove(d.lockPath())
}

func (d *Daemon) lockPath() string {
	return d.pidPath() + ".lock"
}

func (d *Daemon) pidPath() string {
	if d.config.Daemon.PidFile != "" {
		return d.config.Daemon.PidFile
	}
	return "/var/run/diskmon.pid"
}

// writePidFile writes the PID file
func (d *Daemon) writePidFile() error {
	return os.WriteFile(d.pidPath(), []byte(fmt.Sprintf("%d\n", os.Getpid())), 0644)
}

// removePidFile removes the PID file
func (d *Daemon) removePidFile() error {
	return os.Remove(d.pidPath())
}

// Logger provides logging for the daemon
type Logger struct {
	logger  *log.Logger
	verbose bool
	file    *os.File
}

// NewLogger creates a new logger
func NewLogger(logFile string, verbose bool) (*Logger, error) {
	var file *os.File
	var err error

	if logFile != "" {
		file, err = os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, err
		}
	}

	var logger *log.Logger
	if file != nil {
		logger = log.New(file, "", log.LstdFlags)
	} else {
		logger = log.New(os.Stdout, "", log.LstdFlags)
	}

	return &Logger{
		logger:  logger,
		verbose: verbose,
		file:    file,
	}, nil
}

// Info logs an info message
func (l *Logger) Info(format string, args ...interface{}) {
	l.logger.Printf("[INFO] "+format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.logger.Printf("[ERROR] "+format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	l.logger.Printf("[WARN] "+format, args...)
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	if l.verbose {
		l.logger.Printf("[DEBUG] "+format, args...)
	}
}

// Close closes the logger
func (l *Logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

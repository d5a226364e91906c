package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/diskmon/diskmon/internal/cache"
	"github.com/diskmon/diskmon/internal/classify"
	"github.com/diskmon/diskmon/internal/config"
	"github.com/diskmon/diskmon/internal/daemon"
	"github.com/diskmon/diskmon/internal/reclaim"
	"github.com/diskmon/diskmon/internal/reporter"
	"github.com/diskmon/diskmon/internal/scan"
	"github.com/diskmon/diskmon/internal/ui"
	"github.com/diskmon/diskmon/internal/verify"
	"github.com/diskmon/diskmon/pkg/utils"
)

var (
	Version   = "0.2.0"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

var (
	configPath    string
	verbose       bool
	minSize       string
	includeSystem bool
	noCache       bool
	useTUI        bool
	outputFmt     string
	outputFile    string
	historyDays   int
	showNew       bool
	forceClean    bool
	cleanMinAge   time.Duration
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "diskmon",
	Short: "Incremental disk usage scanner",
	Long: `diskmon tracks where your disk space goes. It caches per-file and
per-directory results between runs, so repeated scans only touch the parts
of the tree that changed.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildTime),
}

var scanCmd = &cobra.Command{
	Use:   "scan [root...]",
	Short: "Scan directories and report disk usage",
	Long: `Scans the given roots (or the configured scan_roots) and reports totals,
large files and reclaimable candidates. Results are cached; a rescan of an
unchanged tree touches only directory metadata.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		engine, dataDir, err := buildEngine(cfg)
		if err != nil {
			return err
		}
		pol := buildPolicy(cfg, cmd)

		roots := args
		if len(roots) == 0 {
			roots = cfg.ExpandedRoots()
		}
		if len(roots) == 0 {
			return fmt.Errorf("no scan roots given and none configured")
		}

		history, err := reporter.NewHistory(filepath.Join(dataDir, "history"))
		if err != nil {
			return err
		}

		format, err := reporter.ParseFormat(outputFmt)
		if err != nil {
			return err
		}

		for _, root := range roots {
			root = config.ExpandHome(root)

			previous, err := history.Latest(root, pol.Key())
			if err != nil {
				return err
			}

			var rep *scan.Report
			var record *reporter.ScanRecord
			if useTUI {
				rep, record, err = ui.RunScan(engine, root, pol)
			} else {
				rep, record, err = runPlainScan(engine, root, pol)
			}
			if err != nil {
				return err
			}
			if rep.Outcome == scan.OutcomeCancelled {
				fmt.Println("Scan cancelled")
				continue
			}

			if err := history.Save(record); err != nil {
				return fmt.Errorf("failed to save scan record: %w", err)
			}

			if err := render(record, format); err != nil {
				return err
			}

			if fresh := reporter.NewLargeFiles(previous, record); previous != nil && len(fresh) > 0 {
				fmt.Printf("\nNew large files since %s:\n", previous.Timestamp.Format("2006-01-02 15:04"))
				for _, f := range fresh {
					fmt.Printf("  %12s  %s\n", utils.FormatBytes(f.Size), f.Path)
				}
			}
		}

		return nil
	},
}

// runPlainScan runs a non-interactive scan with a progress spinner on
// stderr, keeping stdout clean for the report.
func runPlainScan(engine *scan.Engine, root string, pol scan.Policy) (*scan.Report, *reporter.ScanRecord, error) {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("scanning "+root),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	collector := reporter.NewCollector()
	rep, err := engine.Scan(context.Background(), root, pol, scan.Callbacks{
		OnFile: collector.OnFile,
		OnProgress: func(p scan.Progress) {
			bar.Describe(fmt.Sprintf("scanning %s (%s)", root, utils.FormatBytes(p.TotalSize)))
			bar.Add(1)
		},
	})
	bar.Finish()
	if err != nil {
		return nil, nil, err
	}
	return rep, collector.Record(rep), nil
}

func render(record *reporter.ScanRecord, format reporter.OutputFormat) error {
	if outputFile != "" {
		if err := reporter.SaveToFile(record, outputFile, format); err != nil {
			return fmt.Errorf("failed to save report: %w", err)
		}
		fmt.Printf("Report saved to: %s\n", outputFile)
		return nil
	}
	return reporter.New(os.Stdout, format).Report(record)
}

var reportCmd = &cobra.Command{
	Use:   "report [root]",
	Short: "Show the most recent scan results",
	Long: `Renders the latest recorded scan without touching the filesystem. With
--new, shows only large files that appeared since the scan before it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		history, err := reporter.NewHistory(filepath.Join(dataDirFor(cfg), "history"))
		if err != nil {
			return err
		}

		records, err := history.List()
		if err != nil {
			return err
		}
		if len(records) == 0 {
			return fmt.Errorf("no scans recorded yet; run 'diskmon scan' first")
		}

		latest := records[0]
		if len(args) > 0 {
			root := config.ExpandHome(args[0])
			latest = nil
			for _, rec := range records {
				if rec.Root == root {
					latest = rec
					break
				}
			}
			if latest == nil {
				return fmt.Errorf("no recorded scan for %s", root)
			}
		}

		if showNew {
			var previous *reporter.ScanRecord
			for _, rec := range records {
				if rec.Root == latest.Root && rec.PolicyKey == latest.PolicyKey && rec.ID != latest.ID {
					previous = rec
					break
				}
			}
			fresh := reporter.NewLargeFiles(previous, latest)
			if len(fresh) == 0 {
				fmt.Println("No new large files since the previous scan.")
				return nil
			}
			for _, f := range fresh {
				fmt.Printf("%12s  %s\n", utils.FormatBytes(f.Size), f.Path)
			}
			return nil
		}

		format, err := reporter.ParseFormat(outputFmt)
		if err != nil {
			return err
		}
		return render(latest, format)
	},
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage the scan caches",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache entry counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, _, err := engineFromConfig()
		if err != nil {
			return err
		}
		fmt.Printf("File cache: %d entries\n", engine.FileCache().Len())
		fmt.Printf("Directory cache: %d summaries\n", engine.DirCache().Len())
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop all cached scan state",
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, _, err := engineFromConfig()
		if err != nil {
			return err
		}
		engine.ClearCaches()
		if err := engine.SaveCaches(); err != nil {
			return err
		}
		fmt.Println("Caches cleared")
		return nil
	},
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Drop cache entries for paths that no longer exist",
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, _, err := engineFromConfig()
		if err != nil {
			return err
		}
		files, dirs := engine.PruneCaches()
		if err := engine.SaveCaches(); err != nil {
			return err
		}
		fmt.Printf("Pruned %d file entries and %d directory summaries\n", files, dirs)
		return nil
	},
}

var cacheExportCmd = &cobra.Command{
	Use:   "export <dir>",
	Short: "Write both caches as JSON into a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, _, err := engineFromConfig()
		if err != nil {
			return err
		}
		fileBlob, dirBlob, err := engine.ExportCaches()
		if err != nil {
			return err
		}
		dir := args[0]
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(dir, "file_cache.json"), fileBlob, 0644); err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(dir, "dir_cache.json"), dirBlob, 0644); err != nil {
			return err
		}
		fmt.Printf("Caches exported to %s\n", dir)
		return nil
	},
}

var cacheImportCmd = &cobra.Command{
	Use:   "import <dir>",
	Short: "Replace both caches from a previous export",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, _, err := engineFromConfig()
		if err != nil {
			return err
		}
		dir := args[0]
		fileBlob, err := os.ReadFile(filepath.Join(dir, "file_cache.json"))
		if err != nil {
			return err
		}
		dirBlob, err := os.ReadFile(filepath.Join(dir, "dir_cache.json"))
		if err != nil {
			return err
		}
		if err := engine.ImportCaches(fileBlob, dirBlob); err != nil {
			return err
		}
		if err := engine.SaveCaches(); err != nil {
			return err
		}
		fmt.Printf("Caches imported from %s\n", dir)
		return nil
	},
}

var cacheVerifyCmd = &cobra.Command{
	Use:   "verify <root>",
	Short: "Recount a tree without caches and compare",
	Long: `Walks the tree in parallel ignoring every cache and compares the result
with a cached scan. A mismatch usually means files were rewritten in place
without any directory timestamp changing; 'diskmon cache invalidate' on the
affected subtree forces recomputation.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		engine, _, err := buildEngine(cfg)
		if err != nil {
			return err
		}
		pol := buildPolicy(cfg, cmd)
		root := config.ExpandHome(args[0])

		rep, err := engine.Scan(context.Background(), root, pol, scan.Callbacks{})
		if err != nil {
			return err
		}

		live, err := verify.Recount(root, pol)
		if err != nil {
			return err
		}

		if m := verify.Check(rep, live); m != nil {
			fmt.Printf("MISMATCH: cached %s in %d files, live %s in %d files\n",
				utils.FormatBytes(m.ReportedSize), m.ReportedCount,
				utils.FormatBytes(m.LiveSize), m.LiveCount)
			return fmt.Errorf("cached view disagrees with filesystem")
		}
		fmt.Printf("OK: %s in %d files\n", utils.FormatBytes(rep.TotalSize), rep.FileCount)
		return nil
	},
}

var cacheInvalidateCmd = &cobra.Command{
	Use:   "invalidate <path>",
	Short: "Force recomputation of a subtree on the next scan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, _, err := engineFromConfig()
		if err != nil {
			return err
		}
		removed := engine.InvalidateSubtree(config.ExpandHome(args[0]))
		if err := engine.SaveCaches(); err != nil {
			return err
		}
		fmt.Printf("Invalidated %d directory summaries\n", removed)
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded scans",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		history, err := reporter.NewHistory(filepath.Join(dataDirFor(cfg), "history"))
		if err != nil {
			return err
		}

		if historyDays > 0 {
			removed, err := history.CleanOld(historyDays)
			if err != nil {
				return err
			}
			fmt.Printf("Removed %d records older than %d days\n", removed, historyDays)
			return nil
		}

		records, err := history.List()
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("No scans recorded yet.")
			return nil
		}
		for _, rec := range records {
			fmt.Printf("%-28s  %-19s  %12s  %8d files  %s\n",
				rec.ID,
				rec.Timestamp.Format("2006-01-02 15:04:05"),
				utils.FormatBytes(rec.TotalSize),
				rec.FileCount,
				rec.Root)
		}
		return nil
	},
}

var cleanCmd = &cobra.Command{
	Use:   "clean [root...]",
	Short: "Delete files flagged as reclaimable",
	Long: `Scans the given roots (or the configured scan_roots) and deletes the files
flagged as reclaimable candidates: temp files, stale logs, crash dumps and the
like. Without --force nothing is deleted; the command only shows what would be
freed. Deleted files are purged from the scan caches immediately.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		engine, _, err := buildEngine(cfg)
		if err != nil {
			return err
		}
		pol := buildPolicy(cfg, cmd)

		roots := args
		if len(roots) == 0 {
			roots = cfg.ExpandedRoots()
		}
		if len(roots) == 0 {
			return fmt.Errorf("no scan roots given and none configured")
		}

		reclaimer := reclaim.New(reclaim.Options{
			DryRun: !forceClean,
			MinAge: cleanMinAge,
			Purger: engine,
		})

		var totalFreed int64
		var totalDeleted int
		for _, root := range roots {
			root = config.ExpandHome(root)

			rep, record, err := runPlainScan(engine, root, pol)
			if err != nil {
				return err
			}
			if rep.Outcome == scan.OutcomeCancelled {
				fmt.Println("Scan cancelled")
				continue
			}
			if len(record.SuspectFiles) == 0 {
				fmt.Printf("%s: nothing to reclaim\n", root)
				continue
			}

			result := reclaimer.Remove(record.SuspectFiles)
			totalFreed += result.Freed
			totalDeleted += len(result.Deleted)

			for path, reason := range result.Skipped {
				fmt.Fprintf(os.Stderr, "skipped %s: %s\n", path, reason)
			}
			for _, remErr := range result.Errors {
				fmt.Fprintln(os.Stderr, remErr.Error())
			}
		}

		if err := engine.SaveCaches(); err != nil {
			return err
		}

		if forceClean {
			fmt.Printf("Freed %s (%d files deleted)\n", utils.FormatBytes(totalFreed), totalDeleted)
		} else {
			fmt.Printf("Would free %s (%d files); rerun with --force to delete\n",
				utils.FormatBytes(totalFreed), totalDeleted)
		}
		return nil
	},
}

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run scheduled scans in the background",
	Long: `Starts the scan daemon. Schedules come from the daemon section of the
config file; each fires a scan and records the result in history.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		d, err := daemon.New(cfg)
		if err != nil {
			return err
		}
		return d.Start()
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Display current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfgPath, err := config.GetConfigPath()
		if err != nil {
			return err
		}

		fmt.Printf("Config file: %s\n", cfgPath)

		if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
			fmt.Println("Config file does not exist. Using default configuration.")
			fmt.Println("\nExample configuration:")
			fmt.Print(config.GetExampleConfig())
		}

		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "verbose output")

	scanCmd.Flags().StringVar(&minSize, "min-size", "", "large-file threshold, e.g. 100MB")
	scanCmd.Flags().BoolVar(&includeSystem, "include-system", false, "descend into system directories")
	scanCmd.Flags().BoolVar(&noCache, "no-cache", false, "scan without loading or saving caches")
	scanCmd.Flags().BoolVar(&useTUI, "tui", false, "interactive progress view")
	scanCmd.Flags().StringVar(&outputFmt, "output", "summary", "output format (summary, table, json, yaml)")
	scanCmd.Flags().StringVar(&outputFile, "file", "", "save report to file")

	reportCmd.Flags().StringVar(&outputFmt, "output", "summary", "output format (summary, table, json, yaml)")
	reportCmd.Flags().BoolVar(&showNew, "new", false, "show only large files new since the previous scan")

	cacheVerifyCmd.Flags().StringVar(&minSize, "min-size", "", "large-file threshold, e.g. 100MB")
	cacheVerifyCmd.Flags().BoolVar(&includeSystem, "include-system", false, "descend into system directories")

	historyCmd.Flags().IntVar(&historyDays, "clean-older-than", 0, "delete records older than this many days")

	cleanCmd.Flags().StringVar(&minSize, "min-size", "", "large-file threshold, e.g. 100MB")
	cleanCmd.Flags().BoolVar(&includeSystem, "include-system", false, "descend into system directories")
	cleanCmd.Flags().BoolVar(&forceClean, "force", false, "actually delete (default is a dry run)")
	cleanCmd.Flags().DurationVar(&cleanMinAge, "min-age", 0, "skip files modified more recently than this (default 1h)")

	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cachePruneCmd)
	cacheCmd.AddCommand(cacheExportCmd)
	cacheCmd.AddCommand(cacheImportCmd)
	cacheCmd.AddCommand(cacheVerifyCmd)
	cacheCmd.AddCommand(cacheInvalidateCmd)

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(configCmd)
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		var err error
		path, err = config.GetConfigPath()
		if err != nil {
			return nil, err
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Verbose = true
	}
	return cfg, nil
}

func dataDirFor(cfg *config.Config) string {
	if cfg.DataDir != "" {
		return config.ExpandHome(cfg.DataDir)
	}
	return cache.DefaultDir()
}

// buildEngine constructs the scan engine with persistent caches unless
// --no-cache was given.
func buildEngine(cfg *config.Config) (*scan.Engine, string, error) {
	dataDir := dataDirFor(cfg)

	opts := scan.Options{
		Classifier:      classify.Suspect,
		CheckpointEvery: cfg.CheckpointEvery,
	}
	if !noCache {
		store, err := cache.NewStore(dataDir)
		if err != nil {
			return nil, "", fmt.Errorf("failed to open cache store: %w", err)
		}
		opts.Store = store
	}

	return scan.New(opts), dataDir, nil
}

func engineFromConfig() (*scan.Engine, string, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, "", err
	}
	return buildEngine(cfg)
}

// buildPolicy derives the scan policy from config plus command-line
// overrides.
func buildPolicy(cfg *config.Config, cmd *cobra.Command) scan.Policy {
	pol := scan.Policy{
		MinFileSize:     cfg.Threshold(),
		IncludeSystem:   cfg.IncludeSystem,
		ExcludeDirs:     cfg.ExcludeDirs,
		ExcludePatterns: cfg.ExcludePatterns,
	}
	if minSize != "" {
		if n, err := utils.ParseSize(minSize); err == nil {
			pol.MinFileSize = n
		}
	}
	if cmd.Flags().Changed("include-system") {
		pol.IncludeSystem = includeSystem
	}
	return pol
}

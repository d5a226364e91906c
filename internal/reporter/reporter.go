// Package reporter renders scan results for humans and machines and keeps
// a history of past scans so consecutive runs can be compared.
package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/diskmon/diskmon/internal/scan"
	"github.com/diskmon/diskmon/pkg/utils"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	FormatTable   OutputFormat = "table"
	FormatJSON    OutputFormat = "json"
	FormatYAML    OutputFormat = "yaml"
	FormatSummary OutputFormat = "summary"
)

// ParseFormat validates a format flag value.
func ParseFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case FormatTable, FormatJSON, FormatYAML, FormatSummary:
		return OutputFormat(s), nil
	default:
		return "", fmt.Errorf("unsupported format: %s", s)
	}
}

// LargeFile is one reported file in a scan record.
type LargeFile struct {
	Path    string    `json:"path" yaml:"path"`
	Size    int64     `json:"size" yaml:"size"`
	ModTime time.Time `json:"mod_time" yaml:"mod_time"`
	Tags    []string  `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// ScanRecord is the durable description of one finished scan: the report
// totals plus every file that crossed the reporting threshold or was
// flagged by classification.
type ScanRecord struct {
	ID           string      `json:"id" yaml:"id"`
	Timestamp    time.Time   `json:"timestamp" yaml:"timestamp"`
	Root         string      `json:"root" yaml:"root"`
	PolicyKey    string      `json:"policy_key" yaml:"policy_key"`
	Outcome      string      `json:"outcome" yaml:"outcome"`
	TotalSize    int64       `json:"total_size" yaml:"total_size"`
	FileCount    int64       `json:"file_count" yaml:"file_count"`
	CacheHits    int64       `json:"cache_hits" yaml:"cache_hits"`
	Partial      bool        `json:"partial,omitempty" yaml:"partial,omitempty"`
	Errors       []string    `json:"errors,omitempty" yaml:"errors,omitempty"`
	ElapsedMS    int64       `json:"elapsed_ms" yaml:"elapsed_ms"`
	LargeFiles   []LargeFile `json:"large_files" yaml:"large_files"`
	SuspectFiles []LargeFile `json:"suspect_files,omitempty" yaml:"suspect_files,omitempty"`
}

// Collector accumulates per-file scan callbacks into a ScanRecord. Not safe
// for concurrent use; the engine invokes callbacks from one goroutine.
type Collector struct {
	large   []LargeFile
	suspect []LargeFile
}

// NewCollector returns an empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

// OnFile is the engine callback recording reported files.
func (c *Collector) OnFile(f scan.FileResult) {
	lf := LargeFile{Path: f.Path, Size: f.Size, ModTime: f.ModTime, Tags: f.Tags}
	if f.Large {
		c.large = append(c.large, lf)
	}
	if len(f.Tags) > 0 {
		c.suspect = append(c.suspect, lf)
	}
}

// Record combines the collected files with the scan report, largest first.
func (c *Collector) Record(rep *scan.Report) *ScanRecord {
	large := append([]LargeFile(nil), c.large...)
	sort.Slice(large, func(i, j int) bool { return large[i].Size > large[j].Size })
	suspect := append([]LargeFile(nil), c.suspect...)
	sort.Slice(suspect, func(i, j int) bool { return suspect[i].Size > suspect[j].Size })

	return &ScanRecord{
		Timestamp:    time.Now(),
		Root:         rep.Root,
		PolicyKey:    rep.PolicyKey,
		Outcome:      rep.Outcome.String(),
		TotalSize:    rep.TotalSize,
		FileCount:    rep.FileCount,
		CacheHits:    rep.CacheHits,
		Partial:      rep.Partial,
		Errors:       rep.Errors,
		ElapsedMS:    rep.Elapsed.Milliseconds(),
		LargeFiles:   large,
		SuspectFiles: suspect,
	}
}

// Reporter handles report generation
type Reporter struct {
	writer io.Writer
	format OutputFormat
}

// New creates a new Reporter
func New(writer io.Writer, format OutputFormat) *Reporter {
	return &Reporter{
		writer: writer,
		format: format,
	}
}

// Report renders a scan record in the configured format.
func (r *Reporter) Report(rec *ScanRecord) error {
	switch r.format {
	case FormatTable:
		return r.reportTable(rec)
	case FormatJSON:
		return r.reportJSON(rec)
	case FormatYAML:
		return r.reportYAML(rec)
	case FormatSummary:
		return r.reportSummary(rec)
	default:
		return fmt.Errorf("unsupported format: %s", r.format)
	}
}

func (r *Reporter) reportSummary(rec *ScanRecord) error {
	fmt.Fprintf(r.writer, "=== Scan Summary ===\n")
	fmt.Fprintf(r.writer, "Root: %s\n", rec.Root)
	fmt.Fprintf(r.writer, "Outcome: %s\n", rec.Outcome)
	fmt.Fprintf(r.writer, "Total Size: %s (%d files)\n", utils.FormatBytes(rec.TotalSize), rec.FileCount)
	fmt.Fprintf(r.writer, "Cache Hits: %d\n", rec.CacheHits)
	if rec.Partial {
		fmt.Fprintf(r.writer, "Partial: some entries could not be read\n")
	}

	if len(rec.LargeFiles) > 0 {
		fmt.Fprintf(r.writer, "\nLargest files:\n")
		for i, f := range rec.LargeFiles {
			if i >= 10 {
				fmt.Fprintf(r.writer, "  ... and %d more\n", len(rec.LargeFiles)-i)
				break
			}
			fmt.Fprintf(r.writer, "  %12s  %s\n", utils.FormatBytes(f.Size), f.Path)
		}
	}

	if len(rec.SuspectFiles) > 0 {
		fmt.Fprintf(r.writer, "\nReclaimable candidates:\n")
		for i, f := range rec.SuspectFiles {
			if i >= 10 {
				fmt.Fprintf(r.writer, "  ... and %d more\n", len(rec.SuspectFiles)-i)
				break
			}
			fmt.Fprintf(r.writer, "  %12s  %s (%s)\n",
				utils.FormatBytes(f.Size), f.Path, strings.Join(f.Tags, ", "))
		}
	}

	if len(rec.Errors) > 0 {
		fmt.Fprintf(r.writer, "\nErrors: %d\n", len(rec.Errors))
	}

	return nil
}

func (r *Reporter) reportTable(rec *ScanRecord) error {
	fmt.Fprintf(r.writer, "%-60s | %-12s | %s\n", "Path", "Size", "Modified")
	fmt.Fprintf(r.writer, "%s\n", strings.Repeat("-", 100))

	for _, file := range rec.LargeFiles {
		path := file.Path
		if len(path) > 60 {
			path = "..." + path[len(path)-57:]
		}
		fmt.Fprintf(r.writer, "%-60s | %-12s | %s\n",
			path,
			utils.FormatBytes(file.Size),
			file.ModTime.Format("2006-01-02 15:04:05"))
	}

	fmt.Fprintf(r.writer, "%s\n", strings.Repeat("-", 100))
	fmt.Fprintf(r.writer, "Total: %d files, %s\n", rec.FileCount, utils.FormatBytes(rec.TotalSize))

	return nil
}

func (r *Reporter) reportJSON(rec *ScanRecord) error {
	encoder := json.NewEncoder(r.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(rec)
}

func (r *Reporter) reportYAML(rec *ScanRecord) error {
	encoder := yaml.NewEncoder(r.writer)
	defer encoder.Close()
	return encoder.Encode(rec)
}

// SaveToFile saves the report to a file
func SaveToFile(rec *ScanRecord, path string, format OutputFormat) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	reporter := New(file, format)
	return reporter.Report(rec)
}

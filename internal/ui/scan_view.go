// Package ui is the interactive terminal front end for a scan: a live view
// of traversal progress with the largest files found so far. The scan runs
// on its own goroutine; the view only renders what it is sent.
package ui

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/diskmon/diskmon/internal/progress"
	"github.com/diskmon/diskmon/internal/reporter"
	"github.com/diskmon/diskmon/internal/scan"
	"github.com/diskmon/diskmon/internal/ui/styles"
	"github.com/diskmon/diskmon/pkg/utils"
)

const topFileCount = 10

type progressMsg progress.Update

type fileMsg scan.FileResult

type doneMsg struct {
	report *scan.Report
	err    error
}

// ScanViewModel handles the scanning progress view
type ScanViewModel struct {
	engine    *scan.Engine
	root      string
	spinner   spinner.Model
	scanning  bool
	cancelled bool
	startTime time.Time
	update    *progress.Update
	top       []reporter.LargeFile
	report    *scan.Report
	err       error
}

// NewScanViewModel creates a new scan view model
func NewScanViewModel(engine *scan.Engine, root string) *ScanViewModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.SelectedStyle

	return &ScanViewModel{
		engine:    engine,
		root:      root,
		spinner:   s,
		scanning:  true,
		startTime: time.Now(),
	}
}

// Init initializes the scan view
func (m *ScanViewModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles messages
func (m *ScanViewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			if m.scanning {
				m.cancelled = true
				m.engine.Cancel()
				return m, nil
			}
			return m, tea.Quit
		}
		return m, nil

	case progressMsg:
		u := progress.Update(msg)
		m.update = &u
		return m, nil

	case fileMsg:
		m.addFile(scan.FileResult(msg))
		return m, nil

	case doneMsg:
		m.scanning = false
		m.report = msg.report
		m.err = msg.err
		return m, tea.Quit
	}

	return m, nil
}

// addFile keeps the largest reported files, biggest first.
func (m *ScanViewModel) addFile(f scan.FileResult) {
	if !f.Large {
		return
	}
	m.top = append(m.top, reporter.LargeFile{
		Path:    f.Path,
		Size:    f.Size,
		ModTime: f.ModTime,
		Tags:    f.Tags,
	})
	sort.Slice(m.top, func(i, j int) bool { return m.top[i].Size > m.top[j].Size })
	if len(m.top) > topFileCount {
		m.top = m.top[:topFileCount]
	}
}

// View renders the scan view
func (m *ScanViewModel) View() string {
	var b strings.Builder

	b.WriteString(styles.TitleStyle.Render("diskmon " + m.root))
	b.WriteString("\n\n")

	if m.scanning {
		b.WriteString(m.spinner.View())
		b.WriteString(" ")
		b.WriteString(progress.Format(m.update))
		if m.cancelled {
			b.WriteString(styles.DimStyle.Render("  (stopping...)"))
		}
		b.WriteString("\n")

		if m.update != nil && m.update.Snapshot.CurrentPath != "" {
			b.WriteString(styles.DimStyle.Render("Current: "))
			b.WriteString(styles.FilePathStyle.Render(truncatePath(m.update.Snapshot.CurrentPath, 70)))
			b.WriteString("\n")
		}
	} else {
		switch {
		case m.err != nil:
			b.WriteString(styles.ErrorStyle.Render("✗ Scan failed"))
			b.WriteString("\n")
			b.WriteString(styles.DimStyle.Render(m.err.Error()))
		case m.report != nil && m.report.Outcome == scan.OutcomeCancelled:
			b.WriteString(styles.DimStyle.Render("Scan cancelled"))
		case m.report != nil:
			b.WriteString(styles.SuccessStyle.Render("✓ Scan complete"))
			b.WriteString(fmt.Sprintf("  %s in %s files\n",
				styles.FileSizeStyle.Render(utils.FormatBytes(m.report.TotalSize)),
				styles.BoldStyle.Render(fmt.Sprintf("%d", m.report.FileCount))))
		}
		b.WriteString("\n")
	}

	if len(m.top) > 0 {
		b.WriteString("\n")
		b.WriteString(styles.BoldStyle.Render("Largest files:"))
		b.WriteString("\n")
		for _, f := range m.top {
			b.WriteString(fmt.Sprintf("  %12s  %s",
				styles.FileSizeStyle.Render(utils.FormatBytes(f.Size)),
				styles.FilePathStyle.Render(truncatePath(f.Path, 64))))
			if len(f.Tags) > 0 {
				b.WriteString("  " + styles.TagStyle.Render(strings.Join(f.Tags, ", ")))
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	if m.scanning {
		b.WriteString(styles.HelpStyle.Render("Press q to cancel"))
	}

	return b.String()
}

// RunScan drives an interactive scan to completion and returns the report
// and the collected record. Cancellation through the UI is a normal return.
func RunScan(engine *scan.Engine, root string, pol scan.Policy) (*scan.Report, *reporter.ScanRecord, error) {
	m := NewScanViewModel(engine, root)
	p := tea.NewProgram(m)

	pr := progress.NewReporter()
	collector := reporter.NewCollector()

	go func() {
		updates := pr.Subscribe()
		for u := range updates {
			p.Send(progressMsg(u))
		}
	}()

	go func() {
		rep, err := engine.Scan(context.Background(), root, pol, scan.Callbacks{
			OnProgress: pr.Callback(),
			OnFile: func(f scan.FileResult) {
				collector.OnFile(f)
				p.Send(fileMsg(f))
			},
		})
		switch {
		case err != nil:
			pr.Finish(progress.PhaseError, scan.Progress{}, err)
		case rep.Outcome == scan.OutcomeCancelled:
			pr.Finish(progress.PhaseCancelled, scan.Progress{}, nil)
		default:
			pr.Finish(progress.PhaseComplete, scan.Progress{}, nil)
		}
		p.Send(doneMsg{report: rep, err: err})
	}()

	final, err := p.Run()
	if err != nil {
		engine.Cancel()
		return nil, nil, err
	}

	fm := final.(*ScanViewModel)
	if fm.err != nil {
		return fm.report, nil, fm.err
	}
	if fm.report == nil {
		return nil, nil, fmt.Errorf("scan did not finish")
	}
	return fm.report, collector.Record(fm.report), nil
}

// Helper function to truncate paths
func truncatePath(path string, maxLen int) string {
	if len(path) <= maxLen {
		return path
	}
	return "..." + path[len(path)-maxLen+3:]
}

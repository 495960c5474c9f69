package hivesim

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/acarl005/stripansi"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ethereum-optimism/infra/op-hivesim/types"
)

// TestStatus is the outcome of a test in the run summary.
type TestStatus string

const (
	StatusPass TestStatus = "pass"
	StatusFail TestStatus = "fail"
	StatusSkip TestStatus = "skip"
)

// TestSummary is one row of the run summary.
type TestSummary struct {
	Suite    string
	Test     string
	Status   TestStatus
	Duration time.Duration
	Details  string // first line of the failure details
}

// Stats counts tests by status.
type Stats struct {
	Total   int
	Passed  int
	Failed  int
	Skipped int
}

// Summary keeps the results of a simulator run in memory. Results are owned by
// hive; the summary only serves the console output of the simulator.
type Summary struct {
	mu      sync.Mutex
	started time.Time
	tests   []TestSummary
}

func newSummary() *Summary {
	return &Summary{started: time.Now()}
}

func (s *Summary) recordSkip(suite, test string) {
	s.add(TestSummary{Suite: suite, Test: test, Status: StatusSkip})
}

func (s *Summary) recordResult(suite, test string, result types.TestResult, duration time.Duration) {
	ts := TestSummary{Suite: suite, Test: test, Status: StatusPass, Duration: duration}
	if !result.Pass {
		ts.Status = StatusFail
		ts.Details, _, _ = strings.Cut(strings.TrimSpace(stripansi.Strip(result.Details)), "\n")
	}
	s.add(ts)
}

func (s *Summary) add(ts TestSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tests = append(s.tests, ts)
}

// Tests returns the recorded tests in execution order.
func (s *Summary) Tests() []TestSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]TestSummary(nil), s.tests...)
}

func (s *Summary) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	var st Stats
	for _, t := range s.tests {
		st.Total++
		switch t.Status {
		case StatusPass:
			st.Passed++
		case StatusFail:
			st.Failed++
		case StatusSkip:
			st.Skipped++
		}
	}
	return st
}

// Render writes the summary as a table.
func (s *Summary) Render(w io.Writer) {
	tests := s.Tests()
	stats := s.Stats()

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(fmt.Sprintf("Simulation Results (%s)", formatDuration(time.Since(s.started))))
	t.AppendHeader(table.Row{"Suite", "Test", "Duration", "Status", "Details"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Suite", AutoMerge: true},
		{Name: "Test", WidthMax: 60},
		{Name: "Duration", Align: text.AlignRight},
		{Name: "Details", WidthMax: 80},
	})
	for _, ts := range tests {
		duration := "-"
		if ts.Status != StatusSkip {
			duration = formatDuration(ts.Duration)
		}
		t.AppendRow(table.Row{ts.Suite, ts.Test, duration, statusString(ts.Status), ts.Details})
	}

	switch {
	case stats.Failed > 0:
		t.SetStyle(table.StyleColoredBlackOnRedWhite)
	case stats.Passed == 0 && stats.Skipped > 0:
		t.SetStyle(table.StyleColoredBlackOnYellowWhite)
	default:
		t.SetStyle(table.StyleColoredBlackOnGreenWhite)
	}
	// Footers are upper-cased by default.
	t.Style().Format.Footer = text.FormatDefault
	t.AppendFooter(table.Row{
		"TOTAL",
		fmt.Sprintf("%d tests", stats.Total),
		"",
		fmt.Sprintf("%d passed, %d failed, %d skipped", stats.Passed, stats.Failed, stats.Skipped),
		"",
	})
	t.Render()
}

func statusString(s TestStatus) string {
	switch s {
	case StatusPass:
		return "✓ pass"
	case StatusSkip:
		return "- skip"
	default:
		return "✗ fail"
	}
}

// Helper function to format duration to seconds with 1 decimal place
func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.1fs", d.Seconds())
}

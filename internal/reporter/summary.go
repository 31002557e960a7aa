package reporter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/jpequegn/testforge/internal/aggregator"
)

// SummaryReporter renders a single run's aggregated statistics.
type SummaryReporter interface {
	GenerateMarkdown(summary *aggregator.RunSummary, opts *ReportOptions) (string, error)
	GenerateHTML(summary *aggregator.RunSummary, opts *ReportOptions) (string, error)
	GenerateJSON(summary *aggregator.RunSummary) (string, error)
}

// BasicSummaryReporter implements SummaryReporter with self-contained
// Markdown and HTML output (no external template files or CDN assets).
type BasicSummaryReporter struct{}

// NewBasicSummaryReporter creates a new BasicSummaryReporter.
func NewBasicSummaryReporter() *BasicSummaryReporter {
	return &BasicSummaryReporter{}
}

// GenerateMarkdown renders a Markdown run summary.
func (r *BasicSummaryReporter) GenerateMarkdown(summary *aggregator.RunSummary, opts *ReportOptions) (string, error) {
	if summary == nil || len(summary.Tests) == 0 {
		return "# Test Run Summary\n\nNo tests to report.\n", nil
	}
	if opts == nil {
		opts = &ReportOptions{Title: "Test Run Summary", ShowDetails: true}
	}

	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf("# %s\n\n", opts.Title))

	ov := summary.Overview
	buf.WriteString("## Overview\n\n")
	buf.WriteString(fmt.Sprintf("- **Total Tests**: %d\n", ov.TotalTests))
	buf.WriteString(fmt.Sprintf("- **Total Elapsed**: %s\n", ov.TotalElapsed))
	buf.WriteString(fmt.Sprintf("- **Slowest**: `%s` (%s)\n", ov.SlowestTest, ov.SlowestTime))
	buf.WriteString(fmt.Sprintf("- **Fastest**: `%s` (%s)\n\n", ov.FastestTest, ov.FastestTime))

	if opts.ShowDetails {
		buf.WriteString("## Per-Test Results\n\n")
		buf.WriteString(r.markdownTable(summary.Tests))
	}

	return buf.String(), nil
}

func (r *BasicSummaryReporter) markdownTable(tests []*aggregator.TestStats) string {
	sorted := make([]*aggregator.TestStats, len(tests))
	copy(sorted, tests)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].TestKey < sorted[j].TestKey })

	var buf bytes.Buffer
	buf.WriteString("| Test | Mean | Median | Min | Max | StdDev | Attempts | Fails |\n")
	buf.WriteString("|------|------|--------|-----|-----|--------|----------|-------|\n")
	for _, t := range sorted {
		buf.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s | %s | %d | %d |\n",
			t.TestKey, t.Mean, t.Median, t.Min, t.Max, t.StdDev, t.Attempts, t.FailCount))
	}
	return buf.String()
}

// GenerateHTML renders a self-contained HTML run summary.
func (r *BasicSummaryReporter) GenerateHTML(summary *aggregator.RunSummary, opts *ReportOptions) (string, error) {
	if summary == nil || len(summary.Tests) == 0 {
		return "<h1>Test Run Summary</h1><p>No tests to report.</p>", nil
	}
	if opts == nil {
		opts = &ReportOptions{Title: "Test Run Summary", ShowDetails: true}
	}

	var buf bytes.Buffer
	buf.WriteString(`<!DOCTYPE html>
<html>
<head>
	<title>`)
	buf.WriteString(opts.Title)
	buf.WriteString(`</title>
	<style>
		body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif; margin: 20px; background-color: #121317; color: #E0E6F0; }
		.container { max-width: 1200px; margin: 0 auto; background-color: #1E2130; padding: 20px; border-radius: 8px; }
		h1 { border-bottom: 2px solid #1F4E8C; padding-bottom: 10px; }
		.summary { display: grid; grid-template-columns: repeat(auto-fit, minmax(200px, 1fr)); gap: 15px; margin: 20px 0; }
		.stat-box { padding: 15px; background-color: #262B3D; border-left: 4px solid #1F4E8C; border-radius: 4px; }
		.stat-label { font-size: 12px; color: #A3A9BF; text-transform: uppercase; }
		.stat-value { font-size: 22px; font-weight: bold; margin-top: 5px; }
		table { width: 100%; border-collapse: collapse; margin: 20px 0; }
		th { background-color: #262B3D; padding: 10px; text-align: left; border-bottom: 2px solid #333; }
		td { padding: 10px; border-bottom: 1px solid #262B3D; }
	</style>
</head>
<body>
	<div class="container">
		<h1>`)
	buf.WriteString(opts.Title)
	buf.WriteString(`</h1>
		<div class="summary">
`)
	ov := summary.Overview
	buf.WriteString(fmt.Sprintf(`			<div class="stat-box"><div class="stat-label">Total Tests</div><div class="stat-value">%d</div></div>`, ov.TotalTests))
	buf.WriteString(fmt.Sprintf(`			<div class="stat-box"><div class="stat-label">Total Elapsed</div><div class="stat-value">%s</div></div>`, ov.TotalElapsed))
	buf.WriteString(fmt.Sprintf(`			<div class="stat-box"><div class="stat-label">Slowest</div><div class="stat-value">%s</div></div>`, ov.SlowestTest))
	buf.WriteString(fmt.Sprintf(`			<div class="stat-box"><div class="stat-label">Fastest</div><div class="stat-value">%s</div></div>`, ov.FastestTest))
	buf.WriteString(`		</div>
`)

	if opts.ShowDetails {
		buf.WriteString(`		<h2>Per-Test Results</h2>
		<table>
			<thead><tr><th>Test</th><th>Mean</th><th>Median</th><th>Min</th><th>Max</th><th>StdDev</th><th>Attempts</th><th>Fails</th></tr></thead>
			<tbody>
`)
		sorted := make([]*aggregator.TestStats, len(summary.Tests))
		copy(sorted, summary.Tests)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].TestKey < sorted[j].TestKey })
		for _, t := range sorted {
			buf.WriteString(fmt.Sprintf(`				<tr><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td>%d</td><td>%d</td></tr>
`, t.TestKey, t.Mean, t.Median, t.Min, t.Max, t.StdDev, t.Attempts, t.FailCount))
		}
		buf.WriteString(`			</tbody>
		</table>
`)
	}

	buf.WriteString(`	</div>
</body>
</html>
`)

	return buf.String(), nil
}

// GenerateJSON renders the run summary as JSON.
func (r *BasicSummaryReporter) GenerateJSON(summary *aggregator.RunSummary) (string, error) {
	if summary == nil {
		return "{}", nil
	}
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

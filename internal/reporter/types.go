package reporter

// ReportFormat represents the output format for reports.
type ReportFormat string

const (
	FormatHTML     ReportFormat = "html"
	FormatJSON     ReportFormat = "json"
	FormatMarkdown ReportFormat = "markdown"
)

// ReportOptions configures report generation.
type ReportOptions struct {
	Title       string // Report title
	ShowDetails bool   // Include per-test detail tables
}

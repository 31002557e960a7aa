package cmd

import (
	"fmt"
	"os"

	"github.com/jpequegn/testforge/internal/aggregator"
	"github.com/jpequegn/testforge/internal/reporter"
	"github.com/jpequegn/testforge/internal/storage"
	"github.com/spf13/cobra"
)

// reportCmd represents the report command
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Render a persisted run as Markdown, HTML, or JSON",
	Long: `Report loads a run from the SQLite state database (the latest run by
default, or a specific one with --run-id) and renders its per-test
statistics and overview.

Example:
  testforge report --format html --output report.html
  testforge report --run-id 42 --format json`,
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().StringP("format", "f", "markdown", "report format (markdown, html, json)")
	reportCmd.Flags().StringP("output", "o", "", "output file path (default: stdout)")
	reportCmd.Flags().Int64("run-id", 0, "run id to report on (default: the latest run)")
	reportCmd.Flags().String("db", ".testforge/state.db", "path to the SQLite state database")
	reportCmd.Flags().Bool("details", true, "include the per-test detail table")
}

func runReport(cmd *cobra.Command, args []string) error {
	dbPath, _ := cmd.Flags().GetString("db")
	store, err := storage.NewSQLiteStore(dbPath)
	if err != nil {
		return fmt.Errorf("report: opening state database: %w", err)
	}
	defer store.Close()
	if err := store.Init(); err != nil {
		return fmt.Errorf("report: initializing state database: %w", err)
	}

	runID, _ := cmd.Flags().GetInt64("run-id")
	var run storage.RunRecord
	if runID != 0 {
		run, err = store.GetRun(runID)
	} else {
		run, err = store.GetLatestRun()
	}
	if err != nil {
		return fmt.Errorf("report: loading run: %w", err)
	}

	summary, err := aggregator.NewAggregator().Aggregate(attemptSamplesFromRecord(run))
	if err != nil {
		return fmt.Errorf("report: aggregating run: %w", err)
	}

	format, _ := cmd.Flags().GetString("format")
	details, _ := cmd.Flags().GetBool("details")
	rep := reporter.NewBasicSummaryReporter()
	opts := &reporter.ReportOptions{Title: fmt.Sprintf("Run #%d Summary", run.ID), ShowDetails: details}

	var rendered string
	switch reporter.ReportFormat(format) {
	case reporter.FormatMarkdown:
		rendered, err = rep.GenerateMarkdown(summary, opts)
	case reporter.FormatHTML:
		rendered, err = rep.GenerateHTML(summary, opts)
	case reporter.FormatJSON:
		rendered, err = rep.GenerateJSON(summary)
	default:
		return fmt.Errorf("report: unsupported format %q", format)
	}
	if err != nil {
		return fmt.Errorf("report: rendering %s: %w", format, err)
	}

	output, _ := cmd.Flags().GetString("output")
	if output == "" {
		fmt.Println(rendered)
		return nil
	}
	return os.WriteFile(output, []byte(rendered), 0644)
}

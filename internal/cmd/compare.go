package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/jpequegn/testforge/internal/aggregator"
	"github.com/jpequegn/testforge/internal/comparator"
	"github.com/jpequegn/testforge/internal/reporter"
	"github.com/jpequegn/testforge/internal/storage"
	"github.com/spf13/cobra"
)

// compareCmd represents the compare command
var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compare two persisted runs for regressions and new flakiness",
	Long: `Compare loads two runs from the SQLite state database — a baseline and
a current run — and statistically compares their per-test durations and
failure rates, flagging regressions, improvements, and newly flaky tests.

Example:
  testforge compare --baseline 12 --current 17
  testforge compare --baseline 12 --current 17 --format html --output report.html`,
	RunE: compareRuns,
}

func init() {
	rootCmd.AddCommand(compareCmd)

	compareCmd.Flags().Int64P("baseline", "b", 0, "baseline run id (required)")
	compareCmd.Flags().Int64P("current", "c", 0, "current run id (required)")
	compareCmd.Flags().Float64P("threshold", "t", 1.2, "regression threshold multiplier (default: 1.2 = 20% slower)")
	compareCmd.Flags().Float64P("confidence", "C", 0.95, "statistical confidence level (default: 0.95 = 95%)")
	compareCmd.Flags().StringP("format", "f", "markdown", "output format: markdown, html, or json (default: markdown)")
	compareCmd.Flags().StringP("output", "o", "", "output file path (default: stdout)")
	compareCmd.Flags().String("db", ".testforge/state.db", "path to the SQLite state database")

	_ = compareCmd.MarkFlagRequired("baseline")
	_ = compareCmd.MarkFlagRequired("current")
}

func compareRuns(cmd *cobra.Command, args []string) error {
	baselineID, _ := cmd.Flags().GetInt64("baseline")
	currentID, _ := cmd.Flags().GetInt64("current")
	threshold, _ := cmd.Flags().GetFloat64("threshold")
	confidence, _ := cmd.Flags().GetFloat64("confidence")
	format, _ := cmd.Flags().GetString("format")
	outputPath, _ := cmd.Flags().GetString("output")
	dbPath, _ := cmd.Flags().GetString("db")

	if format != "markdown" && format != "html" && format != "json" {
		return fmt.Errorf("invalid format: %s (must be markdown, html, or json)", format)
	}
	if confidence <= 0 || confidence >= 1 {
		return fmt.Errorf("confidence level must be between 0 and 1 (e.g., 0.95 for 95%%)")
	}
	if threshold <= 1.0 {
		return fmt.Errorf("threshold must be greater than 1.0 (e.g., 1.2 for 20%% regression)")
	}

	store, err := storage.NewSQLiteStore(dbPath)
	if err != nil {
		return fmt.Errorf("compare: opening state database: %w", err)
	}
	defer store.Close()
	if err := store.Init(); err != nil {
		return fmt.Errorf("compare: initializing state database: %w", err)
	}

	slog.Info("loading runs", "baseline", baselineID, "current", currentID)

	baselineRun, err := store.GetRun(baselineID)
	if err != nil {
		return fmt.Errorf("compare: loading baseline run %d: %w", baselineID, err)
	}
	currentRun, err := store.GetRun(currentID)
	if err != nil {
		return fmt.Errorf("compare: loading current run %d: %w", currentID, err)
	}

	agg := aggregator.NewAggregator()
	baselineSummary, err := agg.Aggregate(attemptSamplesFromRecord(baselineRun))
	if err != nil {
		return fmt.Errorf("compare: aggregating baseline run: %w", err)
	}
	currentSummary, err := agg.Aggregate(attemptSamplesFromRecord(currentRun))
	if err != nil {
		return fmt.Errorf("compare: aggregating current run: %w", err)
	}

	comp := comparator.NewBasicComparator()
	comp.RegressionThreshold = threshold
	comp.ConfidenceLevel = confidence

	slog.Info("performing comparison", "threshold", threshold, "confidence", confidence)

	result := comp.Compare(baselineSummary, currentSummary)

	slog.Info("comparison complete",
		"total", result.Summary.TotalComparisons,
		"regressions", result.Summary.Regressions,
		"improvements", result.Summary.Improvements,
		"significant", result.Summary.SignificantChanges)

	compReporter := reporter.NewBasicComparisonReporter()

	var report string
	switch format {
	case "markdown":
		report, err = compReporter.GenerateMarkdown(result)
	case "html":
		report, err = compReporter.GenerateHTML(result)
	case "json":
		report, err = compReporter.GenerateJSON(result)
	}
	if err != nil {
		return fmt.Errorf("compare: generating %s report: %w", format, err)
	}

	if outputPath != "" {
		if err := os.WriteFile(outputPath, []byte(report), 0644); err != nil {
			return fmt.Errorf("compare: writing output file: %w", err)
		}
		slog.Info("report written", "path", outputPath)
		fmt.Fprintf(os.Stderr, "Report saved to: %s\n", outputPath)
	} else {
		fmt.Println(report)
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Comparison Summary\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "Total Comparisons: %d\n", result.Summary.TotalComparisons)
	fmt.Fprintf(os.Stderr, "Regressions:      %d\n", result.Summary.Regressions)
	fmt.Fprintf(os.Stderr, "Improvements:     %d\n", result.Summary.Improvements)
	fmt.Fprintf(os.Stderr, "Significant:      %d\n", result.Summary.SignificantChanges)
	fmt.Fprintf(os.Stderr, "Average Delta:    %.2f%%\n", result.Summary.AverageDelta)
	fmt.Fprintf(os.Stderr, "Max Delta:        %.2f%%\n", result.Summary.MaxDelta)
	fmt.Fprintf(os.Stderr, "Min Delta:        %.2f%%\n", result.Summary.MinDelta)
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════\n")

	if result.Summary.Regressions > 0 {
		fmt.Fprintf(os.Stderr, "\n⚠️  Regressions detected!\n")
		for _, name := range result.Regressions {
			fmt.Fprintf(os.Stderr, "  • %s\n", name)
		}
		return fmt.Errorf("regressions detected (%d)", result.Summary.Regressions)
	}

	return nil
}

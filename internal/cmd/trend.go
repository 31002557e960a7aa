package cmd

import (
	"fmt"
	"os"

	"github.com/jpequegn/testforge/internal/analyzer"
	"github.com/jpequegn/testforge/internal/reporter"
	"github.com/jpequegn/testforge/internal/storage"
	"github.com/spf13/cobra"
)

// trendCmd reports whether a test's duration is improving, degrading,
// or stable across its recorded history, along with any anomalous
// attempts. A forecast is computed but is not part of the rendered
// report.
var trendCmd = &cobra.Command{
	Use:   "trend <test-key>",
	Short: "Analyze a test's duration trend across its run history",
	Long: `Trend loads every recorded attempt for test-key from the state
database, fits a linear trend to its elapsed time, and flags attempts
that deviate sharply from the historical mean. A duration forecast for
--forecast-periods days ahead is computed but not included in the
report.`,
	Args: cobra.ExactArgs(1),
	RunE: runTrend,
}

func init() {
	rootCmd.AddCommand(trendCmd)

	trendCmd.Flags().String("db", ".testforge/state.db", "path to the SQLite state database")
	trendCmd.Flags().StringP("format", "f", "markdown", "output format: markdown, html, or json")
	trendCmd.Flags().StringP("output", "o", "", "write to this file instead of stdout")
	trendCmd.Flags().Int("limit", 0, "maximum number of historical attempts to consider (0 = unlimited)")
	trendCmd.Flags().Int("min-data-points", 3, "minimum attempts required before a trend is computed")
	trendCmd.Flags().Float64("z-score-threshold", 2.5, "standard deviations from the mean that mark an anomaly")
	trendCmd.Flags().Int("forecast-periods", 3, "number of days ahead to forecast (the forecast is not included in the report)")
}

func runTrend(cmd *cobra.Command, args []string) error {
	testKey := args[0]
	dbPath, _ := cmd.Flags().GetString("db")
	format, _ := cmd.Flags().GetString("format")
	output, _ := cmd.Flags().GetString("output")
	limit, _ := cmd.Flags().GetInt("limit")
	minDataPoints, _ := cmd.Flags().GetInt("min-data-points")
	zThreshold, _ := cmd.Flags().GetFloat64("z-score-threshold")
	periods, _ := cmd.Flags().GetInt("forecast-periods")

	store, err := storage.NewSQLiteStore(dbPath)
	if err != nil {
		return fmt.Errorf("trend: %w", err)
	}
	defer store.Close()
	if err := store.Init(); err != nil {
		return fmt.Errorf("trend: %w", err)
	}

	attempts, err := store.GetHistory(testKey, limit)
	if err != nil {
		return fmt.Errorf("trend: %w", err)
	}
	if len(attempts) == 0 {
		return fmt.Errorf("trend: no history recorded for %q", testKey)
	}

	history := make([]*analyzer.HistoricalPoint, 0, len(attempts))
	for _, a := range attempts {
		history = append(history, &analyzer.HistoricalPoint{
			TestKey:   a.TestKey,
			RunID:     a.RunID,
			ElapsedNs: a.Elapsed.Nanoseconds(),
			Outcome:   a.Outcome,
			Timestamp: a.StartedAt,
		})
	}

	ta := analyzer.NewBasicTrendAnalyzer()
	var trends []*analyzer.TrendResult
	result, err := ta.CalculateTrend(history, minDataPoints)
	if err != nil {
		return fmt.Errorf("trend: %w", err)
	}
	if result != nil {
		trends = append(trends, result)
	}
	anomalies := ta.DetectAnomalies(history, zThreshold)
	_ = ta.ForecastPerformance(history, periods)

	rep := reporter.NewBasicTrendReporter()
	var rendered string
	switch reporter.ReportFormat(format) {
	case reporter.FormatMarkdown:
		rendered, err = rep.GenerateTrendMarkdown(trends, anomalies)
	case reporter.FormatHTML:
		rendered, err = rep.GenerateTrendHTML(trends, anomalies)
	case reporter.FormatJSON:
		rendered, err = rep.GenerateTrendJSON(trends, anomalies)
	default:
		return fmt.Errorf("trend: unsupported format %q", format)
	}
	if err != nil {
		return fmt.Errorf("trend: %w", err)
	}

	if output == "" {
		fmt.Fprintln(cmd.OutOrStdout(), rendered)
		return nil
	}
	return os.WriteFile(output, []byte(rendered+"\n"), 0644)
}

package reporter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/jpequegn/testforge/internal/comparator"
)

// ComparisonReporter generates comparison reports in various formats.
type ComparisonReporter interface {
	GenerateMarkdown(result *comparator.ComparisonResult) (string, error)
	GenerateHTML(result *comparator.ComparisonResult) (string, error)
	GenerateJSON(result *comparator.ComparisonResult) (string, error)
}

// BasicComparisonReporter implements ComparisonReporter.
type BasicComparisonReporter struct{}

// NewBasicComparisonReporter creates a new BasicComparisonReporter.
func NewBasicComparisonReporter() *BasicComparisonReporter {
	return &BasicComparisonReporter{}
}

// GenerateMarkdown generates a Markdown comparison report.
func (bcr *BasicComparisonReporter) GenerateMarkdown(result *comparator.ComparisonResult) (string, error) {
	if result == nil || len(result.Tests) == 0 {
		return "# Comparison Report\n\nNo tests to compare.\n", nil
	}

	var buf bytes.Buffer
	buf.WriteString("# Run Comparison Report\n\n")

	buf.WriteString("## Summary\n\n")
	buf.WriteString(fmt.Sprintf("- **Total Comparisons**: %d\n", result.Summary.TotalComparisons))
	buf.WriteString(fmt.Sprintf("- **Regressions**: %d\n", result.Summary.Regressions))
	buf.WriteString(fmt.Sprintf("- **Improvements**: %d\n", result.Summary.Improvements))
	buf.WriteString(fmt.Sprintf("- **Average Delta**: %.2f%%\n", result.Summary.AverageDelta))
	buf.WriteString(fmt.Sprintf("- **Max Delta**: %.2f%%\n", result.Summary.MaxDelta))
	buf.WriteString(fmt.Sprintf("- **Min Delta**: %.2f%%\n", result.Summary.MinDelta))
	buf.WriteString(fmt.Sprintf("- **Significant Changes**: %d\n\n", result.Summary.SignificantChanges))

	if len(result.Regressions) > 0 {
		buf.WriteString("## ⚠️ Regressions\n\n")
		for _, name := range result.Regressions {
			buf.WriteString(fmt.Sprintf("- `%s`\n", name))
		}
		buf.WriteString("\n")
	}

	if len(result.Improvements) > 0 {
		buf.WriteString("## ✅ Improvements\n\n")
		for _, name := range result.Improvements {
			buf.WriteString(fmt.Sprintf("- `%s`\n", name))
		}
		buf.WriteString("\n")
	}

	buf.WriteString("## Detailed Results\n\n")
	buf.WriteString(bcr.generateMarkdownTable(result.Tests))

	return buf.String(), nil
}

func (bcr *BasicComparisonReporter) generateMarkdownTable(comparisons []*comparator.TestComparison) string {
	if len(comparisons) == 0 {
		return ""
	}

	var buf bytes.Buffer
	buf.WriteString("| Test | Baseline | Current | Time Δ | Flakiness Δ | Status | P-Value | Effect Size |\n")
	buf.WriteString("|------|----------|---------|--------|-------------|--------|---------|-------------|\n")

	sorted := make([]*comparator.TestComparison, len(comparisons))
	copy(sorted, comparisons)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].TestKey < sorted[j].TestKey })

	for _, comp := range sorted {
		status := "→"
		if comp.IsRegression {
			status = "🔴"
		} else if comp.TimeDeltaPercent < 0 {
			status = "🟢"
		}

		buf.WriteString(fmt.Sprintf("| %s | %s | %s | %.2f%% | %.2f%% | %s | %.4f | %.2f |\n",
			comp.TestKey,
			comp.Baseline.Mean,
			comp.Current.Mean,
			comp.TimeDeltaPercent,
			comp.FlakinessDelta*100,
			status,
			comp.TTestPValue,
			comp.EffectSize,
		))
	}

	return buf.String()
}

// GenerateHTML generates a self-contained HTML comparison report.
func (bcr *BasicComparisonReporter) GenerateHTML(result *comparator.ComparisonResult) (string, error) {
	if result == nil || len(result.Tests) == 0 {
		return "<h1>Comparison Report</h1><p>No tests to compare.</p>", nil
	}

	var buf bytes.Buffer
	buf.WriteString(`<!DOCTYPE html>
<html>
<head>
	<title>Run Comparison Report</title>
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
		.regression { color: #dc3545; font-weight: bold; }
		.improvement { color: #28a745; font-weight: bold; }
	</style>
</head>
<body>
	<div class="container">
		<h1>Run Comparison Report</h1>
		<div class="summary">
`)
	buf.WriteString(fmt.Sprintf(`			<div class="stat-box"><div class="stat-label">Total Comparisons</div><div class="stat-value">%d</div></div>`, result.Summary.TotalComparisons))
	buf.WriteString(fmt.Sprintf(`			<div class="stat-box"><div class="stat-label">Regressions</div><div class="stat-value" style="color:#dc3545;">%d</div></div>`, result.Summary.Regressions))
	buf.WriteString(fmt.Sprintf(`			<div class="stat-box"><div class="stat-label">Improvements</div><div class="stat-value" style="color:#28a745;">%d</div></div>`, result.Summary.Improvements))
	buf.WriteString(fmt.Sprintf(`			<div class="stat-box"><div class="stat-label">Average Delta</div><div class="stat-value">%.2f%%</div></div>`, result.Summary.AverageDelta))
	buf.WriteString(`		</div>

		<h2>Detailed Results</h2>
		<table>
			<thead><tr><th>Test</th><th>Baseline</th><th>Current</th><th>Time Δ</th><th>Flakiness Δ</th><th>P-Value</th><th>Effect Size</th></tr></thead>
			<tbody>
`)

	sorted := make([]*comparator.TestComparison, len(result.Tests))
	copy(sorted, result.Tests)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].TestKey < sorted[j].TestKey })

	for _, comp := range sorted {
		statusClass := ""
		if comp.IsRegression {
			statusClass = `class="regression"`
		} else if comp.TimeDeltaPercent < 0 {
			statusClass = `class="improvement"`
		}

		buf.WriteString(fmt.Sprintf(`				<tr>
					<td>%s</td>
					<td>%s</td>
					<td>%s</td>
					<td %s>%.2f%%</td>
					<td>%.2f%%</td>
					<td>%.4f</td>
					<td>%.2f</td>
				</tr>
`, comp.TestKey, comp.Baseline.Mean, comp.Current.Mean, statusClass, comp.TimeDeltaPercent, comp.FlakinessDelta*100, comp.TTestPValue, comp.EffectSize))
	}

	buf.WriteString(`			</tbody>
		</table>
	</div>
</body>
</html>
`)

	return buf.String(), nil
}

// GenerateJSON generates a JSON comparison report.
func (bcr *BasicComparisonReporter) GenerateJSON(result *comparator.ComparisonResult) (string, error) {
	if result == nil {
		return "{}", nil
	}

	jsonData := map[string]interface{}{
		"summary": map[string]interface{}{
			"total_comparisons":   result.Summary.TotalComparisons,
			"regressions":         result.Summary.Regressions,
			"improvements":        result.Summary.Improvements,
			"average_delta":       result.Summary.AverageDelta,
			"max_delta":           result.Summary.MaxDelta,
			"min_delta":           result.Summary.MinDelta,
			"significant_changes": result.Summary.SignificantChanges,
		},
		"regressions":  result.Regressions,
		"improvements": result.Improvements,
		"tests":        bcr.marshalTestComparisons(result.Tests),
	}

	data, err := json.MarshalIndent(jsonData, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (bcr *BasicComparisonReporter) marshalTestComparisons(comparisons []*comparator.TestComparison) []map[string]interface{} {
	results := make([]map[string]interface{}, 0, len(comparisons))
	for _, comp := range comparisons {
		results = append(results, map[string]interface{}{
			"test_key":             comp.TestKey,
			"baseline_mean_ns":     comp.Baseline.Mean.Nanoseconds(),
			"current_mean_ns":      comp.Current.Mean.Nanoseconds(),
			"time_delta_percent":   comp.TimeDeltaPercent,
			"flakiness_delta":      comp.FlakinessDelta,
			"is_regression":        comp.IsRegression,
			"is_significant":       comp.IsSignificant,
			"confidence_level":     comp.ConfidenceLevel,
			"t_test_p_value":       comp.TTestPValue,
			"effect_size_cohens_d": comp.EffectSize,
			"regression_threshold": comp.RegressionThreshold,
		})
	}
	return results
}

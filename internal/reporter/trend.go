package reporter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/jpequegn/testforge/internal/analyzer"
)

// TrendReporter generates trend analysis reports.
type TrendReporter interface {
	GenerateTrendMarkdown(trends []*analyzer.TrendResult, anomalies []*analyzer.Anomaly) (string, error)
	GenerateTrendHTML(trends []*analyzer.TrendResult, anomalies []*analyzer.Anomaly) (string, error)
	GenerateTrendJSON(trends []*analyzer.TrendResult, anomalies []*analyzer.Anomaly) (string, error)
}

// BasicTrendReporter implements TrendReporter.
type BasicTrendReporter struct{}

// NewBasicTrendReporter creates a new trend reporter.
func NewBasicTrendReporter() *BasicTrendReporter {
	return &BasicTrendReporter{}
}

// GenerateTrendMarkdown generates a Markdown trend report.
func (btr *BasicTrendReporter) GenerateTrendMarkdown(trends []*analyzer.TrendResult, anomalies []*analyzer.Anomaly) (string, error) {
	var buf bytes.Buffer
	buf.WriteString("# Test Duration Trend Report\n\n")

	buf.WriteString("## Summary\n\n")
	improving, degrading, stable := countDirections(trends)
	buf.WriteString(fmt.Sprintf("- **Total Tests**: %d\n", len(trends)))
	buf.WriteString(fmt.Sprintf("- **Improving**: %d (🟢)\n", improving))
	buf.WriteString(fmt.Sprintf("- **Degrading**: %d (🔴)\n", degrading))
	buf.WriteString(fmt.Sprintf("- **Stable**: %d (→)\n", stable))
	if len(anomalies) > 0 {
		buf.WriteString(fmt.Sprintf("- **Anomalies Detected**: %d ⚠️\n", len(anomalies)))
	}
	buf.WriteString("\n")

	if len(trends) > 0 {
		buf.WriteString("## Trend Analysis\n\n")
		buf.WriteString("| Test | Direction | Change | Slope | R² | Data Points |\n")
		buf.WriteString("|------|-----------|--------|-------|-----|-------------|\n")

		sorted := make([]*analyzer.TrendResult, len(trends))
		copy(sorted, trends)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].TestKey < sorted[j].TestKey })

		for _, t := range sorted {
			emoji := directionEmoji(t.Direction)
			buf.WriteString(fmt.Sprintf("| %s | %s %s | %.2f%% | %.2f | %.3f | %d |\n",
				t.TestKey, emoji, t.Direction, t.ChangePercent, t.Slope, t.RSquared, t.DataPoints))
		}
		buf.WriteString("\n")
	}

	if len(anomalies) > 0 {
		buf.WriteString("## Detected Anomalies\n\n")

		byKey := make(map[string][]*analyzer.Anomaly)
		for _, a := range anomalies {
			byKey[a.TestKey] = append(byKey[a.TestKey], a)
		}

		keys := make([]string, 0, len(byKey))
		for k := range byKey {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, key := range keys {
			buf.WriteString(fmt.Sprintf("### %s\n\n", key))
			for _, a := range byKey[key] {
				severityEmoji := "⚠️"
				if a.Severity == "critical" {
					severityEmoji = "🚨"
				} else if a.Severity == "high" {
					severityEmoji = "⛔"
				}
				buf.WriteString(fmt.Sprintf("- **%s** %s: z-score %.2f\n",
					a.Timestamp.Format("2006-01-02 15:04"), severityEmoji, a.ZScore))
				if a.IsRegression {
					buf.WriteString("  ⚠️ Regression detected\n")
				}
			}
			buf.WriteString("\n")
		}
	}

	buf.WriteString("## Legend\n\n")
	buf.WriteString("- **Direction**: 🟢 improving, 🔴 degrading, → stable\n")
	buf.WriteString("- **Change**: Percentage change from first to last measurement\n")
	buf.WriteString("- **Slope**: Change per day (ns/day)\n")
	buf.WriteString("- **R²**: Trend confidence (0-1, higher = more reliable)\n")
	buf.WriteString("- **Data Points**: Number of measurements in trend\n")

	return buf.String(), nil
}

// GenerateTrendHTML generates a self-contained HTML trend report.
func (btr *BasicTrendReporter) GenerateTrendHTML(trends []*analyzer.TrendResult, anomalies []*analyzer.Anomaly) (string, error) {
	var buf bytes.Buffer
	buf.WriteString(`<!DOCTYPE html>
<html>
<head>
	<title>Test Duration Trend Report</title>
	<style>
		body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif; margin: 20px; background-color: #121317; color: #E0E6F0; }
		.container { max-width: 1200px; margin: 0 auto; background-color: #1E2130; padding: 20px; border-radius: 8px; }
		h1 { border-bottom: 2px solid #1F4E8C; padding-bottom: 10px; }
		.summary { display: grid; grid-template-columns: repeat(auto-fit, minmax(150px, 1fr)); gap: 15px; margin: 20px 0; }
		.stat-box { padding: 15px; background-color: #262B3D; border-left: 4px solid #1F4E8C; border-radius: 4px; }
		.stat-label { font-size: 12px; color: #A3A9BF; text-transform: uppercase; }
		.stat-value { font-size: 22px; font-weight: bold; margin-top: 5px; }
		table { width: 100%; border-collapse: collapse; margin: 20px 0; }
		th { background-color: #262B3D; padding: 10px; text-align: left; border-bottom: 2px solid #333; }
		td { padding: 10px; border-bottom: 1px solid #262B3D; }
		.improving { color: #28a745; font-weight: bold; }
		.degrading { color: #dc3545; font-weight: bold; }
		.stable { color: #A3A9BF; }
		.anomaly { background-color: #332b1a; padding: 10px; margin: 10px 0; border-left: 4px solid #ffc107; border-radius: 4px; }
		.critical { background-color: #3a1f22; border-left-color: #dc3545; }
		.high { background-color: #332b1a; border-left-color: #fd7e14; }
	</style>
</head>
<body>
	<div class="container">
		<h1>Test Duration Trend Report</h1>
		<div class="summary">
`)

	improving, degrading, stable := countDirections(trends)
	buf.WriteString(fmt.Sprintf(`			<div class="stat-box"><div class="stat-label">Total</div><div class="stat-value">%d</div></div>`, len(trends)))
	buf.WriteString(fmt.Sprintf(`			<div class="stat-box"><div class="stat-label">Improving</div><div class="stat-value" style="color:#28a745;">%d</div></div>`, improving))
	buf.WriteString(fmt.Sprintf(`			<div class="stat-box"><div class="stat-label">Degrading</div><div class="stat-value" style="color:#dc3545;">%d</div></div>`, degrading))
	buf.WriteString(fmt.Sprintf(`			<div class="stat-box"><div class="stat-label">Stable</div><div class="stat-value">%d</div></div>`, stable))
	if len(anomalies) > 0 {
		buf.WriteString(fmt.Sprintf(`			<div class="stat-box"><div class="stat-label">Anomalies</div><div class="stat-value" style="color:#ffc107;">%d</div></div>`, len(anomalies)))
	}
	buf.WriteString(`		</div>
`)

	if len(trends) > 0 {
		buf.WriteString(`		<h2>Trend Analysis</h2>
		<table>
			<thead><tr><th>Test</th><th>Direction</th><th>Change</th><th>Slope</th><th>R²</th><th>Data Points</th></tr></thead>
			<tbody>
`)
		sorted := make([]*analyzer.TrendResult, len(trends))
		copy(sorted, trends)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].TestKey < sorted[j].TestKey })

		for _, t := range sorted {
			class := t.Direction
			emoji := directionEmoji(t.Direction)
			buf.WriteString(fmt.Sprintf(`				<tr><td>%s</td><td class="%s">%s %s</td><td>%.2f%%</td><td>%.2f ns/day</td><td>%.3f</td><td>%d</td></tr>
`, t.TestKey, class, emoji, t.Direction, t.ChangePercent, t.Slope, t.RSquared, t.DataPoints))
		}
		buf.WriteString(`			</tbody>
		</table>
`)
	}

	if len(anomalies) > 0 {
		buf.WriteString(`		<h2>Detected Anomalies</h2>
`)
		byKey := make(map[string][]*analyzer.Anomaly)
		for _, a := range anomalies {
			byKey[a.TestKey] = append(byKey[a.TestKey], a)
		}
		keys := make([]string, 0, len(byKey))
		for k := range byKey {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, key := range keys {
			buf.WriteString(fmt.Sprintf(`		<h3>%s</h3>
`, key))
			for _, a := range byKey[key] {
				class := "anomaly"
				if a.Severity == "critical" {
					class = "anomaly critical"
				} else if a.Severity == "high" {
					class = "anomaly high"
				}
				buf.WriteString(fmt.Sprintf(`		<div class="%s">
			<strong>%s</strong> (Severity: %s, Z-score: %.2f)<br>
			Duration: %.0f ns
`, class, a.Timestamp.Format("2006-01-02 15:04"), a.Severity, a.ZScore, a.Value))
				if a.IsRegression {
					buf.WriteString(`			<br><em>⚠️ Regression detected</em>
`)
				}
				buf.WriteString(`		</div>
`)
			}
		}
	}

	buf.WriteString(`	</div>
</body>
</html>
`)

	return buf.String(), nil
}

// GenerateTrendJSON generates a JSON trend report.
func (btr *BasicTrendReporter) GenerateTrendJSON(trends []*analyzer.TrendResult, anomalies []*analyzer.Anomaly) (string, error) {
	trendData := make([]map[string]interface{}, 0, len(trends))
	for _, t := range trends {
		trendData = append(trendData, map[string]interface{}{
			"test_key":         t.TestKey,
			"direction":        t.Direction,
			"slope_ns_per_day": t.Slope,
			"r_squared":        t.RSquared,
			"change_percent":   t.ChangePercent,
			"period_days":      t.PeriodDays,
			"data_points":      t.DataPoints,
			"start_time":       t.StartTime.Format("2006-01-02T15:04:05Z"),
			"end_time":         t.EndTime.Format("2006-01-02T15:04:05Z"),
			"start_value_ns":   t.StartValue,
			"end_value_ns":     t.EndValue,
		})
	}

	anomalyData := make([]map[string]interface{}, 0, len(anomalies))
	for _, a := range anomalies {
		anomalyData = append(anomalyData, map[string]interface{}{
			"test_key":      a.TestKey,
			"timestamp":     a.Timestamp.Format("2006-01-02T15:04:05Z"),
			"value_ns":      a.Value,
			"z_score":       a.ZScore,
			"severity":      a.Severity,
			"message":       a.Message,
			"is_regression": a.IsRegression,
		})
	}

	improving, degrading, stable := countDirections(trends)
	data := map[string]interface{}{
		"summary": map[string]interface{}{
			"total_tests":     len(trends),
			"improving":       improving,
			"degrading":       degrading,
			"stable":          stable,
			"anomalies_count": len(anomalies),
		},
		"trends":    trendData,
		"anomalies": anomalyData,
	}

	jsonBytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", err
	}
	return string(jsonBytes), nil
}

func countDirections(trends []*analyzer.TrendResult) (improving, degrading, stable int) {
	for _, t := range trends {
		switch t.Direction {
		case "improving":
			improving++
		case "degrading":
			degrading++
		case "stable":
			stable++
		}
	}
	return
}

func directionEmoji(direction string) string {
	switch direction {
	case "improving":
		return "🟢"
	case "degrading":
		return "🔴"
	default:
		return "→"
	}
}

package reporter

import (
	"strings"
	"testing"
	"time"

	"github.com/jpequegn/testforge/internal/analyzer"
)

func sampleTrends() []*analyzer.TrendResult {
	now := time.Now()
	return []*analyzer.TrendResult{
		{TestKey: "bin::slow", Direction: "degrading", Slope: 10, RSquared: 0.9, ChangePercent: 20, DataPoints: 5, StartTime: now, EndTime: now.Add(5 * 24 * time.Hour)},
		{TestKey: "bin::fast", Direction: "improving", Slope: -5, RSquared: 0.8, ChangePercent: -10, DataPoints: 4, StartTime: now, EndTime: now.Add(4 * 24 * time.Hour)},
	}
}

func sampleAnomalies() []*analyzer.Anomaly {
	return []*analyzer.Anomaly{
		{TestKey: "bin::slow", Timestamp: time.Now(), Value: 99999, ZScore: 4.2, Severity: "critical", IsRegression: true},
	}
}

func TestTrendGenerateMarkdown(t *testing.T) {
	r := NewBasicTrendReporter()
	md, err := r.GenerateTrendMarkdown(sampleTrends(), sampleAnomalies())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(md, "# Test Duration Trend Report") {
		t.Error("missing header")
	}
	if !strings.Contains(md, "bin::slow") || !strings.Contains(md, "bin::fast") {
		t.Error("missing expected test keys")
	}
	if !strings.Contains(md, "Detected Anomalies") {
		t.Error("expected anomalies section")
	}
}

func TestTrendGenerateHTML(t *testing.T) {
	r := NewBasicTrendReporter()
	html, err := r.GenerateTrendHTML(sampleTrends(), sampleAnomalies())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(html, "<!DOCTYPE html>") {
		t.Error("expected valid HTML document")
	}
	if !strings.Contains(html, "bin::slow") {
		t.Error("expected test key in output")
	}
	if !strings.Contains(html, "critical") {
		t.Error("expected anomaly severity in output")
	}
}

func TestTrendGenerateJSON(t *testing.T) {
	r := NewBasicTrendReporter()
	data, err := r.GenerateTrendJSON(sampleTrends(), sampleAnomalies())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(data, `"bin::slow"`) {
		t.Error("expected test key in JSON output")
	}
	if !strings.Contains(data, `"anomalies_count": 1`) {
		t.Error("expected anomalies_count in summary")
	}
}

func TestTrendGenerateMarkdownNoData(t *testing.T) {
	r := NewBasicTrendReporter()
	md, err := r.GenerateTrendMarkdown(nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(md, "Total Tests**: 0") {
		t.Error("expected zero total tests")
	}
}

// Package comparator detects duration regressions and flakiness
// deltas between two runs' aggregated test statistics.
package comparator

import "github.com/jpequegn/testforge/internal/aggregator"

// Comparator compares a baseline run's per-test statistics against a
// current run's.
type Comparator interface {
	Compare(baseline, current *aggregator.RunSummary) *ComparisonResult
	GetSignificance(baseline, current *aggregator.TestStats, confidenceLevel float64) (significant bool, pValue float64)
}

// ComparisonResult is the full comparison across every test present
// in both runs.
type ComparisonResult struct {
	Tests        []*TestComparison
	Summary      ComparisonSummary
	Regressions  []string
	Improvements []string
}

// TestComparison is the delta for one test between baseline and current.
type TestComparison struct {
	TestKey             string
	Baseline            *aggregator.TestStats
	Current             *aggregator.TestStats
	TimeDeltaPercent    float64
	FlakinessDelta      float64 // change in fail-rate (current - baseline), [-1, 1]
	IsRegression        bool
	IsSignificant       bool
	ConfidenceLevel     float64
	RegressionThreshold float64
	TTestPValue         float64
	EffectSize          float64
}

// ComparisonSummary aggregates headline numbers across every comparison.
type ComparisonSummary struct {
	TotalComparisons   int
	Regressions        int
	Improvements       int
	SignificantChanges int
	AverageDelta       float64
	MinDelta           float64
	MaxDelta           float64
}

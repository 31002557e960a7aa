// Package aggregator rolls up a run's recorded attempts into per-test
// duration statistics and an overall run overview.
package aggregator

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"
)

// DefaultAggregator implements Aggregator.
type DefaultAggregator struct{}

// NewAggregator creates a new aggregator instance.
func NewAggregator() *DefaultAggregator {
	return &DefaultAggregator{}
}

// Aggregate groups attempts by test key and computes mean/median/min/
// max/stddev elapsed time and the fail count for each, plus an
// overview across the whole run.
func (a *DefaultAggregator) Aggregate(attempts []AttemptSample) (*RunSummary, error) {
	if len(attempts) == 0 {
		return nil, fmt.Errorf("aggregator: no attempts to aggregate")
	}

	byKey := make(map[string][]AttemptSample)
	for _, at := range attempts {
		byKey[at.TestKey] = append(byKey[at.TestKey], at)
	}

	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	summary := &RunSummary{Timestamp: time.Now(), Overview: &Overview{}}
	for _, key := range keys {
		stats := computeTestStats(key, byKey[key])
		summary.Tests = append(summary.Tests, stats)
		summary.Duration += stats.Mean * time.Duration(stats.Attempts)
	}

	summary.Overview = computeOverview(summary.Tests)
	return summary, nil
}

func computeTestStats(key string, samples []AttemptSample) *TestStats {
	durations := make([]time.Duration, len(samples))
	var sum time.Duration
	var failCount int64
	latest := samples[0].Timestamp

	for i, s := range samples {
		durations[i] = s.Elapsed
		sum += s.Elapsed
		if s.Outcome != "pass" {
			failCount++
		}
		if s.Timestamp.After(latest) {
			latest = s.Timestamp
		}
	}

	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })

	n := len(durations)
	mean := sum / time.Duration(n)
	median := durations[n/2]
	if n%2 == 0 && n > 0 {
		median = (durations[n/2-1] + durations[n/2]) / 2
	}

	var variance float64
	for _, d := range durations {
		diff := float64(d - mean)
		variance += diff * diff
	}
	variance /= float64(n)
	stddev := time.Duration(math.Sqrt(variance))

	return &TestStats{
		TestKey:   key,
		Mean:      mean,
		Median:    median,
		Min:       durations[0],
		Max:       durations[n-1],
		StdDev:    stddev,
		Attempts:  int64(n),
		FailCount: failCount,
		Timestamp: latest,
	}
}

func computeOverview(tests []*TestStats) *Overview {
	ov := &Overview{TotalTests: len(tests)}
	if len(tests) == 0 {
		return ov
	}

	fastest, slowest := tests[0], tests[0]
	for _, t := range tests {
		ov.TotalElapsed += t.Mean * time.Duration(t.Attempts)
		if t.Mean < fastest.Mean {
			fastest = t
		}
		if t.Mean > slowest.Mean {
			slowest = t
		}
	}
	ov.FastestTest = fastest.TestKey
	ov.FastestTime = fastest.Mean
	ov.SlowestTest = slowest.TestKey
	ov.SlowestTime = slowest.Mean
	return ov
}

// Export serializes summary as JSON or a flat per-test CSV.
func (a *DefaultAggregator) Export(summary *RunSummary, format ExportFormat) ([]byte, error) {
	switch format {
	case FormatJSON:
		return json.MarshalIndent(summary, "", "  ")
	case FormatCSV:
		return exportCSV(summary)
	default:
		return nil, fmt.Errorf("aggregator: unsupported export format %q", format)
	}
}

func exportCSV(summary *RunSummary) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"test_key", "mean_ns", "median_ns", "min_ns", "max_ns", "stddev_ns", "attempts", "fail_count"}); err != nil {
		return nil, err
	}
	for _, t := range summary.Tests {
		row := []string{
			t.TestKey,
			strconv.FormatInt(t.Mean.Nanoseconds(), 10),
			strconv.FormatInt(t.Median.Nanoseconds(), 10),
			strconv.FormatInt(t.Min.Nanoseconds(), 10),
			strconv.FormatInt(t.Max.Nanoseconds(), 10),
			strconv.FormatInt(t.StdDev.Nanoseconds(), 10),
			strconv.FormatInt(t.Attempts, 10),
			strconv.FormatInt(t.FailCount, 10),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

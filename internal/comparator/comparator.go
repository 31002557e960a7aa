package comparator

import (
	"math"
	"sort"

	"github.com/jpequegn/testforge/internal/aggregator"
)

// BasicComparator implements Comparator with a t-test style
// significance check and Cohen's d effect size, the same statistical
// machinery used for benchmark regression detection generalized to
// test-duration regression detection.
type BasicComparator struct {
	ConfidenceLevel     float64
	RegressionThreshold float64 // e.g. 1.2 = current must be 20% slower to flag
}

// NewBasicComparator creates a comparator with sane defaults.
func NewBasicComparator() *BasicComparator {
	return &BasicComparator{ConfidenceLevel: 0.95, RegressionThreshold: 1.2}
}

// Compare pairs up tests present in both runs by test key and reports
// a regression for any whose mean duration increased past
// RegressionThreshold, plus any whose fail rate increased.
func (c *BasicComparator) Compare(baseline, current *aggregator.RunSummary) *ComparisonResult {
	result := &ComparisonResult{}
	if baseline == nil || current == nil {
		return result
	}

	byKey := make(map[string]*aggregator.TestStats, len(baseline.Tests))
	for _, t := range baseline.Tests {
		byKey[t.TestKey] = t
	}

	for _, cur := range current.Tests {
		base, ok := byKey[cur.TestKey]
		if !ok {
			continue
		}
		comp := c.compareOne(base, cur)
		result.Tests = append(result.Tests, comp)
		if comp.IsRegression {
			result.Regressions = append(result.Regressions, comp.TestKey)
		} else if comp.TimeDeltaPercent < 0 && comp.IsSignificant {
			result.Improvements = append(result.Improvements, comp.TestKey)
		}
	}

	result.Summary = c.summarize(result)
	return result
}

func (c *BasicComparator) compareOne(baseline, current *aggregator.TestStats) *TestComparison {
	comp := &TestComparison{
		TestKey:             current.TestKey,
		Baseline:            baseline,
		Current:             current,
		ConfidenceLevel:     c.ConfidenceLevel,
		RegressionThreshold: c.RegressionThreshold,
	}

	if baseline.Mean == 0 {
		comp.TimeDeltaPercent = 0
	} else {
		comp.TimeDeltaPercent = (float64(current.Mean-baseline.Mean) / float64(baseline.Mean)) * 100
	}

	baseFailRate := failRate(baseline)
	curFailRate := failRate(current)
	comp.FlakinessDelta = curFailRate - baseFailRate

	if baseline.Mean > 0 {
		ratio := float64(current.Mean) / float64(baseline.Mean)
		comp.IsRegression = ratio > c.RegressionThreshold
	}
	if comp.FlakinessDelta > 0 {
		comp.IsRegression = true
	}

	comp.IsSignificant, comp.TTestPValue = c.GetSignificance(baseline, current, c.ConfidenceLevel)
	comp.EffectSize = CohensDEffect(
		[]float64{float64(baseline.Mean)},
		[]float64{float64(current.Mean)},
	)
	return comp
}

func failRate(t *aggregator.TestStats) float64 {
	if t.Attempts == 0 {
		return 0
	}
	return float64(t.FailCount) / float64(t.Attempts)
}

func (c *BasicComparator) summarize(result *ComparisonResult) ComparisonSummary {
	summary := ComparisonSummary{
		TotalComparisons: len(result.Tests),
		Regressions:      len(result.Regressions),
		Improvements:     len(result.Improvements),
	}
	if len(result.Tests) == 0 {
		return summary
	}

	deltas := make([]float64, 0, len(result.Tests))
	for _, comp := range result.Tests {
		deltas = append(deltas, comp.TimeDeltaPercent)
		if comp.IsSignificant {
			summary.SignificantChanges++
		}
	}

	sort.Float64s(deltas)
	summary.MinDelta = deltas[0]
	summary.MaxDelta = deltas[len(deltas)-1]
	sum := 0.0
	for _, d := range deltas {
		sum += d
	}
	summary.AverageDelta = sum / float64(len(deltas))
	return summary
}

// GetSignificance estimates whether a mean-duration change is
// statistically significant from each test's standard deviation,
// falling back to an assumed 5% variance when a test ran only once.
func (c *BasicComparator) GetSignificance(baseline, current *aggregator.TestStats, confidenceLevel float64) (bool, float64) {
	if baseline == nil || current == nil || baseline.Mean == 0 || current.Mean == 0 {
		return false, 1.0
	}

	baselineTime := float64(baseline.Mean)
	currentTime := float64(current.Mean)
	baselineStdDev := float64(baseline.StdDev)
	currentStdDev := float64(current.StdDev)

	if baselineStdDev == 0 {
		baselineStdDev = baselineTime * 0.05
	}
	if currentStdDev == 0 {
		currentStdDev = currentTime * 0.05
	}

	pooledStdDev := math.Sqrt((baselineStdDev*baselineStdDev + currentStdDev*currentStdDev) / 2)
	if pooledStdDev == 0 {
		pooledStdDev = baselineTime * 0.01
	}

	tStat := (currentTime - baselineTime) / pooledStdDev
	pValue := 2 * (1 - normalCDF(math.Abs(tStat)))

	alpha := 1 - confidenceLevel
	return pValue < alpha, pValue
}

// normalCDF approximates the standard normal CDF via a rational
// approximation (Abramowitz & Stegun 26.2.17).
func normalCDF(x float64) float64 {
	b1, b2, b3, b4, b5 := 0.319381530, -0.356563782, 1.781477937, -1.821255978, 1.330274429
	p := 0.2316419
	cst := 0.39894228

	if x >= 0 {
		t := 1.0 / (1.0 + p*x)
		return 1.0 - cst*math.Exp(-x*x/2.0)*t*(b1+t*(b2+t*(b3+t*(b4+t*b5))))
	}
	t := 1.0 / (1.0 - p*x)
	return cst * math.Exp(-x*x/2.0) * t * (b1 + t*(b2+t*(b3+t*(b4+t*b5))))
}

// CohensDEffect computes the Cohen's d effect size between two groups
// of observations.
func CohensDEffect(group1, group2 []float64) float64 {
	if len(group1) == 0 || len(group2) == 0 {
		return 0
	}
	mean1, mean2 := calculateMean(group1), calculateMean(group2)
	std1, std2 := calculateStdDev(group1, mean1), calculateStdDev(group2, mean2)

	n1, n2 := float64(len(group1)), float64(len(group2))
	pooledVariance := ((n1-1)*std1*std1 + (n2-1)*std2*std2) / (n1 + n2 - 2)
	if math.IsNaN(pooledVariance) || pooledVariance <= 0 {
		return 0
	}
	return (mean2 - mean1) / math.Sqrt(pooledVariance)
}

func calculateMean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range data {
		sum += v
	}
	return sum / float64(len(data))
}

func calculateStdDev(data []float64, mean float64) float64 {
	if len(data) <= 1 {
		return 0
	}
	var varianceSum float64
	for _, v := range data {
		diff := v - mean
		varianceSum += diff * diff
	}
	return math.Sqrt(varianceSum / float64(len(data)-1))
}

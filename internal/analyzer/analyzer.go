package analyzer

import (
	"fmt"
	"math"
	"sort"
)

// CalculateTrend fits a linear regression (duration vs. days-since-
// first-measurement) over a test's history.
func (bta *BasicTrendAnalyzer) CalculateTrend(history []*HistoricalPoint, minDataPoints int) (*TrendResult, error) {
	if len(history) == 0 {
		return nil, fmt.Errorf("analyzer: no historical data")
	}
	if len(history) < minDataPoints {
		return nil, fmt.Errorf("analyzer: insufficient data points: %d < %d", len(history), minDataPoints)
	}

	sorted := make([]*HistoricalPoint, len(history))
	copy(sorted, history)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	n := float64(len(sorted))
	var sumX, sumY, sumXY, sumX2 float64

	startTime := sorted[0].Timestamp
	for _, pt := range sorted {
		x := pt.Timestamp.Sub(startTime).Hours() / 24
		y := float64(pt.ElapsedNs)

		sumX += x
		sumY += y
		sumXY += x * y
		sumX2 += x * x
	}

	denominator := n*sumX2 - sumX*sumX
	if math.Abs(denominator) < 1e-10 {
		return nil, fmt.Errorf("analyzer: cannot calculate trend: no variance in measurement times")
	}

	slope := (n*sumXY - sumX*sumY) / denominator
	intercept := (sumY - slope*sumX) / n

	ssRes, ssTot := 0.0, 0.0
	meanY := sumY / n
	for _, pt := range sorted {
		x := pt.Timestamp.Sub(startTime).Hours() / 24
		predicted := intercept + slope*x
		actual := float64(pt.ElapsedNs)
		ssRes += math.Pow(actual-predicted, 2)
		ssTot += math.Pow(actual-meanY, 2)
	}

	rSquared := 1.0
	if ssTot > 0 {
		rSquared = 1.0 - (ssRes / ssTot)
	}
	if rSquared < 0 {
		rSquared = 0
	}
	if rSquared > 1 {
		rSquared = 1
	}

	direction := "stable"
	if absSlope := math.Abs(slope); absSlope > 1.0 {
		if slope > 0 {
			direction = "degrading"
		} else {
			direction = "improving"
		}
	}

	endTime := sorted[len(sorted)-1].Timestamp
	periodDays := int(endTime.Sub(startTime).Hours() / 24)
	if periodDays == 0 {
		periodDays = 1
	}

	startValue := float64(sorted[0].ElapsedNs)
	endValue := float64(sorted[len(sorted)-1].ElapsedNs)
	changePercent := 0.0
	if startValue > 0 {
		changePercent = ((endValue - startValue) / startValue) * 100
	}

	return &TrendResult{
		TestKey:       sorted[0].TestKey,
		Direction:     direction,
		Slope:         slope,
		RSquared:      rSquared,
		ChangePercent: changePercent,
		PeriodDays:    periodDays,
		DataPoints:    len(sorted),
		StartTime:     startTime,
		EndTime:       endTime,
		StartValue:    startValue,
		EndValue:      endValue,
	}, nil
}

// DetectAnomalies flags measurements whose duration deviates from the
// test's historical mean by more than zScoreThreshold standard
// deviations.
func (bta *BasicTrendAnalyzer) DetectAnomalies(history []*HistoricalPoint, zScoreThreshold float64) []*Anomaly {
	if len(history) < 2 {
		return nil
	}

	sorted := make([]*HistoricalPoint, len(history))
	copy(sorted, history)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	values := make([]float64, len(sorted))
	for i, pt := range sorted {
		values[i] = float64(pt.ElapsedNs)
	}

	mean := calculateMean(values)
	stdDev := calculateStdDev(values, mean)
	if stdDev == 0 {
		return nil
	}

	var anomalies []*Anomaly
	for i, pt := range sorted {
		value := float64(pt.ElapsedNs)
		zScore := (value - mean) / stdDev
		if math.Abs(zScore) <= zScoreThreshold {
			continue
		}

		severity := "low"
		switch {
		case math.Abs(zScore) > 3.0:
			severity = "critical"
		case math.Abs(zScore) > 2.5:
			severity = "high"
		case math.Abs(zScore) > 1.5:
			severity = "medium"
		}

		anomaly := &Anomaly{
			TestKey:      pt.TestKey,
			Timestamp:    pt.Timestamp,
			Value:        value,
			ZScore:       zScore,
			Severity:     severity,
			Message:      fmt.Sprintf("duration deviates %.2f standard deviations from history", zScore),
			IsRegression: pt.Outcome != "pass",
		}

		if i > 0 {
			prevValue := float64(sorted[i-1].ElapsedNs)
			if value > prevValue*1.05 {
				anomaly.IsRegression = true
			}
		}

		anomalies = append(anomalies, anomaly)
	}

	return anomalies
}

// ForecastPerformance extrapolates a test's duration trend periods
// days into the future.
func (bta *BasicTrendAnalyzer) ForecastPerformance(history []*HistoricalPoint, periods int) []*Forecast {
	if len(history) < 2 || periods <= 0 {
		return nil
	}

	sorted := make([]*HistoricalPoint, len(history))
	copy(sorted, history)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	byKey := make(map[string][]*HistoricalPoint)
	for _, pt := range sorted {
		byKey[pt.TestKey] = append(byKey[pt.TestKey], pt)
	}

	var forecasts []*Forecast
	for _, points := range byKey {
		if len(points) < 2 {
			continue
		}

		trend, err := bta.CalculateTrend(points, 2)
		if err != nil {
			continue
		}

		stdErr := calculateForecastStdErr(points)

		for p := 1; p <= periods; p++ {
			predictedDays := float64(p)
			predictedTime := trend.EndValue + trend.Slope*predictedDays
			marginOfError := 1.96 * stdErr * math.Sqrt(1+1/float64(len(points)))

			forecast := &Forecast{
				TestKey:       trend.TestKey,
				Period:        p,
				PredictedTime: predictedTime,
				LowerBound:    predictedTime - marginOfError,
				UpperBound:    predictedTime + marginOfError,
				Confidence:    bta.ConfidenceLevel,
			}
			if forecast.LowerBound < 0 {
				forecast.LowerBound = 0
			}

			forecasts = append(forecasts, forecast)
		}
	}

	return forecasts
}

func calculateMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func calculateStdDev(values []float64, mean float64) float64 {
	if len(values) <= 1 {
		return 0
	}
	varianceSum := 0.0
	for _, v := range values {
		diff := v - mean
		varianceSum += diff * diff
	}
	return math.Sqrt(varianceSum / float64(len(values)-1))
}

func calculateForecastStdErr(history []*HistoricalPoint) float64 {
	if len(history) < 2 {
		return 0
	}

	values := make([]float64, len(history))
	for i, pt := range history {
		values[i] = float64(pt.ElapsedNs)
	}

	mean := calculateMean(values)
	ssRes := 0.0
	for _, v := range values {
		diff := v - mean
		ssRes += diff * diff
	}

	mse := ssRes / float64(len(values)-1)
	return math.Sqrt(mse)
}

// Package analyzer derives trend direction, anomalies, and short-range
// forecasts for a single test's elapsed-time history across runs.
package analyzer

import "time"

// HistoricalPoint is one recorded attempt for a test, ordered by when
// it ran.
type HistoricalPoint struct {
	TestKey   string
	RunID     int64
	ElapsedNs int64
	Outcome   string
	Timestamp time.Time
}

// TrendResult is the outcome of linear regression over a test's
// duration history.
type TrendResult struct {
	TestKey       string
	Direction     string    // "improving", "degrading", "stable"
	Slope         float64   // ns/day change
	RSquared      float64   // trend confidence (0-1)
	ChangePercent float64   // % change over the period
	PeriodDays    int       // days covered
	DataPoints    int       // number of measurements
	StartTime     time.Time // first measurement
	EndTime       time.Time // last measurement
	StartValue    float64   // first measurement value (ns)
	EndValue      float64   // last measurement value (ns)
}

// Anomaly is a single measurement whose duration deviates sharply from
// the test's historical mean.
type Anomaly struct {
	TestKey      string
	Timestamp    time.Time
	Value        float64 // elapsed ns
	ZScore       float64
	Severity     string // "critical", "high", "medium", "low"
	Message      string
	IsRegression bool
}

// Forecast is a short-range duration prediction for a test.
type Forecast struct {
	TestKey       string
	Period        int // days ahead
	PredictedTime float64
	LowerBound    float64
	UpperBound    float64
	Confidence    float64
}

// TrendAnalyzer derives trend, anomaly, and forecast information from
// a test's recorded duration history.
type TrendAnalyzer interface {
	CalculateTrend(history []*HistoricalPoint, minDataPoints int) (*TrendResult, error)
	DetectAnomalies(history []*HistoricalPoint, zScoreThreshold float64) []*Anomaly
	ForecastPerformance(history []*HistoricalPoint, periods int) []*Forecast
}

// BasicTrendAnalyzer implements TrendAnalyzer with ordinary least
// squares regression and a z-score anomaly test.
type BasicTrendAnalyzer struct {
	MinDataPoints   int     // minimum points to trust a trend (default 3)
	ZScoreThreshold float64 // anomaly threshold (default 2.0)
	ConfidenceLevel float64 // forecast confidence (default 0.95)
}

// NewBasicTrendAnalyzer creates an analyzer with sane defaults.
func NewBasicTrendAnalyzer() *BasicTrendAnalyzer {
	return &BasicTrendAnalyzer{
		MinDataPoints:   3,
		ZScoreThreshold: 2.0,
		ConfidenceLevel: 0.95,
	}
}

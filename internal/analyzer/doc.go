// Package analyzer fits trend lines, flags statistical anomalies, and
// forecasts near-term duration for a test's recorded history.
package analyzer

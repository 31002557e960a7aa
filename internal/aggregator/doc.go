// Package aggregator computes per-test duration statistics (mean,
// median, min, max, standard deviation) and an overall run overview
// from a set of recorded attempts, and exports either as JSON or CSV.
package aggregator

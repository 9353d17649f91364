// Package stats implements the statistical core of the opportunity
// engine: trailing baselines, deviation scoring, trend and seasonality
// classification, lagged cross-metric correlation, and short-horizon
// forecasting. Everything operates on plain float64 slices so the layer
// stays storage-agnostic and unit-testable against fixtures.
package stats

import (
	"errors"
	"math"
)

// ErrInsufficientData is returned when a computation lacks the minimum
// populated periods. Callers skip silently rather than emitting a
// low-confidence guess.
var ErrInsufficientData = errors.New("stats: insufficient data")

// Common lookback windows, in periods.
const (
	ShortWindow   = 7
	DefaultWindow = 28

	// MinDataPoints is the minimum populated periods a baseline needs.
	// Below this the metric is "insufficient data", not anomalous.
	MinDataPoints = 3
)

// Baseline is the trailing statistical reference a current value is
// compared against.
type Baseline struct {
	Mean   float64
	StdDev float64
	Count  int
}

// ComputeBaseline computes mean and standard deviation over the trailing
// window of values, excluding the final element (the value under test).
// window <= 0 means the whole history. Returns ErrInsufficientData when
// fewer than minPoints periods are populated or the mean is zero.
func ComputeBaseline(values []float64, window, minPoints int) (Baseline, error) {
	if minPoints < MinDataPoints {
		minPoints = MinDataPoints
	}
	if len(values) < 2 {
		return Baseline{}, ErrInsufficientData
	}

	history := values[:len(values)-1]
	if window > 0 && len(history) > window {
		history = history[len(history)-window:]
	}
	if len(history) < minPoints {
		return Baseline{}, ErrInsufficientData
	}

	var sum float64
	for _, v := range history {
		sum += v
	}
	mean := sum / float64(len(history))
	if mean == 0 {
		return Baseline{}, ErrInsufficientData
	}

	var variance float64
	for _, v := range history {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(history))

	return Baseline{Mean: mean, StdDev: math.Sqrt(variance), Count: len(history)}, nil
}

// Deviation describes how far a current value sits from its baseline.
type Deviation struct {
	Current  float64
	Baseline Baseline
	// Pct is (current - mean) / mean * 100. Signed.
	Pct float64
	// Sigma is |current - mean| / stddev, zero when stddev is zero.
	Sigma float64
}

// ComputeDeviation measures current against baseline.
func ComputeDeviation(current float64, b Baseline) Deviation {
	d := Deviation{Current: current, Baseline: b}
	d.Pct = (current - b.Mean) / b.Mean * 100
	if b.StdDev > 0 {
		d.Sigma = math.Abs(current-b.Mean) / b.StdDev
	}
	return d
}

// Exceeds reports whether the deviation magnitude reaches thresholdPct.
// The comparison is inclusive, so a value exactly at the threshold is
// always flagged; repeated runs on identical input never flap.
func (d Deviation) Exceeds(thresholdPct float64) bool {
	return math.Abs(d.Pct) >= thresholdPct
}

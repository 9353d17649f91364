package stats

// ForecastPoint is one projected period ahead of the series.
type ForecastPoint struct {
	StepsAhead int
	Value      float64
	// Confidence starts below 1 and degrades with forecast distance.
	// Forecasts size opportunities directionally; they are never a
	// guarantee.
	Confidence float64
}

// MaxForecastHorizon bounds short-horizon projection.
const MaxForecastHorizon = 3

// baseForecastConfidence is the confidence of a one-step forecast; each
// further step multiplies by forecastDecay.
const (
	baseForecastConfidence = 0.7
	forecastDecay          = 0.75
)

// Forecast projects the next horizon periods by least-squares linear
// trend over the trailing window values. Requires MinDataPoints values.
// Projections below zero are clamped to zero; the engine's metrics are
// all non-negative volumes and rates.
func Forecast(values []float64, window, horizon int) ([]ForecastPoint, error) {
	if horizon <= 0 || horizon > MaxForecastHorizon {
		horizon = MaxForecastHorizon
	}
	if window > 0 && len(values) > window {
		values = values[len(values)-window:]
	}
	if len(values) < MinDataPoints {
		return nil, ErrInsufficientData
	}

	slope, intercept := linearFit(values)

	out := make([]ForecastPoint, 0, horizon)
	confidence := baseForecastConfidence
	for step := 1; step <= horizon; step++ {
		x := float64(len(values) - 1 + step)
		v := intercept + slope*x
		if v < 0 {
			v = 0
		}
		out = append(out, ForecastPoint{StepsAhead: step, Value: v, Confidence: confidence})
		confidence *= forecastDecay
	}
	return out, nil
}

// linearFit returns the least-squares slope and intercept for values
// indexed 0..n-1.
func linearFit(values []float64) (slope, intercept float64) {
	n := float64(len(values))
	var sumX, sumY, sumXY, sumXX float64
	for i, v := range values {
		x := float64(i)
		sumX += x
		sumY += v
		sumXY += x * v
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0, sumY / n
	}
	slope = (n*sumXY - sumX*sumY) / denom
	intercept = (sumY - slope*sumX) / n
	return slope, intercept
}

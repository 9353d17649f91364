package detector

import "github.com/ignite/opportunity-engine/internal/stats"

// Thresholds holds every tunable the detector catalog reads. The numeric
// defaults mirror the product's documented per-category sensitivities;
// none of them is load-bearing business logic and all are overridable
// from configuration.
type Thresholds struct {
	// Per-category deviation thresholds, in percent of baseline.
	RevenueDeviationPct    float64 `yaml:"revenue_deviation_pct"`
	TrafficDeviationPct    float64 `yaml:"traffic_deviation_pct"`
	ConversionDeviationPct float64 `yaml:"conversion_deviation_pct"`
	AdSpendDeviationPct    float64 `yaml:"ad_spend_deviation_pct"`

	// SeasonalGapPct flags a period falling this far below the same
	// period last year.
	SeasonalGapPct float64 `yaml:"seasonal_gap_pct"`

	// ForecastShortfallPct flags a projected next period this far below
	// the trailing baseline.
	ForecastShortfallPct float64 `yaml:"forecast_shortfall_pct"`

	// MinTrendRun is the consecutive same-direction periods a trend
	// detector requires.
	MinTrendRun int `yaml:"min_trend_run"`

	// Baseline lookbacks, in periods.
	BaselineWindow      int `yaml:"baseline_window"`
	ShortBaselineWindow int `yaml:"short_baseline_window"`

	// MinDataPoints below which a metric is "insufficient data".
	MinDataPoints int `yaml:"min_data_points"`

	// Causation bounds.
	MaxDriverLag      int     `yaml:"max_driver_lag"`
	MinDriverStrength float64 `yaml:"min_driver_strength"`

	// StaleContentAgeDays is the published age beyond which declining
	// content counts as stale.
	StaleContentAgeDays float64 `yaml:"stale_content_age_days"`
}

// DefaultThresholds returns the documented defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		RevenueDeviationPct:    20,
		TrafficDeviationPct:    40,
		ConversionDeviationPct: 30,
		AdSpendDeviationPct:    50,
		SeasonalGapPct:         20,
		ForecastShortfallPct:   15,
		MinTrendRun:            3,
		BaselineWindow:         stats.DefaultWindow,
		ShortBaselineWindow:    stats.ShortWindow,
		MinDataPoints:          stats.MinDataPoints,
		MaxDriverLag:           stats.MaxLag,
		MinDriverStrength:      0.6,
		StaleContentAgeDays:    365,
	}
}

// withDefaults fills zero values so a partially populated config cannot
// disable guards by accident.
func (t Thresholds) withDefaults() Thresholds {
	def := DefaultThresholds()
	if t.RevenueDeviationPct <= 0 {
		t.RevenueDeviationPct = def.RevenueDeviationPct
	}
	if t.TrafficDeviationPct <= 0 {
		t.TrafficDeviationPct = def.TrafficDeviationPct
	}
	if t.ConversionDeviationPct <= 0 {
		t.ConversionDeviationPct = def.ConversionDeviationPct
	}
	if t.AdSpendDeviationPct <= 0 {
		t.AdSpendDeviationPct = def.AdSpendDeviationPct
	}
	if t.SeasonalGapPct <= 0 {
		t.SeasonalGapPct = def.SeasonalGapPct
	}
	if t.ForecastShortfallPct <= 0 {
		t.ForecastShortfallPct = def.ForecastShortfallPct
	}
	if t.MinTrendRun <= 0 {
		t.MinTrendRun = def.MinTrendRun
	}
	if t.BaselineWindow <= 0 {
		t.BaselineWindow = def.BaselineWindow
	}
	if t.ShortBaselineWindow <= 0 {
		t.ShortBaselineWindow = def.ShortBaselineWindow
	}
	if t.MinDataPoints <= 0 {
		t.MinDataPoints = def.MinDataPoints
	}
	if t.MaxDriverLag <= 0 {
		t.MaxDriverLag = def.MaxDriverLag
	}
	if t.MinDriverStrength <= 0 {
		t.MinDriverStrength = def.MinDriverStrength
	}
	if t.StaleContentAgeDays <= 0 {
		t.StaleContentAgeDays = def.StaleContentAgeDays
	}
	return t
}

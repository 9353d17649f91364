package detector

import (
	"fmt"
	"math"

	"github.com/ignite/opportunity-engine/internal/domain"
	"github.com/ignite/opportunity-engine/internal/metrics"
	"github.com/ignite/opportunity-engine/internal/stats"
)

// detectSeasonalRevenueGap compares the latest month to the same month
// last year. Without a full year of history the comparison is skipped,
// never approximated.
func detectSeasonalRevenueGap(snap metrics.EntitySnapshot, t Thresholds) []domain.Finding {
	t = t.withDefaults()
	series := snap.Get(domain.MetricRevenue)

	cmp, err := stats.CompareSamePeriodLastYear(series.Periods, series.Values)
	if err != nil {
		return nil
	}
	if cmp.ChangePct > -t.SeasonalGapPct {
		return nil
	}

	_, periodEnd, _ := series.Last()

	return []domain.Finding{{
		DetectorID:     "seasonal_revenue_gap",
		Category:       domain.CategoryRevenue,
		Type:           "seasonal_gap",
		OrganizationID: snap.OrganizationID,
		EntityID:       snap.EntityID,
		EntityType:     snap.EntityType,
		Metric:         domain.MetricRevenue,
		Direction:      domain.DirectionDown,
		Evidence: map[string]float64{
			"current":     cmp.Current,
			"last_year":   cmp.Reference,
			"delta_pct":   round1(cmp.ChangePct),
			"sample_size": float64(series.Len()),
		},
		MagnitudePct:  cmp.ChangePct,
		Volume:        cmp.Reference - cmp.Current,
		SampleSize:    series.Len(),
		Summary:       fmt.Sprintf("Revenue is %.1f%% below the same month last year", math.Abs(cmp.ChangePct)),
		DataPeriodEnd: periodEnd,
	}}
}

// detectChannelMixGap looks for a conversion decline whose movement is
// associated with a leading channel metric via lagged correlation. The
// driver is reported as an association, never as a proven cause.
func detectChannelMixGap(snap metrics.EntitySnapshot, t Thresholds) []domain.Finding {
	t = t.withDefaults()
	conversion := snap.Get(domain.MetricConversionRate)

	tr, err := stats.ComputeTrend(conversion.Values)
	if err != nil || tr.Direction != stats.TrendDeclining || tr.Consecutive < 2 {
		return nil
	}

	candidates := make(map[string][]float64)
	for _, name := range []string{domain.MetricEmailCTR, domain.MetricSessions, domain.MetricAdSpend, domain.MetricCTR} {
		if s := snap.Get(name); s.Len() > 0 {
			candidates[name] = s.Values
		}
	}
	drivers := stats.RankDrivers(conversion.Values, candidates, t.MaxDriverLag)
	if len(drivers) == 0 || drivers[0].AbsStrength() < t.MinDriverStrength {
		return nil
	}

	current, periodEnd, _ := conversion.Last()

	top := drivers[0]
	out := domain.Finding{
		DetectorID:     "channel_mix_gap",
		Category:       domain.CategoryRevenue,
		Type:           "channel_mix_gap",
		OrganizationID: snap.OrganizationID,
		EntityID:       snap.EntityID,
		EntityType:     snap.EntityType,
		Metric:         domain.MetricConversionRate,
		Direction:      domain.DirectionDown,
		Evidence: map[string]float64{
			"current":             current,
			"consecutive_periods": float64(tr.Consecutive),
			"total_change_pct":    round1(tr.TotalChangePct),
			"driver_strength":     round2(top.Strength),
			"driver_lag":          float64(top.Lag),
			"sample_size":         float64(conversion.Len()),
		},
		MagnitudePct:       tr.TotalChangePct,
		Volume:             math.Abs(current) * float64(tr.Consecutive),
		SampleSize:         conversion.Len(),
		ConsecutivePeriods: tr.Consecutive,
		Acceleration:       string(tr.Shape),
		Summary: fmt.Sprintf("Conversion rate declined %.1f%%; %s is an associated driver (lag %d, strength %.2f)",
			math.Abs(tr.TotalChangePct), top.Name, top.Lag, top.Strength),
		DataPeriodEnd: periodEnd,
	}
	for _, d := range drivers {
		out.Drivers = append(out.Drivers, domain.DriverCandidate{
			Metric:   d.Name,
			Lag:      d.Lag,
			Strength: round2(d.Strength),
		})
	}
	return []domain.Finding{out}
}

// detectForecastShortfall projects revenue forward and flags a projected
// next period materially below the trailing baseline. Forecasts size the
// opportunity directionally; the finding never presents them as certain.
func detectForecastShortfall(snap metrics.EntitySnapshot, t Thresholds) []domain.Finding {
	t = t.withDefaults()
	series := snap.Get(domain.MetricRevenue)

	b, err := stats.ComputeBaseline(series.Values, t.BaselineWindow, t.MinDataPoints)
	if err != nil {
		return nil
	}
	forecast, err := stats.Forecast(series.Values, t.BaselineWindow, stats.MaxForecastHorizon)
	if err != nil || len(forecast) == 0 {
		return nil
	}

	next := forecast[0]
	shortfallPct := (next.Value - b.Mean) / b.Mean * 100
	if shortfallPct > -t.ForecastShortfallPct {
		return nil
	}

	current, periodEnd, _ := series.Last()

	return []domain.Finding{{
		DetectorID:     "forecast_shortfall",
		Category:       domain.CategoryRevenue,
		Type:           "forecast_shortfall",
		OrganizationID: snap.OrganizationID,
		EntityID:       snap.EntityID,
		EntityType:     snap.EntityType,
		Metric:         domain.MetricRevenue,
		Direction:      domain.DirectionDown,
		Evidence: map[string]float64{
			"current":             current,
			"baseline":            b.Mean,
			"forecast_next":       next.Value,
			"delta_pct":           round1(shortfallPct),
			"forecast_confidence": round2(next.Confidence),
			"sample_size":         float64(b.Count),
		},
		MagnitudePct:  shortfallPct,
		Volume:        b.Mean - next.Value,
		SampleSize:    b.Count,
		Summary: fmt.Sprintf("Projected revenue %.0f is %.1f%% below the %d-period baseline (confidence %.2f)",
			next.Value, math.Abs(shortfallPct), b.Count, next.Confidence),
		DataPeriodEnd: periodEnd,
	}}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

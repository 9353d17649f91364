package detector

import (
	"errors"
	"fmt"
	"math"

	"github.com/ignite/opportunity-engine/internal/domain"
	"github.com/ignite/opportunity-engine/internal/metrics"
	"github.com/ignite/opportunity-engine/internal/stats"
)

// deviationParams configures the shared single-period deviation check.
type deviationParams struct {
	detectorID   string
	category     domain.Category
	findingType  string
	metric       string
	thresholdPct float64
	direction    domain.Direction
	noun         string // for the summary, e.g. "revenue", "sessions"
}

// detectDeviation is the shared fast-layer check: compare the latest
// value against the trailing baseline and emit a finding when the
// deviation reaches the category threshold in the watched direction.
// Insufficient data is a silent skip, never a low-confidence guess.
func detectDeviation(snap metrics.EntitySnapshot, t Thresholds, p deviationParams) []domain.Finding {
	t = t.withDefaults()
	series := snap.Get(p.metric)

	b, err := stats.ComputeBaseline(series.Values, t.BaselineWindow, t.MinDataPoints)
	if err != nil {
		if errors.Is(err, stats.ErrInsufficientData) {
			return nil
		}
		return nil
	}

	current, periodEnd, ok := series.Last()
	if !ok {
		return nil
	}

	dev := stats.ComputeDeviation(current, b)
	if !dev.Exceeds(p.thresholdPct) {
		return nil
	}

	direction := domain.DirectionUp
	if dev.Pct < 0 {
		direction = domain.DirectionDown
	}
	if direction != p.direction {
		return nil
	}

	verb := "spiked"
	if direction == domain.DirectionDown {
		verb = "dropped"
	}

	return []domain.Finding{{
		DetectorID:     p.detectorID,
		Category:       p.category,
		Type:           p.findingType,
		OrganizationID: snap.OrganizationID,
		EntityID:       snap.EntityID,
		EntityType:     snap.EntityType,
		Metric:         p.metric,
		Direction:      direction,
		Evidence: map[string]float64{
			"current":     current,
			"baseline":    b.Mean,
			"delta_pct":   round1(dev.Pct),
			"std_dev":     b.StdDev,
			"sigma":       dev.Sigma,
			"sample_size": float64(b.Count),
		},
		MagnitudePct:  dev.Pct,
		Volume:        math.Abs(current-b.Mean) * float64(periodsPerMonth(snap.Granularity)),
		SampleSize:    b.Count,
		Summary:       fmt.Sprintf("%s %s %.1f%% vs the %d-period baseline", p.noun, verb, math.Abs(dev.Pct), b.Count),
		DataPeriodEnd: periodEnd,
	}}
}

// periodsPerMonth scales a single-period delta into a monthly volume so
// impact is comparable across granularities.
func periodsPerMonth(g domain.Granularity) int {
	switch g {
	case domain.GranularityWeekly:
		return 4
	case domain.GranularityMonthly:
		return 1
	default:
		return 30
	}
}

// round1 keeps evidence percentages at one decimal so identical inputs
// serialize identically.
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func detectRevenueDrop(snap metrics.EntitySnapshot, t Thresholds) []domain.Finding {
	return detectDeviation(snap, t, deviationParams{
		detectorID:   "revenue_drop",
		category:     domain.CategoryRevenue,
		findingType:  "revenue_anomaly",
		metric:       domain.MetricRevenue,
		thresholdPct: t.withDefaults().RevenueDeviationPct,
		direction:    domain.DirectionDown,
		noun:         "Revenue",
	})
}

func detectRevenueSpike(snap metrics.EntitySnapshot, t Thresholds) []domain.Finding {
	return detectDeviation(snap, t, deviationParams{
		detectorID:   "revenue_spike",
		category:     domain.CategoryRevenue,
		findingType:  "revenue_anomaly",
		metric:       domain.MetricRevenue,
		thresholdPct: t.withDefaults().RevenueDeviationPct,
		direction:    domain.DirectionUp,
		noun:         "Revenue",
	})
}

func detectTrafficDrop(snap metrics.EntitySnapshot, t Thresholds) []domain.Finding {
	return detectDeviation(snap, t, deviationParams{
		detectorID:   "traffic_drop",
		category:     domain.CategoryTraffic,
		findingType:  "traffic_drop",
		metric:       domain.MetricSessions,
		thresholdPct: t.withDefaults().TrafficDeviationPct,
		direction:    domain.DirectionDown,
		noun:         "Sessions",
	})
}

func detectTrafficSpike(snap metrics.EntitySnapshot, t Thresholds) []domain.Finding {
	return detectDeviation(snap, t, deviationParams{
		detectorID:   "traffic_spike",
		category:     domain.CategoryTraffic,
		findingType:  "traffic_spike",
		metric:       domain.MetricSessions,
		thresholdPct: t.withDefaults().TrafficDeviationPct,
		direction:    domain.DirectionUp,
		noun:         "Sessions",
	})
}

func detectConversionDrop(snap metrics.EntitySnapshot, t Thresholds) []domain.Finding {
	return detectDeviation(snap, t, deviationParams{
		detectorID:   "conversion_rate_drop",
		category:     domain.CategoryRevenue,
		findingType:  "conversion_anomaly",
		metric:       domain.MetricConversionRate,
		thresholdPct: t.withDefaults().ConversionDeviationPct,
		direction:    domain.DirectionDown,
		noun:         "Conversion rate",
	})
}

func detectAdSpendSpike(snap metrics.EntitySnapshot, t Thresholds) []domain.Finding {
	return detectDeviation(snap, t, deviationParams{
		detectorID:   "ad_spend_spike",
		category:     domain.CategoryAdvertising,
		findingType:  "spend_anomaly",
		metric:       domain.MetricAdSpend,
		thresholdPct: t.withDefaults().AdSpendDeviationPct,
		direction:    domain.DirectionUp,
		noun:         "Ad spend",
	})
}

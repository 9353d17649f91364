package detector

import (
	"fmt"
	"math"

	"github.com/ignite/opportunity-engine/internal/domain"
	"github.com/ignite/opportunity-engine/internal/metrics"
	"github.com/ignite/opportunity-engine/internal/stats"
)

// trendParams configures the shared multi-period decline check.
type trendParams struct {
	detectorID  string
	category    domain.Category
	findingType string
	metric      string
	// direction is the movement being watched for. For most metrics a
	// decline is bad; avg_position inverts (rising number = worse rank).
	watch stats.TrendDirection
	noun  string
}

// detectSustainedTrend emits a finding when the metric has moved in the
// watched direction for at least MinTrendRun consecutive periods.
func detectSustainedTrend(snap metrics.EntitySnapshot, t Thresholds, p trendParams) []domain.Finding {
	t = t.withDefaults()
	series := snap.Get(p.metric)

	tr, err := stats.ComputeTrend(series.Values)
	if err != nil {
		return nil
	}
	if tr.Direction != p.watch || tr.Consecutive < t.MinTrendRun {
		return nil
	}

	current, periodEnd, _ := series.Last()

	direction := domain.DirectionDown
	if tr.TotalChangePct > 0 {
		direction = domain.DirectionUp
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
			"current":             current,
			"consecutive_periods": float64(tr.Consecutive),
			"total_change_pct":    round1(tr.TotalChangePct),
			"sample_size":         float64(series.Len()),
		},
		MagnitudePct:       tr.TotalChangePct,
		Volume:             math.Abs(current) * float64(tr.Consecutive),
		SampleSize:         series.Len(),
		ConsecutivePeriods: tr.Consecutive,
		Acceleration:       string(tr.Shape),
		Summary: fmt.Sprintf("%s has moved %.1f%% over %d consecutive periods (%s)",
			p.noun, tr.TotalChangePct, tr.Consecutive, tr.Shape),
		DataPeriodEnd: periodEnd,
	}}
}

func detectTrafficDeclineTrend(snap metrics.EntitySnapshot, t Thresholds) []domain.Finding {
	return detectSustainedTrend(snap, t, trendParams{
		detectorID:  "traffic_decline_trend",
		category:    domain.CategoryTraffic,
		findingType: "traffic_decline",
		metric:      domain.MetricSessions,
		watch:       stats.TrendDeclining,
		noun:        "Sessions",
	})
}

func detectPageDecay(snap metrics.EntitySnapshot, t Thresholds) []domain.Finding {
	if snap.EntityType != domain.EntityPage {
		return nil
	}
	return detectSustainedTrend(snap, t, trendParams{
		detectorID:  "page_decay",
		category:    domain.CategoryPages,
		findingType: "page_decay",
		metric:      domain.MetricPageviews,
		watch:       stats.TrendDeclining,
		noun:        "Pageviews",
	})
}

// detectKeywordSlippage watches avg_position rising, which means the
// keyword ranks worse. The finding direction is reported as down because
// performance is falling even though the number climbs.
func detectKeywordSlippage(snap metrics.EntitySnapshot, t Thresholds) []domain.Finding {
	if snap.EntityType != domain.EntityKeyword {
		return nil
	}
	findings := detectSustainedTrend(snap, t, trendParams{
		detectorID:  "keyword_slippage",
		category:    domain.CategorySEO,
		findingType: "keyword_slippage",
		metric:      domain.MetricAvgPosition,
		watch:       stats.TrendImproving, // numeric rise = rank worsening
		noun:        "Average position",
	})
	for i := range findings {
		findings[i].Direction = domain.DirectionDown
		findings[i].MagnitudePct = -math.Abs(findings[i].MagnitudePct)
	}
	return findings
}

func detectEmailEngagementDecline(snap metrics.EntitySnapshot, t Thresholds) []domain.Finding {
	return detectSustainedTrend(snap, t, trendParams{
		detectorID:  "email_engagement_decline",
		category:    domain.CategoryEmail,
		findingType: "email_engagement_decline",
		metric:      domain.MetricEmailCTR,
		watch:       stats.TrendDeclining,
		noun:        "Email CTR",
	})
}

func detectROASDecline(snap metrics.EntitySnapshot, t Thresholds) []domain.Finding {
	return detectSustainedTrend(snap, t, trendParams{
		detectorID:  "ad_roas_decline",
		category:    domain.CategoryAdvertising,
		findingType: "roas_decline",
		metric:      domain.MetricROAS,
		watch:       stats.TrendDeclining,
		noun:        "ROAS",
	})
}

// detectContentStaleness flags aged content that is also losing traffic.
func detectContentStaleness(snap metrics.EntitySnapshot, t Thresholds) []domain.Finding {
	t = t.withDefaults()

	age, _, ok := snap.Get(domain.MetricPublishedAge).Last()
	if !ok || age < t.StaleContentAgeDays {
		return nil
	}

	findings := detectSustainedTrend(snap, t, trendParams{
		detectorID:  "content_staleness",
		category:    domain.CategoryContent,
		findingType: "content_staleness",
		metric:      domain.MetricPageviews,
		watch:       stats.TrendDeclining,
		noun:        "Pageviews",
	})
	for i := range findings {
		findings[i].Evidence["published_age_days"] = age
		findings[i].Summary = fmt.Sprintf("Content aged %.0f days is losing traffic: %s",
			age, findings[i].Summary)
	}
	return findings
}

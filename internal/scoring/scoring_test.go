package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/opportunity-engine/internal/detector"
	"github.com/ignite/opportunity-engine/internal/domain"
)

func fixedScorer(now time.Time) *Scorer {
	s := NewScorer(detector.NewRegistry(), DefaultWeights())
	s.now = func() time.Time { return now }
	return s
}

func TestScore_FreshLargeDeviationIsHigh(t *testing.T) {
	periodEnd := time.Date(2025, 8, 28, 0, 0, 0, 0, time.UTC)
	s := fixedScorer(periodEnd)

	f := domain.Finding{
		DetectorID:    "traffic_drop",
		Metric:        domain.MetricSessions,
		Evidence:      map[string]float64{"sigma": 9},
		MagnitudePct:  -45,
		Volume:        13500,
		SampleSize:    28,
		DataPeriodEnd: periodEnd,
	}

	scores := s.Score(f)
	assert.Equal(t, 1.0, scores.Confidence)
	assert.Equal(t, 13500.0, scores.Impact)
	assert.InDelta(t, 0.931, scores.ImpactNorm, 0.001)
	assert.InDelta(t, 0.9, scores.Urgency, 0.001)
	assert.Equal(t, domain.PriorityHigh, scores.Priority)
}

func TestScore_StaleSmallDeclineIsLow(t *testing.T) {
	now := time.Date(2025, 8, 28, 0, 0, 0, 0, time.UTC)
	s := fixedScorer(now)

	f := domain.Finding{
		DetectorID:         "page_decay",
		Metric:             domain.MetricPageviews,
		Volume:             50,
		SampleSize:         4,
		ConsecutivePeriods: 3,
		Acceleration:       "decelerating",
		DataPeriodEnd:      now.AddDate(0, 0, -20),
	}

	scores := s.Score(f)
	assert.InDelta(t, 0.417, scores.Confidence, 0.001)
	assert.InDelta(t, 0.048, scores.ImpactNorm, 0.001)
	assert.InDelta(t, 0.3, scores.Urgency, 0.001)
	assert.Equal(t, domain.PriorityLow, scores.Priority)
}

func TestPriorityFor_InclusiveBoundaries(t *testing.T) {
	assert.Equal(t, domain.PriorityHigh, PriorityFor(0.66))
	assert.Equal(t, domain.PriorityMedium, PriorityFor(0.6599))
	assert.Equal(t, domain.PriorityMedium, PriorityFor(0.33))
	assert.Equal(t, domain.PriorityLow, PriorityFor(0.3299))
}

func TestBuild_UsesRegistryTemplates(t *testing.T) {
	now := time.Date(2025, 8, 28, 12, 0, 0, 0, time.UTC)
	s := fixedScorer(now)

	f := domain.Finding{
		DetectorID:     "traffic_drop",
		Category:       domain.CategoryTraffic,
		Type:           "anomaly_drop",
		OrganizationID: "org-1",
		EntityID:       "page-1",
		EntityType:     domain.EntityPage,
		Metric:         domain.MetricSessions,
		Evidence:       map[string]float64{"sigma": 9, "delta_pct": -45},
		Volume:         13500,
		SampleSize:     28,
		Summary:        "Sessions fell 45% below baseline",
		DataPeriodEnd:  time.Date(2025, 8, 28, 0, 0, 0, 0, time.UTC),
	}

	opp := s.Build(f)
	assert.NotEmpty(t, opp.ID)
	assert.Equal(t, "Traffic dropped sharply", opp.Title)
	assert.Equal(t, f.Summary, opp.Description)
	assert.NotEmpty(t, opp.RecommendedActions)
	assert.Equal(t, domain.StatusNew, opp.Status)
	assert.Equal(t, []string{domain.MetricSessions}, opp.Metrics)
	assert.Equal(t, now, opp.DetectedAt)

	// Evidence is copied, not aliased.
	f.Evidence["sigma"] = 0
	assert.Equal(t, 9.0, opp.Evidence["sigma"])
}

func TestBuild_DriverFindingGetsHypothesis(t *testing.T) {
	s := fixedScorer(time.Date(2025, 8, 28, 0, 0, 0, 0, time.UTC))

	f := domain.Finding{
		DetectorID: "channel_mix_gap",
		Category:   domain.CategoryRevenue,
		Metric:     domain.MetricConversionRate,
		Drivers: []domain.DriverCandidate{
			{Metric: domain.MetricEmailCTR, Lag: 1, Strength: 0.82},
		},
		SampleSize:    12,
		DataPeriodEnd: time.Date(2025, 8, 28, 0, 0, 0, 0, time.UTC),
	}

	opp := s.Build(f)
	assert.Contains(t, opp.Hypothesis, "lag 1")
	assert.Contains(t, opp.Hypothesis, "association")
	assert.Contains(t, opp.Metrics, domain.MetricEmailCTR)
	assert.Contains(t, opp.Metrics, domain.MetricConversionRate)
}

func TestBuild_UnknownDetectorFallsBackToSummary(t *testing.T) {
	s := fixedScorer(time.Now())

	opp := s.Build(domain.Finding{
		DetectorID: "not_registered",
		Summary:    "Something moved",
	})
	assert.Equal(t, "Something moved", opp.Title)
	assert.Empty(t, opp.RecommendedActions)
}

func TestRank_ImpactThenRecency(t *testing.T) {
	t1 := time.Date(2025, 8, 27, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2025, 8, 28, 0, 0, 0, 0, time.UTC)

	opps := []domain.Opportunity{
		{ID: "a", PotentialImpactScore: 500, DetectedAt: t1},
		{ID: "b", PotentialImpactScore: 9000, DetectedAt: t1},
		{ID: "c", PotentialImpactScore: 9000, DetectedAt: t2},
	}
	Rank(opps)

	require.Len(t, opps, 3)
	assert.Equal(t, "c", opps[0].ID)
	assert.Equal(t, "b", opps[1].ID)
	assert.Equal(t, "a", opps[2].ID)
}

package storage

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/opportunity-engine/internal/detector"
	"github.com/ignite/opportunity-engine/internal/domain"
)

func TestBuildRunReport(t *testing.T) {
	started := time.Date(2025, 6, 15, 9, 30, 0, 0, time.UTC)
	result := detector.RunResult{
		OrganizationID: "org-1",
		Layers:         []domain.CadenceLayer{domain.LayerFast, domain.LayerTrend},
		Findings:       make([]domain.Finding, 3),
		Skipped:        []detector.Skip{{DetectorID: "revenue_drop", EntityID: "page-1", Reason: "missing required metrics"}},
		StartedAt:      started,
		Duration:       1500 * time.Millisecond,
	}

	report := BuildRunReport(result, 2, map[string]int{"traffic": 2})

	assert.Equal(t, "org-1", report.OrganizationID)
	assert.Equal(t, []string{"fast", "trend"}, report.Layers)
	assert.Equal(t, 3, report.TotalFindings)
	assert.Equal(t, 2, report.TotalOpportunities)
	assert.Equal(t, 1, report.SkippedCount)
	assert.Equal(t, int64(1500), report.DurationMS)
}

func TestReportKey(t *testing.T) {
	report := RunReport{
		OrganizationID: "org-1",
		StartedAt:      time.Date(2025, 6, 15, 9, 30, 45, 0, time.UTC),
	}
	assert.Equal(t, "runs/org-1/2025/06/15/09-30-45.json", reportKey(report))
}

func TestOpportunityItemRoundTrip(t *testing.T) {
	detected := time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC)
	opp := domain.Opportunity{
		ID:                   "opp-1",
		OrganizationID:       "org-1",
		EntityID:             "page-1",
		EntityType:           domain.EntityPage,
		DetectorID:           "traffic_drop",
		Category:             domain.CategoryTraffic,
		Status:               domain.StatusNew,
		Priority:             domain.PriorityHigh,
		Title:                "Traffic dropped sharply",
		Evidence:             map[string]float64{"delta_pct": -45},
		PotentialImpactScore: 550,
		DetectedAt:           detected,
		DataPeriodEnd:        detected,
	}
	data, err := json.Marshal(opp)
	require.NoError(t, err)

	item := opportunityItem{
		PK:           orgPK(opp.OrganizationID),
		SK:           oppSK(opp.IdempotencyKey()),
		ID:           opp.ID,
		Status:       string(domain.StatusDismissed),
		StatusReason: "seasonal dip",
		Category:     string(opp.Category),
		Priority:     string(opp.Priority),
		ImpactScore:  opp.PotentialImpactScore,
		DetectedAt:   detected.Format(time.RFC3339),
		UpdatedAt:    detected.Add(time.Hour).Format(time.RFC3339),
		Data:         string(data),
	}

	got, err := item.opportunity()
	require.NoError(t, err)

	// Item attributes win over the payload for lifecycle fields.
	assert.Equal(t, domain.StatusDismissed, got.Status)
	assert.Equal(t, "seasonal dip", got.StatusReason)
	assert.Equal(t, "opp-1", got.ID)
	assert.True(t, got.DetectedAt.Equal(detected))
	assert.Equal(t, -45.0, got.Evidence["delta_pct"])
}

func TestScopePrefixCoversKey(t *testing.T) {
	opp := domain.Opportunity{
		OrganizationID: "org-1",
		EntityID:       "page-1",
		DetectorID:     "traffic_drop",
		Category:       domain.CategoryTraffic,
		DataPeriodEnd:  time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC),
	}
	// Every period's sort key must share the scope prefix so a single
	// begins_with query covers the dismissal cooldown check.
	assert.True(t, strings.HasPrefix(oppSK(opp.IdempotencyKey()), scopePrefix(opp)))
}

package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/opportunity-engine/internal/domain"
)

func day(offset int) time.Time {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	return base.AddDate(0, 0, offset)
}

func put(store *MemoryStore, entityID string, offset int, values map[string]float64) {
	store.Put(domain.MetricPoint{
		OrganizationID: "org-1",
		EntityID:       entityID,
		EntityType:     domain.EntityPage,
		PeriodDate:     day(offset),
		Granularity:    domain.GranularityDaily,
		Metrics:        values,
	})
}

func TestQueryParamsValidate(t *testing.T) {
	valid := QueryParams{
		OrganizationID: "org-1",
		From:           day(0),
		To:             day(10),
		Granularity:    domain.GranularityDaily,
	}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*QueryParams)
	}{
		{"missing org", func(q *QueryParams) { q.OrganizationID = "" }},
		{"bad granularity", func(q *QueryParams) { q.Granularity = "hourly" }},
		{"inverted range", func(q *QueryParams) { q.From, q.To = q.To, q.From }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := valid
			tt.mutate(&q)
			assert.ErrorIs(t, q.Validate(), ErrInvalidQuery)
		})
	}
}

func TestMemoryStoreQuery_FiltersAndSorts(t *testing.T) {
	store := NewMemoryStore()
	put(store, "page-2", 1, map[string]float64{domain.MetricSessions: 200})
	put(store, "page-1", 2, map[string]float64{domain.MetricSessions: 110, domain.MetricRevenue: 40})
	put(store, "page-1", 0, map[string]float64{domain.MetricSessions: 100})
	put(store, "page-1", 9, map[string]float64{domain.MetricSessions: 999}) // outside range

	points, err := store.Query(context.Background(), QueryParams{
		OrganizationID: "org-1",
		EntityIDs:      []string{"page-1", "page-2"},
		MetricNames:    []string{domain.MetricSessions},
		From:           day(0),
		To:             day(5),
		Granularity:    domain.GranularityDaily,
	})
	require.NoError(t, err)
	require.Len(t, points, 3)

	// Ascending by period, then entity id.
	assert.Equal(t, "page-1", points[0].EntityID)
	assert.Equal(t, "page-2", points[1].EntityID)
	assert.Equal(t, "page-1", points[2].EntityID)
	assert.True(t, points[0].PeriodDate.Before(points[2].PeriodDate))

	// Metric projection drops unselected metrics.
	_, hasRevenue := points[2].Metrics[domain.MetricRevenue]
	assert.False(t, hasRevenue)
}

func TestMemoryStoreQuery_GapsStayAbsent(t *testing.T) {
	store := NewMemoryStore()
	put(store, "page-1", 0, map[string]float64{domain.MetricSessions: 100})
	// days 1-2 never ingested
	put(store, "page-1", 3, map[string]float64{domain.MetricSessions: 130})

	points, err := store.Query(context.Background(), QueryParams{
		OrganizationID: "org-1",
		From:           day(0),
		To:             day(3),
		Granularity:    domain.GranularityDaily,
	})
	require.NoError(t, err)
	assert.Len(t, points, 2, "missing periods must be absent, never zero-filled")
}

func TestMemoryStoreQuery_DropsPointsWithNoSelectedMetrics(t *testing.T) {
	store := NewMemoryStore()
	put(store, "page-1", 0, map[string]float64{domain.MetricSessions: 100})
	put(store, "page-1", 1, map[string]float64{domain.MetricRevenue: 5}) // no sessions that day
	put(store, "page-1", 2, map[string]float64{domain.MetricSessions: 90})

	points, err := store.Query(context.Background(), QueryParams{
		OrganizationID: "org-1",
		MetricNames:    []string{domain.MetricSessions},
		From:           day(0),
		To:             day(2),
		Granularity:    domain.GranularityDaily,
	})
	require.NoError(t, err)
	require.Len(t, points, 2, "a point with none of the selected metrics is no data")

	// The revenue-only day must not register as a sessions gap.
	snaps := BuildSnapshots(points, domain.GranularityDaily)
	require.Len(t, snaps, 1)
	assert.Equal(t, 0, snaps[0].Get(domain.MetricSessions).Gaps)
}

func TestMemoryStorePut_ReplacesSamePeriod(t *testing.T) {
	store := NewMemoryStore()
	put(store, "page-1", 0, map[string]float64{domain.MetricSessions: 100})
	put(store, "page-1", 0, map[string]float64{domain.MetricSessions: 150})

	points, err := store.Query(context.Background(), QueryParams{
		OrganizationID: "org-1",
		From:           day(0),
		To:             day(0),
		Granularity:    domain.GranularityDaily,
	})
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, 150.0, points[0].Metrics[domain.MetricSessions])
}

func TestBuildSnapshots(t *testing.T) {
	store := NewMemoryStore()
	put(store, "page-1", 0, map[string]float64{domain.MetricSessions: 100, domain.MetricRevenue: 10})
	put(store, "page-1", 1, map[string]float64{domain.MetricSessions: 120}) // revenue gap
	put(store, "page-1", 2, map[string]float64{domain.MetricSessions: 90, domain.MetricRevenue: 12})
	put(store, "page-2", 2, map[string]float64{domain.MetricSessions: 500})

	points, err := store.Query(context.Background(), QueryParams{
		OrganizationID: "org-1",
		From:           day(0),
		To:             day(2),
		Granularity:    domain.GranularityDaily,
	})
	require.NoError(t, err)

	snaps := BuildSnapshots(points, domain.GranularityDaily)
	require.Len(t, snaps, 2)
	assert.Equal(t, "page-1", snaps[0].EntityID)
	assert.Equal(t, "page-2", snaps[1].EntityID)

	first := snaps[0]
	assert.True(t, first.PeriodEnd.Equal(day(2)))
	assert.True(t, first.HasAll([]string{domain.MetricSessions, domain.MetricRevenue}))
	assert.False(t, first.HasAll([]string{domain.MetricSessions, domain.MetricCTR}))

	sessions := first.Get(domain.MetricSessions)
	assert.Equal(t, 3, sessions.Len())
	assert.Equal(t, 0, sessions.Gaps)
	assert.Equal(t, 310.0, sessions.Total())

	last, period, ok := sessions.Last()
	require.True(t, ok)
	assert.Equal(t, 90.0, last)
	assert.True(t, period.Equal(day(2)))

	revenue := first.Get(domain.MetricRevenue)
	assert.Equal(t, 2, revenue.Len())
	assert.Equal(t, 1, revenue.Gaps, "periods without the metric count as gaps")
}

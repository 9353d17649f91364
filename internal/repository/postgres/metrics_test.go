package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/opportunity-engine/internal/domain"
	"github.com/ignite/opportunity-engine/internal/metrics"
)

func TestMetricRepo_QueryPivotsLongFormRows(t *testing.T) {
	db, mock := setupRepoTest(t)
	repo := NewMetricRepo(db)

	day := time.Date(2025, 8, 28, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT (.+) FROM engine_metric_points").
		WillReturnRows(sqlmock.NewRows([]string{
			"organization_id", "entity_id", "entity_type", "period_date", "metric_name", "metric_value",
		}).
			AddRow("org-1", "page-1", "page", day, "sessions", 550.0).
			AddRow("org-1", "page-1", "page", day, "pageviews", 1200.0).
			AddRow("org-1", "page-2", "page", day, "sessions", 80.0))

	points, err := repo.Query(context.Background(), metrics.QueryParams{
		OrganizationID: "org-1",
		From:           day.AddDate(0, 0, -7),
		To:             day,
		Granularity:    domain.GranularityDaily,
	})
	require.NoError(t, err)
	require.Len(t, points, 2)

	assert.Equal(t, "page-1", points[0].EntityID)
	assert.Equal(t, 550.0, points[0].Metrics["sessions"])
	assert.Equal(t, 1200.0, points[0].Metrics["pageviews"])
	assert.Equal(t, "page-2", points[1].EntityID)
}

func TestMetricRepo_QueryValidatesParams(t *testing.T) {
	db, _ := setupRepoTest(t)
	repo := NewMetricRepo(db)

	_, err := repo.Query(context.Background(), metrics.QueryParams{
		Granularity: domain.GranularityDaily,
	})
	assert.ErrorIs(t, err, metrics.ErrInvalidQuery)
}

func TestMetricRepo_InsertPoints(t *testing.T) {
	db, mock := setupRepoTest(t)
	repo := NewMetricRepo(db)

	mock.ExpectExec("INSERT INTO engine_metric_points").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.InsertPoints(context.Background(), []domain.MetricPoint{{
		OrganizationID: "org-1",
		EntityID:       "page-1",
		EntityType:     domain.EntityPage,
		PeriodDate:     time.Date(2025, 8, 28, 0, 0, 0, 0, time.UTC),
		Granularity:    domain.GranularityDaily,
		Metrics:        map[string]float64{"sessions": 550},
	}})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

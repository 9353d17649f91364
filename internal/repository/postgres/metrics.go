package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/ignite/opportunity-engine/internal/domain"
	"github.com/ignite/opportunity-engine/internal/metrics"
)

// MetricRepo implements metrics.Store against PostgreSQL. Points are
// stored long-form, one row per (entity, period, metric), and pivoted
// into MetricPoint maps on read; absent periods stay absent.
type MetricRepo struct{ db *sql.DB }

// NewMetricRepo creates a Postgres-backed metric point repository.
func NewMetricRepo(db *sql.DB) *MetricRepo { return &MetricRepo{db: db} }

// Query implements metrics.Store.
func (r *MetricRepo) Query(ctx context.Context, params metrics.QueryParams) ([]domain.MetricPoint, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	q := `
		SELECT organization_id, entity_id, entity_type, period_date, metric_name, metric_value
		FROM engine_metric_points
		WHERE organization_id = $1 AND granularity = $2 AND period_date BETWEEN $3 AND $4`
	args := []interface{}{params.OrganizationID, string(params.Granularity), params.From, params.To}
	idx := 5

	if params.EntityType != "" {
		q += fmt.Sprintf(" AND entity_type = $%d", idx)
		args = append(args, string(params.EntityType))
		idx++
	}
	if len(params.EntityIDs) > 0 {
		q += fmt.Sprintf(" AND entity_id IN (%s)", placeholders(idx, len(params.EntityIDs)))
		for _, id := range params.EntityIDs {
			args = append(args, id)
		}
		idx += len(params.EntityIDs)
	}
	if len(params.MetricNames) > 0 {
		q += fmt.Sprintf(" AND metric_name IN (%s)", placeholders(idx, len(params.MetricNames)))
		for _, name := range params.MetricNames {
			args = append(args, name)
		}
		idx += len(params.MetricNames)
	}
	q += " ORDER BY period_date ASC, entity_id ASC"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query metric points: %w", err)
	}
	defer rows.Close()

	type pointKey struct {
		entityID string
		period   time.Time
	}
	byKey := make(map[pointKey]*domain.MetricPoint)
	var order []pointKey

	for rows.Next() {
		var (
			orgID, entityID, entityType, metricName string
			periodDate                              time.Time
			value                                   float64
		)
		if err := rows.Scan(&orgID, &entityID, &entityType, &periodDate, &metricName, &value); err != nil {
			return nil, fmt.Errorf("scan metric row: %w", err)
		}

		key := pointKey{entityID: entityID, period: periodDate.UTC().Truncate(24 * time.Hour)}
		p, ok := byKey[key]
		if !ok {
			p = &domain.MetricPoint{
				OrganizationID: orgID,
				EntityID:       entityID,
				EntityType:     domain.EntityType(entityType),
				PeriodDate:     key.period,
				Granularity:    params.Granularity,
				Metrics:        make(map[string]float64),
			}
			byKey[key] = p
			order = append(order, key)
		}
		p.Metrics[metricName] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate metric rows: %w", err)
	}

	out := make([]domain.MetricPoint, 0, len(order))
	for _, key := range order {
		out = append(out, *byKey[key])
	}
	return out, nil
}

// InsertPoints writes metric points from the ingestion side, replacing
// existing values for the same (entity, period, metric).
func (r *MetricRepo) InsertPoints(ctx context.Context, points []domain.MetricPoint) error {
	for _, p := range points {
		for name, value := range p.Metrics {
			_, err := r.db.ExecContext(ctx, `
				INSERT INTO engine_metric_points
					(organization_id, entity_id, entity_type, period_date, granularity, metric_name, metric_value)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
				ON CONFLICT (organization_id, entity_id, period_date, granularity, metric_name)
				DO UPDATE SET metric_value = EXCLUDED.metric_value, entity_type = EXCLUDED.entity_type
			`, p.OrganizationID, p.EntityID, string(p.EntityType),
				p.PeriodDate.UTC().Truncate(24*time.Hour), string(p.Granularity), name, value)
			if err != nil {
				return fmt.Errorf("insert metric point: %w", err)
			}
		}
	}
	return nil
}

// placeholders renders $start..$start+n-1 for an IN clause.
func placeholders(start, n int) string {
	parts := make([]string, n)
	for i := 0; i < n; i++ {
		parts[i] = fmt.Sprintf("$%d", start+i)
	}
	return strings.Join(parts, ", ")
}

package metrics

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/snowflakedb/gosnowflake" // Snowflake driver

	"github.com/ignite/opportunity-engine/internal/domain"
)

// SnowflakeConfig holds connection settings for the analytical warehouse.
type SnowflakeConfig struct {
	Account   string
	User      string
	Password  string
	Database  string
	Schema    string
	Warehouse string
	Table     string
}

// SnowflakeStore reads aggregated metric rows from the warehouse. Rows
// are stored long-form, one row per (entity, period, metric), and pivoted
// into MetricPoint maps on read.
type SnowflakeStore struct {
	db    *sql.DB
	table string
}

// NewSnowflakeStore opens a warehouse connection and returns a Store.
func NewSnowflakeStore(cfg SnowflakeConfig) (*SnowflakeStore, error) {
	dsn := fmt.Sprintf("%s:%s@%s/%s/%s", cfg.User, cfg.Password, cfg.Account, cfg.Database, cfg.Schema)
	if cfg.Warehouse != "" {
		dsn += "?warehouse=" + cfg.Warehouse
	}

	db, err := sql.Open("snowflake", dsn)
	if err != nil {
		return nil, fmt.Errorf("open snowflake connection: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	table := cfg.Table
	if table == "" {
		table = "METRIC_POINTS"
	}
	return &SnowflakeStore{db: db, table: table}, nil
}

// Close closes the warehouse connection.
func (s *SnowflakeStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping tests the warehouse connection.
func (s *SnowflakeStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Query implements Store. Results are grouped per (entity, period) and
// sorted ascending by period; periods with no rows are simply absent.
func (s *SnowflakeStore) Query(ctx context.Context, params QueryParams) ([]domain.MetricPoint, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	q := fmt.Sprintf(`
		SELECT ORGANIZATION_ID, ENTITY_ID, ENTITY_TYPE, PERIOD_DATE, METRIC_NAME, METRIC_VALUE
		FROM %s
		WHERE ORGANIZATION_ID = ? AND GRANULARITY = ? AND PERIOD_DATE BETWEEN ? AND ?`, s.table)
	args := []interface{}{params.OrganizationID, string(params.Granularity), params.From, params.To}

	if params.EntityType != "" {
		q += " AND ENTITY_TYPE = ?"
		args = append(args, string(params.EntityType))
	}
	if len(params.EntityIDs) > 0 {
		q += fmt.Sprintf(" AND ENTITY_ID IN (?%s)", strings.Repeat(",?", len(params.EntityIDs)-1))
		for _, id := range params.EntityIDs {
			args = append(args, id)
		}
	}
	if len(params.MetricNames) > 0 {
		q += fmt.Sprintf(" AND METRIC_NAME IN (?%s)", strings.Repeat(",?", len(params.MetricNames)-1))
		for _, name := range params.MetricNames {
			args = append(args, name)
		}
	}
	q += " ORDER BY PERIOD_DATE ASC, ENTITY_ID ASC"

	rows, err := s.db.QueryContext(ctx, q, args...)
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

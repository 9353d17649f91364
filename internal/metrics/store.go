// Package metrics defines the read-only boundary between the opportunity
// engine and the ingestion subsystem. The engine queries aggregated
// metric points through the Store interface and never touches raw
// provider data; storage backends (in-memory fixtures, Postgres,
// Snowflake) satisfy the same contract.
package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/ignite/opportunity-engine/internal/domain"
)

// ErrInvalidQuery is returned when query parameters are malformed.
var ErrInvalidQuery = errors.New("metrics: invalid query")

// QueryParams selects metric points for one organization.
type QueryParams struct {
	OrganizationID string
	// EntityIDs restricts the query to specific canonical entities.
	// Empty means all entities of the organization.
	EntityIDs []string
	// EntityType restricts by type when non-empty.
	EntityType domain.EntityType
	// MetricNames restricts the metrics included in each point. Empty
	// means all metrics present on the row.
	MetricNames []string
	From        time.Time
	To          time.Time
	Granularity domain.Granularity
}

// Validate checks the parameters are complete enough to run.
func (q QueryParams) Validate() error {
	if q.OrganizationID == "" {
		return ErrInvalidQuery
	}
	if !domain.ValidGranularity(q.Granularity) {
		return ErrInvalidQuery
	}
	if q.To.Before(q.From) {
		return ErrInvalidQuery
	}
	return nil
}

// Store is the sole dependency boundary to ingested metric data.
//
// Query returns points sorted ascending by period date with at most one
// point per (entity, period). Missing periods are absent from the result,
// never zero-filled; callers must treat gaps explicitly as "no data".
type Store interface {
	Query(ctx context.Context, params QueryParams) ([]domain.MetricPoint, error)
}

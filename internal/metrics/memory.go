package metrics

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ignite/opportunity-engine/internal/domain"
)

// MemoryStore is an in-memory Store used for tests and fixtures. Writes
// copy their input and reads return fresh slices, so a detector run sees
// an immutable snapshot even if ingestion keeps writing.
type MemoryStore struct {
	mu     sync.RWMutex
	points map[string][]domain.MetricPoint // keyed by organization
}

// NewMemoryStore creates an empty in-memory metric store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{points: make(map[string][]domain.MetricPoint)}
}

// Put inserts or replaces the point for its (entity, period, granularity).
func (m *MemoryStore) Put(p domain.MetricPoint) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := p
	cp.Metrics = make(map[string]float64, len(p.Metrics))
	for k, v := range p.Metrics {
		cp.Metrics[k] = v
	}
	cp.PeriodDate = p.PeriodDate.UTC().Truncate(24 * time.Hour)

	rows := m.points[p.OrganizationID]
	for i, existing := range rows {
		if existing.EntityID == cp.EntityID &&
			existing.Granularity == cp.Granularity &&
			existing.PeriodDate.Equal(cp.PeriodDate) {
			rows[i] = cp
			return
		}
	}
	m.points[p.OrganizationID] = append(rows, cp)
}

// Query implements Store.
func (m *MemoryStore) Query(ctx context.Context, params QueryParams) ([]domain.MetricPoint, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	wantEntity := make(map[string]bool, len(params.EntityIDs))
	for _, id := range params.EntityIDs {
		wantEntity[id] = true
	}
	wantMetric := make(map[string]bool, len(params.MetricNames))
	for _, name := range params.MetricNames {
		wantMetric[name] = true
	}

	var out []domain.MetricPoint
	for _, p := range m.points[params.OrganizationID] {
		if p.Granularity != params.Granularity {
			continue
		}
		if len(wantEntity) > 0 && !wantEntity[p.EntityID] {
			continue
		}
		if params.EntityType != "" && p.EntityType != params.EntityType {
			continue
		}
		if p.PeriodDate.Before(params.From) || p.PeriodDate.After(params.To) {
			continue
		}

		cp := p
		cp.Metrics = make(map[string]float64, len(p.Metrics))
		for k, v := range p.Metrics {
			if len(wantMetric) > 0 && !wantMetric[k] {
				continue
			}
			cp.Metrics[k] = v
		}
		// A point with none of the selected metrics is no data for this
		// query; emitting it would inflate gap counts downstream.
		if len(cp.Metrics) == 0 {
			continue
		}
		out = append(out, cp)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].PeriodDate.Equal(out[j].PeriodDate) {
			return out[i].PeriodDate.Before(out[j].PeriodDate)
		}
		return out[i].EntityID < out[j].EntityID
	})
	return out, nil
}

package metrics

import (
	"sort"
	"time"

	"github.com/ignite/opportunity-engine/internal/domain"
)

// Series is one metric's values for one entity, ordered ascending by
// period. Only populated periods appear; Gaps counts the periods inside
// the span that had no data.
type Series struct {
	EntityID string
	Metric   string
	Periods  []time.Time
	Values   []float64
	Gaps     int
}

// Len returns the number of populated periods.
func (s Series) Len() int { return len(s.Values) }

// Last returns the most recent value and its period. ok is false for an
// empty series.
func (s Series) Last() (value float64, period time.Time, ok bool) {
	if len(s.Values) == 0 {
		return 0, time.Time{}, false
	}
	n := len(s.Values) - 1
	return s.Values[n], s.Periods[n], true
}

// Total sums all populated values.
func (s Series) Total() float64 {
	var t float64
	for _, v := range s.Values {
		t += v
	}
	return t
}

// EntitySnapshot is the immutable per-entity view a detector evaluates:
// every required metric extracted into an aligned series. Detectors
// receive one snapshot and never re-query storage mid-evaluation.
type EntitySnapshot struct {
	OrganizationID string
	EntityID       string
	EntityType     domain.EntityType
	Granularity    domain.Granularity
	Series         map[string]Series
	PeriodEnd      time.Time
}

// Get returns the series for a metric name. The zero Series is returned
// for metrics that never appeared.
func (e EntitySnapshot) Get(metric string) Series {
	return e.Series[metric]
}

// HasAll reports whether every named metric has at least one populated
// period. Used for detector eligibility: a detector whose required
// metrics are absent is skipped, never run with nulls.
func (e EntitySnapshot) HasAll(names []string) bool {
	for _, name := range names {
		if e.Series[name].Len() == 0 {
			return false
		}
	}
	return true
}

// BuildSnapshots groups queried points into per-entity snapshots with one
// aligned series per metric. Periods with no value for a metric are
// omitted from that metric's series and counted as gaps.
func BuildSnapshots(points []domain.MetricPoint, granularity domain.Granularity) []EntitySnapshot {
	type entityAcc struct {
		orgID      string
		entityType domain.EntityType
		byMetric   map[string]*Series
		periods    map[time.Time]bool
		periodEnd  time.Time
	}

	acc := make(map[string]*entityAcc)
	var order []string

	for _, p := range points {
		a, ok := acc[p.EntityID]
		if !ok {
			a = &entityAcc{
				orgID:      p.OrganizationID,
				entityType: p.EntityType,
				byMetric:   make(map[string]*Series),
				periods:    make(map[time.Time]bool),
			}
			acc[p.EntityID] = a
			order = append(order, p.EntityID)
		}
		a.periods[p.PeriodDate] = true
		if p.PeriodDate.After(a.periodEnd) {
			a.periodEnd = p.PeriodDate
		}
		for name, v := range p.Metrics {
			s, ok := a.byMetric[name]
			if !ok {
				s = &Series{EntityID: p.EntityID, Metric: name}
				a.byMetric[name] = s
			}
			s.Periods = append(s.Periods, p.PeriodDate)
			s.Values = append(s.Values, v)
		}
	}

	sort.Strings(order)

	out := make([]EntitySnapshot, 0, len(order))
	for _, entityID := range order {
		a := acc[entityID]
		snap := EntitySnapshot{
			OrganizationID: a.orgID,
			EntityID:       entityID,
			EntityType:     a.entityType,
			Granularity:    granularity,
			Series:         make(map[string]Series, len(a.byMetric)),
			PeriodEnd:      a.periodEnd,
		}
		for name, s := range a.byMetric {
			sortSeries(s)
			s.Gaps = len(a.periods) - len(s.Values)
			snap.Series[name] = *s
		}
		out = append(out, snap)
	}
	return out
}

func sortSeries(s *Series) {
	idx := make([]int, len(s.Periods))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return s.Periods[idx[a]].Before(s.Periods[idx[b]]) })

	periods := make([]time.Time, len(idx))
	values := make([]float64, len(idx))
	for i, j := range idx {
		periods[i] = s.Periods[j]
		values[i] = s.Values[j]
	}
	s.Periods = periods
	s.Values = values
}

package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/opportunity-engine/internal/config"
	"github.com/ignite/opportunity-engine/internal/detector"
	"github.com/ignite/opportunity-engine/internal/domain"
	"github.com/ignite/opportunity-engine/internal/metrics"
	"github.com/ignite/opportunity-engine/internal/opportunity"
	"github.com/ignite/opportunity-engine/internal/pkg/distlock"
	"github.com/ignite/opportunity-engine/internal/scoring"
)

// newTestScheduler wires an in-memory stack where org-1's sessions
// dropped sharply on the latest day.
func newTestScheduler(t *testing.T, orgs ...string) (*Scheduler, *opportunity.MemoryStore) {
	t.Helper()

	metricStore := metrics.NewMemoryStore()
	end := time.Now().UTC().Truncate(24 * time.Hour)
	for i := 0; i < 29; i++ {
		value := 1000.0
		if i == 28 {
			value = 550
		}
		metricStore.Put(domain.MetricPoint{
			OrganizationID: "org-1",
			EntityID:       "page-1",
			EntityType:     domain.EntityPage,
			PeriodDate:     end.AddDate(0, 0, i-28),
			Granularity:    domain.GranularityDaily,
			Metrics:        map[string]float64{domain.MetricSessions: value},
		})
	}

	registry := detector.NewRegistry()
	runner := detector.NewRunner(registry, metricStore, detector.DefaultThresholds())
	scorer := scoring.NewScorer(registry, scoring.DefaultWeights())
	store := opportunity.NewMemoryStore(0)

	cfg := config.DetectionConfig{Organizations: orgs}
	return New(cfg, runner, scorer, store), store
}

func TestRunLayer_PersistsOpportunities(t *testing.T) {
	s, store := newTestScheduler(t, "org-1")

	summary, err := s.RunLayer(context.Background(), domain.LayerFast)
	require.NoError(t, err)
	assert.Equal(t, domain.LayerFast, summary.Layer)
	assert.Equal(t, 1, summary.Organizations)
	require.GreaterOrEqual(t, summary.TotalOpportunities, 1)

	opps, err := store.List(context.Background(), opportunity.Filter{OrganizationID: "org-1"})
	require.NoError(t, err)
	assert.Len(t, opps, summary.TotalOpportunities)
}

func TestRunLayer_IdempotentAcrossTicks(t *testing.T) {
	s, store := newTestScheduler(t, "org-1")

	first, err := s.RunLayer(context.Background(), domain.LayerFast)
	require.NoError(t, err)
	second, err := s.RunLayer(context.Background(), domain.LayerFast)
	require.NoError(t, err)
	assert.Equal(t, first.TotalOpportunities, second.TotalOpportunities)

	opps, err := store.List(context.Background(), opportunity.Filter{OrganizationID: "org-1"})
	require.NoError(t, err)
	assert.Len(t, opps, first.TotalOpportunities)
}

func TestRunLayer_NoOrganizationsIsANoop(t *testing.T) {
	s, _ := newTestScheduler(t)

	summary, err := s.RunLayer(context.Background(), domain.LayerFast)
	require.NoError(t, err)
	assert.Zero(t, summary.Organizations)
}

func TestRunLayer_SkipsConditionsInDismissalCooldown(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cache := opportunity.NewCooldownCache(client, time.Hour)
	scope := domain.CooldownScope("org-1", domain.CategoryTraffic, "page-1", "traffic_drop")
	require.NoError(t, cache.MarkDismissed(context.Background(), scope))

	s, store := newTestScheduler(t, "org-1")
	s.WithCooldownCache(cache)

	summary, err := s.RunLayer(context.Background(), domain.LayerFast)
	require.NoError(t, err)
	assert.Zero(t, summary.TotalOpportunities)

	opps, err := store.List(context.Background(), opportunity.Filter{OrganizationID: "org-1"})
	require.NoError(t, err)
	assert.Empty(t, opps, "a dismissed condition must not reach the store")

	// Once the cooldown expires the condition surfaces again.
	require.NoError(t, cache.Clear(context.Background(), scope))
	summary, err = s.RunLayer(context.Background(), domain.LayerFast)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, summary.TotalOpportunities, 1)
}

type heldLock struct{}

func (heldLock) Acquire(ctx context.Context) (bool, error) { return false, nil }
func (heldLock) Release(ctx context.Context) error         { return nil }

func TestRunLayer_SkipsWhenLockHeldElsewhere(t *testing.T) {
	s, store := newTestScheduler(t, "org-1")
	s.WithLocks(func(domain.CadenceLayer) distlock.DistLock { return heldLock{} })

	summary, err := s.RunLayer(context.Background(), domain.LayerFast)
	require.NoError(t, err)
	assert.Zero(t, summary.TotalOpportunities)

	opps, err := store.List(context.Background(), opportunity.Filter{OrganizationID: "org-1"})
	require.NoError(t, err)
	assert.Empty(t, opps)
}

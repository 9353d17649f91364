package opportunity

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/opportunity-engine/internal/domain"
)

func setupCooldownTest(t *testing.T, ttl time.Duration) (*CooldownCache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewCooldownCache(client, ttl), mr
}

func TestCooldownCache_MarkAndExpire(t *testing.T) {
	ctx := context.Background()
	cache, mr := setupCooldownTest(t, time.Hour)

	scope := domain.CooldownScope("org-1", domain.CategoryTraffic, "page-1", "traffic_drop")

	in, err := cache.InCooldown(ctx, scope)
	require.NoError(t, err)
	assert.False(t, in)

	require.NoError(t, cache.MarkDismissed(ctx, scope))
	in, err = cache.InCooldown(ctx, scope)
	require.NoError(t, err)
	assert.True(t, in)

	// Other scopes are unaffected.
	other := domain.CooldownScope("org-1", domain.CategoryTraffic, "page-2", "traffic_drop")
	in, err = cache.InCooldown(ctx, other)
	require.NoError(t, err)
	assert.False(t, in)

	mr.FastForward(2 * time.Hour)
	in, err = cache.InCooldown(ctx, scope)
	require.NoError(t, err)
	assert.False(t, in)
}

func TestCooldownCache_Clear(t *testing.T) {
	ctx := context.Background()
	cache, _ := setupCooldownTest(t, time.Hour)

	scope := domain.CooldownScope("org-1", domain.CategoryRevenue, "rev-1", "revenue_drop")
	require.NoError(t, cache.MarkDismissed(ctx, scope))
	require.NoError(t, cache.Clear(ctx, scope))

	in, err := cache.InCooldown(ctx, scope)
	require.NoError(t, err)
	assert.False(t, in)
}

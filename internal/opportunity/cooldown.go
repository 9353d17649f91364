package opportunity

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const cooldownKeyPrefix = "opportunity:cooldown:"

// CooldownCache keeps dismissal timestamps in Redis with a TTL equal to
// the cooldown window, so detection runs can suppress re-detections of
// acknowledged conditions without a database round trip. It is a cache
// over the store's own dismissal state, not the source of truth.
type CooldownCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCooldownCache wraps a Redis client; zero ttl means DefaultCooldown.
func NewCooldownCache(client *redis.Client, ttl time.Duration) *CooldownCache {
	if ttl <= 0 {
		ttl = DefaultCooldown
	}
	return &CooldownCache{client: client, ttl: ttl}
}

// MarkDismissed records a dismissal for the cooldown scope.
func (c *CooldownCache) MarkDismissed(ctx context.Context, scope string) error {
	stamp := time.Now().UTC().Format(time.RFC3339)
	if err := c.client.Set(ctx, cooldownKeyPrefix+scope, stamp, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to mark dismissal cooldown: %w", err)
	}
	return nil
}

// InCooldown reports whether the scope was dismissed within the window.
func (c *CooldownCache) InCooldown(ctx context.Context, scope string) (bool, error) {
	n, err := c.client.Exists(ctx, cooldownKeyPrefix+scope).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check dismissal cooldown: %w", err)
	}
	return n > 0, nil
}

// Clear drops the cooldown for a scope, e.g. when an operator wants a
// dismissed condition re-surfaced immediately.
func (c *CooldownCache) Clear(ctx context.Context, scope string) error {
	if err := c.client.Del(ctx, cooldownKeyPrefix+scope).Err(); err != nil {
		return fmt.Errorf("failed to clear dismissal cooldown: %w", err)
	}
	return nil
}

// Package cache keeps successful upstream source results in Redis for a short TTL.
// Failed results are never cached, so an outage is retried on the next screening.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"kycdesk/internal/evidence/registry/metrics"
)

const keyPrefix = "kycdesk:source:"

// RedisCache stores decoded source payloads as JSON.
type RedisCache struct {
	client  redis.UniversalClient
	ttl     time.Duration
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewRedisCache(client redis.UniversalClient, ttl time.Duration, m *metrics.Metrics, logger *slog.Logger) *RedisCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisCache{client: client, ttl: ttl, metrics: m, logger: logger}
}

func key(source, subject string) string {
	return keyPrefix + source + ":" + subject
}

// Get returns the cached payload. Redis errors are logged and treated as a miss.
func (c *RedisCache) Get(ctx context.Context, source, subject string) (any, bool) {
	raw, err := c.client.Get(ctx, key(source, subject)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.WarnContext(ctx, "source cache read failed", "source", source, "error", err)
		}
		c.metrics.IncCacheMiss(source)
		return nil, false
	}
	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		c.metrics.IncCacheMiss(source)
		return nil, false
	}
	c.metrics.IncCacheHit(source)
	return data, true
}

func (c *RedisCache) Set(ctx context.Context, source, subject string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key(source, subject), raw, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "source cache write failed", "source", source, "error", err)
	}
}

package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"backend-journitag/internal/logger"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "geocode:"

// Cached wraps a ReverseGeocoder with a Redis cache of successful lookups.
// Misses and failures are never cached, and a broken cache only costs a
// provider call.
type Cached struct {
	next  ReverseGeocoder
	redis *redis.Client
	ttl   time.Duration
	log   *slog.Logger
}

// NewCached returns next unchanged when rdb is nil.
func NewCached(next ReverseGeocoder, rdb *redis.Client, ttl time.Duration, log *slog.Logger) ReverseGeocoder {
	if rdb == nil {
		return next
	}
	return &Cached{next: next, redis: rdb, ttl: ttl, log: logger.OrDefault(log)}
}

func cacheKey(lat, lon float64) string {
	return fmt.Sprintf("%s%.5f,%.5f", cacheKeyPrefix, lat, lon)
}

func (c *Cached) Reverse(ctx context.Context, lat, lon float64) (Place, error) {
	key := cacheKey(lat, lon)

	raw, err := c.redis.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var p Place
		if jsonErr := json.Unmarshal(raw, &p); jsonErr == nil {
			return p, nil
		}
		c.log.Warn("geocode cache entry unreadable", "key", key)
	case err != redis.Nil:
		c.log.Warn("geocode cache read failed", "key", key, "error", err)
	}

	p, err := c.next.Reverse(ctx, lat, lon)
	if err != nil {
		return Place{}, err
	}

	if data, err := json.Marshal(p); err == nil {
		if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.log.Warn("geocode cache write failed", "key", key, "error", err)
		}
	}
	return p, nil
}

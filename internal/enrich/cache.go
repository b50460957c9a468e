package enrich

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/cmd-f-hackthon/MapMe/internal/domain"
	"github.com/cmd-f-hackthon/MapMe/internal/metrics"
)

const cacheKeyPrefix = "mapme:enrich:"

// Cache decorates a Resolver with a Redis lookaside cache keyed on the
// coordinate rounded to five decimals (about one meter). Redis failures are
// logged and bypassed; empty results are not cached so a degraded lookup is
// retried on the next entry.
type Cache struct {
	next   Resolver
	client *redis.Client
	ttl    time.Duration
	log    *slog.Logger
}

var _ Resolver = (*Cache)(nil)

// NewCache wraps next. The caller owns client and closes it on shutdown.
func NewCache(next Resolver, client *redis.Client, ttl time.Duration, log *slog.Logger) *Cache {
	if log == nil {
		log = slog.Default()
	}
	return &Cache{next: next, client: client, ttl: ttl, log: log}
}

// NewRedisClient parses a redis:// URL into a client with bounded timeouts.
func NewRedisClient(redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("enrich.NewRedisClient: %w", err)
	}
	opt.DialTimeout = 2 * time.Second
	opt.ReadTimeout = time.Second
	opt.WriteTimeout = time.Second
	opt.PoolTimeout = 2 * time.Second
	opt.MaxRetries = 1
	return redis.NewClient(opt), nil
}

func cacheKey(c domain.Coordinate) string {
	return fmt.Sprintf("%s%.5f,%.5f", cacheKeyPrefix, c.Latitude, c.Longitude)
}

// Resolve returns cached details for c or resolves and caches them.
func (c *Cache) Resolve(ctx context.Context, co domain.Coordinate) domain.LocationDetails {
	key := cacheKey(co)

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var d domain.LocationDetails
		if err := json.Unmarshal(raw, &d); err == nil {
			metrics.EnrichmentCache.WithLabelValues("hit").Inc()
			return d
		}
		metrics.EnrichmentCache.WithLabelValues("error").Inc()
	case errors.Is(err, redis.Nil):
		metrics.EnrichmentCache.WithLabelValues("miss").Inc()
	default:
		metrics.EnrichmentCache.WithLabelValues("error").Inc()
		c.log.DebugContext(ctx, "enrichment cache read failed", "key", key, "error", err)
	}

	d := c.next.Resolve(ctx, co)
	if d.IsEmpty() {
		return d
	}

	raw, err = json.Marshal(d)
	if err != nil {
		return d
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.log.DebugContext(ctx, "enrichment cache write failed", "key", key, "error", err)
	}
	return d
}

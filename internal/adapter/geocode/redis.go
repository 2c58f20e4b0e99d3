package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/couchcryptid/eventrank/internal/domain"
	"github.com/couchcryptid/eventrank/internal/observability"
)

const redisKeyPrefix = "eventrank:geocode:"

// RedisCache is a second-level geocode cache shared by every process pointing
// at the same Redis. Redis failures are logged and treated as misses.
type RedisCache struct {
	inner   domain.Geocoder
	client  redis.UniversalClient
	ttl     time.Duration
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewRedisCache creates a Redis cache decorator around a geocoder.
func NewRedisCache(inner domain.Geocoder, client redis.UniversalClient, ttl time.Duration, metrics *observability.Metrics, logger *slog.Logger) *RedisCache {
	return &RedisCache{inner: inner, client: client, ttl: ttl, metrics: metrics, logger: logger}
}

// NewRedisClient parses a redis:// URL into a client.
func NewRedisClient(rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, err
	}
	return redis.NewClient(opts), nil
}

type cachedResult struct {
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	DisplayName string  `json:"display_name"`
	Confidence  float64 `json:"confidence"`
	Found       bool    `json:"found"`
}

func (c *RedisCache) ForwardGeocode(ctx context.Context, query string) (domain.GeocodingResult, error) {
	key := redisKeyPrefix + CacheKey(query)

	if result, ok := c.lookup(ctx, key); ok {
		c.metrics.GeocodeCache.WithLabelValues("redis", "hit").Inc()
		return result, nil
	}
	c.metrics.GeocodeCache.WithLabelValues("redis", "miss").Inc()

	result, err := c.inner.ForwardGeocode(ctx, query)
	if err != nil {
		return result, err
	}
	c.store(ctx, key, result)
	return result, nil
}

func (c *RedisCache) lookup(ctx context.Context, key string) (domain.GeocodingResult, bool) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("redis geocode lookup failed", "key", key, "error", err)
		}
		return domain.GeocodingResult{}, false
	}
	var cr cachedResult
	if err := json.Unmarshal(raw, &cr); err != nil {
		c.logger.Warn("discarding corrupt geocode cache entry", "key", key, "error", err)
		return domain.GeocodingResult{}, false
	}
	return domain.GeocodingResult(cr), true
}

func (c *RedisCache) store(ctx context.Context, key string, result domain.GeocodingResult) {
	raw, err := json.Marshal(cachedResult(result))
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.logger.Warn("redis geocode store failed", "key", key, "error", err)
	}
}

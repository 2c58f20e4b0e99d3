// Package weather caches forecasts from a weather provider.
package weather

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/eventrank/internal/domain"
	"github.com/couchcryptid/eventrank/internal/observability"
)

// CachedProvider wraps a WeatherProvider with a TTL cache keyed by
// coordinate. Errors and empty forecasts are not cached. Safe for concurrent
// use.
type CachedProvider struct {
	inner   domain.WeatherProvider
	ttl     time.Duration
	clock   clockwork.Clock
	metrics *observability.Metrics

	mu      sync.Mutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	days    []domain.DayWeather
	expires time.Time
}

// NewCachedProvider creates a TTL cache decorator around a weather provider.
func NewCachedProvider(inner domain.WeatherProvider, ttl time.Duration, clock clockwork.Clock, metrics *observability.Metrics) *CachedProvider {
	return &CachedProvider{
		inner:   inner,
		ttl:     ttl,
		clock:   clock,
		metrics: metrics,
		entries: make(map[string]cacheEntry),
	}
}

func (p *CachedProvider) Forecast(ctx context.Context, lat, lon float64) ([]domain.DayWeather, error) {
	key := fmt.Sprintf("%.4f,%.4f", lat, lon)

	p.mu.Lock()
	e, ok := p.entries[key]
	p.mu.Unlock()
	if ok && p.clock.Now().Before(e.expires) {
		p.metrics.WeatherRequests.WithLabelValues("cached").Inc()
		return e.days, nil
	}

	days, err := p.inner.Forecast(ctx, lat, lon)
	if err != nil || len(days) == 0 {
		return days, err
	}

	p.mu.Lock()
	p.entries[key] = cacheEntry{days: days, expires: p.clock.Now().Add(p.ttl)}
	p.mu.Unlock()
	return days, nil
}

package geocode

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/couchcryptid/eventrank/internal/domain"
)

// RateLimited spaces calls to the inner geocoder at least interval apart.
// Public providers such as Nominatim allow one request per second.
type RateLimited struct {
	inner   domain.Geocoder
	limiter *rate.Limiter
}

// NewRateLimited wraps inner. A zero interval disables limiting.
func NewRateLimited(inner domain.Geocoder, interval time.Duration) *RateLimited {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &RateLimited{inner: inner, limiter: rate.NewLimiter(limit, 1)}
}

func (r *RateLimited) ForwardGeocode(ctx context.Context, query string) (domain.GeocodingResult, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return domain.GeocodingResult{}, fmt.Errorf("geocode rate limit: %w", err)
	}
	return r.inner.ForwardGeocode(ctx, query)
}

package domain

import "context"

// GeocodingResult contains location data returned by a geocoding provider.
type GeocodingResult struct {
	Lat         float64
	Lon         float64
	DisplayName string
	Confidence  float64 // 0.0–1.0 provider confidence score
	Found       bool
}

// Geocoder resolves free-text addresses to coordinates. A lookup with no
// match returns a result with Found=false and a nil error.
type Geocoder interface {
	ForwardGeocode(ctx context.Context, query string) (GeocodingResult, error)
}

package geo

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/eventrank/internal/domain"
)

// DefaultRadiusKm is the default search radius around the origin.
const DefaultRadiusKm = 130.0

// Location is a resolved place and its distance from the origin.
type Location struct {
	Point
	DistanceKm  float64
	DisplayName string
}

// Stats counts the filter's decisions for one batch.
type Stats struct {
	Unplaceable int // no address and no location name
	OutOfRadius int // resolved farther than the radius
	Unresolved  int // kept without coordinates
	Kept        int
}

// Filter resolves record locations through a geocoder and drops records that
// fall outside the radius. Records the geocoder cannot place are kept without
// coordinates.
type Filter struct {
	geocoder domain.Geocoder
	origin   Point
	radiusKm float64
	logger   *slog.Logger
}

// NewFilter creates a Filter around origin. A non-positive radius falls back
// to DefaultRadiusKm.
func NewFilter(geocoder domain.Geocoder, origin Point, radiusKm float64, logger *slog.Logger) *Filter {
	if radiusKm <= 0 {
		radiusKm = DefaultRadiusKm
	}
	return &Filter{geocoder: geocoder, origin: origin, radiusKm: radiusKm, logger: logger}
}

// Resolve geocodes query and measures its distance from the origin. Lookup
// errors are logged and reported as not found.
func (f *Filter) Resolve(ctx context.Context, query string) (Location, bool) {
	if query == "" {
		return Location{}, false
	}
	result, err := f.geocoder.ForwardGeocode(ctx, query)
	if err != nil {
		f.logger.Warn("geocode lookup failed", "query", query, "error", err)
		return Location{}, false
	}
	if !result.Found {
		return Location{}, false
	}
	p := Point{Lat: result.Lat, Lon: result.Lon}
	return Location{Point: p, DistanceKm: Distance(f.origin, p), DisplayName: result.DisplayName}, true
}

// Apply places each record, serially. The address is tried first, then the
// location name.
func (f *Filter) Apply(ctx context.Context, records []domain.RawRecord) ([]domain.GeoRecord, Stats) {
	var stats Stats
	out := make([]domain.GeoRecord, 0, len(records))

	for _, r := range records {
		if r.Address == "" && r.LocationName == "" {
			stats.Unplaceable++
			f.logger.Debug("dropping record without location", "external_id", r.ExternalID)
			continue
		}

		loc, ok := f.locate(ctx, r)
		if !ok {
			stats.Unresolved++
			stats.Kept++
			out = append(out, domain.GeoRecord{RawRecord: r})
			continue
		}

		if loc.DistanceKm > f.radiusKm {
			stats.OutOfRadius++
			f.logger.Debug("dropping record outside radius",
				"external_id", r.ExternalID,
				"distance_km", loc.DistanceKm,
				"radius_km", f.radiusKm,
			)
			continue
		}

		stats.Kept++
		out = append(out, domain.GeoRecord{
			RawRecord:          r,
			Latitude:           domain.Ptr(loc.Lat),
			Longitude:          domain.Ptr(loc.Lon),
			DistanceFromOrigin: domain.Ptr(loc.DistanceKm),
		})
	}
	return out, stats
}

func (f *Filter) locate(ctx context.Context, r domain.RawRecord) (Location, bool) {
	if loc, ok := f.Resolve(ctx, r.Address); ok {
		return loc, true
	}
	if r.LocationName != "" && r.LocationName != r.Address {
		return f.Resolve(ctx, r.LocationName)
	}
	return Location{}, false
}

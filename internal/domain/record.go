package domain

import "time"

// RawRecord is one event listing as produced by a scraper collaborator.
// Optional numeric and boolean fields are pointers; optional strings are empty
// when absent.
type RawRecord struct {
	ExternalID      string     `json:"external_id"`
	Source          string     `json:"source"`
	Title           string     `json:"title"`
	Description     string     `json:"description,omitempty"`
	StartDateTime   time.Time  `json:"start_date_time"`
	EndDateTime     *time.Time `json:"end_date_time,omitempty"`
	LocationName    string     `json:"location_name,omitempty"`
	Address         string     `json:"address,omitempty"`
	Category        string     `json:"category,omitempty"`
	AgeMin          *int       `json:"age_min,omitempty"`
	AgeMax          *int       `json:"age_max,omitempty"`
	AdultPrice      *float64   `json:"adult_price,omitempty"`
	ChildPrice      *float64   `json:"child_price,omitempty"`
	FamilyPrice     *float64   `json:"family_price,omitempty"`
	IsOutdoor       *bool      `json:"is_outdoor,omitempty"`
	DurationMinutes *int       `json:"duration_minutes,omitempty"`
	ImageURL        string     `json:"image_url,omitempty"`
	BookingURL      string     `json:"booking_url,omitempty"`
}

// HasAgeRange reports whether at least one age bound is known.
func (r RawRecord) HasAgeRange() bool {
	return r.AgeMin != nil || r.AgeMax != nil
}

// HasPrice reports whether any price field is known.
func (r RawRecord) HasPrice() bool {
	return r.AdultPrice != nil || r.ChildPrice != nil || r.FamilyPrice != nil
}

// Outdoor reports whether the record is explicitly marked as outdoor.
func (r RawRecord) Outdoor() bool {
	return r.IsOutdoor != nil && *r.IsOutdoor
}

// PlaceQuery returns the best free-text location for geocoding, preferring the
// street address over the venue name.
func (r RawRecord) PlaceQuery() string {
	if r.Address != "" {
		return r.Address
	}
	return r.LocationName
}

// GeoRecord is a RawRecord placed relative to the configured origin.
// Coordinates are nil when the location could not be resolved.
type GeoRecord struct {
	RawRecord
	Latitude           *float64 `json:"latitude,omitempty"`
	Longitude          *float64 `json:"longitude,omitempty"`
	DistanceFromOrigin *float64 `json:"distance_from_origin,omitempty"` // km
}

// Located reports whether the record carries resolved coordinates.
func (g GeoRecord) Located() bool {
	return g.Latitude != nil && g.Longitude != nil
}

// ScoredRecord is the terminal entity written to the persistence collaborator.
type ScoredRecord struct {
	GeoRecord
	ScoreInfant int       `json:"score_infant"`
	ScoreChild  int       `json:"score_child"`
	ScoreFamily int       `json:"score_family"`
	ProcessedAt time.Time `json:"processed_at"`
}

// Score returns the stored score for a profile.
func (s ScoredRecord) Score(p AudienceProfile) int {
	switch p {
	case ProfileInfant:
		return s.ScoreInfant
	case ProfileChild:
		return s.ScoreChild
	default:
		return s.ScoreFamily
	}
}

// SetScore stores the score for a profile.
func (s *ScoredRecord) SetScore(p AudienceProfile, score int) {
	switch p {
	case ProfileInfant:
		s.ScoreInfant = score
	case ProfileChild:
		s.ScoreChild = score
	default:
		s.ScoreFamily = score
	}
}

// Ptr returns a pointer to v. Handy for optional record fields.
func Ptr[T any](v T) *T {
	return &v
}

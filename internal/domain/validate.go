package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidRecord marks a record rejected at the ingestion boundary.
var ErrInvalidRecord = errors.New("invalid record")

// Validate checks the RawRecord invariants. It is applied once, right after a
// scraper returns, so later stages can rely on them.
func Validate(r RawRecord) error {
	switch {
	case r.ExternalID == "":
		return invalid("external_id is required")
	case r.Source == "":
		return invalid("source is required")
	case r.Title == "":
		return invalid("title is required")
	case r.StartDateTime.IsZero():
		return invalid("start_date_time is required")
	}

	if r.EndDateTime != nil && r.EndDateTime.Before(r.StartDateTime) {
		return invalid("end_date_time before start_date_time")
	}
	if r.AgeMin != nil && *r.AgeMin < 0 {
		return invalid("age_min must be >= 0")
	}
	if r.AgeMax != nil && *r.AgeMax < 0 {
		return invalid("age_max must be >= 0")
	}
	if r.AgeMin != nil && r.AgeMax != nil && *r.AgeMin > *r.AgeMax {
		return invalid(fmt.Sprintf("age_min %d > age_max %d", *r.AgeMin, *r.AgeMax))
	}
	for name, p := range map[string]*float64{
		"adult_price":  r.AdultPrice,
		"child_price":  r.ChildPrice,
		"family_price": r.FamilyPrice,
	} {
		if p != nil && *p < 0 {
			return invalid(name + " must be >= 0")
		}
	}
	if r.DurationMinutes != nil && *r.DurationMinutes <= 0 {
		return invalid("duration_minutes must be > 0")
	}
	return nil
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidRecord, msg)
}

// Normalize trims and collapses whitespace in the free-text fields.
func Normalize(r RawRecord) RawRecord {
	r.ExternalID = strings.TrimSpace(r.ExternalID)
	r.Source = strings.TrimSpace(r.Source)
	r.Title = collapseSpace(r.Title)
	r.Description = collapseSpace(r.Description)
	r.LocationName = collapseSpace(r.LocationName)
	r.Address = collapseSpace(r.Address)
	r.Category = collapseSpace(r.Category)
	r.ImageURL = strings.TrimSpace(r.ImageURL)
	r.BookingURL = strings.TrimSpace(r.BookingURL)
	return r
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

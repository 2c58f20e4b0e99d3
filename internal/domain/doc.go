// Package domain models third-party event listings as they move through the
// ranking pipeline.
//
// # Record lifecycle
//
//	RawRecord     one listing from one scraper collaborator, immutable
//	GeoRecord     RawRecord plus coordinates and distance from the origin
//	ScoredRecord  GeoRecord plus one 0–100 score per audience profile
//
// Each pipeline run recomputes GeoRecords and ScoredRecords from scratch and
// upserts them by ExternalID. Nothing is edited in place.
//
// # Optional fields
//
// Free-text fields (description, location, address, category, URLs) use the
// empty string for "unknown". Numeric and boolean fields use pointers, because
// zero is a meaningful value: a price of 0 means free, an AgeMin of 0 means
// "from birth". Scoring treats a nil field as missing data and penalizes it
// rather than assuming a generous default.
//
// # Units
//
//	Ages:      whole years
//	Prices:    local currency units (CZK by default), never negative
//	Duration:  minutes, strictly positive
//	Distance:  kilometres, great-circle, rounded to 0.1 km
//
// # Audience profiles
//
//	Infant  target age 2
//	Child   target age 8
//	Family  no single target age; mixed-age groups
//
// # Source identifiers
//
// ExternalID must be unique within its source. Scraper collaborators in this
// module prefix IDs with the source name ("kudyznudy-1234") so the ID is also
// unique across sources, which the persistence upsert relies on.
package domain

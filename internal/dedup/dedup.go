// Package dedup merges near-duplicate raw records reported by different
// sources into canonical records.
package dedup

import (
	"strings"
	"unicode/utf8"

	"github.com/couchcryptid/eventrank/internal/domain"
)

// DefaultThreshold is the composite score at or above which two records are
// treated as the same event.
const DefaultThreshold = 0.8

// group is the transient set of records judged duplicates of one anchor during
// a pass. It collapses to canonical.
type group struct {
	anchor    domain.RawRecord
	canonical domain.RawRecord
}

// Deduplicate collapses near-duplicate records. The input slice is not
// modified. Passes are repeated until one performs no merge, so running
// Deduplicate on its own output returns it unchanged.
func Deduplicate(records []domain.RawRecord, threshold float64) []domain.RawRecord {
	out := make([]domain.RawRecord, len(records))
	copy(out, records)
	for {
		next, merged := mergePass(out, threshold)
		if !merged {
			return next
		}
		out = next
	}
}

// mergePass runs one O(n²) scan. Each unconsumed record anchors a group and
// absorbs every later unconsumed record whose score against the anchor meets
// the threshold.
func mergePass(records []domain.RawRecord, threshold float64) ([]domain.RawRecord, bool) {
	consumed := make([]bool, len(records))
	out := make([]domain.RawRecord, 0, len(records))
	merged := false

	for i := range records {
		if consumed[i] {
			continue
		}
		g := group{anchor: records[i], canonical: records[i]}
		for j := i + 1; j < len(records); j++ {
			if consumed[j] {
				continue
			}
			if Score(g.anchor, records[j]) >= threshold {
				g.canonical = Merge(g.canonical, records[j])
				consumed[j] = true
				merged = true
			}
		}
		out = append(out, g.canonical)
	}
	return out, merged
}

// Merge folds b into a. Field preference favors a, so Merge(a, b) and
// Merge(b, a) generally differ.
func Merge(a, b domain.RawRecord) domain.RawRecord {
	m := a
	m.Source = joinSources(a.Source, b.Source)
	m.Title = longer(a.Title, b.Title)
	m.Description = longer(a.Description, b.Description)
	m.EndDateTime = firstDefined(a.EndDateTime, b.EndDateTime)
	m.LocationName, m.Address = location(a, b)
	m.Category = firstNonEmpty(a.Category, b.Category)
	m.AgeMin, m.AgeMax = intersectAges(a, b)
	m.AdultPrice = minPrice(a.AdultPrice, b.AdultPrice)
	m.ChildPrice = minPrice(a.ChildPrice, b.ChildPrice)
	m.FamilyPrice = minPrice(a.FamilyPrice, b.FamilyPrice)
	m.IsOutdoor = orBool(a.IsOutdoor, b.IsOutdoor)
	m.DurationMinutes = firstDefined(a.DurationMinutes, b.DurationMinutes)
	m.ImageURL = firstNonEmpty(a.ImageURL, b.ImageURL)
	m.BookingURL = firstNonEmpty(a.BookingURL, b.BookingURL)
	return m
}

// location keeps the venue name and address as a pair so a merged record
// never names one place and gives the street of another.
func location(a, b domain.RawRecord) (name, address string) {
	if a.LocationName != "" || a.Address != "" {
		return a.LocationName, a.Address
	}
	return b.LocationName, b.Address
}

// joinSources concatenates comma-separated source lists without repeating a
// source already present.
func joinSources(a, b string) string {
	seen := make(map[string]bool)
	var parts []string
	for _, list := range []string{a, b} {
		for _, s := range strings.Split(list, ",") {
			s = strings.TrimSpace(s)
			if s == "" || seen[s] {
				continue
			}
			seen[s] = true
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}

// Sources splits a merged source string back into its source names.
func Sources(merged string) []string {
	var out []string
	for _, s := range strings.Split(merged, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func longer(a, b string) string {
	if utf8.RuneCountInString(b) > utf8.RuneCountInString(a) {
		return b
	}
	return a
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func firstDefined[T any](a, b *T) *T {
	if a != nil {
		return a
	}
	return b
}

// intersectAges keeps the most restrictive range. When the intersection is
// empty the two sources contradict each other and a's range is kept.
func intersectAges(a, b domain.RawRecord) (*int, *int) {
	lo := a.AgeMin
	if b.AgeMin != nil && (lo == nil || *b.AgeMin > *lo) {
		lo = b.AgeMin
	}
	hi := a.AgeMax
	if b.AgeMax != nil && (hi == nil || *b.AgeMax < *hi) {
		hi = b.AgeMax
	}
	if lo != nil && hi != nil && *lo > *hi {
		return a.AgeMin, a.AgeMax
	}
	return lo, hi
}

func minPrice(a, b *float64) *float64 {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case *b < *a:
		return b
	default:
		return a
	}
}

func orBool(a, b *bool) *bool {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	default:
		return domain.Ptr(*a || *b)
	}
}

package scoring

import (
	"time"

	"github.com/couchcryptid/eventrank/internal/domain"
	"github.com/couchcryptid/eventrank/internal/similarity"
)

// Age (0–25).

var unknownAgeScore = map[domain.AudienceProfile]int{
	domain.ProfileInfant: 4,
	domain.ProfileChild:  5,
	domain.ProfileFamily: 8,
}

func ageScore(r domain.RawRecord, p domain.AudienceProfile) int {
	if !r.HasAgeRange() {
		return unknownAgeScore[p]
	}
	lo := 0
	if r.AgeMin != nil {
		lo = *r.AgeMin
	}

	target, ok := p.TargetAge()
	if !ok {
		// Families bring their youngest along, so score the lowest admitted age.
		switch {
		case lo <= 3:
			return 25
		case lo <= 6:
			return 20
		case lo <= 10:
			return 14
		case lo <= 14:
			return 8
		default:
			return 3
		}
	}

	outside := 0
	switch {
	case target < lo:
		outside = lo - target
	case r.AgeMax != nil && target > *r.AgeMax:
		outside = target - *r.AgeMax
	}
	return max(0, 25-5*outside)
}

// Distance (0–15).

func distanceScore(km *float64) int {
	if km == nil {
		return 3
	}
	switch d := *km; {
	case d < 10:
		return 15
	case d < 30:
		return 12
	case d < 70:
		return 8
	case d < 130:
		return 5
	default:
		return 2
	}
}

// Price (0–15).

// EffectivePrice is what a family of two adults and one child pays: the
// family ticket or 2×adult + child, whichever is cheaper. A missing adult or
// child price is substituted by the other. ok is false with no price at all.
func EffectivePrice(r domain.RawRecord) (float64, bool) {
	var combo *float64
	switch {
	case r.AdultPrice != nil && r.ChildPrice != nil:
		combo = domain.Ptr(2**r.AdultPrice + *r.ChildPrice)
	case r.AdultPrice != nil:
		combo = domain.Ptr(3 * *r.AdultPrice)
	case r.ChildPrice != nil:
		combo = domain.Ptr(3 * *r.ChildPrice)
	}

	switch {
	case combo != nil && r.FamilyPrice != nil:
		return min(*combo, *r.FamilyPrice), true
	case combo != nil:
		return *combo, true
	case r.FamilyPrice != nil:
		return *r.FamilyPrice, true
	default:
		return 0, false
	}
}

func priceScore(r domain.RawRecord) int {
	price, ok := EffectivePrice(r)
	if !ok {
		return 4
	}
	switch {
	case price == 0:
		return 15
	case price <= 150:
		return 12
	case price <= 300:
		return 10
	case price <= 500:
		return 8
	case price < 1000:
		return 5
	default:
		return 2
	}
}

// Type (0–15).

const (
	typeBase        = 5
	typeMax         = 15
	outdoorGood     = 8
	outdoorBad      = -3
	educationalPlus = 2
	interactivePlus = 2
)

func typeScore(r domain.RawRecord, text string, p domain.AudienceProfile, weather *domain.DayWeather) (int, []string) {
	total := typeBase
	var matched []string

	if r.Outdoor() && weather != nil {
		if weather.IsGoodForOutdoor {
			total += outdoorGood
			matched = append(matched, "outdoor:good-weather")
		} else {
			total += outdoorBad
			matched = append(matched, "outdoor:bad-weather")
		}
	}
	if matchesAny(text, educationalKeywords) {
		total += educationalPlus
		matched = append(matched, "educational")
	}
	if matchesAny(text, interactiveKeywords) {
		total += interactivePlus
		matched = append(matched, "interactive")
	}

	rules := Rules(p)
	for _, rule := range rules.Affinities {
		if matchesAny(text, rule.Keywords) {
			total += rule.Delta
			matched = append(matched, "affinity:"+rule.Name)
		}
	}
	for _, rule := range rules.Unsuitable {
		if matchesAny(text, rule.Keywords) {
			total += rule.Delta
			matched = append(matched, "unsuitable:"+rule.Name)
		}
	}
	return min(typeMax, max(0, total)), matched
}

func matchesAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if similarity.ContainsWord(text, similarity.Fold(k)+suffix(k)) {
			return true
		}
	}
	return false
}

// suffix keeps the prefix marker that Fold strips as punctuation.
func suffix(keyword string) string {
	if len(keyword) > 0 && keyword[len(keyword)-1] == '*' {
		return "*"
	}
	return ""
}

// Timing (0–10).

type window struct{ from, to int } // [from, to) hours

var preferredHours = map[domain.AudienceProfile]window{
	domain.ProfileInfant: {9, 12},
	domain.ProfileChild:  {13, 18},
	domain.ProfileFamily: {10, 18},
}

var daytime = window{8, 20}

func (w window) contains(hour int) bool {
	return hour >= w.from && hour < w.to
}

func timingScore(start time.Time, p domain.AudienceProfile) int {
	score := 0
	if wd := start.Weekday(); wd == time.Saturday || wd == time.Sunday {
		score += 5
	}
	switch h := start.Hour(); {
	case preferredHours[p].contains(h):
		score += 5
	case daytime.contains(h):
		score += 2
	}
	return score
}

// Duration (0–10).

type durationBand struct {
	optimalMin, optimalMax, acceptableMax int
}

var durationBands = map[domain.AudienceProfile]durationBand{
	domain.ProfileInfant: {20, 60, 90},
	domain.ProfileChild:  {45, 120, 180},
	domain.ProfileFamily: {60, 240, 360},
}

func durationScore(minutes *int, p domain.AudienceProfile) int {
	if minutes == nil {
		return 3
	}
	b := durationBands[p]
	switch d := *minutes; {
	case d >= b.optimalMin && d <= b.optimalMax:
		return 10
	case d < b.optimalMin, d <= b.acceptableMax:
		return 6
	default:
		return 2
	}
}

// Seasonality (0–5).

func seasonalityScore(text string, start time.Time) int {
	switch {
	case matchesAny(text, seasonalKeywords):
		return 5
	case start.Month() == time.December:
		return 3
	default:
		return 0
	}
}

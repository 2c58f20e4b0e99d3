// Package scoring ranks geolocated records for each audience profile.
//
// A score is BASE plus seven bounded factors, scaled by a completeness
// multiplier and capped at 100. Missing data is penalized: an unknown age,
// distance, price or duration scores below any plausible known value.
package scoring

import (
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/couchcryptid/eventrank/internal/domain"
	"github.com/couchcryptid/eventrank/internal/similarity"
)

const (
	// Base is the starting score for every record.
	Base = 50
	// MaxScore caps the final score.
	MaxScore = 100

	affinityBonus = 3

	minCompleteness = 0.7
)

// Factors is the breakdown behind one score.
type Factors struct {
	Base         int      `json:"base"`
	Age          int      `json:"age"`
	Distance     int      `json:"distance"`
	Price        int      `json:"price"`
	Type         int      `json:"type"`
	Timing       int      `json:"timing"`
	Duration     int      `json:"duration"`
	Seasonality  int      `json:"seasonality"`
	Raw          int      `json:"raw"`
	Completeness float64  `json:"completeness"`
	Rules        []string `json:"rules,omitempty"`
}

// Engine evaluates records against audience profiles. It is stateless apart
// from the local time zone used for the timing and seasonality factors.
type Engine struct {
	loc *time.Location
}

// NewEngine creates an Engine that reads start times in loc. A nil loc means
// UTC.
func NewEngine(loc *time.Location) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{loc: loc}
}

// Score computes the profile score for r. weather is the forecast for the
// record's start date, or nil when unknown. The result is in [0, 100].
func (e *Engine) Score(r domain.GeoRecord, p domain.AudienceProfile, weather *domain.DayWeather) (int, Factors) {
	start := r.StartDateTime.In(e.loc)
	text := foldedText(r.RawRecord)

	f := Factors{
		Base:        Base,
		Age:         ageScore(r.RawRecord, p),
		Distance:    distanceScore(r.DistanceFromOrigin),
		Price:       priceScore(r.RawRecord),
		Timing:      timingScore(start, p),
		Duration:    durationScore(r.DurationMinutes, p),
		Seasonality: seasonalityScore(text, start),
	}
	f.Type, f.Rules = typeScore(r.RawRecord, text, p, weather)
	f.Raw = f.Base + f.Age + f.Distance + f.Price + f.Type + f.Timing + f.Duration + f.Seasonality
	f.Completeness = Completeness(r)

	final := math.Round(math.Min(MaxScore, float64(f.Raw)*f.Completeness))
	return int(math.Max(0, final)), f
}

// ScoreAll scores r for every profile, looking up the weather for its start
// date in forecast.
func (e *Engine) ScoreAll(r domain.GeoRecord, forecast domain.Forecast, processedAt time.Time) domain.ScoredRecord {
	weather := forecast.For(r.StartDateTime.In(e.loc))
	out := domain.ScoredRecord{GeoRecord: r, ProcessedAt: processedAt}
	for _, p := range domain.Profiles {
		score, _ := e.Score(r, p, weather)
		out.SetScore(p, score)
	}
	return out
}

// Completeness maps the weighted share of known optional fields onto
// [0.7, 1.0].
func Completeness(r domain.GeoRecord) float64 {
	fields := []struct {
		weight  int
		present bool
	}{
		{2, r.HasAgeRange()},
		{2, r.DistanceFromOrigin != nil},
		{1, r.HasPrice()},
		{1, r.DurationMinutes != nil},
		{1, utf8.RuneCountInString(r.Description) > 50},
		{1, r.ImageURL != ""},
	}
	var have, total int
	for _, f := range fields {
		total += f.weight
		if f.present {
			have += f.weight
		}
	}
	return minCompleteness + (1-minCompleteness)*float64(have)/float64(total)
}

func foldedText(r domain.RawRecord) string {
	return similarity.Fold(strings.Join([]string{r.Title, r.Description, r.Category}, " "))
}

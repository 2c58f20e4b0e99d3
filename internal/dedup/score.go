package dedup

import (
	"math"
	"time"

	"github.com/couchcryptid/eventrank/internal/domain"
	"github.com/couchcryptid/eventrank/internal/similarity"
)

// Composite score weights. A weight takes part in the score only when both
// records carry the inputs it needs.
const (
	weightTitle     = 0.4
	weightSameDay   = 0.3
	weightProximity = 0.1
	weightLocation  = 0.2
	weightPrice     = 0.1

	proximityWindow = 2 * time.Hour
)

// Breakdown is the composite duplicate score with its applied components.
type Breakdown struct {
	Title    *float64
	SameDay  *float64
	Close    *float64
	Location *float64
	Price    *float64
	Score    float64
}

// Score returns the composite duplicate score of a and b in [0,1]. It is
// symmetric in its arguments.
func Score(a, b domain.RawRecord) float64 {
	return Explain(a, b).Score
}

// Explain computes the composite duplicate score and reports each component
// that was applied.
func Explain(a, b domain.RawRecord) Breakdown {
	var (
		bd          Breakdown
		sum, weight float64
	)
	apply := func(dst **float64, w, v float64) {
		*dst = &v
		sum += w * v
		weight += w
	}

	if a.Title != "" && b.Title != "" {
		apply(&bd.Title, weightTitle, similarity.Similarity(a.Title, b.Title))
	}

	if !a.StartDateTime.IsZero() && !b.StartDateTime.IsZero() {
		apply(&bd.SameDay, weightSameDay, boolScore(sameDay(a.StartDateTime, b.StartDateTime)))
		gap := a.StartDateTime.Sub(b.StartDateTime).Abs()
		apply(&bd.Close, weightProximity, boolScore(gap <= proximityWindow))
	}

	if la, lb := locationOf(a), locationOf(b); la != "" && lb != "" {
		apply(&bd.Location, weightLocation, similarity.Similarity(la, lb))
	}

	if pa, pb, ok := comparablePrices(a, b); ok {
		apply(&bd.Price, weightPrice, priceSimilarity(pa, pb))
	}

	if weight > 0 {
		bd.Score = sum / weight
	}
	return bd
}

func boolScore(ok bool) float64 {
	if ok {
		return 1
	}
	return 0
}

// sameDay compares calendar dates in the records' shared zone, or in UTC when
// the zones differ, so the result does not depend on argument order.
func sameDay(a, b time.Time) bool {
	if a.Location().String() != b.Location().String() {
		a, b = a.UTC(), b.UTC()
	}
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func locationOf(r domain.RawRecord) string {
	if r.LocationName != "" {
		return r.LocationName
	}
	return r.Address
}

// comparablePrices picks the first price field both records specify, in
// adult, child, family order.
func comparablePrices(a, b domain.RawRecord) (float64, float64, bool) {
	pairs := [][2]*float64{
		{a.AdultPrice, b.AdultPrice},
		{a.ChildPrice, b.ChildPrice},
		{a.FamilyPrice, b.FamilyPrice},
	}
	for _, p := range pairs {
		if p[0] != nil && p[1] != nil {
			return *p[0], *p[1], true
		}
	}
	return 0, 0, false
}

func priceSimilarity(a, b float64) float64 {
	avg := (a + b) / 2
	if avg == 0 {
		return 1
	}
	return math.Max(0, 1-math.Abs(a-b)/avg)
}

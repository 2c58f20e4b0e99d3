package scraper

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func prague(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Prague")
	require.NoError(t, err)
	return loc
}

func TestParseDate(t *testing.T) {
	loc := prague(t)
	tests := []struct {
		in   string
		want time.Time
	}{
		{"So 24. 10. 2026, 10:00", time.Date(2026, 10, 24, 10, 0, 0, 0, loc)},
		{"24.10.2026", time.Date(2026, 10, 24, 0, 0, 0, 0, loc)},
		{"1. 12. 2026 od 16.30 h", time.Date(2026, 12, 1, 16, 30, 0, 0, loc)},
		{"2026-11-07 15:00", time.Date(2026, 11, 7, 15, 0, 0, 0, loc)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDate(tt.in, loc)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}
}

func TestParseDate_Invalid(t *testing.T) {
	loc := prague(t)
	for _, in := range []string{"", "   ", "32. 13. 2026", "brzy", "31. 2. 2026", "29. 2. 2026 10:00", "31. 4. 2026"} {
		_, err := ParseDate(in, loc)
		assert.Error(t, err, in)
	}
}

func TestParseDate_LeapDay(t *testing.T) {
	loc := prague(t)
	got, err := ParseDate("29. 2. 2028", loc)
	require.NoError(t, err)
	assert.True(t, time.Date(2028, 2, 29, 0, 0, 0, 0, loc).Equal(got), "got %s", got)
}

func TestParsePrices(t *testing.T) {
	tests := []struct {
		name              string
		in                string
		adult, child, fam *float64
	}{
		{"czech tiers", "dospělí 150 Kč, děti 80 Kč, rodinné 350 Kč", f(150), f(80), f(350)},
		{"english tiers", "Family ticket 400 / Kids 100 / Adults 200", f(200), f(100), f(400)},
		{"single number", "120 Kč", f(120), nil, nil},
		{"free entry", "Vstup zdarma!", f(0), nil, nil},
		{"free phrase", "Vstup volný", f(0), nil, nil},
		{"free child tier only", "dospělí 150 Kč, děti do 3 let zdarma", f(150), f(0), nil},
		{"thousands separator", "vstupné 1 200 Kč", f(1200), nil, nil},
		{"thousands no-break space", "vstupné 1\u00a0200 Kč", f(1200), nil, nil},
		{"family thousands", "dospělí 450 Kč; rodinné vstupné 1 000 Kč", f(450), nil, f(1000)},
		{"decimal comma", "děti 99,50 Kč", nil, f(99.5), nil},
		{"no price", "", nil, nil, nil},
		{"text only", "na místě", nil, nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adult, child, fam := ParsePrices(tt.in)
			assert.Equal(t, tt.adult, adult, "adult")
			assert.Equal(t, tt.child, child, "child")
			assert.Equal(t, tt.fam, fam, "family")
		})
	}
}

func TestParseAges(t *testing.T) {
	tests := []struct {
		in     string
		lo, hi *int
	}{
		{"3–6 let", n(3), n(6)},
		{"pro děti 6-3 let", n(3), n(6)},
		{"6+", n(6), nil},
		{"od 4 let", n(4), nil},
		{"do 3 let", n(0), n(3)},
		{"od 4 do 8 let", n(4), n(8)},
		{"pro celou rodinu", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			lo, hi := ParseAges(tt.in)
			assert.Equal(t, tt.lo, lo)
			assert.Equal(t, tt.hi, hi)
		})
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		want *int
	}{
		{"90 min", n(90)},
		{"2 h", n(120)},
		{"1,5 hod", n(90)},
		{"1 h 30 min", n(90)},
		{"cca 45 minut", n(45)},
		{"celý den", nil},
		{"", nil},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseDuration(tt.in))
		})
	}
}

func f(v float64) *float64 { return &v }
func n(v int) *int         { return &v }

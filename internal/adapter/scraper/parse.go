package scraper

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/couchcryptid/eventrank/internal/domain"
	"github.com/couchcryptid/eventrank/internal/similarity"
)

var (
	// "24. 10. 2026" or "24.10.2026"
	czechDate = regexp.MustCompile(`\b(\d{1,2})\.\s*(\d{1,2})\.\s*(\d{4})\b`)
	// "10:00" or "10.00 h"
	clockTime = regexp.MustCompile(`\b([01]?\d|2[0-3])[:.]([0-5]\d)\b`)
	// "1 200 Kč" groups thousands with a space or no-break space.
	number    = regexp.MustCompile(`\d{1,3}(?:[ \x{00a0}]\d{3})+(?:[.,]\d+)?|\d+(?:[.,]\d+)?`)
	ageRange  = regexp.MustCompile(`(\d{1,2})\s*(?:-|–|až|to)\s*(\d{1,2})`)
	agePlus   = regexp.MustCompile(`(\d{1,2})\s*\+`)
	ageFrom   = regexp.MustCompile(`\b(?:od|from)\s+(\d{1,2})`)
	ageUpTo   = regexp.MustCompile(`\b(?:do|up to|under)\s+(\d{1,2})`)
	hoursPart = regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*(?:h\b|hod|hours?)`)
	minsPart  = regexp.MustCompile(`(\d+)\s*(?:min)`)
)

var freeWords = []string{"zdarma", "free", "vstup volny", "volny vstup", "bez vstupneho"}

// ParseDate reads a listing date. Czech day-first dates are rewritten to ISO
// order first; everything else goes to dateparse in loc.
func ParseDate(text string, loc *time.Location) (time.Time, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	if m := czechDate.FindStringSubmatch(s); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		hour, minute := 0, 0
		rest := strings.Replace(s, m[0], "", 1)
		if t := clockTime.FindStringSubmatch(rest); t != nil {
			hour, _ = strconv.Atoi(t[1])
			minute, _ = strconv.Atoi(t[2])
		}
		if month < 1 || month > 12 || day < 1 || day > 31 {
			return time.Time{}, fmt.Errorf("invalid date %q", text)
		}
		d := time.Date(year, time.Month(month), day, hour, minute, 0, 0, loc)
		if d.Day() != day {
			return time.Time{}, fmt.Errorf("invalid date %q: no day %d in month %d", text, day, month)
		}
		return d, nil
	}
	t, err := dateparse.ParseIn(s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", text, err)
	}
	return t, nil
}

// ParsePrices extracts adult, child and family prices from a price line such
// as "dospělí 150 Kč, děti 80 Kč, rodinné 350 Kč". A lone number is the adult
// price. A free-entry phrase prices only the tier of its own part, so
// "dospělí 150 Kč, děti zdarma" yields a child price of 0.
func ParsePrices(text string) (adult, child, family *float64) {
	for _, part := range strings.FieldsFunc(text, isPriceSeparator) {
		p := similarity.Fold(part)
		v, ok := partPrice(p, part)
		if !ok {
			continue
		}
		switch {
		case family == nil && matchesStem(p, "rodin", "family"):
			family = domain.Ptr(v)
		case child == nil && matchesStem(p, "det", "dit", "child", "kids", "snizen"):
			child = domain.Ptr(v)
		case adult == nil:
			adult = domain.Ptr(v)
		}
	}
	return adult, child, family
}

var digitSpaces = strings.NewReplacer(" ", "", "\u00a0", "", ",", ".")

// partPrice reads the price of one separated part: 0 for a free-entry phrase,
// otherwise its first number.
func partPrice(folded, part string) (float64, bool) {
	for _, w := range freeWords {
		if similarity.ContainsWord(folded, w) {
			return 0, true
		}
	}
	n := number.FindString(part)
	if n == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(digitSpaces.Replace(n), 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}

func isPriceSeparator(r rune) bool {
	switch r {
	case ',', ';', '/', '|', '\n':
		return true
	}
	return false
}

func matchesStem(folded string, stems ...string) bool {
	for _, s := range stems {
		if similarity.ContainsWord(folded, s+"*") {
			return true
		}
	}
	return false
}

// ParseAges reads an age recommendation: "3–6 let", "od 4 let", "6+",
// "do 3 let".
func ParseAges(text string) (lo, hi *int) {
	s := strings.ToLower(text)
	atoi := func(v string) *int {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil
		}
		return &n
	}
	if m := ageRange.FindStringSubmatch(s); m != nil {
		lo, hi = atoi(m[1]), atoi(m[2])
		if lo != nil && hi != nil && *lo > *hi {
			lo, hi = hi, lo
		}
		return lo, hi
	}
	if m := agePlus.FindStringSubmatch(s); m != nil {
		return atoi(m[1]), nil
	}
	from := ageFrom.FindStringSubmatch(s)
	upTo := ageUpTo.FindStringSubmatch(s)
	switch {
	case from != nil && upTo != nil:
		return atoi(from[1]), atoi(upTo[1])
	case from != nil:
		return atoi(from[1]), nil
	case upTo != nil:
		return domain.Ptr(0), atoi(upTo[1])
	}
	return nil, nil
}

// ParseDuration reads "90 min", "2 h", "1,5 hod" or "1 h 30 min" as minutes.
func ParseDuration(text string) *int {
	s := strings.ToLower(text)
	total := 0.0
	if m := hoursPart.FindStringSubmatch(s); m != nil {
		h, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
		if err == nil {
			total += h * 60
		}
	}
	if m := minsPart.FindStringSubmatch(s); m != nil {
		mins, err := strconv.Atoi(m[1])
		if err == nil {
			total += float64(mins)
		}
	}
	if total <= 0 {
		return nil
	}
	return domain.Ptr(int(total + 0.5))
}

// Package similarity provides the string normalization and edit-distance
// primitives used for duplicate detection and keyword matching.
package similarity

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize lower-cases s, replaces punctuation and symbols with spaces and
// collapses runs of whitespace. Letters keep their diacritics.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := true
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if unicode.IsMark(r) {
			b.WriteRune(r)
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimRight(b.String(), " ")
}

// Fold is Normalize with diacritics removed, so "Divadlo" and "dívadlo"
// compare equal. Used for keyword rules and cache keys.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return Normalize(folded)
}

// Levenshtein returns the rune-level edit distance between a and b.
func Levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

// Similarity returns 1 - distance/maxLen over the normalized forms of a and b,
// in [0,1]. Two strings that normalize to empty are identical (1); one empty
// side gives 0.
func Similarity(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)
	la, lb := len([]rune(na)), len([]rune(nb))
	if la == 0 && lb == 0 {
		return 1
	}
	if la == 0 || lb == 0 {
		return 0
	}
	return 1 - float64(Levenshtein(na, nb))/float64(max(la, lb))
}

// ContainsWord reports whether the folded text contains the folded keyword as
// a whole-word sequence. A trailing '*' on the keyword matches any word that
// starts with it ("divadl*" matches "divadlo" and "divadle").
func ContainsWord(foldedText, foldedKeyword string) bool {
	if stem, ok := strings.CutSuffix(foldedKeyword, "*"); ok {
		if stem == "" {
			return false
		}
		return strings.Contains(" "+foldedText, " "+stem)
	}
	if foldedKeyword == "" {
		return false
	}
	return strings.Contains(" "+foldedText+" ", " "+foldedKeyword+" ")
}

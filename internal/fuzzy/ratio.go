// Package fuzzy provides edit-distance similarity scores on a 0..100 scale.
package fuzzy

import (
	"math"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// Ratio returns the similarity of a and b as an integer in [0, 100].
// Identical strings score 100; two empty strings also score 100.
func Ratio(a, b string) int {
	if a == b {
		return 100
	}
	la := utf8.RuneCountInString(a)
	lb := utf8.RuneCountInString(b)
	longest := max(la, lb)
	if longest == 0 {
		return 100
	}
	dist := levenshtein.ComputeDistance(a, b)
	return int(math.Round(100 * (1 - float64(dist)/float64(longest))))
}

// PartialRatio returns the best Ratio between the shorter string and every
// window of the same length inside the longer string. A query that appears
// verbatim inside the other string scores 100.
func PartialRatio(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) > len(rb) {
		ra, rb = rb, ra
	}
	if len(ra) == 0 {
		if len(rb) == 0 {
			return 100
		}
		return 0
	}

	short := string(ra)
	best := 0
	for i := 0; i+len(ra) <= len(rb); i++ {
		score := Ratio(short, string(rb[i:i+len(ra)]))
		if score > best {
			best = score
			if best == 100 {
				break
			}
		}
	}
	return best
}

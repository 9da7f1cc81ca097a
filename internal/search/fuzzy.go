package search

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	// MinFuzzyTokenLength is the shortest token eligible for fuzzy
	// matching; shorter tokens use exact matching only.
	MinFuzzyTokenLength = 3

	// MaxEditDistance bounds fuzzy matching: insertions, deletions, and
	// substitutions. Transpositions cost two edits.
	MaxEditDistance = 2
)

var diacriticStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// foldText lower-cases and strips combining marks, so "café" and "cafe"
// compare equal at distance 0.
func foldText(s string) string {
	folded, _, err := transform.String(diacriticStripper, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(folded)
}

// FuzzyMatch reports whether candidate is within maxEdits of token after
// diacritic normalization, and the edit distance when it is. Tokens shorter
// than MinFuzzyTokenLength only match exactly.
func FuzzyMatch(token, candidate string, maxEdits int) (bool, int) {
	t := foldText(token)
	c := foldText(candidate)
	if t == c {
		return true, 0
	}
	if len([]rune(t)) < MinFuzzyTokenLength {
		return false, 0
	}
	dist := editDistance(t, c, maxEdits)
	if dist <= maxEdits {
		return true, dist
	}
	return false, 0
}

// editDistance computes Levenshtein distance with a single rolling cost row
// and an early exit: once every cell exceeds max, the result is max+1.
func editDistance(a, b string, max int) int {
	ra, rb := []rune(a), []rune(b)
	costs := make([]int, len(rb)+1)
	for j := range costs {
		costs[j] = j
	}

	for i, ca := range ra {
		last := i
		costs[0] = i + 1
		rowMin := costs[0]

		for j, cb := range rb {
			next := last
			if ca != cb {
				next = 1 + minInt(last, minInt(costs[j], costs[j+1]))
			}
			last = costs[j+1]
			costs[j+1] = next
			if next < rowMin {
				rowMin = next
			}
		}

		if rowMin > max {
			return max + 1
		}
	}
	return costs[len(rb)]
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// fuzzyWordInText reports whether any whitespace-delimited word of text is
// within MaxEditDistance of token.
func fuzzyWordInText(token, text string) (bool, int) {
	best := MaxEditDistance + 1
	for _, w := range strings.Fields(text) {
		if ok, d := FuzzyMatch(token, w, MaxEditDistance); ok && d < best {
			best = d
			if best == 0 {
				break
			}
		}
	}
	return best <= MaxEditDistance, best
}

package search

import (
	"strings"

	"github.com/starford/laguz/internal/models"
)

// Relevance weights. Exact matches always outrank fuzzy matches of the same
// note set; fuzzy contributions are capped so they can never swamp exact
// ones.
const (
	scoreNoteIDExactMatch = 1000.0
	scoreTitleExactMatch  = 2000.0
	scoreTitlePrefixMatch = 500.0
	scoreTitleWordMatch   = 300.0

	tokenExactMatch    = 4.0
	tokenPrefixMatch   = 2.0
	tokenContainsMatch = 1.0
	tokenFuzzyMatch    = 0.5

	titleFactor     = 2.0
	attributeFactor = 0.3

	archivedPenalty = 3.0

	maxFuzzyScorePerToken         = 3.0
	maxFuzzyTokenLengthMultiplier = 3
	maxTotalFuzzyScore            = 200.0
)

// normalizeScoreText lower-cases and drops everything but letters, digits,
// and spaces.
func normalizeScoreText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if r == ' ' || isAlnum(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r > 127
}

// scorer accumulates a relevance score for one note against one query.
type scorer struct {
	query           string
	normalizedQuery string
	tokens          []string
	fuzzyScore      float64
}

func newScorer(query string, tokens []string) *scorer {
	return &scorer{
		query:           strings.ToLower(query),
		normalizedQuery: normalizeScoreText(query),
		tokens:          tokens,
	}
}

// computeScore mirrors the native scorer: note-id match, tiered title
// match, then per-token scoring over the title and the attribute text.
func (sc *scorer) computeScore(n *models.Note) float64 {
	score := 0.0

	if strings.ToLower(n.ID) == sc.query {
		score += scoreNoteIDExactMatch
	}

	normalizedTitle := normalizeScoreText(n.Title)
	switch {
	case normalizedTitle == sc.normalizedQuery:
		score += scoreTitleExactMatch
	case strings.HasPrefix(normalizedTitle, sc.normalizedQuery):
		score += scoreTitlePrefixMatch
	case wordMatch(normalizedTitle, sc.normalizedQuery):
		score += scoreTitleWordMatch
	default:
		score += sc.fuzzyTitleScore(normalizedTitle)
	}

	score += sc.tokenScore(n.Title, titleFactor)
	score += sc.tokenScore(attributeText(n), attributeFactor)

	if n.IsArchived {
		score /= archivedPenalty
	}
	return score
}

func wordMatch(text, query string) bool {
	return strings.Contains(text, " "+query+" ") ||
		strings.HasPrefix(text, query+" ") ||
		strings.HasSuffix(text, " "+query)
}

func (sc *scorer) fuzzyTitleScore(normalizedTitle string) float64 {
	if sc.fuzzyScore >= maxTotalFuzzyScore {
		return 0
	}
	dist := editDistance(normalizedTitle, sc.normalizedQuery, 3)
	maxLen := len(normalizedTitle)
	if len(sc.normalizedQuery) > maxLen {
		maxLen = len(sc.normalizedQuery)
	}
	if maxLen == 0 || len(sc.normalizedQuery) < MinFuzzyTokenLength || dist > 3 {
		return 0
	}
	ratio := float64(dist) / float64(maxLen)
	if ratio > 0.3 {
		return 0
	}
	sim := 1.0 - ratio
	capped := minFloat(300.0*sim*0.7, maxTotalFuzzyScore*0.3)
	sc.fuzzyScore += capped
	return capped
}

func (sc *scorer) tokenScore(text string, factor float64) float64 {
	chunks := strings.Split(normalizeScoreText(text), " ")
	score := 0.0
	for _, chunk := range chunks {
		if chunk == "" {
			continue
		}
		for _, token := range sc.tokens {
			normToken := normalizeScoreText(token)
			if normToken == "" {
				continue
			}
			switch {
			case chunk == normToken:
				score += tokenExactMatch * float64(len(token)) * factor
			case strings.HasPrefix(chunk, normToken):
				score += tokenPrefixMatch * float64(len(token)) * factor
			case strings.Contains(chunk, normToken):
				score += tokenContainsMatch * float64(len(token)) * factor
			default:
				if sc.fuzzyScore >= maxTotalFuzzyScore || len(normToken) < MinFuzzyTokenLength {
					continue
				}
				dist := editDistance(chunk, normToken, 3)
				if dist > 3 {
					continue
				}
				weight := tokenFuzzyMatch * (1.0 - float64(dist)/3.0)
				cappedLen := len(token)
				if cappedLen > maxFuzzyTokenLengthMultiplier {
					cappedLen = maxFuzzyTokenLengthMultiplier
				}
				fuzzy := minFloat(weight*float64(cappedLen)*factor, maxFuzzyScorePerToken)
				score += fuzzy
				sc.fuzzyScore += fuzzy
			}
		}
	}
	return score
}

// attributeText flattens a note's attribute names and values for scoring.
func attributeText(n *models.Note) string {
	var b strings.Builder
	for _, a := range n.Attributes {
		b.WriteString(a.Name)
		b.WriteByte(' ')
		if a.Value != "" {
			b.WriteString(a.Value)
			b.WriteByte(' ')
		}
	}
	return b.String()
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

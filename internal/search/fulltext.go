package search

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/starford/laguz/internal/apperr"
	"github.com/starford/laguz/internal/ftsindex"
	"github.com/starford/laguz/internal/models"
)

// evalFulltext evaluates a full-text predicate. Indexed operators go through
// the trigram driver when it is available; on index-unavailable the engine
// falls back to in-memory matching. Exact/substring results below the
// fallback threshold are supplemented with fuzzy matches, which always score
// below the exact hits.
func (ev *evaluator) evalFulltext(x *FulltextExpr, input map[string]bool) (map[string]bool, error) {
	tokens := lowerTokens(x.Tokens)
	matched := make(map[string]bool)

	switch x.Op {
	case OpContains, OpStartsWith, OpEndsWith, OpEqual:
		if err := ev.indexedMatch(x.Op, tokens, input, matched); err != nil {
			return nil, err
		}
		// Fuzzy fallback: only when the primary pass came up short.
		if len(matched) < fuzzyFallbackMinResults {
			ev.fuzzyFallback(tokens, input, matched)
		}

	case OpFuzzyEqual, OpFuzzyContains:
		for id := range input {
			n := ev.e.graph.Get(id)
			if n == nil {
				continue
			}
			if ev.fuzzyNoteMatch(tokens, n, x.Op == OpFuzzyEqual) {
				matched[id] = true
				ev.addScore(tokens, n)
			}
		}

	case OpRegex:
		re, err := regexp.Compile("(?i)" + strings.Join(x.Tokens, " "))
		if err != nil {
			return nil, apperr.Wrap(apperr.KindQuery, "invalid regex", err)
		}
		for id := range input {
			n := ev.e.graph.Get(id)
			if n == nil {
				continue
			}
			if re.MatchString(n.Title) || (!ev.sc.FastSearch && re.MatchString(ev.noteContent(n))) {
				matched[id] = true
				ev.addScore(tokens, n)
			}
		}

	default:
		return nil, apperr.Newf(apperr.KindQuery, "operator %q not supported for full-text search", x.Op)
	}

	// Protected notes are never in the index; with an active protected
	// session they are matched in process on decrypted content.
	if !ev.sc.FastSearch && ev.e.prot.IsAvailable() {
		if err := ev.protectedMatch(x.Op, tokens, input, matched); err != nil {
			return nil, err
		}
	}

	return matched, nil
}

// indexedMatch runs the driver path, falling back to an in-memory scan when
// the index is unavailable. Fast search never consults note content.
func (ev *evaluator) indexedMatch(op string, tokens []string, input, matched map[string]bool) error {
	useIndex := ev.e.fts != nil && ev.e.fts.Available()

	if useIndex {
		filter := sortedIDs(input)
		opts := ftsindex.Options{TitleOnly: ev.sc.FastSearch}
		var hits []ftsindex.Match
		var err error
		if op == OpEqual {
			hits, err = ev.e.fts.MatchExact(tokens, filter, opts)
		} else {
			hits, err = ev.e.fts.MatchSubstring(tokens, ftsindex.Operator(op), filter, opts)
		}
		switch {
		case err == nil:
			for _, h := range hits {
				if !input[h.NoteID] {
					continue
				}
				matched[h.NoteID] = true
				if n := ev.e.graph.Get(h.NoteID); n != nil {
					ev.addScore(tokens, n)
				}
				if ev.snippets[h.NoteID] == "" {
					ev.snippets[h.NoteID] = snippet(ftsindex.StripTags(h.Content))
				}
			}
			if ev.sc.FastSearch {
				// Titles came from the index; attribute names/values
				// still need the in-memory pass.
				ev.attributeMatch(op, tokens, input, matched)
			}
			return nil
		case isIndexUnavailable(err):
			ev.e.logger.Warn("text index unavailable, falling back to in-memory matching",
				slog.String("error", err.Error()))
		default:
			return err
		}
	}

	// In-memory fallback: title + attributes, plus content unless fast
	// search restricts to title and attributes only.
	for id := range input {
		n := ev.e.graph.Get(id)
		if n == nil {
			continue
		}
		text := n.Title + " " + attributeText(n)
		if !ev.sc.FastSearch && !n.IsProtected {
			text += " " + ev.noteContent(n)
		}
		if textMatchesAll(text, tokens, op) {
			matched[id] = true
			ev.addScore(tokens, n)
		}
	}
	return nil
}

// attributeMatch adds notes whose attribute names/values match all tokens.
func (ev *evaluator) attributeMatch(op string, tokens []string, input, matched map[string]bool) {
	for id := range input {
		if matched[id] {
			continue
		}
		n := ev.e.graph.Get(id)
		if n == nil {
			continue
		}
		if textMatchesAll(attributeText(n), tokens, op) {
			matched[id] = true
			ev.addScore(tokens, n)
		}
	}
}

// fuzzyFallback supplements a thin result set with fuzzy title/attribute
// matches. Exact matches keep their higher scores.
func (ev *evaluator) fuzzyFallback(tokens []string, input, matched map[string]bool) {
	for _, tok := range tokens {
		if len([]rune(tok)) < MinFuzzyTokenLength {
			return
		}
	}
	for id := range input {
		if matched[id] {
			continue
		}
		n := ev.e.graph.Get(id)
		if n == nil {
			continue
		}
		if ev.fuzzyNoteMatch(tokens, n, false) {
			matched[id] = true
			ev.addScore(tokens, n)
		}
	}
}

// fuzzyNoteMatch requires every token to fuzzy-match the note. In exact
// mode a token must match the whole title; otherwise any word of the
// searchable text suffices.
func (ev *evaluator) fuzzyNoteMatch(tokens []string, n *models.Note, exact bool) bool {
	text := n.Title + " " + attributeText(n)
	if !ev.sc.FastSearch && !n.IsProtected {
		text += " " + ev.noteContent(n)
	}
	for _, tok := range tokens {
		if exact {
			if ok, _ := FuzzyMatch(tok, n.Title, MaxEditDistance); ok {
				continue
			}
		}
		if ok, _ := fuzzyWordInText(tok, text); !ok {
			return false
		}
	}
	return true
}

// protectedMatch fetches protected notes, decrypts them, and applies the
// operator semantics in process. Correctness-first, never indexed.
func (ev *evaluator) protectedMatch(op string, tokens []string, input, matched map[string]bool) error {
	notes, err := ev.e.store.ProtectedNotes()
	if err != nil {
		return apperr.Wrap(apperr.KindStorage, "load protected notes", err)
	}
	for _, pn := range notes {
		if !input[pn.NoteID] || matched[pn.NoteID] {
			continue
		}
		content, err := ev.e.prot.Decrypt(pn.Cipher)
		if err != nil {
			ev.e.logger.Warn("protected note decrypt failed", slog.String("note_id", pn.NoteID))
			continue
		}
		text := pn.Title + " " + ftsindex.StripTags(content)
		ok := false
		switch op {
		case OpFuzzyEqual, OpFuzzyContains:
			ok = fuzzyTextMatchesAll(text, tokens)
		case OpRegex:
			re, reErr := regexp.Compile("(?i)" + strings.Join(tokens, " "))
			if reErr != nil {
				return apperr.Wrap(apperr.KindQuery, "invalid regex", reErr)
			}
			ok = re.MatchString(text)
		default:
			ok = textMatchesAll(text, tokens, op)
		}
		if ok {
			matched[pn.NoteID] = true
			if n := ev.e.graph.Get(pn.NoteID); n != nil {
				ev.addScore(tokens, n)
			}
		}
	}
	return nil
}

func (ev *evaluator) addScore(tokens []string, n *models.Note) {
	s := newScorer(strings.Join(tokens, " "), tokens)
	ev.scores[n.ID] += s.computeScore(n)
}

// noteContent lazily loads and caches a note's tag-stripped content.
func (ev *evaluator) noteContent(n *models.Note) string {
	if c, ok := ev.contents[n.ID]; ok {
		return c
	}
	content := ""
	if raw, err := ev.e.store.GetContent(n.ID); err == nil {
		content = ftsindex.StripTags(string(raw))
	}
	ev.contents[n.ID] = content
	return content
}

// textMatchesAll applies a substring-family operator (or whole-word exact
// matching) to every token against the text. Exact tokens may span several
// words; they match as consecutive whole words, same as the indexed path.
func textMatchesAll(text string, tokens []string, op string) bool {
	lower := strings.ToLower(text)
	for _, tok := range tokens {
		switch op {
		case OpEqual:
			if !ftsindex.PhraseInText(tok, lower) {
				return false
			}
		case OpStartsWith:
			if !anyWordHasPrefix(lower, tok) {
				return false
			}
		case OpEndsWith:
			if !anyWordHasSuffix(lower, tok) {
				return false
			}
		default:
			if !strings.Contains(lower, tok) {
				return false
			}
		}
	}
	return true
}

func fuzzyTextMatchesAll(text string, tokens []string) bool {
	for _, tok := range tokens {
		if ok, _ := fuzzyWordInText(tok, text); !ok {
			return false
		}
	}
	return true
}

func anyWordHasPrefix(lowerText, prefix string) bool {
	for _, w := range strings.Fields(lowerText) {
		if strings.HasPrefix(w, prefix) {
			return true
		}
	}
	return false
}

func anyWordHasSuffix(lowerText, suffix string) bool {
	for _, w := range strings.Fields(lowerText) {
		if strings.HasSuffix(w, suffix) {
			return true
		}
	}
	return false
}

const snippetLength = 160

func snippet(content string) string {
	content = strings.Join(strings.Fields(content), " ")
	rs := []rune(content)
	if len(rs) <= snippetLength {
		return content
	}
	return string(rs[:snippetLength]) + "…"
}

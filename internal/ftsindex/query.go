package ftsindex

import (
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/starford/laguz/internal/apperr"
)

var htmlTagRe = regexp.MustCompile(`<[^>]*>`)

// StripTags replaces HTML tags with spaces so word boundaries survive.
func StripTags(s string) string {
	return htmlTagRe.ReplaceAllString(s, " ")
}

// MatchSubstring runs substring/prefix/suffix matching as escaped LIKE
// patterns against the indexed title/content columns. Tokens are
// lower-cased; matching is case-insensitive by design. An empty token list
// returns every note in the filter (or the whole index) directly.
func (s *Service) MatchSubstring(tokens []string, op Operator, filter []string, opts Options) ([]Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.available {
		return nil, apperr.New(apperr.KindIndexUnavailable, "text index not initialized")
	}
	if len(tokens) == 0 {
		return s.allInFilter(filter, opts)
	}
	if err := validateTokens(tokens); err != nil {
		return nil, err
	}

	chunks, err := s.prepareFilter(filter)
	if err != nil {
		return nil, err
	}

	cond, condArgs := substringCondition(tokens, op, opts.TitleOnly)

	// No id filter: one query over the whole index with SQL-side paging.
	if chunks == nil && len(filter) == 0 {
		return s.queryMatches(cond, condArgs, nil, opts.Limit, opts.Offset)
	}
	// Filter skipped (too large for an IN clause): scan the whole index,
	// intersect in process, then page.
	if chunks == nil {
		rows, err := s.queryMatches(cond, condArgs, nil, 0, 0)
		if err != nil {
			return nil, err
		}
		return paginate(intersectFilter(rows, filter), opts.Limit, opts.Offset), nil
	}

	return s.runChunked(chunks, opts, func(chunk []string, limit, offset int) ([]Match, error) {
		return s.queryMatches(cond, condArgs, chunk, limit, offset)
	})
}

// MatchExact runs the exact-phrase operator via the index's native MATCH
// capability, then post-filters by whole-word occurrence: trigram indexes
// match "test1234" for the query "test123" because they share trigrams.
// Tokens shorter than the minimum n-gram length cannot use the MATCH path
// and fail over to a non-indexed LIKE comparison.
func (s *Service) MatchExact(tokens []string, filter []string, opts Options) ([]Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.available {
		return nil, apperr.New(apperr.KindIndexUnavailable, "text index not initialized")
	}
	if len(tokens) == 0 {
		return s.allInFilter(filter, opts)
	}
	if err := validateTokens(tokens); err != nil {
		return nil, err
	}

	chunks, err := s.prepareFilter(filter)
	if err != nil {
		return nil, err
	}

	var cond string
	var condArgs []any
	if shortestToken(tokens) < minTrigramTokenLength {
		// Failover path: the trigram index cannot serve this phrase.
		s.logger.Debug("exact match fell over to non-indexed comparison",
			slog.Int("shortest_token", shortestToken(tokens)))
		cond, condArgs = substringCondition(tokens, OpContains, opts.TitleOnly)
	} else {
		cond = "notes_fts MATCH ?"
		condArgs = []any{matchQuery(tokens)}
	}

	phrase := strings.ToLower(strings.Join(tokens, " "))

	// The post-filter can discard rows, so SQL-side limits would
	// under-fill the result. Fetch raw rows per chunk and paginate in
	// process: offset applies once, limit decrements as rows accumulate.
	fetch := func(chunk []string) ([]Match, error) {
		raw, err := s.queryMatches(cond, condArgs, chunk, 0, 0)
		if err != nil {
			return nil, err
		}
		out := raw[:0]
		for _, m := range raw {
			if PhraseInText(phrase, m.Title) || PhraseInText(phrase, StripTags(m.Content)) {
				out = append(out, m)
			}
		}
		return out, nil
	}

	if chunks == nil {
		rows, err := fetch(nil)
		if err != nil {
			return nil, err
		}
		if len(filter) > 0 {
			rows = intersectFilter(rows, filter)
		}
		return paginate(rows, opts.Limit, opts.Offset), nil
	}

	var out []Match
	remaining := opts.Limit
	offset := opts.Offset
	for i, chunk := range chunks {
		if opts.Limit > 0 && remaining <= 0 {
			break
		}
		rows, err := fetch(chunk)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			rows = paginate(rows, 0, offset)
		}
		if opts.Limit > 0 && len(rows) > remaining {
			rows = rows[:remaining]
		}
		out = append(out, rows...)
		if opts.Limit > 0 {
			remaining -= len(rows)
		}
	}
	return out, nil
}

// allInFilter serves empty-token queries: every note in the filter (or the
// whole index) without running the normal search path.
func (s *Service) allInFilter(filter []string, opts Options) ([]Match, error) {
	if len(filter) == 0 {
		return s.queryMatches("1=1", nil, nil, opts.Limit, opts.Offset)
	}
	chunks, err := s.prepareFilter(filter)
	if err != nil {
		return nil, err
	}
	if chunks == nil {
		rows, err := s.queryMatches("1=1", nil, nil, 0, 0)
		if err != nil {
			return nil, err
		}
		return paginate(intersectFilter(rows, filter), opts.Limit, opts.Offset), nil
	}
	return s.runChunked(chunks, opts, func(chunk []string, limit, offset int) ([]Match, error) {
		return s.queryMatches("1=1", nil, chunk, limit, offset)
	})
}

// prepareFilter removes protected notes from the id filter (they are never
// in the index), then decides the execution strategy: nil means "no IN
// clause" (either no filter, or the set is large enough that scanning the
// whole index is cheaper); otherwise the ids come back chunked below the
// parameter ceiling.
func (s *Service) prepareFilter(filter []string) ([][]string, error) {
	if len(filter) == 0 {
		return nil, nil
	}
	protected, err := s.protectedIDs()
	if err != nil {
		return nil, err
	}
	ids := filter
	if len(protected) > 0 {
		ids = make([]string, 0, len(filter))
		for _, id := range filter {
			if !protected[id] {
				ids = append(ids, id)
			}
		}
	}
	if len(ids) > skipFilterThreshold {
		return nil, nil
	}
	var chunks [][]string
	for len(ids) > 0 {
		n := len(ids)
		if n > chunkSize {
			n = chunkSize
		}
		chunks = append(chunks, ids[:n])
		ids = ids[n:]
	}
	// Every id in the filter was protected: nothing can match. A non-nil
	// empty chunk list makes the chunked runners return no rows instead of
	// falling back to a whole-index scan.
	if chunks == nil {
		chunks = [][]string{}
	}
	return chunks, nil
}

func (s *Service) protectedIDs() (map[string]bool, error) {
	rows, err := s.conn.Query(`SELECT note_id FROM notes WHERE is_protected = 1 AND is_deleted = 0`)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStorage, "load protected ids", err)
	}
	defer rows.Close()
	out := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, apperr.Wrap(apperr.KindStorage, "scan protected id", err)
		}
		out[id] = true
	}
	return out, rows.Err()
}

// runChunked executes one query per id chunk sequentially and combines the
// results: offset applies to the first chunk only, limit is decremented
// across chunks as results accumulate.
func (s *Service) runChunked(chunks [][]string, opts Options,
	query func(chunk []string, limit, offset int) ([]Match, error)) ([]Match, error) {

	var out []Match
	remaining := opts.Limit
	for i, chunk := range chunks {
		if opts.Limit > 0 && remaining <= 0 {
			break
		}
		offset := 0
		if i == 0 {
			offset = opts.Offset
		}
		limit := 0
		if opts.Limit > 0 {
			limit = remaining
		}
		rows, err := query(chunk, limit, offset)
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
		if opts.Limit > 0 {
			remaining -= len(rows)
		}
	}
	return out, nil
}

func (s *Service) queryMatches(cond string, condArgs []any, chunk []string, limit, offset int) ([]Match, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT note_id, title, content FROM notes_fts WHERE (`)
	sb.WriteString(cond)
	sb.WriteString(`)`)
	args := append([]any{}, condArgs...)
	if len(chunk) > 0 {
		sb.WriteString(` AND note_id IN (` + placeholders(len(chunk)) + `)`)
		for _, id := range chunk {
			args = append(args, id)
		}
	}
	sqlLimit := -1
	if limit > 0 {
		sqlLimit = limit
	}
	sb.WriteString(` LIMIT ? OFFSET ?`)
	args = append(args, sqlLimit, offset)

	rows, err := s.conn.Query(sb.String(), args...)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStorage, "index query failed", err)
	}
	defer rows.Close()

	var out []Match
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.NoteID, &m.Title, &m.Content); err != nil {
			return nil, apperr.Wrap(apperr.KindStorage, "scan index row", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// substringCondition builds the LIKE condition for all tokens (AND-joined)
// with wildcard metacharacters escaped so literal %/_ in search text are not
// treated as wildcards. The escape character is declared explicitly.
func substringCondition(tokens []string, op Operator, titleOnly bool) (string, []any) {
	var conds []string
	var args []any
	for _, tok := range tokens {
		pattern := likePattern(strings.ToLower(tok), op)
		if titleOnly {
			conds = append(conds, `lower(title) LIKE ? ESCAPE '\'`)
			args = append(args, pattern)
		} else {
			conds = append(conds, `(lower(title) LIKE ? ESCAPE '\' OR lower(content) LIKE ? ESCAPE '\')`)
			args = append(args, pattern, pattern)
		}
	}
	return strings.Join(conds, " AND "), args
}

func likePattern(token string, op Operator) string {
	escaped := escapeLike(token)
	switch op {
	case OpStartsWith:
		return escaped + "%"
	case OpEndsWith:
		return "%" + escaped
	default:
		return "%" + escaped + "%"
	}
}

// escapeLike escapes the LIKE metacharacters and the escape character itself.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

// matchQuery builds an FTS phrase query: tokens quoted and joined into one
// phrase, embedded quotes doubled.
func matchQuery(tokens []string) string {
	quoted := make([]string, len(tokens))
	for i, tok := range tokens {
		quoted[i] = `"` + strings.ReplaceAll(strings.ToLower(tok), `"`, `""`) + `"`
	}
	return strings.Join(quoted, " + ")
}

// PhraseInText reports whether the phrase occurs as one or more complete,
// whitespace-delimited words in text (sliding window for multi-word phrases).
// The phrase must already be lower-cased.
func PhraseInText(phrase, text string) bool {
	want := strings.Fields(phrase)
	if len(want) == 0 {
		return false
	}
	words := strings.Fields(strings.ToLower(text))
	for i := 0; i+len(want) <= len(words); i++ {
		ok := true
		for j := range want {
			if words[i+j] != want[j] {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

func validateTokens(tokens []string) error {
	for _, tok := range tokens {
		if len(tok) > maxTokenLength {
			// Truncated diagnostic keeps log size bounded.
			return apperr.Newf(apperr.KindQuery, "token too long (%d chars): %q…",
				len(tok), tok[:32])
		}
	}
	return nil
}

// shortestToken counts runes, not bytes: a two-character multibyte token is
// still below the trigram minimum.
func shortestToken(tokens []string) int {
	min := int(^uint(0) >> 1)
	for _, tok := range tokens {
		if n := utf8.RuneCountInString(tok); n < min {
			min = n
		}
	}
	return min
}

func intersectFilter(rows []Match, filter []string) []Match {
	if len(filter) == 0 {
		return rows
	}
	allowed := make(map[string]bool, len(filter))
	for _, id := range filter {
		allowed[id] = true
	}
	out := rows[:0]
	for _, m := range rows {
		if allowed[m.NoteID] {
			out = append(out, m)
		}
	}
	return out
}

func paginate(rows []Match, limit, offset int) []Match {
	if offset > 0 {
		if offset >= len(rows) {
			return nil
		}
		rows = rows[offset:]
	}
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

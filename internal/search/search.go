package search

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/starford/laguz/internal/ftsindex"
	"github.com/starford/laguz/internal/graph"
	"github.com/starford/laguz/internal/protected"
	"github.com/starford/laguz/internal/store"
)

// Engine evaluates queries against the note graph and the text index.
// Query evaluation is synchronous: parsing, predicate evaluation and index
// queries run to completion within one call.
type Engine struct {
	graph  *graph.NoteGraph
	store  *store.Store
	fts    *ftsindex.Service
	prot   protected.Session
	logger *slog.Logger
}

// NewEngine wires the engine to its collaborators. fts may be in the
// unavailable state; the engine then falls back to in-memory matching.
func NewEngine(g *graph.NoteGraph, st *store.Store, fts *ftsindex.Service,
	prot protected.Session, logger *slog.Logger) *Engine {
	if prot == nil {
		prot = protected.Unavailable()
	}
	return &Engine{graph: g, store: st, fts: fts, prot: prot, logger: logger}
}

// Search parses and evaluates a query, then ranks, orders, and paginates
// the hits. limit/offset always apply after full ordering so higher-ranked
// notes are never skipped.
func (e *Engine) Search(query string, sc *Context) ([]Result, error) {
	if sc == nil {
		sc = &Context{}
	}
	q, err := Parse(query)
	if err != nil {
		return nil, err
	}

	candidates := e.baseCandidates(sc)
	ev := &evaluator{
		e:        e,
		sc:       sc,
		scores:   make(map[string]float64),
		snippets: make(map[string]string),
		contents: make(map[string]string),
	}

	set := candidates
	if q.Expr != nil {
		set, err = ev.eval(q.Expr, candidates)
		if err != nil {
			return nil, err
		}
	}

	results := make([]Result, 0, len(set))
	for id := range set {
		results = append(results, Result{NoteID: id, Score: ev.scores[id], Snippet: ev.snippets[id]})
	}

	e.order(results, q.OrderBy)

	if sc.Debug {
		e.logger.Debug("search evaluated",
			slog.String("query", query),
			slog.Int("candidates", len(candidates)),
			slog.Int("hits", len(results)))
	}

	results = page(results, pickLimit(q.Limit, sc.Limit), sc.Offset)
	return results, nil
}

// baseCandidates builds the per-query candidate set: archived notes are
// excluded unless requested, and an ancestor restriction narrows to its
// subtree.
func (e *Engine) baseCandidates(sc *Context) map[string]bool {
	var subtree map[string]bool
	if sc.AncestorNoteID != "" {
		subtree = e.graph.Subtree(sc.AncestorNoteID)
	}
	out := make(map[string]bool)
	for _, n := range e.graph.All() {
		if n.IsDeleted {
			continue
		}
		if n.IsArchived && !sc.IncludeArchivedNotes {
			continue
		}
		if subtree != nil && !subtree[n.ID] {
			continue
		}
		out[n.ID] = true
	}
	return out
}

func pickLimit(queryLimit, ctxLimit int) int {
	if queryLimit > 0 {
		return queryLimit
	}
	return ctxLimit
}

func page(results []Result, limit, offset int) []Result {
	if offset > 0 {
		if offset >= len(results) {
			return nil
		}
		results = results[offset:]
	}
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}

// sortedIDs returns a set's keys in deterministic order for chunked index
// queries.
func sortedIDs(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func lowerTokens(tokens []string) []string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = strings.ToLower(t)
	}
	return out
}

// Package ftsindex drives the trigram-indexed text store backing full-text
// search. Substring/prefix/suffix operators run as escaped LIKE patterns
// over the indexed columns; the exact-phrase operator uses the native MATCH
// capability plus a word-boundary post-filter, because trigram indexes do
// not respect word boundaries.
package ftsindex

import (
	"database/sql"
	"log/slog"
	"sync"

	"github.com/starford/laguz/internal/store"
)

const (
	// SQLite's historic host-parameter ceiling is 999; chunks stay below
	// it to leave room for the fixed parameters of each statement.
	chunkSize = 900

	// Filters larger than this skip the SQL IN clause entirely and
	// intersect in process instead.
	skipFilterThreshold = 2000

	// Trigram tokenizers cannot index tokens shorter than this.
	minTrigramTokenLength = 3

	// Tokens beyond this length are rejected with a truncated diagnostic.
	maxTokenLength = 300

	// SyncMissingNotes triggers an index optimize once at least this many
	// rows were inserted.
	optimizeThreshold = 64
)

// Service is the explicit handle to the text index. Availability is held on
// the service (not a module-level flag) and can be re-checked after schema
// changes via Recheck.
type Service struct {
	conn   *sql.DB
	store  *store.Store
	logger *slog.Logger

	// mu serializes maintenance (writer) against queries (readers).
	mu        sync.RWMutex
	available bool
	optimized bool
}

const ftsSchemaSQL = `
CREATE VIRTUAL TABLE IF NOT EXISTS notes_fts USING fts5(
	note_id UNINDEXED,
	title,
	content,
	tokenize = 'trigram'
);
`

// New attaches the text index schema to the shared database connection.
// If the trigram tokenizer is unavailable the service comes up in the
// unavailable state rather than failing: callers fall back to the
// in-memory evaluator.
func New(conn *sql.DB, st *store.Store, logger *slog.Logger) *Service {
	s := &Service{conn: conn, store: st, logger: logger}
	if _, err := conn.Exec(ftsSchemaSQL); err != nil {
		logger.Warn("text index unavailable", slog.String("error", err.Error()))
		return s
	}
	s.available = true
	return s
}

// Available reports whether the text index can serve queries.
func (s *Service) Available() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.available
}

// Recheck re-probes the schema for the index table. Called after
// schema-change events instead of caching availability forever.
func (s *Service) Recheck() {
	var name string
	err := s.conn.QueryRow(
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'notes_fts'`).Scan(&name)
	s.mu.Lock()
	s.available = err == nil
	s.mu.Unlock()
}

// Match is one raw hit from the index, before ranking.
type Match struct {
	NoteID  string
	Title   string
	Content string
}

// Options configures a single index query.
type Options struct {
	// Limit bounds the number of returned rows; 0 means unlimited.
	Limit int
	// Offset skips leading rows. With a chunked id filter it applies to
	// the first chunk only.
	Offset int
	// TitleOnly restricts matching to the title column (fast search).
	TitleOnly bool
}

// Operator selects the text-matching semantics for substring queries.
type Operator string

const (
	OpContains   Operator = "*=*"
	OpStartsWith Operator = "=*"
	OpEndsWith   Operator = "*="
)

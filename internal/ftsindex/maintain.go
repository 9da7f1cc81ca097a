package ftsindex

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/starford/laguz/internal/apperr"
)

// UpdateIndex upserts one (noteId, title, content) entry. The upsert is a
// delete-then-insert inside a transaction, so it is idempotent.
func (s *Service) UpdateIndex(ctx context.Context, noteID, title, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.available {
		return apperr.New(apperr.KindIndexUnavailable, "text index not initialized")
	}
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Wrap(apperr.KindMaintenance, "begin tx", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if _, err := tx.Exec(`DELETE FROM notes_fts WHERE note_id = ?`, noteID); err != nil {
		return apperr.Wrap(apperr.KindMaintenance, "delete stale entry", err)
	}
	if _, err := tx.Exec(`INSERT INTO notes_fts (note_id, title, content) VALUES (?, ?, ?)`,
		noteID, title, content); err != nil {
		return apperr.Wrap(apperr.KindMaintenance, "insert entry", err)
	}
	if err := tx.Commit(); err != nil {
		return apperr.Wrap(apperr.KindMaintenance, "commit", err)
	}
	s.optimized = false
	return nil
}

// RemoveFromIndex deletes a note's entry. Removing an absent entry is a no-op.
func (s *Service) RemoveFromIndex(ctx context.Context, noteID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.available {
		return apperr.New(apperr.KindIndexUnavailable, "text index not initialized")
	}
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM notes_fts WHERE note_id = ?`, noteID); err != nil {
		return apperr.Wrap(apperr.KindMaintenance, "delete entry", err)
	}
	return nil
}

// SyncMissingNotes bulk-inserts every indexable, non-deleted, non-protected
// note currently absent from the index, inside one transaction. When
// noteIDs is non-empty the sync is restricted to those ids. An optimize
// pass runs once a nontrivial number of rows were inserted. Returns the
// number of rows inserted.
func (s *Service) SyncMissingNotes(ctx context.Context, noteIDs []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.available {
		return 0, apperr.New(apperr.KindIndexUnavailable, "text index not initialized")
	}

	restrict := make(map[string]bool, len(noteIDs))
	for _, id := range noteIDs {
		restrict[id] = true
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindMaintenance, "begin tx", err)
	}
	defer tx.Rollback() //nolint:errcheck

	present, err := indexedIDs(tx)
	if err != nil {
		return 0, err
	}

	indexable, err := s.store.IndexableNotes()
	if err != nil {
		return 0, apperr.Wrap(apperr.KindMaintenance, "load indexable notes", err)
	}

	inserted := 0
	for _, n := range indexable {
		if present[n.NoteID] {
			continue
		}
		if len(restrict) > 0 && !restrict[n.NoteID] {
			continue
		}
		if _, err := tx.Exec(`INSERT INTO notes_fts (note_id, title, content) VALUES (?, ?, ?)`,
			n.NoteID, n.Title, n.Content); err != nil {
			return 0, apperr.Wrap(apperr.KindMaintenance, "insert missing note", err)
		}
		inserted++
	}
	if err := tx.Commit(); err != nil {
		return 0, apperr.Wrap(apperr.KindMaintenance, "commit", err)
	}

	if inserted > 0 {
		s.optimized = false
	}
	if inserted >= optimizeThreshold {
		s.optimizeLocked()
	}
	if inserted > 0 {
		s.logger.Info("synced missing notes into text index", slog.Int("inserted", inserted))
	}
	return inserted, nil
}

// RebuildIndex clears and repopulates the index from the note store in one
// transaction. All-or-nothing: failure rolls back to the pre-rebuild state.
func (s *Service) RebuildIndex(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.available {
		return apperr.New(apperr.KindIndexUnavailable, "text index not initialized")
	}

	indexable, err := s.store.IndexableNotes()
	if err != nil {
		return apperr.Wrap(apperr.KindMaintenance, "load indexable notes", err)
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Wrap(apperr.KindMaintenance, "begin tx", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(`DELETE FROM notes_fts`); err != nil {
		return apperr.Wrap(apperr.KindMaintenance, "clear index", err)
	}
	for _, n := range indexable {
		if _, err := tx.Exec(`INSERT INTO notes_fts (note_id, title, content) VALUES (?, ?, ?)`,
			n.NoteID, n.Title, n.Content); err != nil {
			return apperr.Wrap(apperr.KindMaintenance, "repopulate index", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return apperr.Wrap(apperr.KindMaintenance, "commit rebuild", err)
	}

	s.optimizeLocked()
	s.logger.Info("text index rebuilt", slog.Int("documents", len(indexable)))
	return nil
}

func (s *Service) optimizeLocked() {
	if _, err := s.conn.Exec(`INSERT INTO notes_fts(notes_fts) VALUES('optimize')`); err != nil {
		s.logger.Warn("index optimize failed", slog.String("error", err.Error()))
		return
	}
	s.optimized = true
}

// Stats reports document count and an index-size estimate for monitoring.
type Stats struct {
	TotalDocuments  int   `json:"totalDocuments"`
	IndexSize       int64 `json:"indexSize"`
	IsOptimized     bool  `json:"isOptimized"`
	DBStatAvailable bool  `json:"dbstatAvailable"`
}

// GetStats returns index statistics. Precise sizing uses the dbstat virtual
// table; when that is unavailable the size falls back to
// avgRowSize * documentCount * 1.5 and DBStatAvailable reports false, never
// a silently wrong "precise" number.
func (s *Service) GetStats() (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.available {
		return nil, apperr.New(apperr.KindIndexUnavailable, "text index not initialized")
	}

	st := &Stats{IsOptimized: s.optimized}
	if err := s.conn.QueryRow(`SELECT COUNT(*) FROM notes_fts`).Scan(&st.TotalDocuments); err != nil {
		return nil, apperr.Wrap(apperr.KindStorage, "count documents", err)
	}

	var size sql.NullInt64
	err := s.conn.QueryRow(
		`SELECT SUM(pgsize) FROM dbstat WHERE name LIKE 'notes_fts%'`).Scan(&size)
	if err == nil && size.Valid {
		st.IndexSize = size.Int64
		st.DBStatAvailable = true
		return st, nil
	}

	s.logger.Debug("dbstat unavailable, estimating index size")
	var avg sql.NullFloat64
	if err := s.conn.QueryRow(
		`SELECT AVG(LENGTH(title) + LENGTH(content)) FROM notes_fts`).Scan(&avg); err != nil {
		return nil, apperr.Wrap(apperr.KindStorage, "estimate row size", err)
	}
	const overheadFactor = 1.5
	if avg.Valid {
		st.IndexSize = int64(avg.Float64 * float64(st.TotalDocuments) * overheadFactor)
	}
	return st, nil
}

func indexedIDs(tx *sql.Tx) (map[string]bool, error) {
	rows, err := tx.Query(`SELECT note_id FROM notes_fts`)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindMaintenance, "list indexed ids", err)
	}
	defer rows.Close()
	out := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, apperr.Wrap(apperr.KindMaintenance, "scan indexed id", err)
		}
		out[id] = true
	}
	return out, rows.Err()
}

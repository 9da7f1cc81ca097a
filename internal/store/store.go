// Package store provides the SQLite-backed relational note store.
//
// The same database file also hosts the trigram text index (see
// internal/ftsindex); both layers share one *sql.DB.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/laguz/internal/apperr"
	"github.com/starford/laguz/internal/models"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS notes (
	note_id       TEXT PRIMARY KEY,
	title         TEXT NOT NULL DEFAULT '',
	type          TEXT NOT NULL DEFAULT 'text',
	is_protected  INTEGER NOT NULL DEFAULT 0,
	is_archived   INTEGER NOT NULL DEFAULT 0,
	is_deleted    INTEGER NOT NULL DEFAULT 0,
	content       BLOB NOT NULL DEFAULT '',
	date_created  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	date_modified DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS attributes (
	attribute_id TEXT PRIMARY KEY,
	note_id      TEXT NOT NULL,
	type         TEXT NOT NULL CHECK (type IN ('label', 'relation')),
	name         TEXT NOT NULL,
	value        TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS branches (
	note_id        TEXT NOT NULL,
	parent_note_id TEXT NOT NULL,
	UNIQUE(note_id, parent_note_id)
);

CREATE INDEX IF NOT EXISTS idx_attributes_note ON attributes(note_id);
CREATE INDEX IF NOT EXISTS idx_attributes_name ON attributes(name);
CREATE INDEX IF NOT EXISTS idx_branches_parent ON branches(parent_note_id);
`

// Store wraps a sql.DB with note-store operations.
type Store struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*Store, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &Store{conn: conn}, nil
}

// DB exposes the underlying connection so the text index can share it.
func (s *Store) DB() *sql.DB { return s.conn }

// Close closes the underlying database connection.
func (s *Store) Close() error { return s.conn.Close() }

// CreateNote inserts a note row with its content. Nil content is stored as
// an empty blob; the column is NOT NULL.
func (s *Store) CreateNote(n *models.Note, content []byte) error {
	if content == nil {
		content = []byte{}
	}
	now := time.Now().UTC()
	if n.DateCreated.IsZero() {
		n.DateCreated = now
	}
	n.DateModified = now
	_, err := s.conn.Exec(`
		INSERT INTO notes (note_id, title, type, is_protected, is_archived, is_deleted, content, date_created, date_modified)
		VALUES (?, ?, ?, ?, ?, 0, ?, ?, ?)
	`, n.ID, n.Title, string(n.Type), n.IsProtected, n.IsArchived, content, n.DateCreated, n.DateModified)
	if err != nil {
		return fmt.Errorf("store: create note: %w", err)
	}
	return nil
}

// UpdateNote replaces a note's title and content and bumps date_modified.
func (s *Store) UpdateNote(noteID, title string, content []byte) error {
	if content == nil {
		content = []byte{}
	}
	res, err := s.conn.Exec(`
		UPDATE notes SET title = ?, content = ?, date_modified = ?
		WHERE note_id = ? AND is_deleted = 0
	`, title, content, time.Now().UTC(), noteID)
	if err != nil {
		return fmt.Errorf("store: update note: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// DeleteNote soft-deletes a note and removes its attributes and branches.
func (s *Store) DeleteNote(noteID string) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	res, err := tx.Exec(`UPDATE notes SET is_deleted = 1, date_modified = ? WHERE note_id = ?`,
		time.Now().UTC(), noteID)
	if err != nil {
		return fmt.Errorf("store: delete note: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return apperr.ErrNotFound
	}
	_, _ = tx.Exec(`DELETE FROM attributes WHERE note_id = ?`, noteID)
	_, _ = tx.Exec(`DELETE FROM branches WHERE note_id = ?`, noteID)

	return tx.Commit()
}

// UpsertAttribute inserts or replaces an attribute row.
func (s *Store) UpsertAttribute(a *models.Attribute) error {
	_, err := s.conn.Exec(`
		INSERT INTO attributes (attribute_id, note_id, type, name, value)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(attribute_id) DO UPDATE SET
			type  = excluded.type,
			name  = excluded.name,
			value = excluded.value
	`, a.ID, a.NoteID, a.Type, a.Name, a.Value)
	if err != nil {
		return fmt.Errorf("store: upsert attribute: %w", err)
	}
	return nil
}

// DeleteAttribute removes an attribute row.
func (s *Store) DeleteAttribute(attributeID string) error {
	_, err := s.conn.Exec(`DELETE FROM attributes WHERE attribute_id = ?`, attributeID)
	if err != nil {
		return fmt.Errorf("store: delete attribute: %w", err)
	}
	return nil
}

// SetParent records a parent-child ownership edge. Multiple parents are
// allowed (cloned notes).
func (s *Store) SetParent(noteID, parentID string) error {
	_, err := s.conn.Exec(`INSERT OR IGNORE INTO branches (note_id, parent_note_id) VALUES (?, ?)`,
		noteID, parentID)
	if err != nil {
		return fmt.Errorf("store: set parent: %w", err)
	}
	return nil
}

// GetNote loads a single note with its attributes and parents.
func (s *Store) GetNote(noteID string) (*models.Note, error) {
	n := &models.Note{}
	var typ string
	err := s.conn.QueryRow(`
		SELECT note_id, title, type, is_protected, is_archived, is_deleted, date_created, date_modified
		FROM notes WHERE note_id = ?
	`, noteID).Scan(&n.ID, &n.Title, &typ, &n.IsProtected, &n.IsArchived, &n.IsDeleted,
		&n.DateCreated, &n.DateModified)
	if err == sql.ErrNoRows {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get note: %w", err)
	}
	n.Type = models.NoteType(typ)
	if err := s.loadAttributes(n); err != nil {
		return nil, err
	}
	if err := s.loadParents(n); err != nil {
		return nil, err
	}
	return n, nil
}

// GetContent returns the raw stored content of a note. For protected notes
// this is ciphertext; callers go through the protected session to read it.
func (s *Store) GetContent(noteID string) ([]byte, error) {
	var content []byte
	err := s.conn.QueryRow(`SELECT content FROM notes WHERE note_id = ? AND is_deleted = 0`, noteID).
		Scan(&content)
	if err == sql.ErrNoRows {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get content: %w", err)
	}
	return content, nil
}

// AllNotes loads every non-deleted note with attributes and parents.
// Used to rebuild the in-memory graph at startup.
func (s *Store) AllNotes() ([]*models.Note, error) {
	rows, err := s.conn.Query(`
		SELECT note_id, title, type, is_protected, is_archived, date_created, date_modified
		FROM notes WHERE is_deleted = 0
	`)
	if err != nil {
		return nil, fmt.Errorf("store: all notes: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]*models.Note)
	var out []*models.Note
	for rows.Next() {
		n := &models.Note{}
		var typ string
		if err := rows.Scan(&n.ID, &n.Title, &typ, &n.IsProtected, &n.IsArchived,
			&n.DateCreated, &n.DateModified); err != nil {
			return nil, err
		}
		n.Type = models.NoteType(typ)
		byID[n.ID] = n
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	attrRows, err := s.conn.Query(`SELECT attribute_id, note_id, type, name, value FROM attributes`)
	if err != nil {
		return nil, fmt.Errorf("store: all attributes: %w", err)
	}
	defer attrRows.Close()
	for attrRows.Next() {
		var a models.Attribute
		if err := attrRows.Scan(&a.ID, &a.NoteID, &a.Type, &a.Name, &a.Value); err != nil {
			return nil, err
		}
		if n, ok := byID[a.NoteID]; ok {
			n.Attributes = append(n.Attributes, a)
		}
	}
	if err := attrRows.Err(); err != nil {
		return nil, err
	}

	branchRows, err := s.conn.Query(`SELECT note_id, parent_note_id FROM branches`)
	if err != nil {
		return nil, fmt.Errorf("store: all branches: %w", err)
	}
	defer branchRows.Close()
	for branchRows.Next() {
		var noteID, parentID string
		if err := branchRows.Scan(&noteID, &parentID); err != nil {
			return nil, err
		}
		if n, ok := byID[noteID]; ok {
			n.ParentIDs = append(n.ParentIDs, parentID)
		}
	}
	return out, branchRows.Err()
}

// IndexableNotes returns (noteId, title, content) for every note that
// belongs in the text index.
func (s *Store) IndexableNotes() ([]IndexableNote, error) {
	rows, err := s.conn.Query(`
		SELECT note_id, title, content FROM notes
		WHERE is_deleted = 0 AND is_protected = 0 AND type IN ('text', 'code', 'book')
	`)
	if err != nil {
		return nil, fmt.Errorf("store: indexable notes: %w", err)
	}
	defer rows.Close()

	var out []IndexableNote
	for rows.Next() {
		var n IndexableNote
		var content []byte
		if err := rows.Scan(&n.NoteID, &n.Title, &content); err != nil {
			return nil, err
		}
		n.Content = string(content)
		out = append(out, n)
	}
	return out, rows.Err()
}

// ProtectedNotes returns every non-deleted protected note with its
// ciphertext content. The protected search path decrypts these in process.
func (s *Store) ProtectedNotes() ([]ProtectedNote, error) {
	rows, err := s.conn.Query(`
		SELECT note_id, title, content FROM notes
		WHERE is_deleted = 0 AND is_protected = 1
	`)
	if err != nil {
		return nil, fmt.Errorf("store: protected notes: %w", err)
	}
	defer rows.Close()

	var out []ProtectedNote
	for rows.Next() {
		var n ProtectedNote
		if err := rows.Scan(&n.NoteID, &n.Title, &n.Cipher); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *Store) loadAttributes(n *models.Note) error {
	rows, err := s.conn.Query(`SELECT attribute_id, note_id, type, name, value FROM attributes WHERE note_id = ?`, n.ID)
	if err != nil {
		return fmt.Errorf("store: load attributes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var a models.Attribute
		if err := rows.Scan(&a.ID, &a.NoteID, &a.Type, &a.Name, &a.Value); err != nil {
			return err
		}
		n.Attributes = append(n.Attributes, a)
	}
	return rows.Err()
}

func (s *Store) loadParents(n *models.Note) error {
	rows, err := s.conn.Query(`SELECT parent_note_id FROM branches WHERE note_id = ?`, n.ID)
	if err != nil {
		return fmt.Errorf("store: load parents: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return err
		}
		n.ParentIDs = append(n.ParentIDs, p)
	}
	return rows.Err()
}

// IndexableNote is a (noteId, title, content) tuple destined for the text index.
type IndexableNote struct {
	NoteID  string
	Title   string
	Content string
}

// ProtectedNote carries a protected note's ciphertext for the in-process
// protected search path.
type ProtectedNote struct {
	NoteID string
	Title  string
	Cipher []byte
}

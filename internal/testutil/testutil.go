// Package testutil provides shared test helpers for setting up stores, indexes, and note fixtures.
package testutil

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/laguz/internal/ftsindex"
	"github.com/starford/laguz/internal/graph"
	"github.com/starford/laguz/internal/models"
	"github.com/starford/laguz/internal/store"
)

// TestStore creates a temporary SQLite note store that is automatically cleaned up.
func TestStore(t *testing.T) *store.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "laguz-test.db")
	st, err := store.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

// TestIndex creates a store with a text index service on the same database.
func TestIndex(t *testing.T) (*store.Store, *ftsindex.Service) {
	t.Helper()
	st := TestStore(t)
	fts := ftsindex.New(st.DB(), st, DiscardLogger())
	if !fts.Available() {
		t.Skip("FTS5 trigram tokenizer not available in this SQLite build")
	}
	return st, fts
}

// DiscardLogger returns a logger that swallows all output.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// NoteFixture describes a note to seed into a store and graph.
type NoteFixture struct {
	ID        string
	Title     string
	Content   string
	Archived  bool
	ParentID  string
	Labels    map[string]string
	Relations map[string]string
}

// SeedNotes writes fixtures into the store and loads them into a fresh graph.
func SeedNotes(t *testing.T, st *store.Store, fixtures []NoteFixture) *graph.NoteGraph {
	t.Helper()
	for _, f := range fixtures {
		n := &models.Note{
			ID:         f.ID,
			Title:      f.Title,
			Type:       models.TypeText,
			IsArchived: f.Archived,
		}
		if err := st.CreateNote(n, []byte(f.Content)); err != nil {
			t.Fatal(err)
		}
		if f.ParentID != "" {
			if err := st.SetParent(f.ID, f.ParentID); err != nil {
				t.Fatal(err)
			}
		}
		for name, value := range f.Labels {
			a := &models.Attribute{
				ID:     f.ID + "-l-" + name,
				NoteID: f.ID,
				Type:   models.AttrLabel,
				Name:   name,
				Value:  value,
			}
			if err := st.UpsertAttribute(a); err != nil {
				t.Fatal(err)
			}
		}
		for name, target := range f.Relations {
			a := &models.Attribute{
				ID:     f.ID + "-r-" + name,
				NoteID: f.ID,
				Type:   models.AttrRelation,
				Name:   name,
				Value:  target,
			}
			if err := st.UpsertAttribute(a); err != nil {
				t.Fatal(err)
			}
		}
	}

	g := graph.New()
	notes, err := st.AllNotes()
	if err != nil {
		t.Fatal(err)
	}
	g.Load(notes)
	return g
}

// WriteFile writes a file under dir, creating parents, and fails the test on error.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

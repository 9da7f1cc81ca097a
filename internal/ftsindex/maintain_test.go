package ftsindex_test

import (
	"context"
	"testing"

	"github.com/starford/laguz/internal/ftsindex"
	"github.com/starford/laguz/internal/testutil"
)

func TestUpdateIndexIsIdempotent(t *testing.T) {
	_, fts := testutil.TestIndex(t)
	ctx := context.Background()

	if err := fts.UpdateIndex(ctx, "n1", "Title", "first version"); err != nil {
		t.Fatal(err)
	}
	if err := fts.UpdateIndex(ctx, "n1", "Title", "second version"); err != nil {
		t.Fatal(err)
	}

	stats, err := fts.GetStats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalDocuments != 1 {
		t.Errorf("documents = %d, want 1", stats.TotalDocuments)
	}

	hits, err := fts.MatchSubstring([]string{"second"}, ftsindex.OpContains, nil, ftsindex.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].NoteID != "n1" {
		t.Errorf("hits = %v", hits)
	}
	hits, err = fts.MatchSubstring([]string{"first"}, ftsindex.OpContains, nil, ftsindex.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 0 {
		t.Errorf("stale entry still indexed: %v", hits)
	}
}

func TestRemoveFromIndexAbsentIsNoop(t *testing.T) {
	_, fts := testutil.TestIndex(t)
	if err := fts.RemoveFromIndex(context.Background(), "never-indexed"); err != nil {
		t.Errorf("remove of absent entry failed: %v", err)
	}
}

func TestSyncMissingNotes(t *testing.T) {
	st, fts := testutil.TestIndex(t)
	ctx := context.Background()

	seedNote(t, st, "m1", "One", "aaa", false)
	seedNote(t, st, "m2", "Two", "bbb", false)
	seedNote(t, st, "m3", "Three", "ccc", false)

	inserted, err := fts.SyncMissingNotes(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if inserted != 3 {
		t.Errorf("inserted = %d, want 3", inserted)
	}

	// Second run is a no-op.
	inserted, err = fts.SyncMissingNotes(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if inserted != 0 {
		t.Errorf("second sync inserted %d, want 0", inserted)
	}
}

func TestSyncMissingNotesRestricted(t *testing.T) {
	st, fts := testutil.TestIndex(t)
	ctx := context.Background()

	seedNote(t, st, "r1", "One", "aaa", false)
	seedNote(t, st, "r2", "Two", "bbb", false)

	inserted, err := fts.SyncMissingNotes(ctx, []string{"r2"})
	if err != nil {
		t.Fatal(err)
	}
	if inserted != 1 {
		t.Errorf("inserted = %d, want 1", inserted)
	}

	stats, err := fts.GetStats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalDocuments != 1 {
		t.Errorf("documents = %d, want 1", stats.TotalDocuments)
	}
}

func TestSyncSkipsProtectedNotes(t *testing.T) {
	st, fts := testutil.TestIndex(t)

	seedNote(t, st, "pub", "Public", "aaa", false)
	seedNote(t, st, "sec", "Secret", "bbb", true)

	inserted, err := fts.SyncMissingNotes(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if inserted != 1 {
		t.Errorf("inserted = %d, want 1", inserted)
	}
}

func TestRebuildIndex(t *testing.T) {
	st, fts := testutil.TestIndex(t)
	ctx := context.Background()

	seedNote(t, st, "k1", "Keep", "aaa", false)
	seedNote(t, st, "k2", "Drop", "bbb", false)
	syncAll(t, fts)

	if err := st.DeleteNote("k2"); err != nil {
		t.Fatal(err)
	}
	if err := fts.RebuildIndex(ctx); err != nil {
		t.Fatal(err)
	}

	stats, err := fts.GetStats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalDocuments != 1 {
		t.Errorf("documents after rebuild = %d, want 1", stats.TotalDocuments)
	}
	if !stats.IsOptimized {
		t.Error("rebuild should leave the index optimized")
	}
}

func TestGetStatsSize(t *testing.T) {
	st, fts := testutil.TestIndex(t)
	seedNote(t, st, "g1", "A Title", "some content for sizing", false)
	syncAll(t, fts)

	stats, err := fts.GetStats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalDocuments != 1 {
		t.Errorf("documents = %d, want 1", stats.TotalDocuments)
	}
	if stats.IndexSize <= 0 {
		t.Errorf("index size = %d, want > 0", stats.IndexSize)
	}
}

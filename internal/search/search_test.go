package search

import (
	"sort"
	"testing"

	"github.com/starford/laguz/internal/ftsindex"
	"github.com/starford/laguz/internal/testutil"
)

func testEngine(t *testing.T) *Engine {
	t.Helper()
	st := testutil.TestStore(t)
	g := testutil.SeedNotes(t, st, []testutil.NoteFixture{
		{
			ID: "hobbit", Title: "The Hobbit",
			Content: "Bilbo finds a ring in the misty mountains",
			Labels:  map[string]string{"book": "", "genre": "fantasy", "pages": "310"},
		},
		{
			ID: "towers", Title: "The Two Towers",
			Content:   "The fellowship is broken",
			Labels:    map[string]string{"book": "", "genre": "fantasy", "pages": "352"},
			Relations: map[string]string{"writtenBy": "tolkien"},
		},
		{
			ID: "dune", Title: "Dune",
			Content:   "Sandworms roam the deep desert of Arrakis",
			Labels:    map[string]string{"book": "", "genre": "scifi", "pages": "412"},
			Relations: map[string]string{"writtenBy": "herbert"},
		},
		{
			ID: "tolkien", Title: "J.R.R. Tolkien",
			Content: "English writer and philologist",
			Labels:  map[string]string{"person": ""},
		},
		{
			ID: "herbert", Title: "Frank Herbert",
			Content: "American science fiction author",
			Labels:  map[string]string{"person": ""},
		},
		{
			ID: "oldreport", Title: "Old Report",
			Content:  "quarterly figures",
			Archived: true,
			Labels:   map[string]string{"book": ""},
		},
		{
			ID: "child", Title: "Chapter One",
			Content:  "An unexpected party",
			ParentID: "hobbit",
			Labels:   map[string]string{"chapter": ""},
		},
	})
	fts := ftsindex.New(st.DB(), st, testutil.DiscardLogger())
	return NewEngine(g, st, fts, nil, testutil.DiscardLogger())
}

func resultIDs(results []Result) []string {
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.NoteID
	}
	sort.Strings(ids)
	return ids
}

func assertIDs(t *testing.T, results []Result, want ...string) {
	t.Helper()
	got := resultIDs(results)
	sort.Strings(want)
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestSearchLabelExistence(t *testing.T) {
	e := testEngine(t)
	results, err := e.Search("#book", nil)
	if err != nil {
		t.Fatal(err)
	}
	// Archived notes are excluded by default.
	assertIDs(t, results, "hobbit", "towers", "dune")
}

func TestSearchIncludeArchived(t *testing.T) {
	e := testEngine(t)
	results, err := e.Search("#book", &Context{IncludeArchivedNotes: true})
	if err != nil {
		t.Fatal(err)
	}
	assertIDs(t, results, "hobbit", "towers", "dune", "oldreport")
}

func TestSearchLabelValue(t *testing.T) {
	e := testEngine(t)
	results, err := e.Search("#genre = fantasy", nil)
	if err != nil {
		t.Fatal(err)
	}
	assertIDs(t, results, "hobbit", "towers")
}

func TestSearchNumericComparison(t *testing.T) {
	e := testEngine(t)
	results, err := e.Search("#pages > 320", nil)
	if err != nil {
		t.Fatal(err)
	}
	assertIDs(t, results, "towers", "dune")

	// String "400" compares numerically, not lexicographically.
	results, err = e.Search("#pages >= 400", nil)
	if err != nil {
		t.Fatal(err)
	}
	assertIDs(t, results, "dune")
}

func TestSearchBooleanOperators(t *testing.T) {
	e := testEngine(t)

	results, err := e.Search("#book and #genre = scifi", nil)
	if err != nil {
		t.Fatal(err)
	}
	assertIDs(t, results, "dune")

	results, err = e.Search("#genre = scifi or #person", nil)
	if err != nil {
		t.Fatal(err)
	}
	assertIDs(t, results, "dune", "tolkien", "herbert")

	results, err = e.Search("#book and not(#genre = fantasy)", nil)
	if err != nil {
		t.Fatal(err)
	}
	assertIDs(t, results, "dune")
}

func TestSearchNegatedLabel(t *testing.T) {
	e := testEngine(t)
	results, err := e.Search("#book #!genre", nil)
	if err != nil {
		t.Fatal(err)
	}
	// All seeded books carry a genre label; nothing matches.
	assertIDs(t, results)
}

func TestSearchRelation(t *testing.T) {
	e := testEngine(t)

	results, err := e.Search("~writtenBy", nil)
	if err != nil {
		t.Fatal(err)
	}
	assertIDs(t, results, "towers", "dune")

	results, err = e.Search("~writtenBy.title *=* tolkien", nil)
	if err != nil {
		t.Fatal(err)
	}
	assertIDs(t, results, "towers")
}

func TestSearchDanglingRelation(t *testing.T) {
	e := testEngine(t)
	st := testutil.TestStore(t)
	g := testutil.SeedNotes(t, st, []testutil.NoteFixture{
		{ID: "n1", Title: "Broken", Relations: map[string]string{"ref": "missing"}},
	})
	e = NewEngine(g, st, ftsindex.New(st.DB(), st, testutil.DiscardLogger()), nil, testutil.DiscardLogger())

	results, err := e.Search("~ref.title = anything", nil)
	if err != nil {
		t.Fatal(err)
	}
	assertIDs(t, results)
}

func TestSearchProperty(t *testing.T) {
	e := testEngine(t)

	results, err := e.Search("note.labelCount >= 3", nil)
	if err != nil {
		t.Fatal(err)
	}
	assertIDs(t, results, "hobbit", "towers", "dune")

	results, err = e.Search("note.parents.title = 'The Hobbit'", nil)
	if err != nil {
		t.Fatal(err)
	}
	assertIDs(t, results, "child")
}

func TestSearchFulltext(t *testing.T) {
	e := testEngine(t)
	results, err := e.Search("sandworms", nil)
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, r := range results {
		if r.NoteID == "dune" {
			found = true
		}
	}
	if !found {
		t.Errorf("content match missing: %v", resultIDs(results))
	}
}

func TestSearchFastSearchSkipsContent(t *testing.T) {
	e := testEngine(t)
	results, err := e.Search("sandworms", &Context{FastSearch: true})
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range results {
		if r.NoteID == "dune" {
			t.Error("fast search matched note content")
		}
	}
}

func TestSearchFuzzyFallback(t *testing.T) {
	e := testEngine(t)
	// Misspelled title: no exact hit, fuzzy fallback fills in.
	results, err := e.Search("hobit", nil)
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, r := range results {
		if r.NoteID == "hobbit" {
			found = true
		}
	}
	if !found {
		t.Errorf("fuzzy fallback missed: %v", resultIDs(results))
	}
}

func TestSearchFuzzyOperator(t *testing.T) {
	e := testEngine(t)
	results, err := e.Search("note.title ~= 'Dine'", nil)
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, r := range results {
		if r.NoteID == "dune" {
			found = true
		}
	}
	if !found {
		t.Errorf("fuzzy equal missed: %v", resultIDs(results))
	}
}

func TestSearchAncestorRestriction(t *testing.T) {
	e := testEngine(t)
	results, err := e.Search("#chapter", &Context{AncestorNoteID: "hobbit"})
	if err != nil {
		t.Fatal(err)
	}
	assertIDs(t, results, "child")

	results, err = e.Search("#book", &Context{AncestorNoteID: "hobbit"})
	if err != nil {
		t.Fatal(err)
	}
	assertIDs(t, results, "hobbit")
}

func TestSearchOrderByTitle(t *testing.T) {
	e := testEngine(t)
	results, err := e.Search("#book orderBy note.title", nil)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"dune", "hobbit", "towers"} // Dune, The Hobbit, The Two Towers
	if len(results) != 3 {
		t.Fatalf("got %d results", len(results))
	}
	for i, id := range want {
		if results[i].NoteID != id {
			t.Errorf("results[%d] = %s, want %s", i, results[i].NoteID, id)
		}
	}
}

func TestSearchOrderByLabelDesc(t *testing.T) {
	e := testEngine(t)
	results, err := e.Search("#book orderBy #pages desc", nil)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"dune", "towers", "hobbit"}
	for i, id := range want {
		if results[i].NoteID != id {
			t.Errorf("results[%d] = %s, want %s", i, results[i].NoteID, id)
		}
	}
}

func TestSearchLimitAndOffset(t *testing.T) {
	e := testEngine(t)

	results, err := e.Search("#book orderBy note.title limit 2", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].NoteID != "dune" || results[1].NoteID != "hobbit" {
		t.Errorf("got %v", resultIDs(results))
	}

	// Offset applies after full ordering.
	results, err = e.Search("#book orderBy note.title", &Context{Offset: 1, Limit: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].NoteID != "hobbit" {
		t.Errorf("got %v", resultIDs(results))
	}
}

func TestSearchQueryLimitWinsOverContext(t *testing.T) {
	e := testEngine(t)
	results, err := e.Search("#book limit 1", &Context{Limit: 3})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Errorf("got %d results, want 1", len(results))
	}
}

func TestSearchMalformedQuery(t *testing.T) {
	e := testEngine(t)
	if _, err := e.Search("#a and", nil); err == nil {
		t.Error("malformed query succeeded")
	}
}

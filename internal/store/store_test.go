package store_test

import (
	"errors"
	"testing"

	"github.com/starford/laguz/internal/apperr"
	"github.com/starford/laguz/internal/models"
	"github.com/starford/laguz/internal/testutil"
)

func TestCreateAndGetNote(t *testing.T) {
	st := testutil.TestStore(t)

	n := &models.Note{ID: "n1", Title: "Hello", Type: models.TypeText}
	if err := st.CreateNote(n, []byte("body text")); err != nil {
		t.Fatal(err)
	}

	got, err := st.GetNote("n1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "Hello" || got.Type != models.TypeText {
		t.Errorf("got %+v", got)
	}
	if got.DateCreated.IsZero() || got.DateModified.IsZero() {
		t.Error("dates not set")
	}

	content, err := st.GetContent("n1")
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "body text" {
		t.Errorf("content = %q", content)
	}
}

func TestCreateNoteNilContent(t *testing.T) {
	st := testutil.TestStore(t)

	// Nil content is stored as an empty blob, not SQL NULL.
	if err := st.CreateNote(&models.Note{ID: "n1", Title: "Empty", Type: models.TypeText}, nil); err != nil {
		t.Fatal(err)
	}
	content, err := st.GetContent("n1")
	if err != nil {
		t.Fatal(err)
	}
	if len(content) != 0 {
		t.Errorf("content = %q, want empty", content)
	}

	if err := st.UpdateNote("n1", "Still empty", nil); err != nil {
		t.Fatal(err)
	}
	if content, err = st.GetContent("n1"); err != nil || len(content) != 0 {
		t.Errorf("content after update = %q, err = %v", content, err)
	}
}

func TestGetNoteNotFound(t *testing.T) {
	st := testutil.TestStore(t)
	if _, err := st.GetNote("missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdateNote(t *testing.T) {
	st := testutil.TestStore(t)
	if err := st.CreateNote(&models.Note{ID: "n1", Title: "Old", Type: models.TypeText}, []byte("old")); err != nil {
		t.Fatal(err)
	}

	if err := st.UpdateNote("n1", "New", []byte("new")); err != nil {
		t.Fatal(err)
	}
	got, err := st.GetNote("n1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "New" {
		t.Errorf("title = %q", got.Title)
	}

	if err := st.UpdateNote("missing", "x", nil); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDeleteNoteIsSoft(t *testing.T) {
	st := testutil.TestStore(t)
	if err := st.CreateNote(&models.Note{ID: "n1", Title: "T", Type: models.TypeText}, nil); err != nil {
		t.Fatal(err)
	}
	if err := st.UpsertAttribute(&models.Attribute{ID: "a1", NoteID: "n1", Type: models.AttrLabel, Name: "tag"}); err != nil {
		t.Fatal(err)
	}

	if err := st.DeleteNote("n1"); err != nil {
		t.Fatal(err)
	}

	// Row survives but is flagged; attributes are gone.
	got, err := st.GetNote("n1")
	if err != nil {
		t.Fatal(err)
	}
	if !got.IsDeleted {
		t.Error("note not flagged deleted")
	}
	if len(got.Attributes) != 0 {
		t.Errorf("attributes survive delete: %v", got.Attributes)
	}

	// Deleted notes vanish from AllNotes and content reads.
	all, err := st.AllNotes()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 0 {
		t.Errorf("AllNotes = %d notes, want 0", len(all))
	}
	if _, err := st.GetContent("n1"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("content err = %v, want ErrNotFound", err)
	}
}

func TestUpsertAttribute(t *testing.T) {
	st := testutil.TestStore(t)
	if err := st.CreateNote(&models.Note{ID: "n1", Type: models.TypeText}, nil); err != nil {
		t.Fatal(err)
	}

	a := &models.Attribute{ID: "a1", NoteID: "n1", Type: models.AttrLabel, Name: "genre", Value: "fantasy"}
	if err := st.UpsertAttribute(a); err != nil {
		t.Fatal(err)
	}
	a.Value = "scifi"
	if err := st.UpsertAttribute(a); err != nil {
		t.Fatal(err)
	}

	got, err := st.GetNote("n1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Attributes) != 1 || got.Attributes[0].Value != "scifi" {
		t.Errorf("attributes = %v", got.Attributes)
	}
}

func TestSetParentAndAllNotes(t *testing.T) {
	st := testutil.TestStore(t)
	if err := st.CreateNote(&models.Note{ID: "root", Type: models.TypeText}, nil); err != nil {
		t.Fatal(err)
	}
	if err := st.CreateNote(&models.Note{ID: "child", Type: models.TypeText}, nil); err != nil {
		t.Fatal(err)
	}
	if err := st.SetParent("child", "root"); err != nil {
		t.Fatal(err)
	}
	// Repeated edges are ignored.
	if err := st.SetParent("child", "root"); err != nil {
		t.Fatal(err)
	}

	all, err := st.AllNotes()
	if err != nil {
		t.Fatal(err)
	}
	for _, n := range all {
		if n.ID == "child" {
			if len(n.ParentIDs) != 1 || n.ParentIDs[0] != "root" {
				t.Errorf("parents = %v", n.ParentIDs)
			}
		}
	}
}

func TestIndexableNotesExcludesProtectedAndNonText(t *testing.T) {
	st := testutil.TestStore(t)
	notes := []*models.Note{
		{ID: "t1", Type: models.TypeText},
		{ID: "c1", Type: models.TypeCode},
		{ID: "i1", Type: models.TypeImage},
		{ID: "p1", Type: models.TypeText, IsProtected: true},
	}
	for _, n := range notes {
		if err := st.CreateNote(n, []byte("x")); err != nil {
			t.Fatal(err)
		}
	}

	indexable, err := st.IndexableNotes()
	if err != nil {
		t.Fatal(err)
	}
	ids := make(map[string]bool)
	for _, n := range indexable {
		ids[n.NoteID] = true
	}
	if !ids["t1"] || !ids["c1"] || ids["i1"] || ids["p1"] {
		t.Errorf("indexable ids = %v", ids)
	}
}

func TestProtectedNotes(t *testing.T) {
	st := testutil.TestStore(t)
	if err := st.CreateNote(&models.Note{ID: "p1", Title: "Secret", Type: models.TypeText, IsProtected: true},
		[]byte("ciphertext")); err != nil {
		t.Fatal(err)
	}
	if err := st.CreateNote(&models.Note{ID: "n1", Type: models.TypeText}, nil); err != nil {
		t.Fatal(err)
	}

	prot, err := st.ProtectedNotes()
	if err != nil {
		t.Fatal(err)
	}
	if len(prot) != 1 || prot[0].NoteID != "p1" || string(prot[0].Cipher) != "ciphertext" {
		t.Errorf("protected = %v", prot)
	}
}

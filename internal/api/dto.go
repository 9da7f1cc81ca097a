package api

import "github.com/starford/laguz/internal/models"

// SearchRequest carries a query string and its per-query context.
type SearchRequest struct {
	Query                string `json:"query"`
	FastSearch           bool   `json:"fastSearch,omitempty"`
	IncludeArchivedNotes bool   `json:"includeArchivedNotes,omitempty"`
	AncestorNoteID       string `json:"ancestorNoteId,omitempty"`
	FuzzyAttributeSearch bool   `json:"fuzzyAttributeSearch,omitempty"`
	Debug                bool   `json:"debug,omitempty"`
	Limit                int    `json:"limit,omitempty"`
	Offset               int    `json:"offset,omitempty"`
}

// SearchHit is one result enriched with the note title for display.
type SearchHit struct {
	NoteID  string  `json:"noteId"`
	Title   string  `json:"title"`
	Score   float64 `json:"score"`
	Snippet string  `json:"snippet,omitempty"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []SearchHit `json:"results"`
}

// CreateNoteRequest is the request body for creating a note.
type CreateNoteRequest struct {
	Title       string             `json:"title"`
	Type        string             `json:"type,omitempty"`
	Content     string             `json:"content"`
	IsProtected bool               `json:"isProtected,omitempty"`
	IsArchived  bool               `json:"isArchived,omitempty"`
	ParentID    string             `json:"parentId,omitempty"`
	Attributes  []models.Attribute `json:"attributes,omitempty"`
}

// UpdateNoteRequest is the request body for updating a note.
type UpdateNoteRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// NoteResponse is a note plus its (possibly decrypted) content.
type NoteResponse struct {
	*models.Note
	Content string `json:"content,omitempty"`
}

// AttributeRequest creates or updates an attribute on a note.
type AttributeRequest struct {
	Type  string `json:"type"`
	Name  string `json:"name"`
	Value string `json:"value,omitempty"`
}

// SyncRequest optionally restricts a missing-note sync to given ids.
type SyncRequest struct {
	NoteIDs []string `json:"noteIds,omitempty"`
}

// SyncResponse reports how many rows a sync inserted.
type SyncResponse struct {
	Inserted int `json:"inserted"`
}

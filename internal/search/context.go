package search

// Context is the per-query configuration. Created per query, discarded
// after.
type Context struct {
	// FastSearch skips note content: only titles and attribute
	// names/values are matched.
	FastSearch bool
	// IncludeArchivedNotes includes archived notes in the candidate set.
	IncludeArchivedNotes bool
	// AncestorNoteID restricts the search to the subtree reachable from
	// this note through the ownership tree.
	AncestorNoteID string
	// FuzzyAttributeSearch applies fuzzy matching to attribute values.
	FuzzyAttributeSearch bool
	// Debug enables verbose evaluation logging.
	Debug bool
	// Offset skips leading results after ordering.
	Offset int
	// Limit caps the result count when the query has no limit clause.
	Limit int
}

// Result is one search hit. Score is comparable only within a single query.
type Result struct {
	NoteID  string  `json:"noteId"`
	Score   float64 `json:"score"`
	Snippet string  `json:"snippet,omitempty"`
}

// Package models defines the note and attribute domain types.
package models

import "time"

// NoteType enumerates content kinds.
type NoteType string

const (
	TypeText   NoteType = "text"
	TypeCode   NoteType = "code"
	TypeBook   NoteType = "book"
	TypeFile   NoteType = "file"
	TypeImage  NoteType = "image"
	TypeSearch NoteType = "search"
)

// IndexableTypes are the note types whose content belongs in the text index.
var IndexableTypes = map[NoteType]bool{
	TypeText: true,
	TypeCode: true,
	TypeBook: true,
}

// Attribute type discriminators.
const (
	AttrLabel    = "label"
	AttrRelation = "relation"
)

// Attribute is either a label (name + optional value) or a relation
// (name + target note id in Value). Multiplicity is allowed: a note may
// carry several attributes with the same name.
type Attribute struct {
	ID     string `json:"attributeId"`
	NoteID string `json:"noteId"`
	Type   string `json:"type"`
	Name   string `json:"name"`
	Value  string `json:"value"`
}

// IsLabel reports whether the attribute is a label.
func (a *Attribute) IsLabel() bool { return a.Type == AttrLabel }

// IsRelation reports whether the attribute is a relation.
func (a *Attribute) IsRelation() bool { return a.Type == AttrRelation }

// Note is a titled content unit. Content is loaded lazily from the store;
// the graph holds only the metadata and attributes.
type Note struct {
	ID           string      `json:"noteId"`
	Title        string      `json:"title"`
	Type         NoteType    `json:"type"`
	IsProtected  bool        `json:"isProtected"`
	IsArchived   bool        `json:"isArchived"`
	IsDeleted    bool        `json:"-"`
	DateCreated  time.Time   `json:"dateCreated"`
	DateModified time.Time   `json:"dateModified"`
	Attributes   []Attribute `json:"attributes,omitempty"`
	ParentIDs    []string    `json:"-"`
}

// IsIndexable reports whether the note belongs in the text index:
// non-deleted, non-protected, and of an indexable type.
func (n *Note) IsIndexable() bool {
	return !n.IsDeleted && !n.IsProtected && IndexableTypes[n.Type]
}

// Labels returns the note's labels with the given name.
func (n *Note) Labels(name string) []Attribute {
	var out []Attribute
	for _, a := range n.Attributes {
		if a.IsLabel() && a.Name == name {
			out = append(out, a)
		}
	}
	return out
}

// Relations returns the note's relations with the given name.
func (n *Note) Relations(name string) []Attribute {
	var out []Attribute
	for _, a := range n.Attributes {
		if a.IsRelation() && a.Name == name {
			out = append(out, a)
		}
	}
	return out
}

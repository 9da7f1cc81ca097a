// Package graph holds the process-wide in-memory note graph: id → note plus
// label/relation indices for O(1) lookup by name. It is rebuilt at startup
// and mutated incrementally on note/attribute changes.
package graph

import (
	"strings"
	"sync"

	"github.com/starford/laguz/internal/models"
)

// NoteGraph is the shared, long-lived note cache. A single RWMutex guards
// it: queries take the read lock, mutations the write lock.
type NoteGraph struct {
	mu        sync.RWMutex
	byID      map[string]*models.Note
	labels    map[string][]string // lower-cased label name → note ids
	relations map[string][]string // lower-cased relation name → note ids
	children  map[string][]string // parent note id → child note ids
}

// New returns an empty graph.
func New() *NoteGraph {
	return &NoteGraph{
		byID:      make(map[string]*models.Note),
		labels:    make(map[string][]string),
		relations: make(map[string][]string),
		children:  make(map[string][]string),
	}
}

// Load replaces the graph contents with the given notes.
func (g *NoteGraph) Load(notes []*models.Note) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.byID = make(map[string]*models.Note, len(notes))
	g.labels = make(map[string][]string)
	g.relations = make(map[string][]string)
	g.children = make(map[string][]string)
	for _, n := range notes {
		g.putLocked(n)
	}
}

// Put adds or replaces a note and refreshes the indices.
func (g *NoteGraph) Put(n *models.Note) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if old, ok := g.byID[n.ID]; ok {
		g.removeLocked(old)
	}
	g.putLocked(n)
}

// Remove drops a note from the graph and its index entries.
func (g *NoteGraph) Remove(noteID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if n, ok := g.byID[noteID]; ok {
		g.removeLocked(n)
	}
}

// Get returns the note with the given id, or nil. Relation targets that do
// not resolve are dangling: predicates on them evaluate false, never throw.
func (g *NoteGraph) Get(noteID string) *models.Note {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.byID[noteID]
}

// All returns every note in the graph.
func (g *NoteGraph) All() []*models.Note {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*models.Note, 0, len(g.byID))
	for _, n := range g.byID {
		out = append(out, n)
	}
	return out
}

// Len returns the number of notes in the graph.
func (g *NoteGraph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.byID)
}

// NotesWithLabel returns the notes carrying a label with the given name
// (case-insensitive).
func (g *NoteGraph) NotesWithLabel(name string) []*models.Note {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.notesFor(g.labels[strings.ToLower(name)])
}

// NotesWithRelation returns the notes carrying a relation with the given
// name (case-insensitive).
func (g *NoteGraph) NotesWithRelation(name string) []*models.Note {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.notesFor(g.relations[strings.ToLower(name)])
}

// Subtree returns the set of note ids reachable from ancestorID through the
// ownership tree, including the ancestor itself.
func (g *NoteGraph) Subtree(ancestorID string) map[string]bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	seen := make(map[string]bool)
	stack := []string{ancestorID}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[id] {
			continue
		}
		seen[id] = true
		stack = append(stack, g.children[id]...)
	}
	return seen
}

// Ancestors returns the set of note ids reachable upward from noteID,
// excluding the note itself. Cycles are tolerated.
func (g *NoteGraph) Ancestors(noteID string) map[string]bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	seen := make(map[string]bool)
	var stack []string
	if n := g.byID[noteID]; n != nil {
		stack = append(stack, n.ParentIDs...)
	}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[id] {
			continue
		}
		seen[id] = true
		if p := g.byID[id]; p != nil {
			stack = append(stack, p.ParentIDs...)
		}
	}
	return seen
}

// Parents returns the resolved parent notes of noteID.
func (g *NoteGraph) Parents(noteID string) []*models.Note {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n := g.byID[noteID]
	if n == nil {
		return nil
	}
	return g.notesFor(n.ParentIDs)
}

// Children returns the resolved child notes of noteID.
func (g *NoteGraph) Children(noteID string) []*models.Note {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.notesFor(g.children[noteID])
}

func (g *NoteGraph) notesFor(ids []string) []*models.Note {
	var out []*models.Note
	for _, id := range ids {
		if n, ok := g.byID[id]; ok {
			out = append(out, n)
		}
	}
	return out
}

func (g *NoteGraph) putLocked(n *models.Note) {
	g.byID[n.ID] = n
	for _, a := range n.Attributes {
		key := strings.ToLower(a.Name)
		if a.IsLabel() {
			g.labels[key] = append(g.labels[key], n.ID)
		} else if a.IsRelation() {
			g.relations[key] = append(g.relations[key], n.ID)
		}
	}
	for _, p := range n.ParentIDs {
		g.children[p] = append(g.children[p], n.ID)
	}
}

func (g *NoteGraph) removeLocked(n *models.Note) {
	delete(g.byID, n.ID)
	for _, a := range n.Attributes {
		key := strings.ToLower(a.Name)
		if a.IsLabel() {
			g.labels[key] = removeID(g.labels[key], n.ID)
		} else if a.IsRelation() {
			g.relations[key] = removeID(g.relations[key], n.ID)
		}
	}
	for _, p := range n.ParentIDs {
		g.children[p] = removeID(g.children[p], n.ID)
	}
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

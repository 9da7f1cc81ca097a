// Package notes coordinates the relational store, the in-memory graph, and
// the text index so the three stay coherent across note and attribute
// changes.
package notes

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/starford/laguz/internal/apperr"
	"github.com/starford/laguz/internal/ftsindex"
	"github.com/starford/laguz/internal/graph"
	"github.com/starford/laguz/internal/models"
	"github.com/starford/laguz/internal/protected"
	"github.com/starford/laguz/internal/store"
)

// Service is the write path for notes and attributes.
type Service struct {
	store  *store.Store
	graph  *graph.NoteGraph
	fts    *ftsindex.Service
	prot   protected.Session
	logger *slog.Logger
}

// NewService wires the note service.
func NewService(st *store.Store, g *graph.NoteGraph, fts *ftsindex.Service,
	prot protected.Session, logger *slog.Logger) *Service {
	if prot == nil {
		prot = protected.Unavailable()
	}
	return &Service{store: st, graph: g, fts: fts, prot: prot, logger: logger}
}

// CreateParams describes a note to create.
type CreateParams struct {
	Title       string
	Type        models.NoteType
	Content     string
	IsProtected bool
	IsArchived  bool
	ParentID    string
	Attributes  []models.Attribute
}

// CreateNote persists a new note, registers it in the graph, and indexes it
// when it is indexable. Protected content is sealed through the session;
// creating a protected note without an active session fails.
func (s *Service) CreateNote(ctx context.Context, p CreateParams) (*models.Note, error) {
	if p.Type == "" {
		p.Type = models.TypeText
	}
	n := &models.Note{
		ID:          uuid.NewString(),
		Title:       p.Title,
		Type:        p.Type,
		IsProtected: p.IsProtected,
		IsArchived:  p.IsArchived,
	}

	content := []byte(p.Content)
	if p.IsProtected {
		enc, ok := s.prot.(protected.Encrypter)
		if !ok || !s.prot.IsAvailable() {
			return nil, fmt.Errorf("notes: protected session required to create a protected note")
		}
		sealed, err := enc.Encrypt(content)
		if err != nil {
			return nil, fmt.Errorf("notes: seal content: %w", err)
		}
		content = sealed
	}

	if err := s.store.CreateNote(n, content); err != nil {
		return nil, err
	}
	if p.ParentID != "" {
		if err := s.store.SetParent(n.ID, p.ParentID); err != nil {
			return nil, err
		}
		n.ParentIDs = append(n.ParentIDs, p.ParentID)
	}
	for _, a := range p.Attributes {
		a.ID = uuid.NewString()
		a.NoteID = n.ID
		if err := s.store.UpsertAttribute(&a); err != nil {
			return nil, err
		}
		n.Attributes = append(n.Attributes, a)
	}

	s.graph.Put(n)

	if n.IsIndexable() {
		if err := s.fts.UpdateIndex(ctx, n.ID, n.Title, p.Content); err != nil {
			s.logger.Warn("index update failed", slog.String("note_id", n.ID),
				slog.String("error", err.Error()))
		}
	}
	return n, nil
}

// UpdateNote replaces title and content, then refreshes graph and index.
func (s *Service) UpdateNote(ctx context.Context, noteID, title, content string) (*models.Note, error) {
	existing := s.graph.Get(noteID)
	if existing == nil {
		return nil, apperr.ErrNotFound
	}

	stored := []byte(content)
	if existing.IsProtected {
		enc, ok := s.prot.(protected.Encrypter)
		if !ok || !s.prot.IsAvailable() {
			return nil, fmt.Errorf("notes: protected session required to update a protected note")
		}
		sealed, err := enc.Encrypt(stored)
		if err != nil {
			return nil, fmt.Errorf("notes: seal content: %w", err)
		}
		stored = sealed
	}

	if err := s.store.UpdateNote(noteID, title, stored); err != nil {
		return nil, err
	}
	n, err := s.store.GetNote(noteID)
	if err != nil {
		return nil, err
	}
	s.graph.Put(n)

	if n.IsIndexable() {
		if err := s.fts.UpdateIndex(ctx, n.ID, n.Title, content); err != nil {
			s.logger.Warn("index update failed", slog.String("note_id", n.ID),
				slog.String("error", err.Error()))
		}
	} else {
		// Protected or non-indexable notes must never linger in the index.
		if err := s.fts.RemoveFromIndex(ctx, n.ID); err != nil && !apperr.IsKind(err, apperr.KindIndexUnavailable) {
			s.logger.Warn("index remove failed", slog.String("note_id", n.ID),
				slog.String("error", err.Error()))
		}
	}
	return n, nil
}

// DeleteNote soft-deletes a note and removes it from graph and index.
func (s *Service) DeleteNote(ctx context.Context, noteID string) error {
	if err := s.store.DeleteNote(noteID); err != nil {
		return err
	}
	s.graph.Remove(noteID)
	if err := s.fts.RemoveFromIndex(ctx, noteID); err != nil && !apperr.IsKind(err, apperr.KindIndexUnavailable) {
		s.logger.Warn("index remove failed", slog.String("note_id", noteID),
			slog.String("error", err.Error()))
	}
	return nil
}

// SetAttribute creates or updates an attribute and refreshes the graph
// indices for the owning note.
func (s *Service) SetAttribute(a models.Attribute) (*models.Attribute, error) {
	if a.NoteID == "" || a.Name == "" {
		return nil, fmt.Errorf("notes: attribute requires note id and name")
	}
	if a.Type != models.AttrLabel && a.Type != models.AttrRelation {
		return nil, fmt.Errorf("notes: attribute type must be label or relation")
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if err := s.store.UpsertAttribute(&a); err != nil {
		return nil, err
	}
	return &a, s.refreshNote(a.NoteID)
}

// DeleteAttribute removes an attribute and refreshes the owning note.
func (s *Service) DeleteAttribute(attributeID, noteID string) error {
	if err := s.store.DeleteAttribute(attributeID); err != nil {
		return err
	}
	return s.refreshNote(noteID)
}

// GetNote returns a note's metadata and attributes.
func (s *Service) GetNote(noteID string) (*models.Note, error) {
	n := s.graph.Get(noteID)
	if n == nil {
		return nil, apperr.ErrNotFound
	}
	return n, nil
}

// GetContent returns a note's plain content, decrypting protected content
// through the session when one is active.
func (s *Service) GetContent(noteID string) (string, error) {
	n := s.graph.Get(noteID)
	if n == nil {
		return "", apperr.ErrNotFound
	}
	raw, err := s.store.GetContent(noteID)
	if err != nil {
		return "", err
	}
	if n.IsProtected {
		if !s.prot.IsAvailable() {
			return "", fmt.Errorf("notes: protected session not available")
		}
		return s.prot.Decrypt(raw)
	}
	return string(raw), nil
}

func (s *Service) refreshNote(noteID string) error {
	n, err := s.store.GetNote(noteID)
	if err != nil {
		return err
	}
	s.graph.Put(n)
	return nil
}

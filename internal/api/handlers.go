package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/laguz/internal/apperr"
	"github.com/starford/laguz/internal/ftsindex"
	"github.com/starford/laguz/internal/graph"
	"github.com/starford/laguz/internal/models"
	"github.com/starford/laguz/internal/notes"
	"github.com/starford/laguz/internal/search"
)

// Handler holds API route handlers.
type Handler struct {
	svc    *notes.Service
	engine *search.Engine
	fts    *ftsindex.Service
	graph  *graph.NoteGraph
}

// NewHandler creates a new Handler.
func NewHandler(svc *notes.Service, engine *search.Engine, fts *ftsindex.Service, g *graph.NoteGraph) *Handler {
	return &Handler{svc: svc, engine: engine, fts: fts, graph: g}
}

// Search handles POST /api/search.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	sc := &search.Context{
		FastSearch:           req.FastSearch,
		IncludeArchivedNotes: req.IncludeArchivedNotes,
		AncestorNoteID:       req.AncestorNoteID,
		FuzzyAttributeSearch: req.FuzzyAttributeSearch,
		Debug:                req.Debug,
		Limit:                req.Limit,
		Offset:               req.Offset,
	}
	results, err := h.engine.Search(req.Query, sc)
	if err != nil {
		var ae *apperr.Error
		if errors.As(err, &ae) && ae.Kind == apperr.KindQuery {
			writeError(w, http.StatusBadRequest, ae.Message)
			return
		}
		slog.Error("search failed", slog.String("query", req.Query), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	hits := make([]SearchHit, 0, len(results))
	for _, res := range results {
		hit := SearchHit{NoteID: res.NoteID, Score: res.Score, Snippet: res.Snippet}
		if n := h.graph.Get(res.NoteID); n != nil {
			hit.Title = n.Title
		}
		hits = append(hits, hit)
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: hits})
}

// IndexStats handles GET /api/index/stats.
func (h *Handler) IndexStats(w http.ResponseWriter, _ *http.Request) {
	stats, err := h.fts.GetStats()
	if err != nil {
		if apperr.IsKind(err, apperr.KindIndexUnavailable) {
			writeError(w, http.StatusServiceUnavailable, "text index unavailable")
			return
		}
		slog.Error("index stats failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// RebuildIndex handles POST /api/index/rebuild. The availability probe
// runs first so a rebuild can revive an index created after startup.
func (h *Handler) RebuildIndex(w http.ResponseWriter, r *http.Request) {
	h.fts.Recheck()
	if err := h.fts.RebuildIndex(r.Context()); err != nil {
		slog.Error("index rebuild failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "rebuild failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SyncIndex handles POST /api/index/sync.
func (h *Handler) SyncIndex(w http.ResponseWriter, r *http.Request) {
	var req SyncRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}
	inserted, err := h.fts.SyncMissingNotes(r.Context(), req.NoteIDs)
	if err != nil {
		slog.Error("index sync failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "sync failed")
		return
	}
	writeJSON(w, http.StatusOK, SyncResponse{Inserted: inserted})
}

// CreateNote handles POST /api/notes.
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req CreateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	n, err := h.svc.CreateNote(r.Context(), notes.CreateParams{
		Title:       req.Title,
		Type:        models.NoteType(req.Type),
		Content:     req.Content,
		IsProtected: req.IsProtected,
		IsArchived:  req.IsArchived,
		ParentID:    req.ParentID,
		Attributes:  req.Attributes,
	})
	if err != nil {
		slog.Error("create note failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, NoteResponse{Note: n, Content: req.Content})
}

// GetNote handles GET /api/notes/{id}.
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	n, err := h.svc.GetNote(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	content, err := h.svc.GetContent(id)
	if err != nil {
		// Protected content without a session: return metadata only.
		content = ""
	}
	writeJSON(w, http.StatusOK, NoteResponse{Note: n, Content: content})
}

// UpdateNote handles PUT /api/notes/{id}.
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	id := chi.URLParam(r, "id")
	var req UpdateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	n, err := h.svc.UpdateNote(r.Context(), id, req.Title, req.Content)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		slog.Error("update note failed", slog.String("note_id", id), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, NoteResponse{Note: n, Content: req.Content})
}

// DeleteNote handles DELETE /api/notes/{id}.
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.DeleteNote(r.Context(), id); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		slog.Error("delete note failed", slog.String("note_id", id), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetAttribute handles POST /api/notes/{id}/attributes.
func (h *Handler) SetAttribute(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req AttributeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	a, err := h.svc.SetAttribute(models.Attribute{
		NoteID: id,
		Type:   req.Type,
		Name:   req.Name,
		Value:  req.Value,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// DeleteAttribute handles DELETE /api/notes/{id}/attributes/{attributeId}.
func (h *Handler) DeleteAttribute(w http.ResponseWriter, r *http.Request) {
	noteID := chi.URLParam(r, "id")
	attrID := chi.URLParam(r, "attributeId")
	if err := h.svc.DeleteAttribute(attrID, noteID); err != nil {
		slog.Error("delete attribute failed", slog.String("attribute_id", attrID),
			slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

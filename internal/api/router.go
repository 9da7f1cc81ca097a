package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/starford/laguz/internal/ftsindex"
	"github.com/starford/laguz/internal/graph"
	"github.com/starford/laguz/internal/notes"
	"github.com/starford/laguz/internal/search"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
func NewRouter(svc *notes.Service, engine *search.Engine, fts *ftsindex.Service,
	g *graph.NoteGraph, authEnabled bool, token string) chi.Router {

	h := NewHandler(svc, engine, fts, g)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Search.
	r.Post("/search", h.Search)

	// Index maintenance and monitoring.
	r.Get("/index/stats", h.IndexStats)
	r.Post("/index/rebuild", h.RebuildIndex)
	r.Post("/index/sync", h.SyncIndex)

	// Notes CRUD.
	r.Post("/notes", h.CreateNote)
	r.Get("/notes/{id}", h.GetNote)
	r.Put("/notes/{id}", h.UpdateNote)
	r.Delete("/notes/{id}", h.DeleteNote)

	// Attributes.
	r.Post("/notes/{id}/attributes", h.SetAttribute)
	r.Delete("/notes/{id}/attributes/{attributeId}", h.DeleteAttribute)

	return r
}

// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes the search engine and index tools for LLM integration via stdio
// transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/laguz/internal/ftsindex"
	"github.com/starford/laguz/internal/notes"
	"github.com/starford/laguz/internal/search"
)

// Server wraps the MCP server with Laguz tools.
type Server struct {
	mcp    *server.MCPServer
	svc    *notes.Service
	engine *search.Engine
	fts    *ftsindex.Service
}

// New creates a new MCP server with all tools registered.
func New(svc *notes.Service, engine *search.Engine, fts *ftsindex.Service) *Server {
	s := &Server{svc: svc, engine: engine, fts: fts}

	s.mcp = server.NewMCPServer(
		"Laguz",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Search notes with the query language: bare words, "+
			"#label filters, ~relation filters, note.<property> comparisons, "+
			"AND/OR/not(...), orderBy and limit clauses."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithBoolean("fastSearch", mcp.Description("Search titles and attributes only, skip content")),
		mcp.WithBoolean("includeArchivedNotes", mcp.Description("Include archived notes")),
		mcp.WithString("ancestorNoteId", mcp.Description("Restrict to the subtree of this note")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read a note's metadata and content by note id."),
		mcp.WithString("noteId", mcp.Required(), mcp.Description("Note id")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("index_stats",
		mcp.WithDescription("Report text-index document count, size, and health."),
	), s.indexStats)

	s.mcp.AddTool(mcp.NewTool("rebuild_index",
		mcp.WithDescription("Clear and repopulate the text index from the note store."),
	), s.rebuildIndex)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	sc := &search.Context{
		FastSearch:           req.GetBool("fastSearch", false),
		IncludeArchivedNotes: req.GetBool("includeArchivedNotes", false),
		AncestorNoteID:       req.GetString("ancestorNoteId", ""),
		Limit:                20,
	}
	results, err := s.engine.Search(query, sc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(results, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	noteID, err := req.RequireString("noteId")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, err := s.svc.GetNote(noteID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", noteID)), nil
	}
	content, _ := s.svc.GetContent(noteID)
	payload := struct {
		Note    any    `json:"note"`
		Content string `json:"content"`
	}{Note: n, Content: content}
	out, _ := json.MarshalIndent(payload, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) indexStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.fts.GetStats()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(stats, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) rebuildIndex(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.fts.RebuildIndex(ctx); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("index rebuilt"), nil
}

// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/laguz/internal/api"
	"github.com/starford/laguz/internal/ftsindex"
	"github.com/starford/laguz/internal/graph"
	"github.com/starford/laguz/internal/ingest"
	"github.com/starford/laguz/internal/mcpserver"
	"github.com/starford/laguz/internal/notes"
	"github.com/starford/laguz/internal/protected"
	"github.com/starford/laguz/internal/search"
	"github.com/starford/laguz/internal/store"
)

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger. In MCP mode stdout carries the
	// protocol, so logs go to stderr.
	logOut := os.Stdout
	if app.mcpMode {
		logOut = os.Stderr
	}
	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("ingest_dir", cfg.Ingest.Dir),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Open the note store.
	st, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer st.Close()

	// Load the note graph from the store.
	g := graph.New()
	allNotes, err := st.AllNotes()
	if err != nil {
		return fmt.Errorf("load notes: %w", err)
	}
	g.Load(allNotes)
	logger.Info("Note graph loaded", slog.Int("notes", g.Len()))

	// Bring up the text index on the same database and backfill any
	// notes the index is missing.
	fts := ftsindex.New(st.DB(), st, logger)
	if fts.Available() {
		inserted, err := fts.SyncMissingNotes(ctx, nil)
		if err != nil {
			logger.Warn("initial index sync failed", slog.String("error", err.Error()))
		} else if inserted > 0 {
			logger.Info("Index backfilled", slog.Int("inserted", inserted))
		}
	} else {
		logger.Warn("text index unavailable, falling back to in-memory matching")
	}

	// Protected session.
	prot, err := protected.NewSession(cfg.Protected.Passphrase, []byte(cfg.Protected.Salt))
	if err != nil {
		return fmt.Errorf("init protected session: %w", err)
	}

	svc := notes.NewService(st, g, fts, prot, logger)
	engine := search.NewEngine(g, st, fts, prot, logger)

	if app.mcpMode {
		logger.Info("Starting MCP server on stdio")
		return mcpserver.New(svc, engine, fts).ServeStdio()
	}

	apiRouter := api.NewRouter(svc, engine, fts, g, cfg.Auth.AuthEnabled(), cfg.Auth.Token)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	eg, gCtx := errgroup.WithContext(ctx)

	// Start the drop-folder importer when configured.
	if cfg.Ingest.Enabled() {
		if err := os.MkdirAll(cfg.Ingest.Dir, 0o755); err != nil {
			return fmt.Errorf("create ingest dir: %w", err)
		}
		importer := ingest.NewImporter(svc, cfg.Ingest.Dir, logger)
		eg.Go(func() error {
			if err := importer.Sweep(gCtx); err != nil {
				logger.Warn("initial ingest sweep failed", slog.String("error", err.Error()))
			}
			importer.Watch(gCtx)
			return nil
		})
	}

	// Start HTTP server.
	eg.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	eg.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := eg.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

package ingest

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/laguz/internal/models"
	"github.com/starford/laguz/internal/notes"
)

// debounceDelay coalesces editor save bursts into one import.
const debounceDelay = 300 * time.Millisecond

// Importer tracks imported files so edits update the same note instead of
// creating duplicates.
type Importer struct {
	svc    *notes.Service
	dir    string
	logger *slog.Logger

	mu        sync.Mutex
	noteIDs   map[string]string // relative path → note id
	checksums map[string]string // relative path → content checksum
}

// NewImporter creates an importer rooted at dir.
func NewImporter(svc *notes.Service, dir string, logger *slog.Logger) *Importer {
	return &Importer{
		svc:       svc,
		dir:       dir,
		logger:    logger,
		noteIDs:   make(map[string]string),
		checksums: make(map[string]string),
	}
}

// Sweep imports every .md file under the drop folder once.
func (im *Importer) Sweep(ctx context.Context) error {
	return filepath.WalkDir(im.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(strings.ToLower(d.Name()), ".md") {
			return nil
		}
		rel, relErr := filepath.Rel(im.dir, path)
		if relErr != nil {
			return relErr
		}
		im.importFile(ctx, rel)
		return nil
	})
}

// Watch runs the fsnotify loop until ctx is cancelled. Create/write events
// import the file after a debounce; remove/rename events delete the note.
func (im *Importer) Watch(ctx context.Context) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		im.logger.Error("ingest watcher failed to start", slog.String("error", err.Error()))
		return
	}
	defer watcher.Close()

	if err := watcher.Add(im.dir); err != nil {
		im.logger.Error("ingest watcher cannot watch drop folder",
			slog.String("dir", im.dir), slog.String("error", err.Error()))
		return
	}

	timers := make(map[string]*time.Timer)
	var timersMu sync.Mutex

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			rel, err := filepath.Rel(im.dir, event.Name)
			if err != nil || !strings.HasSuffix(strings.ToLower(rel), ".md") {
				continue
			}

			switch {
			case event.Op&(fsnotify.Create|fsnotify.Write) != 0:
				timersMu.Lock()
				if t, ok := timers[rel]; ok {
					t.Stop()
				}
				timers[rel] = time.AfterFunc(debounceDelay, func() {
					im.importFile(ctx, rel)
					timersMu.Lock()
					delete(timers, rel)
					timersMu.Unlock()
				})
				timersMu.Unlock()

			case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				im.removeFile(ctx, rel)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			im.logger.Warn("ingest watcher error", slog.String("error", err.Error()))
		}
	}
}

func (im *Importer) importFile(ctx context.Context, rel string) {
	data, err := os.ReadFile(filepath.Join(im.dir, rel))
	if err != nil {
		im.logger.Warn("ingest read failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}

	cs := Checksum(data)
	im.mu.Lock()
	unchanged := im.checksums[rel] == cs
	noteID := im.noteIDs[rel]
	im.mu.Unlock()
	if unchanged {
		return
	}

	doc := ParseMarkdown(data)
	title := doc.Title
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(rel), filepath.Ext(rel))
	}

	if noteID == "" {
		attrs := documentAttributes(doc)
		n, err := im.svc.CreateNote(ctx, notes.CreateParams{
			Title:      title,
			Type:       models.TypeText,
			Content:    doc.Body,
			IsArchived: doc.Archived,
			Attributes: attrs,
		})
		if err != nil {
			im.logger.Warn("ingest create failed", slog.String("path", rel), slog.String("error", err.Error()))
			return
		}
		noteID = n.ID
	} else {
		if _, err := im.svc.UpdateNote(ctx, noteID, title, doc.Body); err != nil {
			im.logger.Warn("ingest update failed", slog.String("path", rel), slog.String("error", err.Error()))
			return
		}
	}

	im.mu.Lock()
	im.noteIDs[rel] = noteID
	im.checksums[rel] = cs
	im.mu.Unlock()
	im.logger.Debug("ingested note", slog.String("path", rel), slog.String("note_id", noteID))
}

func (im *Importer) removeFile(ctx context.Context, rel string) {
	im.mu.Lock()
	noteID := im.noteIDs[rel]
	delete(im.noteIDs, rel)
	delete(im.checksums, rel)
	im.mu.Unlock()
	if noteID == "" {
		return
	}
	if err := im.svc.DeleteNote(ctx, noteID); err != nil {
		im.logger.Warn("ingest delete failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	im.logger.Debug("removed ingested note", slog.String("path", rel), slog.String("note_id", noteID))
}

func documentAttributes(doc *Document) []models.Attribute {
	var attrs []models.Attribute
	for _, tag := range doc.Labels {
		attrs = append(attrs, models.Attribute{Type: models.AttrLabel, Name: tag})
	}
	for name, value := range doc.Meta {
		attrs = append(attrs, models.Attribute{Type: models.AttrLabel, Name: name, Value: value})
	}
	return attrs
}

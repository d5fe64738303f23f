// Package watcher ingests documents dropped into the uploads directory. Each
// subdirectory of the root is a collection; files are ingested once writes settle.
package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"edurag/internal/collection"
	"edurag/internal/indexer"
	"edurag/internal/loader"
	"edurag/internal/service"
)

// DefaultDebounce is how long a file must stay quiet before it is ingested.
const DefaultDebounce = 500 * time.Millisecond

// Ingester is the part of the service the watcher drives.
type Ingester interface {
	Ingest(ctx context.Context, req service.IngestRequest) (indexer.Report, error)
}

// Watcher watches an uploads root and its collection directories.
type Watcher struct {
	root     string
	ingester Ingester
	debounce time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	fsw     *fsnotify.Watcher
	pending map[string]*time.Timer
	stopped bool
	wg      sync.WaitGroup
}

// New creates a watcher over root. debounce <= 0 uses DefaultDebounce.
func New(root string, ingester Ingester, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		root:     filepath.Clean(root),
		ingester: ingester,
		debounce: debounce,
		logger:   slog.Default().With("component", "watcher"),
		pending:  make(map[string]*time.Timer),
	}
}

// Run watches until ctx is cancelled. Existing collection directories are watched
// but their files are not re-ingested; use the ingest command for that.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(w.root, 0755); err != nil {
		_ = fsw.Close()
		return err
	}
	if err := fsw.Add(w.root); err != nil {
		_ = fsw.Close()
		return err
	}
	entries, err := os.ReadDir(w.root)
	if err != nil {
		_ = fsw.Close()
		return err
	}
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			w.addCollectionDir(fsw, filepath.Join(w.root, e.Name()))
		}
	}

	w.mu.Lock()
	w.fsw = fsw
	w.mu.Unlock()
	w.logger.InfoContext(ctx, "watching uploads", "root", w.root)

	defer w.stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, fsw, ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.WarnContext(ctx, "watcher error", "error", err)
		}
	}
}

func (w *Watcher) addCollectionDir(fsw *fsnotify.Watcher, dir string) {
	if _, err := collection.Key(filepath.Base(dir)); err != nil {
		w.logger.Warn("ignoring directory that is not a collection name", "dir", dir)
		return
	}
	if err := fsw.Add(dir); err != nil {
		w.logger.Warn("failed to watch collection directory", "dir", dir, "error", err)
	}
}

func (w *Watcher) handleEvent(ctx context.Context, fsw *fsnotify.Watcher, ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)
	parent := filepath.Dir(path)

	switch {
	case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
		w.cancel(path)
	case !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write):
	case parent == w.root:
		if info, err := os.Stat(path); err == nil && info.IsDir() && !strings.HasPrefix(info.Name(), ".") {
			w.addCollectionDir(fsw, path)
		}
	case filepath.Dir(parent) == w.root:
		if !eligible(path) {
			return
		}
		w.schedule(ctx, filepath.Base(parent), path)
	}
}

// eligible reports whether path is a document upload, skipping hidden and
// in-flight temporary files.
func eligible(path string) bool {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") || !loader.IsSupported(name) {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func (w *Watcher) schedule(ctx context.Context, collectionName, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		if w.stopped {
			w.mu.Unlock()
			return
		}
		delete(w.pending, path)
		w.wg.Add(1)
		w.mu.Unlock()
		defer w.wg.Done()
		w.ingest(ctx, collectionName, path)
	})
}

func (w *Watcher) ingest(ctx context.Context, collectionName, path string) {
	if ctx.Err() != nil {
		return
	}
	logger := w.logger.With("collection", collectionName, "path", path)
	report, err := w.ingester.Ingest(ctx, service.IngestRequest{Collection: collectionName, Paths: []string{path}})
	if err != nil {
		logger.ErrorContext(ctx, "watched file ingestion failed", "error", err)
		return
	}
	logger.InfoContext(ctx, "watched file ingested", "succeeded", report.Succeeded)
}

func (w *Watcher) cancel(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
		delete(w.pending, path)
	}
}

// stop cancels pending ingestions and waits for running ones.
func (w *Watcher) stop() {
	w.mu.Lock()
	w.stopped = true
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
	if w.fsw != nil {
		_ = w.fsw.Close()
		w.fsw = nil
	}
	w.mu.Unlock()
	w.wg.Wait()
}

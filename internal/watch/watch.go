// Package watch tails a spool directory and imports files dropped
// into it. Events are debounced per file so a file still being
// written is only imported once it has settled.
package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fsnotify/fsnotify"

	seekerr "github.com/logseek/logseek/internal/errors"
	"github.com/logseek/logseek/internal/importer"
)

// Options configures a spool watcher.
type Options struct {
	// Debounce is how long a file must stay quiet before import.
	Debounce time.Duration

	// Extensions is the allowed file extension list (with dots).
	Extensions []string

	// MaxFileSizeMB rejects files larger than this (0 = no limit).
	MaxFileSizeMB int
}

// DefaultOptions returns spool watcher defaults.
func DefaultOptions() Options {
	return Options{
		Debounce:   2 * time.Second,
		Extensions: []string{".txt", ".log", ".csv", ".gz"},
	}
}

// Result reports one imported spool file.
type Result struct {
	Path  string
	Stats importer.RunStats
	Err   error
}

// Watcher imports files that appear in a spool directory.
type Watcher struct {
	imp  *importer.Importer
	opts Options

	mu      sync.Mutex
	pending map[string]*time.Timer
	done    map[string]bool

	results chan Result
}

// New creates a spool watcher over imp.
func New(imp *importer.Importer, opts Options) *Watcher {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultOptions().Debounce
	}
	if len(opts.Extensions) == 0 {
		opts.Extensions = DefaultOptions().Extensions
	}
	return &Watcher{
		imp:     imp,
		opts:    opts,
		pending: make(map[string]*time.Timer),
		done:    make(map[string]bool),
		results: make(chan Result, 16),
	}
}

// Results returns per-file import outcomes. The channel is never
// closed; consume it for as long as Run is alive.
func (w *Watcher) Results() <-chan Result {
	return w.results
}

// Run watches dir until the context is canceled. Files already
// present when the watcher starts are imported first.
func (w *Watcher) Run(ctx context.Context, dir string) error {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return seekerr.New(seekerr.ErrCodeFileNotFound,
			"spool directory not found: "+dir, err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return seekerr.New(seekerr.ErrCodeInternal,
			"failed to create filesystem watcher", err)
	}
	defer func() { _ = fsw.Close() }()

	if err := fsw.Add(dir); err != nil {
		return seekerr.New(seekerr.ErrCodeFilePermission,
			"failed to watch "+dir, err)
	}

	slog.Info("watch_started",
		slog.String("dir", dir),
		slog.Duration("debounce", w.opts.Debounce))

	// Pick up anything already sitting in the spool.
	entries, err := os.ReadDir(dir)
	if err == nil {
		for _, e := range entries {
			if !e.IsDir() {
				w.schedule(ctx, filepath.Join(dir, e.Name()))
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			w.cancelPending()
			return ctx.Err()
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				w.schedule(ctx, event.Name)
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watch_error", slog.String("error", err.Error()))
		}
	}
}

// schedule arms (or re-arms) the debounce timer for path. Each write
// pushes the import out; the file imports only once writes stop.
func (w *Watcher) schedule(ctx context.Context, path string) {
	if !w.accepts(path) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.done[path] {
		return
	}
	if timer, ok := w.pending[path]; ok {
		timer.Reset(w.opts.Debounce)
		return
	}
	w.pending[path] = time.AfterFunc(w.opts.Debounce, func() {
		w.importFile(ctx, path)
	})
}

func (w *Watcher) accepts(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, allowed := range w.opts.Extensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

func (w *Watcher) importFile(ctx context.Context, path string) {
	w.mu.Lock()
	delete(w.pending, path)
	w.done[path] = true
	w.mu.Unlock()

	if ctx.Err() != nil {
		return
	}

	if err := w.checkSize(path); err != nil {
		w.emit(Result{Path: path, Err: err})
		return
	}

	stats, err := w.imp.RunFile(ctx, path)
	if err != nil {
		slog.Warn("watch_import_failed",
			slog.String("path", path),
			slog.String("error", err.Error()))
	} else {
		slog.Info("watch_imported",
			slog.String("path", path),
			slog.Int("inserted", stats.Inserted),
			slog.Int("duplicates", stats.Duplicates))
	}
	w.emit(Result{Path: path, Stats: stats, Err: err})
}

func (w *Watcher) checkSize(path string) error {
	if w.opts.MaxFileSizeMB <= 0 {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return seekerr.New(seekerr.ErrCodeFileNotFound,
			"spool file vanished: "+path, err)
	}
	limit := int64(w.opts.MaxFileSizeMB) * 1024 * 1024
	if info.Size() > limit {
		return seekerr.New(seekerr.ErrCodeFileTooLarge,
			"spool file exceeds size limit: "+path, nil).
			WithDetail("size", humanize.Bytes(uint64(info.Size())))
	}
	return nil
}

func (w *Watcher) emit(r Result) {
	select {
	case w.results <- r:
	default:
		// A slow consumer drops outcomes, never blocks imports.
	}
}

func (w *Watcher) cancelPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, timer := range w.pending {
		timer.Stop()
		delete(w.pending, path)
	}
}

package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	seekerr "github.com/logseek/logseek/internal/errors"
	"github.com/logseek/logseek/internal/importer"
	"github.com/logseek/logseek/internal/store"
)

func newTestWatcher(t *testing.T, opts Options) (*Watcher, *store.Store) {
	t.Helper()
	s, err := store.Open(store.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	imp := importer.New(s, importer.Config{Dedupe: true})
	return New(imp, opts), s
}

func waitResult(t *testing.T, w *Watcher) Result {
	t.Helper()
	select {
	case r := <-w.Results():
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for spool import")
		return Result{}
	}
}

func TestWatcher_ImportsDroppedFile(t *testing.T) {
	// Given: a running watcher over an empty spool
	dir := t.TempDir()
	w, s := newTestWatcher(t, Options{Debounce: 50 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx, dir) }()
	time.Sleep(100 * time.Millisecond)

	// When: a log file lands in the spool
	path := filepath.Join(dir, "drop.log")
	require.NoError(t, os.WriteFile(path, []byte("spooled alpha\nspooled beta\n"), 0o644))

	// Then: it gets imported once settled
	r := waitResult(t, w)
	require.NoError(t, r.Err)
	assert.Equal(t, path, r.Path)
	assert.Equal(t, 2, r.Stats.Inserted)

	count, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestWatcher_ImportsPreexistingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "existing.log")
	require.NoError(t, os.WriteFile(path, []byte("already here\n"), 0o644))

	w, _ := newTestWatcher(t, Options{Debounce: 50 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx, dir) }()

	r := waitResult(t, w)
	require.NoError(t, r.Err)
	assert.Equal(t, 1, r.Stats.Inserted)
}

func TestWatcher_IgnoresDisallowedExtensions(t *testing.T) {
	dir := t.TempDir()
	w, s := newTestWatcher(t, Options{Debounce: 50 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx, dir) }()
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "skip.tmp"), []byte("nope\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "take.log"), []byte("yep\n"), 0o644))

	r := waitResult(t, w)
	require.NoError(t, r.Err)
	assert.Equal(t, filepath.Join(dir, "take.log"), r.Path)

	count, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestWatcher_RejectsOversizedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "big.log")
	require.NoError(t, os.WriteFile(path, make([]byte, 2*1024*1024), 0o644))

	w, _ := newTestWatcher(t, Options{
		Debounce:      50 * time.Millisecond,
		MaxFileSizeMB: 1,
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx, dir) }()

	r := waitResult(t, w)
	require.Error(t, r.Err)
	assert.Equal(t, seekerr.ErrCodeFileTooLarge, seekerr.GetCode(r.Err))
}

func TestWatcher_MissingDirectory(t *testing.T) {
	w, _ := newTestWatcher(t, Options{})
	err := w.Run(context.Background(), "/nonexistent/spool")
	require.Error(t, err)
	assert.Equal(t, seekerr.ErrCodeFileNotFound, seekerr.GetCode(err))
}

func TestWatcher_Accepts(t *testing.T) {
	w, _ := newTestWatcher(t, Options{})
	assert.True(t, w.accepts("/spool/app.log"))
	assert.True(t, w.accepts("/spool/APP.LOG"))
	assert.True(t, w.accepts("/spool/dump.csv"))
	assert.True(t, w.accepts("/spool/archive.gz"))
	assert.False(t, w.accepts("/spool/notes.md"))
	assert.False(t, w.accepts("/spool/noext"))
}

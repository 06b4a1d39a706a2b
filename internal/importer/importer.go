// Package importer streams line-oriented input into the record store
// in atomic batches, with validation, deduplication accounting, and
// progress reporting.
package importer

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	seekerr "github.com/logseek/logseek/internal/errors"
	"github.com/logseek/logseek/internal/store"
)

// DefaultBatchSize balances transaction overhead against memory.
const DefaultBatchSize = 10000

// Config controls a single import run.
type Config struct {
	// BatchSize is the number of records committed per transaction.
	BatchSize int

	// Dedupe skips records whose content fingerprint already exists.
	Dedupe bool

	// MaxRecordSize rejects lines longer than this many bytes.
	// 0 disables the ceiling.
	MaxRecordSize int

	// Progress, when set, is invoked after every committed batch.
	Progress ProgressFunc
}

// Progress is a point-in-time view of a running import.
type Progress struct {
	LinesRead  int
	Inserted   int
	Duplicates int
	Skipped    int
	BytesRead  int64
	SizeHint   int64
}

// ProgressFunc receives progress updates. It is called from the
// import goroutine and must not block for long.
type ProgressFunc func(Progress)

// RunStats summarizes a completed (or aborted) import run. Counts
// reflect only what was durably committed.
type RunStats struct {
	LinesRead  int
	Inserted   int
	Duplicates int
	Invalid    int
	Oversized  int
	Empty      int
	Batches    int
	Elapsed    time.Duration
}

// Skipped is the total number of lines rejected before storage.
func (s RunStats) Skipped() int {
	return s.Invalid + s.Oversized + s.Empty
}

// Importer drives batched imports into a store.
type Importer struct {
	store  *store.Store
	config Config
}

// New creates an importer. Zero config fields get defaults.
func New(s *store.Store, cfg Config) *Importer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.MaxRecordSize < 0 {
		cfg.MaxRecordSize = 0
	}
	return &Importer{store: s, config: cfg}
}

type batch struct {
	lines []string
	read  int // lines consumed from the source, including skipped
	bytes int64
}

// Run imports every line from src. Lines are validated, batched, and
// committed atomically; a batch failure aborts the run but earlier
// batches stay committed. Cancellation is honored between batches, so
// a canceled run never leaves a partial batch behind.
func (imp *Importer) Run(ctx context.Context, src LineSource) (RunStats, error) {
	start := time.Now()
	stats := RunStats{}

	// The group context aborts both stages on first error; the
	// caller's context stays live for post-run work.
	g, gctx := errgroup.WithContext(ctx)
	batches := make(chan batch, 1)

	// Counters touched only by the reader until it exits.
	var invalid, oversized, empty int

	g.Go(func() error {
		defer close(batches)
		cur := batch{lines: make([]string, 0, imp.config.BatchSize)}
		flush := func() error {
			if cur.read == 0 {
				return nil
			}
			select {
			case batches <- cur:
				cur = batch{lines: make([]string, 0, imp.config.BatchSize)}
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		for {
			line, err := src.Next()
			if err == io.EOF {
				return flush()
			}
			if err != nil {
				return err
			}
			cur.read++
			cur.bytes += int64(len(line)) + 1

			trimmed := strings.TrimSpace(line)
			switch {
			case trimmed == "":
				empty++
			case imp.config.MaxRecordSize > 0 && len(trimmed) > imp.config.MaxRecordSize:
				oversized++
			case !utf8.ValidString(trimmed):
				invalid++
			default:
				cur.lines = append(cur.lines, trimmed)
			}

			if len(cur.lines) >= imp.config.BatchSize {
				if err := flush(); err != nil {
					return err
				}
			}
		}
	})

	g.Go(func() error {
		var bytesRead int64
		for b := range batches {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := imp.store.InsertBatch(gctx, b.lines, imp.config.Dedupe)
			if err != nil {
				return seekerr.New(seekerr.ErrCodeImportFailed,
					"batch commit failed", err)
			}
			stats.LinesRead += b.read
			stats.Inserted += res.Inserted
			stats.Duplicates += res.Duplicates
			if len(b.lines) > 0 {
				stats.Batches++
			}
			bytesRead += b.bytes

			if imp.config.Progress != nil {
				imp.config.Progress(Progress{
					LinesRead:  stats.LinesRead,
					Inserted:   stats.Inserted,
					Duplicates: stats.Duplicates,
					Skipped:    stats.LinesRead - stats.Inserted - stats.Duplicates,
					BytesRead:  bytesRead,
					SizeHint:   src.SizeHint(),
				})
			}
		}
		return nil
	})

	err := g.Wait()
	stats.Invalid = invalid
	stats.Oversized = oversized
	stats.Empty = empty
	stats.Elapsed = time.Since(start)

	if err != nil {
		slog.Warn("import_aborted",
			slog.Int("inserted", stats.Inserted),
			slog.Int("batches", stats.Batches),
			slog.String("error", err.Error()))
		return stats, err
	}

	// Merge the index after a large ingest; failure is non-fatal.
	if optErr := imp.store.Optimize(ctx); optErr != nil {
		slog.Warn("index_optimize_failed", slog.String("error", optErr.Error()))
	}

	slog.Info("import_complete",
		slog.Int("lines_read", stats.LinesRead),
		slog.Int("inserted", stats.Inserted),
		slog.Int("duplicates", stats.Duplicates),
		slog.Int("skipped", stats.Skipped()),
		slog.Duration("elapsed", stats.Elapsed))

	return stats, nil
}

// RunFile is a convenience wrapper that opens path and imports it.
func (imp *Importer) RunFile(ctx context.Context, path string) (RunStats, error) {
	src, err := NewFileSource(path)
	if err != nil {
		return RunStats{}, err
	}
	defer func() { _ = src.Close() }()
	return imp.Run(ctx, src)
}

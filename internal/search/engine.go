// Package search implements the query engine: sanitization, predicate
// construction, admission gating, and bounded execution against the
// record store.
package search

import (
	"context"
	"log/slog"
	"time"

	seekerr "github.com/logseek/logseek/internal/errors"
	"github.com/logseek/logseek/internal/store"
)

// AdmissionGate throttles search calls per caller. Implementations
// live outside the engine; the engine only consults the verdict.
type AdmissionGate interface {
	// Allow returns a non-nil error when the caller must wait.
	Allow(caller string) error
}

// nopGate admits everything.
type nopGate struct{}

func (nopGate) Allow(string) error { return nil }

// Config configures the engine.
type Config struct {
	// DefaultLimit is the page size used when the caller passes none.
	DefaultLimit int

	// MaxLimit caps the page size regardless of what the caller asks.
	MaxLimit int
}

// DefaultConfig returns engine defaults.
func DefaultConfig() Config {
	return Config{
		DefaultLimit: 30,
		MaxLimit:     100,
	}
}

// Options are per-call search options.
type Options struct {
	// Limit is the maximum number of results (0 = engine default).
	Limit int

	// Caller identifies the requester for admission gating.
	Caller string

	// Structured passes the query to the index's native grammar
	// instead of sanitizing it.
	Structured bool
}

// Engine executes sanitized full-text queries against a store.
// It holds no cross-call state, so any number of engines can run
// concurrently against one store.
type Engine struct {
	store  *store.Store
	gate   AdmissionGate
	config Config
}

// New creates a search engine. A nil gate admits all callers.
func New(s *store.Store, gate AdmissionGate, cfg Config) *Engine {
	if gate == nil {
		gate = nopGate{}
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = DefaultConfig().DefaultLimit
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = DefaultConfig().MaxLimit
	}
	return &Engine{store: s, gate: gate, config: cfg}
}

// Page is one bounded slice of results plus the total number of
// matching records in the store, so callers can report overflow.
type Page struct {
	Hits  []store.SearchResult
	Total int64
}

// Search sanitizes and executes a query, returning at most the
// configured limit of results ordered by score descending, ties by id
// ascending. Results carry full record content.
func (e *Engine) Search(ctx context.Context, query string, opts Options) (Page, error) {
	start := time.Now()

	if err := e.gate.Allow(opts.Caller); err != nil {
		return Page{}, err
	}

	var (
		pred store.Predicate
		err  error
	)
	if opts.Structured {
		pred, err = ParseStructured(query)
	} else {
		pred, err = ParseQuery(query)
	}
	if err != nil {
		return Page{}, err
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = e.config.DefaultLimit
	}
	if limit > e.config.MaxLimit {
		limit = e.config.MaxLimit
	}

	hits, err := e.store.Search(ctx, pred, limit)
	if err != nil {
		return Page{}, err
	}

	// A short page already is the full match set; only a full page
	// needs the separate count query.
	total := int64(len(hits))
	if len(hits) == limit {
		if total, err = e.store.MatchCount(ctx, pred); err != nil {
			return Page{}, err
		}
	}

	slog.Info("search_complete",
		slog.String("query", query),
		slog.Int("results", len(hits)),
		slog.Int64("total", total),
		slog.Duration("elapsed", time.Since(start)))

	return Page{Hits: hits, Total: total}, nil
}

// Verify nopGate satisfies the gate contract at compile time.
var _ AdmissionGate = nopGate{}

// IsInvalidQuery reports whether err is a query validation failure
// (empty query or rejected syntax) rather than a storage problem.
func IsInvalidQuery(err error) bool {
	code := seekerr.GetCode(err)
	return code == seekerr.ErrCodeInvalidQuery || code == seekerr.ErrCodeQueryEmpty
}

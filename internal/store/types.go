// Package store provides the durable record store for logseek: an
// append-mostly SQLite table of log records with a content fingerprint
// uniqueness constraint and a synchronously maintained full-text index.
package store

import (
	"context"
	"time"
)

// Record is one committed log line.
type Record struct {
	// ID is assigned by the store, monotonic in commit order, never reused.
	ID int64

	// Content is the raw log line (UTF-8, unbounded length).
	Content string

	// InsertedAt is the commit timestamp, set once.
	InsertedAt time.Time
}

// BatchResult reports the outcome of one atomic batch insert.
type BatchResult struct {
	// Inserted is the number of records that became visible.
	Inserted int

	// Duplicates is the number of records skipped by the fingerprint
	// uniqueness constraint. Not an error.
	Duplicates int
}

// SearchResult pairs a record with its relevance score.
type SearchResult struct {
	Record Record
	Score  float64
}

// Stats is a single consistent snapshot of store statistics.
type Stats struct {
	RecordCount     int64
	SizeOnDiskBytes int64
}

// Predicate is the structured search predicate built by the query
// engine. Terms and phrases carry pre-tokenized, lowercased tokens;
// they are combined with OR semantics and ranked by relevance.
type Predicate struct {
	// Terms are exact-token matches.
	Terms []string

	// Phrases are runs of tokens that must appear adjacent, in order.
	Phrases [][]string

	// Prefix marks the final term as a prefix match (e.g. mid-typing).
	Prefix bool

	// Raw, when non-empty, is passed to the backend's native query
	// grammar unmodified. Only set when the caller explicitly opted
	// into structured syntax.
	Raw string
}

// Empty reports whether the predicate matches nothing.
func (p Predicate) Empty() bool {
	return len(p.Terms) == 0 && len(p.Phrases) == 0 && p.Raw == ""
}

// IndexDoc is a record handed to a text index backend.
type IndexDoc struct {
	ID      int64
	Content string
}

// IndexHit is a single match from a text index backend.
type IndexHit struct {
	ID    int64
	Score float64
}

// TextIndex is the pluggable full-text index backend used when the
// index lives outside the record transaction (the bleve backend).
// The default fts5 backend is maintained inside the store's own
// transactions and does not go through this interface.
type TextIndex interface {
	// Add indexes documents. Safe to call with documents that are
	// already indexed (re-index replaces).
	Add(ctx context.Context, docs []IndexDoc) error

	// Query returns matching record ids with relevance scores.
	Query(ctx context.Context, pred Predicate, limit int) ([]IndexHit, error)

	// Count returns the total number of matching documents.
	Count(ctx context.Context, pred Predicate) (int64, error)

	// DeleteAll removes every entry.
	DeleteAll() error

	// SizeOnDisk returns the index footprint in bytes.
	SizeOnDisk() (int64, error)

	Close() error
}

// Backend names for the full-text index.
const (
	BackendFTS5  = "fts5"
	BackendBleve = "bleve"
)

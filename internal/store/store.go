package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	seekerr "github.com/logseek/logseek/internal/errors"
)

// Options configures a Store.
type Options struct {
	// Path is the SQLite store file. Empty creates an in-memory store
	// for testing.
	Path string

	// Backend selects the full-text index backend: BackendFTS5
	// (default) or BackendBleve.
	Backend string

	// CacheSizeMB is the SQLite page cache size (default: 64).
	CacheSizeMB int
}

// Store is the durable record store. It exclusively owns the records
// table and the full-text index; the importer and search engine only
// reference them through its operations.
//
// Concurrency: one batch commits at a time (writeMu plus a cross-
// process lock file); readers run on a separate connection pool and
// observe WAL snapshots, so a search never sees a partial batch.
type Store struct {
	writeMu sync.Mutex
	writeDB *sql.DB
	readDB  *sql.DB
	flk     *flock.Flock
	index   TextIndex // nil for the fts5 backend
	path    string
	backend string
	closed  bool
	mu      sync.RWMutex // guards closed
}

// validateIntegrity checks a store file before opening. The store is
// primary data, so corruption is reported, never auto-cleared.
func validateIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil // will be created
	}

	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("cannot open for validation: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA quick_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("store corrupted: %s", result)
	}
	return nil
}

// Open opens or creates the record store.
func Open(opts Options) (*Store, error) {
	backend := opts.Backend
	if backend == "" {
		backend = BackendFTS5
	}
	if opts.CacheSizeMB <= 0 {
		opts.CacheSizeMB = 64
	}

	dsn := ":memory:"
	if opts.Path != "" {
		dir := filepath.Dir(opts.Path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}

		if err := validateIntegrity(opts.Path); err != nil {
			return nil, seekerr.New(seekerr.ErrCodeCorruptStore,
				fmt.Sprintf("store file %s failed validation", opts.Path), err).
				WithSuggestion("restore from backup or move the file aside and re-import")
		}
		dsn = opts.Path
	}

	writeDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	// Single connection on the write side: one batch commits at a time.
	writeDB.SetMaxOpenConns(1)
	writeDB.SetMaxIdleConns(1)
	writeDB.SetConnMaxLifetime(0)

	// WAL keeps readers on snapshots while a batch commits.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		fmt.Sprintf("PRAGMA cache_size = -%d", opts.CacheSizeMB*1024),
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := writeDB.Exec(pragma); err != nil {
			_ = writeDB.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	s := &Store{
		writeDB: writeDB,
		readDB:  writeDB,
		path:    opts.Path,
		backend: backend,
	}

	if err := s.initSchema(); err != nil {
		_ = writeDB.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if opts.Path != "" {
		// Dedicated read pool so searches are not queued behind the
		// single write connection.
		readDB, err := sql.Open("sqlite", opts.Path)
		if err != nil {
			_ = writeDB.Close()
			return nil, fmt.Errorf("failed to open read pool: %w", err)
		}
		if _, err := readDB.Exec("PRAGMA busy_timeout = 5000"); err != nil {
			_ = readDB.Close()
			_ = writeDB.Close()
			return nil, fmt.Errorf("failed to configure read pool: %w", err)
		}
		s.readDB = readDB
		s.flk = flock.New(opts.Path + ".lock")
	}

	if backend == BackendBleve {
		idx, err := NewBleveIndex(blevePath(opts.Path))
		if err != nil {
			_ = s.closeDBs()
			return nil, err
		}
		s.index = idx

		if err := s.reconcileIndex(context.Background()); err != nil {
			_ = idx.Close()
			_ = s.closeDBs()
			return nil, err
		}
	}

	return s, nil
}

// blevePath derives the bleve index directory from the store file.
// Empty for in-memory stores (bleve then runs in memory too).
func blevePath(storePath string) string {
	if storePath == "" {
		return ""
	}
	return storePath + ".bleve"
}

// initSchema creates the records table and, for the fts5 backend, the
// external-content FTS table plus the triggers that keep it committed
// in the same transaction as its records.
func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS records (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		content     TEXT NOT NULL,
		fingerprint TEXT UNIQUE,
		inserted_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS meta (
		key   TEXT PRIMARY KEY,
		value TEXT
	);
	`
	if _, err := s.writeDB.Exec(schema); err != nil {
		return err
	}

	if s.backend != BackendFTS5 {
		return nil
	}

	ftsSchema := `
	CREATE VIRTUAL TABLE IF NOT EXISTS records_fts USING fts5(
		content,
		content='records',
		content_rowid='id',
		tokenize='unicode61'
	);

	CREATE TRIGGER IF NOT EXISTS records_ai AFTER INSERT ON records BEGIN
		INSERT INTO records_fts(rowid, content) VALUES (new.id, new.content);
	END;

	CREATE TRIGGER IF NOT EXISTS records_ad AFTER DELETE ON records BEGIN
		INSERT INTO records_fts(records_fts, rowid, content)
		VALUES ('delete', old.id, old.content);
	END;
	`
	_, err := s.writeDB.Exec(ftsSchema)
	return err
}

// InsertBatch inserts a batch of lines as one atomic transaction.
// With dedupe enabled each line's fingerprint is checked by the UNIQUE
// constraint at commit time; conflicts are counted, not errors. With
// dedupe disabled no fingerprint is computed (fingerprint NULL rows do
// not participate in the constraint).
func (s *Store) InsertBatch(ctx context.Context, lines []string, dedupe bool) (BatchResult, error) {
	var res BatchResult
	if len(lines) == 0 {
		return res, nil
	}

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return res, seekerr.StorageError("store is closed", nil)
	}
	s.mu.RUnlock()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.flk != nil {
		if err := s.flk.Lock(); err != nil {
			return res, seekerr.StorageError("failed to acquire writer lock", err)
		}
		defer func() { _ = s.flk.Unlock() }()
	}

	tx, err := s.writeDB.BeginTx(ctx, nil)
	if err != nil {
		return res, classifyStorageErr("begin batch", err)
	}
	defer func() { _ = tx.Rollback() }()

	dedupeStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records (content, fingerprint, inserted_at)
		VALUES (?, ?, ?)
		ON CONFLICT(fingerprint) DO NOTHING
		RETURNING id`)
	if err != nil {
		return res, classifyStorageErr("prepare insert", err)
	}
	defer dedupeStmt.Close()

	plainStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records (content, inserted_at)
		VALUES (?, ?)
		RETURNING id`)
	if err != nil {
		return res, classifyStorageErr("prepare insert", err)
	}
	defer plainStmt.Close()

	now := time.Now().UTC().Unix()
	var indexed []IndexDoc

	for _, line := range lines {
		var id int64
		if dedupe {
			err = dedupeStmt.QueryRowContext(ctx, line, Fingerprint(line), now).Scan(&id)
			if errors.Is(err, sql.ErrNoRows) {
				// Fingerprint conflict: duplicate of committed data or
				// of an earlier line in this same batch.
				res.Duplicates++
				continue
			}
		} else {
			err = plainStmt.QueryRowContext(ctx, line, now).Scan(&id)
		}
		if err != nil {
			return BatchResult{}, classifyStorageErr("insert record", err)
		}
		res.Inserted++
		if s.index != nil {
			indexed = append(indexed, IndexDoc{ID: id, Content: line})
		}
	}

	if err := tx.Commit(); err != nil {
		return BatchResult{}, classifyStorageErr("commit batch", err)
	}

	if s.index != nil && len(indexed) > 0 {
		if err := s.index.Add(ctx, indexed); err != nil {
			// Records are committed; the index catches up on next open.
			slog.Warn("index_lag",
				slog.String("backend", s.backend),
				slog.String("error", err.Error()))
			return res, nil
		}
		s.setIndexedThrough(ctx, indexed[len(indexed)-1].ID)
	}

	return res, nil
}

// Search executes a structured predicate against the full-text index
// and returns at most limit results ordered by score descending, ties
// broken by id ascending.
func (s *Store) Search(ctx context.Context, pred Predicate, limit int) ([]SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, seekerr.StorageError("store is closed", nil)
	}

	if pred.Empty() {
		return nil, seekerr.EmptyQuery()
	}
	if limit <= 0 {
		limit = 1
	}

	if s.index != nil {
		return s.searchBleve(ctx, pred, limit)
	}
	return s.searchFTS5(ctx, pred, limit)
}

// searchFTS5 runs the predicate as an FTS5 MATCH with bm25 ranking.
func (s *Store) searchFTS5(ctx context.Context, pred Predicate, limit int) ([]SearchResult, error) {
	match := pred.fts5Query()

	// bm25() returns negative scores, lower = better.
	rows, err := s.readDB.QueryContext(ctx, `
		SELECT r.id, r.content, r.inserted_at, bm25(records_fts) AS score
		FROM records_fts
		JOIN records r ON r.id = records_fts.rowid
		WHERE records_fts MATCH ?
		ORDER BY score ASC, r.id ASC
		LIMIT ?`, match, limit)
	if err != nil {
		if isQuerySyntaxErr(err) {
			return nil, seekerr.InvalidQuery(fmt.Sprintf("index rejected query: %v", err))
		}
		return nil, classifyStorageErr("search", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var rec Record
		var epoch int64
		var score float64
		if err := rows.Scan(&rec.ID, &rec.Content, &epoch, &score); err != nil {
			return nil, classifyStorageErr("scan result", err)
		}
		rec.InsertedAt = time.Unix(epoch, 0).UTC()
		results = append(results, SearchResult{Record: rec, Score: -score})
	}
	if err := rows.Err(); err != nil {
		return nil, classifyStorageErr("search", err)
	}
	return results, nil
}

// searchBleve queries the bleve backend, then hydrates record content
// from the records table. Hits not yet visible in the records table
// (a reconcile gap) are dropped rather than returned half-formed.
func (s *Store) searchBleve(ctx context.Context, pred Predicate, limit int) ([]SearchResult, error) {
	hits, err := s.index.Query(ctx, pred, limit)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(hits))
	args := make([]any, len(hits))
	scores := make(map[int64]float64, len(hits))
	for i, h := range hits {
		placeholders[i] = "?"
		args[i] = h.ID
		scores[h.ID] = h.Score
	}

	query := fmt.Sprintf(`
		SELECT id, content, inserted_at FROM records
		WHERE id IN (%s)`, strings.Join(placeholders, ","))
	rows, err := s.readDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classifyStorageErr("hydrate results", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var rec Record
		var epoch int64
		if err := rows.Scan(&rec.ID, &rec.Content, &epoch); err != nil {
			return nil, classifyStorageErr("scan result", err)
		}
		rec.InsertedAt = time.Unix(epoch, 0).UTC()
		results = append(results, SearchResult{Record: rec, Score: scores[rec.ID]})
	}
	if err := rows.Err(); err != nil {
		return nil, classifyStorageErr("hydrate results", err)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Record.ID < results[j].Record.ID
	})
	return results, nil
}

// MatchCount returns the total number of records matching pred,
// independent of any result limit.
func (s *Store) MatchCount(ctx context.Context, pred Predicate) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, seekerr.StorageError("store is closed", nil)
	}

	if pred.Empty() {
		return 0, seekerr.EmptyQuery()
	}

	if s.index != nil {
		return s.index.Count(ctx, pred)
	}

	var count int64
	err := s.readDB.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM records_fts WHERE records_fts MATCH ?`,
		pred.fts5Query()).Scan(&count)
	if err != nil {
		if isQuerySyntaxErr(err) {
			return 0, seekerr.InvalidQuery(fmt.Sprintf("index rejected query: %v", err))
		}
		return 0, classifyStorageErr("count matches", err)
	}
	return count, nil
}

// Count returns the number of committed records.
func (s *Store) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, seekerr.StorageError("store is closed", nil)
	}

	var count int64
	if err := s.readDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&count); err != nil {
		return 0, classifyStorageErr("count", err)
	}
	return count, nil
}

// SizeOnDisk returns the storage footprint in bytes, including WAL and
// index structures.
func (s *Store) SizeOnDisk() (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, seekerr.StorageError("store is closed", nil)
	}

	if s.path == "" {
		// In-memory store: page count times page size.
		var pageCount, pageSize int64
		if err := s.readDB.QueryRow("PRAGMA page_count").Scan(&pageCount); err != nil {
			return 0, classifyStorageErr("size", err)
		}
		if err := s.readDB.QueryRow("PRAGMA page_size").Scan(&pageSize); err != nil {
			return 0, classifyStorageErr("size", err)
		}
		return pageCount * pageSize, nil
	}

	var total int64
	for _, p := range []string{s.path, s.path + "-wal", s.path + "-shm"} {
		if info, err := os.Stat(p); err == nil {
			total += info.Size()
		}
	}
	if s.index != nil {
		if n, err := s.index.SizeOnDisk(); err == nil {
			total += n
		}
	}
	return total, nil
}

// Stats returns a consistent snapshot of record count and size.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	count, err := s.Count(ctx)
	if err != nil {
		return Stats{}, err
	}
	size, err := s.SizeOnDisk()
	if err != nil {
		return Stats{}, err
	}
	return Stats{RecordCount: count, SizeOnDiskBytes: size}, nil
}

// ClearAll irreversibly removes every record and index entry in one
// atomic operation. Authorization is the caller's responsibility.
func (s *Store) ClearAll(ctx context.Context) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return seekerr.StorageError("store is closed", nil)
	}
	s.mu.RUnlock()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.flk != nil {
		if err := s.flk.Lock(); err != nil {
			return seekerr.StorageError("failed to acquire writer lock", err)
		}
		defer func() { _ = s.flk.Unlock() }()
	}

	tx, err := s.writeDB.BeginTx(ctx, nil)
	if err != nil {
		return classifyStorageErr("begin clear", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM records`); err != nil {
		return classifyStorageErr("clear records", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM meta`); err != nil {
		return classifyStorageErr("clear meta", err)
	}
	if err := tx.Commit(); err != nil {
		return classifyStorageErr("commit clear", err)
	}

	if s.index != nil {
		if err := s.index.DeleteAll(); err != nil {
			return err
		}
	}

	slog.Warn("store_cleared", slog.String("path", s.path))
	return nil
}

// Optimize compacts the full-text index after a bulk import run.
// Best effort; only meaningful for the fts5 backend.
func (s *Store) Optimize(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed || s.backend != BackendFTS5 {
		return nil
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err := s.writeDB.ExecContext(ctx, `INSERT INTO records_fts(records_fts) VALUES('optimize')`)
	return err
}

// Close checkpoints and closes the store. Idempotent.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.index != nil {
		_ = s.index.Close()
	}

	_, _ = s.writeDB.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.closeDBs()
}

func (s *Store) closeDBs() error {
	var firstErr error
	if s.readDB != nil && s.readDB != s.writeDB {
		firstErr = s.readDB.Close()
	}
	if err := s.writeDB.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// metaKeyIndexedThrough tracks the highest record id the bleve backend
// has indexed, so a crash between the record commit and the index
// batch is repaired on next open.
const metaKeyIndexedThrough = "bleve_indexed_through"

func (s *Store) setIndexedThrough(ctx context.Context, id int64) {
	_, err := s.writeDB.ExecContext(ctx, `
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		metaKeyIndexedThrough, fmt.Sprintf("%d", id))
	if err != nil {
		slog.Warn("meta_update_failed", slog.String("error", err.Error()))
	}
}

// reconcileIndex re-indexes records committed after the last
// successful bleve batch.
func (s *Store) reconcileIndex(ctx context.Context) error {
	var through int64
	var value string
	err := s.writeDB.QueryRowContext(ctx,
		`SELECT value FROM meta WHERE key = ?`, metaKeyIndexedThrough).Scan(&value)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		through = 0
	case err != nil:
		return classifyStorageErr("read index watermark", err)
	default:
		_, _ = fmt.Sscanf(value, "%d", &through)
	}

	rows, err := s.writeDB.QueryContext(ctx, `
		SELECT id, content FROM records WHERE id > ? ORDER BY id`, through)
	if err != nil {
		return classifyStorageErr("read unindexed records", err)
	}
	defer rows.Close()

	const reindexBatch = 1000
	var docs []IndexDoc
	flush := func() error {
		if len(docs) == 0 {
			return nil
		}
		if err := s.index.Add(ctx, docs); err != nil {
			return err
		}
		s.setIndexedThrough(ctx, docs[len(docs)-1].ID)
		docs = docs[:0]
		return nil
	}

	count := 0
	for rows.Next() {
		var doc IndexDoc
		if err := rows.Scan(&doc.ID, &doc.Content); err != nil {
			return classifyStorageErr("scan record", err)
		}
		docs = append(docs, doc)
		count++
		if len(docs) >= reindexBatch {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := rows.Err(); err != nil {
		return classifyStorageErr("read unindexed records", err)
	}
	if err := flush(); err != nil {
		return err
	}

	if count > 0 {
		slog.Info("index_reconciled", slog.Int("records", count))
	}
	return nil
}

// fts5Query renders the predicate as FTS5 MATCH syntax. Structured
// tokens are alphanumeric-only, so unquoted terms cannot be parsed as
// control syntax; phrases are double-quoted.
func (p Predicate) fts5Query() string {
	if p.Raw != "" {
		return p.Raw
	}

	var parts []string
	for i, t := range p.Terms {
		if p.Prefix && i == len(p.Terms)-1 {
			parts = append(parts, t+"*")
			continue
		}
		parts = append(parts, t)
	}
	for _, ph := range p.Phrases {
		parts = append(parts, `"`+strings.Join(ph, " ")+`"`)
	}
	return strings.Join(parts, " OR ")
}

// isQuerySyntaxErr reports whether an FTS5 error is a query grammar
// rejection rather than a storage failure.
func isQuerySyntaxErr(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "fts5: syntax error") ||
		strings.Contains(msg, "syntax error") ||
		strings.Contains(msg, "unknown special query") ||
		strings.Contains(msg, "no such column")
}

// classifyStorageErr wraps a store-layer error with the matching code.
func classifyStorageErr(op string, err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "database or disk is full"):
		return seekerr.New(seekerr.ErrCodeDiskFull, op+": disk full", err)
	case strings.Contains(msg, "malformed") || strings.Contains(msg, "corrupt"):
		return seekerr.New(seekerr.ErrCodeCorruptStore, op+": store corrupted", err)
	default:
		return seekerr.New(seekerr.ErrCodeStorageFailure, op+" failed", err)
	}
}

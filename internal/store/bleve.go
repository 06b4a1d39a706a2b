package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"
	"github.com/blevesearch/bleve/v2/search/query"

	seekerr "github.com/logseek/logseek/internal/errors"
)

const (
	// logTokenizerName is the registered name of the log tokenizer.
	logTokenizerName = "log_tokenizer"

	// logAnalyzerName is the registered name of the log analyzer.
	logAnalyzerName = "log_analyzer"
)

func init() {
	registry.RegisterTokenizer(logTokenizerName, logTokenizerConstructor)
}

// BleveIndex is the alternate full-text index backend. Unlike the
// default fts5 backend it lives outside the record transaction; the
// store reconciles it against the records table on open.
type BleveIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	closed bool
}

// bleveRecord is the document shape handed to bleve.
type bleveRecord struct {
	Content string `json:"content"`
}

// NewBleveIndex creates or opens a bleve index at path.
// An empty path creates an in-memory index for testing.
func NewBleveIndex(path string) (*BleveIndex, error) {
	indexMapping, err := createLogMapping()
	if err != nil {
		return nil, fmt.Errorf("failed to create index mapping: %w", err)
	}

	var idx bleve.Index
	if path == "" {
		idx, err = bleve.NewMemOnly(indexMapping)
	} else {
		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, indexMapping)
		}
	}
	if err != nil {
		return nil, seekerr.New(seekerr.ErrCodeCorruptStore,
			fmt.Sprintf("failed to open text index at %s", path), err).
			WithSuggestion("remove the index directory; it is rebuilt from the record store")
	}

	return &BleveIndex{index: idx, path: path}, nil
}

// createLogMapping builds the bleve mapping with the shared log
// tokenizer so index-time and query-time tokenization are identical.
func createLogMapping() (*mapping.IndexMappingImpl, error) {
	indexMapping := bleve.NewIndexMapping()

	err := indexMapping.AddCustomAnalyzer(logAnalyzerName, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     logTokenizerName,
		"token_filters": []string{},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add custom analyzer: %w", err)
	}
	indexMapping.DefaultAnalyzer = logAnalyzerName

	return indexMapping, nil
}

// Add indexes documents in one bleve batch.
func (b *BleveIndex) Add(ctx context.Context, docs []IndexDoc) error {
	if len(docs) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return seekerr.StorageError("text index is closed", nil)
	}

	batch := b.index.NewBatch()
	for _, doc := range docs {
		if err := batch.Index(strconv.FormatInt(doc.ID, 10), bleveRecord{Content: doc.Content}); err != nil {
			return seekerr.StorageError(fmt.Sprintf("failed to index record %d", doc.ID), err)
		}
	}

	if err := b.index.Batch(batch); err != nil {
		return seekerr.StorageError("failed to execute index batch", err)
	}
	return nil
}

// Query executes the structured predicate and returns scored hits.
func (b *BleveIndex) Query(ctx context.Context, pred Predicate, limit int) ([]IndexHit, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, seekerr.StorageError("text index is closed", nil)
	}

	q, err := pred.bleveQuery()
	if err != nil {
		return nil, err
	}

	req := bleve.NewSearchRequest(q)
	req.Size = limit
	req.SortBy([]string{"-_score", "_id"})

	result, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		if pred.Raw != "" {
			return nil, seekerr.InvalidQuery(fmt.Sprintf("index rejected query: %v", err))
		}
		return nil, seekerr.StorageError("index search failed", err)
	}

	hits := make([]IndexHit, 0, len(result.Hits))
	for _, hit := range result.Hits {
		id, err := strconv.ParseInt(hit.ID, 10, 64)
		if err != nil {
			continue // foreign document, not one of ours
		}
		hits = append(hits, IndexHit{ID: id, Score: hit.Score})
	}
	return hits, nil
}

// Count returns the total number of documents matching the predicate.
func (b *BleveIndex) Count(ctx context.Context, pred Predicate) (int64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return 0, seekerr.StorageError("text index is closed", nil)
	}

	q, err := pred.bleveQuery()
	if err != nil {
		return 0, err
	}

	// Size 0 skips hit collection; only the total comes back.
	req := bleve.NewSearchRequest(q)
	req.Size = 0

	result, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		if pred.Raw != "" {
			return 0, seekerr.InvalidQuery(fmt.Sprintf("index rejected query: %v", err))
		}
		return 0, seekerr.StorageError("index count failed", err)
	}
	return int64(result.Total), nil
}

// bleveQuery renders the predicate as a bleve query: a disjunction of
// term, phrase, and prefix queries over the content field.
func (p Predicate) bleveQuery() (query.Query, error) {
	if p.Raw != "" {
		q := bleve.NewQueryStringQuery(p.Raw)
		return q, nil
	}

	var clauses []query.Query
	for i, t := range p.Terms {
		if p.Prefix && i == len(p.Terms)-1 {
			pq := bleve.NewPrefixQuery(t)
			pq.SetField("content")
			clauses = append(clauses, pq)
			continue
		}
		tq := bleve.NewTermQuery(t)
		tq.SetField("content")
		clauses = append(clauses, tq)
	}
	for _, ph := range p.Phrases {
		clauses = append(clauses, bleve.NewPhraseQuery(ph, "content"))
	}

	if len(clauses) == 0 {
		return nil, seekerr.EmptyQuery()
	}
	return bleve.NewDisjunctionQuery(clauses...), nil
}

// DeleteAll removes every entry. File-backed indexes are recreated
// from scratch; in-memory indexes are emptied document by document.
func (b *BleveIndex) DeleteAll() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return seekerr.StorageError("text index is closed", nil)
	}

	if b.path != "" {
		if err := b.index.Close(); err != nil {
			return seekerr.StorageError("failed to close text index", err)
		}
		if err := os.RemoveAll(b.path); err != nil {
			return seekerr.StorageError("failed to remove text index", err)
		}
		fresh, err := NewBleveIndex(b.path)
		if err != nil {
			return err
		}
		b.index = fresh.index
		return nil
	}

	docCount, _ := b.index.DocCount()
	req := bleve.NewSearchRequest(bleve.NewMatchAllQuery())
	req.Size = int(docCount)
	result, err := b.index.Search(req)
	if err != nil {
		return seekerr.StorageError("failed to enumerate index", err)
	}
	batch := b.index.NewBatch()
	for _, hit := range result.Hits {
		batch.Delete(hit.ID)
	}
	if err := b.index.Batch(batch); err != nil {
		return seekerr.StorageError("failed to clear index", err)
	}
	return nil
}

// SizeOnDisk returns the index directory footprint in bytes.
func (b *BleveIndex) SizeOnDisk() (int64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.path == "" {
		return 0, nil
	}

	var total int64
	err := filepath.Walk(b.path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return total, err
}

// Close closes the index. Idempotent.
func (b *BleveIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	if b.index != nil {
		return b.index.Close()
	}
	return nil
}

// Verify interface implementation
var _ TextIndex = (*BleveIndex)(nil)

// logTokenizerConstructor creates the log tokenizer for bleve.
func logTokenizerConstructor(config map[string]interface{}, cache *registry.Cache) (analysis.Tokenizer, error) {
	return &bleveLogTokenizer{}, nil
}

// bleveLogTokenizer adapts Tokenize to bleve's analysis interface.
type bleveLogTokenizer struct{}

// Tokenize implements analysis.Tokenizer.
func (t *bleveLogTokenizer) Tokenize(input []byte) analysis.TokenStream {
	text := string(input)
	tokens := Tokenize(text)

	result := make(analysis.TokenStream, 0, len(tokens))
	pos := 1
	offset := 0

	for _, token := range tokens {
		start := strings.Index(strings.ToLower(text[offset:]), token)
		if start == -1 {
			start = offset
		} else {
			start += offset
		}
		end := start + len(token)

		result = append(result, &analysis.Token{
			Term:     []byte(token),
			Start:    start,
			End:      end,
			Position: pos,
			Type:     analysis.AlphaNumeric,
		})
		pos++
		if end <= len(text) {
			offset = end
		}
	}

	return result
}

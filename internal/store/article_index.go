package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/index/scorch"
	"github.com/blevesearch/bleve/v2/index/scorch/mergeplan"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	fserrors "github.com/Aman-CERP/feedsearch/internal/errors"
)

// ArticleIndex wraps a bleve index of ArticleDocuments.
// Searches hold the read lock; batches, reset and optimize hold the write lock.
type ArticleIndex struct {
	mu        sync.RWMutex
	index     bleve.Index
	mapping   *mapping.IndexMappingImpl
	path      string
	closed    bool
	recovered bool
	logger    *slog.Logger
}

// validateIndexIntegrity checks an on-disk index before opening it.
// Returns nil if valid or absent, an error describing the corruption otherwise.
func validateIndexIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	metaPath := filepath.Join(path, "index_meta.json")
	info, err := os.Stat(metaPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("index_meta.json missing (corrupted index)")
	}
	if err != nil {
		return fmt.Errorf("cannot stat index_meta.json: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("index_meta.json is empty (corrupted)")
	}

	data, err := os.ReadFile(metaPath)
	if err != nil {
		return fmt.Errorf("cannot read index_meta.json: %w", err)
	}
	var meta map[string]interface{}
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("index_meta.json is corrupt: %w", err)
	}
	return nil
}

// isCorruptionError checks if an error from bleve.Open indicates corruption.
func isCorruptionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, bleve.ErrorIndexMetaCorrupt) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "unexpected end of JSON") ||
		strings.Contains(msg, "error parsing mapping JSON") ||
		strings.Contains(msg, "failed to load segment") ||
		strings.Contains(msg, "error opening bolt")
}

// OpenArticleIndex opens the index at path, creating it when missing.
// An empty path creates an in-memory index. A corrupted on-disk index is
// removed and recreated empty; Recovered then reports true so the caller
// can rebuild it.
func OpenArticleIndex(path string, logger *slog.Logger) (*ArticleIndex, error) {
	if logger == nil {
		logger = slog.Default()
	}
	m, err := createIndexMapping()
	if err != nil {
		return nil, fmt.Errorf("failed to create index mapping: %w", err)
	}

	x := &ArticleIndex{mapping: m, path: path, logger: logger}
	if path == "" {
		if x.index, err = bleve.NewMemOnly(m); err != nil {
			return nil, fmt.Errorf("failed to create in-memory index: %w", err)
		}
		return x, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	if validErr := validateIndexIntegrity(path); validErr != nil {
		if err := x.clear(validErr); err != nil {
			return nil, err
		}
	}

	idx, err := bleve.Open(path)
	switch {
	case errors.Is(err, bleve.ErrorIndexPathDoesNotExist):
		idx, err = bleve.New(path, m)
	case isCorruptionError(err):
		if clearErr := x.clear(err); clearErr != nil {
			return nil, clearErr
		}
		idx, err = bleve.New(path, m)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open index %s: %w", path, err)
	}

	x.index = idx
	return x, nil
}

// clear removes a corrupted index directory.
func (x *ArticleIndex) clear(cause error) error {
	x.logger.Warn("article_index_corrupted",
		slog.String("path", x.path),
		slog.String("error", cause.Error()))

	if err := os.RemoveAll(x.path); err != nil {
		return fserrors.New(fserrors.ErrCodeCorruptIndex,
			fmt.Sprintf("index corrupted at %s and cannot be removed", x.path), err)
	}
	x.recovered = true
	x.logger.Info("article_index_cleared",
		slog.String("path", x.path),
		slog.String("reason", "corruption detected, reindex scheduled"))
	return nil
}

// Recovered reports whether a corrupted index was discarded at open.
func (x *ArticleIndex) Recovered() bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.recovered
}

func (x *ArticleIndex) unavailable() error {
	return fserrors.EngineUnavailable("article index is closed", nil)
}

// Apply upserts docs and deletes ids in a single batch.
func (x *ArticleIndex) Apply(_ context.Context, docs []*ArticleDocument, deletes []string) error {
	if len(docs) == 0 && len(deletes) == 0 {
		return nil
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if x.closed {
		return x.unavailable()
	}

	batch := x.index.NewBatch()
	for _, doc := range docs {
		if err := batch.Index(doc.ID, doc.fields()); err != nil {
			return fmt.Errorf("failed to index document %s: %w", doc.ID, err)
		}
	}
	for _, id := range deletes {
		batch.Delete(id)
	}

	if err := x.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to execute batch: %w", err)
	}
	return nil
}

// Search runs q with the engine clause ceiling set to opts.MaxClauseCount.
// Hits are ordered by score, then by id.
func (x *ArticleIndex) Search(ctx context.Context, q query.Query, opts SearchOptions) ([]Hit, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.closed {
		return nil, x.unavailable()
	}

	size := opts.Size
	if size <= 0 {
		count, err := x.index.DocCount()
		if err != nil {
			return nil, fmt.Errorf("failed to count documents: %w", err)
		}
		size = int(count)
	}
	if size == 0 {
		return []Hit{}, nil
	}

	req := bleve.NewSearchRequestOptions(q, size, 0, false)
	req.SortBy([]string{"-_score", "_id"})

	var hits []Hit
	run := func() error {
		result, err := x.index.SearchInContext(ctx, req)
		if err != nil {
			return err
		}
		hits = make([]Hit, 0, len(result.Hits))
		for _, h := range result.Hits {
			hits = append(hits, Hit{ID: h.ID, Score: h.Score})
		}
		return nil
	}
	err := WithClauseCeiling(opts.MaxClauseCount, run)
	if opts.MaxClauseCount > 0 && isTooManyClauses(err) {
		// Boolean nodes already respect the ceiling; only term expansion
		// inside the engine can trip it.
		x.logger.Debug("clause_ceiling_exceeded_retrying",
			slog.Int("max_clauses", opts.MaxClauseCount),
			slog.String("error", err.Error()))
		err = withoutClauseCeiling(run)
	}
	if err != nil {
		return nil, fserrors.New(fserrors.ErrCodeSearchFailed, fmt.Sprintf("search failed: %v", err), err)
	}
	return hits, nil
}

// AllIDs returns every document id in the index.
func (x *ArticleIndex) AllIDs(ctx context.Context) ([]string, error) {
	hits, err := x.Search(ctx, bleve.NewMatchAllQuery(), SearchOptions{})
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	return ids, nil
}

// DocCount returns the number of live documents.
func (x *ArticleIndex) DocCount() (uint64, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.closed {
		return 0, x.unavailable()
	}
	return x.index.DocCount()
}

// Stats returns index statistics.
func (x *ArticleIndex) Stats() IndexStats {
	count, _ := x.DocCount()
	return IndexStats{DocumentCount: count, Path: x.path, Recovered: x.Recovered()}
}

// Reset drops every document by recreating the index.
func (x *ArticleIndex) Reset(_ context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.closed {
		return x.unavailable()
	}
	if err := x.index.Close(); err != nil {
		return fmt.Errorf("failed to close index: %w", err)
	}

	var (
		idx bleve.Index
		err error
	)
	if x.path == "" {
		idx, err = bleve.NewMemOnly(x.mapping)
	} else {
		if err = os.RemoveAll(x.path); err != nil {
			x.closed = true
			return fmt.Errorf("failed to remove index %s: %w", x.path, err)
		}
		idx, err = bleve.New(x.path, x.mapping)
	}
	if err != nil {
		x.closed = true
		return fmt.Errorf("failed to recreate index: %w", err)
	}
	x.index = idx
	return nil
}

// Optimize compacts an on-disk index into a single segment. In-memory
// indexes have nothing to compact.
func (x *ArticleIndex) Optimize(ctx context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.closed {
		return x.unavailable()
	}

	adv, err := x.index.Advanced()
	if err != nil {
		return fmt.Errorf("failed to access index internals: %w", err)
	}
	sc, ok := adv.(*scorch.Scorch)
	if !ok {
		return nil
	}
	if err := sc.ForceMerge(ctx, &mergeplan.SingleSegmentMergePlanOptions); err != nil {
		return fmt.Errorf("failed to merge segments: %w", err)
	}
	return nil
}

// Close closes the index. Safe to call more than once.
func (x *ArticleIndex) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.closed {
		return nil
	}
	x.closed = true
	if x.index != nil {
		return x.index.Close()
	}
	return nil
}

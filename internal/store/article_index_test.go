package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/blevesearch/bleve/v2/search/searcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fserrors "github.com/Aman-CERP/feedsearch/internal/errors"
)

func newMemIndex(t *testing.T) *ArticleIndex {
	t.Helper()
	idx, err := OpenArticleIndex("", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func sampleDocs() []*ArticleDocument {
	return []*ArticleDocument{
		{ID: "1", Title: "Go 1.26 Release Notes", Authors: []string{"Russ Cox"}, State: "unread", Locations: []string{"b:10"}, Age: 1000},
		{ID: "2", Title: "Hello-World in Rust", Categories: []string{"Rust", "Tutorial"}, State: "read", Flagged: true, Age: 2000},
		{ID: "3", Title: "Release engineering", Attachments: []string{"image/png", "https://example.org/a.png"}, State: "unread", Age: 3000},
	}
}

func ids(hits []Hit) []string {
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.ID
	}
	return out
}

func search(t *testing.T, idx *ArticleIndex, q query.Query) []string {
	t.Helper()
	hits, err := idx.Search(context.Background(), q, SearchOptions{})
	require.NoError(t, err)
	return ids(hits)
}

func TestArticleIndex_AnalyzedAndExactFields(t *testing.T) {
	// Given: an index with three documents
	idx := newMemIndex(t)
	require.NoError(t, idx.Apply(context.Background(), sampleDocs(), nil))

	// When/Then: analyzed phrase match is case-insensitive
	phrase := bleve.NewMatchPhraseQuery("release")
	phrase.SetField(FieldTitle)
	assert.ElementsMatch(t, []string{"1", "3"}, search(t, idx, phrase))

	// When/Then: exact field matches the whole lowercased value only
	exact := bleve.NewTermQuery("release engineering")
	exact.SetField(Exact(FieldTitle))
	assert.Equal(t, []string{"3"}, search(t, idx, exact))

	// When/Then: multi-valued exact fields match any element
	cat := bleve.NewTermQuery("tutorial")
	cat.SetField(Exact(FieldCategories))
	assert.Equal(t, []string{"2"}, search(t, idx, cat))

	// When/Then: booleans and derived has_attachments
	flagged := bleve.NewBoolFieldQuery(true)
	flagged.SetField(FieldFlagged)
	assert.Equal(t, []string{"2"}, search(t, idx, flagged))

	att := bleve.NewBoolFieldQuery(true)
	att.SetField(FieldHasAttachments)
	assert.Equal(t, []string{"3"}, search(t, idx, att))

	// When/Then: numeric age range
	lo, hi := 1500.0, 3000.0
	inc := true
	age := bleve.NewNumericRangeInclusiveQuery(&lo, &hi, &inc, &inc)
	age.SetField(FieldAge)
	assert.ElementsMatch(t, []string{"2", "3"}, search(t, idx, age))

	// When/Then: location keyword
	loc := bleve.NewTermQuery("b:10")
	loc.SetField(FieldLocation)
	assert.Equal(t, []string{"1"}, search(t, idx, loc))
}

func TestArticleIndex_StopWordsAreSearchable(t *testing.T) {
	idx := newMemIndex(t)
	require.NoError(t, idx.Apply(context.Background(), []*ArticleDocument{{ID: "1", Title: "The state of the art"}}, nil))

	q := bleve.NewMatchPhraseQuery("the")
	q.SetField(FieldTitle)
	assert.Equal(t, []string{"1"}, search(t, idx, q))
}

func TestArticleIndex_ApplyUpsertsAndDeletes(t *testing.T) {
	ctx := context.Background()
	idx := newMemIndex(t)
	require.NoError(t, idx.Apply(ctx, sampleDocs(), nil))

	// When: replacing doc 1 and deleting doc 2 in one batch
	require.NoError(t, idx.Apply(ctx, []*ArticleDocument{{ID: "1", Title: "Renamed"}}, []string{"2"}))

	// Then: one document per id, deletions applied
	all, err := idx.AllIDs(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"1", "3"}, all)

	old := bleve.NewMatchPhraseQuery("release")
	old.SetField(FieldTitle)
	assert.Equal(t, []string{"3"}, search(t, idx, old))
}

func TestArticleIndex_SearchRestoresClauseCeiling(t *testing.T) {
	// Given: a caller-visible ceiling value
	prev := searcher.DisjunctionMaxClauseCount
	searcher.DisjunctionMaxClauseCount = 77
	defer func() { searcher.DisjunctionMaxClauseCount = prev }()

	idx := newMemIndex(t)
	require.NoError(t, idx.Apply(context.Background(), sampleDocs(), nil))

	// When: searching with a different ceiling, once successfully and once failing
	var observed int
	err := WithClauseCeiling(4, func() error {
		observed = searcher.DisjunctionMaxClauseCount
		return nil
	})
	require.NoError(t, err)

	_, err = idx.Search(context.Background(), bleve.NewMatchAllQuery(), SearchOptions{MaxClauseCount: 4})
	require.NoError(t, err)

	// Then: the ceiling was applied during the call and restored afterwards
	assert.Equal(t, 4, observed)
	assert.Equal(t, 77, searcher.DisjunctionMaxClauseCount)
}

func TestArticleIndex_TermExpansionAboveCeiling(t *testing.T) {
	prev := searcher.DisjunctionMaxClauseCount
	idx := newMemIndex(t)
	require.NoError(t, idx.Apply(context.Background(), sampleDocs(), nil))

	// Given: a wildcard expanding to more title terms than the ceiling allows
	wq := bleve.NewWildcardQuery("*e*")
	wq.SetField(FieldTitle)
	minAge, maxAge := 0.0, 5000.0
	rq := bleve.NewNumericRangeQuery(&minAge, &maxAge)
	rq.SetField(FieldAge)

	for name, q := range map[string]query.Query{"wildcard": wq, "numeric range": rq} {
		t.Run(name, func(t *testing.T) {
			// When: searching under a ceiling of one clause
			hits, err := idx.Search(context.Background(), q, SearchOptions{MaxClauseCount: 1})

			// Then: the search succeeds with every match and restores the ceiling
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{"1", "2", "3"}, ids(hits))
			assert.Equal(t, prev, searcher.DisjunctionMaxClauseCount)
		})
	}
}

func TestIsTooManyClauses(t *testing.T) {
	assert.True(t, isTooManyClauses(errors.New("TooManyClauses over field: `title` [5 > maxClauseCount, which is set to 4]")))
	assert.False(t, isTooManyClauses(errors.New("index closed")))
	assert.False(t, isTooManyClauses(nil))
}

func TestWithClauseCeiling_ConcurrentCallersRestore(t *testing.T) {
	prev := searcher.DisjunctionMaxClauseCount

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_ = WithClauseCeiling(2+n%3, func() error {
				assert.Equal(t, 2+n%3, searcher.DisjunctionMaxClauseCount)
				return nil
			})
		}(i)
	}
	wg.Wait()
	assert.Equal(t, prev, searcher.DisjunctionMaxClauseCount)
}

func TestArticleIndex_ClosedIsUnavailable(t *testing.T) {
	idx, err := OpenArticleIndex("", nil)
	require.NoError(t, err)
	require.NoError(t, idx.Close())
	require.NoError(t, idx.Close())

	_, err = idx.Search(context.Background(), bleve.NewMatchAllQuery(), SearchOptions{})
	assert.ErrorIs(t, err, fserrors.ErrEngineUnavailable)
	assert.ErrorIs(t, idx.Apply(context.Background(), sampleDocs(), nil), fserrors.ErrEngineUnavailable)
}

func TestArticleIndex_PersistResetOptimize(t *testing.T) {
	// Given: an on-disk index
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "articles.bleve")
	idx, err := OpenArticleIndex(path, nil)
	require.NoError(t, err)
	require.NoError(t, idx.Apply(ctx, sampleDocs()[:2], nil))
	require.NoError(t, idx.Apply(ctx, sampleDocs()[2:], nil))

	// When: optimizing
	require.NoError(t, idx.Optimize(ctx))

	// Then: contents are unchanged
	count, err := idx.DocCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), count)
	require.NoError(t, idx.Close())

	// When: reopening
	idx, err = OpenArticleIndex(path, nil)
	require.NoError(t, err)
	defer func() { _ = idx.Close() }()
	assert.False(t, idx.Recovered())
	count, err = idx.DocCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), count)

	// When: resetting
	require.NoError(t, idx.Reset(ctx))
	count, err = idx.DocCount()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestArticleIndex_RecoversFromCorruptMeta(t *testing.T) {
	// Given: an index directory with an empty index_meta.json
	path := filepath.Join(t.TempDir(), "articles.bleve")
	require.NoError(t, os.MkdirAll(path, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(path, "index_meta.json"), nil, 0o644))

	// When: opening
	idx, err := OpenArticleIndex(path, nil)
	require.NoError(t, err)
	defer func() { _ = idx.Close() }()

	// Then: a fresh index is created and flagged for rebuild
	assert.True(t, idx.Recovered())
	require.NoError(t, idx.Apply(context.Background(), sampleDocs(), nil))
	assert.Equal(t, uint64(3), idx.Stats().DocumentCount)
}

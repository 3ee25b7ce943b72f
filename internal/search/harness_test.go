package search

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/feedsearch/internal/entity"
	"github.com/Aman-CERP/feedsearch/internal/store"
)

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

const (
	feedGo   = "https://go.dev/blog/feed.atom"
	feedRust = "https://blog.rust-lang.org/feed.xml"
	feedNews = "https://news.example.org/rss"
)

// harness is a small article corpus indexed in memory.
type harness struct {
	store    *entity.MemoryStore
	index    *store.ArticleIndex
	searcher *Searcher
}

func newHarness(t *testing.T, maxClauses int) *harness {
	t.Helper()
	ctx := context.Background()

	st := entity.NewMemoryStore()
	require.NoError(t, st.PutBookmark(ctx, entity.Bookmark{ID: 10, Name: "Go Blog", FeedLink: feedGo}))
	require.NoError(t, st.PutBookmark(ctx, entity.Bookmark{ID: 11, Name: "Rust Blog", FeedLink: feedRust}))
	require.NoError(t, st.PutBookmark(ctx, entity.Bookmark{ID: 12, Name: "News", FeedLink: feedNews}))
	require.NoError(t, st.PutBin(ctx, entity.Bin{ID: 7, Name: "Saved"}))
	require.NoError(t, st.PutFolder(ctx, entity.Folder{ID: 1, Name: "Root", Folders: []int64{2, 3}}))
	require.NoError(t, st.PutFolder(ctx, entity.Folder{ID: 2, Name: "Languages", Bookmarks: []int64{10, 11}}))
	require.NoError(t, st.PutFolder(ctx, entity.Folder{ID: 3, Name: "Reading", Bookmarks: []int64{12}, Bins: []int64{7}, Folders: []int64{1}}))

	idx, err := store.OpenArticleIndex("", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	ago := func(m int) float64 { return Timestamp(testNow.Add(-time.Duration(m) * time.Minute)) }
	docs := []*store.ArticleDocument{
		{ID: "1", Title: "Go generics explained", Description: "Type parameters in depth", Authors: []string{"Ian Lance Taylor"},
			Categories: []string{"golang", "language"}, State: "unread", Flagged: true, Feed: feedGo, Locations: []string{"b:10"}, Age: ago(1)},
		{ID: "2", Title: "Rust ownership", Description: "Borrow checker basics", Authors: []string{"Steve Klabnik"},
			Categories: []string{"rust"}, State: "read", Feed: feedRust, Locations: []string{"b:11"}, Age: ago(2)},
		{ID: "3", Title: "Go modules and workspaces", Description: "Dependency management", Authors: []string{"Russ Cox"},
			Categories: []string{"golang", "tooling"}, Attachments: []string{"application/pdf", "https://go.dev/modules.pdf"},
			State: "new", Feed: feedGo, Locations: []string{"b:10"}, Age: ago(60)},
		{ID: "4", Title: "Weekly digest: Go and Rust", Description: "News roundup", Authors: []string{"Editor"},
			Categories: []string{"news"}, Labels: []string{"Important"}, State: "unread", Feed: feedNews, Locations: []string{"b:12", "n:7"}, Age: ago(120)},
		{ID: "5", Title: "Hello-World tutorial", Description: "the first program", Authors: []string{"Anon"},
			Categories: []string{"tutorial"}, State: "updated", Flagged: true, Age: ago(1441)},
		{ID: "6", Title: "Release party", Description: "Cake and *stars*", Authors: []string{"Gopher"},
			Categories: []string{"community"}, State: "read", Age: ago(2880)},
	}
	require.NoError(t, idx.Apply(ctx, docs, nil))

	return &harness{
		store: st,
		index: idx,
		searcher: NewSearcher(st, idx, Options{
			MaxClauseCount: maxClauses,
			Clock:          fixedClock,
		}),
	}
}

func (h *harness) ids(t *testing.T, conds []Condition, scope *Condition, requireAll bool) []int64 {
	t.Helper()
	hits, err := h.searcher.Search(context.Background(), conds, scope, requireAll)
	require.NoError(t, err)
	return hitIDs(hits)
}

func (h *harness) one(t *testing.T, cond Condition) []int64 {
	t.Helper()
	return h.ids(t, []Condition{cond}, nil, true)
}

func hitIDs(hits []Hit) []int64 {
	out := make([]int64, len(hits))
	for i, hit := range hits {
		out[i] = hit.Ref.ID
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func text(id FieldID, sp Specifier, v string) Condition {
	return NewCondition(id, sp, TextValue(v))
}

// maxFanOut returns the widest boolean node in q.
func maxFanOut(q query.Query) int {
	widest := 0
	var walk func(query.Query)
	walk = func(q query.Query) {
		var children []query.Query
		switch v := q.(type) {
		case *query.ConjunctionQuery:
			children = v.Conjuncts
		case *query.DisjunctionQuery:
			children = v.Disjuncts
		case *query.BooleanQuery:
			for _, part := range []query.Query{v.Must, v.Should, v.MustNot} {
				if part != nil {
					walk(part)
				}
			}
			return
		}
		widest = max(widest, len(children))
		for _, c := range children {
			walk(c)
		}
	}
	walk(q)
	return widest
}

func union(sets ...[]int64) []int64 {
	seen := map[int64]bool{}
	for _, s := range sets {
		for _, id := range s {
			seen[id] = true
		}
	}
	return keys(seen)
}

func intersect(sets ...[]int64) []int64 {
	count := map[int64]int{}
	for _, s := range sets {
		for _, id := range s {
			count[id]++
		}
	}
	seen := map[int64]bool{}
	for id, n := range count {
		if n == len(sets) {
			seen[id] = true
		}
	}
	return keys(seen)
}

func complement(all, s []int64) []int64 {
	drop := map[int64]bool{}
	for _, id := range s {
		drop[id] = true
	}
	seen := map[int64]bool{}
	for _, id := range all {
		if !drop[id] {
			seen[id] = true
		}
	}
	return keys(seen)
}

func keys(m map[int64]bool) []int64 {
	out := make([]int64, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

package entity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (r *recorder) OnEvent(_ context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

func (r *recorder) kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventKind, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Kind
	}
	return out
}

func TestState_Visible(t *testing.T) {
	assert.True(t, StateUnread.Visible())
	assert.True(t, StateRead.Visible())
	assert.False(t, StateHidden.Visible())
	assert.False(t, StateDeleted.Visible())

	s, err := ParseState("Hidden")
	require.NoError(t, err)
	assert.Equal(t, StateHidden, s)

	_, err = ParseState("archived")
	assert.Error(t, err)
}

func TestMemoryStore_ArticleLifecycleEvents(t *testing.T) {
	// Given: a store with a subscribed listener
	ctx := context.Background()
	s := NewMemoryStore()
	rec := &recorder{}
	cancel := s.Subscribe(rec)
	defer cancel()

	// When: creating, hiding and deleting an article
	require.NoError(t, s.PutArticle(ctx, &Article{ID: 1, Title: "Go 1.26", State: StateUnread}))
	require.NoError(t, s.SetState(ctx, 1, StateHidden))
	require.NoError(t, s.DeleteArticle(ctx, 1))

	// Then: one event per mutation with snapshots
	assert.Equal(t, []EventKind{ArticleCreated, ArticleUpdated, ArticleDeleted}, rec.kinds())
	assert.Nil(t, rec.events[0].Before)
	assert.Equal(t, StateUnread, rec.events[1].Before.State)
	assert.Equal(t, StateHidden, rec.events[1].After.State)
	assert.Nil(t, rec.events[2].After)

	_, err := s.Article(ctx, 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_ListenerErrorReachesCaller(t *testing.T) {
	s := NewMemoryStore()
	s.Subscribe(&recorder{err: errors.New("queue closed")})

	err := s.PutArticle(context.Background(), &Article{ID: 7})
	assert.ErrorContains(t, err, "queue closed")
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.PutArticle(ctx, &Article{ID: 1, Categories: []string{"go"}}))

	a, err := s.Article(ctx, 1)
	require.NoError(t, err)
	a.Categories[0] = "rust"

	again, err := s.Article(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"go"}, again.Categories)
}

func TestMemoryStore_DenormalizedEvents(t *testing.T) {
	// Given: two articles on one feed, one labelled, one in a bin
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.PutLabel(ctx, Label{ID: 1, Name: "golang"}))
	require.NoError(t, s.PutBin(ctx, Bin{ID: 5, Name: "Saved"}))
	require.NoError(t, s.PutArticle(ctx, &Article{ID: 1, FeedLink: "https://a/feed", Labels: []int64{1}}))
	require.NoError(t, s.PutArticle(ctx, &Article{ID: 2, FeedLink: "https://a/feed", BinID: 5}))
	require.NoError(t, s.PutArticle(ctx, &Article{ID: 3, FeedLink: "https://b/feed"}))

	rec := &recorder{}
	s.Subscribe(rec)

	// When/Then: label rename affects the labelled article
	require.NoError(t, s.PutLabel(ctx, Label{ID: 1, Name: "go"}))
	assert.Equal(t, []int64{1}, rec.events[0].Affected)

	// When/Then: creating a bookmark affects every article of its feed
	require.NoError(t, s.PutBookmark(ctx, Bookmark{ID: 10, FeedLink: "https://a/feed"}))
	assert.Equal(t, BookmarkCreated, rec.events[1].Kind)
	assert.Equal(t, []int64{1, 2}, rec.events[1].Affected)

	// When/Then: relinking affects old and new feed articles
	require.NoError(t, s.PutBookmark(ctx, Bookmark{ID: 10, FeedLink: "https://b/feed"}))
	assert.Equal(t, BookmarkRelinked, rec.events[2].Kind)
	assert.Equal(t, []int64{1, 2, 3}, rec.events[2].Affected)

	// When/Then: deleting the label strips it from articles
	require.NoError(t, s.DeleteLabel(ctx, 1))
	a, err := s.Article(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, a.Labels)

	// When/Then: deleting the bin removes its articles
	require.NoError(t, s.DeleteBin(ctx, 5))
	assert.Equal(t, BinDeleted, rec.events[4].Kind)
	assert.Equal(t, []int64{2}, rec.events[4].Affected)
	_, err = s.Article(ctx, 2)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_Cancel(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	rec := &recorder{}
	cancel := s.Subscribe(rec)
	cancel()

	require.NoError(t, s.PutArticle(ctx, &Article{ID: 1}))
	assert.Empty(t, rec.kinds())
}

func TestLoadFixture(t *testing.T) {
	// Given: a fixture with every entity kind
	data := []byte(`
labels:
  - {id: 1, name: golang}
bins:
  - {id: 20, name: Saved}
bookmarks:
  - {id: 10, name: Go Blog, feed_link: "https://go.dev/blog/feed.atom"}
folders:
  - {id: 1, name: Root, folders: [2], bookmarks: [10]}
  - {id: 2, name: Archive, bins: [20]}
articles:
  - id: 100
    title: Range over func
    authors: [Russ Cox]
    categories: [language]
    attachments:
      - {type: image/png, link: "https://go.dev/img.png"}
    labels: [1]
    state: read
    flagged: true
    feed_link: "https://go.dev/blog/feed.atom"
    published: 2026-01-02T15:04:05Z
`)
	f, err := ParseFixture(data)
	require.NoError(t, err)

	// When: applying it
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, f.Apply(ctx, s))

	// Then: all entities are present
	a, err := s.Article(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, StateRead, a.State)
	assert.True(t, a.Flagged)
	assert.Equal(t, []Attachment{{Type: "image/png", Link: "https://go.dev/img.png"}}, a.Attachments)
	assert.Equal(t, time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC), a.PublishDate.UTC())

	root, err := s.Folder(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, root.Folders)

	ids, err := s.BookmarksByFeed(ctx, "https://go.dev/blog/feed.atom")
	require.NoError(t, err)
	assert.Equal(t, []int64{10}, ids)
}

func TestParseFixture_RejectsUnknownState(t *testing.T) {
	f, err := ParseFixture([]byte("articles:\n  - {id: 1, state: archived}\n"))
	require.NoError(t, err)
	assert.Error(t, f.Apply(context.Background(), NewMemoryStore()))
}

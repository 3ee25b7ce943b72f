package index

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/feedsearch/internal/entity"
	"github.com/Aman-CERP/feedsearch/internal/search"
)

func TestDocumentBuilder_Build(t *testing.T) {
	ctx := context.Background()
	st := entity.NewMemoryStore()
	require.NoError(t, st.PutLabel(ctx, entity.Label{ID: 1, Name: "Important"}))
	require.NoError(t, st.PutBookmark(ctx, entity.Bookmark{ID: 10, Name: "Go", FeedLink: "https://go.dev/feed"}))
	require.NoError(t, st.PutBookmark(ctx, entity.Bookmark{ID: 11, Name: "Go mirror", FeedLink: "https://go.dev/feed"}))
	require.NoError(t, st.PutBin(ctx, entity.Bin{ID: 7, Name: "Saved"}))

	published := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	a := &entity.Article{
		ID:          42,
		Title:       "Go 1.26",
		Description: "Release notes",
		Authors:     []string{"The Go Team"},
		Categories:  []string{"release"},
		Attachments: []entity.Attachment{{Type: "audio/mpeg", Link: "https://go.dev/talk.mp3"}, {Link: "https://go.dev/slides"}},
		Labels:      []int64{1, 99},
		State:       entity.StateUnread,
		Flagged:     true,
		FeedLink:    "https://go.dev/feed",
		BinID:       7,
		PublishDate: published,
		ReceiveDate: published.Add(time.Hour),
	}

	// When
	doc, err := NewDocumentBuilder(st).Build(ctx, a)

	// Then
	require.NoError(t, err)
	assert.Equal(t, "42", doc.ID)
	assert.Equal(t, "Go 1.26", doc.Title)
	assert.Equal(t, []string{"Important"}, doc.Labels, "dangling label ids are skipped")
	assert.Equal(t, []string{"audio/mpeg", "https://go.dev/talk.mp3", "https://go.dev/slides"}, doc.Attachments)
	assert.Equal(t, []string{"b:10", "b:11", "n:7"}, doc.Locations)
	assert.Equal(t, "unread", doc.State)
	assert.True(t, doc.Flagged)
	assert.Equal(t, search.Timestamp(published), doc.Age)
}

func TestDocumentBuilder_AgeFallsBackToReceiveDate(t *testing.T) {
	received := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	a := &entity.Article{ID: 1, Title: "undated", ReceiveDate: received}

	doc, err := NewDocumentBuilder(entity.NewMemoryStore()).Build(context.Background(), a)

	require.NoError(t, err)
	assert.Equal(t, search.Timestamp(received), doc.Age)
	assert.Empty(t, doc.Locations)
}

func TestDocumentBuilder_BuildAllKeepsOrder(t *testing.T) {
	articles := make([]*entity.Article, 50)
	for i := range articles {
		articles[i] = &entity.Article{ID: int64(i + 1), Title: "t"}
	}

	docs, err := NewDocumentBuilder(entity.NewMemoryStore()).BuildAll(context.Background(), articles, 4)

	require.NoError(t, err)
	require.Len(t, docs, 50)
	for i, doc := range docs {
		assert.Equal(t, articles[i].ID, mustParse(t, doc.ID))
	}
}

func TestDocumentBuilder_BuildAllCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewDocumentBuilder(entity.NewMemoryStore()).BuildAll(ctx, []*entity.Article{{ID: 1}}, 1)

	assert.ErrorIs(t, err, context.Canceled)
}

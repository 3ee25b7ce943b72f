// Package index keeps the article index consistent with the entity store:
// it turns entity change events into durable outstanding work, applies that
// work in batches, and owns the index lifecycle.
package index

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/feedsearch/internal/entity"
	"github.com/Aman-CERP/feedsearch/internal/search"
	"github.com/Aman-CERP/feedsearch/internal/store"
)

// DocumentBuilder denormalizes articles into index documents.
type DocumentBuilder struct {
	store    entity.Store
	expander *search.Expander
}

// NewDocumentBuilder creates a builder reading labels and containers from st.
func NewDocumentBuilder(st entity.Store) *DocumentBuilder {
	return &DocumentBuilder{store: st, expander: search.NewExpander(st)}
}

// Build returns the document for a. Labels that no longer exist are
// skipped. The age timestamp is the publish date, or the receive date when
// the article was never dated by its feed.
func (b *DocumentBuilder) Build(ctx context.Context, a *entity.Article) (*store.ArticleDocument, error) {
	locations, err := b.expander.LeavesOf(ctx, a)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve locations of article %d: %w", a.ID, err)
	}

	labels := make([]string, 0, len(a.Labels))
	for _, id := range a.Labels {
		l, err := b.store.Label(ctx, id)
		if errors.Is(err, entity.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read label %d: %w", id, err)
		}
		labels = append(labels, l.Name)
	}

	var attachments []string
	for _, att := range a.Attachments {
		for _, s := range []string{att.Type, att.Link} {
			if s != "" {
				attachments = append(attachments, s)
			}
		}
	}

	dated := a.PublishDate
	if dated.IsZero() {
		dated = a.ReceiveDate
	}

	return &store.ArticleDocument{
		ID:          store.DocID(a.ID),
		Title:       a.Title,
		Description: a.Description,
		Authors:     append([]string(nil), a.Authors...),
		Categories:  append([]string(nil), a.Categories...),
		Attachments: attachments,
		Labels:      labels,
		Feed:        a.FeedLink,
		State:       a.State.String(),
		Flagged:     a.Flagged,
		Locations:   locations,
		Age:         search.Timestamp(dated),
	}, nil
}

// BuildAll builds documents for articles using up to workers goroutines.
// The result keeps the input order. The first failure cancels the rest.
func (b *DocumentBuilder) BuildAll(ctx context.Context, articles []*entity.Article, workers int) ([]*store.ArticleDocument, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	docs := make([]*store.ArticleDocument, len(articles))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, a := range articles {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			doc, err := b.Build(gctx, a)
			if err != nil {
				return err
			}
			docs[i] = doc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return docs, nil
}

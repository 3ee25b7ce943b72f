package search

import (
	"context"
	"errors"
	"slices"
	"strconv"

	"github.com/Aman-CERP/feedsearch/internal/entity"
)

// Leaf id prefixes. Bookmark and bin ids live in separate id spaces.
const (
	BookmarkLeafPrefix = "b:"
	BinLeafPrefix      = "n:"
)

// BookmarkLeaf returns the indexed location id of a bookmark.
func BookmarkLeaf(id int64) string { return BookmarkLeafPrefix + strconv.FormatInt(id, 10) }

// BinLeaf returns the indexed location id of a bin.
func BinLeaf(id int64) string { return BinLeafPrefix + strconv.FormatInt(id, 10) }

// Expander flattens location selections into leaf container ids.
type Expander struct {
	store entity.Store
}

// NewExpander creates an Expander reading containers from st.
func NewExpander(st entity.Store) *Expander {
	return &Expander{store: st}
}

// Expand resolves set into sorted, de-duplicated leaf ids. Folders expand
// recursively to every bookmark and bin beneath them. Ids that no longer
// exist contribute nothing; only store failures are returned as errors.
func (e *Expander) Expand(ctx context.Context, set LocationSet) ([]string, error) {
	leaves := make(map[string]struct{})
	visited := make(map[int64]struct{})

	if err := e.addBookmarks(ctx, set.Bookmarks, leaves); err != nil {
		return nil, err
	}
	if err := e.addBins(ctx, set.Bins, leaves); err != nil {
		return nil, err
	}
	for _, id := range set.Folders {
		if err := e.walkFolder(ctx, id, visited, leaves); err != nil {
			return nil, err
		}
	}

	out := make([]string, 0, len(leaves))
	for l := range leaves {
		out = append(out, l)
	}
	slices.Sort(out)
	return out, nil
}

func (e *Expander) walkFolder(ctx context.Context, id int64, visited map[int64]struct{}, leaves map[string]struct{}) error {
	if _, seen := visited[id]; seen {
		return nil
	}
	visited[id] = struct{}{}

	f, err := e.store.Folder(ctx, id)
	if errors.Is(err, entity.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if err := e.addBookmarks(ctx, f.Bookmarks, leaves); err != nil {
		return err
	}
	if err := e.addBins(ctx, f.Bins, leaves); err != nil {
		return err
	}
	for _, child := range f.Folders {
		if err := e.walkFolder(ctx, child, visited, leaves); err != nil {
			return err
		}
	}
	return nil
}

func (e *Expander) addBookmarks(ctx context.Context, ids []int64, leaves map[string]struct{}) error {
	for _, id := range ids {
		_, err := e.store.Bookmark(ctx, id)
		if errors.Is(err, entity.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		leaves[BookmarkLeaf(id)] = struct{}{}
	}
	return nil
}

func (e *Expander) addBins(ctx context.Context, ids []int64, leaves map[string]struct{}) error {
	for _, id := range ids {
		_, err := e.store.Bin(ctx, id)
		if errors.Is(err, entity.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		leaves[BinLeaf(id)] = struct{}{}
	}
	return nil
}

// LeavesOf returns the leaf containers an article is located in: every
// bookmark subscribed to its feed, plus its bin.
func (e *Expander) LeavesOf(ctx context.Context, a *entity.Article) ([]string, error) {
	var set LocationSet
	if a.FeedLink != "" {
		ids, err := e.store.BookmarksByFeed(ctx, a.FeedLink)
		if err != nil {
			return nil, err
		}
		set.Bookmarks = ids
	}
	if a.BinID != 0 {
		set.Bins = []int64{a.BinID}
	}
	if set.Empty() {
		return nil, nil
	}
	return e.Expand(ctx, set)
}

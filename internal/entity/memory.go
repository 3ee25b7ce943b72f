package entity

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
)

// MemoryStore is an in-memory Store. Mutations are serialized and their
// events are delivered synchronously, in commit order, before the
// mutating call returns.
type MemoryStore struct {
	// writeMu serializes mutation + delivery so listeners observe
	// per-id events in commit order.
	writeMu sync.Mutex

	mu        sync.RWMutex
	articles  map[int64]*Article
	labels    map[int64]*Label
	folders   map[int64]*Folder
	bookmarks map[int64]*Bookmark
	bins      map[int64]*Bin

	listenerMu sync.RWMutex
	listeners  map[int]Listener
	nextSubID  int
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		articles:  make(map[int64]*Article),
		labels:    make(map[int64]*Label),
		folders:   make(map[int64]*Folder),
		bookmarks: make(map[int64]*Bookmark),
		bins:      make(map[int64]*Bin),
		listeners: make(map[int]Listener),
	}
}

// Subscribe registers l for all future events.
func (s *MemoryStore) Subscribe(l Listener) func() {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()
	id := s.nextSubID
	s.nextSubID++
	s.listeners[id] = l
	return func() {
		s.listenerMu.Lock()
		defer s.listenerMu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *MemoryStore) emit(ctx context.Context, ev Event) error {
	s.listenerMu.RLock()
	ls := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		ls = append(ls, l)
	}
	s.listenerMu.RUnlock()

	var errs []error
	for _, l := range ls {
		if err := l.OnEvent(ctx, ev); err != nil {
			errs = append(errs, fmt.Errorf("%s %d: %w", ev.Kind, ev.ID, err))
		}
	}
	return errors.Join(errs...)
}

// Article implements Store.
func (s *MemoryStore) Article(_ context.Context, id int64) (*Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.articles[id]
	if !ok {
		return nil, ErrNotFound
	}
	return a.Clone(), nil
}

// ForEachArticle implements Store. Articles are visited in id order.
func (s *MemoryStore) ForEachArticle(ctx context.Context, fn func(*Article) error) error {
	s.mu.RLock()
	ids := sortedKeys(s.articles)
	s.mu.RUnlock()

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		a, err := s.Article(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err := fn(a); err != nil {
			return err
		}
	}
	return nil
}

// ArticlesByFeed implements Store.
func (s *MemoryStore) ArticlesByFeed(_ context.Context, feedLink string) ([]int64, error) {
	return s.selectArticles(func(a *Article) bool { return a.FeedLink == feedLink }), nil
}

// ArticlesByLabel implements Store.
func (s *MemoryStore) ArticlesByLabel(_ context.Context, labelID int64) ([]int64, error) {
	return s.selectArticles(func(a *Article) bool { return slices.Contains(a.Labels, labelID) }), nil
}

// ArticlesInBin implements Store.
func (s *MemoryStore) ArticlesInBin(_ context.Context, binID int64) ([]int64, error) {
	return s.selectArticles(func(a *Article) bool { return a.BinID == binID }), nil
}

func (s *MemoryStore) selectArticles(match func(*Article) bool) []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []int64
	for id, a := range s.articles {
		if match(a) {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// Label implements Store.
func (s *MemoryStore) Label(_ context.Context, id int64) (*Label, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.labels[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *l
	return &c, nil
}

// Folder implements Store.
func (s *MemoryStore) Folder(_ context.Context, id int64) (*Folder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.folders[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *f
	c.Folders = slices.Clone(f.Folders)
	c.Bookmarks = slices.Clone(f.Bookmarks)
	c.Bins = slices.Clone(f.Bins)
	return &c, nil
}

// Bookmark implements Store.
func (s *MemoryStore) Bookmark(_ context.Context, id int64) (*Bookmark, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookmarks[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *b
	return &c, nil
}

// Bin implements Store.
func (s *MemoryStore) Bin(_ context.Context, id int64) (*Bin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bins[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *b
	return &c, nil
}

// BookmarksByFeed implements Store.
func (s *MemoryStore) BookmarksByFeed(_ context.Context, feedLink string) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []int64
	for id, b := range s.bookmarks {
		if b.FeedLink == feedLink {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

// PutArticle creates or replaces an article and emits ArticleCreated or
// ArticleUpdated.
func (s *MemoryStore) PutArticle(ctx context.Context, a *Article) error {
	if a == nil || a.ID == 0 {
		return fmt.Errorf("article id must be non-zero")
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	before := s.articles[a.ID]
	s.articles[a.ID] = a.Clone()
	s.mu.Unlock()

	ev := Event{Kind: ArticleCreated, ID: a.ID, After: a.Clone()}
	if before != nil {
		ev.Kind = ArticleUpdated
		ev.Before = before
	}
	return s.emit(ctx, ev)
}

// UpdateArticle applies fn to a copy of the stored article and commits it.
func (s *MemoryStore) UpdateArticle(ctx context.Context, id int64, fn func(*Article)) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	before, ok := s.articles[id]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	after := before.Clone()
	fn(after)
	after.ID = id
	s.articles[id] = after
	s.mu.Unlock()

	return s.emit(ctx, Event{Kind: ArticleUpdated, ID: id, Before: before, After: after.Clone()})
}

// SetState changes an article's state.
func (s *MemoryStore) SetState(ctx context.Context, id int64, state State) error {
	return s.UpdateArticle(ctx, id, func(a *Article) { a.State = state })
}

// DeleteArticle removes an article permanently.
func (s *MemoryStore) DeleteArticle(ctx context.Context, id int64) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	before, ok := s.articles[id]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	delete(s.articles, id)
	s.mu.Unlock()

	return s.emit(ctx, Event{Kind: ArticleDeleted, ID: id, Before: before})
}

// PutLabel creates a label or renames an existing one. A rename emits
// LabelRenamed for every article carrying the label.
func (s *MemoryStore) PutLabel(ctx context.Context, l Label) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	old, existed := s.labels[l.ID]
	s.labels[l.ID] = &l
	s.mu.Unlock()

	if !existed || old.Name == l.Name {
		return nil
	}
	affected, _ := s.ArticlesByLabel(ctx, l.ID)
	return s.emit(ctx, Event{Kind: LabelRenamed, ID: l.ID, Affected: affected})
}

// DeleteLabel removes a label and strips it from every article.
func (s *MemoryStore) DeleteLabel(ctx context.Context, id int64) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	affected, _ := s.ArticlesByLabel(ctx, id)

	s.mu.Lock()
	delete(s.labels, id)
	for _, aid := range affected {
		a := s.articles[aid]
		a.Labels = slices.DeleteFunc(a.Labels, func(l int64) bool { return l == id })
	}
	s.mu.Unlock()

	return s.emit(ctx, Event{Kind: LabelDeleted, ID: id, Affected: affected})
}

// PutFolder creates or replaces a folder. Folder membership only matters
// at query time, so no event is emitted.
func (s *MemoryStore) PutFolder(_ context.Context, f Folder) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	f.Folders = slices.Clone(f.Folders)
	f.Bookmarks = slices.Clone(f.Bookmarks)
	f.Bins = slices.Clone(f.Bins)
	s.folders[f.ID] = &f
	return nil
}

// PutBookmark creates a bookmark, or relinks it when its feed link changed.
func (s *MemoryStore) PutBookmark(ctx context.Context, b Bookmark) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	old, existed := s.bookmarks[b.ID]
	s.bookmarks[b.ID] = &b
	s.mu.Unlock()

	switch {
	case !existed:
		affected, _ := s.ArticlesByFeed(ctx, b.FeedLink)
		return s.emit(ctx, Event{Kind: BookmarkCreated, ID: b.ID, Affected: affected})
	case old.FeedLink != b.FeedLink:
		before, _ := s.ArticlesByFeed(ctx, old.FeedLink)
		after, _ := s.ArticlesByFeed(ctx, b.FeedLink)
		return s.emit(ctx, Event{Kind: BookmarkRelinked, ID: b.ID, Affected: mergeIDs(before, after)})
	}
	return nil
}

// DeleteBookmark removes a bookmark. Folders referencing it are left as
// they are; dangling ids expand to nothing.
func (s *MemoryStore) DeleteBookmark(ctx context.Context, id int64) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	b, ok := s.bookmarks[id]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	delete(s.bookmarks, id)
	s.mu.Unlock()

	affected, _ := s.ArticlesByFeed(ctx, b.FeedLink)
	return s.emit(ctx, Event{Kind: BookmarkDeleted, ID: id, Affected: affected})
}

// PutBin creates or renames a bin.
func (s *MemoryStore) PutBin(_ context.Context, b Bin) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.bins[b.ID] = &b
	return nil
}

// DeleteBin removes a bin together with the article copies it holds.
func (s *MemoryStore) DeleteBin(ctx context.Context, id int64) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	affected, _ := s.ArticlesInBin(ctx, id)

	s.mu.Lock()
	if _, ok := s.bins[id]; !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	delete(s.bins, id)
	for _, aid := range affected {
		delete(s.articles, aid)
	}
	s.mu.Unlock()

	return s.emit(ctx, Event{Kind: BinDeleted, ID: id, Affected: affected})
}

func sortedKeys[V any](m map[int64]V) []int64 {
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func mergeIDs(a, b []int64) []int64 {
	out := append(slices.Clone(a), b...)
	slices.Sort(out)
	return slices.Compact(out)
}

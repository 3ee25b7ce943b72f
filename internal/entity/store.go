package entity

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Store lookups for ids that do not exist.
var ErrNotFound = errors.New("entity not found")

// EventKind identifies a change in the entity graph.
type EventKind int

const (
	ArticleCreated EventKind = iota + 1
	ArticleUpdated
	ArticleDeleted
	LabelRenamed
	LabelDeleted
	BookmarkCreated
	BookmarkDeleted
	BookmarkRelinked
	BinDeleted
)

var eventNames = map[EventKind]string{
	ArticleCreated:   "article_created",
	ArticleUpdated:   "article_updated",
	ArticleDeleted:   "article_deleted",
	LabelRenamed:     "label_renamed",
	LabelDeleted:     "label_deleted",
	BookmarkCreated:  "bookmark_created",
	BookmarkDeleted:  "bookmark_deleted",
	BookmarkRelinked: "bookmark_relinked",
	BinDeleted:       "bin_deleted",
}

func (k EventKind) String() string {
	if n, ok := eventNames[k]; ok {
		return n
	}
	return "unknown"
}

// Event describes one committed mutation.
//
// Article events carry Before/After snapshots (Before is nil on create,
// After is nil on delete). Events on labels, bookmarks and bins carry the
// ids of every article whose denormalized data changed in Affected.
type Event struct {
	Kind     EventKind
	ID       int64
	Before   *Article
	After    *Article
	Affected []int64
}

// Listener receives events after the mutation is committed. An error is
// reported back to the caller of the mutating operation.
type Listener interface {
	OnEvent(ctx context.Context, ev Event) error
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(ctx context.Context, ev Event) error

// OnEvent calls f.
func (f ListenerFunc) OnEvent(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}

// Store is the read side of the entity graph plus its change feed.
// Returned values are copies owned by the caller.
type Store interface {
	Article(ctx context.Context, id int64) (*Article, error)
	ForEachArticle(ctx context.Context, fn func(*Article) error) error
	ArticlesByFeed(ctx context.Context, feedLink string) ([]int64, error)
	ArticlesByLabel(ctx context.Context, labelID int64) ([]int64, error)
	ArticlesInBin(ctx context.Context, binID int64) ([]int64, error)

	Label(ctx context.Context, id int64) (*Label, error)
	Folder(ctx context.Context, id int64) (*Folder, error)
	Bookmark(ctx context.Context, id int64) (*Bookmark, error)
	Bin(ctx context.Context, id int64) (*Bin, error)
	BookmarksByFeed(ctx context.Context, feedLink string) ([]int64, error)

	Subscribe(l Listener) (cancel func())
}

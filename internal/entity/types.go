// Package entity defines the article/feed/folder graph the search core
// consumes. Persistence lives elsewhere; this package only holds the
// contract plus an in-memory Store used by tests and the CLI.
package entity

import (
	"fmt"
	"strings"
	"time"
)

// TypeArticle is the only entity type the search core indexes.
const TypeArticle = "Article"

// State is the read/visibility state of an article.
type State int

// Article states. Hidden and Deleted articles are never indexed.
const (
	StateNew State = iota
	StateUnread
	StateRead
	StateUpdated
	StateHidden
	StateDeleted
)

var stateNames = [...]string{"new", "unread", "read", "updated", "hidden", "deleted"}

func (s State) String() string {
	if int(s) >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Visible reports whether articles in this state belong in the index.
func (s State) Visible() bool {
	return s != StateHidden && s != StateDeleted
}

// ParseState converts a state name (case-insensitive) to a State.
func ParseState(name string) (State, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range stateNames {
		if n == name {
			return State(i), nil
		}
	}
	return 0, fmt.Errorf("unknown article state %q", name)
}

// Attachment is a media enclosure of an article.
type Attachment struct {
	Type string
	Link string
}

// Article is a single feed item.
type Article struct {
	ID          int64
	Title       string
	Description string
	Authors     []string
	Categories  []string
	Attachments []Attachment
	Labels      []int64
	State       State
	Flagged     bool
	// FeedLink ties the article to every bookmark subscribed to the feed.
	FeedLink string
	// BinID is the bin holding a copy of the article, 0 when none.
	BinID       int64
	PublishDate time.Time
	ReceiveDate time.Time
}

// Visible reports whether the article should have a live index document.
func (a *Article) Visible() bool {
	return a != nil && a.State.Visible()
}

// Clone returns a deep copy so snapshots in events cannot be mutated.
func (a *Article) Clone() *Article {
	if a == nil {
		return nil
	}
	c := *a
	c.Authors = append([]string(nil), a.Authors...)
	c.Categories = append([]string(nil), a.Categories...)
	c.Attachments = append([]Attachment(nil), a.Attachments...)
	c.Labels = append([]int64(nil), a.Labels...)
	return &c
}

// Label is a user-defined tag.
type Label struct {
	ID   int64
	Name string
}

// Folder groups other folders, bookmarks and bins. It never holds articles.
type Folder struct {
	ID        int64
	Name      string
	Folders   []int64
	Bookmarks []int64
	Bins      []int64
}

// Bookmark is a subscription to a feed link.
type Bookmark struct {
	ID       int64
	Name     string
	FeedLink string
}

// Bin stores copied articles.
type Bin struct {
	ID   int64
	Name string
}

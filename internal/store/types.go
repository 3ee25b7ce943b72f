// Package store holds the persistent state of the search core: the bleve
// article index and the durable SQLite queue of outstanding index work.
package store

import (
	"fmt"
	"strconv"
)

// IndexEvent is the pending operation recorded for one entity.
type IndexEvent int

const (
	EventPersisted IndexEvent = iota + 1
	EventUpdated
	EventRemoved
)

func (e IndexEvent) String() string {
	switch e {
	case EventPersisted:
		return "persisted"
	case EventUpdated:
		return "updated"
	case EventRemoved:
		return "removed"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

// MergeEvents combines a queued event with a newer one for the same entity.
// The newer event wins unless either side is EventRemoved.
func MergeEvents(prev, next IndexEvent) IndexEvent {
	if prev == EventRemoved || next == EventRemoved {
		return EventRemoved
	}
	return next
}

// OutstandingEntry is one row of the outstanding-work queue.
// Seq changes every time the entry is rewritten.
type OutstandingEntry struct {
	EntityID int64
	Event    IndexEvent
	Seq      int64
}

// Hit is a document matched by the article index.
type Hit struct {
	ID    string
	Score float64
}

// SearchOptions controls one index search.
type SearchOptions struct {
	// Size caps the number of hits; zero returns every match.
	Size int
	// MaxClauseCount is the engine clause ceiling applied for the call.
	MaxClauseCount int
}

// IndexStats summarizes the article index.
type IndexStats struct {
	DocumentCount uint64
	Path          string
	Recovered     bool
}

// DocID converts an article id to its document id.
func DocID(articleID int64) string {
	return strconv.FormatInt(articleID, 10)
}

// ParseDocID converts a document id back to an article id.
func ParseDocID(id string) (int64, error) {
	return strconv.ParseInt(id, 10, 64)
}

package store

import (
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2/search/searcher"
)

// clauseCeiling owns bleve's process-wide searcher.DisjunctionMaxClauseCount.
// Searches sharing the same ceiling run concurrently; a search asking for a
// different ceiling waits until the current holders are done. The previous
// value is restored when the last holder leaves.
type clauseCeiling struct {
	mu      sync.Mutex
	cond    *sync.Cond
	holders int
	active  int
	saved   int
}

var ceiling = newClauseCeiling()

func newClauseCeiling() *clauseCeiling {
	c := &clauseCeiling{}
	c.cond = sync.NewCond(&c.mu)
	return c
}

func (c *clauseCeiling) acquire(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for c.holders > 0 && c.active != n {
		c.cond.Wait()
	}
	if c.holders == 0 {
		c.saved = searcher.DisjunctionMaxClauseCount
		searcher.DisjunctionMaxClauseCount = n
		c.active = n
	}
	c.holders++
}

func (c *clauseCeiling) release() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.holders--
	if c.holders == 0 {
		searcher.DisjunctionMaxClauseCount = c.saved
		c.cond.Broadcast()
	}
}

// WithClauseCeiling runs fn with the engine clause ceiling set to n and
// restores the previous value afterwards, whatever fn returns. n <= 0
// leaves the ceiling untouched.
func WithClauseCeiling(n int, fn func() error) error {
	if n <= 0 {
		return fn()
	}
	ceiling.acquire(n)
	defer ceiling.release()
	return fn()
}

// withoutClauseCeiling runs fn with the engine clause ceiling lifted.
// The ceiling also caps bleve's own term expansion (wildcards, numeric
// ranges), which the query builder cannot restructure.
func withoutClauseCeiling(fn func() error) error {
	ceiling.acquire(0)
	defer ceiling.release()
	return fn()
}

// isTooManyClauses reports whether err is bleve's clause limit error.
// bleve builds it with fmt.Errorf, so only the message identifies it.
func isTooManyClauses(err error) bool {
	return err != nil && strings.Contains(err.Error(), "TooManyClauses")
}

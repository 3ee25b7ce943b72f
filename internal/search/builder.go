package search

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// DefaultMaxClauseCount is the clause ceiling used when none is configured.
const DefaultMaxClauseCount = 1024

// Builder composes boolean queries whose nodes never carry more than
// MaxClauses children. Wider conjunctions and disjunctions are split into
// nested groups, which leaves their meaning unchanged.
type Builder struct {
	max int
}

// NewBuilder creates a Builder. Ceilings below 2 are raised to 2.
func NewBuilder(maxClauses int) *Builder {
	if maxClauses <= 0 {
		maxClauses = DefaultMaxClauseCount
	}
	if maxClauses < 2 {
		maxClauses = 2
	}
	return &Builder{max: maxClauses}
}

// MaxClauses returns the per-node ceiling.
func (b *Builder) MaxClauses() int { return b.max }

// And matches documents matching every q. No children matches everything.
func (b *Builder) And(qs ...query.Query) query.Query {
	switch len(qs) {
	case 0:
		return bleve.NewMatchAllQuery()
	case 1:
		return qs[0]
	}
	return b.nest(qs, func(children []query.Query) query.Query {
		return bleve.NewConjunctionQuery(children...)
	})
}

// Or matches documents matching any q. No children matches nothing.
func (b *Builder) Or(qs ...query.Query) query.Query {
	switch len(qs) {
	case 0:
		return bleve.NewMatchNoneQuery()
	case 1:
		return qs[0]
	}
	return b.nest(qs, func(children []query.Query) query.Query {
		return bleve.NewDisjunctionQuery(children...)
	})
}

// Not matches every document that q does not match.
func (b *Builder) Not(q query.Query) query.Query {
	bq := bleve.NewBooleanQuery()
	bq.AddMust(bleve.NewMatchAllQuery())
	bq.AddMustNot(q)
	return bq
}

func (b *Builder) nest(qs []query.Query, node func([]query.Query) query.Query) query.Query {
	level := qs
	for len(level) > b.max {
		next := make([]query.Query, 0, (len(level)+b.max-1)/b.max)
		for start := 0; start < len(level); start += b.max {
			end := min(start+b.max, len(level))
			if end-start == 1 {
				next = append(next, level[start])
				continue
			}
			next = append(next, node(append([]query.Query(nil), level[start:end]...)))
		}
		level = next
	}
	return node(level)
}

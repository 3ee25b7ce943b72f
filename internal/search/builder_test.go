package search

import (
	"fmt"
	"testing"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/stretchr/testify/assert"
)

func leaves(n int) []query.Query {
	qs := make([]query.Query, n)
	for i := range qs {
		q := bleve.NewTermQuery(fmt.Sprintf("t%d", i))
		q.SetField("title_exact")
		qs[i] = q
	}
	return qs
}

// countLeaves counts term queries reachable from q.
func countLeaves(q query.Query) int {
	switch v := q.(type) {
	case *query.ConjunctionQuery:
		n := 0
		for _, c := range v.Conjuncts {
			n += countLeaves(c)
		}
		return n
	case *query.DisjunctionQuery:
		n := 0
		for _, c := range v.Disjuncts {
			n += countLeaves(c)
		}
		return n
	case *query.TermQuery:
		return 1
	}
	return 0
}

func TestBuilder_Empty(t *testing.T) {
	b := NewBuilder(4)

	assert.IsType(t, &query.MatchAllQuery{}, b.And())
	assert.IsType(t, &query.MatchNoneQuery{}, b.Or())

	single := leaves(1)[0]
	assert.Same(t, single, b.And(single))
	assert.Same(t, single, b.Or(single))
}

func TestBuilder_FanOutBounded(t *testing.T) {
	tests := []struct {
		max int
		n   int
	}{
		{2, 3},
		{2, 17},
		{4, 4},
		{4, 5},
		{8, 1031},
		{1024, 1031},
		{1024, 5000},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("max=%d/n=%d", tt.max, tt.n), func(t *testing.T) {
			b := NewBuilder(tt.max)
			qs := leaves(tt.n)

			or := b.Or(qs...)
			and := b.And(qs...)

			assert.LessOrEqual(t, maxFanOut(or), tt.max)
			assert.LessOrEqual(t, maxFanOut(and), tt.max)
			assert.Equal(t, tt.n, countLeaves(or))
			assert.Equal(t, tt.n, countLeaves(and))
		})
	}
}

func TestBuilder_NestingKeepsKind(t *testing.T) {
	b := NewBuilder(2)

	or := b.Or(leaves(5)...)
	var walk func(query.Query)
	walk = func(q query.Query) {
		switch v := q.(type) {
		case *query.ConjunctionQuery:
			t.Fatalf("disjunction nested a conjunction")
		case *query.DisjunctionQuery:
			for _, c := range v.Disjuncts {
				walk(c)
			}
		}
	}
	walk(or)
}

func TestBuilder_CeilingFloor(t *testing.T) {
	assert.Equal(t, DefaultMaxClauseCount, NewBuilder(0).MaxClauses())
	assert.Equal(t, DefaultMaxClauseCount, NewBuilder(-3).MaxClauses())
	assert.Equal(t, 2, NewBuilder(1).MaxClauses())
	assert.Equal(t, 7, NewBuilder(7).MaxClauses())
}

func TestBuilder_DoesNotAliasInput(t *testing.T) {
	b := NewBuilder(2)
	qs := leaves(4)

	or := b.Or(qs...)
	qs[0] = bleve.NewMatchNoneQuery()
	qs[3] = bleve.NewMatchNoneQuery()

	assert.Equal(t, 4, countLeaves(or))
}

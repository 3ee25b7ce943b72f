// Package search compiles structured article conditions into bleve queries
// and runs them against the article index.
package search

import (
	"context"
	"fmt"

	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/Aman-CERP/feedsearch/internal/entity"
	"github.com/Aman-CERP/feedsearch/internal/store"
)

// EntityRef identifies a persisted entity without carrying it.
type EntityRef struct {
	Type string
	ID   int64
}

// MatchInfo describes how a hit matched.
type MatchInfo struct {
	Score float64
}

// Hit is one search result.
type Hit struct {
	Ref   EntityRef
	Match MatchInfo
}

// Index is the query side of the article index.
type Index interface {
	Search(ctx context.Context, q query.Query, opts store.SearchOptions) ([]store.Hit, error)
}

// Options configures a Searcher.
type Options struct {
	// MaxClauseCount bounds every boolean node and is applied as the
	// engine ceiling during the search.
	MaxClauseCount int
	// TokenCacheSize is the LRU size of the tokenizer.
	TokenCacheSize int
	// MaxResults caps returned hits (0 = all).
	MaxResults int
	// Clock is the time source for age conditions.
	Clock Clock
}

// Searcher compiles conditions and executes them.
type Searcher struct {
	index     Index
	assembler *Assembler
	opts      Options
}

// NewSearcher wires the full compile pipeline over st and idx.
func NewSearcher(st entity.Store, idx Index, opts Options) *Searcher {
	builder := NewBuilder(opts.MaxClauseCount)
	opts.MaxClauseCount = builder.MaxClauses()

	compiler := NewCompiler(
		NewRegistry(),
		NewTermCompiler(NewTokenizer(opts.TokenCacheSize), builder),
		NewExpander(st),
		NewAgeResolver(opts.Clock),
		builder,
	)
	return &Searcher{
		index:     idx,
		assembler: NewAssembler(compiler, builder),
		opts:      opts,
	}
}

// Assemble builds the query Search would run.
func (s *Searcher) Assemble(ctx context.Context, conditions []Condition, scope *Condition, requireAll bool) (query.Query, error) {
	return s.assembler.Assemble(ctx, conditions, scope, requireAll)
}

// Search returns every article matching the conditions, intersected with
// scope when given. The engine clause ceiling is set for the duration of
// the call and restored afterwards.
func (s *Searcher) Search(ctx context.Context, conditions []Condition, scope *Condition, requireAll bool) ([]Hit, error) {
	q, err := s.Assemble(ctx, conditions, scope, requireAll)
	if err != nil {
		return nil, err
	}
	return s.Execute(ctx, q)
}

// Execute runs a query produced by Assemble.
func (s *Searcher) Execute(ctx context.Context, q query.Query) ([]Hit, error) {
	raw, err := s.index.Search(ctx, q, store.SearchOptions{
		Size:           s.opts.MaxResults,
		MaxClauseCount: s.opts.MaxClauseCount,
	})
	if err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, len(raw))
	for _, h := range raw {
		id, err := store.ParseDocID(h.ID)
		if err != nil {
			return nil, fmt.Errorf("unexpected document id %q: %w", h.ID, err)
		}
		hits = append(hits, Hit{
			Ref:   EntityRef{Type: entity.TypeArticle, ID: id},
			Match: MatchInfo{Score: h.Score},
		})
	}
	return hits, nil
}

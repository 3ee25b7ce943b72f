package search

import (
	"context"
	"fmt"

	"github.com/blevesearch/bleve/v2/search/query"
)

// Assembler combines compiled conditions into one query.
type Assembler struct {
	compiler *Compiler
	builder  *Builder
}

// NewAssembler creates an Assembler.
func NewAssembler(compiler *Compiler, builder *Builder) *Assembler {
	return &Assembler{compiler: compiler, builder: builder}
}

// Assemble compiles every condition and combines them:
//
//   - requireAll: the conjunction of all conditions.
//   - otherwise the disjunction, except when every condition is negated,
//     which yields NOT(AND(positives)).
//
// A scope condition is always intersected on top. No conditions matches
// every document (within scope). Any compile error fails the whole call.
func (a *Assembler) Assemble(ctx context.Context, conditions []Condition, scope *Condition, requireAll bool) (query.Query, error) {
	compiled := make([]Compiled, 0, len(conditions))
	for i, cond := range conditions {
		c, err := a.compiler.Compile(ctx, cond)
		if err != nil {
			return nil, fmt.Errorf("condition %d (%s): %w", i, cond, err)
		}
		compiled = append(compiled, c)
	}

	base := a.combine(compiled, requireAll)
	if scope == nil {
		return base, nil
	}

	sc, err := a.compiler.Compile(ctx, *scope)
	if err != nil {
		return nil, fmt.Errorf("scope (%s): %w", *scope, err)
	}
	if len(compiled) == 0 {
		return sc.Query, nil
	}
	return a.builder.And(base, sc.Query), nil
}

func (a *Assembler) combine(compiled []Compiled, requireAll bool) query.Query {
	queries := make([]query.Query, len(compiled))
	allNegated := len(compiled) > 0
	for i, c := range compiled {
		queries[i] = c.Query
		allNegated = allNegated && c.Negated
	}

	switch {
	case len(compiled) == 0:
		return a.builder.And()
	case requireAll:
		return a.builder.And(queries...)
	case allNegated:
		positives := make([]query.Query, len(compiled))
		for i, c := range compiled {
			positives[i] = c.Positive
		}
		return a.builder.Not(a.builder.And(positives...))
	default:
		return a.builder.Or(queries...)
	}
}

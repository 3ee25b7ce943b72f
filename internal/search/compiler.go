package search

import (
	"context"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/Aman-CERP/feedsearch/internal/entity"
	fserrors "github.com/Aman-CERP/feedsearch/internal/errors"
	"github.com/Aman-CERP/feedsearch/internal/store"
)

// Compiled is the query for one condition. For negated conditions
// Positive holds the query of the un-negated condition.
type Compiled struct {
	Query    query.Query
	Positive query.Query
	Negated  bool
}

// Compiler turns single conditions into self-contained queries.
type Compiler struct {
	registry  *Registry
	terms     *TermCompiler
	locations *Expander
	ages      *AgeResolver
	builder   *Builder
}

// NewCompiler wires a Compiler from its parts.
func NewCompiler(registry *Registry, terms *TermCompiler, locations *Expander, ages *AgeResolver, builder *Builder) *Compiler {
	return &Compiler{
		registry:  registry,
		terms:     terms,
		locations: locations,
		ages:      ages,
		builder:   builder,
	}
}

// Compile validates cond against the registry and compiles it.
func (c *Compiler) Compile(ctx context.Context, cond Condition) (Compiled, error) {
	spec, err := c.registry.Check(cond.Field, cond.Specifier)
	if err != nil {
		return Compiled{}, err
	}

	if cond.Specifier.Negation() {
		positive, err := c.compilePositive(ctx, spec, cond.Specifier.Positive(), cond.Value)
		if err != nil {
			return Compiled{}, err
		}
		return Compiled{Query: c.builder.Not(positive), Positive: positive, Negated: true}, nil
	}

	q, err := c.compilePositive(ctx, spec, cond.Specifier, cond.Value)
	if err != nil {
		return Compiled{}, err
	}
	return Compiled{Query: q, Positive: q}, nil
}

func (c *Compiler) compilePositive(ctx context.Context, spec FieldSpec, sp Specifier, v Value) (query.Query, error) {
	switch spec.Kind {
	case KindLocation:
		return c.compileLocation(ctx, spec, v)
	case KindAge:
		n, err := AgeValue(v)
		if err != nil {
			return nil, err
		}
		return c.ages.Query(sp, n)
	case KindStates:
		return c.compileStates(spec, v)
	case KindBool:
		return c.compileBool(spec, v)
	default:
		text, ok := v.Text()
		if !ok {
			return nil, fserrors.InvalidValue("field %s expects text, got %s", spec.Field, v)
		}
		return c.terms.Compile(spec, sp, text)
	}
}

func (c *Compiler) compileLocation(ctx context.Context, spec FieldSpec, v Value) (query.Query, error) {
	set, ok := v.Locations()
	if !ok {
		return nil, fserrors.InvalidValue("field %s expects a location set, got %s", spec.Field, v)
	}
	leaves, err := c.locations.Expand(ctx, set)
	if err != nil {
		return nil, fserrors.InternalError("location expansion failed", err)
	}

	clauses := make([]query.Query, 0, len(leaves))
	for _, leaf := range leaves {
		q := bleve.NewTermQuery(leaf)
		q.SetField(store.FieldLocation)
		clauses = append(clauses, q)
	}
	return c.builder.Or(clauses...), nil
}

func (c *Compiler) compileStates(spec FieldSpec, v Value) (query.Query, error) {
	states, ok := v.States()
	if !ok {
		text, isText := v.Text()
		if !isText {
			return nil, fserrors.InvalidValue("field %s expects a state set, got %s", spec.Field, v)
		}
		for _, name := range strings.FieldsFunc(text, func(r rune) bool { return r == ',' || r == ' ' }) {
			s, err := entity.ParseState(name)
			if err != nil {
				return nil, fserrors.InvalidValue("%v", err)
			}
			states = append(states, s)
		}
	}
	if len(states) == 0 {
		return nil, fserrors.InvalidValue("field %s needs at least one state", spec.Field)
	}

	clauses := make([]query.Query, 0, len(states))
	for _, s := range states {
		q := bleve.NewTermQuery(s.String())
		q.SetField(store.FieldState)
		clauses = append(clauses, q)
	}
	return c.builder.Or(clauses...), nil
}

func (c *Compiler) compileBool(spec FieldSpec, v Value) (query.Query, error) {
	b, ok := v.Bool()
	if !ok {
		text, isText := v.Text()
		parsed, err := strconv.ParseBool(strings.TrimSpace(text))
		if !isText || err != nil {
			return nil, fserrors.InvalidValue("field %s expects a boolean, got %s", spec.Field, v)
		}
		b = parsed
	}
	q := bleve.NewBoolFieldQuery(b)
	q.SetField(spec.Exact[0])
	return q, nil
}

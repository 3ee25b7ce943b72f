package search

import (
	"strings"
	"unicode"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	fserrors "github.com/Aman-CERP/feedsearch/internal/errors"
)

// DefaultTokenCacheSize is the LRU size used when none is configured.
const DefaultTokenCacheSize = 512

// TokenKind classifies a token of a search value.
type TokenKind int

const (
	// TokenWord is a plain word.
	TokenWord TokenKind = iota + 1
	// TokenWildcard is a word containing * or ?.
	TokenWildcard
	// TokenPhrase is a double-quoted span; wildcards inside are literal.
	TokenPhrase
)

// Token is one unit of a tokenized search value.
type Token struct {
	Text string
	Kind TokenKind
}

// Tokenizer splits search values into tokens, caching results.
type Tokenizer struct {
	cache *lru.Cache[string, []Token]
}

// NewTokenizer creates a tokenizer with an LRU of the given size.
func NewTokenizer(cacheSize int) *Tokenizer {
	if cacheSize <= 0 {
		cacheSize = DefaultTokenCacheSize
	}
	cache, _ := lru.New[string, []Token](cacheSize)
	return &Tokenizer{cache: cache}
}

// Tokenize splits raw on whitespace. A quote at the start of a token opens
// a phrase that runs to the next quote, or to the end of the input when
// unterminated. Quotes anywhere else are literal characters.
func (t *Tokenizer) Tokenize(raw string) []Token {
	if cached, ok := t.cache.Get(raw); ok {
		return append([]Token(nil), cached...)
	}
	tokens := tokenize(raw)
	t.cache.Add(raw, tokens)
	return append([]Token(nil), tokens...)
}

func tokenize(raw string) []Token {
	var tokens []Token
	rs := []rune(raw)

	for i := 0; i < len(rs); {
		if unicode.IsSpace(rs[i]) {
			i++
			continue
		}

		if rs[i] == '"' {
			end := i + 1
			for end < len(rs) && rs[end] != '"' {
				end++
			}
			if text := strings.TrimSpace(string(rs[i+1 : end])); text != "" {
				tokens = append(tokens, Token{Text: text, Kind: TokenPhrase})
			}
			i = end + 1
			continue
		}

		end := i
		for end < len(rs) && !unicode.IsSpace(rs[end]) {
			end++
		}
		word := string(rs[i:end])
		kind := TokenWord
		if hasWildcard(word) {
			kind = TokenWildcard
		}
		tokens = append(tokens, Token{Text: word, Kind: kind})
		i = end
	}
	return tokens
}

func hasWildcard(s string) bool {
	return strings.ContainsAny(s, "*?")
}

// TermCompiler builds queries for text fields.
//
// Wildcards are matched against single analyzed terms. A wildcard token
// that also contains punctuation ("foo-ba*") therefore spans several terms
// and is not guaranteed to match.
type TermCompiler struct {
	tokens  *Tokenizer
	builder *Builder
}

// NewTermCompiler creates a TermCompiler.
func NewTermCompiler(tokens *Tokenizer, builder *Builder) *TermCompiler {
	return &TermCompiler{tokens: tokens, builder: builder}
}

// Compile builds the query for sp over the index fields of spec.
func (c *TermCompiler) Compile(spec FieldSpec, sp Specifier, raw string) (query.Query, error) {
	switch sp {
	case Contains, ContainsAll, ContainsNot:
		return c.compileTerms(spec, sp, raw)
	case Is, IsNot, BeginsWith, EndsWith:
		return c.compileWhole(spec, sp, raw)
	default:
		return nil, fserrors.InvalidField("specifier %s is not supported by text field %s", sp, spec.Field)
	}
}

func (c *TermCompiler) compileTerms(spec FieldSpec, sp Specifier, raw string) (query.Query, error) {
	tokens := c.tokens.Tokenize(raw)
	if len(tokens) == 0 {
		return nil, fserrors.InvalidValue("%s needs at least one search term", spec.Field)
	}

	clauses := make([]query.Query, 0, len(tokens))
	for _, tok := range tokens {
		perField := make([]query.Query, 0, len(spec.Analyzed))
		for _, field := range spec.Analyzed {
			perField = append(perField, tokenQuery(tok, field))
		}
		clauses = append(clauses, c.builder.Or(perField...))
	}

	switch sp {
	case ContainsAll:
		return c.builder.And(clauses...), nil
	case ContainsNot:
		return c.builder.Not(c.builder.Or(clauses...)), nil
	default:
		return c.builder.Or(clauses...), nil
	}
}

func tokenQuery(tok Token, field string) query.Query {
	if tok.Kind == TokenWildcard {
		q := bleve.NewWildcardQuery(strings.ToLower(tok.Text))
		q.SetField(field)
		return q
	}
	q := bleve.NewMatchPhraseQuery(tok.Text)
	q.SetField(field)
	return q
}

// compileWhole matches the whole normalized value against the exact fields.
func (c *TermCompiler) compileWhole(spec FieldSpec, sp Specifier, raw string) (query.Query, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	literal := false
	if len(value) >= 2 && strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`) {
		value = value[1 : len(value)-1]
		literal = true
	}
	if value == "" {
		return nil, fserrors.InvalidValue("%s needs a non-empty value", spec.Field)
	}

	pattern := value
	switch sp {
	case BeginsWith:
		pattern = value + "*"
	case EndsWith:
		pattern = "*" + value
	}
	wildcard := sp == BeginsWith || sp == EndsWith || (!literal && hasWildcard(value))

	perField := make([]query.Query, 0, len(spec.Exact))
	for _, field := range spec.Exact {
		if wildcard {
			q := bleve.NewWildcardQuery(pattern)
			q.SetField(field)
			perField = append(perField, q)
			continue
		}
		q := bleve.NewTermQuery(value)
		q.SetField(field)
		perField = append(perField, q)
	}

	match := c.builder.Or(perField...)
	if sp == IsNot {
		return c.builder.Not(match), nil
	}
	return match, nil
}

package search

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/Aman-CERP/feedsearch/internal/entity"
	fserrors "github.com/Aman-CERP/feedsearch/internal/errors"
)

// maxSpecifierWords is the longest specifier spelled as separate words
// ("is less than").
const maxSpecifierWords = 3

// Parser reads conditions written as "<field> <specifier> <value>":
//
//	title contains "release notes"
//	age is less than 7
//	state is unread,new
//	flagged is true
//	location scope folder:1,bin:7
//
// Multi-word specifiers may use spaces or underscores. Text values are
// kept verbatim so quotes and wildcards reach the term compiler.
//
// The specifier is the longest run of words naming one the field allows,
// so "title is less than 3" is IS "less than 3" while "age is less than 3"
// is IS_LESS_THAN 3. Among allowed readings the longest wins:
// "title contains all of it" is CONTAINS_ALL "of it". Quote the value to
// keep a leading specifier word in it.
type Parser struct {
	registry *Registry
}

// NewParser creates a Parser validating against registry.
func NewParser(registry *Registry) *Parser {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Parser{registry: registry}
}

// Parse parses one condition expression.
func (p *Parser) Parse(expr string) (Condition, error) {
	fieldName, rest := nextWord(expr)
	if fieldName == "" {
		return Condition{}, fserrors.InvalidField("empty condition")
	}
	id, err := ParseFieldID(fieldName)
	if err != nil {
		return Condition{}, err
	}

	spec, err := p.registry.Resolve(ArticleField(id))
	if err != nil {
		return Condition{}, err
	}
	sp, rest, err := parseSpecifier(rest, spec)
	if err != nil {
		return Condition{}, err
	}
	spec, err = p.registry.Check(ArticleField(id), sp)
	if err != nil {
		return Condition{}, err
	}

	v, err := parseValue(spec, strings.TrimSpace(rest))
	if err != nil {
		return Condition{}, err
	}
	return NewCondition(id, sp, v), nil
}

// ParseAll parses every expression, failing on the first bad one.
func (p *Parser) ParseAll(exprs []string) ([]Condition, error) {
	out := make([]Condition, 0, len(exprs))
	for _, expr := range exprs {
		c, err := p.Parse(expr)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// parseSpecifier takes the longest run of words naming a specifier that
// spec allows. When none is allowed it returns the longest match and leaves
// the rejection to the registry.
func parseSpecifier(s string, spec FieldSpec) (Specifier, string, error) {
	var words []string
	rests := []string{}
	rest := s
	for i := 0; i < maxSpecifierWords; i++ {
		w, r := nextWord(rest)
		if w == "" {
			break
		}
		words = append(words, w)
		rests = append(rests, r)
		rest = r
	}
	if len(words) == 0 {
		return 0, "", fserrors.InvalidField("missing specifier")
	}

	var (
		longest     Specifier
		longestRest string
		matched     bool
	)
	for n := len(words); n > 0; n-- {
		sp, err := ParseSpecifier(strings.Join(words[:n], "_"))
		if err != nil {
			continue
		}
		if spec.Allows(sp) {
			return sp, rests[n-1], nil
		}
		if !matched {
			longest, longestRest, matched = sp, rests[n-1], true
		}
	}
	if matched {
		return longest, longestRest, nil
	}
	return 0, "", fserrors.InvalidField("unknown specifier %q", words[0])
}

func parseValue(spec FieldSpec, raw string) (Value, error) {
	if raw == "" {
		return Value{}, fserrors.InvalidValue("%s needs a value", spec.Field)
	}

	switch spec.Kind {
	case KindStates:
		var states []entity.State
		for _, name := range splitList(raw) {
			st, err := entity.ParseState(name)
			if err != nil {
				return Value{}, fserrors.InvalidValue("%s", err.Error())
			}
			states = append(states, st)
		}
		return StatesValue(states...), nil
	case KindBool:
		b, err := parseBool(raw)
		if err != nil {
			return Value{}, err
		}
		return BoolValue(b), nil
	case KindAge:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Value{}, fserrors.InvalidValue("age value %q is not an integer", raw)
		}
		return IntValue(n), nil
	case KindLocation:
		set, err := parseLocations(raw)
		if err != nil {
			return Value{}, err
		}
		return LocationsValue(set), nil
	default:
		return TextValue(raw), nil
	}
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(raw) {
	case "yes", "y", "on":
		return true, nil
	case "no", "n", "off":
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fserrors.InvalidValue("%q is not a boolean", raw)
	}
	return b, nil
}

// parseLocations reads "folder:1,bookmark:2,bin:3".
func parseLocations(raw string) (LocationSet, error) {
	var set LocationSet
	for _, ref := range splitList(raw) {
		kind, idText, ok := strings.Cut(ref, ":")
		if !ok {
			return LocationSet{}, fserrors.InvalidValue("location %q must look like folder:<id>", ref)
		}
		id, err := strconv.ParseInt(idText, 10, 64)
		if err != nil {
			return LocationSet{}, fserrors.InvalidValue("location %q has a non-numeric id", ref)
		}
		switch strings.ToLower(kind) {
		case "folder", "f":
			set.Folders = append(set.Folders, id)
		case "bookmark", "b":
			set.Bookmarks = append(set.Bookmarks, id)
		case "bin", "n":
			set.Bins = append(set.Bins, id)
		default:
			return LocationSet{}, fserrors.InvalidValue("unknown location kind %q", kind)
		}
	}
	return set, nil
}

func splitList(raw string) []string {
	return strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
}

// nextWord splits off the first whitespace-delimited word.
func nextWord(s string) (word, rest string) {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	end := strings.IndexFunc(s, unicode.IsSpace)
	if end < 0 {
		return s, ""
	}
	return s[:end], s[end:]
}

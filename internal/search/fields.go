package search

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Aman-CERP/feedsearch/internal/entity"
	fserrors "github.com/Aman-CERP/feedsearch/internal/errors"
	"github.com/Aman-CERP/feedsearch/internal/store"
)

// FieldID is the semantic id of a searchable attribute.
type FieldID int

const (
	FieldAllFields FieldID = iota + 1
	FieldTitle
	FieldDescription
	FieldAuthor
	FieldCategories
	FieldAttachmentsContent
	FieldLabel
	FieldState
	FieldIsFlagged
	FieldAge
	FieldLocation
	FieldFeed
	FieldHasAttachments
)

var fieldNames = map[FieldID]string{
	FieldAllFields:          "all_fields",
	FieldTitle:              "title",
	FieldDescription:        "description",
	FieldAuthor:             "author",
	FieldCategories:         "categories",
	FieldAttachmentsContent: "attachments_content",
	FieldLabel:              "label",
	FieldState:              "state",
	FieldIsFlagged:          "is_flagged",
	FieldAge:                "age",
	FieldLocation:           "location",
	FieldFeed:               "feed",
	FieldHasAttachments:     "has_attachments",
}

func (f FieldID) String() string {
	if n, ok := fieldNames[f]; ok {
		return n
	}
	return fmt.Sprintf("field(%d)", int(f))
}

// ParseFieldID resolves a field name such as "title" or "all_fields".
func ParseFieldID(name string) (FieldID, error) {
	name = strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), "-", "_"))
	switch name {
	case "all", "any":
		return FieldAllFields, nil
	case "flagged":
		return FieldIsFlagged, nil
	case "attachments":
		return FieldAttachmentsContent, nil
	}
	for id, n := range fieldNames {
		if n == name {
			return id, nil
		}
	}
	return 0, fserrors.InvalidField("unknown field %q", name)
}

// Field is a semantic field owned by an entity type.
type Field struct {
	ID         FieldID
	EntityType string
}

// ArticleField returns the article-owned field with the given id.
func ArticleField(id FieldID) Field {
	return Field{ID: id, EntityType: entity.TypeArticle}
}

func (f Field) String() string {
	return f.EntityType + "." + f.ID.String()
}

// Specifier is the comparison applied by a condition.
type Specifier int

const (
	Is Specifier = iota + 1
	IsNot
	Contains
	ContainsAll
	ContainsNot
	BeginsWith
	EndsWith
	IsLessThan
	IsGreaterThan
	Scope
)

var specifierNames = map[Specifier]string{
	Is:            "is",
	IsNot:         "is_not",
	Contains:      "contains",
	ContainsAll:   "contains_all",
	ContainsNot:   "contains_not",
	BeginsWith:    "begins_with",
	EndsWith:      "ends_with",
	IsLessThan:    "is_less_than",
	IsGreaterThan: "is_greater_than",
	Scope:         "scope",
}

func (s Specifier) String() string {
	if n, ok := specifierNames[s]; ok {
		return n
	}
	return fmt.Sprintf("specifier(%d)", int(s))
}

// ParseSpecifier resolves a specifier name such as "contains_all".
func ParseSpecifier(name string) (Specifier, error) {
	name = strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), "-", "_"))
	switch name {
	case "less_than", "lt", "<":
		return IsLessThan, nil
	case "greater_than", "gt", ">":
		return IsGreaterThan, nil
	case "=", "==":
		return Is, nil
	case "!=":
		return IsNot, nil
	}
	for s, n := range specifierNames {
		if n == name {
			return s, nil
		}
	}
	return 0, fserrors.InvalidField("unknown specifier %q", name)
}

// Negation reports whether the specifier excludes what its positive
// counterpart matches.
func (s Specifier) Negation() bool {
	return s == IsNot || s == ContainsNot
}

// Positive returns the specifier whose complement s is.
func (s Specifier) Positive() Specifier {
	switch s {
	case IsNot:
		return Is
	case ContainsNot:
		return Contains
	default:
		return s
	}
}

// Kind is the value family a field compiles.
type Kind int

const (
	KindText Kind = iota + 1
	KindStates
	KindBool
	KindAge
	KindLocation
)

// FieldSpec describes how a field maps onto the index.
type FieldSpec struct {
	Field      Field
	Kind       Kind
	Analyzed   []string
	Exact      []string
	Specifiers []Specifier
}

// Allows reports whether sp may be used with the field.
func (s FieldSpec) Allows(sp Specifier) bool {
	return slices.Contains(s.Specifiers, sp)
}

var textSpecifiers = []Specifier{Is, IsNot, Contains, ContainsAll, ContainsNot, BeginsWith, EndsWith}

// Registry maps semantic fields to index fields. It is immutable after
// construction and safe for concurrent use.
type Registry struct {
	specs map[Field]FieldSpec
}

// NewRegistry returns the registry of article fields.
func NewRegistry() *Registry {
	r := &Registry{specs: make(map[Field]FieldSpec)}

	text := func(id FieldID, index string) {
		r.add(FieldSpec{
			Field:      ArticleField(id),
			Kind:       KindText,
			Analyzed:   []string{index},
			Exact:      []string{store.Exact(index)},
			Specifiers: textSpecifiers,
		})
	}
	text(FieldTitle, store.FieldTitle)
	text(FieldDescription, store.FieldDescription)
	text(FieldAuthor, store.FieldAuthor)
	text(FieldCategories, store.FieldCategories)
	text(FieldAttachmentsContent, store.FieldAttachments)
	text(FieldLabel, store.FieldLabel)
	text(FieldFeed, store.FieldFeed)

	all := FieldSpec{Field: ArticleField(FieldAllFields), Kind: KindText, Specifiers: textSpecifiers}
	for _, id := range []FieldID{FieldTitle, FieldDescription, FieldAuthor, FieldCategories, FieldAttachmentsContent} {
		s := r.specs[ArticleField(id)]
		all.Analyzed = append(all.Analyzed, s.Analyzed...)
		all.Exact = append(all.Exact, s.Exact...)
	}
	r.add(all)

	r.add(FieldSpec{
		Field:      ArticleField(FieldState),
		Kind:       KindStates,
		Exact:      []string{store.FieldState},
		Specifiers: []Specifier{Is, IsNot},
	})
	r.add(FieldSpec{
		Field:      ArticleField(FieldIsFlagged),
		Kind:       KindBool,
		Exact:      []string{store.FieldFlagged},
		Specifiers: []Specifier{Is, IsNot},
	})
	r.add(FieldSpec{
		Field:      ArticleField(FieldHasAttachments),
		Kind:       KindBool,
		Exact:      []string{store.FieldHasAttachments},
		Specifiers: []Specifier{Is, IsNot},
	})
	r.add(FieldSpec{
		Field:      ArticleField(FieldAge),
		Kind:       KindAge,
		Exact:      []string{store.FieldAge},
		Specifiers: []Specifier{Is, IsLessThan, IsGreaterThan},
	})
	r.add(FieldSpec{
		Field:      ArticleField(FieldLocation),
		Kind:       KindLocation,
		Exact:      []string{store.FieldLocation},
		Specifiers: []Specifier{Is, IsNot, Scope},
	})
	return r
}

func (r *Registry) add(s FieldSpec) {
	r.specs[s.Field] = s
}

// Resolve returns the spec of f, or InvalidField for unknown pairs.
func (r *Registry) Resolve(f Field) (FieldSpec, error) {
	s, ok := r.specs[f]
	if !ok {
		return FieldSpec{}, fserrors.InvalidField("unknown field %s", f).
			WithDetail("field", f.ID.String()).
			WithDetail("entity_type", f.EntityType)
	}
	return s, nil
}

// Check resolves f and verifies that sp is allowed for it.
func (r *Registry) Check(f Field, sp Specifier) (FieldSpec, error) {
	s, err := r.Resolve(f)
	if err != nil {
		return FieldSpec{}, err
	}
	if !s.Allows(sp) {
		return FieldSpec{}, fserrors.InvalidField("specifier %s is not supported by field %s", sp, f).
			WithDetail("field", f.ID.String()).
			WithDetail("specifier", sp.String())
	}
	return s, nil
}

// Fields lists every registered field, ordered by id.
func (r *Registry) Fields() []Field {
	out := make([]Field, 0, len(r.specs))
	for f := range r.specs {
		out = append(out, f)
	}
	slices.SortFunc(out, func(a, b Field) int { return int(a.ID) - int(b.ID) })
	return out
}

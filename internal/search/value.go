package search

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Aman-CERP/feedsearch/internal/entity"
)

// ValueKind tags the variant held by a Value.
type ValueKind int

const (
	ValueText ValueKind = iota + 1
	ValueStates
	ValueBool
	ValueInt
	ValueLocations
)

// LocationSet selects folders, bookmarks and bins by id.
type LocationSet struct {
	Folders   []int64
	Bookmarks []int64
	Bins      []int64
}

// Empty reports whether nothing is selected.
func (s LocationSet) Empty() bool {
	return len(s.Folders) == 0 && len(s.Bookmarks) == 0 && len(s.Bins) == 0
}

// Value is the tagged union of condition values. The zero Value holds no
// variant and is rejected by the compiler.
type Value struct {
	kind   ValueKind
	text   string
	states []entity.State
	b      bool
	n      int64
	locs   LocationSet
}

// TextValue holds free text.
func TextValue(s string) Value { return Value{kind: ValueText, text: s} }

// StatesValue holds a set of article states.
func StatesValue(states ...entity.State) Value {
	return Value{kind: ValueStates, states: append([]entity.State(nil), states...)}
}

// BoolValue holds a boolean.
func BoolValue(b bool) Value { return Value{kind: ValueBool, b: b} }

// IntValue holds a signed integer, used by age conditions.
func IntValue(n int64) Value { return Value{kind: ValueInt, n: n} }

// LocationsValue holds a location selection.
func LocationsValue(set LocationSet) Value { return Value{kind: ValueLocations, locs: set} }

// Kind returns the variant tag.
func (v Value) Kind() ValueKind { return v.kind }

// Text returns the text variant.
func (v Value) Text() (string, bool) { return v.text, v.kind == ValueText }

// States returns the state-set variant.
func (v Value) States() ([]entity.State, bool) { return v.states, v.kind == ValueStates }

// Bool returns the boolean variant.
func (v Value) Bool() (bool, bool) { return v.b, v.kind == ValueBool }

// Int returns the integer variant.
func (v Value) Int() (int64, bool) { return v.n, v.kind == ValueInt }

// Locations returns the location variant.
func (v Value) Locations() (LocationSet, bool) { return v.locs, v.kind == ValueLocations }

func (v Value) String() string {
	switch v.kind {
	case ValueText:
		return strconv.Quote(v.text)
	case ValueStates:
		names := make([]string, len(v.states))
		for i, s := range v.states {
			names[i] = s.String()
		}
		return "{" + strings.Join(names, ",") + "}"
	case ValueBool:
		return strconv.FormatBool(v.b)
	case ValueInt:
		return strconv.FormatInt(v.n, 10)
	case ValueLocations:
		return fmt.Sprintf("folders%v bookmarks%v bins%v", v.locs.Folders, v.locs.Bookmarks, v.locs.Bins)
	default:
		return "<none>"
	}
}

// Condition is one search criterion.
type Condition struct {
	Field     Field
	Specifier Specifier
	Value     Value
}

// NewCondition builds a condition on an article field.
func NewCondition(id FieldID, sp Specifier, v Value) Condition {
	return Condition{Field: ArticleField(id), Specifier: sp, Value: v}
}

func (c Condition) String() string {
	return fmt.Sprintf("%s %s %s", c.Field.ID, c.Specifier, c.Value)
}

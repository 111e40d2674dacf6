// Package criteria builds the boolean query trees that the document index
// executes. Everything here is pure: no I/O and no errors.
package criteria

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Op identifies a group or leaf predicate.
type Op string

const (
	OpAnd      Op = "and"
	OpOr       Op = "or"
	OpContains Op = "contains"
	OpEquals   Op = "equals"
	OpRange    Op = "range"
	OpFuzzy    Op = "fuzzy"
)

// Field names an item attribute a leaf applies to. The names match the JSON
// and index field names.
type Field string

const (
	FieldName        Field = "name"
	FieldDescription Field = "description"
	FieldCategory    Field = "category"
	FieldPrice       Field = "price"
	FieldStock       Field = "stock"
	FieldTags        Field = "tags"
	FieldIsActive    Field = "is_active"
)

// Kind is how a field is stored in the index.
type Kind int

const (
	KindText Kind = iota
	KindKeyword
	KindNumeric
	KindBool
)

// Kind reports how the field is stored.
func (f Field) Kind() Kind {
	switch f {
	case FieldName, FieldDescription:
		return KindText
	case FieldCategory, FieldTags:
		return KindKeyword
	case FieldPrice, FieldStock:
		return KindNumeric
	case FieldIsActive:
		return KindBool
	default:
		return KindKeyword
	}
}

// Node is either a group (and, or) with Children or a leaf on Field.
// Value holds a string for contains, fuzzy and keyword equals, or a bool for
// is_active. Min and Max bound a range leaf inclusively; nil is open.
type Node struct {
	Op       Op
	Field    Field
	Value    any
	Min      *decimal.Decimal
	Max      *decimal.Decimal
	Children []Node
}

func And(children ...Node) Node { return Node{Op: OpAnd, Children: children} }

func Or(children ...Node) Node { return Node{Op: OpOr, Children: children} }

func Contains(field Field, text string) Node {
	return Node{Op: OpContains, Field: field, Value: text}
}

func Equals(field Field, value any) Node {
	return Node{Op: OpEquals, Field: field, Value: value}
}

func Range(field Field, lo, hi *decimal.Decimal) Node {
	return Node{Op: OpRange, Field: field, Min: lo, Max: hi}
}

func Fuzzy(field Field, text string) Node {
	return Node{Op: OpFuzzy, Field: field, Value: text}
}

// Active is the leaf that restricts a query to active items.
func Active() Node { return Equals(FieldIsActive, true) }

// IsLeaf reports whether n is a predicate rather than a group.
func (n Node) IsLeaf() bool {
	return n.Op != OpAnd && n.Op != OpOr
}

// Leaves returns every leaf under n in depth-first order.
func (n Node) Leaves() []Node {
	if n.IsLeaf() {
		return []Node{n}
	}
	var out []Node
	for _, c := range n.Children {
		out = append(out, c.Leaves()...)
	}
	return out
}

// Text returns the string value of a leaf, or "" if it has none.
func (n Node) Text() string {
	s, _ := n.Value.(string)
	return s
}

// Bool returns the boolean value of a leaf and whether it holds one.
func (n Node) Bool() (bool, bool) {
	b, ok := n.Value.(bool)
	return b, ok
}

// Decimal returns the numeric value of a leaf and whether it holds one.
func (n Node) Decimal() (decimal.Decimal, bool) {
	switch v := n.Value.(type) {
	case decimal.Decimal:
		return v, true
	case int:
		return decimal.NewFromInt(int64(v)), true
	case int64:
		return decimal.NewFromInt(v), true
	case string:
		d, err := decimal.NewFromString(v)
		return d, err == nil
	default:
		return decimal.Decimal{}, false
	}
}

// String renders n in a stable prefix form, e.g.
// and(equals(category,"books"),equals(is_active,true)).
func (n Node) String() string {
	var b strings.Builder
	n.write(&b)
	return b.String()
}

func (n Node) write(b *strings.Builder) {
	b.WriteString(string(n.Op))
	b.WriteByte('(')
	switch n.Op {
	case OpAnd, OpOr:
		for i, c := range n.Children {
			if i > 0 {
				b.WriteByte(',')
			}
			c.write(b)
		}
	case OpRange:
		b.WriteString(string(n.Field))
		b.WriteByte(',')
		b.WriteString(bound(n.Min))
		b.WriteByte(',')
		b.WriteString(bound(n.Max))
	default:
		b.WriteString(string(n.Field))
		b.WriteByte(',')
		b.WriteString(literal(n.Value))
	}
	b.WriteByte(')')
}

func bound(d *decimal.Decimal) string {
	if d == nil {
		return "*"
	}
	return d.String()
}

func literal(v any) string {
	switch x := v.(type) {
	case string:
		return strconv.Quote(x)
	case bool:
		return strconv.FormatBool(x)
	case decimal.Decimal:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

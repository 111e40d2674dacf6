package postgres

import (
	"fmt"
	"strings"

	"github.com/utafrali/catalog-search/internal/criteria"
)

// fuzzyThreshold is the minimum pg_trgm word similarity for a fuzzy match.
const fuzzyThreshold = 0.3

// sqlBuilder renders query trees into parameterized SQL fragments. Arguments
// accumulate across calls so one builder serves a whole statement.
type sqlBuilder struct {
	args []any
}

func (b *sqlBuilder) arg(v any) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

// where renders n as a boolean SQL expression.
func (b *sqlBuilder) where(n criteria.Node) string {
	switch n.Op {
	case criteria.OpAnd, criteria.OpOr:
		if len(n.Children) == 0 {
			if n.Op == criteria.OpAnd {
				return "TRUE"
			}
			return "FALSE"
		}
		parts := make([]string, 0, len(n.Children))
		for _, c := range n.Children {
			parts = append(parts, b.where(c))
		}
		sep := " AND "
		if n.Op == criteria.OpOr {
			sep = " OR "
		}
		return "(" + strings.Join(parts, sep) + ")"

	case criteria.OpContains:
		pattern := "%" + escapeLike(n.Text()) + "%"
		if n.Field == criteria.FieldTags {
			return fmt.Sprintf("EXISTS (SELECT 1 FROM unnest(tags) AS t WHERE t ILIKE %s)", b.arg(pattern))
		}
		return fmt.Sprintf("%s ILIKE %s", n.Field, b.arg(pattern))

	case criteria.OpEquals:
		switch {
		case n.Field == criteria.FieldTags:
			return fmt.Sprintf("%s = ANY(tags)", b.arg(n.Text()))
		case n.Field.Kind() == criteria.KindBool:
			v, _ := n.Bool()
			return fmt.Sprintf("%s = %s", n.Field, b.arg(v))
		case n.Field.Kind() == criteria.KindNumeric:
			d, _ := n.Decimal()
			return fmt.Sprintf("%s = %s::numeric", n.Field, b.arg(d.String()))
		default:
			return fmt.Sprintf("%s = %s", n.Field, b.arg(n.Text()))
		}

	case criteria.OpRange:
		var parts []string
		if n.Min != nil {
			parts = append(parts, fmt.Sprintf("%s >= %s::numeric", n.Field, b.arg(n.Min.String())))
		}
		if n.Max != nil {
			parts = append(parts, fmt.Sprintf("%s <= %s::numeric", n.Field, b.arg(n.Max.String())))
		}
		if len(parts) == 0 {
			return "TRUE"
		}
		return "(" + strings.Join(parts, " AND ") + ")"

	case criteria.OpFuzzy:
		return fmt.Sprintf("word_similarity(%s, %s) >= %g", b.arg(n.Text()), n.Field, fuzzyThreshold)
	}
	return "FALSE"
}

// score renders the relevance expression for n. Only contains and fuzzy
// leaves score; a tree without them scores a constant 1.
func (b *sqlBuilder) score(n criteria.Node) string {
	terms := b.scoreTerms(n)
	if len(terms) == 0 {
		return "1"
	}
	return strings.Join(terms, " + ")
}

func (b *sqlBuilder) scoreTerms(n criteria.Node) []string {
	switch n.Op {
	case criteria.OpAnd, criteria.OpOr:
		var out []string
		for _, c := range n.Children {
			out = append(out, b.scoreTerms(c)...)
		}
		return out
	case criteria.OpContains:
		weight := 1
		if n.Field == criteria.FieldName {
			weight = 2
		}
		return []string{fmt.Sprintf("CASE WHEN %s THEN %d ELSE 0 END", b.where(n), weight)}
	case criteria.OpFuzzy:
		return []string{fmt.Sprintf("word_similarity(%s, %s)", b.arg(n.Text()), n.Field)}
	}
	return nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

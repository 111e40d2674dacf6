package memory

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/xrash/smetrics"

	"github.com/utafrali/catalog-search/internal/criteria"
	"github.com/utafrali/catalog-search/internal/domain"
)

// eval reports whether item satisfies n and the relevance score it earns.
// Only text and fuzzy leaves contribute to the score.
func eval(n criteria.Node, item *domain.Item) (bool, float64) {
	switch n.Op {
	case criteria.OpAnd:
		var total float64
		for _, c := range n.Children {
			ok, s := eval(c, item)
			if !ok {
				return false, 0
			}
			total += s
		}
		return true, total
	case criteria.OpOr:
		matched := false
		var total float64
		for _, c := range n.Children {
			if ok, s := eval(c, item); ok {
				matched = true
				total += s
			}
		}
		return matched, total
	case criteria.OpContains:
		return containsLeaf(n, item)
	case criteria.OpEquals:
		return equalsLeaf(n, item), 0
	case criteria.OpRange:
		return rangeLeaf(n, item), 0
	case criteria.OpFuzzy:
		return fuzzyLeaf(n, item)
	default:
		return false, 0
	}
}

func textOf(f criteria.Field, item *domain.Item) []string {
	switch f {
	case criteria.FieldName:
		return []string{item.Name}
	case criteria.FieldDescription:
		return []string{item.Description}
	case criteria.FieldCategory:
		return []string{item.Category}
	case criteria.FieldTags:
		return item.Tags
	default:
		return nil
	}
}

func numberOf(f criteria.Field, item *domain.Item) (decimal.Decimal, bool) {
	switch f {
	case criteria.FieldPrice:
		return item.Price, true
	case criteria.FieldStock:
		return decimal.NewFromInt(int64(item.Stock)), true
	default:
		return decimal.Decimal{}, false
	}
}

func containsLeaf(n criteria.Node, item *domain.Item) (bool, float64) {
	needle := strings.ToLower(n.Text())
	for _, v := range textOf(n.Field, item) {
		if strings.Contains(strings.ToLower(v), needle) {
			if n.Field == criteria.FieldName {
				return true, 2
			}
			return true, 1
		}
	}
	return false, 0
}

func equalsLeaf(n criteria.Node, item *domain.Item) bool {
	if n.Field == criteria.FieldIsActive {
		b, ok := n.Bool()
		return ok && item.IsActive == b
	}
	if d, ok := numberOf(n.Field, item); ok {
		want, ok := n.Decimal()
		return ok && d.Equal(want)
	}
	for _, v := range textOf(n.Field, item) {
		if v == n.Text() {
			return true
		}
	}
	return false
}

func rangeLeaf(n criteria.Node, item *domain.Item) bool {
	d, ok := numberOf(n.Field, item)
	if !ok {
		return false
	}
	if n.Min != nil && d.LessThan(*n.Min) {
		return false
	}
	if n.Max != nil && d.GreaterThan(*n.Max) {
		return false
	}
	return true
}

// editBudget mirrors the AUTO fuzziness of a full-text engine: terms of up to
// two runes must match exactly, three to five allow one edit, longer allow two.
func editBudget(term string) int {
	switch n := utf8.RuneCountInString(term); {
	case n <= 2:
		return 0
	case n <= 5:
		return 1
	default:
		return 2
	}
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// fuzzyLeaf matches when any query term is within its edit budget of any
// term of the field. Closer terms score higher.
func fuzzyLeaf(n criteria.Node, item *domain.Item) (bool, float64) {
	var fieldTerms []string
	for _, v := range textOf(n.Field, item) {
		fieldTerms = append(fieldTerms, tokenize(v)...)
	}

	matched := false
	var score float64
	for _, q := range tokenize(n.Text()) {
		budget := editBudget(q)
		best := -1
		for _, t := range fieldTerms {
			d := smetrics.WagnerFischer(q, t, 1, 1, 1)
			if d <= budget && (best < 0 || d < best) {
				best = d
			}
		}
		if best >= 0 {
			matched = true
			score += 1 / float64(1+best)
		}
	}
	return matched, score
}

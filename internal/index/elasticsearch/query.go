package elasticsearch

import (
	"encoding/json"
	"strings"

	"github.com/utafrali/catalog-search/internal/criteria"
)

// renderQuery converts a query tree into Elasticsearch query DSL.
func renderQuery(n criteria.Node) map[string]any {
	switch n.Op {
	case criteria.OpAnd:
		var must, filter []any
		for _, c := range n.Children {
			if scoring(c) {
				must = append(must, renderQuery(c))
			} else {
				filter = append(filter, renderQuery(c))
			}
		}
		b := map[string]any{}
		if len(must) > 0 {
			b["must"] = must
		}
		if len(filter) > 0 {
			b["filter"] = filter
		}
		return map[string]any{"bool": b}

	case criteria.OpOr:
		should := make([]any, 0, len(n.Children))
		for _, c := range n.Children {
			should = append(should, renderQuery(c))
		}
		return map[string]any{
			"bool": map[string]any{
				"should":               should,
				"minimum_should_match": 1,
			},
		}

	case criteria.OpContains:
		field := string(n.Field)
		if n.Field.Kind() == criteria.KindText {
			return map[string]any{
				"query_string": map[string]any{
					"query":            "*" + escapeQueryString(n.Text()) + "*",
					"fields":           []string{field},
					"analyze_wildcard": true,
				},
			}
		}
		return map[string]any{
			"wildcard": map[string]any{
				field: map[string]any{
					"value":            "*" + escapeWildcard(n.Text()) + "*",
					"case_insensitive": true,
				},
			},
		}

	case criteria.OpEquals:
		return map[string]any{
			"term": map[string]any{string(n.Field): termValue(n)},
		}

	case criteria.OpRange:
		bounds := map[string]any{}
		if n.Min != nil {
			bounds["gte"] = json.Number(n.Min.String())
		}
		if n.Max != nil {
			bounds["lte"] = json.Number(n.Max.String())
		}
		return map[string]any{
			"range": map[string]any{string(n.Field): bounds},
		}

	case criteria.OpFuzzy:
		return map[string]any{
			"match": map[string]any{
				string(n.Field): map[string]any{
					"query":     n.Text(),
					"fuzziness": "AUTO",
				},
			},
		}
	}
	return map[string]any{"match_none": map[string]any{}}
}

// scoring reports whether n contributes to relevance. Scoring clauses go to
// bool.must, the rest to bool.filter.
func scoring(n criteria.Node) bool {
	switch n.Op {
	case criteria.OpContains, criteria.OpFuzzy:
		return true
	case criteria.OpAnd, criteria.OpOr:
		for _, c := range n.Children {
			if scoring(c) {
				return true
			}
		}
	}
	return false
}

func termValue(n criteria.Node) any {
	if b, ok := n.Bool(); ok {
		return b
	}
	if n.Field.Kind() == criteria.KindNumeric {
		if d, ok := n.Decimal(); ok {
			return json.Number(d.String())
		}
	}
	return n.Value
}

// queryStringReserved holds characters with meaning in query_string syntax.
const queryStringReserved = `\+-=&|><!(){}[]^"~*?:/ `

func escapeQueryString(s string) string {
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(queryStringReserved, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func escapeWildcard(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`)
	return r.Replace(s)
}

package criteria

import (
	"strings"

	"github.com/utafrali/catalog-search/internal/domain"
)

// TextFields are the fields a free-text query is matched against.
var TextFields = []Field{FieldName, FieldDescription, FieldTags}

// Build turns an advanced search request into a query tree. The result is
// always an AND group whose children appear in a fixed order: the text
// OR-group, the category leaf, the price range leaf and the active leaf.
// Only the active leaf is unconditional. Blank strings count as absent and a
// min above max is passed through as is.
func Build(req domain.SearchRequest) Node {
	var children []Node

	if q := strings.TrimSpace(req.Query); q != "" {
		text := make([]Node, 0, len(TextFields))
		for _, f := range TextFields {
			text = append(text, Contains(f, req.Query))
		}
		children = append(children, Or(text...))
	}

	if c := strings.TrimSpace(req.Category); c != "" {
		children = append(children, Equals(FieldCategory, req.Category))
	}

	if req.MinPrice != nil || req.MaxPrice != nil {
		children = append(children, Range(FieldPrice, req.MinPrice, req.MaxPrice))
	}

	children = append(children, Active())
	return And(children...)
}

// TextQuery matches items whose name or description contains text.
func TextQuery(text string) Node {
	return Or(Contains(FieldName, text), Contains(FieldDescription, text))
}

// FuzzyQuery matches active items whose name is within a small edit distance
// of text.
func FuzzyQuery(text string) Node {
	return And(Fuzzy(FieldName, text), Active())
}

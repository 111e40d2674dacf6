package domain

import (
	"github.com/shopspring/decimal"
)

// SearchRequest carries the optional filters of an advanced search. Blank
// strings and nil bounds mean the filter is absent.
type SearchRequest struct {
	Query    string           `json:"query"`
	Category string           `json:"category"`
	MinPrice *decimal.Decimal `json:"min_price,omitempty"`
	MaxPrice *decimal.Decimal `json:"max_price,omitempty"`
}

// ScoredItem is a search hit with the relevance score the index assigned.
type ScoredItem struct {
	Item
	Score float64 `json:"score"`
}

// SearchHits holds scored results ordered by score, highest first.
type SearchHits struct {
	Total    int          `json:"total"`
	MaxScore float64      `json:"max_score"`
	Hits     []ScoredItem `json:"hits"`
}

// Items returns the hit records without scores.
func (h *SearchHits) Items() []Item {
	items := make([]Item, 0, len(h.Hits))
	for _, hit := range h.Hits {
		items = append(items, hit.Item)
	}
	return items
}

// NewSearchHits builds a result set from hits already in score order.
func NewSearchHits(hits []ScoredItem) *SearchHits {
	if hits == nil {
		hits = []ScoredItem{}
	}
	out := &SearchHits{Total: len(hits), Hits: hits}
	for _, h := range hits {
		if h.Score > out.MaxScore {
			out.MaxScore = h.Score
		}
	}
	return out
}

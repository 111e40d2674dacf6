// Package memory is an in-process DocumentIndex for development and tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/utafrali/catalog-search/internal/criteria"
	"github.com/utafrali/catalog-search/internal/domain"
)

// Index keeps items in a map and remembers insertion order so that listing
// is stable. Safe for concurrent use via sync.RWMutex.
type Index struct {
	mu    sync.RWMutex
	items map[string]domain.Item
	order []string
	newID func() string
}

// New creates an empty in-memory index.
func New() *Index {
	return &Index{
		items: make(map[string]domain.Item),
		newID: uuid.NewString,
	}
}

func (x *Index) Put(_ context.Context, item *domain.Item) (*domain.Item, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	stored := x.putLocked(item.Clone())
	return &stored, nil
}

func (x *Index) putLocked(item domain.Item) domain.Item {
	if item.ID == "" {
		item.ID = x.newID()
	}
	item.NormalizeTags()
	if _, ok := x.items[item.ID]; !ok {
		x.order = append(x.order, item.ID)
	}
	x.items[item.ID] = item
	return item.Clone()
}

func (x *Index) Get(_ context.Context, id string) (*domain.Item, bool, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	item, ok := x.items[id]
	if !ok {
		return nil, false, nil
	}
	c := item.Clone()
	return &c, true, nil
}

func (x *Index) Exists(_ context.Context, id string) (bool, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	_, ok := x.items[id]
	return ok, nil
}

func (x *Index) Delete(_ context.Context, id string) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if _, ok := x.items[id]; !ok {
		return nil
	}
	delete(x.items, id)
	for i, v := range x.order {
		if v == id {
			x.order = append(x.order[:i], x.order[i+1:]...)
			break
		}
	}
	return nil
}

func (x *Index) ListAll(_ context.Context) ([]domain.Item, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	out := make([]domain.Item, 0, len(x.order))
	for _, id := range x.order {
		out = append(out, x.items[id].Clone())
	}
	return out, nil
}

func (x *Index) ListPage(_ context.Context, offset, limit int) ([]domain.Item, int, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	total := len(x.order)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}

	out := make([]domain.Item, 0, end-offset)
	for _, id := range x.order[offset:end] {
		out = append(out, x.items[id].Clone())
	}
	return out, total, nil
}

// SaveAll stores every item; the in-memory index never partially fails.
func (x *Index) SaveAll(_ context.Context, items []domain.Item) ([]domain.Item, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	out := make([]domain.Item, 0, len(items))
	for i := range items {
		out = append(out, x.putLocked(items[i].Clone()))
	}
	return out, nil
}

// Search evaluates the tree against every item. Hits are ordered by score
// descending and then by ID.
func (x *Index) Search(_ context.Context, query criteria.Node) (*domain.SearchHits, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	var hits []domain.ScoredItem
	for _, id := range x.order {
		item := x.items[id]
		ok, score := eval(query, &item)
		if !ok {
			continue
		}
		if score == 0 {
			score = 1
		}
		hits = append(hits, domain.ScoredItem{Item: item.Clone(), Score: score})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	return domain.NewSearchHits(hits), nil
}

func (x *Index) Find(_ context.Context, query criteria.Node) ([]domain.Item, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	out := make([]domain.Item, 0)
	for _, id := range x.order {
		item := x.items[id]
		if ok, _ := eval(query, &item); ok {
			out = append(out, item.Clone())
		}
	}
	return out, nil
}

// Len returns the number of stored items.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.items)
}

// Ping always succeeds.
func (x *Index) Ping(context.Context) error { return nil }

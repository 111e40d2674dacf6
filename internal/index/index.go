// Package index defines the contract the catalog service uses to reach the
// document index that stores and searches items.
package index

import (
	"context"

	"github.com/utafrali/catalog-search/internal/criteria"
	"github.com/utafrali/catalog-search/internal/domain"
)

// DocumentIndex stores items and executes query trees against them.
// Implementations must be safe for concurrent use.
type DocumentIndex interface {
	// Put inserts or fully replaces an item. An empty ID is assigned on insert.
	Put(ctx context.Context, item *domain.Item) (*domain.Item, error)

	// Get returns the item with the given ID. The bool is false when absent.
	Get(ctx context.Context, id string) (*domain.Item, bool, error)

	// Exists reports whether an item with the given ID is stored.
	Exists(ctx context.Context, id string) (bool, error)

	// Delete removes an item. Deleting an absent ID is a no-op.
	Delete(ctx context.Context, id string) error

	// ListAll returns every stored item in the index's natural order.
	ListAll(ctx context.Context) ([]domain.Item, error)

	// ListPage returns limit items starting at offset plus the total count.
	ListPage(ctx context.Context, offset, limit int) ([]domain.Item, int, error)

	// SaveAll stores a batch. The result holds the items that were persisted,
	// in input order, and may be shorter than the input.
	SaveAll(ctx context.Context, items []domain.Item) ([]domain.Item, error)

	// Search executes a scored query; hits are ordered by score, highest first.
	Search(ctx context.Context, query criteria.Node) (*domain.SearchHits, error)

	// Find executes a query without scoring.
	Find(ctx context.Context, query criteria.Node) ([]domain.Item, error)
}

// Pinger is implemented by backends that can report their reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

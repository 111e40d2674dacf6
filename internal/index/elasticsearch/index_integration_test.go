package elasticsearch_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/catalog-search/internal/criteria"
	"github.com/utafrali/catalog-search/internal/domain"
	esindex "github.com/utafrali/catalog-search/internal/index/elasticsearch"
)

// newTestIndex connects to a real cluster. It skips the test if
// ELASTICSEARCH_URL is not set.
func newTestIndex(t *testing.T) *esindex.Index {
	t.Helper()

	esURL := os.Getenv("ELASTICSEARCH_URL")
	if esURL == "" {
		t.Skip("ELASTICSEARCH_URL not set, skipping Elasticsearch integration tests")
	}

	x, err := esindex.New(context.Background(), esindex.Config{
		URL:       esURL,
		IndexName: fmt.Sprintf("test_catalog_items_%d", time.Now().UnixNano()),
		Refresh:   "true",
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = x.DeleteIndex(context.Background())
	})
	return x
}

func item(name string, price string, active bool) domain.Item {
	return domain.Item{
		Name:        name,
		Description: name + " described at length",
		Category:    "Elektronik",
		Price:       decimal.RequireFromString(price),
		Stock:       5,
		Tags:        []string{"laptop"},
		IsActive:    active,
	}
}

func TestIntegration_AdvancedSearchReturnsOnlyActive(t *testing.T) {
	ctx := context.Background()
	x := newTestIndex(t)

	saved, err := x.SaveAll(ctx, []domain.Item{
		item("MacBook Pro", "75000", true),
		item("Dell XPS", "60000", false),
	})
	require.NoError(t, err)
	require.Len(t, saved, 2)

	lo, hi := decimal.RequireFromString("40000"), decimal.RequireFromString("80000")
	hits, err := x.Search(ctx, criteria.Build(domain.SearchRequest{Query: "laptop", MinPrice: &lo, MaxPrice: &hi}))
	require.NoError(t, err)
	require.Equal(t, 1, hits.Total)
	assert.Equal(t, "MacBook Pro", hits.Hits[0].Name)
}

func TestIntegration_CRUD(t *testing.T) {
	ctx := context.Background()
	x := newTestIndex(t)

	in := item("iPhone 15 Pro", "45000", true)
	stored, err := x.Put(ctx, &in)
	require.NoError(t, err)

	got, ok, err := x.Get(ctx, stored.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "iPhone 15 Pro", got.Name)

	require.NoError(t, x.Delete(ctx, stored.ID))
	ok, err = x.Exists(ctx, stored.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/catalog-search/internal/criteria"
	"github.com/utafrali/catalog-search/internal/domain"
	"github.com/utafrali/catalog-search/internal/index"
	"github.com/utafrali/catalog-search/internal/index/memory"
	"github.com/utafrali/catalog-search/internal/service"
	apperrors "github.com/utafrali/catalog-search/pkg/errors"
	"github.com/utafrali/catalog-search/pkg/health"
)

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields"`
	} `json:"error"`
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRouter(t *testing.T, idx index.DocumentIndex) http.Handler {
	t.Helper()
	svc := service.NewCatalogService(idx, nil, testLogger())
	return NewRouter(svc, health.NewHandler(), testLogger())
}

func do(t *testing.T, h http.Handler, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf io.Reader = http.NoBody
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		buf = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 && rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

func lampBody() map[string]any {
	return map[string]any{
		"name":        "Desk Lamp",
		"description": "Adjustable LED desk lamp",
		"category":    "Home",
		"price":       "299.90",
		"stock":       12,
		"tags":        []string{"lamba", "led"},
	}
}

func TestItemLifecycle(t *testing.T) {
	router := newTestRouter(t, memory.New())

	rec, env := do(t, router, http.MethodPost, "/api/v1/items", lampBody())
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeData[domain.Item](t, env)
	assert.NotEmpty(t, created.ID)
	assert.True(t, created.IsActive)
	assert.True(t, created.Price.Equal(decimal.RequireFromString("299.9")))

	rec, env = do(t, router, http.MethodGet, "/api/v1/items/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Desk Lamp", decodeData[domain.Item](t, env).Name)

	update := lampBody()
	update["name"] = "Desk Lamp XL"
	delete(update, "stock")
	rec, env = do(t, router, http.MethodPut, "/api/v1/items/"+created.ID, update)
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decodeData[domain.Item](t, env)
	assert.Equal(t, "Desk Lamp XL", updated.Name)
	assert.Equal(t, 0, updated.Stock)

	rec, _ = do(t, router, http.MethodDelete, "/api/v1/items/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, env = do(t, router, http.MethodDelete, "/api/v1/items/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)

	rec, _ = do(t, router, http.MethodGet, "/api/v1/items/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateItem_ValidationError(t *testing.T) {
	router := newTestRouter(t, memory.New())

	body := lampBody()
	body["name"] = " "
	body["price"] = "0"

	rec, env := do(t, router, http.MethodPost, "/api/v1/items", body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	assert.Contains(t, env.Error.Fields, "name")
	assert.Contains(t, env.Error.Fields, "price")
}

func TestCreateItem_MalformedJSON(t *testing.T) {
	router := newTestRouter(t, memory.New())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/items", bytes.NewBufferString(`{"name":`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateItem_NotFound(t *testing.T) {
	router := newTestRouter(t, memory.New())

	rec, _ := do(t, router, http.MethodPut, "/api/v1/items/missing", lampBody())
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListItems_AllAndPaged(t *testing.T) {
	router := newTestRouter(t, memory.New())
	for i := 0; i < 3; i++ {
		rec, _ := do(t, router, http.MethodPost, "/api/v1/items", lampBody())
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec, env := do(t, router, http.MethodGet, "/api/v1/items", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeData[[]domain.Item](t, env), 3)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/items?page=2&per_page=2", nil)
	prec := httptest.NewRecorder()
	router.ServeHTTP(prec, req)
	require.Equal(t, http.StatusOK, prec.Code)

	var page struct {
		Data       []domain.Item `json:"data"`
		TotalCount int           `json:"total_count"`
		TotalPages int           `json:"total_pages"`
		HasNext    bool          `json:"has_next"`
	}
	require.NoError(t, json.Unmarshal(prec.Body.Bytes(), &page))
	assert.Len(t, page.Data, 1)
	assert.Equal(t, 3, page.TotalCount)
	assert.Equal(t, 2, page.TotalPages)
	assert.False(t, page.HasNext)
}

func seedCatalog(t *testing.T, router http.Handler) {
	t.Helper()
	for _, body := range []map[string]any{
		{"name": "MacBook Pro 14", "description": "Apple laptop with M3 chip", "category": "Elektronik", "price": "75000", "stock": 5, "tags": []string{"laptop", "apple"}},
		{"name": "Dell XPS 13", "description": "Compact Windows laptop", "category": "Elektronik", "price": "42000", "stock": 8, "tags": []string{"laptop"}},
		{"name": "Lenovo ThinkPad", "description": "Business laptop, discontinued", "category": "Elektronik", "price": "50000", "stock": 0, "is_active": false},
		{"name": "Desk Lamp", "description": "Adjustable LED desk lamp", "category": "Home", "price": "300", "stock": 40, "tags": []string{"led"}},
	} {
		rec, _ := do(t, router, http.MethodPost, "/api/v1/items", body)
		require.Equal(t, http.StatusCreated, rec.Code)
	}
}

func names(items []domain.Item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Name)
	}
	return out
}

func TestSearchRoutes(t *testing.T) {
	router := newTestRouter(t, memory.New())
	seedCatalog(t, router)

	tests := []struct {
		name string
		path string
		want []string
	}{
		{"text", "/api/v1/items/search?query=laptop", []string{"MacBook Pro 14", "Dell XPS 13", "Lenovo ThinkPad"}},
		{"category", "/api/v1/items/category/Home", []string{"Desk Lamp"}},
		{"price range", "/api/v1/items/price-range?min_price=40000&max_price=60000", []string{"Dell XPS 13", "Lenovo ThinkPad"}},
		{"tag", "/api/v1/items/tag/laptop", []string{"MacBook Pro 14", "Dell XPS 13"}},
		{"active", "/api/v1/items/active", []string{"MacBook Pro 14", "Dell XPS 13", "Desk Lamp"}},
		{"in stock", "/api/v1/items/in-stock?min_stock=5", []string{"Dell XPS 13", "Desk Lamp"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := do(t, router, http.MethodGet, tt.path, nil)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.ElementsMatch(t, tt.want, names(decodeData[[]domain.Item](t, env)))
		})
	}
}

func TestSearchRoutes_BadParams(t *testing.T) {
	router := newTestRouter(t, memory.New())

	for _, path := range []string{
		"/api/v1/items/search?query=%20",
		"/api/v1/items/search/fuzzy",
		"/api/v1/items/price-range?min_price=abc&max_price=10",
		"/api/v1/items/price-range?min_price=10",
		"/api/v1/items/in-stock?min_stock=-1",
	} {
		t.Run(path, func(t *testing.T) {
			rec, env := do(t, router, http.MethodGet, path, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			require.NotNil(t, env.Error)
			assert.Equal(t, "INVALID_PARAMETER", env.Error.Code)
		})
	}
}

func TestAdvancedAndFuzzySearch(t *testing.T) {
	router := newTestRouter(t, memory.New())
	seedCatalog(t, router)

	rec, env := do(t, router, http.MethodPost, "/api/v1/items/search/advanced", map[string]any{
		"query":     "laptop",
		"category":  "Elektronik",
		"min_price": "40000",
		"max_price": "80000",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	hits := decodeData[domain.SearchHits](t, env)
	assert.Equal(t, 2, hits.Total)
	assert.ElementsMatch(t, []string{"MacBook Pro 14", "Dell XPS 13"}, names(hits.Items()))

	rec, env = do(t, router, http.MethodGet, "/api/v1/items/search/fuzzy?query=macbok", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	hits = decodeData[domain.SearchHits](t, env)
	require.NotEmpty(t, hits.Hits)
	assert.Equal(t, "MacBook Pro 14", hits.Hits[0].Name)
}

// partialIndex persists every other item of a batch.
type partialIndex struct{ *memory.Index }

func (p partialIndex) SaveAll(ctx context.Context, items []domain.Item) ([]domain.Item, error) {
	var keep []domain.Item
	for i := range items {
		if i%2 == 0 {
			keep = append(keep, items[i])
		}
	}
	return p.Index.SaveAll(ctx, keep)
}

func TestCreateItems_Bulk(t *testing.T) {
	router := newTestRouter(t, memory.New())

	batch := map[string]any{"items": []map[string]any{lampBody(), lampBody(), lampBody()}}
	rec, env := do(t, router, http.MethodPost, "/api/v1/items/bulk", batch)
	require.Equal(t, http.StatusCreated, rec.Code)
	resp := decodeData[BulkCreateResponse](t, env)
	assert.Equal(t, 3, resp.Requested)
	assert.Equal(t, 3, resp.Persisted)
	assert.Len(t, resp.Items, 3)
}

func TestCreateItems_Partial(t *testing.T) {
	router := newTestRouter(t, partialIndex{memory.New()})

	batch := map[string]any{"items": []map[string]any{lampBody(), lampBody(), lampBody()}}
	rec, env := do(t, router, http.MethodPost, "/api/v1/items/bulk", batch)
	require.Equal(t, http.StatusMultiStatus, rec.Code)
	resp := decodeData[BulkCreateResponse](t, env)
	assert.Equal(t, 3, resp.Requested)
	assert.Equal(t, 2, resp.Persisted)
	assert.Len(t, resp.Items, 2)
}

func TestCreateItems_InvalidEntry(t *testing.T) {
	router := newTestRouter(t, memory.New())

	bad := lampBody()
	bad["category"] = ""
	batch := map[string]any{"items": []map[string]any{lampBody(), bad}}

	rec, env := do(t, router, http.MethodPost, "/api/v1/items/bulk", batch)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Contains(t, env.Error.Fields, "items[1].category")
}

// unavailableIndex refuses every query the way an open breaker does.
type unavailableIndex struct{ index.DocumentIndex }

func (unavailableIndex) Find(context.Context, criteria.Node) ([]domain.Item, error) {
	return nil, apperrors.Unavailable("document index", errors.New("circuit breaker is open"))
}

func TestSearch_UnavailableIndex(t *testing.T) {
	router := newTestRouter(t, unavailableIndex{memory.New()})

	rec, env := do(t, router, http.MethodGet, "/api/v1/items/active", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "SERVICE_UNAVAILABLE", env.Error.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	router := newTestRouter(t, memory.New())

	rec, _ := do(t, router, http.MethodGet, "/health/live", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = do(t, router, http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	mrec := httptest.NewRecorder()
	router.ServeHTTP(mrec, req)
	assert.Equal(t, http.StatusOK, mrec.Code)
	assert.Contains(t, mrec.Body.String(), "http_requests_total")
}

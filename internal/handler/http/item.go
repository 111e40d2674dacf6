package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/utafrali/catalog-search/internal/domain"
	"github.com/utafrali/catalog-search/internal/service"
	apperrors "github.com/utafrali/catalog-search/pkg/errors"
	"github.com/utafrali/catalog-search/pkg/httputil"
	"github.com/utafrali/catalog-search/pkg/pagination"
	"github.com/utafrali/catalog-search/pkg/validator"
)

// ItemHandler handles HTTP requests for catalog item endpoints.
type ItemHandler struct {
	service *service.CatalogService
	logger  *slog.Logger
}

// NewItemHandler creates a new item HTTP handler.
func NewItemHandler(svc *service.CatalogService, logger *slog.Logger) *ItemHandler {
	return &ItemHandler{
		service: svc,
		logger:  logger,
	}
}

// BulkCreateRequest is the JSON request body for creating many items.
type BulkCreateRequest struct {
	Items []service.CreateItemInput `json:"items"`
}

// BulkCreateResponse reports the outcome of a bulk create.
type BulkCreateResponse struct {
	Items     []domain.Item `json:"items"`
	Requested int           `json:"requested"`
	Persisted int           `json:"persisted"`
}

// --- CRUD ---

// CreateItem handles POST /api/v1/items
func (h *ItemHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var req service.CreateItemInput
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	item, err := h.service.Create(r.Context(), &req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: item})
}

// ListItems handles GET /api/v1/items. Without page or per_page every item
// is returned; otherwise one page.
func (h *ItemHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	params, paged := pagination.FromRequest(r)
	if !paged {
		items, err := h.service.ListAll(r.Context())
		if err != nil {
			httputil.WriteError(w, r, err, h.logger)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: items})
		return
	}

	items, total, err := h.service.ListPage(r.Context(), params.Page, params.PerPage)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.NewPaginatedResponse(items, total, params.Page, params.PerPage))
}

// GetItem handles GET /api/v1/items/{id}
func (h *ItemHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	item, found, err := h.service.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if !found {
		httputil.WriteError(w, r, apperrors.NotFound("item", id), h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: item})
}

// UpdateItem handles PUT /api/v1/items/{id}. The body replaces the whole
// item.
func (h *ItemHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req service.UpdateItemInput
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	item, found, err := h.service.Update(r.Context(), id, &req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if !found {
		httputil.WriteError(w, r, apperrors.NotFound("item", id), h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: item})
}

// DeleteItem handles DELETE /api/v1/items/{id}
func (h *ItemHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	removed, err := h.service.Delete(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if !removed {
		httputil.WriteError(w, r, apperrors.NotFound("item", id), h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateItems handles POST /api/v1/items/bulk. A partially persisted batch
// answers 207 with the items that were stored.
func (h *ItemHandler) CreateItems(w http.ResponseWriter, r *http.Request) {
	var req BulkCreateRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	items, err := h.service.CreateMany(r.Context(), req.Items)
	var partial *service.PartialBatchError
	switch {
	case errors.As(err, &partial):
		httputil.WriteJSON(w, http.StatusMultiStatus, httputil.Response{Data: BulkCreateResponse{
			Items:     items,
			Requested: partial.Requested,
			Persisted: partial.Persisted,
		}})
	case err != nil:
		httputil.WriteError(w, r, err, h.logger)
	default:
		httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: BulkCreateResponse{
			Items:     items,
			Requested: len(req.Items),
			Persisted: len(items),
		}})
	}
}

// --- Search ---

// SearchItems handles GET /api/v1/items/search?query=
func (h *ItemHandler) SearchItems(w http.ResponseWriter, r *http.Request) {
	query, ok := requiredQuery(w, r, "query")
	if !ok {
		return
	}
	items, err := h.service.SearchByText(r.Context(), query)
	h.writeItems(w, r, items, err)
}

// AdvancedSearch handles POST /api/v1/items/search/advanced
func (h *ItemHandler) AdvancedSearch(w http.ResponseWriter, r *http.Request) {
	var req domain.SearchRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	hits, err := h.service.AdvancedSearch(r.Context(), req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: hits})
}

// FuzzySearch handles GET /api/v1/items/search/fuzzy?query=
func (h *ItemHandler) FuzzySearch(w http.ResponseWriter, r *http.Request) {
	query, ok := requiredQuery(w, r, "query")
	if !ok {
		return
	}

	hits, err := h.service.FuzzySearch(r.Context(), query)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: hits})
}

// SearchByCategory handles GET /api/v1/items/category/{category}
func (h *ItemHandler) SearchByCategory(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.SearchByCategory(r.Context(), chi.URLParam(r, "category"))
	h.writeItems(w, r, items, err)
}

// SearchByPriceRange handles GET /api/v1/items/price-range?min_price=&max_price=
func (h *ItemHandler) SearchByPriceRange(w http.ResponseWriter, r *http.Request) {
	lo, ok := decimalQuery(w, r, "min_price")
	if !ok {
		return
	}
	hi, ok := decimalQuery(w, r, "max_price")
	if !ok {
		return
	}
	items, err := h.service.SearchByPriceRange(r.Context(), lo, hi)
	h.writeItems(w, r, items, err)
}

// SearchByTag handles GET /api/v1/items/tag/{tag}
func (h *ItemHandler) SearchByTag(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.SearchByTag(r.Context(), chi.URLParam(r, "tag"))
	h.writeItems(w, r, items, err)
}

// ListActive handles GET /api/v1/items/active
func (h *ItemHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListActive(r.Context())
	h.writeItems(w, r, items, err)
}

// ListInStock handles GET /api/v1/items/in-stock?min_stock=
func (h *ItemHandler) ListInStock(w http.ResponseWriter, r *http.Request) {
	minStock := 0
	if v := r.URL.Query().Get("min_stock"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			httputil.WriteBadParam(w, "min_stock", "must be a non-negative integer")
			return
		}
		minStock = n
	}
	items, err := h.service.ListInStock(r.Context(), minStock)
	h.writeItems(w, r, items, err)
}

func (h *ItemHandler) writeItems(w http.ResponseWriter, r *http.Request, items []domain.Item, err error) {
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: items})
}

func requiredQuery(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	v := r.URL.Query().Get(name)
	if strings.TrimSpace(v) == "" {
		httputil.WriteBadParam(w, name, "is required")
		return "", false
	}
	return v, true
}

func decimalQuery(w http.ResponseWriter, r *http.Request, name string) (decimal.Decimal, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		httputil.WriteBadParam(w, name, "is required")
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		httputil.WriteBadParam(w, name, "must be a decimal number")
		return decimal.Decimal{}, false
	}
	return d, true
}

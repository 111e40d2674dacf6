package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/catalog-search/internal/service"
	"github.com/utafrali/catalog-search/pkg/health"
	"github.com/utafrali/catalog-search/pkg/middleware"
)

// ServiceName labels HTTP metrics and spans.
const ServiceName = "catalog-search"

// NewRouter creates a chi router with all catalog routes registered.
func NewRouter(catalog *service.CatalogService, healthHandler *health.Handler, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Tracing(ServiceName))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.PrometheusMetrics(ServiceName))

	// Health and metrics endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	h := NewItemHandler(catalog, logger)
	op := middleware.Operation

	r.Route("/api/v1/items", func(r chi.Router) {
		r.With(op("create")).Post("/", h.CreateItem)
		r.With(op("list")).Get("/", h.ListItems)
		r.With(op("create_many")).Post("/bulk", h.CreateItems)

		r.With(op("search_by_text")).Get("/search", h.SearchItems)
		r.With(op("advanced_search")).Post("/search/advanced", h.AdvancedSearch)
		r.With(op("fuzzy_search")).Get("/search/fuzzy", h.FuzzySearch)
		r.With(op("search_by_category")).Get("/category/{category}", h.SearchByCategory)
		r.With(op("search_by_price_range")).Get("/price-range", h.SearchByPriceRange)
		r.With(op("search_by_tag")).Get("/tag/{tag}", h.SearchByTag)
		r.With(op("list_active")).Get("/active", h.ListActive)
		r.With(op("list_in_stock")).Get("/in-stock", h.ListInStock)

		r.With(op("get")).Get("/{id}", h.GetItem)
		r.With(op("update")).Put("/{id}", h.UpdateItem)
		r.With(op("delete")).Delete("/{id}", h.DeleteItem)
	})

	return r
}

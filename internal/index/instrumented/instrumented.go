// Package instrumented decorates a DocumentIndex with an OpenTelemetry span
// and Prometheus metrics per operation.
package instrumented

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/utafrali/catalog-search/internal/criteria"
	"github.com/utafrali/catalog-search/internal/domain"
	"github.com/utafrali/catalog-search/internal/index"
)

const tracerName = "github.com/utafrali/catalog-search/internal/index"

var (
	operationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_index_operations_total",
			Help: "Total number of document index operations",
		},
		[]string{"backend", "operation", "outcome"},
	)

	operationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "catalog_index_operation_duration_seconds",
			Help:    "Duration of document index operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "operation"},
	)

	searchHits = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "catalog_index_search_hits",
			Help:    "Number of items returned by index queries",
			Buckets: []float64{0, 1, 5, 10, 50, 100, 500, 1000, 10000},
		},
		[]string{"backend", "operation"},
	)
)

// Index wraps a DocumentIndex.
type Index struct {
	next    index.DocumentIndex
	backend string
}

var _ index.DocumentIndex = (*Index)(nil)

// New wraps next. backend labels spans and metrics, e.g. "elasticsearch".
func New(next index.DocumentIndex, backend string) *Index {
	return &Index{next: next, backend: backend}
}

// Ping forwards to the wrapped index when it supports it.
func (x *Index) Ping(ctx context.Context) error {
	if p, ok := x.next.(index.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

func (x *Index) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	begin := time.Now()
	ctx, span := otel.Tracer(tracerName).Start(ctx, "index."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(append(attrs,
			attribute.String("index.backend", x.backend),
			attribute.String("index.operation", op),
		)...),
	)

	return ctx, func(err error) {
		outcome := "success"
		if err != nil {
			outcome = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		operationsTotal.WithLabelValues(x.backend, op, outcome).Inc()
		operationDuration.WithLabelValues(x.backend, op).Observe(time.Since(begin).Seconds())
	}
}

func (x *Index) Put(ctx context.Context, item *domain.Item) (_ *domain.Item, err error) {
	ctx, end := x.start(ctx, "put", attribute.String("item.id", item.ID))
	defer func() { end(err) }()
	return x.next.Put(ctx, item)
}

func (x *Index) Get(ctx context.Context, id string) (_ *domain.Item, _ bool, err error) {
	ctx, end := x.start(ctx, "get", attribute.String("item.id", id))
	defer func() { end(err) }()
	return x.next.Get(ctx, id)
}

func (x *Index) Exists(ctx context.Context, id string) (_ bool, err error) {
	ctx, end := x.start(ctx, "exists", attribute.String("item.id", id))
	defer func() { end(err) }()
	return x.next.Exists(ctx, id)
}

func (x *Index) Delete(ctx context.Context, id string) (err error) {
	ctx, end := x.start(ctx, "delete", attribute.String("item.id", id))
	defer func() { end(err) }()
	return x.next.Delete(ctx, id)
}

func (x *Index) ListAll(ctx context.Context) (items []domain.Item, err error) {
	ctx, end := x.start(ctx, "list_all")
	defer func() { end(err) }()
	items, err = x.next.ListAll(ctx)
	x.observeHits("list_all", len(items))
	return items, err
}

func (x *Index) ListPage(ctx context.Context, offset, limit int) (_ []domain.Item, _ int, err error) {
	ctx, end := x.start(ctx, "list_page",
		attribute.Int("page.offset", offset),
		attribute.Int("page.limit", limit),
	)
	defer func() { end(err) }()
	return x.next.ListPage(ctx, offset, limit)
}

func (x *Index) SaveAll(ctx context.Context, items []domain.Item) (saved []domain.Item, err error) {
	ctx, end := x.start(ctx, "save_all", attribute.Int("batch.size", len(items)))
	defer func() { end(err) }()
	saved, err = x.next.SaveAll(ctx, items)
	trace.SpanFromContext(ctx).SetAttributes(attribute.Int("batch.persisted", len(saved)))
	return saved, err
}

func (x *Index) Search(ctx context.Context, query criteria.Node) (hits *domain.SearchHits, err error) {
	ctx, end := x.start(ctx, "search", attribute.String("index.query", query.String()))
	defer func() { end(err) }()
	hits, err = x.next.Search(ctx, query)
	if hits != nil {
		x.observeHits("search", len(hits.Hits))
	}
	return hits, err
}

func (x *Index) Find(ctx context.Context, query criteria.Node) (items []domain.Item, err error) {
	ctx, end := x.start(ctx, "find", attribute.String("index.query", query.String()))
	defer func() { end(err) }()
	items, err = x.next.Find(ctx, query)
	x.observeHits("find", len(items))
	return items, err
}

func (x *Index) observeHits(op string, n int) {
	searchHits.WithLabelValues(x.backend, op).Observe(float64(n))
}

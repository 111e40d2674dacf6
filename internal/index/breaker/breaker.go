// Package breaker guards a DocumentIndex with a circuit breaker so a failing
// backend is refused quickly instead of being hammered with requests.
package breaker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker/v2"

	"github.com/utafrali/catalog-search/internal/criteria"
	"github.com/utafrali/catalog-search/internal/domain"
	"github.com/utafrali/catalog-search/internal/index"
	apperrors "github.com/utafrali/catalog-search/pkg/errors"
)

// Config holds the breaker settings.
type Config struct {
	// Name identifies the breaker in metrics and logs.
	Name string

	// MaxRequests is the number of probes allowed while half-open.
	MaxRequests uint32

	// Interval clears the closed-state counts. 0 never clears them.
	Interval time.Duration

	// Timeout is how long the breaker stays open before probing.
	Timeout time.Duration

	// FailureRatio trips the breaker once MinRequests have been seen.
	FailureRatio float64
	MinRequests  uint32
}

// DefaultConfig returns the settings used in production.
func DefaultConfig(name string) Config {
	return Config{
		Name:         name,
		MaxRequests:  1,
		Interval:     60 * time.Second,
		Timeout:      30 * time.Second,
		FailureRatio: 0.5,
		MinRequests:  5,
	}
}

var breakerState = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "catalog_index_breaker_state",
		Help: "Current state of the document index circuit breaker (0=closed, 1=half-open, 2=open)",
	},
	[]string{"name"},
)

func init() {
	prometheus.MustRegister(breakerState)
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// Index wraps a DocumentIndex. Calls refused by an open breaker return an
// error matching apperrors.ErrServiceUnavail.
type Index struct {
	next index.DocumentIndex
	cb   *gobreaker.CircuitBreaker[any]
}

var _ index.DocumentIndex = (*Index)(nil)

// New wraps next with a breaker configured by cfg.
func New(next index.DocumentIndex, cfg Config, logger *slog.Logger) *Index {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("index circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			breakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
		// A caller giving up says nothing about the backend's health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	}

	breakerState.WithLabelValues(cfg.Name).Set(0)

	return &Index{
		next: next,
		cb:   gobreaker.NewCircuitBreaker[any](settings),
	}
}

// State returns the current breaker state.
func (x *Index) State() gobreaker.State {
	return x.cb.State()
}

// Ping forwards to the wrapped index without going through the breaker, so
// readiness reflects the backend itself.
func (x *Index) Ping(ctx context.Context) error {
	if p, ok := x.next.(index.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

func execute[T any](x *Index, fn func() (T, error)) (T, error) {
	v, err := x.cb.Execute(func() (any, error) {
		return fn()
	})
	// Partial results, such as a SaveAll prefix, travel with the error.
	t, _ := v.(T)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return t, apperrors.Unavailable("document index", err)
	}
	return t, err
}

func (x *Index) Put(ctx context.Context, item *domain.Item) (*domain.Item, error) {
	return execute(x, func() (*domain.Item, error) {
		return x.next.Put(ctx, item)
	})
}

type getResult struct {
	item  *domain.Item
	found bool
}

func (x *Index) Get(ctx context.Context, id string) (*domain.Item, bool, error) {
	r, err := execute(x, func() (getResult, error) {
		item, found, err := x.next.Get(ctx, id)
		return getResult{item, found}, err
	})
	return r.item, r.found, err
}

func (x *Index) Exists(ctx context.Context, id string) (bool, error) {
	return execute(x, func() (bool, error) {
		return x.next.Exists(ctx, id)
	})
}

func (x *Index) Delete(ctx context.Context, id string) error {
	_, err := execute(x, func() (struct{}, error) {
		return struct{}{}, x.next.Delete(ctx, id)
	})
	return err
}

func (x *Index) ListAll(ctx context.Context) ([]domain.Item, error) {
	return execute(x, func() ([]domain.Item, error) {
		return x.next.ListAll(ctx)
	})
}

type pageResult struct {
	items []domain.Item
	total int
}

func (x *Index) ListPage(ctx context.Context, offset, limit int) ([]domain.Item, int, error) {
	r, err := execute(x, func() (pageResult, error) {
		items, total, err := x.next.ListPage(ctx, offset, limit)
		return pageResult{items, total}, err
	})
	return r.items, r.total, err
}

func (x *Index) SaveAll(ctx context.Context, items []domain.Item) ([]domain.Item, error) {
	return execute(x, func() ([]domain.Item, error) {
		return x.next.SaveAll(ctx, items)
	})
}

func (x *Index) Search(ctx context.Context, query criteria.Node) (*domain.SearchHits, error) {
	return execute(x, func() (*domain.SearchHits, error) {
		return x.next.Search(ctx, query)
	})
}

func (x *Index) Find(ctx context.Context, query criteria.Node) ([]domain.Item, error) {
	return execute(x, func() ([]domain.Item, error) {
		return x.next.Find(ctx, query)
	})
}

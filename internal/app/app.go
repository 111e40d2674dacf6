package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"

	"github.com/utafrali/catalog-search/internal/config"
	"github.com/utafrali/catalog-search/internal/event"
	handler "github.com/utafrali/catalog-search/internal/handler/http"
	"github.com/utafrali/catalog-search/internal/index"
	"github.com/utafrali/catalog-search/internal/index/breaker"
	esindex "github.com/utafrali/catalog-search/internal/index/elasticsearch"
	"github.com/utafrali/catalog-search/internal/index/instrumented"
	"github.com/utafrali/catalog-search/internal/index/memory"
	pgindex "github.com/utafrali/catalog-search/internal/index/postgres"
	"github.com/utafrali/catalog-search/internal/service"
	"github.com/utafrali/catalog-search/pkg/database"
	"github.com/utafrali/catalog-search/pkg/health"
	pkgkafka "github.com/utafrali/catalog-search/pkg/kafka"
	"github.com/utafrali/catalog-search/pkg/tracing"
)

const serviceName = "catalog-search"

// App wires together all dependencies and runs the catalog search service.
type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	httpServer *http.Server
	consumer   *pkgkafka.Consumer

	// closers run in reverse order on shutdown.
	closers []func() error
	tracing func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
// On error, anything already opened is closed again.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, err error) {
	a := &App{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.closeAll()
		}
	}()

	a.tracing, err = tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
		Attributes:     []attribute.KeyValue{attribute.String("catalog.index.backend", cfg.IndexBackend)},
	})
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	healthHandler := health.NewHandler()

	idx, err := a.buildIndex(ctx, healthHandler)
	if err != nil {
		return nil, err
	}

	// Kafka producer for item events.
	var publisher service.ItemPublisher
	if cfg.KafkaEnabled {
		kafkaProducer := pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		a.closers = append(a.closers, kafkaProducer.Close)
		publisher = event.NewProducer(kafkaProducer, logger)
		healthHandler.RegisterNonCritical("kafka", kafkaProducer.Ping)
	}

	catalog := service.NewCatalogService(idx, publisher, logger)

	if cfg.KafkaEnabled {
		if err := a.buildConsumer(ctx, catalog, healthHandler); err != nil {
			return nil, err
		}
	}

	a.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      handler.NewRouter(catalog, healthHandler, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return a, nil
}

// buildIndex opens the configured backend and wraps it with the breaker and
// instrumentation decorators.
func (a *App) buildIndex(ctx context.Context, hh *health.Handler) (index.DocumentIndex, error) {
	cfg := a.cfg
	var idx index.DocumentIndex

	switch cfg.IndexBackend {
	case config.BackendElasticsearch:
		es, err := esindex.New(ctx, esindex.Config{
			URL:        cfg.ElasticsearchURL,
			IndexName:  cfg.ElasticsearchIndex,
			Refresh:    cfg.ElasticsearchRefresh,
			MaxResults: cfg.SearchMaxResults,
		}, a.logger)
		if err != nil {
			return nil, fmt.Errorf("init elasticsearch index: %w", err)
		}
		hh.RegisterCritical("elasticsearch", es.Ping)
		idx = es
		a.logger.Info("elasticsearch index initialized",
			slog.String("url", cfg.ElasticsearchURL),
			slog.String("index", cfg.ElasticsearchIndex),
		)

	case config.BackendPostgres:
		pool, err := database.NewPostgresPool(ctx, &cfg.Postgres, a.logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error { pool.Close(); return nil })

		if err := database.RunMigrations(ctx, pool, pgindex.Migrations(), a.logger); err != nil {
			return nil, err
		}
		if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, serviceName); err != nil {
			return nil, fmt.Errorf("register pool metrics: %w", err)
		}

		tracer := &database.QueryTracer{SlowThreshold: cfg.SlowQueryThreshold(), Logger: a.logger}
		pg := pgindex.New(pool, tracer, cfg.SearchMaxResults, a.logger)
		hh.RegisterCritical("postgres", pg.Ping)
		idx = pg
		a.logger.Info("postgres index initialized",
			slog.String("host", cfg.Postgres.Host),
			slog.String("database", cfg.Postgres.DBName),
		)

	default:
		idx = memory.New()
		a.logger.Info("in-memory index initialized")
	}

	if cfg.BreakerEnabled {
		idx = breaker.New(idx, breaker.DefaultConfig(cfg.IndexBackend), a.logger)
	}
	return instrumented.New(idx, cfg.IndexBackend), nil
}

// buildConsumer starts the ingest pipeline: a group consumer over the
// upstream topics, deduplicated through Redis when configured, with a
// dead-letter producer for messages that keep failing.
func (a *App) buildConsumer(ctx context.Context, catalog *service.CatalogService, hh *health.Handler) error {
	cfg := a.cfg

	var store pkgkafka.IdempotencyStore
	if cfg.Redis.Enabled() {
		client, err := database.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("init redis: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		hh.RegisterNonCritical("redis", func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
		store = pkgkafka.NewRedisIdempotencyStore(client, "catalog:ingest:", cfg.IdempotencyTTL)
		a.logger.Info("redis idempotency store initialized", slog.String("addr", cfg.Redis.Addr))
	} else {
		store = pkgkafka.NewMemoryIdempotencyStore(cfg.IdempotencyTTL)
	}

	ingest := event.NewConsumer(catalog, a.logger)
	handle := pkgkafka.IdempotentHandler(store, ingest.Handle, a.logger)

	dlq := pkgkafka.NewDLQProducer(cfg.KafkaBrokers, a.logger)
	a.closers = append(a.closers, dlq.Close)

	a.consumer = pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
		Brokers:  cfg.KafkaBrokers,
		GroupID:  cfg.KafkaConsumerGroup,
		Topics:   event.IngestTopics(),
		MinBytes: 1,
		MaxBytes: 10e6, // 10 MB
	}, handle, a.logger).WithDeadLetter(dlq)

	a.logger.Info("kafka ingest consumer initialized",
		slog.Any("brokers", cfg.KafkaBrokers),
		slog.Any("topics", event.IngestTopics()),
	)
	return nil
}

// Handler returns the HTTP handler, for tests.
func (a *App) Handler() http.Handler {
	return a.httpServer.Handler
}

// Run starts the HTTP server and the ingest consumer, blocking until the
// context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 2)

	if a.consumer != nil {
		go func() {
			if err := a.consumer.Start(ctx); err != nil {
				errCh <- fmt.Errorf("kafka consumer: %w", err)
			}
		}()
	}

	go func() {
		a.logger.Info("starting HTTP server", slog.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		_ = a.Shutdown()
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if a.consumer != nil {
		if err := a.consumer.Close(); err != nil {
			a.logger.Error("kafka consumer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	errs = append(errs, a.closeAll()...)

	if a.tracing != nil {
		if err := a.tracing(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown tracing: %w", err))
		}
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

func (a *App) closeAll() []error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && !errors.Is(err, redis.ErrClosed) {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errs
}

// Command seed fills a running catalog search service with generated items.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/utafrali/catalog-search/internal/seed"
	"github.com/utafrali/catalog-search/pkg/config"
	"github.com/utafrali/catalog-search/pkg/httpclient"
	"github.com/utafrali/catalog-search/pkg/logger"
)

type seedConfig struct {
	BaseURL   string        `env:"SEED_BASE_URL" envDefault:"http://localhost:8020"`
	Count     int           `env:"SEED_COUNT" envDefault:"10000"`
	BatchSize int           `env:"SEED_BATCH_SIZE" envDefault:"500"`
	Rate      float64       `env:"SEED_BATCHES_PER_SECOND" envDefault:"0"`
	Seed      uint64        `env:"SEED_RANDOM_SEED" envDefault:"1"`
	Timeout   time.Duration `env:"SEED_TIMEOUT" envDefault:"10m"`
	LogLevel  string        `env:"LOG_LEVEL" envDefault:"info"`
}

func main() {
	var cfg seedConfig
	if err := config.Load(&cfg); err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log := logger.New("catalog-seed", cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, cfg.Timeout)
	defer cancelTimeout()

	items := seed.Generate(cfg.Count, cfg.Seed)
	loader := seed.NewLoader(httpclient.New(httpclient.DefaultConfig()), cfg.BaseURL, cfg.BatchSize, log).WithRate(cfg.Rate)

	start := time.Now()
	res, err := loader.Load(ctx, items)
	if err != nil {
		log.Error("seed failed",
			slog.String("error", err.Error()),
			slog.Int("persisted", res.Persisted),
		)
		os.Exit(1)
	}

	log.Info("seed complete",
		slog.Int("batches", res.Batches),
		slog.Int("requested", res.Requested),
		slog.Int("persisted", res.Persisted),
		slog.Duration("elapsed", time.Since(start)),
	)
}

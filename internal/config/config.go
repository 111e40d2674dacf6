package config

import (
	"fmt"
	"time"

	pkgconfig "github.com/utafrali/catalog-search/pkg/config"
	"github.com/utafrali/catalog-search/pkg/database"
)

// Index backends.
const (
	BackendElasticsearch = "elasticsearch"
	BackendPostgres      = "postgres"
	BackendMemory        = "memory"
)

// Config holds all configuration for the catalog search service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort        int           `env:"CATALOG_HTTP_PORT" envDefault:"8020"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`

	// Document index selection (elasticsearch, postgres or memory)
	IndexBackend     string `env:"INDEX_BACKEND" envDefault:"elasticsearch"`
	SearchMaxResults int    `env:"SEARCH_MAX_RESULTS" envDefault:"10000"`
	BreakerEnabled   bool   `env:"BREAKER_ENABLED" envDefault:"true"`

	// Elasticsearch
	ElasticsearchURL     string `env:"ELASTICSEARCH_URL" envDefault:"http://localhost:9200"`
	ElasticsearchIndex   string `env:"ELASTICSEARCH_INDEX" envDefault:"catalog_items"`
	ElasticsearchRefresh string `env:"ELASTICSEARCH_REFRESH" envDefault:"wait_for"`

	// PostgreSQL
	Postgres             database.PostgresConfig
	SlowQueryThresholdMs int `env:"LOG_SLOW_QUERY_MS" envDefault:"500"`

	// Redis, used for consumer dedup when REDIS_ADDR is set
	Redis          database.RedisConfig
	IdempotencyTTL time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"24h"`

	// Kafka
	KafkaEnabled       bool     `env:"KAFKA_ENABLED" envDefault:"false"`
	KafkaBrokers       []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	KafkaConsumerGroup string   `env:"KAFKA_CONSUMER_GROUP" envDefault:"catalog-search"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load catalog config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFrom reads configuration from environ instead of the process
// environment.
func LoadFrom(environ map[string]string) (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.LoadFrom(cfg, environ); err != nil {
		return nil, fmt.Errorf("load catalog config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	switch c.IndexBackend {
	case BackendElasticsearch:
		if c.ElasticsearchURL == "" {
			return fmt.Errorf("ELASTICSEARCH_URL is required for the elasticsearch backend")
		}
		switch c.ElasticsearchRefresh {
		case "true", "false", "wait_for":
		default:
			return fmt.Errorf("ELASTICSEARCH_REFRESH must be true, false or wait_for, got %q", c.ElasticsearchRefresh)
		}
	case BackendPostgres:
		if c.Postgres.Host == "" {
			return fmt.Errorf("POSTGRES_HOST is required for the postgres backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown INDEX_BACKEND %q", c.IndexBackend)
	}
	if c.SearchMaxResults < 1 {
		return fmt.Errorf("SEARCH_MAX_RESULTS must be positive, got %d", c.SearchMaxResults)
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when KAFKA_ENABLED is set")
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	return nil
}

// SlowQueryThreshold returns the slow query logging threshold.
func (c *Config) SlowQueryThreshold() time.Duration {
	return time.Duration(c.SlowQueryThresholdMs) * time.Millisecond
}

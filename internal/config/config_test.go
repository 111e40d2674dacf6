package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{})

	require.NoError(t, err)
	assert.Equal(t, 8020, cfg.HTTPPort)
	assert.Equal(t, BackendElasticsearch, cfg.IndexBackend)
	assert.Equal(t, "http://localhost:9200", cfg.ElasticsearchURL)
	assert.Equal(t, "catalog_items", cfg.ElasticsearchIndex)
	assert.Equal(t, "wait_for", cfg.ElasticsearchRefresh)
	assert.Equal(t, 10000, cfg.SearchMaxResults)
	assert.True(t, cfg.BreakerEnabled)
	assert.False(t, cfg.KafkaEnabled)
	assert.False(t, cfg.Redis.Enabled())
	assert.Equal(t, "localhost", cfg.Postgres.Host)
	assert.Equal(t, 500*time.Millisecond, cfg.SlowQueryThreshold())
}

func TestLoadFrom_Overrides(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"INDEX_BACKEND":   "postgres",
		"POSTGRES_HOST":   "db.internal",
		"REDIS_ADDR":      "cache:6379",
		"KAFKA_ENABLED":   "true",
		"KAFKA_BROKERS":   "k1:9092,k2:9092",
		"IDEMPOTENCY_TTL": "1h",
	})

	require.NoError(t, err)
	assert.Equal(t, BackendPostgres, cfg.IndexBackend)
	assert.Equal(t, "db.internal", cfg.Postgres.Host)
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, time.Hour, cfg.IdempotencyTTL)
}

func TestLoadFrom_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"port zero", map[string]string{"CATALOG_HTTP_PORT": "0"}, "invalid HTTP port"},
		{"port too high", map[string]string{"CATALOG_HTTP_PORT": "70000"}, "invalid HTTP port"},
		{"unknown backend", map[string]string{"INDEX_BACKEND": "solr"}, "unknown INDEX_BACKEND"},
		{"bad refresh", map[string]string{"ELASTICSEARCH_REFRESH": "sometimes"}, "ELASTICSEARCH_REFRESH"},
		{"max results", map[string]string{"SEARCH_MAX_RESULTS": "0"}, "SEARCH_MAX_RESULTS"},
		{"sample rate", map[string]string{"OTEL_SAMPLE_RATE": "2.0"}, "OTEL_SAMPLE_RATE must be between 0.0 and 1.0"},
		{"not a number", map[string]string{"CATALOG_HTTP_PORT": "http"}, "load catalog config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadFrom(tt.env)
			assert.Nil(t, cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_ReadsProcessEnv(t *testing.T) {
	t.Setenv("INDEX_BACKEND", "memory")
	t.Setenv("CATALOG_HTTP_PORT", "9000")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, BackendMemory, cfg.IndexBackend)
	assert.Equal(t, 9000, cfg.HTTPPort)
}

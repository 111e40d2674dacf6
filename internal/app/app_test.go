package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/catalog-search/internal/config"
	"github.com/utafrali/catalog-search/pkg/logger"
)

func memoryConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.LoadFrom(map[string]string{
		"INDEX_BACKEND":   "memory",
		"BREAKER_ENABLED": "true",
	})
	require.NoError(t, err)
	return cfg
}

func TestNewApp_MemoryBackend(t *testing.T) {
	a, err := NewApp(context.Background(), memoryConfig(t), logger.Discard())
	require.NoError(t, err)
	assert.Nil(t, a.consumer)

	h := a.Handler()

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	body := `{"name":"Wired Item","price":"10.00","stock":3,"category":"Test"}`
	rr = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/items", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusCreated, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/items/search?query=wired", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Wired Item")
}

func TestShutdown_ClosesInReverseOrder(t *testing.T) {
	a, err := NewApp(context.Background(), memoryConfig(t), logger.Discard())
	require.NoError(t, err)

	var order []string
	a.closers = append(a.closers,
		func() error { order = append(order, "first"); return nil },
		func() error { order = append(order, "second"); return nil },
	)

	require.NoError(t, a.Shutdown())
	assert.Equal(t, []string{"second", "first"}, order)
	assert.Nil(t, a.closers)
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.HTTPPort = 0
	a, err := NewApp(context.Background(), cfg, logger.Discard())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, a.Run(ctx))
}

package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func checkReady(t *testing.T, h *Handler) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	h.ReadinessHandler().ServeHTTP(rec, req)

	var resp Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return rec, resp
}

func TestLivenessHandler_AlwaysReturns200(t *testing.T) {
	h := NewHandler()
	h.Register("index", func(ctx context.Context) error { return fmt.Errorf("down") })
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)

	h.LivenessHandler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, StatusUp, resp.Status)
	assert.False(t, resp.Timestamp.IsZero())
}

func TestReadinessHandler_NoCheckers(t *testing.T) {
	rec, resp := checkReady(t, NewHandler())
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, StatusUp, resp.Status)
}

func TestReadinessHandler_AllUp(t *testing.T) {
	h := NewHandler()
	h.RegisterCritical("elasticsearch", func(ctx context.Context) error { return nil })
	h.RegisterNonCritical("kafka", func(ctx context.Context) error { return nil })

	rec, resp := checkReady(t, h)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, StatusUp, resp.Status)
	assert.True(t, resp.Checks["elasticsearch"].Critical)
	assert.False(t, resp.Checks["kafka"].Critical)
}

func TestReadinessHandler_NonCriticalDown_ReturnsDegraded200(t *testing.T) {
	h := NewHandler()
	h.RegisterCritical("elasticsearch", func(ctx context.Context) error { return nil })
	h.RegisterNonCritical("redis", func(ctx context.Context) error { return fmt.Errorf("connection refused") })

	rec, resp := checkReady(t, h)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, StatusDegraded, resp.Status)
	assert.Equal(t, StatusDown, resp.Checks["redis"].Status)
	assert.Equal(t, "connection refused", resp.Checks["redis"].Error)
}

func TestReadinessHandler_CriticalDown_Returns503(t *testing.T) {
	h := NewHandler()
	h.RegisterCritical("elasticsearch", func(ctx context.Context) error { return fmt.Errorf("cluster red") })
	h.RegisterNonCritical("redis", func(ctx context.Context) error { return fmt.Errorf("redis down") })

	rec, resp := checkReady(t, h)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, StatusDown, resp.Status)
}

func TestRegister_IsCriticalByDefault(t *testing.T) {
	h := NewHandler()
	h.Register("postgres", func(ctx context.Context) error { return fmt.Errorf("fail") })

	rec, resp := checkReady(t, h)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.True(t, resp.Checks["postgres"].Critical)
}

func TestRegister_Overwrite(t *testing.T) {
	h := NewHandler()
	h.Register("postgres", func(ctx context.Context) error { return fmt.Errorf("fail") })
	h.Register("postgres", func(ctx context.Context) error { return nil })

	rec, _ := checkReady(t, h)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadinessHandler_TimeoutBoundsSlowChecker(t *testing.T) {
	h := NewHandler()
	h.SetTimeout(20 * time.Millisecond)
	h.Register("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	start := time.Now()
	rec, resp := checkReady(t, h)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, resp.Checks["slow"].Error, "deadline exceeded")
}

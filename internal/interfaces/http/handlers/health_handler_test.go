package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/MolDock-Screen/pkg/errors"
)

type fakeChecker struct {
	name string
	err  error
}

func (c *fakeChecker) Name() string                    { return c.name }
func (c *fakeChecker) Check(ctx context.Context) error { return c.err }

func TestLiveness_AlwaysOK(t *testing.T) {
	h := NewHealthHandler("1.2.3", &fakeChecker{name: "postgres", err: errors.Internal("down")})

	w := httptest.NewRecorder()
	h.Liveness(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var resp LivenessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "alive", resp.Status)
	assert.Equal(t, "1.2.3", resp.Version)
}

func TestReadiness_AllHealthy(t *testing.T) {
	h := NewHealthHandler("test",
		&fakeChecker{name: "postgres"},
		&fakeChecker{name: "redis"},
	)

	w := httptest.NewRecorder()
	h.Readiness(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var resp ReadinessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ready", resp.Status)
	assert.Equal(t, "healthy", resp.Components["postgres"].Status)
	assert.Equal(t, "healthy", resp.Components["redis"].Status)
}

func TestReadiness_UnhealthyDependency(t *testing.T) {
	h := NewHealthHandler("test",
		&fakeChecker{name: "postgres"},
		&fakeChecker{name: "minio", err: errors.Internal("connection refused")},
	)

	w := httptest.NewRecorder()
	h.Readiness(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	var resp ReadinessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "not_ready", resp.Status)
	assert.Equal(t, "unhealthy", resp.Components["minio"].Status)
	assert.Contains(t, resp.Components["minio"].Error, "connection refused")
}

func TestReadiness_NoCheckers(t *testing.T) {
	h := NewHealthHandler("test")

	w := httptest.NewRecorder()
	h.Readiness(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDetailed_ReportsDegraded(t *testing.T) {
	h := NewHealthHandler("test",
		&fakeChecker{name: "redis", err: errors.Internal("timeout")},
	)

	w := httptest.NewRecorder()
	h.Detailed(w, httptest.NewRequest(http.MethodGet, "/healthz/detail", nil))

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"degraded"`)
}

func TestHealthHandler_RegisterRoutes(t *testing.T) {
	mux := http.NewServeMux()
	NewHealthHandler("test").RegisterRoutes(mux)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

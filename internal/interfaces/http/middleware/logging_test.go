package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/turtacn/MolDock-Screen/internal/infrastructure/monitoring/logging"
)

func TestRequestLogging_PassesThrough(t *testing.T) {
	handler := RequestLogging(logging.NewNopLogger(), DefaultLoggingConfig())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"ok":true}`))
	}))

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", nil)
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, `{"ok":true}`, w.Body.String())
}

func TestRequestLogging_SkipsConfiguredPaths(t *testing.T) {
	called := false
	handler := RequestLogging(logging.NewNopLogger(), LoggingConfig{
		SkipPaths: []string{"/healthz"},
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.True(t, called)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestWrappedResponseWriter_DefaultsTo200(t *testing.T) {
	rec := httptest.NewRecorder()
	wrapped := newWrappedResponseWriter(rec)

	n, err := wrapped.Write([]byte("hello"))
	assert.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, http.StatusOK, wrapped.statusCode)
	assert.Equal(t, int64(5), wrapped.bytesWritten)
}

func TestWrappedResponseWriter_CapturesFirstStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	wrapped := newWrappedResponseWriter(rec)

	wrapped.WriteHeader(http.StatusTeapot)
	wrapped.WriteHeader(http.StatusOK)

	assert.Equal(t, http.StatusTeapot, wrapped.statusCode)
}

func TestDefaultLoggingConfig(t *testing.T) {
	cfg := DefaultLoggingConfig()
	assert.Contains(t, cfg.SkipPaths, "/healthz")
	assert.Contains(t, cfg.SkipPaths, "/metrics")
	assert.Equal(t, 3*time.Second, cfg.SlowThreshold)
}

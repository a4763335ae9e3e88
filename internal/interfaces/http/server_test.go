package http

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/MolDock-Screen/internal/config"
)

func TestNewServer_Defaults(t *testing.T) {
	mux := http.NewServeMux()
	server := NewServer(config.ServerConfig{Port: 8080}, mux, nil)

	require.NotNil(t, server)
	assert.Equal(t, ":8080", server.srv.Addr)
	assert.Equal(t, 15*time.Second, server.srv.ReadTimeout)
	assert.Equal(t, 15*time.Second, server.srv.WriteTimeout)
	assert.Equal(t, 30*time.Second, server.shutdownTimeout)
}

func TestNewServer_ConfiguredTimeouts(t *testing.T) {
	server := NewServer(config.ServerConfig{
		Port:            9090,
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    10 * time.Second,
		ShutdownTimeout: 2 * time.Second,
	}, http.NewServeMux(), nil)

	assert.Equal(t, 5*time.Second, server.srv.ReadTimeout)
	assert.Equal(t, 10*time.Second, server.srv.WriteTimeout)
	assert.Equal(t, 2*time.Second, server.shutdownTimeout)
}

func TestNewServer_BodySizeLimit(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/echo", func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.ReadAll(r.Body); err != nil {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	server := NewServer(config.ServerConfig{Port: 0, MaxBodySize: 8}, mux, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader("this body exceeds eight bytes"))
	server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	rec2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader("tiny"))
	server.Handler().ServeHTTP(rec2, req2)
	assert.Equal(t, http.StatusOK, rec2.Code)
}

func TestServer_Stop(t *testing.T) {
	server := NewServer(config.ServerConfig{Port: 0}, http.NewServeMux(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	assert.NoError(t, server.Stop(ctx))
}

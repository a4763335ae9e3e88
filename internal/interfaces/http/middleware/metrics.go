package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/turtacn/MolDock-Screen/internal/infrastructure/monitoring/prometheus"
)

// RequestMetrics returns middleware that records per-request metrics.
// The chi route pattern is used as the path label so that parameterized
// routes do not explode metric cardinality.
func RequestMetrics(metrics *prometheus.AppMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if metrics == nil {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			wrapped := newWrappedResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			path := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					path = pattern
				}
			}

			reqSize := r.ContentLength
			if reqSize < 0 {
				reqSize = 0
			}
			prometheus.RecordHTTPRequest(metrics, r.Method, path, wrapped.statusCode,
				time.Since(start), reqSize, wrapped.bytesWritten)
		})
	}
}

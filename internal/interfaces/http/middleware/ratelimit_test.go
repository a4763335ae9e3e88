package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTokenBucketLimiter_AllowsWithinBurst(t *testing.T) {
	limiter := NewTokenBucketLimiter(1, 3, 0)

	for i := 0; i < 3; i++ {
		allowed, _ := limiter.Allow("client-a")
		assert.True(t, allowed, "request %d should be allowed", i)
	}

	allowed, info := limiter.Allow("client-a")
	assert.False(t, allowed)
	assert.Equal(t, 0, info.Remaining)
}

func TestTokenBucketLimiter_KeysAreIndependent(t *testing.T) {
	limiter := NewTokenBucketLimiter(1, 1, 0)

	allowed, _ := limiter.Allow("client-a")
	assert.True(t, allowed)
	allowed, _ = limiter.Allow("client-a")
	assert.False(t, allowed)

	allowed, _ = limiter.Allow("client-b")
	assert.True(t, allowed)
}

func TestTokenBucketLimiter_Refills(t *testing.T) {
	limiter := NewTokenBucketLimiter(1000, 1, 0)

	allowed, _ := limiter.Allow("client-a")
	assert.True(t, allowed)
	allowed, _ = limiter.Allow("client-a")
	assert.False(t, allowed)

	time.Sleep(5 * time.Millisecond)
	allowed, _ = limiter.Allow("client-a")
	assert.True(t, allowed, "bucket should refill after waiting")
}

func TestRateLimit_SetsHeadersAndRejects(t *testing.T) {
	limiter := NewTokenBucketLimiter(0.001, 1, 0)
	config := DefaultRateLimitConfig()
	config.SkipPaths = nil

	handler := RateLimit(limiter, config)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	w1 := httptest.NewRecorder()
	handler.ServeHTTP(w1, httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil))
	assert.Equal(t, http.StatusOK, w1.Code)
	assert.Equal(t, "1", w1.Header().Get("X-RateLimit-Limit"))

	w2 := httptest.NewRecorder()
	handler.ServeHTTP(w2, httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil))
	assert.Equal(t, http.StatusTooManyRequests, w2.Code)
	assert.NotEmpty(t, w2.Header().Get("Retry-After"))
	assert.Contains(t, w2.Body.String(), "RATE_LIMITED")
}

func TestRateLimit_SkipsConfiguredPaths(t *testing.T) {
	limiter := NewTokenBucketLimiter(0.001, 1, 0)
	config := DefaultRateLimitConfig()

	handler := RateLimit(limiter, config)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestRateLimit_KeyFuncPrefersForwardedFor(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Forwarded-For", "203.0.113.7")
	assert.Equal(t, "203.0.113.7", defaultKeyFunc(r))

	r2 := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, r2.RemoteAddr, defaultKeyFunc(r2))
}

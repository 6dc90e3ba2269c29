package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, rate int, window time.Duration) (*RateLimiter, *time.Time) {
	t.Helper()
	limiter := NewRateLimiter(rate, window, setupTestLogger())
	t.Cleanup(limiter.Stop)

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }
	return limiter, &now
}

func TestRateLimiter_Allow(t *testing.T) {
	limiter, now := newTestLimiter(t, 3, time.Minute)

	for i := range 3 {
		assert.True(t, limiter.Allow("10.0.0.1"), "request %d", i+1)
	}
	assert.False(t, limiter.Allow("10.0.0.1"))

	// Другой ключ не затронут
	assert.True(t, limiter.Allow("10.0.0.2"))

	*now = now.Add(time.Minute)
	assert.True(t, limiter.Allow("10.0.0.1"))
}

func TestRateLimiter_CleanupOldBuckets(t *testing.T) {
	limiter, now := newTestLimiter(t, 1, time.Minute)

	limiter.Allow("old")
	*now = now.Add(90 * time.Second)
	limiter.Allow("fresh")
	*now = now.Add(40 * time.Second)

	limiter.cleanupOldBuckets()

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	assert.NotContains(t, limiter.buckets, "old")
	assert.Contains(t, limiter.buckets, "fresh")
}

func TestRateLimiter_StopTwice(t *testing.T) {
	limiter := NewRateLimiter(1, time.Minute, setupTestLogger())
	limiter.Stop()
	assert.NotPanics(t, limiter.Stop)
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter, _ := newTestLimiter(t, 2, time.Minute)

	calls := 0
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	})
	h := RateLimitMiddleware(limiter, setupTestLogger())(next)

	codes := make([]int, 0, 3)
	for range 3 {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
		// Разные порты одного IP попадают в один bucket
		req.RemoteAddr = "192.0.2.7:" + []string{"1000", "1001", "1002"}[len(codes)]
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		codes = append(codes, w.Code)
		if w.Code == http.StatusTooManyRequests {
			assert.Equal(t, "60", w.Header().Get("Retry-After"))
			assert.Contains(t, w.Body.String(), "rate limit exceeded")
		}
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
	assert.Equal(t, 2, calls)
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		headers    map[string]string
		name       string
		remoteAddr string
		want       string
	}{
		{name: "remote addr with port", remoteAddr: "192.0.2.1:5555", want: "192.0.2.1"},
		{name: "remote addr ipv6", remoteAddr: "[2001:db8::1]:443", want: "2001:db8::1"},
		{name: "forwarded chain", remoteAddr: "10.0.0.1:1", headers: map[string]string{"X-Forwarded-For": "203.0.113.5, 10.0.0.1"}, want: "203.0.113.5"},
		{name: "real ip", remoteAddr: "10.0.0.1:1", headers: map[string]string{"X-Real-IP": " 203.0.113.9 "}, want: "203.0.113.9"},
		{name: "bare remote addr", remoteAddr: "pipe", want: "pipe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			require.Equal(t, tt.want, getClientIP(req))
		})
	}
}

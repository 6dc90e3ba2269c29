package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/iudanet/shelfsync/internal/server/handlers"
)

// RateLimiter ограничивает число запросов с одного ключа (IP) за окно window.
// Счётчик ключа сбрасывается целиком, когда с последнего сброса прошло window.
type RateLimiter struct {
	buckets  map[string]*bucket
	logger   *slog.Logger
	now      func() time.Time
	cleanupC chan struct{}
	stopOnce sync.Once
	rate     int
	window   time.Duration
	mu       sync.Mutex
}

// bucket представляет bucket для конкретного IP/ключа
type bucket struct {
	lastRefill time.Time
	tokens     int
}

// NewRateLimiter создает новый rate limiter и запускает очистку неактивных ключей.
// Stop must be called to release the cleanup goroutine.
func NewRateLimiter(rate int, window time.Duration, logger *slog.Logger) *RateLimiter {
	rl := &RateLimiter{
		buckets:  make(map[string]*bucket),
		rate:     rate,
		window:   window,
		logger:   logger,
		now:      time.Now,
		cleanupC: make(chan struct{}),
	}

	go rl.cleanup()

	return rl
}

func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(rl.window * 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanupOldBuckets()
		case <-rl.cleanupC:
			return
		}
	}
}

// cleanupOldBuckets удаляет buckets, которые не обновлялись дольше двух окон
func (rl *RateLimiter) cleanupOldBuckets() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key, b := range rl.buckets {
		if now.Sub(b.lastRefill) > rl.window*2 {
			delete(rl.buckets, key)
		}
	}
}

// Stop останавливает cleanup goroutine. Safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		close(rl.cleanupC)
	})
}

// Allow проверяет, разрешен ли запрос для данного ключа
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, ok := rl.buckets[key]
	if !ok || now.Sub(b.lastRefill) >= rl.window {
		b = &bucket{tokens: rl.rate, lastRefill: now}
		rl.buckets[key] = b
	}

	if b.tokens > 0 {
		b.tokens--
		return true
	}

	return false
}

// RateLimitMiddleware отвечает 429, когда limiter не пропускает IP клиента
func RateLimitMiddleware(limiter *RateLimiter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := getClientIP(r)

			if !limiter.Allow(key) {
				logger.WarnContext(r.Context(), "rate limit exceeded",
					slog.String("ip", key),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path))

				w.Header().Set("Retry-After", retryAfter(limiter.window))
				handlers.SendError(logger, w, "rate limit exceeded, please try again later", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func retryAfter(window time.Duration) string {
	secs := int(window.Seconds())
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

// getClientIP извлекает IP адрес клиента из запроса.
// X-Forwarded-For и X-Real-IP учитываются для работы за прокси.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	// RemoteAddr без порта, иначе каждое соединение получает свой bucket
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

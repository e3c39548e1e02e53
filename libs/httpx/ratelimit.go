package httpx

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// windowCounter counts hits per key in fixed windows. take returns the hit count
// including this one and the time left in the window.
type windowCounter interface {
	take(ctx context.Context, key string) (int64, time.Duration, error)
}

// throttle rejects a client with 429 once it exceeds limit in the current window.
// Counter errors pass the request through when failOpen, otherwise answer 503.
func throttle(c windowCounter, limit int, logger *slog.Logger, failOpen bool) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			count, resetIn, err := c.take(r.Context(), clientKey(r))
			if err != nil {
				if logger != nil {
					logger.Warn("rate limiter error", "err", err, "request_id", RequestIDFromContext(r.Context()))
				}
				if failOpen {
					next.ServeHTTP(w, r)
					return
				}
				writeLimitError(w, http.StatusServiceUnavailable, "rate limiter unavailable")
				return
			}
			remaining := int64(limit) - count
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(max(remaining, 0), 10))
			if remaining < 0 {
				secs := int((resetIn + time.Second - 1) / time.Second)
				w.Header().Set("Retry-After", strconv.Itoa(max(secs, 1)))
				writeLimitError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeLimitError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write([]byte(`{"error":{"kind":"rate_limited","message":"` + msg + `"}}`))
}

// RateLimiter is the in-process fixed-window limiter, for single replicas and tests.
type RateLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu        sync.Mutex
	windows   map[string]*window
	lastSweep time.Time
}

type window struct {
	count   int64
	resetAt time.Time
}

func NewRateLimiter(limit int, w time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = 60
	}
	if w <= 0 {
		w = time.Minute
	}
	return &RateLimiter{limit: limit, window: w, now: time.Now, windows: map[string]*window{}}
}

func (rl *RateLimiter) Middleware() Middleware {
	return throttle(rl, rl.limit, nil, true)
}

func (rl *RateLimiter) take(_ context.Context, key string) (int64, time.Duration, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastSweep) > rl.window {
		for k, w := range rl.windows {
			if !now.Before(w.resetAt) {
				delete(rl.windows, k)
			}
		}
		rl.lastSweep = now
	}
	w := rl.windows[key]
	if w == nil || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(rl.window)}
		rl.windows[key] = w
	}
	w.count++
	return w.count, w.resetAt.Sub(now), nil
}

// clientKey is the first X-Forwarded-For hop, else the peer address.
func clientKey(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

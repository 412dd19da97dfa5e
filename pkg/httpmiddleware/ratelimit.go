package httpmiddleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
)

// Limiter is an in-memory sliding window rate limiter. The hit count of the
// previous fixed window is weighted by how much of it still overlaps the
// sliding window ending now.
type Limiter struct {
	max    int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	start      time.Time
	prev, curr int
}

// NewLimiter allows limit hits per key within any window-long interval.
func NewLimiter(limit int, window time.Duration) *Limiter {
	return &Limiter{
		max:     limit,
		window:  window,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

// Allow records a hit for key. It reports whether the hit fits the budget,
// how many hits are left and when the current fixed window ends.
func (l *Limiter) Allow(key string) (ok bool, remaining int, reset time.Time) {
	now := l.now()
	start := now.Truncate(l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	b, found := l.buckets[key]
	if !found {
		b = &bucket{start: start}
		l.buckets[key] = b
	}
	switch elapsed := start.Sub(b.start); {
	case elapsed <= 0:
	case elapsed == l.window:
		b.prev, b.curr, b.start = b.curr, 0, start
	default:
		b.prev, b.curr, b.start = 0, 0, start
	}

	overlap := 1 - float64(now.Sub(start))/float64(l.window)
	used := float64(b.prev)*overlap + float64(b.curr)
	reset = start.Add(l.window)
	if used+1 > float64(l.max) {
		return false, 0, reset
	}

	b.curr++
	remaining = int(math.Floor(float64(l.max) - used - 1))
	return true, max(remaining, 0), reset
}

// sweep drops keys idle for more than two windows.
func (l *Limiter) sweep(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for key, b := range l.buckets {
		if now.Sub(b.start) >= 2*l.window {
			delete(l.buckets, key)
		}
	}
}

// Run periodically evicts idle keys until ctx is done.
func (l *Limiter) Run(ctx context.Context) {
	ticker := time.NewTicker(2 * l.window)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			l.sweep(now)
		}
	}
}

// RateLimit rejects requests over the limiter budget with 429. key selects
// the budget a request is charged to; requests with an empty key pass
// through unlimited.
func RateLimit(l *Limiter, key func(*http.Request) string) Middleware {
	limit := strconv.Itoa(l.max)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			if k == "" {
				next.ServeHTTP(w, r)
				return
			}

			ok, remaining, reset := l.Allow(k)
			h := w.Header()
			h.Set("X-RateLimit-Limit", limit)
			h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
			if !ok {
				wait := max(reset.Sub(l.now()), 0)
				h.Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
				WriteError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// URLParam keys requests by a chi route parameter. The middleware must be
// mounted on the route that declares the parameter.
func URLParam(name string) func(*http.Request) string {
	return func(r *http.Request) string {
		return chi.URLParam(r, name)
	}
}

// ClientIP keys requests by the first X-Forwarded-For hop, then X-Real-IP,
// then the remote address.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

package middleware

import (
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

const maxTrackedClients = 10_000

// RateLimiter controls how frequently a caller may perform an action.
type RateLimiter interface {
	Allow(key string) bool
}

// KeyedRateLimiter keeps a token bucket per key, typically a client address.
// Idle buckets are evicted after ttl.
type KeyedRateLimiter struct {
	buckets *expirable.LRU[string, *rate.Limiter]
	limit   rate.Limit
	burst   int
}

// NewKeyedRateLimiter allows up to requests events per window with the given
// burst capacity for each key.
func NewKeyedRateLimiter(requests int, window time.Duration, burst int) *KeyedRateLimiter {
	if requests <= 0 {
		requests = 1
	}
	if window <= 0 {
		window = time.Second
	}
	if burst <= 0 {
		burst = 1
	}

	ttl := 2 * window
	if ttl < 5*time.Minute {
		ttl = 5 * time.Minute
	}

	return &KeyedRateLimiter{
		buckets: expirable.NewLRU[string, *rate.Limiter](maxTrackedClients, nil, ttl),
		limit:   rate.Every(window / time.Duration(requests)),
		burst:   burst,
	}
}

// Allow reports whether key may perform another event now.
func (l *KeyedRateLimiter) Allow(key string) bool {
	if key == "" {
		key = "unknown"
	}
	limiter, ok := l.buckets.Get(key)
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.buckets.Add(key, limiter)
	}
	return limiter.Allow()
}

// retryAfter is the advertised back-off for a rejected request, in whole seconds.
func (l *KeyedRateLimiter) retryAfter() int {
	interval := time.Duration(float64(time.Second) / float64(l.limit))
	return int(math.Max(1, math.Ceil(interval.Seconds())))
}

// RateLimit rejects requests over the limit with 429. Buckets are keyed by
// scope and client address so separate endpoints do not share a budget.
func RateLimit(limiter RateLimiter, scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil || limiter.Allow(fmt.Sprintf("%s:%s", scope, ClientIP(r))) {
				next.ServeHTTP(w, r)
				return
			}
			if keyed, ok := limiter.(*KeyedRateLimiter); ok {
				w.Header().Set("Retry-After", strconv.Itoa(keyed.retryAfter()))
			}
			writeError(w, http.StatusTooManyRequests, "too many requests")
		})
	}
}

// ClientIP returns the first X-Forwarded-For hop, or the peer address.
func ClientIP(r *http.Request) string {
	if forwarded := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}

	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}

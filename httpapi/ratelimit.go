package httpapi

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Per-IP request budgets, in requests per minute.
const (
	queryRateLimit        = 30
	conversationRateLimit = 60
	defaultRateLimit      = 100
)

// ipLimiter hands out one token-bucket limiter per client IP.
type ipLimiter struct {
	perMinute int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	lastSeen map[string]time.Time
}

func newIPLimiter(perMinute int) *ipLimiter {
	return &ipLimiter{
		perMinute: perMinute,
		limiters:  make(map[string]*rate.Limiter),
		lastSeen:  make(map[string]time.Time),
	}
}

const limiterIdleEviction = 10 * time.Minute

func (l *ipLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	lim, ok := l.limiters[ip]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(float64(l.perMinute)/60), l.perMinute)
		l.limiters[ip] = lim
		l.evictIdle(now)
	}
	l.lastSeen[ip] = now
	return lim.Allow()
}

// evictIdle drops limiters for IPs not seen recently. Called with the
// lock held, on the new-IP path only, so steady traffic pays nothing.
func (l *ipLimiter) evictIdle(now time.Time) {
	for ip, seen := range l.lastSeen {
		if now.Sub(seen) > limiterIdleEviction {
			delete(l.limiters, ip)
			delete(l.lastSeen, ip)
		}
	}
}

// rateLimit wraps a handler with a per-IP budget; exceeding it answers
// 429.
func rateLimit(perMinute int) func(http.Handler) http.Handler {
	limiter := newIPLimiter(perMinute)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.allow(clientIP(r)) {
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

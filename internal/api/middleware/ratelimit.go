package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"
)

// LoginLimiter is a fixed-window per-IP request counter for
// /api/auth/login, per spec.md §4.9 ("Rate-limited to 5/min/IP"). No
// rate-limiting library appears anywhere in the retrieved pack, so
// this one small counter is implemented directly rather than wired to
// an out-of-pack dependency.
type LoginLimiter struct {
	limit  int
	window time.Duration

	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	count      int
	windowEnds time.Time
}

// NewLoginLimiter builds a limiter allowing limit requests per window
// per remote IP.
func NewLoginLimiter(limit int, window time.Duration) *LoginLimiter {
	return &LoginLimiter{
		limit:   limit,
		window:  window,
		buckets: make(map[string]*bucket),
	}
}

// Allow reports whether a request from ip may proceed, incrementing
// its window counter as a side effect.
func (l *LoginLimiter) Allow(ip string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[ip]
	if !ok || now.After(b.windowEnds) {
		b = &bucket{count: 0, windowEnds: now.Add(l.window)}
		l.buckets[ip] = b
	}

	if b.count >= l.limit {
		return false
	}
	b.count++
	return true
}

// Limit wraps next, rejecting requests over the per-IP rate with 429.
func (l *LoginLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := remoteIP(r)
		if !l.Allow(ip, time.Now()) {
			http.Error(w, `{"error":"too many login attempts, try again later"}`, http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

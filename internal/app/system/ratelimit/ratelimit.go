// internal/app/system/ratelimit/ratelimit.go
package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Window counts hits per key inside a fixed window that opens on the
// first hit. Expired keys are pruned on access, so no background
// goroutine is needed. Safe for concurrent use.
type Window struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   int
	span    time.Duration
	now     func() time.Time
	hits    int
}

type bucket struct {
	count     int
	expiresAt time.Time
}

// pruneEvery is how many Allow calls pass between sweeps of expired keys.
const pruneEvery = 256

// NewWindow allows limit hits per key within span.
func NewWindow(limit int, span time.Duration) *Window {
	return &Window{
		buckets: make(map[string]*bucket),
		limit:   limit,
		span:    span,
		now:     time.Now,
	}
}

// Allow records a hit for key and reports whether it is within the limit.
func (w *Window) Allow(key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	w.hits++
	if w.hits%pruneEvery == 0 {
		w.pruneLocked(now)
	}

	b, ok := w.buckets[key]
	if !ok || now.After(b.expiresAt) {
		w.buckets[key] = &bucket{count: 1, expiresAt: now.Add(w.span)}
		return true
	}
	if b.count >= w.limit {
		return false
	}
	b.count++
	return true
}

// Remaining is the number of hits key has left in its current window.
func (w *Window) Remaining(key string) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	b, ok := w.buckets[key]
	if !ok || w.now().After(b.expiresAt) {
		return w.limit
	}
	if left := w.limit - b.count; left > 0 {
		return left
	}
	return 0
}

// Reset forgets key.
func (w *Window) Reset(key string) {
	w.mu.Lock()
	delete(w.buckets, key)
	w.mu.Unlock()
}

func (w *Window) pruneLocked(now time.Time) {
	for k, b := range w.buckets {
		if now.After(b.expiresAt) {
			delete(w.buckets, k)
		}
	}
}

// ClientIP returns the caller's address, preferring the first
// X-Forwarded-For hop, then X-Real-IP, then RemoteAddr without its port.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if ip := strings.TrimSpace(strings.Split(xff, ",")[0]); ip != "" {
			return ip
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// LoginLimiter throttles sign-in attempts both per client address and
// per login ID.
type LoginLimiter struct {
	byIP      *Window
	byLoginID *Window
}

// NewLoginLimiter builds a limiter from the two window settings.
func NewLoginLimiter(ipLimit int, ipSpan time.Duration, loginLimit int, loginSpan time.Duration) *LoginLimiter {
	return &LoginLimiter{
		byIP:      NewWindow(ipLimit, ipSpan),
		byLoginID: NewWindow(loginLimit, loginSpan),
	}
}

// DefaultLoginLimiter allows 10 attempts per address per minute and
// 5 attempts per login ID per 5 minutes.
func DefaultLoginLimiter() *LoginLimiter {
	return NewLoginLimiter(10, time.Minute, 5, 5*time.Minute)
}

// Check records an attempt and returns a user-facing reason when it is blocked.
func (l *LoginLimiter) Check(r *http.Request, loginID string) (bool, string) {
	if !l.byIP.Allow(ClientIP(r)) {
		return false, "Too many sign-in attempts. Please wait a minute and try again."
	}
	if key := loginKey(loginID); key != "" && !l.byLoginID.Allow(key) {
		return false, "Too many sign-in attempts for this account. Please wait a few minutes."
	}
	return true, ""
}

// Succeeded clears the per-account counter after a good sign-in.
func (l *LoginLimiter) Succeeded(loginID string) {
	if key := loginKey(loginID); key != "" {
		l.byLoginID.Reset(key)
	}
}

func loginKey(loginID string) string {
	return strings.ToLower(strings.TrimSpace(loginID))
}

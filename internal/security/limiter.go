package security

import (
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// LoginLimiter throttles login attempts per email address.
type LoginLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[string]*limiterEntry
	idle     time.Duration
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLoginLimiter allows perMinute attempts per email with the given burst.
// A non-positive perMinute disables throttling.
func NewLoginLimiter(perMinute float64, burst int) *LoginLimiter {
	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Limit(perMinute / 60)
	}
	if burst <= 0 {
		burst = 1
	}
	return &LoginLimiter{
		limit:    limit,
		burst:    burst,
		limiters: make(map[string]*limiterEntry),
		idle:     10 * time.Minute,
	}
}

// Allow reports whether another attempt for email may proceed now.
func (l *LoginLimiter) Allow(email string) bool {
	key := strings.ToLower(strings.TrimSpace(email))
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.limiters[key]
	if !ok {
		l.sweep(now)
		entry = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

// Reset forgets the attempts recorded for email, after a successful login.
func (l *LoginLimiter) Reset(email string) {
	key := strings.ToLower(strings.TrimSpace(email))
	l.mu.Lock()
	delete(l.limiters, key)
	l.mu.Unlock()
}

func (l *LoginLimiter) sweep(now time.Time) {
	for key, entry := range l.limiters {
		if now.Sub(entry.lastSeen) > l.idle {
			delete(l.limiters, key)
		}
	}
}

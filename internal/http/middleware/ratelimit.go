package middleware

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

// KeyedLimiter keeps one token bucket per key in memory.
type KeyedLimiter struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	r       rate.Limit
	b       int
	clock   clockwork.Clock
}

// NewKeyedLimiter allows requests events per window for each key with bursts of burst.
// A non-positive requests or window disables limiting.
func NewKeyedLimiter(requests int, window time.Duration, burst int, clock clockwork.Clock) *KeyedLimiter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	r := rate.Inf
	if requests > 0 && window > 0 {
		r = rate.Every(window / time.Duration(requests))
	}
	if burst <= 0 {
		burst = 1
	}
	return &KeyedLimiter{
		buckets: make(map[string]*rate.Limiter),
		r:       r,
		b:       burst,
		clock:   clock,
	}
}

// Allow reports whether key may perform one more action now.
func (l *KeyedLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, ok := l.buckets[key]
	if !ok {
		limiter = rate.NewLimiter(l.r, l.b)
		l.buckets[key] = limiter
	}
	return limiter.AllowN(l.clock.Now(), 1)
}

// RateLimit rejects requests over l's budget with 429. Requests are keyed by
// viewer id, or by client IP for anonymous callers.
func RateLimit(l *KeyedLimiter) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := ViewerID(c)
		if key == "" {
			key = "ip:" + c.IP()
		}
		if !l.Allow(key) {
			return fiber.NewError(fiber.StatusTooManyRequests, "upload rate limit exceeded")
		}
		return c.Next()
	}
}

package middleware

import (
	"sync"
	"time"

	"tenantauth/config"
	"tenantauth/internal/delivery/api/response"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

const bucketIdleTTL = 5 * time.Minute

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter is a token bucket per client IP.
type IPRateLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	limit     rate.Limit
	burst     int
	enabled   bool
	lastSweep time.Time
	now       func() time.Time
}

// NewIPRateLimiter builds the limiter from the http.rateLimit section.
func NewIPRateLimiter(cfg config.RateLimitConfig) *IPRateLimiter {
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &IPRateLimiter{
		buckets: make(map[string]*bucket),
		limit:   rate.Limit(cfg.PerSecond),
		burst:   burst,
		enabled: cfg.Enabled && cfg.PerSecond > 0,
		now:     time.Now,
	}
}

// Handle answers 429 once the caller's bucket is empty.
func (l *IPRateLimiter) Handle(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if l.enabled && !l.allow(c.RealIP()) {
			return response.TooManyRequests(c, "Rate limit exceeded, slow down")
		}

		return next(c)
	}
}

func (l *IPRateLimiter) allow(ip string) bool {
	if ip == "" {
		ip = "unknown"
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) > bucketIdleTTL {
		for key, b := range l.buckets {
			if now.Sub(b.lastSeen) > bucketIdleTTL {
				delete(l.buckets, key)
			}
		}
		l.lastSweep = now
	}

	b, ok := l.buckets[ip]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[ip] = b
	}
	b.lastSeen = now

	return b.limiter.AllowN(now, 1)
}

package cache

import (
	"context"
	"sync"
	"time"

	"tenantauth/internal/domain/service"
)

type window struct {
	count     int
	expiresAt time.Time
}

// memoryAttemptLimiter mirrors the Redis limiter inside one process.
type memoryAttemptLimiter struct {
	mu        sync.Mutex
	limits    Limits
	counters  map[string]*window
	lastSweep time.Time
	now       func() time.Time
}

// NewMemoryAttemptLimiter returns a fixed-window limiter that keeps its counters in process.
func NewMemoryAttemptLimiter(limits Limits) service.AttemptLimiter {
	return &memoryAttemptLimiter{
		limits:   limits,
		counters: make(map[string]*window),
		now:      time.Now,
	}
}

func (l *memoryAttemptLimiter) Check(_ context.Context, subject, ip string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for _, key := range counterKeys(l.limits.Prefix, subject, ip) {
		if w := l.current(key, now); w != nil && w.count >= l.limits.MaxAttempts {
			return service.ErrRateLimited
		}
	}

	return nil
}

func (l *memoryAttemptLimiter) Record(_ context.Context, subject, ip string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)
	for _, key := range counterKeys(l.limits.Prefix, subject, ip) {
		w := l.current(key, now)
		if w == nil {
			w = &window{expiresAt: now.Add(l.limits.Window)}
			l.counters[key] = w
		}
		w.count++
	}

	return nil
}

func (l *memoryAttemptLimiter) Reset(_ context.Context, subject, ip string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, key := range counterKeys(l.limits.Prefix, subject, ip) {
		delete(l.counters, key)
	}

	return nil
}

func (l *memoryAttemptLimiter) current(key string, now time.Time) *window {
	w, ok := l.counters[key]
	if !ok {
		return nil
	}
	if !now.Before(w.expiresAt) {
		delete(l.counters, key)

		return nil
	}

	return w
}

// sweep drops expired windows at most once per window length.
func (l *memoryAttemptLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.limits.Window {
		return
	}
	l.lastSweep = now

	for key, w := range l.counters {
		if !now.Before(w.expiresAt) {
			delete(l.counters, key)
		}
	}
}

// Package ratelimit provides per-key request limiting for the credential
// endpoints.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter tracks one token bucket per key (typically a client IP).
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   rate.Limit
	burst   int
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// New creates a limiter allowing r events per second with the given burst.
func New(r rate.Limit, burst int) *Limiter {
	return &Limiter{
		buckets: make(map[string]*bucket),
		limit:   r,
		burst:   burst,
	}
}

// Allow reports whether a request for key is within limits.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = time.Now()

	// Opportunistic cleanup keeps the map from growing without a background
	// goroutine.
	if len(l.buckets) > 10000 {
		l.evictIdle(10 * time.Minute)
	}

	return b.limiter.Allow()
}

func (l *Limiter) evictIdle(idle time.Duration) {
	cutoff := time.Now().Add(-idle)
	for key, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, key)
		}
	}
}

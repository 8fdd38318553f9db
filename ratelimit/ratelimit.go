// Package ratelimit implements per-caller admission control.
package ratelimit

import (
	"context"
	"crypto/subtle"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter decides whether one more unit of work may run for key.
type Limiter interface {
	Limit(ctx context.Context, key string) (bool, error)
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Keyed is a token-bucket Limiter with one bucket per key, powered by
// golang.org/x/time/rate.
//
// Entries unused for idleAfter are evicted by a background goroutine,
// preventing unbounded memory growth.
type Keyed struct {
	rps   rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*limiterEntry
	now      func() time.Time

	stop chan struct{}
	once sync.Once
}

// NewKeyed creates a Keyed limiter and starts its eviction loop.
func NewKeyed(requestsPerSecond float64, burst int) *Keyed {
	l := newKeyed(requestsPerSecond, burst)
	go l.cleanupLoop(5*time.Minute, time.Hour)
	return l
}

func newKeyed(requestsPerSecond float64, burst int) *Keyed {
	if burst <= 0 {
		burst = 1
	}
	return &Keyed{
		rps:      rate.Limit(requestsPerSecond),
		burst:    burst,
		limiters: make(map[string]*limiterEntry),
		now:      time.Now,
		stop:     make(chan struct{}),
	}
}

// Limit consumes one token from key's bucket and reports whether it was
// available. It never blocks.
func (l *Keyed) Limit(_ context.Context, key string) (bool, error) {
	now := l.now()
	return l.get(key, now).AllowN(now, 1), nil
}

func (l *Keyed) get(key string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.limiters[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.limiters[key] = e
	}
	e.lastSeen = now
	return e.limiter
}

// Close stops the eviction loop.
func (l *Keyed) Close() {
	l.once.Do(func() { close(l.stop) })
}

func (l *Keyed) cleanupLoop(every, idleAfter time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.evict(l.now().Add(-idleAfter))
		}
	}
}

func (l *Keyed) evict(cutoff time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for id, e := range l.limiters {
		if e.lastSeen.Before(cutoff) {
			delete(l.limiters, id)
			n++
		}
	}
	return n
}

// Trusted reports whether token matches the configured bypass token.
// An empty configured token never matches.
func Trusted(token, trustedToken string) bool {
	if token == "" || trustedToken == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(trustedToken)) == 1
}

package auth

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// FailLimiter rate-limits repeated authentication failures per source
// address. Successful attempts are not counted. Entries idle for longer
// than the eviction window are dropped on the next insert past capacity.
type FailLimiter struct {
	mu      sync.Mutex
	entries map[string]*failEntry
	rateVal rate.Limit
	burst   int
}

type failEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewFailLimiter creates a limiter allowing perMinute failures with the
// given burst per source address.
func NewFailLimiter(perMinute float64, burst int) *FailLimiter {
	return &FailLimiter{
		entries: make(map[string]*failEntry),
		rateVal: rate.Limit(perMinute / 60.0),
		burst:   burst,
	}
}

// Allow reports whether another authentication attempt from addr may be
// processed. Call Fail after a failed attempt to consume a token.
func (l *FailLimiter) Allow(addr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := l.entry(addr)
	return e.limiter.Tokens() >= 1
}

// Fail records a failed attempt from addr.
func (l *FailLimiter) Fail(addr string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := l.entry(addr)
	e.limiter.Allow()
}

// entry returns the limiter for addr, creating it if needed.
// Must be called with l.mu held.
func (l *FailLimiter) entry(addr string) *failEntry {
	e, ok := l.entries[addr]
	if !ok {
		if len(l.entries) >= 10000 {
			l.evict()
		}
		e = &failEntry{limiter: rate.NewLimiter(l.rateVal, l.burst)}
		l.entries[addr] = e
	}
	e.lastSeen = time.Now()
	return e
}

// evict removes entries not seen in the last 10 minutes.
// Must be called with l.mu held.
func (l *FailLimiter) evict() {
	cutoff := time.Now().Add(-10 * time.Minute)
	for addr, e := range l.entries {
		if e.lastSeen.Before(cutoff) {
			delete(l.entries, addr)
		}
	}
}

package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type memoryEntry struct {
	limiter      *rate.Limiter
	lastSeen     time.Time
	blockedUntil time.Time
}

// MemoryLimiter keeps one x/time/rate limiter per (policy, key).
type MemoryLimiter struct {
	mu        sync.Mutex
	entries   map[string]*memoryEntry
	idleTTL   time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// NewMemoryLimiter forgets keys idle for longer than idleTTL.
func NewMemoryLimiter(idleTTL time.Duration) *MemoryLimiter {
	if idleTTL <= 0 {
		idleTTL = 10 * time.Minute
	}
	return &MemoryLimiter{
		entries: make(map[string]*memoryEntry),
		idleTTL: idleTTL,
		now:     time.Now,
	}
}

func (m *MemoryLimiter) Allow(_ context.Context, key string, policy Policy) (Decision, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.sweep(now)
	bucket := policy.Name + ":" + key
	entry, ok := m.entries[bucket]
	if !ok {
		entry = &memoryEntry{limiter: rate.NewLimiter(rate.Every(policy.Interval()), policy.Limit)}
		m.entries[bucket] = entry
	}
	entry.lastSeen = now

	if now.Before(entry.blockedUntil) {
		return Decision{Allowed: false, RetryAfter: entry.blockedUntil.Sub(now)}, nil
	}
	if entry.limiter.AllowN(now, 1) {
		return Decision{Allowed: true, Remaining: int(entry.limiter.TokensAt(now))}, nil
	}
	if policy.Block > 0 {
		entry.blockedUntil = now.Add(policy.Block)
		return Decision{Allowed: false, RetryAfter: policy.Block}, nil
	}

	r := entry.limiter.ReserveN(now, 1)
	delay := r.DelayFrom(now)
	r.CancelAt(now)
	return Decision{Allowed: false, RetryAfter: delay}, nil
}

// sweep drops idle entries at most once per idleTTL; callers hold mu.
func (m *MemoryLimiter) sweep(now time.Time) {
	if now.Sub(m.lastSweep) < m.idleTTL {
		return
	}
	m.lastSweep = now
	for k, e := range m.entries {
		if now.Sub(e.lastSeen) > m.idleTTL && !now.Before(e.blockedUntil) {
			delete(m.entries, k)
		}
	}
}

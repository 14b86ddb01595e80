package handlers

import (
	"sync"
	"time"
)

// TurnLimiter caps how fast a single conversation may send turns. Buckets are
// keyed by session id, which is the unit the intake pipeline meters; a slow
// drip refill tolerates normal typing bursts while blocking scripted floods.
type TurnLimiter struct {
	mu      sync.Mutex
	buckets map[string]*turnBucket
	rate    float64
	burst   int

	sweepAt time.Time
}

type turnBucket struct {
	tokens float64
	seen   time.Time
}

const bucketIdleCutoff = 10 * time.Minute

// NewTurnLimiter allows rate turns/sec per session with the given burst.
func NewTurnLimiter(rate float64, burst int) *TurnLimiter {
	return &TurnLimiter{
		buckets: make(map[string]*turnBucket),
		rate:    rate,
		burst:   burst,
		sweepAt: time.Now().Add(bucketIdleCutoff),
	}
}

// Allow reports whether the session may process another turn now.
func (l *TurnLimiter) Allow(sessionID string) bool {
	if l == nil {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if now.After(l.sweepAt) {
		l.sweep(now)
	}

	b, ok := l.buckets[sessionID]
	if !ok {
		b = &turnBucket{tokens: float64(l.burst), seen: now}
		l.buckets[sessionID] = b
	}

	b.tokens += now.Sub(b.seen).Seconds() * l.rate
	if b.tokens > float64(l.burst) {
		b.tokens = float64(l.burst)
	}
	b.seen = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// sweep drops buckets for sessions idle long enough that their bucket is full
// again anyway. Caller holds the lock.
func (l *TurnLimiter) sweep(now time.Time) {
	cutoff := now.Add(-bucketIdleCutoff)
	for id, b := range l.buckets {
		if b.seen.Before(cutoff) {
			delete(l.buckets, id)
		}
	}
	l.sweepAt = now.Add(bucketIdleCutoff)
}

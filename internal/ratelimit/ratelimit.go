// Package ratelimit provides the counting rate limiter backing the
// cooldown middleware. Keys are caller-defined composites such as
// "{tenant}:{user}" or "{tenant}:{user}:{command}".
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// maxTrackedKeys caps tracked keys to prevent memory exhaustion from
// attackers rotating sender identifiers.
const maxTrackedKeys = 16384

// Budget is a point allowance over a sliding window.
type Budget struct {
	Points   int
	Duration time.Duration
}

// Limiter answers allow/deny per key against a point budget. Safe for
// concurrent use across event goroutines.
type Limiter interface {
	Check(key string, b Budget) bool
}

type entry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// KeyedLimiter implements Limiter with one token bucket per key.
type KeyedLimiter struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// NewKeyedLimiter creates an empty keyed limiter.
func NewKeyedLimiter() *KeyedLimiter {
	return &KeyedLimiter{entries: make(map[string]*entry)}
}

// Check consumes one point from the key's budget and reports whether the
// call is allowed. The first call for a key creates its bucket; buckets
// refill at Points per Duration with a burst of Points.
func (k *KeyedLimiter) Check(key string, b Budget) bool {
	if b.Points <= 0 || b.Duration <= 0 {
		return true
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	now := time.Now()
	e, ok := k.entries[key]
	if !ok {
		if len(k.entries) >= maxTrackedKeys {
			k.evictStale(now)
		}
		e = &entry{lim: rate.NewLimiter(rate.Every(b.Duration/time.Duration(b.Points)), b.Points)}
		k.entries[key] = e
	}
	e.lastSeen = now
	return e.lim.Allow()
}

// evictStale drops entries idle for over an hour, then hard-evicts
// arbitrary entries if the cap is still exceeded. Called under mu.
func (k *KeyedLimiter) evictStale(now time.Time) {
	for key, e := range k.entries {
		if now.Sub(e.lastSeen) > time.Hour {
			delete(k.entries, key)
		}
	}
	for len(k.entries) >= maxTrackedKeys {
		for key := range k.entries {
			delete(k.entries, key)
			break
		}
	}
}

package gateway

import (
	"sync"
	"time"
)

const (
	// maxTrackedTokens caps the number of tracked routing tokens to
	// prevent memory exhaustion from attackers rotating tokens.
	maxTrackedTokens = 4096

	// rateWindow is the sliding window duration for hit counting.
	rateWindow = 60 * time.Second

	// rateMaxHits is the max webhook deliveries per token within a window.
	rateMaxHits = 300
)

type rateEntry struct {
	windowStart time.Time
	count       int
}

// tokenRateLimiter bounds inbound webhook deliveries per routing token.
// Safe for concurrent use.
type tokenRateLimiter struct {
	mu      sync.Mutex
	entries map[string]*rateEntry
}

func newTokenRateLimiter() *tokenRateLimiter {
	return &tokenRateLimiter{entries: make(map[string]*rateEntry)}
}

// Allow reports whether the token is within its delivery budget.
// Stale entries are pruned lazily; the tracked set is hard-capped.
func (r *tokenRateLimiter) Allow(token string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()

	if len(r.entries) >= maxTrackedTokens {
		for k, e := range r.entries {
			if now.Sub(e.windowStart) >= rateWindow {
				delete(r.entries, k)
			}
		}
		for len(r.entries) >= maxTrackedTokens {
			for k := range r.entries {
				delete(r.entries, k)
				break
			}
		}
	}

	e, ok := r.entries[token]
	if !ok || now.Sub(e.windowStart) >= rateWindow {
		r.entries[token] = &rateEntry{windowStart: now, count: 1}
		return true
	}

	if e.count >= rateMaxHits {
		return false
	}
	e.count++
	return true
}

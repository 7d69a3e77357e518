// Package limiter provides client-side admission control: a per-identity
// sliding-window request counter and a fixed cooldown timer for throttled
// capabilities. State is in-memory only and void on restart.
package limiter

import (
	"sync"
	"time"
)

// Limiter tracks request timestamps and cooldowns per identity
// (session or user id). Safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	windows map[string][]time.Time
	lastAt  map[string]time.Time
	now     func() time.Time
}

// New creates a new limiter.
func New() *Limiter {
	return &Limiter{
		windows: make(map[string][]time.Time),
		lastAt:  make(map[string]time.Time),
		now:     time.Now,
	}
}

// Allow prunes timestamps older than window for identity, then admits and
// records the request iff the current count is below max. Refused requests
// are not recorded.
func (l *Limiter) Allow(identity string, window time.Duration, max int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-window)

	kept := l.windows[identity][:0]
	for _, ts := range l.windows[identity] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= max {
		l.windows[identity] = kept
		return false
	}

	l.windows[identity] = append(kept, now)
	return true
}

// CooldownRemaining returns 0 if cooldown has elapsed since identity's last
// recorded action, else the remaining wait.
func (l *Limiter) CooldownRemaining(identity string, cooldown time.Duration) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	last, ok := l.lastAt[identity]
	if !ok {
		return 0
	}

	elapsed := l.now().Sub(last)
	if elapsed >= cooldown {
		return 0
	}
	return cooldown - elapsed
}

// Touch records an action for identity, resetting its cooldown timer.
func (l *Limiter) Touch(identity string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.lastAt[identity] = l.now()
}

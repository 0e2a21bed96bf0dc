package worker

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Limiter implements per-miner rate limiting of validator calls
type Limiter struct {
	limiters     map[string]*rate.Limiter
	mu           sync.RWMutex
	defaultRate  rate.Limit
	defaultBurst int
}

// NewLimiter creates a new rate limiter
func NewLimiter(requestsPerSecond float64, burst int) *Limiter {
	if burst <= 0 {
		burst = 5
	}

	return &Limiter{
		limiters:     make(map[string]*rate.Limiter),
		defaultRate:  rate.Limit(requestsPerSecond),
		defaultBurst: burst,
	}
}

// Wait waits for rate limit clearance for the given miner
func (l *Limiter) Wait(ctx context.Context, minerID string) error {
	return l.getLimiter(minerID).Wait(ctx)
}

// Allow checks if a call is allowed without waiting
func (l *Limiter) Allow(minerID string) bool {
	return l.getLimiter(minerID).Allow()
}

// getLimiter returns the rate limiter for a miner
func (l *Limiter) getLimiter(minerID string) *rate.Limiter {
	l.mu.RLock()
	limiter, exists := l.limiters[minerID]
	l.mu.RUnlock()

	if exists {
		return limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Double-check after acquiring write lock
	if limiter, exists := l.limiters[minerID]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(l.defaultRate, l.defaultBurst)
	l.limiters[minerID] = limiter

	return limiter
}

// SetMinerRate sets a custom rate limit for a specific miner
func (l *Limiter) SetMinerRate(minerID string, requestsPerSecond float64, burst int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if burst <= 0 {
		burst = l.defaultBurst
	}

	l.limiters[minerID] = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
}

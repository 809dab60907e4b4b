// Package ratelimit implements keyed token-bucket limiters, one bucket per
// platform.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Rule sets the rate for one key. A non-positive RPS means unlimited.
type Rule struct {
	RPS   float64
	Burst int
}

// Config holds rate limiter configuration.
type Config struct {
	Default Rule
	PerKey  map[string]Rule
	// OnDelay is called when Wait blocked for a measurable time.
	OnDelay func(key string, d time.Duration)
}

// Limiter manages keyed rate limits. It is safe for concurrent use.
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	cfg      Config
}

// New creates a new Limiter.
func New(cfg Config) *Limiter {
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		cfg:      cfg,
	}
}

// Wait blocks until a token is available for key, respecting the context.
func (l *Limiter) Wait(ctx context.Context, key string) error {
	if l == nil {
		return nil
	}
	limiter := l.limiterFor(key)

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	if d := time.Since(start); d > time.Millisecond && l.cfg.OnDelay != nil {
		l.cfg.OnDelay(key, d)
	}
	return nil
}

func (l *Limiter) limiterFor(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	limiter, ok := l.limiters[key]
	if ok {
		return limiter
	}
	rule, ok := l.cfg.PerKey[key]
	if !ok {
		rule = l.cfg.Default
	}
	limiter = newLimiter(rule)
	l.limiters[key] = limiter
	return limiter
}

func newLimiter(rule Rule) *rate.Limiter {
	r := rate.Limit(rule.RPS)
	if rule.RPS <= 0 {
		r = rate.Inf
	}
	burst := rule.Burst
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(r, burst)
}

// Package ratelimit implements the in-memory, process-local rate limiter
// keyed by (user, model), per SPEC_FULL.md §4.3. It is advisory and
// restart-resets; see the design note on rate limiter volatility.
package ratelimit

import (
	"sync"
	"time"

	gateway "github.com/burgonet-eu/gateway/internal"
)

// Result is the outcome of a rate limit check.
type Result struct {
	Allowed           bool
	Limit             int64
	Remaining         int64
	RetryAfterSeconds float64
}

// bucket is a lazy-refill token bucket: no background goroutine, tokens are
// topped up on demand based on elapsed wall-clock time.
type bucket struct {
	tokens   float64
	max      float64
	rate     float64 // tokens per second
	lastFill time.Time
}

func newBucket(requests int64, window time.Duration) *bucket {
	if window <= 0 {
		window = time.Minute
	}
	return &bucket{
		tokens:   float64(requests),
		max:      float64(requests),
		rate:     float64(requests) / window.Seconds(),
		lastFill: time.Now(),
	}
}

func (b *bucket) refill(now time.Time) {
	elapsed := now.Sub(b.lastFill).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens = min(b.max, b.tokens+elapsed*b.rate)
	b.lastFill = now
}

func (b *bucket) tryConsume(now time.Time) (remaining int64, allowed bool) {
	b.refill(now)
	if b.tokens >= 1 {
		b.tokens--
		return int64(b.tokens), true
	}
	return 0, false
}

func (b *bucket) retryAfter() float64 {
	if b.tokens >= 1 {
		return 0
	}
	return (1 - b.tokens) / b.rate
}

// Limiter holds the bucket for a single (user, model) pair.
type Limiter struct {
	mu       sync.Mutex
	bucket   *bucket // nil if the model has no configured rate budget
	limit    int64
	lastUsed time.Time
}

func newLimiter(budget gateway.RateBudget) *Limiter {
	l := &Limiter{limit: budget.Requests, lastUsed: time.Now()}
	if budget.Requests > 0 {
		l.bucket = newBucket(budget.Requests, budget.Window)
	}
	return l
}

// Allow consumes one request token. check(user, model, now) of §4.3.
func (l *Limiter) Allow() Result {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	l.lastUsed = now

	if l.bucket == nil {
		return Result{Allowed: true}
	}

	remaining, ok := l.bucket.tryConsume(now)
	if ok {
		return Result{Allowed: true, Limit: l.limit, Remaining: remaining}
	}
	return Result{Allowed: false, Limit: l.limit, RetryAfterSeconds: l.bucket.retryAfter()}
}

// Registry manages per-(user, model) Limiters, the rate-limiter counters
// table of §5 ("shared mutable and protected by ... lock-guarded counters
// keyed by (user, model)").
type Registry struct {
	mu       sync.RWMutex
	limiters map[string]*Limiter
}

// NewRegistry creates a new rate limiter registry.
func NewRegistry() *Registry {
	return &Registry{limiters: make(map[string]*Limiter)}
}

func key(user, model string) string { return user + "\x00" + model }

// Check evaluates the rate limiter for (user, model) against the model's
// configured RateBudget, creating the limiter on first use.
func (r *Registry) Check(user, model string, budget gateway.RateBudget) Result {
	k := key(user, model)

	r.mu.RLock()
	l, ok := r.limiters[k]
	r.mu.RUnlock()
	if !ok {
		r.mu.Lock()
		if l, ok = r.limiters[k]; !ok {
			l = newLimiter(budget)
			r.limiters[k] = l
		}
		r.mu.Unlock()
	}
	return l.Allow()
}

// EvictStale removes limiters not used since cutoff, bounding memory growth
// for a long-running process with a large, slowly-rotating user/model set.
func (r *Registry) EvictStale(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	evicted := 0
	for k, l := range r.limiters {
		l.mu.Lock()
		stale := l.lastUsed.Before(cutoff)
		l.mu.Unlock()
		if stale {
			delete(r.limiters, k)
			evicted++
		}
	}
	return evicted
}

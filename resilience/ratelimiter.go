package resilience

import (
	"context"
	"math"
	"sync"
	"time"
)

// RateLimiter is a token-bucket limiter. Rate is tokens/sec; Capacity caps
// the burst (default ceil(Rate)). Refill is computed lazily from elapsed
// wall-clock time rather than a background goroutine, guarded by a mutex
// (spec.md: "compare-and-set on a scalar" — a mutex-protected float gives
// the same single-writer guarantee without a lock-free CAS loop, which
// would need to deal with partial-token fractions atomically).
type RateLimiter struct {
	rate     float64
	capacity float64

	mu     sync.Mutex
	tokens float64
	last   time.Time
}

// NewRateLimiter constructs a limiter. capacity <= 0 defaults to ceil(rate).
func NewRateLimiter(rate, capacity float64) *RateLimiter {
	if capacity <= 0 {
		capacity = math.Ceil(rate)
	}
	return &RateLimiter{
		rate:     rate,
		capacity: capacity,
		tokens:   capacity,
		last:     time.Now(),
	}
}

func (r *RateLimiter) refill() {
	now := time.Now()
	elapsed := now.Sub(r.last).Seconds()
	if elapsed <= 0 {
		return
	}
	r.tokens = math.Min(r.capacity, r.tokens+elapsed*r.rate)
	r.last = now
}

// Acquire blocks until a token is available, or ctx is done. A zero/nil
// context deadline blocks indefinitely, matching spec.md 5: "without [a
// timeout], blocks indefinitely".
func (r *RateLimiter) Acquire(ctx context.Context) error {
	for {
		r.mu.Lock()
		r.refill()
		if r.tokens >= 1 {
			r.tokens--
			r.mu.Unlock()
			return nil
		}
		wait := time.Duration((1 - r.tokens) / r.rate * float64(time.Second))
		r.mu.Unlock()

		if wait <= 0 {
			wait = time.Millisecond
		}
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// TryAcquire attempts a non-blocking acquisition, reporting whether a
// token was available. The HTTP extractors (sequential and windowed
// paths alike) acquire through Envelope.Execute, which uses the blocking
// Acquire.
func (r *RateLimiter) TryAcquire() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refill()
	if r.tokens >= 1 {
		r.tokens--
		return true
	}
	return false
}

// RateLimitConfig resolves source-level, run-level, and environment
// fallback rate limit configuration, per spec.md 4.1's precedence:
// per-source rate_limit.{rps,burst} -> run-level rate_limit_rps ->
// environment variable.
type RateLimitConfig struct {
	RPS   float64
	Burst float64
}

// Resolve applies the precedence chain, returning nil if none of the three
// sources configure a limit (i.e. unlimited).
func Resolve(sourceRPS, sourceBurst *float64, runLevelRPS *float64, envRPS float64) *RateLimitConfig {
	if sourceRPS != nil && *sourceRPS > 0 {
		burst := *sourceRPS
		if sourceBurst != nil && *sourceBurst > 0 {
			burst = *sourceBurst
		}
		return &RateLimitConfig{RPS: *sourceRPS, Burst: burst}
	}
	if runLevelRPS != nil && *runLevelRPS > 0 {
		return &RateLimitConfig{RPS: *runLevelRPS, Burst: *runLevelRPS}
	}
	if envRPS > 0 {
		return &RateLimitConfig{RPS: envRPS, Burst: envRPS}
	}
	return nil
}

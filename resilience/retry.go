// Package resilience provides the retry policy, circuit breaker, and token
// bucket rate limiter that every extractor runs its I/O through, plus the
// Execute wrapper that composes all three. Generalized from the
// single-purpose RetryManager/CircuitBreaker pair in the teacher family's
// stellar-arrow-source/go/resilience package into reusable, independently
// testable policy objects (spec design note: "decorator-based retries ->
// explicit policy objects").
package resilience

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/withobsrvr/medallion-foundry/logging"
	"github.com/withobsrvr/medallion-foundry/pipelineerr"
)

// RetryPolicy configures exponential backoff with jitter and a pair of
// pluggable hooks so domain-specific retryable-error tests (HTTP 429/5xx,
// DB connection errors) can extend a default predicate.
type RetryPolicy struct {
	MaxAttempts       int
	BaseDelay         time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
	Jitter            float64

	// RetryIf decides whether a given error should trigger another
	// attempt. Defaults to "always retry" if nil.
	RetryIf func(err error) bool

	// DelayFromException lets a caller preempt the computed backoff with
	// a server-advertised delay (e.g. HTTP Retry-After). Returning
	// (0, false) falls back to the computed delay.
	DelayFromException func(err error, attempt int, computed time.Duration) (time.Duration, bool)
}

// DefaultRetryPolicy mirrors the teacher family's DefaultRetryPolicy
// defaults (5 attempts, 100ms base, 30s cap, x2 backoff, 10% jitter).
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:       5,
		BaseDelay:         100 * time.Millisecond,
		MaxDelay:          30 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            0.1,
	}
}

func (p RetryPolicy) retryIf(err error) bool {
	if p.RetryIf == nil {
		return true
	}
	return p.RetryIf(err)
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	raw := float64(p.BaseDelay) * math.Pow(p.BackoffMultiplier, float64(attempt-1))
	if p.MaxDelay > 0 && raw > float64(p.MaxDelay) {
		raw = float64(p.MaxDelay)
	}
	if p.Jitter > 0 {
		raw *= 1 + rand.Float64()*p.Jitter
	}
	return time.Duration(raw)
}

// Run executes fn under the retry policy: on failure, if RetryIf is false
// or attempts are exhausted, the error propagates (wrapped as
// RetryExhaustedError only once attempts are exhausted). Otherwise it
// sleeps for the computed (or exception-preempted) delay and tries again.
func (p RetryPolicy) Run(ctx context.Context, operation string, fn func() error) error {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if !p.retryIf(lastErr) {
			return lastErr
		}
		if attempt == maxAttempts {
			return pipelineerr.RetryExhaustedError(operation, attempt, lastErr)
		}

		d := p.delay(attempt)
		if p.DelayFromException != nil {
			if override, ok := p.DelayFromException(lastErr, attempt, d); ok {
				d = override
			}
		}

		select {
		case <-time.After(d):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return pipelineerr.RetryExhaustedError(operation, maxAttempts, lastErr)
}

var logger = logging.New("resilience")

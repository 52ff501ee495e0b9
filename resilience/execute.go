package resilience

import "context"

// Envelope bundles the three primitives a single resilient call needs:
// an optional circuit breaker, an optional rate limiter, and a retry
// policy. Any of Breaker/Limiter may be nil to opt out.
type Envelope struct {
	Breaker *CircuitBreaker
	Limiter *RateLimiter
	Policy  RetryPolicy
}

// Execute runs op under the full resilience stack: consult the breaker,
// then retry op (acquiring a rate-limit token before each attempt),
// recording success/failure on the breaker around the whole retry run.
// This mirrors spec.md 4.1's execute_with_resilience.
func (e Envelope) Execute(ctx context.Context, operation string, op func(ctx context.Context) error) error {
	if e.Breaker != nil {
		if err := e.Breaker.Allow(); err != nil {
			return err
		}
	}

	err := e.Policy.Run(ctx, operation, func() error {
		if e.Limiter != nil {
			if lerr := e.Limiter.Acquire(ctx); lerr != nil {
				return lerr
			}
		}
		return op(ctx)
	})

	if e.Breaker != nil {
		if err != nil {
			e.Breaker.RecordFailure()
		} else {
			e.Breaker.RecordSuccess()
		}
	}

	return err
}

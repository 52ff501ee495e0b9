package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

// Invariant (spec.md 8.9): a closed breaker transitions to open after
// exactly failure_threshold consecutive failures.
func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	b := NewCircuitBreaker("test", "k", 3, 50*time.Millisecond, 1)

	for i := 0; i < 2; i++ {
		if err := b.Allow(); err != nil {
			t.Fatalf("attempt %d: expected allow, got %v", i, err)
		}
		b.RecordFailure()
	}
	if b.State() != Closed {
		t.Fatalf("expected still closed after 2 failures, got %v", b.State())
	}

	if err := b.Allow(); err != nil {
		t.Fatalf("3rd attempt: expected allow, got %v", err)
	}
	b.RecordFailure()
	if b.State() != Open {
		t.Fatalf("expected open after 3 failures, got %v", b.State())
	}

	if err := b.Allow(); err == nil {
		t.Fatal("expected circuit-open error while open")
	}
}

// half_open with one probe succeeding closes; one probe failing re-opens.
func TestCircuitBreakerHalfOpenTransitions(t *testing.T) {
	b := NewCircuitBreaker("test", "k", 1, 10*time.Millisecond, 1)

	_ = b.Allow()
	b.RecordFailure()
	if b.State() != Open {
		t.Fatalf("expected open, got %v", b.State())
	}

	time.Sleep(15 * time.Millisecond)

	if err := b.Allow(); err != nil {
		t.Fatalf("expected half-open probe allowed, got %v", err)
	}
	if b.State() != HalfOpen {
		t.Fatalf("expected half_open, got %v", b.State())
	}
	b.RecordSuccess()
	if b.State() != Closed {
		t.Fatalf("expected closed after successful probe, got %v", b.State())
	}

	// Re-open, then fail the probe this time.
	_ = b.Allow()
	b.RecordFailure()
	time.Sleep(15 * time.Millisecond)
	_ = b.Allow()
	b.RecordFailure()
	if b.State() != Open {
		t.Fatalf("expected re-opened after failed probe, got %v", b.State())
	}
}

func TestCircuitBreakerStateChangeHook(t *testing.T) {
	var seen []State
	b := NewCircuitBreaker("comp", "key", 1, time.Millisecond, 1)
	b.OnStateChange = func(component, key string, s State) {
		if component != "comp" || key != "key" {
			t.Errorf("unexpected hook args: %s %s", component, key)
		}
		seen = append(seen, s)
	}

	_ = b.Allow()
	b.RecordFailure()
	if len(seen) != 1 || seen[0] != Open {
		t.Fatalf("expected one Open transition, got %v", seen)
	}
}

func TestGetOrCreateBreakerReusesStateForSameKey(t *testing.T) {
	component := "test_breaker_registry"
	b1 := GetOrCreateBreaker(component, "k", 1, 10*time.Millisecond, 1)
	_ = b1.Allow()
	b1.RecordFailure()
	if b1.State() != Open {
		t.Fatalf("expected first handle to open, got %v", b1.State())
	}

	b2 := GetOrCreateBreaker(component, "k", 1, 10*time.Millisecond, 1)
	if b2.State() != Open {
		t.Fatal("expected second handle for the same key to observe the already-open state")
	}
}

func TestGetOrCreateBreakerIsolatesDistinctKeys(t *testing.T) {
	component := "test_breaker_registry_isolation"
	b1 := GetOrCreateBreaker(component, "a", 1, 10*time.Millisecond, 1)
	_ = b1.Allow()
	b1.RecordFailure()

	b2 := GetOrCreateBreaker(component, "b", 1, 10*time.Millisecond, 1)
	if b2.State() != Closed {
		t.Fatal("expected an unrelated key to start closed regardless of another key's state")
	}
}

func TestRetryPolicyExhaustion(t *testing.T) {
	p := DefaultRetryPolicy()
	p.MaxAttempts = 3
	p.BaseDelay = time.Millisecond
	p.MaxDelay = 2 * time.Millisecond

	attempts := 0
	err := p.Run(context.Background(), "op", func() error {
		attempts++
		return errors.New("boom")
	})
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
	if err == nil {
		t.Fatal("expected error after exhaustion")
	}
}

func TestRetryPolicyRespectsRetryIf(t *testing.T) {
	p := DefaultRetryPolicy()
	p.MaxAttempts = 5
	p.RetryIf = func(err error) bool { return false }

	attempts := 0
	err := p.Run(context.Background(), "op", func() error {
		attempts++
		return errors.New("non-retryable")
	})
	if attempts != 1 {
		t.Fatalf("expected exactly 1 attempt, got %d", attempts)
	}
	if err == nil {
		t.Fatal("expected error")
	}
}

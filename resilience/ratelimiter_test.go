package resilience

import (
	"context"
	"testing"
	"time"
)

func TestRateLimiterAcquireBlocksThenRefills(t *testing.T) {
	rl := NewRateLimiter(10, 1) // 10 tokens/sec, burst of 1

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := rl.Acquire(ctx); err != nil {
		t.Fatalf("first acquire should succeed immediately: %v", err)
	}

	start := time.Now()
	if err := rl.Acquire(ctx); err != nil {
		t.Fatalf("second acquire should eventually succeed: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Fatalf("expected second acquire to wait for refill, took %v", elapsed)
	}
}

func TestRateLimiterTryAcquireNonBlocking(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	if !rl.TryAcquire() {
		t.Fatal("expected first TryAcquire to succeed")
	}
	if rl.TryAcquire() {
		t.Fatal("expected immediate second TryAcquire to fail (bucket empty)")
	}
}

func TestResolveRateLimitPrecedence(t *testing.T) {
	sourceRPS := 5.0
	runRPS := 10.0

	cfg := Resolve(&sourceRPS, nil, &runRPS, 20)
	if cfg == nil || cfg.RPS != 5 {
		t.Fatalf("expected source-level RPS to win, got %+v", cfg)
	}

	cfg = Resolve(nil, nil, &runRPS, 20)
	if cfg == nil || cfg.RPS != 10 {
		t.Fatalf("expected run-level RPS to win, got %+v", cfg)
	}

	cfg = Resolve(nil, nil, nil, 20)
	if cfg == nil || cfg.RPS != 20 {
		t.Fatalf("expected env RPS to win, got %+v", cfg)
	}

	cfg = Resolve(nil, nil, nil, 0)
	if cfg != nil {
		t.Fatalf("expected nil (unlimited) when nothing configures a limit, got %+v", cfg)
	}
}

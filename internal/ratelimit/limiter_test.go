package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// TestNewRateLimiterStartsFull verifies the bucket starts at full capacity.
func TestNewRateLimiterStartsFull(t *testing.T) {
	rl := NewRateLimiter(1.0, 10.0)
	if tokens := rl.Tokens(); tokens < 9.9 {
		t.Errorf("expected ~10 tokens, got %.2f", tokens)
	}
}

// TestAllowConsumesToken verifies token consumption.
func TestAllowConsumesToken(t *testing.T) {
	rl := NewRateLimiter(1.0, 5.0)

	for i := 0; i < 5; i++ {
		if !rl.Allow() {
			t.Fatalf("Allow() failed on attempt %d", i+1)
		}
	}

	if rl.Allow() {
		t.Error("Allow() should fail when bucket is empty")
	}
	if d := rl.Delay(); d <= 0 || d > time.Second {
		t.Errorf("Delay() = %v, want (0, 1s]", d)
	}
}

// TestTokenRefill verifies tokens refill over time.
func TestTokenRefill(t *testing.T) {
	rl := NewRateLimiter(10.0, 10.0)

	for i := 0; i < 10; i++ {
		rl.Allow()
	}

	time.Sleep(200 * time.Millisecond)

	if tokens := rl.Tokens(); tokens < 1.5 || tokens > 3.0 {
		t.Errorf("expected ~2 tokens after 200ms at 10/sec, got %.2f", tokens)
	}
}

// TestTokenRefillCapsAtMax verifies tokens don't exceed max capacity.
func TestTokenRefillCapsAtMax(t *testing.T) {
	rl := NewRateLimiter(100.0, 5.0)
	time.Sleep(100 * time.Millisecond)

	if tokens := rl.Tokens(); tokens > 5.0 {
		t.Errorf("tokens should be capped at 5, got %.2f", tokens)
	}
}

// TestWaitBlocksUntilTokenAvailable verifies Wait blocks on an empty bucket.
func TestWaitBlocksUntilTokenAvailable(t *testing.T) {
	rl := NewRateLimiter(10.0, 1.0)
	rl.Allow()

	start := time.Now()
	if err := rl.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("Wait() returned after %v, expected ~100ms", elapsed)
	}
}

// TestWaitRespectsContextCancellation verifies Wait returns on cancel.
func TestWaitRespectsContextCancellation(t *testing.T) {
	rl := NewRateLimiter(0.01, 1.0)
	rl.Allow()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := rl.Wait(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() error = %v, want deadline exceeded", err)
	}
}

// TestConcurrentAllow verifies no more tokens are handed out than exist.
func TestConcurrentAllow(t *testing.T) {
	rl := NewRateLimiter(0.001, 50.0)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted int
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if rl.Allow() {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if granted != 50 {
		t.Errorf("granted %d tokens, want 50", granted)
	}
}

func TestRegistryPerKey(t *testing.T) {
	r := NewRegistry(0.01, 2)

	for i := 0; i < 2; i++ {
		if ok, _ := r.Allow("alice"); !ok {
			t.Fatalf("alice denied on attempt %d", i+1)
		}
	}
	ok, retry := r.Allow("alice")
	if ok {
		t.Fatal("alice should be limited after the burst")
	}
	if retry <= 0 {
		t.Errorf("retry = %v, want positive", retry)
	}

	if ok, _ := r.Allow("bob"); !ok {
		t.Error("bob should have his own bucket")
	}
	if r.Len() != 2 {
		t.Errorf("Len() = %d, want 2", r.Len())
	}
}

func TestRegistryPrune(t *testing.T) {
	r := NewRegistry(1, 1)
	r.Allow("alice")

	if n := r.Prune(time.Now()); n != 0 {
		t.Errorf("Prune() removed %d buckets still refilling", n)
	}
	if n := r.Prune(time.Now().Add(2 * time.Second)); n != 1 {
		t.Errorf("Prune() = %d, want 1", n)
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d after prune", r.Len())
	}
}

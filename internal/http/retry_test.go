package http

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

type statusErr int

func (e statusErr) Error() string   { return fmt.Sprintf("status %d", int(e)) }
func (e statusErr) HTTPStatus() int { return int(e) }

func fastConfig(retries int) Config {
	return Config{
		MaxRetries:   retries,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorType
	}{
		{"nil", nil, ErrorTypeSuccess},
		{"unauthorized", statusErr(401), ErrorTypeAuth},
		{"forbidden", statusErr(403), ErrorTypeAuth},
		{"not found", statusErr(404), ErrorTypeFatal},
		{"bad gateway", statusErr(502), ErrorTypeRetryable},
		{"throttled", statusErr(429), ErrorTypeRetryable},
		{"wrapped status", fmt.Errorf("enqueue: %w", statusErr(503)), ErrorTypeRetryable},
		{"refused", errors.New("dial tcp 127.0.0.1:5030: connect: connection refused"), ErrorTypeNetwork},
		{"deadline", context.DeadlineExceeded, ErrorTypeNetwork},
		{"cancelled", context.Canceled, ErrorTypeFatal},
		{"unknown", errors.New("something odd"), ErrorTypeFatal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyError(tt.err); got != tt.want {
				t.Errorf("ClassifyError() = %s, want %s", ErrorTypeName(got), ErrorTypeName(tt.want))
			}
		})
	}
}

func TestCalculateBackoffBounds(t *testing.T) {
	if d := CalculateBackoff(0, time.Second, time.Minute); d != 0 {
		t.Errorf("attempt 0 should not wait, got %v", d)
	}
	for i := 0; i < 50; i++ {
		d := CalculateBackoff(10, 100*time.Millisecond, time.Second)
		if d < 0 || d >= time.Second {
			t.Fatalf("backoff %v outside [0, 1s)", d)
		}
	}
}

func TestExecuteWithRetry_Success(t *testing.T) {
	calls := 0
	err := ExecuteWithRetry(context.Background(), fastConfig(3), func(context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("expected nil error, got: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestExecuteWithRetry_RetriesThenSucceeds(t *testing.T) {
	calls := 0
	var retried []int
	cfg := fastConfig(5)
	cfg.OnRetry = func(attempt int, err error, _ ErrorType) { retried = append(retried, attempt) }

	err := ExecuteWithRetry(context.Background(), cfg, func(context.Context) error {
		calls++
		if calls < 3 {
			return statusErr(503)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
	if len(retried) != 2 || retried[0] != 1 || retried[1] != 2 {
		t.Errorf("unexpected retry callbacks: %v", retried)
	}
}

func TestExecuteWithRetry_NoRetryOnAuth(t *testing.T) {
	calls := 0
	err := ExecuteWithRetry(context.Background(), fastConfig(5), func(context.Context) error {
		calls++
		return statusErr(401)
	})
	var sc StatusCoder
	if !errors.As(err, &sc) || sc.HTTPStatus() != 401 {
		t.Fatalf("expected the 401 error back, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestExecuteWithRetry_Exhausted(t *testing.T) {
	calls := 0
	err := ExecuteWithRetry(context.Background(), fastConfig(3), func(context.Context) error {
		calls++
		return errors.New("connection reset by peer")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestExecuteWithRetry_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := Config{MaxRetries: 5, InitialDelay: 5 * time.Second, MaxDelay: 30 * time.Second}

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	calls := 0
	err := ExecuteWithRetry(ctx, cfg, func(context.Context) error {
		calls++
		return errors.New("connection refused")
	})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("expected quick return after cancel, took %v", elapsed)
	}
	if calls < 1 {
		t.Errorf("expected at least 1 call, got %d", calls)
	}
}

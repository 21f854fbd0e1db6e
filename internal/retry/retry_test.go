package retry_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"newspulse/internal/retry"
)

type classifiedErr struct {
	retryable bool
}

func (e classifiedErr) Error() string {
	return fmt.Sprintf("classified (retryable = %t)", e.retryable)
}

func (e classifiedErr) Retryable() bool {
	return e.retryable
}

func fastPolicy(attempts int) retry.Policy {
	return retry.Policy{MaxAttempts: attempts, Delay: time.Millisecond, Multiplier: 2, MaxDelay: 4 * time.Millisecond}
}

func TestDoRetriesRetryableErrors(t *testing.T) {
	calls := 0
	err := retry.Do(context.Background(), fastPolicy(3), func(context.Context) error {
		calls++
		if calls < 3 {
			return fmt.Errorf("fetch: %w", classifiedErr{retryable: true})
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestDoStopsOnPermanentError(t *testing.T) {
	calls := 0
	err := retry.Do(context.Background(), fastPolicy(5), func(context.Context) error {
		calls++
		return classifiedErr{retryable: false}
	})

	var c classifiedErr
	if !errors.As(err, &c) {
		t.Fatalf("expected classified error, got %v", err)
	}

	if calls != 1 {
		t.Fatalf("expected a single call, got %d", calls)
	}
}

func TestDoGivesUpAfterMaxAttempts(t *testing.T) {
	calls := 0
	err := retry.Do(context.Background(), fastPolicy(2), func(context.Context) error {
		calls++
		return classifiedErr{retryable: true}
	})
	if err == nil {
		t.Fatalf("expected error after exhausting attempts")
	}

	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestDoZeroPolicyMakesOneAttempt(t *testing.T) {
	calls := 0
	_ = retry.Do(context.Background(), retry.Policy{}, func(context.Context) error {
		calls++
		return classifiedErr{retryable: true}
	})

	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestDoHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := retry.Do(ctx, retry.Policy{MaxAttempts: 3, Delay: time.Hour}, func(context.Context) error {
		calls++
		cancel()
		return classifiedErr{retryable: true}
	})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestBackoffGrowsAndCaps(t *testing.T) {
	p := retry.Policy{Delay: time.Second, Multiplier: 2, MaxDelay: 5 * time.Second}

	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second}
	for i, w := range want {
		if got := p.Backoff(i + 1); got != w {
			t.Fatalf("unexpected backoff after %d failures: got %s want %s", i+1, got, w)
		}
	}
}

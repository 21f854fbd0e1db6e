package ratelimiter

import (
	"context"
	"log/slog"
	"testing"
	"time"
)

func TestHostKey(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{"Plain URL", "https://Example.com/a?b=c", "article:example.com"},
		{"URL with port", "http://example.com:8080/x", "article:example.com"},
		{"Not a URL", "::nope::", "article"},
		{"Empty", "", "article"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := HostKey("article", test.url); got != test.want {
				t.Errorf("Expected %q, got %q", test.want, got)
			}
		})
	}
}

func TestIntervalLookup(t *testing.T) {
	rl := New(map[string]time.Duration{
		"article": 2 * time.Second,
		KeyOpenAI: time.Second,
	}, 3*time.Second, slog.Default())

	tests := []struct {
		key  string
		want time.Duration
	}{
		{KeyOpenAI, time.Second},
		{"article:example.com", 2 * time.Second},
		{KeyEmotion, 3 * time.Second},
	}

	for _, test := range tests {
		if got := rl.interval(test.key); got != test.want {
			t.Errorf("Key %q: expected %v, got %v", test.key, test.want, got)
		}
	}
}

func TestWaitSpacesCallsForSameKey(t *testing.T) {
	rl := New(nil, 50*time.Millisecond, slog.Default())
	ctx := context.Background()

	start := time.Now()
	for range 3 {
		if err := rl.Wait(ctx, KeyFeed); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
	}

	if elapsed := time.Since(start); elapsed < 90*time.Millisecond {
		t.Errorf("Expected at least two intervals between three calls, got %v", elapsed)
	}
}

func TestWaitKeysAreIndependent(t *testing.T) {
	rl := New(nil, time.Hour, slog.Default())
	ctx := context.Background()

	start := time.Now()
	for _, key := range []string{"a", "b", "c"} {
		if err := rl.Wait(ctx, key); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
	}

	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Expected first call per key to pass immediately, took %v", elapsed)
	}
}

func TestWaitCancelled(t *testing.T) {
	rl := New(nil, time.Hour, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	if err := rl.Wait(ctx, KeyFeed); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	cancel()
	if err := rl.Wait(ctx, KeyFeed); err == nil {
		t.Errorf("Expected cancellation error")
	}
}

func TestUnlimitedAndNil(t *testing.T) {
	ctx := context.Background()

	var nilLimiter *RateLimiter
	if err := nilLimiter.Wait(ctx, KeyFeed); err != nil {
		t.Errorf("Expected nil limiter to pass, got %v", err)
	}

	rl := Unlimited()
	for range 5 {
		if err := rl.Wait(ctx, KeyFeed); err != nil {
			t.Errorf("Expected unlimited limiter to pass, got %v", err)
		}
	}
}

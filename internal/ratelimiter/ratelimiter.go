package ratelimiter

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter spaces calls sharing a key by a fixed interval. It is a
// courtesy delay towards remote services, nothing queues behind it.
type RateLimiter struct {
	intervals       map[string]time.Duration
	defaultInterval time.Duration
	limiters        map[string]*rate.Limiter
	mu              sync.Mutex
	log             *slog.Logger
}

// New builds a limiter. Keys missing from intervals use fallback; a
// non-positive interval disables pacing for that key.
func New(intervals map[string]time.Duration, fallback time.Duration, log *slog.Logger) *RateLimiter {
	copied := make(map[string]time.Duration, len(intervals))
	for k, v := range intervals {
		copied[k] = v
	}

	return &RateLimiter{
		intervals:       copied,
		defaultInterval: fallback,
		limiters:        make(map[string]*rate.Limiter),
		log:             log,
	}
}

// Unlimited never waits.
func Unlimited() *RateLimiter {
	return New(nil, 0, slog.Default())
}

// Wait blocks until a call for key is allowed. The first call for a key
// passes immediately.
func (rl *RateLimiter) Wait(ctx context.Context, key string) error {
	if rl == nil {
		return nil
	}

	limiter := rl.limiter(key)
	if limiter == nil {
		return nil
	}

	reservation := limiter.Reserve()
	if delay := reservation.Delay(); delay > 0 {
		rl.log.DebugContext(ctx, "Pacing request",
			"key", key,
			"delay", delay)

		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-ctx.Done():
			reservation.Cancel()

			return ctx.Err()
		}
	}

	return nil
}

func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if l, ok := rl.limiters[key]; ok {
		return l
	}

	interval := rl.interval(key)
	if interval <= 0 {
		rl.limiters[key] = nil
		return nil
	}

	l := rate.NewLimiter(rate.Every(interval), 1)
	rl.limiters[key] = l

	return l
}

func (rl *RateLimiter) interval(key string) time.Duration {
	if interval, ok := rl.intervals[key]; ok {
		return interval
	}

	if i := strings.IndexByte(key, ':'); i > 0 {
		if interval, ok := rl.intervals[key[:i]]; ok {
			return interval
		}
	}

	return rl.defaultInterval
}

// HostKey scopes a prefix to the host of rawURL, e.g. "article:example.com".
func HostKey(prefix string, rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return prefix
	}

	return prefix + ":" + strings.ToLower(u.Hostname())
}

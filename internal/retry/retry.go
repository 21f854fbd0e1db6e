package retry

import (
	"context"
	"errors"
	"time"
)

const (
	DefaultMaxAttempts = 3
	DefaultDelay       = 2 * time.Second
	DefaultMultiplier  = 2
	DefaultMaxDelay    = 30 * time.Second
)

// Policy describes how many times a call is attempted and how long to wait
// between attempts. The zero value makes a single attempt.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
	Multiplier  float64
	MaxDelay    time.Duration
}

// Classifier is implemented by errors that know whether a new attempt can
// succeed.
type Classifier interface {
	Retryable() bool
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		Delay:       DefaultDelay,
		Multiplier:  DefaultMultiplier,
		MaxDelay:    DefaultMaxDelay,
	}
}

func NoRetry() Policy {
	return Policy{MaxAttempts: 1}
}

// Backoff returns the wait before the attempt that follows the given number
// of failed attempts.
func (p Policy) Backoff(failedAttempts int) time.Duration {
	delay := p.Delay
	if delay <= 0 {
		return 0
	}

	multiplier := p.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}

	for i := 1; i < failedAttempts; i++ {
		delay = time.Duration(float64(delay) * multiplier)
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			return p.MaxDelay
		}
	}

	if p.MaxDelay > 0 && delay > p.MaxDelay {
		return p.MaxDelay
	}

	return delay
}

// IsRetryable reports whether err, or an error it wraps, asks for another
// attempt.
func IsRetryable(err error) bool {
	var c Classifier
	if errors.As(err, &c) {
		return c.Retryable()
	}

	return false
}

// Do calls fn until it succeeds, returns a non-retryable error, the policy
// runs out of attempts or ctx is done. The last error of fn is returned.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	attempts := max(p.MaxAttempts, 1)

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}

		if attempt == attempts || !IsRetryable(err) {
			return err
		}

		timer := time.NewTimer(p.Backoff(attempt))
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()

			return errors.Join(err, ctx.Err())
		}
	}

	return err
}

package errs

import (
	"context"
	"time"
)

// BackoffPolicy configures the exponential-backoff retry loop implemented
// by Retry. The zero value is not usable; use DefaultBackoff or
// DistributedBackoff.
type BackoffPolicy struct {
	Base        time.Duration
	Factor      float64
	MaxDelay    time.Duration
	MaxAttempts int
}

// DefaultBackoff holds the in-process retry defaults: 100ms base,
// factor 2, capped at 5s, at most 3 attempts.
func DefaultBackoff() BackoffPolicy {
	return BackoffPolicy{Base: 100 * time.Millisecond, Factor: 2, MaxDelay: 5 * time.Second, MaxAttempts: 3}
}

// DistributedBackoff holds the distributed-operation retry defaults:
// 200ms base, capped at 10s, at most 5 attempts.
func DistributedBackoff() BackoffPolicy {
	return BackoffPolicy{Base: 200 * time.Millisecond, Factor: 2, MaxDelay: 10 * time.Second, MaxAttempts: 5}
}

// RetryCallback is invoked with the attempt number (1-based) and the error
// that triggered the retry, before each delay.
type RetryCallback func(attempt int, err error)

// Retry runs fn under the given backoff policy. Non-retryable errors (per
// Retryable) propagate immediately without consuming an attempt. The loop
// stops as soon as fn returns nil, a non-retryable error, MaxAttempts is
// exhausted, or ctx is done.
func Retry(ctx context.Context, policy BackoffPolicy, cb RetryCallback, fn func() error) error {
	delay := policy.Base
	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !Retryable(lastErr) {
			return lastErr
		}
		if attempt == policy.MaxAttempts {
			break
		}
		if cb != nil {
			cb(attempt, lastErr)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay = time.Duration(float64(delay) * policy.Factor)
		if delay > policy.MaxDelay {
			delay = policy.MaxDelay
		}
	}
	return lastErr
}

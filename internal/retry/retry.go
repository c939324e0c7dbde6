package retry

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

type Policy struct {
	MaxRetries     int
	AttemptTimeout time.Duration
	InitialBackoff time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:     3,
		AttemptTimeout: 15 * time.Second,
		InitialBackoff: 500 * time.Millisecond,
	}
}

// Do runs fn until it succeeds, returns an error that retryable rejects, or
// MaxRetries retries have been spent. Each attempt gets its own timeout when
// AttemptTimeout is set. A nil retryable treats every error as retryable.
func Do(ctx context.Context, p Policy, retryable func(error) bool, fn func(context.Context) error) error {
	backoff := p.InitialBackoff
	if backoff <= 0 {
		backoff = 50 * time.Millisecond
	}

	var lastErr error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			if lastErr != nil {
				return fmt.Errorf("%w (last error: %v)", ctx.Err(), lastErr)
			}
			return ctx.Err()
		default:
		}

		err := runAttempt(ctx, p.AttemptTimeout, fn)
		if err == nil {
			return nil
		}

		if retryable != nil && !retryable(err) {
			return err
		}

		if attempt == p.MaxRetries {
			return fmt.Errorf("max retries (%d) exceeded: %w", p.MaxRetries, err)
		}

		lastErr = err

		jitter := time.Duration(rand.Int63n(int64(backoff/4) + 1))
		select {
		case <-time.After(backoff + jitter):
		case <-ctx.Done():
			return fmt.Errorf("%w (last error: %v)", ctx.Err(), lastErr)
		}

		backoff *= 2
	}

	return lastErr
}

func runAttempt(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(attemptCtx)
}

package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errFlaky = errors.New("flaky")

func fastPolicy(retries int) Policy {
	return Policy{MaxRetries: retries, InitialBackoff: time.Millisecond}
}

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(3), nil, func(context.Context) error {
		calls++
		if calls < 3 {
			return errFlaky
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoGivesUpAfterMaxRetries(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(2), nil, func(context.Context) error {
		calls++
		return errFlaky
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, errFlaky)
	assert.Equal(t, 3, calls)
}

func TestDoStopsOnPermanentError(t *testing.T) {
	permanent := errors.New("permanent")
	calls := 0
	err := Do(context.Background(), fastPolicy(5), func(err error) bool {
		return !errors.Is(err, permanent)
	}, func(context.Context) error {
		calls++
		return permanent
	})

	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestDoAppliesAttemptTimeout(t *testing.T) {
	p := Policy{MaxRetries: 1, AttemptTimeout: 10 * time.Millisecond, InitialBackoff: time.Millisecond}
	calls := 0
	err := Do(context.Background(), p, nil, func(ctx context.Context) error {
		calls++
		<-ctx.Done()
		return ctx.Err()
	})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 2, calls)
}

func TestDoHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := Do(ctx, fastPolicy(3), nil, func(context.Context) error {
		called = true
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

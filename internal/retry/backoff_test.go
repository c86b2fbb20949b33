package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig(attempts int) BackoffConfig {
	return BackoffConfig{
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
		MaxAttempts:  attempts,
	}
}

func TestRetry(t *testing.T) {
	ctx := context.Background()

	t.Run("succeeds first try", func(t *testing.T) {
		calls := 0
		err := NewBackoff(fastConfig(3)).Retry(ctx, func() error {
			calls++
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("succeeds after failures", func(t *testing.T) {
		calls := 0
		err := NewBackoff(fastConfig(3)).Retry(ctx, func() error {
			calls++
			if calls < 3 {
				return errors.New("transient")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("exhausts attempts and returns last error", func(t *testing.T) {
		calls := 0
		wantErr := errors.New("persistent")
		err := NewBackoff(fastConfig(3)).Retry(ctx, func() error {
			calls++
			return wantErr
		})
		assert.Equal(t, wantErr, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("respects cancellation", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		calls := 0
		err := NewBackoff(fastConfig(3)).Retry(cancelled, func() error {
			calls++
			return errors.New("transient")
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Zero(t, calls)
	})
}

func TestRetryWithPredicate(t *testing.T) {
	ctx := context.Background()
	calls := 0
	fatal := errors.New("fatal")

	err := NewBackoff(fastConfig(5)).RetryWithPredicate(ctx, func() error {
		calls++
		return fatal
	}, func(err error) bool { return false })

	assert.Equal(t, fatal, err)
	assert.Equal(t, 1, calls, "non-retryable errors stop immediately")
}

func TestCalculateDelay(t *testing.T) {
	b := NewBackoff(BackoffConfig{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
		MaxAttempts:  10,
	})

	assert.Equal(t, 100*time.Millisecond, b.GetNextDelay(1))
	assert.Equal(t, 200*time.Millisecond, b.GetNextDelay(2))
	assert.Equal(t, 400*time.Millisecond, b.GetNextDelay(3))
	assert.Equal(t, time.Second, b.GetNextDelay(5), "delay is capped")

	t.Run("jitter stays within bounds", func(t *testing.T) {
		jittered := NewBackoff(BackoffConfig{
			InitialDelay: 100 * time.Millisecond,
			MaxDelay:     time.Second,
			Multiplier:   2.0,
			MaxAttempts:  10,
			Jitter:       true,
		})
		for i := 0; i < 50; i++ {
			d := jittered.GetNextDelay(3)
			assert.GreaterOrEqual(t, d, 300*time.Millisecond)
			assert.LessOrEqual(t, d, 500*time.Millisecond)
		}
	})
}

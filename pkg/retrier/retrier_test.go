package retrier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSleep struct {
	delays []time.Duration
}

func (s *recordingSleep) sleep(ctx context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return ctx.Err()
}

func TestRetrier_Do(t *testing.T) {
	t.Run("success on first attempt", func(t *testing.T) {
		sleeper := &recordingSleep{}
		r := New(WithSleep(sleeper.sleep))
		attempts := 0
		err := r.Do(context.Background(), func(ctx context.Context) error {
			attempts++
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 1, attempts)
		assert.Empty(t, sleeper.delays)
	})

	t.Run("success after retries", func(t *testing.T) {
		sleeper := &recordingSleep{}
		r := New(WithMaxRetries(3), WithInitialInterval(time.Second), WithSleep(sleeper.sleep))
		attempts := 0
		err := r.Do(context.Background(), func(ctx context.Context) error {
			attempts++
			if attempts < 3 {
				return errors.New("fail")
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 3, attempts)
		assert.Equal(t, []time.Duration{time.Second, time.Second}, sleeper.delays)
	})

	t.Run("fail after max retries", func(t *testing.T) {
		sleeper := &recordingSleep{}
		r := New(WithMaxRetries(2), WithSleep(sleeper.sleep))
		attempts := 0
		err := r.Do(context.Background(), func(ctx context.Context) error {
			attempts++
			return errors.New("fail")
		})
		assert.EqualError(t, err, "fail")
		assert.Equal(t, 3, attempts) // 1 initial + 2 retries
	})

	t.Run("exponential backoff is capped", func(t *testing.T) {
		sleeper := &recordingSleep{}
		r := New(
			WithMaxRetries(4),
			WithInitialInterval(time.Second),
			WithMultiplier(2),
			WithMaxInterval(3*time.Second),
			WithSleep(sleeper.sleep),
		)
		_ = r.Do(context.Background(), func(ctx context.Context) error {
			return errors.New("fail")
		})
		assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 3 * time.Second, 3 * time.Second}, sleeper.delays)
	})

	t.Run("retryIf stops on permanent error", func(t *testing.T) {
		permanent := errors.New("permanent")
		r := New(WithMaxRetries(5), WithSleep((&recordingSleep{}).sleep), WithRetryIf(func(err error) bool {
			return !errors.Is(err, permanent)
		}))
		attempts := 0
		err := r.Do(context.Background(), func(ctx context.Context) error {
			attempts++
			return permanent
		})
		assert.ErrorIs(t, err, permanent)
		assert.Equal(t, 1, attempts)
	})

	t.Run("onRetry sees every retry", func(t *testing.T) {
		var seen []int
		r := New(WithMaxRetries(2), WithSleep((&recordingSleep{}).sleep), WithOnRetry(func(attempt int, err error) {
			seen = append(seen, attempt)
		}))
		_ = r.Do(context.Background(), func(ctx context.Context) error {
			return errors.New("fail")
		})
		assert.Equal(t, []int{1, 2}, seen)
	})

	t.Run("context cancellation", func(t *testing.T) {
		r := New(WithMaxRetries(5), WithInitialInterval(time.Millisecond))
		ctx, cancel := context.WithCancel(context.Background())

		attempts := 0
		err := r.Do(ctx, func(ctx context.Context) error {
			attempts++
			if attempts == 2 {
				cancel()
			}
			return errors.New("fail")
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 2, attempts)
	})
}

func TestRetrier_DoWithData(t *testing.T) {
	t.Run("success returns data", func(t *testing.T) {
		r := New()
		val, err := DoWithData(r, context.Background(), func(ctx context.Context) (string, error) {
			return "success", nil
		})
		assert.NoError(t, err)
		assert.Equal(t, "success", val)
	})

	t.Run("fail returns error", func(t *testing.T) {
		r := New(WithMaxRetries(1), WithSleep((&recordingSleep{}).sleep))
		val, err := DoWithData(r, context.Background(), func(ctx context.Context) (string, error) {
			return "", errors.New("fail")
		})
		assert.Error(t, err)
		assert.Empty(t, val)
	})
}

func TestSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
	require.NoError(t, Sleep(context.Background(), 0))
}

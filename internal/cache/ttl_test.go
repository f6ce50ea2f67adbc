package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestTTL_GetOrRefresh(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewTTL[int](time.Minute, clock.Now)
	ctx := context.Background()

	calls := 0
	refresh := func(value int, err error) func(context.Context) (int, error) {
		return func(context.Context) (int, error) {
			calls++
			return value, err
		}
	}

	t.Run("empty cache without fallback returns error", func(t *testing.T) {
		_, stale, err := c.GetOrRefresh(ctx, refresh(0, errors.New("down")))
		require.Error(t, err)
		assert.False(t, stale)
		assert.Equal(t, 1, calls)
	})

	t.Run("successful refresh is cached", func(t *testing.T) {
		v, stale, err := c.GetOrRefresh(ctx, refresh(7, nil))
		require.NoError(t, err)
		assert.False(t, stale)
		assert.Equal(t, 7, v)

		v, _, err = c.GetOrRefresh(ctx, refresh(8, nil))
		require.NoError(t, err)
		assert.Equal(t, 7, v, "fresh value must be served without refresh")
		assert.Equal(t, 2, calls)
	})

	t.Run("expired value is refreshed", func(t *testing.T) {
		clock.Advance(time.Minute)
		v, stale, err := c.GetOrRefresh(ctx, refresh(9, nil))
		require.NoError(t, err)
		assert.False(t, stale)
		assert.Equal(t, 9, v)
		assert.Equal(t, 3, calls)
	})

	t.Run("failed refresh falls back to stale value", func(t *testing.T) {
		clock.Advance(2 * time.Minute)
		v, stale, err := c.GetOrRefresh(ctx, refresh(0, errors.New("down")))
		require.NoError(t, err)
		assert.True(t, stale)
		assert.Equal(t, 9, v)

		_, fetchedAt, expired, ok := c.Peek()
		require.True(t, ok)
		assert.True(t, expired)
		assert.Equal(t, clock.now.Add(-2*time.Minute), fetchedAt, "failed refresh must not reset the timestamp")
	})
}

func TestTTL_Invalidate(t *testing.T) {
	c := NewTTL[string](time.Hour, nil)
	c.Set("x")

	v, _, _, ok := c.Peek()
	require.True(t, ok)
	assert.Equal(t, "x", v)

	c.Invalidate()
	_, _, _, ok = c.Peek()
	assert.False(t, ok)
}

func TestTTL_InvalidateDuringRefresh(t *testing.T) {
	c := NewTTL[int](time.Hour, nil)
	ctx := context.Background()

	v, _, err := c.GetOrRefresh(ctx, func(context.Context) (int, error) {
		c.Invalidate()
		return 1, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, v, "the computed value is still returned to the caller")

	_, _, _, ok := c.Peek()
	assert.False(t, ok, "a value computed across an invalidation must not be cached")

	v, _, err = c.GetOrRefresh(ctx, func(context.Context) (int, error) { return 2, nil })
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	cached, _, _, ok := c.Peek()
	require.True(t, ok)
	assert.Equal(t, 2, cached)
}

func TestTTL_SetDuringRefreshWins(t *testing.T) {
	c := NewTTL[int](time.Hour, nil)

	_, _, err := c.GetOrRefresh(context.Background(), func(context.Context) (int, error) {
		c.Set(5)
		return 1, nil
	})
	require.NoError(t, err)

	cached, _, _, ok := c.Peek()
	require.True(t, ok)
	assert.Equal(t, 5, cached)
}

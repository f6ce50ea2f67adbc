//go:build integration

package kv

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRedisStore_Integration talks to a real Redis.
// To run this test, use: COINPURSE_REDIS_ADDR=localhost:6379 go test -tags=integration ./...
func TestRedisStore_Integration(t *testing.T) {
	addr := os.Getenv("COINPURSE_REDIS_ADDR")
	if addr == "" {
		t.Skip("COINPURSE_REDIS_ADDR is not set")
	}

	ctx := context.Background()
	s, err := NewRedisStore(ctx, RedisOptions{Addr: addr, Prefix: "coinpurse:test:"})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Set(ctx, "BTC", "0.25"))
	v, ok, err := s.Get(ctx, "BTC")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "0.25", v)

	require.NoError(t, s.Remove(ctx, "BTC"))
	_, ok, err = s.Get(ctx, "BTC")
	require.NoError(t, err)
	assert.False(t, ok)
}

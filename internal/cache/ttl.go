// Package cache holds a single value for a bounded freshness window and falls back
// to the last good value when a refresh fails.
package cache

import (
	"context"
	"sync"
	"time"
)

// Clock returns the current time.
type Clock func() time.Time

// TTL caches one value of type T.
type TTL[T any] struct {
	mu        sync.RWMutex
	ttl       time.Duration
	now       Clock
	value     T
	fetchedAt time.Time
	has       bool
	// gen changes on every Set and Invalidate. A refresh that started under an
	// older generation returns its value but does not store it.
	gen uint64
}

// NewTTL creates a cache whose value is fresh for ttl. A nil clock means time.Now.
func NewTTL[T any](ttl time.Duration, now Clock) *TTL[T] {
	if now == nil {
		now = time.Now
	}
	return &TTL[T]{ttl: ttl, now: now}
}

// GetOrRefresh returns the cached value while it is fresh, otherwise calls refresh.
// When refresh fails the previous value is returned with stale=true, if there is one.
// Without a previous value the refresh error is returned.
// A value computed while the cache was invalidated or set is not stored.
func (c *TTL[T]) GetOrRefresh(ctx context.Context, refresh func(ctx context.Context) (T, error)) (value T, stale bool, err error) {
	v, gen, ok := c.fresh()
	if ok {
		return v, false, nil
	}

	v, err = refresh(ctx)
	if err != nil {
		c.mu.RLock()
		defer c.mu.RUnlock()
		if c.has {
			return c.value, true, nil
		}
		var zero T
		return zero, false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen == gen {
		c.storeLocked(v)
	}
	return v, false, nil
}

// Set stores v as the fresh value.
func (c *TTL[T]) Set(v T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.storeLocked(v)
}

func (c *TTL[T]) storeLocked(v T) {
	c.value = v
	c.fetchedAt = c.now()
	c.has = true
	c.gen++
}

// Peek returns the cached value without refreshing, together with its age state.
func (c *TTL[T]) Peek() (value T, fetchedAt time.Time, stale bool, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.has {
		return value, time.Time{}, false, false
	}
	return c.value, c.fetchedAt, c.expiredLocked(), true
}

// Invalidate drops the cached value.
func (c *TTL[T]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero T
	c.value = zero
	c.fetchedAt = time.Time{}
	c.has = false
	c.gen++
}

func (c *TTL[T]) fresh() (T, uint64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.has && !c.expiredLocked() {
		return c.value, c.gen, true
	}
	var zero T
	return zero, c.gen, false
}

func (c *TTL[T]) expiredLocked() bool {
	return c.now().Sub(c.fetchedAt) >= c.ttl
}

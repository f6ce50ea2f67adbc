// Package kv provides the key-value backends balances are persisted in.
// Keys are currency symbols and values are decimal strings.
package kv

import (
	"context"

	"github.com/pkg/errors"
)

// ErrClosed returned by a store after Close.
var ErrClosed = errors.New("store is closed")

// Store is atomic per key, there are no cross-key transactions.
type Store interface {
	// Get returns the value and whether the key exists.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	// Remove is a no-op for absent keys.
	Remove(ctx context.Context, key string) error
	Close() error
}

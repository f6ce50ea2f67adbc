package kv

import (
	"context"

	"github.com/pkg/errors"
)

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendWAL    = "wal"
	BackendRedis  = "redis"
)

// Options selects and configures a backend.
type Options struct {
	Backend  string
	FilePath string
	WALDir   string
	Redis    RedisOptions
}

// Open creates the store named by opts.Backend.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Backend {
	case BackendMemory:
		return NewMemory(), nil
	case BackendFile, "":
		return NewFileStore(opts.FilePath)
	case BackendWAL:
		return NewWALStore(opts.WALDir)
	case BackendRedis:
		return NewRedisStore(ctx, opts.Redis)
	default:
		return nil, errors.Errorf("unsupported storage backend %q", opts.Backend)
	}
}

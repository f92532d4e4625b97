// Package kvstore is the durable key-value store the booking ledger is
// persisted to. Values are opaque text; callers own the encoding.
package kvstore

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("key not found")

type Store interface {
	// Get returns ErrNotFound when the key has never been set.
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Ping(ctx context.Context) error
	Close() error
}

const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendMongo    = "mongo"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// withTimeout bounds ctx by timeout unless it already has an earlier deadline.
func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, func() {}
	}
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < timeout {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

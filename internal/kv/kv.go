// Package kv is the durable key-value surface used by the contact queue.
package kv

import (
	"context"
	"errors"
	"fmt"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("kv store closed")

// Store reads and writes whole values by key. Get returns nil, nil for a
// missing key.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// Update replaces the value under key with fn(old) atomically, also
	// against other processes sharing the store. old is nil for a missing
	// key; a nil result deletes the key. An error from fn aborts the update.
	// fn may run more than once and must not have side effects.
	Update(ctx context.Context, key string, fn UpdateFunc) error
	Close() error
}

// UpdateFunc computes a new value from the current one.
type UpdateFunc func(old []byte) ([]byte, error)

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Open returns the store named by backend. target is the SQLite file path or
// the Redis URL; it is ignored for the memory backend.
func Open(backend, target string) (Store, error) {
	switch backend {
	case BackendMemory:
		return NewMemory(), nil
	case BackendSQLite, "":
		return OpenSQLite(target)
	case BackendRedis:
		return NewRedis(target)
	default:
		return nil, fmt.Errorf("unknown kv backend %q", backend)
	}
}

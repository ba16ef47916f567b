// Package storage provides the durable key-value records backing the
// persona collection.
package storage

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get when no record exists for the key.
var ErrNotFound = errors.New("storage: key not found")

// KV is a durable key-value store. Put replaces the whole record.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Backend names accepted by Open.
const (
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Open returns the KV backend named by backend. dir is only used by the
// SQLite backend.
func Open(backend, dir string) (KV, error) {
	switch backend {
	case "", BackendSQLite:
		return OpenSQLite(dir)
	case BackendMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}

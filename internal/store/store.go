package store

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a key is absent from the store.
var ErrNotFound = errors.New("store: not found")

// Store is the durable key-value persistence behind the cache.
// Implementations must be safe for concurrent use by multiple goroutines.
type Store interface {
	// Get returns the value for key or ErrNotFound.
	Get(key string) (string, error)
	// Put stores value under key and reports whether the key already existed.
	Put(key, value string) (bool, error)
	// Delete removes key, returning ErrNotFound if it was absent.
	Delete(key string) error
	Close() error
}

// Kind names a Store backend.
type Kind string

const (
	KindBolt   Kind = "bolt"
	KindSQLite Kind = "sqlite"
	KindMemory Kind = "memory"
)

// Open opens the backend named by kind. path is ignored for the memory
// backend.
func Open(kind Kind, path string) (Store, error) {
	switch kind {
	case KindBolt:
		return OpenBolt(path, BoltOptions{})
	case KindSQLite:
		return OpenSQL(path)
	case KindMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("store: unknown kind %q", kind)
	}
}

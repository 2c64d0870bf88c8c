package store

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("store: not found")

// Store is the root data access interface implemented by the drivers
// (sqlite, memory).
type Store interface {
	Attributes() Attributes

	ApplyMigrations() error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the backing storage is reachable.
	Ping(ctx context.Context) error
}

// Attributes is a per-user string key/value store with explicit commit.
//
// Set only stages a write; it is visible to Get on the same Attributes
// value but not durable until Persist. Persist commits every staged write
// for the user atomically. Staged writes are dropped when Persist fails, so
// a failed Persist never leaves part of them behind.
//
// A missing attribute reads as the empty string, and setting the empty
// string removes the attribute.
type Attributes interface {
	Get(ctx context.Context, userID, key string) (string, error)
	Set(ctx context.Context, userID, key, value string) error
	Persist(ctx context.Context, userID string) error
}

// Discarder is implemented by Attributes drivers that can drop staged
// writes without persisting them.
type Discarder interface {
	Discard(ctx context.Context, userID string)
}

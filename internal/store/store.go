// Package store defines the durable key-value slot the cache persists its
// snapshot into, with in-memory, file and Redis backends.
package store

import (
	"context"
)

// Store is a durable string slot store
type Store interface {
	// Get returns the value stored under name; ok is false when absent
	Get(ctx context.Context, name string) (value string, ok bool, err error)

	// Set stores value under name, replacing any previous value
	Set(ctx context.Context, name, value string) error

	// Delete removes name; deleting an absent slot is not an error
	Delete(ctx context.Context, name string) error

	// Close releases resources held by the store
	Close() error
}

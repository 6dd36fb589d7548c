// Package kv defines the string-keyed persistence contract the domain
// repositories write through, plus the adapters that satisfy it. Every
// collection is one key holding a JSON-serialized snapshot; a Set is a
// single atomic key update from the caller's perspective.
package kv

import "context"

// Store is the durable key-value surface. Implementations must make
// Set atomic per key; callers never observe a half-written value.
type Store interface {
	// Get returns the value at key and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set writes value at key, replacing any previous value.
	Set(ctx context.Context, key string, value string) error
	// Delete removes key. Removing an absent key is not an error.
	Delete(ctx context.Context, key string) error
}

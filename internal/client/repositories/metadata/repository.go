// Package metadata is the CLI's local key/value store. It holds the session
// of the signed-in user between invocations.
package metadata

import "context"

type Repository interface {
	// Get returns the stored values of keys. Absent keys are left out of the map.
	Get(ctx context.Context, keys ...string) (map[string][]byte, error)
	// Put upserts every pair of values.
	Put(ctx context.Context, values map[string][]byte) error
	// Delete removes keys. Absent keys are ignored.
	Delete(ctx context.Context, keys ...string) error
}

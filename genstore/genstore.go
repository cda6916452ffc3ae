// Package genstore keeps a generation counter per entity cache key.
//
// The write path bumps the generation of a key before it touches the cached
// value. A read-through miss snapshots the generation before it queries the
// source of truth and writes back only if the generation is unchanged, so a
// slow reader can never overwrite the value installed by a concurrent update.
//
// Use Local for a single process, Redis when several replicas share a cache.
package genstore

import (
	"context"
	"time"
)

type GenStore interface {
	// Snapshot returns the current generation; missing => 0.
	Snapshot(ctx context.Context, key string) (uint64, error)
	// SnapshotMany returns gens for many keys in one call; missing => 0.
	SnapshotMany(ctx context.Context, keys []string) (map[string]uint64, error)
	// Bump atomically increments and returns the new generation.
	Bump(ctx context.Context, key string) (uint64, error)
	// Cleanup prunes old metadata if applicable (no-op for Redis).
	Cleanup(retention time.Duration)
	// Close releases resources (no-op ok).
	Close(context.Context) error
}

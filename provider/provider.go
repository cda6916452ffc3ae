// Package provider defines the storage abstraction used by querycache.
//
// Implementations MUST be byte-for-byte transparent: Get must return exactly the
// same []byte that was previously passed to Set for a key (no prepended/appended
// metadata, no re-encoding, no mutation). If a store performs internal transforms
// (e.g., compression), they MUST be fully reversed.
//
// Counters written by Incr are stored as base-10 ASCII so that a later Get
// returns the same representation on every backend.
//
// Important: keys under the "{namespace}:" prefixes used by querycache are owned
// by it. External code MUST NOT write values under them. Foreign writes may be
// treated as corruption by wire-format validation and deleted.
package provider

import (
	"context"
	"errors"
	"time"
)

// ErrNotInteger is returned by Incr when the stored value is not a base-10 integer.
var ErrNotInteger = errors.New("provider: value is not an integer")

// Provider is a minimal byte store with TTLs and multi-key operations.
// Must be safe for concurrent use.
type Provider interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	// If an IO/remote error happens, return (nil, false, err).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// GetMany returns every key that was found. Absent keys are omitted.
	// Must be one round trip where the backend supports it.
	GetMany(ctx context.Context, keys []string) (map[string][]byte, error)

	// Set stores value with the given TTL. ttl <= 0 means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// SetMany stores all items with the same TTL.
	SetMany(ctx context.Context, items map[string][]byte, ttl time.Duration) error

	// DelMany removes keys. Missing keys are not an error.
	DelMany(ctx context.Context, keys ...string) error

	// Incr adds delta to the integer at key and returns the new value.
	// An absent key is created at delta with ttl (ttl <= 0 means no expiry).
	// An existing counter keeps its expiry.
	Incr(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error)

	// Close releases resources.
	Close(ctx context.Context) error
}

// Shared is implemented by providers whose entries other processes can see:
// remote servers and files on disk.
type Shared interface {
	Shared() bool
}

// IsShared reports whether entries in p are visible to other processes.
func IsShared(p Provider) bool {
	s, ok := p.(Shared)
	return ok && s.Shared()
}

// Hasher is implemented by providers that have native hash structures.
// The stats package uses it for field counters.
type Hasher interface {
	HIncrBy(ctx context.Context, key, field string, step int64) (int64, error)
	HSet(ctx context.Context, key, field string, value int64) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	// HGetAllMany reads many hashes in one pipeline, in input order.
	HGetAllMany(ctx context.Context, keys []string) ([]map[string]string, error)
	// Pipelined queues the writes issued through p and sends them as one batch
	// when fn returns.
	Pipelined(ctx context.Context, fn func(p HashPipe) error) error
}

// HashPipe is the write side of a Hasher pipeline.
type HashPipe interface {
	HIncrBy(key, field string, step int64)
	HSet(key, field string, value int64)
}

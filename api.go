package querycache

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"

	c "github.com/unkn0wn-root/querycache/codec"
	gen "github.com/unkn0wn-root/querycache/genstore"
	pr "github.com/unkn0wn-root/querycache/provider"
)

// Predicate is a set of column == value conditions.
type Predicate map[string]any

// Table describes how one entity type participates in caching.
type Table[V any, K comparable] struct {
	// Name is the stable entity collection name used in keys ("users").
	Name string
	// Version is embedded in every key prefix; bump it when the cached shape
	// of V changes. Empty means unversioned.
	Version string
	// PrimaryKey lists the key columns in declared order. Batched reads need
	// exactly one column.
	PrimaryKey []string
	// ID extracts the identifier of an entity. Composite identifiers should
	// implement keys.Composite so they render as "a-b".
	ID func(V) K
}

// Source is the persistent store behind the cache, bound to one table.
type Source[V any, K comparable] interface {
	// Lookup is a point lookup by primary key.
	Lookup(ctx context.Context, id K) (V, bool, error)
	// LookupMany runs one "pk IN (ids)" query. Absent ids are simply not returned.
	LookupMany(ctx context.Context, ids []K) ([]V, error)
	// First returns the first row matching every condition in p.
	First(ctx context.Context, p Predicate) (V, bool, error)
	// Count counts rows matching p; an empty p counts the whole table.
	Count(ctx context.Context, p Predicate) (int64, error)
}

// Row is one slot of a batched read. Found is false when the store has no
// row for the requested identifier.
type Row[V any] struct {
	Value V
	Found bool
}

// Query is the read-through cache for one table.
type Query[V any, K comparable] interface {
	Enabled() bool
	Close(context.Context) error

	// Single
	Get(ctx context.Context, id K) (v V, ok bool, err error)
	GetOr404(ctx context.Context, id K) (V, error)

	// Batched (one provider read, at most one store round trip)
	GetDict(ctx context.Context, ids []K) (map[string]Row[V], error)
	GetMany(ctx context.Context, ids []K, clean bool) ([]V, error)

	// Predicate caches (TTL-bounded, never invalidated by writes)
	FilterFirst(ctx context.Context, p Predicate) (V, bool, error)
	FirstOr404(ctx context.Context, p Predicate) (V, error)
	FilterCount(ctx context.Context, p Predicate) (int64, error)

	// Write path
	Invalidator() *Invalidator[V, K]
}

// Options tune a Query. Table, Source, Provider and Codec are required.
type Options[V any, K comparable] struct {
	// Required
	Table    Table[V, K]
	Source   Source[V, K]
	Provider pr.Provider
	Codec    c.Codec[V]

	Namespace string        // "" => "db"
	EntityTTL time.Duration // point lookups; 0 => 24h
	CountTTL  time.Duration // unfiltered count; 0 => 24h
	FilterTTL time.Duration // filter-first / filter-count; 0 => 5m

	GenStore gen.GenStore // nil => genstore.Shared on a shared provider, else genstore.Local
	Logger   Logger       // nil => NopLogger
	Hooks    Hooks        // nil => NopHooks
	Tracer   trace.Tracer // nil => global otel tracer
	Disabled bool         // reads go straight to Source, writes are no-ops
}

func New[V any, K comparable](opts Options[V, K]) (Query[V, K], error) {
	q, err := newQuery[V, K](opts)
	if err != nil {
		return nil, err
	}
	return q, nil
}

package genstore

import (
	"context"
	"fmt"
	"time"

	pr "github.com/unkn0wn-root/querycache/provider"
)

// Shared keeps generations as counters in the cache provider itself, so
// replicas that share a memcached, SQLite or redis backend also share
// generations. An evicted or expired counter reads as 0 and the entities
// stamped under it self-heal.
type Shared struct {
	p   pr.Provider
	ns  string
	ttl time.Duration
}

var _ GenStore = (*Shared)(nil)

type SharedConfig struct {
	Provider  pr.Provider
	Namespace string
	// TTL is applied when a counter is created; 0 disables expiry.
	TTL time.Duration
}

func NewShared(cfg SharedConfig) *Shared {
	return &Shared{p: cfg.Provider, ns: cfg.Namespace, ttl: cfg.TTL}
}

func (s *Shared) key(k string) string { return "gen:" + s.ns + ":" + k }

func (s *Shared) Snapshot(ctx context.Context, key string) (uint64, error) {
	b, ok, err := s.p.Get(ctx, s.key(key))
	if err != nil || !ok {
		return 0, err
	}
	return parseCounter(key, b)
}

// SnapshotMany is one provider GetMany. Missing keys map to 0.
func (s *Shared) SnapshotMany(ctx context.Context, keys []string) (map[string]uint64, error) {
	out := make(map[string]uint64, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	pk := make([]string, len(keys))
	for i, k := range keys {
		pk[i] = s.key(k)
	}
	vals, err := s.p.GetMany(ctx, pk)
	if err != nil {
		return nil, err
	}
	for i, k := range keys {
		b, ok := vals[pk[i]]
		if !ok {
			out[k] = 0
			continue
		}
		g, err := parseCounter(k, b)
		if err != nil {
			return nil, err
		}
		out[k] = g
	}
	return out, nil
}

func (s *Shared) Bump(ctx context.Context, key string) (uint64, error) {
	n, err := s.p.Incr(ctx, s.key(key), 1, s.ttl)
	if err != nil {
		return 0, err
	}
	return uint64(n), nil
}

// Cleanup is not applicable; the provider expires counters.
func (s *Shared) Cleanup(time.Duration) {}

// Close is a no-op: the provider belongs to whoever configured it.
func (s *Shared) Close(context.Context) error { return nil }

func parseCounter(key string, b []byte) (uint64, error) {
	n, err := pr.ParseInt(b)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("gen parse at %s: %w", key, pr.ErrNotInteger)
	}
	return uint64(n), nil
}

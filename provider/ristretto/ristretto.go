// Package ristretto is the "simple" in-process backend, bounded by item count.
package ristretto

import (
	"context"
	"errors"
	"time"

	rc "github.com/dgraph-io/ristretto"

	pr "github.com/unkn0wn-root/querycache/provider"
)

type Provider struct {
	c     *rc.Cache
	locks pr.Stripes
}

var _ pr.Provider = (*Provider)(nil)

type Config struct {
	// MaxItems bounds the number of entries (each entry costs 1).
	MaxItems    int64
	NumCounters int64 // 0 => 10 * MaxItems
	BufferItems int64 // 0 => 64
	Metrics     bool
}

func New(cfg Config) (*Provider, error) {
	if cfg.MaxItems <= 0 {
		return nil, errors.New("ristretto: MaxItems must be positive")
	}
	if cfg.NumCounters <= 0 {
		cfg.NumCounters = 10 * cfg.MaxItems
	}
	if cfg.BufferItems <= 0 {
		cfg.BufferItems = 64
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxItems,
		BufferItems: cfg.BufferItems,
		Metrics:     cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}
	return &Provider{c: c}, nil
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := p.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	b, _ := v.([]byte)
	if b == nil {
		// self-heal: drop unexpected entry shape
		p.c.Del(key)
		return nil, false, nil
	}
	return b, true, nil
}

func (p *Provider) GetMany(ctx context.Context, keys []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	for _, k := range keys {
		if b, ok, _ := p.Get(ctx, k); ok {
			out[k] = b
		}
	}
	return out, nil
}

// Set waits for the write buffer so a following Get observes the value.
// A write refused by the admission policy is silently dropped.
func (p *Provider) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	p.set(key, value, ttl)
	p.c.Wait()
	return nil
}

func (p *Provider) SetMany(_ context.Context, items map[string][]byte, ttl time.Duration) error {
	for k, v := range items {
		p.set(k, v, ttl)
	}
	p.c.Wait()
	return nil
}

func (p *Provider) set(key string, value []byte, ttl time.Duration) bool {
	if ttl < 0 {
		ttl = 0
	}
	return p.c.SetWithTTL(key, value, 1, ttl)
}

func (p *Provider) DelMany(_ context.Context, keys ...string) error {
	for _, k := range keys {
		p.c.Del(k)
	}
	return nil
}

// Incr keeps the remaining TTL of an existing counter.
func (p *Provider) Incr(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	unlock := p.locks.Lock(key)
	defer unlock()

	n := delta
	if b, ok, _ := p.Get(ctx, key); ok {
		cur, err := pr.ParseInt(b)
		if err != nil {
			return 0, err
		}
		n += cur
		ttl = 0
		if rem, ok := p.c.GetTTL(key); ok {
			ttl = rem
		}
	}
	p.set(key, pr.FormatInt(n), ttl)
	p.c.Wait()
	return n, nil
}

func (p *Provider) Close(_ context.Context) error {
	p.c.Wait()
	p.c.Close()
	return nil
}

// Metrics exposes ristretto counters (nil unless Config.Metrics).
func (p *Provider) Metrics() *rc.Metrics { return p.c.Metrics }

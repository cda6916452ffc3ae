// Package bigcache is the "bigcache" in-process backend: a sharded byte arena
// sized in megabytes rather than items.
//
// BigCache has no per-entry TTL. Every entry lives for Config.LifeWindow,
// whatever ttl the caller passes.
package bigcache

import (
	"context"
	"errors"
	"time"

	bc "github.com/allegro/bigcache/v3"

	pr "github.com/unkn0wn-root/querycache/provider"
)

type Provider struct {
	c     *bc.BigCache
	locks pr.Stripes
}

var _ pr.Provider = (*Provider)(nil)

type Config struct {
	LifeWindow         time.Duration
	CleanWindow        time.Duration
	MaxEntriesInWindow int
	MaxEntrySize       int
	HardMaxCacheSizeMB int // ~ memory limit; 0 = unlimited
}

func New(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.LifeWindow <= 0 {
		return nil, errors.New("bigcache: LifeWindow must be positive")
	}
	conf := bc.DefaultConfig(cfg.LifeWindow)
	if cfg.CleanWindow > 0 {
		conf.CleanWindow = cfg.CleanWindow
	}
	if cfg.MaxEntriesInWindow > 0 {
		conf.MaxEntriesInWindow = cfg.MaxEntriesInWindow
	}
	if cfg.MaxEntrySize > 0 {
		conf.MaxEntrySize = cfg.MaxEntrySize
	}
	if cfg.HardMaxCacheSizeMB > 0 {
		conf.HardMaxCacheSize = cfg.HardMaxCacheSizeMB
	}
	c, err := bc.New(ctx, conf)
	if err != nil {
		return nil, err
	}
	return &Provider{c: c}, nil
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	b, err := p.c.Get(key)
	if errors.Is(err, bc.ErrEntryNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (p *Provider) GetMany(ctx context.Context, keys []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	for _, k := range keys {
		b, ok, err := p.Get(ctx, k)
		if err != nil {
			return nil, err
		}
		if ok {
			out[k] = b
		}
	}
	return out, nil
}

func (p *Provider) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	return p.c.Set(key, value)
}

func (p *Provider) SetMany(_ context.Context, items map[string][]byte, _ time.Duration) error {
	for k, v := range items {
		if err := p.c.Set(k, v); err != nil {
			return err
		}
	}
	return nil
}

func (p *Provider) DelMany(_ context.Context, keys ...string) error {
	for _, k := range keys {
		if err := p.c.Delete(k); err != nil && !errors.Is(err, bc.ErrEntryNotFound) {
			return err
		}
	}
	return nil
}

// Incr ignores ttl like Set; entries live for the configured life window.
func (p *Provider) Incr(ctx context.Context, key string, delta int64, _ time.Duration) (int64, error) {
	unlock := p.locks.Lock(key)
	defer unlock()

	n := delta
	b, ok, err := p.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	if ok {
		cur, err := pr.ParseInt(b)
		if err != nil {
			return 0, err
		}
		n += cur
	}
	if err := p.c.Set(key, pr.FormatInt(n)); err != nil {
		return 0, err
	}
	return n, nil
}

func (p *Provider) Close(_ context.Context) error {
	return p.c.Close()
}

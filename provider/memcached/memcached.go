// Package memcached is the "memcached" process-shared backend.
//
// Performance caveat: memcached has no multi-set or multi-delete, so SetMany
// and DelMany issue one request per key. GetMany is a single GetMulti.
//
// Keys that memcached would refuse (longer than 250 bytes, or containing
// spaces/control characters) are replaced by a SHA-256 digest.
package memcached

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	pr "github.com/unkn0wn-root/querycache/provider"
)

const maxKeyLen = 250

var ErrNoServers = errors.New("memcached provider: no servers")

type Provider struct {
	c *memcache.Client
}

var (
	_ pr.Provider = (*Provider)(nil)
	_ pr.Shared   = (*Provider)(nil)
)

type Config struct {
	Servers      []string
	Timeout      time.Duration // 0 => client default
	MaxIdleConns int
}

func New(cfg Config) (*Provider, error) {
	if len(cfg.Servers) == 0 {
		return nil, ErrNoServers
	}
	c := memcache.New(cfg.Servers...)
	if cfg.Timeout > 0 {
		c.Timeout = cfg.Timeout
	}
	if cfg.MaxIdleConns > 0 {
		c.MaxIdleConns = cfg.MaxIdleConns
	}
	return &Provider{c: c}, nil
}

func NewWithClient(c *memcache.Client) *Provider { return &Provider{c: c} }

func (p *Provider) Shared() bool { return true }

func wireKey(key string) string {
	if len(key) <= maxKeyLen && legal(key) {
		return key
	}
	sum := sha256.Sum256([]byte(key))
	return "h:" + hex.EncodeToString(sum[:])
}

func legal(key string) bool {
	for i := 0; i < len(key); i++ {
		if key[i] <= ' ' || key[i] == 0x7f {
			return false
		}
	}
	return true
}

// memcached takes relative seconds; anything above 30 days is read as a unix time.
func expiration(ttl time.Duration) int32 {
	if ttl <= 0 {
		return 0
	}
	s := int64(ttl / time.Second)
	if s == 0 {
		s = 1
	}
	if s > 30*24*3600 {
		return int32(time.Now().Unix() + s)
	}
	return int32(s)
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	it, err := p.c.Get(wireKey(key))
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return it.Value, true, nil
}

func (p *Provider) GetMany(_ context.Context, keys []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	byWire := make(map[string]string, len(keys))
	wk := make([]string, 0, len(keys))
	for _, k := range keys {
		w := wireKey(k)
		if _, dup := byWire[w]; !dup {
			wk = append(wk, w)
		}
		byWire[w] = k
	}
	items, err := p.c.GetMulti(wk)
	if err != nil {
		return nil, err
	}
	for w, it := range items {
		out[byWire[w]] = it.Value
	}
	return out, nil
}

func (p *Provider) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	return p.c.Set(&memcache.Item{Key: wireKey(key), Value: value, Expiration: expiration(ttl)})
}

func (p *Provider) SetMany(ctx context.Context, items map[string][]byte, ttl time.Duration) error {
	for k, v := range items {
		if err := p.Set(ctx, k, v, ttl); err != nil {
			return err
		}
	}
	return nil
}

func (p *Provider) DelMany(_ context.Context, keys ...string) error {
	for _, k := range keys {
		if err := p.c.Delete(wireKey(k)); err != nil && !errors.Is(err, memcache.ErrCacheMiss) {
			return err
		}
	}
	return nil
}

// Incr uses server-side incr/decr. An absent key is created with add; losing
// the add race to another writer retries the increment.
func (p *Provider) Incr(_ context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	k := wireKey(key)
	for {
		var n uint64
		var err error
		if delta >= 0 {
			n, err = p.c.Increment(k, uint64(delta))
		} else {
			n, err = p.c.Decrement(k, uint64(-delta))
		}
		if err == nil {
			return int64(n), nil
		}
		if !errors.Is(err, memcache.ErrCacheMiss) {
			return 0, err
		}
		err = p.c.Add(&memcache.Item{Key: k, Value: pr.FormatInt(delta), Expiration: expiration(ttl)})
		if err == nil {
			return delta, nil
		}
		if !errors.Is(err, memcache.ErrNotStored) {
			return 0, err
		}
	}
}

func (p *Provider) Close(context.Context) error { return nil }

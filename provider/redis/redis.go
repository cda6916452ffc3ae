package redis

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	pr "github.com/unkn0wn-root/querycache/provider"
)

var ErrNilClient = errors.New("redis provider: nil client")

type Redis struct {
	rdb         goredis.UniversalClient
	closeClient bool
}

var (
	_ pr.Provider = (*Redis)(nil)
	_ pr.Hasher   = (*Redis)(nil)
	_ pr.Shared   = (*Redis)(nil)
)

type Config struct {
	Client      goredis.UniversalClient
	CloseClient bool // set true only if this provider exclusively owns the client
}

func New(cfg Config) (*Redis, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	return &Redis{rdb: cfg.Client, closeClient: cfg.CloseClient}, nil
}

// Client returns the underlying client so other components (stats, genstore)
// can share the connection pool.
func (p *Redis) Client() goredis.UniversalClient { return p.rdb }

func (p *Redis) Shared() bool { return true }

func (p *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := p.rdb.Get(ctx, key).Bytes()
	if err == goredis.Nil {
		return nil, false, nil // miss
	}
	if err != nil {
		return nil, false, err // transport/server error
	}
	return b, true, nil
}

// GetMany is a single MGET.
func (p *Redis) GetMany(ctx context.Context, keys []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	vals, err := p.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	for i, v := range vals {
		switch vv := v.(type) {
		case nil:
		case string:
			out[keys[i]] = []byte(vv)
		case []byte:
			out[keys[i]] = vv
		}
	}
	return out, nil
}

func (p *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0 // treat non-positive TTLs as "no expiry" per provider contract
	}
	return p.rdb.Set(ctx, key, value, ttl).Err()
}

// SetMany pipelines one SET per item so every key gets the TTL.
func (p *Redis) SetMany(ctx context.Context, items map[string][]byte, ttl time.Duration) error {
	if len(items) == 0 {
		return nil
	}
	if ttl < 0 {
		ttl = 0
	}
	_, err := p.rdb.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		for k, v := range items {
			pipe.Set(ctx, k, v, ttl)
		}
		return nil
	})
	return err
}

func (p *Redis) DelMany(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return p.rdb.Del(ctx, keys...).Err()
}

// Incr seeds an absent counter with SET NX so it carries ttl, then INCRBY,
// both in one pipeline. INCRBY on a live key keeps its expiry.
func (p *Redis) Incr(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	if ttl <= 0 {
		return p.rdb.IncrBy(ctx, key, delta).Result()
	}
	var incr *goredis.IntCmd
	_, err := p.rdb.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.SetNX(ctx, key, 0, ttl)
		incr = pipe.IncrBy(ctx, key, delta)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

func (p *Redis) HIncrBy(ctx context.Context, key, field string, step int64) (int64, error) {
	return p.rdb.HIncrBy(ctx, key, field, step).Result()
}

func (p *Redis) HSet(ctx context.Context, key, field string, value int64) error {
	return p.rdb.HSet(ctx, key, field, value).Err()
}

func (p *Redis) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return p.rdb.HGetAll(ctx, key).Result()
}

// HGetAllMany sends one HGETALL per key in a single pipeline.
func (p *Redis) HGetAllMany(ctx context.Context, keys []string) ([]map[string]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	cmds := make([]*goredis.MapStringStringCmd, len(keys))
	_, err := p.rdb.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		for i, k := range keys {
			cmds[i] = pipe.HGetAll(ctx, k)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := make([]map[string]string, len(keys))
	for i, c := range cmds {
		out[i] = c.Val()
	}
	return out, nil
}

func (p *Redis) Pipelined(ctx context.Context, fn func(pr.HashPipe) error) error {
	var fnErr error
	_, err := p.rdb.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		fnErr = fn(hashPipe{ctx: ctx, p: pipe})
		// queued commands are flushed even when fn failed
		return nil
	})
	return errors.Join(fnErr, err)
}

type hashPipe struct {
	ctx context.Context
	p   goredis.Pipeliner
}

func (h hashPipe) HIncrBy(key, field string, step int64) { h.p.HIncrBy(h.ctx, key, field, step) }
func (h hashPipe) HSet(key, field string, value int64)   { h.p.HSet(h.ctx, key, field, value) }

// Close releases the underlying redis client only when this provider owns it.
// Safe to call multiple times; repeated calls become no-ops.
func (p *Redis) Close(context.Context) error {
	if p.closeClient {
		if err := p.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}

// Package backend builds the cache provider selected by configuration.
//
// CACHE_TYPE (or {FEATURE}_CACHE_TYPE) picks one of:
//
//	null        no caching; every read misses
//	simple      in-process, bounded by THRESHOLD entries (ristretto)
//	bigcache    in-process sharded arena; DEFAULT_TIMEOUT is the life window
//	filesystem  SQLite file under DIR
//	memcached   MEMCACHED_SERVERS
//	redis       REDIS_URL, or REDIS_HOST/REDIS_PORT/REDIS_PASSWORD/REDIS_DB
package backend

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/querycache"
	"github.com/unkn0wn-root/querycache/config"
	gen "github.com/unkn0wn-root/querycache/genstore"
	pr "github.com/unkn0wn-root/querycache/provider"
	"github.com/unkn0wn-root/querycache/provider/bigcache"
	"github.com/unkn0wn-root/querycache/provider/memcached"
	"github.com/unkn0wn-root/querycache/provider/nop"
	"github.com/unkn0wn-root/querycache/provider/redis"
	"github.com/unkn0wn-root/querycache/provider/ristretto"
	"github.com/unkn0wn-root/querycache/provider/sqlite"
	"github.com/unkn0wn-root/querycache/stats"
)

// ErrUnknownType is wrapped by the *config.Error for an unsupported TYPE.
var ErrUnknownType = errors.New("unknown cache type")

// Backend type names.
const (
	TypeNull       = "null"
	TypeSimple     = "simple"
	TypeBigcache   = "bigcache"
	TypeFilesystem = "filesystem"
	TypeMemcached  = "memcached"
	TypeRedis      = "redis"
)

const defaultThreshold = 500

// CacheName is the registry name of a feature's provider.
func CacheName(feature string) string { return name(feature, "cache") }

// StatsName is the registry name of a feature's stats store.
func StatsName(feature string) string { return name(feature, "stats") }

// GenName is the registry name of a feature's generation store.
func GenName(feature string) string { return name(feature, "gen") }

func name(feature, kind string) string {
	if feature == "" {
		return kind
	}
	return strings.ToLower(feature) + "_" + kind
}

// Configure builds the provider s selects and registers it under
// CacheName(s.Feature()).
func Configure(ctx context.Context, s *config.Settings, reg *Registry) (pr.Provider, error) {
	typ, err := s.String("TYPE", TypeNull)
	if err != nil {
		return nil, err
	}

	var p pr.Provider
	switch strings.ToLower(typ) {
	case TypeNull:
		p = nop.New()
	case TypeSimple:
		p, err = simple(s)
	case TypeBigcache:
		p, err = bigCache(ctx, s)
	case TypeFilesystem:
		p, err = filesystem(ctx, s)
	case TypeMemcached:
		p, err = memcache(s)
	case TypeRedis:
		p, err = redisProvider(ctx, s)
	default:
		return nil, &config.Error{Key: "CACHE_TYPE", Err: fmt.Errorf("%w: %q", ErrUnknownType, typ)}
	}
	if err != nil {
		return nil, err
	}
	reg.Register(CacheName(s.Feature()), p)
	return p, nil
}

// MustConfigure is Configure for startup code, where a bad setting is fatal.
func MustConfigure(ctx context.Context, s *config.Settings, reg *Registry) pr.Provider {
	p, err := Configure(ctx, s, reg)
	if err != nil {
		panic(err)
	}
	return p
}

// ConfigureStats returns the stats store for s's feature: the feature's
// redis provider when the cache is redis (sharing its client), an
// in-process store otherwise. The provider is configured first when the
// registry does not hold it yet.
func ConfigureStats(ctx context.Context, s *config.Settings, reg *Registry) (stats.Store, error) {
	p, ok := reg.Provider(CacheName(s.Feature()))
	if !ok {
		var err error
		if p, err = Configure(ctx, s, reg); err != nil {
			return nil, err
		}
	}

	var st stats.Store
	if h, ok := p.(pr.Hasher); ok {
		st = h
	} else {
		st = stats.NewLocal()
	}
	reg.RegisterStats(StatsName(s.Feature()), st)
	return st, nil
}

// ConfigureGenStore returns the generation store every Query of s's feature
// should share. A redis cache gets genstore.Redis on the provider's client,
// other shared backends keep generations in the provider itself, and
// in-process caches get one genstore.Local. GEN_TTL bounds shared counters.
func ConfigureGenStore(ctx context.Context, s *config.Settings, reg *Registry) (gen.GenStore, error) {
	p, ok := reg.Provider(CacheName(s.Feature()))
	if !ok {
		var err error
		if p, err = Configure(ctx, s, reg); err != nil {
			return nil, err
		}
	}
	ttl, err := s.Duration("GEN_TTL", 0)
	if err != nil {
		return nil, err
	}

	var g gen.GenStore
	switch pp := p.(type) {
	case *redis.Redis:
		g = gen.NewRedis(gen.RedisConfig{Client: pp.Client(), Namespace: querycache.DefaultNamespace, TTL: ttl})
	default:
		if pr.IsShared(p) {
			g = gen.NewShared(gen.SharedConfig{Provider: p, Namespace: querycache.DefaultNamespace, TTL: ttl})
		} else {
			g = gen.NewLocal(time.Hour, 30*querycache.OneDay)
		}
	}
	reg.RegisterGenStore(GenName(s.Feature()), g)
	return g, nil
}

func simple(s *config.Settings) (pr.Provider, error) {
	n, err := s.Int("THRESHOLD", defaultThreshold)
	if err != nil {
		return nil, err
	}
	return ristretto.New(ristretto.Config{MaxItems: int64(n)})
}

func bigCache(ctx context.Context, s *config.Settings) (pr.Provider, error) {
	life, err := s.Duration("DEFAULT_TIMEOUT", querycache.OneDay)
	if err != nil {
		return nil, err
	}
	mb, err := s.Int("BIGCACHE_MAX_MB", 0)
	if err != nil {
		return nil, err
	}
	return bigcache.New(ctx, bigcache.Config{LifeWindow: life, HardMaxCacheSizeMB: mb})
}

func filesystem(ctx context.Context, s *config.Settings) (pr.Provider, error) {
	dir, err := s.String("DIR")
	if err != nil {
		return nil, err
	}
	return sqlite.New(ctx, sqlite.Config{Dir: dir})
}

func memcache(s *config.Settings) (pr.Provider, error) {
	servers, err := s.Strings("MEMCACHED_SERVERS")
	if err != nil {
		return nil, err
	}
	timeout, err := s.Duration("MEMCACHED_TIMEOUT", 0)
	if err != nil {
		return nil, err
	}
	return memcached.New(memcached.Config{Servers: servers, Timeout: timeout})
}

// redisProvider owns its client and pings it once, so a wrong address fails
// at startup instead of on the first request.
func redisProvider(ctx context.Context, s *config.Settings) (pr.Provider, error) {
	opts, err := redisOptions(s)
	if err != nil {
		return nil, err
	}
	rdb := goredis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis %s: %w", opts.Addr, err)
	}
	return redis.New(redis.Config{Client: rdb, CloseClient: true})
}

func redisOptions(s *config.Settings) (*goredis.Options, error) {
	if url, ok := s.Lookup("REDIS_URL"); ok && url != "" {
		opts, err := goredis.ParseURL(url)
		if err != nil {
			return nil, &config.Error{Key: "CACHE_REDIS_URL", Err: err}
		}
		return opts, nil
	}
	host, err := s.String("REDIS_HOST", "localhost")
	if err != nil {
		return nil, err
	}
	port, err := s.Int("REDIS_PORT", 6379)
	if err != nil {
		return nil, err
	}
	password, err := s.String("REDIS_PASSWORD", "")
	if err != nil {
		return nil, err
	}
	db, err := s.Int("REDIS_DB", 0)
	if err != nil {
		return nil, err
	}
	return &goredis.Options{
		Addr:     net.JoinHostPort(host, strconv.Itoa(port)),
		Password: password,
		DB:       db,
	}, nil
}

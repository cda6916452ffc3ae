// Package memo caches function results under keys rendered from the call's
// arguments.
//
//	recent := memo.Cached(p, codec.JSON[[]Post]{}, "posts:recent:%s", 0,
//	    func(ctx context.Context, a memo.Args) ([]Post, error) {
//	        return store.Recent(ctx, a.Positional[0].(int))
//	    })
//	posts, err := recent(ctx, memo.Pos(20)) // key "posts:recent:20"
//
// Falsy results (zero values, empty strings, slices and maps) are stored but
// never served: every call that produced one calls fn again.
package memo

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/unkn0wn-root/querycache"
	c "github.com/unkn0wn-root/querycache/codec"
	pr "github.com/unkn0wn-root/querycache/provider"
)

// DefaultTTL applies when Cached is given ttl <= 0.
const DefaultTTL = querycache.OneHour

// ErrKeyArgs is returned by Key when the arguments do not fill the pattern.
var ErrKeyArgs = errors.New("memo: arguments do not match key pattern")

// Args are the arguments of one call.
type Args struct {
	Positional []any
	Named      map[string]any
}

// Pos builds positional Args.
func Pos(v ...any) Args { return Args{Positional: v} }

// Named builds named Args.
func Named(m map[string]any) Args { return Args{Named: m} }

type Func[T any] func(ctx context.Context, a Args) (T, error)

type options struct {
	log querycache.Logger
}

type Option func(*options)

// WithLogger reports backend failures; the cache itself never fails a call.
func WithLogger(l querycache.Logger) Option { return func(o *options) { o.log = l } }

// Cached wraps fn. Backend read and write failures fall through to fn and
// are logged; errors from fn are returned and not cached. A call whose
// arguments do not fit pattern runs fn uncached.
func Cached[T any](p pr.Provider, cd c.Codec[T], pattern string, ttl time.Duration, fn Func[T], opts ...Option) Func[T] {
	o := options{log: querycache.NopLogger{}}
	for _, opt := range opts {
		opt(&o)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return func(ctx context.Context, a Args) (T, error) {
		key, err := Key(pattern, a)
		if err != nil {
			o.log.Warn("memo key rejected", querycache.Fields{"pattern": pattern, "err": err})
			return fn(ctx, a)
		}

		raw, ok, err := p.Get(ctx, key)
		if err != nil {
			o.log.Warn("memo get failed", querycache.Fields{"key": key, "err": err})
		}
		if ok {
			v, err := cd.Decode(raw)
			if err == nil && Truthy(v) {
				return v, nil
			}
		}

		v, err := fn(ctx, a)
		if err != nil {
			return v, err
		}
		b, err := cd.Encode(v)
		if err != nil {
			o.log.Warn("memo encode failed", querycache.Fields{"key": key, "err": err})
			return v, nil
		}
		if err := p.Set(ctx, key, b, ttl); err != nil {
			o.log.Warn("memo set failed", querycache.Fields{"key": key, "err": err})
		}
		return v, nil
	}
}

var namedRef = regexp.MustCompile(`%\(([^)]+)\)s`)

// Key renders pattern for a call:
//   - "%s" placeholders take positional args in order, when there are any;
//   - otherwise "%(name)s" placeholders take named args, when there are any;
//   - otherwise the pattern is the key.
//
// "%%" is a literal percent. A placeholder count that differs from the
// positional args, or a name missing from the named args, is ErrKeyArgs.
func Key(pattern string, a Args) (string, error) {
	switch {
	case strings.Contains(pattern, "%s") && len(a.Positional) > 0:
		if n := positional(pattern); n != len(a.Positional) {
			return "", fmt.Errorf("%w: %q has %d placeholders, got %d args",
				ErrKeyArgs, pattern, n, len(a.Positional))
		}
		strs := make([]any, len(a.Positional))
		for i, v := range a.Positional {
			strs[i] = fmt.Sprint(v)
		}
		return fmt.Sprintf(pattern, strs...), nil
	case strings.Contains(pattern, "%(") && len(a.Named) > 0:
		var missing string
		key := namedRef.ReplaceAllStringFunc(pattern, func(m string) string {
			name := namedRef.FindStringSubmatch(m)[1]
			v, ok := a.Named[name]
			if !ok {
				missing = name
				return m
			}
			return fmt.Sprint(v)
		})
		if missing != "" {
			return "", fmt.Errorf("%w: %q needs %q", ErrKeyArgs, pattern, missing)
		}
		return key, nil
	default:
		return pattern, nil
	}
}

// positional counts "%s" verbs, skipping "%%" escapes.
func positional(pattern string) int {
	n := 0
	for i := 0; i < len(pattern)-1; i++ {
		if pattern[i] != '%' {
			continue
		}
		if pattern[i+1] == 's' {
			n++
		}
		i++
	}
	return n
}

// Truthy reports whether v counts as a usable cached result.
func Truthy(v any) bool {
	if v == nil {
		return false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String, reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() > 0
	case reflect.Pointer, reflect.Interface:
		return !rv.IsNil()
	default:
		return !rv.IsZero()
	}
}

package stats

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pr "github.com/unkn0wn-root/querycache/provider"
	rp "github.com/unkn0wn-root/querycache/provider/redis"
)

type countingStore struct {
	Store
	hgetall, many, pipelines int
}

func (s *countingStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	s.hgetall++
	return s.Store.HGetAll(ctx, key)
}

func (s *countingStore) HGetAllMany(ctx context.Context, keys []string) ([]map[string]string, error) {
	s.many++
	return s.Store.HGetAllMany(ctx, keys)
}

func (s *countingStore) Pipelined(ctx context.Context, fn func(pr.HashPipe) error) error {
	s.pipelines++
	return s.Store.Pipelined(ctx, fn)
}

func stores(t *testing.T) map[string]Store {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	r, err := rp.New(rp.Config{Client: rdb})
	require.NoError(t, err)
	return map[string]Store{"local": NewLocal(), "redis": r}
}

func TestIncreaseThenGet(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			c := New(s)
			for i := 0; i < 3; i++ {
				_, err := c.Increase(ctx, 7, "views", 1)
				require.NoError(t, err)
			}
			n, err := c.Scope().Int(ctx, 7, "views", 0)
			require.NoError(t, err)
			assert.Equal(t, int64(3), n)

			require.NoError(t, c.Set(ctx, 7, "likes", 10))
			r, err := c.Get(ctx, 7)
			require.NoError(t, err)
			assert.Equal(t, Record{"views": "3", "likes": "10"}, r)
		})
	}
}

func TestGetDictOneRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			cs := &countingStore{Store: s}
			c := New(cs)
			_, err := c.Increase(ctx, "a", "views", 2)
			require.NoError(t, err)

			d, err := c.GetDict(ctx, []any{"a", "b"})
			require.NoError(t, err)
			assert.Equal(t, 1, cs.many)
			assert.Len(t, d, 2)
			assert.Equal(t, "2", d["a"]["views"])
			assert.Empty(t, d["b"])
		})
	}
}

func TestScopeReadsOnce(t *testing.T) {
	ctx := context.Background()
	cs := &countingStore{Store: NewLocal()}
	c := New(cs)
	_, _ = c.Increase(ctx, 1, "views", 5)

	sc := c.Scope()
	for i := 0; i < 3; i++ {
		v, err := sc.Get(ctx, 1, "views", "0")
		require.NoError(t, err)
		assert.Equal(t, "5", v)
	}
	v, err := sc.Get(ctx, 1, "missing", "none")
	require.NoError(t, err)
	assert.Equal(t, "none", v)
	assert.Equal(t, 1, cs.hgetall)

	require.NoError(t, sc.Prime(ctx, []any{1, 2, 3}))
	assert.Equal(t, 1, cs.many)
	_, _ = sc.Record(ctx, 3)
	assert.Equal(t, 1, cs.hgetall, "primed idents are not read again")
}

func TestDeferredFlushes(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			cs := &countingStore{Store: s}
			c := New(cs)

			err := c.Deferred(ctx, func(b *Batch) error {
				b.Increase(1, "views", 1)
				b.Increase(1, "views", 1)
				b.Set(2, "likes", 4)

				// buffered writes are invisible inside the batch
				r, err := c.Get(ctx, 1)
				require.NoError(t, err)
				assert.Empty(t, r)
				return nil
			})
			require.NoError(t, err)
			assert.Equal(t, 1, cs.pipelines)

			d, err := c.GetDict(ctx, []any{1, 2})
			require.NoError(t, err)
			assert.Equal(t, "2", d["1"]["views"])
			assert.Equal(t, "4", d["2"]["likes"])
		})
	}
}

func TestDeferredFlushesOnError(t *testing.T) {
	ctx := context.Background()
	c := New(NewLocal())
	boom := errors.New("boom")

	err := c.Deferred(ctx, func(b *Batch) error {
		b.Increase(1, "views", 1)
		return boom
	})
	require.ErrorIs(t, err, boom)

	n, err := c.Scope().Int(ctx, 1, "views", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestDeferredFlushesOnPanic(t *testing.T) {
	ctx := context.Background()
	c := New(NewLocal())

	var leaked *Batch
	assert.PanicsWithValue(t, "boom", func() {
		_ = c.Deferred(ctx, func(b *Batch) error {
			leaked = b
			b.Increase(1, "views", 1)
			panic("boom")
		})
	})

	n, err := c.Scope().Int(ctx, 1, "views", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Panics(t, func() { leaked.Increase(1, "views", 1) })
}

func TestRecordInt(t *testing.T) {
	r := Record{"views": "12", "bad": "x"}
	n, err := r.Int("views", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(12), n)

	n, err = r.Int("missing", 9)
	require.NoError(t, err)
	assert.Equal(t, int64(9), n)

	_, err = r.Int("bad", 0)
	assert.Error(t, err)
}

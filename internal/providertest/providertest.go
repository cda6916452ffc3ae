// Package providertest checks that a provider.Provider honors the contract
// the query cache relies on.
package providertest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pr "github.com/unkn0wn-root/querycache/provider"
)

// Run exercises p. Keys are prefixed with t.Name() so a shared backend can
// be reused across calls.
func Run(t *testing.T, p pr.Provider) {
	t.Helper()
	ctx := context.Background()
	key := func(s string) string { return fmt.Sprintf("%s:%s", t.Name(), s) }

	t.Run("miss", func(t *testing.T) {
		v, ok, err := p.Get(ctx, key("absent"))
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, v)
	})

	t.Run("set get is byte exact", func(t *testing.T) {
		want := []byte{0, 1, 2, 0xff, 'q'}
		require.NoError(t, p.Set(ctx, key("exact"), want, 0))
		got, ok, err := p.Get(ctx, key("exact"))
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, want, got)
	})

	t.Run("many", func(t *testing.T) {
		items := map[string][]byte{key("m1"): []byte("a"), key("m2"): []byte("b")}
		require.NoError(t, p.SetMany(ctx, items, 0))

		got, err := p.GetMany(ctx, []string{key("m1"), key("m2"), key("m3")})
		require.NoError(t, err)
		assert.Equal(t, items, got, "absent keys are omitted")

		require.NoError(t, p.DelMany(ctx, key("m1"), key("m3")))
		got, err = p.GetMany(ctx, []string{key("m1"), key("m2")})
		require.NoError(t, err)
		assert.Equal(t, map[string][]byte{key("m2"): []byte("b")}, got)

		require.NoError(t, p.DelMany(ctx))
	})

	t.Run("incr", func(t *testing.T) {
		n, err := p.Incr(ctx, key("n"), 1, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n, "absent counter is created at delta")

		n, err = p.Incr(ctx, key("n"), 4, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(5), n)

		raw, ok, err := p.Get(ctx, key("n"))
		require.NoError(t, err)
		require.True(t, ok)
		got, err := pr.ParseInt(raw)
		require.NoError(t, err)
		assert.Equal(t, int64(5), got)

		require.NoError(t, p.Set(ctx, key("s"), pr.FormatInt(41), 0))
		n, err = p.Incr(ctx, key("s"), 1, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(42), n, "Set counters and Incr share one format")

		n, err = p.Incr(ctx, key("t"), 2, time.Hour)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n, "ttl does not change the created value")
		n, err = p.Incr(ctx, key("t"), 3, time.Hour)
		require.NoError(t, err)
		assert.Equal(t, int64(5), n)
	})

	t.Run("concurrent incr", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := p.Incr(ctx, key("race"), 1, time.Hour)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()
		raw, _, err := p.Get(ctx, key("race"))
		require.NoError(t, err)
		n, err := pr.ParseInt(raw)
		require.NoError(t, err)
		assert.Equal(t, int64(20), n)
	})
}

// RunNop checks a provider that stores nothing.
func RunNop(t *testing.T, p pr.Provider) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, p.Set(ctx, "k", []byte("v"), 0))
	_, ok, err := p.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := p.GetMany(ctx, []string{"k"})
	require.NoError(t, err)
	assert.Empty(t, got)

	n, err := p.Incr(ctx, "c", 3, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

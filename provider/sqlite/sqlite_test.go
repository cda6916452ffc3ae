package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/querycache/internal/providertest"
)

func newProvider(t *testing.T, dir string) *Provider {
	t.Helper()
	p, err := New(context.Background(), Config{Dir: dir, ExpiryCheck: 20 * time.Millisecond})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close(context.Background()) })
	return p
}

func TestContract(t *testing.T) {
	providertest.Run(t, newProvider(t, t.TempDir()))
}

func TestRequiresDir(t *testing.T) {
	_, err := New(context.Background(), Config{})
	assert.Error(t, err)
}

func TestPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "nested")

	p, err := New(ctx, Config{Dir: dir})
	require.NoError(t, err)
	require.NoError(t, p.Set(ctx, "k", []byte("v"), 0))
	require.NoError(t, p.Close(ctx))
	require.NoError(t, p.Close(ctx), "Close is idempotent")

	_, err = os.Stat(filepath.Join(dir, FileName))
	require.NoError(t, err)

	q := newProvider(t, dir)
	got, ok, err := q.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v"), got)
}

func TestExpiry(t *testing.T) {
	ctx := context.Background()
	p := newProvider(t, t.TempDir())
	require.NoError(t, p.Set(ctx, "k", []byte("v"), time.Second))
	require.NoError(t, p.SetMany(ctx, map[string][]byte{"a": []byte("1")}, time.Second))

	assert.Eventually(t, func() bool {
		_, ok, _ := p.Get(ctx, "k")
		got, _ := p.GetMany(ctx, []string{"a"})
		return !ok && len(got) == 0
	}, 5*time.Second, 50*time.Millisecond)
}

func TestIncrCreatedCounterExpires(t *testing.T) {
	ctx := context.Background()
	p := newProvider(t, t.TempDir())
	n, err := p.Incr(ctx, "c", 1, time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	assert.Eventually(t, func() bool {
		_, ok, _ := p.Get(ctx, "c")
		return !ok
	}, 5*time.Second, 50*time.Millisecond)

	n, err = p.Incr(ctx, "c", 1, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "an expired counter restarts at delta")
}

package ristretto

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/querycache/internal/providertest"
)

func newProvider(t *testing.T) *Provider {
	t.Helper()
	p, err := New(Config{MaxItems: 1000, Metrics: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close(context.Background()) })
	return p
}

func TestContract(t *testing.T) {
	providertest.Run(t, newProvider(t))
}

func TestConfigValidation(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestTTLExpires(t *testing.T) {
	ctx := context.Background()
	p := newProvider(t)
	require.NoError(t, p.Set(ctx, "k", []byte("v"), 50*time.Millisecond))
	_, ok, _ := p.Get(ctx, "k")
	require.True(t, ok)

	assert.Eventually(t, func() bool {
		_, ok, _ := p.Get(ctx, "k")
		return !ok
	}, 3*time.Second, 20*time.Millisecond)
}

func TestIncrKeepsTTL(t *testing.T) {
	ctx := context.Background()
	p := newProvider(t)
	require.NoError(t, p.Set(ctx, "n", []byte("1"), time.Hour))
	_, err := p.Incr(ctx, "n", 1, time.Minute)
	require.NoError(t, err)
	rem, ok := p.c.GetTTL("n")
	require.True(t, ok)
	assert.Greater(t, rem, 59*time.Minute)
	assert.NotNil(t, p.Metrics())
}

func TestIncrCreatesWithTTL(t *testing.T) {
	ctx := context.Background()
	p := newProvider(t)
	n, err := p.Incr(ctx, "c", 1, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	rem, ok := p.c.GetTTL("c")
	require.True(t, ok)
	assert.Greater(t, rem, 59*time.Minute)
}

package bigcache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/querycache/internal/providertest"
)

func TestContract(t *testing.T) {
	ctx := context.Background()
	p, err := New(ctx, Config{LifeWindow: time.Hour, MaxEntriesInWindow: 1000, MaxEntrySize: 256})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close(ctx) })

	providertest.Run(t, p)
}

func TestConfigValidation(t *testing.T) {
	_, err := New(context.Background(), Config{})
	assert.Error(t, err)
}

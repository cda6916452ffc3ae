package promhook

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	h, err := New(reg, "app")
	require.NoError(t, err)

	h.Lookup("users", "get", true)
	h.Lookup("users", "get", true)
	h.Lookup("users", "get", false)
	h.SourceQuery("users", "get_many", 5)
	h.SelfHeal("db:get:users:1", "corrupt")
	h.BackendError("set", "db:get:users:1", errors.New("boom"))
	h.GenBumpError("db:get:users:1", errors.New("boom"))

	assert.Equal(t, 2.0, testutil.ToFloat64(h.Lookups.WithLabelValues("users", "get", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.Lookups.WithLabelValues("users", "get", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.SourceQueries.WithLabelValues("users", "get_many")))
	assert.Equal(t, 5.0, testutil.ToFloat64(h.SourceRows.WithLabelValues("users", "get_many")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.SelfHeals.WithLabelValues("corrupt")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.BackendErrors.WithLabelValues("set")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.GenErrors.WithLabelValues("bump")))
}

func TestDoubleRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg, "app")
	require.NoError(t, err)
	_, err = New(reg, "app")
	require.Error(t, err)
}

// Package nop is the "null" backend: every read misses and every write is dropped.
package nop

import (
	"context"
	"time"

	pr "github.com/unkn0wn-root/querycache/provider"
)

type Provider struct{}

var _ pr.Provider = Provider{}

func New() Provider { return Provider{} }

func (Provider) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, nil
}

func (Provider) GetMany(context.Context, []string) (map[string][]byte, error) {
	return map[string][]byte{}, nil
}

func (Provider) Set(context.Context, string, []byte, time.Duration) error {
	return nil
}

func (Provider) SetMany(context.Context, map[string][]byte, time.Duration) error {
	return nil
}

func (Provider) DelMany(context.Context, ...string) error { return nil }

// Incr reports delta as the new value, as if the key had been absent.
func (Provider) Incr(_ context.Context, _ string, delta int64, _ time.Duration) (int64, error) {
	return delta, nil
}

func (Provider) Close(context.Context) error { return nil }

package backend

import (
	"context"
	"errors"
	"sort"
	"sync"

	gen "github.com/unkn0wn-root/querycache/genstore"
	pr "github.com/unkn0wn-root/querycache/provider"
	"github.com/unkn0wn-root/querycache/stats"
)

// Registry holds the backends created at startup by name. One registry is
// built once and passed to whatever needs a backend.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]pr.Provider
	stats     map[string]stats.Store
	gens      map[string]gen.GenStore
}

func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]pr.Provider),
		stats:     make(map[string]stats.Store),
		gens:      make(map[string]gen.GenStore),
	}
}

func (r *Registry) Register(name string, p pr.Provider) {
	r.mu.Lock()
	r.providers[name] = p
	r.mu.Unlock()
}

func (r *Registry) RegisterStats(name string, s stats.Store) {
	r.mu.Lock()
	r.stats[name] = s
	r.mu.Unlock()
}

func (r *Registry) RegisterGenStore(name string, g gen.GenStore) {
	r.mu.Lock()
	r.gens[name] = g
	r.mu.Unlock()
}

func (r *Registry) Provider(name string) (pr.Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	return p, ok
}

func (r *Registry) Stats(name string) (stats.Store, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.stats[name]
	return s, ok
}

func (r *Registry) GenStore(name string) (gen.GenStore, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.gens[name]
	return g, ok
}

// Names lists registered provider names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.providers))
	for n := range r.providers {
		out = append(out, n)
	}
	r.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Close closes every registered generation store, then every provider, and
// empties the registry.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	ps, gs := r.providers, r.gens
	r.providers = make(map[string]pr.Provider)
	r.stats = make(map[string]stats.Store)
	r.gens = make(map[string]gen.GenStore)
	r.mu.Unlock()

	var errs []error
	for _, g := range gs {
		if err := g.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	for _, p := range ps {
		if err := p.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

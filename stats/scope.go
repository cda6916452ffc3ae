package stats

import (
	"context"
	"sync"

	"github.com/unkn0wn-root/querycache/internal/keys"
)

// Scope memoizes full record reads for the lifetime of one request: each
// ident is read from the store at most once. Writes through the Counter are
// not reflected in records the scope already holds.
type Scope struct {
	c  *Counter
	mu sync.Mutex
	m  map[string]Record
}

func (c *Counter) Scope() *Scope { return &Scope{c: c, m: make(map[string]Record)} }

// Record returns ident's record, reading it on first use.
func (s *Scope) Record(ctx context.Context, ident any) (Record, error) {
	id := keys.ForIdent(ident)
	s.mu.Lock()
	r, ok := s.m[id]
	s.mu.Unlock()
	if ok {
		return r, nil
	}

	r, err := s.c.Get(ctx, ident)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.m[id] = r
	s.mu.Unlock()
	return r, nil
}

// Prime loads every ident not yet held in one pipelined read.
func (s *Scope) Prime(ctx context.Context, idents []any) error {
	var todo []any
	s.mu.Lock()
	for _, id := range idents {
		if _, ok := s.m[keys.ForIdent(id)]; !ok {
			todo = append(todo, id)
		}
	}
	s.mu.Unlock()
	if len(todo) == 0 {
		return nil
	}

	d, err := s.c.GetDict(ctx, todo)
	if err != nil {
		return err
	}
	s.mu.Lock()
	for id, r := range d {
		s.m[id] = r
	}
	s.mu.Unlock()
	return nil
}

// Get returns one field, or def when the field is absent.
func (s *Scope) Get(ctx context.Context, ident any, field, def string) (string, error) {
	r, err := s.Record(ctx, ident)
	if err != nil {
		return "", err
	}
	if v, ok := r[field]; ok {
		return v, nil
	}
	return def, nil
}

// Int is Get for integer fields.
func (s *Scope) Int(ctx context.Context, ident any, field string, def int64) (int64, error) {
	r, err := s.Record(ctx, ident)
	if err != nil {
		return 0, err
	}
	return r.Int(field, def)
}

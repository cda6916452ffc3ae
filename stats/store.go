// Package stats keeps integer counters in hash-structured storage: one hash
// per tracked object, one field per metric. Reads of many objects are one
// pipelined round trip; writes can be deferred into one batch.
package stats

import (
	"context"
	"strconv"
	"sync"

	pr "github.com/unkn0wn-root/querycache/provider"
)

// Store is the hash storage behind a Counter. *redis.Redis from
// provider/redis implements it natively; LocalStore is the in-process
// fallback for backends without hashes.
type Store = pr.Hasher

// LocalStore keeps hashes in process memory. Safe for concurrent use.
type LocalStore struct {
	mu sync.RWMutex
	m  map[string]map[string]int64
}

var _ Store = (*LocalStore)(nil)

func NewLocal() *LocalStore { return &LocalStore{m: make(map[string]map[string]int64)} }

func (s *LocalStore) HIncrBy(_ context.Context, key, field string, step int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.incr(key, field, step), nil
}

func (s *LocalStore) HSet(_ context.Context, key, field string, value int64) error {
	s.mu.Lock()
	s.set(key, field, value)
	s.mu.Unlock()
	return nil
}

func (s *LocalStore) HGetAll(_ context.Context, key string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read(key), nil
}

func (s *LocalStore) HGetAllMany(_ context.Context, keys []string) ([]map[string]string, error) {
	out := make([]map[string]string, len(keys))
	s.mu.RLock()
	for i, k := range keys {
		out[i] = s.read(k)
	}
	s.mu.RUnlock()
	return out, nil
}

// Pipelined applies the queued writes under one lock acquisition, after fn
// returns and whether or not it failed.
func (s *LocalStore) Pipelined(_ context.Context, fn func(p pr.HashPipe) error) error {
	var p localPipe
	err := fn(&p)
	s.mu.Lock()
	for _, op := range p.ops {
		if op.set {
			s.set(op.key, op.field, op.n)
		} else {
			s.incr(op.key, op.field, op.n)
		}
	}
	s.mu.Unlock()
	return err
}

func (s *LocalStore) incr(key, field string, step int64) int64 {
	h := s.hash(key)
	h[field] += step
	return h[field]
}

func (s *LocalStore) set(key, field string, value int64) { s.hash(key)[field] = value }

func (s *LocalStore) hash(key string) map[string]int64 {
	h, ok := s.m[key]
	if !ok {
		h = make(map[string]int64)
		s.m[key] = h
	}
	return h
}

// read renders fields the way redis returns them.
func (s *LocalStore) read(key string) map[string]string {
	h := s.m[key]
	out := make(map[string]string, len(h))
	for f, n := range h {
		out[f] = strconv.FormatInt(n, 10)
	}
	return out
}

type localOp struct {
	key, field string
	n          int64
	set        bool
}

type localPipe struct{ ops []localOp }

func (p *localPipe) HIncrBy(key, field string, step int64) {
	p.ops = append(p.ops, localOp{key: key, field: field, n: step})
}

func (p *localPipe) HSet(key, field string, value int64) {
	p.ops = append(p.ops, localOp{key: key, field: field, n: value, set: true})
}

package stats

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/unkn0wn-root/querycache/internal/keys"
	pr "github.com/unkn0wn-root/querycache/provider"
)

// KeyPrefix is prepended to every stat hash key.
const KeyPrefix = "stat:"

// Record is one object's fields in backend-native string form.
// A missing object reads as an empty Record.
type Record map[string]string

// Int parses field, returning def when it is absent.
func (r Record) Int(field string, def int64) (int64, error) {
	v, ok := r[field]
	if !ok {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("stats: field %q: %w", field, err)
	}
	return n, nil
}

type Counter struct {
	store Store
}

func New(s Store) *Counter { return &Counter{store: s} }

// Key returns the hash key of ident.
func Key(ident any) string { return KeyPrefix + keys.ForIdent(ident) }

func (c *Counter) Increase(ctx context.Context, ident any, field string, step int64) (int64, error) {
	return c.store.HIncrBy(ctx, Key(ident), field, step)
}

func (c *Counter) Set(ctx context.Context, ident any, field string, value int64) error {
	return c.store.HSet(ctx, Key(ident), field, value)
}

// Get reads one object's record.
func (c *Counter) Get(ctx context.Context, ident any) (Record, error) {
	h, err := c.store.HGetAll(ctx, Key(ident))
	return Record(h), err
}

// GetMany reads every ident in one pipelined call, in input order.
func (c *Counter) GetMany(ctx context.Context, idents []any) ([]Record, error) {
	if len(idents) == 0 {
		return nil, nil
	}
	ks := make([]string, len(idents))
	for i, id := range idents {
		ks[i] = Key(id)
	}
	hs, err := c.store.HGetAllMany(ctx, ks)
	if err != nil {
		return nil, err
	}
	out := make([]Record, len(hs))
	for i, h := range hs {
		out[i] = Record(h)
	}
	return out, nil
}

// GetDict is GetMany keyed by the rendered ident.
func (c *Counter) GetDict(ctx context.Context, idents []any) (map[string]Record, error) {
	rs, err := c.GetMany(ctx, idents)
	if err != nil {
		return nil, err
	}
	out := make(map[string]Record, len(rs))
	for i, r := range rs {
		out[keys.ForIdent(idents[i])] = r
	}
	return out, nil
}

// Deferred buffers every write fn makes through b and sends them as one
// pipeline when fn returns, also when fn fails or panics. Reads made inside
// fn do not see the buffered writes.
func (c *Counter) Deferred(ctx context.Context, fn func(b *Batch) error) (err error) {
	b := &Batch{}
	defer func() {
		r := recover()
		b.done = true
		ferr := c.flush(ctx, b.ops)
		if r != nil {
			panic(r)
		}
		err = errors.Join(err, ferr)
	}()
	return fn(b)
}

func (c *Counter) flush(ctx context.Context, ops []batchOp) error {
	if len(ops) == 0 {
		return nil
	}
	return c.store.Pipelined(ctx, func(p pr.HashPipe) error {
		for _, op := range ops {
			if op.set {
				p.HSet(op.key, op.field, op.n)
			} else {
				p.HIncrBy(op.key, op.field, op.n)
			}
		}
		return nil
	})
}

type batchOp struct {
	key, field string
	n          int64
	set        bool
}

// Batch is the write side of Deferred. It must not be used after fn returns.
type Batch struct {
	ops  []batchOp
	done bool
}

func (b *Batch) Increase(ident any, field string, step int64) {
	b.check()
	b.ops = append(b.ops, batchOp{key: Key(ident), field: field, n: step})
}

func (b *Batch) Set(ident any, field string, value int64) {
	b.check()
	b.ops = append(b.ops, batchOp{key: Key(ident), field: field, n: value, set: true})
}

// Len reports how many writes are queued.
func (b *Batch) Len() int { return len(b.ops) }

func (b *Batch) check() {
	if b.done {
		panic("stats: Batch used after Deferred returned")
	}
}

package querycache

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/unkn0wn-root/querycache/internal/keys"
	"github.com/unkn0wn-root/querycache/internal/wire"
	pr "github.com/unkn0wn-root/querycache/provider"

	c "github.com/unkn0wn-root/querycache/codec"
	gen "github.com/unkn0wn-root/querycache/genstore"
)

const tracerName = "github.com/unkn0wn-root/querycache"

type query[V any, K comparable] struct {
	table    Table[V, K]
	source   Source[V, K]
	provider pr.Provider
	codec    c.Codec[V]
	gen      gen.GenStore
	ownGen   bool
	log      Logger
	hooks    Hooks
	tracer   trace.Tracer
	enabled  bool

	ns        string
	entityTTL time.Duration
	countTTL  time.Duration
	filterTTL time.Duration

	// cached prefixes
	getPrefix, countKey, ffPrefix, fcPrefix string

	sf singleflight.Group
}

func newQuery[V any, K comparable](opts Options[V, K]) (*query[V, K], error) {
	if opts.Provider == nil {
		return nil, fmt.Errorf("querycache: provider is required")
	}
	if opts.Codec == nil {
		return nil, fmt.Errorf("querycache: codec is required")
	}
	if opts.Source == nil {
		return nil, fmt.Errorf("querycache: source is required")
	}
	if opts.Table.Name == "" {
		return nil, fmt.Errorf("querycache: table name is required")
	}
	if opts.Table.ID == nil {
		return nil, fmt.Errorf("querycache: table %s: ID func is required", opts.Table.Name)
	}

	q := &query[V, K]{
		table:    opts.Table,
		source:   opts.Source,
		provider: opts.Provider,
		codec:    opts.Codec,
		enabled:  !opts.Disabled,
	}

	// defaults
	q.log = coalesce[Logger](opts.Logger, NopLogger{})
	q.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	q.tracer = coalesce[trace.Tracer](opts.Tracer, otel.Tracer(tracerName))
	q.ns = coalesce(opts.Namespace, DefaultNamespace)
	q.entityTTL = coalesce(opts.EntityTTL, DefaultEntityTTL)
	q.countTTL = coalesce(opts.CountTTL, DefaultCountTTL)
	q.filterTTL = coalesce(opts.FilterTTL, DefaultFilterTTL)

	switch {
	case opts.GenStore != nil:
		q.gen = opts.GenStore
	case pr.IsShared(opts.Provider):
		// replicas on one backend must agree on generations
		q.gen = gen.NewShared(gen.SharedConfig{Provider: opts.Provider, Namespace: q.ns})
		q.ownGen = true
	default:
		// in-process generations with periodic cleanup
		q.gen = gen.NewLocal(defaultSweep, defaultGenRetention)
		q.ownGen = true
	}

	t := q.table
	q.getPrefix = keys.Prefix(q.ns, keys.OpGet, t.Name, t.Version)
	q.countKey = keys.Prefix(q.ns, keys.OpCount, t.Name, t.Version)
	q.ffPrefix = keys.Prefix(q.ns, keys.OpFilterFirst, t.Name, t.Version)
	q.fcPrefix = keys.Prefix(q.ns, keys.OpFilterCount, t.Name, t.Version)

	return q, nil
}

var _ Query[struct{}, int] = (*query[struct{}, int])(nil)

func (q *query[V, K]) Enabled() bool { return q.enabled }

// Close releases the generation store only when the query created it.
// The provider is shared and closed by its owner.
func (q *query[V, K]) Close(ctx context.Context) error {
	if q.ownGen {
		return q.gen.Close(ctx)
	}
	return nil
}

func (q *query[V, K]) Invalidator() *Invalidator[V, K] { return &Invalidator[V, K]{q: q} }

func (q *query[V, K]) entityKey(id K) string { return q.getPrefix + keys.ForIdent(id) }

// ==============================
// Single
// ==============================

func (q *query[V, K]) Get(ctx context.Context, id K) (V, bool, error) {
	var zero V
	if !q.enabled {
		return q.lookup(ctx, id)
	}
	k := q.entityKey(id)
	raw, ok, err := q.provider.Get(ctx, k)
	if err != nil {
		q.backendError("get", k, err)
		return zero, false, err
	}
	if ok {
		if v, ok := q.decodeEntity(ctx, k, raw, q.snapshotGen(ctx, k)); ok {
			q.hooks.Lookup(q.table.Name, keys.OpGet, true)
			return v, true, nil
		}
	}
	q.hooks.Lookup(q.table.Name, keys.OpGet, false)

	r, err := q.load(k, func() (Row[V], error) {
		obs := q.snapshotGen(ctx, k)
		v, found, err := q.lookup(ctx, id)
		if err != nil || !found {
			// absent rows are not cached
			return Row[V]{}, err
		}
		q.writeEntity(ctx, k, v, obs)
		return Row[V]{Value: v, Found: true}, nil
	})
	return r.Value, r.Found, err
}

func (q *query[V, K]) GetOr404(ctx context.Context, id K) (V, error) {
	v, ok, err := q.Get(ctx, id)
	if err != nil {
		return v, err
	}
	if !ok {
		return v, &NotFoundError{Entity: q.table.Name, Ident: id}
	}
	return v, nil
}

// load collapses concurrent misses on one key into a single source query.
func (q *query[V, K]) load(key string, fn func() (Row[V], error)) (Row[V], error) {
	res, err, _ := q.sf.Do(key, func() (any, error) {
		return fn()
	})
	if err != nil {
		return Row[V]{}, err
	}
	return res.(Row[V]), nil
}

// ==============================
// Batched
// ==============================

func (q *query[V, K]) GetDict(ctx context.Context, ids []K) (map[string]Row[V], error) {
	if len(ids) == 0 {
		return map[string]Row[V]{}, nil
	}
	if len(q.table.PrimaryKey) != 1 {
		return nil, fmt.Errorf("%w: %s has %d primary key columns, batched reads need 1",
			ErrUnsupportedShape, q.table.Name, len(q.table.PrimaryKey))
	}

	// dedupe while keeping the first-seen order
	uniq := make([]K, 0, len(ids))
	suffix := make(map[K]string, len(ids))
	for _, id := range ids {
		if _, dup := suffix[id]; dup {
			continue
		}
		suffix[id] = keys.ForIdent(id)
		uniq = append(uniq, id)
	}

	out := make(map[string]Row[V], len(uniq))
	if !q.enabled {
		if err := q.fillFromSource(ctx, uniq, suffix, out, nil); err != nil {
			return nil, err
		}
		return out, nil
	}

	storage := make([]string, len(uniq))
	for i, id := range uniq {
		storage[i] = q.getPrefix + suffix[id]
	}
	raws, err := q.provider.GetMany(ctx, storage)
	if err != nil {
		q.backendError("get_many", q.getPrefix, err)
		return nil, err
	}
	// generations are observed before the store is consulted
	gens := q.snapshotGens(ctx, storage)

	var missed []K
	for i, id := range uniq {
		k := storage[i]
		raw, ok := raws[k]
		if ok {
			if v, ok := q.decodeEntity(ctx, k, raw, gens[k]); ok {
				out[suffix[id]] = Row[V]{Value: v, Found: true}
				q.hooks.Lookup(q.table.Name, keys.OpGet, true)
				continue
			}
		}
		q.hooks.Lookup(q.table.Name, keys.OpGet, false)
		missed = append(missed, id)
	}
	if len(missed) > 0 {
		if err := q.fillFromSource(ctx, missed, suffix, out, gens); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// fillFromSource resolves ids with one LookupMany and, when gens is non-nil,
// writes the fetched rows back in one SetMany.
func (q *query[V, K]) fillFromSource(ctx context.Context, ids []K, suffix map[K]string, out map[string]Row[V], gens map[string]uint64) error {
	rows, err := q.lookupMany(ctx, ids)
	if err != nil {
		return err
	}
	for _, id := range ids {
		out[suffix[id]] = Row[V]{}
	}

	fetched := make(map[string]V, len(rows))
	for _, v := range rows {
		s := keys.ForIdent(q.table.ID(v))
		out[s] = Row[V]{Value: v, Found: true}
		fetched[q.getPrefix+s] = v
	}
	if gens == nil || len(fetched) == 0 {
		return nil
	}
	q.writeEntities(ctx, fetched, gens)
	return nil
}

func (q *query[V, K]) GetMany(ctx context.Context, ids []K, clean bool) ([]V, error) {
	d, err := q.GetDict(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]V, 0, len(ids))
	for i, id := range ids {
		r := d[keys.ForIdent(id)]
		if !r.Found {
			if clean {
				continue
			}
			return nil, &MissingRowError{Entity: q.table.Name, Ident: id, Index: i}
		}
		out = append(out, r.Value)
	}
	return out, nil
}

// ==============================
// Predicate caches
// ==============================

func (q *query[V, K]) FilterFirst(ctx context.Context, p Predicate) (V, bool, error) {
	var zero V
	if !q.enabled {
		return q.first(ctx, p)
	}
	k := q.ffPrefix + keys.ForPredicate(p)
	raw, ok, err := q.provider.Get(ctx, k)
	if err != nil {
		q.backendError("get", k, err)
		return zero, false, err
	}
	if ok {
		if v, ok := q.decodeQuery(ctx, k, raw); ok {
			q.hooks.Lookup(q.table.Name, keys.OpFilterFirst, true)
			return v, true, nil
		}
	}
	q.hooks.Lookup(q.table.Name, keys.OpFilterFirst, false)

	r, err := q.load(k, func() (Row[V], error) {
		v, found, err := q.first(ctx, p)
		if err != nil || !found {
			return Row[V]{}, err
		}
		payload, err := q.codec.Encode(v)
		if err != nil {
			return Row[V]{}, err
		}
		if err := q.provider.Set(ctx, k, wire.Encode(wire.KindQuery, 0, payload), q.filterTTL); err != nil {
			q.backendError("set", k, err)
		}
		return Row[V]{Value: v, Found: true}, nil
	})
	return r.Value, r.Found, err
}

func (q *query[V, K]) FirstOr404(ctx context.Context, p Predicate) (V, error) {
	v, ok, err := q.FilterFirst(ctx, p)
	if err != nil {
		return v, err
	}
	if !ok {
		return v, &NotFoundError{Entity: q.table.Name, Predicate: p}
	}
	return v, nil
}

// FilterCount caches the unfiltered count under the table's count key (the
// key AfterInsert increments) and predicate counts under short-lived keys.
func (q *query[V, K]) FilterCount(ctx context.Context, p Predicate) (int64, error) {
	if !q.enabled {
		return q.count(ctx, p)
	}
	k, ttl, op := q.countKey, q.countTTL, keys.OpCount
	if len(p) > 0 {
		k, ttl, op = q.fcPrefix+keys.ForPredicate(p), q.filterTTL, keys.OpFilterCount
	}

	raw, ok, err := q.provider.Get(ctx, k)
	if err != nil {
		q.backendError("get", k, err)
		return 0, err
	}
	if ok {
		n, err := pr.ParseInt(raw)
		if err == nil {
			q.hooks.Lookup(q.table.Name, op, true)
			return n, nil
		}
		q.selfHeal(ctx, k, "not_integer")
	}
	q.hooks.Lookup(q.table.Name, op, false)

	n, err := q.count(ctx, p)
	if err != nil {
		return 0, err
	}
	if err := q.provider.Set(ctx, k, pr.FormatInt(n), ttl); err != nil {
		q.backendError("set", k, err)
	}
	return n, nil
}

// ==============================
// Entry codec + CAS write-back
// ==============================

func (q *query[V, K]) decodeEntity(ctx context.Context, k string, raw []byte, curGen uint64) (V, bool) {
	var zero V
	e, err := wire.Decode(raw)
	if err != nil || e.Kind != wire.KindEntity {
		q.selfHeal(ctx, k, "corrupt")
		return zero, false
	}
	if e.Gen != curGen {
		q.selfHeal(ctx, k, "gen_mismatch")
		return zero, false
	}
	v, err := q.codec.Decode(e.Payload)
	if err != nil {
		q.selfHeal(ctx, k, "value_decode")
		return zero, false
	}
	return v, true
}

func (q *query[V, K]) decodeQuery(ctx context.Context, k string, raw []byte) (V, bool) {
	var zero V
	e, err := wire.Decode(raw)
	if err != nil || e.Kind != wire.KindQuery {
		q.selfHeal(ctx, k, "corrupt")
		return zero, false
	}
	v, err := q.codec.Decode(e.Payload)
	if err != nil {
		q.selfHeal(ctx, k, "value_decode")
		return zero, false
	}
	return v, true
}

func (q *query[V, K]) encodeEntity(v V, g uint64) ([]byte, error) {
	payload, err := q.codec.Encode(v)
	if err != nil {
		return nil, err
	}
	return wire.Encode(wire.KindEntity, g, payload), nil
}

// writeEntity stores v iff the key's generation is still observedGen.
// Failures are reported, never returned: the caller already has its value.
func (q *query[V, K]) writeEntity(ctx context.Context, k string, v V, observedGen uint64) {
	if q.snapshotGen(ctx, k) != observedGen {
		// generation moved; skip stale write
		q.log.Debug("write-back skipped (gen mismatch)", Fields{"key": k, "obs": observedGen})
		q.hooks.WriteBackSkipped(k)
		return
	}
	b, err := q.encodeEntity(v, observedGen)
	if err != nil {
		q.log.Warn("encode entity failed", Fields{"key": k, "err": err})
		return
	}
	if err := q.provider.Set(ctx, k, b, q.entityTTL); err != nil {
		q.backendError("set", k, err)
	}
}

// writeEntities is the batched writeEntity: one SnapshotMany, one SetMany.
func (q *query[V, K]) writeEntities(ctx context.Context, items map[string]V, observed map[string]uint64) {
	ks := make([]string, 0, len(items))
	for k := range items {
		ks = append(ks, k)
	}
	cur := q.snapshotGens(ctx, ks)

	batch := make(map[string][]byte, len(items))
	for k, v := range items {
		if cur[k] != observed[k] {
			q.log.Debug("write-back skipped (gen mismatch)", Fields{"key": k, "obs": observed[k]})
			q.hooks.WriteBackSkipped(k)
			continue
		}
		b, err := q.encodeEntity(v, observed[k])
		if err != nil {
			q.log.Warn("encode entity failed", Fields{"key": k, "err": err})
			continue
		}
		batch[k] = b
	}
	if len(batch) == 0 {
		return
	}
	if err := q.provider.SetMany(ctx, batch, q.entityTTL); err != nil {
		q.backendError("set_many", q.getPrefix, err)
	}
}

func (q *query[V, K]) selfHeal(ctx context.Context, k, reason string) {
	_ = q.provider.DelMany(ctx, k)
	q.hooks.SelfHeal(k, reason)
	q.log.Debug("self-healed entry", Fields{"key": k, "reason": reason})
}

func (q *query[V, K]) backendError(op, k string, err error) {
	q.hooks.BackendError(op, k, err)
	q.log.Warn("cache backend error", Fields{"op": op, "key": k, "err": err})
}

func (q *query[V, K]) snapshotGen(ctx context.Context, k string) uint64 {
	g, err := q.gen.Snapshot(ctx, k)
	if err != nil {
		// Conservative: treat as 0 so CAS writes will skip; reads will self-heal
		q.hooks.GenSnapshotError(1, err)
		q.log.Warn("gen snapshot error", Fields{"key": k, "err": err})
		return 0
	}
	return g
}

func (q *query[V, K]) snapshotGens(ctx context.Context, ks []string) map[string]uint64 {
	m, err := q.gen.SnapshotMany(ctx, ks)
	if err != nil {
		q.hooks.GenSnapshotError(len(ks), err)
		q.log.Warn("gen snapshot error", Fields{"count": len(ks), "err": err})
		return map[string]uint64{}
	}
	return m
}

func (q *query[V, K]) bumpGen(ctx context.Context, k string) (uint64, error) {
	g, err := q.gen.Bump(ctx, k)
	if err != nil {
		q.hooks.GenBumpError(k, err)
		q.log.Error("gen bump error", Fields{"key": k, "err": err})
		return 0, err
	}
	return g, nil
}

// ==============================
// Source round trips
// ==============================

func (q *query[V, K]) startSpan(ctx context.Context, op string, n int) (context.Context, trace.Span) {
	q.hooks.SourceQuery(q.table.Name, op, n)
	return q.tracer.Start(ctx, "querycache.source."+op, trace.WithAttributes(
		attribute.String("querycache.table", q.table.Name),
		attribute.String("querycache.op", op),
		attribute.Int("querycache.count", n),
	))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (q *query[V, K]) lookup(ctx context.Context, id K) (v V, found bool, err error) {
	ctx, span := q.startSpan(ctx, keys.OpGet, 1)
	defer func() { endSpan(span, err) }()
	return q.source.Lookup(ctx, id)
}

func (q *query[V, K]) lookupMany(ctx context.Context, ids []K) (rows []V, err error) {
	ctx, span := q.startSpan(ctx, "get_many", len(ids))
	defer func() { endSpan(span, err) }()
	return q.source.LookupMany(ctx, ids)
}

func (q *query[V, K]) first(ctx context.Context, p Predicate) (v V, found bool, err error) {
	ctx, span := q.startSpan(ctx, keys.OpFilterFirst, 1)
	defer func() { endSpan(span, err) }()
	return q.source.First(ctx, p)
}

func (q *query[V, K]) count(ctx context.Context, p Predicate) (n int64, err error) {
	op := keys.OpCount
	if len(p) > 0 {
		op = keys.OpFilterCount
	}
	ctx, span := q.startSpan(ctx, op, 1)
	defer func() { endSpan(span, err) }()
	return q.source.Count(ctx, p)
}

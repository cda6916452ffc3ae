package querycache

import "context"

// Invalidator keeps a table's entity and count entries consistent with
// committed writes. Predicate caches are left to expire on their TTL.
type Invalidator[V any, K comparable] struct {
	q *query[V, K]
}

// Subscribe registers the three write handlers on ev.
func (i *Invalidator[V, K]) Subscribe(ev *Events[V]) {
	ev.OnInsert(i.AfterInsert)
	ev.OnUpdate(i.AfterUpdate)
	ev.OnDelete(i.AfterDelete)
}

// AfterInsert bumps the table's cached row count. An absent count is created
// at 1 with the count TTL, so the undercount lasts at most one TTL; counting
// on every insert would defeat the cache.
func (i *Invalidator[V, K]) AfterInsert(ctx context.Context, _ V) error {
	q := i.q
	if !q.enabled {
		return nil
	}
	if _, err := q.provider.Incr(ctx, q.countKey, 1, q.countTTL); err != nil {
		q.backendError("incr", q.countKey, err)
		return err
	}
	return nil
}

// AfterUpdate bumps the entity's generation, so any in-flight read-through
// drops its write-back, then stores v stamped with the new generation.
// When the bump fails the entry is deleted instead.
func (i *Invalidator[V, K]) AfterUpdate(ctx context.Context, v V) error {
	q := i.q
	if !q.enabled {
		return nil
	}
	k := q.entityKey(q.table.ID(v))

	g, bumpErr := q.bumpGen(ctx, k)
	if bumpErr != nil {
		if delErr := q.provider.DelMany(ctx, k); delErr != nil {
			q.hooks.InvalidateOutage(k, bumpErr, delErr)
			q.log.Error("invalidate outage", Fields{"key": k, "bump_err": bumpErr, "del_err": delErr})
			return &InvalidateError{Key: k, BumpErr: bumpErr, DelErr: delErr}
		}
		return nil
	}

	b, err := q.encodeEntity(v, g)
	if err != nil {
		// the bump already made any cached copy unreadable
		q.log.Warn("encode entity failed", Fields{"key": k, "err": err})
		return nil
	}
	if err := q.provider.Set(ctx, k, b, q.entityTTL); err != nil {
		q.backendError("set", k, err)
		return err
	}
	return nil
}

// AfterDelete bumps the entity's generation and removes the entity and the
// table count in one DelMany.
func (i *Invalidator[V, K]) AfterDelete(ctx context.Context, v V) error {
	q := i.q
	if !q.enabled {
		return nil
	}
	k := q.entityKey(q.table.ID(v))

	_, bumpErr := q.bumpGen(ctx, k)
	delErr := q.provider.DelMany(ctx, k, q.countKey)
	if delErr != nil {
		q.backendError("del", k, delErr)
	}
	switch {
	case bumpErr != nil && delErr != nil:
		q.hooks.InvalidateOutage(k, bumpErr, delErr)
		q.log.Error("invalidate outage", Fields{"key": k, "bump_err": bumpErr, "del_err": delErr})
		return &InvalidateError{Key: k, BumpErr: bumpErr, DelErr: delErr}
	case delErr != nil:
		return &InvalidateError{Key: k, DelErr: delErr}
	}
	// a failed bump alone is harmless once the entry is gone
	return nil
}

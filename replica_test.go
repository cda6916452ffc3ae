package querycache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	c "github.com/unkn0wn-root/querycache/codec"
	gen "github.com/unkn0wn-root/querycache/genstore"
	rp "github.com/unkn0wn-root/querycache/provider/redis"
)

// Two replicas share one redis for both entries and generations: an update
// applied through one is what the other reads next.
func TestReplicasShareRedis(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	p, err := rp.New(rp.Config{Client: rdb})
	if err != nil {
		t.Fatal(err)
	}
	src := newFakeSource(user{ID: 1, Name: "old"})

	replica := func() Query[user, int] {
		gs := gen.NewRedis(gen.RedisConfig{Client: rdb, Namespace: "users"})
		q, err := New[user, int](Options[user, int]{
			Table:    usersTable(),
			Source:   src,
			Provider: p,
			Codec:    c.Msgpack[user]{},
			GenStore: gs,
		})
		if err != nil {
			t.Fatal(err)
		}
		return q
	}
	a, b := replica(), replica()

	if got, _, _ := b.Get(ctx, 1); got.Name != "old" {
		t.Fatalf("b warm: %+v", got)
	}
	if err := a.Invalidator().AfterUpdate(ctx, user{ID: 1, Name: "new"}); err != nil {
		t.Fatalf("AfterUpdate: %v", err)
	}
	got, ok, err := b.Get(ctx, 1)
	if err != nil || !ok || got.Name != "new" {
		t.Fatalf("b after update: ok=%v err=%v got=%+v", ok, err, got)
	}
	if l, _, _, _ := src.calls(); l != 1 {
		t.Fatalf("the update should be served from redis, lookups=%d", l)
	}

	if err := a.Invalidator().AfterDelete(ctx, user{ID: 1}); err != nil {
		t.Fatalf("AfterDelete: %v", err)
	}
	if mr.Exists("db:get:users:1") {
		t.Fatalf("entity should be gone from redis")
	}
}

// Replicas built with default options on a shared provider keep their
// generations in it, so neither one discards what the other wrote.
func TestReplicasDefaultGenStoreOnSharedProvider(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	p, err := rp.New(rp.Config{Client: rdb})
	if err != nil {
		t.Fatal(err)
	}
	src := newFakeSource(user{ID: 1, Name: "old"})
	a := newTestQuery(t, p, src, nil)
	b := newTestQuery(t, p, src, nil)
	if _, ok := a.gen.(*gen.Shared); !ok {
		t.Fatalf("default genstore on redis = %T, want *genstore.Shared", a.gen)
	}

	if _, _, err := b.Get(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if err := a.Invalidator().AfterUpdate(ctx, user{ID: 1, Name: "new"}); err != nil {
		t.Fatalf("AfterUpdate: %v", err)
	}
	before, _, _, _ := src.calls()
	for i := 0; i < 3; i++ {
		for name, q := range map[string]*query[user, int]{"b": b, "a": a} {
			got, ok, err := q.Get(ctx, 1)
			if err != nil || !ok || got.Name != "new" {
				t.Fatalf("%s.Get: ok=%v err=%v got=%+v", name, ok, err, got)
			}
		}
	}
	if after, _, _, _ := src.calls(); after != before {
		t.Fatalf("store lookups after update = %d, want 0", after-before)
	}
	if !mr.Exists("gen:db:db:get:users:1") {
		t.Fatalf("generation should live in redis")
	}
}

package genstore

import (
	"context"
	"testing"
	"time"

	rp "github.com/unkn0wn-root/querycache/provider/redis"
	"github.com/unkn0wn-root/querycache/provider/ristretto"
)

func TestSharedBumpAndSnapshotMany(t *testing.T) {
	ctx := context.Background()
	p, err := ristretto.New(ristretto.Config{MaxItems: 100})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = p.Close(ctx) })
	s := NewShared(SharedConfig{Provider: p, Namespace: "db"})

	for i := 0; i < 2; i++ {
		if _, err := s.Bump(ctx, "db:get:users:1"); err != nil {
			t.Fatal(err)
		}
	}
	got, err := s.SnapshotMany(ctx, []string{"db:get:users:1", "db:get:users:2"})
	if err != nil {
		t.Fatal(err)
	}
	if got["db:get:users:1"] != 2 || got["db:get:users:2"] != 0 || len(got) != 2 {
		t.Fatalf("SnapshotMany = %v", got)
	}
}

// Two processes on one redis see each other's bumps.
func TestSharedAcrossReplicas(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	p, err := rp.New(rp.Config{Client: client})
	if err != nil {
		t.Fatal(err)
	}
	a := NewShared(SharedConfig{Provider: p, Namespace: "db", TTL: time.Hour})
	b := NewShared(SharedConfig{Provider: p, Namespace: "db", TTL: time.Hour})

	g, err := a.Bump(ctx, "db:get:users:1")
	if err != nil || g != 1 {
		t.Fatalf("Bump = %d, %v", g, err)
	}
	if got, err := b.Snapshot(ctx, "db:get:users:1"); err != nil || got != 1 {
		t.Fatalf("b.Snapshot = %d, %v; want 1", got, err)
	}
	if ttl := mr.TTL("gen:db:db:get:users:1"); ttl != time.Hour {
		t.Fatalf("counter TTL = %v", ttl)
	}
	if err := b.Close(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := a.Snapshot(ctx, "db:get:users:1"); err != nil {
		t.Fatalf("Close must leave the provider usable: %v", err)
	}
}

func TestSharedRejectsForeignValue(t *testing.T) {
	ctx := context.Background()
	p, err := ristretto.New(ristretto.Config{MaxItems: 100})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = p.Close(ctx) })
	s := NewShared(SharedConfig{Provider: p, Namespace: "db"})

	if err := p.Set(ctx, "gen:db:k", []byte("nope"), 0); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Snapshot(ctx, "k"); err == nil {
		t.Fatal("want parse error")
	}
}

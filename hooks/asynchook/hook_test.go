package asynchook

import (
	"sync"
	"testing"

	"github.com/unkn0wn-root/querycache"
)

type recorder struct {
	querycache.NopHooks
	mu    sync.Mutex
	heals []string
	block chan struct{}
}

func (r *recorder) SelfHeal(k, reason string) {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	r.heals = append(r.heals, k+"/"+reason)
	r.mu.Unlock()
}

func TestCloseDrainsQueue(t *testing.T) {
	rec := &recorder{}
	h := New(rec, 2, 16)
	for i := 0; i < 10; i++ {
		h.SelfHeal("k", "corrupt")
	}
	h.Close()

	if len(rec.heals) != 10 {
		t.Fatalf("expected 10 delivered events, got %d", len(rec.heals))
	}
	h.SelfHeal("k", "late")
	if h.Dropped() != 1 {
		t.Fatalf("events after Close should be dropped, dropped=%d", h.Dropped())
	}
}

func TestFullQueueDrops(t *testing.T) {
	rec := &recorder{block: make(chan struct{})}
	h := New(rec, 1, 1)

	// one event parks the worker, one fills the queue, the rest drop
	for i := 0; i < 5; i++ {
		h.SelfHeal("k", "corrupt")
	}
	close(rec.block)
	h.Close()

	if got := uint64(len(rec.heals)) + h.Dropped(); got != 5 {
		t.Fatalf("delivered+dropped should account for every event, got %d", got)
	}
	if h.Dropped() == 0 {
		t.Fatalf("expected drops with a full queue")
	}
}

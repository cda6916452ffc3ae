// Package sloghook logs querycache events to a *slog.Logger, with sampling
// for the high-volume ones.
package sloghook

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/querycache"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	SelfHealEvery uint64
	LookupEvery   uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	selfHealCtr atomic.Uint64
	lookupCtr   atomic.Uint64
}

var _ querycache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) Lookup(table, op string, hit bool) {
	if h.l == nil || !sample(h.opts.LookupEvery, &h.lookupCtr) {
		return
	}
	h.l.Debug("querycache.lookup",
		"table", table,
		"op", op,
		"hit", hit)
}

func (h *Hooks) SourceQuery(table, op string, n int) {
	if h.l == nil {
		return
	}
	h.l.Debug("querycache.source_query",
		"table", table,
		"op", op,
		"n", n)
}

func (h *Hooks) SelfHeal(storageKey, reason string) {
	if h.l == nil || !sample(h.opts.SelfHealEvery, &h.selfHealCtr) {
		return
	}
	h.l.Debug("querycache.self_heal",
		"key", h.redact(storageKey),
		"reason", reason)
}

func (h *Hooks) WriteBackSkipped(storageKey string) {
	if h.l == nil {
		return
	}
	h.l.Debug("querycache.write_back_skipped",
		"key", h.redact(storageKey))
}

func (h *Hooks) BackendError(op, storageKey string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("querycache.backend_error",
		"op", op,
		"key", h.redact(storageKey),
		"err", err)
}

func (h *Hooks) GenSnapshotError(count int, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("querycache.gen_snapshot_error",
		"count", count,
		"err", err)
}

func (h *Hooks) GenBumpError(storageKey string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("querycache.gen_bump_error",
		"key", h.redact(storageKey),
		"err", err)
}

func (h *Hooks) InvalidateOutage(key string, bumpErr, delErr error) {
	if h.l == nil {
		return
	}
	h.l.Error("querycache.invalidate_outage",
		"key", h.redact(key),
		"bump_err", bumpErr,
		"del_err", delErr)
}

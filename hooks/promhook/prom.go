// Package promhook counts querycache events with prometheus counters.
package promhook

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/unkn0wn-root/querycache"
)

// Hooks holds one counter vector per event. Storage keys are never used as
// label values; they are unbounded.
type Hooks struct {
	Lookups       *prometheus.CounterVec // table, op, hit
	SourceQueries *prometheus.CounterVec // table, op
	SourceRows    *prometheus.CounterVec // table, op
	SelfHeals     *prometheus.CounterVec // reason
	SkippedWrites prometheus.Counter
	BackendErrors *prometheus.CounterVec // op
	GenErrors     *prometheus.CounterVec // kind
	Outages       prometheus.Counter
}

var _ querycache.Hooks = (*Hooks)(nil)

// New creates the collectors under namespace and registers them on reg.
func New(reg prometheus.Registerer, namespace string) (*Hooks, error) {
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Subsystem: "querycache", Name: name, Help: help})
	}
	vec := func(name, help string, labels ...string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Subsystem: "querycache", Name: name, Help: help}, labels)
	}

	h := &Hooks{
		Lookups:       vec("lookups_total", "Cache probes by table, operation and outcome.", "table", "op", "hit"),
		SourceQueries: vec("source_queries_total", "Round trips to the source of truth.", "table", "op"),
		SourceRows:    vec("source_requested_total", "Identifiers requested from the source of truth.", "table", "op"),
		SelfHeals:     vec("self_heals_total", "Entries deleted on read.", "reason"),
		SkippedWrites: counter("write_back_skipped_total", "Read-through write-backs dropped after a generation moved."),
		BackendErrors: vec("backend_errors_total", "Cache backend I/O failures.", "op"),
		GenErrors:     vec("gen_errors_total", "Generation store failures.", "kind"),
		Outages:       counter("invalidate_outages_total", "Writes that could neither bump nor delete."),
	}
	for _, c := range []prometheus.Collector{
		h.Lookups, h.SourceQueries, h.SourceRows, h.SelfHeals,
		h.SkippedWrites, h.BackendErrors, h.GenErrors, h.Outages,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// MustNew is New for startup code.
func MustNew(reg prometheus.Registerer, namespace string) *Hooks {
	h, err := New(reg, namespace)
	if err != nil {
		panic(err)
	}
	return h
}

func (h *Hooks) Lookup(table, op string, hit bool) {
	h.Lookups.WithLabelValues(table, op, strconv.FormatBool(hit)).Inc()
}

func (h *Hooks) SourceQuery(table, op string, n int) {
	h.SourceQueries.WithLabelValues(table, op).Inc()
	h.SourceRows.WithLabelValues(table, op).Add(float64(n))
}

func (h *Hooks) SelfHeal(_, reason string)             { h.SelfHeals.WithLabelValues(reason).Inc() }
func (h *Hooks) WriteBackSkipped(string)               { h.SkippedWrites.Inc() }
func (h *Hooks) BackendError(op, _ string, _ error)    { h.BackendErrors.WithLabelValues(op).Inc() }
func (h *Hooks) GenSnapshotError(int, error)           { h.GenErrors.WithLabelValues("snapshot").Inc() }
func (h *Hooks) GenBumpError(string, error)            { h.GenErrors.WithLabelValues("bump").Inc() }
func (h *Hooks) InvalidateOutage(string, error, error) { h.Outages.Inc() }

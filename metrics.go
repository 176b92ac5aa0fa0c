package meshkit

import (
	"sync/atomic"
	"time"

	"github.com/hupe1980/meshkit/operation"
	"github.com/hupe1980/meshkit/scheduler"
)

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies;
// see the metrics package for Prometheus.
type BasicMetricsCollector struct {
	Attempts    atomic.Int64
	Committed   atomic.Int64
	Rejected    atomic.Int64
	Stale       atomic.Int64
	Deferred    atomic.Int64
	Unsupported atomic.Int64
	TotalNanos  atomic.Int64
	MaxQueue    atomic.Int64

	perKind [operation.NumKinds]atomic.Int64
}

var _ scheduler.MetricsObserver = (*BasicMetricsCollector)(nil)

// ObserveOperation implements scheduler.MetricsObserver.
func (b *BasicMetricsCollector) ObserveOperation(kind operation.Kind, outcome operation.Outcome, d time.Duration) {
	b.Attempts.Add(1)
	b.TotalNanos.Add(d.Nanoseconds())
	if kind < operation.NumKinds {
		b.perKind[kind].Add(1)
	}
	switch outcome {
	case operation.Committed:
		b.Committed.Add(1)
	case operation.Rejected:
		b.Rejected.Add(1)
	case operation.Stale:
		b.Stale.Add(1)
	case operation.Deferred:
		b.Deferred.Add(1)
	case operation.Unsupported:
		b.Unsupported.Add(1)
	}
}

// ObserveQueueDepth implements scheduler.MetricsObserver. Only the high-water
// mark over all workers is kept.
func (b *BasicMetricsCollector) ObserveQueueDepth(_, depth int) {
	d := int64(depth)
	for {
		cur := b.MaxQueue.Load()
		if d <= cur || b.MaxQueue.CompareAndSwap(cur, d) {
			return
		}
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	st := BasicMetricsStats{
		Attempts:    b.Attempts.Load(),
		Committed:   b.Committed.Load(),
		Rejected:    b.Rejected.Load(),
		Stale:       b.Stale.Load(),
		Deferred:    b.Deferred.Load(),
		Unsupported: b.Unsupported.Load(),
		MaxQueue:    b.MaxQueue.Load(),
		PerKind:     make(map[operation.Kind]int64),
	}
	if st.Attempts > 0 {
		st.AvgNanos = b.TotalNanos.Load() / st.Attempts
	}
	for k := range operation.Kind(operation.NumKinds) {
		if n := b.perKind[k].Load(); n > 0 {
			st.PerKind[k] = n
		}
	}
	return st
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	Attempts    int64
	Committed   int64
	Rejected    int64
	Stale       int64
	Deferred    int64
	Unsupported int64
	AvgNanos    int64
	MaxQueue    int64
	PerKind     map[operation.Kind]int64
}

// Package metrics exports scheduler measurements to Prometheus.
package metrics

import (
	"fmt"
	"strconv"
	"time"

	"github.com/hupe1980/meshkit/operation"
	"github.com/hupe1980/meshkit/scheduler"
	"github.com/prometheus/client_golang/prometheus"
)

// Collector implements scheduler.MetricsObserver with Prometheus vectors.
type Collector struct {
	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	queueDepth *prometheus.GaugeVec
}

var _ scheduler.MetricsObserver = (*Collector)(nil)

// NewCollector creates the meshkit metrics and registers them with reg. A nil
// reg leaves them unregistered.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meshkit_operations_total",
			Help: "Executed operations by kind and outcome",
		}, []string{"kind", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "meshkit_operation_duration_seconds",
			Help:    "Latency of a single operation attempt",
			Buckets: prometheus.ExponentialBuckets(1e-6, 4, 10),
		}, []string{"kind"}),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "meshkit_queue_depth",
			Help: "Pending candidates per worker",
		}, []string{"worker"}),
	}
	if reg == nil {
		return c, nil
	}
	for _, col := range []prometheus.Collector{c.operations, c.latency, c.queueDepth} {
		if err := reg.Register(col); err != nil {
			return nil, fmt.Errorf("metrics: register: %w", err)
		}
	}
	return c, nil
}

// ObserveOperation implements scheduler.MetricsObserver.
func (c *Collector) ObserveOperation(kind operation.Kind, outcome operation.Outcome, d time.Duration) {
	k := kind.String()
	c.operations.WithLabelValues(k, outcome.String()).Inc()
	c.latency.WithLabelValues(k).Observe(d.Seconds())
}

// ObserveQueueDepth implements scheduler.MetricsObserver.
func (c *Collector) ObserveQueueDepth(worker, depth int) {
	c.queueDepth.WithLabelValues(strconv.Itoa(worker)).Set(float64(depth))
}

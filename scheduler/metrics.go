package scheduler

import (
	"time"

	"github.com/hupe1980/meshkit/operation"
)

// MetricsObserver receives per-operation measurements from every worker.
// Implementations must be safe for concurrent use.
type MetricsObserver interface {
	// ObserveOperation is called after each Execute.
	ObserveOperation(kind operation.Kind, outcome operation.Outcome, d time.Duration)
	// ObserveQueueDepth reports a worker's queue length after each step.
	ObserveQueueDepth(worker, depth int)
}

// NoopMetrics discards all observations.
type NoopMetrics struct{}

func (NoopMetrics) ObserveOperation(operation.Kind, operation.Outcome, time.Duration) {}
func (NoopMetrics) ObserveQueueDepth(int, int)                                        {}

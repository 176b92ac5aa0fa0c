package scheduler

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hupe1980/meshkit/mesh"
	"github.com/hupe1980/meshkit/model"
	"github.com/hupe1980/meshkit/operation"
)

// ExecutionPolicy selects how candidates are distributed over workers.
type ExecutionPolicy uint8

const (
	// Sequential runs a single worker that takes no locks.
	Sequential ExecutionPolicy = iota
	// Partitioned runs NumThreads workers with region locking.
	Partitioned
)

func (p ExecutionPolicy) String() string {
	switch p {
	case Sequential:
		return "sequential"
	case Partitioned:
		return "partitioned"
	default:
		return fmt.Sprintf("ExecutionPolicy(%d)", p)
	}
}

// ParsePolicy parses "sequential" or "partitioned".
func ParsePolicy(s string) (ExecutionPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sequential":
		return Sequential, nil
	case "partitioned", "parallel":
		return Partitioned, nil
	default:
		return Sequential, fmt.Errorf("scheduler: unknown policy %q", s)
	}
}

// Options configures a Scheduler.
type Options struct {
	// NumThreads is the number of workers in Partitioned mode. Zero selects
	// Sequential mode regardless of Policy.
	NumThreads int
	Policy     ExecutionPolicy

	// MaxRetries bounds how often a deferred candidate is re-queued.
	MaxRetries int
	// RetryPenalty is subtracted from a candidate's priority on each deferral.
	RetryPenalty float64

	// Partition maps the cell of a seed to a worker in [0, n). Nil assigns
	// contiguous blocks of cell ids.
	Partition func(cell model.ElementID, n int) int

	// Stop ends the pass once it returns true. It is checked every
	// StopCheckEvery commits.
	Stop           func(topo mesh.Topology) bool
	StopCheckEvery int

	Logger   *slog.Logger
	Metrics  MetricsObserver
	Recorder operation.Recorder

	// ProgressInterval throttles progress log lines. Zero disables them.
	ProgressInterval time.Duration
}

// DefaultOptions returns the default scheduler options.
func DefaultOptions() Options {
	return Options{
		Policy:         Sequential,
		MaxRetries:     8,
		RetryPenalty:   1.0,
		StopCheckEvery: 100,
		Logger:         slog.New(slog.DiscardHandler),
		Metrics:        NoopMetrics{},
	}
}

// workers returns the effective worker count and whether workers lock.
func (o Options) workers() (int, bool) {
	if o.Policy == Sequential || o.NumThreads <= 0 {
		return 1, false
	}
	return o.NumThreads, true
}

// blockPartition assigns contiguous id ranges of a mesh with size cells.
func blockPartition(size int) func(model.ElementID, int) int {
	return func(cell model.ElementID, n int) int {
		if size <= 0 || cell < 0 {
			return 0
		}
		return int(int64(cell) * int64(n) / int64(size))
	}
}

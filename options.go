package meshkit

import (
	"log/slog"
	"time"

	"github.com/hupe1980/meshkit/mesh"
	"github.com/hupe1980/meshkit/operation"
	"github.com/hupe1980/meshkit/scheduler"
)

type options struct {
	logger    *Logger
	metrics   scheduler.MetricsObserver
	recorder  operation.Recorder
	config    *scheduler.Config
	scheduler []func(*scheduler.Options)
}

// Option configures Run and Consolidate.
type Option func(*options)

// WithThreads runs n partitioned workers. n <= 0 selects sequential execution.
func WithThreads(n int) Option {
	return func(o *options) {
		o.scheduler = append(o.scheduler, func(so *scheduler.Options) {
			so.NumThreads = n
			so.Policy = scheduler.Partitioned
			if n <= 0 {
				so.Policy = scheduler.Sequential
			}
		})
	}
}

// WithPolicy sets the execution policy without changing the thread count.
func WithPolicy(p scheduler.ExecutionPolicy) Option {
	return func(o *options) {
		o.scheduler = append(o.scheduler, func(so *scheduler.Options) {
			so.Policy = p
		})
	}
}

// WithRetries bounds deferrals per candidate and sets the priority penalty
// applied on each.
func WithRetries(n int, penalty float64) Option {
	return func(o *options) {
		o.scheduler = append(o.scheduler, func(so *scheduler.Options) {
			so.MaxRetries = n
			so.RetryPenalty = penalty
		})
	}
}

// WithStop ends a pass once stop reports true. It is evaluated every
// `every` commits.
func WithStop(stop func(mesh.Topology) bool, every int) Option {
	return func(o *options) {
		o.scheduler = append(o.scheduler, func(so *scheduler.Options) {
			so.Stop = stop
			so.StopCheckEvery = every
		})
	}
}

// WithProgress logs pass progress at most once per interval.
func WithProgress(interval time.Duration) Option {
	return func(o *options) {
		o.scheduler = append(o.scheduler, func(so *scheduler.Options) {
			so.ProgressInterval = interval
		})
	}
}

// WithLogger configures structured logging.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := meshkit.NewJSONLogger(slog.LevelInfo)
//	stats, err := meshkit.Run(ctx, topo, table, seeds, meshkit.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMetrics configures a metrics observer, for example a
// BasicMetricsCollector or a metrics.Collector. Pass nil to disable.
func WithMetrics(m scheduler.MetricsObserver) Option {
	return func(o *options) {
		if m == nil {
			m = scheduler.NoopMetrics{}
		}
		o.metrics = m
	}
}

// WithRecorder receives every committed operation, e.g. an oplog.Writer.
func WithRecorder(r operation.Recorder) Option {
	return func(o *options) {
		o.recorder = r
	}
}

// WithConfig applies a declarative scheduler configuration. Options given
// after it override its fields.
func WithConfig(cfg scheduler.Config) Option {
	return func(o *options) {
		o.config = &cfg
		o.scheduler = append(o.scheduler, cfg.Options()...)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		logger:  NoopLogger(),
		metrics: scheduler.NoopMetrics{},
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}

// schedulerOptions returns the option funcs for scheduler.New, with the
// ambient settings applied last.
func (o options) schedulerOptions() []func(*scheduler.Options) {
	fns := append([]func(*scheduler.Options){}, o.scheduler...)
	return append(fns, func(so *scheduler.Options) {
		so.Logger = o.logger.Logger
		so.Metrics = o.metrics
		so.Recorder = o.recorder
	})
}

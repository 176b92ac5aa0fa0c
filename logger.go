package meshkit

import (
	"context"
	"log/slog"
	"os"

	"github.com/hupe1980/meshkit/operation"
	"github.com/hupe1980/meshkit/scheduler"
)

// Logger wraps slog.Logger with meshkit-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return NewLogger(slog.DiscardHandler)
}

// WithPass tags every record with a pass name.
func (l *Logger) WithPass(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("pass", name),
	}
}

// WithWorker tags every record with a worker id.
func (l *Logger) WithWorker(id int) *Logger {
	return &Logger{
		Logger: l.Logger.With("worker", id),
	}
}

// LogPass logs the summary of a scheduler run.
func (l *Logger) LogPass(ctx context.Context, st scheduler.Stats, err error) {
	if err != nil {
		l.ErrorContext(ctx, "pass failed",
			"policy", st.Policy.String(),
			"successes", st.Successes,
			"attempts", st.Attempts,
			"error", err,
		)
		return
	}
	if st.Exhausted > 0 {
		l.WarnContext(ctx, "pass completed with dropped candidates",
			"policy", st.Policy.String(),
			"workers", st.Workers,
			"successes", st.Successes,
			"exhausted", st.Exhausted,
			"duration", st.Duration,
		)
		return
	}
	l.InfoContext(ctx, "pass completed",
		"policy", st.Policy.String(),
		"workers", st.Workers,
		"successes", st.Successes,
		"attempts", st.Attempts,
		"rejections", st.Rejections,
		"stopped", st.Stopped,
		"duration", st.Duration,
	)
}

// LogOperation logs a single executed operation. Anything short of a
// commit is only interesting at debug level.
func (l *Logger) LogOperation(ctx context.Context, kind operation.Kind, rep operation.Report, err error) {
	switch {
	case err != nil:
		l.ErrorContext(ctx, "operation aborted",
			"kind", kind.String(),
			"state", rep.State.String(),
			"error", err,
		)
	case rep.Outcome == operation.Committed:
		l.DebugContext(ctx, "operation committed",
			"kind", kind.String(),
			"spawned", len(rep.Spawned),
		)
	default:
		l.DebugContext(ctx, "operation not committed",
			"kind", kind.String(),
			"outcome", rep.Outcome.String(),
			"state", rep.State.String(),
			"reason", rep.Reason,
		)
	}
}

// LogConsolidate logs a consolidation.
func (l *Logger) LogConsolidate(ctx context.Context, vertices, cells int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "consolidation failed",
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "mesh consolidated",
		"vertices", vertices,
		"cells", cells,
	)
}

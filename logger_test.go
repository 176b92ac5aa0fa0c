package meshkit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/hupe1980/meshkit/operation"
	"github.com/hupe1980/meshkit/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lastRecord(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	var rec map[string]any
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &rec))
	return rec
}

func TestLogPass(t *testing.T) {
	var buf bytes.Buffer
	l := bufferLogger(&buf).WithPass("refine")
	ctx := context.Background()

	l.LogPass(ctx, scheduler.Stats{Successes: 3, Workers: 2, Policy: scheduler.Partitioned, Duration: time.Second}, nil)
	rec := lastRecord(t, &buf)
	assert.Equal(t, "pass completed", rec["msg"])
	assert.Equal(t, "refine", rec["pass"])
	assert.Equal(t, "partitioned", rec["policy"])
	assert.EqualValues(t, 3, rec["successes"])

	l.LogPass(ctx, scheduler.Stats{Exhausted: 1}, nil)
	assert.Equal(t, "WARN", lastRecord(t, &buf)["level"])

	l.LogPass(ctx, scheduler.Stats{}, errors.New("boom"))
	rec = lastRecord(t, &buf)
	assert.Equal(t, "ERROR", rec["level"])
	assert.Equal(t, "boom", rec["error"])
}

func TestLogOperation(t *testing.T) {
	var buf bytes.Buffer
	l := bufferLogger(&buf).WithWorker(4)
	ctx := context.Background()

	l.LogOperation(ctx, operation.EdgeSwap, operation.Report{Outcome: operation.Rejected, State: operation.StateRolledBack}, nil)
	rec := lastRecord(t, &buf)
	assert.Equal(t, "DEBUG", rec["level"])
	assert.Equal(t, "edge_swap", rec["kind"])
	assert.Equal(t, "rejected", rec["outcome"])
	assert.Equal(t, "rolled_back", rec["state"])
	assert.EqualValues(t, 4, rec["worker"])

	l.LogOperation(ctx, operation.EdgeSplit, operation.Report{}, errors.New("invariant"))
	assert.Equal(t, "ERROR", lastRecord(t, &buf)["level"])
}

func TestLogConsolidate(t *testing.T) {
	var buf bytes.Buffer
	l := bufferLogger(&buf)
	l.LogConsolidate(context.Background(), 10, 12, nil)
	rec := lastRecord(t, &buf)
	assert.Equal(t, "mesh consolidated", rec["msg"])
	assert.EqualValues(t, 12, rec["cells"])

	l.LogConsolidate(context.Background(), 0, 0, ErrActiveScopes)
	assert.Equal(t, "ERROR", lastRecord(t, &buf)["level"])
}

func TestNoopLogger(t *testing.T) {
	l := NoopLogger()
	assert.False(t, l.Enabled(context.Background(), slog.LevelError))
	assert.NotNil(t, NewLogger(nil))
	assert.NotNil(t, NewJSONLogger(slog.LevelInfo))
	assert.NotNil(t, NewTextLogger(slog.LevelDebug))
}

package meshkit

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/hupe1980/meshkit/mesh"
	"github.com/hupe1980/meshkit/model"
	"github.com/hupe1980/meshkit/operation"
	"github.com/hupe1980/meshkit/oplog"
	"github.com/hupe1980/meshkit/scheduler"
	"github.com/hupe1980/meshkit/simplex"
	"github.com/hupe1980/meshkit/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGrid(t *testing.T, n int) *mesh.TriMesh {
	t.Helper()
	faces, _ := testutil.GridTriangles(n, n)
	m, err := mesh.NewTriMesh(faces)
	require.NoError(t, err)
	return m
}

func bufferLogger(buf *bytes.Buffer) *Logger {
	return NewLogger(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestRun(t *testing.T) {
	m := newGrid(t, 4)
	var logs bytes.Buffer
	collector := &BasicMetricsCollector{}

	st, err := Run(context.Background(), m, operation.Table{operation.EdgeSplit: {}},
		Seeds(m, model.Edge, operation.EdgeSplit),
		WithThreads(4),
		WithRetries(1000, 0.5),
		WithLogger(bufferLogger(&logs)),
		WithMetrics(collector),
	)
	require.NoError(t, err)
	assert.Equal(t, scheduler.Partitioned, st.Policy)
	assert.Equal(t, 4, st.Workers)
	assert.Positive(t, st.Successes)
	require.NoError(t, m.Validate())

	stats := collector.GetStats()
	assert.Equal(t, st.Attempts, stats.Attempts)
	assert.Equal(t, st.Successes, stats.Committed)
	assert.Equal(t, st.Attempts, stats.PerKind[operation.EdgeSplit])
	assert.Contains(t, logs.String(), `"msg":"pass completed"`)
}

func TestRunWithConfig(t *testing.T) {
	cfg, err := LoadConfig(strings.NewReader("num_threads: 2\npolicy: partitioned\n"))
	require.NoError(t, err)

	m := newGrid(t, 2)
	st, err := Run(context.Background(), m, operation.Table{operation.EdgeSwap: {}},
		Seeds(m, model.Edge, operation.EdgeSwap), WithConfig(cfg))
	require.NoError(t, err)
	assert.Equal(t, 2, st.Workers)

	// Later options win.
	st, err = Run(context.Background(), m, operation.Table{}, nil, WithConfig(cfg), WithThreads(0))
	require.NoError(t, err)
	assert.Equal(t, scheduler.Sequential, st.Policy)

	_, err = LoadConfig(strings.NewReader("policy: sideways\n"))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = Run(context.Background(), m, operation.Table{}, nil, WithConfig(scheduler.Config{NumThreads: -3}))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestRunTranslatesInvariantViolations(t *testing.T) {
	m := newGrid(t, 2)
	var logs bytes.Buffer
	table := operation.Table{operation.EdgeSplit: {
		Update: func(*mesh.WorkerContext, simplex.Handle) error {
			panic(&mesh.InvariantError{Op: "update", Msg: "boom"})
		},
	}}
	_, err := Run(context.Background(), m, table, Seeds(m, model.Edge, operation.EdgeSplit),
		WithLogger(bufferLogger(&logs)))

	var iv *ErrInvariantViolation
	require.ErrorAs(t, err, &iv)
	assert.Equal(t, "update", iv.Op)
	var ie *mesh.InvariantError
	assert.ErrorAs(t, err, &ie)
	assert.Contains(t, logs.String(), `"msg":"pass failed"`)
}

func TestRunRecorder(t *testing.T) {
	m, err := mesh.NewEdgeMesh(testutil.LoopEdges(8, 0))
	require.NoError(t, err)
	var buf bytes.Buffer
	w, err := oplog.NewWriter(&buf, func(o *oplog.Options) { o.Compression = oplog.CompressionZSTD })
	require.NoError(t, err)

	st, err := Run(context.Background(), m, operation.Table{operation.EdgeCollapse: {}},
		Seeds(m, model.Edge, operation.EdgeCollapse), WithRecorder(w))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	var n int64
	require.NoError(t, oplog.Replay(&buf, func(e oplog.Entry) error {
		n++
		assert.Len(t, e.Deleted[model.Vertex], 1)
		return nil
	}))
	assert.Equal(t, st.Successes, n)
	assert.Equal(t, 8-int(n), m.Count(model.Vertex))
}

func TestApply(t *testing.T) {
	m := newGrid(t, 2)
	var logs bytes.Buffer
	collector := &BasicMetricsCollector{}
	h := m.Handles(model.Edge)[0]

	rep, err := Apply(context.Background(), m, operation.Table{operation.EdgeSplit: {}},
		operation.Candidate{Kind: operation.EdgeSplit, Handle: h},
		WithLogger(bufferLogger(&logs)), WithMetrics(collector))
	require.NoError(t, err)
	assert.Equal(t, operation.Committed, rep.Outcome)
	assert.Equal(t, int64(1), collector.GetStats().Committed)
	assert.Contains(t, logs.String(), "operation committed")

	rep, err = Apply(context.Background(), m, operation.Table{operation.EdgeSplit: {}},
		operation.Candidate{Kind: operation.EdgeSplit, Handle: h},
		WithLogger(bufferLogger(&logs)))
	require.NoError(t, err)
	assert.Equal(t, operation.Stale, rep.Outcome)
	assert.ErrorIs(t, rep.Reason, ErrStaleHandle)
	assert.Contains(t, logs.String(), "operation not committed")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Apply(ctx, m, operation.Table{}, operation.Candidate{Handle: h})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConsolidate(t *testing.T) {
	m := newGrid(t, 3)
	_, err := Run(context.Background(), m, operation.Table{operation.EdgeCollapse: {}},
		Seeds(m, model.Edge, operation.EdgeCollapse)[:6])
	require.NoError(t, err)

	vertices, faces := m.Count(model.Vertex), m.Count(model.Face)
	var logs bytes.Buffer
	require.NoError(t, Consolidate(context.Background(), m, WithLogger(bufferLogger(&logs))))
	assert.Equal(t, vertices, m.Size(model.Vertex))
	assert.Equal(t, faces, m.Size(model.Face))
	assert.Contains(t, logs.String(), "mesh consolidated")
	require.NoError(t, m.Validate())

	c := mesh.NewWorkerContext(m.Mesh, 0, false)
	c.Stack().Push()
	defer c.Stack().Pop(false)
	assert.ErrorIs(t, Consolidate(context.Background(), m), ErrActiveScopes)
}

func TestSeeds(t *testing.T) {
	m := newGrid(t, 1)
	seeds := Seeds(m, model.Vertex, operation.VertexSmooth, operation.EdgeSplit)
	assert.Len(t, seeds, 8)
	assert.Equal(t, operation.VertexSmooth, seeds[0].Kind)
	assert.Equal(t, operation.EdgeSplit, seeds[1].Kind)
	assert.Empty(t, Seeds(m, model.Edge))
}

func TestTranslateError(t *testing.T) {
	assert.NoError(t, translateError(nil))

	plain := errors.New("plain")
	assert.Same(t, plain, translateError(plain))

	err := translateError(mesh.Recover(&mesh.InvariantError{Op: "switch", Msg: "bad"}, nil))
	var iv *ErrInvariantViolation
	require.ErrorAs(t, err, &iv)
	assert.Equal(t, "invariant violation in switch: bad", iv.Error())
}

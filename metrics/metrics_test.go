package metrics

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/hupe1980/meshkit/mesh"
	"github.com/hupe1980/meshkit/model"
	"github.com/hupe1980/meshkit/operation"
	"github.com/hupe1980/meshkit/scheduler"
	"github.com/hupe1980/meshkit/testutil"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	c, err := NewCollector(reg)
	require.NoError(t, err)

	c.ObserveOperation(operation.EdgeSplit, operation.Committed, time.Millisecond)
	c.ObserveOperation(operation.EdgeSplit, operation.Committed, 2*time.Millisecond)
	c.ObserveOperation(operation.EdgeSwap, operation.Deferred, time.Microsecond)
	c.ObserveQueueDepth(0, 7)
	c.ObserveQueueDepth(1, 3)
	c.ObserveQueueDepth(0, 5)

	assert.Equal(t, 2.0, promtest.ToFloat64(c.operations.WithLabelValues("edge_split", "committed")))
	assert.Equal(t, 1.0, promtest.ToFloat64(c.operations.WithLabelValues("edge_swap", "deferred")))
	assert.Equal(t, 5.0, promtest.ToFloat64(c.queueDepth.WithLabelValues("0")))
	assert.Equal(t, 2, promtest.CollectAndCount(c.latency))

	expected := `
# HELP meshkit_queue_depth Pending candidates per worker
# TYPE meshkit_queue_depth gauge
meshkit_queue_depth{worker="0"} 5
meshkit_queue_depth{worker="1"} 3
`
	require.NoError(t, promtest.GatherAndCompare(reg, strings.NewReader(expected), "meshkit_queue_depth"))
}

func TestDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewCollector(reg)
	require.NoError(t, err)
	_, err = NewCollector(reg)
	assert.Error(t, err)

	c, err := NewCollector(nil)
	require.NoError(t, err)
	c.ObserveQueueDepth(2, 1)
}

func TestSchedulerIntegration(t *testing.T) {
	m, err := mesh.NewEdgeMesh(testutil.DisjointLoops(2, 6))
	require.NoError(t, err)
	c, err := NewCollector(prometheus.NewRegistry())
	require.NoError(t, err)

	var seeds []operation.Candidate
	for _, h := range m.Handles(model.Edge) {
		seeds = append(seeds, operation.Candidate{Kind: operation.EdgeCollapse, Handle: h})
	}
	st, err := scheduler.New(m, operation.Table{operation.EdgeCollapse: {}}, func(o *scheduler.Options) {
		o.Metrics = c
	}).Run(context.Background(), seeds)
	require.NoError(t, err)

	total := 0.0
	for _, o := range []operation.Outcome{operation.Committed, operation.Rejected, operation.Stale, operation.Deferred, operation.Unsupported} {
		total += promtest.ToFloat64(c.operations.WithLabelValues("edge_collapse", o.String()))
	}
	assert.Equal(t, float64(st.Attempts), total)
	assert.Equal(t, float64(st.Successes), promtest.ToFloat64(c.operations.WithLabelValues("edge_collapse", "committed")))
	assert.Equal(t, 0.0, promtest.ToFloat64(c.queueDepth.WithLabelValues("0")))
}

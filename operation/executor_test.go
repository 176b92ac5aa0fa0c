package operation

import (
	"errors"
	"fmt"
	"testing"

	"github.com/hupe1980/meshkit/attribute"
	"github.com/hupe1980/meshkit/mesh"
	"github.com/hupe1980/meshkit/model"
	"github.com/hupe1980/meshkit/simplex"
	"github.com/hupe1980/meshkit/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLoop(t *testing.T, n int) (*mesh.EdgeMesh, attribute.Handle[float64]) {
	t.Helper()
	m, err := mesh.NewEdgeMesh(testutil.LoopEdges(n, 0))
	require.NoError(t, err)
	val, err := attribute.Register(m.Store(), model.Vertex, "value", 1, 0.0)
	require.NoError(t, err)
	c := mesh.NewWorkerContext(m.Mesh, 0, false)
	c.Stack().Push()
	for v := range model.ElementID(n) {
		require.NoError(t, attribute.WriteAt(c.Stack(), val, v, 0, float64(v)))
	}
	m.Commit(c, nil)
	return m, val
}

func newGrid(t *testing.T, nx, ny int) (*mesh.TriMesh, attribute.Handle[float64]) {
	t.Helper()
	faces, pos := testutil.GridTriangles(nx, ny)
	m, err := mesh.NewTriMesh(faces)
	require.NoError(t, err)
	p, err := attribute.Register(m.Store(), model.Vertex, "position", 2, 0.0)
	require.NoError(t, err)
	c := mesh.NewWorkerContext(m.Mesh, 0, false)
	c.Stack().Push()
	for v, xy := range pos {
		require.NoError(t, attribute.Write(c.Stack(), p, model.ElementID(v), xy[:]))
	}
	m.Commit(c, nil)
	return m, p
}

func newTetGrid(t *testing.T, n int) (*mesh.TetMesh, attribute.Handle[float64]) {
	t.Helper()
	tets, pos := testutil.GridTets(n, n, n)
	m, err := mesh.NewTetMesh(tets)
	require.NoError(t, err)
	p, err := attribute.Register(m.Store(), model.Vertex, "position", 3, 0.0)
	require.NoError(t, err)
	c := mesh.NewWorkerContext(m.Mesh, 0, false)
	c.Stack().Push()
	for v, xyz := range pos {
		require.NoError(t, attribute.Write(c.Stack(), p, model.ElementID(v), xyz[:]))
	}
	m.Commit(c, nil)
	return m, p
}

func base(topo mesh.Topology) *mesh.WorkerContext {
	return mesh.NewWorkerContext(topo.Base(), -1, false)
}

// edgeBetween returns a handle at vertex a on the edge (a, b).
func edgeBetween(t *testing.T, topo mesh.Topology, a, b model.ElementID) simplex.Handle {
	t.Helper()
	c := base(topo)
	for _, h := range topo.Handles(model.Edge) {
		other, _ := topo.Switch(c, h, model.Vertex)
		for _, x := range []simplex.Handle{h, other} {
			y, _ := topo.Switch(c, x, model.Vertex)
			if topo.ID(c, x, model.Vertex) == a && topo.ID(c, y, model.Vertex) == b {
				return x
			}
		}
	}
	t.Fatalf("no edge (%d,%d)", a, b)
	return simplex.Null
}

func TestEdgeLoopScenario(t *testing.T) {
	for _, accept := range []bool{false, true} {
		t.Run(fmt.Sprintf("after=%v", accept), func(t *testing.T) {
			m, val := newLoop(t, 4)
			before := m.Digest()
			table := Table{EdgeCollapse: {
				Update: func(c *mesh.WorkerContext, out simplex.Handle) error {
					return attribute.WriteAt(c.Stack(), val, m.ID(c, out, model.Vertex), 0, 42.0)
				},
				After: func(*mesh.WorkerContext, simplex.Handle) bool { return accept },
			}}
			ex := New(m, table)
			h := edgeBetween(t, m, 0, 1)

			rep, err := ex.Execute(mesh.NewWorkerContext(m.Mesh, 0, true), Candidate{Kind: EdgeCollapse, Handle: h})
			require.NoError(t, err)
			assert.Equal(t, 0, m.LockedCount())
			require.NoError(t, m.Validate())

			if !accept {
				assert.Equal(t, Rejected, rep.Outcome)
				assert.Equal(t, StateRolledBack, rep.State)
				assert.Equal(t, 4, m.Count(model.Edge))
				assert.Equal(t, 4, m.Count(model.Vertex))
				assert.Equal(t, before, m.Digest())
				for v := range model.ElementID(4) {
					x, err := val.At(v, 0)
					require.NoError(t, err)
					assert.Equal(t, float64(v), x)
				}
				return
			}
			assert.Equal(t, Committed, rep.Outcome)
			assert.Equal(t, StateCommitted, rep.State)
			assert.Equal(t, 3, m.Count(model.Edge))
			assert.Equal(t, 3, m.Count(model.Vertex))
			survivor := m.ID(base(m), rep.Result, model.Vertex)
			assert.Equal(t, model.ElementID(1), survivor)
			x, err := val.At(survivor, 0)
			require.NoError(t, err)
			assert.Equal(t, 42.0, x)
		})
	}
}

func TestRollbackAtomicity(t *testing.T) {
	kinds := []Kind{EdgeSplit, EdgeCollapse, EdgeSwap, VertexSmooth, FaceSwap}
	meshes := map[string]func(t *testing.T) (mesh.Topology, attribute.Handle[float64]){
		"edge loop": func(t *testing.T) (mesh.Topology, attribute.Handle[float64]) {
			m, v := newLoop(t, 6)
			return m, v
		},
		"triangle grid": func(t *testing.T) (mesh.Topology, attribute.Handle[float64]) {
			m, p := newGrid(t, 3, 3)
			return m, p
		},
		"tetrahedral grid": func(t *testing.T) (mesh.Topology, attribute.Handle[float64]) {
			m, p := newTetGrid(t, 2)
			return m, p
		},
	}
	for name, build := range meshes {
		t.Run(name, func(t *testing.T) {
			topo, col := build(t)
			table := Table{}
			for _, k := range kinds {
				table[k] = Hooks{
					Update: func(c *mesh.WorkerContext, out simplex.Handle) error {
						return attribute.WriteAt(c.Stack(), col, topo.ID(c, out, model.Vertex), 0, -1.0)
					},
					After: func(*mesh.WorkerContext, simplex.Handle) bool { return false },
				}
			}
			ex := New(topo, table)
			m := topo.Base()
			before := topo.Digest()
			c := mesh.NewWorkerContext(m, 0, true)

			edges := topo.Handles(model.Edge)
			require.NotEmpty(t, edges)
			for _, h := range edges {
				flipped, _ := topo.Switch(base(topo), h, model.Vertex)
				for _, x := range []simplex.Handle{h, flipped} {
					for _, k := range kinds {
						rep, err := ex.Execute(c, Candidate{Kind: k, Handle: x})
						require.NoError(t, err)
						require.Contains(t, []Outcome{Rejected, Unsupported}, rep.Outcome, "%s on %s", k, x)
						require.Equal(t, before, topo.Digest(), "%s on %s", k, x)
					}
				}
			}
			assert.Equal(t, 0, m.LockedCount())
			assert.Equal(t, int64(0), m.Store().ActiveScopes())
			require.NoError(t, topo.Validate())
		})
	}
}

func TestBeforeRejects(t *testing.T) {
	m, _ := newGrid(t, 2, 2)
	before := m.Digest()
	var seen simplex.Handle
	ex := New(m, Table{EdgeSplit: {
		Before: func(c *mesh.WorkerContext, h simplex.Handle) bool {
			seen = h
			assert.Equal(t, 1, c.Stack().Depth())
			assert.NotEmpty(t, c.Held())
			return false
		},
	}})
	h := edgeBetween(t, m, 4, 5)
	rep, err := ex.Execute(mesh.NewWorkerContext(m.Mesh, 0, true), Candidate{Kind: EdgeSplit, Handle: h})
	require.NoError(t, err)
	assert.Equal(t, Rejected, rep.Outcome)
	assert.Equal(t, StateLocked, rep.State)
	assert.Equal(t, h, seen)
	assert.Equal(t, before, m.Digest())
	assert.Equal(t, 0, m.LockedCount())
}

func TestStaleAndDropped(t *testing.T) {
	m, _ := newGrid(t, 2, 2)
	ex := New(m, Table{
		EdgeSplit: {},
		EdgeSwap: {
			ShouldProcess: func(_ *mesh.WorkerContext, cand Candidate) bool { return cand.Priority > 0 },
		},
	})
	c := mesh.NewWorkerContext(m.Mesh, 0, true)
	h := edgeBetween(t, m, 4, 5)

	rep, err := ex.Execute(c, Candidate{Kind: EdgeSplit, Handle: h})
	require.NoError(t, err)
	require.Equal(t, Committed, rep.Outcome)

	rep, err = ex.Execute(c, Candidate{Kind: EdgeSplit, Handle: h})
	require.NoError(t, err)
	assert.Equal(t, Stale, rep.Outcome)
	assert.ErrorIs(t, rep.Reason, mesh.ErrStaleHandle)

	diag := edgeBetween(t, m, 0, 4)
	rep, err = ex.Execute(c, Candidate{Kind: EdgeSwap, Handle: diag, Priority: 0})
	require.NoError(t, err)
	assert.Equal(t, Rejected, rep.Outcome)
	assert.Equal(t, StateProposed, rep.State)
	assert.ErrorIs(t, rep.Reason, ErrOutdated)
	assert.Equal(t, 0, m.LockedCount())

	rep, err = ex.Execute(c, Candidate{Kind: EdgeSwap, Handle: diag, Priority: 1})
	require.NoError(t, err)
	assert.Equal(t, Committed, rep.Outcome)
	require.NoError(t, m.Validate())
}

func TestDeferred(t *testing.T) {
	m, _ := newGrid(t, 2, 2)
	ex := New(m, Table{EdgeCollapse: {}})
	h := edgeBetween(t, m, 4, 5)

	other := mesh.NewWorkerContext(m.Mesh, 1, true)
	require.True(t, other.TryLock([]model.ElementID{8}))

	c := mesh.NewWorkerContext(m.Mesh, 0, true)
	rep, err := ex.Execute(c, Candidate{Kind: EdgeCollapse, Handle: h})
	require.NoError(t, err)
	assert.Equal(t, Deferred, rep.Outcome)
	assert.Equal(t, StateProposed, rep.State)
	assert.Empty(t, c.Held())
	assert.Equal(t, 1, m.LockedCount())

	other.Release()
	rep, err = ex.Execute(c, Candidate{Kind: EdgeCollapse, Handle: h})
	require.NoError(t, err)
	assert.Equal(t, Committed, rep.Outcome)
	assert.Equal(t, 0, m.LockedCount())
}

func TestUnsupported(t *testing.T) {
	m, _ := newLoop(t, 4)
	c := mesh.NewWorkerContext(m.Mesh, 0, true)
	h := edgeBetween(t, m, 0, 1)

	rep, err := New(m, Table{}).Execute(c, Candidate{Kind: EdgeSplit, Handle: h})
	require.NoError(t, err)
	assert.Equal(t, Unsupported, rep.Outcome)

	rep, err = New(m, Table{EdgeSwap: {}}).Execute(c, Candidate{Kind: EdgeSwap, Handle: h})
	require.NoError(t, err)
	assert.Equal(t, Unsupported, rep.Outcome)
	assert.ErrorIs(t, rep.Reason, mesh.ErrUnsupported)
	assert.Equal(t, 0, m.LockedCount())
}

func TestRenewAssignsPriorities(t *testing.T) {
	m, pos := newGrid(t, 2, 2)
	length := func(c *mesh.WorkerContext, h simplex.Handle) float64 {
		o, _ := m.Switch(c, h, model.Vertex)
		p, err := attribute.Read(c.Stack(), pos, m.ID(c, h, model.Vertex))
		require.NoError(t, err)
		q, err := attribute.Read(c.Stack(), pos, m.ID(c, o, model.Vertex))
		require.NoError(t, err)
		return (p[0]-q[0])*(p[0]-q[0]) + (p[1]-q[1])*(p[1]-q[1])
	}
	ex := New(m, Table{EdgeSplit: {
		Update: func(c *mesh.WorkerContext, out simplex.Handle) error {
			o, _ := m.Switch(c, out, model.Vertex)
			a, err := attribute.Read(c.Stack(), pos, m.ID(c, o, model.Vertex))
			if err != nil {
				return err
			}
			return attribute.Write(c.Stack(), pos, m.ID(c, out, model.Vertex), []float64{a[0] + 0.5, a[1]})
		},
		Priority: length,
		Renew: func(c *mesh.WorkerContext, out simplex.Handle) []Candidate {
			return []Candidate{
				{Kind: EdgeSplit, Handle: out, Priority: 99, Retries: 3},
				{Kind: EdgeCollapse, Handle: out},
			}
		},
	}})
	h := edgeBetween(t, m, 4, 5)
	rep, err := ex.Execute(mesh.NewWorkerContext(m.Mesh, 0, true), Candidate{Kind: EdgeSplit, Handle: h})
	require.NoError(t, err)
	require.Equal(t, Committed, rep.Outcome)
	require.Len(t, rep.Spawned, 2)

	assert.InDelta(t, 0.25, rep.Spawned[0].Priority, 1e-12)
	assert.Equal(t, 0, rep.Spawned[0].Retries)
	assert.Equal(t, 0.0, rep.Spawned[1].Priority)
	for _, s := range rep.Spawned {
		_, ok := m.Resolve(base(m), s.Handle)
		assert.True(t, ok)
	}
}

func TestUpdateErrors(t *testing.T) {
	m, _ := newGrid(t, 2, 2)
	before := m.Digest()
	boom := errors.New("boom")
	var result error
	ex := New(m, Table{EdgeSplit: {
		Update: func(*mesh.WorkerContext, simplex.Handle) error { return result },
	}})
	c := mesh.NewWorkerContext(m.Mesh, 0, true)
	h := edgeBetween(t, m, 4, 5)

	result = fmt.Errorf("too short: %w", mesh.ErrNotApplicable)
	rep, err := ex.Execute(c, Candidate{Kind: EdgeSplit, Handle: h})
	require.NoError(t, err)
	assert.Equal(t, Rejected, rep.Outcome)
	assert.Equal(t, StateRolledBack, rep.State)

	result = boom
	_, err = ex.Execute(c, Candidate{Kind: EdgeSplit, Handle: h})
	assert.ErrorIs(t, err, boom)

	assert.Equal(t, before, m.Digest())
	assert.Equal(t, 0, m.LockedCount())
}

func TestInvariantViolationAborts(t *testing.T) {
	m, _ := newGrid(t, 2, 2)
	before := m.Digest()
	ex := New(m, Table{
		EdgeSplit: {
			Update: func(c *mesh.WorkerContext, _ simplex.Handle) error {
				c.Stack().Push() // left open on purpose
				panic(&mesh.InvariantError{Op: "test", Msg: "corrupt"})
			},
		},
		EdgeCollapse: {
			After: func(*mesh.WorkerContext, simplex.Handle) bool { panic("not an invariant") },
		},
	})
	c := mesh.NewWorkerContext(m.Mesh, 0, true)
	h := edgeBetween(t, m, 4, 5)

	rep, err := ex.Execute(c, Candidate{Kind: EdgeSplit, Handle: h})
	var ie *mesh.InvariantError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "test", ie.Op)
	assert.Equal(t, StateRolledBack, rep.State)
	assert.Equal(t, 0, c.Stack().Depth())
	assert.Equal(t, 0, m.LockedCount())
	assert.Equal(t, before, m.Digest())

	assert.PanicsWithValue(t, "not an invariant", func() {
		_, _ = ex.Execute(c, Candidate{Kind: EdgeCollapse, Handle: h})
	})
	assert.Equal(t, 0, m.LockedCount())
	assert.Equal(t, before, m.Digest())
}

type recorder struct {
	records []Record
	err     error
}

func (r *recorder) Record(rec Record) error {
	r.records = append(r.records, rec)
	return r.err
}

func TestRecorder(t *testing.T) {
	m, _ := newLoop(t, 5)
	rec := &recorder{}
	ex := New(m, Table{EdgeSplit: {}, EdgeCollapse: {}}, func(o *Options) { o.Recorder = rec })
	c := mesh.NewWorkerContext(m.Mesh, 7, true)

	rep, err := ex.Execute(c, Candidate{Kind: EdgeSplit, Handle: edgeBetween(t, m, 0, 1)})
	require.NoError(t, err)
	require.Equal(t, Committed, rep.Outcome)
	rep, err = ex.Execute(c, Candidate{Kind: EdgeCollapse, Handle: edgeBetween(t, m, 3, 4)})
	require.NoError(t, err)
	require.Equal(t, Committed, rep.Outcome)

	require.Len(t, rec.records, 2)
	split := rec.records[0]
	assert.Equal(t, 7, split.Worker)
	assert.Equal(t, EdgeSplit, split.Kind)
	assert.Equal(t, []model.ElementID{5}, split.Edit.Created[model.Vertex])
	assert.Equal(t, []model.ElementID{5, 6}, split.Edit.Created[model.Edge])
	assert.Len(t, split.Edit.Deleted[model.Edge], 1)

	collapse := rec.records[1]
	assert.Equal(t, []model.ElementID{3}, collapse.Edit.Deleted[model.Vertex])

	rec.err = errors.New("disk full")
	_, err = ex.Execute(c, Candidate{Kind: EdgeSplit, Handle: edgeBetween(t, m, 1, 2)})
	assert.ErrorContains(t, err, "disk full")
}

package mesh

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/hupe1980/meshkit/attribute"
	"github.com/hupe1980/meshkit/model"
	"github.com/hupe1980/meshkit/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocator(t *testing.T) {
	a := newAllocator()
	assert.Equal(t, model.ElementID(0), a.take(3))
	assert.Equal(t, model.ElementID(3), a.take(2))
	assert.Equal(t, 5, a.highWater())

	// Tail ids shrink the high-water mark, others become holes.
	a.give([]model.ElementID{4, 1})
	assert.Equal(t, 4, a.highWater())
	assert.Equal(t, 3, a.live())
	assert.True(t, a.isDeleted(1))

	a.markDeleted([]model.ElementID{0})
	assert.Equal(t, 2, a.live())

	a.reset(2)
	assert.Equal(t, 2, a.highWater())
	assert.Equal(t, 2, a.live())
	assert.False(t, a.isDeleted(1))
}

func TestTryLock(t *testing.T) {
	m, err := NewEdgeMesh(testutil.LoopEdges(8, 0))
	require.NoError(t, err)
	c1 := NewWorkerContext(m.Mesh, 1, true)
	c2 := NewWorkerContext(m.Mesh, 2, true)

	region, err := m.Region(c1, EdgeRegion, edgeHandle(t, m, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, []model.ElementID{0, 1, 2, 7}, region)
	require.True(t, c1.TryLock(region))
	assert.True(t, c1.Covers(region))
	assert.Equal(t, region, c1.Held())

	// A conflicting request backs off and holds nothing.
	assert.False(t, c2.TryLock([]model.ElementID{3, 2}))
	assert.Empty(t, c2.Held())
	assert.False(t, m.Locked(3))

	require.True(t, c2.TryLock([]model.ElementID{5, 4, 4}))
	assert.Equal(t, 6, m.LockedCount())

	// Re-locking held vertices succeeds.
	require.True(t, c1.TryLock([]model.ElementID{1, 2}))

	c1.Release()
	assert.Equal(t, 2, m.LockedCount())
	assert.False(t, c1.Covers(region))
	c2.Release()
	assert.Equal(t, 0, m.LockedCount())
}

func TestUndoReleasesCreatedVertices(t *testing.T) {
	m, err := NewEdgeMesh(testutil.LoopEdges(4, 0))
	require.NoError(t, err)
	c := NewWorkerContext(m.Mesh, 0, true)
	h := edgeHandle(t, m, 0, 0)
	region, err := m.Region(c, EdgeRegion, h)
	require.NoError(t, err)
	require.True(t, c.TryLock(region))

	c.Stack().Push()
	_, err = m.SplitEdge(c, h)
	require.NoError(t, err)
	assert.True(t, m.Locked(4))
	assert.False(t, c.Edit().Empty())

	m.Undo(c)
	assert.False(t, m.Locked(4))
	assert.Equal(t, region, c.Held())
	assert.True(t, c.Edit().Empty())
	c.Release()
	assert.Equal(t, 4, m.Size(model.Vertex))
}

func TestCommitCallback(t *testing.T) {
	m, err := NewEdgeMesh(testutil.LoopEdges(4, 0))
	require.NoError(t, err)
	c := NewWorkerContext(m.Mesh, 0, false)
	c.Stack().Push()
	_, err = m.CollapseEdge(c, edgeHandle(t, m, 2, 0))
	require.NoError(t, err)

	var got Edit
	m.Commit(c, func(e Edit) { got = e })
	assert.Equal(t, []model.ElementID{2}, got.Deleted[model.Vertex])
	assert.Equal(t, []model.ElementID{2}, got.Deleted[model.Edge])
	assert.Empty(t, got.Created[model.Edge])
	assert.True(t, c.Edit().Empty())
}

func TestCommitRequiresOneScope(t *testing.T) {
	m, err := NewEdgeMesh(testutil.LoopEdges(3, 0))
	require.NoError(t, err)
	c := NewWorkerContext(m.Mesh, 0, false)

	err = func() (err error) {
		defer func() { err = Recover(recover(), err) }()
		m.Commit(c, nil)
		return nil
	}()
	var ie *InvariantError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, "commit", ie.Op)
}

func TestRecover(t *testing.T) {
	base := errors.New("base")
	assert.Equal(t, base, Recover(nil, base))
	assert.NoError(t, Recover(nil, nil))

	ie := &InvariantError{Op: "x", Msg: "y"}
	assert.Same(t, ie, Recover(ie, nil))

	err := Recover(attribute.ErrScopeUnderflow, nil)
	assert.ErrorAs(t, err, new(*InvariantError))

	err = Recover(fmt.Errorf("wrapped: %w", attribute.ErrOutOfRange), nil)
	assert.ErrorAs(t, err, new(*InvariantError))

	assert.PanicsWithValue(t, "boom", func() { _ = Recover("boom", nil) })
}

func TestConcurrentDisjointEdits(t *testing.T) {
	const loops, n, rounds = 4, 16, 6
	m, err := NewEdgeMesh(testutil.DisjointLoops(loops, n))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for w := range loops {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := NewWorkerContext(m.Mesh, w, true)
			// Vertex w*n is on loop w; its edge is w*n as well.
			for range rounds {
				var (
					region []model.ElementID
					err    error
				)
				h, ok := m.HandleFor(m.baseContext(), model.Vertex, model.ElementID(w*n))
				if !ok {
					t.Errorf("worker %d: vertex %d vanished", w, w*n)
					return
				}
				m.ReadCommitted(func() { region, err = m.Region(c, EdgeRegion, h) })
				if err != nil || !c.TryLock(region) {
					t.Errorf("worker %d: region %v: %v", w, region, err)
					return
				}
				c.Stack().Push()
				if _, err := m.SplitEdge(c, h); err != nil {
					t.Errorf("worker %d: split: %v", w, err)
				}
				m.Commit(c, nil)
				c.Release()
			}
		}()
	}
	wg.Wait()

	require.NoError(t, m.Validate())
	assert.Equal(t, loops*(n+rounds), m.Count(model.Vertex))
	assert.Equal(t, loops*(n+rounds), m.Count(model.Edge))
	assert.Equal(t, 0, m.LockedCount())
}

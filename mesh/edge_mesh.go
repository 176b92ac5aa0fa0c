package mesh

import (
	"fmt"
	"log/slog"

	"github.com/hupe1980/meshkit/attribute"
	"github.com/hupe1980/meshkit/model"
	"github.com/hupe1980/meshkit/simplex"
)

// EdgeMesh is a 1-manifold of edges: open chains and closed loops in which
// every vertex has one or two incident edges.
type EdgeMesh struct {
	*Mesh

	ev attribute.Handle[model.ElementID] // edge -> its two vertices
	ee attribute.Handle[model.ElementID] // edge -> neighbour across local vertex i
	ve attribute.Handle[model.ElementID] // vertex -> one incident edge
}

var _ Topology = (*EdgeMesh)(nil)

// NewEdgeMesh builds an edge mesh from vertex pairs. Vertex ids must be dense
// from zero, edges must not be self loops, and no vertex may have more than
// two incident edges.
func NewEdgeMesh(edges [][2]int64, optFns ...func(o *Options)) (*EdgeMesh, error) {
	opts := DefaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	type slot struct {
		edge  int
		local int
	}
	nv := 0
	for i, e := range edges {
		if e[0] < 0 || e[1] < 0 {
			return nil, fmt.Errorf("%w: edge %d has a negative vertex id", ErrInvalidInput, i)
		}
		if e[0] == e[1] {
			return nil, fmt.Errorf("%w: edge %d is a self loop", ErrInvalidInput, i)
		}
		nv = max(nv, int(e[0])+1, int(e[1])+1)
	}
	incident := make([][]slot, nv)
	for i, e := range edges {
		for k, v := range e {
			incident[v] = append(incident[v], slot{edge: i, local: k})
			if len(incident[v]) > 2 {
				return nil, fmt.Errorf("%w: vertex %d has more than two incident edges", ErrInvalidInput, v)
			}
		}
	}
	for v, inc := range incident {
		if len(inc) == 0 {
			return nil, fmt.Errorf("%w: vertex %d is not referenced", ErrInvalidInput, v)
		}
	}

	m := &EdgeMesh{Mesh: newMesh(model.Edge, []model.PrimitiveType{model.Vertex, model.Edge}, opts)}
	m.ev = m.registerLink(model.Edge, "ev", 2, model.Vertex)
	m.ee = m.registerLink(model.Edge, "ee", 2, model.Edge)
	m.ve = m.registerLink(model.Vertex, "ve", 1, model.Edge)

	c := m.baseContext()
	c.stack.Push()
	m.create(c, model.Vertex, nv)
	m.create(c, model.Edge, len(edges))
	for i, e := range edges {
		put(c, m.ev, model.ElementID(i), 0, model.ElementID(e[0]))
		put(c, m.ev, model.ElementID(i), 1, model.ElementID(e[1]))
	}
	for v, inc := range incident {
		put(c, m.ve, model.ElementID(v), 0, model.ElementID(inc[0].edge))
		if len(inc) == 2 {
			a, b := inc[0], inc[1]
			put(c, m.ee, model.ElementID(a.edge), a.local, model.ElementID(b.edge))
			put(c, m.ee, model.ElementID(b.edge), b.local, model.ElementID(a.edge))
		}
	}
	m.Commit(c, nil)

	m.logger.Debug("edge mesh built", slog.Int("vertices", nv), slog.Int("edges", len(edges)))
	return m, nil
}

func (m *EdgeMesh) vertex(c *WorkerContext, e model.ElementID, i int) model.ElementID {
	return get(c, m.ev, e, i)
}

func (m *EdgeMesh) neighbor(c *WorkerContext, e model.ElementID, i int) model.ElementID {
	return get(c, m.ee, e, i)
}

// localOf returns the local index of v in edge e, or -1.
func (m *EdgeMesh) localOf(c *WorkerContext, e, v model.ElementID) int {
	for i := range 2 {
		if m.vertex(c, e, i) == v {
			return i
		}
	}
	return -1
}

// relink points the slot of n at vertex v from old to nu.
func (m *EdgeMesh) relink(c *WorkerContext, n, v, old, nu model.ElementID) {
	if n.IsNull() {
		return
	}
	for i := range 2 {
		if m.vertex(c, n, i) == v && m.neighbor(c, n, i) == old {
			put(c, m.ee, n, i, nu)
			m.bump(c, n)
			return
		}
	}
	invariantf("relink", "edge %d has no slot at vertex %d pointing to %d", n, v, old)
}

func (m *EdgeMesh) setEdge(c *WorkerContext, e, v0, v1, n0, n1 model.ElementID) {
	put(c, m.ev, e, 0, v0)
	put(c, m.ev, e, 1, v1)
	put(c, m.ee, e, 0, n0)
	put(c, m.ee, e, 1, n1)
}

// ID implements Topology.
func (m *EdgeMesh) ID(c *WorkerContext, h simplex.Handle, pt model.PrimitiveType) model.ElementID {
	switch pt {
	case model.Vertex:
		return m.vertex(c, h.Cell, h.LocalVertex())
	case model.Edge:
		return h.Cell
	default:
		return model.NullID
	}
}

// Switch implements Topology. Switching the edge moves to the neighbouring
// edge across the handle's vertex.
func (m *EdgeMesh) Switch(c *WorkerContext, h simplex.Handle, pt model.PrimitiveType) (simplex.Handle, bool) {
	switch pt {
	case model.Vertex:
		return simplex.SwitchVertexInEdge(h), true
	case model.Edge:
		v := m.vertex(c, h.Cell, h.LocalVertex())
		n := m.neighbor(c, h.Cell, h.LocalVertex())
		if n.IsNull() {
			return simplex.Null, false
		}
		j := m.localOf(c, n, v)
		if j < 0 {
			invariantf("switch", "neighbour %d of edge %d does not contain vertex %d", n, h.Cell, v)
		}
		return simplex.NewEdgeHandle(j, n, m.Epoch(c, n)), true
	default:
		return simplex.Null, false
	}
}

// HandleFor implements Topology.
func (m *EdgeMesh) HandleFor(c *WorkerContext, pt model.PrimitiveType, id model.ElementID) (simplex.Handle, bool) {
	if !m.Alive(c, pt, id) {
		return simplex.Null, false
	}
	switch pt {
	case model.Vertex:
		e := get(c, m.ve, id, 0)
		return simplex.NewEdgeHandle(m.localOf(c, e, id), e, m.Epoch(c, e)), true
	case model.Edge:
		return simplex.NewEdgeHandle(0, id, m.Epoch(c, id)), true
	default:
		return simplex.Null, false
	}
}

// OneRing implements Topology.
func (m *EdgeMesh) OneRing(c *WorkerContext, h simplex.Handle) []model.ElementID {
	lv := h.LocalVertex()
	ring := []model.ElementID{m.vertex(c, h.Cell, 1-lv)}
	if n := m.neighbor(c, h.Cell, lv); !n.IsNull() {
		v := m.vertex(c, h.Cell, lv)
		ring = append(ring, m.vertex(c, n, 1-m.localOf(c, n, v)))
	}
	return sortedUnique(ring)
}

// IsBoundary implements Topology. An edge is on the boundary when either of
// its vertices is.
func (m *EdgeMesh) IsBoundary(c *WorkerContext, h simplex.Handle, pt model.PrimitiveType) bool {
	switch pt {
	case model.Vertex:
		return m.neighbor(c, h.Cell, h.LocalVertex()).IsNull()
	case model.Edge:
		return m.neighbor(c, h.Cell, 0).IsNull() || m.neighbor(c, h.Cell, 1).IsNull()
	default:
		return false
	}
}

// Region implements Topology.
func (m *EdgeMesh) Region(c *WorkerContext, kind RegionKind, h simplex.Handle) ([]model.ElementID, error) {
	if _, ok := m.Resolve(c, h); !ok {
		return nil, ErrStaleHandle
	}
	region := append(m.OneRing(c, h), m.ID(c, h, model.Vertex))
	if kind == EdgeRegion {
		region = append(region, m.OneRing(c, simplex.SwitchVertexInEdge(h))...)
	}
	return sortedUnique(region), nil
}

// SplitEdge implements Topology. The edge is replaced by two edges that keep
// its orientation; the returned handle addresses the new vertex.
func (m *EdgeMesh) SplitEdge(c *WorkerContext, h simplex.Handle) (simplex.Handle, error) {
	requireScope(c, "split edge")
	e, ok := m.Resolve(c, h)
	if !ok {
		return simplex.Null, ErrStaleHandle
	}
	x0, x1 := m.vertex(c, e, 0), m.vertex(c, e, 1)
	n0, n1 := m.neighbor(c, e, 0), m.neighbor(c, e, 1)

	mid := m.create(c, model.Vertex, 1)
	e0 := m.create(c, model.Edge, 2)
	e1 := e0 + 1
	m.remove(c, model.Edge, e)

	m.setEdge(c, e0, x0, mid, n0, e1)
	m.setEdge(c, e1, mid, x1, e0, n1)
	m.relink(c, n0, x0, e, e0)
	m.relink(c, n1, x1, e, e1)

	put(c, m.ve, x0, 0, e0)
	put(c, m.ve, x1, 0, e1)
	put(c, m.ve, mid, 0, e0)
	return simplex.NewEdgeHandle(1, e0, m.Epoch(c, e0)), nil
}

// CollapseEdge implements Topology. The handle's vertex and edge are removed;
// the neighbouring edge across the removed vertex is reattached to the
// surviving vertex.
func (m *EdgeMesh) CollapseEdge(c *WorkerContext, h simplex.Handle) (simplex.Handle, error) {
	requireScope(c, "collapse edge")
	e, ok := m.Resolve(c, h)
	if !ok {
		return simplex.Null, ErrStaleHandle
	}
	lv := h.LocalVertex()
	a, b := m.vertex(c, e, lv), m.vertex(c, e, 1-lv)
	p, q := m.neighbor(c, e, lv), m.neighbor(c, e, 1-lv)
	if p.IsNull() && q.IsNull() {
		return simplex.Null, fmt.Errorf("%w: edge %d is an isolated segment", ErrNotApplicable, e)
	}
	if p == q {
		return simplex.Null, fmt.Errorf("%w: collapsing edge %d leaves a self loop", ErrNotApplicable, e)
	}

	m.remove(c, model.Edge, e)
	m.remove(c, model.Vertex, a)
	if !p.IsNull() {
		i := m.localOf(c, p, a)
		if i < 0 || m.neighbor(c, p, i) != e {
			invariantf("collapse edge", "edge %d is not linked to %d at vertex %d", p, e, a)
		}
		put(c, m.ev, p, i, b)
		put(c, m.ee, p, i, q)
		m.bump(c, p)
	}
	m.relink(c, q, b, e, p)

	survivor := p
	if survivor.IsNull() {
		survivor = q
	}
	put(c, m.ve, b, 0, survivor)
	return simplex.NewEdgeHandle(m.localOf(c, survivor, b), survivor, m.Epoch(c, survivor)), nil
}

// SwapEdge implements Topology. Edge meshes have no swap.
func (m *EdgeMesh) SwapEdge(*WorkerContext, simplex.Handle) (simplex.Handle, error) {
	return simplex.Null, ErrUnsupported
}

// SwapFace implements Topology. Edge meshes have no faces.
func (m *EdgeMesh) SwapFace(*WorkerContext, simplex.Handle) (simplex.Handle, error) {
	return simplex.Null, ErrUnsupported
}

// Handles implements Topology.
func (m *EdgeMesh) Handles(pt model.PrimitiveType) []simplex.Handle {
	var out []simplex.Handle
	m.ReadCommitted(func() {
		c := m.baseContext()
		for id := range model.ElementID(m.Size(pt)) {
			if h, ok := m.HandleFor(c, pt, id); ok {
				out = append(out, h)
			}
		}
	})
	return out
}

// Validate implements Topology.
func (m *EdgeMesh) Validate() (err error) {
	defer func() { err = Recover(recover(), err) }()
	fail := func(format string, args ...any) error {
		return &InvariantError{Op: "validate", Msg: fmt.Sprintf(format, args...)}
	}
	c := m.baseContext()
	m.publish.RLock()
	defer m.publish.RUnlock()

	nv, ne := m.Size(model.Vertex), m.Size(model.Edge)
	degree := make([]int, nv)
	for e := range model.ElementID(ne) {
		if !m.Alive(c, model.Edge, e) {
			continue
		}
		if m.alloc[model.Edge].isDeleted(e) {
			return fail("edge %d is active but deleted", e)
		}
		if m.Epoch(c, e) < 1 {
			return fail("edge %d has epoch %d", e, m.Epoch(c, e))
		}
		if m.vertex(c, e, 0) == m.vertex(c, e, 1) {
			return fail("edge %d is a self loop", e)
		}
		for i := range 2 {
			v := m.vertex(c, e, i)
			if v.IsNull() || int(v) >= nv || !m.Alive(c, model.Vertex, v) {
				return fail("edge %d references dead vertex %d", e, v)
			}
			degree[v]++
			n := m.neighbor(c, e, i)
			if n.IsNull() {
				continue
			}
			if !m.Alive(c, model.Edge, n) {
				return fail("edge %d references dead neighbour %d", e, n)
			}
			j := m.localOf(c, n, v)
			if j < 0 || m.neighbor(c, n, j) != e {
				return fail("edges %d and %d disagree at vertex %d", e, n, v)
			}
		}
	}
	for e := range model.ElementID(ne) {
		if !m.Alive(c, model.Edge, e) {
			continue
		}
		for i := range 2 {
			if v := m.vertex(c, e, i); m.neighbor(c, e, i).IsNull() && degree[v] != 1 {
				return fail("edge %d has no neighbour at vertex %d of degree %d", e, v, degree[v])
			}
		}
	}
	for v := range model.ElementID(nv) {
		if !m.Alive(c, model.Vertex, v) {
			continue
		}
		if degree[v] == 0 || degree[v] > 2 {
			return fail("vertex %d has degree %d", v, degree[v])
		}
		e := get(c, m.ve, v, 0)
		if e.IsNull() || !m.Alive(c, model.Edge, e) || m.localOf(c, e, v) < 0 {
			return fail("vertex %d points to edge %d that does not contain it", v, e)
		}
	}
	return nil
}

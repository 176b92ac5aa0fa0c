package mesh

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/hupe1980/meshkit/attribute"
	"github.com/hupe1980/meshkit/model"
	"github.com/hupe1980/meshkit/simplex"
)

// TriMesh is a 2-manifold triangle mesh, possibly with boundary.
//
// Edges are not stored. The edge addressed by local edge le of face f has the
// canonical id min(3f+le, 3g+j) over the two faces sharing it.
type TriMesh struct {
	*Mesh

	fv attribute.Handle[model.ElementID] // face -> its three vertices
	ff attribute.Handle[model.ElementID] // face -> neighbour across local edge i
	vf attribute.Handle[model.ElementID] // vertex -> one incident face
}

var _ Topology = (*TriMesh)(nil)

// NewTriMesh builds a triangle mesh from vertex triples. Vertex ids must be
// dense from zero; every edge may be shared by at most two faces and every
// vertex must have a single fan of faces around it.
func NewTriMesh(faces [][3]int64, optFns ...func(o *Options)) (*TriMesh, error) {
	opts := DefaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	type slot struct {
		face  int
		local int
	}
	nv := 0
	seen := make(map[[3]int64]int, len(faces))
	for i, f := range faces {
		if f[0] < 0 || f[1] < 0 || f[2] < 0 {
			return nil, fmt.Errorf("%w: face %d has a negative vertex id", ErrInvalidInput, i)
		}
		if f[0] == f[1] || f[1] == f[2] || f[0] == f[2] {
			return nil, fmt.Errorf("%w: face %d is degenerate", ErrInvalidInput, i)
		}
		key := f
		slices.Sort(key[:])
		if j, ok := seen[key]; ok {
			return nil, fmt.Errorf("%w: faces %d and %d share all vertices", ErrInvalidInput, j, i)
		}
		seen[key] = i
		nv = max(nv, int(f[0])+1, int(f[1])+1, int(f[2])+1)
	}
	edges := make(map[[2]int64][]slot, 3*len(faces)/2)
	referenced := make([]int, nv)
	for i, f := range faces {
		for le := range 3 {
			a, b := f[(le+1)%3], f[(le+2)%3]
			key := [2]int64{min(a, b), max(a, b)}
			edges[key] = append(edges[key], slot{face: i, local: le})
			if len(edges[key]) > 2 {
				return nil, fmt.Errorf("%w: edge (%d,%d) has more than two faces", ErrInvalidInput, key[0], key[1])
			}
		}
		for _, v := range f {
			referenced[v]++
		}
	}
	for v, n := range referenced {
		if n == 0 {
			return nil, fmt.Errorf("%w: vertex %d is not referenced", ErrInvalidInput, v)
		}
	}

	m := &TriMesh{Mesh: newMesh(model.Face, []model.PrimitiveType{model.Vertex, model.Face}, opts)}
	m.fv = m.registerLink(model.Face, "fv", 3, model.Vertex)
	m.ff = m.registerLink(model.Face, "ff", 3, model.Face)
	m.vf = m.registerLink(model.Vertex, "vf", 1, model.Face)

	c := m.baseContext()
	c.stack.Push()
	m.create(c, model.Vertex, nv)
	m.create(c, model.Face, len(faces))
	for i, f := range faces {
		for k, v := range f {
			put(c, m.fv, model.ElementID(i), k, model.ElementID(v))
			put(c, m.vf, model.ElementID(v), 0, model.ElementID(i))
		}
	}
	for _, s := range edges {
		if len(s) == 2 {
			put(c, m.ff, model.ElementID(s[0].face), s[0].local, model.ElementID(s[1].face))
			put(c, m.ff, model.ElementID(s[1].face), s[1].local, model.ElementID(s[0].face))
		}
	}
	for v, n := range referenced {
		if star, _ := m.star(c, model.ElementID(v)); len(star) != n {
			m.Undo(c)
			return nil, fmt.Errorf("%w: vertex %d is non-manifold", ErrInvalidInput, v)
		}
	}
	m.Commit(c, nil)

	m.logger.Debug("triangle mesh built", slog.Int("vertices", nv), slog.Int("faces", len(faces)))
	return m, nil
}

func (m *TriMesh) vertex(c *WorkerContext, f model.ElementID, i int) model.ElementID {
	return get(c, m.fv, f, i)
}

func (m *TriMesh) neighbor(c *WorkerContext, f model.ElementID, i int) model.ElementID {
	return get(c, m.ff, f, i)
}

// localOf returns the local index of v in face f, or -1.
func (m *TriMesh) localOf(c *WorkerContext, f, v model.ElementID) int {
	for i := range 3 {
		if m.vertex(c, f, i) == v {
			return i
		}
	}
	return -1
}

// slotTo returns the local edge of n that points to f across the edge (x, y), or -1.
func (m *TriMesh) slotTo(c *WorkerContext, n, f, x, y model.ElementID) int {
	for j := range 3 {
		if m.neighbor(c, n, j) != f {
			continue
		}
		if o := m.vertex(c, n, j); o != x && o != y {
			return j
		}
	}
	return -1
}

// relink points the slot of n across edge (x, y) from old to nu.
func (m *TriMesh) relink(c *WorkerContext, n, old, nu, x, y model.ElementID) {
	if n.IsNull() {
		return
	}
	j := m.slotTo(c, n, old, x, y)
	if j < 0 {
		invariantf("relink", "face %d has no slot across (%d,%d) pointing to %d", n, x, y, old)
	}
	put(c, m.ff, n, j, nu)
	m.bump(c, n)
}

func (m *TriMesh) setFace(c *WorkerContext, f model.ElementID, verts, nbrs [3]model.ElementID) {
	for i := range 3 {
		put(c, m.fv, f, i, verts[i])
		put(c, m.ff, f, i, nbrs[i])
	}
}

// cross moves h into the neighbouring face across its local edge. The result
// carries no epoch.
func (m *TriMesh) cross(c *WorkerContext, h simplex.Handle) (simplex.Handle, bool) {
	f, lv, le := h.Cell, h.LocalVertex(), h.LocalEdge()
	n := m.neighbor(c, f, le)
	if n.IsNull() {
		return simplex.Null, false
	}
	v, w := m.vertex(c, f, lv), m.vertex(c, f, 3-lv-le)
	nv, nw := m.localOf(c, n, v), m.localOf(c, n, w)
	if nv < 0 || nw < 0 {
		invariantf("switch face", "faces %d and %d do not share edge (%d,%d)", f, n, v, w)
	}
	return simplex.NewTriHandle(nv, 3-nv-nw, n, 0), true
}

// star returns the faces incident to v in rotation order and whether v lies
// on the boundary.
func (m *TriMesh) star(c *WorkerContext, v model.ElementID) ([]model.ElementID, bool) {
	f0 := get(c, m.vf, v, 0)
	lv := m.localOf(c, f0, v)
	if lv < 0 {
		invariantf("star", "vertex %d points to face %d that does not contain it", v, f0)
	}
	limit := m.Size(model.Face) + 1
	start := simplex.NewTriHandle(lv, (lv+1)%3, f0, 0)
	faces := []model.ElementID{f0}
	boundary := false
	for cur := start; ; {
		next, ok := m.cross(c, simplex.SwitchEdgeInTri(cur))
		if !ok {
			boundary = true
			break
		}
		if next.Cell == f0 {
			break
		}
		faces = append(faces, next.Cell)
		if len(faces) > limit {
			invariantf("star", "rotation around vertex %d does not close", v)
		}
		cur = next
	}
	if boundary {
		for cur := start; ; {
			next, ok := m.cross(c, cur)
			if !ok {
				break
			}
			faces = append(faces, next.Cell)
			if len(faces) > limit || next.Cell == f0 {
				invariantf("star", "boundary fan around vertex %d does not terminate", v)
			}
			cur = simplex.SwitchEdgeInTri(next)
		}
	}
	return faces, boundary
}

// ring returns the vertices of faces, excluding v, ascending.
func (m *TriMesh) ring(c *WorkerContext, faces []model.ElementID, v model.ElementID) []model.ElementID {
	out := make([]model.ElementID, 0, 2*len(faces))
	for _, f := range faces {
		for i := range 3 {
			if u := m.vertex(c, f, i); u != v {
				out = append(out, u)
			}
		}
	}
	return sortedUnique(out)
}

func (m *TriMesh) edgeID(c *WorkerContext, f model.ElementID, le int) model.ElementID {
	own := 3*f + model.ElementID(le)
	n := m.neighbor(c, f, le)
	if n.IsNull() {
		return own
	}
	a, b := simplex.TriEdgeVertices(le)
	j := m.slotTo(c, n, f, m.vertex(c, f, a), m.vertex(c, f, b))
	if j < 0 {
		invariantf("edge id", "face %d is not linked back to %d", n, f)
	}
	return min(own, 3*n+model.ElementID(j))
}

// Resolve implements Topology.
func (m *TriMesh) Resolve(c *WorkerContext, h simplex.Handle) (model.ElementID, bool) {
	if !simplex.ValidTri(h) {
		return model.NullID, false
	}
	return m.Mesh.Resolve(c, h)
}

// ID implements Topology.
func (m *TriMesh) ID(c *WorkerContext, h simplex.Handle, pt model.PrimitiveType) model.ElementID {
	switch pt {
	case model.Vertex:
		return m.vertex(c, h.Cell, h.LocalVertex())
	case model.Edge:
		return m.edgeID(c, h.Cell, h.LocalEdge())
	case model.Face:
		return h.Cell
	default:
		return model.NullID
	}
}

// Switch implements Topology.
func (m *TriMesh) Switch(c *WorkerContext, h simplex.Handle, pt model.PrimitiveType) (simplex.Handle, bool) {
	switch pt {
	case model.Vertex:
		return simplex.SwitchVertexInTri(h), true
	case model.Edge:
		return simplex.SwitchEdgeInTri(h), true
	case model.Face:
		n, ok := m.cross(c, h)
		if !ok {
			return simplex.Null, false
		}
		return n.WithEpoch(m.Epoch(c, n.Cell)), true
	default:
		return simplex.Null, false
	}
}

// HandleFor implements Topology. Edge ids must be canonical.
func (m *TriMesh) HandleFor(c *WorkerContext, pt model.PrimitiveType, id model.ElementID) (simplex.Handle, bool) {
	switch pt {
	case model.Vertex:
		if !m.Alive(c, pt, id) {
			return simplex.Null, false
		}
		f := get(c, m.vf, id, 0)
		lv := m.localOf(c, f, id)
		return simplex.NewTriHandle(lv, (lv+1)%3, f, m.Epoch(c, f)), true
	case model.Edge:
		if id < 0 {
			return simplex.Null, false
		}
		f, le := id/3, int(id%3)
		if int(f) >= m.Size(model.Face) || !m.Alive(c, model.Face, f) || m.edgeID(c, f, le) != id {
			return simplex.Null, false
		}
		return simplex.NewTriHandle((le+1)%3, le, f, m.Epoch(c, f)), true
	case model.Face:
		if !m.Alive(c, pt, id) {
			return simplex.Null, false
		}
		return simplex.NewTriHandle(0, 1, id, m.Epoch(c, id)), true
	default:
		return simplex.Null, false
	}
}

// OneRing implements Topology.
func (m *TriMesh) OneRing(c *WorkerContext, h simplex.Handle) []model.ElementID {
	v := m.vertex(c, h.Cell, h.LocalVertex())
	faces, _ := m.star(c, v)
	return m.ring(c, faces, v)
}

// IsBoundary implements Topology.
func (m *TriMesh) IsBoundary(c *WorkerContext, h simplex.Handle, pt model.PrimitiveType) bool {
	switch pt {
	case model.Vertex:
		_, b := m.star(c, m.vertex(c, h.Cell, h.LocalVertex()))
		return b
	case model.Edge:
		return m.neighbor(c, h.Cell, h.LocalEdge()).IsNull()
	case model.Face:
		for i := range 3 {
			if m.neighbor(c, h.Cell, i).IsNull() {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// Region implements Topology.
func (m *TriMesh) Region(c *WorkerContext, kind RegionKind, h simplex.Handle) ([]model.ElementID, error) {
	if _, ok := m.Resolve(c, h); !ok {
		return nil, ErrStaleHandle
	}
	ends := []model.ElementID{m.vertex(c, h.Cell, h.LocalVertex())}
	if kind == EdgeRegion {
		ends = append(ends, m.vertex(c, h.Cell, 3-h.LocalVertex()-h.LocalEdge()))
	}
	var region []model.ElementID
	for _, v := range ends {
		faces, _ := m.star(c, v)
		region = append(region, v)
		region = append(region, m.ring(c, faces, v)...)
	}
	return sortedUnique(region), nil
}

// edgeSide describes one face incident to an edge (a, b) being edited.
type edgeSide struct {
	face       model.ElementID
	ia, ib, io int             // local slots of a, b and the opposite vertex
	opp        model.ElementID // opposite vertex
	outA, outB model.ElementID // neighbours across (a, opp) and (b, opp)
}

func (m *TriMesh) side(c *WorkerContext, f, a, b model.ElementID) edgeSide {
	s := edgeSide{face: f, ia: m.localOf(c, f, a), ib: m.localOf(c, f, b)}
	if s.ia < 0 || s.ib < 0 {
		invariantf("edge side", "face %d does not contain edge (%d,%d)", f, a, b)
	}
	s.io = 3 - s.ia - s.ib
	s.opp = m.vertex(c, f, s.io)
	s.outA = m.neighbor(c, f, s.ib)
	s.outB = m.neighbor(c, f, s.ia)
	return s
}

// sides returns the one or two faces incident to the handle's edge.
func (m *TriMesh) sides(c *WorkerContext, h simplex.Handle) (a, b model.ElementID, out []edgeSide) {
	f0, lv, le := h.Cell, h.LocalVertex(), h.LocalEdge()
	a, b = m.vertex(c, f0, lv), m.vertex(c, f0, 3-lv-le)
	out = append(out, m.side(c, f0, a, b))
	if f1 := m.neighbor(c, f0, le); !f1.IsNull() {
		out = append(out, m.side(c, f1, a, b))
	}
	return a, b, out
}

// SplitEdge implements Topology. Each face incident to the edge is replaced by
// two faces that keep its orientation; the returned handle addresses the new
// vertex and the half edge towards the handle's vertex.
func (m *TriMesh) SplitEdge(c *WorkerContext, h simplex.Handle) (simplex.Handle, error) {
	requireScope(c, "split edge")
	if _, ok := m.Resolve(c, h); !ok {
		return simplex.Null, ErrStaleHandle
	}
	a, b, sides := m.sides(c, h)

	mid := m.create(c, model.Vertex, 1)
	first := m.create(c, model.Face, 2*len(sides))
	withA := func(k int) model.ElementID { return first + model.ElementID(2*k) }
	withB := func(k int) model.ElementID { return first + model.ElementID(2*k+1) }
	partner := func(k int, child func(int) model.ElementID) model.ElementID {
		if len(sides) == 1 {
			return model.NullID
		}
		return child(1 - k)
	}

	for k, s := range sides {
		A, B := withA(k), withB(k)
		var va, vb, na, nb [3]model.ElementID
		va[s.ia], va[s.ib], va[s.io] = a, mid, s.opp
		vb[s.ia], vb[s.ib], vb[s.io] = mid, b, s.opp
		na[s.io], na[s.ia], na[s.ib] = partner(k, withA), B, s.outA
		nb[s.io], nb[s.ib], nb[s.ia] = partner(k, withB), A, s.outB
		m.setFace(c, A, va, na)
		m.setFace(c, B, vb, nb)
		m.remove(c, model.Face, s.face)
		m.relink(c, s.outA, s.face, A, a, s.opp)
		m.relink(c, s.outB, s.face, B, b, s.opp)
		put(c, m.vf, s.opp, 0, A)
	}
	put(c, m.vf, a, 0, withA(0))
	put(c, m.vf, b, 0, withB(0))
	put(c, m.vf, mid, 0, withA(0))

	s := sides[0]
	return simplex.NewTriHandle(s.ib, s.io, withA(0), m.Epoch(c, withA(0))), nil
}

// CollapseEdge implements Topology. The handle's vertex a is merged into the
// other endpoint b. The collapse is rejected with ErrNotApplicable when it
// would break manifoldness: the link condition fails, an interior edge joins
// two boundary vertices, an opposite vertex would be left without faces, or
// two faces would coincide.
func (m *TriMesh) CollapseEdge(c *WorkerContext, h simplex.Handle) (simplex.Handle, error) {
	requireScope(c, "collapse edge")
	if _, ok := m.Resolve(c, h); !ok {
		return simplex.Null, ErrStaleHandle
	}
	a, b, sides := m.sides(c, h)

	starA, boundaryA := m.star(c, a)
	starB, boundaryB := m.star(c, b)
	if boundaryA && boundaryB && len(sides) == 2 {
		return simplex.Null, fmt.Errorf("%w: interior edge (%d,%d) joins two boundary vertices", ErrNotApplicable, a, b)
	}
	var link []model.ElementID
	for _, s := range sides {
		link = append(link, s.opp)
		if s.outA.IsNull() && s.outB.IsNull() {
			return simplex.Null, fmt.Errorf("%w: vertex %d would lose its last face", ErrNotApplicable, s.opp)
		}
	}
	ringB := m.ring(c, starB, b)
	var common []model.ElementID
	for _, u := range m.ring(c, starA, a) {
		if _, ok := slices.BinarySearch(ringB, u); ok {
			common = append(common, u)
		}
	}
	if !slices.Equal(common, sortedUnique(link)) {
		return simplex.Null, fmt.Errorf("%w: link condition fails for edge (%d,%d)", ErrNotApplicable, a, b)
	}

	removed := func(f model.ElementID) bool {
		for _, s := range sides {
			if s.face == f {
				return true
			}
		}
		return false
	}
	existing := make(map[[3]model.ElementID]struct{}, len(starB))
	for _, g := range starB {
		if !removed(g) {
			existing[m.faceKey(c, g, model.NullID, model.NullID)] = struct{}{}
		}
	}
	for _, g := range starA {
		if removed(g) {
			continue
		}
		if _, dup := existing[m.faceKey(c, g, a, b)]; dup {
			return simplex.Null, fmt.Errorf("%w: collapsing (%d,%d) makes face %d coincide with another", ErrNotApplicable, a, b, g)
		}
	}

	for _, s := range sides {
		m.remove(c, model.Face, s.face)
		m.relink(c, s.outA, s.face, s.outB, a, s.opp)
		m.relink(c, s.outB, s.face, s.outA, b, s.opp)
		if !s.outA.IsNull() {
			put(c, m.vf, s.opp, 0, s.outA)
		} else {
			put(c, m.vf, s.opp, 0, s.outB)
		}
	}
	m.remove(c, model.Vertex, a)
	for _, g := range starA {
		if removed(g) {
			continue
		}
		put(c, m.fv, g, m.localOf(c, g, a), b)
		m.bump(c, g)
	}
	s := sides[0]
	keep := s.outB
	if keep.IsNull() {
		keep = s.outA
	}
	put(c, m.vf, b, 0, keep)

	out, ok := m.HandleFor(c, model.Vertex, b)
	if !ok {
		invariantf("collapse edge", "surviving vertex %d is not active", b)
	}
	return out, nil
}

// faceKey returns the sorted vertices of f with from replaced by to.
func (m *TriMesh) faceKey(c *WorkerContext, f, from, to model.ElementID) [3]model.ElementID {
	var k [3]model.ElementID
	for i := range 3 {
		k[i] = m.vertex(c, f, i)
		if k[i] == from {
			k[i] = to
		}
	}
	slices.Sort(k[:])
	return k
}

// SwapEdge implements Topology. The interior edge (a, b) shared by faces
// (a, b, c) and (b, a, d) is replaced by (c, d). The returned handle addresses
// vertex c and the new edge.
func (m *TriMesh) SwapEdge(c *WorkerContext, h simplex.Handle) (simplex.Handle, error) {
	requireScope(c, "swap edge")
	if _, ok := m.Resolve(c, h); !ok {
		return simplex.Null, ErrStaleHandle
	}
	a, b, sides := m.sides(c, h)
	if len(sides) != 2 {
		return simplex.Null, fmt.Errorf("%w: boundary edge (%d,%d) cannot be swapped", ErrNotApplicable, a, b)
	}
	s0, s1 := sides[0], sides[1]
	vc, vd := s0.opp, s1.opp
	if vc == vd {
		return simplex.Null, fmt.Errorf("%w: swap of (%d,%d) is degenerate", ErrNotApplicable, a, b)
	}
	starC, _ := m.star(c, vc)
	if _, ok := slices.BinarySearch(m.ring(c, starC, vc), vd); ok {
		return simplex.Null, fmt.Errorf("%w: edge (%d,%d) already exists", ErrNotApplicable, vc, vd)
	}

	g0 := m.create(c, model.Face, 2)
	g1 := g0 + 1
	var v0, n0, v1, n1 [3]model.ElementID
	// g0 is the first face with b replaced by d, g1 the second with a replaced by c.
	v0[s0.ia], v0[s0.ib], v0[s0.io] = a, vd, vc
	n0[s0.ia], n0[s0.ib], n0[s0.io] = g1, s0.outA, s1.outA
	v1[s1.ia], v1[s1.ib], v1[s1.io] = vc, b, vd
	n1[s1.ib], n1[s1.ia], n1[s1.io] = g0, s1.outB, s0.outB
	m.setFace(c, g0, v0, n0)
	m.setFace(c, g1, v1, n1)

	m.remove(c, model.Face, s0.face)
	m.remove(c, model.Face, s1.face)
	m.relink(c, s0.outA, s0.face, g0, a, vc)
	m.relink(c, s1.outA, s1.face, g0, a, vd)
	m.relink(c, s1.outB, s1.face, g1, b, vd)
	m.relink(c, s0.outB, s0.face, g1, b, vc)

	put(c, m.vf, a, 0, g0)
	put(c, m.vf, b, 0, g1)
	put(c, m.vf, vc, 0, g0)
	put(c, m.vf, vd, 0, g0)
	return simplex.NewTriHandle(s0.io, s0.ia, g0, m.Epoch(c, g0)), nil
}

// SwapFace implements Topology. Triangle faces are top cells and have no
// face swap.
func (m *TriMesh) SwapFace(*WorkerContext, simplex.Handle) (simplex.Handle, error) {
	return simplex.Null, ErrUnsupported
}

// Count implements Topology. Edges are counted by canonical id.
func (m *TriMesh) Count(pt model.PrimitiveType) int {
	if pt == model.Edge {
		return len(m.Handles(model.Edge))
	}
	return m.Mesh.Count(pt)
}

// Handles implements Topology.
func (m *TriMesh) Handles(pt model.PrimitiveType) []simplex.Handle {
	var out []simplex.Handle
	m.ReadCommitted(func() {
		c := m.baseContext()
		nf := model.ElementID(m.Size(model.Face))
		switch pt {
		case model.Vertex:
			for v := range model.ElementID(m.Size(model.Vertex)) {
				if h, ok := m.HandleFor(c, pt, v); ok {
					out = append(out, h)
				}
			}
		case model.Edge:
			for id := range 3 * nf {
				if h, ok := m.HandleFor(c, pt, id); ok {
					out = append(out, h)
				}
			}
		case model.Face:
			for f := range nf {
				if h, ok := m.HandleFor(c, pt, f); ok {
					out = append(out, h)
				}
			}
		}
	})
	return out
}

// Validate implements Topology.
func (m *TriMesh) Validate() (err error) {
	defer func() { err = Recover(recover(), err) }()
	fail := func(format string, args ...any) error {
		return &InvariantError{Op: "validate", Msg: fmt.Sprintf(format, args...)}
	}
	c := m.baseContext()
	m.publish.RLock()
	defer m.publish.RUnlock()

	nv, nf := m.Size(model.Vertex), m.Size(model.Face)
	incident := make([]int, nv)
	for f := range model.ElementID(nf) {
		if !m.Alive(c, model.Face, f) {
			continue
		}
		if m.alloc[model.Face].isDeleted(f) {
			return fail("face %d is active but deleted", f)
		}
		if m.Epoch(c, f) < 1 {
			return fail("face %d has epoch %d", f, m.Epoch(c, f))
		}
		var vs [3]model.ElementID
		for i := range 3 {
			vs[i] = m.vertex(c, f, i)
			if vs[i].IsNull() || int(vs[i]) >= nv || !m.Alive(c, model.Vertex, vs[i]) {
				return fail("face %d references dead vertex %d", f, vs[i])
			}
			incident[vs[i]]++
		}
		if vs[0] == vs[1] || vs[1] == vs[2] || vs[0] == vs[2] {
			return fail("face %d is degenerate", f)
		}
		for le := range 3 {
			n := m.neighbor(c, f, le)
			if n.IsNull() {
				continue
			}
			if !m.Alive(c, model.Face, n) {
				return fail("face %d references dead neighbour %d", f, n)
			}
			x, y := simplex.TriEdgeVertices(le)
			if m.localOf(c, n, vs[x]) < 0 || m.localOf(c, n, vs[y]) < 0 || m.slotTo(c, n, f, vs[x], vs[y]) < 0 {
				return fail("faces %d and %d disagree about edge (%d,%d)", f, n, vs[x], vs[y])
			}
		}
	}
	for v := range model.ElementID(nv) {
		if !m.Alive(c, model.Vertex, v) {
			continue
		}
		if incident[v] == 0 {
			return fail("vertex %d has no faces", v)
		}
		f := get(c, m.vf, v, 0)
		if f.IsNull() || !m.Alive(c, model.Face, f) || m.localOf(c, f, v) < 0 {
			return fail("vertex %d points to face %d that does not contain it", v, f)
		}
		if star, _ := m.star(c, v); len(star) != incident[v] {
			return fail("vertex %d is non-manifold: fan of %d, %d incident faces", v, len(star), incident[v])
		}
	}
	return nil
}

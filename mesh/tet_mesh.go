package mesh

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/hupe1980/meshkit/attribute"
	"github.com/hupe1980/meshkit/model"
	"github.com/hupe1980/meshkit/simplex"
)

// TetMesh is a 3-manifold tetrahedral mesh, possibly with boundary.
//
// Edges and faces are not stored. The edge addressed by local edge le of
// tetrahedron t has the canonical id min(6t+le) over the tetrahedra sharing
// it; the face addressed by local face lf has the id min(4t+lf, 4n+j) over
// its one or two tetrahedra. Local face i is opposite local vertex i.
type TetMesh struct {
	*Mesh

	tv attribute.Handle[model.ElementID] // tet -> its four vertices
	tt attribute.Handle[model.ElementID] // tet -> neighbour across local face i
	vt attribute.Handle[model.ElementID] // vertex -> one incident tet
}

var _ Topology = (*TetMesh)(nil)

// NewTetMesh builds a tetrahedral mesh from vertex quadruples. Vertex ids must
// be dense from zero; every face may be shared by at most two tetrahedra and
// the tetrahedra around every vertex must be connected through faces.
func NewTetMesh(tets [][4]int64, optFns ...func(o *Options)) (*TetMesh, error) {
	opts := DefaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	type slot struct {
		tet   int
		local int
	}
	nv := 0
	seen := make(map[[4]int64]int, len(tets))
	for i, t := range tets {
		for _, v := range t {
			if v < 0 {
				return nil, fmt.Errorf("%w: tetrahedron %d has a negative vertex id", ErrInvalidInput, i)
			}
			nv = max(nv, int(v)+1)
		}
		key := t
		slices.Sort(key[:])
		if key[0] == key[1] || key[1] == key[2] || key[2] == key[3] {
			return nil, fmt.Errorf("%w: tetrahedron %d is degenerate", ErrInvalidInput, i)
		}
		if j, ok := seen[key]; ok {
			return nil, fmt.Errorf("%w: tetrahedra %d and %d share all vertices", ErrInvalidInput, j, i)
		}
		seen[key] = i
	}
	faces := make(map[[3]int64][]slot, 2*len(tets))
	referenced := make([]int, nv)
	for i, t := range tets {
		for lf := range 4 {
			var key [3]int64
			k := 0
			for j, v := range t {
				if j != lf {
					key[k] = v
					k++
				}
			}
			slices.Sort(key[:])
			faces[key] = append(faces[key], slot{tet: i, local: lf})
			if len(faces[key]) > 2 {
				return nil, fmt.Errorf("%w: face (%d,%d,%d) has more than two tetrahedra", ErrInvalidInput, key[0], key[1], key[2])
			}
		}
		for _, v := range t {
			referenced[v]++
		}
	}
	for v, n := range referenced {
		if n == 0 {
			return nil, fmt.Errorf("%w: vertex %d is not referenced", ErrInvalidInput, v)
		}
	}

	m := &TetMesh{Mesh: newMesh(model.Tetrahedron, []model.PrimitiveType{model.Vertex, model.Tetrahedron}, opts)}
	m.tv = m.registerLink(model.Tetrahedron, "tv", 4, model.Vertex)
	m.tt = m.registerLink(model.Tetrahedron, "tt", 4, model.Tetrahedron)
	m.vt = m.registerLink(model.Vertex, "vt", 1, model.Tetrahedron)

	c := m.baseContext()
	c.stack.Push()
	m.create(c, model.Vertex, nv)
	m.create(c, model.Tetrahedron, len(tets))
	for i, t := range tets {
		for k, v := range t {
			put(c, m.tv, model.ElementID(i), k, model.ElementID(v))
			put(c, m.vt, model.ElementID(v), 0, model.ElementID(i))
		}
	}
	for _, s := range faces {
		if len(s) == 2 {
			put(c, m.tt, model.ElementID(s[0].tet), s[0].local, model.ElementID(s[1].tet))
			put(c, m.tt, model.ElementID(s[1].tet), s[1].local, model.ElementID(s[0].tet))
		}
	}
	for v, n := range referenced {
		if star, _ := m.star(c, model.ElementID(v)); len(star) != n {
			m.Undo(c)
			return nil, fmt.Errorf("%w: vertex %d is non-manifold", ErrInvalidInput, v)
		}
	}
	m.Commit(c, nil)

	m.logger.Debug("tetrahedral mesh built", slog.Int("vertices", nv), slog.Int("tetrahedra", len(tets)))
	return m, nil
}

func (m *TetMesh) vertex(c *WorkerContext, t model.ElementID, i int) model.ElementID {
	return get(c, m.tv, t, i)
}

func (m *TetMesh) neighbor(c *WorkerContext, t model.ElementID, i int) model.ElementID {
	return get(c, m.tt, t, i)
}

func (m *TetMesh) verts(c *WorkerContext, t model.ElementID) [4]model.ElementID {
	var vs [4]model.ElementID
	for i := range 4 {
		vs[i] = m.vertex(c, t, i)
	}
	return vs
}

// localOf returns the local index of v in tetrahedron t, or -1.
func (m *TetMesh) localOf(c *WorkerContext, t, v model.ElementID) int {
	for i := range 4 {
		if m.vertex(c, t, i) == v {
			return i
		}
	}
	return -1
}

// slotTo returns the local face of n that points to t, or -1. Two tetrahedra
// share at most one face.
func (m *TetMesh) slotTo(c *WorkerContext, n, t model.ElementID) int {
	for j := range 4 {
		if m.neighbor(c, n, j) == t {
			return j
		}
	}
	return -1
}

// relink points the slot of n that refers to old at nu.
func (m *TetMesh) relink(c *WorkerContext, n, old, nu model.ElementID) {
	if n.IsNull() {
		return
	}
	j := m.slotTo(c, n, old)
	if j < 0 {
		invariantf("relink", "tetrahedron %d has no face pointing to %d", n, old)
	}
	put(c, m.tt, n, j, nu)
	m.bump(c, n)
}

// faceOf returns the sorted vertices of local face lf of vs.
func faceOf(vs [4]model.ElementID, lf int) [3]model.ElementID {
	var k [3]model.ElementID
	i := 0
	for j, v := range vs {
		if j != lf {
			k[i] = v
			i++
		}
	}
	slices.Sort(k[:])
	return k
}

func indexOf(vs [4]model.ElementID, v model.ElementID) int {
	return slices.Index(vs[:], v)
}

// tetFlag returns the flag at local vertex lv on the edge towards other and
// the first face containing that edge.
func tetFlag(lv, other int, t model.ElementID, epoch int64) simplex.Handle {
	lf := 0
	for lf == lv || lf == other {
		lf++
	}
	return simplex.NewTetHandle(lv, simplex.TetEdgeBetween(lv, other), lf, t, epoch)
}

// star returns the tetrahedra incident to v and whether v lies on the
// boundary.
func (m *TetMesh) star(c *WorkerContext, v model.ElementID) ([]model.ElementID, bool) {
	t0 := get(c, m.vt, v, 0)
	if m.localOf(c, t0, v) < 0 {
		invariantf("star", "vertex %d points to tetrahedron %d that does not contain it", v, t0)
	}
	limit := m.Size(model.Tetrahedron)
	tets := []model.ElementID{t0}
	seen := map[model.ElementID]struct{}{t0: {}}
	boundary := false
	for i := 0; i < len(tets); i++ {
		t := tets[i]
		lv := m.localOf(c, t, v)
		if lv < 0 {
			invariantf("star", "tetrahedron %d reached from vertex %d does not contain it", t, v)
		}
		for j := range 4 {
			if j == lv {
				continue
			}
			n := m.neighbor(c, t, j)
			if n.IsNull() {
				boundary = true
				continue
			}
			if _, ok := seen[n]; ok {
				continue
			}
			seen[n] = struct{}{}
			tets = append(tets, n)
			if len(tets) > limit {
				invariantf("star", "tetrahedra around vertex %d do not close", v)
			}
		}
	}
	return tets, boundary
}

// edgeTets returns the tetrahedra incident to the edge (a, b) and whether the
// edge lies on the boundary.
func (m *TetMesh) edgeTets(c *WorkerContext, a, b model.ElementID) ([]model.ElementID, bool) {
	starA, _ := m.star(c, a)
	var out []model.ElementID
	boundary := false
	for _, t := range starA {
		lb := m.localOf(c, t, b)
		if lb < 0 {
			continue
		}
		out = append(out, t)
		la := m.localOf(c, t, a)
		for j := range 4 {
			if j != la && j != lb && m.neighbor(c, t, j).IsNull() {
				boundary = true
			}
		}
	}
	return out, boundary
}

// ring returns the vertices of tets, excluding skip, ascending.
func (m *TetMesh) ring(c *WorkerContext, tets []model.ElementID, skip ...model.ElementID) []model.ElementID {
	out := make([]model.ElementID, 0, 3*len(tets))
	for _, t := range tets {
		for i := range 4 {
			if u := m.vertex(c, t, i); !slices.Contains(skip, u) {
				out = append(out, u)
			}
		}
	}
	return sortedUnique(out)
}

// endpoints returns the handle's vertex and the other end of its edge.
func (m *TetMesh) endpoints(c *WorkerContext, h simplex.Handle) (a, b model.ElementID) {
	x, y := simplex.TetEdgeVertices(h.LocalEdge())
	lv := h.LocalVertex()
	return m.vertex(c, h.Cell, lv), m.vertex(c, h.Cell, x+y-lv)
}

func (m *TetMesh) edgeID(c *WorkerContext, t model.ElementID, le int) model.ElementID {
	x, y := simplex.TetEdgeVertices(le)
	a, b := m.vertex(c, t, x), m.vertex(c, t, y)
	best := 6*t + model.ElementID(le)
	tets, _ := m.edgeTets(c, a, b)
	for _, u := range tets {
		id := 6*u + model.ElementID(simplex.TetEdgeBetween(m.localOf(c, u, a), m.localOf(c, u, b)))
		best = min(best, id)
	}
	return best
}

func (m *TetMesh) faceID(c *WorkerContext, t model.ElementID, lf int) model.ElementID {
	own := 4*t + model.ElementID(lf)
	n := m.neighbor(c, t, lf)
	if n.IsNull() {
		return own
	}
	j := m.slotTo(c, n, t)
	if j < 0 {
		invariantf("face id", "tetrahedron %d is not linked back to %d", n, t)
	}
	return min(own, 4*n+model.ElementID(j))
}

// cross moves h into the neighbouring tetrahedron across its local face. The
// result carries no epoch.
func (m *TetMesh) cross(c *WorkerContext, h simplex.Handle) (simplex.Handle, bool) {
	t, lv, lf := h.Cell, h.LocalVertex(), h.LocalFace()
	n := m.neighbor(c, t, lf)
	if n.IsNull() {
		return simplex.Null, false
	}
	x, y := simplex.TetEdgeVertices(h.LocalEdge())
	other := x + y - lv
	third := 6 - lf - x - y
	nv := m.localOf(c, n, m.vertex(c, t, lv))
	nw := m.localOf(c, n, m.vertex(c, t, other))
	nu := m.localOf(c, n, m.vertex(c, t, third))
	if nv < 0 || nw < 0 || nu < 0 {
		invariantf("switch tetrahedron", "tetrahedra %d and %d do not share face %d", t, n, lf)
	}
	return simplex.NewTetHandle(nv, simplex.TetEdgeBetween(nv, nw), 6-nv-nw-nu, n, 0), true
}

// Resolve implements Topology.
func (m *TetMesh) Resolve(c *WorkerContext, h simplex.Handle) (model.ElementID, bool) {
	if !simplex.ValidTet(h) {
		return model.NullID, false
	}
	return m.Mesh.Resolve(c, h)
}

// ID implements Topology.
func (m *TetMesh) ID(c *WorkerContext, h simplex.Handle, pt model.PrimitiveType) model.ElementID {
	switch pt {
	case model.Vertex:
		return m.vertex(c, h.Cell, h.LocalVertex())
	case model.Edge:
		return m.edgeID(c, h.Cell, h.LocalEdge())
	case model.Face:
		return m.faceID(c, h.Cell, h.LocalFace())
	case model.Tetrahedron:
		return h.Cell
	default:
		return model.NullID
	}
}

// Switch implements Topology.
func (m *TetMesh) Switch(c *WorkerContext, h simplex.Handle, pt model.PrimitiveType) (simplex.Handle, bool) {
	switch pt {
	case model.Vertex:
		return simplex.SwitchVertexInTet(h), true
	case model.Edge:
		return simplex.SwitchEdgeInTet(h), true
	case model.Face:
		return simplex.SwitchFaceInTet(h), true
	case model.Tetrahedron:
		n, ok := m.cross(c, h)
		if !ok {
			return simplex.Null, false
		}
		return n.WithEpoch(m.Epoch(c, n.Cell)), true
	default:
		return simplex.Null, false
	}
}

// HandleFor implements Topology. Edge and face ids must be canonical.
func (m *TetMesh) HandleFor(c *WorkerContext, pt model.PrimitiveType, id model.ElementID) (simplex.Handle, bool) {
	nt := model.ElementID(m.Size(model.Tetrahedron))
	switch pt {
	case model.Vertex:
		if !m.Alive(c, pt, id) {
			return simplex.Null, false
		}
		t := get(c, m.vt, id, 0)
		lv := m.localOf(c, t, id)
		return tetFlag(lv, (lv+1)%4, t, m.Epoch(c, t)), true
	case model.Edge:
		if id < 0 {
			return simplex.Null, false
		}
		t, le := id/6, int(id%6)
		if t >= nt || !m.Alive(c, model.Tetrahedron, t) || m.edgeID(c, t, le) != id {
			return simplex.Null, false
		}
		x, y := simplex.TetEdgeVertices(le)
		return tetFlag(x, y, t, m.Epoch(c, t)), true
	case model.Face:
		if id < 0 {
			return simplex.Null, false
		}
		t, lf := id/4, int(id%4)
		if t >= nt || !m.Alive(c, model.Tetrahedron, t) || m.faceID(c, t, lf) != id {
			return simplex.Null, false
		}
		fv := simplex.TetFaceVertices(lf)
		return simplex.NewTetHandle(fv[0], simplex.TetEdgeBetween(fv[0], fv[1]), lf, t, m.Epoch(c, t)), true
	case model.Tetrahedron:
		if !m.Alive(c, pt, id) {
			return simplex.Null, false
		}
		return tetFlag(0, 1, id, m.Epoch(c, id)), true
	default:
		return simplex.Null, false
	}
}

// OneRing implements Topology.
func (m *TetMesh) OneRing(c *WorkerContext, h simplex.Handle) []model.ElementID {
	v := m.vertex(c, h.Cell, h.LocalVertex())
	tets, _ := m.star(c, v)
	return m.ring(c, tets, v)
}

// IsBoundary implements Topology.
func (m *TetMesh) IsBoundary(c *WorkerContext, h simplex.Handle, pt model.PrimitiveType) bool {
	switch pt {
	case model.Vertex:
		_, b := m.star(c, m.vertex(c, h.Cell, h.LocalVertex()))
		return b
	case model.Edge:
		a, b := m.endpoints(c, h)
		_, boundary := m.edgeTets(c, a, b)
		return boundary
	case model.Face:
		return m.neighbor(c, h.Cell, h.LocalFace()).IsNull()
	case model.Tetrahedron:
		for i := range 4 {
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
func (m *TetMesh) Region(c *WorkerContext, kind RegionKind, h simplex.Handle) ([]model.ElementID, error) {
	if _, ok := m.Resolve(c, h); !ok {
		return nil, ErrStaleHandle
	}
	a, b := m.endpoints(c, h)
	ends := []model.ElementID{a}
	if kind == EdgeRegion {
		ends = append(ends, b)
	}
	var region []model.ElementID
	for _, v := range ends {
		tets, _ := m.star(c, v)
		region = append(region, v)
		region = append(region, m.ring(c, tets, v)...)
	}
	return sortedUnique(region), nil
}

// rebuild replaces the tetrahedra old by new ones with the given vertices.
// Outer faces of old keep their neighbours, faces shared by two new
// tetrahedra are linked to each other and any other new face is boundary.
// It returns the id of the first new tetrahedron.
func (m *TetMesh) rebuild(c *WorkerContext, old []model.ElementID, verts [][4]model.ElementID) model.ElementID {
	type side struct {
		tet   model.ElementID
		from  model.ElementID
		local int
	}
	outer := make(map[[3]model.ElementID]side, 2*len(old))
	for _, t := range old {
		vs := m.verts(c, t)
		for j := range 4 {
			n := m.neighbor(c, t, j)
			if slices.Contains(old, n) {
				continue
			}
			outer[faceOf(vs, j)] = side{tet: n, from: t}
		}
	}

	first := m.create(c, model.Tetrahedron, len(verts))
	open := make(map[[3]model.ElementID]side, 2*len(verts))
	for i, vs := range verts {
		g := first + model.ElementID(i)
		for k, v := range vs {
			put(c, m.tv, g, k, v)
			put(c, m.vt, v, 0, g)
		}
		for j := range 4 {
			key := faceOf(vs, j)
			if o, ok := outer[key]; ok {
				delete(outer, key)
				put(c, m.tt, g, j, o.tet)
				m.relink(c, o.tet, o.from, g)
				continue
			}
			if p, ok := open[key]; ok {
				delete(open, key)
				put(c, m.tt, g, j, p.tet)
				put(c, m.tt, p.tet, p.local, g)
				continue
			}
			put(c, m.tt, g, j, model.NullID)
			open[key] = side{tet: g, local: j}
		}
	}
	for key, o := range outer {
		if !o.tet.IsNull() {
			invariantf("rebuild", "tetrahedron %d lost its neighbour across %v", o.tet, key)
		}
	}
	for _, t := range old {
		m.remove(c, model.Tetrahedron, t)
	}
	return first
}

// SplitEdge implements Topology. Every tetrahedron around the edge (a, b) is
// replaced by two that keep its orientation; the returned handle addresses
// the new vertex and the half edge towards a.
func (m *TetMesh) SplitEdge(c *WorkerContext, h simplex.Handle) (simplex.Handle, error) {
	requireScope(c, "split edge")
	if _, ok := m.Resolve(c, h); !ok {
		return simplex.Null, ErrStaleHandle
	}
	a, b := m.endpoints(c, h)
	tets, _ := m.edgeTets(c, a, b)

	mid := m.create(c, model.Vertex, 1)
	verts := make([][4]model.ElementID, 0, 2*len(tets))
	for _, t := range tets {
		vs := m.verts(c, t)
		withA, withB := vs, vs
		withA[indexOf(vs, b)] = mid
		withB[indexOf(vs, a)] = mid
		verts = append(verts, withA, withB)
	}
	first := m.rebuild(c, tets, verts)
	return tetFlag(indexOf(verts[0], mid), indexOf(verts[0], a), first, m.Epoch(c, first)), nil
}

// simplices is a set of simplices given by their sorted vertices.
type simplices struct {
	verts map[model.ElementID]struct{}
	edges map[[2]model.ElementID]struct{}
	faces map[[3]model.ElementID]struct{}
}

// link collects the simplices of tets and of the boundary faces bnd that do
// not touch skip. Boundary faces are closed with the virtual vertex NullID.
func (m *TetMesh) link(c *WorkerContext, skip []model.ElementID, tets []model.ElementID, bnd [][3]model.ElementID) simplices {
	lk := simplices{
		verts: make(map[model.ElementID]struct{}),
		edges: make(map[[2]model.ElementID]struct{}),
		faces: make(map[[3]model.ElementID]struct{}),
	}
	hit := func(vs ...model.ElementID) bool {
		return slices.ContainsFunc(vs, func(v model.ElementID) bool { return slices.Contains(skip, v) })
	}
	add := func(s [4]model.ElementID) {
		for _, v := range s {
			if !hit(v) {
				lk.verts[v] = struct{}{}
			}
		}
		for le := range 6 {
			x, y := simplex.TetEdgeVertices(le)
			e := [2]model.ElementID{min(s[x], s[y]), max(s[x], s[y])}
			if !hit(e[:]...) {
				lk.edges[e] = struct{}{}
			}
		}
		for lf := range 4 {
			if f := faceOf(s, lf); !hit(f[:]...) {
				lk.faces[f] = struct{}{}
			}
		}
	}
	for _, t := range tets {
		add(m.verts(c, t))
	}
	for _, f := range bnd {
		add([4]model.ElementID{f[0], f[1], f[2], model.NullID})
	}
	return lk
}

// boundaryFaces returns the boundary faces containing v.
func (m *TetMesh) boundaryFaces(c *WorkerContext, v model.ElementID, star []model.ElementID) [][3]model.ElementID {
	var out [][3]model.ElementID
	for _, t := range star {
		vs := m.verts(c, t)
		lv := indexOf(vs, v)
		for j := range 4 {
			if j != lv && m.neighbor(c, t, j).IsNull() {
				out = append(out, faceOf(vs, j))
			}
		}
	}
	return out
}

// intersects reports whether x ∩ y equals want.
func intersects[K comparable](x, y, want map[K]struct{}) bool {
	n := 0
	for k := range x {
		if _, ok := y[k]; !ok {
			continue
		}
		if _, ok := want[k]; !ok {
			return false
		}
		n++
	}
	return n == len(want)
}

// linkCondition reports whether lk(a) ∩ lk(b) equals lk(ab) and the edge link
// holds no faces.
func (m *TetMesh) linkCondition(c *WorkerContext, a, b model.ElementID, starA, starB, edge []model.ElementID) bool {
	bndA := m.boundaryFaces(c, a, starA)
	var bndAB [][3]model.ElementID
	for _, f := range bndA {
		if slices.Contains(f[:], b) {
			bndAB = append(bndAB, f)
		}
	}
	lkA := m.link(c, []model.ElementID{a}, starA, bndA)
	lkB := m.link(c, []model.ElementID{b}, starB, m.boundaryFaces(c, b, starB))
	lkAB := m.link(c, []model.ElementID{a, b}, edge, bndAB)
	if len(lkAB.faces) > 0 {
		return false
	}
	return intersects(lkA.verts, lkB.verts, lkAB.verts) &&
		intersects(lkA.edges, lkB.edges, lkAB.edges) &&
		intersects(lkA.faces, lkB.faces, lkAB.faces)
}

// tetKey returns the sorted vertices of t with from replaced by to.
func (m *TetMesh) tetKey(c *WorkerContext, t, from, to model.ElementID) [4]model.ElementID {
	k := m.verts(c, t)
	if i := indexOf(k, from); i >= 0 {
		k[i] = to
	}
	slices.Sort(k[:])
	return k
}

// CollapseEdge implements Topology. The handle's vertex a is merged into the
// other endpoint b. The collapse is rejected with ErrNotApplicable when the
// link condition fails, a vertex would be left without tetrahedra, or two
// tetrahedra would coincide.
func (m *TetMesh) CollapseEdge(c *WorkerContext, h simplex.Handle) (simplex.Handle, error) {
	requireScope(c, "collapse edge")
	if _, ok := m.Resolve(c, h); !ok {
		return simplex.Null, ErrStaleHandle
	}
	a, b := m.endpoints(c, h)
	starA, _ := m.star(c, a)
	starB, _ := m.star(c, b)
	edge, _ := m.edgeTets(c, a, b)
	if !m.linkCondition(c, a, b, starA, starB, edge) {
		return simplex.Null, fmt.Errorf("%w: link condition fails for edge (%d,%d)", ErrNotApplicable, a, b)
	}

	removed := func(t model.ElementID) bool { return slices.Contains(edge, t) }
	keep := make(map[model.ElementID]model.ElementID)
	for _, t := range edge {
		for _, x := range m.verts(c, t) {
			if x == a {
				continue
			}
			if _, ok := keep[x]; ok {
				continue
			}
			var around []model.ElementID
			if x == b {
				around = append(slices.Clone(starB), starA...)
			} else {
				around, _ = m.star(c, x)
			}
			i := slices.IndexFunc(around, func(u model.ElementID) bool { return !removed(u) })
			if i < 0 {
				return simplex.Null, fmt.Errorf("%w: vertex %d would lose its last tetrahedron", ErrNotApplicable, x)
			}
			keep[x] = around[i]
		}
	}
	existing := make(map[[4]model.ElementID]struct{}, len(starB))
	for _, g := range starB {
		if !removed(g) {
			existing[m.tetKey(c, g, model.NullID, model.NullID)] = struct{}{}
		}
	}
	for _, g := range starA {
		if removed(g) {
			continue
		}
		if _, dup := existing[m.tetKey(c, g, a, b)]; dup {
			return simplex.Null, fmt.Errorf("%w: collapsing (%d,%d) makes tetrahedron %d coincide with another", ErrNotApplicable, a, b, g)
		}
	}

	for _, t := range edge {
		ia, ib := m.localOf(c, t, a), m.localOf(c, t, b)
		na, nb := m.neighbor(c, t, ib), m.neighbor(c, t, ia)
		m.remove(c, model.Tetrahedron, t)
		m.relink(c, na, t, nb)
		m.relink(c, nb, t, na)
	}
	for _, g := range starA {
		if removed(g) {
			continue
		}
		put(c, m.tv, g, m.localOf(c, g, a), b)
		m.bump(c, g)
	}
	m.remove(c, model.Vertex, a)
	for x, t := range keep {
		put(c, m.vt, x, 0, t)
	}

	out, ok := m.HandleFor(c, model.Vertex, b)
	if !ok {
		invariantf("collapse edge", "surviving vertex %d is not active", b)
	}
	return out, nil
}

// SwapEdge implements Topology as the 3-2 swap: the interior edge (a, b)
// shared by exactly three tetrahedra is removed and the triangle of their
// opposite vertices is inserted. The returned handle addresses the new face.
func (m *TetMesh) SwapEdge(c *WorkerContext, h simplex.Handle) (simplex.Handle, error) {
	requireScope(c, "swap edge")
	if _, ok := m.Resolve(c, h); !ok {
		return simplex.Null, ErrStaleHandle
	}
	a, b := m.endpoints(c, h)
	tets, boundary := m.edgeTets(c, a, b)
	if boundary {
		return simplex.Null, fmt.Errorf("%w: boundary edge (%d,%d) cannot be swapped", ErrNotApplicable, a, b)
	}
	if len(tets) != 3 {
		return simplex.Null, fmt.Errorf("%w: edge (%d,%d) has %d tetrahedra, want 3", ErrNotApplicable, a, b, len(tets))
	}
	ring := m.ring(c, tets, a, b)
	if len(ring) != 3 {
		return simplex.Null, fmt.Errorf("%w: edge (%d,%d) has %d opposite vertices, want 3", ErrNotApplicable, a, b, len(ring))
	}
	starX, _ := m.star(c, ring[0])
	for _, t := range starX {
		if m.localOf(c, t, ring[1]) >= 0 && m.localOf(c, t, ring[2]) >= 0 {
			return simplex.Null, fmt.Errorf("%w: face (%d,%d,%d) already exists", ErrNotApplicable, ring[0], ring[1], ring[2])
		}
	}

	vs := m.verts(c, tets[0])
	var z model.ElementID
	for _, x := range ring {
		if indexOf(vs, x) < 0 {
			z = x
		}
	}
	// up keeps a, down keeps b; both take the orientation of the first tetrahedron.
	up, down := vs, vs
	up[indexOf(vs, b)] = z
	down[indexOf(vs, a)] = z
	first := m.rebuild(c, tets, [][4]model.ElementID{up, down})

	iz, ia := indexOf(up, z), indexOf(up, a)
	other := 0
	for other == iz || other == ia {
		other++
	}
	return simplex.NewTetHandle(iz, simplex.TetEdgeBetween(iz, other), ia, first, m.Epoch(c, first)), nil
}

// SwapFace implements Topology as the 2-3 swap: the interior face shared by
// two tetrahedra is removed and the edge joining their opposite vertices is
// inserted. The returned handle addresses the new edge.
func (m *TetMesh) SwapFace(c *WorkerContext, h simplex.Handle) (simplex.Handle, error) {
	requireScope(c, "swap face")
	if _, ok := m.Resolve(c, h); !ok {
		return simplex.Null, ErrStaleHandle
	}
	t0, lf := h.Cell, h.LocalFace()
	t1 := m.neighbor(c, t0, lf)
	vs := m.verts(c, t0)
	if t1.IsNull() {
		f := faceOf(vs, lf)
		return simplex.Null, fmt.Errorf("%w: boundary face (%d,%d,%d) cannot be swapped", ErrNotApplicable, f[0], f[1], f[2])
	}
	j := m.slotTo(c, t1, t0)
	if j < 0 {
		invariantf("swap face", "tetrahedron %d is not linked back to %d", t1, t0)
	}
	u0, u1 := vs[lf], m.vertex(c, t1, j)
	if u0 == u1 {
		invariantf("swap face", "tetrahedra %d and %d share all vertices", t0, t1)
	}
	starU, _ := m.star(c, u0)
	if _, ok := slices.BinarySearch(m.ring(c, starU, u0), u1); ok {
		return simplex.Null, fmt.Errorf("%w: edge (%d,%d) already exists", ErrNotApplicable, u0, u1)
	}

	fv := simplex.TetFaceVertices(lf)
	verts := make([][4]model.ElementID, 0, 3)
	for _, k := range fv {
		nv := vs
		nv[k] = u1
		verts = append(verts, nv)
	}
	first := m.rebuild(c, []model.ElementID{t0, t1}, verts)
	return tetFlag(lf, fv[0], first, m.Epoch(c, first)), nil
}

// Count implements Topology. Edges and faces are counted by canonical id.
func (m *TetMesh) Count(pt model.PrimitiveType) int {
	if pt == model.Edge || pt == model.Face {
		return len(m.Handles(pt))
	}
	return m.Mesh.Count(pt)
}

// Handles implements Topology.
func (m *TetMesh) Handles(pt model.PrimitiveType) []simplex.Handle {
	var out []simplex.Handle
	m.ReadCommitted(func() {
		c := m.baseContext()
		var n model.ElementID
		switch pt {
		case model.Vertex:
			n = model.ElementID(m.Size(model.Vertex))
		case model.Edge:
			n = 6 * model.ElementID(m.Size(model.Tetrahedron))
		case model.Face:
			n = 4 * model.ElementID(m.Size(model.Tetrahedron))
		case model.Tetrahedron:
			n = model.ElementID(m.Size(model.Tetrahedron))
		}
		for id := range n {
			if h, ok := m.HandleFor(c, pt, id); ok {
				out = append(out, h)
			}
		}
	})
	return out
}

// Validate implements Topology.
func (m *TetMesh) Validate() (err error) {
	defer func() { err = Recover(recover(), err) }()
	fail := func(format string, args ...any) error {
		return &InvariantError{Op: "validate", Msg: fmt.Sprintf(format, args...)}
	}
	c := m.baseContext()
	m.publish.RLock()
	defer m.publish.RUnlock()

	nv, nt := m.Size(model.Vertex), m.Size(model.Tetrahedron)
	incident := make([]int, nv)
	seen := make(map[[4]model.ElementID]model.ElementID)
	for t := range model.ElementID(nt) {
		if !m.Alive(c, model.Tetrahedron, t) {
			continue
		}
		if m.alloc[model.Tetrahedron].isDeleted(t) {
			return fail("tetrahedron %d is active but deleted", t)
		}
		if m.Epoch(c, t) < 1 {
			return fail("tetrahedron %d has epoch %d", t, m.Epoch(c, t))
		}
		vs := m.verts(c, t)
		for _, v := range vs {
			if v.IsNull() || int(v) >= nv || !m.Alive(c, model.Vertex, v) {
				return fail("tetrahedron %d references dead vertex %d", t, v)
			}
			incident[v]++
		}
		key := vs
		slices.Sort(key[:])
		if key[0] == key[1] || key[1] == key[2] || key[2] == key[3] {
			return fail("tetrahedron %d is degenerate", t)
		}
		if o, dup := seen[key]; dup {
			return fail("tetrahedra %d and %d share all vertices", o, t)
		}
		seen[key] = t
		for lf := range 4 {
			n := m.neighbor(c, t, lf)
			if n.IsNull() {
				continue
			}
			if !m.Alive(c, model.Tetrahedron, n) {
				return fail("tetrahedron %d references dead neighbour %d", t, n)
			}
			j := m.slotTo(c, n, t)
			if j < 0 || faceOf(m.verts(c, n), j) != faceOf(vs, lf) {
				return fail("tetrahedra %d and %d disagree about face %v", t, n, faceOf(vs, lf))
			}
		}
	}
	for v := range model.ElementID(nv) {
		if !m.Alive(c, model.Vertex, v) {
			continue
		}
		if incident[v] == 0 {
			return fail("vertex %d has no tetrahedra", v)
		}
		t := get(c, m.vt, v, 0)
		if t.IsNull() || int(t) >= nt || !m.Alive(c, model.Tetrahedron, t) || m.localOf(c, t, v) < 0 {
			return fail("vertex %d points to tetrahedron %d that does not contain it", v, t)
		}
		if star, _ := m.star(c, v); len(star) != incident[v] {
			return fail("vertex %d is non-manifold: star of %d, %d incident tetrahedra", v, len(star), incident[v])
		}
	}
	return nil
}

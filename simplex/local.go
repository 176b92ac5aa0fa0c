package simplex

// Triangle local numbering: local edge e is opposite local vertex e, so its
// endpoints are (e+1)%3 and (e+2)%3. A valid triangle flag has lv != le.

// TriEdgeVertices returns the local endpoints of local edge le of a triangle.
func TriEdgeVertices(le int) (int, int) {
	return (le + 1) % 3, (le + 2) % 3
}

// TriEdgeBetween returns the local edge joining local vertices a and b.
func TriEdgeBetween(a, b int) int {
	return 3 - a - b
}

// ValidTri reports whether h is a well-formed triangle flag.
func ValidTri(h Handle) bool {
	lv, le := h.LocalVertex(), h.LocalEdge()
	return lv < 3 && le < 3 && lv != le
}

// SwitchVertexInEdge moves h to the other endpoint of its edge cell.
func SwitchVertexInEdge(h Handle) Handle {
	return NewEdgeHandle(h.LocalVertex()^1, h.Cell, h.Epoch)
}

// SwitchVertexInTri moves h to the other endpoint of its local edge.
func SwitchVertexInTri(h Handle) Handle {
	lv, le := h.LocalVertex(), h.LocalEdge()
	return NewTriHandle(3-lv-le, le, h.Cell, h.Epoch)
}

// SwitchEdgeInTri moves h to the other local edge incident to its vertex.
func SwitchEdgeInTri(h Handle) Handle {
	lv, le := h.LocalVertex(), h.LocalEdge()
	return NewTriHandle(lv, 3-lv-le, h.Cell, h.Epoch)
}

// Tetrahedron local numbering: local face f is opposite local vertex f. The
// six local edges are listed in tetEdges. A valid tetrahedron flag has lv on
// edge le and edge le on face lf, so lf is not an endpoint of le.
var tetEdges = [6][2]int{{0, 1}, {0, 2}, {0, 3}, {1, 2}, {1, 3}, {2, 3}}

// TetEdgeVertices returns the local endpoints of local edge le of a tetrahedron.
func TetEdgeVertices(le int) (int, int) {
	return tetEdges[le][0], tetEdges[le][1]
}

// TetEdgeBetween returns the local edge joining local vertices a and b.
func TetEdgeBetween(a, b int) int {
	a, b = min(a, b), max(a, b)
	for i, e := range tetEdges {
		if e[0] == a && e[1] == b {
			return i
		}
	}
	return -1
}

// TetFaceVertices returns the local vertices of local face lf in ascending order.
func TetFaceVertices(lf int) [3]int {
	var out [3]int
	k := 0
	for v := range 4 {
		if v != lf {
			out[k] = v
			k++
		}
	}
	return out
}

// ValidTet reports whether h is a well-formed tetrahedron flag.
func ValidTet(h Handle) bool {
	lv, le, lf := h.LocalVertex(), h.LocalEdge(), h.LocalFace()
	if le >= len(tetEdges) {
		return false
	}
	a, b := TetEdgeVertices(le)
	return (lv == a || lv == b) && lf != a && lf != b
}

// SwitchVertexInTet moves h to the other endpoint of its local edge.
func SwitchVertexInTet(h Handle) Handle {
	lv, le := h.LocalVertex(), h.LocalEdge()
	a, b := TetEdgeVertices(le)
	return NewTetHandle(a+b-lv, le, h.LocalFace(), h.Cell, h.Epoch)
}

// SwitchEdgeInTet moves h to the other edge of its local face incident to
// its vertex.
func SwitchEdgeInTet(h Handle) Handle {
	lv, le, lf := h.LocalVertex(), h.LocalEdge(), h.LocalFace()
	a, b := TetEdgeVertices(le)
	third := 6 - lf - a - b
	return NewTetHandle(lv, TetEdgeBetween(lv, third), lf, h.Cell, h.Epoch)
}

// SwitchFaceInTet moves h to the other local face containing its edge.
func SwitchFaceInTet(h Handle) Handle {
	lv, le, lf := h.LocalVertex(), h.LocalEdge(), h.LocalFace()
	a, b := TetEdgeVertices(le)
	return NewTetHandle(lv, le, 6-a-b-lf, h.Cell, h.Epoch)
}

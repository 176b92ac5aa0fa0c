package simplex

import (
	"testing"

	"github.com/hupe1980/meshkit/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allTriFlags(cell model.ElementID) []Handle {
	var hs []Handle
	for lv := range 3 {
		for le := range 3 {
			if lv != le {
				hs = append(hs, NewTriHandle(lv, le, cell, 7))
			}
		}
	}
	return hs
}

func TestEncoding(t *testing.T) {
	h := NewTriHandle(2, 1, 42, 3)
	assert.Equal(t, 2, h.LocalVertex())
	assert.Equal(t, 1, h.LocalEdge())
	assert.Equal(t, model.ElementID(42), h.Cell)
	assert.Equal(t, int64(3), h.Epoch)
	assert.True(t, ValidTri(h))
	assert.False(t, ValidTri(NewTriHandle(1, 1, 0, 0)))

	e := NewEdgeHandle(1, 5, 0)
	assert.Equal(t, 1, e.LocalVertex())
	assert.Equal(t, 0, e.LocalEdge())

	assert.True(t, Null.IsNull())
	assert.False(t, h.IsNull())
	assert.Equal(t, int64(9), h.WithEpoch(9).Epoch)
	assert.Equal(t, "simplex.Null", Null.String())
}

func TestSwitchesAreInvolutions(t *testing.T) {
	for _, h := range allTriFlags(1) {
		assert.Equal(t, h, SwitchVertexInTri(SwitchVertexInTri(h)))
		assert.Equal(t, h, SwitchEdgeInTri(SwitchEdgeInTri(h)))
		assert.True(t, ValidTri(SwitchVertexInTri(h)))
		assert.True(t, ValidTri(SwitchEdgeInTri(h)))
		assert.NotEqual(t, h, SwitchVertexInTri(h))
	}
	e := NewEdgeHandle(0, 3, 1)
	assert.Equal(t, e, SwitchVertexInEdge(SwitchVertexInEdge(e)))
	assert.Equal(t, 1, SwitchVertexInEdge(e).LocalVertex())
}

func TestSwitchGroupActsTransitively(t *testing.T) {
	// The two local switches generate the symmetric group of the triangle:
	// every flag is reachable from every other.
	start := NewTriHandle(0, 1, 1, 7)
	seen := map[Handle]bool{start: true}
	frontier := []Handle{start}
	for len(frontier) > 0 {
		h := frontier[0]
		frontier = frontier[1:]
		for _, n := range []Handle{SwitchVertexInTri(h), SwitchEdgeInTri(h)} {
			if !seen[n] {
				seen[n] = true
				frontier = append(frontier, n)
			}
		}
	}
	assert.Len(t, seen, 6)
}

func TestEdgeTables(t *testing.T) {
	for le := range 3 {
		a, b := TriEdgeVertices(le)
		assert.NotEqual(t, le, a)
		assert.NotEqual(t, le, b)
		assert.Equal(t, le, TriEdgeBetween(a, b))
	}
}

func allTetFlags(cell model.ElementID) []Handle {
	var hs []Handle
	for lv := range 4 {
		for le := range 6 {
			for lf := range 4 {
				if h := NewTetHandle(lv, le, lf, cell, 5); ValidTet(h) {
					hs = append(hs, h)
				}
			}
		}
	}
	return hs
}

func TestTetEncoding(t *testing.T) {
	h := NewTetHandle(3, 5, 1, 8, 2)
	assert.Equal(t, 3, h.LocalVertex())
	assert.Equal(t, 5, h.LocalEdge())
	assert.Equal(t, 1, h.LocalFace())
	assert.True(t, ValidTet(h))
	assert.Equal(t, "(cell=8 v=3 e=5 f=1 epoch=2)", h.String())

	// Vertex 0 is not on edge (2,3); face 2 does not contain edge (0,2).
	assert.False(t, ValidTet(NewTetHandle(0, 5, 0, 8, 2)))
	assert.False(t, ValidTet(NewTetHandle(0, 1, 2, 8, 2)))
	assert.False(t, ValidTet(NewTetHandle(0, 7, 1, 8, 2)))

	// Triangle handles keep their encoding.
	tri := NewTriHandle(2, 1, 4, 0)
	assert.Equal(t, 0, tri.LocalFace())
	assert.True(t, ValidTri(tri))
}

func TestTetSwitches(t *testing.T) {
	flags := allTetFlags(3)
	require.Len(t, flags, 24)
	for _, h := range flags {
		for _, sw := range []func(Handle) Handle{SwitchVertexInTet, SwitchEdgeInTet, SwitchFaceInTet} {
			n := sw(h)
			assert.True(t, ValidTet(n), "%s -> %s", h, n)
			assert.NotEqual(t, h, n)
			assert.Equal(t, h, sw(n))
		}
	}

	seen := map[Handle]bool{flags[0]: true}
	frontier := []Handle{flags[0]}
	for len(frontier) > 0 {
		h := frontier[0]
		frontier = frontier[1:]
		for _, n := range []Handle{SwitchVertexInTet(h), SwitchEdgeInTet(h), SwitchFaceInTet(h)} {
			if !seen[n] {
				seen[n] = true
				frontier = append(frontier, n)
			}
		}
	}
	assert.Len(t, seen, 24)
}

func TestTetTables(t *testing.T) {
	for le := range 6 {
		a, b := TetEdgeVertices(le)
		assert.Less(t, a, b)
		assert.Equal(t, le, TetEdgeBetween(b, a))
	}
	assert.Equal(t, -1, TetEdgeBetween(2, 2))
	assert.Equal(t, [3]int{0, 2, 3}, TetFaceVertices(1))
}

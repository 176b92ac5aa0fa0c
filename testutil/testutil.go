package testutil

import (
	"math/rand"
	"sync"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Uint64 returns a pseudo-random uint64.
func (r *RNG) Uint64() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Uint64()
}

// Float64 returns a pseudo-random number in [0.0,1.0).
func (r *RNG) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float64()
}

// FillUniform fills dst with random values in range [0, 1).
// Locks only once per call (preferred over calling Float64 in a loop).
func (r *RNG) FillUniform(dst []float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range dst {
		dst[i] = r.rand.Float64()
	}
}

// Perm returns a pseudo-random permutation of [0,n).
func (r *RNG) Perm(n int) []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Perm(n)
}

// Subset returns k distinct values from [0,n) in random order.
func (r *RNG) Subset(n, k int) []int {
	if k > n {
		k = n
	}
	return r.Perm(n)[:k]
}

// LoopEdges returns the edges of a closed loop over n vertices numbered
// offset..offset+n-1, each connected to the next and the last to the first.
func LoopEdges(n int, offset int64) [][2]int64 {
	edges := make([][2]int64, n)
	for i := range n {
		edges[i] = [2]int64{offset + int64(i), offset + int64((i+1)%n)}
	}
	return edges
}

// ChainEdges returns the edges of an open chain over n vertices numbered
// offset..offset+n-1.
func ChainEdges(n int, offset int64) [][2]int64 {
	if n < 2 {
		return nil
	}
	edges := make([][2]int64, n-1)
	for i := range n - 1 {
		edges[i] = [2]int64{offset + int64(i), offset + int64(i+1)}
	}
	return edges
}

// DisjointLoops returns k loops of n vertices each with no shared vertices.
func DisjointLoops(k, n int) [][2]int64 {
	edges := make([][2]int64, 0, k*n)
	for l := range k {
		edges = append(edges, LoopEdges(n, int64(l*n))...)
	}
	return edges
}

// GridTriangles triangulates an nx by ny grid of unit quads. Vertex (i, j)
// has id j*(nx+1)+i and position (i, j). Every quad is split along its
// diagonal from (i, j) to (i+1, j+1); triangles are counter-clockwise.
func GridTriangles(nx, ny int) ([][3]int64, [][2]float64) {
	stride := int64(nx + 1)
	pos := make([][2]float64, 0, (nx+1)*(ny+1))
	for j := 0; j <= ny; j++ {
		for i := 0; i <= nx; i++ {
			pos = append(pos, [2]float64{float64(i), float64(j)})
		}
	}
	faces := make([][3]int64, 0, 2*nx*ny)
	for j := range int64(ny) {
		for i := range int64(nx) {
			v00 := j*stride + i
			v10 := v00 + 1
			v01 := v00 + stride
			v11 := v01 + 1
			faces = append(faces, [3]int64{v00, v10, v11}, [3]int64{v00, v11, v01})
		}
	}
	return faces, pos
}

// Fan returns n triangles around a centre vertex 0. An open fan has rim
// vertices 1..n+1; a closed fan has rim vertices 1..n and its last triangle
// connects back to vertex 1.
func Fan(n int, closed bool) [][3]int64 {
	faces := make([][3]int64, 0, n)
	for i := range n {
		a := int64(1 + i)
		b := int64(2 + i)
		if closed && i == n-1 {
			b = 1
		}
		faces = append(faces, [3]int64{0, a, b})
	}
	return faces
}

// GridTets tetrahedralizes an nx by ny by nz grid of unit cubes. Vertex
// (i, j, k) has id (k*(ny+1)+j)*(nx+1)+i and position (i, j, k). Every cube
// is cut into six tetrahedra around its diagonal from (i, j, k) to
// (i+1, j+1, k+1), all positively oriented.
func GridTets(nx, ny, nz int) ([][4]int64, [][3]float64) {
	id := func(i, j, k int) int64 { return int64((k*(ny+1)+j)*(nx+1) + i) }
	pos := make([][3]float64, 0, (nx+1)*(ny+1)*(nz+1))
	for k := 0; k <= nz; k++ {
		for j := 0; j <= ny; j++ {
			for i := 0; i <= nx; i++ {
				pos = append(pos, [3]float64{float64(i), float64(j), float64(k)})
			}
		}
	}
	// Axis orders of the six monotone paths through a cube; odd ones are
	// flipped to keep the orientation.
	paths := [6]struct {
		axes [3]int
		odd  bool
	}{
		{[3]int{0, 1, 2}, false}, {[3]int{0, 2, 1}, true}, {[3]int{1, 0, 2}, true},
		{[3]int{1, 2, 0}, false}, {[3]int{2, 0, 1}, false}, {[3]int{2, 1, 0}, true},
	}
	tets := make([][4]int64, 0, 6*nx*ny*nz)
	for k := range nz {
		for j := range ny {
			for i := range nx {
				for _, p := range paths {
					at := [3]int{i, j, k}
					var t [4]int64
					t[0] = id(at[0], at[1], at[2])
					for s, ax := range p.axes {
						at[ax]++
						t[s+1] = id(at[0], at[1], at[2])
					}
					if p.odd {
						t[2], t[3] = t[3], t[2]
					}
					tets = append(tets, t)
				}
			}
		}
	}
	return tets, pos
}

// EdgeStar returns n tetrahedra around the edge (0, 1), with ring vertices
// 2..n+1 in order. The edge is interior; every other element lies on the
// boundary.
func EdgeStar(n int) [][4]int64 {
	tets := make([][4]int64, n)
	for i := range n {
		tets[i] = [4]int64{0, 1, int64(2 + i), int64(2 + (i+1)%n)}
	}
	return tets
}

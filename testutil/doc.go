// Package testutil provides testing utilities for meshkit.
//
// This package is intended for use in tests and benchmarks only.
// It provides a deterministic RNG and small connectivity fixtures.
//
// # Random Values
//
//	rng := testutil.NewRNG(seed)
//	pos := make([]float64, 2)
//	rng.FillUniform(pos)      // uniform [0, 1)
//
// # Fixtures
//
//	loop := testutil.LoopEdges(4, 0)          // 0-1-2-3-0
//	faces, pos := testutil.GridTriangles(3, 3) // 3x3 quads, 18 triangles
package testutil

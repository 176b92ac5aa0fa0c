// Package simplex defines the value-typed, epoch-tagged handle used to address
// mesh elements locally, and the pure switch tables that navigate within a
// single edge, triangle or tetrahedron.
//
// A Handle names one flag of a top-dimensional cell: a local vertex, for
// triangles also a local edge incident to it, and for tetrahedra also a local
// face containing that edge. Switching any component is an involution.
// Switches that cross into a neighbouring cell need connectivity and live in
// package mesh.
//
// Handles carry the epoch of their cell at creation time. Once an edit rewrites
// the cell, its epoch changes and the handle no longer resolves.
package simplex

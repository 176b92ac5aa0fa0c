// Package model defines core types used throughout meshkit.
//
// # Identity Types
//
//   - ElementID: Dense, reusable identifier of one mesh element (int64)
//   - PrimitiveType: The dimension of an element (vertex, edge, face, tetrahedron)
//
// Element ids are local to one primitive type of one mesh. They are reused only
// after consolidation renumbers the mesh.
package model

// Package mesh implements the topology layer of meshkit.
//
// Connectivity, per-element active flags and per-cell epochs are ordinary
// attribute columns. Every structural edit writes them through the editing
// worker's scope, so discarding the scope undoes the edit and committing it
// publishes the edit atomically with the attribute values the hooks wrote.
//
// Three dimensionalities implement the Topology interface:
//
//   - EdgeMesh: 1-manifold polylines and loops (split, collapse).
//   - TriMesh: 2-manifold triangle meshes with boundary (split, collapse, swap).
//   - TetMesh: 3-manifold tetrahedral meshes with boundary (split, collapse,
//     3-2 edge swap, 2-3 face swap).
//
// Concurrency model:
//
//   - A Mesh is shared by all workers; each worker owns a WorkerContext.
//   - Workers lock the vertices of the region they edit with non-blocking
//     try-locks taken in ascending id order.
//   - Region computation before locking reads committed state under the
//     publish read lock; Commit publishes under the write lock.
//   - Consolidate is single-threaded and invalidates every outstanding handle.
package mesh

// Package meshkit is a substrate for concurrent local mesh edits.
//
// A mesh is a set of columns in an attribute store: connectivity, per-cell
// epochs, activity flags and any user attributes. Edits run inside scopes
// that buffer writes until commit, so a rejected edit leaves no trace.
// Simplices are addressed with handles that carry the epoch of their cell
// and go stale when the cell is rewritten.
//
// # Quick Start
//
//	faces, _ := testutil.GridTriangles(8, 8)
//	m, _ := mesh.NewTriMesh(faces)
//	table := operation.Table{
//	    operation.EdgeSplit: {
//	        Priority: edgeLength,
//	        After:    qualityImproved,
//	    },
//	}
//	seeds := meshkit.Seeds(m, model.Edge, operation.EdgeSplit)
//	stats, err := meshkit.Run(ctx, m, table, seeds, meshkit.WithThreads(8))
//
// # Packages
//
//   - attribute: typed columns and nested scopes
//   - simplex: handles and local switch tables
//   - mesh: edge, triangle and tetrahedral topologies, locks, consolidation
//   - operation: the hook table and the executor state machine
//   - scheduler: sequential and partitioned passes
//   - oplog: compressed log of committed edits
//   - metrics: Prometheus collector for passes
//
// # Concurrency
//
// In a partitioned pass every worker locks the vertices of an edit's region
// with try-locks in ascending order and defers the candidate when any lock
// is taken. Base columns are published under a single write lock, so a
// worker never observes half of another worker's commit.
package meshkit

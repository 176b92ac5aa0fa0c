package mesh

import (
	"fmt"
	"slices"

	"github.com/hupe1980/meshkit/attribute"
	"github.com/hupe1980/meshkit/model"
	"github.com/hupe1980/meshkit/simplex"
)

// RegionKind selects the neighbourhood an operation locks.
type RegionKind uint8

const (
	// VertexRegion is the closed star of the handle's vertex: the vertex and
	// every vertex of a cell incident to it.
	VertexRegion RegionKind = iota
	// EdgeRegion is the union of the closed stars of both endpoints of the
	// handle's edge.
	EdgeRegion
)

func (k RegionKind) String() string {
	switch k {
	case VertexRegion:
		return "vertex"
	case EdgeRegion:
		return "edge"
	default:
		return fmt.Sprintf("RegionKind(%d)", k)
	}
}

// Topology is implemented once per mesh dimensionality.
//
// All methods taking a WorkerContext read through the context's scope stack
// and write into its active scope. Edits require an open scope and, when the
// context locks, the vertex locks of the edit's region.
//
// Every edit writes each cell it rewires or removes with a bumped epoch, so
// handles into those cells become stale.
type Topology interface {
	Base() *Mesh
	TopType() model.PrimitiveType

	// Resolve returns the handle's cell iff the handle is not stale.
	Resolve(c *WorkerContext, h simplex.Handle) (model.ElementID, bool)
	// ID returns the id of the pt-dimensional element the handle addresses.
	ID(c *WorkerContext, h simplex.Handle, pt model.PrimitiveType) model.ElementID
	// Switch changes the pt component of h and keeps the others. It reports
	// false when switching the top cell across a boundary.
	Switch(c *WorkerContext, h simplex.Handle, pt model.PrimitiveType) (simplex.Handle, bool)
	// HandleFor returns a handle addressing element id of pt.
	HandleFor(c *WorkerContext, pt model.PrimitiveType, id model.ElementID) (simplex.Handle, bool)
	// OneRing returns the vertices adjacent to the handle's vertex in ascending order.
	OneRing(c *WorkerContext, h simplex.Handle) []model.ElementID
	// IsBoundary reports whether the pt element of h lies on the mesh boundary.
	IsBoundary(c *WorkerContext, h simplex.Handle, pt model.PrimitiveType) bool
	// Region returns the vertex ids to lock, ascending, or ErrStaleHandle.
	Region(c *WorkerContext, kind RegionKind, h simplex.Handle) ([]model.ElementID, error)

	// SplitEdge inserts a vertex on the handle's edge and returns a handle to it.
	SplitEdge(c *WorkerContext, h simplex.Handle) (simplex.Handle, error)
	// CollapseEdge merges the handle's vertex into the other endpoint of its
	// edge and returns a handle to the surviving vertex.
	CollapseEdge(c *WorkerContext, h simplex.Handle) (simplex.Handle, error)
	// SwapEdge flips the handle's edge and returns a handle to the new edge.
	SwapEdge(c *WorkerContext, h simplex.Handle) (simplex.Handle, error)
	// SwapFace replaces the handle's interior face by the edge joining the
	// vertices opposite it. Only tetrahedral meshes support it.
	SwapFace(c *WorkerContext, h simplex.Handle) (simplex.Handle, error)

	Count(pt model.PrimitiveType) int
	// Handles returns one handle per committed live element of pt.
	Handles(pt model.PrimitiveType) []simplex.Handle
	// Validate checks every connectivity invariant on committed state.
	Validate() error
	Consolidate() error
	Digest() uint64
}

func get[T any](c *WorkerContext, h attribute.Handle[T], id model.ElementID, k int) T {
	v, err := attribute.ReadAt(c.stack, h, id, k)
	if err != nil {
		invariantf("read "+h.Name(), "%v", err)
	}
	return v
}

func put[T any](c *WorkerContext, h attribute.Handle[T], id model.ElementID, k int, v T) {
	if err := attribute.WriteAt(c.stack, h, id, k, v); err != nil {
		invariantf("write "+h.Name(), "%v", err)
	}
}

// requireScope guards every edit entry point.
func requireScope(c *WorkerContext, op string) {
	if c.stack.Empty() {
		invariantf(op, "edit without an open scope")
	}
}

func sortedUnique(ids []model.ElementID) []model.ElementID {
	out := slices.DeleteFunc(slices.Clone(ids), model.ElementID.IsNull)
	slices.Sort(out)
	return slices.Compact(out)
}

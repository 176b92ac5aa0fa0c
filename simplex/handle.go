package simplex

import (
	"fmt"

	"github.com/hupe1980/meshkit/model"
)

const (
	vertexBits = 0x3
	edgeShift  = 2
	edgeBits   = 0x7 << edgeShift
	faceShift  = 5
	faceBits   = 0x3 << faceShift
)

// Handle is a local address into a top-dimensional cell.
type Handle struct {
	// Local packs the local vertex (bits 0-1), the local edge (bits 2-4) and,
	// for tetrahedra, the local face (bits 5-6).
	Local uint8
	// Cell is the id of the top-dimensional cell containing the flag.
	Cell model.ElementID
	// Epoch is the cell's epoch when the handle was created.
	Epoch int64
}

// Null is the handle that refers to nothing.
var Null = Handle{Cell: model.NullID}

// NewEdgeHandle returns the handle for local vertex lv (0 or 1) of edge cell.
func NewEdgeHandle(lv int, cell model.ElementID, epoch int64) Handle {
	return Handle{Local: uint8(lv & vertexBits), Cell: cell, Epoch: epoch}
}

// NewTriHandle returns the handle for local vertex lv and incident local edge le
// of triangle cell.
func NewTriHandle(lv, le int, cell model.ElementID, epoch int64) Handle {
	return Handle{Local: uint8(lv&vertexBits) | uint8(le<<edgeShift)&edgeBits, Cell: cell, Epoch: epoch}
}

// NewTetHandle returns the handle for local vertex lv, incident local edge le
// and local face lf containing that edge of tetrahedron cell.
func NewTetHandle(lv, le, lf int, cell model.ElementID, epoch int64) Handle {
	local := uint8(lv&vertexBits) | uint8(le<<edgeShift)&edgeBits | uint8(lf<<faceShift)&faceBits
	return Handle{Local: local, Cell: cell, Epoch: epoch}
}

// IsNull reports whether h refers to nothing.
func (h Handle) IsNull() bool { return h.Cell.IsNull() }

// LocalVertex returns the local vertex index.
func (h Handle) LocalVertex() int { return int(h.Local & vertexBits) }

// LocalEdge returns the local edge index. It is always 0 for edge cells.
func (h Handle) LocalEdge() int { return int(h.Local&edgeBits) >> edgeShift }

// LocalFace returns the local face index. It is always 0 below tetrahedra.
func (h Handle) LocalFace() int { return int(h.Local&faceBits) >> faceShift }

// WithEpoch returns h tagged with epoch.
func (h Handle) WithEpoch(epoch int64) Handle {
	h.Epoch = epoch
	return h
}

func (h Handle) String() string {
	if h.IsNull() {
		return "simplex.Null"
	}
	if h.LocalFace() != 0 {
		return fmt.Sprintf("(cell=%d v=%d e=%d f=%d epoch=%d)", h.Cell, h.LocalVertex(), h.LocalEdge(), h.LocalFace(), h.Epoch)
	}
	return fmt.Sprintf("(cell=%d v=%d e=%d epoch=%d)", h.Cell, h.LocalVertex(), h.LocalEdge(), h.Epoch)
}

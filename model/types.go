package model

import (
	"fmt"
)

// ElementID is a dense identifier for one mesh element of a given primitive type.
// It is transient and changes during consolidation.
type ElementID int64

// NullID marks a missing element (boundary neighbour, unset adjacency).
const NullID ElementID = -1

// IsNull reports whether the id is NullID (or any negative value).
func (id ElementID) IsNull() bool { return id < 0 }

// PrimitiveType is the dimension of a mesh element.
type PrimitiveType uint8

const (
	// Vertex is a 0-simplex.
	Vertex PrimitiveType = iota
	// Edge is a 1-simplex.
	Edge
	// Face is a 2-simplex.
	Face
	// Tetrahedron is a 3-simplex.
	Tetrahedron
)

// NumPrimitives is the number of primitive types.
const NumPrimitives = 4

// String returns the name of the primitive type.
func (p PrimitiveType) String() string {
	switch p {
	case Vertex:
		return "vertex"
	case Edge:
		return "edge"
	case Face:
		return "face"
	case Tetrahedron:
		return "tetrahedron"
	default:
		return fmt.Sprintf("PrimitiveType(%d)", uint8(p))
	}
}

// Valid reports whether p is one of the known primitive types.
func (p PrimitiveType) Valid() bool { return p < NumPrimitives }

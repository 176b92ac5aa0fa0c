package operation

import (
	"fmt"
	"strings"

	"github.com/hupe1980/meshkit/mesh"
)

// Kind is the closed set of built-in operation kinds.
type Kind uint8

const (
	// EdgeSplit inserts a vertex on an edge.
	EdgeSplit Kind = iota
	// EdgeCollapse merges the handle's vertex into the other endpoint.
	EdgeCollapse
	// EdgeSwap flips an interior edge: 2-2 on triangle meshes, 3-2 on
	// tetrahedral meshes.
	EdgeSwap
	// VertexSmooth changes only vertex attributes.
	VertexSmooth
	// FaceSwap is the 2-3 swap of an interior face of a tetrahedral mesh.
	FaceSwap

	// NumKinds is the number of operation kinds.
	NumKinds = 5
)

var kindNames = [NumKinds]string{"edge_split", "edge_collapse", "edge_swap", "vertex_smooth", "face_swap"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// ParseKind parses the name printed by Kind.String. Dashes are accepted in
// place of underscores.
func ParseKind(s string) (Kind, error) {
	name := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	for i, n := range kindNames {
		if n == name {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("operation: unknown kind %q", s)
}

// Region returns the neighbourhood the built-in edit of k locks.
func (k Kind) Region() mesh.RegionKind {
	if k == VertexSmooth {
		return mesh.VertexRegion
	}
	return mesh.EdgeRegion
}

// Outcome is how an Execute call ended.
type Outcome uint8

const (
	// Committed means the edit was published.
	Committed Outcome = iota
	// Rejected means a hook or a topological precondition refused the edit.
	Rejected
	// Stale means the handle no longer resolves.
	Stale
	// Deferred means a region lock was held by another worker.
	Deferred
	// Unsupported means the kind has no hooks or the mesh cannot perform it.
	Unsupported
)

func (o Outcome) String() string {
	switch o {
	case Committed:
		return "committed"
	case Rejected:
		return "rejected"
	case Stale:
		return "stale"
	case Deferred:
		return "deferred"
	case Unsupported:
		return "unsupported"
	default:
		return fmt.Sprintf("Outcome(%d)", o)
	}
}

// State is the last state an operation reached.
type State uint8

const (
	StateProposed State = iota
	StateLocked
	StateValidated
	StateApplied
	StateCommitted
	StateRolledBack
)

var stateNames = [...]string{"proposed", "locked", "validated", "applied", "committed", "rolled_back"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", s)
}

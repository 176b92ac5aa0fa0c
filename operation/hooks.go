package operation

import (
	"github.com/hupe1980/meshkit/mesh"
	"github.com/hupe1980/meshkit/model"
	"github.com/hupe1980/meshkit/simplex"
)

// Hooks is the domain behaviour of one operation kind. Every field is
// optional: a nil predicate accepts, a nil Priority yields 0 and a nil Renew
// spawns nothing.
type Hooks struct {
	// ShouldProcess runs on committed state before any lock is taken. Returning
	// false rejects the candidate with ErrOutdated. It runs under the mesh
	// publish read lock and must not call Handles, Count, Digest or Validate.
	ShouldProcess func(c *mesh.WorkerContext, cand Candidate) bool

	// LockRegion returns the vertices to lock for h. Nil uses the kind's
	// default region. The region must contain every vertex of every cell the
	// edit writes. The restrictions of ShouldProcess apply.
	LockRegion func(c *mesh.WorkerContext, h simplex.Handle) ([]model.ElementID, error)

	// Before runs with the region locked and a scope open. Values written
	// here are discarded with the edit on rejection.
	Before func(c *mesh.WorkerContext, h simplex.Handle) bool

	// Update writes attribute values after the topological edit. A non-nil
	// error rolls the edit back; mesh.ErrNotApplicable counts as a rejection,
	// anything else aborts the run.
	Update func(c *mesh.WorkerContext, out simplex.Handle) error

	// After checks the applied state. Returning false rolls the edit back.
	After func(c *mesh.WorkerContext, out simplex.Handle) bool

	// Priority orders candidates; larger runs first.
	Priority func(c *mesh.WorkerContext, h simplex.Handle) float64

	// Renew returns the candidates to enqueue after a commit. Their priority
	// is filled in from the Priority hook of their kind.
	Renew func(c *mesh.WorkerContext, out simplex.Handle) []Candidate
}

// Table maps operation kinds to their hooks. Kinds without an entry are
// reported as Unsupported.
type Table map[Kind]Hooks

// Priority evaluates the Priority hook of kind for h, or 0.
func (t Table) Priority(c *mesh.WorkerContext, kind Kind, h simplex.Handle) float64 {
	if hk, ok := t[kind]; ok && hk.Priority != nil {
		return hk.Priority(c, h)
	}
	return 0
}

// Candidate is a pending operation.
type Candidate struct {
	Kind     Kind
	Handle   simplex.Handle
	Priority float64
	// Retries counts deferrals so far.
	Retries int
}

// Record describes a committed operation. It is handed to a Recorder while
// the edit is being published.
type Record struct {
	Worker int
	Kind   Kind
	Handle simplex.Handle
	Result simplex.Handle
	Edit   mesh.Edit
}

// Recorder observes committed operations in publication order. Record is
// called with the mesh publish lock held and must not call back into the mesh.
type Recorder interface {
	Record(rec Record) error
}

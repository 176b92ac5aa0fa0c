package mesh

import (
	"slices"

	"github.com/hupe1980/meshkit/attribute"
	"github.com/hupe1980/meshkit/model"
)

// Edit lists the elements created and deleted by the operation in flight.
type Edit struct {
	Created [model.NumPrimitives][]model.ElementID
	Deleted [model.NumPrimitives][]model.ElementID
}

// Empty reports whether the edit neither created nor deleted anything.
func (e Edit) Empty() bool {
	for pt := range model.NumPrimitives {
		if len(e.Created[pt]) > 0 || len(e.Deleted[pt]) > 0 {
			return false
		}
	}
	return true
}

// WorkerContext is the per-worker state threaded through topology calls:
// the worker's scope stack, the vertex locks it holds, and the pending edit.
// It is not safe for concurrent use.
type WorkerContext struct {
	ID int

	mesh    *Mesh
	stack   *attribute.Stack
	locking bool
	held    []model.ElementID // sorted

	edit    Edit
	touched map[model.ElementID]struct{}
}

// NewWorkerContext creates the context of worker id. With locking false the
// context never touches the lock table; use it only when a single worker runs.
func NewWorkerContext(m *Mesh, id int, locking bool) *WorkerContext {
	return &WorkerContext{
		ID:      id,
		mesh:    m,
		stack:   attribute.NewStack(m.store),
		locking: locking,
		touched: make(map[model.ElementID]struct{}),
	}
}

// Mesh returns the mesh the context works on.
func (c *WorkerContext) Mesh() *Mesh { return c.mesh }

// Stack returns the worker's scope stack.
func (c *WorkerContext) Stack() *attribute.Stack { return c.stack }

// Locking reports whether the context takes vertex locks.
func (c *WorkerContext) Locking() bool { return c.locking }

// Held returns a copy of the locked vertex ids in ascending order.
func (c *WorkerContext) Held() []model.ElementID { return slices.Clone(c.held) }

// Edit returns the pending edit.
func (c *WorkerContext) Edit() Edit { return c.edit }

// TryLock acquires every vertex of region in ascending order without
// blocking. If any vertex is held elsewhere, all locks of the context are
// released and false is returned.
func (c *WorkerContext) TryLock(region []model.ElementID) bool {
	if !c.locking {
		return true
	}
	sorted := slices.Clone(region)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)
	for _, v := range sorted {
		if c.holds(v) {
			continue
		}
		if !c.mesh.tryLockVertex(v) {
			c.Release()
			return false
		}
		c.insertHeld(v)
	}
	return true
}

// Covers reports whether every vertex of region is held.
func (c *WorkerContext) Covers(region []model.ElementID) bool {
	if !c.locking {
		return true
	}
	for _, v := range region {
		if !c.holds(v) {
			return false
		}
	}
	return true
}

// Release unlocks every held vertex.
func (c *WorkerContext) Release() {
	for _, v := range c.held {
		c.mesh.unlockVertex(v)
	}
	c.held = c.held[:0]
}

func (c *WorkerContext) holds(v model.ElementID) bool {
	_, ok := slices.BinarySearch(c.held, v)
	return ok
}

func (c *WorkerContext) insertHeld(v model.ElementID) {
	i, ok := slices.BinarySearch(c.held, v)
	if !ok {
		c.held = slices.Insert(c.held, i, v)
	}
}

func (c *WorkerContext) dropHeld(v model.ElementID) {
	if i, ok := slices.BinarySearch(c.held, v); ok {
		c.held = slices.Delete(c.held, i, i+1)
		c.mesh.unlockVertex(v)
	}
}

func (c *WorkerContext) resetEdit() {
	c.edit = Edit{}
	clear(c.touched)
}

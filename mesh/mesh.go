package mesh

import (
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/hupe1980/meshkit/attribute"
	"github.com/hupe1980/meshkit/internal/bitset"
	"github.com/hupe1980/meshkit/internal/conv"
	"github.com/hupe1980/meshkit/model"
	"github.com/hupe1980/meshkit/simplex"
)

// Reserved column names. User columns must not reuse them.
const (
	FlagColumn  = "flag"
	EpochColumn = "epoch"
)

// Options configures a mesh.
type Options struct {
	// Logger receives consolidation and construction events. Nil discards them.
	Logger *slog.Logger
}

// DefaultOptions returns the default mesh options.
func DefaultOptions() Options {
	return Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// link is a connectivity column whose values are ids of target.
type link struct {
	col    attribute.Handle[model.ElementID]
	target model.PrimitiveType
}

// Mesh is the aggregate shared by all workers: the attribute store, the
// element allocators, the vertex lock table and the publish lock.
type Mesh struct {
	store *attribute.Store
	top   model.PrimitiveType
	prims []model.PrimitiveType

	flags  [model.NumPrimitives]attribute.Handle[int8]
	epochs attribute.Handle[int64]
	alloc  [model.NumPrimitives]*allocator
	links  []link

	locks *bitset.BitSet

	// publish serialises base-store publication (write side) against region
	// computation on committed state (read side).
	publish sync.RWMutex

	// clock issues epochs. Every epoch written to a cell is larger than any
	// issued before, so a handle never resolves against a later version of its
	// cell, even when the version it saw was rolled back and the id reused.
	clock atomic.Int64

	logger *slog.Logger
}

func newMesh(top model.PrimitiveType, prims []model.PrimitiveType, opts Options) *Mesh {
	if opts.Logger == nil {
		opts.Logger = DefaultOptions().Logger
	}
	m := &Mesh{
		store:  attribute.NewStore(),
		top:    top,
		prims:  prims,
		locks:  bitset.New(0),
		logger: opts.Logger,
	}
	for _, pt := range prims {
		m.alloc[pt] = newAllocator()
		m.flags[pt] = mustRegister(m.store, pt, FlagColumn, 1, int8(0))
	}
	m.epochs = mustRegister(m.store, top, EpochColumn, 1, int64(0))
	return m
}

func mustRegister[T any](s *attribute.Store, pt model.PrimitiveType, name string, dim int, def T) attribute.Handle[T] {
	h, err := attribute.Register(s, pt, name, dim, def)
	if err != nil {
		panic(err)
	}
	return h
}

func (m *Mesh) registerLink(pt model.PrimitiveType, name string, dim int, target model.PrimitiveType) attribute.Handle[model.ElementID] {
	h := mustRegister(m.store, pt, name, dim, model.NullID)
	m.links = append(m.links, link{col: h, target: target})
	return h
}

// Base returns m. It lets Topology implementations that embed *Mesh expose it.
func (m *Mesh) Base() *Mesh { return m }

// Store returns the attribute store. Register user columns on it before
// running operations.
func (m *Mesh) Store() *attribute.Store { return m.store }

// TopType returns the primitive type of the top-dimensional cells.
func (m *Mesh) TopType() model.PrimitiveType { return m.top }

// Flags returns the active-flag column of pt. It is invalid for primitive
// types the mesh does not store explicitly.
func (m *Mesh) Flags(pt model.PrimitiveType) attribute.Handle[int8] { return m.flags[pt] }

// Epochs returns the per-cell epoch column.
func (m *Mesh) Epochs() attribute.Handle[int64] { return m.epochs }

// Size returns the high-water mark of pt's ids, including deleted ones.
func (m *Mesh) Size(pt model.PrimitiveType) int {
	if m.alloc[pt] == nil {
		return 0
	}
	return m.alloc[pt].highWater()
}

// Count returns the number of allocated, not deleted elements of pt.
func (m *Mesh) Count(pt model.PrimitiveType) int {
	if m.alloc[pt] == nil {
		return 0
	}
	return m.alloc[pt].live()
}

// Logger returns the mesh logger.
func (m *Mesh) Logger() *slog.Logger { return m.logger }

// ReadCommitted runs fn while no worker publishes. Use it to read committed
// state outside any locked region.
func (m *Mesh) ReadCommitted(fn func()) {
	m.publish.RLock()
	defer m.publish.RUnlock()
	fn()
}

// Locked reports whether vertex v is currently locked by any worker.
func (m *Mesh) Locked(v model.ElementID) bool {
	i, err := conv.IDToUint64(v)
	return err == nil && m.locks.Test(i)
}

// LockedCount returns the number of locked vertices.
func (m *Mesh) LockedCount() int { return m.locks.Count() }

func (m *Mesh) tryLockVertex(v model.ElementID) bool {
	i, err := conv.IDToUint64(v)
	if err != nil {
		return false
	}
	return !m.locks.TestAndSet(i)
}

func (m *Mesh) unlockVertex(v model.ElementID) {
	if i, err := conv.IDToUint64(v); err == nil {
		m.locks.Unset(i)
	}
}

// Resolve returns the cell of h if h is not stale: the cell is active and its
// epoch equals the handle's.
func (m *Mesh) Resolve(c *WorkerContext, h simplex.Handle) (model.ElementID, bool) {
	if h.IsNull() {
		return model.NullID, false
	}
	flag, err := attribute.ReadAt(c.stack, m.flags[m.top], h.Cell, 0)
	if err != nil || flag != 1 {
		return model.NullID, false
	}
	epoch, err := attribute.ReadAt(c.stack, m.epochs, h.Cell, 0)
	if err != nil || epoch != h.Epoch {
		return model.NullID, false
	}
	return h.Cell, true
}

// Alive reports whether element id of pt is active as seen by c.
func (m *Mesh) Alive(c *WorkerContext, pt model.PrimitiveType, id model.ElementID) bool {
	if !m.flags[pt].IsValid() {
		return false
	}
	flag, err := attribute.ReadAt(c.stack, m.flags[pt], id, 0)
	return err == nil && flag == 1
}

// Epoch returns the epoch of cell as seen by c.
func (m *Mesh) Epoch(c *WorkerContext, cell model.ElementID) int64 {
	return get(c, m.epochs, cell, 0)
}

// create allocates n elements of pt inside c's scope, marks them active and,
// for top cells, assigns fresh epochs from the mesh clock. New vertices are
// locked by c.
func (m *Mesh) create(c *WorkerContext, pt model.PrimitiveType, n int) model.ElementID {
	first := m.alloc[pt].take(n)
	size := int(first) + n
	m.store.Reserve(pt, size)
	if pt == model.Vertex {
		m.locks.Grow(uint64(size))
	}
	for id := first; id < first+model.ElementID(n); id++ {
		c.edit.Created[pt] = append(c.edit.Created[pt], id)
		if pt == model.Vertex && c.locking {
			if !m.tryLockVertex(id) {
				invariantf("create", "fresh vertex %d is already locked", id)
			}
			c.insertHeld(id)
		}
		put(c, m.flags[pt], id, 0, 1)
		if pt == m.top {
			put(c, m.epochs, id, 0, m.clock.Add(1))
			c.touched[id] = struct{}{}
		}
	}
	return first
}

// remove marks id of pt deleted inside c's scope.
func (m *Mesh) remove(c *WorkerContext, pt model.PrimitiveType, id model.ElementID) {
	if get(c, m.flags[pt], id, 0) != 1 {
		invariantf("remove", "%s %d is not active", pt, id)
	}
	put(c, m.flags[pt], id, 0, 0)
	c.edit.Deleted[pt] = append(c.edit.Deleted[pt], id)
	if pt == m.top {
		m.bump(c, id)
	}
}

// bump gives cell a fresh epoch once per edit.
func (m *Mesh) bump(c *WorkerContext, cell model.ElementID) {
	if cell.IsNull() {
		return
	}
	if _, ok := c.touched[cell]; ok {
		return
	}
	c.touched[cell] = struct{}{}
	put(c, m.epochs, cell, 0, m.clock.Add(1))
}

// Commit publishes c's outermost scope into the base store and records the
// edit's deletions. fn, if not nil, runs inside the publish lock so that the
// order of fn calls equals the order in which edits become visible.
// Locks stay held; the caller releases them.
func (m *Mesh) Commit(c *WorkerContext, fn func(Edit)) {
	if c.stack.Depth() != 1 {
		invariantf("commit", "expected one open scope, found %d", c.stack.Depth())
	}
	m.publish.Lock()
	defer m.publish.Unlock()
	defer c.resetEdit()
	c.stack.Pop(true)
	for _, pt := range m.prims {
		m.alloc[pt].markDeleted(c.edit.Deleted[pt])
	}
	if fn != nil {
		fn(c.edit)
	}
}

// Undo discards c's outermost scope and returns the ids the edit allocated.
// Locks on vertices the edit created are released; other locks stay held.
func (m *Mesh) Undo(c *WorkerContext) {
	if c.stack.Depth() != 1 {
		invariantf("undo", "expected one open scope, found %d", c.stack.Depth())
	}
	c.stack.Pop(false)
	for _, v := range c.edit.Created[model.Vertex] {
		c.dropHeld(v)
	}
	for _, pt := range m.prims {
		m.alloc[pt].give(c.edit.Created[pt])
	}
	c.resetEdit()
}

// Digest returns a fingerprint of the committed mesh: the allocator sizes and
// every column value below them.
func (m *Mesh) Digest() uint64 {
	m.publish.RLock()
	defer m.publish.RUnlock()
	var sizes [model.NumPrimitives]int
	d := xxhash.New()
	var hdr []byte
	hdr = append(hdr, byte(m.top))
	for _, pt := range m.prims {
		sizes[pt] = m.alloc[pt].highWater()
		hdr = binary.LittleEndian.AppendUint64(hdr, uint64(sizes[pt]))
	}
	_, _ = d.Write(hdr)
	m.store.Hash(d, sizes)
	return d.Sum64()
}

// Consolidate renumbers the live elements of every primitive type densely in
// ascending id order, rewrites connectivity, and raises every cell epoch above
// all epochs issued so far, so every outstanding handle becomes stale.
// It must run while no worker is active.
func (m *Mesh) Consolidate() error {
	if n := m.store.ActiveScopes(); n != 0 {
		return fmt.Errorf("%w: %d open", ErrActiveScopes, n)
	}
	if n := m.locks.Count(); n != 0 {
		return fmt.Errorf("%w: %d vertices locked", ErrActiveScopes, n)
	}
	start := time.Now()
	m.publish.Lock()
	defer m.publish.Unlock()

	var (
		remaps [model.NumPrimitives][]model.ElementID
		counts [model.NumPrimitives]int
		before [model.NumPrimitives]int
	)
	for _, pt := range m.prims {
		size := m.alloc[pt].highWater()
		before[pt] = size
		remap := make([]model.ElementID, size)
		next := 0
		for id := range size {
			flag, err := m.flags[pt].At(model.ElementID(id), 0)
			if err != nil {
				return &InvariantError{Op: "consolidate", Msg: err.Error()}
			}
			if flag == 1 {
				remap[id] = model.ElementID(next)
				next++
			} else {
				remap[id] = model.NullID
			}
		}
		remaps[pt] = remap
		counts[pt] = next
	}

	for _, pt := range m.prims {
		if err := m.store.Compact(pt, remaps[pt], counts[pt]); err != nil {
			return err
		}
	}
	var dangling error
	for _, l := range m.links {
		remap := remaps[l.target]
		err := attribute.Rewrite(m.store, l.col, counts[l.col.Primitive()], func(id model.ElementID, vals []model.ElementID) {
			for i, v := range vals {
				if v.IsNull() {
					continue
				}
				if int(v) >= len(remap) || remap[v].IsNull() {
					if dangling == nil {
						dangling = &InvariantError{Op: "consolidate", Msg: fmt.Sprintf("%s %d references dropped element %d", l.col.Name(), id, v)}
					}
					continue
				}
				vals[i] = remap[v]
			}
		})
		if err != nil {
			return err
		}
	}
	if dangling != nil {
		return dangling
	}
	epoch := m.clock.Add(1)
	if err := attribute.Rewrite(m.store, m.epochs, counts[m.top], func(_ model.ElementID, vals []int64) {
		vals[0] = epoch
	}); err != nil {
		return err
	}

	for _, pt := range m.prims {
		m.alloc[pt].reset(counts[pt])
	}
	m.locks.ClearAll()

	m.logger.Info("mesh consolidated",
		slog.String("top", m.top.String()),
		slog.Int("vertices_before", before[model.Vertex]),
		slog.Int("vertices_after", counts[model.Vertex]),
		slog.Int("cells_before", before[m.top]),
		slog.Int("cells_after", counts[m.top]),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

// baseContext returns a non-locking context that reads committed state.
func (m *Mesh) baseContext() *WorkerContext {
	return NewWorkerContext(m, -1, false)
}

package attribute

import (
	"fmt"
	"slices"

	"github.com/hupe1980/meshkit/model"
)

// delta is the type-erased per-column change set of a Scope.
type delta interface {
	columnID() ColumnID
	len() int
	mergeInto(parent *Scope)
}

// columnDelta records, per touched element, the value visible before the scope
// first wrote it and the scope's current value.
type columnDelta[T any] struct {
	col    *Column[T]
	before map[model.ElementID][]T
	after  map[model.ElementID][]T
}

func (d *columnDelta[T]) columnID() ColumnID { return d.col.cid }
func (d *columnDelta[T]) len() int           { return len(d.after) }

func (d *columnDelta[T]) sortedIDs() []model.ElementID {
	ids := make([]model.ElementID, 0, len(d.after))
	for id := range d.after {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// mergeInto writes every value of d into parent, or into the base column when
// parent is nil.
func (d *columnDelta[T]) mergeInto(parent *Scope) {
	for _, id := range d.sortedIDs() {
		vals := d.after[id]
		if parent == nil {
			d.col.set(id, vals)
			continue
		}
		pd := deltaFor(parent, d.col)
		if _, ok := pd.after[id]; !ok {
			pd.before[id] = visibleFrom(parent.parent, d.col, id)
		}
		pd.after[id] = vals
	}
}

// Scope is one level of a Stack. Scopes below the top are read-only history.
type Scope struct {
	parent *Scope
	deltas map[ColumnID]delta
}

// Len returns the number of (column, element) entries the scope has written.
func (s *Scope) Len() int {
	n := 0
	for _, d := range s.deltas {
		n += d.len()
	}
	return n
}

func deltaFor[T any](s *Scope, col *Column[T]) *columnDelta[T] {
	if d, ok := s.deltas[col.cid]; ok {
		return d.(*columnDelta[T])
	}
	d := &columnDelta[T]{
		col:    col,
		before: make(map[model.ElementID][]T),
		after:  make(map[model.ElementID][]T),
	}
	s.deltas[col.cid] = d
	return d
}

func lookupDelta[T any](s *Scope, col *Column[T]) (*columnDelta[T], bool) {
	d, ok := s.deltas[col.cid]
	if !ok {
		return nil, false
	}
	return d.(*columnDelta[T]), true
}

// visibleFrom returns the value of id as seen from scope s downward (s may be nil).
// The returned slice is shared; callers must not mutate it.
func visibleFrom[T any](s *Scope, col *Column[T], id model.ElementID) []T {
	for ; s != nil; s = s.parent {
		if d, ok := lookupDelta(s, col); ok {
			if v, ok := d.after[id]; ok {
				return v
			}
		}
	}
	v, err := col.get(id)
	if err != nil {
		panic(err)
	}
	return v
}

// Stack is a per-worker stack of nested scopes. It is not safe for concurrent use;
// each worker owns its own Stack.
type Stack struct {
	store *Store
	top   *Scope
	depth int
}

// NewStack creates an empty scope stack over store.
func NewStack(store *Store) *Stack {
	return &Stack{store: store}
}

// Store returns the underlying attribute store.
func (st *Stack) Store() *Store { return st.store }

// Depth returns the number of pushed scopes.
func (st *Stack) Depth() int { return st.depth }

// Empty reports whether no scope is pushed.
func (st *Stack) Empty() bool { return st.top == nil }

// Top returns the active scope, or nil.
func (st *Stack) Top() *Scope { return st.top }

// Push opens a new, empty active scope.
func (st *Stack) Push() {
	st.top = &Scope{parent: st.top, deltas: make(map[ColumnID]delta)}
	st.depth++
	st.store.active.Add(1)
}

// Pop closes the active scope. With commit, its values are written into the new
// top scope or, if none remains, into the base store. Without commit they are dropped.
//
// Popping an empty stack is a programming error and panics with ErrScopeUnderflow.
func (st *Stack) Pop(commit bool) {
	s := st.top
	if s == nil {
		panic(ErrScopeUnderflow)
	}
	st.top = s.parent
	st.depth--
	st.store.active.Add(-1)
	if !commit {
		return
	}
	ds := make([]delta, 0, len(s.deltas))
	for _, d := range s.deltas {
		ds = append(ds, d)
	}
	slices.SortFunc(ds, func(a, b delta) int {
		switch {
		case a.columnID().less(b.columnID()):
			return -1
		case b.columnID().less(a.columnID()):
			return 1
		}
		return 0
	})
	for _, d := range ds {
		d.mergeInto(st.top)
	}
}

func checkRange[T any](h Handle[T], id model.ElementID) error {
	if !h.col.inRange(id) {
		return h.col.outOfRange(id)
	}
	return nil
}

// Read returns the value of id visible to the stack's owner: its own uncommitted
// writes first, then the base store.
func Read[T any](st *Stack, h Handle[T], id model.ElementID) ([]T, error) {
	if err := checkRange(h, id); err != nil {
		return nil, err
	}
	return slices.Clone(visibleFrom(st.top, h.col, id)), nil
}

// ReadAt returns component k of the value of id visible to the stack's owner.
func ReadAt[T any](st *Stack, h Handle[T], id model.ElementID, k int) (T, error) {
	for s := st.top; s != nil; s = s.parent {
		if d, ok := lookupDelta(s, h.col); ok {
			if v, ok := d.after[id]; ok {
				if k < 0 || k >= len(v) {
					var zero T
					return zero, fmt.Errorf("%w: component %d of column %q", ErrDimensionMismatch, k, h.col.name)
				}
				return v[k], nil
			}
		}
	}
	return h.col.at(id, k)
}

// ReadBefore returns the value id had when the active scope was pushed.
func ReadBefore[T any](st *Stack, h Handle[T], id model.ElementID) ([]T, error) {
	if st.top == nil {
		return nil, ErrNoActiveScope
	}
	if err := checkRange(h, id); err != nil {
		return nil, err
	}
	if d, ok := lookupDelta(st.top, h.col); ok {
		if v, ok := d.before[id]; ok {
			return slices.Clone(v), nil
		}
	}
	return slices.Clone(visibleFrom(st.top.parent, h.col, id)), nil
}

// Write stores vals for id in the active scope. The first write of an entry
// snapshots the value visible before it.
func Write[T any](st *Stack, h Handle[T], id model.ElementID, vals []T) error {
	if st.top == nil {
		return ErrNoActiveScope
	}
	if len(vals) != h.col.dim {
		return fmt.Errorf("%w: column %q expects %d values, got %d", ErrDimensionMismatch, h.col.name, h.col.dim, len(vals))
	}
	if err := checkRange(h, id); err != nil {
		return err
	}
	d := deltaFor(st.top, h.col)
	if _, ok := d.after[id]; !ok {
		d.before[id] = visibleFrom(st.top.parent, h.col, id)
	}
	d.after[id] = slices.Clone(vals)
	return nil
}

// WriteAt stores component k of id in the active scope.
func WriteAt[T any](st *Stack, h Handle[T], id model.ElementID, k int, v T) error {
	if st.top == nil {
		return ErrNoActiveScope
	}
	if k < 0 || k >= h.col.dim {
		return fmt.Errorf("%w: component %d of column %q (dimension %d)", ErrDimensionMismatch, k, h.col.name, h.col.dim)
	}
	if err := checkRange(h, id); err != nil {
		return err
	}
	d := deltaFor(st.top, h.col)
	cur, ok := d.after[id]
	if !ok {
		prev := visibleFrom(st.top.parent, h.col, id)
		d.before[id] = prev
		cur = slices.Clone(prev)
		d.after[id] = cur
	}
	cur[k] = v
	return nil
}

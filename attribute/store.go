package attribute

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"github.com/hupe1980/meshkit/model"
)

// Store owns every attribute column of a mesh.
//
// Registration and reservation are serialised by mu; element access goes
// through the column stripes and never takes mu.
type Store struct {
	mu       sync.RWMutex
	columns  [model.NumPrimitives][]column
	byName   [model.NumPrimitives]map[string]int
	reserved [model.NumPrimitives]int

	// active counts scopes currently pushed on any Stack of this store.
	active atomic.Int64
}

// NewStore creates an empty attribute store.
func NewStore() *Store {
	s := &Store{}
	for i := range s.byName {
		s.byName[i] = make(map[string]int)
	}
	return s
}

// Register adds a column named name to primitive type pt with dim values per element.
// The column starts at the primitive type's current reserved size, filled with def.
func Register[T any](s *Store, pt model.PrimitiveType, name string, dim int, def T) (Handle[T], error) {
	if !pt.Valid() {
		return Handle[T]{}, fmt.Errorf("attribute: invalid primitive type %d", pt)
	}
	if dim < 1 {
		return Handle[T]{}, fmt.Errorf("%w: column %q needs dimension >= 1, got %d", ErrDimensionMismatch, name, dim)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byName[pt][name]; ok {
		return Handle[T]{}, fmt.Errorf("%w: %s/%s", ErrDuplicateColumn, pt, name)
	}
	cid := ColumnID{Primitive: pt, Index: len(s.columns[pt])}
	col := newColumn(cid, name, dim, def, s.reserved[pt])
	s.columns[pt] = append(s.columns[pt], col)
	s.byName[pt][name] = cid.Index
	return Handle[T]{col: col}, nil
}

// Lookup returns the column named name on pt. It fails if the column does not
// exist or holds values of a different type.
func Lookup[T any](s *Store, pt model.PrimitiveType, name string) (Handle[T], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !pt.Valid() {
		return Handle[T]{}, fmt.Errorf("attribute: invalid primitive type %d", pt)
	}
	idx, ok := s.byName[pt][name]
	if !ok {
		return Handle[T]{}, fmt.Errorf("%w: %s/%s", ErrUnknownColumn, pt, name)
	}
	col, ok := s.columns[pt][idx].(*Column[T])
	if !ok {
		return Handle[T]{}, fmt.Errorf("attribute: column %s/%s has a different value type", pt, name)
	}
	return Handle[T]{col: col}, nil
}

// Reserve grows every column of pt to at least n elements. It never shrinks.
func (s *Store) Reserve(pt model.PrimitiveType, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n <= s.reserved[pt] {
		return
	}
	for _, c := range s.columns[pt] {
		c.reserve(n)
	}
	s.reserved[pt] = n
}

// ReservedSize returns the shared reserved size of pt's columns.
func (s *Store) ReservedSize(pt model.PrimitiveType) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reserved[pt]
}

// ColumnNames lists the registered columns of pt in registration order.
func (s *Store) ColumnNames(pt model.PrimitiveType) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, len(s.columns[pt]))
	for i, c := range s.columns[pt] {
		names[i] = c.columnName()
	}
	return names
}

// ActiveScopes returns the number of scopes currently pushed on any stack.
func (s *Store) ActiveScopes() int64 {
	return s.active.Load()
}

// Compact renumbers every column of pt: row old moves to remap[old] (NullID drops it)
// and the reserved size becomes newSize. It requires that no scope is open.
func (s *Store) Compact(pt model.PrimitiveType, remap []model.ElementID, newSize int) error {
	if s.active.Load() != 0 {
		return ErrActiveScopes
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.columns[pt] {
		c.compact(remap, newSize)
	}
	s.reserved[pt] = newSize
	return nil
}

// Rewrite applies fn to the committed value of every element below n and stores the
// result. It is the consolidation path and requires that no scope is open.
func Rewrite[T any](s *Store, h Handle[T], n int, fn func(id model.ElementID, vals []T)) error {
	if s.active.Load() != 0 {
		return ErrActiveScopes
	}
	c := h.col
	c.lockAll()
	defer c.unlockAll()
	if n > c.reserved {
		n = c.reserved
	}
	for i := 0; i < n; i++ {
		fn(model.ElementID(i), c.buf[i*c.dim:(i+1)*c.dim])
	}
	return nil
}

// Hash feeds the first sizes[pt] elements of every column into d, in
// (primitive, registration) order.
func (s *Store) Hash(d *xxhash.Digest, sizes [model.NumPrimitives]int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for pt := range s.columns {
		for _, c := range s.columns[pt] {
			c.hash(d, sizes[pt])
		}
	}
}

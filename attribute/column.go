package attribute

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/hupe1980/meshkit/model"
)

// numStripes is the number of lock stripes per column.
// Element id i is guarded by stripe i % numStripes.
const numStripes = 16

// ColumnID identifies a column within a Store.
type ColumnID struct {
	Primitive model.PrimitiveType
	Index     int
}

func (c ColumnID) less(o ColumnID) bool {
	if c.Primitive != o.Primitive {
		return c.Primitive < o.Primitive
	}
	return c.Index < o.Index
}

// column is the type-erased view of a Column used by the Store.
type column interface {
	columnID() ColumnID
	columnName() string
	reserve(n int)
	size() int
	compact(remap []model.ElementID, newSize int)
	hash(d *xxhash.Digest, n int)
}

// Column is a dense buffer of `dim` values of T per element id.
//
// Invariant: len(buf) == dim * reserved.
type Column[T any] struct {
	cid  ColumnID
	name string
	dim  int
	def  T

	// Stripes guard element values; Reserve and compaction take all of them.
	stripes  [numStripes]sync.RWMutex
	buf      []T
	reserved int
}

func newColumn[T any](cid ColumnID, name string, dim int, def T, reserved int) *Column[T] {
	c := &Column[T]{cid: cid, name: name, dim: dim, def: def}
	c.grow(reserved)
	return c
}

func (c *Column[T]) columnID() ColumnID { return c.cid }
func (c *Column[T]) columnName() string { return c.name }

func (c *Column[T]) stripe(id model.ElementID) *sync.RWMutex {
	return &c.stripes[uint64(id)%numStripes]
}

func (c *Column[T]) lockAll() {
	for i := range c.stripes {
		c.stripes[i].Lock()
	}
}

func (c *Column[T]) unlockAll() {
	for i := len(c.stripes) - 1; i >= 0; i-- {
		c.stripes[i].Unlock()
	}
}

// grow extends the buffer with default values, doubling capacity when full.
// Caller holds all stripes (or owns c exclusively).
func (c *Column[T]) grow(n int) {
	if n <= c.reserved {
		return
	}
	need := n * c.dim
	if need > cap(c.buf) {
		next := make([]T, len(c.buf), max(need, 2*cap(c.buf)))
		copy(next, c.buf)
		c.buf = next
	}
	old := len(c.buf)
	c.buf = c.buf[:need]
	for i := old; i < need; i++ {
		c.buf[i] = c.def
	}
	c.reserved = n
}

func (c *Column[T]) reserve(n int) {
	c.lockAll()
	defer c.unlockAll()
	c.grow(n)
}

func (c *Column[T]) size() int {
	s := c.stripe(0)
	s.RLock()
	defer s.RUnlock()
	return c.reserved
}

func (c *Column[T]) outOfRange(id model.ElementID) error {
	return &OutOfRangeError{Column: c.name, ID: id, Size: c.reserved}
}

// get copies the base value of id.
func (c *Column[T]) get(id model.ElementID) ([]T, error) {
	s := c.stripe(id)
	s.RLock()
	defer s.RUnlock()
	if id < 0 || int(id) >= c.reserved {
		return nil, c.outOfRange(id)
	}
	off := int(id) * c.dim
	out := make([]T, c.dim)
	copy(out, c.buf[off:off+c.dim])
	return out, nil
}

// at returns component k of the base value of id.
func (c *Column[T]) at(id model.ElementID, k int) (T, error) {
	s := c.stripe(id)
	s.RLock()
	defer s.RUnlock()
	if id < 0 || int(id) >= c.reserved {
		var zero T
		return zero, c.outOfRange(id)
	}
	if k < 0 || k >= c.dim {
		var zero T
		return zero, fmt.Errorf("%w: component %d of column %q (dimension %d)", ErrDimensionMismatch, k, c.name, c.dim)
	}
	return c.buf[int(id)*c.dim+k], nil
}

// set overwrites the base value of id. Only scope commit and consolidation call it.
func (c *Column[T]) set(id model.ElementID, vals []T) {
	s := c.stripe(id)
	s.Lock()
	defer s.Unlock()
	if id < 0 || int(id) >= c.reserved {
		panic(c.outOfRange(id))
	}
	copy(c.buf[int(id)*c.dim:], vals)
}

func (c *Column[T]) inRange(id model.ElementID) bool {
	s := c.stripe(id)
	s.RLock()
	defer s.RUnlock()
	return id >= 0 && int(id) < c.reserved
}

// compact moves row old to remap[old] for every live row and truncates to newSize.
func (c *Column[T]) compact(remap []model.ElementID, newSize int) {
	c.lockAll()
	defer c.unlockAll()
	next := make([]T, newSize*c.dim)
	for i := range next {
		next[i] = c.def
	}
	for old, nu := range remap {
		if nu < 0 || old >= c.reserved {
			continue
		}
		copy(next[int(nu)*c.dim:int(nu+1)*c.dim], c.buf[old*c.dim:(old+1)*c.dim])
	}
	c.buf = next
	c.reserved = newSize
}

func (c *Column[T]) hash(d *xxhash.Digest, n int) {
	c.lockAll()
	defer c.unlockAll()
	if n > c.reserved {
		n = c.reserved
	}
	_, _ = d.WriteString(c.name)
	var scratch []byte
	scratch = binary.LittleEndian.AppendUint64(scratch[:0], uint64(c.dim))
	scratch = binary.LittleEndian.AppendUint64(scratch, uint64(n))
	_, _ = d.Write(scratch)
	for _, v := range c.buf[:n*c.dim] {
		scratch = appendValue(scratch[:0], v)
		_, _ = d.Write(scratch)
	}
}

// appendValue encodes v in a fixed little-endian layout for hashing.
func appendValue(b []byte, v any) []byte {
	switch x := v.(type) {
	case int64:
		return binary.LittleEndian.AppendUint64(b, uint64(x))
	case model.ElementID:
		return binary.LittleEndian.AppendUint64(b, uint64(x))
	case int32:
		return binary.LittleEndian.AppendUint32(b, uint32(x))
	case int8:
		return append(b, byte(x))
	case uint8:
		return append(b, x)
	case uint64:
		return binary.LittleEndian.AppendUint64(b, x)
	case int:
		return binary.LittleEndian.AppendUint64(b, uint64(x))
	case float64:
		return binary.LittleEndian.AppendUint64(b, math.Float64bits(x))
	case float32:
		return binary.LittleEndian.AppendUint32(b, math.Float32bits(x))
	case bool:
		if x {
			return append(b, 1)
		}
		return append(b, 0)
	default:
		return fmt.Appendf(b, "%v;", x)
	}
}

// Handle is a typed reference to a registered column.
type Handle[T any] struct {
	col *Column[T]
}

// IsValid reports whether the handle refers to a column.
func (h Handle[T]) IsValid() bool { return h.col != nil }

// ID returns the column id.
func (h Handle[T]) ID() ColumnID { return h.col.cid }

// Name returns the column name.
func (h Handle[T]) Name() string { return h.col.name }

// Primitive returns the primitive type the column is attached to.
func (h Handle[T]) Primitive() model.PrimitiveType { return h.col.cid.Primitive }

// Dimension returns the number of values per element.
func (h Handle[T]) Dimension() int { return h.col.dim }

// Default returns the value used when growing the column.
func (h Handle[T]) Default() T { return h.col.def }

// ReservedSize returns the number of element slots.
func (h Handle[T]) ReservedSize() int { return h.col.size() }

// Get returns a copy of the committed (base) value of id.
func (h Handle[T]) Get(id model.ElementID) ([]T, error) { return h.col.get(id) }

// At returns component k of the committed (base) value of id.
func (h Handle[T]) At(id model.ElementID, k int) (T, error) { return h.col.at(id, k) }

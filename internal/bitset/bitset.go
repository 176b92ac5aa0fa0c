package bitset

import (
	"math/bits"
	"sync/atomic"
)

const (
	// segmentBits determines the size of each segment.
	// 12 bits = 4096 bits per segment.
	segmentBits = 12
	segmentSize = 1 << segmentBits
	segmentMask = segmentSize - 1

	wordsPerSegment = segmentSize / 64
)

type segment [wordsPerSegment]atomic.Uint64

// BitSet is a thread-safe, lock-free, segmented bitset.
type BitSet struct {
	segments atomic.Pointer[[]*segment]
	size     atomic.Uint64
}

// New creates a new BitSet with the given size (in bits).
func New(size uint64) *BitSet {
	b := &BitSet{}
	b.Grow(size)
	return b
}

func (b *BitSet) growSegments(size uint64) {
	if size == 0 {
		return
	}
	target := int((size-1)>>segmentBits) + 1
	for {
		old := b.segments.Load()
		cur := 0
		if old != nil {
			cur = len(*old)
		}
		if cur >= target {
			return
		}
		next := make([]*segment, target)
		if old != nil {
			copy(next, *old)
		}
		for i := cur; i < target; i++ {
			next[i] = new(segment)
		}
		if b.segments.CompareAndSwap(old, &next) {
			return
		}
	}
}

// word returns the atomic word holding bit i and the bit's mask, or nil if i is
// outside the set.
func (b *BitSet) word(i uint64) (*atomic.Uint64, uint64) {
	if i >= b.size.Load() {
		return nil, 0
	}
	segs := b.segments.Load()
	idx := int(i >> segmentBits)
	if segs == nil || idx >= len(*segs) {
		return nil, 0
	}
	off := i & segmentMask
	return &(*segs)[idx][off/64], uint64(1) << (off % 64)
}

// Set sets the bit at the given index.
func (b *BitSet) Set(i uint64) {
	if w, mask := b.word(i); w != nil {
		w.Or(mask)
	}
}

// TestAndSet sets the bit at the given index and returns true if it was ALREADY set.
// Indices outside the set report true so callers never acquire an unknown bit.
func (b *BitSet) TestAndSet(i uint64) bool {
	w, mask := b.word(i)
	if w == nil {
		return true
	}
	for {
		old := w.Load()
		if old&mask != 0 {
			return true
		}
		if w.CompareAndSwap(old, old|mask) {
			return false
		}
	}
}

// Unset clears the bit at the given index.
func (b *BitSet) Unset(i uint64) {
	if w, mask := b.word(i); w != nil {
		w.And(^mask)
	}
}

// Test returns true if the bit at the given index is set.
func (b *BitSet) Test(i uint64) bool {
	w, mask := b.word(i)
	return w != nil && w.Load()&mask != 0
}

// Grow ensures the bitset can hold at least size bits.
// Segments are published before the size so readers never see a missing segment.
func (b *BitSet) Grow(size uint64) {
	b.growSegments(size)
	for {
		cur := b.size.Load()
		if size <= cur || b.size.CompareAndSwap(cur, size) {
			return
		}
	}
}

// Count returns the number of set bits.
func (b *BitSet) Count() int {
	segs := b.segments.Load()
	if segs == nil {
		return 0
	}
	n := 0
	for _, s := range *segs {
		for i := range s {
			n += bits.OnesCount64(s[i].Load())
		}
	}
	return n
}

// ClearAll clears all bits in the bitset.
func (b *BitSet) ClearAll() {
	segs := b.segments.Load()
	if segs == nil {
		return
	}
	for _, s := range *segs {
		for i := range s {
			s[i].Store(0)
		}
	}
}

// Len returns the size of the bitset in bits.
func (b *BitSet) Len() uint64 {
	return b.size.Load()
}

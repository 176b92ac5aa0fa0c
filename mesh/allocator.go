package mesh

import (
	"slices"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/meshkit/internal/conv"
	"github.com/hupe1980/meshkit/model"
)

// allocator hands out element ids of one primitive type.
//
// Ids are appended at the high-water mark and are not reused until
// consolidation. Logically deleted ids wait in a roaring bitmap.
type allocator struct {
	mu      sync.Mutex
	size    int
	deleted *roaring.Bitmap
}

func newAllocator() *allocator {
	return &allocator{deleted: roaring.New()}
}

// take reserves n consecutive ids and returns the first one.
func (a *allocator) take(n int) model.ElementID {
	a.mu.Lock()
	defer a.mu.Unlock()
	first := a.size
	a.size += n
	return model.ElementID(first)
}

// give returns ids allocated by an undone edit. Ids at the tail lower the
// high-water mark; any other id is marked deleted.
func (a *allocator) give(ids []model.ElementID) {
	if len(ids) == 0 {
		return
	}
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := len(sorted) - 1; i >= 0; i-- {
		id := sorted[i]
		if int(id) == a.size-1 {
			a.size--
			continue
		}
		a.deleted.Add(mustUint32(id))
	}
}

// markDeleted records ids removed by a committed edit.
func (a *allocator) markDeleted(ids []model.ElementID) {
	if len(ids) == 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, id := range ids {
		a.deleted.Add(mustUint32(id))
	}
}

func (a *allocator) highWater() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.size
}

// live returns the number of allocated ids that are not deleted.
func (a *allocator) live() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.size - int(a.deleted.GetCardinality())
}

func (a *allocator) isDeleted(id model.ElementID) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.deleted.Contains(mustUint32(id))
}

// reset is called by consolidation once ids are dense again.
func (a *allocator) reset(size int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.size = size
	a.deleted.Clear()
}

func mustUint32(id model.ElementID) uint32 {
	v, err := conv.IDToUint32(id)
	if err != nil {
		invariantf("allocator", "element id %d: %v", id, err)
	}
	return v
}

// Package queue provides the per-worker candidate priority queue.
package queue

// Item is an entry of a PriorityQueue.
type Item[T any] struct {
	Value    T
	Priority float64
	seq      uint64
}

// PriorityQueue is a value-based binary max-heap. Equal priorities dequeue in
// insertion order, so a single worker's order is deterministic.
// It is not safe for concurrent use.
type PriorityQueue[T any] struct {
	items []Item[T]
	seq   uint64
}

// New initializes a new priority queue with the given capacity.
func New[T any](capacity int) *PriorityQueue[T] {
	return &PriorityQueue[T]{items: make([]Item[T], 0, capacity)}
}

// Len returns the number of elements in the priority queue.
func (pq *PriorityQueue[T]) Len() int { return len(pq.items) }

// Push inserts v with priority p while maintaining the heap invariant.
func (pq *PriorityQueue[T]) Push(v T, p float64) {
	pq.items = append(pq.items, Item[T]{Value: v, Priority: p, seq: pq.seq})
	pq.seq++
	pq.siftUp(len(pq.items) - 1)
}

// Top returns the highest priority element without removing it.
func (pq *PriorityQueue[T]) Top() (Item[T], bool) {
	if len(pq.items) == 0 {
		return Item[T]{}, false
	}
	return pq.items[0], true
}

// Pop removes and returns the highest priority element.
func (pq *PriorityQueue[T]) Pop() (Item[T], bool) {
	n := len(pq.items)
	if n == 0 {
		return Item[T]{}, false
	}
	root := pq.items[0]
	last := pq.items[n-1]
	pq.items[n-1] = Item[T]{} // zero out for GC
	pq.items = pq.items[:n-1]
	if n-1 > 0 {
		pq.items[0] = last
		pq.siftDown(0)
	}
	return root, true
}

// Reset clears the priority queue for reuse.
func (pq *PriorityQueue[T]) Reset() {
	clear(pq.items)
	pq.items = pq.items[:0]
}

func (pq *PriorityQueue[T]) less(i, j int) bool {
	a, b := pq.items[i], pq.items[j]
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	return a.seq < b.seq
}

func (pq *PriorityQueue[T]) siftUp(i int) {
	for i > 0 {
		p := (i - 1) / 2
		if !pq.less(i, p) {
			return
		}
		pq.items[i], pq.items[p] = pq.items[p], pq.items[i]
		i = p
	}
}

func (pq *PriorityQueue[T]) siftDown(i int) {
	n := len(pq.items)
	for {
		l := 2*i + 1
		if l >= n {
			return
		}
		best := l
		r := l + 1
		if r < n && pq.less(r, l) {
			best = r
		}
		if !pq.less(best, i) {
			return
		}
		pq.items[i], pq.items[best] = pq.items[best], pq.items[i]
		i = best
	}
}

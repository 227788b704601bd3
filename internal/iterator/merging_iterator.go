package iterator

import (
	"container/heap"
)

// MergingIterator merges multiple sorted iterators into one sorted stream.
// It uses a min-heap to find the smallest key across all children. This is
// how tombstones from several files are fed into one aggregator ingest.
type MergingIterator struct {
	children []Iterator
	cmp      func(a, b []byte) int
	minHeap  *iterHeap
	current  Iterator
}

// NewMergingIterator creates a merging iterator over the given children.
// The comparator must order internal keys.
func NewMergingIterator(children []Iterator, cmp func(a, b []byte) int) *MergingIterator {
	mi := &MergingIterator{
		children: children,
		cmp:      cmp,
	}
	mi.minHeap = &iterHeap{cmp: cmp}
	return mi
}

// Valid returns true if the iterator is positioned at an entry.
func (mi *MergingIterator) Valid() bool {
	return mi.current != nil
}

// SeekToFirst positions all children at their first entry.
func (mi *MergingIterator) SeekToFirst() {
	mi.rebuild(func(child Iterator) { child.SeekToFirst() })
}

// Seek positions the iterator at the first entry with key >= target.
func (mi *MergingIterator) Seek(target []byte) {
	mi.rebuild(func(child Iterator) { child.Seek(target) })
}

// Next advances to the next entry in merged order.
func (mi *MergingIterator) Next() {
	if mi.current == nil {
		return
	}
	mi.current.Next()
	if mi.current.Valid() {
		heap.Push(mi.minHeap, mi.current)
	}
	mi.pop()
}

// Key returns the current key.
func (mi *MergingIterator) Key() []byte {
	return mi.current.Key()
}

// Value returns the current value.
func (mi *MergingIterator) Value() []byte {
	return mi.current.Value()
}

// Error returns the first child error encountered.
func (mi *MergingIterator) Error() error {
	for _, child := range mi.children {
		if err := child.Error(); err != nil {
			return err
		}
	}
	return nil
}

func (mi *MergingIterator) rebuild(position func(Iterator)) {
	mi.minHeap.items = mi.minHeap.items[:0]
	mi.current = nil
	for _, child := range mi.children {
		position(child)
		if child.Valid() {
			mi.minHeap.items = append(mi.minHeap.items, child)
		}
	}
	heap.Init(mi.minHeap)
	mi.pop()
}

func (mi *MergingIterator) pop() {
	if mi.minHeap.Len() == 0 {
		mi.current = nil
		return
	}
	mi.current = heap.Pop(mi.minHeap).(Iterator)
}

// iterHeap is a min-heap of iterators ordered by their current key.
type iterHeap struct {
	items []Iterator
	cmp   func(a, b []byte) int
}

func (h *iterHeap) Len() int { return len(h.items) }

func (h *iterHeap) Less(i, j int) bool {
	return h.cmp(h.items[i].Key(), h.items[j].Key()) < 0
}

func (h *iterHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *iterHeap) Push(x any) { h.items = append(h.items, x.(Iterator)) }

func (h *iterHeap) Pop() any {
	old := h.items
	n := len(old)
	item := old[n-1]
	h.items = old[:n-1]
	return item
}

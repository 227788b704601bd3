package rangedel

import (
	"container/heap"

	"github.com/aalhour/rangeyardkv/internal/dbformat"
)

// mergingTombstoneIterator merges per-stripe tombstone iterators into one
// stream ordered by start key (ties broken by descending seqno). Stripes
// never merge with each other, so overlapping tombstones from different
// stripes are emitted as-is.
type mergingTombstoneIterator struct {
	h tombstoneHeap
}

func newMergingTombstoneIterator(icmp *dbformat.InternalKeyComparator, children []Iterator) Iterator {
	mi := &mergingTombstoneIterator{
		h: tombstoneHeap{ucmp: icmp.UserCompare(), all: children},
	}
	mi.init()
	return mi
}

func (mi *mergingTombstoneIterator) init() {
	mi.h.items = mi.h.items[:0]
	for _, child := range mi.h.all {
		if child.Valid() {
			mi.h.items = append(mi.h.items, child)
		}
	}
	heap.Init(&mi.h)
}

func (mi *mergingTombstoneIterator) Valid() bool {
	return mi.h.Len() > 0
}

func (mi *mergingTombstoneIterator) Next() {
	if mi.h.Len() == 0 {
		return
	}
	top := mi.h.items[0]
	top.Next()
	if top.Valid() {
		heap.Fix(&mi.h, 0)
	} else {
		heap.Pop(&mi.h)
	}
}

// Seek repositions every child, including the ones that previously ran off
// the end, and rebuilds the merge order.
func (mi *mergingTombstoneIterator) Seek(target []byte) {
	for _, child := range mi.h.all {
		child.Seek(target)
	}
	mi.init()
}

func (mi *mergingTombstoneIterator) Tombstone() Tombstone {
	return mi.h.items[0].Tombstone()
}

// tombstoneHeap is a min-heap of iterators ordered by their current
// tombstone. all retains every child so Seek can revive exhausted ones.
type tombstoneHeap struct {
	items []Iterator
	all   []Iterator
	ucmp  dbformat.UserKeyComparer
}

func (h *tombstoneHeap) Len() int { return len(h.items) }

func (h *tombstoneHeap) Less(i, j int) bool {
	a, b := h.items[i].Tombstone(), h.items[j].Tombstone()
	if c := h.ucmp(a.StartKey(), b.StartKey()); c != 0 {
		return c < 0
	}
	return a.Seq() > b.Seq()
}

func (h *tombstoneHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *tombstoneHeap) Push(x any) { h.items = append(h.items, x.(Iterator)) }

func (h *tombstoneHeap) Pop() any {
	old := h.items
	n := len(old)
	item := old[n-1]
	h.items = old[:n-1]
	return item
}

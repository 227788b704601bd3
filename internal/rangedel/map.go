package rangedel

import (
	"sort"

	"github.com/aalhour/rangeyardkv/internal/dbformat"
)

// PositioningMode controls how a map locates the interval for a ShouldDelete
// query.
type PositioningMode int

const (
	// ModeFullScan scans all tombstones. Only uncollapsed maps support it.
	ModeFullScan PositioningMode = iota

	// ModeForwardTraversal advances a persistent cursor; correct when query
	// keys arrive in ascending order.
	ModeForwardTraversal

	// ModeBackwardTraversal retreats the cursor; for descending query keys.
	ModeBackwardTraversal

	// ModeBinarySearch repositions from scratch on every query.
	ModeBinarySearch
)

// Iterator traverses the tombstones of a map in ascending start-key order.
type Iterator interface {
	// Valid returns true if positioned at a tombstone.
	Valid() bool

	// Next advances to the next tombstone, transparently skipping sentinel
	// transitions on collapsed maps.
	Next()

	// Seek positions at the tombstone whose interval contains target, or at
	// the first tombstone after it. Panics on uncollapsed maps.
	Seek(target []byte)

	// Tombstone returns the current tombstone.
	// REQUIRES: Valid()
	Tombstone() Tombstone
}

// Map is the tombstone container behind one snapshot stripe.
type Map interface {
	// Add inserts a tombstone.
	Add(t Tombstone)

	// ShouldDelete reports whether the parsed key is covered by a tombstone
	// with a higher sequence number.
	ShouldDelete(parsed *dbformat.ParsedInternalKey, mode PositioningMode) bool

	// ShouldDeleteRange reports whether the whole range [begin, end] of
	// encoded internal keys is covered at sequence numbers above seq.
	// Panics on uncollapsed maps.
	ShouldDeleteRange(begin, end []byte, seq dbformat.SequenceNumber) bool

	// GetTombstone returns the partial tombstone whose interval contains the
	// encoded internal key. Panics on uncollapsed maps.
	GetTombstone(key []byte, seq dbformat.SequenceNumber) PartialTombstone

	// IsRangeOverlapped reports whether any non-empty tombstone overlaps the
	// inclusive user-key range [start, end]. Panics on collapsed maps.
	IsRangeOverlapped(start, end []byte) bool

	// Size returns the number of effective tombstones.
	Size() int

	// IsEmpty returns true if the map holds no tombstones.
	IsEmpty() bool

	// InvalidatePosition resets any persistent query cursor. Must be called
	// after mutations that interleave with traversal-mode queries.
	InvalidatePosition()

	// NewIterator returns an iterator over the map's tombstones.
	NewIterator() Iterator
}

// UncollapsedMap is quick to create but slow to answer ShouldDelete queries:
// a start-key-ordered multiset of raw tombstones, scanned in full per query.
// It backs read-path aggregators and the file-ingestion overlap check.
type UncollapsedMap struct {
	icmp    *dbformat.InternalKeyComparator
	rep     []Tombstone
	scratch []byte
}

// NewUncollapsedMap creates an empty uncollapsed map.
func NewUncollapsedMap(icmp *dbformat.InternalKeyComparator) *UncollapsedMap {
	return &UncollapsedMap{icmp: icmp}
}

// Add inserts t, keeping the multiset ordered by start user key. Tombstones
// with equal start keys stay in arrival order.
func (m *UncollapsedMap) Add(t Tombstone) {
	ucmp := m.icmp.UserCompare()
	idx := sort.Search(len(m.rep), func(i int) bool {
		return ucmp(m.rep[i].StartKey(), t.StartKey()) > 0
	})
	m.rep = append(m.rep, Tombstone{})
	copy(m.rep[idx+1:], m.rep[idx:])
	m.rep[idx] = t
}

// ShouldDelete scans tombstones in start-key order, stopping once they can
// no longer contain the query key. Traversal modes degenerate to the same
// full scan; callers use ModeFullScan.
func (m *UncollapsedMap) ShouldDelete(parsed *dbformat.ParsedInternalKey, mode PositioningMode) bool {
	ucmp := m.icmp.UserCompare()
	m.scratch = dbformat.AppendInternalKey(m.scratch[:0], parsed)
	for i := range m.rep {
		t := &m.rep[i]
		if ucmp(parsed.UserKey, t.StartKey()) < 0 {
			break
		}
		if parsed.Sequence < t.seq &&
			m.icmp.Compare(m.scratch, t.start) >= 0 &&
			m.icmp.Compare(m.scratch, t.end) < 0 {
			return true
		}
	}
	return false
}

// ShouldDeleteRange is unsupported; only collapsed maps answer range queries.
func (m *UncollapsedMap) ShouldDeleteRange(begin, end []byte, seq dbformat.SequenceNumber) bool {
	panic("rangedel: ShouldDeleteRange not supported by uncollapsed map")
}

// GetTombstone is unsupported; only collapsed maps answer gap queries.
func (m *UncollapsedMap) GetTombstone(key []byte, seq dbformat.SequenceNumber) PartialTombstone {
	panic("rangedel: GetTombstone not supported by uncollapsed map")
}

// IsRangeOverlapped reports whether any non-empty tombstone overlaps the
// user-key range [start, end]. The query range is inclusive on both ends
// because the file-ingestion collision check that calls this must reject a
// tombstone that merely touches end; the tombstone's own end stays exclusive.
func (m *UncollapsedMap) IsRangeOverlapped(start, end []byte) bool {
	ucmp := m.icmp.UserCompare()
	for i := range m.rep {
		t := &m.rep[i]
		if ucmp(start, t.EndKey()) < 0 &&
			ucmp(t.StartKey(), end) <= 0 &&
			ucmp(t.StartKey(), t.EndKey()) < 0 {
			return true
		}
	}
	return false
}

// Size returns the number of stored tombstones.
func (m *UncollapsedMap) Size() int {
	return len(m.rep)
}

// IsEmpty returns true if no tombstones are stored.
func (m *UncollapsedMap) IsEmpty() bool {
	return len(m.rep) == 0
}

// InvalidatePosition is a no-op; uncollapsed maps keep no cursor.
func (m *UncollapsedMap) InvalidatePosition() {}

// NewIterator returns an iterator over the multiset in start-key order.
func (m *UncollapsedMap) NewIterator() Iterator {
	return &uncollapsedIterator{m: m}
}

type uncollapsedIterator struct {
	m   *UncollapsedMap
	idx int
}

func (it *uncollapsedIterator) Valid() bool {
	return it.idx < len(it.m.rep)
}

func (it *uncollapsedIterator) Next() {
	it.idx++
}

func (it *uncollapsedIterator) Seek(target []byte) {
	panic("rangedel: Seek not supported by uncollapsed map iterator")
}

func (it *uncollapsedIterator) Tombstone() Tombstone {
	return it.m.rep[it.idx]
}

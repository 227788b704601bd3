package rangedel

import (
	"github.com/huandu/skiplist"

	"github.com/aalhour/rangeyardkv/internal/dbformat"
)

// CollapsedMap is slow to create but quick to answer ShouldDelete queries.
//
// Suppose we have tombstones [b, n) @ 1, [e, h) @ 2, [q, t) @ 2, and
// [g, k) @ 3. Visually:
//
//	3:        g---k
//	2:     e---h        q--t
//	1:  b------------n
//
// Wherever tombstones overlap, only the one with the largest seqno matters,
// so the set is equivalent to non-overlapping intervals that can be stored
// as an ordered map from keys to sequence numbers, each entry a transition
// from one tombstone to the next:
//
//	b → 1, e → 2, g → 3, k → 1, n → 0, q → 2, t → 0
//
// A sentinel seqno of 0 marks a gap with no tombstone, as at n and t above.
// To check whether a key is covered, binary search for the last entry at or
// before it: the key is covered iff the entry's seqno is larger than its
// own. h @ 4 lands on g → 3 and is uncovered; h @ 2 is covered.
//
// Entries are keyed by encoded internal keys. Ordinary transitions sit at
// (user_key, MaxSequenceNumber, TypeMax) and behave exactly like user-key
// transitions; truncation to a file boundary installs an entry at the
// boundary's actual internal key, splitting coverage at that user key by
// sequence number.
type CollapsedMap struct {
	rep     *skiplist.SkipList
	icmp    *dbformat.InternalKeyComparator
	cur     *skiplist.Element // persistent query cursor; nil when invalidated
	scratch []byte
}

// NewCollapsedMap creates an empty collapsed map.
func NewCollapsedMap(icmp *dbformat.InternalKeyComparator) *CollapsedMap {
	return &CollapsedMap{
		rep: skiplist.New(skiplist.GreaterThanFunc(func(a, b interface{}) int {
			return icmp.Compare(a.([]byte), b.([]byte))
		})),
		icmp: icmp,
	}
}

func entryKey(e *skiplist.Element) []byte {
	return e.Key().([]byte)
}

func entrySeq(e *skiplist.Element) dbformat.SequenceNumber {
	return e.Value.(dbformat.SequenceNumber)
}

// upperBound returns the first entry with key strictly greater than key,
// or nil if none exists.
func (m *CollapsedMap) upperBound(key []byte) *skiplist.Element {
	e := m.rep.Find(key) // first entry >= key
	if e != nil && m.icmp.Compare(entryKey(e), key) == 0 {
		e = e.Next()
	}
	return e
}

// prevOf returns the entry before e, where nil e means "past the end".
func (m *CollapsedMap) prevOf(e *skiplist.Element) *skiplist.Element {
	if e == nil {
		return m.rep.Back()
	}
	return e.Prev()
}

// ShouldDelete reports whether the parsed key is covered. The cursor left by
// the previous query is reused in the traversal modes; if a mutation
// invalidated it, the query silently falls back to a binary search.
func (m *CollapsedMap) ShouldDelete(parsed *dbformat.ParsedInternalKey, mode PositioningMode) bool {
	if m.rep.Len() == 0 {
		return false
	}
	m.scratch = dbformat.AppendInternalKey(m.scratch[:0], parsed)
	key := m.scratch

	if m.cur == nil && (mode == ModeForwardTraversal || mode == ModeBackwardTraversal) {
		// Cursor was invalidated (e.g. by AddTombstones); reseek.
		mode = ModeBinarySearch
	}
	switch mode {
	case ModeFullScan:
		panic("rangedel: full scan not supported by collapsed map")
	case ModeForwardTraversal:
		if m.cur == m.rep.Front() && m.icmp.Compare(key, entryKey(m.cur)) < 0 {
			// Before the start of the deletion intervals.
			return false
		}
		for next := m.cur.Next(); next != nil && m.icmp.Compare(entryKey(next), key) <= 0; next = m.cur.Next() {
			m.cur = next
		}
	case ModeBackwardTraversal:
		for m.cur != m.rep.Front() && m.icmp.Compare(key, entryKey(m.cur)) < 0 {
			m.cur = m.cur.Prev()
		}
		if m.cur == m.rep.Front() && m.icmp.Compare(key, entryKey(m.cur)) < 0 {
			return false
		}
	case ModeBinarySearch:
		ub := m.upperBound(key)
		if ub == m.rep.Front() {
			// Before the start of the deletion intervals.
			return false
		}
		m.cur = m.prevOf(ub)
	}
	return parsed.Sequence < entrySeq(m.cur)
}

// ShouldDeleteRange reports whether every point of [begin, end] (encoded
// internal keys) is covered by transitions with seqno strictly above seq.
func (m *CollapsedMap) ShouldDeleteRange(begin, end []byte, seq dbformat.SequenceNumber) bool {
	if m.rep.Len() == 0 || m.icmp.Compare(begin, end) > 0 {
		return false
	}
	ub := m.upperBound(begin)
	if ub == m.rep.Front() {
		return false
	}
	e := m.prevOf(ub)
	for {
		if entrySeq(e) <= seq {
			return false
		}
		next := e.Next()
		if next == nil || m.icmp.Compare(entryKey(next), end) > 0 {
			// Coverage extends past the end of the queried range.
			return true
		}
		e = next
	}
}

// GetTombstone returns the partial tombstone for the interval containing the
// encoded internal key. The returned seqno is the interval's transition
// seqno when it strictly exceeds seq, else 0. Boundaries are taken from the
// surrounding entries; a missing boundary means the query fell off that edge
// of the map.
func (m *CollapsedMap) GetTombstone(key []byte, seq dbformat.SequenceNumber) PartialTombstone {
	if m.rep.Len() == 0 {
		return PartialTombstone{}
	}
	ub := m.upperBound(key)
	if ub == m.rep.Front() {
		return PartialTombstone{end: parseBound(entryKey(ub))}
	}
	e := m.prevOf(ub)

	var effective dbformat.SequenceNumber
	if s := entrySeq(e); seq < s {
		effective = s
	}
	p := PartialTombstone{
		start: parseBound(entryKey(e)),
		seq:   effective,
	}
	if next := e.Next(); next != nil {
		p.end = parseBound(entryKey(next))
	}
	return p
}

// Add collapses t into the transition map.
//
// The cursor starts at the first entry past t's start bound. Each region the
// new tombstone touches (its start point, every existing transition inside
// it, and its end point) is classified independently: the start raises or
// installs a transition when the tombstone is not already covered there;
// interior transitions at or below the new seqno are absorbed (erased when
// the previous transition already carries the seqno, raised otherwise); the
// end restores the last seqno the tombstone covered. Tombstones at the same
// seqno that meet or overlap merge into one run: a transition between two
// equal-seqno regions carries no information and is erased.
func (m *CollapsedMap) Add(t Tombstone) {
	if m.icmp.Compare(t.start, t.end) >= 0 {
		// No expressible coverage; installing the start would leave a
		// headless transition with no terminator.
		return
	}
	// The mutation below may erase the element the cursor sits on.
	m.InvalidatePosition()

	it := m.upperBound(t.start)
	prevSeq := func() dbformat.SequenceNumber {
		if p := m.prevOf(it); p != nil {
			return entrySeq(p)
		}
		return 0
	}

	// endSeq tracks the seqno of the last transition the new tombstone
	// covered; it is restored if the tombstone's end lands inside existing
	// coverage. touched records whether any transition in [t.start, t.end)
	// was installed, raised, or absorbed: when the tombstone changed
	// nothing, it was fully absorbed by an equal-seqno run and must not be
	// terminated.
	var endSeq dbformat.SequenceNumber
	touched := false

	if t.seq > prevSeq() {
		// The new tombstone's start point covers whatever was here before.
		endSeq = prevSeq()
		touched = true
		if existing := m.rep.Get([]byte(t.start)); existing != nil {
			if p := existing.Prev(); p != nil && entrySeq(p) == t.seq {
				// The run before the start already carries the new seqno;
				// the new tombstone starts where an equal-seqno tombstone
				// ends. Merge the runs by erasing the old boundary.
				m.rep.Remove(existing.Key())
			} else {
				existing.Value = t.seq
			}
		} else {
			m.rep.Set([]byte(t.start), t.seq)
		}
	}
	// Otherwise the start point is already covered by something at least as
	// high; leave it alone.

	// Walk the existing transitions that overlap the new tombstone.
	for it != nil && m.icmp.Compare(entryKey(it), t.end) < 0 {
		if t.seq >= entrySeq(it) {
			// This transition is to a tombstone the new one covers. Remember
			// its seqno in case the new tombstone ends before it does.
			endSeq = entrySeq(it)
			touched = true

			var ps dbformat.SequenceNumber
			if p := it.Prev(); p != nil {
				ps = entrySeq(p)
			}
			if ps == t.seq {
				// The previous transition already carries the new seqno, so
				// this one is superseded. Erase it.
				next := it.Next()
				m.rep.Remove(it.Key())
				it = next
				continue
			}
			// End of a run of higher transitions: keep the point, raise it.
			it.Value = t.seq
		}
		// Transitions above the new seqno stay as they are.
		it = it.Next()
	}

	var ps dbformat.SequenceNumber
	if p := m.prevOf(it); p != nil {
		ps = entrySeq(p)
	}
	if ps == t.seq {
		if existing := m.rep.Get([]byte(t.end)); existing != nil {
			if entrySeq(existing) == t.seq {
				// The new tombstone ends where an equal-seqno tombstone
				// starts. Merge the runs by erasing its start boundary.
				m.rep.Remove(existing.Key())
			}
			// Otherwise the existing transition wins; exclusive ends must
			// not downgrade a later transition.
		} else if touched && endSeq != t.seq {
			// The new tombstone is still open in the map; terminate it with
			// the last covered seqno. When the resumed coverage would be the
			// new seqno itself, or nothing was modified at all, the run
			// continues and no transition is needed.
			m.rep.Set([]byte(t.end), endSeq)
		}
	}
	// Otherwise the end point is inside an existing higher tombstone and the
	// new one was implicitly terminated.
}

// Size returns the number of effective tombstones: the entry count minus the
// trailing sentinel.
func (m *CollapsedMap) Size() int {
	if m.rep.Len() <= 1 {
		return 0
	}
	return m.rep.Len() - 1
}

// IsEmpty returns true if the map holds no tombstones.
func (m *CollapsedMap) IsEmpty() bool {
	return m.rep.Len() <= 1
}

// IsRangeOverlapped is unimplemented because its only client, file
// ingestion, uses uncollapsed maps.
func (m *CollapsedMap) IsRangeOverlapped(start, end []byte) bool {
	panic("rangedel: IsRangeOverlapped not supported by collapsed map")
}

// InvalidatePosition resets the persistent query cursor.
func (m *CollapsedMap) InvalidatePosition() {
	m.cur = nil
}

// NewIterator returns an iterator over the effective tombstones, skipping
// sentinel transitions.
func (m *CollapsedMap) NewIterator() Iterator {
	it := &collapsedIterator{m: m, e: m.rep.Front()}
	it.skipSentinels()
	return it
}

type collapsedIterator struct {
	m *CollapsedMap
	e *skiplist.Element
}

func (it *collapsedIterator) skipSentinels() {
	for it.Valid() && entrySeq(it.e) == 0 {
		it.e = it.e.Next()
	}
}

func (it *collapsedIterator) Valid() bool {
	return it.e != nil && it.e.Next() != nil
}

func (it *collapsedIterator) Next() {
	if it.e == nil {
		return
	}
	it.e = it.e.Next()
	it.skipSentinels()
}

// Seek positions at the interval containing target, then skips forward past
// any sentinels.
func (it *collapsedIterator) Seek(target []byte) {
	bound := boundKey(target)
	ub := it.m.upperBound(bound)
	if ub != it.m.rep.Front() {
		ub = it.m.prevOf(ub)
	}
	it.e = ub
	it.skipSentinels()
}

func (it *collapsedIterator) Tombstone() Tombstone {
	next := it.e.Next()
	return Tombstone{
		start: dbformat.InternalKey(entryKey(it.e)),
		end:   dbformat.InternalKey(entryKey(next)),
		seq:   entrySeq(it.e),
	}
}

package rangedel

import (
	"errors"
	"fmt"
	"sort"

	"github.com/aalhour/rangeyardkv/internal/compaction"
	"github.com/aalhour/rangeyardkv/internal/dbformat"
	"github.com/aalhour/rangeyardkv/internal/iterator"
	"github.com/aalhour/rangeyardkv/internal/logging"
	"github.com/aalhour/rangeyardkv/internal/manifest"
)

// ErrCorruption is returned when a tombstone's internal key cannot be parsed
// during ingest.
var ErrCorruption = errors.New("rangedel: corrupt range tombstone internal key")

// TableBuilder is the subset of the table-building interface the aggregator
// writes tombstones to.
type TableBuilder interface {
	// Add appends one entry; key is a serialized internal key, value the
	// tombstone's end user key. Keys arrive in ascending order per stripe.
	Add(key, value []byte) error
}

// stripe is one snapshot bucket. A tombstone with sequence t lands in the
// stripe with the smallest upperBound >= t, so tombstones are merged only
// when they are visible to the same set of snapshots.
type stripe struct {
	upperBound dbformat.SequenceNumber
	m          Map
}

// Aggregator collects range tombstones from multiple sources and answers
// coverage queries against them. It is single-threaded: no internal locking,
// and the collapsed maps keep mutable cursor state across queries.
type Aggregator struct {
	icmp       *dbformat.InternalKeyComparator
	upperBound dbformat.SequenceNumber
	collapse   bool
	logger     logging.Logger

	// stripes is sorted by upperBound and always ends with the catch-all
	// MaxSequenceNumber stripe once initialized. nil until the first ingest
	// (or construction, for the snapshot-list form).
	stripes []stripe

	// pinned holds every drained source iterator for the aggregator's
	// lifetime. Map entries do not alias source buffers: each tombstone bound
	// is a freshly encoded internal key, or the caller's boundary key when
	// truncated.
	pinned []iterator.Iterator
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithLogger sets the logger used for ingest diagnostics.
func WithLogger(l logging.Logger) Option {
	return func(a *Aggregator) {
		a.logger = l
	}
}

// NewAggregator creates an aggregator for compaction: tombstones are
// bucketed by the given snapshot sequence numbers, with data newer than any
// snapshot falling into the catch-all stripe. Compactions pass
// collapse=true so that emitted tombstones are non-overlapping.
func NewAggregator(icmp *dbformat.InternalKeyComparator, snapshots []dbformat.SequenceNumber, collapse bool, opts ...Option) *Aggregator {
	a := &Aggregator{
		icmp:       icmp,
		upperBound: dbformat.MaxSequenceNumber,
		collapse:   collapse,
		logger:     logging.Discard,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.initStripes(snapshots)
	return a
}

// NewReadAggregator creates an aggregator for a point read at the given
// snapshot. Stripes are allocated lazily on the first ingest that carries
// data; reads pass collapse=false because each lookup touches the map once.
func NewReadAggregator(icmp *dbformat.InternalKeyComparator, snapshot dbformat.SequenceNumber, collapse bool, opts ...Option) *Aggregator {
	a := &Aggregator{
		icmp:       icmp,
		upperBound: snapshot,
		collapse:   collapse,
		logger:     logging.Discard,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Aggregator) initStripes(snapshots []dbformat.SequenceNumber) {
	sorted := append([]dbformat.SequenceNumber(nil), snapshots...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var prev dbformat.SequenceNumber
	for i, snap := range sorted {
		if snap >= dbformat.MaxSequenceNumber {
			break
		}
		if i > 0 && snap == prev {
			continue
		}
		a.stripes = append(a.stripes, stripe{upperBound: snap, m: a.newMap()})
		prev = snap
	}
	// Data newer than any snapshot falls into this catch-all stripe.
	a.stripes = append(a.stripes, stripe{upperBound: dbformat.MaxSequenceNumber, m: a.newMap()})
}

func (a *Aggregator) newMap() Map {
	if a.collapse {
		return NewCollapsedMap(a.icmp)
	}
	return NewUncollapsedMap(a.icmp)
}

// stripeFor returns the map for the stripe covering seq: the one whose upper
// bound is the least element of snapshots ∪ {MaxSequenceNumber} at or above
// seq. The stripe includes seq at its upper bound and excludes it at the
// bound below.
func (a *Aggregator) stripeFor(seq dbformat.SequenceNumber) Map {
	idx := 0
	if seq > 0 {
		idx = sort.Search(len(a.stripes), func(i int) bool {
			return a.stripes[i].upperBound >= seq
		})
	}
	if idx >= len(a.stripes) {
		panic("rangedel: catch-all stripe missing")
	}
	return a.stripes[idx].m
}

// AddTombstones drains src, routing each tombstone to its snapshot stripe.
// src yields serialized tombstones: the key an internal key whose user key
// is the tombstone start and whose type is TypeRangeDeletion, the value the
// exclusive end user key.
//
// When smallest/largest are non-nil they are the boundaries of the
// compaction input file the tombstones came from, and each tombstone is
// truncated to them so it cannot extend past the file's key range.
//
// A tombstone that truncation leaves with no extent is dropped.
//
// The source is pinned for the aggregator's lifetime. Map entries do not
// alias its buffers; tombstone bounds are encoded into new keys.
func (a *Aggregator) AddTombstones(src iterator.Iterator, smallest, largest dbformat.InternalKey) error {
	if src == nil {
		return nil
	}
	src.SeekToFirst()
	first := true
	for src.Valid() {
		if first {
			if a.stripes == nil {
				a.initStripes([]dbformat.SequenceNumber{a.upperBound})
			} else {
				a.InvalidateMapPositions()
			}
			first = false
		}
		parsed, err := dbformat.ParseInternalKey(src.Key())
		if err != nil {
			a.logger.Errorf("%singest aborted: %v", logging.NSRangeDel, err)
			return fmt.Errorf("%w: %v", ErrCorruption, err)
		}

		raw := NewTombstone(parsed.UserKey, src.Value(), parsed.Sequence)
		t := a.truncate(raw, smallest, largest)
		if a.icmp.Compare(t.start, t.end) >= 0 && a.icmp.Compare(raw.start, raw.end) < 0 {
			a.logger.Debugf("%sdropping tombstone emptied by truncation: [%q, %q) @ %d",
				logging.NSRangeDel, raw.StartKey(), raw.EndKey(), raw.seq)
			src.Next()
			continue
		}
		a.stripeFor(t.seq).Add(t)

		src.Next()
	}
	if !first {
		a.pinned = append(a.pinned, src)
	}
	return src.Error()
}

// truncate clips t to the file boundaries. A boundary that is a point record
// carries its own sequence number into the bound, capping coverage at the
// boundary user key to the sequence range that actually belongs to the file.
func (a *Aggregator) truncate(t Tombstone, smallest, largest dbformat.InternalKey) Tombstone {
	ucmp := a.icmp.UserCompare()
	if len(smallest) > 0 && ucmp(t.StartKey(), smallest.UserKey()) < 0 {
		t.start = smallest
	}
	if len(largest) > 0 && ucmp(t.EndKey(), largest.UserKey()) > 0 {
		t.end = largest
	}
	return t
}

// ShouldDelete reports whether the parsed key is covered by a tombstone in
// its own snapshot stripe.
func (a *Aggregator) ShouldDelete(parsed *dbformat.ParsedInternalKey, mode PositioningMode) bool {
	if a.stripes == nil {
		return false
	}
	m := a.stripeFor(parsed.Sequence)
	if m.IsEmpty() {
		return false
	}
	return m.ShouldDelete(parsed, mode)
}

// ShouldDeleteKey is ShouldDelete over an encoded internal key.
func (a *Aggregator) ShouldDeleteKey(key []byte, mode PositioningMode) bool {
	parsed, err := dbformat.ParseInternalKey(key)
	if err != nil {
		// Corrupt keys cannot reach here through normal operation.
		a.logger.Fatalf("%sunparseable key in ShouldDeleteKey: %v", logging.NSRangeDel, err)
		return false
	}
	return a.ShouldDelete(parsed, mode)
}

// ShouldDeleteRange reports whether all of [begin, end] (encoded internal
// keys) is covered at sequence numbers above seq. Valid only on collapsed
// aggregators.
func (a *Aggregator) ShouldDeleteRange(begin, end []byte, seq dbformat.SequenceNumber) bool {
	if a.stripes == nil {
		return false
	}
	return a.stripeFor(seq).ShouldDeleteRange(begin, end, seq)
}

// GetTombstone returns the partial tombstone whose interval contains the
// encoded internal key, queried at seq. Valid only on collapsed aggregators.
func (a *Aggregator) GetTombstone(key []byte, seq dbformat.SequenceNumber) PartialTombstone {
	if a.stripes == nil {
		return PartialTombstone{}
	}
	return a.stripeFor(seq).GetTombstone(key, seq)
}

// IsRangeOverlapped reports whether any stripe holds a non-empty tombstone
// overlapping the inclusive user-key range [start, end]. Valid only on
// uncollapsed aggregators; the single client is file ingestion.
func (a *Aggregator) IsRangeOverlapped(start, end []byte) bool {
	if a.stripes == nil {
		return false
	}
	for _, st := range a.stripes {
		if st.m.IsRangeOverlapped(start, end) {
			return true
		}
	}
	return false
}

// ShouldAddTombstones reports whether any stripe has tombstones to write.
// At the bottommost level the oldest stripe is skipped: keys covered by its
// tombstones have been compacted away, so those tombstones are obsolete.
func (a *Aggregator) ShouldAddTombstones(bottommost bool) bool {
	if a.stripes == nil {
		return false
	}
	start := 0
	if bottommost {
		start = 1
	}
	for _, st := range a.stripes[start:] {
		if !st.m.IsEmpty() {
			return true
		}
	}
	return false
}

// InvalidateMapPositions resets every stripe's query cursor. Must be called
// between a mutation and any traversal-mode query.
func (a *Aggregator) InvalidateMapPositions() {
	for _, st := range a.stripes {
		st.m.InvalidatePosition()
	}
}

// IsEmpty returns true if no stripe holds a tombstone.
func (a *Aggregator) IsEmpty() bool {
	for _, st := range a.stripes {
		if !st.m.IsEmpty() {
			return false
		}
	}
	return true
}

// UpperBound returns the aggregator's visibility bound.
func (a *Aggregator) UpperBound() dbformat.SequenceNumber {
	return a.upperBound
}

// AddToBuilder writes the effective tombstones to builder, stripe by stripe,
// restricted to the output file's key range [lowerBound, upperBound) and
// maintaining the file's boundary metadata.
//
// When bottommost is set the oldest stripe is dropped as obsolete and its
// size credited to stats.
func (a *Aggregator) AddToBuilder(
	builder TableBuilder,
	lowerBound, upperBound []byte,
	meta *manifest.FileMetaData,
	stats *compaction.IterationStats,
	bottommost bool,
) error {
	if a.stripes == nil {
		return nil
	}
	ucmp := a.icmp.UserCompare()

	start := 0
	if bottommost {
		if stats != nil {
			dropped := int64(a.stripes[0].m.Size())
			stats.NumRangeDelDropObsolete += dropped
			stats.NumRecordDropObsolete += dropped
		}
		start = 1
	}

	for _, st := range a.stripes[start:] {
		firstAdded := false
		for it := st.m.NewIterator(); it.Valid(); it.Next() {
			t := it.Tombstone()
			if len(upperBound) > 0 && ucmp(upperBound, t.StartKey()) <= 0 {
				// Tombstones starting at upperBound or later belong to the
				// next table; subsequent ones start even later.
				break
			}
			if len(lowerBound) > 0 && ucmp(t.EndKey(), lowerBound) <= 0 {
				// Ends before our range; later tombstones may still overlap.
				continue
			}

			ikey, endKey := t.Serialize()
			if err := builder.Add(ikey, endKey); err != nil {
				return err
			}

			if !firstAdded {
				firstAdded = true
				smallestCandidate := ikey
				if len(lowerBound) > 0 && ucmp(t.StartKey(), lowerBound) <= 0 {
					// Pretend the smallest key has the lower bound's user key
					// so files appear key-space partitioned. The zero seqno
					// makes it sort after the previous file's largest; the
					// read path only considers the user key portion.
					smallestCandidate = dbformat.NewInternalKey(lowerBound, 0, dbformat.TypeRangeDeletion)
				}
				if len(meta.Smallest) == 0 || a.icmp.Compare(smallestCandidate, meta.Smallest) < 0 {
					meta.Smallest = smallestCandidate
				}
			}

			largestCandidate := t.SerializeEndKey()
			if len(upperBound) > 0 && ucmp(upperBound, t.EndKey()) <= 0 {
				// Pretend the largest key has the upper bound's user key. The
				// max seqno makes it sort before the next file's smallest,
				// and before any point lookup at upperBound: the range
				// deletion type outranks the types point lookups seek with.
				largestCandidate = dbformat.NewInternalKey(upperBound, dbformat.MaxSequenceNumber, dbformat.TypeRangeDeletion)
			}
			if len(meta.Largest) == 0 || a.icmp.Compare(meta.Largest, largestCandidate) < 0 {
				meta.Largest = largestCandidate
			}
			meta.UpdateSeqnos(t.Seq())
		}
	}
	return nil
}

// NewIterator returns an iterator over the tombstones of every stripe,
// merged in ascending start-key order. Seek is supported when the stripes
// are collapsed maps.
func (a *Aggregator) NewIterator() Iterator {
	children := make([]Iterator, 0, len(a.stripes))
	for _, st := range a.stripes {
		children = append(children, st.m.NewIterator())
	}
	return newMergingTombstoneIterator(a.icmp, children)
}

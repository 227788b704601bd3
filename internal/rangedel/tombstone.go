// Package rangedel implements range deletion (DeleteRange) aggregation.
//
// Range deletions work by storing "tombstones" that mark a range of keys as
// deleted at a sequence number. When reading, keys covered by tombstones are
// skipped. During compaction, covered keys can be dropped and the surviving
// tombstones are written to the output tables.
//
// Key concepts:
//   - Tombstone: a single [startKey, endKey) range with a sequence number
//   - UncollapsedMap: cheap to build, linear-scan queries
//   - CollapsedMap: transition-map representation for fast queries
//   - Aggregator: combines tombstones from multiple sources, bucketed into
//     per-snapshot stripes
//
// Reference: RocksDB db/range_del_aggregator.h, db/range_del_aggregator.cc
package rangedel

import (
	"github.com/aalhour/rangeyardkv/internal/dbformat"
)

// Tombstone represents a range deletion covering [StartKey, EndKey) at a
// sequence number. Keys in the range with a smaller sequence number are
// deleted by it.
//
// Each boundary is carried as an encoded internal key. An untruncated
// boundary sits at (user_key, MaxSequenceNumber, TypeMax), which sorts before
// every real key with the same user key; truncating a tombstone to a file
// boundary replaces the bound with the boundary's exact internal key so that
// coverage at the boundary user key splits by sequence number.
type Tombstone struct {
	start dbformat.InternalKey
	end   dbformat.InternalKey
	seq   dbformat.SequenceNumber
}

// NewTombstone creates a tombstone over [startKey, endKey) at seq.
func NewTombstone(startKey, endKey []byte, seq dbformat.SequenceNumber) Tombstone {
	return Tombstone{
		start: boundKey(startKey),
		end:   boundKey(endKey),
		seq:   seq,
	}
}

// boundKey encodes an untruncated interval boundary for userKey.
func boundKey(userKey []byte) dbformat.InternalKey {
	return dbformat.NewInternalKey(userKey, dbformat.MaxSequenceNumber, dbformat.TypeMax)
}

// StartKey returns the inclusive start user key.
func (t Tombstone) StartKey() []byte {
	return t.start.UserKey()
}

// EndKey returns the exclusive end user key.
func (t Tombstone) EndKey() []byte {
	return t.end.UserKey()
}

// Seq returns the tombstone's sequence number.
func (t Tombstone) Seq() dbformat.SequenceNumber {
	return t.seq
}

// Serialize returns the tombstone in its stored form: the start encoded as an
// internal key with TypeRangeDeletion, and the end user key as the value.
func (t Tombstone) Serialize() (dbformat.InternalKey, []byte) {
	return dbformat.NewInternalKey(t.StartKey(), t.seq, dbformat.TypeRangeDeletion), t.EndKey()
}

// SerializeEndKey returns the end boundary as an internal key carrying the
// tombstone's sequence number.
func (t Tombstone) SerializeEndKey() dbformat.InternalKey {
	return dbformat.NewInternalKey(t.EndKey(), t.seq, dbformat.TypeRangeDeletion)
}

// PartialTombstone is the result of a gap query: the interval of the
// transition map containing the queried key. Either boundary may be nil,
// meaning unbounded on that side within the queried stripe. Seq is 0 when
// the interval carries no effective tombstone for the query.
type PartialTombstone struct {
	start *dbformat.ParsedInternalKey
	end   *dbformat.ParsedInternalKey
	seq   dbformat.SequenceNumber
}

// NewPartialTombstone creates a partial tombstone. Used mostly by tests.
func NewPartialTombstone(start, end *dbformat.ParsedInternalKey, seq dbformat.SequenceNumber) PartialTombstone {
	return PartialTombstone{start: start, end: end, seq: seq}
}

// StartKey returns the start boundary, or nil if unbounded below.
func (p PartialTombstone) StartKey() *dbformat.ParsedInternalKey {
	return p.start
}

// EndKey returns the end boundary, or nil if unbounded above.
func (p PartialTombstone) EndKey() *dbformat.ParsedInternalKey {
	return p.end
}

// Seq returns the effective tombstone sequence, 0 if none.
func (p PartialTombstone) Seq() dbformat.SequenceNumber {
	return p.seq
}

// parseBound decodes a stored boundary key without validating its type;
// boundary keys legitimately carry TypeMax.
func parseBound(key dbformat.InternalKey) *dbformat.ParsedInternalKey {
	return &dbformat.ParsedInternalKey{
		UserKey:  dbformat.ExtractUserKey(key),
		Sequence: dbformat.ExtractSequenceNumber(key),
		Type:     dbformat.ExtractValueType(key),
	}
}

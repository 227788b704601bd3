// Package dbformat provides the internal key format consumed and produced by
// the range-deletion aggregator.
//
// An internal key is a user key followed by an 8-byte trailer:
// (sequence_number << 8) | value_type. Internal keys order by ascending user
// key, then descending sequence number, then descending type.
//
// Reference: RocksDB db/dbformat.h, db/dbformat.cc
package dbformat

import (
	"errors"
	"fmt"

	"github.com/aalhour/rangeyardkv/internal/encoding"
)

// SequenceNumber is a 56-bit sequence number (stored in the upper 56 bits of
// the 64-bit trailer). Sequence 0 is reserved as the "no tombstone" sentinel
// in the range-deletion maps; real tombstones carry a positive sequence.
type SequenceNumber uint64

// MaxSequenceNumber is the maximum valid sequence number (2^56 - 1). It marks
// data newer than any snapshot.
const MaxSequenceNumber SequenceNumber = (1 << 56) - 1

// NumInternalBytes is the size of the internal key trailer (sequence + type).
const NumInternalBytes = 8

// ValueType represents the type of a key-value record.
// These values are embedded in the on-disk format and MUST NOT change.
type ValueType uint8

const (
	TypeDeletion       ValueType = 0x00
	TypeValue          ValueType = 0x01
	TypeMerge          ValueType = 0x02
	TypeSingleDeletion ValueType = 0x07
	TypeRangeDeletion  ValueType = 0x0F // meta block

	// TypeMax is not used for storing records. Because types compare
	// descending at equal user key and sequence, a key tagged TypeMax sorts
	// before every real key with the same user key and sequence; the
	// collapsed tombstone map uses it for untruncated interval boundaries.
	TypeMax ValueType = 0x7F
)

var (
	// ErrKeyTooSmall is returned when an internal key is smaller than the trailer.
	ErrKeyTooSmall = errors.New("dbformat: internal key too small")

	// ErrInvalidValueType is returned when the value type is not recognized.
	ErrInvalidValueType = errors.New("dbformat: invalid value type")
)

// IsValueType returns true if t is a type used for point records.
func IsValueType(t ValueType) bool {
	return t <= TypeMerge || t == TypeSingleDeletion
}

// IsExtendedValueType includes types from user operations plus range deletion
// and the boundary marker.
func IsExtendedValueType(t ValueType) bool {
	return IsValueType(t) || t == TypeRangeDeletion || t == TypeMax
}

// PackSequenceAndType packs a sequence number and value type into a 64-bit
// trailer. The sequence occupies the upper 56 bits, the type the lower 8.
func PackSequenceAndType(seq SequenceNumber, t ValueType) uint64 {
	return (uint64(seq) << 8) | uint64(t)
}

// UnpackSequenceAndType extracts the sequence number and value type from a
// packed trailer.
func UnpackSequenceAndType(packed uint64) (SequenceNumber, ValueType) {
	return SequenceNumber(packed >> 8), ValueType(packed & 0xFF)
}

// ParsedInternalKey represents a decoded internal key. UserKey aliases the
// buffer it was parsed from.
type ParsedInternalKey struct {
	UserKey  []byte
	Sequence SequenceNumber
	Type     ValueType
}

// String returns a human-readable representation.
func (p *ParsedInternalKey) String() string {
	return fmt.Sprintf("'%s' @ %d : %d", p.UserKey, p.Sequence, p.Type)
}

// AppendInternalKey appends the serialization of key to dst.
func AppendInternalKey(dst []byte, key *ParsedInternalKey) []byte {
	dst = append(dst, key.UserKey...)
	return encoding.AppendFixed64(dst, PackSequenceAndType(key.Sequence, key.Type))
}

// ParseInternalKey parses an internal key from data.
// Returns an error if the key is corrupted.
func ParseInternalKey(data []byte) (*ParsedInternalKey, error) {
	n := len(data)
	if n < NumInternalBytes {
		return nil, ErrKeyTooSmall
	}

	packed := encoding.DecodeFixed64(data[n-NumInternalBytes:])
	seq, t := UnpackSequenceAndType(packed)

	result := &ParsedInternalKey{
		UserKey:  data[:n-NumInternalBytes],
		Sequence: seq,
		Type:     t,
	}

	if !IsExtendedValueType(t) {
		return result, ErrInvalidValueType
	}

	return result, nil
}

// ExtractUserKey returns the user key portion of an internal key.
// REQUIRES: len(internalKey) >= NumInternalBytes
func ExtractUserKey(internalKey []byte) []byte {
	if len(internalKey) < NumInternalBytes {
		return nil
	}
	return internalKey[:len(internalKey)-NumInternalBytes]
}

// ExtractSequenceNumber returns the sequence number from an internal key.
// REQUIRES: len(internalKey) >= NumInternalBytes
func ExtractSequenceNumber(internalKey []byte) SequenceNumber {
	if len(internalKey) < NumInternalBytes {
		return 0
	}
	packed := encoding.DecodeFixed64(internalKey[len(internalKey)-NumInternalBytes:])
	return SequenceNumber(packed >> 8)
}

// ExtractValueType returns the value type from an internal key.
// REQUIRES: len(internalKey) >= NumInternalBytes
func ExtractValueType(internalKey []byte) ValueType {
	if len(internalKey) < NumInternalBytes {
		return TypeMax
	}
	packed := encoding.DecodeFixed64(internalKey[len(internalKey)-NumInternalBytes:])
	return ValueType(packed & 0xFF)
}

// InternalKey is an encoded internal key stored as a byte slice.
type InternalKey []byte

// NewInternalKey creates a new internal key from user key, sequence, and type.
func NewInternalKey(userKey []byte, seq SequenceNumber, t ValueType) InternalKey {
	return AppendInternalKey(nil, &ParsedInternalKey{
		UserKey:  userKey,
		Sequence: seq,
		Type:     t,
	})
}

// UserKey returns the user key portion.
func (k InternalKey) UserKey() []byte {
	return ExtractUserKey(k)
}

// Sequence returns the sequence number.
func (k InternalKey) Sequence() SequenceNumber {
	return ExtractSequenceNumber(k)
}

// Type returns the value type.
func (k InternalKey) Type() ValueType {
	return ExtractValueType(k)
}

// =============================================================================
// Comparators
// =============================================================================

// UserKeyComparer compares two user keys.
// Returns negative if a < b, positive if a > b, zero if equal.
type UserKeyComparer func(a, b []byte) int

// BytewiseCompare is the default user key comparer (lexicographic ordering).
func BytewiseCompare(a, b []byte) int {
	minLen := min(len(a), len(b))
	for i := 0; i < minLen; i++ {
		if a[i] < b[i] {
			return -1
		}
		if a[i] > b[i] {
			return 1
		}
	}
	if len(a) < len(b) {
		return -1
	}
	if len(a) > len(b) {
		return 1
	}
	return 0
}

// ReverseBytewiseCompare orders user keys lexicographically descending.
func ReverseBytewiseCompare(a, b []byte) int {
	return -BytewiseCompare(a, b)
}

// InternalKeyComparator compares encoded internal keys.
//
// Comparison order:
//  1. User key (ascending, using the wrapped user comparator)
//  2. Trailer (descending - higher sequence, then higher type, comes first)
//
// Since sequence and type are packed as (seq << 8 | type), comparing the
// packed trailer in descending order handles both.
type InternalKeyComparator struct {
	userCompare UserKeyComparer
}

// NewInternalKeyComparator creates an InternalKeyComparator with the given
// user key comparison function. A nil function selects BytewiseCompare.
func NewInternalKeyComparator(userCompare UserKeyComparer) *InternalKeyComparator {
	if userCompare == nil {
		userCompare = BytewiseCompare
	}
	return &InternalKeyComparator{userCompare: userCompare}
}

// DefaultInternalKeyComparator uses bytewise user key ordering.
var DefaultInternalKeyComparator = NewInternalKeyComparator(BytewiseCompare)

// Compare compares two encoded internal keys.
func (c *InternalKeyComparator) Compare(a, b []byte) int {
	userKeyA := ExtractUserKey(a)
	userKeyB := ExtractUserKey(b)

	// Keys shorter than the trailer compare as bare user keys.
	if userKeyA == nil {
		userKeyA = a
	}
	if userKeyB == nil {
		userKeyB = b
	}

	cmp := c.userCompare(userKeyA, userKeyB)
	if cmp != 0 {
		return cmp
	}

	if len(a) >= NumInternalBytes && len(b) >= NumInternalBytes {
		trailerA := encoding.DecodeFixed64(a[len(a)-NumInternalBytes:])
		trailerB := encoding.DecodeFixed64(b[len(b)-NumInternalBytes:])
		if trailerA > trailerB {
			return -1
		}
		if trailerA < trailerB {
			return 1
		}
	}
	return 0
}

// CompareUserKey compares just the user key portion of two internal keys.
func (c *InternalKeyComparator) CompareUserKey(a, b []byte) int {
	userKeyA := ExtractUserKey(a)
	userKeyB := ExtractUserKey(b)
	if userKeyA == nil {
		userKeyA = a
	}
	if userKeyB == nil {
		userKeyB = b
	}
	return c.userCompare(userKeyA, userKeyB)
}

// UserCompare returns the user key comparison function.
func (c *InternalKeyComparator) UserCompare() UserKeyComparer {
	return c.userCompare
}

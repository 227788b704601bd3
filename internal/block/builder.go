// Package block implements the block format used for the range-deletion meta
// block: prefix-compressed key/value entries with periodic restart points.
//
// Reference: RocksDB table/block_based/block_builder.h,
// table/block_based/block_builder.cc
package block

import (
	"github.com/aalhour/rangeyardkv/internal/encoding"
)

// TrailerSize is the size of the per-block trailer appended by the table
// builder: 1-byte compression type plus a 4-byte checksum.
const TrailerSize = 5

// Builder generates blocks where keys are prefix-compressed.
//
// When we store a key, we drop the prefix shared with the previous key.
// Once every restartInterval keys the full key is stored instead; these
// positions are the restart points.
//
// Format (single entry):
//
//	shared_bytes:    varint32
//	unshared_bytes:  varint32
//	value_length:    varint32
//	key_delta:       char[unshared_bytes]
//	value:           char[value_length]
//
// Format (overall block):
//
//	[entry 1]
//	...
//	[entry N]
//	[restart point 1: uint32]
//	...
//	[restart point M: uint32]
//	[footer: uint32]  // number of restart points
type Builder struct {
	buffer          []byte   // serialized block data
	restarts        []uint32 // restart points (offsets into buffer)
	counter         int      // entries since last restart
	restartInterval int
	numEntries      int
	lastKey         []byte
	finished        bool
}

// DefaultRestartInterval is the restart interval used when none is given.
const DefaultRestartInterval = 16

// NewBuilder creates a new block builder. A restart point is created every
// restartInterval entries; values below 1 are clamped to 1.
func NewBuilder(restartInterval int) *Builder {
	if restartInterval < 1 {
		restartInterval = 1
	}
	return &Builder{
		buffer:          make([]byte, 0, 4096),
		restartInterval: restartInterval,
		restarts:        []uint32{0},
	}
}

// Reset resets the builder for reuse.
func (b *Builder) Reset() {
	b.buffer = b.buffer[:0]
	b.restarts = b.restarts[:1]
	b.restarts[0] = 0
	b.counter = 0
	b.numEntries = 0
	b.lastKey = b.lastKey[:0]
	b.finished = false
}

// Add adds a key-value pair to the block.
// REQUIRES: Finish() has not been called since the last Reset().
// REQUIRES: keys are added in ascending order.
func (b *Builder) Add(key, value []byte) {
	if b.finished {
		panic("block: Add called after Finish")
	}

	shared := 0
	if b.counter < b.restartInterval {
		// Count the shared prefix with the previous key.
		maxShared := min(len(b.lastKey), len(key))
		for shared < maxShared && b.lastKey[shared] == key[shared] {
			shared++
		}
	} else {
		// Restart point: store the full key.
		b.restarts = append(b.restarts, uint32(len(b.buffer)))
		b.counter = 0
	}

	b.buffer = encoding.AppendVarint32(b.buffer, uint32(shared))
	b.buffer = encoding.AppendVarint32(b.buffer, uint32(len(key)-shared))
	b.buffer = encoding.AppendVarint32(b.buffer, uint32(len(value)))
	b.buffer = append(b.buffer, key[shared:]...)
	b.buffer = append(b.buffer, value...)

	b.lastKey = append(b.lastKey[:0], key...)
	b.counter++
	b.numEntries++
}

// Finish appends the restart array and footer and returns the block contents.
// The returned slice is owned by the builder until Reset is called.
func (b *Builder) Finish() []byte {
	b.finished = true
	for _, r := range b.restarts {
		b.buffer = encoding.AppendFixed32(b.buffer, r)
	}
	b.buffer = encoding.AppendFixed32(b.buffer, uint32(len(b.restarts)))
	return b.buffer
}

// NumEntries returns the number of entries added.
func (b *Builder) NumEntries() int {
	return b.numEntries
}

// Empty returns true if no entries have been added.
func (b *Builder) Empty() bool {
	return b.numEntries == 0
}

// EstimatedSize returns the current size of the block being built, including
// the restart array and footer that Finish would append.
func (b *Builder) EstimatedSize() int {
	return len(b.buffer) + len(b.restarts)*4 + 4
}

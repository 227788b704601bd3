// Package table implements the writer for the range-deletion meta block.
//
// Range tombstones are stored as key-value pairs where:
//   - key: start_key encoded as an internal key with TypeRangeDeletion
//   - value: the exclusive end user key
//
// The block is written with the standard block trailer: a 1-byte compression
// type followed by a 4-byte checksum over the payload and the type byte.
//
// Reference: RocksDB table/block_based/block_based_table_builder.cc
// (WriteRawBlock, writeRangeDelBlock path)
package table

import (
	"errors"
	"fmt"
	"io"

	"github.com/aalhour/rangeyardkv/internal/block"
	"github.com/aalhour/rangeyardkv/internal/checksum"
	"github.com/aalhour/rangeyardkv/internal/compression"
	"github.com/aalhour/rangeyardkv/internal/dbformat"
	"github.com/aalhour/rangeyardkv/internal/encoding"
	"github.com/aalhour/rangeyardkv/internal/logging"
)

var (
	// ErrFinished is returned when Add is called after Finish.
	ErrFinished = errors.New("table: builder already finished")

	// ErrKeyOutOfOrder is returned when keys are added out of order.
	ErrKeyOutOfOrder = errors.New("table: keys must be added in ascending order")
)

// Options configures a Builder.
type Options struct {
	// Compression selects the block compression algorithm. The block is left
	// uncompressed when the compressed form is not smaller.
	Compression compression.Type

	// ChecksumType selects the trailer checksum algorithm.
	ChecksumType checksum.Type

	// RestartInterval is the block restart interval.
	RestartInterval int

	// Comparator orders the added keys. Defaults to the bytewise internal
	// key comparator.
	Comparator *dbformat.InternalKeyComparator

	// Logger receives build diagnostics. Defaults to logging.Discard.
	Logger logging.Logger
}

// DefaultOptions returns the default builder options.
func DefaultOptions() Options {
	return Options{
		Compression:     compression.SnappyCompression,
		ChecksumType:    checksum.TypeCRC32C,
		RestartInterval: block.DefaultRestartInterval,
		Comparator:      dbformat.DefaultInternalKeyComparator,
		Logger:          logging.Discard,
	}
}

// Builder accumulates range tombstone entries and writes them out as a
// single compressed, checksummed block.
type Builder struct {
	w    io.Writer
	opts Options

	blk     *block.Builder
	lastKey []byte
	offset  uint64

	numRangeDeletions uint64
	rawKeySize        uint64
	rawValueSize      uint64

	finished bool
	err      error
}

// NewBuilder creates a builder writing to w.
func NewBuilder(w io.Writer, opts Options) *Builder {
	if opts.Comparator == nil {
		opts.Comparator = dbformat.DefaultInternalKeyComparator
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard
	}
	if opts.RestartInterval < 1 {
		opts.RestartInterval = block.DefaultRestartInterval
	}
	return &Builder{
		w:    w,
		opts: opts,
		blk:  block.NewBuilder(opts.RestartInterval),
	}
}

// Add appends one tombstone entry. The key is the tombstone's serialized
// internal key, the value its exclusive end user key. Keys must arrive in
// ascending internal-key order.
func (b *Builder) Add(key, value []byte) error {
	if b.err != nil {
		return b.err
	}
	if b.finished {
		b.err = ErrFinished
		return b.err
	}
	if len(b.lastKey) > 0 && b.opts.Comparator.Compare(key, b.lastKey) < 0 {
		b.err = fmt.Errorf("%w: %q after %q", ErrKeyOutOfOrder, key, b.lastKey)
		return b.err
	}

	b.blk.Add(key, value)
	b.lastKey = append(b.lastKey[:0], key...)
	b.numRangeDeletions++
	b.rawKeySize += uint64(len(key))
	b.rawValueSize += uint64(len(value))
	return nil
}

// Finish compresses and writes the block followed by its trailer, returning
// the handle of the written block.
func (b *Builder) Finish() (block.Handle, error) {
	if b.err != nil {
		return block.Handle{}, b.err
	}
	if b.finished {
		return block.Handle{}, ErrFinished
	}
	b.finished = true

	contents := b.blk.Finish()

	payload := contents
	compressionType := compression.NoCompression
	if b.opts.Compression != compression.NoCompression {
		compressed, err := compression.Compress(b.opts.Compression, contents)
		// Only use compression if it actually reduces size.
		if err == nil && len(compressed) < len(contents) {
			payload = compressed
			compressionType = b.opts.Compression
		} else if err != nil {
			b.opts.Logger.Warnf("%s%s compression failed, storing raw: %v",
				logging.NSTable, b.opts.Compression, err)
		}
	}

	handle := block.Handle{Offset: b.offset, Size: uint64(len(payload))}

	n, err := b.w.Write(payload)
	if err != nil {
		b.err = err
		return block.Handle{}, err
	}
	b.offset += uint64(n)

	trailer := make([]byte, block.TrailerSize)
	trailer[0] = byte(compressionType)
	cksum := checksum.Compute(b.opts.ChecksumType, payload, trailer[0])
	encoding.EncodeFixed32(trailer[1:], cksum)

	n, err = b.w.Write(trailer)
	if err != nil {
		b.err = err
		return block.Handle{}, err
	}
	b.offset += uint64(n)

	b.opts.Logger.Debugf("%swrote range-del block: %d tombstones, %d -> %d bytes (%s)",
		logging.NSTable, b.numRangeDeletions, len(contents), len(payload), compressionType)
	return handle, nil
}

// NumRangeDeletions returns the number of tombstone entries added.
func (b *Builder) NumRangeDeletions() uint64 {
	return b.numRangeDeletions
}

// RawKeySize returns the total uncompressed key bytes added.
func (b *Builder) RawKeySize() uint64 {
	return b.rawKeySize
}

// RawValueSize returns the total uncompressed value bytes added.
func (b *Builder) RawValueSize() uint64 {
	return b.rawValueSize
}

// Empty returns true if no entries were added.
func (b *Builder) Empty() bool {
	return b.numRangeDeletions == 0
}

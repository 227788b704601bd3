// Package manifest holds the file metadata maintained while building
// compaction output files.
//
// Reference: RocksDB db/version_edit.h (FileMetaData)
package manifest

import (
	"errors"

	"github.com/aalhour/rangeyardkv/internal/dbformat"
	"github.com/aalhour/rangeyardkv/internal/encoding"
)

// ErrCorruptFileMetaData is returned when encoded metadata cannot be decoded.
var ErrCorruptFileMetaData = errors.New("manifest: corrupt file metadata")

// FileMetaData tracks the key and sequence boundaries of one output file.
// A zero Smallest/Largest means "not yet set". NewFileMetaData starts
// SmallestSeqno at MaxSequenceNumber so the first update always takes; the
// zero value starts it at 0.
type FileMetaData struct {
	// Smallest is the smallest internal key in the file.
	Smallest dbformat.InternalKey

	// Largest is the largest internal key in the file.
	Largest dbformat.InternalKey

	// SmallestSeqno is the smallest sequence number in the file.
	SmallestSeqno dbformat.SequenceNumber

	// LargestSeqno is the largest sequence number in the file.
	LargestSeqno dbformat.SequenceNumber
}

// NewFileMetaData returns metadata ready for boundary tracking.
func NewFileMetaData() *FileMetaData {
	return &FileMetaData{
		SmallestSeqno: dbformat.MaxSequenceNumber,
		LargestSeqno:  0,
	}
}

// UpdateSeqnos widens the sequence range to include seq.
func (f *FileMetaData) UpdateSeqnos(seq dbformat.SequenceNumber) {
	if seq < f.SmallestSeqno {
		f.SmallestSeqno = seq
	}
	if seq > f.LargestSeqno {
		f.LargestSeqno = seq
	}
}

// EncodeTo appends the serialized metadata to dst.
func (f *FileMetaData) EncodeTo(dst []byte) []byte {
	dst = encoding.AppendLengthPrefixedSlice(dst, f.Smallest)
	dst = encoding.AppendLengthPrefixedSlice(dst, f.Largest)
	dst = encoding.AppendVarint64(dst, uint64(f.SmallestSeqno))
	dst = encoding.AppendVarint64(dst, uint64(f.LargestSeqno))
	return dst
}

// DecodeFileMetaData decodes metadata from src, returning it and the number
// of bytes consumed. The boundary keys are copied out of src.
func DecodeFileMetaData(src []byte) (*FileMetaData, int, error) {
	f := &FileMetaData{}
	offset := 0

	smallest, n, err := encoding.DecodeLengthPrefixedSlice(src)
	if err != nil {
		return nil, 0, ErrCorruptFileMetaData
	}
	offset += n
	if len(smallest) > 0 {
		f.Smallest = append(dbformat.InternalKey(nil), smallest...)
	}

	largest, n, err := encoding.DecodeLengthPrefixedSlice(src[offset:])
	if err != nil {
		return nil, 0, ErrCorruptFileMetaData
	}
	offset += n
	if len(largest) > 0 {
		f.Largest = append(dbformat.InternalKey(nil), largest...)
	}

	smallestSeqno, n, err := encoding.DecodeVarint64(src[offset:])
	if err != nil {
		return nil, 0, ErrCorruptFileMetaData
	}
	offset += n
	f.SmallestSeqno = dbformat.SequenceNumber(smallestSeqno)

	largestSeqno, n, err := encoding.DecodeVarint64(src[offset:])
	if err != nil {
		return nil, 0, ErrCorruptFileMetaData
	}
	offset += n
	f.LargestSeqno = dbformat.SequenceNumber(largestSeqno)

	return f, offset, nil
}

// Package encoding provides the binary encoding/decoding primitives shared
// by the key format, block format, and file metadata codecs.
//
// All multi-byte integers are encoded in little-endian format.
// Variable-length integers (varints) use 7-bit encoding with MSB continuation.
//
// Reference: RocksDB util/coding.h, util/coding.cc
package encoding

import (
	"encoding/binary"
	"errors"
)

// MaxVarint32Length is the maximum number of bytes a varint32 can occupy.
const MaxVarint32Length = 5

// MaxVarint64Length is the maximum number of bytes a varint64 can occupy.
const MaxVarint64Length = 10

var (
	// ErrBufferTooSmall is returned when the buffer doesn't have enough space.
	ErrBufferTooSmall = errors.New("encoding: buffer too small")

	// ErrVarintTermination is returned when a varint doesn't terminate properly.
	ErrVarintTermination = errors.New("encoding: varint not terminated")
)

// -----------------------------------------------------------------------------
// Fixed-width encoding (little-endian)
// -----------------------------------------------------------------------------

// EncodeFixed32 encodes a uint32 into a 4-byte little-endian buffer.
// REQUIRES: dst has at least 4 bytes.
func EncodeFixed32(dst []byte, value uint32) {
	binary.LittleEndian.PutUint32(dst, value)
}

// DecodeFixed32 decodes a uint32 from a 4-byte little-endian buffer.
// REQUIRES: src has at least 4 bytes.
func DecodeFixed32(src []byte) uint32 {
	return binary.LittleEndian.Uint32(src)
}

// EncodeFixed64 encodes a uint64 into an 8-byte little-endian buffer.
// REQUIRES: dst has at least 8 bytes.
func EncodeFixed64(dst []byte, value uint64) {
	binary.LittleEndian.PutUint64(dst, value)
}

// DecodeFixed64 decodes a uint64 from an 8-byte little-endian buffer.
// REQUIRES: src has at least 8 bytes.
func DecodeFixed64(src []byte) uint64 {
	return binary.LittleEndian.Uint64(src)
}

// AppendFixed32 appends a little-endian uint32 to dst and returns the extended slice.
func AppendFixed32(dst []byte, value uint32) []byte {
	return binary.LittleEndian.AppendUint32(dst, value)
}

// AppendFixed64 appends a little-endian uint64 to dst and returns the extended slice.
func AppendFixed64(dst []byte, value uint64) []byte {
	return binary.LittleEndian.AppendUint64(dst, value)
}

// -----------------------------------------------------------------------------
// Variable-length encoding (7-bit with MSB continuation)
// -----------------------------------------------------------------------------

// AppendVarint32 appends a varint-encoded uint32 to dst and returns the extended slice.
func AppendVarint32(dst []byte, value uint32) []byte {
	const B = 128
	for value >= B {
		dst = append(dst, byte(value&(B-1))|B)
		value >>= 7
	}
	return append(dst, byte(value))
}

// DecodeVarint32 decodes a varint-encoded uint32 from src.
// Returns the value and the number of bytes read.
func DecodeVarint32(src []byte) (value uint32, bytesRead int, err error) {
	v, n, err := DecodeVarint64(src)
	if err != nil {
		return 0, 0, err
	}
	if v > 0xFFFFFFFF {
		return 0, 0, ErrVarintTermination
	}
	return uint32(v), n, nil
}

// AppendVarint64 appends a varint-encoded uint64 to dst and returns the extended slice.
func AppendVarint64(dst []byte, value uint64) []byte {
	const B = 128
	for value >= B {
		dst = append(dst, byte(value&(B-1))|B)
		value >>= 7
	}
	return append(dst, byte(value))
}

// DecodeVarint64 decodes a varint-encoded uint64 from src.
// Returns the value and the number of bytes read.
func DecodeVarint64(src []byte) (value uint64, bytesRead int, err error) {
	var shift uint
	for i := 0; i < len(src) && i < MaxVarint64Length; i++ {
		b := src[i]
		if b < 128 {
			return value | uint64(b)<<shift, i + 1, nil
		}
		value |= uint64(b&127) << shift
		shift += 7
	}
	return 0, 0, ErrVarintTermination
}

// AppendLengthPrefixedSlice appends a varint length prefix followed by the
// slice contents to dst and returns the extended slice.
func AppendLengthPrefixedSlice(dst []byte, value []byte) []byte {
	dst = AppendVarint64(dst, uint64(len(value)))
	return append(dst, value...)
}

// DecodeLengthPrefixedSlice decodes a length-prefixed slice from src.
// The returned slice aliases src. Returns the slice and the total number of
// bytes consumed (prefix plus contents).
func DecodeLengthPrefixedSlice(src []byte) (value []byte, bytesRead int, err error) {
	length, n, err := DecodeVarint64(src)
	if err != nil {
		return nil, 0, err
	}
	if uint64(len(src)-n) < length {
		return nil, 0, ErrBufferTooSmall
	}
	return src[n : n+int(length)], n + int(length), nil
}

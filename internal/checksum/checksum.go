// Package checksum provides block checksum functions.
//
// Block trailers carry a 4-byte checksum computed over the block payload plus
// the 1-byte compression type that follows it in the trailer. CRC32C values
// are masked the RocksDB way so that checksums of data containing embedded
// CRCs stay well distributed.
//
// Reference: RocksDB util/crc32c.h, util/xxhash.h,
// include/rocksdb/table.h (ChecksumType enum)
package checksum

import (
	"hash/crc32"

	"github.com/zeebo/xxh3"
)

// Type represents the type of checksum algorithm.
type Type uint8

const (
	// TypeNoChecksum means no checksum is used.
	TypeNoChecksum Type = 0
	// TypeCRC32C is CRC32C (Castagnoli) checksum.
	TypeCRC32C Type = 1
	// TypeXXH3 is the 64-bit XXH3 hash truncated to its low 32 bits.
	TypeXXH3 Type = 4
)

// String returns a human-readable name for the checksum type.
func (t Type) String() string {
	switch t {
	case TypeNoChecksum:
		return "NoChecksum"
	case TypeCRC32C:
		return "CRC32C"
	case TypeXXH3:
		return "XXH3"
	default:
		return "Unknown"
	}
}

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

const maskDelta = 0xa282ead8

// Mask returns a masked representation of crc.
func Mask(crc uint32) uint32 {
	// Rotate right by 15 bits and add a constant.
	return ((crc >> 15) | (crc << 17)) + maskDelta
}

// Unmask returns the crc whose masked representation is masked.
func Unmask(masked uint32) uint32 {
	rot := masked - maskDelta
	return (rot >> 17) | (rot << 15)
}

// CRC32C returns the CRC32C (Castagnoli) checksum of data, unmasked.
func CRC32C(data []byte) uint32 {
	return crc32.Checksum(data, castagnoli)
}

// CRC32CWithLastByte computes the masked CRC32C of data followed by lastByte.
// This is used for block checksums where the compression type byte is not
// part of the data buffer.
func CRC32CWithLastByte(data []byte, lastByte byte) uint32 {
	crc := crc32.Update(CRC32C(data), castagnoli, []byte{lastByte})
	return Mask(crc)
}

// XXH3WithLastByte computes the low 32 bits of the XXH3-64 hash of data
// followed by lastByte.
func XXH3WithLastByte(data []byte, lastByte byte) uint32 {
	h := xxh3.New()
	_, _ = h.Write(data)
	_, _ = h.Write([]byte{lastByte})
	return uint32(h.Sum64())
}

// Compute computes a checksum of the given type over data plus lastByte.
// Unsupported types produce 0.
func Compute(t Type, data []byte, lastByte byte) uint32 {
	switch t {
	case TypeCRC32C:
		return CRC32CWithLastByte(data, lastByte)
	case TypeXXH3:
		return XXH3WithLastByte(data, lastByte)
	default:
		return 0
	}
}

package block

import (
	"github.com/aalhour/rangeyardkv/internal/encoding"
)

// Handle identifies a block within a file by offset and size. The size does
// not include the block trailer.
type Handle struct {
	Offset uint64
	Size   uint64
}

// EncodeTo appends the varint encoding of the handle to dst.
func (h Handle) EncodeTo(dst []byte) []byte {
	dst = encoding.AppendVarint64(dst, h.Offset)
	return encoding.AppendVarint64(dst, h.Size)
}

// DecodeHandle decodes a handle from src, returning the handle and the number
// of bytes consumed.
func DecodeHandle(src []byte) (Handle, int, error) {
	offset, n, err := encoding.DecodeVarint64(src)
	if err != nil {
		return Handle{}, 0, err
	}
	size, m, err := encoding.DecodeVarint64(src[n:])
	if err != nil {
		return Handle{}, 0, err
	}
	return Handle{Offset: offset, Size: size}, n + m, nil
}

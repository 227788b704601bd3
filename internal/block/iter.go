package block

import (
	"errors"

	"github.com/aalhour/rangeyardkv/internal/encoding"
)

// ErrBlockCorruption is returned when block contents cannot be decoded.
var ErrBlockCorruption = errors.New("block: corrupted block contents")

// Iter walks the entries of a finished block in order. It decodes
// sequentially, reconstructing prefix-compressed keys as it goes.
type Iter struct {
	data        []byte // entry region (restart array stripped)
	offset      int
	key         []byte
	value       []byte
	numRestarts int
	err         error
	valid       bool
}

// NewIter creates an iterator over finished block contents. The iterator is
// positioned before the first entry; call Next to advance.
func NewIter(contents []byte) (*Iter, error) {
	if len(contents) < 4 {
		return nil, ErrBlockCorruption
	}
	numRestarts := int(encoding.DecodeFixed32(contents[len(contents)-4:]))
	restartStart := len(contents) - 4 - numRestarts*4
	if numRestarts < 1 || restartStart < 0 {
		return nil, ErrBlockCorruption
	}
	return &Iter{
		data:        contents[:restartStart],
		numRestarts: numRestarts,
	}, nil
}

// Valid returns true if the iterator is positioned at an entry.
func (it *Iter) Valid() bool {
	return it.valid && it.err == nil
}

// Next advances to the next entry. Returns false at the end of the block or
// on corruption.
func (it *Iter) Next() bool {
	if it.err != nil || it.offset >= len(it.data) {
		it.valid = false
		return false
	}

	shared, n, err := encoding.DecodeVarint32(it.data[it.offset:])
	if err != nil {
		it.fail()
		return false
	}
	it.offset += n
	unshared, n, err := encoding.DecodeVarint32(it.data[it.offset:])
	if err != nil {
		it.fail()
		return false
	}
	it.offset += n
	valueLen, n, err := encoding.DecodeVarint32(it.data[it.offset:])
	if err != nil {
		it.fail()
		return false
	}
	it.offset += n

	if int(shared) > len(it.key) || it.offset+int(unshared)+int(valueLen) > len(it.data) {
		it.fail()
		return false
	}

	it.key = append(it.key[:shared], it.data[it.offset:it.offset+int(unshared)]...)
	it.offset += int(unshared)
	it.value = it.data[it.offset : it.offset+int(valueLen)]
	it.offset += int(valueLen)
	it.valid = true
	return true
}

// Key returns the current key. Valid until the next call to Next.
func (it *Iter) Key() []byte {
	return it.key
}

// Value returns the current value. It aliases the block contents.
func (it *Iter) Value() []byte {
	return it.value
}

// Error returns the first corruption encountered, if any.
func (it *Iter) Error() error {
	return it.err
}

func (it *Iter) fail() {
	it.err = ErrBlockCorruption
	it.valid = false
}

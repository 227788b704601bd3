// Package testutil provides test helpers shared across packages.
package testutil

import (
	"sort"
)

// VectorIterator iterates over parallel key/value slices in their stored
// order. The slices must already be sorted by the comparator the consumer
// uses. It mirrors the in-memory iterators used by engine tests.
type VectorIterator struct {
	keys   [][]byte
	values [][]byte
	cmp    func(a, b []byte) int
	pos    int
}

// NewVectorIterator creates an iterator over keys and values. cmp is used
// only by Seek; pass nil if Seek is not needed.
func NewVectorIterator(keys, values [][]byte, cmp func(a, b []byte) int) *VectorIterator {
	if len(keys) != len(values) {
		panic("testutil: keys and values length mismatch")
	}
	return &VectorIterator{keys: keys, values: values, cmp: cmp, pos: len(keys)}
}

// Valid returns true if positioned at an entry.
func (it *VectorIterator) Valid() bool {
	return it.pos >= 0 && it.pos < len(it.keys)
}

// SeekToFirst positions at the first entry.
func (it *VectorIterator) SeekToFirst() {
	it.pos = 0
}

// Seek positions at the first entry with key >= target.
func (it *VectorIterator) Seek(target []byte) {
	it.pos = sort.Search(len(it.keys), func(i int) bool {
		return it.cmp(it.keys[i], target) >= 0
	})
}

// Next advances to the next entry.
func (it *VectorIterator) Next() {
	it.pos++
}

// Key returns the current key.
func (it *VectorIterator) Key() []byte {
	return it.keys[it.pos]
}

// Value returns the current value.
func (it *VectorIterator) Value() []byte {
	return it.values[it.pos]
}

// Error always returns nil.
func (it *VectorIterator) Error() error {
	return nil
}

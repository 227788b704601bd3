package iterator

import (
	"bytes"
	"testing"

	"github.com/aalhour/rangeyardkv/internal/testutil"
)

func sliceIter(pairs ...string) Iterator {
	var keys, values [][]byte
	for i := 0; i+1 < len(pairs); i += 2 {
		keys = append(keys, []byte(pairs[i]))
		values = append(values, []byte(pairs[i+1]))
	}
	return testutil.NewVectorIterator(keys, values, bytes.Compare)
}

func drain(it Iterator) []string {
	var out []string
	for it.SeekToFirst(); it.Valid(); it.Next() {
		out = append(out, string(it.Key())+"="+string(it.Value()))
	}
	return out
}

func TestMergingIteratorInterleaves(t *testing.T) {
	mi := NewMergingIterator([]Iterator{
		sliceIter("a", "1", "d", "4", "g", "7"),
		sliceIter("b", "2", "e", "5"),
		sliceIter("c", "3", "f", "6"),
	}, bytes.Compare)

	got := drain(mi)
	want := []string{"a=1", "b=2", "c=3", "d=4", "e=5", "f=6", "g=7"}
	if len(got) != len(want) {
		t.Fatalf("drained %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d = %q, want %q", i, got[i], want[i])
		}
	}
	if mi.Error() != nil {
		t.Errorf("Error = %v", mi.Error())
	}
}

func TestMergingIteratorSeek(t *testing.T) {
	mi := NewMergingIterator([]Iterator{
		sliceIter("a", "1", "m", "2"),
		sliceIter("c", "3", "z", "4"),
	}, bytes.Compare)

	mi.Seek([]byte("b"))
	if !mi.Valid() || string(mi.Key()) != "c" {
		t.Fatalf("Seek(b) positioned at %q", mi.Key())
	}
	mi.Next()
	if !mi.Valid() || string(mi.Key()) != "m" {
		t.Fatalf("Next after seek positioned at %q", mi.Key())
	}

	mi.Seek([]byte("zz"))
	if mi.Valid() {
		t.Error("Seek past the end should leave the iterator invalid")
	}
}

func TestMergingIteratorEmptyChildren(t *testing.T) {
	mi := NewMergingIterator([]Iterator{sliceIter(), sliceIter()}, bytes.Compare)
	mi.SeekToFirst()
	if mi.Valid() {
		t.Error("merging over empty children should be invalid")
	}
}

package rangedel

import (
	"testing"

	"github.com/aalhour/rangeyardkv/internal/dbformat"
)

func parsedKey(userKey string, seq dbformat.SequenceNumber) *dbformat.ParsedInternalKey {
	return &dbformat.ParsedInternalKey{
		UserKey:  []byte(userKey),
		Sequence: seq,
		Type:     dbformat.TypeValue,
	}
}

func TestUncollapsedMapShouldDelete(t *testing.T) {
	m := NewUncollapsedMap(dbformat.DefaultInternalKeyComparator)
	m.Add(NewTombstone([]byte("b"), []byte("e"), 100))
	m.Add(NewTombstone([]byte("d"), []byte("g"), 50))

	cases := []struct {
		key  string
		seq  dbformat.SequenceNumber
		want bool
	}{
		{"a", 10, false},  // before any range
		{"b", 99, true},   // inside [b, e) below seq
		{"b", 100, false}, // at the tombstone's own seq
		{"d", 75, true},   // covered by [b, e) only
		{"e", 75, false},  // past [b, e), above [d, g)
		{"e", 49, true},   // inside [d, g) below seq
		{"g", 10, false},  // exclusive end
	}
	for _, tc := range cases {
		if got := m.ShouldDelete(parsedKey(tc.key, tc.seq), ModeFullScan); got != tc.want {
			t.Errorf("ShouldDelete(%q, %d) = %v, want %v", tc.key, tc.seq, got, tc.want)
		}
	}
}

func TestUncollapsedMapStableOrderOnEqualStarts(t *testing.T) {
	m := NewUncollapsedMap(dbformat.DefaultInternalKeyComparator)
	m.Add(NewTombstone([]byte("a"), []byte("x"), 1))
	m.Add(NewTombstone([]byte("a"), []byte("y"), 2))
	m.Add(NewTombstone([]byte("a"), []byte("z"), 3))

	var ends []string
	for it := m.NewIterator(); it.Valid(); it.Next() {
		ends = append(ends, string(it.Tombstone().EndKey()))
	}
	want := []string{"x", "y", "z"}
	if len(ends) != len(want) {
		t.Fatalf("iterated %v", ends)
	}
	for i := range want {
		if ends[i] != want[i] {
			t.Errorf("equal-start tombstones should keep arrival order: %v", ends)
		}
	}
}

func TestUncollapsedMapIsRangeOverlapped(t *testing.T) {
	m := NewUncollapsedMap(dbformat.DefaultInternalKeyComparator)
	m.Add(NewTombstone([]byte("c"), []byte("f"), 10))
	m.Add(NewTombstone([]byte("x"), []byte("x"), 10)) // empty, never overlaps

	cases := []struct {
		start, end string
		want       bool
	}{
		{"a", "b", false}, // entirely before
		{"a", "c", true},  // inclusive end of query touches start
		{"d", "e", true},  // inside
		{"e", "z", true},  // overlaps tail
		{"f", "g", false}, // tombstone end is exclusive
		{"w", "z", false}, // only the empty tombstone is nearby
	}
	for _, tc := range cases {
		if got := m.IsRangeOverlapped([]byte(tc.start), []byte(tc.end)); got != tc.want {
			t.Errorf("IsRangeOverlapped(%q, %q) = %v, want %v", tc.start, tc.end, got, tc.want)
		}
	}
}

func TestUncollapsedMapSizeAndEmpty(t *testing.T) {
	m := NewUncollapsedMap(dbformat.DefaultInternalKeyComparator)
	if !m.IsEmpty() || m.Size() != 0 {
		t.Error("new map should be empty")
	}
	m.Add(NewTombstone([]byte("a"), []byte("b"), 1))
	m.Add(NewTombstone([]byte("a"), []byte("b"), 1)) // duplicates allowed
	if m.IsEmpty() || m.Size() != 2 {
		t.Errorf("Size = %d, want 2", m.Size())
	}
	m.InvalidatePosition() // no-op
}

func TestUncollapsedIteratorSeekPanics(t *testing.T) {
	m := NewUncollapsedMap(dbformat.DefaultInternalKeyComparator)
	m.Add(NewTombstone([]byte("a"), []byte("b"), 1))
	it := m.NewIterator()
	defer func() {
		if recover() == nil {
			t.Error("Seek on an uncollapsed iterator should panic")
		}
	}()
	it.Seek([]byte("a"))
}

func TestUncollapsedMapRangeQueriesPanic(t *testing.T) {
	m := NewUncollapsedMap(dbformat.DefaultInternalKeyComparator)

	func() {
		defer func() {
			if recover() == nil {
				t.Error("ShouldDeleteRange on an uncollapsed map should panic")
			}
		}()
		m.ShouldDeleteRange([]byte("a"), []byte("b"), 1)
	}()

	func() {
		defer func() {
			if recover() == nil {
				t.Error("GetTombstone on an uncollapsed map should panic")
			}
		}()
		m.GetTombstone([]byte("a"), 1)
	}()
}

package rangedel

import (
	"bytes"
	"testing"

	"github.com/aalhour/rangeyardkv/internal/block"
	"github.com/aalhour/rangeyardkv/internal/compaction"
	"github.com/aalhour/rangeyardkv/internal/compression"
	"github.com/aalhour/rangeyardkv/internal/dbformat"
	"github.com/aalhour/rangeyardkv/internal/manifest"
	"github.com/aalhour/rangeyardkv/internal/table"
)

// recordingBuilder captures AddToBuilder output for inspection.
type recordingBuilder struct {
	keys   []dbformat.InternalKey
	values [][]byte
}

func (b *recordingBuilder) Add(key, value []byte) error {
	b.keys = append(b.keys, append(dbformat.InternalKey(nil), key...))
	b.values = append(b.values, append([]byte(nil), value...))
	return nil
}

func (b *recordingBuilder) entries() []tspec {
	var out []tspec
	for i, k := range b.keys {
		out = append(out, tspec{string(k.UserKey()), string(b.values[i]), k.Sequence()})
	}
	return out
}

func buildAggregator(t *testing.T, snapshots []dbformat.SequenceNumber, specs ...tspec) *Aggregator {
	t.Helper()
	agg := NewAggregator(bytewiseICmp, snapshots, true)
	addTombstones(t, agg, bytewiseICmp, addArgs{tombstones: specs})
	return agg
}

func TestAddToBuilderBasic(t *testing.T) {
	agg := buildAggregator(t, []dbformat.SequenceNumber{10},
		tspec{"a", "c", 5}, tspec{"b", "d", 20}, tspec{"e", "g", 25})

	var rec recordingBuilder
	meta := manifest.NewFileMetaData()
	var stats compaction.IterationStats

	err := agg.AddToBuilder(&rec, []byte("b"), []byte("f"), meta, &stats, false)
	if err != nil {
		t.Fatalf("AddToBuilder: %v", err)
	}

	verifyTombstones(t, rec.entries(), []tspec{
		{"a", "c", 5}, // oldest stripe
		{"b", "d", 20},
		{"e", "g", 25},
	})

	// The first emitted tombstone starts at or before the lower bound, so
	// the file's smallest key is faked at the bound with seqno 0.
	wantSmallest := dbformat.NewInternalKey([]byte("b"), 0, dbformat.TypeRangeDeletion)
	if !bytes.Equal(meta.Smallest, wantSmallest) {
		t.Errorf("Smallest = %v, want %v", meta.Smallest, wantSmallest)
	}
	// The last tombstone reaches past the upper bound, so the largest key is
	// faked at the bound with the max seqno.
	wantLargest := dbformat.NewInternalKey([]byte("f"), dbformat.MaxSequenceNumber, dbformat.TypeRangeDeletion)
	if !bytes.Equal(meta.Largest, wantLargest) {
		t.Errorf("Largest = %v, want %v", meta.Largest, wantLargest)
	}
	if meta.SmallestSeqno != 5 || meta.LargestSeqno != 25 {
		t.Errorf("seqnos = (%d, %d), want (5, 25)", meta.SmallestSeqno, meta.LargestSeqno)
	}
	if stats.NumRangeDelDropObsolete != 0 {
		t.Errorf("no drops expected, got %d", stats.NumRangeDelDropObsolete)
	}
}

func TestAddToBuilderBoundsFilter(t *testing.T) {
	agg := buildAggregator(t, nil,
		tspec{"a", "b", 5}, tspec{"c", "d", 10}, tspec{"x", "z", 15})

	var rec recordingBuilder
	meta := manifest.NewFileMetaData()
	err := agg.AddToBuilder(&rec, []byte("b"), []byte("e"), meta, nil, false)
	if err != nil {
		t.Fatalf("AddToBuilder: %v", err)
	}

	// [a, b) ends at the lower bound (exclusive overlap) and is skipped;
	// [x, z) starts past the upper bound and breaks the scan.
	verifyTombstones(t, rec.entries(), []tspec{{"c", "d", 10}})

	wantSmallest := dbformat.NewInternalKey([]byte("c"), 10, dbformat.TypeRangeDeletion)
	if !bytes.Equal(meta.Smallest, wantSmallest) {
		t.Errorf("Smallest = %v, want %v", meta.Smallest, wantSmallest)
	}
	wantLargest := dbformat.NewInternalKey([]byte("d"), 10, dbformat.TypeRangeDeletion)
	if !bytes.Equal(meta.Largest, wantLargest) {
		t.Errorf("Largest = %v, want %v", meta.Largest, wantLargest)
	}
}

func TestAddToBuilderBottommostDropsOldestStripe(t *testing.T) {
	agg := buildAggregator(t, []dbformat.SequenceNumber{10},
		tspec{"a", "c", 5}, tspec{"b", "d", 20})

	var rec recordingBuilder
	meta := manifest.NewFileMetaData()
	var stats compaction.IterationStats

	err := agg.AddToBuilder(&rec, nil, nil, meta, &stats, true)
	if err != nil {
		t.Fatalf("AddToBuilder: %v", err)
	}

	verifyTombstones(t, rec.entries(), []tspec{{"b", "d", 20}})
	if stats.NumRangeDelDropObsolete != 1 || stats.NumRecordDropObsolete != 1 {
		t.Errorf("drop stats = (%d, %d), want (1, 1)",
			stats.NumRangeDelDropObsolete, stats.NumRecordDropObsolete)
	}
	if meta.SmallestSeqno != 20 || meta.LargestSeqno != 20 {
		t.Errorf("seqnos = (%d, %d), want (20, 20)", meta.SmallestSeqno, meta.LargestSeqno)
	}
}

func TestAddToBuilderEmptyAggregator(t *testing.T) {
	agg := NewReadAggregator(bytewiseICmp, dbformat.MaxSequenceNumber, false)
	var rec recordingBuilder
	meta := manifest.NewFileMetaData()
	if err := agg.AddToBuilder(&rec, nil, nil, meta, nil, false); err != nil {
		t.Fatalf("AddToBuilder: %v", err)
	}
	if len(rec.keys) != 0 {
		t.Error("nothing should be emitted")
	}
	if len(meta.Smallest) != 0 || len(meta.Largest) != 0 {
		t.Error("metadata should be untouched")
	}
}

// End-to-end: aggregator emission through the real table builder and back
// out of the block.
func TestAddToBuilderTableRoundTrip(t *testing.T) {
	agg := buildAggregator(t, nil,
		tspec{"b", "n", 1}, tspec{"e", "h", 2}, tspec{"q", "t", 2}, tspec{"g", "k", 3})

	var buf bytes.Buffer
	opts := table.DefaultOptions()
	opts.Compression = compression.SnappyCompression
	tb := table.NewBuilder(&buf, opts)

	meta := manifest.NewFileMetaData()
	if err := agg.AddToBuilder(tb, nil, nil, meta, nil, false); err != nil {
		t.Fatalf("AddToBuilder: %v", err)
	}
	handle, err := tb.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if tb.NumRangeDeletions() != 5 {
		t.Errorf("NumRangeDeletions = %d, want 5", tb.NumRangeDeletions())
	}

	out := buf.Bytes()
	payload := out[:handle.Size]
	ct := compression.Type(out[handle.Size])
	raw, err := compression.Decompress(ct, payload)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	it, err := block.NewIter(raw)
	if err != nil {
		t.Fatalf("NewIter: %v", err)
	}

	var got []tspec
	for it.Next() {
		k := dbformat.InternalKey(it.Key())
		got = append(got, tspec{string(k.UserKey()), string(it.Value()), k.Sequence()})
	}
	verifyTombstones(t, got, []tspec{
		{"b", "e", 1}, {"e", "g", 2}, {"g", "k", 3}, {"k", "n", 1}, {"q", "t", 2},
	})
}

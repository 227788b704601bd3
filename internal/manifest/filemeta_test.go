package manifest

import (
	"bytes"
	"testing"

	"github.com/aalhour/rangeyardkv/internal/dbformat"
)

func TestNewFileMetaDataSeqnoDefaults(t *testing.T) {
	f := NewFileMetaData()
	if f.SmallestSeqno != dbformat.MaxSequenceNumber || f.LargestSeqno != 0 {
		t.Errorf("defaults = (%d, %d)", f.SmallestSeqno, f.LargestSeqno)
	}

	f.UpdateSeqnos(42)
	if f.SmallestSeqno != 42 || f.LargestSeqno != 42 {
		t.Errorf("after first update: (%d, %d)", f.SmallestSeqno, f.LargestSeqno)
	}
	f.UpdateSeqnos(7)
	f.UpdateSeqnos(100)
	if f.SmallestSeqno != 7 || f.LargestSeqno != 100 {
		t.Errorf("after widening: (%d, %d)", f.SmallestSeqno, f.LargestSeqno)
	}
}

func TestFileMetaDataEncodeDecode(t *testing.T) {
	f := &FileMetaData{
		Smallest:      dbformat.NewInternalKey([]byte("a"), 0, dbformat.TypeRangeDeletion),
		Largest:       dbformat.NewInternalKey([]byte("z"), dbformat.MaxSequenceNumber, dbformat.TypeRangeDeletion),
		SmallestSeqno: 3,
		LargestSeqno:  99,
	}
	enc := f.EncodeTo(nil)
	got, n, err := DecodeFileMetaData(enc)
	if err != nil {
		t.Fatalf("DecodeFileMetaData: %v", err)
	}
	if n != len(enc) {
		t.Errorf("consumed %d of %d bytes", n, len(enc))
	}
	if !bytes.Equal(got.Smallest, f.Smallest) || !bytes.Equal(got.Largest, f.Largest) {
		t.Error("boundary keys did not round trip")
	}
	if got.SmallestSeqno != 3 || got.LargestSeqno != 99 {
		t.Errorf("seqnos = (%d, %d)", got.SmallestSeqno, got.LargestSeqno)
	}
}

func TestFileMetaDataDecodeCorrupt(t *testing.T) {
	f := &FileMetaData{Smallest: dbformat.NewInternalKey([]byte("a"), 1, dbformat.TypeValue)}
	enc := f.EncodeTo(nil)
	if _, _, err := DecodeFileMetaData(enc[:3]); err == nil {
		t.Error("decoding truncated metadata should fail")
	}
}

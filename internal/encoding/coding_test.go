package encoding

import (
	"bytes"
	"testing"
)

func TestFixedRoundTrip(t *testing.T) {
	buf := make([]byte, 8)
	for _, v := range []uint32{0, 1, 0xDEAD, 0xFFFFFFFF} {
		EncodeFixed32(buf, v)
		if got := DecodeFixed32(buf); got != v {
			t.Errorf("DecodeFixed32 = %d, want %d", got, v)
		}
	}
	for _, v := range []uint64{0, 1, 1 << 40, ^uint64(0)} {
		EncodeFixed64(buf, v)
		if got := DecodeFixed64(buf); got != v {
			t.Errorf("DecodeFixed64 = %d, want %d", got, v)
		}
	}
}

func TestAppendFixedMatchesEncode(t *testing.T) {
	buf := make([]byte, 8)
	EncodeFixed64(buf, 0x0102030405060708)
	if got := AppendFixed64(nil, 0x0102030405060708); !bytes.Equal(got, buf) {
		t.Errorf("AppendFixed64 = %x, want %x", got, buf)
	}
}

func TestVarint64RoundTrip(t *testing.T) {
	cases := []uint64{0, 1, 127, 128, 300, 1 << 21, 1 << 42, ^uint64(0)}
	for _, v := range cases {
		enc := AppendVarint64(nil, v)
		got, n, err := DecodeVarint64(enc)
		if err != nil {
			t.Fatalf("DecodeVarint64(%d): %v", v, err)
		}
		if got != v || n != len(enc) {
			t.Errorf("DecodeVarint64 = (%d, %d), want (%d, %d)", got, n, v, len(enc))
		}
	}
}

func TestVarintTruncated(t *testing.T) {
	enc := AppendVarint64(nil, 1<<42)
	if _, _, err := DecodeVarint64(enc[:2]); err == nil {
		t.Error("DecodeVarint64 on truncated input should fail")
	}
}

func TestVarint32Overflow(t *testing.T) {
	enc := AppendVarint64(nil, 1<<40)
	if _, _, err := DecodeVarint32(enc); err == nil {
		t.Error("DecodeVarint32 should reject values above 32 bits")
	}
}

func TestLengthPrefixedSlice(t *testing.T) {
	payload := []byte("range tombstone end key")
	enc := AppendLengthPrefixedSlice(nil, payload)
	enc = AppendLengthPrefixedSlice(enc, nil)

	got, n, err := DecodeLengthPrefixedSlice(enc)
	if err != nil {
		t.Fatalf("DecodeLengthPrefixedSlice: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("decoded %q, want %q", got, payload)
	}
	empty, m, err := DecodeLengthPrefixedSlice(enc[n:])
	if err != nil {
		t.Fatalf("DecodeLengthPrefixedSlice (empty): %v", err)
	}
	if len(empty) != 0 || m != 1 {
		t.Errorf("empty slice decoded as (%q, %d)", empty, m)
	}

	if _, _, err := DecodeLengthPrefixedSlice(enc[:1]); err == nil {
		t.Error("decoding a truncated prefix should fail")
	}
}

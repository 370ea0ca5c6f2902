package rw

import (
	"bytes"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	w := NewWriter()
	w.WriteUInt8(0xab)
	w.WriteUInt16(0xbeef)
	w.WriteInt32(-12345)
	w.WriteUInt32(0xdeadbeef)
	w.WriteFloat32(3.25)
	w.WriteBytes([]byte{1, 2, 3})
	if err := w.Err(); err != nil {
		t.Fatalf("write: %v", err)
	}

	r := NewReader(w.Bytes())
	if got := r.ReadUInt8(); got != 0xab {
		t.Fatalf("uint8 = %#x", got)
	}
	if got := r.ReadUInt16(); got != 0xbeef {
		t.Fatalf("uint16 = %#x", got)
	}
	if got := r.ReadInt32(); got != -12345 {
		t.Fatalf("int32 = %d", got)
	}
	if got := r.ReadUInt32(); got != 0xdeadbeef {
		t.Fatalf("uint32 = %#x", got)
	}
	if got := r.ReadFloat32(); got != 3.25 {
		t.Fatalf("float32 = %v", got)
	}
	if got := r.ReadBytes(3); !bytes.Equal(got, []byte{1, 2, 3}) {
		t.Fatalf("bytes = %v", got)
	}
	if err := r.Err(); err != nil {
		t.Fatalf("read: %v", err)
	}
	if r.Len() != 0 {
		t.Fatalf("trailing bytes: %d", r.Len())
	}
}

func TestLittleEndianLayout(t *testing.T) {
	w := NewWriter()
	w.WriteUInt32(0x01020304)
	if got := w.Bytes(); !bytes.Equal(got, []byte{4, 3, 2, 1}) {
		t.Fatalf("layout = %v", got)
	}
}

func TestShortReadSticks(t *testing.T) {
	r := NewReader([]byte{1, 2})
	_ = r.ReadUInt32()
	if r.Err() == nil {
		t.Fatal("short read not reported")
	}
	first := r.Err()

	// Every later read is a no-op returning zero values.
	if got := r.ReadUInt8(); got != 0 {
		t.Fatalf("read after error = %d", got)
	}
	if r.Err() != first {
		t.Fatalf("error replaced: %v", r.Err())
	}
}

func TestReadBytesBounds(t *testing.T) {
	r := NewReader([]byte{1, 2, 3})
	if got := r.ReadBytes(10); got != nil {
		t.Fatalf("oversized read returned %v", got)
	}
	if r.Err() == nil {
		t.Fatal("oversized read not reported")
	}
}

// Package rw implements the little-endian binary codec used for navmesh
// persistence. Errors stick: after the first failure every further call is
// a no-op and Err reports the original cause, so callers check once at the
// end instead of after every field.
package rw

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

type ReaderWriter struct {
	buf *bytes.Buffer
	err error
}

func NewWriter() *ReaderWriter {
	return &ReaderWriter{buf: &bytes.Buffer{}}
}

func NewReader(data []byte) *ReaderWriter {
	return &ReaderWriter{buf: bytes.NewBuffer(data)}
}

func (rw *ReaderWriter) Err() error { return rw.err }

// Bytes returns the accumulated output of a writer.
func (rw *ReaderWriter) Bytes() []byte { return rw.buf.Bytes() }

// Len reports the unread byte count of a reader.
func (rw *ReaderWriter) Len() int { return rw.buf.Len() }

func (rw *ReaderWriter) write(b []byte) {
	if rw.err != nil {
		return
	}
	_, rw.err = rw.buf.Write(b)
}

func (rw *ReaderWriter) read(b []byte) bool {
	if rw.err != nil {
		return false
	}
	n, err := rw.buf.Read(b)
	if err != nil || n != len(b) {
		rw.err = fmt.Errorf("rw: short read, want %d bytes", len(b))
		return false
	}
	return true
}

func (rw *ReaderWriter) WriteUInt8(v uint8) {
	rw.write([]byte{v})
}

func (rw *ReaderWriter) WriteUInt16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	rw.write(b[:])
}

func (rw *ReaderWriter) WriteInt32(v int32) {
	rw.WriteUInt32(uint32(v))
}

func (rw *ReaderWriter) WriteUInt32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	rw.write(b[:])
}

func (rw *ReaderWriter) WriteFloat32(v float32) {
	rw.WriteUInt32(math.Float32bits(v))
}

func (rw *ReaderWriter) WriteBytes(v []byte) {
	rw.write(v)
}

func (rw *ReaderWriter) ReadUInt8() uint8 {
	var b [1]byte
	if !rw.read(b[:]) {
		return 0
	}
	return b[0]
}

func (rw *ReaderWriter) ReadUInt16() uint16 {
	var b [2]byte
	if !rw.read(b[:]) {
		return 0
	}
	return binary.LittleEndian.Uint16(b[:])
}

func (rw *ReaderWriter) ReadInt32() int32 {
	return int32(rw.ReadUInt32())
}

func (rw *ReaderWriter) ReadUInt32() uint32 {
	var b [4]byte
	if !rw.read(b[:]) {
		return 0
	}
	return binary.LittleEndian.Uint32(b[:])
}

func (rw *ReaderWriter) ReadFloat32() float32 {
	return math.Float32frombits(rw.ReadUInt32())
}

func (rw *ReaderWriter) ReadBytes(n int) []byte {
	if n < 0 || n > rw.buf.Len() {
		if rw.err == nil {
			rw.err = fmt.Errorf("rw: short read, want %d bytes", n)
		}
		return nil
	}
	b := make([]byte, n)
	if !rw.read(b) {
		return nil
	}
	return b
}

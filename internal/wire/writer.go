package wire

import (
	"encoding/binary"
	"math"
)

// Writer accumulates an outgoing packet.
type Writer struct {
	buf []byte
}

// NewWriter returns a Writer with capacity preallocated for n bytes.
func NewWriter(n int) *Writer {
	return &Writer{buf: make([]byte, 0, n)}
}

// Bytes returns the written bytes.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Len returns the number of written bytes.
func (w *Writer) Len() int {
	return len(w.buf)
}

// Raw appends b unchanged.
func (w *Writer) Raw(b []byte) *Writer {
	w.buf = append(w.buf, b...)
	return w
}

// Uint8 appends a single byte.
func (w *Writer) Uint8(v uint8) *Writer {
	w.buf = append(w.buf, v)
	return w
}

// Uint16LE appends a little-endian uint16.
func (w *Writer) Uint16LE(v uint16) *Writer {
	w.buf = binary.LittleEndian.AppendUint16(w.buf, v)
	return w
}

// Uint16BE appends a big-endian uint16.
func (w *Writer) Uint16BE(v uint16) *Writer {
	w.buf = binary.BigEndian.AppendUint16(w.buf, v)
	return w
}

// Uint32LE appends a little-endian uint32.
func (w *Writer) Uint32LE(v uint32) *Writer {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
	return w
}

// Uint32BE appends a big-endian uint32.
func (w *Writer) Uint32BE(v uint32) *Writer {
	w.buf = binary.BigEndian.AppendUint32(w.buf, v)
	return w
}

// Uint64LE appends a little-endian uint64.
func (w *Writer) Uint64LE(v uint64) *Writer {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, v)
	return w
}

// Uint64BE appends a big-endian uint64.
func (w *Writer) Uint64BE(v uint64) *Writer {
	w.buf = binary.BigEndian.AppendUint64(w.buf, v)
	return w
}

// Float32LE appends a little-endian IEEE 754 float32.
func (w *Writer) Float32LE(v float32) *Writer {
	return w.Uint32LE(math.Float32bits(v))
}

// CString appends s followed by a NUL terminator.
func (w *Writer) CString(s string) *Writer {
	w.buf = append(w.buf, s...)
	w.buf = append(w.buf, 0x00)
	return w
}

// VarInt appends v as a varint. Negative values are written as their
// 32-bit two's complement, which always takes five bytes.
func (w *Writer) VarInt(v int) *Writer {
	w.buf = AppendVarInt(w.buf, v)
	return w
}

// String appends s prefixed with its varint byte length.
func (w *Writer) String(s string) *Writer {
	w.buf = AppendVarInt(w.buf, len(s))
	w.buf = append(w.buf, s...)
	return w
}

// LengthPrefixed appends payload prefixed with its varint byte length.
func (w *Writer) LengthPrefixed(payload []byte) *Writer {
	w.buf = AppendVarInt(w.buf, len(payload))
	w.buf = append(w.buf, payload...)
	return w
}

// AppendVarInt appends the varint encoding of v to dst.
func AppendVarInt(dst []byte, v int) []byte {
	u := uint64(v)
	if v < 0 {
		u = uint64(uint32(int32(v)))
	}

	for {
		b := byte(u & 0x7F)
		u >>= 7
		if u == 0 {
			return append(dst, b)
		}
		dst = append(dst, b|0x80)
	}
}

// LengthPrefixed returns payload framed with its varint byte length.
func LengthPrefixed(payload []byte) []byte {
	return NewWriter(len(payload) + MaxVarIntBytes).LengthPrefixed(payload).Bytes()
}

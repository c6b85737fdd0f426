// Package wire provides a forward-only byte cursor used by the game query codecs.
// Reads never advance the cursor when they fail, so a caller that gets
// ErrShortBuffer can retry the same read once more bytes have arrived.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"unicode/utf8"
)

// MaxVarIntBytes is the longest accepted varint run (35 bits of payload).
const MaxVarIntBytes = 5

var (
	// ErrShortBuffer means the buffer ended before the value did; wait for more bytes.
	ErrShortBuffer = errors.New("wire: insufficient data")

	// ErrMalformed means the bytes can never form a valid value; abort the response.
	ErrMalformed = errors.New("wire: malformed data")
)

// Reader is a mutable cursor over a byte slice.
type Reader struct {
	buf []byte
	off int
}

// NewReader returns a cursor positioned at the start of b. The slice is not copied.
func NewReader(b []byte) *Reader {
	return &Reader{buf: b}
}

// Len returns the number of unread bytes.
func (r *Reader) Len() int {
	return len(r.buf) - r.off
}

// Offset returns the number of bytes consumed so far.
func (r *Reader) Offset() int {
	return r.off
}

// Remaining returns the unread bytes without consuming them.
func (r *Reader) Remaining() []byte {
	return r.buf[r.off:]
}

// Skip advances the cursor by n bytes.
func (r *Reader) Skip(n int) error {
	if n < 0 {
		return ErrMalformed
	}
	if r.Len() < n {
		return ErrShortBuffer
	}
	r.off += n
	return nil
}

// Bytes consumes n bytes and returns them. The result aliases the underlying buffer.
func (r *Reader) Bytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, ErrMalformed
	}
	if r.Len() < n {
		return nil, ErrShortBuffer
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

// Uint8 reads a single byte.
func (r *Reader) Uint8() (uint8, error) {
	if r.Len() < 1 {
		return 0, ErrShortBuffer
	}
	v := r.buf[r.off]
	r.off++
	return v, nil
}

// Bool reads a byte and reports whether it equals 0x01.
func (r *Reader) Bool() (bool, error) {
	v, err := r.Uint8()
	return v == 0x01, err
}

// Uint16LE reads a little-endian uint16.
func (r *Reader) Uint16LE() (uint16, error) {
	b, err := r.Bytes(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// Uint16BE reads a big-endian uint16.
func (r *Reader) Uint16BE() (uint16, error) {
	b, err := r.Bytes(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

// Uint32LE reads a little-endian uint32.
func (r *Reader) Uint32LE() (uint32, error) {
	b, err := r.Bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// Uint32BE reads a big-endian uint32.
func (r *Reader) Uint32BE() (uint32, error) {
	b, err := r.Bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

// Uint64LE reads a little-endian uint64.
func (r *Reader) Uint64LE() (uint64, error) {
	b, err := r.Bytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// Uint64BE reads a big-endian uint64.
func (r *Reader) Uint64BE() (uint64, error) {
	b, err := r.Bytes(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

// Float32LE reads a little-endian IEEE 754 float32.
func (r *Reader) Float32LE() (float32, error) {
	v, err := r.Uint32LE()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

// CString reads up to the next NUL byte and consumes the terminator.
// Invalid UTF-8 sequences are replaced rather than rejected, game servers
// routinely send Latin-1 names.
func (r *Reader) CString() (string, error) {
	idx := bytes.IndexByte(r.buf[r.off:], 0x00)
	if idx < 0 {
		return "", ErrShortBuffer
	}
	raw := r.buf[r.off : r.off+idx]
	r.off += idx + 1

	if utf8.Valid(raw) {
		return string(raw), nil
	}
	return string(bytes.ToValidUTF8(raw, []byte(string(utf8.RuneError)))), nil
}

// VarInt reads a 7-bits-per-byte little-endian varint. A continuation run
// longer than MaxVarIntBytes is ErrMalformed.
func (r *Reader) VarInt() (int, error) {
	var (
		value uint64
		shift uint
	)

	for i := 0; i < MaxVarIntBytes; i++ {
		if r.off+i >= len(r.buf) {
			return 0, ErrShortBuffer
		}

		b := r.buf[r.off+i]
		value |= uint64(b&0x7F) << shift
		if b&0x80 == 0 {
			r.off += i + 1
			return int(value), nil
		}
		shift += 7
	}

	return 0, ErrMalformed
}

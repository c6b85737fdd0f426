package a2s

import (
	"bytes"
	"compress/bzip2"
	"errors"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/woozymasta/gamestatus/internal/wire"
)

// DefaultSplitLimit is the number of incomplete split sets an Assembler keeps.
const DefaultSplitLimit = 8

// maxDecompressed caps the bzip2 output of a compressed split response.
const maxDecompressed = 1 << 20

// ErrChecksum is returned when a compressed split response fails size or CRC32 checks.
var ErrChecksum = errors.New("a2s: compressed response checksum mismatch")

// Fragment is the decoded header of one split datagram.
type Fragment struct {
	Body       []byte
	ID         uint32
	Size       uint32
	CRC        uint32
	Total      byte
	Index      byte
	Compressed bool
}

type assembly struct {
	parts      map[byte][]byte
	size       uint32
	crc        uint32
	total      byte
	compressed bool
}

// Assembler buffers split-response fragments by packet id until a set is complete.
// It holds at most limit incomplete sets; the oldest set is evicted first.
// An Assembler belongs to one query session and is not safe for concurrent use.
type Assembler struct {
	sets  map[uint32]*assembly
	order []uint32
	limit int
}

// NewAssembler returns an Assembler keeping at most limit incomplete sets.
func NewAssembler(limit int) *Assembler {
	if limit <= 0 {
		limit = DefaultSplitLimit
	}
	return &Assembler{
		sets:  make(map[uint32]*assembly),
		limit: limit,
	}
}

// IsSplit reports whether datagram carries the split-packet header.
func IsSplit(datagram []byte) bool {
	return len(datagram) >= 4 && datagram[0] == 0xFE &&
		datagram[1] == 0xFF && datagram[2] == 0xFF && datagram[3] == 0xFF
}

// ParseFragment decodes the split header of datagram. Body is copied.
func ParseFragment(datagram []byte) (Fragment, error) {
	var f Fragment

	r := wire.NewReader(datagram)
	header, err := r.Uint32LE()
	if err != nil {
		return f, err
	}
	if header != HeaderSplit {
		return f, fmt.Errorf("%w: 0x%08X", ErrUnexpectedHeader, header)
	}

	if f.ID, err = r.Uint32LE(); err != nil {
		return f, fmt.Errorf("a2s split id: %w", err)
	}
	if f.Total, err = r.Uint8(); err != nil {
		return f, fmt.Errorf("a2s split total: %w", err)
	}
	if f.Index, err = r.Uint8(); err != nil {
		return f, fmt.Errorf("a2s split index: %w", err)
	}
	size, err := r.Uint16LE()
	if err != nil {
		return f, fmt.Errorf("a2s split size: %w", err)
	}

	if f.Total&0x80 != 0 {
		f.Compressed = true
		f.Total &= 0x7F
		if f.Index == 0 {
			if f.Size, err = r.Uint32LE(); err != nil {
				return f, fmt.Errorf("a2s split decompressed size: %w", err)
			}
			if f.CRC, err = r.Uint32LE(); err != nil {
				return f, fmt.Errorf("a2s split crc: %w", err)
			}
		}
	}

	if f.Total == 0 || f.Index >= f.Total {
		return f, fmt.Errorf("%w: fragment %d of %d", wire.ErrMalformed, f.Index, f.Total)
	}

	body := r.Remaining()
	if int(size) < len(body) {
		body = body[:size]
	}
	f.Body = append([]byte(nil), body...)

	return f, nil
}

// Add buffers one split datagram. It returns the merged payload and true once
// every fragment of the set has arrived, or nil and false while waiting.
func (a *Assembler) Add(datagram []byte) ([]byte, bool, error) {
	f, err := ParseFragment(datagram)
	if err != nil {
		return nil, false, err
	}

	set, ok := a.sets[f.ID]
	if !ok {
		a.evict()
		set = &assembly{
			total:      f.Total,
			compressed: f.Compressed,
			parts:      make(map[byte][]byte, f.Total),
		}
		a.sets[f.ID] = set
		a.order = append(a.order, f.ID)
	} else if set.total != f.Total {
		a.drop(f.ID)
		return nil, false, fmt.Errorf("%w: split %d total changed %d -> %d",
			wire.ErrMalformed, f.ID, set.total, f.Total)
	}

	if f.Compressed && f.Index == 0 {
		set.size = f.Size
		set.crc = f.CRC
	}
	set.parts[f.Index] = f.Body

	if len(set.parts) < int(set.total) {
		return nil, false, nil
	}

	merged := make([]byte, 0, int(set.total)*len(f.Body))
	for i := 0; i < int(set.total); i++ {
		merged = append(merged, set.parts[byte(i)]...)
	}
	a.drop(f.ID)

	if set.compressed {
		merged, err = decompress(merged, set.size, set.crc)
		if err != nil {
			return nil, false, err
		}
	}

	return merged, true, nil
}

// Pending returns the number of incomplete sets.
func (a *Assembler) Pending() int {
	return len(a.sets)
}

// Clear discards every incomplete set.
func (a *Assembler) Clear() {
	clear(a.sets)
	a.order = a.order[:0]
}

func (a *Assembler) evict() {
	for len(a.sets) >= a.limit && len(a.order) > 0 {
		a.drop(a.order[0])
	}
}

func (a *Assembler) drop(id uint32) {
	delete(a.sets, id)
	for i, v := range a.order {
		if v == id {
			a.order = append(a.order[:i], a.order[i+1:]...)
			break
		}
	}
}

func decompress(data []byte, size, crc uint32) ([]byte, error) {
	if size > maxDecompressed {
		return nil, fmt.Errorf("%w: decompressed size %d", wire.ErrMalformed, size)
	}

	out, err := io.ReadAll(io.LimitReader(bzip2.NewReader(bytes.NewReader(data)), int64(size)+1))
	if err != nil {
		return nil, fmt.Errorf("a2s bzip2: %w", err)
	}

	if uint32(len(out)) != size || crc32.ChecksumIEEE(out) != crc {
		return nil, ErrChecksum
	}

	return out, nil
}

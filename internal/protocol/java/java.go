// Package java implements the Minecraft Java Edition server list ping (status) exchange.
package java

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/woozymasta/gamestatus/internal/motd"
	"github.com/woozymasta/gamestatus/internal/wire"
)

const (
	// ProtocolVersion is advertised in the handshake (1.21.7).
	ProtocolVersion = 772

	// DefaultPort is the vanilla server port.
	DefaultPort = 25565

	// MaxPacketSize caps a single status response.
	MaxPacketSize = 2 << 20

	packetHandshake = 0x00
	packetStatus    = 0x00
	nextStateStatus = 1
)

// StatusRequest is the framed, empty status request packet.
var StatusRequest = []byte{0x01, 0x00}

var (
	// ErrUnexpectedPacket is returned when the response is not a status packet.
	ErrUnexpectedPacket = errors.New("java: unexpected packet id")

	// ErrPacketTooLarge is returned when a frame exceeds MaxPacketSize.
	ErrPacketTooLarge = errors.New("java: packet too large")
)

// BuildHandshake returns the framed handshake packet switching the connection to status state.
func BuildHandshake(host string, port uint16, protocol int) []byte {
	body := wire.NewWriter(len(host)+16).
		VarInt(packetHandshake).
		VarInt(protocol).
		String(host).
		Uint16BE(port).
		VarInt(nextStateStatus).
		Bytes()

	return wire.LengthPrefixed(body)
}

// Framer accumulates stream bytes until a full length-prefixed packet is available.
type Framer struct {
	buf []byte
}

// Feed appends p and returns the first complete packet body, if any.
// The bool is false while more bytes are needed.
func (f *Framer) Feed(p []byte) ([]byte, bool, error) {
	f.buf = append(f.buf, p...)

	r := wire.NewReader(f.buf)
	length, err := r.VarInt()
	switch {
	case errors.Is(err, wire.ErrShortBuffer):
		return nil, false, nil
	case err != nil:
		return nil, false, fmt.Errorf("java frame length: %w", err)
	case length < 0 || length > MaxPacketSize:
		return nil, false, fmt.Errorf("%w: %d bytes", ErrPacketTooLarge, length)
	}

	if r.Len() < length {
		return nil, false, nil
	}

	packet, _ := r.Bytes(length)
	f.buf = append(f.buf[:0:0], r.Remaining()...)

	return packet, true, nil
}

// Buffered returns the number of bytes waiting for a complete frame.
func (f *Framer) Buffered() int {
	return len(f.buf)
}

// Reset drops buffered bytes.
func (f *Framer) Reset() {
	f.buf = nil
}

// Version is the advertised server version.
type Version struct {
	Name     string `json:"name"`
	Protocol int    `json:"protocol"`
}

// SamplePlayer is one entry of the players sample.
type SamplePlayer struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// Players holds the player counts and optional sample.
type Players struct {
	Sample []SamplePlayer `json:"sample,omitempty"`
	Online int            `json:"online"`
	Max    int            `json:"max"`
}

// Status is the decoded status response JSON.
type Status struct {
	Description        motd.RawDescription `json:"description"`
	Favicon            string              `json:"favicon,omitempty"`
	Version            Version             `json:"version"`
	Players            Players             `json:"players"`
	EnforcesSecureChat bool                `json:"enforcesSecureChat,omitempty"`
}

// DecodeStatus decodes a status packet body (packet id, JSON length, JSON).
func DecodeStatus(packet []byte) (*Status, error) {
	r := wire.NewReader(packet)

	id, err := r.VarInt()
	if err != nil {
		return nil, fmt.Errorf("java packet id: %w", err)
	}
	if id != packetStatus {
		return nil, fmt.Errorf("%w: 0x%02X", ErrUnexpectedPacket, id)
	}

	size, err := r.VarInt()
	if err != nil {
		return nil, fmt.Errorf("java json length: %w", err)
	}
	if size < 0 || size > MaxPacketSize {
		return nil, fmt.Errorf("%w: json %d bytes", ErrPacketTooLarge, size)
	}

	raw, err := r.Bytes(size)
	if err != nil {
		return nil, fmt.Errorf("java json body: %w", err)
	}

	var status Status
	if err := json.Unmarshal(raw, &status); err != nil {
		return nil, fmt.Errorf("java status json: %w", err)
	}

	return &status, nil
}

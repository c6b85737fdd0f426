// Package bedrock implements the Minecraft Bedrock (RakNet) unconnected ping/pong datagrams.
package bedrock

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/woozymasta/gamestatus/internal/wire"
)

// Packet ids.
const (
	IDUnconnectedPing byte = 0x01
	IDUnconnectedPong byte = 0x1C
)

// Magic is the RakNet offline-message marker.
var Magic = [16]byte{
	0x00, 0xFF, 0xFF, 0x00, 0xFE, 0xFE, 0xFE, 0xFE,
	0xFD, 0xFD, 0xFD, 0xFD, 0x12, 0x34, 0x56, 0x78,
}

// Positional fields of the pong string.
const (
	fieldEdition = iota
	fieldMOTD
	fieldProtocol
	fieldVersion
	fieldPlayers
	fieldMaxPlayers
	fieldServerID
	fieldMOTDSecond
	fieldGameMode
	fieldGameModeID
	fieldPort
	fieldPortIPv6
)

// minFields is the shortest pong string accepted.
const minFields = fieldGameMode

var (
	// ErrNotPong is returned for datagrams that are not unconnected pongs.
	ErrNotPong = errors.New("bedrock: not an unconnected pong")

	// ErrTooFewFields is returned when the pong string has fewer than 8 fields.
	ErrTooFewFields = errors.New("bedrock: pong has too few fields")
)

// Version is the advertised game version.
type Version struct {
	Name     string `json:"name"`
	Protocol int    `json:"protocol"`
}

// Pong is a parsed unconnected pong. Optional trailing fields are nil when absent.
type Pong struct {
	GameModeID *int      `json:"gamemode_id,omitempty"`
	Port       *uint16   `json:"port,omitempty"`
	PortIPv6   *uint16   `json:"port_ipv6,omitempty"`
	Edition    string    `json:"edition"`
	ServerID   string    `json:"server_id"`
	GameMode   string    `json:"gamemode"`
	Version    Version   `json:"version"`
	MOTDLines  [2]string `json:"motd"`
	ServerGUID uint64    `json:"server_guid"`
	Players    int       `json:"players"`
	MaxPlayers int       `json:"max_players"`
}

// MOTD returns both MOTD lines joined with a newline.
func (p *Pong) MOTD() string {
	if p.MOTDLines[1] == "" {
		return p.MOTDLines[0]
	}
	return p.MOTDLines[0] + "\n" + p.MOTDLines[1]
}

// BuildPing returns an unconnected ping datagram.
func BuildPing(sendTime uint64, clientGUID uint64) []byte {
	return wire.NewWriter(33).
		Uint8(IDUnconnectedPing).
		Uint64LE(sendTime).
		Raw(Magic[:]).
		Uint64LE(clientGUID).
		Bytes()
}

// IsPong reports whether datagram starts with the unconnected pong id.
func IsPong(datagram []byte) bool {
	return len(datagram) > 0 && datagram[0] == IDUnconnectedPong
}

// ParsePong decodes an unconnected pong datagram, including its 0x1C id byte.
func ParsePong(datagram []byte) (*Pong, error) {
	r := wire.NewReader(datagram)

	id, err := r.Uint8()
	if err != nil {
		return nil, err
	}
	if id != IDUnconnectedPong {
		return nil, fmt.Errorf("%w: id 0x%02X", ErrNotPong, id)
	}

	// server send time
	if err := r.Skip(8); err != nil {
		return nil, fmt.Errorf("bedrock pong time: %w", err)
	}

	guid, err := r.Uint64BE()
	if err != nil {
		return nil, fmt.Errorf("bedrock pong guid: %w", err)
	}

	if err := r.Skip(len(Magic)); err != nil {
		return nil, fmt.Errorf("bedrock pong magic: %w", err)
	}

	// the declared length is not trusted, the string runs to the end of the datagram
	if _, err := r.Uint16LE(); err != nil {
		return nil, fmt.Errorf("bedrock pong length: %w", err)
	}

	payload := r.Remaining()
	if idx := strings.IndexByte(string(payload), 0x00); idx >= 0 {
		payload = payload[:idx]
	}

	pong, err := ParsePongString(string(payload))
	if err != nil {
		return nil, err
	}
	pong.ServerGUID = guid

	return pong, nil
}

// ParsePongString decodes the semicolon-delimited pong payload.
func ParsePongString(s string) (*Pong, error) {
	fields := splitFields(s)
	if len(fields) < minFields {
		return nil, fmt.Errorf("%w: got %d", ErrTooFewFields, len(fields))
	}

	if isCompact(fields) {
		// no second MOTD line: shift the tail one slot right
		fields = append(fields[:fieldMOTDSecond], append([]string{""}, fields[fieldMOTDSecond:]...)...)
	}

	pong := &Pong{
		Edition:   fields[fieldEdition],
		MOTDLines: [2]string{fields[fieldMOTD], fields[fieldMOTDSecond]},
		Version: Version{
			Name:     fields[fieldVersion],
			Protocol: atoi(fields[fieldProtocol]),
		},
		Players:    atoi(fields[fieldPlayers]),
		MaxPlayers: atoi(fields[fieldMaxPlayers]),
		ServerID:   fields[fieldServerID],
	}

	if len(fields) > fieldGameMode {
		pong.GameMode = fields[fieldGameMode]
	}
	if len(fields) > fieldGameModeID {
		if v, err := strconv.Atoi(fields[fieldGameModeID]); err == nil {
			pong.GameModeID = &v
		}
	}
	if len(fields) > fieldPort {
		pong.Port = parsePort(fields[fieldPort])
	}
	if len(fields) > fieldPortIPv6 {
		pong.PortIPv6 = parsePort(fields[fieldPortIPv6])
	}

	return pong, nil
}

// isCompact detects the 11-field layout some servers send without a second MOTD line,
// e.g. "MCPE;motd;819;1.21;5;20;id;Survival;0;19132;19133".
func isCompact(fields []string) bool {
	if len(fields) != fieldPortIPv6 {
		return false
	}
	return !isInt(fields[fieldMOTDSecond]) &&
		isInt(fields[fieldGameMode]) &&
		isInt(fields[fieldGameModeID]) &&
		isInt(fields[fieldPort])
}

// splitFields splits on ';' honouring backslash escapes.
func splitFields(s string) []string {
	var (
		fields   []string
		current  strings.Builder
		inEscape bool
	)

	for _, r := range s {
		switch {
		case inEscape:
			inEscape = false
			current.WriteRune(r)
		case r == '\\':
			inEscape = true
		case r == ';':
			fields = append(fields, current.String())
			current.Reset()
		default:
			current.WriteRune(r)
		}
	}

	return append(fields, current.String())
}

func isInt(s string) bool {
	_, err := strconv.Atoi(s)
	return err == nil
}

func atoi(s string) int {
	v, _ := strconv.Atoi(strings.TrimSpace(s))
	return v
}

func parsePort(s string) *uint16 {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 16)
	if err != nil {
		return nil
	}
	port := uint16(v)
	return &port
}

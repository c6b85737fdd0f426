// Package models defines the server records, the protocol enum and the unified status
// shared by the query engine, the API and the database layer.
package models

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/woozymasta/gamestatus/internal/motd"
)

// Protocol identifies the query protocol of a server.
type Protocol string

// Supported protocols. The values are persisted and used in URLs.
const (
	ProtocolJava      Protocol = "mc"
	ProtocolBedrock   Protocol = "mcbd"
	ProtocolSource    Protocol = "source"
	ProtocolFiveM     Protocol = "fivem"
	ProtocolFiveMCode Protocol = "fivem-ctx"
	ProtocolAuto      Protocol = "auto"
	ProtocolUnknown   Protocol = "n/a"
)

// Well-known default ports.
const (
	PortJava    = 25565
	PortBedrock = 19132
	PortSource  = 27015
	PortFiveM   = 30120
)

// ErrUnknownProtocol is returned by ParseProtocol for unrecognized names.
var ErrUnknownProtocol = errors.New("unknown protocol")

var protocolAliases = map[string]Protocol{
	"mc":        ProtocolJava,
	"java":      ProtocolJava,
	"minecraft": ProtocolJava,
	"mcbd":      ProtocolBedrock,
	"bedrock":   ProtocolBedrock,
	"source":    ProtocolSource,
	"a2s":       ProtocolSource,
	"steam":     ProtocolSource,
	"fivem":     ProtocolFiveM,
	"fivem-ctx": ProtocolFiveMCode,
	"cfx":       ProtocolFiveMCode,
	"auto":      ProtocolAuto,
	"":          ProtocolAuto,
	"n/a":       ProtocolUnknown,
}

// ParseProtocol resolves a protocol name or alias, case-insensitively.
func ParseProtocol(s string) (Protocol, error) {
	if p, ok := protocolAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return p, nil
	}
	return ProtocolUnknown, fmt.Errorf("%w: %q", ErrUnknownProtocol, s)
}

// String implements fmt.Stringer.
func (p Protocol) String() string {
	return string(p)
}

// DefaultPort returns the well-known port, or 0 when the protocol has none.
func (p Protocol) DefaultPort() int {
	switch p {
	case ProtocolJava:
		return PortJava
	case ProtocolBedrock:
		return PortBedrock
	case ProtocolSource:
		return PortSource
	case ProtocolFiveM:
		return PortFiveM
	default:
		return 0
	}
}

// Queryable reports whether the protocol can be queried directly.
func (p Protocol) Queryable() bool {
	switch p {
	case ProtocolJava, ProtocolBedrock, ProtocolSource, ProtocolFiveM, ProtocolFiveMCode:
		return true
	}
	return false
}

// ServerRecord is a stored server. Port 0 means the protocol default.
type ServerRecord struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	Protocol  Protocol  `json:"protocol"`
	Port      int       `json:"port"`
}

// Validate checks the fields a client may set.
func (r ServerRecord) Validate() error {
	if strings.TrimSpace(r.Address) == "" {
		return errors.New("address is required")
	}
	if r.Port < 0 || r.Port > 65535 {
		return fmt.Errorf("port %d out of range", r.Port)
	}
	if _, err := ParseProtocol(string(r.Protocol)); err != nil {
		return err
	}
	return nil
}

// EffectivePort returns the port to query for protocol p, clamped to [0, 65535].
func (r ServerRecord) EffectivePort(p Protocol) int {
	port := r.Port
	if port == 0 {
		port = p.DefaultPort()
	}
	return min(max(port, 0), 65535)
}

// HostPort joins the address with the effective port for p.
func (r ServerRecord) HostPort(p Protocol) string {
	return net.JoinHostPort(r.Address, strconv.Itoa(r.EffectivePort(p)))
}

// AdHocID derives a stable identity for a query that has no stored record,
// so concurrent identical ad-hoc queries share one exchange.
func AdHocID(p Protocol, address string, port int) string {
	key := string(p) + "|" + strings.ToLower(address) + "|" + strconv.Itoa(port)
	return fmt.Sprintf("adhoc-%016x", xxhash.Sum64String(key))
}

// PlayerInfo is one connected player.
type PlayerInfo struct {
	Score    *int     `json:"score,omitempty"`
	Duration *float64 `json:"duration,omitempty"`
	Ping     *int     `json:"ping,omitempty"`
	Name     string   `json:"name"`
}

// Status is the protocol independent result of one query.
type Status struct {
	PlayersOnline *int         `json:"players_online,omitempty"`
	PlayersMax    *int         `json:"players_max,omitempty"`
	Name          *string      `json:"name,omitempty"`
	Game          *string      `json:"game,omitempty"`
	Map           *string      `json:"map,omitempty"`
	Version       *string      `json:"version,omitempty"`
	Ping          *int         `json:"ping,omitempty"`
	Favicon       *string      `json:"favicon,omitempty"`
	OS            *string      `json:"os,omitempty"`
	Country       *string      `json:"country,omitempty"`
	Protocol      Protocol     `json:"protocol,omitempty"`
	Players       []PlayerInfo `json:"players,omitempty"`
	Keywords      []string     `json:"keywords,omitempty"`
	MOTD          motd.Text    `json:"motd,omitempty"`
	Online        bool         `json:"online"`
}

// Offline is the single canonical status for unreachable or unparsable servers.
// It must be returned as is and never modified.
var Offline = Status{}

// IsOffline reports whether s is the canonical offline status.
func (s Status) IsOffline() bool {
	return !s.Online
}

// PlainMOTD returns the MOTD without formatting.
func (s Status) PlainMOTD() string {
	return s.MOTD.Plain()
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}

// NonEmpty returns a pointer to s, or nil when s is blank.
func NonEmpty(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

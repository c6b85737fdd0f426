// Package a2s implements the Source Engine Query (A2S) wire format:
// request packets, response parsers and split-packet reassembly.
package a2s

import (
	"errors"
	"fmt"
	"strings"

	"github.com/woozymasta/gamestatus/internal/wire"
)

// Packet headers.
const (
	HeaderSimple uint32 = 0xFFFFFFFF
	HeaderSplit  uint32 = 0xFFFFFFFE
)

// Request and response type bytes.
const (
	RequestInfo    byte = 0x54
	RequestPlayer  byte = 0x55
	RequestRules   byte = 0x56
	ResponseInfo   byte = 0x49
	ResponsePlayer byte = 0x44
	ResponseRules  byte = 0x45
	ResponseChal   byte = 0x41
)

// Extra Data Flags of an A2S_INFO response.
const (
	EDFGameID   byte = 0x01
	EDFSteamID  byte = 0x10
	EDFKeywords byte = 0x20
	EDFSourceTV byte = 0x40
	EDFPort     byte = 0x80
)

const infoPayload = "Source Engine Query"

var (
	// ErrUnexpectedHeader is returned for packets that are not A2S responses.
	ErrUnexpectedHeader = errors.New("a2s: unexpected packet header")

	// ErrPlayerCount is returned when the parsed players differ from the declared count.
	ErrPlayerCount = errors.New("a2s: player count mismatch")
)

// noChallenge is sent in place of a challenge to request one.
var noChallenge = []byte{0xFF, 0xFF, 0xFF, 0xFF}

// Response is one of *Info, *PlayerList, *Rules or Challenge.
type Response interface {
	a2sResponse()
}

// Challenge is the 4-byte token a server asks the client to echo back.
type Challenge []byte

func (Challenge) a2sResponse() {}

// Info is a parsed A2S_INFO response. EDF-gated fields are nil when their flag is absent.
type Info struct {
	Port         *uint16  `json:"port,omitempty"`
	SteamID      *uint64  `json:"steam_id,omitempty"`
	SourceTVPort *uint16  `json:"source_tv_port,omitempty"`
	SourceTVName *string  `json:"source_tv_name,omitempty"`
	GameIDLong   *uint64  `json:"game_id_long,omitempty"`
	Name         string   `json:"name"`
	Map          string   `json:"map"`
	Folder       string   `json:"folder"`
	Game         string   `json:"game"`
	Version      string   `json:"version"`
	Keywords     []string `json:"keywords,omitempty"`
	GameID       uint16   `json:"game_id"`
	Protocol     byte     `json:"protocol"`
	Players      byte     `json:"players"`
	MaxPlayers   byte     `json:"max_players"`
	Bots         byte     `json:"bots"`
	ServerType   byte     `json:"server_type"`
	OS           byte     `json:"os"`
	EDF          byte     `json:"edf"`
	IsPublic     bool     `json:"is_public"`
	VAC          bool     `json:"vac"`
}

func (*Info) a2sResponse() {}

// Player is one entry of an A2S_PLAYER response.
type Player struct {
	Name     string  `json:"name"`
	Score    uint32  `json:"score"`
	Duration float32 `json:"duration"`
	Index    byte    `json:"index"`
}

// PlayerList is a parsed A2S_PLAYER response.
type PlayerList struct {
	Players []Player `json:"players"`
	Count   byte     `json:"count"`
}

func (*PlayerList) a2sResponse() {}

// Rule is a server cvar name and value.
type Rule struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Rules is a parsed A2S_RULES response.
type Rules struct {
	Rules []Rule `json:"rules"`
	Count uint16 `json:"count"`
}

func (*Rules) a2sResponse() {}

// BuildInfoRequest returns an A2S_INFO request, embedding challenge when non-empty.
func BuildInfoRequest(challenge []byte) []byte {
	w := wire.NewWriter(29).
		Uint32LE(HeaderSimple).
		Uint8(RequestInfo).
		CString(infoPayload)
	if len(challenge) > 0 {
		w.Raw(challenge)
	}
	return w.Bytes()
}

// BuildPlayerRequest returns an A2S_PLAYER request. Without a challenge it asks for one.
func BuildPlayerRequest(challenge []byte) []byte {
	return buildChallenged(RequestPlayer, challenge)
}

// BuildRulesRequest returns an A2S_RULES request. Without a challenge it asks for one.
func BuildRulesRequest(challenge []byte) []byte {
	return buildChallenged(RequestRules, challenge)
}

func buildChallenged(kind byte, challenge []byte) []byte {
	if len(challenge) == 0 {
		challenge = noChallenge
	}
	return wire.NewWriter(9).
		Uint32LE(HeaderSimple).
		Uint8(kind).
		Raw(challenge).
		Bytes()
}

// Parse decodes a complete (non-split) response starting with the 0xFFFFFFFF header.
func Parse(packet []byte) (Response, error) {
	r := wire.NewReader(packet)

	header, err := r.Uint32LE()
	if err != nil {
		return nil, err
	}
	if header != HeaderSimple {
		return nil, fmt.Errorf("%w: 0x%08X", ErrUnexpectedHeader, header)
	}

	kind, err := r.Uint8()
	if err != nil {
		return nil, err
	}

	body := r.Remaining()
	switch kind {
	case ResponseInfo:
		info, err := ParseInfo(body)
		if err != nil {
			return nil, err
		}
		return info, nil
	case ResponsePlayer:
		players, err := ParsePlayers(body)
		if err != nil {
			return nil, err
		}
		return players, nil
	case ResponseRules:
		rules, err := ParseRules(body)
		if err != nil {
			return nil, err
		}
		return rules, nil
	case ResponseChal:
		if len(body) < 4 {
			return nil, wire.ErrShortBuffer
		}
		return Challenge(append([]byte(nil), body[:4]...)), nil
	default:
		return nil, fmt.Errorf("%w: type 0x%02X", ErrUnexpectedHeader, kind)
	}
}

// ParseInfo decodes an A2S_INFO body (after the 0x49 type byte).
func ParseInfo(body []byte) (*Info, error) {
	r := wire.NewReader(body)
	info := &Info{}

	var (
		err       error
		isPrivate bool
	)

	if info.Protocol, err = r.Uint8(); err != nil {
		return nil, fmt.Errorf("a2s info protocol: %w", err)
	}
	if info.Name, err = r.CString(); err != nil {
		return nil, fmt.Errorf("a2s info name: %w", err)
	}
	if info.Map, err = r.CString(); err != nil {
		return nil, fmt.Errorf("a2s info map: %w", err)
	}
	if info.Folder, err = r.CString(); err != nil {
		return nil, fmt.Errorf("a2s info folder: %w", err)
	}
	if info.Game, err = r.CString(); err != nil {
		return nil, fmt.Errorf("a2s info game: %w", err)
	}
	if info.GameID, err = r.Uint16LE(); err != nil {
		return nil, fmt.Errorf("a2s info game id: %w", err)
	}
	if info.Players, err = r.Uint8(); err != nil {
		return nil, fmt.Errorf("a2s info players: %w", err)
	}
	if info.MaxPlayers, err = r.Uint8(); err != nil {
		return nil, fmt.Errorf("a2s info max players: %w", err)
	}
	if info.Bots, err = r.Uint8(); err != nil {
		return nil, fmt.Errorf("a2s info bots: %w", err)
	}
	if info.ServerType, err = r.Uint8(); err != nil {
		return nil, fmt.Errorf("a2s info server type: %w", err)
	}
	if info.OS, err = r.Uint8(); err != nil {
		return nil, fmt.Errorf("a2s info os: %w", err)
	}
	if isPrivate, err = r.Bool(); err != nil {
		return nil, fmt.Errorf("a2s info visibility: %w", err)
	}
	info.IsPublic = !isPrivate
	if info.VAC, err = r.Bool(); err != nil {
		return nil, fmt.Errorf("a2s info vac: %w", err)
	}
	if info.Version, err = r.CString(); err != nil {
		return nil, fmt.Errorf("a2s info version: %w", err)
	}
	if info.EDF, err = r.Uint8(); err != nil {
		return nil, fmt.Errorf("a2s info edf: %w", err)
	}

	if err := parseEDF(r, info); err != nil {
		return nil, err
	}

	return info, nil
}

// parseEDF reads the optional trailing fields in wire order.
func parseEDF(r *wire.Reader, info *Info) error {
	edf := info.EDF

	if edf&EDFPort != 0 {
		port, err := r.Uint16LE()
		if err != nil {
			return fmt.Errorf("a2s info edf port: %w", err)
		}
		info.Port = &port
	}

	if edf&EDFSteamID != 0 {
		id, err := r.Uint64LE()
		if err != nil {
			return fmt.Errorf("a2s info edf steam id: %w", err)
		}
		info.SteamID = &id
	}

	if edf&EDFSourceTV != 0 {
		port, err := r.Uint16LE()
		if err != nil {
			return fmt.Errorf("a2s info edf sourcetv port: %w", err)
		}
		name, err := r.CString()
		if err != nil {
			return fmt.Errorf("a2s info edf sourcetv name: %w", err)
		}
		info.SourceTVPort = &port
		info.SourceTVName = &name
	}

	if edf&EDFKeywords != 0 {
		keywords, err := r.CString()
		if err != nil {
			return fmt.Errorf("a2s info edf keywords: %w", err)
		}
		info.Keywords = splitKeywords(keywords)
	}

	if edf&EDFGameID != 0 {
		id, err := r.Uint64LE()
		if err != nil {
			return fmt.Errorf("a2s info edf game id: %w", err)
		}
		info.GameIDLong = &id
	}

	return nil
}

// splitKeywords splits the comma separated tag list, dropping blank entries.
func splitKeywords(s string) []string {
	var out []string
	for _, kw := range strings.Split(s, ",") {
		if kw = strings.TrimSpace(kw); kw != "" {
			out = append(out, kw)
		}
	}
	return out
}

// ParsePlayers decodes an A2S_PLAYER body (after the 0x44 type byte).
// A short read inside a record fails the whole response.
func ParsePlayers(body []byte) (*PlayerList, error) {
	r := wire.NewReader(body)

	count, err := r.Uint8()
	if err != nil {
		return nil, fmt.Errorf("a2s players count: %w", err)
	}

	list := &PlayerList{Count: count, Players: make([]Player, 0, count)}
	for r.Len() > 0 {
		var p Player
		if p.Index, err = r.Uint8(); err != nil {
			return nil, fmt.Errorf("a2s player index: %w", err)
		}
		if p.Name, err = r.CString(); err != nil {
			return nil, fmt.Errorf("a2s player name: %w", err)
		}
		if p.Score, err = r.Uint32LE(); err != nil {
			return nil, fmt.Errorf("a2s player score: %w", err)
		}
		if p.Duration, err = r.Float32LE(); err != nil {
			return nil, fmt.Errorf("a2s player duration: %w", err)
		}
		list.Players = append(list.Players, p)
	}

	if len(list.Players) != int(count) {
		return nil, fmt.Errorf("%w: declared %d, parsed %d", ErrPlayerCount, count, len(list.Players))
	}

	return list, nil
}

// ParseRules decodes an A2S_RULES body (after the 0x45 type byte).
func ParseRules(body []byte) (*Rules, error) {
	r := wire.NewReader(body)

	count, err := r.Uint16LE()
	if err != nil {
		return nil, fmt.Errorf("a2s rules count: %w", err)
	}

	rules := &Rules{Count: count, Rules: make([]Rule, 0, count)}
	for r.Len() > 0 {
		var rule Rule
		if rule.Name, err = r.CString(); err != nil {
			return nil, fmt.Errorf("a2s rule name: %w", err)
		}
		if rule.Value, err = r.CString(); err != nil {
			return nil, fmt.Errorf("a2s rule value: %w", err)
		}
		rules.Rules = append(rules.Rules, rule)
	}

	return rules, nil
}

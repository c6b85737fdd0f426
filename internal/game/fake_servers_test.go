package game

import (
	"bytes"
	"net"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/woozymasta/gamestatus/internal/protocol/a2s"
	"github.com/woozymasta/gamestatus/internal/protocol/bedrock"
	"github.com/woozymasta/gamestatus/internal/protocol/java"
	"github.com/woozymasta/gamestatus/internal/wire"
)

// sourceServer is a scripted A2S server on a loopback UDP socket.
type sourceServer struct {
	challenge   []byte
	delay       time.Duration
	infoReqs    atomic.Int32
	playerReqs  atomic.Int32
	silentOnPlr bool
	alwaysChal  bool
	port        int
}

func (s *sourceServer) start(t *testing.T) {
	t.Helper()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = pc.Close() })

	s.port = pc.LocalAddr().(*net.UDPAddr).Port

	go func() {
		buf := make([]byte, 2048)
		for {
			n, addr, err := pc.ReadFrom(buf)
			if err != nil {
				return
			}
			req := append([]byte(nil), buf[:n]...)
			go func() {
				if out := s.respond(req); out != nil {
					_, _ = pc.WriteTo(out, addr)
				}
			}()
		}
	}()
}

func (s *sourceServer) respond(req []byte) []byte {
	if len(req) < 5 {
		return nil
	}

	challenged := s.challenge == nil || bytes.HasSuffix(req, s.challenge)
	if s.alwaysChal || !challenged {
		return wire.NewWriter(9).Uint32LE(a2s.HeaderSimple).Uint8(a2s.ResponseChal).Raw(s.challengeToken()).Bytes()
	}

	switch req[4] {
	case a2s.RequestInfo:
		s.infoReqs.Add(1)
		time.Sleep(s.delay)
		return sourceInfo("Test Server", 5, 10)
	case a2s.RequestPlayer:
		s.playerReqs.Add(1)
		if s.silentOnPlr {
			return nil
		}
		return playersPacket("alice", "bob")
	case a2s.RequestRules:
		return wire.NewWriter(64).
			Uint32LE(a2s.HeaderSimple).
			Uint8(a2s.ResponseRules).
			Uint16LE(2).
			CString("mp_friendlyfire").CString("0").
			CString("sv_gravity").CString("800").
			Bytes()
	}
	return nil
}

func (s *sourceServer) challengeToken() []byte {
	if s.challenge == nil {
		return []byte{1, 2, 3, 4}
	}
	return s.challenge
}

func sourceInfo(name string, players, maxPlayers byte) []byte {
	return wire.NewWriter(96).
		Uint32LE(a2s.HeaderSimple).
		Uint8(a2s.ResponseInfo).
		Uint8(17).
		CString(name).
		CString("de_dust2").
		CString("csgo").
		CString("Counter-Strike: Global Offensive").
		Uint16LE(730).
		Uint8(players).
		Uint8(maxPlayers).
		Uint8(0).
		Uint8('d').
		Uint8('l').
		Uint8(0).
		Uint8(1).
		CString("1.38.7.9").
		Uint8(a2s.EDFKeywords).
		CString("secure,casual").
		Bytes()
}

func playersPacket(names ...string) []byte {
	w := wire.NewWriter(64).
		Uint32LE(a2s.HeaderSimple).
		Uint8(a2s.ResponsePlayer).
		Uint8(uint8(len(names)))
	for i, name := range names {
		w.Uint8(uint8(i)).CString(name).Uint32LE(uint32(10 * (i + 1))).Float32LE(60.5)
	}
	return w.Bytes()
}

// bedrockServer answers unconnected pings with a fixed pong.
func bedrockServer(t *testing.T, payload string) int {
	t.Helper()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = pc.Close() })

	go func() {
		buf := make([]byte, 2048)
		for {
			n, addr, err := pc.ReadFrom(buf)
			if err != nil {
				return
			}
			if n < 9 || buf[0] != bedrock.IDUnconnectedPing {
				continue
			}
			out := wire.NewWriter(64).
				Uint8(bedrock.IDUnconnectedPong).
				Raw(buf[1:9]).
				Uint64BE(7).
				Raw(bedrock.Magic[:]).
				Uint16LE(uint16(len(payload))).
				Raw([]byte(payload)).
				Bytes()
			_, _ = pc.WriteTo(out, addr)
		}
	}()

	return pc.LocalAddr().(*net.UDPAddr).Port
}

// javaServer answers one status request per connection with body.
func javaServer(t *testing.T, body string) int {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(conn net.Conn) {
				defer func() { _ = conn.Close() }()

				var f java.Framer
				buf := make([]byte, 512)
				for got := 0; got < 2; {
					n, err := conn.Read(buf)
					if err != nil {
						return
					}
					chunk := buf[:n]
					for {
						_, ok, err := f.Feed(chunk)
						if err != nil || !ok {
							break
						}
						got++
						chunk = nil
					}
				}

				payload := wire.NewWriter(len(body) + 8).VarInt(0).String(body).Bytes()
				_, _ = conn.Write(wire.LengthPrefixed(payload))
				_ = conn.SetReadDeadline(time.Now().Add(time.Second))
				_, _ = conn.Read(buf)
			}(conn)
		}
	}()

	_, port, _ := net.SplitHostPort(ln.Addr().String())
	p, _ := strconv.Atoi(port)
	return p
}

// closedPort returns a loopback port with nothing listening on it.
func closedPort(t *testing.T) int {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	return port
}

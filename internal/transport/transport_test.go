package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/woozymasta/gamestatus/internal/protocol/a2s"
	"github.com/woozymasta/gamestatus/internal/protocol/bedrock"
	"github.com/woozymasta/gamestatus/internal/protocol/java"
	"github.com/woozymasta/gamestatus/internal/wire"
)

// udpServer answers every datagram with the packets returned by respond.
func udpServer(t *testing.T, respond func(req []byte) [][]byte) string {
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
			for _, out := range respond(append([]byte(nil), buf[:n]...)) {
				_, _ = pc.WriteTo(out, addr)
			}
		}
	}()

	return pc.LocalAddr().String()
}

func infoPacket(name string) []byte {
	return wire.NewWriter(64).
		Uint32LE(a2s.HeaderSimple).
		Uint8(a2s.ResponseInfo).
		Uint8(17).
		CString(name).
		CString("de_dust2").
		CString("csgo").
		CString("Counter-Strike").
		Uint16LE(730).
		Uint8(3).
		Uint8(16).
		Uint8(0).
		Uint8('d').
		Uint8('l').
		Uint8(0).
		Uint8(1).
		CString("1.0").
		Uint8(0).
		Bytes()
}

func challengePacket(token []byte) []byte {
	return wire.NewWriter(9).Uint32LE(a2s.HeaderSimple).Uint8(a2s.ResponseChal).Raw(token).Bytes()
}

func TestUDPChallengeRetry(t *testing.T) {
	t.Parallel()

	token := []byte{0x0A, 0x0B, 0x0C, 0x0D}
	addr := udpServer(t, func(req []byte) [][]byte {
		if bytes.HasSuffix(req, token) {
			return [][]byte{infoPacket("Challenged")}
		}
		return [][]byte{challengePacket(token)}
	})

	c := NewUDPClient(addr, UDPOptions{})
	defer func() { _ = c.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Start(ctx))
	assert.Equal(t, StateReady, c.State())

	reply, err := c.Exchange(ctx, MessageInfo, nil)
	require.NoError(t, err)
	challenge, ok := reply.Challenge()
	require.True(t, ok)
	assert.Equal(t, a2s.Challenge(token), challenge)

	reply, err = c.Exchange(ctx, MessageInfo, challenge)
	require.NoError(t, err)
	info, ok := reply.Response.(*a2s.Info)
	require.True(t, ok)
	assert.Equal(t, "Challenged", info.Name)
	assert.Equal(t, uint8(3), info.Players)
	assert.Positive(t, reply.Latency)
}

func TestUDPSplitOutOfOrder(t *testing.T) {
	t.Parallel()

	payload := infoPacket("Split Server")
	half := len(payload) / 2
	fragment := func(index byte, body []byte) []byte {
		return wire.NewWriter(len(body) + 12).
			Uint32LE(a2s.HeaderSplit).
			Uint32LE(77).
			Uint8(2).
			Uint8(index).
			Uint16LE(1248).
			Raw(body).
			Bytes()
	}

	addr := udpServer(t, func([]byte) [][]byte {
		return [][]byte{fragment(1, payload[half:]), fragment(0, payload[:half])}
	})

	c := NewUDPClient(addr, UDPOptions{BufferSize: 1400})
	defer func() { _ = c.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Start(ctx))

	reply, err := c.Exchange(ctx, MessageInfo, nil)
	require.NoError(t, err)
	info, ok := reply.Response.(*a2s.Info)
	require.True(t, ok)
	assert.Equal(t, "Split Server", info.Name)
}

func TestUDPStaleReplyIgnored(t *testing.T) {
	t.Parallel()

	players := wire.NewWriter(16).Uint32LE(a2s.HeaderSimple).Uint8(a2s.ResponsePlayer).Uint8(0).Bytes()
	addr := udpServer(t, func([]byte) [][]byte {
		return [][]byte{players, infoPacket("Fresh")}
	})

	c := NewUDPClient(addr, UDPOptions{})
	defer func() { _ = c.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Start(ctx))

	reply, err := c.Exchange(ctx, MessageInfo, nil)
	require.NoError(t, err)
	info, ok := reply.Response.(*a2s.Info)
	require.True(t, ok)
	assert.Equal(t, "Fresh", info.Name)
}

func TestUDPBedrockPing(t *testing.T) {
	t.Parallel()

	addr := udpServer(t, func(req []byte) [][]byte {
		if len(req) != 33 || req[0] != bedrock.IDUnconnectedPing {
			return nil
		}
		payload := "MCPE;Bedrock Box;819;1.21;3;30;99;World;Survival;0;19132;19133;"
		return [][]byte{wire.NewWriter(64).
			Uint8(bedrock.IDUnconnectedPong).
			Raw(req[1:9]).
			Uint64BE(42).
			Raw(bedrock.Magic[:]).
			Uint16LE(uint16(len(payload))).
			Raw([]byte(payload)).
			Bytes()}
	})

	c := NewUDPClient(addr, UDPOptions{})
	defer func() { _ = c.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Start(ctx))

	reply, err := c.Exchange(ctx, MessageBedrockPing, nil)
	require.NoError(t, err)
	require.NotNil(t, reply.Pong)
	assert.Equal(t, "Bedrock Box\nWorld", reply.Pong.MOTD())
	assert.Equal(t, 30, reply.Pong.MaxPlayers)
	assert.Equal(t, uint64(42), reply.Pong.ServerGUID)
}

func TestUDPTimeout(t *testing.T) {
	t.Parallel()

	addr := udpServer(t, func([]byte) [][]byte { return nil })

	c := NewUDPClient(addr, UDPOptions{})
	defer func() { _ = c.Close() }()

	require.NoError(t, c.Start(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := c.Exchange(ctx, MessageInfo, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestUDPSendNotReady(t *testing.T) {
	t.Parallel()

	c := NewUDPClient("127.0.0.1:1", UDPOptions{})
	assert.Equal(t, StateIdle, c.State())
	assert.ErrorIs(t, c.Send(nil), ErrNotReady)

	require.NoError(t, c.Close())
	assert.Equal(t, StateCancelled, c.State())
	assert.ErrorIs(t, c.Start(context.Background()), ErrClosed)

	_, err := c.Exchange(context.Background(), MessageInfo, nil)
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestDialDNSFailure(t *testing.T) {
	t.Parallel()

	c := NewUDPClient("no-such-host.invalid:27015", UDPOptions{})
	defer func() { _ = c.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := c.Start(ctx)
	require.Error(t, err)

	var terr *Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, KindDNS, terr.Kind)
	assert.Equal(t, StateFailed, c.State())
}

func TestClassify(t *testing.T) {
	t.Parallel()

	assert.NoError(t, classify("dial", "x", nil))
	assert.ErrorIs(t, classify("dial", "x", context.Canceled), context.Canceled)

	var terr *Error
	require.ErrorAs(t, classify("dial", "x", &net.DNSError{Err: "no such host", Name: "x"}), &terr)
	assert.Equal(t, KindDNS, terr.Kind)

	require.ErrorAs(t, classify("read", "x", &net.OpError{Op: "read", Err: &net.AddrError{}}), &terr)
	assert.Equal(t, KindGeneric, terr.Kind)

	require.ErrorAs(t, classify("read", "x", errors.New("boom")), &terr)
	assert.Equal(t, KindGeneric, terr.Kind)
	assert.Contains(t, terr.Error(), "generic")
}

// tcpServer accepts one connection, checks the handshake and writes status in two chunks.
func tcpServer(t *testing.T, status string) (string, uint16) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()

		var f java.Framer
		buf := make([]byte, 256)
		packets := 0
		for packets < 2 {
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
				packets++
				chunk = nil
			}
		}

		body := wire.NewWriter(len(status) + 8).VarInt(0).String(status).Bytes()
		packet := wire.LengthPrefixed(body)
		_, _ = conn.Write(packet[:3])
		time.Sleep(20 * time.Millisecond)
		_, _ = conn.Write(packet[3:])
		_, _ = io.Copy(io.Discard, conn)
	}()

	host, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, _ := strconv.Atoi(portStr)
	return host, uint16(port)
}

func TestTCPStatus(t *testing.T) {
	t.Parallel()

	host, port := tcpServer(t, `{"version":{"name":"1.21.7","protocol":772},"players":{"online":4,"max":50},"description":"§aHi"}`)

	c := NewTCPClient(host, port, TCPOptions{})
	defer func() { _ = c.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	status, latency, err := c.Query(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, status.Players.Online)
	assert.Equal(t, "Hi", status.Description.Segments().Plain())
	assert.Positive(t, latency)
}

func TestTCPConnectionRefused(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	host, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, _ := strconv.Atoi(portStr)
	require.NoError(t, ln.Close())

	c := NewTCPClient(host, uint16(port), TCPOptions{})
	defer func() { _ = c.Close() }()

	_, _, err = c.Query(context.Background())
	var terr *Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, KindSystem, terr.Kind)
	assert.Equal(t, StateFailed, c.State())
}

func TestTCPClosedBeforeFrame(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		buf := make([]byte, 256)
		_, _ = conn.Read(buf)
		_, _ = conn.Write([]byte{0x10, 0x00})
		_ = conn.Close()
	}()

	host, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, _ := strconv.Atoi(portStr)

	c := NewTCPClient(host, uint16(port), TCPOptions{})
	defer func() { _ = c.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, _, err = c.Query(ctx)
	require.Error(t, err)
	assert.NotErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, StateFailed, c.State())
}

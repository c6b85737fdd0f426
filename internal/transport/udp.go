package transport

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/woozymasta/gamestatus/internal/protocol/a2s"
	"github.com/woozymasta/gamestatus/internal/protocol/bedrock"
)

// Message is the request kind a UDP session currently expects an answer to.
type Message int

// UDP message kinds.
const (
	MessageInfo Message = iota
	MessagePlayer
	MessageRules
	MessageBedrockPing
)

// String implements fmt.Stringer.
func (m Message) String() string {
	switch m {
	case MessageInfo:
		return "info"
	case MessagePlayer:
		return "player"
	case MessageRules:
		return "rules"
	case MessageBedrockPing:
		return "bedrock-ping"
	default:
		return "unknown"
	}
}

// DefaultBufferSize is the receive buffer used when none is configured.
const DefaultBufferSize = 1400

// UDPOptions tune a UDP session.
type UDPOptions struct {
	BufferSize int
	SplitLimit int
}

// UDPReply is one parsed datagram answer. Exactly one of Response, Pong or Err is set.
type UDPReply struct {
	Response a2s.Response
	Pong     *bedrock.Pong
	Err      error
	Latency  time.Duration
}

// Challenge returns the token when the server asked for a retry with challenge.
func (r UDPReply) Challenge() (a2s.Challenge, bool) {
	c, ok := r.Response.(a2s.Challenge)
	return c, ok
}

// UDPClient is one query session against a single UDP host:port.
type UDPClient struct {
	conn      net.Conn
	assembler *a2s.Assembler
	session[UDPReply]
	bufSize int
	guid    uint64
	message Message
}

// NewUDPClient returns an idle session for addr ("host:port").
func NewUDPClient(addr string, opts UDPOptions) *UDPClient {
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}

	c := &UDPClient{
		assembler: a2s.NewAssembler(opts.SplitLimit),
		bufSize:   opts.BufferSize,
		guid:      randomGUID(),
	}
	c.init(addr, log.With().Str("addr", addr).Str("transport", "udp").Logger())

	return c
}

// Start dials the socket and arms the receive loop.
func (c *UDPClient) Start(ctx context.Context) error {
	if !c.transition(StateConnecting) {
		return ErrClosed
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp", c.addr)
	if err != nil {
		err = classify("dial", c.addr, err)
		c.terminate(StateFailed, err)
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	if !c.transition(StateReady) {
		_ = conn.Close()
		return ErrClosed
	}

	go c.receive(conn)

	return nil
}

// SetMessage switches the kind of answer the session accepts.
func (c *UDPClient) SetMessage(m Message) {
	c.mu.Lock()
	c.message = m
	c.mu.Unlock()
}

// Send writes the request for the current message kind, embedding challenge when set.
// It is a no-op returning ErrNotReady unless the session is ready.
func (c *UDPClient) Send(challenge []byte) error {
	c.mu.Lock()
	state, conn, message := c.state, c.conn, c.message
	c.mu.Unlock()

	if state != StateReady {
		c.log.Warn().Stringer("state", state).Stringer("kind", message).Msg("send on session that is not ready")
		return ErrNotReady
	}

	var packet []byte
	switch message {
	case MessageInfo:
		packet = a2s.BuildInfoRequest(challenge)
	case MessagePlayer:
		packet = a2s.BuildPlayerRequest(challenge)
	case MessageRules:
		packet = a2s.BuildRulesRequest(challenge)
	case MessageBedrockPing:
		packet = bedrock.BuildPing(uint64(time.Now().UnixMilli()), c.guid)
	default:
		return fmt.Errorf("transport: unknown message kind %d", message)
	}

	c.markSent()
	c.log.Trace().Stringer("kind", message).Hex("packet", packet).Msg("send")

	if _, err := conn.Write(packet); err != nil {
		err = classify("write", c.addr, err)
		c.terminate(StateFailed, err)
		return err
	}

	return nil
}

// Exchange switches to m, sends the request and waits for its parsed answer.
// A challenge answer is returned as is; the caller decides whether to retry.
func (c *UDPClient) Exchange(ctx context.Context, m Message, challenge []byte) (UDPReply, error) {
	c.SetMessage(m)
	if err := c.Send(challenge); err != nil {
		return UDPReply{}, err
	}

	reply, err := c.wait(ctx)
	if err != nil {
		return UDPReply{}, err
	}
	if reply.Err != nil {
		return reply, reply.Err
	}

	return reply, nil
}

// ClearFragments drops incomplete split sets.
func (c *UDPClient) ClearFragments() {
	c.mu.Lock()
	c.assembler.Clear()
	c.mu.Unlock()
}

// Close cancels the session and releases the socket.
func (c *UDPClient) Close() error {
	c.terminate(StateCancelled, ErrClosed)

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn != nil {
		return conn.Close()
	}
	return nil
}

// receive reads datagrams until the socket fails or is closed.
func (c *UDPClient) receive(conn net.Conn) {
	buf := make([]byte, c.bufSize)

	for {
		n, err := conn.Read(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				c.terminate(StateCancelled, ErrClosed)
			} else {
				c.terminate(StateFailed, classify("read", c.addr, err))
			}
			return
		}

		if c.State() != StateReady {
			return
		}

		datagram := append([]byte(nil), buf[:n]...)
		c.log.Trace().Hex("datagram", datagram).Msg("recv")

		if reply, ok := c.handle(datagram); ok {
			c.deliver(reply)
		}
	}
}

// handle classifies one datagram. It returns false while fragments are
// pending or when the datagram does not answer the current request.
func (c *UDPClient) handle(datagram []byte) (UDPReply, bool) {
	c.mu.Lock()
	message := c.message
	c.mu.Unlock()

	if message == MessageBedrockPing {
		if !bedrock.IsPong(datagram) {
			c.log.Trace().Msg("non-pong datagram ignored")
			return UDPReply{}, false
		}
		pong, err := bedrock.ParsePong(datagram)
		if err != nil {
			return UDPReply{Err: err}, true
		}
		return UDPReply{Pong: pong, Latency: c.latency()}, true
	}

	packet := datagram
	if a2s.IsSplit(datagram) {
		c.mu.Lock()
		merged, complete, err := c.assembler.Add(datagram)
		c.mu.Unlock()

		if err != nil {
			return UDPReply{Err: err}, true
		}
		if !complete {
			return UDPReply{}, false
		}
		packet = merged
	}

	resp, err := a2s.Parse(packet)
	if err != nil {
		return UDPReply{Err: err}, true
	}

	if _, ok := resp.(a2s.Challenge); ok {
		return UDPReply{Response: resp}, true
	}
	if !answers(message, resp) {
		c.log.Trace().Stringer("kind", message).Msgf("stale %T ignored", resp)
		return UDPReply{}, false
	}

	return UDPReply{Response: resp, Latency: c.latency()}, true
}

// answers reports whether resp is the response type for m.
func answers(m Message, resp a2s.Response) bool {
	switch resp.(type) {
	case *a2s.Info:
		return m == MessageInfo
	case *a2s.PlayerList:
		return m == MessagePlayer
	case *a2s.Rules:
		return m == MessageRules
	}
	return false
}

func randomGUID() uint64 {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return binary.LittleEndian.Uint64(b[:])
}

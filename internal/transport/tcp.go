package transport

import (
	"context"
	"errors"
	"net"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/woozymasta/gamestatus/internal/protocol/java"
)

// TCPOptions tune a Java status session.
type TCPOptions struct {
	// Protocol is the version number sent in the handshake.
	Protocol   int
	BufferSize int
}

// TCPReply is the decoded status answer or the error that prevented it.
type TCPReply struct {
	Status  *java.Status
	Err     error
	Latency time.Duration
}

// TCPClient is one Java status session against a single host:port.
type TCPClient struct {
	conn   net.Conn
	framer java.Framer
	session[TCPReply]
	host     string
	port     uint16
	protocol int
	bufSize  int
}

// NewTCPClient returns an idle session for host:port.
func NewTCPClient(host string, port uint16, opts TCPOptions) *TCPClient {
	if opts.Protocol == 0 {
		opts.Protocol = java.ProtocolVersion
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = 4096
	}

	addr := net.JoinHostPort(host, strconv.Itoa(int(port)))
	c := &TCPClient{
		host:     host,
		port:     port,
		protocol: opts.Protocol,
		bufSize:  opts.BufferSize,
	}
	c.init(addr, log.With().Str("addr", addr).Str("transport", "tcp").Logger())

	return c
}

// Start connects, sends the handshake and status request, and arms the receive loop.
func (c *TCPClient) Start(ctx context.Context) error {
	if !c.transition(StateConnecting) {
		return ErrClosed
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", c.addr)
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

	handshake := java.BuildHandshake(c.host, c.port, c.protocol)
	c.markSent()
	c.log.Trace().Hex("packet", handshake).Msg("send handshake")

	if _, err := conn.Write(append(handshake, java.StatusRequest...)); err != nil {
		err = classify("write", c.addr, err)
		c.terminate(StateFailed, err)
		return err
	}

	return nil
}

// Result waits for the decoded status.
func (c *TCPClient) Result(ctx context.Context) (*java.Status, time.Duration, error) {
	reply, err := c.wait(ctx)
	if err != nil {
		return nil, 0, err
	}
	if reply.Err != nil {
		return nil, 0, reply.Err
	}
	return reply.Status, reply.Latency, nil
}

// Query runs Start and Result under one context.
func (c *TCPClient) Query(ctx context.Context) (*java.Status, time.Duration, error) {
	if err := c.Start(ctx); err != nil {
		return nil, 0, err
	}
	return c.Result(ctx)
}

// Close cancels the session and releases the connection.
func (c *TCPClient) Close() error {
	c.terminate(StateCancelled, ErrClosed)

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn != nil {
		return conn.Close()
	}
	return nil
}

// receive streams bytes into the framer until one full packet is decoded.
func (c *TCPClient) receive(conn net.Conn) {
	buf := make([]byte, c.bufSize)

	for {
		n, err := conn.Read(buf)
		if n > 0 {
			packet, ok, ferr := c.framer.Feed(buf[:n])
			switch {
			case ferr != nil:
				c.deliver(TCPReply{Err: ferr})
				c.terminate(StateFailed, ferr)
				return
			case ok:
				status, derr := java.DecodeStatus(packet)
				c.deliver(TCPReply{Status: status, Err: derr, Latency: c.latency()})
				return
			}
		}

		if err != nil {
			switch {
			case errors.Is(err, net.ErrClosed):
				c.terminate(StateCancelled, ErrClosed)
			default:
				// io.EOF before a full frame also lands here
				c.terminate(StateFailed, classify("read", c.addr, err))
			}
			return
		}
	}
}

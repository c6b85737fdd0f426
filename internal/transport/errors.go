// Package transport drives the game query codecs over UDP and TCP sessions.
//
// A session is owned by exactly one query. It is dialed with Start, used for
// one or more request/response round trips, and released with Close. Every
// wait is bounded by the caller's context; a reply that arrives after the
// caller gave up is discarded.
package transport

import (
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
)

var (
	// ErrNotReady is returned when sending on a session that is not ready.
	ErrNotReady = errors.New("transport: session not ready")

	// ErrClosed is returned when the session terminated while waiting for a reply.
	ErrClosed = errors.New("transport: session closed")
)

// ErrorKind classifies session failures.
type ErrorKind int

// Failure classes.
const (
	KindGeneric ErrorKind = iota
	KindDNS
	KindSystem
)

// String implements fmt.Stringer.
func (k ErrorKind) String() string {
	switch k {
	case KindDNS:
		return "dns"
	case KindSystem:
		return "system"
	default:
		return "generic"
	}
}

// Error is a classified transport failure.
type Error struct {
	Err  error
	Op   string
	Addr string
	Kind ErrorKind
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s (%s): %v", e.Op, e.Addr, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// classify wraps err into an *Error. Context errors pass through untouched.
func classify(op, addr string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, os.ErrDeadlineExceeded) || isContextErr(err) {
		return err
	}

	kind := KindGeneric
	var (
		dnsErr  *net.DNSError
		errno   syscall.Errno
		sysCall *os.SyscallError
	)
	switch {
	case errors.As(err, &dnsErr):
		kind = KindDNS
	case errors.As(err, &errno), errors.As(err, &sysCall):
		kind = KindSystem
	}

	return &Error{Op: op, Addr: addr, Kind: kind, Err: err}
}

package transport

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// State is the lifecycle stage of a session.
type State int32

// Session states.
const (
	StateIdle State = iota
	StateConnecting
	StateReady
	StateFailed
	StateCancelled
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// session holds the state machine and reply channel shared by the UDP and TCP clients.
type session[T any] struct {
	err     error
	log     zerolog.Logger
	sentAt  time.Time
	replies chan T
	done    chan struct{}
	addr    string
	mu      sync.Mutex
	state   State
	once    sync.Once
}

func (s *session[T]) init(addr string, log zerolog.Logger) {
	s.addr = addr
	s.log = log
	s.replies = make(chan T, 1)
	s.done = make(chan struct{})
}

// State returns the current lifecycle stage.
func (s *session[T]) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// transition moves to next unless the session already terminated.
func (s *session[T]) transition(next State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateFailed || s.state == StateCancelled {
		return false
	}
	s.log.Trace().Stringer("from", s.state).Stringer("to", next).Msg("session state")
	s.state = next
	return true
}

// terminate moves to a final state once and wakes every waiter.
func (s *session[T]) terminate(final State, err error) {
	s.once.Do(func() {
		s.mu.Lock()
		if s.state != StateFailed && s.state != StateCancelled {
			s.log.Trace().Stringer("from", s.state).Stringer("to", final).Err(err).Msg("session state")
			s.state = final
		}
		s.err = err
		s.mu.Unlock()
		close(s.done)
	})
}

// markSent records the send timestamp and drops replies to earlier requests.
func (s *session[T]) markSent() {
	s.mu.Lock()
	s.sentAt = time.Now()
	s.mu.Unlock()

	for {
		select {
		case <-s.replies:
		default:
			return
		}
	}
}

// latency returns the time since the last send.
func (s *session[T]) latency() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.sentAt)
}

// deliver hands a parsed reply to the waiter, dropping it if nobody is waiting.
func (s *session[T]) deliver(reply T) {
	select {
	case s.replies <- reply:
	default:
		s.log.Trace().Msg("reply dropped, no waiter")
	}
}

// wait blocks until a reply, session termination or ctx expiry, whichever comes first.
func (s *session[T]) wait(ctx context.Context) (T, error) {
	select {
	case reply := <-s.replies:
		return reply, nil
	case <-s.done:
		// a reply may have raced the teardown
		select {
		case reply := <-s.replies:
			return reply, nil
		default:
		}
		s.mu.Lock()
		err := s.err
		s.mu.Unlock()
		if err == nil {
			err = ErrClosed
		}
		var zero T
		return zero, err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

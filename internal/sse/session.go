// ABOUTME: One SSE client session: bounded inbound queue, outbound queue, lifecycle state.
// ABOUTME: Teardown moves Open -> Closing -> Closed, discards queued output, and is idempotent.

package sse

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/2389/toolgate/internal/dispatch"
)

// ErrUnknownSession is returned for a session id that is missing or no longer open.
var ErrUnknownSession = errors.New("unknown session")

// ErrSessionBusy is returned when a session's inbound queue is full.
var ErrSessionBusy = errors.New("session busy")

// SessionState is the lifecycle position of a session.
type SessionState int32

const (
	SessionOpen SessionState = iota
	SessionClosing
	SessionClosed
)

func (s SessionState) String() string {
	switch s {
	case SessionOpen:
		return "Open"
	case SessionClosing:
		return "Closing"
	case SessionClosed:
		return "Closed"
	default:
		return fmt.Sprintf("SessionState(%d)", int32(s))
	}
}

// Session is owned by the Manager. The stream handler reads Outbound until
// Done is closed.
type Session struct {
	ID        string
	CreatedAt time.Time

	// mu orders enqueue against teardown so an accepted request is never
	// dropped by a concurrent close.
	mu         sync.Mutex
	state      atomic.Int32
	lastActive atomic.Int64 // unix nanos

	inbound  chan dispatch.Request
	outbound chan dispatch.Response

	ctx       context.Context // cancelled at teardown; handed to handlers
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

func newSession(id string, queueSize int) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	now := time.Now()
	s := &Session{
		ID:        id,
		CreatedAt: now,
		inbound:   make(chan dispatch.Request, queueSize),
		outbound:  make(chan dispatch.Response, queueSize),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	s.lastActive.Store(now.UnixNano())
	return s
}

// State reports the session's lifecycle state.
func (s *Session) State() SessionState {
	return SessionState(s.state.Load())
}

// Done is closed when the session is torn down.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Outbound delivers responses in the order their requests were accepted.
func (s *Session) Outbound() <-chan dispatch.Response {
	return s.outbound
}

// LastActive is the time of the most recent accepted request or delivered response.
func (s *Session) LastActive() time.Time {
	return time.Unix(0, s.lastActive.Load())
}

func (s *Session) touch() {
	s.lastActive.Store(time.Now().UnixNano())
}

// enqueue accepts a request without blocking.
func (s *Session) enqueue(req dispatch.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() != SessionOpen {
		return ErrUnknownSession
	}
	select {
	case s.inbound <- req:
		s.touch()
		return nil
	default:
		return ErrSessionBusy
	}
}

// close tears the session down and returns how many queued messages were discarded.
func (s *Session) close() (discarded int) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.state.Store(int32(SessionClosing))
		s.mu.Unlock()

		s.cancel()
		close(s.done)

		for {
			select {
			case <-s.outbound:
				discarded++
				continue
			case <-s.inbound:
				discarded++
				continue
			default:
			}
			break
		}
		s.state.Store(int32(SessionClosed))
	})
	return discarded
}

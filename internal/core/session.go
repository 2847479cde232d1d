package core

import (
	"sync"

	"github.com/google/uuid"

	"github.com/dtregea/roomchat-server/internal/proto"
)

// SessionState is the phase of the per-connection protocol state machine.
type SessionState int

const (
	// StateConnecting is the initial state before the transport handshake
	// completes and the session is attached to the hub.
	StateConnecting SessionState = iota
	// StateUnauthenticated accepts only login and register frames.
	StateUnauthenticated
	// StateAuthenticated accepts chat, change_room and room_status frames.
	StateAuthenticated
	// StateTerminated is terminal; cleanup has run.
	StateTerminated
)

func (s SessionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

const outboxSize = 16

// Session is one client connection as seen by the core. Identity is the
// opaque ID, never the underlying transport. Username is empty until
// authenticated. The state and room fields are guarded by the hub mutex.
type Session struct {
	ID       string
	Username string

	state SessionState
	room  *Room

	// Outbox is the buffered delivery channel drained by the transport
	// write loop. Broadcast never blocks on a slow recipient.
	Outbox chan proto.Frame

	done      chan struct{}
	closeOnce sync.Once
}

// NewSession constructs a session in the Connecting state.
func NewSession() *Session {
	return &Session{
		ID:     uuid.NewString(),
		state:  StateConnecting,
		Outbox: make(chan proto.Frame, outboxSize),
		done:   make(chan struct{}),
	}
}

// Done is closed when the session must release its transport, either because
// the hub kicked it or the server is shutting down.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// terminate signals the transport to close. Safe to call more than once.
func (s *Session) terminate() {
	s.closeOnce.Do(func() { close(s.done) })
}

// deliver enqueues a frame without blocking. Returns false when the outbox is
// full or the session is already closing; the caller logs and moves on.
func (s *Session) deliver(f proto.Frame) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.Outbox <- f:
		return true
	default:
		return false
	}
}

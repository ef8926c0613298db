package chat

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Handle identifies one live connection for its whole lifetime.
type Handle string

// SessionID is assigned when a session is registered.
type SessionID string

// Session is the engine side of one connection. Transports drain Events and
// hand the session back to the Engine for every inbound request.
//
// Mutable fields other than state are guarded by the owning Engine's mutex.
type Session struct {
	handle      Handle
	id          SessionID
	identity    Identity
	connectedAt time.Time
	state       atomic.Int32
	outbound    chan Event

	// overflowed is set once the outbound queue rejected an event; the session
	// is then queued for disconnect.
	overflowed  bool
	typing      bool
	typingGen   uint64
	typingTimer *time.Timer
}

func newSession(queueSize int, connectedAt time.Time) *Session {
	s := &Session{
		handle:      Handle(uuid.NewString()),
		connectedAt: connectedAt,
		outbound:    make(chan Event, queueSize),
	}
	s.state.Store(int32(StateConnecting))
	return s
}

// Handle returns the connection handle.
func (s *Session) Handle() Handle { return s.handle }

// ID returns the registry-assigned id, empty until the session joins.
func (s *Session) ID() SessionID { return s.id }

// Identity returns the verified identity.
func (s *Session) Identity() Identity { return s.identity }

// ConnectedAt returns when the connection was accepted.
func (s *Session) ConnectedAt() time.Time { return s.connectedAt }

// State returns the current lifecycle state.
func (s *Session) State() State { return State(s.state.Load()) }

// Events returns the outbound queue. It is closed when the session reaches
// StateDisconnected.
func (s *Session) Events() <-chan Event { return s.outbound }

func (s *Session) setState(st State) { s.state.Store(int32(st)) }

func (s *Session) stopTyping() {
	if s.typingTimer != nil {
		s.typingTimer.Stop()
		s.typingTimer = nil
	}
	s.typingGen++
}

package chat

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Registry maps live connection handles to joined sessions. It is the single
// source of truth for who is online.
//
// Registry is not safe for concurrent use; the Engine serializes access.
type Registry struct {
	sessions map[Handle]*Session
	order    []Handle
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[Handle]*Session)}
}

// Register adds s under its handle and returns a fresh session id.
func (r *Registry) Register(s *Session) (SessionID, error) {
	if _, ok := r.sessions[s.handle]; ok {
		return "", fmt.Errorf("%w: %s", ErrDuplicateConnection, s.handle)
	}
	id := SessionID(uuid.NewString())
	r.sessions[s.handle] = s
	r.order = append(r.order, s.handle)
	return id, nil
}

// Deregister removes the session registered under h and returns its identity.
func (r *Registry) Deregister(h Handle) (Identity, error) {
	s, ok := r.sessions[h]
	if !ok {
		return Identity{}, fmt.Errorf("%w: %s", ErrUnknownConnection, h)
	}
	delete(r.sessions, h)
	r.order = lo.Without(r.order, h)
	return s.identity, nil
}

// Lookup returns the session registered under h.
func (r *Registry) Lookup(h Handle) (*Session, bool) {
	s, ok := r.sessions[h]
	return s, ok
}

// ListOnline returns the identity of every registered session in
// registration order. An identity with several sessions appears once per
// session.
func (r *Registry) ListOnline() []Identity {
	return lo.Map(r.order, func(h Handle, _ int) Identity {
		return r.sessions[h].identity
	})
}

// Sessions returns the registered sessions in registration order.
func (r *Registry) Sessions() []*Session {
	return lo.Map(r.order, func(h Handle, _ int) *Session {
		return r.sessions[h]
	})
}

// Count returns the number of registered sessions.
func (r *Registry) Count() int {
	return len(r.sessions)
}

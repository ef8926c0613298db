package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/lo"
)

const (
	DefaultHistoryCapacity = 1000
	DefaultJoinHistory     = 20
	DefaultHistoryLimit    = 50
	DefaultQueueSize       = 256
	DefaultTypingTimeout   = 5 * time.Second
)

// Config tunes an Engine. Zero values fall back to the defaults above, except
// TypingTimeout where zero disables server-side typing expiry.
type Config struct {
	HistoryCapacity int
	JoinHistory     int
	HistoryLimit    int
	QueueSize       int
	TypingTimeout   time.Duration
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		HistoryCapacity: DefaultHistoryCapacity,
		JoinHistory:     DefaultJoinHistory,
		HistoryLimit:    DefaultHistoryLimit,
		QueueSize:       DefaultQueueSize,
		TypingTimeout:   DefaultTypingTimeout,
	}
}

func sanitizeConfig(cfg Config) Config {
	if cfg.HistoryCapacity <= 0 {
		cfg.HistoryCapacity = DefaultHistoryCapacity
	}
	if cfg.JoinHistory <= 0 {
		cfg.JoinHistory = DefaultJoinHistory
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = DefaultHistoryLimit
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.TypingTimeout < 0 {
		cfg.TypingTimeout = 0
	}
	return cfg
}

// Option customizes an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithObserver installs an instrumentation hook.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// WithClock replaces time.Now for timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// Engine is the shared core state of the chat: the session registry, the
// message history and the set of live connections. All mutations and every
// fan-out run under a single mutex, which gives one serialization order for
// the whole room.
type Engine struct {
	mu       sync.Mutex
	verifier Verifier
	cfg      Config
	registry *Registry
	history  *History
	ids      sequence
	live     map[Handle]*Session
	pending  []*Session
	running  bool
	stamp    time.Time

	log      *slog.Logger
	observer Observer
	now      func() time.Time
}

// NewEngine builds a stopped engine. Call Start before accepting connections.
func NewEngine(verifier Verifier, cfg Config, opts ...Option) *Engine {
	cfg = sanitizeConfig(cfg)
	e := &Engine{
		verifier: verifier,
		cfg:      cfg,
		registry: NewRegistry(),
		history:  NewHistory(cfg.HistoryCapacity),
		live:     make(map[Handle]*Session),
		log:      slog.Default(),
		observer: nopObserver{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the effective configuration.
func (e *Engine) Config() Config { return e.cfg }

// Start makes the engine accept connections.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.running = true
	e.log.Info("Chat engine started", "history_capacity", e.cfg.HistoryCapacity)
}

// Stop closes every live session without departure broadcasts and rejects
// further connections. History is kept.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return
	}
	e.running = false

	closed := 0
	for h, s := range e.live {
		if s.State() == StateJoined {
			if _, err := e.registry.Deregister(h); err != nil {
				e.log.Error("Registry out of sync during stop", "handle", h, "err", err)
			}
		}
		s.stopTyping()
		s.setState(StateDisconnected)
		close(s.outbound)
		delete(e.live, h)
		closed++
	}
	e.pending = nil
	e.observer.OnlineChanged(e.registry.Count())
	e.log.Info("Chat engine stopped", "closed_sessions", closed)
}

// Connect authenticates a new connection and returns its session in
// StateAuthenticated. A failed verification returns an error wrapping
// ErrAuthRequired or ErrInvalidToken and leaves no trace in the engine.
func (e *Engine) Connect(ctx context.Context, credential string) (*Session, error) {
	s := newSession(e.cfg.QueueSize, e.now().UTC())

	identity, err := e.verify(ctx, credential)
	if err != nil {
		s.setState(StateDisconnected)
		e.observer.ConnectionRejected(err)
		e.log.Info("Connection rejected", "handle", s.handle, "err", err)
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		s.setState(StateDisconnected)
		return nil, ErrNotRunning
	}
	s.identity = identity
	s.setState(StateAuthenticated)
	e.live[s.handle] = s
	e.log.Debug("Connection authenticated", "handle", s.handle, "user", identity.Name)
	return s, nil
}

func (e *Engine) verify(ctx context.Context, credential string) (Identity, error) {
	if credential == "" {
		return Identity{}, ErrAuthRequired
	}
	identity, err := e.verifier.Verify(ctx, credential)
	if err != nil {
		if errors.Is(err, ErrAuthRequired) || errors.Is(err, ErrInvalidToken) {
			return Identity{}, err
		}
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if identity.ID == "" {
		return Identity{}, fmt.Errorf("%w: identity has no id", ErrInvalidToken)
	}
	return identity, nil
}

// Join registers an authenticated session, announces it and sends it the
// welcome and history snapshot.
func (e *Engine) Join(s *Session) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch s.State() {
	case StateAuthenticated:
	case StateJoined:
		return ErrAlreadyJoined
	default:
		return fmt.Errorf("%w: %s", ErrUnknownConnection, s.handle)
	}

	id, err := e.registry.Register(s)
	if err != nil {
		e.log.Error("Session registration failed", "handle", s.handle, "err", err)
		return err
	}
	s.id = id
	s.setState(StateJoined)
	e.log.Info("Session joined", "user", s.identity.Name, "session", id, "online", e.registry.Count())

	e.announceArrivalLocked(s)
	e.welcomeLocked(s)
	e.reapLocked()
	return nil
}

// Disconnect moves s to StateDisconnected and closes its event queue. A joined
// session is deregistered and its departure announced. Calling Disconnect
// again is a no-op.
func (e *Engine) Disconnect(s *Session) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.disconnectLocked(s)
	e.reapLocked()
}

func (e *Engine) disconnectLocked(s *Session) {
	state := s.State()
	if state == StateDisconnected {
		return
	}
	wasTyping := s.typing
	s.typing = false
	s.stopTyping()
	s.setState(StateDisconnected)
	delete(e.live, s.handle)
	close(s.outbound)

	if state != StateJoined {
		return
	}
	identity, err := e.registry.Deregister(s.handle)
	if errors.Is(err, ErrUnknownConnection) {
		e.log.Debug("Session already deregistered", "handle", s.handle)
		return
	}
	e.log.Info("Session left", "user", identity.Name, "session", s.id, "online", e.registry.Count())
	e.announceDepartureLocked(s, identity, wasTyping)
}

// Count returns the number of joined sessions.
func (e *Engine) Count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registry.Count()
}

// Online returns the identity of every joined session in join order.
func (e *Engine) Online() []Identity {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registry.ListOnline()
}

// Presence returns the distinct identities with at least one joined session.
func (e *Engine) Presence() []Identity {
	return lo.UniqBy(e.Online(), func(id Identity) string { return id.ID })
}

// RecentHistory returns up to n of the newest messages, oldest first. A
// non-positive n selects the configured default limit.
func (e *Engine) RecentHistory(n int) []Message {
	if n <= 0 {
		n = e.cfg.HistoryLimit
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.history.Recent(n)
}

// deliverLocked enqueues ev for s without blocking. A full queue marks s for
// disconnect once the current operation has finished its fan-out.
func (e *Engine) deliverLocked(s *Session, ev Event) {
	if s.overflowed || s.State() == StateDisconnected {
		return
	}
	select {
	case s.outbound <- ev:
	default:
		s.overflowed = true
		e.pending = append(e.pending, s)
		e.observer.EventDropped(ev.Kind)
		e.log.Warn("Session removed due to full send queue", "user", s.identity.Name, "session", s.id, "event", ev.Kind)
	}
}

// broadcastLocked delivers ev to every joined session except skip.
func (e *Engine) broadcastLocked(ev Event, skip *Session) {
	for _, s := range e.registry.Sessions() {
		if s == skip {
			continue
		}
		e.deliverLocked(s, ev)
	}
}

// reapLocked disconnects sessions whose queue overflowed. Departures may
// overflow further sessions, so it loops until nothing is pending.
func (e *Engine) reapLocked() {
	for len(e.pending) > 0 {
		s := e.pending[0]
		e.pending = e.pending[1:]
		e.disconnectLocked(s)
	}
}

// stampLocked returns a UTC timestamp that never goes backwards.
func (e *Engine) stampLocked() time.Time {
	t := e.now().UTC()
	if t.Before(e.stamp) {
		t = e.stamp
	}
	e.stamp = t
	return t
}

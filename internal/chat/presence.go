package chat

import "time"

func (e *Engine) announceArrivalLocked(s *Session) {
	e.broadcastLocked(Event{Kind: EventUserOnline, Data: presenceOf(s.identity)}, nil)
	e.broadcastCountLocked()
}

func (e *Engine) welcomeLocked(s *Session) {
	e.deliverLocked(s, Event{Kind: EventWelcome, Data: Welcome{
		Message:   "Welcome to the chat, " + s.identity.Name + "!",
		Timestamp: e.now().UTC(),
	}})

	joined := presenceOf(s.identity)
	joined.Message = s.identity.Name + " joined the chat"
	e.broadcastLocked(Event{Kind: EventUserJoined, Data: joined}, s)

	e.deliverLocked(s, Event{Kind: EventChatHistory, Data: e.history.Recent(e.cfg.JoinHistory)})
}

func (e *Engine) announceDepartureLocked(s *Session, identity Identity, wasTyping bool) {
	if wasTyping {
		e.broadcastLocked(Event{Kind: EventUserTyping, Data: Typing{UserID: identity.ID, Name: identity.Name}}, s)
	}
	e.broadcastLocked(Event{Kind: EventUserOffline, Data: presenceOf(identity)}, s)
	e.broadcastCountLocked()
}

func (e *Engine) broadcastCountLocked() {
	count := e.registry.Count()
	e.broadcastLocked(Event{Kind: EventOnlineCount, Data: count}, nil)
	e.observer.OnlineChanged(count)
}

// SetTyping relays the typing state of s to every other joined session. With
// a TypingTimeout configured, a true state is cleared automatically when no
// update arrives in time.
func (e *Engine) SetTyping(s *Session, isTyping bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s.State() != StateJoined {
		return ErrNotJoined
	}

	s.stopTyping()
	s.typing = isTyping
	if isTyping && e.cfg.TypingTimeout > 0 {
		gen := s.typingGen
		s.typingTimer = time.AfterFunc(e.cfg.TypingTimeout, func() {
			e.expireTyping(s, gen)
		})
	}
	e.relayTypingLocked(s, isTyping)
	e.reapLocked()
	return nil
}

func (e *Engine) expireTyping(s *Session, gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s.State() != StateJoined || !s.typing || s.typingGen != gen {
		return
	}
	s.typing = false
	s.typingTimer = nil
	e.log.Debug("Typing state expired", "user", s.identity.Name, "session", s.id)
	e.relayTypingLocked(s, false)
	e.reapLocked()
}

func (e *Engine) relayTypingLocked(s *Session, isTyping bool) {
	e.broadcastLocked(Event{Kind: EventUserTyping, Data: Typing{
		UserID:   s.identity.ID,
		Name:     s.identity.Name,
		IsTyping: isTyping,
	}}, s)
}

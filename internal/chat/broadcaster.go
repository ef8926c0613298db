package chat

// SendMessage stores text as a new message from s and broadcasts it to every
// joined session, the sender included.
//
// The caller must reject blank text; the engine stores text verbatim.
func (e *Engine) SendMessage(s *Session, text string) (Message, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s.State() != StateJoined {
		return Message{}, ErrNotJoined
	}

	msg := Message{
		ID:         e.ids.next(),
		AuthorID:   s.identity.ID,
		AuthorName: s.identity.Name,
		Text:       text,
		CreatedAt:  e.stampLocked(),
	}
	e.history.Append(msg)
	e.observer.MessageStored(msg)
	e.log.Debug("Message stored", "id", msg.ID, "user", msg.AuthorName, "history", e.history.Len())

	e.broadcastLocked(Event{Kind: EventNewMessage, Data: msg}, nil)
	e.reapLocked()
	return msg, nil
}

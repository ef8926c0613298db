package chat

import "time"

// EventKind names an outbound event. The values double as wire event names.
type EventKind string

const (
	EventWelcome     EventKind = "welcome"
	EventChatHistory EventKind = "chat-history"
	EventUserOnline  EventKind = "user-online"
	EventUserJoined  EventKind = "user-joined"
	EventNewMessage  EventKind = "new-message"
	EventOnlineCount EventKind = "online-count"
	EventUserTyping  EventKind = "user-typing"
	EventUserOffline EventKind = "user-offline"
)

// Event is one item of a session's outbound queue.
//
// Data holds one of Welcome, []Message, Presence, Message, int or Typing
// depending on Kind.
type Event struct {
	Kind EventKind
	Data any
}

// Message is an immutable chat message.
type Message struct {
	ID         string    `json:"id"`
	AuthorID   string    `json:"userId"`
	AuthorName string    `json:"userName"`
	Text       string    `json:"message"`
	CreatedAt  time.Time `json:"timestamp"`
}

// Welcome is sent privately to a session when it joins.
type Welcome struct {
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Presence carries user-online, user-joined and user-offline payloads.
type Presence struct {
	UserID  string `json:"userId"`
	Name    string `json:"name"`
	Message string `json:"message,omitempty"`
}

// Typing is the payload of user-typing.
type Typing struct {
	UserID   string `json:"userId"`
	Name     string `json:"name"`
	IsTyping bool   `json:"isTyping"`
}

func presenceOf(id Identity) Presence {
	return Presence{UserID: id.ID, Name: id.Name}
}

// Package chat implements the session, presence and broadcast engine of the
// livechat service.
//
// A single Engine owns the session registry and the bounded message history.
// Every state change and every fan-out happens under one mutex, so all
// connected sessions observe events in the same order. Transports attach to
// the engine through Session values: they read outbound events from
// Session.Events and feed inbound requests to Join, SendMessage, SetTyping and
// Disconnect.
package chat

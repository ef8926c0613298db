// Package server implements the HTTP and WebSocket boundary of livechat.
//
// It authenticates incoming WebSocket handshakes, attaches each accepted
// connection to a chat.Session, and translates JSON frames to and from the
// engine. The implementation is organized into specialized files for
// configuration, origin checks, per-connection clients, HTTP handlers and
// server lifecycle.
package server

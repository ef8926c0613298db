// Package server exposes HTTP handlers, including the authenticated WebSocket
// upgrade, health checks and the read-only room API.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/Tyrowin/livechat/internal/chat"
)

// WebSocketHandler authenticates the handshake before upgrading. The origin is
// checked first, then the credential; a refused handshake never reaches the
// room.
func (s *Server) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	if !s.origins.check(r) {
		http.Error(w, "Forbidden origin", http.StatusForbidden)
		return
	}

	session, err := s.engine.Connect(r.Context(), credential(r))
	if err != nil {
		writeAuthError(w, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("WebSocket upgrade failed", "addr", r.RemoteAddr, "err", err)
		s.engine.Disconnect(session)
		return
	}

	identity := session.Identity()
	s.log.Info("Client connected", "addr", r.RemoteAddr, "user", identity.Name, "userId", identity.ID)
	if !s.hub.serve(NewClient(conn, s.engine, session, r.RemoteAddr, s.cfg, s.log)) {
		s.log.Info("Client refused during shutdown", "addr", r.RemoteAddr)
	}
}

// HealthHandler provides a simple health check endpoint that returns server status.
// It responds with a plain text message indicating the server is running.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "livechat server is running!")
}

// MessagesHandler returns the most recent messages, oldest first. The limit
// query parameter defaults to the engine's history limit.
func (s *Server) MessagesHandler(w http.ResponseWriter, r *http.Request, _ chat.Identity) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	writeJSON(w, http.StatusOK, s.engine.RecentHistory(limit))
}

// OnlineUsersHandler returns the distinct identities currently joined.
func (s *Server) OnlineUsersHandler(w http.ResponseWriter, _ *http.Request, _ chat.Identity) {
	writeJSON(w, http.StatusOK, s.engine.Presence())
}

type identityHandler func(http.ResponseWriter, *http.Request, chat.Identity)

// authenticated restricts next to GET requests carrying a valid credential.
func (s *Server) authenticated(next identityHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		cred := credential(r)
		if cred == "" {
			writeAuthError(w, chat.ErrAuthRequired)
			return
		}
		identity, err := s.verifier.Verify(r.Context(), cred)
		if err != nil {
			writeAuthError(w, fmt.Errorf("%w: %w", chat.ErrInvalidToken, err))
			return
		}
		next(w, r, identity)
	}
}

// credential extracts a bearer token from the Authorization header, falling
// back to the token query parameter for browser WebSocket clients.
func credential(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return r.URL.Query().Get("token")
}

func writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chat.ErrAuthRequired):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
	case errors.Is(err, chat.ErrInvalidToken):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "invalid token"})
	case errors.Is(err, chat.ErrNotRunning):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "server shutting down"})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

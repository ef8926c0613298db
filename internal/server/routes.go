// Package server wires HTTP handlers into a ServeMux for the livechat
// application via routing helpers.
package server

import "net/http"

// Routes configures and returns an HTTP ServeMux with all application routes.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", HealthHandler)
	mux.HandleFunc("/ws", s.WebSocketHandler)
	mux.HandleFunc("/api/messages", s.authenticated(s.MessagesHandler))
	mux.HandleFunc("/api/online-users", s.authenticated(s.OnlineUsersHandler))
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics)
	}
	return mux
}

// Package testhelpers provides common utilities and helper functions for testing the livechat server.
//
// It builds fully wired servers backed by a real engine and JWT verifier, issues
// tokens, and speaks the JSON envelope protocol over WebSocket connections.
package testhelpers

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/livechat/internal/auth"
	"github.com/Tyrowin/livechat/internal/chat"
	"github.com/Tyrowin/livechat/internal/server"
)

const (
	// TestOrigin is allowed by every server built here.
	TestOrigin = "http://localhost:8080"
	// TestSecret signs test tokens.
	TestSecret = "integration-secret"
	// TestIssuer is the issuer test tokens carry.
	TestIssuer = "livechat-test"
	readWait   = 2 * time.Second
)

// Frame is an outbound envelope with its data left encoded.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Decode unmarshals the frame data into v.
func (f Frame) Decode(t *testing.T, v any) {
	t.Helper()
	if err := json.Unmarshal(f.Data, v); err != nil {
		t.Fatalf("Failed to decode %s data %s: %v", f.Event, f.Data, err)
	}
}

// ChatServer is a running test server with its collaborators exposed.
type ChatServer struct {
	HTTP     *httptest.Server
	Server   *server.Server
	Engine   *chat.Engine
	Verifier *auth.JWTVerifier
	Config   *server.Config
}

// NewChatServer starts a server on a random port. customize may adjust the
// configuration before anything is built. The server is torn down on cleanup.
func NewChatServer(t *testing.T, customize func(cfg *server.Config)) *ChatServer {
	t.Helper()

	cfg := server.NewConfig()
	cfg.JWTSecret = TestSecret
	cfg.JWTIssuer = TestIssuer
	cfg.AllowedOrigins = TestOrigin
	if customize != nil {
		customize(cfg)
	}

	verifier := auth.NewJWTVerifier([]byte(cfg.JWTSecret), cfg.JWTIssuer)
	engine := chat.NewEngine(verifier, cfg.Engine())
	engine.Start()
	srv := server.New(cfg, engine, verifier)
	ts := httptest.NewServer(srv.Routes())

	t.Cleanup(func() {
		ts.Close()
		_ = srv.Shutdown(2 * time.Second)
	})

	return &ChatServer{HTTP: ts, Server: srv, Engine: engine, Verifier: verifier, Config: cfg}
}

// Token issues a valid token for the given user.
func (c *ChatServer) Token(t *testing.T, id, name string) string {
	t.Helper()
	token, err := c.Verifier.Issue(id, name, "", time.Hour)
	if err != nil {
		t.Fatalf("Failed to issue token: %v", err)
	}
	return token
}

// WSURL returns the WebSocket endpoint URL.
func (c *ChatServer) WSURL() string {
	return "ws" + strings.TrimPrefix(c.HTTP.URL, "http") + "/ws"
}

// Dial opens a WebSocket with the given bearer token and origin. An empty
// token sends no Authorization header.
func (c *ChatServer) Dial(token, origin string) (*websocket.Conn, *http.Response, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	headers := http.Header{}
	if origin != "" {
		headers.Set("Origin", origin)
	}
	if token != "" {
		headers.Set("Authorization", "Bearer "+token)
	}
	return dialer.Dial(c.WSURL(), headers)
}

// Connect dials as the given user and fails the test on error.
func (c *ChatServer) Connect(t *testing.T, id, name string) *websocket.Conn {
	t.Helper()
	conn, resp, err := c.Dial(c.Token(t, id, name), TestOrigin)
	if resp != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		t.Fatalf("Failed to connect as %s: %v", name, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// Join connects as the given user, sends join-chat, and consumes the frames
// every joiner receives about itself.
func (c *ChatServer) Join(t *testing.T, id, name string) *websocket.Conn {
	t.Helper()
	conn := c.Connect(t, id, name)
	Send(t, conn, "join-chat", nil)
	for _, event := range []string{"user-online", "online-count", "welcome", "chat-history"} {
		ExpectEvent(t, conn, event)
	}
	return conn
}

// Send writes one envelope.
func Send(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	msg := map[string]any{"event": event}
	if data != nil {
		msg["data"] = data
	}
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("Failed to send %s: %v", event, err)
	}
}

// ReadFrame reads the next envelope, failing after a short deadline.
func ReadFrame(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(readWait)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}
	var frame Frame
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("Failed to read frame: %v", err)
	}
	return frame
}

// ExpectEvent reads the next envelope and checks its event name.
func ExpectEvent(t *testing.T, conn *websocket.Conn, event string) Frame {
	t.Helper()
	frame := ReadFrame(t, conn)
	if frame.Event != event {
		t.Fatalf("Expected %s, got %s %s", event, frame.Event, frame.Data)
	}
	return frame
}

// SkipUntil discards envelopes until one named event arrives.
func SkipUntil(t *testing.T, conn *websocket.Conn, event string) Frame {
	t.Helper()
	for {
		frame := ReadFrame(t, conn)
		if frame.Event == event {
			return frame
		}
	}
}

// ExpectNoFrame asserts nothing arrives within timeout.
func ExpectNoFrame(t *testing.T, conn *websocket.Conn, timeout time.Duration) {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}
	_, data, err := conn.ReadMessage()
	if err == nil {
		t.Fatalf("Expected no frame, got %s", data)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return
	}
	t.Fatalf("Unexpected error while waiting for absence of frame: %v", err)
}

// ExpectClosed asserts the server ends the connection within timeout.
func ExpectClosed(t *testing.T, conn *websocket.Conn, timeout time.Duration) {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				t.Fatalf("Connection still open after %s", timeout)
			}
			return
		}
	}
}

// Eventually polls cond until it holds or timeout elapses.
func Eventually(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("Condition not met within %s: %s", timeout, msg)
}

// MakeRequest creates and executes an HTTP request with an optional bearer
// token, returning the response.
func MakeRequest(t *testing.T, method, url, token string) *http.Response {
	t.Helper()

	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	req, err := http.NewRequest(method, url, http.NoBody)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}

	return resp
}

// AssertStatusCode checks if the HTTP response has the expected status code.
func AssertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("Expected status code %d, got %d", expected, resp.StatusCode)
	}
}

// AssertContentType checks if the HTTP response has the expected Content-Type header.
func AssertContentType(t *testing.T, resp *http.Response, expected string) {
	t.Helper()
	contentType := resp.Header.Get("Content-Type")
	if contentType != expected {
		t.Errorf("Expected content type %s, got %s", expected, contentType)
	}
}

// Package server manages individual WebSocket clients, handling read/write
// pumps, rate limiting, and lifecycle control for each connection.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/Tyrowin/livechat/internal/chat"
)

const (
	pongWait     = 60 * time.Second
	pingPeriod   = 54 * time.Second
	writeWait    = 10 * time.Second
	replyBacklog = 16
)

// Client binds one WebSocket connection to its chat session. The read pump
// feeds inbound frames to the engine; the write pump drains the session's
// event queue and the client's own error replies.
type Client struct {
	conn           *websocket.Conn
	engine         *chat.Engine
	session        *chat.Session
	replies        chan Outbound
	addr           string
	maxMessageSize int64
	rateLimiter    *rate.Limiter
	rateLimit      RateLimitConfig
	log            *slog.Logger
}

// NewClient creates a Client for an authenticated session.
func NewClient(conn *websocket.Conn, engine *chat.Engine, session *chat.Session, addr string, cfg *Config, log *slog.Logger) *Client {
	if conn != nil {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}
	limit := cfg.RateLimit()

	return &Client{
		conn:           conn,
		engine:         engine,
		session:        session,
		replies:        make(chan Outbound, replyBacklog),
		addr:           addr,
		maxMessageSize: cfg.MaxMessageSize,
		rateLimiter:    newRateLimiter(limit.Burst, limit.RefillInterval),
		rateLimit:      limit,
		log:            log.With("addr", addr, "session", session.Handle()),
	}
}

// Serve runs both pumps and returns once the connection is gone and the
// session disconnected.
func (c *Client) Serve() {
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.writePump()
	}()
	c.readPump()
	<-done
}

// setupReadConnection configures read deadlines and pong handler for the WebSocket connection
func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.log.Warn("Error setting initial read deadline", "err", err)
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			c.log.Warn("Error setting read deadline in pong handler", "err", err)
		}
		return nil
	})
}

// handleReadError logs the cause of a failed read. Every read error ends the
// read loop.
func (c *Client) handleReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.log.Warn("Message exceeded maximum size", "limit", c.maxMessageSize)
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		c.log.Info("Client disconnected", "err", err)
	case errors.Is(err, io.EOF) || isExpectedCloseError(err):
		c.log.Info("Client connection closed", "err", err)
	case websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseMessageTooBig):
		c.log.Warn("Unexpected WebSocket error", "err", err)
	default:
		c.log.Warn("WebSocket read error", "err", err)
	}
}

// checkRateLimit reports whether another chat message may be sent now.
func (c *Client) checkRateLimit() bool {
	if c.rateLimiter != nil && !c.rateLimiter.Allow() {
		c.log.Warn("Rate limit exceeded; discarding message",
			"burst", c.rateLimit.Burst, "interval", c.rateLimit.RefillInterval)
		return false
	}
	return true
}

// processMessage decodes one inbound frame and dispatches it to the engine.
func (c *Client) processMessage(raw []byte) {
	var in Inbound
	if err := json.Unmarshal(raw, &in); err != nil {
		c.log.Debug("Invalid frame", "err", err)
		c.reject(codeInvalidMessage, "frame is not a valid JSON envelope")
		return
	}

	var err error
	switch in.Event {
	case eventJoinChat:
		err = c.engine.Join(c.session)
	case eventSendMessage:
		err = c.sendMessage(in.Data)
	case eventTyping:
		err = c.setTyping(in.Data)
	default:
		c.reject(codeUnknownEvent, "unknown event "+in.Event)
		return
	}
	c.handleEngineError(err)
}

func (c *Client) sendMessage(data json.RawMessage) error {
	if !c.checkRateLimit() {
		c.reject(codeRateLimited, "too many messages")
		return nil
	}

	var payload SendMessagePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		c.reject(codeInvalidMessage, "send-message requires {\"message\": string}")
		return nil
	}
	if err := validate.Struct(payload); err != nil {
		c.reject(codeEmptyMessage, "message must not be empty")
		return nil
	}

	_, err := c.engine.SendMessage(c.session, payload.Message)
	return err
}

func (c *Client) setTyping(data json.RawMessage) error {
	var isTyping *bool
	if err := json.Unmarshal(data, &isTyping); err != nil || isTyping == nil {
		c.reject(codeInvalidMessage, "typing requires a boolean")
		return nil
	}
	return c.engine.SetTyping(c.session, *isTyping)
}

func (c *Client) handleEngineError(err error) {
	switch {
	case err == nil:
	case errors.Is(err, chat.ErrNotJoined):
		c.reject(codeNotJoined, "join-chat first")
	case errors.Is(err, chat.ErrAlreadyJoined):
		c.reject(codeAlreadyJoined, "already joined")
	case errors.Is(err, chat.ErrUnknownConnection):
		// the session is already gone; the write pump is shutting down
	default:
		c.log.Error("Engine rejected request", "err", err)
		c.reject(codeInternal, "request failed")
	}
}

// reject queues an error frame for this client only. Replies beyond the
// backlog are dropped.
func (c *Client) reject(code, message string) {
	select {
	case c.replies <- Outbound{Event: eventError, Data: ErrorPayload{Code: code, Message: message}}:
	default:
		c.log.Warn("Dropping error reply", "code", code)
	}
}

func (c *Client) readPump() {
	defer func() {
		c.engine.Disconnect(c.session)
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.log.Warn("Error closing connection in readPump", "err", err)
		}
	}()

	c.setupReadConnection()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.handleReadError(err)
			return
		}
		c.processMessage(raw)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.closeConnection()
	}()

	for c.processWriteEvent(ticker) {
	}
}

// processWriteEvent waits for the next write event and returns false when the
// pump should stop processing.
func (c *Client) processWriteEvent(ticker *time.Ticker) bool {
	select {
	case ev, ok := <-c.session.Events():
		return c.writeEvent(ev, ok)
	case reply := <-c.replies:
		if !c.flushEvents() {
			return false
		}
		return c.writeFrame(reply)
	case <-ticker.C:
		return c.handlePing()
	}
}

// flushEvents writes the events already queued on the session. A reply is
// queued only after the events its request produced, so flushing first keeps
// every frame in request order.
func (c *Client) flushEvents() bool {
	events := c.session.Events()
	for n := len(events); n > 0; n-- {
		if !c.writeEvent(<-events, true) {
			return false
		}
	}
	return true
}

func (c *Client) writeEvent(ev chat.Event, ok bool) bool {
	if !ok {
		return c.writeCloseMessage()
	}
	return c.writeFrame(Outbound{Event: string(ev.Kind), Data: ev.Data})
}

// abort releases a client that will never be served.
func (c *Client) abort() {
	c.engine.Disconnect(c.session)
	c.closeConnection()
}

// closeConnection safely closes the WebSocket connection with proper error handling
func (c *Client) closeConnection() {
	if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
		c.log.Warn("Error closing connection in writePump", "err", err)
	}
}

// writeCloseMessage sends a close message to the client
func (c *Client) writeCloseMessage() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return false
	}
	if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil && !isExpectedCloseError(err) {
		c.log.Warn("Error writing close message", "err", err)
	}
	return false
}

// writeFrame writes one envelope as one text frame.
func (c *Client) writeFrame(frame Outbound) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.log.Warn("Error setting write deadline", "err", err)
		return false
	}
	if err := c.conn.WriteJSON(frame); err != nil {
		if !isExpectedCloseError(err) {
			c.log.Warn("Error writing frame", "event", frame.Event, "err", err)
		}
		return false
	}
	return true
}

// handlePing sends a ping message to keep the connection alive
func (c *Client) handlePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.log.Warn("Error setting write deadline for ping", "err", err)
		return false
	}
	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.log.Warn("Error writing ping message", "err", err)
		return false
	}
	return true
}

// Package server defines the JSON envelopes exchanged over the WebSocket and
// utility helpers reused across client and handler logic.
package server

import (
	"encoding/json"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

// Inbound event names.
const (
	eventJoinChat    = "join-chat"
	eventSendMessage = "send-message"
	eventTyping      = "typing"
	eventError       = "error"
)

// Error codes carried by error frames.
const (
	codeInvalidMessage = "invalid_message"
	codeEmptyMessage   = "empty_message"
	codeUnknownEvent   = "unknown_event"
	codeNotJoined      = "not_joined"
	codeAlreadyJoined  = "already_joined"
	codeRateLimited    = "rate_limited"
	codeInternal       = "internal_error"
)

// Inbound is the envelope of every client frame.
type Inbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Outbound is the envelope of every server frame.
type Outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// SendMessagePayload is the data of a send-message frame.
type SendMessagePayload struct {
	Message string `json:"message" validate:"notblank"`
}

// ErrorPayload is the data of an error frame.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(err)
	}
	return v
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}

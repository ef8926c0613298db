package chat

import "errors"

var (
	// ErrAuthRequired is returned when a connection presents no credential.
	ErrAuthRequired = errors.New("authentication required")
	// ErrInvalidToken is returned when a credential fails verification.
	ErrInvalidToken = errors.New("invalid token")
	// ErrUnknownConnection is returned when a handle is not registered.
	ErrUnknownConnection = errors.New("unknown connection")
	// ErrDuplicateConnection is returned when a handle is registered twice.
	ErrDuplicateConnection = errors.New("duplicate connection")

	ErrNotJoined     = errors.New("session has not joined the chat")
	ErrAlreadyJoined = errors.New("session already joined the chat")
	ErrNotRunning    = errors.New("engine is not running")
)

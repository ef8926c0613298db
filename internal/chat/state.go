package chat

// State is the lifecycle position of a Session.
type State int32

const (
	// StateConnecting means the transport is up but no identity is known yet.
	StateConnecting State = iota

	// StateAuthenticated means the credential was verified. The session is not
	// registered and receives no events until it joins.
	StateAuthenticated

	// StateJoined means the session is registered and receives broadcasts.
	StateJoined

	// StateDisconnected is terminal.
	StateDisconnected
)

// String returns the string representation of a State.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateJoined:
		return "joined"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

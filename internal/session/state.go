// ABOUTME: Connection state enum for a session's transport client
// ABOUTME: Uninitialized -> Connecting -> Open <-> Closed, LoggedOut terminal

package session

// State is the connection state of one session.
type State int

const (
	// StateUninitialized means Initialize has never run for the session.
	StateUninitialized State = iota
	// StateConnecting means a client is constructed and connecting.
	StateConnecting
	// StateOpen means the connection is up and authenticated.
	StateOpen
	// StateClosed means the connection dropped transiently; a reconnect is
	// pending or about to be scheduled.
	StateClosed
	// StateLoggedOut is terminal: the remote side invalidated the
	// credentials. No reconnect happens until a fresh Initialize.
	StateLoggedOut
)

// String returns the wire-friendly name of the state.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	case StateLoggedOut:
		return "logged_out"
	default:
		return "uninitialized"
	}
}

// Connected reports whether the state counts as connected for the status
// surface.
func (s State) Connected() bool {
	return s == StateOpen
}

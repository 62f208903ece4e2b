// Package session implements the session lifecycle core: the connection
// state machine, the reconnect policy, and the key-material bridge between
// the transport client and the credential store.
//
// # State Machine
//
// Each session moves through:
//
//	Uninitialized -> Connecting -> Open
//	Open <-> Closed            (transient disconnect, auto-reconnect)
//	Closed -> LoggedOut        (terminal; credentials deleted)
//
// Transitions are driven by discrete handler methods on Manager
// (handleConnected, handleDisconnected, handleCredsUpdate, handleQR), so the
// policy is unit-testable without a live transport. A transient disconnect
// schedules exactly one reconnect after a fixed delay; a logout deletes the
// durable row, clears the in-memory mirror, and stops.
//
// # Ownership
//
// The Registry maps session id -> Manager. A Manager exclusively owns the
// live transport client and the credential mirror for its session; callers
// borrow the client handle per request via ActiveClient and must tolerate it
// going stale between calls.
//
// # Key Material
//
// KeyBridge implements the transport KeyStore over the in-memory mirror and
// writes every mutation through to the store under one per-session mutex,
// which gives the ordering guarantee for credential updates.
package session

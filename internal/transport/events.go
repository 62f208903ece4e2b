// ABOUTME: Event types delivered by transport clients to their handler
// ABOUTME: Covers connection lifecycle, credential updates, and pairing payloads

package transport

import "github.com/2389/wagate/internal/creds"

// Connected is emitted when the connection is open and authenticated.
type Connected struct {
	// ID is the authenticated platform identity (full address).
	ID string
	// Name is the display name the platform reports, if any.
	Name string
}

// Disconnected is emitted when the connection closes for any reason other
// than a local Disconnect call.
type Disconnected struct {
	Reason DisconnectReason
	// Err carries the underlying cause when one is known.
	Err error
}

// CredsUpdate is emitted when the client mutated credential state that must
// be persisted: registration progress, identity changes, or anything outside
// the per-record KeyStore path. Creds is the full current credential state.
type CredsUpdate struct {
	Creds *creds.Credentials
}

// QRPayload is emitted when the platform offers a QR-style pairing payload
// before registration completes. It is informational; the primary pairing
// path is the phone-number pairing code.
type QRPayload struct {
	Code string
}

// DisconnectReason classifies why a connection closed.
type DisconnectReason int

const (
	// ReasonUnknown is any close the driver could not classify.
	ReasonUnknown DisconnectReason = iota
	// ReasonConnectionLost is a transient network-level close.
	ReasonConnectionLost
	// ReasonRestartRequired means the platform asked for a reconnect,
	// typically right after pairing completes.
	ReasonRestartRequired
	// ReasonLoggedOut means the remote side reported the account as logged
	// out. Credentials are invalid and must not be reused.
	ReasonLoggedOut
)

// LoggedOut reports whether the reason is the terminal logout cause.
func (r DisconnectReason) LoggedOut() bool {
	return r == ReasonLoggedOut
}

// String returns a log-friendly name for the reason.
func (r DisconnectReason) String() string {
	switch r {
	case ReasonConnectionLost:
		return "connection_lost"
	case ReasonRestartRequired:
		return "restart_required"
	case ReasonLoggedOut:
		return "logged_out"
	default:
		return "unknown"
	}
}

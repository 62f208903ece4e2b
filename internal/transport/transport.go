// ABOUTME: Interface boundary to the external messaging platform client
// ABOUTME: Defines the Client contract, dial configuration, and key-material provider

package transport

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/2389/wagate/internal/creds"
)

// KeyStore supplies and stores cryptographic key records on demand during a
// live connection. The client calls Get for records it needs and Set for
// records it generated or rotated. Implementations must serialize updates
// per session so back-to-back Set calls cannot lose a record.
type KeyStore interface {
	// Get returns the records for the requested ids of one key type.
	// Unknown ids are simply absent from the result, never an error; the
	// client generates and stores missing records itself.
	Get(ctx context.Context, keyType string, ids []string) (map[string]json.RawMessage, error)

	// Set merges new and updated key records, keyed by type then id, and
	// persists them.
	Set(ctx context.Context, records map[string]creds.KeyRecords) error
}

// Handler receives connection-lifecycle and credential-update events.
// Events for one client are delivered sequentially from the client's event
// loop; handlers must not block.
type Handler func(event any)

// Config carries everything a driver needs to construct a client.
type Config struct {
	// SessionID identifies the logical account the client connects for.
	SessionID string

	// Creds seeds the client with the last durable credential state. An
	// unregistered (empty) set starts a fresh pairing flow.
	Creds *creds.Credentials

	// Keys is the key-material provider the client uses for signal key
	// records during the connection.
	Keys KeyStore

	// Handler receives lifecycle events. Required.
	Handler Handler

	// Logger receives client diagnostics. Optional.
	Logger *slog.Logger
}

// Client is a live connection handle to the messaging platform. The wire
// protocol behind it (handshake, encryption, multi-device key exchange) is
// owned by the driver.
//
// Connect returns an error only for immediate misuse; connection failures
// after that are reported through the Handler as Disconnected events.
type Client interface {
	// Connect starts the connection. Lifecycle progress arrives via the
	// Handler registered at dial time.
	Connect(ctx context.Context) error

	// Disconnect tears the connection down without logging out. No
	// Disconnected event is emitted for a local Disconnect.
	Disconnect()

	// RequestPairingCode asks the platform for a phone-number pairing code
	// for an unregistered session. The raw code is returned as issued.
	RequestPairingCode(ctx context.Context, phoneNumber string) (string, error)

	// SendText sends a text message to the given recipient address. The
	// message id is caller-assigned. Delivery retry, if any, is the
	// driver's concern.
	SendText(ctx context.Context, messageID, recipient, text string) error
}

// Dialer constructs a client for one session.
type Dialer func(cfg Config) (Client, error)

// ABOUTME: SessionStore interface for durable per-session credential persistence
// ABOUTME: One opaque credential blob per session id, upsert/find/delete by key

package store

import (
	"context"
	"errors"

	"github.com/2389/wagate/internal/creds"
)

// ErrNotFound is returned when no credential row exists for a session id.
// Absence means the session is unregistered and a fresh pairing must run.
var ErrNotFound = errors.New("session not found")

// SessionStore persists one credential blob per session id.
//
// SaveCreds is an idempotent upsert and must be atomic with respect to
// concurrent saves for the same session id: a load must never observe a
// half-written blob. Last writer wins.
type SessionStore interface {
	// LoadCreds returns the stored credential set for the session, or
	// ErrNotFound if no row exists. Any other error means the backing
	// store could not be reached or the row could not be read.
	LoadCreds(ctx context.Context, sessionID string) (*creds.Credentials, error)

	// SaveCreds upserts the credential blob for the session.
	SaveCreds(ctx context.Context, sessionID string, c *creds.Credentials) error

	// DeleteCreds removes the session row. Deleting an absent row is a no-op.
	DeleteCreds(ctx context.Context, sessionID string) error

	// Close releases any resources held by the store.
	Close() error
}

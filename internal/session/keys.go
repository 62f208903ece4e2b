// ABOUTME: KeyBridge implements the transport KeyStore over the credential mirror
// ABOUTME: Write-through cache: every mutation persists the full mirror

package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/2389/wagate/internal/creds"
	"github.com/2389/wagate/internal/store"
)

// KeyBridge bridges the transport client's key-material requests to the
// credential store. It owns the in-memory credential mirror for one session:
// the mirror is the source of truth during a live connection, the store holds
// the last durable snapshot. All reads and writes go through one mutex, so
// updates for a session are serialized and persisted in the order they were
// raised.
type KeyBridge struct {
	sessionID string
	store     store.SessionStore
	logger    *slog.Logger

	mu     sync.Mutex
	mirror *creds.Credentials
}

// NewKeyBridge creates a bridge seeded with the loaded credential state.
// A nil seed starts from an empty credential set.
func NewKeyBridge(sessionID string, st store.SessionStore, seed *creds.Credentials, logger *slog.Logger) *KeyBridge {
	if seed == nil {
		seed = creds.New()
	}
	return &KeyBridge{
		sessionID: sessionID,
		store:     st,
		logger:    logger.With("component", "keybridge", "session_id", sessionID),
		mirror:    seed.Clone(),
	}
}

// Get returns the records for the requested ids of one key type. Unknown ids
// are absent from the result, never an error. Reads come from the same
// mirror Set writes to, so a Get right after a Set sees the new records.
func (b *KeyBridge) Get(ctx context.Context, keyType string, ids []string) (map[string]json.RawMessage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make(map[string]json.RawMessage, len(ids))
	records, ok := b.mirror.Keys[keyType]
	if !ok {
		return out, nil
	}
	for _, id := range ids {
		if rec, found := records[id]; found {
			out[id] = append(json.RawMessage(nil), rec...)
		}
	}
	return out, nil
}

// Set merges new and updated key records into the mirror and writes the
// serialized mirror through to the store. The mutex serializes concurrent
// Set calls, so two updates cannot interleave and lose records.
func (b *KeyBridge) Set(ctx context.Context, records map[string]creds.KeyRecords) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.mirror.MergeKeys(records)
	if err := b.store.SaveCreds(ctx, b.sessionID, b.mirror); err != nil {
		return fmt.Errorf("persisting key records: %w", err)
	}

	b.logger.Debug("stored key records", "types", len(records))
	return nil
}

// Replace swaps the whole mirror for the given credential state and persists
// it. This is the catch-all path for credential-update notifications that
// carry full state rather than individual key records.
func (b *KeyBridge) Replace(ctx context.Context, c *creds.Credentials) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.mirror = c.Clone()
	if err := b.store.SaveCreds(ctx, b.sessionID, b.mirror); err != nil {
		return fmt.Errorf("persisting credentials: %w", err)
	}
	return nil
}

// Persist writes the current mirror to the store without changing it.
func (b *KeyBridge) Persist(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.store.SaveCreds(ctx, b.sessionID, b.mirror); err != nil {
		return fmt.Errorf("persisting credentials: %w", err)
	}
	return nil
}

// Reset empties the mirror. Used after a logout so the next Initialize
// starts a fresh pairing.
func (b *KeyBridge) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.mirror = creds.New()
}

// Snapshot returns a deep copy of the mirror.
func (b *KeyBridge) Snapshot() *creds.Credentials {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.mirror.Clone()
}

// Registered reports whether the mirror shows a completed registration.
func (b *KeyBridge) Registered() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.mirror.Registered()
}

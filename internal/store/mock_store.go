// ABOUTME: Mock SessionStore implementation for testing
// ABOUTME: Allows tests to run without SQLite and to inject storage failures

package store

import (
	"context"
	"sync"

	"github.com/2389/wagate/internal/creds"
)

// MockStore is an in-memory SessionStore implementation for testing.
type MockStore struct {
	mu       sync.RWMutex
	sessions map[string][]byte // keyed by session id, serialized blobs

	// SaveErr, LoadErr, and DeleteErr, when set, are returned by the
	// corresponding operation to simulate an unreachable store.
	SaveErr   error
	LoadErr   error
	DeleteErr error

	// SaveCount tracks how many saves were performed.
	SaveCount int
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		sessions: make(map[string][]byte),
	}
}

// LoadCreds returns the stored credentials, or ErrNotFound.
func (m *MockStore) LoadCreds(ctx context.Context, sessionID string) (*creds.Credentials, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.LoadErr != nil {
		return nil, m.LoadErr
	}

	blob, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return creds.Decode(blob)
}

// SaveCreds stores a serialized copy of the credentials.
func (m *MockStore) SaveCreds(ctx context.Context, sessionID string, c *creds.Credentials) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SaveErr != nil {
		return m.SaveErr
	}

	blob, err := c.Encode()
	if err != nil {
		return err
	}
	m.sessions[sessionID] = blob
	m.SaveCount++
	return nil
}

// DeleteCreds removes the session entry.
func (m *MockStore) DeleteCreds(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.DeleteErr != nil {
		return m.DeleteErr
	}

	delete(m.sessions, sessionID)
	return nil
}

// Close is a no-op.
func (m *MockStore) Close() error {
	return nil
}

// Has reports whether a row exists for the session id.
func (m *MockStore) Has(sessionID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.sessions[sessionID]
	return ok
}

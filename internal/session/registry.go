// ABOUTME: Registry maps session ids to their owning Manager instances
// ABOUTME: Enforces the one-manager-per-session single-writer invariant

package session

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/2389/wagate/internal/store"
	"github.com/2389/wagate/internal/transport"
)

// RegistryConfig configures a Registry and the managers it creates.
type RegistryConfig struct {
	Store             store.SessionStore
	Dial              transport.Dialer
	Logger            *slog.Logger
	ReconnectDelay    time.Duration
	DisableSelfNotify bool
}

// Registry owns all session managers in the process. Each session id maps to
// exactly one Manager, which in turn owns the single live client for that
// session. There is no other holder of client or credential state.
type Registry struct {
	cfg RegistryConfig

	mu       sync.Mutex
	sessions map[string]*Manager
	closed   bool
}

// NewRegistry creates an empty registry.
func NewRegistry(cfg RegistryConfig) *Registry {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Registry{
		cfg:      cfg,
		sessions: make(map[string]*Manager),
	}
}

// GetOrCreate returns the manager for a session id, creating it if needed.
// The manager is not initialized; call Initialize for that. A closed
// registry refuses new managers with ErrClosed so no manager can outlive
// shutdown.
func (r *Registry) GetOrCreate(sessionID string) (*Manager, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrClosed
	}
	if m, ok := r.sessions[sessionID]; ok {
		return m, nil
	}

	m := NewManager(ManagerConfig{
		SessionID:         sessionID,
		Store:             r.cfg.Store,
		Dial:              r.cfg.Dial,
		Logger:            r.cfg.Logger,
		ReconnectDelay:    r.cfg.ReconnectDelay,
		DisableSelfNotify: r.cfg.DisableSelfNotify,
	})
	r.sessions[sessionID] = m
	return m, nil
}

// Get returns the manager for a session id if one exists.
func (r *Registry) Get(sessionID string) (*Manager, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.sessions[sessionID]
	return m, ok
}

// Initialize creates the manager if needed and starts its connection.
func (r *Registry) Initialize(ctx context.Context, sessionID string) error {
	m, err := r.GetOrCreate(sessionID)
	if err != nil {
		return err
	}
	return m.Initialize(ctx)
}

// Sessions returns the sorted ids of all known sessions.
func (r *Registry) Sessions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Close tears down every manager. The registry cannot be reused.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	managers := make([]*Manager, 0, len(r.sessions))
	for _, m := range r.sessions {
		managers = append(managers, m)
	}
	r.mu.Unlock()

	for _, m := range managers {
		m.Close()
	}
}

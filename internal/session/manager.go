// ABOUTME: Manager owns the single live transport client for one session
// ABOUTME: Drives the connection state machine and the reconnect policy

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/2389/wagate/internal/creds"
	"github.com/2389/wagate/internal/store"
	"github.com/2389/wagate/internal/transport"
)

// DefaultReconnectDelay is the fixed delay before a reconnect attempt after
// a transient disconnect.
const DefaultReconnectDelay = 5 * time.Second

// ErrClosed is returned when a manager is used after Close.
var ErrClosed = errors.New("session manager is closed")

// Identity is the authenticated platform identity of an open session.
type Identity struct {
	ID   string
	Name string
}

// Snapshot is a point-in-time view of a session for the status surface.
type Snapshot struct {
	State    State
	Identity *Identity
	QR       string
}

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	SessionID string
	Store     store.SessionStore
	Dial      transport.Dialer
	Logger    *slog.Logger

	// ReconnectDelay overrides DefaultReconnectDelay; tests shrink it.
	ReconnectDelay time.Duration

	// DisableSelfNotify suppresses the best-effort diagnostic message to
	// the session's own account after the connection opens. Notification is
	// on by default; tests disable it for determinism.
	DisableSelfNotify bool
}

// Manager exclusively owns the live transport client and in-memory
// credential mirror for one session id. All state transitions run through
// discrete handler methods so the reconnect policy is testable without a
// live transport. The single-writer invariant lives here: only one Manager
// per session id may exist (the Registry enforces that), and within a
// Manager, transitions are serialized by a mutex.
type Manager struct {
	sessionID      string
	store          store.SessionStore
	dial           transport.Dialer
	logger         *slog.Logger
	reconnectDelay time.Duration
	selfNotify     bool

	mu               sync.Mutex
	state            State
	client           transport.Client
	bridge           *KeyBridge
	identity         *Identity
	qr               string
	reconnectPending bool
	reconnectTimer   *time.Timer
	closed           bool

	// generation identifies the current client. Events carry the generation
	// captured at dial time; events from an abandoned or superseded client
	// no longer match and are ignored.
	generation uint64
}

// NewManager creates an uninitialized Manager for one session id.
func NewManager(cfg ManagerConfig) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	delay := cfg.ReconnectDelay
	if delay <= 0 {
		delay = DefaultReconnectDelay
	}
	return &Manager{
		sessionID:      cfg.SessionID,
		store:          cfg.Store,
		dial:           cfg.Dial,
		logger:         logger.With("component", "session", "session_id", cfg.SessionID),
		reconnectDelay: delay,
		selfNotify:     !cfg.DisableSelfNotify,
		state:          StateUninitialized,
	}
}

// SessionID returns the session id this manager owns.
func (m *Manager) SessionID() string {
	return m.sessionID
}

// Initialize loads durable credentials, constructs a transport client seeded
// with them, and starts connecting. An absent row means a fresh registration.
// Calling Initialize while a connection is live is a no-op; calling it from
// Closed or LoggedOut starts a new attempt.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	switch m.state {
	case StateConnecting, StateOpen:
		m.mu.Unlock()
		return nil
	}
	m.state = StateConnecting
	m.generation++
	gen := m.generation
	m.mu.Unlock()

	seed, err := m.store.LoadCreds(ctx, m.sessionID)
	if errors.Is(err, store.ErrNotFound) {
		seed = creds.New()
	} else if err != nil {
		// The store being unreachable is as transient as a dropped
		// connection; fall back to the reconnect path.
		m.mu.Lock()
		m.state = StateClosed
		m.scheduleReconnectLocked()
		m.mu.Unlock()
		return fmt.Errorf("loading credentials: %w", err)
	}

	bridge := NewKeyBridge(m.sessionID, m.store, seed, m.logger)

	client, err := m.dial(transport.Config{
		SessionID: m.sessionID,
		Creds:     bridge.Snapshot(),
		Keys:      bridge,
		Handler:   func(evt any) { m.handleEvent(gen, evt) },
		Logger:    m.logger,
	})
	if err != nil {
		m.mu.Lock()
		m.state = StateUninitialized
		m.mu.Unlock()
		return fmt.Errorf("constructing transport client: %w", err)
	}

	m.mu.Lock()
	m.bridge = bridge
	m.client = client
	m.mu.Unlock()

	m.logger.Info("initializing session", "registered", bridge.Registered())

	if err := client.Connect(ctx); err != nil {
		m.mu.Lock()
		m.client = nil
		// Invalidate the generation so anything the abandoned client still
		// emits cannot drive this manager's transitions.
		m.generation++
		m.state = StateClosed
		m.scheduleReconnectLocked()
		m.mu.Unlock()
		client.Disconnect()
		return fmt.Errorf("connecting: %w", err)
	}
	return nil
}

// handleEvent dispatches transport events to the discrete transition
// methods. It runs on the client's event loop and must stay fast. gen is
// the client generation captured at dial time; each transition method drops
// the event if the generation is no longer current.
func (m *Manager) handleEvent(gen uint64, evt any) {
	switch e := evt.(type) {
	case transport.Connected:
		m.handleConnected(gen, e)
	case transport.Disconnected:
		m.handleDisconnected(gen, e)
	case transport.CredsUpdate:
		m.handleCredsUpdate(gen, e)
	case transport.QRPayload:
		m.handleQR(gen, e)
	default:
		m.logger.Debug("ignoring transport event", "type", fmt.Sprintf("%T", evt))
	}
}

// handleConnected transitions to Open and records the authenticated identity.
func (m *Manager) handleConnected(gen uint64, e transport.Connected) {
	m.mu.Lock()
	if m.closed || gen != m.generation {
		m.mu.Unlock()
		return
	}
	m.state = StateOpen
	m.identity = &Identity{ID: e.ID, Name: e.Name}
	m.qr = ""
	client := m.client
	bridge := m.bridge
	m.mu.Unlock()

	m.logger.Info("connection open", "identity", e.ID)

	// The row is refreshed on every successful open so the durable snapshot
	// reflects the state that just authenticated.
	if bridge != nil {
		if err := bridge.Persist(context.Background()); err != nil {
			m.logger.Error("persisting credentials after connect", "error", err)
		}
	}

	if m.selfNotify && client != nil {
		go m.sendSelfNotification(client, e.ID)
	}
}

// sendSelfNotification sends a diagnostic message to the session's own
// account. Failures are logged and never fatal.
func (m *Manager) sendSelfNotification(client transport.Client, selfID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	hostname, _ := os.Hostname()
	text := fmt.Sprintf("wagate connected on %s at %s",
		hostname, time.Now().UTC().Format(time.RFC3339))

	if err := client.SendText(ctx, uuid.New().String(), selfID, text); err != nil {
		m.logger.Warn("self notification failed", "error", err)
	}
}

// handleDisconnected inspects the disconnect cause. A logout is terminal:
// the row is deleted and the in-memory mirror cleared so a subsequent
// Initialize starts a fresh pairing. Anything else schedules one reconnect
// after the fixed delay.
func (m *Manager) handleDisconnected(gen uint64, e transport.Disconnected) {
	m.mu.Lock()
	if m.closed || gen != m.generation {
		m.mu.Unlock()
		return
	}
	client := m.client
	m.client = nil
	m.identity = nil
	// The reporting client is abandoned either way; retire its generation.
	m.generation++

	if e.Reason.LoggedOut() {
		m.state = StateLoggedOut
		bridge := m.bridge
		m.mu.Unlock()

		if client != nil {
			client.Disconnect()
		}
		if bridge != nil {
			bridge.Reset()
		}
		if err := m.store.DeleteCreds(context.Background(), m.sessionID); err != nil {
			m.logger.Error("deleting credentials after logout", "error", err)
		}
		m.logger.Info("logged out; credentials cleared")
		return
	}

	m.state = StateClosed
	m.scheduleReconnectLocked()
	m.mu.Unlock()

	if client != nil {
		client.Disconnect()
	}
	m.logger.Warn("connection closed; reconnect scheduled",
		"reason", e.Reason.String(), "error", e.Err, "delay", m.reconnectDelay)
}

// handleCredsUpdate persists the full credential state pushed by the client.
// This is the catch-all path next to the KeyBridge's per-record write-through.
func (m *Manager) handleCredsUpdate(gen uint64, e transport.CredsUpdate) {
	m.mu.Lock()
	if m.closed || gen != m.generation {
		m.mu.Unlock()
		return
	}
	bridge := m.bridge
	m.mu.Unlock()

	if bridge == nil || e.Creds == nil {
		return
	}
	if err := bridge.Replace(context.Background(), e.Creds); err != nil {
		m.logger.Error("persisting credential update", "error", err)
	}
}

// handleQR retains the latest QR-style pairing payload for the status
// surface. The primary pairing path is the phone-number pairing code.
func (m *Manager) handleQR(gen uint64, e transport.QRPayload) {
	m.mu.Lock()
	if m.closed || gen != m.generation {
		m.mu.Unlock()
		return
	}
	m.qr = e.Code
	m.mu.Unlock()

	m.logger.Info("pairing payload received; request a pairing code or scan to link")
}

// scheduleReconnectLocked arms the reconnect timer once. Callers hold m.mu.
func (m *Manager) scheduleReconnectLocked() {
	if m.reconnectPending || m.closed {
		return
	}
	m.reconnectPending = true
	m.reconnectTimer = time.AfterFunc(m.reconnectDelay, m.reconnect)
}

// reconnect fires after the fixed delay and re-enters Initialize for the
// same session id.
func (m *Manager) reconnect() {
	m.mu.Lock()
	m.reconnectPending = false
	if m.closed || m.state != StateClosed {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := m.Initialize(ctx); err != nil {
		// Initialize re-arms the timer for transient failures.
		m.logger.Error("reconnect attempt failed", "error", err)
	}
}

// ActiveClient returns the live client handle only while the connection is
// open. Callers must treat absence as "not ready" and never retry here.
func (m *Manager) ActiveClient() (transport.Client, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateOpen || m.client == nil {
		return nil, false
	}
	return m.client, true
}

// CurrentClient returns whatever client handle exists, connecting or open.
// The pairing-code flow needs the handle before the connection reaches Open,
// because registration only completes through pairing.
func (m *Manager) CurrentClient() (transport.Client, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.client == nil {
		return nil, false
	}
	return m.client, true
}

// Registered reports whether the session's credential mirror shows a
// completed registration.
func (m *Manager) Registered() bool {
	m.mu.Lock()
	bridge := m.bridge
	m.mu.Unlock()

	return bridge != nil && bridge.Registered()
}

// Status returns a point-in-time snapshot. It never fails.
func (m *Manager) Status() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{State: m.state, QR: m.qr}
	if m.identity != nil {
		id := *m.identity
		snap.Identity = &id
	}
	return snap
}

// Close stops the reconnect timer and tears down the client. The manager
// cannot be reused afterwards.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
	}
	client := m.client
	m.client = nil
	m.mu.Unlock()

	if client != nil {
		client.Disconnect()
	}
}

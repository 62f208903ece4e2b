// ABOUTME: Tests for the session Manager state machine and reconnect policy
// ABOUTME: Uses an in-package fake transport; no live connection involved

package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/wagate/internal/creds"
	"github.com/2389/wagate/internal/store"
	"github.com/2389/wagate/internal/transport"
)

// fakeClient is a scriptable transport.Client for manager tests.
type fakeClient struct {
	mu          sync.Mutex
	handler     transport.Handler
	connectErr  error
	connects    int
	disconnects int
	sent        []string // recipients
}

func (f *fakeClient) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	return f.connectErr
}

func (f *fakeClient) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
}

func (f *fakeClient) RequestPairingCode(ctx context.Context, phoneNumber string) (string, error) {
	return "ABCD1234", nil
}

func (f *fakeClient) SendText(ctx context.Context, messageID, recipient, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, recipient)
	return nil
}

// emit delivers an event the way a client event loop would.
func (f *fakeClient) emit(evt any) {
	f.mu.Lock()
	handler := f.handler
	f.mu.Unlock()
	handler(evt)
}

func (f *fakeClient) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

// fakeDialer hands out fakeClients and counts dials.
type fakeDialer struct {
	mu         sync.Mutex
	clients    []*fakeClient
	dialErr    error
	connectErr error // applied to newly dialed clients
}

func (d *fakeDialer) dial(cfg transport.Config) (transport.Client, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dialErr != nil {
		return nil, d.dialErr
	}
	c := &fakeClient{handler: cfg.Handler, connectErr: d.connectErr}
	d.clients = append(d.clients, c)
	return c, nil
}

func (d *fakeDialer) setConnectErr(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.connectErr = err
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.clients)
}

func (d *fakeDialer) client(i int) *fakeClient {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.clients[i]
}

func newTestManager(t *testing.T, st *store.MockStore, d *fakeDialer) *Manager {
	t.Helper()
	m := NewManager(ManagerConfig{
		SessionID:         "test",
		Store:             st,
		Dial:              d.dial,
		ReconnectDelay:    20 * time.Millisecond,
		DisableSelfNotify: true,
	})
	t.Cleanup(m.Close)
	return m
}

// waitFor polls until the predicate passes or the deadline expires.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestManager_StatusBeforeInitialize(t *testing.T) {
	m := newTestManager(t, store.NewMockStore(), &fakeDialer{})

	snap := m.Status()
	assert.Equal(t, StateUninitialized, snap.State)
	assert.Nil(t, snap.Identity)

	_, ok := m.ActiveClient()
	assert.False(t, ok)
}

func TestManager_InitializeFreshSession(t *testing.T) {
	d := &fakeDialer{}
	m := newTestManager(t, store.NewMockStore(), d)

	require.NoError(t, m.Initialize(context.Background()))

	assert.Equal(t, StateConnecting, m.Status().State)
	assert.Equal(t, 1, d.dialCount())
	assert.Equal(t, 1, d.client(0).connects)
	assert.False(t, m.Registered(), "absent row means fresh registration")
}

func TestManager_InitializeIsIdempotentWhileLive(t *testing.T) {
	d := &fakeDialer{}
	m := newTestManager(t, store.NewMockStore(), d)

	require.NoError(t, m.Initialize(context.Background()))
	require.NoError(t, m.Initialize(context.Background()))
	assert.Equal(t, 1, d.dialCount(), "second Initialize while connecting is a no-op")

	d.client(0).emit(transport.Connected{ID: "x@s.whatsapp.net"})
	require.NoError(t, m.Initialize(context.Background()))
	assert.Equal(t, 1, d.dialCount(), "Initialize while open is a no-op")
}

func TestManager_InitializeSeedsFromStore(t *testing.T) {
	st := store.NewMockStore()
	seeded := creds.New()
	seeded.Registration = &creds.Registration{ID: "x@s.whatsapp.net", Registered: true}
	require.NoError(t, st.SaveCreds(context.Background(), "test", seeded))

	m := newTestManager(t, st, &fakeDialer{})
	require.NoError(t, m.Initialize(context.Background()))

	assert.True(t, m.Registered())
}

func TestManager_ConnectedTransitionsToOpen(t *testing.T) {
	d := &fakeDialer{}
	st := store.NewMockStore()
	m := newTestManager(t, st, d)

	require.NoError(t, m.Initialize(context.Background()))
	d.client(0).emit(transport.Connected{ID: "628@s.whatsapp.net", Name: "bot"})

	snap := m.Status()
	assert.Equal(t, StateOpen, snap.State)
	require.NotNil(t, snap.Identity)
	assert.Equal(t, "628@s.whatsapp.net", snap.Identity.ID)

	_, ok := m.ActiveClient()
	assert.True(t, ok)

	// The durable snapshot is refreshed on every successful open.
	assert.True(t, st.Has("test"))
}

func TestManager_SelfNotificationSentByDefault(t *testing.T) {
	d := &fakeDialer{}
	// No DisableSelfNotify: the diagnostic message is on unless opted out.
	m := NewManager(ManagerConfig{
		SessionID:      "test",
		Store:          store.NewMockStore(),
		Dial:           d.dial,
		ReconnectDelay: 20 * time.Millisecond,
	})
	t.Cleanup(m.Close)

	require.NoError(t, m.Initialize(context.Background()))
	d.client(0).emit(transport.Connected{ID: "628@s.whatsapp.net"})

	waitFor(t, func() bool { return d.client(0).sentCount() == 1 })
}

func TestManager_TransientDisconnectReconnectsOnce(t *testing.T) {
	d := &fakeDialer{}
	m := newTestManager(t, store.NewMockStore(), d)

	require.NoError(t, m.Initialize(context.Background()))
	d.client(0).emit(transport.Connected{ID: "x@s.whatsapp.net"})
	d.client(0).emit(transport.Disconnected{Reason: transport.ReasonConnectionLost})

	assert.Equal(t, StateClosed, m.Status().State)
	_, ok := m.ActiveClient()
	assert.False(t, ok, "closed session has no active client")

	// A duplicate close report while a reconnect is pending must not arm a
	// second attempt.
	d.client(0).emit(transport.Disconnected{Reason: transport.ReasonConnectionLost})

	waitFor(t, func() bool { return d.dialCount() == 2 })

	// Give a spurious second timer time to fire if one existed.
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 2, d.dialCount(), "exactly one reconnect per disconnect")
	assert.Equal(t, StateConnecting, m.Status().State)
}

func TestManager_LogoutIsTerminal(t *testing.T) {
	d := &fakeDialer{}
	st := store.NewMockStore()

	seeded := creds.New()
	seeded.Registration = &creds.Registration{ID: "x@s.whatsapp.net", Registered: true}
	require.NoError(t, st.SaveCreds(context.Background(), "test", seeded))

	m := newTestManager(t, st, d)
	require.NoError(t, m.Initialize(context.Background()))
	d.client(0).emit(transport.Connected{ID: "x@s.whatsapp.net"})
	d.client(0).emit(transport.Disconnected{Reason: transport.ReasonLoggedOut})

	assert.Equal(t, StateLoggedOut, m.Status().State)
	assert.False(t, st.Has("test"), "logout deletes the session row")
	assert.False(t, m.Registered(), "in-memory credentials are cleared")

	// No reconnect after logout.
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 1, d.dialCount())
}

func TestManager_InitializeAfterLogoutStartsFreshPairing(t *testing.T) {
	d := &fakeDialer{}
	st := store.NewMockStore()
	m := newTestManager(t, st, d)

	require.NoError(t, m.Initialize(context.Background()))
	d.client(0).emit(transport.Disconnected{Reason: transport.ReasonLoggedOut})
	require.Equal(t, StateLoggedOut, m.Status().State)

	require.NoError(t, m.Initialize(context.Background()))
	assert.Equal(t, StateConnecting, m.Status().State)
	assert.Equal(t, 2, d.dialCount())
	assert.False(t, m.Registered())
}

func TestManager_CredsUpdateIsPersistedInOrder(t *testing.T) {
	d := &fakeDialer{}
	st := store.NewMockStore()
	m := newTestManager(t, st, d)

	require.NoError(t, m.Initialize(context.Background()))

	first := creds.New()
	first.Registration = &creds.Registration{ID: "a@s.whatsapp.net", Registered: false}
	d.client(0).emit(transport.CredsUpdate{Creds: first})

	second := creds.New()
	second.Registration = &creds.Registration{ID: "a@s.whatsapp.net", Registered: true}
	d.client(0).emit(transport.CredsUpdate{Creds: second})

	persisted, err := st.LoadCreds(context.Background(), "test")
	require.NoError(t, err)
	assert.True(t, persisted.Registered(), "the later update must win")
	assert.True(t, m.Registered())
}

func TestManager_QRPayloadSurfacesUntilOpen(t *testing.T) {
	d := &fakeDialer{}
	m := newTestManager(t, store.NewMockStore(), d)

	require.NoError(t, m.Initialize(context.Background()))
	d.client(0).emit(transport.QRPayload{Code: "qr-blob"})

	assert.Equal(t, "qr-blob", m.Status().QR)

	d.client(0).emit(transport.Connected{ID: "x@s.whatsapp.net"})
	assert.Empty(t, m.Status().QR, "QR payload is cleared once the connection opens")
}

func TestManager_StoreFailureFallsBackToReconnect(t *testing.T) {
	d := &fakeDialer{}
	st := store.NewMockStore()
	st.LoadErr = errors.New("database is down")

	m := newTestManager(t, st, d)
	err := m.Initialize(context.Background())
	require.ErrorContains(t, err, "database is down")
	assert.Equal(t, StateClosed, m.Status().State)

	// Once the store recovers, the scheduled retry succeeds.
	st.LoadErr = nil
	waitFor(t, func() bool { return d.dialCount() == 1 })
	assert.Equal(t, StateConnecting, m.Status().State)
}

func TestManager_ConnectFailureTearsDownClient(t *testing.T) {
	d := &fakeDialer{connectErr: errors.New("connection refused")}
	m := newTestManager(t, store.NewMockStore(), d)

	err := m.Initialize(context.Background())
	require.ErrorContains(t, err, "connection refused")
	assert.Equal(t, StateClosed, m.Status().State)
	assert.Equal(t, 1, d.client(0).disconnects, "abandoned client must be torn down")

	// Whatever the abandoned client still emits must not drive the state
	// machine: a ghost Connected here would report "open" with no client and
	// the pending reconnect would then never fire.
	d.client(0).emit(transport.Connected{ID: "ghost@s.whatsapp.net"})
	assert.Equal(t, StateClosed, m.Status().State)
	_, ok := m.ActiveClient()
	assert.False(t, ok)

	// The scheduled reconnect still recovers the session.
	d.setConnectErr(nil)
	waitFor(t, func() bool { return d.dialCount() == 2 })
	d.client(1).emit(transport.Connected{ID: "x@s.whatsapp.net"})
	assert.Equal(t, StateOpen, m.Status().State)
}

func TestManager_StaleClientCannotTearDownSuccessor(t *testing.T) {
	d := &fakeDialer{}
	m := newTestManager(t, store.NewMockStore(), d)

	require.NoError(t, m.Initialize(context.Background()))
	d.client(0).emit(transport.Connected{ID: "x@s.whatsapp.net"})
	d.client(0).emit(transport.Disconnected{Reason: transport.ReasonConnectionLost})

	waitFor(t, func() bool { return d.dialCount() == 2 })
	d.client(1).emit(transport.Connected{ID: "x@s.whatsapp.net"})
	require.Equal(t, StateOpen, m.Status().State)

	// A late close report from the replaced client is ignored.
	d.client(0).emit(transport.Disconnected{Reason: transport.ReasonConnectionLost})
	assert.Equal(t, StateOpen, m.Status().State)
	_, ok := m.ActiveClient()
	assert.True(t, ok)
	assert.Zero(t, d.client(1).disconnects, "healthy successor stays up")
}

func TestManager_CloseStopsReconnect(t *testing.T) {
	d := &fakeDialer{}
	m := newTestManager(t, store.NewMockStore(), d)

	require.NoError(t, m.Initialize(context.Background()))
	d.client(0).emit(transport.Disconnected{Reason: transport.ReasonConnectionLost})

	m.Close()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 1, d.dialCount(), "no reconnect after Close")

	assert.ErrorIs(t, m.Initialize(context.Background()), ErrClosed)
}

func TestRegistry_OneManagerPerSession(t *testing.T) {
	r := NewRegistry(RegistryConfig{
		Store: store.NewMockStore(),
		Dial:  (&fakeDialer{}).dial,
	})
	t.Cleanup(r.Close)

	a, err := r.GetOrCreate("alpha")
	require.NoError(t, err)
	again, err := r.GetOrCreate("alpha")
	require.NoError(t, err)
	b, err := r.GetOrCreate("beta")
	require.NoError(t, err)

	assert.Same(t, a, again, "one manager per session id")
	assert.NotSame(t, a, b)
	assert.Equal(t, []string{"alpha", "beta"}, r.Sessions())

	_, ok := r.Get("missing")
	assert.False(t, ok)
}

func TestRegistry_ClosedRefusesNewManagers(t *testing.T) {
	d := &fakeDialer{}
	r := NewRegistry(RegistryConfig{
		Store: store.NewMockStore(),
		Dial:  d.dial,
	})
	r.Close()

	_, err := r.GetOrCreate("late")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, r.Initialize(context.Background(), "late"), ErrClosed)
	assert.Zero(t, d.dialCount(), "no manager may be created after shutdown")
}

func TestRegistry_InitializeCreatesAndConnects(t *testing.T) {
	d := &fakeDialer{}
	r := NewRegistry(RegistryConfig{
		Store: store.NewMockStore(),
		Dial:  d.dial,
	})
	t.Cleanup(r.Close)

	require.NoError(t, r.Initialize(context.Background(), "alpha"))

	m, ok := r.Get("alpha")
	require.True(t, ok)
	assert.Equal(t, StateConnecting, m.Status().State)
	assert.Equal(t, 1, d.dialCount())
}

// ABOUTME: In-process transport driver simulating the messaging platform
// ABOUTME: Used for development and tests; registers itself as driver "memory"

package memory

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/2389/wagate/internal/creds"
	"github.com/2389/wagate/internal/transport"
)

func init() {
	transport.Register("memory", Dial)
}

// pairingCodeAlphabet excludes ambiguous characters; codes are meant to be
// read over the phone.
const pairingCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// SentMessage records one SendText call.
type SentMessage struct {
	ID        string
	Recipient string
	Text      string
}

// Client is an in-process transport.Client. It issues pairing codes,
// fabricates credentials on pairing, and records sent messages. Connection
// drops are scripted through DropConnection.
type Client struct {
	sessionID string
	keys      transport.KeyStore
	logger    *slog.Logger

	events chan any
	once   sync.Once

	mu        sync.Mutex
	creds     *creds.Credentials
	connected bool
	closed    bool
	sent      []SentMessage
}

// Dial constructs a memory client for the session.
func Dial(cfg transport.Config) (transport.Client, error) {
	if cfg.Handler == nil {
		return nil, errors.New("memory: handler is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	seed := cfg.Creds
	if seed == nil {
		seed = creds.New()
	}

	c := &Client{
		sessionID: cfg.SessionID,
		keys:      cfg.Keys,
		logger:    logger.With("component", "transport.memory", "session_id", cfg.SessionID),
		events:    make(chan any, 16),
		creds:     seed.Clone(),
	}

	// Single goroutine delivers events in order, emulating the platform
	// client's event loop.
	go func() {
		for evt := range c.events {
			cfg.Handler(evt)
		}
	}()

	return c, nil
}

// Connect opens the simulated connection. A registered session comes up
// immediately; an unregistered one surfaces a QR payload and waits for a
// pairing code request.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errors.New("memory: client is closed")
	}

	if c.creds.Registered() {
		id, name := c.creds.Identity()
		c.connected = true
		c.emitLocked(transport.Connected{ID: id, Name: name})
		return nil
	}

	c.emitLocked(transport.QRPayload{Code: randomToken(24)})
	return nil
}

// RequestPairingCode issues a pairing code and completes the pairing flow:
// key records are generated through the KeyStore, a credential update is
// emitted, and the connection comes up.
func (c *Client) RequestPairingCode(ctx context.Context, phoneNumber string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return "", errors.New("memory: client is closed")
	}
	if c.creds.Registered() {
		return "", errors.New("memory: session is already registered")
	}
	if phoneNumber == "" {
		return "", errors.New("memory: phone number is required")
	}

	code := randomPairingCode(8)

	// Simulated peer approval: register the account and bring the
	// connection up. Key generation goes through the KeyStore so the
	// write-through path is exercised exactly as a real driver would.
	if c.keys != nil {
		records := map[string]creds.KeyRecords{
			"pre-key": {
				"1": json.RawMessage(fmt.Sprintf(`{"public":%q}`, randomToken(16))),
				"2": json.RawMessage(fmt.Sprintf(`{"public":%q}`, randomToken(16))),
			},
		}
		if err := c.keys.Set(ctx, records); err != nil {
			return "", fmt.Errorf("memory: storing pairing keys: %w", err)
		}
		c.creds.MergeKeys(records)
	}

	c.creds.Registration = &creds.Registration{
		ID:         phoneNumber + ":1@" + transport.DefaultUserServer,
		Name:       "wagate",
		Registered: true,
	}
	c.connected = true

	c.emitLocked(transport.CredsUpdate{Creds: c.creds.Clone()})
	id, name := c.creds.Identity()
	c.emitLocked(transport.Connected{ID: id, Name: name})

	return code, nil
}

// SendText records the message. The connection must be up.
func (c *Client) SendText(ctx context.Context, messageID, recipient, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return errors.New("memory: not connected")
	}

	c.sent = append(c.sent, SentMessage{ID: messageID, Recipient: recipient, Text: text})
	c.logger.Debug("recorded message", "message_id", messageID, "recipient", recipient)
	return nil
}

// Disconnect tears the client down without emitting a Disconnected event.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.connected = false
	c.closed = true
	close(c.events)
}

// DropConnection scripts a remote-side close with the given reason.
func (c *Client) DropConnection(reason transport.DisconnectReason, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.connected = false
	c.emitLocked(transport.Disconnected{Reason: reason, Err: err})
}

// Sent returns a copy of the messages recorded so far.
func (c *Client) Sent() []SentMessage {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]SentMessage, len(c.sent))
	copy(out, c.sent)
	return out
}

// emitLocked queues an event for the delivery goroutine. Callers hold c.mu.
func (c *Client) emitLocked(evt any) {
	if c.closed {
		return
	}
	c.events <- evt
}

// randomPairingCode returns an n-character code from the pairing alphabet.
func randomPairingCode(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic(err) // crypto/rand never fails on supported platforms
	}
	for i, b := range buf {
		buf[i] = pairingCodeAlphabet[int(b)%len(pairingCodeAlphabet)]
	}
	return string(buf)
}

// randomToken returns a URL-safe random string of roughly n characters.
func randomToken(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(buf)[:n]
}

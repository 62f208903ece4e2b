// ABOUTME: Public messaging operations: status, pairing-code request, send
// ABOUTME: Validates preconditions and borrows the client from the session manager

package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/2389/wagate/internal/session"
	"github.com/2389/wagate/internal/transport"
)

// ErrClientNotReady means there is no usable client for the session right
// now. Callers must treat this as "not ready" and try again later; this
// layer never retries internally.
var ErrClientNotReady = errors.New("messaging client is not ready")

// ErrAlreadyRegistered means the session's credentials already show a
// completed registration, so a pairing code makes no sense.
var ErrAlreadyRegistered = errors.New("session is already registered")

// Status is a point-in-time view of one session for the status surface.
type Status struct {
	SessionID  string
	State      session.State
	Identity   *session.Identity
	QR         string
	Registered bool
}

// Service exposes the public messaging operations. It holds no client or
// credential state of its own; every request borrows the current handle
// from the session registry and tolerates it going stale between calls.
type Service struct {
	registry *session.Registry
	logger   *slog.Logger
}

// NewService creates the messaging facade over a session registry.
func NewService(registry *session.Registry, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		registry: registry,
		logger:   logger.With("component", "messaging"),
	}
}

// GetStatus returns a snapshot for the session. It never fails: an unknown
// session yields StateUninitialized and ok=false.
func (s *Service) GetStatus(sessionID string) (Status, bool) {
	mgr, ok := s.registry.Get(sessionID)
	if !ok {
		return Status{SessionID: sessionID, State: session.StateUninitialized}, false
	}

	snap := mgr.Status()
	return Status{
		SessionID:  sessionID,
		State:      snap.State,
		Identity:   snap.Identity,
		QR:         snap.QR,
		Registered: mgr.Registered(),
	}, true
}

// RequestPairingCode asks the platform for a phone-number pairing code and
// reformats it for human readability. A session that is already registered
// fails with ErrAlreadyRegistered before any transport call is made.
func (s *Service) RequestPairingCode(ctx context.Context, sessionID, phoneNumber string) (string, error) {
	phoneNumber = strings.TrimSpace(phoneNumber)
	if phoneNumber == "" {
		return "", errors.New("phone number is required")
	}

	mgr, ok := s.registry.Get(sessionID)
	if !ok {
		return "", ErrClientNotReady
	}
	if mgr.Registered() {
		return "", ErrAlreadyRegistered
	}

	// Pairing happens before the connection reaches Open, so this borrows
	// whatever handle exists, connecting included.
	client, ok := mgr.CurrentClient()
	if !ok {
		return "", ErrClientNotReady
	}

	raw, err := client.RequestPairingCode(ctx, phoneNumber)
	if err != nil {
		return "", fmt.Errorf("requesting pairing code: %w", err)
	}

	code := FormatPairingCode(raw)
	s.logger.Info("pairing code issued", "session_id", sessionID)
	return code, nil
}

// SendText sends a text message through the session's active client and
// returns the assigned message id. Delivery retry, if any, is the transport
// client's concern.
func (s *Service) SendText(ctx context.Context, sessionID, to, text string) (string, error) {
	mgr, ok := s.registry.Get(sessionID)
	if !ok {
		return "", ErrClientNotReady
	}
	client, ok := mgr.ActiveClient()
	if !ok {
		return "", ErrClientNotReady
	}

	messageID := uuid.New().String()
	recipient := transport.NormalizeRecipient(to)

	if err := client.SendText(ctx, messageID, recipient, text); err != nil {
		return "", fmt.Errorf("sending message: %w", err)
	}

	s.logger.Info("message sent", "session_id", sessionID, "message_id", messageID)
	return messageID, nil
}

// FormatPairingCode groups a raw pairing code in runs of 4 characters
// joined by a dash: "ABCD1234" becomes "ABCD-1234". Whitespace and existing
// dashes are stripped first; the code is uppercased.
func FormatPairingCode(raw string) string {
	cleaned := strings.ToUpper(strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '\t':
			return -1
		}
		return r
	}, raw))

	if cleaned == "" {
		return ""
	}

	// Group by characters, not bytes.
	var b strings.Builder
	for i, r := range []rune(cleaned) {
		if i > 0 && i%4 == 0 {
			b.WriteByte('-')
		}
		b.WriteRune(r)
	}
	return b.String()
}

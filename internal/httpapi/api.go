// ABOUTME: HTTP handlers for the public session surface.
// ABOUTME: Exposes status, pairing-code request, and send-message endpoints.

package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/2389/wagate/internal/messaging"
	"github.com/2389/wagate/internal/session"
)

// messagingService is the slice of the messaging facade the handlers need.
type messagingService interface {
	GetStatus(sessionID string) (messaging.Status, bool)
	RequestPairingCode(ctx context.Context, sessionID, phoneNumber string) (string, error)
	SendText(ctx context.Context, sessionID, to, text string) (string, error)
}

// StatusResponse is the JSON response for GET /status.
type StatusResponse struct {
	Status     string `json:"status"`
	Connection string `json:"connection"`
	User       string `json:"user,omitempty"`
	QRCode     string `json:"qrCode,omitempty"`
	Message    string `json:"message"`
}

// PairingCodeResponse is the JSON response for /request-pairing-code.
type PairingCodeResponse struct {
	Status      string `json:"status"`
	PairingCode string `json:"pairingCode"`
}

// SendMessageResponse is the JSON response for /send-message.
type SendMessageResponse struct {
	Status    string `json:"status"`
	MessageID string `json:"messageId,omitempty"`
}

// Server routes the public HTTP surface onto the messaging facade. All
// endpoints operate on the one configured session id.
type Server struct {
	svc       messagingService
	sessionID string
	logger    *slog.Logger
	mux       *http.ServeMux
}

// NewServer builds the handler set for the given session id.
func NewServer(svc messagingService, sessionID string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		svc:       svc,
		sessionID: sessionID,
		logger:    logger.With("component", "httpapi"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/request-pairing-code", s.handleRequestPairingCode)
	mux.HandleFunc("/send-message", s.handleSendMessage)
	s.mux = mux
	return s
}

// ServeHTTP dispatches to the route table with per-request logging.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := uuid.New().String()

	s.mux.ServeHTTP(w, r)

	s.logger.Debug("request handled",
		"request_id", requestID,
		"method", r.Method,
		"path", r.URL.Path,
		"duration_ms", time.Since(start).Milliseconds())
}

// handleRoot answers the liveness probe. Anything but the bare root is 404.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		s.sendError(w, http.StatusNotFound, "not found")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, "wagate is running")
}

// handleStatus handles GET /status. A session that was never initialized
// answers 503 so load balancers keep the instance out of rotation.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	st, ok := s.svc.GetStatus(s.sessionID)
	if !ok {
		s.sendError(w, http.StatusServiceUnavailable, "connection has not been initialized")
		return
	}

	resp := StatusResponse{
		Status:     st.State.String(),
		Connection: "disconnected",
		QRCode:     st.QR,
		Message:    statusMessage(st),
	}
	if st.State.Connected() {
		resp.Connection = "connected"
	}
	if st.Identity != nil {
		resp.User = st.Identity.ID
	}
	s.sendJSON(w, http.StatusOK, resp)
}

func statusMessage(st messaging.Status) string {
	switch st.State {
	case session.StateOpen:
		return "connected to WhatsApp"
	case session.StateConnecting:
		if st.QR != "" {
			return "waiting for pairing, scan the QR code or request a pairing code"
		}
		return "connecting"
	case session.StateLoggedOut:
		return "logged out, a new pairing is required"
	case session.StateClosed:
		return "disconnected, reconnect pending"
	default:
		return "not initialized"
	}
}

// handleRequestPairingCode handles POST|GET /request-pairing-code. The phone
// number is read from the JSON body first, then the query string.
func (s *Server) handleRequestPairingCode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		s.sendError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	body := decodeBody(r)
	phone := requestField(r, body, "phoneNumber")
	if phone == "" {
		s.sendError(w, http.StatusBadRequest, "phoneNumber is required")
		return
	}

	code, err := s.svc.RequestPairingCode(r.Context(), s.sessionID, phone)
	switch {
	case err == nil:
		s.sendJSON(w, http.StatusOK, PairingCodeResponse{Status: "success", PairingCode: code})
	case errors.Is(err, messaging.ErrAlreadyRegistered):
		s.sendError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, messaging.ErrClientNotReady):
		s.sendError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.logger.Error("pairing code request failed", "error", err)
		s.sendError(w, http.StatusInternalServerError, err.Error())
	}
}

// handleSendMessage handles POST|GET /send-message with `to` and `message`
// supplied in the JSON body or the query string.
func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		s.sendError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	body := decodeBody(r)
	to := requestField(r, body, "to")
	text := requestField(r, body, "message")
	if to == "" || text == "" {
		s.sendError(w, http.StatusBadRequest, "to and message are required")
		return
	}

	messageID, err := s.svc.SendText(r.Context(), s.sessionID, to, text)
	switch {
	case err == nil:
		s.sendJSON(w, http.StatusOK, SendMessageResponse{Status: "success", MessageID: messageID})
	case errors.Is(err, messaging.ErrClientNotReady):
		s.sendError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.logger.Error("send message failed", "error", err)
		s.sendError(w, http.StatusInternalServerError, err.Error())
	}
}

// decodeBody decodes a JSON object body for POST requests. A missing or
// malformed body is treated as empty; the query string still applies.
func decodeBody(r *http.Request) map[string]any {
	if r.Method != http.MethodPost || r.Body == nil {
		return nil
	}
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return nil
	}
	return body
}

// requestField returns a named string field, preferring the decoded JSON
// body over the query string.
func requestField(r *http.Request, body map[string]any, name string) string {
	if v, ok := body[name].(string); ok && v != "" {
		return v
	}
	return r.URL.Query().Get(name)
}

// sendJSON writes a JSON response with the given status code.
func (s *Server) sendJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// sendError writes a structured JSON error response.
func (s *Server) sendError(w http.ResponseWriter, status int, message string) {
	s.sendJSON(w, status, map[string]string{"status": "error", "message": message})
}

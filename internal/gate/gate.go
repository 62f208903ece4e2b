// ABOUTME: Startup entitlement gate that validates the configured API key
// ABOUTME: Calls the entitlement endpoint once before the service starts

package gate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// DefaultEntitlementURL is the endpoint checked when none is configured.
const DefaultEntitlementURL = "https://api.jkt48connect.my.id/api/check-apikey"

// ErrAPIKeyMissing means no API key was configured at all.
var ErrAPIKeyMissing = errors.New("api key is not configured")

// ErrEntitlementInvalid means the entitlement endpoint rejected the key.
var ErrEntitlementInvalid = errors.New("api key is not valid")

// Validator checks the configured API key against the entitlement endpoint.
// It runs exactly once at startup; a rejected or unreachable endpoint is
// fatal, never retried in the background.
type Validator struct {
	entitlementURL string
	apiKey         string
	httpClient     *http.Client
	logger         *slog.Logger
}

// NewValidator creates a validator for the given key. An empty
// entitlementURL falls back to DefaultEntitlementURL.
func NewValidator(entitlementURL, apiKey string, logger *slog.Logger) *Validator {
	if entitlementURL == "" {
		entitlementURL = DefaultEntitlementURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{
		entitlementURL: entitlementURL,
		apiKey:         apiKey,
		httpClient:     &http.Client{Timeout: 15 * time.Second},
		logger:         logger.With("component", "gate"),
	}
}

type entitlementResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Validate checks the key against the entitlement endpoint. It returns
// ErrAPIKeyMissing for an unconfigured key and ErrEntitlementInvalid when
// the endpoint says the key is not entitled.
func (v *Validator) Validate(ctx context.Context) error {
	if v.apiKey == "" {
		return ErrAPIKeyMissing
	}

	u, err := url.Parse(v.entitlementURL)
	if err != nil {
		return fmt.Errorf("parsing entitlement url: %w", err)
	}
	q := u.Query()
	q.Set("api_key", v.apiKey)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("building entitlement request: %w", err)
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("checking api key: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("reading entitlement response: %w", err)
	}

	var ent entitlementResponse
	if err := json.Unmarshal(body, &ent); err != nil {
		return fmt.Errorf("decoding entitlement response (status %d): %w", resp.StatusCode, err)
	}

	if !ent.Success {
		if ent.Message != "" {
			return fmt.Errorf("%w: %s", ErrEntitlementInvalid, ent.Message)
		}
		return ErrEntitlementInvalid
	}

	v.logger.Info("api key validated", "message", ent.Message)
	return nil
}

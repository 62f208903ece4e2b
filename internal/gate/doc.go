// Package gate validates the configured API key against the external
// entitlement endpoint before the service is allowed to start.
package gate

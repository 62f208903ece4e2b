// Package httpapi exposes the public HTTP surface: a liveness probe, a
// status endpoint, and the pairing-code and send-message operations. It
// translates facade errors into HTTP status codes and structured JSON.
package httpapi

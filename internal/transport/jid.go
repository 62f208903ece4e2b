// ABOUTME: Recipient address normalization for the messaging platform
// ABOUTME: Appends the standard user server suffix to bare identifiers

package transport

import "strings"

// DefaultUserServer is the platform's standard address suffix for user
// accounts.
const DefaultUserServer = "s.whatsapp.net"

// NormalizeRecipient turns a caller-supplied recipient into a full platform
// address. A bare phone number gets the standard user server appended; an
// address that already carries a server is returned unchanged. A leading
// "+" on a bare number is dropped.
func NormalizeRecipient(to string) string {
	to = strings.TrimSpace(to)
	if to == "" {
		return to
	}
	if strings.Contains(to, "@") {
		return to
	}
	to = strings.TrimPrefix(to, "+")
	return to + "@" + DefaultUserServer
}

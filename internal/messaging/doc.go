// Package messaging is the facade over the session layer for the public
// operations: status, pairing-code requests, and sending text messages. It
// validates preconditions, normalizes recipients, and assigns message ids,
// but holds no connection or credential state of its own.
package messaging

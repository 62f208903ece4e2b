// Package creds defines the durable credential blob persisted per session:
// the platform registration record plus the key-type/key-id record map.
package creds

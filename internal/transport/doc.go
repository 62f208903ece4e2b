// Package transport defines the boundary to the external messaging platform
// client: the Client contract, the key-material provider it pulls from, the
// lifecycle events it pushes back, and a named driver registry.
//
// The wire protocol itself (handshake, encryption, multi-device key
// exchange) lives behind a driver. Drivers register themselves by name at
// init time and are selected through configuration; see the memory driver
// for the in-process implementation used in development and tests.
package transport

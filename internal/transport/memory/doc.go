// Package memory provides an in-process transport driver that simulates the
// messaging platform for development and tests.
package memory

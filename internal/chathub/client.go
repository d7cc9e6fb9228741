package chathub

import "bloodlink/backend/internal/models"

// Client is one live connection as seen by the hub.
type Client interface {
	// ID returns the connection id. One user may own several connections.
	ID() string

	// GetSendChannel returns the channel the hub writes outbound frames to.
	// Only the hub sends on it, and only the hub closes it (through Close).
	GetSendChannel() chan<- models.Frame

	// Run starts the connection's read and write loops.
	Run()
	// Close closes the send channel. The write loop flushes what is queued
	// and then closes the underlying connection.
	Close()
}

package realtime

import (
	"time"

	"plume/cmd/identity/ids"
)

// NewConnID returns a ULID used as websocket connection id.
func NewConnID(now time.Time) string {
	id, err := ids.NewULID(now)
	if err != nil {
		// Entropy failure: fall back to random hex so the connection can
		// still be traced in logs.
		return NewRandomHex(13)
	}
	return id
}

// NewEnvelopeID returns a ULID used as envelope id.
// ULID is preferable to random hex for tracing and ordering in logs.
func NewEnvelopeID(now time.Time) string {
	id, err := ids.NewULID(now)
	if err != nil {
		return NewRandomHex(13)
	}
	return id
}

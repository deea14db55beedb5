package orchestrator

import (
	"time"

	"github.com/google/uuid"
)

// Session is the bookkeeping unit for one wake-word-to-reply interaction.
// Exactly one session is active at a time; a new wake-word event cannot
// create a second session while this one is non-terminal. Sessions live
// only in process memory and are discarded once terminal.
type Session struct {
	// ID is the opaque correlation token carried on the bus.
	ID string

	// CreatedAt is when the wake word fired.
	CreatedAt time.Time

	// Transcript is set when transcription succeeds.
	Transcript string

	// Reply is set when the bus round-trip succeeds.
	Reply string
}

func newSession(at time.Time) *Session {
	return &Session{
		ID:        uuid.NewString(),
		CreatedAt: at,
	}
}

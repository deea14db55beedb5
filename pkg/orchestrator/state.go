package orchestrator

// State is the orchestrator's current stage. It is a closed set; the only
// writer is the orchestrator's own event loop.
type State int

const (
	// StateIdle is the pre-start state.
	StateIdle State = iota
	// StateListening means the wake-word detector is armed.
	StateListening
	// StateRecording means an utterance capture is in progress.
	StateRecording
	// StateTranscribing means a bounded STT call is in flight.
	StateTranscribing
	// StateAwaitingReply means a bus round-trip is in flight.
	StateAwaitingReply
	// StateSpeaking means reply synthesis/playback is in progress.
	StateSpeaking
	// StateError is a transient state that always re-arms listening.
	StateError
)

// String returns the state name as published on the status topic.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateRecording:
		return "recording"
	case StateTranscribing:
		return "transcribing"
	case StateAwaitingReply:
		return "awaiting_reply"
	case StateSpeaking:
		return "speaking"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Active reports whether the state is part of an in-flight session.
// Every active state must have a bounded path back to StateListening.
func (s State) Active() bool {
	switch s {
	case StateRecording, StateTranscribing, StateAwaitingReply, StateSpeaking:
		return true
	default:
		return false
	}
}

package bus

import "time"

// Default topics. Payloads below are the contract with the reasoning
// service; topics can be overridden in Config.
const (
	DefaultRequestTopic  = "voice/request"
	DefaultResponseTopic = "voice/response"
	DefaultStatusTopic   = "voice/status"
)

// VoiceRequest is published on the request topic once per transcribed
// utterance. Immutable after publish.
type VoiceRequest struct {
	Transcription string    `json:"transcription"`
	Timestamp     time.Time `json:"timestamp"`
	SessionID     string    `json:"session_id"`
}

// VoiceReply arrives on the response topic and is matched to the waiting
// session by SessionID.
type VoiceReply struct {
	Response  string    `json:"response"`
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Status is published on the status topic on every orchestrator transition.
type Status struct {
	State          string `json:"state"`
	WakeWordActive bool   `json:"wake_word_active"`
	Error          string `json:"error,omitempty"`
}

// Package tts provides a unified interface for text-to-speech providers.
//
// All providers implement the Provider interface, so the orchestrator can
// switch between a primary and a fallback without changing caller code.
// Both buffered synthesis (whole clip before playback) and streamed
// synthesis (chunks begin playback before the full text is synthesized)
// sit behind the same interface.
package tts

import (
	"context"
	"time"
)

// Provider defines the TTS provider interface.
type Provider interface {
	// Synthesize converts text to audio, returning the complete audio
	// buffer. Use this for short text where time to first byte is less
	// critical.
	Synthesize(ctx context.Context, text string) (*AudioResult, error)

	// Stream converts text to audio with streaming output for lowest
	// latency. Audio chunks are returned as they become available.
	Stream(ctx context.Context, text string) (AudioStream, error)

	// Name returns the provider name (e.g., "elevenlabs", "openai").
	Name() string

	// Close releases any resources held by the provider.
	Close() error
}

// AudioStream represents a streaming audio response.
// Callers should read until Read returns nil, then call Close.
type AudioStream interface {
	// Read returns the next audio chunk.
	// Returns nil when the stream is complete (not an error).
	Read() ([]byte, error)

	// Close stops the stream and releases resources.
	Close() error

	// Format returns the audio format metadata.
	Format() AudioFormat
}

// AudioResult represents a complete audio synthesis result.
type AudioResult struct {
	// Audio contains the raw audio data in the specified format.
	Audio []byte

	// Format describes the audio encoding and sample rate.
	Format AudioFormat

	// Duration is the estimated audio playback duration.
	Duration time.Duration

	// LatencyMs is the time to first byte in milliseconds.
	LatencyMs int64
}

// AudioFormat describes the audio encoding parameters.
type AudioFormat struct {
	// Encoding specifies the audio codec (e.g., pcm_16000).
	Encoding Encoding

	// SampleRate in Hz.
	SampleRate int

	// Channels is 1 for mono, 2 for stereo.
	Channels int

	// BitDepth for PCM formats.
	BitDepth int
}

// Encoding represents audio encoding types.
type Encoding string

const (
	// PCM formats (raw audio, lowest latency)
	EncodingPCM16 Encoding = "pcm_16000" // 16kHz mono PCM16
	EncodingPCM22 Encoding = "pcm_22050" // 22.05kHz mono PCM16
	EncodingPCM24 Encoding = "pcm_24000" // 24kHz mono PCM16

	// Compressed formats
	EncodingMP3 Encoding = "mp3_44100_128" // MP3 128kbps
)

// SampleRateFromEncoding extracts the sample rate from an encoding type.
func SampleRateFromEncoding(enc Encoding) int {
	switch enc {
	case EncodingPCM16:
		return 16000
	case EncodingPCM22:
		return 22050
	case EncodingPCM24:
		return 24000
	case EncodingMP3:
		return 44100
	default:
		return 16000
	}
}

// pcmDuration estimates play time for PCM16 bytes at the given rate.
func pcmDuration(bytes, sampleRate int) time.Duration {
	if sampleRate == 0 {
		return 0
	}
	samples := bytes / 2
	return time.Duration(float64(samples) / float64(sampleRate) * float64(time.Second))
}

// bufferStream wraps a byte slice as AudioStream.
type bufferStream struct {
	data   []byte
	format AudioFormat
	pos    int
}

// Read returns the next chunk, up to 4KiB.
func (s *bufferStream) Read() ([]byte, error) {
	if s.pos >= len(s.data) {
		return nil, nil
	}
	end := s.pos + 4096
	if end > len(s.data) {
		end = len(s.data)
	}
	chunk := s.data[s.pos:end]
	s.pos = end
	return chunk, nil
}

// Close is a no-op for buffered streams.
func (s *bufferStream) Close() error {
	return nil
}

// Format returns the audio format.
func (s *bufferStream) Format() AudioFormat {
	return s.format
}

package tts

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	elevenLabsWSBaseURL = "wss://api.elevenlabs.io/v1/text-to-speech"
	providerElevenLabs  = "elevenlabs"
	defaultElevenModel  = "eleven_flash_v2_5"
)

// ElevenLabs implements Provider using the stream-input WebSocket API,
// which delivers audio chunks as they are generated for lowest latency.
type ElevenLabs struct {
	config *Config
	logger *slog.Logger
}

// NewElevenLabs creates a new ElevenLabs TTS provider.
func NewElevenLabs(opts ...Option) (*ElevenLabs, error) {
	cfg := DefaultConfig()
	cfg.ModelID = defaultElevenModel
	cfg.OutputFormat = EncodingPCM16
	cfg.Apply(opts...)

	if err := cfg.ValidateWithVoice(); err != nil {
		return nil, err
	}

	return &ElevenLabs{
		config: cfg,
		logger: cfg.Logger.With("component", "tts.elevenlabs"),
	}, nil
}

// Synthesize converts text to audio, returning the complete audio buffer.
func (e *ElevenLabs) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	start := time.Now()

	stream, err := e.Stream(ctx, text)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	var audio []byte
	var firstByte time.Duration
	for {
		chunk, err := stream.Read()
		if err != nil {
			return nil, err
		}
		if chunk == nil {
			break
		}
		if audio == nil {
			firstByte = time.Since(start)
		}
		audio = append(audio, chunk...)
	}

	format := stream.Format()
	return &AudioResult{
		Audio:     audio,
		Format:    format,
		Duration:  pcmDuration(len(audio), format.SampleRate),
		LatencyMs: firstByte.Milliseconds(),
	}, nil
}

// Stream opens a WebSocket, sends the full text, and returns a stream of
// decoded audio chunks as the API produces them.
func (e *ElevenLabs) Stream(ctx context.Context, text string) (AudioStream, error) {
	url := fmt.Sprintf("%s/%s/stream-input?model_id=%s&output_format=%s",
		e.wsBaseURL(), e.config.VoiceID, e.config.ModelID, e.config.OutputFormat)

	headers := http.Header{}
	headers.Set("xi-api-key", e.config.APIKey)

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, resp, err := dialer.DialContext(ctx, url, headers)
	if err != nil {
		if resp != nil {
			return nil, WrapError(providerElevenLabs,
				fmt.Errorf("websocket dial failed (status %d): %w", resp.StatusCode, err))
		}
		return nil, WrapError(providerElevenLabs, fmt.Errorf("websocket dial failed: %w", err))
	}

	// BOS, the text, then EOS. The API flushes remaining audio on EOS.
	bos := map[string]any{
		"text": " ",
		"voice_settings": map[string]any{
			"stability":        0.5,
			"similarity_boost": 0.75,
		},
	}
	msgs := []any{
		bos,
		map[string]any{"text": text + " "},
		map[string]any{"text": ""},
	}
	for _, msg := range msgs {
		if err := conn.WriteJSON(msg); err != nil {
			conn.Close()
			return nil, WrapError(providerElevenLabs, fmt.Errorf("send: %w", err))
		}
	}

	s := &wsStream{
		conn:   conn,
		format: e.outputFormat(),
		chunks: make(chan []byte, 16),
		errs:   make(chan error, 1),
		done:   make(chan struct{}),
	}
	go s.readLoop(ctx, e.logger)

	return s, nil
}

func (e *ElevenLabs) wsBaseURL() string {
	if e.config.BaseURL != "" {
		return e.config.BaseURL
	}
	return elevenLabsWSBaseURL
}

func (e *ElevenLabs) outputFormat() AudioFormat {
	return AudioFormat{
		Encoding:   e.config.OutputFormat,
		SampleRate: SampleRateFromEncoding(e.config.OutputFormat),
		Channels:   1,
		BitDepth:   16,
	}
}

// Name returns "elevenlabs".
func (e *ElevenLabs) Name() string {
	return providerElevenLabs
}

// Close releases resources. Connections are per-stream.
func (e *ElevenLabs) Close() error {
	return nil
}

// wsStream adapts the stream-input WebSocket to AudioStream.
type wsStream struct {
	conn   *websocket.Conn
	format AudioFormat
	chunks chan []byte
	errs   chan error
	done   chan struct{}
	closed bool
}

func (s *wsStream) readLoop(ctx context.Context, logger *slog.Logger) {
	defer close(s.chunks)

	for {
		if deadline, ok := ctx.Deadline(); ok {
			s.conn.SetReadDeadline(deadline)
		}

		var msg struct {
			Audio   string `json:"audio"`
			IsFinal bool   `json:"isFinal"`
			Error   string `json:"error"`
		}
		if err := s.conn.ReadJSON(&msg); err != nil {
			select {
			case <-s.done:
				// Closed by the consumer; not an error.
			default:
				s.errs <- WrapError(providerElevenLabs, fmt.Errorf("read: %w", err))
			}
			return
		}

		if msg.Error != "" {
			s.errs <- WrapError(providerElevenLabs, fmt.Errorf("api error: %s", msg.Error))
			return
		}
		if msg.IsFinal {
			return
		}
		if msg.Audio == "" {
			continue
		}

		decoded, err := base64.StdEncoding.DecodeString(msg.Audio)
		if err != nil {
			logger.Warn("undecodable audio chunk", "error", err)
			continue
		}

		select {
		case s.chunks <- decoded:
		case <-s.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Read returns the next audio chunk, nil when the stream completes.
func (s *wsStream) Read() ([]byte, error) {
	select {
	case err := <-s.errs:
		return nil, err
	case chunk, ok := <-s.chunks:
		if !ok {
			// Drain a late error if the loop exited on failure.
			select {
			case err := <-s.errs:
				return nil, err
			default:
				return nil, nil
			}
		}
		return chunk, nil
	}
}

// Close stops the stream.
func (s *wsStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.done)
	return s.conn.Close()
}

// Format returns the audio format.
func (s *wsStream) Format() AudioFormat {
	return s.format
}

// Verify ElevenLabs implements Provider at compile time.
var _ Provider = (*ElevenLabs)(nil)

package stt

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/foyerhq/foyer/internal/httpc"
	"github.com/foyerhq/foyer/pkg/recorder"
)

const providerWhisper = "whisper"

// Whisper transcribes against a local whisper-server instance
// (OpenAI-compatible /inference endpoint taking a WAV upload).
type Whisper struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewWhisper creates a client for a whisper-server at baseURL.
func NewWhisper(baseURL string, logger *slog.Logger) *Whisper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Whisper{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  httpc.Client,
		logger:  logger.With("component", "stt.whisper"),
	}
}

// Transcribe uploads the utterance and returns the transcript text.
func (w *Whisper) Transcribe(ctx context.Context, u recorder.Utterance) (string, error) {
	if u.Empty() {
		return "", ErrEmptyUtterance
	}
	if _, ok := ctx.Deadline(); !ok {
		return "", fmt.Errorf("%w: missing deadline", ErrService)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "utterance.wav")
	if err != nil {
		return "", fmt.Errorf("%w: build form: %v", ErrService, err)
	}
	if _, err := fw.Write(wavEncode(u.Audio, u.SampleRate)); err != nil {
		return "", fmt.Errorf("%w: build form: %v", ErrService, err)
	}
	if err := mw.WriteField("response_format", "json"); err != nil {
		return "", fmt.Errorf("%w: build form: %v", ErrService, err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("%w: build form: %v", ErrService, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.baseURL+"/inference", &body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrService, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := w.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", classify(err), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("%w: status %d: %s", ErrService, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrService, err)
	}

	text := strings.TrimSpace(out.Text)
	w.logger.Debug("transcription complete", "chars", len(text))

	return text, nil
}

// Name returns "whisper".
func (w *Whisper) Name() string {
	return providerWhisper
}

// Close is a no-op; the HTTP client is shared.
func (w *Whisper) Close() error {
	return nil
}

// wavEncode wraps raw PCM16 mono bytes in a minimal WAV header.
func wavEncode(pcm []byte, sampleRate int) []byte {
	var buf bytes.Buffer

	dataLen := uint32(len(pcm))
	byteRate := uint32(sampleRate * 2)

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, 36+dataLen)
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // mono
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, byteRate)
	binary.Write(&buf, binary.LittleEndian, uint16(2))  // block align
	binary.Write(&buf, binary.LittleEndian, uint16(16)) // bits per sample
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, dataLen)
	buf.Write(pcm)

	return buf.Bytes()
}

var _ Client = (*Whisper)(nil)

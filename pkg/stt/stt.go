// Package stt provides a unified interface for speech-to-text backends.
//
// A Client makes a single bounded call per utterance. The caller owns the
// deadline and the retry policy; this layer only distinguishes a deadline
// expiry (ErrTimeout) from a backend failure (ErrService) so the caller can
// branch on the outcome.
package stt

import (
	"context"
	"errors"

	"github.com/foyerhq/foyer/pkg/recorder"
)

// Sentinel errors. Backends wrap these so callers can use errors.Is.
var (
	// ErrTimeout is returned when the context deadline expired before a
	// transcript was produced.
	ErrTimeout = errors.New("stt: deadline exceeded")

	// ErrService is returned for any backend failure other than a timeout.
	ErrService = errors.New("stt: service error")

	// ErrEmptyUtterance is returned when the utterance contains no audio.
	ErrEmptyUtterance = errors.New("stt: empty utterance")
)

// Client transcribes a finished utterance.
type Client interface {
	// Transcribe converts the utterance to text. The context must carry
	// a deadline; no retries happen at this layer.
	Transcribe(ctx context.Context, u recorder.Utterance) (string, error)

	// Name returns the backend name (e.g., "whisper", "google", "mock").
	Name() string

	// Close releases any resources held by the client.
	Close() error
}

// classify maps a transport error to the package taxonomy.
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return ErrService
}

package stt

import (
	"context"
	"sync"

	"github.com/foyerhq/foyer/pkg/recorder"
)

// Mock implements Client for testing.
type Mock struct {
	// TranscribeFunc is called when Transcribe is invoked.
	// If nil, returns "mock transcript".
	TranscribeFunc func(ctx context.Context, u recorder.Utterance) (string, error)

	mu    sync.Mutex
	calls int
}

// NewMock creates a mock transcription client.
func NewMock() *Mock {
	return &Mock{}
}

// Transcribe calls TranscribeFunc and records the call.
func (m *Mock) Transcribe(ctx context.Context, u recorder.Utterance) (string, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.TranscribeFunc != nil {
		return m.TranscribeFunc(ctx, u)
	}
	return "mock transcript", nil
}

// Name returns "mock".
func (m *Mock) Name() string {
	return "mock"
}

// Close is a no-op.
func (m *Mock) Close() error {
	return nil
}

// Calls returns the number of Transcribe invocations.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

var _ Client = (*Mock)(nil)

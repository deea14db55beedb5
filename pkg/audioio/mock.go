package audioio

import (
	"context"
	"io"
	"log/slog"
	"math"
	"sync"
	"time"
)

// MockSource is a mock audio source for testing.
// It can generate synthetic audio (silence or sine wave) on a ticker, or
// accept frames pushed directly via Push for deterministic tests.
type MockSource struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	running  bool
	closed   bool
	frameCh  chan Frame
	stopCh   chan struct{}
	seq      uint64
	generate bool

	// Synthetic audio generation
	phase     float64
	frequency float64 // Hz, 0 = silence
	amplitude float64 // 0.0 to 1.0
}

// MockSourceOption configures a MockSource.
type MockSourceOption func(*MockSource)

// WithSineWave configures the mock to generate a sine wave on a ticker.
func WithSineWave(frequency, amplitude float64) MockSourceOption {
	return func(m *MockSource) {
		m.generate = true
		m.frequency = frequency
		m.amplitude = amplitude
	}
}

// WithGenerator enables ticker-driven silence generation.
// Without a generator option, frames only arrive via Push.
func WithGenerator() MockSourceOption {
	return func(m *MockSource) {
		m.generate = true
	}
}

// NewMockSource creates a new mock audio source.
func NewMockSource(cfg Config, logger *slog.Logger, opts ...MockSourceOption) *MockSource {
	if logger == nil {
		logger = slog.Default()
	}

	m := &MockSource{
		cfg:       cfg,
		logger:    logger,
		frameCh:   make(chan Frame, 32),
		stopCh:    make(chan struct{}),
		amplitude: 0.5,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Start begins producing audio.
func (m *MockSource) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return io.ErrClosedPipe
	}
	if m.running {
		return nil
	}

	m.running = true
	m.stopCh = make(chan struct{})

	if m.generate {
		go m.generateLoop(ctx)
	}

	m.logger.Info("mock audio source started",
		"sample_rate", m.cfg.SampleRate,
		"generate", m.generate,
	)

	return nil
}

func (m *MockSource) generateLoop(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.FrameDuration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.Stop()
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.Push(m.generateSamples())
		}
	}
}

func (m *MockSource) generateSamples() []int16 {
	samples := make([]int16, m.cfg.FrameSize())

	if m.frequency > 0 {
		for i := range samples {
			v := m.amplitude * math.Sin(2*math.Pi*m.frequency*m.phase/float64(m.cfg.SampleRate))
			samples[i] = int16(v * 32767)

			m.phase++
			if m.phase >= float64(m.cfg.SampleRate) {
				m.phase = 0
			}
		}
	}
	// else: samples stay zero (silence)

	return samples
}

// Push delivers a frame to consumers. Frames are dropped when the buffer is
// full, matching hardware overrun behavior.
func (m *MockSource) Push(samples []int16) {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.seq++
	frame := Frame{
		Samples:    samples,
		SampleRate: m.cfg.SampleRate,
		Timestamp:  time.Now(),
		Seq:        m.seq,
	}
	ch := m.frameCh
	m.mu.Unlock()

	select {
	case ch <- frame:
	default:
		m.logger.Debug("mock source: buffer full, dropping frame")
	}
}

// Stop halts audio production.
func (m *MockSource) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil
	}

	m.running = false
	close(m.stopCh)
	close(m.frameCh)

	m.logger.Info("mock audio source stopped")

	return nil
}

// Frames returns the frame channel.
func (m *MockSource) Frames() <-chan Frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frameCh
}

// Config returns the audio configuration.
func (m *MockSource) Config() Config {
	return m.cfg
}

// Name returns "mock".
func (m *MockSource) Name() string {
	return "mock"
}

// Close releases resources.
func (m *MockSource) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	m.Stop()
	return nil
}

// Ensure MockSource implements Source.
var _ Source = (*MockSource)(nil)

// MockSink is a mock audio sink for testing.
// It discards audio data but retains what was written for verification.
type MockSink struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	closed  bool
	written []byte
	writes  int
}

// NewMockSink creates a new mock audio sink.
func NewMockSink(cfg Config, logger *slog.Logger) *MockSink {
	if logger == nil {
		logger = slog.Default()
	}

	return &MockSink{
		cfg:    cfg,
		logger: logger,
	}
}

// Start begins accepting audio.
func (m *MockSink) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return io.ErrClosedPipe
	}

	m.running = true
	m.logger.Info("mock audio sink started")

	return nil
}

// Stop halts audio acceptance.
func (m *MockSink) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.running = false
	m.logger.Info("mock audio sink stopped")

	return nil
}

// Write accepts PCM bytes.
func (m *MockSink) Write(ctx context.Context, pcm []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed || !m.running {
		return io.ErrClosedPipe
	}

	m.written = append(m.written, pcm...)
	m.writes++

	return nil
}

// Flush simulates waiting for playback to drain.
func (m *MockSink) Flush(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(time.Millisecond):
		return nil
	}
}

// Clear discards buffered audio.
func (m *MockSink) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.written = m.written[:0]
	m.logger.Debug("mock audio sink cleared")

	return nil
}

// Config returns the audio configuration.
func (m *MockSink) Config() Config {
	return m.cfg
}

// Name returns "mock".
func (m *MockSink) Name() string {
	return "mock"
}

// Close releases resources.
func (m *MockSink) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	m.Stop()
	return nil
}

// Written returns all bytes written so far.
func (m *MockSink) Written() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]byte, len(m.written))
	copy(out, m.written)
	return out
}

// Writes returns the number of Write calls.
func (m *MockSink) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// Ensure MockSink implements Sink.
var _ Sink = (*MockSink)(nil)

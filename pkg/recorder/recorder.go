// Package recorder captures a single utterance from a stream of audio frames.
//
// A Capture is started when the wake word fires. Frames are fed in capture
// order; the capture ends when the voice activity detector reports enough
// trailing silence, or when the hard max-duration ceiling is hit. The
// ceiling always wins so worst-case latency and memory stay bounded.
package recorder

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/foyerhq/foyer/pkg/audioio"
	"github.com/foyerhq/foyer/pkg/vad"
)

// EndReason describes why a capture stopped.
type EndReason string

const (
	// EndSilence means the trailing-silence window elapsed.
	EndSilence EndReason = "silence"
	// EndMaxDuration means the hard duration ceiling was hit.
	EndMaxDuration EndReason = "max-duration"
	// EndAborted means the capture was cancelled before completion.
	EndAborted EndReason = "aborted"
)

// Utterance is one captured span of user speech.
type Utterance struct {
	// Audio is raw PCM16 little-endian bytes.
	Audio []byte

	// SampleRate of the audio in Hz.
	SampleRate int

	// Duration is the total captured play time.
	Duration time.Duration

	// EndReason records why capture stopped.
	EndReason EndReason
}

// Empty reports whether no speech was captured.
func (u *Utterance) Empty() bool {
	return len(u.Audio) == 0
}

// Config holds capture limits.
type Config struct {
	// TrailingSilence is how much continuous silence ends the utterance.
	// A single silent frame never ends capture; natural pauses survive.
	TrailingSilence time.Duration `yaml:"trailing_silence" json:"trailing_silence"`

	// MaxDuration is the hard ceiling on utterance length.
	MaxDuration time.Duration `yaml:"max_duration" json:"max_duration"`

	// VAD is the voice activity detector tuning.
	VAD vad.Config `yaml:"vad" json:"vad"`
}

// DefaultConfig returns sensible capture limits.
func DefaultConfig() Config {
	return Config{
		TrailingSilence: 1500 * time.Millisecond,
		MaxDuration:     10 * time.Second,
		VAD:             vad.DefaultConfig(),
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.TrailingSilence <= 0 {
		return fmt.Errorf("trailing_silence must be positive, got %v", c.TrailingSilence)
	}
	if c.MaxDuration <= c.TrailingSilence {
		return fmt.Errorf("max_duration %v must exceed trailing_silence %v", c.MaxDuration, c.TrailingSilence)
	}
	return nil
}

// Recorder creates captures.
type Recorder struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a Recorder.
func New(cfg Config, logger *slog.Logger) (*Recorder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{cfg: cfg, logger: logger.With("component", "recorder")}, nil
}

// BeginCapture starts a new capture.
func (r *Recorder) BeginCapture() *Capture {
	return &Capture{
		cfg:    r.cfg,
		logger: r.logger,
		vad:    vad.New(r.cfg.VAD),
		done:   make(chan Utterance, 1),
	}
}

// Capture accumulates frames until a stop condition is met.
// Feed and Abort must be called from a single goroutine; the terminal
// Utterance is delivered exactly once on Done.
type Capture struct {
	cfg    Config
	logger *slog.Logger
	vad    *vad.Detector

	audio      []byte
	sampleRate int
	duration   time.Duration
	finished   bool
	done       chan Utterance
}

// Done returns the channel on which the terminal utterance is delivered.
func (c *Capture) Done() <-chan Utterance {
	return c.done
}

// Feed processes one captured frame.
// Frames fed after the capture finishes are ignored.
func (c *Capture) Feed(frame audioio.Frame) {
	if c.finished {
		return
	}

	c.sampleRate = frame.SampleRate
	c.audio = append(c.audio, frame.Bytes()...)
	c.duration += frame.Duration()

	c.vad.Observe(frame.Samples, frame.Duration())

	// The hard ceiling always wins over silence detection.
	if c.duration >= c.cfg.MaxDuration {
		c.finish(EndMaxDuration)
		return
	}

	if c.vad.TrailingSilence() >= c.cfg.TrailingSilence {
		c.finish(EndSilence)
	}
}

// Abort cancels the capture, delivering an empty terminal utterance.
func (c *Capture) Abort() {
	if c.finished {
		return
	}
	c.audio = nil
	c.finish(EndAborted)
}

func (c *Capture) finish(reason EndReason) {
	c.finished = true

	audio := c.audio
	duration := c.duration
	if !c.vad.SawSpeech() {
		// Wake word followed by nothing: still a well-formed utterance,
		// just a zero-length one.
		audio = nil
		duration = 0
	}

	u := Utterance{
		Audio:      audio,
		SampleRate: c.sampleRate,
		Duration:   duration,
		EndReason:  reason,
	}

	c.logger.Debug("capture finished",
		"reason", reason,
		"duration_ms", duration.Milliseconds(),
		"bytes", len(audio),
	)

	c.done <- u
	close(c.done)
}

// Finished reports whether the capture has delivered its utterance.
func (c *Capture) Finished() bool {
	return c.finished
}

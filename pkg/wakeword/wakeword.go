// Package wakeword detects a configured wake phrase in an audio stream.
//
// The detector feeds each frame through a Model that produces a feature
// embedding, keeps a fixed-length rolling window of embeddings, and asks the
// model to classify the window once it is full. A detection fires when the
// score reaches the configured threshold; a refractory period then suppresses
// further detections so a single utterance cannot trigger twice.
package wakeword

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/foyerhq/foyer/pkg/audioio"
)

// ErrDegraded is returned by Feed after the model has failed on enough
// consecutive frames. The caller should Stop the detector and restart it
// with backoff rather than let it die silently.
var ErrDegraded = errors.New("wakeword: detector degraded")

// Model is the provided wake-word classifier.
// Implementations must be safe for use from a single goroutine.
type Model interface {
	// Embed converts one PCM16 frame into a feature embedding.
	Embed(samples []int16) ([]float32, error)

	// Score classifies a full window of embeddings, returning a
	// confidence in [0, 1].
	Score(window [][]float32) (float64, error)

	// WindowSize is the number of embedding frames the model needs
	// before a classification is meaningful.
	WindowSize() int
}

// Event is emitted when the wake phrase is recognized.
type Event struct {
	// Score is the classifier confidence that fired the detection.
	Score float64

	// Timestamp is when the triggering frame was captured.
	Timestamp time.Time
}

// Config holds detector parameters.
type Config struct {
	// Threshold is the minimum score for a detection.
	Threshold float64 `yaml:"threshold" json:"threshold"`

	// Refractory suppresses detections for this long after one fires.
	Refractory time.Duration `yaml:"refractory" json:"refractory"`

	// FailureLimit is the consecutive model-failure count that marks the
	// detector degraded.
	FailureLimit int `yaml:"failure_limit" json:"failure_limit"`
}

// DefaultConfig returns sensible detector parameters.
func DefaultConfig() Config {
	return Config{
		Threshold:    0.5,
		Refractory:   2 * time.Second,
		FailureLimit: 5,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Threshold <= 0 || c.Threshold > 1 {
		return fmt.Errorf("threshold must be in (0, 1], got %v", c.Threshold)
	}
	if c.Refractory < 0 {
		return fmt.Errorf("refractory must not be negative, got %v", c.Refractory)
	}
	if c.FailureLimit <= 0 {
		return fmt.Errorf("failure_limit must be positive, got %d", c.FailureLimit)
	}
	return nil
}

// Detector consumes audio frames and emits detection events.
// Feed must be called from a single goroutine; Events may be read elsewhere.
type Detector struct {
	cfg    Config
	model  Model
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	events  chan Event

	window    [][]float32
	lastFire  time.Time
	failures  int
	degraded  bool
}

// New creates a Detector around the provided model.
func New(cfg Config, model Model, logger *slog.Logger) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if model == nil {
		return nil, errors.New("wakeword: model required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Detector{
		cfg:    cfg,
		model:  model,
		logger: logger.With("component", "wakeword"),
	}, nil
}

// Start arms the detector. Events become available on Events.
func (d *Detector) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return nil
	}

	d.running = true
	d.events = make(chan Event, 4)
	d.window = d.window[:0]
	d.failures = 0
	d.degraded = false

	d.logger.Info("wake-word detector armed",
		"threshold", d.cfg.Threshold,
		"window", d.model.WindowSize(),
	)

	return nil
}

// Stop disarms the detector and closes the event channel.
func (d *Detector) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running {
		return
	}

	d.running = false
	close(d.events)
	d.window = nil
}

// Events returns the detection event channel for the current run.
func (d *Detector) Events() <-chan Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.events
}

// Degraded reports whether the detector has tripped its failure limit.
func (d *Detector) Degraded() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.degraded
}

// Feed processes one audio frame.
// Frames arriving before the rolling window fills produce no event.
// Returns ErrDegraded once the consecutive-failure limit is reached.
func (d *Detector) Feed(frame audioio.Frame) error {
	d.mu.Lock()
	if !d.running || d.degraded {
		degraded := d.degraded
		d.mu.Unlock()
		if degraded {
			return ErrDegraded
		}
		return nil
	}
	d.mu.Unlock()

	emb, err := d.model.Embed(frame.Samples)
	if err != nil {
		return d.recordFailure(fmt.Errorf("embed: %w", err))
	}

	d.window = append(d.window, emb)
	if len(d.window) > d.model.WindowSize() {
		d.window = d.window[1:]
	}
	if len(d.window) < d.model.WindowSize() {
		return nil
	}

	score, err := d.model.Score(d.window)
	if err != nil {
		return d.recordFailure(fmt.Errorf("score: %w", err))
	}
	d.failures = 0

	if score < d.cfg.Threshold {
		return nil
	}
	if !d.lastFire.IsZero() && frame.Timestamp.Sub(d.lastFire) < d.cfg.Refractory {
		return nil
	}

	d.lastFire = frame.Timestamp
	d.window = d.window[:0]

	ev := Event{Score: score, Timestamp: frame.Timestamp}
	d.logger.Info("wake word detected", "score", score)

	d.mu.Lock()
	ch := d.events
	running := d.running
	d.mu.Unlock()
	if running {
		select {
		case ch <- ev:
		default:
			d.logger.Warn("wake event dropped, channel full")
		}
	}

	return nil
}

func (d *Detector) recordFailure(err error) error {
	d.failures++
	d.logger.Warn("wake-word inference failed",
		"error", err,
		"consecutive", d.failures,
	)

	if d.failures >= d.cfg.FailureLimit {
		d.mu.Lock()
		d.degraded = true
		d.mu.Unlock()
		return ErrDegraded
	}
	return nil
}

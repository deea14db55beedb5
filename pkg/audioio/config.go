package audioio

import (
	"fmt"
	"time"
)

// Backend represents the audio backend type.
type Backend string

const (
	// BackendAuto automatically selects the best available backend.
	BackendAuto Backend = "auto"
	// BackendALSA uses Linux ALSA for audio I/O.
	BackendALSA Backend = "alsa"
	// BackendMock uses a mock implementation for testing.
	BackendMock Backend = "mock"
)

// Config holds audio configuration.
type Config struct {
	// Backend specifies which audio backend to use.
	// Default: "auto" (selects best available for platform)
	Backend Backend `yaml:"backend" json:"backend"`

	// SampleRate is the audio sample rate in Hz.
	// Default: 16000 (wake-word models expect 16kHz mono)
	SampleRate int `yaml:"sample_rate" json:"sample_rate"`

	// FrameDuration is the size of captured frames.
	// Default: 20ms (320 samples at 16kHz)
	FrameDuration time.Duration `yaml:"frame_duration" json:"frame_duration"`

	// InputDevice is the platform-specific microphone identifier
	// (e.g. ALSA "hw:1,0"). Empty selects the system default.
	InputDevice string `yaml:"input_device" json:"input_device"`

	// OutputDevice is the platform-specific speaker identifier.
	// Empty selects the system default.
	OutputDevice string `yaml:"output_device" json:"output_device"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Backend:       BackendAuto,
		SampleRate:    16000,
		FrameDuration: 20 * time.Millisecond,
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.FrameDuration <= 0 {
		return fmt.Errorf("frame_duration must be positive, got %v", c.FrameDuration)
	}
	return nil
}

// FrameSize returns the number of samples per frame.
func (c *Config) FrameSize() int {
	return int(float64(c.SampleRate) * c.FrameDuration.Seconds())
}

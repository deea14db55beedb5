// Package vad implements voice activity detection over PCM16 frames.
//
// Detection is a short-term RMS energy threshold with hysteresis: separate
// thresholds for entering and leaving speech, and a minimum number of
// consecutive frames in each direction, so a single noisy or quiet frame
// does not flip the state.
package vad

import (
	"math"
	"time"
)

// Config holds detector tuning parameters.
type Config struct {
	// SpeechThreshold is the normalized RMS level to enter speech.
	SpeechThreshold float64 `yaml:"speech_threshold" json:"speech_threshold"`

	// SilenceThreshold is the normalized RMS level to leave speech.
	// Must be at or below SpeechThreshold.
	SilenceThreshold float64 `yaml:"silence_threshold" json:"silence_threshold"`

	// SpeechFrames is the number of consecutive speech frames required
	// to enter the speaking state.
	SpeechFrames int `yaml:"speech_frames" json:"speech_frames"`
}

// DefaultConfig returns tuning suitable for 16kHz 20ms frames.
func DefaultConfig() Config {
	return Config{
		SpeechThreshold:  0.015,
		SilenceThreshold: 0.008,
		SpeechFrames:     3,
	}
}

// Detector tracks speech/silence state across a stream of frames.
// It is not goroutine-safe; feed it from a single loop.
type Detector struct {
	cfg Config

	inSpeech        bool
	speechCount     int
	sawSpeech       bool
	trailingSilence time.Duration
}

// New creates a Detector with the given configuration.
// Zero-valued fields fall back to defaults.
func New(cfg Config) *Detector {
	def := DefaultConfig()
	if cfg.SpeechThreshold <= 0 {
		cfg.SpeechThreshold = def.SpeechThreshold
	}
	if cfg.SilenceThreshold <= 0 {
		cfg.SilenceThreshold = def.SilenceThreshold
	}
	if cfg.SpeechFrames <= 0 {
		cfg.SpeechFrames = def.SpeechFrames
	}
	return &Detector{cfg: cfg}
}

// Observe updates the detector with one frame of samples and returns true
// if the detector currently considers the stream to be speech.
// frameDuration is the play time of the frame, used to accumulate the
// trailing-silence measurement.
func (d *Detector) Observe(samples []int16, frameDuration time.Duration) bool {
	level := RMS(samples)

	if d.inSpeech {
		if level < d.cfg.SilenceThreshold {
			d.inSpeech = false
			d.trailingSilence = frameDuration
		} else {
			d.trailingSilence = 0
		}
	} else {
		if level >= d.cfg.SpeechThreshold {
			d.speechCount++
			if d.speechCount >= d.cfg.SpeechFrames {
				d.inSpeech = true
				d.sawSpeech = true
				d.speechCount = 0
				d.trailingSilence = 0
			}
		} else {
			d.speechCount = 0
			d.trailingSilence += frameDuration
		}
	}

	return d.inSpeech
}

// TrailingSilence returns how long the stream has been continuously silent.
// The counter resets to zero whenever speech is observed.
func (d *Detector) TrailingSilence() time.Duration {
	return d.trailingSilence
}

// SawSpeech reports whether any speech has been observed since the last Reset.
func (d *Detector) SawSpeech() bool {
	return d.sawSpeech
}

// Reset clears all internal state.
func (d *Detector) Reset() {
	d.inSpeech = false
	d.speechCount = 0
	d.sawSpeech = false
	d.trailingSilence = 0
}

// RMS returns the root-mean-square level of the samples, normalized to 0..1.
func RMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s) / 32768.0
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}

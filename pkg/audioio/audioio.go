// Package audioio provides duplex audio capture and playback.
//
// A Source captures fixed-size PCM16 frames from a microphone; a Sink plays
// PCM16 audio to a speaker. Backends:
//   - ALSA (Linux) - production use on embedded hardware
//   - Mock - CI/testing without hardware
//
// The backend is selected via configuration; "auto" picks the best backend
// for the platform.
package audioio

import "time"

// Frame is a fixed-size chunk of captured audio.
// Frames are produced in capture order and consumed by exactly one stage
// at a time (wake-word detection or utterance recording, never both).
type Frame struct {
	// Samples contains PCM16 audio samples (little-endian, mono).
	Samples []int16

	// SampleRate is the sample rate of this frame in Hz.
	SampleRate int

	// Timestamp is the capture time of the first sample.
	Timestamp time.Time

	// Seq is a monotonically increasing frame counter.
	Seq uint64
}

// Bytes returns the raw little-endian bytes of the frame.
func (f *Frame) Bytes() []byte {
	buf := make([]byte, len(f.Samples)*2)
	for i, s := range f.Samples {
		buf[i*2] = byte(s)
		buf[i*2+1] = byte(s >> 8)
	}
	return buf
}

// FromBytes populates the frame from raw PCM16 bytes.
func (f *Frame) FromBytes(data []byte, sampleRate int) {
	f.SampleRate = sampleRate
	f.Samples = make([]int16, len(data)/2)
	for i := range f.Samples {
		f.Samples[i] = int16(data[i*2]) | int16(data[i*2+1])<<8
	}
}

// Duration returns the play time of this frame.
func (f *Frame) Duration() time.Duration {
	if f.SampleRate == 0 {
		return 0
	}
	return time.Duration(float64(len(f.Samples)) / float64(f.SampleRate) * float64(time.Second))
}

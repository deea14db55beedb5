package audioio

import (
	"testing"
	"time"
)

func TestFrameBytesRoundTrip(t *testing.T) {
	f := Frame{
		Samples:    []int16{0, 1, -1, 32767, -32768},
		SampleRate: 16000,
	}

	b := f.Bytes()
	if len(b) != len(f.Samples)*2 {
		t.Fatalf("Bytes length = %d, want %d", len(b), len(f.Samples)*2)
	}

	var back Frame
	back.FromBytes(b, f.SampleRate)
	if len(back.Samples) != len(f.Samples) {
		t.Fatalf("FromBytes length = %d, want %d", len(back.Samples), len(f.Samples))
	}
	for i := range back.Samples {
		if back.Samples[i] != f.Samples[i] {
			t.Errorf("sample %d = %d, want %d", i, back.Samples[i], f.Samples[i])
		}
	}
	if back.SampleRate != f.SampleRate {
		t.Errorf("SampleRate = %d, want %d", back.SampleRate, f.SampleRate)
	}
}

func TestFrameDuration(t *testing.T) {
	f := Frame{Samples: make([]int16, 320), SampleRate: 16000}
	if got := f.Duration(); got != 20*time.Millisecond {
		t.Errorf("Duration = %v, want 20ms", got)
	}

	zero := Frame{Samples: make([]int16, 320)}
	if got := zero.Duration(); got != 0 {
		t.Errorf("Duration with zero rate = %v, want 0", got)
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
	if cfg.FrameSize() != 320 {
		t.Errorf("FrameSize = %d, want 320 (20ms at 16kHz)", cfg.FrameSize())
	}

	cfg.SampleRate = 0
	if err := cfg.Validate(); err == nil {
		t.Error("zero sample_rate passed validation")
	}
}

func TestMockSourcePushDelivers(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = BackendMock

	src := NewMockSource(cfg, nil)
	if err := src.Start(t.Context()); err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	samples := make([]int16, cfg.FrameSize())
	samples[0] = 1234
	src.Push(samples)

	select {
	case frame := <-src.Frames():
		if frame.Samples[0] != 1234 {
			t.Errorf("sample = %d, want 1234", frame.Samples[0])
		}
		if frame.SampleRate != cfg.SampleRate {
			t.Errorf("SampleRate = %d, want %d", frame.SampleRate, cfg.SampleRate)
		}
		if frame.Seq != 1 {
			t.Errorf("Seq = %d, want 1", frame.Seq)
		}
	case <-time.After(time.Second):
		t.Fatal("no frame delivered")
	}
}

func TestMockSourcePushBeforeStartIsDropped(t *testing.T) {
	cfg := DefaultConfig()
	src := NewMockSource(cfg, nil)

	src.Push(make([]int16, cfg.FrameSize()))

	select {
	case <-src.Frames():
		t.Error("frame delivered before Start")
	default:
	}
}

func TestMockSourceStopClosesFrames(t *testing.T) {
	cfg := DefaultConfig()
	src := NewMockSource(cfg, nil)
	if err := src.Start(t.Context()); err != nil {
		t.Fatal(err)
	}

	frames := src.Frames()
	src.Stop()

	select {
	case _, ok := <-frames:
		if ok {
			t.Error("unexpected frame after Stop")
		}
	case <-time.After(time.Second):
		t.Fatal("frames channel not closed")
	}
}

func TestMockSourceGeneratorProducesFrames(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FrameDuration = 5 * time.Millisecond

	src := NewMockSource(cfg, nil, WithSineWave(440, 0.5))
	if err := src.Start(t.Context()); err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	select {
	case frame := <-src.Frames():
		var nonZero bool
		for _, s := range frame.Samples {
			if s != 0 {
				nonZero = true
				break
			}
		}
		if !nonZero {
			t.Error("sine generator produced silence")
		}
	case <-time.After(time.Second):
		t.Fatal("generator produced no frames")
	}
}

func TestMockSinkRecordsWrites(t *testing.T) {
	cfg := DefaultConfig()
	sink := NewMockSink(cfg, nil)
	if err := sink.Start(t.Context()); err != nil {
		t.Fatal(err)
	}
	defer sink.Close()

	if err := sink.Write(t.Context(), []byte{1, 2, 3}); err != nil {
		t.Fatal(err)
	}
	if err := sink.Write(t.Context(), []byte{4}); err != nil {
		t.Fatal(err)
	}

	if sink.Writes() != 2 {
		t.Errorf("Writes = %d, want 2", sink.Writes())
	}
	if got := sink.Written(); len(got) != 4 {
		t.Errorf("Written = %d bytes, want 4", len(got))
	}

	sink.Clear()
	if len(sink.Written()) != 0 {
		t.Error("Clear did not discard buffered audio")
	}
}

func TestMockSinkWriteAfterCloseFails(t *testing.T) {
	cfg := DefaultConfig()
	sink := NewMockSink(cfg, nil)
	sink.Start(t.Context())
	sink.Close()

	if err := sink.Write(t.Context(), []byte{1}); err == nil {
		t.Error("Write succeeded after Close")
	}
}

func TestFactorySelectsMock(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = BackendMock

	src, err := NewSource(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()
	if src.Name() != "mock" {
		t.Errorf("source name = %q, want mock", src.Name())
	}

	sink, err := NewSink(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer sink.Close()
	if sink.Name() != "mock" {
		t.Errorf("sink name = %q, want mock", sink.Name())
	}
}

func TestFactoryRejectsUnknownBackend(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = "pulse"

	if _, err := NewSource(cfg, nil); err == nil {
		t.Error("unknown backend accepted for source")
	}
	if _, err := NewSink(cfg, nil); err == nil {
		t.Error("unknown backend accepted for sink")
	}
}

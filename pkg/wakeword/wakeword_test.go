package wakeword

import (
	"errors"
	"testing"
	"time"

	"github.com/foyerhq/foyer/pkg/audioio"
)

// stubModel is a scriptable Model for detector tests.
type stubModel struct {
	window     int
	score      float64
	embedErr   error
	scoreErr   error
	scoreCalls int
}

func (s *stubModel) Embed(samples []int16) ([]float32, error) {
	if s.embedErr != nil {
		return nil, s.embedErr
	}
	return []float32{1}, nil
}

func (s *stubModel) Score(window [][]float32) (float64, error) {
	s.scoreCalls++
	if s.scoreErr != nil {
		return 0, s.scoreErr
	}
	return s.score, nil
}

func (s *stubModel) WindowSize() int { return s.window }

func testDetector(t *testing.T, model Model) *Detector {
	t.Helper()
	d, err := New(Config{Threshold: 0.5, Refractory: time.Second, FailureLimit: 3}, model, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Start(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(d.Stop)
	return d
}

func frameAt(ts time.Time) audioio.Frame {
	return audioio.Frame{
		Samples:    make([]int16, 320),
		SampleRate: 16000,
		Timestamp:  ts,
	}
}

func TestFiresWhenWindowFullAndScoreHigh(t *testing.T) {
	model := &stubModel{window: 3, score: 0.9}
	d := testDetector(t, model)

	now := time.Now()
	for i := 0; i < 3; i++ {
		if err := d.Feed(frameAt(now.Add(time.Duration(i) * 20 * time.Millisecond))); err != nil {
			t.Fatal(err)
		}
	}

	select {
	case ev := <-d.Events():
		if ev.Score != 0.9 {
			t.Errorf("Score = %v, want 0.9", ev.Score)
		}
	default:
		t.Fatal("no event after a full high-scoring window")
	}
}

func TestNoScoreBeforeWindowFills(t *testing.T) {
	model := &stubModel{window: 4, score: 0.9}
	d := testDetector(t, model)

	now := time.Now()
	for i := 0; i < 3; i++ {
		d.Feed(frameAt(now))
	}
	if model.scoreCalls != 0 {
		t.Errorf("Score called %d times before window filled", model.scoreCalls)
	}
}

func TestBelowThresholdDoesNotFire(t *testing.T) {
	model := &stubModel{window: 2, score: 0.3}
	d := testDetector(t, model)

	now := time.Now()
	for i := 0; i < 5; i++ {
		d.Feed(frameAt(now))
	}

	select {
	case ev := <-d.Events():
		t.Fatalf("unexpected event with score %v", ev.Score)
	default:
	}
}

func TestRefractorySuppressesSecondFire(t *testing.T) {
	model := &stubModel{window: 1, score: 0.9}
	d := testDetector(t, model)

	now := time.Now()
	d.Feed(frameAt(now))
	// Well inside the 1s refractory window.
	d.Feed(frameAt(now.Add(100 * time.Millisecond)))

	events := 0
	for {
		select {
		case <-d.Events():
			events++
			continue
		default:
		}
		break
	}
	if events != 1 {
		t.Errorf("got %d events inside refractory window, want 1", events)
	}

	// Past the refractory window a new detection fires.
	d.Feed(frameAt(now.Add(1500 * time.Millisecond)))
	select {
	case <-d.Events():
	default:
		t.Error("no event after refractory window elapsed")
	}
}

func TestDegradedAfterConsecutiveFailures(t *testing.T) {
	model := &stubModel{window: 1, embedErr: errors.New("model crashed")}
	d := testDetector(t, model)

	now := time.Now()
	var err error
	for i := 0; i < 3; i++ {
		err = d.Feed(frameAt(now))
	}
	if !errors.Is(err, ErrDegraded) {
		t.Fatalf("Feed error = %v, want ErrDegraded", err)
	}
	if !d.Degraded() {
		t.Error("Degraded = false after failure limit")
	}
	if err := d.Feed(frameAt(now)); !errors.Is(err, ErrDegraded) {
		t.Errorf("Feed after degradation = %v, want ErrDegraded", err)
	}
}

func TestSuccessResetsFailureCount(t *testing.T) {
	model := &stubModel{window: 1, score: 0.1, embedErr: errors.New("transient")}
	d := testDetector(t, model)

	now := time.Now()
	d.Feed(frameAt(now))
	d.Feed(frameAt(now))

	// Recover before the limit; the counter must reset.
	model.embedErr = nil
	if err := d.Feed(frameAt(now)); err != nil {
		t.Fatal(err)
	}

	model.embedErr = errors.New("transient")
	d.Feed(frameAt(now))
	if err := d.Feed(frameAt(now)); errors.Is(err, ErrDegraded) {
		t.Error("degraded despite an intervening success")
	}
}

func TestRestartClearsDegradation(t *testing.T) {
	model := &stubModel{window: 1, embedErr: errors.New("model crashed")}
	d := testDetector(t, model)

	now := time.Now()
	for i := 0; i < 3; i++ {
		d.Feed(frameAt(now))
	}
	if !d.Degraded() {
		t.Fatal("not degraded")
	}

	d.Stop()
	model.embedErr = nil
	model.score = 0.9
	if err := d.Start(); err != nil {
		t.Fatal(err)
	}
	if d.Degraded() {
		t.Error("still degraded after restart")
	}

	d.Feed(frameAt(now.Add(2 * time.Second)))
	select {
	case <-d.Events():
	default:
		t.Error("no event after restart")
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}

	for _, tc := range []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero threshold", func(c *Config) { c.Threshold = 0 }},
		{"threshold above one", func(c *Config) { c.Threshold = 1.5 }},
		{"negative refractory", func(c *Config) { c.Refractory = -time.Second }},
		{"zero failure limit", func(c *Config) { c.FailureLimit = 0 }},
	} {
		cfg := DefaultConfig()
		tc.mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s passed validation", tc.name)
		}
	}
}

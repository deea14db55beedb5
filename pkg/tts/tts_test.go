package tts

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestPCMDuration(t *testing.T) {
	// 32000 bytes = 16000 samples = 1s at 16kHz.
	if got := pcmDuration(32000, 16000); got != time.Second {
		t.Errorf("pcmDuration = %v, want 1s", got)
	}
	if got := pcmDuration(100, 0); got != 0 {
		t.Errorf("pcmDuration with zero rate = %v, want 0", got)
	}
}

func TestSampleRateFromEncoding(t *testing.T) {
	cases := map[Encoding]int{
		EncodingPCM16: 16000,
		EncodingPCM22: 22050,
		EncodingPCM24: 24000,
		EncodingMP3:   44100,
		"bogus":       16000,
	}
	for enc, want := range cases {
		if got := SampleRateFromEncoding(enc); got != want {
			t.Errorf("SampleRateFromEncoding(%q) = %d, want %d", enc, got, want)
		}
	}
}

func TestBufferStreamChunks(t *testing.T) {
	data := make([]byte, 4096+100)
	s := &bufferStream{data: data, format: AudioFormat{SampleRate: 16000}}

	first, err := s.Read()
	if err != nil || len(first) != 4096 {
		t.Fatalf("first chunk = %d bytes, err %v; want 4096", len(first), err)
	}
	second, err := s.Read()
	if err != nil || len(second) != 100 {
		t.Fatalf("second chunk = %d bytes, err %v; want 100", len(second), err)
	}
	last, err := s.Read()
	if err != nil || last != nil {
		t.Fatalf("end of stream = %v, %v; want nil, nil", last, err)
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Error("config without API key passed validation")
	}

	cfg.Apply(WithAPIKey("k"))
	if err := cfg.Validate(); err != nil {
		t.Errorf("config with API key failed validation: %v", err)
	}
	if err := cfg.ValidateWithVoice(); err == nil {
		t.Error("config without voice passed ValidateWithVoice")
	}

	cfg.Apply(WithVoice("v"))
	if err := cfg.ValidateWithVoice(); err != nil {
		t.Errorf("config with voice failed ValidateWithVoice: %v", err)
	}
}

func TestOpenAISynthesize(t *testing.T) {
	pcm := make([]byte, 48000) // 1s of 24kHz PCM16

	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		rw.Write(pcm)
	}))
	defer srv.Close()

	p, err := NewOpenAI(WithAPIKey("sk-test"), WithBaseURL(srv.URL))
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	result, err := p.Synthesize(t.Context(), "hello")
	if err != nil {
		t.Fatal(err)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if len(result.Audio) != len(pcm) {
		t.Errorf("audio = %d bytes, want %d", len(result.Audio), len(pcm))
	}
	if result.Format.SampleRate != 24000 {
		t.Errorf("sample rate = %d, want 24000", result.Format.SampleRate)
	}
	if result.Duration != time.Second {
		t.Errorf("Duration = %v, want 1s", result.Duration)
	}
}

func TestOpenAIAPIErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		http.Error(rw, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p, err := NewOpenAI(WithAPIKey("sk-test"), WithBaseURL(srv.URL))
	if err != nil {
		t.Fatal(err)
	}

	_, err = p.Synthesize(t.Context(), "hello")
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("err = %T, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("StatusCode = %d", apiErr.StatusCode)
	}
	if !apiErr.IsRetryable() {
		t.Error("429 not retryable")
	}
}

func TestOpenAIStream(t *testing.T) {
	pcm := make([]byte, 10000)
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		rw.Write(pcm)
	}))
	defer srv.Close()

	p, err := NewOpenAI(WithAPIKey("sk-test"), WithBaseURL(srv.URL))
	if err != nil {
		t.Fatal(err)
	}

	stream, err := p.Stream(t.Context(), "hello")
	if err != nil {
		t.Fatal(err)
	}
	defer stream.Close()

	var total int
	for {
		chunk, err := stream.Read()
		if err != nil {
			t.Fatal(err)
		}
		if chunk == nil {
			break
		}
		total += len(chunk)
	}
	if total != len(pcm) {
		t.Errorf("streamed %d bytes, want %d", total, len(pcm))
	}
}

func TestElevenLabsRequiresCredentials(t *testing.T) {
	if _, err := NewElevenLabs(); err == nil {
		t.Error("provider created without API key")
	}
	if _, err := NewElevenLabs(WithAPIKey("k")); err == nil {
		t.Error("provider created without voice id")
	}
	if _, err := NewElevenLabs(WithAPIKey("k"), WithVoice("v")); err != nil {
		t.Errorf("provider creation failed with full credentials: %v", err)
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.STT.Backend != STTWhisper {
		t.Errorf("default STT backend = %q, want %q", cfg.STT.Backend, STTWhisper)
	}
	if cfg.Bus.BrokerURL == "" {
		t.Error("default broker url empty")
	}
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Web.Addr != ":8080" {
		t.Errorf("Web.Addr = %q, want :8080", cfg.Web.Addr)
	}
}

func TestLoadMissingFileErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("missing config file accepted")
	}
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "foyer.yaml")
	data := []byte(`
log_level: debug
bus:
  broker_url: mqtt://broker.internal:1883
  client_id: foyer-den
stt:
  backend: google
  language: de-DE
wake:
  model_path: /opt/foyer/hey-foyer.model
web:
  addr: ":9090"
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if cfg.Bus.BrokerURL != "mqtt://broker.internal:1883" {
		t.Errorf("BrokerURL = %q", cfg.Bus.BrokerURL)
	}
	if cfg.STT.Backend != STTGoogle || cfg.STT.Language != "de-DE" {
		t.Errorf("STT = %+v", cfg.STT)
	}
	if cfg.Wake.ModelPath != "/opt/foyer/hey-foyer.model" {
		t.Errorf("ModelPath = %q", cfg.Wake.ModelPath)
	}
	if cfg.Web.Addr != ":9090" {
		t.Errorf("Web.Addr = %q", cfg.Web.Addr)
	}

	// Untouched sections keep their defaults.
	if cfg.Audio.SampleRate != 16000 {
		t.Errorf("Audio.SampleRate = %d, want default", cfg.Audio.SampleRate)
	}
}

func TestEnvOverridesWinOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "foyer.yaml")
	if err := os.WriteFile(path, []byte("bus:\n  broker_url: mqtt://file:1883\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("FOYER_BROKER_URL", "mqtt://env:1883")
	t.Setenv("ELEVENLABS_API_KEY", "xi-secret")
	t.Setenv("FOYER_TTS_ENABLED", "false")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Bus.BrokerURL != "mqtt://env:1883" {
		t.Errorf("BrokerURL = %q, want env value", cfg.Bus.BrokerURL)
	}
	if cfg.TTS.ElevenLabsAPIKey != "xi-secret" {
		t.Error("API key not taken from environment")
	}
	if cfg.Orchestrator.TTSEnabled {
		t.Error("FOYER_TTS_ENABLED=false not applied")
	}
}

func TestValidateRejectsUnknownSTTBackend(t *testing.T) {
	cfg := Default()
	cfg.STT.Backend = "kaldi"
	if err := cfg.Validate(); err == nil {
		t.Error("unknown STT backend accepted")
	}
}

func TestValidateRejectsSamePrimaryAndFallback(t *testing.T) {
	cfg := Default()
	cfg.TTS.Provider = TTSOpenAI
	cfg.TTS.Fallback = TTSOpenAI
	if err := cfg.Validate(); err == nil {
		t.Error("identical primary and fallback accepted")
	}
}

func TestValidateSkipsTTSWhenDisabled(t *testing.T) {
	cfg := Default()
	cfg.Orchestrator.TTSEnabled = false
	cfg.TTS.Provider = "bogus"
	if err := cfg.Validate(); err != nil {
		t.Errorf("tts validated despite being disabled: %v", err)
	}
}

func TestValidateRequiresWakeModelPath(t *testing.T) {
	cfg := Default()
	cfg.Wake.ModelPath = ""
	if err := cfg.Validate(); err == nil {
		t.Error("empty wake model path accepted")
	}
}

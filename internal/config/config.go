// Package config loads the daemon configuration.
//
// Configuration comes from three layers, later layers winning: package
// defaults, an optional YAML file, then environment variables. Secrets
// (API keys) are environment-only so they never land in config files.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/foyerhq/foyer/pkg/audioio"
	"github.com/foyerhq/foyer/pkg/bus"
	"github.com/foyerhq/foyer/pkg/orchestrator"
	"github.com/foyerhq/foyer/pkg/recorder"
	"github.com/foyerhq/foyer/pkg/wakeword"
)

// STT backend names.
const (
	STTWhisper = "whisper"
	STTGoogle  = "google"
)

// TTS provider names.
const (
	TTSElevenLabs = "elevenlabs"
	TTSOpenAI     = "openai"
)

// WakeConfig selects and tunes the wake-word model.
type WakeConfig struct {
	// ModelPath is the wake-word model file.
	ModelPath string `yaml:"model_path" json:"model_path"`

	// Detector holds threshold, refractory and failure limits.
	Detector wakeword.Config `yaml:"detector" json:"detector"`
}

// STTConfig selects the transcription backend.
type STTConfig struct {
	// Backend is "whisper" or "google".
	Backend string `yaml:"backend" json:"backend"`

	// WhisperURL is the whisper.cpp server base URL.
	WhisperURL string `yaml:"whisper_url" json:"whisper_url"`

	// Language hints the recognizer, e.g. "en-US".
	Language string `yaml:"language" json:"language"`
}

// TTSConfig selects synthesis providers and credentials.
type TTSConfig struct {
	// Provider is the primary synthesizer, "elevenlabs" or "openai".
	Provider string `yaml:"provider" json:"provider"`

	// Fallback gets one attempt when the primary fails. Empty disables it.
	Fallback string `yaml:"fallback" json:"fallback"`

	// VoiceID is the ElevenLabs voice.
	VoiceID string `yaml:"voice_id" json:"voice_id"`

	// Voice is the OpenAI voice name.
	Voice string `yaml:"voice" json:"voice"`

	// Environment-only; never read from YAML.
	ElevenLabsAPIKey string `yaml:"-" json:"-"`
	OpenAIAPIKey     string `yaml:"-" json:"-"`
}

// WebConfig configures the health endpoint.
type WebConfig struct {
	// Addr is the HTTP listen address.
	Addr string `yaml:"addr" json:"addr"`
}

// Config is the full daemon configuration.
type Config struct {
	LogLevel string `yaml:"log_level" json:"log_level"`

	Audio        audioio.Config      `yaml:"audio" json:"audio"`
	Wake         WakeConfig          `yaml:"wake" json:"wake"`
	Recorder     recorder.Config     `yaml:"recorder" json:"recorder"`
	STT          STTConfig           `yaml:"stt" json:"stt"`
	Bus          bus.Config          `yaml:"bus" json:"bus"`
	TTS          TTSConfig           `yaml:"tts" json:"tts"`
	Orchestrator orchestrator.Config `yaml:"orchestrator" json:"orchestrator"`
	Web          WebConfig           `yaml:"web" json:"web"`
}

// Default returns the stock configuration.
func Default() Config {
	return Config{
		LogLevel: "info",
		Audio:    audioio.DefaultConfig(),
		Wake: WakeConfig{
			ModelPath: "wakeword.model",
			Detector:  wakeword.DefaultConfig(),
		},
		Recorder: recorder.DefaultConfig(),
		STT: STTConfig{
			Backend:    STTWhisper,
			WhisperURL: "http://localhost:8178",
			Language:   "en-US",
		},
		Bus: bus.DefaultConfig(),
		TTS: TTSConfig{
			Provider: TTSElevenLabs,
			Fallback: TTSOpenAI,
		},
		Orchestrator: orchestrator.DefaultConfig(),
		Web:          WebConfig{Addr: ":8080"},
	}
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides. An empty path skips the file layer.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv layers environment variables over the current values.
func (c *Config) applyEnv() {
	setString(&c.LogLevel, "FOYER_LOG_LEVEL")
	setString(&c.Wake.ModelPath, "FOYER_WAKE_MODEL")
	setString(&c.Bus.BrokerURL, "FOYER_BROKER_URL")
	setString(&c.Bus.ClientID, "FOYER_CLIENT_ID")
	setString(&c.STT.WhisperURL, "FOYER_WHISPER_URL")
	setString(&c.Web.Addr, "FOYER_HTTP_ADDR")

	setString(&c.TTS.ElevenLabsAPIKey, "ELEVENLABS_API_KEY")
	setString(&c.TTS.OpenAIAPIKey, "OPENAI_API_KEY")

	if v := os.Getenv("FOYER_TTS_ENABLED"); v != "" {
		c.Orchestrator.TTSEnabled = v == "1" || v == "true"
	}
	if v := os.Getenv("FOYER_STT_DEADLINE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Orchestrator.STTDeadline = d
		}
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// Validate checks the whole configuration tree.
func (c *Config) Validate() error {
	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("config: audio: %w", err)
	}
	if c.Wake.ModelPath == "" {
		return fmt.Errorf("config: wake: model_path required")
	}
	if err := c.Wake.Detector.Validate(); err != nil {
		return fmt.Errorf("config: wake: %w", err)
	}
	if err := c.Recorder.Validate(); err != nil {
		return fmt.Errorf("config: recorder: %w", err)
	}
	switch c.STT.Backend {
	case STTWhisper:
		if c.STT.WhisperURL == "" {
			return fmt.Errorf("config: stt: whisper_url required for whisper backend")
		}
	case STTGoogle:
	default:
		return fmt.Errorf("config: stt: unknown backend %q", c.STT.Backend)
	}
	if err := c.Bus.Validate(); err != nil {
		return fmt.Errorf("config: bus: %w", err)
	}
	if c.Orchestrator.TTSEnabled {
		if err := c.TTS.validate(); err != nil {
			return fmt.Errorf("config: tts: %w", err)
		}
	}
	if err := c.Orchestrator.Validate(); err != nil {
		return fmt.Errorf("config: orchestrator: %w", err)
	}
	if c.Web.Addr == "" {
		return fmt.Errorf("config: web: addr required")
	}
	return nil
}

func (t *TTSConfig) validate() error {
	for _, p := range []string{t.Provider, t.Fallback} {
		switch p {
		case TTSElevenLabs, TTSOpenAI, "":
		default:
			return fmt.Errorf("unknown provider %q", p)
		}
	}
	if t.Provider == "" {
		return fmt.Errorf("provider required when tts is enabled")
	}
	if t.Provider == t.Fallback {
		return fmt.Errorf("fallback must differ from primary provider")
	}
	return nil
}

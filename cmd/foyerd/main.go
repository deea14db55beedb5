// foyerd is the voice interaction daemon.
//
// It listens for the wake word, records the utterance that follows,
// transcribes it, dispatches the text over MQTT, and speaks the reply.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/foyerhq/foyer/internal/config"
	"github.com/foyerhq/foyer/internal/log"
	"github.com/foyerhq/foyer/pkg/audioio"
	"github.com/foyerhq/foyer/pkg/bus"
	"github.com/foyerhq/foyer/pkg/orchestrator"
	"github.com/foyerhq/foyer/pkg/player"
	"github.com/foyerhq/foyer/pkg/recorder"
	"github.com/foyerhq/foyer/pkg/stt"
	"github.com/foyerhq/foyer/pkg/tts"
	"github.com/foyerhq/foyer/pkg/wakeword"
	"github.com/foyerhq/foyer/pkg/web"
)

func main() {
	// Optional .env for local development; real deployments set env directly.
	_ = godotenv.Load()

	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "foyerd:", err)
		os.Exit(1)
	}

	log.Init(cfg.LogLevel)
	logger := log.L()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("foyerd exited", "error", err)
		os.Exit(1)
	}
	logger.Info("foyerd stopped")
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	model, err := wakeword.LoadTemplateModel(cfg.Wake.ModelPath)
	if err != nil {
		return fmt.Errorf("load wake model: %w", err)
	}

	detector, err := wakeword.New(cfg.Wake.Detector, model, logger)
	if err != nil {
		return err
	}

	source, err := audioio.NewSource(cfg.Audio, logger)
	if err != nil {
		return err
	}
	defer source.Close()

	rec, err := recorder.New(cfg.Recorder, logger)
	if err != nil {
		return err
	}

	sttClient, err := buildSTT(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer sttClient.Close()

	busClient, err := bus.NewClient(cfg.Bus, logger)
	if err != nil {
		return err
	}
	if err := busClient.Connect(ctx); err != nil {
		return err
	}
	defer busClient.Close()

	deps := orchestrator.Deps{
		Source:   source,
		Detector: detector,
		Recorder: rec,
		STT:      sttClient,
		Bus:      busClient,
	}

	if cfg.Orchestrator.TTSEnabled {
		synth, fallback, err := buildTTS(cfg, logger)
		if err != nil {
			return err
		}
		defer synth.Close()
		if fallback != nil {
			defer fallback.Close()
		}

		sink, err := audioio.NewSink(cfg.Audio, logger)
		if err != nil {
			return err
		}
		if err := sink.Start(ctx); err != nil {
			return fmt.Errorf("audio output: %w", err)
		}
		defer sink.Close()

		deps.Synth = synth
		deps.Fallback = fallback
		deps.Speaker = player.New(sink, logger)
	}

	orch, err := orchestrator.New(cfg.Orchestrator, deps, logger)
	if err != nil {
		return err
	}

	srv := web.NewServer(cfg.Web.Addr, orch, logger)
	srv.StartAsync()
	defer srv.Shutdown()

	logger.Info("foyerd up",
		"broker", cfg.Bus.BrokerURL,
		"stt", sttClient.Name(),
		"tts_enabled", cfg.Orchestrator.TTSEnabled,
		"http", cfg.Web.Addr,
	)

	return orch.Run(ctx)
}

func buildSTT(ctx context.Context, cfg config.Config, logger *slog.Logger) (stt.Client, error) {
	switch cfg.STT.Backend {
	case config.STTGoogle:
		return stt.NewGoogle(ctx, cfg.STT.Language, logger)
	default:
		return stt.NewWhisper(cfg.STT.WhisperURL, logger), nil
	}
}

func buildTTS(cfg config.Config, logger *slog.Logger) (synth, fallback tts.Provider, err error) {
	synth, err = buildProvider(cfg.TTS.Provider, cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("tts %s: %w", cfg.TTS.Provider, err)
	}

	if cfg.TTS.Fallback != "" {
		fallback, err = buildProvider(cfg.TTS.Fallback, cfg, logger)
		if err != nil {
			// A broken fallback should not keep the daemon down.
			logger.Warn("tts fallback unavailable", "provider", cfg.TTS.Fallback, "error", err)
			fallback = nil
		}
	}
	return synth, fallback, nil
}

func buildProvider(name string, cfg config.Config, logger *slog.Logger) (tts.Provider, error) {
	switch name {
	case config.TTSElevenLabs:
		return tts.NewElevenLabs(
			tts.WithAPIKey(cfg.TTS.ElevenLabsAPIKey),
			tts.WithVoice(cfg.TTS.VoiceID),
			tts.WithLogger(logger),
		)
	case config.TTSOpenAI:
		opts := []tts.Option{
			tts.WithAPIKey(cfg.TTS.OpenAIAPIKey),
			tts.WithLogger(logger),
		}
		if cfg.TTS.Voice != "" {
			opts = append(opts, tts.WithVoice(cfg.TTS.Voice))
		}
		return tts.NewOpenAI(opts...)
	default:
		return nil, fmt.Errorf("unknown tts provider %q", name)
	}
}

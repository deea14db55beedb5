// Package player drains synthesized audio into an output device.
//
// Playback is cancellable between chunks: cancelling the context clears the
// device buffer and returns promptly rather than draining the clip.
package player

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/foyerhq/foyer/pkg/audioio"
	"github.com/foyerhq/foyer/pkg/tts"
)

// Player writes synthesized audio to a Sink.
type Player struct {
	sink   audioio.Sink
	logger *slog.Logger
}

// New creates a Player around the sink.
func New(sink audioio.Sink, logger *slog.Logger) *Player {
	if logger == nil {
		logger = slog.Default()
	}
	return &Player{
		sink:   sink,
		logger: logger.With("component", "player"),
	}
}

// Play writes a complete clip and waits for it to drain.
func (p *Player) Play(ctx context.Context, result *tts.AudioResult) error {
	if len(result.Audio) == 0 {
		return nil
	}
	p.warnOnRateMismatch(result.Format)

	if err := p.sink.Write(ctx, result.Audio); err != nil {
		return fmt.Errorf("player: write: %w", err)
	}
	if err := p.sink.Flush(ctx); err != nil {
		p.clearOnCancel(ctx)
		return fmt.Errorf("player: flush: %w", err)
	}

	p.logger.Debug("playback complete",
		"bytes", len(result.Audio),
		"duration_ms", result.Duration.Milliseconds(),
	)
	return nil
}

// PlayStream plays chunks as they arrive, beginning playback before
// synthesis completes.
func (p *Player) PlayStream(ctx context.Context, stream tts.AudioStream) error {
	defer stream.Close()
	p.warnOnRateMismatch(stream.Format())

	var written int
	for {
		select {
		case <-ctx.Done():
			p.sink.Clear()
			return ctx.Err()
		default:
		}

		chunk, err := stream.Read()
		if err != nil {
			p.sink.Clear()
			return fmt.Errorf("player: stream read: %w", err)
		}
		if chunk == nil {
			break
		}

		if err := p.sink.Write(ctx, chunk); err != nil {
			return fmt.Errorf("player: write: %w", err)
		}
		written += len(chunk)
	}

	if err := p.sink.Flush(ctx); err != nil {
		p.clearOnCancel(ctx)
		return fmt.Errorf("player: flush: %w", err)
	}

	p.logger.Debug("stream playback complete", "bytes", written)
	return nil
}

func (p *Player) warnOnRateMismatch(format tts.AudioFormat) {
	if format.SampleRate != 0 && format.SampleRate != p.sink.Config().SampleRate {
		p.logger.Warn("synthesis rate differs from output device",
			"audio_rate", format.SampleRate,
			"device_rate", p.sink.Config().SampleRate,
		)
	}
}

func (p *Player) clearOnCancel(ctx context.Context) {
	if ctx.Err() != nil {
		p.sink.Clear()
	}
}

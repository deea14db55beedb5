package stt

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"

	"github.com/foyerhq/foyer/pkg/recorder"
)

const providerGoogle = "google"

// Google transcribes via Google Cloud Speech-to-Text.
// Credentials come from the standard GOOGLE_APPLICATION_CREDENTIALS flow.
type Google struct {
	client   *speech.Client
	language string
	logger   *slog.Logger
}

// NewGoogle creates a Google Cloud Speech client.
func NewGoogle(ctx context.Context, language string, logger *slog.Logger) (*Google, error) {
	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: create speech client: %v", ErrService, err)
	}
	if language == "" {
		language = "en-US"
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Google{
		client:   client,
		language: language,
		logger:   logger.With("component", "stt.google"),
	}, nil
}

// Transcribe sends the utterance in one Recognize call and returns the
// best final alternative.
func (g *Google) Transcribe(ctx context.Context, u recorder.Utterance) (string, error) {
	if u.Empty() {
		return "", ErrEmptyUtterance
	}
	if _, ok := ctx.Deadline(); !ok {
		return "", fmt.Errorf("%w: missing deadline", ErrService)
	}

	resp, err := g.client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:        speechpb.RecognitionConfig_LINEAR16,
			SampleRateHertz: int32(u.SampleRate),
			LanguageCode:    g.language,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: u.Audio},
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", classify(err), err)
	}

	var best string
	for _, result := range resp.Results {
		if len(result.Alternatives) > 0 {
			best = result.Alternatives[0].Transcript
			break
		}
	}

	best = strings.TrimSpace(best)
	g.logger.Debug("transcription complete", "chars", len(best))

	return best, nil
}

// Name returns "google".
func (g *Google) Name() string {
	return providerGoogle
}

// Close releases the underlying gRPC connection.
func (g *Google) Close() error {
	return g.client.Close()
}

var _ Client = (*Google)(nil)

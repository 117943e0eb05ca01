package stt

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2/google"
	speech "google.golang.org/api/speech/v1"
	"google.golang.org/api/option"

	"github.com/kotonebot/go-kotone/pkg/audioio"
)

const engineGoogle = "google"

// Google implements Transcriber using the Google Cloud Speech-to-Text API.
type Google struct {
	config  *Config
	service *speech.Service
	logger  *slog.Logger
}

// NewGoogle creates a Google Cloud transcription engine. Credentials come
// from the configured service account file, or from application default
// credentials when no file is set.
func NewGoogle(ctx context.Context, opts ...Option) (*Google, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	var ts option.ClientOption
	if cfg.CredentialsFile != "" {
		data, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, WrapError(engineGoogle, fmt.Errorf("read credentials: %w", err))
		}
		creds, err := google.CredentialsFromJSON(ctx, data, speech.CloudPlatformScope)
		if err != nil {
			return nil, WrapError(engineGoogle, fmt.Errorf("parse credentials: %w", err))
		}
		ts = option.WithTokenSource(creds.TokenSource)
	} else {
		creds, err := google.FindDefaultCredentials(ctx, speech.CloudPlatformScope)
		if err != nil {
			return nil, WrapError(engineGoogle, fmt.Errorf("default credentials: %w", err))
		}
		ts = option.WithTokenSource(creds.TokenSource)
	}

	service, err := speech.NewService(ctx, ts)
	if err != nil {
		return nil, WrapError(engineGoogle, fmt.Errorf("create service: %w", err))
	}

	return &Google{
		config:  cfg,
		service: service,
		logger:  cfg.Logger.With("component", "stt.google"),
	}, nil
}

// Transcribe sends the utterance to the synchronous recognize endpoint.
func (g *Google) Transcribe(ctx context.Context, samples []int16, sampleRate int) (*Result, error) {
	if len(samples) == 0 {
		return nil, WrapError(engineGoogle, ErrNoAudio)
	}

	start := time.Now()

	req := &speech.RecognizeRequest{
		Config: &speech.RecognitionConfig{
			Encoding:        "LINEAR16",
			SampleRateHertz: int64(sampleRate),
			LanguageCode:    bcp47(g.config.Language),
		},
		Audio: &speech.RecognitionAudio{
			Content: base64.StdEncoding.EncodeToString(audioio.SamplesToBytes(samples)),
		},
	}

	resp, err := g.service.Speech.Recognize(req).Context(ctx).Do()
	if err != nil {
		return nil, WrapError(engineGoogle, fmt.Errorf("recognize: %w", err))
	}

	latency := time.Since(start).Milliseconds()

	var parts []string
	for _, result := range resp.Results {
		if len(result.Alternatives) > 0 {
			parts = append(parts, result.Alternatives[0].Transcript)
		}
	}
	text := strings.TrimSpace(strings.Join(parts, " "))

	g.logger.Debug("transcribed audio",
		"samples", len(samples),
		"chars", len(text),
		"latency_ms", latency,
	)

	return &Result{
		Text:      text,
		Language:  g.config.Language,
		LatencyMs: latency,
	}, nil
}

// Health verifies the service handle exists. The API has no cheap
// liveness endpoint, so the real check happens on the first Transcribe.
func (g *Google) Health(ctx context.Context) error {
	if g.service == nil {
		return WrapError(engineGoogle, ErrClosed)
	}
	return nil
}

// Name identifies the engine.
func (g *Google) Name() string {
	return engineGoogle
}

// Close releases resources.
func (g *Google) Close() error {
	g.service = nil
	return nil
}

// bcp47 maps a bare two-letter language code to the regional code the
// Speech API expects. Full codes pass through unchanged.
func bcp47(lang string) string {
	switch lang {
	case "ja":
		return "ja-JP"
	case "en":
		return "en-US"
	case "de":
		return "de-DE"
	case "fr":
		return "fr-FR"
	case "zh":
		return "zh-CN"
	case "ko":
		return "ko-KR"
	default:
		return lang
	}
}

// Verify Google implements Transcriber at compile time.
var _ Transcriber = (*Google)(nil)

// This file contains the whisper.cpp engine backed by the CGO bindings.
// The whisper.cpp static library (libwhisper.a) and headers (whisper.h)
// must be available at link time via LIBRARY_PATH and C_INCLUDE_PATH.

package stt

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/kotonebot/go-kotone/pkg/audioio"
)

const engineWhisperCpp = "whispercpp"

// whisperSampleRate is the only input rate the model accepts.
const whisperSampleRate = 16000

// WhisperCpp implements Transcriber using a local whisper.cpp model.
// The model is loaded once and shared; each Transcribe call gets its own
// inference context because contexts are not thread-safe.
type WhisperCpp struct {
	config *Config
	logger *slog.Logger

	mu    sync.Mutex
	model whisperlib.Model
}

// NewWhisperCpp loads the model from the configured path. Loading can
// take several seconds for larger models.
func NewWhisperCpp(opts ...Option) (*WhisperCpp, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if cfg.ModelPath == "" {
		return nil, WrapError(engineWhisperCpp, ErrNoModelPath)
	}

	start := time.Now()
	model, err := whisperlib.New(cfg.ModelPath)
	if err != nil {
		return nil, WrapError(engineWhisperCpp, err)
	}

	logger := cfg.Logger.With("component", "stt.whispercpp")
	logger.Info("Loaded whisper model",
		"path", cfg.ModelPath,
		"load_time", time.Since(start))

	return &WhisperCpp{
		config: cfg,
		logger: logger,
		model:  model,
	}, nil
}

// Transcribe runs local inference on the utterance. The engine serializes
// calls; concurrent callers queue on an internal lock.
func (w *WhisperCpp) Transcribe(ctx context.Context, samples []int16, sampleRate int) (*Result, error) {
	if len(samples) == 0 {
		return nil, WrapError(engineWhisperCpp, ErrNoAudio)
	}
	if err := ctx.Err(); err != nil {
		return nil, WrapError(engineWhisperCpp, err)
	}
	if sampleRate != whisperSampleRate {
		samples = audioio.Resample(samples, sampleRate, whisperSampleRate)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.model == nil {
		return nil, WrapError(engineWhisperCpp, ErrClosed)
	}

	start := time.Now()

	wctx, err := w.model.NewContext()
	if err != nil {
		return nil, WrapError(engineWhisperCpp, err)
	}

	if w.config.Language != "" {
		if err := wctx.SetLanguage(w.config.Language); err != nil {
			w.logger.Warn("Failed to set language, using default",
				"language", w.config.Language,
				"error", err)
		}
	}

	if err := wctx.Process(toFloat32(samples), nil, nil, nil); err != nil {
		return nil, WrapError(engineWhisperCpp, err)
	}

	var parts []string
	for {
		seg, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, WrapError(engineWhisperCpp, err)
		}
		if text := strings.TrimSpace(seg.Text); text != "" {
			parts = append(parts, text)
		}
	}

	latency := time.Since(start).Milliseconds()
	text := strings.Join(parts, " ")

	w.logger.Debug("transcribed audio",
		"samples", len(samples),
		"chars", len(text),
		"latency_ms", latency,
	)

	return &Result{
		Text:      text,
		Language:  w.config.Language,
		LatencyMs: latency,
	}, nil
}

// Health reports whether the model is loaded.
func (w *WhisperCpp) Health(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.model == nil {
		return WrapError(engineWhisperCpp, ErrClosed)
	}
	return nil
}

// Name identifies the engine.
func (w *WhisperCpp) Name() string {
	return engineWhisperCpp
}

// Close releases the model. Calling Close more than once is safe.
func (w *WhisperCpp) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.model == nil {
		return nil
	}
	err := w.model.Close()
	w.model = nil
	return err
}

// toFloat32 converts 16-bit PCM to the normalized float samples the
// bindings expect.
func toFloat32(samples []int16) []float32 {
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = float32(s) / 32768.0
	}
	return out
}

// Verify WhisperCpp implements Transcriber at compile time.
var _ Transcriber = (*WhisperCpp)(nil)

// Package kotone assembles the voice assistant from its parts: audio
// capture and playback, the utterance segmenter, the engine lifecycle,
// the turn orchestrator, and the browser face.
package kotone

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kotonebot/go-kotone/internal/config"
	"github.com/kotonebot/go-kotone/internal/log"
	"github.com/kotonebot/go-kotone/pkg/audioio"
	"github.com/kotonebot/go-kotone/pkg/chat"
	"github.com/kotonebot/go-kotone/pkg/face"
	"github.com/kotonebot/go-kotone/pkg/pipeline"
	"github.com/kotonebot/go-kotone/pkg/segment"
	"github.com/kotonebot/go-kotone/pkg/stt"
	"github.com/kotonebot/go-kotone/pkg/tts"
)

// App owns every component of one assistant session.
type App struct {
	cfg    config.Config
	logger *slog.Logger

	source audioio.Source
	sink   audioio.Sink

	lifecycle *pipeline.Lifecycle
	tracker   *pipeline.Tracker
	session   *pipeline.Session

	faceServer *face.Server
}

// New validates the configuration and returns an unstarted app. Call
// Init before Run.
func New(cfg config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &App{
		cfg:    cfg,
		logger: log.Component("app"),
	}, nil
}

// Init opens the audio devices, kicks off background engine
// construction, and wires the pipeline. It returns quickly: the heavy
// engine setup finishes in the background while the device is already
// listening.
func (a *App) Init(ctx context.Context) error {
	audioCfg := audioio.Config{
		Backend:    audioio.Backend(a.cfg.Audio.Backend),
		SampleRate: a.cfg.Audio.SampleRate,
		Channels:   a.cfg.Audio.Channels,
		FrameSize:  a.cfg.Audio.FrameSize,
		Device:     a.cfg.Audio.Device,
	}

	source, err := audioio.NewSource(audioCfg, nil)
	if err != nil {
		return fmt.Errorf("audio source: %w", err)
	}
	a.source = source

	sink, err := audioio.NewSink(audioCfg, nil)
	if err != nil {
		return fmt.Errorf("audio sink: %w", err)
	}
	a.sink = sink
	if err := a.sink.Start(ctx); err != nil {
		return fmt.Errorf("audio sink: %w", err)
	}

	a.tracker = pipeline.NewTracker()
	a.lifecycle = pipeline.NewLifecycle(a.buildEngines, nil)
	a.lifecycle.Start(ctx)

	feedback := a.buildFeedback()

	segCfg := segment.Config{
		AmplitudeThreshold: a.cfg.Segmenter.AmplitudeThreshold,
		MaxUtterance:       a.cfg.Segmenter.MaxUtterance,
		TrailingSilence:    a.cfg.Segmenter.TrailingSilence,
		MinUtterance:       a.cfg.Segmenter.MinUtterance,
	}
	seg, err := segment.NewSegmenter(segCfg, nil,
		segment.WithSpeechStart(feedback.Listening))
	if err != nil {
		return fmt.Errorf("segmenter: %w", err)
	}

	orchCfg := pipeline.OrchestratorConfig{
		ReadyTimeout:  a.cfg.Pipeline.ReadyTimeout,
		StageTimeout:  a.cfg.Pipeline.StageTimeout,
		SynthWorkers:  a.cfg.Pipeline.SynthWorkers,
		RecordingsDir: a.cfg.Pipeline.RecordingsDir,
	}
	orch, err := pipeline.NewOrchestrator(a.lifecycle, a.sink, a.tracker,
		orchCfg, a.callbacks(), feedback, nil)
	if err != nil {
		return fmt.Errorf("orchestrator: %w", err)
	}

	a.session = pipeline.NewSession(a.source, seg, orch, nil)
	a.session.ShutdownWait = a.cfg.Pipeline.ShutdownWait

	return nil
}

// Run serves the face, reports engine readiness, and processes the
// conversation until the context is cancelled or the capture device
// fails.
func (a *App) Run(ctx context.Context) error {
	if a.faceServer != nil {
		a.faceServer.StartAsync()
	}
	go a.watchReadiness(ctx)

	a.logger.Info("Listening", "stt_engine", a.cfg.STT.Engine)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- a.session.Run(runCtx) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		a.session.Stop()
		return <-done
	}
}

// Shutdown releases every component. Safe to call after a failed Init.
func (a *App) Shutdown() {
	if a.session != nil {
		a.session.Stop()
	}
	if a.faceServer != nil {
		if err := a.faceServer.Shutdown(); err != nil {
			a.logger.Warn("Face shutdown failed", "error", err)
		}
	}
	if a.lifecycle != nil {
		if err := a.lifecycle.Close(); err != nil {
			a.logger.Warn("Engine shutdown failed", "error", err)
		}
	}
	if a.sink != nil {
		a.sink.Close()
	}
	if a.source != nil {
		a.source.Close()
	}

	if a.tracker != nil {
		stats := a.tracker.Snapshot()
		a.logger.Info("Session statistics",
			"turns", stats.Turns,
			"average_latency", stats.AverageLatency,
			"init_time", stats.InitTime,
		)
	}
}

// Stats exposes the per-turn metrics, for operators and tests.
func (a *App) Stats() pipeline.Stats {
	return a.tracker.Snapshot()
}

// buildEngines constructs the three conversation engines. It runs on
// the lifecycle's background goroutine so a slow model load never
// delays audio capture.
func (a *App) buildEngines(ctx context.Context) (*pipeline.Engines, error) {
	transcriber, err := a.buildTranscriber(ctx)
	if err != nil {
		return nil, fmt.Errorf("transcriber: %w", err)
	}

	replierOpts := []chat.Option{
		chat.WithAPIKey(a.cfg.OpenAIKey),
		chat.WithModel(a.cfg.Chat.Model),
		chat.WithTemperature(a.cfg.Chat.Temperature),
	}
	if a.cfg.Chat.SystemPrompt != "" {
		replierOpts = append(replierOpts, chat.WithSystemPrompt(a.cfg.Chat.SystemPrompt))
	}
	if a.cfg.Chat.MaxTokens > 0 {
		replierOpts = append(replierOpts, chat.WithMaxTokens(a.cfg.Chat.MaxTokens))
	}
	replier, err := chat.NewClient(replierOpts...)
	if err != nil {
		transcriber.Close()
		return nil, fmt.Errorf("replier: %w", err)
	}

	synthesizer, err := a.buildSynthesizer()
	if err != nil {
		transcriber.Close()
		replier.Close()
		return nil, fmt.Errorf("synthesizer: %w", err)
	}

	return &pipeline.Engines{
		Transcriber: transcriber,
		Replier:     replier,
		Synthesizer: synthesizer,
	}, nil
}

// buildSynthesizer builds the speech synthesis chain. The configured
// model and voice come first; when they differ from the baseline, a
// standard-quality provider backs them up so playback survives quota
// or model errors on the premium tier.
func (a *App) buildSynthesizer() (tts.Provider, error) {
	primary, err := tts.NewOpenAI(
		tts.WithAPIKey(a.cfg.OpenAIKey),
		tts.WithModel(a.cfg.TTS.Model),
		tts.WithVoice(a.cfg.TTS.Voice),
	)
	if err != nil {
		return nil, err
	}

	providers := []tts.Provider{primary}
	if a.cfg.TTS.Model != tts.ModelTTS1 || a.cfg.TTS.Voice != tts.VoiceAlloy {
		baseline, err := tts.NewOpenAI(tts.WithAPIKey(a.cfg.OpenAIKey))
		if err != nil {
			primary.Close()
			return nil, err
		}
		providers = append(providers, baseline)
	}

	return tts.NewChain(providers...)
}

// buildTranscriber picks the speech recognition engine from config.
func (a *App) buildTranscriber(ctx context.Context) (stt.Transcriber, error) {
	common := []stt.Option{
		stt.WithLanguage(a.cfg.STT.Language),
	}

	switch a.cfg.STT.Engine {
	case config.EngineOpenAI:
		return stt.NewOpenAI(append(common,
			stt.WithAPIKey(a.cfg.OpenAIKey),
			stt.WithModel(a.cfg.STT.Model),
		)...)
	case config.EngineGoogle:
		return stt.NewGoogle(ctx, append(common,
			stt.WithCredentialsFile(a.cfg.STT.GoogleCredentials),
		)...)
	case config.EngineWhisperCpp:
		return stt.NewWhisperCpp(append(common,
			stt.WithModelPath(a.cfg.STT.WhisperModelPath),
		)...)
	case config.EngineRealtime:
		return stt.NewRealtime(append(common,
			stt.WithAPIKey(a.cfg.OpenAIKey),
		)...)
	default:
		return nil, fmt.Errorf("unknown stt engine %q", a.cfg.STT.Engine)
	}
}

// buildFeedback assembles the state cues: audible beeps always, the
// browser face when enabled.
func (a *App) buildFeedback() pipeline.Feedback {
	cues := pipeline.MultiFeedback{face.NewBeeper(a.sink, nil)}

	if a.cfg.Face.Enabled {
		a.faceServer = face.NewServer(a.cfg.Face.Port,
			face.WithStats(a.tracker.Snapshot),
			face.WithReadiness(a.lifecycle.Status),
		)
		cues = append(cues, a.faceServer)
	}
	return cues
}

// callbacks logs each side of the conversation.
func (a *App) callbacks() pipeline.Callbacks {
	return pipeline.Callbacks{
		OnUserSpeech: func(text string) {
			a.logger.Info("User", "text", text)
		},
		OnAIResponse: func(text string) {
			a.logger.Info("Assistant", "text", text)
		},
		OnError: func(err error) {
			a.logger.Error("Turn failed", "error", err)
		},
	}
}

// watchReadiness logs initialization progress and records the final
// startup time into the tracker.
func (a *App) watchReadiness(ctx context.Context) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		state, elapsed := a.lifecycle.Status()
		switch state {
		case pipeline.StateReady:
			a.tracker.RecordInit(elapsed)
			a.logger.Info("Engines ready", "elapsed", elapsed)
			return
		case pipeline.StateFailed:
			a.logger.Error("Engine initialization failed", "elapsed", elapsed)
			return
		case pipeline.StateInitializing:
			a.logger.Info("Still initializing engines", "elapsed", elapsed)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

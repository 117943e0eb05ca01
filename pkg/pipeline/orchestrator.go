package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kotonebot/go-kotone/internal/log"
	"github.com/kotonebot/go-kotone/pkg/audioio"
	"github.com/kotonebot/go-kotone/pkg/segment"
	"github.com/kotonebot/go-kotone/pkg/tts"
)

// Callbacks are the lifecycle notifications for one session. Nil fields
// are skipped. They run on pipeline goroutines and should return quickly.
type Callbacks struct {
	// OnUserSpeech fires when an utterance has been transcribed.
	OnUserSpeech func(text string)

	// OnAIResponse fires when a reply has been generated.
	OnAIResponse func(text string)

	// OnError fires on any per-turn failure. The pipeline keeps running.
	OnError func(err error)
}

// Feedback receives discrete state cues for the user-facing surface
// (face display, LEDs, beeps). Implementations must never block; the
// orchestrator calls them inline.
type Feedback interface {
	// Listening fires when speech capture starts.
	Listening()

	// Speaking fires just before reply playback.
	Speaking()

	// Idle fires when playback finishes.
	Idle()

	// Error fires on a per-turn failure.
	Error()
}

// NopFeedback ignores all cues.
type NopFeedback struct{}

func (NopFeedback) Listening() {}
func (NopFeedback) Speaking()  {}
func (NopFeedback) Idle()      {}
func (NopFeedback) Error()     {}

// MultiFeedback fans each cue out to every receiver in order.
type MultiFeedback []Feedback

func (m MultiFeedback) Listening() {
	for _, f := range m {
		f.Listening()
	}
}

func (m MultiFeedback) Speaking() {
	for _, f := range m {
		f.Speaking()
	}
}

func (m MultiFeedback) Idle() {
	for _, f := range m {
		f.Idle()
	}
}

func (m MultiFeedback) Error() {
	for _, f := range m {
		f.Error()
	}
}

// OrchestratorConfig tunes turn processing.
type OrchestratorConfig struct {
	// ReadyTimeout bounds the wait for engine initialization per turn.
	ReadyTimeout time.Duration

	// StageTimeout bounds each engine call. Zero disables the bound.
	StageTimeout time.Duration

	// SynthWorkers is the size of the synthesis+playback pool.
	SynthWorkers int

	// RecordingsDir, when set, receives a WAV artifact per utterance.
	// The file is removed as soon as transcription finishes; raw audio
	// never persists past its turn.
	RecordingsDir string
}

// DefaultOrchestratorConfig returns production defaults.
func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		ReadyTimeout: 10 * time.Second,
		StageTimeout: 30 * time.Second,
		SynthWorkers: 3,
	}
}

// Orchestrator sequences one conversation turn from utterance to played
// reply. Transcription and reply generation run synchronously on the
// caller so replies keep utterance order; synthesis+playback is handed
// to a bounded pool so it never blocks the next capture.
type Orchestrator struct {
	lifecycle *Lifecycle
	sink      audioio.Sink
	tracker   *Tracker
	callbacks Callbacks
	feedback  Feedback
	cfg       OrchestratorConfig
	logger    *slog.Logger

	pool *errgroup.Group
}

// NewOrchestrator creates an orchestrator. The sink carries synthesized
// replies to the speaker; the tracker collects per-turn latency.
func NewOrchestrator(lc *Lifecycle, sink audioio.Sink, tracker *Tracker, cfg OrchestratorConfig, callbacks Callbacks, feedback Feedback, logger *slog.Logger) (*Orchestrator, error) {
	if logger == nil {
		logger = log.Component("orchestrator")
	}
	if feedback == nil {
		feedback = NopFeedback{}
	}
	if cfg.SynthWorkers <= 0 {
		cfg.SynthWorkers = 1
	}

	if cfg.RecordingsDir != "" {
		if err := os.MkdirAll(cfg.RecordingsDir, 0o755); err != nil {
			return nil, fmt.Errorf("pipeline: create recordings dir: %w", err)
		}
	}

	pool := new(errgroup.Group)
	pool.SetLimit(cfg.SynthWorkers)

	return &Orchestrator{
		lifecycle: lc,
		sink:      sink,
		tracker:   tracker,
		callbacks: callbacks,
		feedback:  feedback,
		cfg:       cfg,
		logger:    logger,
		pool:      pool,
	}, nil
}

// HandleUtterance drives one turn through the stage sequence. Per-turn
// failures are reported through the error callback and never propagate;
// the orchestrator is always ready for the next utterance when this
// returns. The returned Turn reflects the state reached synchronously;
// playback may still be running.
func (o *Orchestrator) HandleUtterance(ctx context.Context, u *segment.Utterance) *Turn {
	turn := newTurn(u)

	engines, err := o.lifecycle.AwaitReady(ctx, o.cfg.ReadyTimeout)
	if err != nil {
		o.fail(turn, &StageError{Stage: StageTranscribe, Err: fmt.Errorf("%w: %v", ErrNotReady, err)})
		return turn
	}

	turn.State = TurnTranscribing
	samples := u.Samples()

	artifact := o.writeArtifact(turn, samples, u.SampleRate)

	stageCtx, cancel := o.stageContext(ctx)
	result, err := engines.Transcriber.Transcribe(stageCtx, samples, u.SampleRate)
	cancel()
	o.removeArtifact(artifact)

	if err != nil {
		o.fail(turn, &StageError{Stage: StageTranscribe, Err: err})
		return turn
	}

	if result.IsEmpty() {
		turn.State = TurnDiscarded
		o.logger.Debug("Empty transcription, turn discarded",
			"turn", turn.ID,
			"duration", u.Duration())
		return turn
	}

	turn.Text = result.Text
	turn.Transcribed = time.Now()
	if o.callbacks.OnUserSpeech != nil {
		o.callbacks.OnUserSpeech(turn.Text)
	}
	o.logger.Info("User speech", "turn", turn.ID, "text", turn.Text)

	turn.State = TurnGenerating
	stageCtx, cancel = o.stageContext(ctx)
	reply, err := engines.Replier.Reply(stageCtx, turn.Text)
	cancel()
	if err != nil {
		o.fail(turn, &StageError{Stage: StageGenerate, Err: err})
		return turn
	}

	turn.Reply = reply
	turn.Generated = time.Now()
	if o.callbacks.OnAIResponse != nil {
		o.callbacks.OnAIResponse(reply)
	}
	o.logger.Info("AI response", "turn", turn.ID, "text", reply)

	// Synthesis and playback overlap the next utterance's capture.
	// Within one turn they stay sequential: synthesize, then play.
	// Submitted must be set before the turn is handed to the pool; the
	// worker reads it through Latency without further synchronization.
	turn.State = TurnSynthesizing
	turn.Submitted = time.Now()
	o.tracker.Record(turn.Latency())

	o.pool.Go(func() error {
		o.speakTurn(ctx, engines, turn)
		return nil
	})

	return turn
}

// speakTurn synthesizes the reply and plays it. Runs on the worker pool.
func (o *Orchestrator) speakTurn(ctx context.Context, engines *Engines, turn *Turn) {
	stageCtx, cancel := o.stageContext(ctx)
	result, err := engines.Synthesizer.Synthesize(stageCtx, turn.Reply)
	cancel()
	if err != nil {
		o.fail(turn, &StageError{Stage: StageSynthesize, Err: err})
		return
	}

	turn.State = TurnPlaying
	o.feedback.Speaking()

	if err := o.play(ctx, result); err != nil {
		o.fail(turn, &StageError{Stage: StagePlayback, Err: err})
		return
	}

	turn.State = TurnDone
	o.feedback.Idle()
	o.logger.Debug("Turn complete",
		"turn", turn.ID,
		"latency", turn.Latency())
}

// play decodes the synthesis result and blocks until the sink drains.
func (o *Orchestrator) play(ctx context.Context, result *tts.AudioResult) error {
	samples, rate, err := result.ToPCM()
	if err != nil {
		return err
	}

	sinkRate := o.sink.Config().SampleRate
	if rate != sinkRate {
		samples = audioio.Resample(samples, rate, sinkRate)
	}

	if err := o.sink.Write(ctx, audioio.SamplesToBytes(samples)); err != nil {
		return err
	}
	return o.sink.Flush(ctx)
}

// Drain waits for pending synthesis and playback tasks, up to the given
// bound. Tasks are never force-killed.
func (o *Orchestrator) Drain(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		o.pool.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return ErrDrainTimeout
	}
}

// fail marks the turn failed, reports the error, and cues the user.
func (o *Orchestrator) fail(turn *Turn, err error) {
	turn.State = TurnFailed
	o.logger.Error("Turn failed",
		"turn", turn.ID,
		"error", err)
	o.feedback.Error()
	if o.callbacks.OnError != nil {
		o.callbacks.OnError(err)
	}
}

// stageContext bounds one engine call.
func (o *Orchestrator) stageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.cfg.StageTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.cfg.StageTimeout)
}

// writeArtifact persists the utterance as a WAV file for the engines
// that want one. Returns the path, or empty when disabled or failed.
func (o *Orchestrator) writeArtifact(turn *Turn, samples []int16, rate int) string {
	if o.cfg.RecordingsDir == "" {
		return ""
	}
	path := filepath.Join(o.cfg.RecordingsDir, turn.ID+".wav")
	if err := audioio.WriteWAV(path, samples, rate, 1); err != nil {
		o.logger.Warn("Failed to write recording", "path", path, "error", err)
		return ""
	}
	return path
}

// removeArtifact deletes the on-disk utterance copy.
func (o *Orchestrator) removeArtifact(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil {
		o.logger.Warn("Failed to remove recording", "path", path, "error", err)
	}
}

// Package pipeline sequences continuous voice conversation: utterances
// from the segmenter flow through transcribe and reply generation in
// spoken order, while synthesis and playback overlap the next capture on
// a bounded worker pool.
package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/kotonebot/go-kotone/internal/log"
	"github.com/kotonebot/go-kotone/pkg/audioio"
	"github.com/kotonebot/go-kotone/pkg/segment"
)

// Session runs the capture loop for one conversation: it pulls frames
// from the source, feeds the segmenter, and hands completed utterances
// to the orchestrator. The capture goroutine never blocks on network
// I/O; interpretation runs on its own worker.
type Session struct {
	source audioio.Source
	seg    *segment.Segmenter
	orch   *Orchestrator
	logger *slog.Logger

	// ShutdownWait bounds the drain of in-flight playback on Stop.
	ShutdownWait time.Duration

	running atomic.Bool
	dropped atomic.Int64
}

// NewSession wires a source, segmenter and orchestrator together.
func NewSession(source audioio.Source, seg *segment.Segmenter, orch *Orchestrator, logger *slog.Logger) *Session {
	if logger == nil {
		logger = log.Component("session")
	}
	return &Session{
		source:       source,
		seg:          seg,
		orch:         orch,
		logger:       logger,
		ShutdownWait: 5 * time.Second,
	}
}

// Run starts the source and processes frames until Stop is called, the
// context is cancelled, or the device fails. Device failures return a
// CaptureError; a clean stop returns nil. Per-turn engine errors never
// surface here.
func (s *Session) Run(ctx context.Context) error {
	if err := s.source.Start(ctx); err != nil {
		return &CaptureError{Err: err}
	}
	s.running.Store(true)

	// Interpreter worker: keeps reply order matching spoken order. The
	// channel holds one utterance so capture is never blocked by a turn
	// already being interpreted plus one waiting.
	turns := make(chan *segment.Utterance, 1)
	interpreterDone := make(chan struct{})
	go func() {
		defer close(interpreterDone)
		for u := range turns {
			s.orch.HandleUtterance(ctx, u)
		}
	}()

	s.logger.Info("Listening")

	var captureErr error
	for s.running.Load() {
		if ctx.Err() != nil {
			break
		}

		frame, err := s.source.Read(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				break
			}
			captureErr = &CaptureError{Err: err}
			break
		}

		if u := s.seg.Push(frame); u != nil {
			select {
			case turns <- u:
			default:
				// One turn interpreting plus one queued is the limit;
				// blocking here would stall the device read loop, so the
				// utterance is lost and the error cue tells the speaker.
				s.dropped.Add(1)
				s.logger.Warn("Utterance dropped, interpreter backlogged",
					"dropped", s.dropped.Load())
				s.orch.feedback.Error()
			}
		}
	}

	// Trailing speech still in the buffer gets its turn.
	if captureErr == nil && ctx.Err() == nil {
		if u := s.seg.Flush(); u != nil {
			turns <- u
		}
	}

	close(turns)
	<-interpreterDone

	if err := s.orch.Drain(s.ShutdownWait); err != nil {
		s.logger.Warn("Playback drain incomplete", "error", err)
	}

	if stopErr := s.source.Stop(); stopErr != nil && captureErr == nil {
		captureErr = &CaptureError{Err: stopErr}
	}

	s.logger.Info("Session finished", "stats", s.seg.Stats())
	return captureErr
}

// Dropped reports how many utterances were discarded because the
// interpreter could not keep up.
func (s *Session) Dropped() int64 {
	return s.dropped.Load()
}

// Stop asks the capture loop to exit after its current read returns.
func (s *Session) Stop() {
	if s.running.CompareAndSwap(true, false) {
		s.source.Stop()
	}
}

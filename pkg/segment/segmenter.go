// Package segment turns a continuous stream of PCM frames into discrete
// utterances using amplitude-threshold voice activity detection.
//
// The segmenter is a two-state machine. In Idle it drops frames whose peak
// amplitude stays below the threshold; the first loud frame starts a new
// utterance buffer. While Capturing it buffers every frame and tracks how
// much trailing silence has accumulated; the buffer is emitted when the
// silence reaches the configured duration or the buffer hits the hard cap.
package segment

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/kotonebot/go-kotone/internal/log"
	"github.com/kotonebot/go-kotone/pkg/audioio"
)

// State is the segmenter's detection state.
type State int

const (
	// StateIdle means no speech has been detected; frames are discarded.
	StateIdle State = iota
	// StateCapturing means an utterance buffer is being filled.
	StateCapturing
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCapturing:
		return "capturing"
	default:
		return "unknown"
	}
}

// Stats tracks segmenter activity counters.
type Stats struct {
	FramesSeen  int64 `json:"frames_seen"`
	Emitted     int64 `json:"emitted"`
	Discarded   int64 `json:"discarded"`
	State       string `json:"state"`
}

// Segmenter detects utterance boundaries in a frame stream. It is not safe
// for concurrent use; one goroutine owns it for the life of a session.
type Segmenter struct {
	cfg    Config
	logger *slog.Logger

	onSpeechStart func()

	state   State
	buffer  []audioio.Frame
	start   time.Time
	rate    int
	channels int

	// Per-channel sample counters. Integer math keeps the boundary
	// decisions exact regardless of frame size.
	buffered int
	silent   int

	framesSeen atomic.Int64
	emitted    atomic.Int64
	discarded  atomic.Int64
}

// Option configures a Segmenter.
type Option func(*Segmenter)

// WithSpeechStart registers a callback fired on the Idle to Capturing
// transition, before the triggering frame is processed further. It must
// not block.
func WithSpeechStart(fn func()) Option {
	return func(s *Segmenter) {
		s.onSpeechStart = fn
	}
}

// NewSegmenter creates a segmenter with the given configuration.
func NewSegmenter(cfg Config, logger *slog.Logger, opts ...Option) (*Segmenter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Component("segmenter")
	}

	s := &Segmenter{
		cfg:    cfg,
		logger: logger,
		state:  StateIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Push feeds one frame into the state machine. It returns a completed
// Utterance when the frame ends one, or nil otherwise. A finished buffer
// shorter than the minimum duration is dropped and Push returns nil.
func (s *Segmenter) Push(frame audioio.Frame) *Utterance {
	s.framesSeen.Add(1)

	loud := int(frame.Peak()) >= s.cfg.AmplitudeThreshold

	switch s.state {
	case StateIdle:
		if !loud {
			return nil
		}
		s.state = StateCapturing
		s.start = time.Now()
		s.rate = frame.SampleRate
		s.channels = frame.Channels
		s.buffer = s.buffer[:0]
		s.buffered = 0
		s.silent = 0
		s.logger.Debug("Speech detected", "peak", frame.Peak())
		if s.onSpeechStart != nil {
			s.onSpeechStart()
		}
		return s.capture(frame, loud)

	case StateCapturing:
		return s.capture(frame, loud)
	}

	return nil
}

// capture buffers one frame and checks the end-of-utterance conditions.
func (s *Segmenter) capture(frame audioio.Frame, loud bool) *Utterance {
	n := len(frame.Samples) / frame.Channels

	s.buffer = append(s.buffer, frame)
	s.buffered += n
	if loud {
		s.silent = 0
	} else {
		s.silent += n
	}

	silenceDone := s.silent >= durationToSamples(s.cfg.TrailingSilence, s.rate)
	capped := s.buffered >= durationToSamples(s.cfg.MaxUtterance, s.rate)
	if !silenceDone && !capped {
		return nil
	}

	return s.finish(capped)
}

// finish closes the current buffer and returns to Idle. It returns nil
// when the buffer is too short to be worth transcribing.
func (s *Segmenter) finish(capped bool) *Utterance {
	u := &Utterance{
		Frames:     s.buffer,
		Start:      s.start,
		SampleRate: s.rate,
		Channels:   s.channels,
		samples:    s.buffered,
	}
	s.buffer = nil
	s.state = StateIdle

	if s.buffered < durationToSamples(s.cfg.MinUtterance, s.rate) {
		s.discarded.Add(1)
		s.logger.Debug("Discarding short utterance", "duration", u.Duration())
		return nil
	}

	s.emitted.Add(1)
	s.logger.Debug("Utterance complete",
		"duration", u.Duration(),
		"frames", len(u.Frames),
		"capped", capped)
	return u
}

// Flush ends any in-progress capture and returns the buffered utterance,
// or nil if the segmenter was idle or the buffer was too short. Used on
// session shutdown so trailing speech is not lost.
func (s *Segmenter) Flush() *Utterance {
	if s.state != StateCapturing {
		return nil
	}
	return s.finish(false)
}

// Reset drops any in-progress buffer and returns to Idle.
func (s *Segmenter) Reset() {
	s.buffer = nil
	s.buffered = 0
	s.silent = 0
	s.state = StateIdle
}

// State returns the current detection state.
func (s *Segmenter) State() State {
	return s.state
}

// Stats returns activity counters.
func (s *Segmenter) Stats() Stats {
	return Stats{
		FramesSeen: s.framesSeen.Load(),
		Emitted:    s.emitted.Load(),
		Discarded:  s.discarded.Load(),
		State:      s.state.String(),
	}
}

// durationToSamples converts a duration to a per-channel sample count at
// the given rate.
func durationToSamples(d time.Duration, rate int) int {
	return int(d * time.Duration(rate) / time.Second)
}

package pipeline

import (
	"time"

	"github.com/google/uuid"

	"github.com/kotonebot/go-kotone/pkg/segment"
)

// TurnState is the per-turn state machine.
type TurnState int

const (
	// TurnReceived means the utterance reached the orchestrator.
	TurnReceived TurnState = iota
	// TurnTranscribing means speech-to-text is running.
	TurnTranscribing
	// TurnDiscarded means the transcription was empty; no further stage
	// ran. This is a normal silent outcome, not an error.
	TurnDiscarded
	// TurnGenerating means the reply engine is running.
	TurnGenerating
	// TurnSynthesizing means synthesis+playback was submitted.
	TurnSynthesizing
	// TurnPlaying means playback is in progress.
	TurnPlaying
	// TurnDone means playback finished.
	TurnDone
	// TurnFailed means a stage failed and the rest were skipped.
	TurnFailed
)

// String returns the state name.
func (s TurnState) String() string {
	switch s {
	case TurnReceived:
		return "received"
	case TurnTranscribing:
		return "transcribing"
	case TurnDiscarded:
		return "discarded"
	case TurnGenerating:
		return "generating"
	case TurnSynthesizing:
		return "synthesizing"
	case TurnPlaying:
		return "playing"
	case TurnDone:
		return "done"
	case TurnFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Turn is one conversation turn: an utterance and everything derived
// from it. Created at utterance completion, mutated as stages finish.
type Turn struct {
	// ID uniquely identifies the turn in logs and artifact names.
	ID string

	// Utterance is the captured audio.
	Utterance *segment.Utterance

	// Text is the recognized user speech.
	Text string

	// Reply is the generated answer.
	Reply string

	// State is the current stage.
	State TurnState

	// Stage timestamps.
	Started     time.Time
	Transcribed time.Time
	Generated   time.Time
	Submitted   time.Time
}

// newTurn wraps an utterance in a fresh turn.
func newTurn(u *segment.Utterance) *Turn {
	return &Turn{
		ID:        uuid.NewString(),
		Utterance: u,
		State:     TurnReceived,
		Started:   time.Now(),
	}
}

// Latency is the time from utterance receipt to playback submission.
// Playback itself is excluded; it overlaps the next capture.
func (t *Turn) Latency() time.Duration {
	if t.Submitted.IsZero() {
		return 0
	}
	return t.Submitted.Sub(t.Started)
}

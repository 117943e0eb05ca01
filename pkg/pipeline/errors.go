package pipeline

import (
	"errors"
	"fmt"
)

// Stage identifies a conversation turn stage for error reporting.
type Stage string

const (
	// StageTranscribe is the speech-to-text stage.
	StageTranscribe Stage = "transcribe"

	// StageGenerate is the reply generation stage.
	StageGenerate Stage = "generate"

	// StageSynthesize is the speech synthesis stage.
	StageSynthesize Stage = "synthesize"

	// StagePlayback is the audio playback stage.
	StagePlayback Stage = "playback"
)

// Sentinel errors.
var (
	// ErrNotReady is returned when a turn arrives before the engines
	// finished initializing within the readiness timeout.
	ErrNotReady = errors.New("pipeline: engines not ready")

	// ErrDrainTimeout is returned when pending playback tasks do not
	// finish within the shutdown wait.
	ErrDrainTimeout = errors.New("pipeline: worker drain timed out")
)

// StageError is a per-turn, recoverable failure in one pipeline stage.
// It is reported through the error callback; the pipeline keeps running.
type StageError struct {
	Stage Stage
	Err   error
}

// Error implements the error interface.
func (e *StageError) Error() string {
	return fmt.Sprintf("pipeline [%s]: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *StageError) Unwrap() error {
	return e.Err
}

// CaptureError is a fatal device-level failure. It terminates the capture
// loop; the caller decides whether to reopen the device.
type CaptureError struct {
	Err error
}

// Error implements the error interface.
func (e *CaptureError) Error() string {
	return fmt.Sprintf("pipeline: capture: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *CaptureError) Unwrap() error {
	return e.Err
}

// Package stt provides speech-to-text engines behind a common interface.
//
// Four engines are available: OpenAI Whisper over HTTP, Google Cloud
// Speech, a local whisper.cpp model via CGO bindings, and OpenAI's
// realtime transcription over WebSocket. All of them take one complete
// utterance of PCM audio and return its text.
package stt

import (
	"context"
	"strings"
)

// Result holds the outcome of one transcription call.
type Result struct {
	// Text is the recognized text. Empty when the audio contained no
	// intelligible speech; that is a valid result, not an error.
	Text string

	// Language is the language code the engine was asked to use.
	Language string

	// LatencyMs is the engine call duration in milliseconds.
	LatencyMs int64
}

// IsEmpty reports whether the recognized text is empty or whitespace.
func (r *Result) IsEmpty() bool {
	return strings.TrimSpace(r.Text) == ""
}

// Transcriber converts one utterance of PCM audio to text.
type Transcriber interface {
	// Transcribe recognizes speech in 16-bit mono PCM at the given sample
	// rate. Silence yields an empty Result, not an error.
	Transcribe(ctx context.Context, samples []int16, sampleRate int) (*Result, error)

	// Health checks whether the engine is reachable and usable.
	Health(ctx context.Context) error

	// Name identifies the engine for logs and errors.
	Name() string

	// Close releases engine resources.
	Close() error
}

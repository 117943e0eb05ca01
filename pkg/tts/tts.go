// Package tts converts reply text to speech audio.
//
// The OpenAI provider returns a complete audio buffer per call; the opus
// helpers decode the compressed result to PCM for the playback sink.
package tts

import (
	"context"
	"time"
)

// Encoding identifies an audio container or codec.
type Encoding string

const (
	// EncodingMP3 is MPEG audio.
	EncodingMP3 Encoding = "mp3"

	// EncodingOpus is Ogg Opus.
	EncodingOpus Encoding = "opus"

	// EncodingPCM is raw 16-bit little-endian PCM.
	EncodingPCM Encoding = "pcm"

	// EncodingWAV is RIFF WAV.
	EncodingWAV Encoding = "wav"
)

// AudioFormat describes synthesized audio.
type AudioFormat struct {
	// Encoding is the codec or container.
	Encoding Encoding

	// SampleRate in Hz.
	SampleRate int

	// Channels is the channel count.
	Channels int
}

// AudioResult is the outcome of one synthesis call.
type AudioResult struct {
	// Audio is the complete encoded audio buffer.
	Audio []byte

	// Format describes the audio encoding.
	Format AudioFormat

	// CharCount is the length of the synthesized text.
	CharCount int

	// LatencyMs is the API call duration in milliseconds.
	LatencyMs int64

	// Duration is the estimated audio duration, zero if unknown.
	Duration time.Duration
}

// Provider converts text to speech.
type Provider interface {
	// Synthesize converts text to audio, returning the complete buffer.
	Synthesize(ctx context.Context, text string) (*AudioResult, error)

	// Health checks API connectivity.
	Health(ctx context.Context) error

	// Close releases resources.
	Close() error
}

package stt

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kotonebot/go-kotone/pkg/audioio"
)

const (
	realtimeURL    = "wss://api.openai.com/v1/realtime?intent=transcription"
	engineRealtime = "realtime"

	// realtimeSampleRate is the PCM rate the realtime API expects.
	realtimeSampleRate = 24000

	// ModelGPT4oTranscribe is the default realtime transcription model.
	ModelGPT4oTranscribe = "gpt-4o-transcribe"
)

// Realtime implements Transcriber over the OpenAI realtime WebSocket.
// The connection is established lazily on the first Transcribe and reused
// across turns. Server-side turn detection is disabled; the caller already
// delivers complete utterances.
type Realtime struct {
	config  *Config
	logger  *slog.Logger
	baseURL string

	mu     sync.Mutex
	ws     *websocket.Conn
	closed bool
}

// NewRealtime creates a realtime transcription engine.
func NewRealtime(opts ...Option) (*Realtime, error) {
	cfg := DefaultConfig()
	cfg.Model = ModelGPT4oTranscribe
	cfg.Apply(opts...)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = realtimeURL
	}

	return &Realtime{
		config:  cfg,
		logger:  cfg.Logger.With("component", "stt.realtime"),
		baseURL: baseURL,
	}, nil
}

// realtimeEvent is the subset of server events the engine cares about.
type realtimeEvent struct {
	Type       string `json:"type"`
	Transcript string `json:"transcript,omitempty"`
	Error      *struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error,omitempty"`
}

// connect dials the WebSocket and configures the transcription session.
// Caller holds r.mu.
func (r *Realtime) connect(ctx context.Context) error {
	if r.ws != nil {
		return nil
	}

	header := make(map[string][]string)
	header["Authorization"] = []string{"Bearer " + r.config.APIKey}
	header["OpenAI-Beta"] = []string{"realtime=v1"}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	ws, _, err := dialer.DialContext(ctx, r.baseURL, header)
	if err != nil {
		return WrapError(engineRealtime, fmt.Errorf("dial: %w", err))
	}

	session := map[string]interface{}{
		"type": "transcription_session.update",
		"session": map[string]interface{}{
			"input_audio_format": "pcm16",
			"input_audio_transcription": map[string]interface{}{
				"model":    r.config.Model,
				"language": r.config.Language,
			},
			"turn_detection": nil,
		},
	}
	if err := ws.WriteJSON(session); err != nil {
		ws.Close()
		return WrapError(engineRealtime, fmt.Errorf("configure session: %w", err))
	}

	r.ws = ws
	r.logger.Debug("Realtime session established", "model", r.config.Model)
	return nil
}

// Transcribe streams the utterance over the socket, commits the buffer,
// and waits for the completed-transcription event.
func (r *Realtime) Transcribe(ctx context.Context, samples []int16, sampleRate int) (*Result, error) {
	if len(samples) == 0 {
		return nil, WrapError(engineRealtime, ErrNoAudio)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, WrapError(engineRealtime, ErrClosed)
	}
	if err := r.connect(ctx); err != nil {
		return nil, err
	}

	start := time.Now()

	if sampleRate != realtimeSampleRate {
		samples = audioio.Resample(samples, sampleRate, realtimeSampleRate)
	}
	pcm := audioio.SamplesToBytes(samples)

	// Append in chunks the server accepts comfortably.
	const chunkBytes = 32 * 1024
	for off := 0; off < len(pcm); off += chunkBytes {
		end := off + chunkBytes
		if end > len(pcm) {
			end = len(pcm)
		}
		msg := map[string]interface{}{
			"type":  "input_audio_buffer.append",
			"audio": base64.StdEncoding.EncodeToString(pcm[off:end]),
		}
		if err := r.ws.WriteJSON(msg); err != nil {
			return nil, r.fail(fmt.Errorf("append audio: %w", err))
		}
	}

	if err := r.ws.WriteJSON(map[string]interface{}{"type": "input_audio_buffer.commit"}); err != nil {
		return nil, r.fail(fmt.Errorf("commit buffer: %w", err))
	}

	text, err := r.awaitTranscript(ctx)
	if err != nil {
		return nil, err
	}

	latency := time.Since(start).Milliseconds()

	r.logger.Debug("transcribed audio",
		"samples", len(samples),
		"chars", len(text),
		"latency_ms", latency,
	)

	return &Result{
		Text:      text,
		Language:  r.config.Language,
		LatencyMs: latency,
	}, nil
}

// awaitTranscript reads server events until the transcription completes.
// Caller holds r.mu.
func (r *Realtime) awaitTranscript(ctx context.Context) (string, error) {
	deadline := time.Now().Add(r.config.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := r.ws.SetReadDeadline(deadline); err != nil {
		return "", r.fail(err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return "", WrapError(engineRealtime, err)
		}

		var event realtimeEvent
		if err := r.ws.ReadJSON(&event); err != nil {
			return "", r.fail(fmt.Errorf("read event: %w", err))
		}

		switch event.Type {
		case "conversation.item.input_audio_transcription.completed":
			return event.Transcript, nil
		case "error":
			if event.Error != nil {
				return "", WrapError(engineRealtime, fmt.Errorf("%s: %s", event.Error.Code, event.Error.Message))
			}
			return "", WrapError(engineRealtime, fmt.Errorf("unspecified server error"))
		default:
			// Session updates, speech events and deltas are ignored.
		}
	}
}

// fail drops the connection so the next call reconnects. Caller holds r.mu.
func (r *Realtime) fail(err error) error {
	if r.ws != nil {
		r.ws.Close()
		r.ws = nil
	}
	return WrapError(engineRealtime, err)
}

// Health reports whether the engine is usable. It does not dial; the
// connection is established lazily.
func (r *Realtime) Health(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return WrapError(engineRealtime, ErrClosed)
	}
	return nil
}

// Name identifies the engine.
func (r *Realtime) Name() string {
	return engineRealtime
}

// Close closes the WebSocket connection.
func (r *Realtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	if r.ws != nil {
		err := r.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		r.ws.Close()
		r.ws = nil
		return err
	}
	return nil
}

// Verify Realtime implements Transcriber at compile time.
var _ Transcriber = (*Realtime)(nil)

package tts

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewOpenAI_RequiresAPIKey(t *testing.T) {
	_, err := NewOpenAI()
	if !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("Expected ErrNoAPIKey, got %v", err)
	}
}

func TestOpenAI_Synthesize(t *testing.T) {
	audio := []byte("fake-opus-data")
	var gotPayload map[string]interface{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Expected bearer auth, got %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotPayload); err != nil {
			t.Errorf("Decode payload failed: %v", err)
		}
		w.Write(audio)
	}))
	defer server.Close()

	provider, err := NewOpenAI(
		WithAPIKey("test-key"),
		WithBaseURL(server.URL),
		WithVoice(VoiceAlloy),
	)
	if err != nil {
		t.Fatalf("NewOpenAI failed: %v", err)
	}
	defer provider.Close()

	result, err := provider.Synthesize(context.Background(), "こんにちは")
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}

	if string(result.Audio) != string(audio) {
		t.Error("Audio buffer mismatch")
	}
	if result.Format.Encoding != EncodingOpus {
		t.Errorf("Expected opus format, got %v", result.Format.Encoding)
	}
	if result.CharCount != len("こんにちは") {
		t.Errorf("Expected char count %d, got %d", len("こんにちは"), result.CharCount)
	}

	if gotPayload["voice"] != VoiceAlloy {
		t.Errorf("Expected voice %q, got %v", VoiceAlloy, gotPayload["voice"])
	}
	if gotPayload["response_format"] != "opus" {
		t.Errorf("Expected opus response format, got %v", gotPayload["response_format"])
	}
}

func TestOpenAI_Synthesize_EmptyText(t *testing.T) {
	provider, err := NewOpenAI(WithAPIKey("test-key"))
	if err != nil {
		t.Fatalf("NewOpenAI failed: %v", err)
	}
	defer provider.Close()

	if _, err := provider.Synthesize(context.Background(), ""); !errors.Is(err, ErrEmptyText) {
		t.Errorf("Expected ErrEmptyText, got %v", err)
	}
}

func TestOpenAI_Synthesize_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": {"message": "rate limit", "code": "rate_limit_exceeded"}}`))
	}))
	defer server.Close()

	provider, err := NewOpenAI(
		WithAPIKey("test-key"),
		WithBaseURL(server.URL),
		WithRetry(0, time.Millisecond),
	)
	if err != nil {
		t.Fatalf("NewOpenAI failed: %v", err)
	}
	defer provider.Close()

	_, err = provider.Synthesize(context.Background(), "hello")
	if err == nil {
		t.Fatal("Expected error")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected APIError, got %T", err)
	}
	if !apiErr.IsRateLimited() {
		t.Errorf("Expected rate limited, got status %d", apiErr.StatusCode)
	}
}

func TestAudioResult_ToPCM_Raw(t *testing.T) {
	result := &AudioResult{
		Audio:  []byte{0x01, 0x00, 0xFF, 0xFF}, // 1, -1
		Format: AudioFormat{Encoding: EncodingPCM, SampleRate: 24000, Channels: 1},
	}

	samples, rate, err := result.ToPCM()
	if err != nil {
		t.Fatalf("ToPCM failed: %v", err)
	}
	if rate != 24000 {
		t.Errorf("Expected rate 24000, got %d", rate)
	}
	if len(samples) != 2 || samples[0] != 1 || samples[1] != -1 {
		t.Errorf("Unexpected samples: %v", samples)
	}
}

func TestAudioResult_ToPCM_Unsupported(t *testing.T) {
	result := &AudioResult{
		Audio:  []byte{1, 2, 3},
		Format: AudioFormat{Encoding: EncodingMP3},
	}
	if _, _, err := result.ToPCM(); err == nil {
		t.Error("Expected error for mp3 decode")
	}
}

func TestMock_Synthesize(t *testing.T) {
	m := NewMock()

	result, err := m.Synthesize(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if len(result.Audio) != 5*960 {
		t.Errorf("Expected %d silence bytes, got %d", 5*960, len(result.Audio))
	}
	if m.CallCount("Synthesize") != 1 {
		t.Errorf("Expected 1 call recorded, got %d", m.CallCount("Synthesize"))
	}
}

func TestMock_WithError(t *testing.T) {
	wantErr := errors.New("synthesis down")
	m := WithError(wantErr)

	if _, err := m.Synthesize(context.Background(), "x"); !errors.Is(err, wantErr) {
		t.Errorf("Expected error passthrough, got %v", err)
	}
}

func TestNewOpenAI_RejectsUnplayableFormat(t *testing.T) {
	for _, format := range []Encoding{EncodingMP3, EncodingWAV} {
		_, err := NewOpenAI(
			WithAPIKey("test-key"),
			WithOutputFormat(format),
		)
		if !errors.Is(err, ErrUnplayableFormat) {
			t.Errorf("Format %q: expected ErrUnplayableFormat, got %v", format, err)
		}
	}

	if _, err := NewOpenAI(WithAPIKey("test-key"), WithOutputFormat(EncodingPCM)); err != nil {
		t.Errorf("PCM should validate, got %v", err)
	}
}

func TestDecodeOpus_InvalidData(t *testing.T) {
	_, _, err := DecodeOpus([]byte("not an ogg opus stream at all"))
	if err == nil {
		t.Fatal("Expected error for invalid opus data")
	}
}

func TestDecodeOpus_TruncatedStream(t *testing.T) {
	// An Ogg capture pattern with a mangled body must surface an error,
	// never a silently truncated buffer.
	data := append([]byte("OggS"), make([]byte, 64)...)
	if _, _, err := DecodeOpus(data); err == nil {
		t.Fatal("Expected error for truncated opus stream")
	}
}

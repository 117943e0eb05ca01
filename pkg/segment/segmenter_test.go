package segment

import (
	"testing"
	"time"

	"github.com/kotonebot/go-kotone/pkg/audioio"
)

// makeFrame builds a mono frame whose samples all carry the given amplitude.
func makeFrame(amplitude int16, samples, rate int) audioio.Frame {
	data := make([]int16, samples)
	for i := range data {
		data[i] = amplitude
	}
	return audioio.Frame{Samples: data, SampleRate: rate, Channels: 1}
}

func newTestSegmenter(t *testing.T, cfg Config, opts ...Option) *Segmenter {
	t.Helper()
	s, err := NewSegmenter(cfg, nil, opts...)
	if err != nil {
		t.Fatalf("NewSegmenter failed: %v", err)
	}
	return s
}

func TestSegmenter_SilenceEmitsNothing(t *testing.T) {
	s := newTestSegmenter(t, DefaultConfig())

	for i := 0; i < 100; i++ {
		if u := s.Push(makeFrame(500, 1024, 16000)); u != nil {
			t.Fatalf("Frame %d: unexpected utterance from sub-threshold audio", i)
		}
	}

	if s.State() != StateIdle {
		t.Errorf("Expected idle state, got %v", s.State())
	}
	if got := s.Stats().Emitted; got != 0 {
		t.Errorf("Expected 0 utterances, got %d", got)
	}
}

func TestSegmenter_SpikeThenSilence(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TrailingSilence = 1 * time.Second
	cfg.MinUtterance = 0
	s := newTestSegmenter(t, cfg)

	// 16000 samples/frame at 16kHz = 1s per frame
	if u := s.Push(makeFrame(2000, 16000, 16000)); u != nil {
		t.Fatal("Utterance emitted while still capturing")
	}

	u := s.Push(makeFrame(0, 16000, 16000))
	if u == nil {
		t.Fatal("Expected utterance after trailing silence")
	}

	// 1s of speech plus 1s of trailing silence
	if got := u.Duration(); got != 2*time.Second {
		t.Errorf("Expected 2s duration, got %v", got)
	}
	if len(u.Frames) != 2 {
		t.Errorf("Expected 2 frames, got %d", len(u.Frames))
	}
	if s.State() != StateIdle {
		t.Errorf("Expected idle after emission, got %v", s.State())
	}
}

func TestSegmenter_MaxDurationCap(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxUtterance = 3 * time.Second
	cfg.TrailingSilence = 2 * time.Second
	s := newTestSegmenter(t, cfg)

	// Continuous loud audio, 1s per frame
	var u *Utterance
	frames := 0
	for i := 0; i < 10 && u == nil; i++ {
		u = s.Push(makeFrame(5000, 16000, 16000))
		frames++
	}

	if u == nil {
		t.Fatal("Expected utterance at max duration cap")
	}
	if frames != 3 {
		t.Errorf("Expected cap after 3 frames, got %d", frames)
	}
	if got := u.Duration(); got != 3*time.Second {
		t.Errorf("Expected 3s duration, got %v", got)
	}
	if s.State() != StateIdle {
		t.Errorf("Expected idle after cap, got %v", s.State())
	}

	// Capture resumes immediately
	if s.Push(makeFrame(5000, 16000, 16000)) != nil {
		t.Error("Unexpected emission on first frame of next utterance")
	}
	if s.State() != StateCapturing {
		t.Errorf("Expected capturing state, got %v", s.State())
	}
}

func TestSegmenter_ShortUtteranceDiscarded(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TrailingSilence = 250 * time.Millisecond
	cfg.MinUtterance = 1 * time.Second
	s := newTestSegmenter(t, cfg)

	// 4000 samples at 16kHz = 250ms per frame. One loud frame plus one
	// silent frame is 500ms total, below the 1s minimum.
	if u := s.Push(makeFrame(3000, 4000, 16000)); u != nil {
		t.Fatal("Utterance emitted while capturing")
	}
	if u := s.Push(makeFrame(0, 4000, 16000)); u != nil {
		t.Errorf("Expected short buffer to be discarded, got %v utterance", u.Duration())
	}

	stats := s.Stats()
	if stats.Discarded != 1 {
		t.Errorf("Expected 1 discarded, got %d", stats.Discarded)
	}
	if stats.Emitted != 0 {
		t.Errorf("Expected 0 emitted, got %d", stats.Emitted)
	}
	if s.State() != StateIdle {
		t.Errorf("Expected idle after discard, got %v", s.State())
	}
}

func TestSegmenter_ThreeFramesPerSecondScenario(t *testing.T) {
	cfg := Config{
		AmplitudeThreshold: 1000,
		MaxUtterance:       30 * time.Second,
		TrailingSilence:    1 * time.Second,
		MinUtterance:       0,
	}
	s := newTestSegmenter(t, cfg)

	// 1000 samples at 3kHz = 1/3s per frame
	amplitudes := []int16{0, 0, 1500, 1500, 0, 0, 0}

	var got *Utterance
	for i, amp := range amplitudes {
		u := s.Push(makeFrame(amp, 1000, 3000))
		if u != nil {
			if i != len(amplitudes)-1 {
				t.Fatalf("Utterance emitted early at frame %d", i)
			}
			got = u
		}
	}

	if got == nil {
		t.Fatal("Expected one utterance from the sequence")
	}
	if len(got.Frames) != 5 {
		t.Errorf("Expected frames 3-7 buffered (5 frames), got %d", len(got.Frames))
	}

	want := 5 * time.Second / 3
	if got.Duration() != want {
		t.Errorf("Expected duration %v, got %v", want, got.Duration())
	}
}

func TestSegmenter_SilenceCounterResets(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TrailingSilence = 1 * time.Second
	cfg.MinUtterance = 0
	s := newTestSegmenter(t, cfg)

	// Speech, almost enough silence, more speech, then full silence.
	// 8000 samples at 16kHz = 500ms per frame.
	seq := []int16{3000, 0, 3000, 0, 0}
	var utterances int
	for _, amp := range seq {
		if u := s.Push(makeFrame(amp, 8000, 16000)); u != nil {
			utterances++
			if len(u.Frames) != 5 {
				t.Errorf("Expected all 5 frames buffered, got %d", len(u.Frames))
			}
		}
	}

	if utterances != 1 {
		t.Errorf("Expected exactly 1 utterance, got %d", utterances)
	}
}

func TestSegmenter_SpeechStartCallback(t *testing.T) {
	var starts int
	cfg := DefaultConfig()
	cfg.TrailingSilence = 500 * time.Millisecond
	cfg.MinUtterance = 0
	s := newTestSegmenter(t, cfg, WithSpeechStart(func() { starts++ }))

	// Two utterances, 500ms frames
	for i := 0; i < 2; i++ {
		s.Push(makeFrame(3000, 8000, 16000))
		s.Push(makeFrame(0, 8000, 16000))
	}

	if starts != 2 {
		t.Errorf("Expected 2 speech start callbacks, got %d", starts)
	}
}

func TestSegmenter_Flush(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinUtterance = 0
	s := newTestSegmenter(t, cfg)

	if u := s.Flush(); u != nil {
		t.Error("Flush while idle should return nil")
	}

	s.Push(makeFrame(3000, 16000, 16000))
	u := s.Flush()
	if u == nil {
		t.Fatal("Expected buffered utterance from Flush")
	}
	if u.Duration() != time.Second {
		t.Errorf("Expected 1s duration, got %v", u.Duration())
	}
	if s.State() != StateIdle {
		t.Errorf("Expected idle after Flush, got %v", s.State())
	}
}

func TestUtterance_Samples(t *testing.T) {
	u := &Utterance{
		Frames: []audioio.Frame{
			{Samples: []int16{1, 2}, SampleRate: 16000, Channels: 1},
			{Samples: []int16{3, 4}, SampleRate: 16000, Channels: 1},
		},
		SampleRate: 16000,
		Channels:   1,
		samples:    4,
	}

	got := u.Samples()
	want := []int16{1, 2, 3, 4}
	if len(got) != len(want) {
		t.Fatalf("Expected %d samples, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Sample %d: expected %d, got %d", i, want[i], got[i])
		}
	}

	if len(u.Bytes()) != 8 {
		t.Errorf("Expected 8 bytes, got %d", len(u.Bytes()))
	}
}

func TestConfig_Validate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("Default config should validate: %v", err)
	}

	bad := DefaultConfig()
	bad.AmplitudeThreshold = 0
	if err := bad.Validate(); err == nil {
		t.Error("Expected error for zero threshold")
	}

	bad = DefaultConfig()
	bad.TrailingSilence = bad.MaxUtterance
	if err := bad.Validate(); err == nil {
		t.Error("Expected error for trailing silence >= max utterance")
	}
}

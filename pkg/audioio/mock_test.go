package audioio

import (
	"context"
	"io"
	"testing"
)

func TestMockSource_StartStop(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FrameSize = 160

	src := NewMockSource(cfg, nil)
	defer src.Close()

	ctx := context.Background()

	// Start should succeed
	if err := src.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Starting again should be a no-op
	if err := src.Start(ctx); err != nil {
		t.Fatalf("Second Start failed: %v", err)
	}

	// Stop should succeed
	if err := src.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	// Reads after Stop return io.EOF
	if _, err := src.Read(ctx); err != io.EOF {
		t.Errorf("Expected io.EOF after Stop, got %v", err)
	}
}

func TestMockSource_Read(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FrameSize = 160

	src := NewMockSource(cfg, nil)
	defer src.Close()

	ctx := context.Background()

	if err := src.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	frame, err := src.Read(ctx)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	expectedSamples := cfg.FrameSize * cfg.Channels
	if len(frame.Samples) != expectedSamples {
		t.Errorf("Expected %d samples, got %d", expectedSamples, len(frame.Samples))
	}

	if frame.SampleRate != cfg.SampleRate {
		t.Errorf("Expected sample rate %d, got %d", cfg.SampleRate, frame.SampleRate)
	}

	// Default mock output is silence
	if frame.Peak() != 0 {
		t.Errorf("Expected silent frame, got peak %d", frame.Peak())
	}
}

func TestMockSource_ScriptedFrames(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FrameSize = 4

	src := NewMockSource(cfg, nil)
	defer src.Close()

	src.EnqueueConstant(1500, 2)
	src.EnqueueConstant(0, 1)

	ctx := context.Background()
	if err := src.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	want := []int16{1500, 1500, 0}
	for i, peak := range want {
		frame, err := src.Read(ctx)
		if err != nil {
			t.Fatalf("Read %d failed: %v", i, err)
		}
		if frame.Peak() != peak {
			t.Errorf("Frame %d: expected peak %d, got %d", i, peak, frame.Peak())
		}
	}

	// Queue drained: falls back to silence
	frame, err := src.Read(ctx)
	if err != nil {
		t.Fatalf("Read after drain failed: %v", err)
	}
	if frame.Peak() != 0 {
		t.Errorf("Expected silence after queue drained, got peak %d", frame.Peak())
	}
}

func TestMockSource_SineWave(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FrameSize = 512

	src := NewMockSource(cfg, nil, WithSineWave(440, 0.5))
	defer src.Close()

	ctx := context.Background()
	if err := src.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	frame, err := src.Read(ctx)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	peak := frame.Peak()
	if peak < 10000 || peak > 17000 {
		t.Errorf("Expected sine peak near 16383, got %d", peak)
	}
}

func TestMockSink_WriteAndFlush(t *testing.T) {
	cfg := DefaultConfig()
	sink := NewMockSink(cfg, nil)
	defer sink.Close()

	ctx := context.Background()
	if err := sink.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	pcm := SamplesToBytes([]int16{1, 2, 3, 4})
	if err := sink.Write(ctx, pcm); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	if err := sink.Flush(ctx); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	if got := sink.Written(); len(got) != len(pcm) {
		t.Errorf("Expected %d bytes written, got %d", len(pcm), len(got))
	}

	stats := sink.Stats()
	if stats.Flushes != 1 {
		t.Errorf("Expected 1 flush, got %d", stats.Flushes)
	}
}

func TestMockSink_WriteAfterClose(t *testing.T) {
	sink := NewMockSink(DefaultConfig(), nil)

	ctx := context.Background()
	if err := sink.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	sink.Close()

	if err := sink.Write(ctx, []byte{0, 0}); err != io.ErrClosedPipe {
		t.Errorf("Expected io.ErrClosedPipe, got %v", err)
	}
}

package kotone

import (
	"context"
	"testing"
	"time"

	"github.com/kotonebot/go-kotone/internal/config"
	"github.com/kotonebot/go-kotone/pkg/tts"
)

func testConfig() config.Config {
	cfg := config.Default()
	cfg.OpenAIKey = "test-key"
	cfg.Audio.Backend = "mock"
	cfg.Face.Enabled = false
	return cfg
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	// Missing API key
	if _, err := New(cfg); err == nil {
		t.Error("Expected error for config without API key")
	}

	cfg = testConfig()
	cfg.STT.Engine = "nonexistent"
	if _, err := New(cfg); err == nil {
		t.Error("Expected error for unknown engine")
	}
}

func TestAppInitAndShutdown(t *testing.T) {
	app, err := New(testConfig())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := app.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	app.Shutdown()
}

func TestAppRunStopsOnCancel(t *testing.T) {
	app, err := New(testConfig())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := app.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer app.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected clean exit, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not exit on cancel")
	}

	if got := app.Stats().Turns; got != 0 {
		t.Errorf("Silence produced %d turns", got)
	}
}

func TestBuildTranscriberSelectsEngine(t *testing.T) {
	tests := []struct {
		engine  string
		mutate  func(*config.Config)
		wantErr bool
	}{
		{engine: config.EngineOpenAI},
		{engine: config.EngineRealtime},
		{
			engine: config.EngineWhisperCpp,
			mutate: func(c *config.Config) { c.STT.WhisperModelPath = "/nonexistent/model.bin" },
			// Model file does not exist
			wantErr: true,
		},
		{engine: "bogus", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.engine, func(t *testing.T) {
			cfg := testConfig()
			cfg.STT.Engine = tt.engine
			if tt.mutate != nil {
				tt.mutate(&cfg)
			}

			app := &App{cfg: cfg}
			tr, err := app.buildTranscriber(context.Background())
			if tt.wantErr {
				if err == nil {
					t.Error("Expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("buildTranscriber failed: %v", err)
			}
			if tr.Name() == "" {
				t.Error("Transcriber has no name")
			}
			tr.Close()
		})
	}
}

func TestBuildSynthesizerChain(t *testing.T) {
	app := &App{cfg: testConfig()}

	synth, err := app.buildSynthesizer()
	if err != nil {
		t.Fatalf("buildSynthesizer failed: %v", err)
	}
	defer synth.Close()

	chain, ok := synth.(*tts.Chain)
	if !ok {
		t.Fatalf("Expected *tts.Chain synthesizer, got %T", synth)
	}
	if got := len(chain.Providers()); got != 1 {
		t.Errorf("Expected 1 provider for baseline voice, got %d", got)
	}

	cfg := testConfig()
	cfg.TTS.Model = tts.ModelTTS1HD
	cfg.TTS.Voice = tts.VoiceNova
	app = &App{cfg: cfg}
	synth, err = app.buildSynthesizer()
	if err != nil {
		t.Fatalf("buildSynthesizer failed: %v", err)
	}
	defer synth.Close()

	chain = synth.(*tts.Chain)
	if got := len(chain.Providers()); got != 2 {
		t.Errorf("Expected fallback provider behind premium voice, got %d", got)
	}
}

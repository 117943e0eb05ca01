package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultTuning(t *testing.T) {
	cfg := Default()

	if cfg.Segmenter.AmplitudeThreshold != 1000 {
		t.Errorf("Expected threshold 1000, got %d", cfg.Segmenter.AmplitudeThreshold)
	}
	if cfg.Segmenter.MaxUtterance != 30*time.Second {
		t.Errorf("Expected 30s max utterance, got %v", cfg.Segmenter.MaxUtterance)
	}
	if cfg.Segmenter.TrailingSilence != 2*time.Second {
		t.Errorf("Expected 2s trailing silence, got %v", cfg.Segmenter.TrailingSilence)
	}
	if cfg.Audio.SampleRate != 16000 {
		t.Errorf("Expected 16kHz, got %d", cfg.Audio.SampleRate)
	}
	if cfg.Pipeline.SynthWorkers != 3 {
		t.Errorf("Expected 3 synth workers, got %d", cfg.Pipeline.SynthWorkers)
	}
	if cfg.STT.Engine != EngineOpenAI {
		t.Errorf("Expected openai engine, got %s", cfg.STT.Engine)
	}
}

func TestLoadAppliesFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kotone.yaml")
	yaml := `
log_level: warn
segmenter:
  amplitude_threshold: 2500
  trailing_silence: 1s
chat:
  model: gpt-4o
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	t.Setenv("OPENAI_API_KEY", "env-key")
	t.Setenv("TTS_VOICE", "nova")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.LogLevel != "warn" {
		t.Errorf("File log level not applied: %s", cfg.LogLevel)
	}
	if cfg.Segmenter.AmplitudeThreshold != 2500 {
		t.Errorf("File threshold not applied: %d", cfg.Segmenter.AmplitudeThreshold)
	}
	if cfg.Segmenter.TrailingSilence != time.Second {
		t.Errorf("File silence not applied: %v", cfg.Segmenter.TrailingSilence)
	}
	if cfg.Chat.Model != "gpt-4o" {
		t.Errorf("File chat model not applied: %s", cfg.Chat.Model)
	}
	// Untouched fields keep their defaults
	if cfg.Segmenter.MaxUtterance != 30*time.Second {
		t.Errorf("Default max utterance lost: %v", cfg.Segmenter.MaxUtterance)
	}

	if cfg.OpenAIKey != "env-key" {
		t.Errorf("Env key not applied: %q", cfg.OpenAIKey)
	}
	if cfg.TTS.Voice != "nova" {
		t.Errorf("Env voice not applied: %s", cfg.TTS.Voice)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "env-key")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Segmenter.AmplitudeThreshold != 1000 {
		t.Errorf("Expected default threshold, got %d", cfg.Segmenter.AmplitudeThreshold)
	}
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(path, []byte("audio: [not a map"), 0o644)

	if _, err := Load(path); err == nil {
		t.Error("Expected parse error")
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		cfg := Default()
		cfg.OpenAIKey = "key"
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing api key", func(c *Config) { c.OpenAIKey = "" }},
		{"zero sample rate", func(c *Config) { c.Audio.SampleRate = 0 }},
		{"threshold too high", func(c *Config) { c.Segmenter.AmplitudeThreshold = 40000 }},
		{"unknown engine", func(c *Config) { c.STT.Engine = "carrier-pigeon" }},
		{"whispercpp without model", func(c *Config) {
			c.STT.Engine = EngineWhisperCpp
			c.STT.WhisperModelPath = ""
		}},
		{"temperature out of range", func(c *Config) { c.Chat.Temperature = 3.5 }},
		{"no workers", func(c *Config) { c.Pipeline.SynthWorkers = 0 }},
	}

	validCfg := valid()
	if err := validCfg.Validate(); err != nil {
		t.Fatalf("Valid config rejected: %v", err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

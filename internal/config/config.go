// Package config provides the immutable runtime configuration for go-kotone.
//
// Configuration is assembled exactly once at startup: defaults, then an
// optional YAML file, then environment variables. The resulting Config is
// passed by value into each component constructor and never mutated for the
// lifetime of a session.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Transcriber engine names accepted by Config.STT.Engine.
const (
	EngineOpenAI     = "openai"     // OpenAI Whisper API (cloud, batch)
	EngineGoogle     = "google"     // Google Cloud Speech-to-Text (cloud, batch)
	EngineWhisperCpp = "whispercpp" // whisper.cpp via CGO bindings (local)
	EngineRealtime   = "realtime"   // OpenAI realtime transcription (cloud, streaming)
)

// Audio holds capture and playback settings.
type Audio struct {
	// Backend selects the audio backend: "auto", "alsa", "mock".
	Backend string `yaml:"backend"`

	// SampleRate is the capture sample rate in Hz.
	SampleRate int `yaml:"sample_rate"`

	// Channels is the number of capture channels (1 = mono).
	Channels int `yaml:"channels"`

	// FrameSize is the number of samples per capture frame.
	FrameSize int `yaml:"frame_size"`

	// Device is the ALSA device identifier (e.g. "hw:1,0").
	Device string `yaml:"device"`
}

// Segmenter holds the voice activity detection tuning.
type Segmenter struct {
	// AmplitudeThreshold is the peak int16 amplitude above which a frame
	// counts as speech.
	AmplitudeThreshold int `yaml:"amplitude_threshold"`

	// MaxUtterance caps the duration of a single utterance.
	MaxUtterance time.Duration `yaml:"max_utterance"`

	// TrailingSilence is how much continuous silence ends an utterance.
	TrailingSilence time.Duration `yaml:"trailing_silence"`

	// MinUtterance discards shorter captures as noise bursts.
	MinUtterance time.Duration `yaml:"min_utterance"`
}

// STT holds transcription engine settings.
type STT struct {
	// Engine selects the transcriber: openai, google, whispercpp, realtime.
	Engine string `yaml:"engine"`

	// Model is the cloud model name (e.g. "whisper-1").
	Model string `yaml:"model"`

	// Language is the BCP-47 recognition language hint.
	Language string `yaml:"language"`

	// WhisperModelPath is the GGML model file for the whispercpp engine.
	WhisperModelPath string `yaml:"whisper_model_path"`

	// GoogleCredentials is the service account JSON path for the google
	// engine. Empty uses Application Default Credentials.
	GoogleCredentials string `yaml:"google_credentials"`
}

// Chat holds reply engine settings.
type Chat struct {
	// Model is the chat completion model (e.g. "gpt-4o-mini").
	Model string `yaml:"model"`

	// SystemPrompt is the system instruction for the assistant.
	SystemPrompt string `yaml:"system_prompt"`

	// MaxTokens limits response length. 0 uses the provider default.
	MaxTokens int `yaml:"max_tokens"`

	// Temperature controls response randomness (0.0-2.0).
	Temperature float64 `yaml:"temperature"`
}

// TTS holds speech synthesis settings.
type TTS struct {
	// Model is the synthesis model (e.g. "tts-1").
	Model string `yaml:"model"`

	// Voice is the voice name (e.g. "alloy").
	Voice string `yaml:"voice"`
}

// Pipeline holds orchestration tuning.
type Pipeline struct {
	// ReadyTimeout bounds how long a turn waits for engine initialization.
	ReadyTimeout time.Duration `yaml:"ready_timeout"`

	// StageTimeout bounds each engine call (transcribe, reply, synthesize).
	// Zero disables the per-stage timeout.
	StageTimeout time.Duration `yaml:"stage_timeout"`

	// SynthWorkers is the size of the synthesis+playback worker pool.
	SynthWorkers int `yaml:"synth_workers"`

	// RecordingsDir is where utterance WAV files are written before
	// transcription. Files are deleted after the turn that captured them.
	RecordingsDir string `yaml:"recordings_dir"`

	// ShutdownWait bounds the drain of in-flight playback on Stop.
	ShutdownWait time.Duration `yaml:"shutdown_wait"`
}

// Face holds the visual feedback server settings.
type Face struct {
	// Enabled starts the browser face server.
	Enabled bool `yaml:"enabled"`

	// Port is the HTTP listen port.
	Port string `yaml:"port"`
}

// Config is the complete immutable configuration for one session.
type Config struct {
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// OpenAIKey authenticates the OpenAI cloud engines.
	OpenAIKey string `yaml:"-"`

	Audio     Audio     `yaml:"audio"`
	Segmenter Segmenter `yaml:"segmenter"`
	STT       STT       `yaml:"stt"`
	Chat      Chat      `yaml:"chat"`
	TTS       TTS       `yaml:"tts"`
	Pipeline  Pipeline  `yaml:"pipeline"`
	Face      Face      `yaml:"face"`
}

// Default returns a Config with the tuning the device ships with.
func Default() Config {
	return Config{
		LogLevel: "info",
		Audio: Audio{
			Backend:    "auto",
			SampleRate: 16000,
			Channels:   1,
			FrameSize:  1024,
		},
		Segmenter: Segmenter{
			AmplitudeThreshold: 1000,
			MaxUtterance:       30 * time.Second,
			TrailingSilence:    2 * time.Second,
			MinUtterance:       500 * time.Millisecond,
		},
		STT: STT{
			Engine:   EngineOpenAI,
			Model:    "whisper-1",
			Language: "ja",
		},
		Chat: Chat{
			Model:       "gpt-4o-mini",
			Temperature: 0.7,
		},
		TTS: TTS{
			Model: "tts-1",
			Voice: "alloy",
		},
		Pipeline: Pipeline{
			ReadyTimeout:  10 * time.Second,
			StageTimeout:  30 * time.Second,
			SynthWorkers:  3,
			RecordingsDir: "recordings",
			ShutdownWait:  5 * time.Second,
		},
		Face: Face{
			Enabled: true,
			Port:    "8080",
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path (if it
// exists), and environment variables, in that order of precedence.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
			}
		case !os.IsNotExist(err):
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv overlays environment variables onto the config.
func (c *Config) applyEnv() {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.OpenAIKey = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("STT_ENGINE"); v != "" {
		c.STT.Engine = v
	}
	if v := os.Getenv("WHISPER_MODEL_PATH"); v != "" {
		c.STT.WhisperModelPath = v
	}
	if v := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); v != "" {
		c.STT.GoogleCredentials = v
	}
	if v := os.Getenv("CHAT_MODEL"); v != "" {
		c.Chat.Model = v
	}
	if v := os.Getenv("TTS_VOICE"); v != "" {
		c.TTS.Voice = v
	}
	if v := os.Getenv("AUDIO_DEVICE"); v != "" {
		c.Audio.Device = v
	}
	if v := os.Getenv("AUDIO_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Segmenter.AmplitudeThreshold = n
		}
	}
	if v := os.Getenv("SAMPLE_RATE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Audio.SampleRate = n
		}
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Audio.SampleRate <= 0 {
		return errors.New("config: sample_rate must be positive")
	}
	if c.Audio.Channels <= 0 {
		return errors.New("config: channels must be positive")
	}
	if c.Audio.FrameSize <= 0 {
		return errors.New("config: frame_size must be positive")
	}
	if c.Segmenter.AmplitudeThreshold < 0 || c.Segmenter.AmplitudeThreshold > 32767 {
		return errors.New("config: amplitude_threshold must be within int16 range")
	}
	if c.Segmenter.MaxUtterance <= 0 {
		return errors.New("config: max_utterance must be positive")
	}
	if c.Segmenter.TrailingSilence <= 0 {
		return errors.New("config: trailing_silence must be positive")
	}
	if c.Segmenter.MinUtterance < 0 {
		return errors.New("config: min_utterance must not be negative")
	}

	// The reply and synthesis engines are always OpenAI-backed, so the key
	// is required regardless of the transcriber choice.
	if c.OpenAIKey == "" {
		return errors.New("config: OPENAI_API_KEY is not set")
	}

	switch c.STT.Engine {
	case EngineOpenAI, EngineRealtime:
	case EngineGoogle:
		// ADC fallback is allowed; nothing to check here.
	case EngineWhisperCpp:
		if c.STT.WhisperModelPath == "" {
			return errors.New("config: whisper_model_path required for engine whispercpp")
		}
	default:
		return fmt.Errorf("config: unknown stt engine %q", c.STT.Engine)
	}

	if c.Chat.Temperature < 0 || c.Chat.Temperature > 2 {
		return errors.New("config: chat temperature must be between 0 and 2")
	}
	if c.Pipeline.SynthWorkers <= 0 {
		return errors.New("config: synth_workers must be positive")
	}
	if c.Pipeline.ReadyTimeout <= 0 {
		return errors.New("config: ready_timeout must be positive")
	}
	return nil
}

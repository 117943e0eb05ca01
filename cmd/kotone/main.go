// Kotone - a continuous spoken conversation assistant.
// Listens on the microphone, detects utterances, and answers out loud.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kotonebot/go-kotone/internal/config"
	"github.com/kotonebot/go-kotone/internal/log"
	"github.com/kotonebot/go-kotone/pkg/kotone"
)

func main() {
	cfg, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log.Init(cfg.LogLevel)

	app, err := kotone.New(cfg)
	if err != nil {
		log.Error("Configuration rejected", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := app.Init(ctx); err != nil {
		log.Error("Initialization failed", "error", err)
		os.Exit(1)
	}
	defer app.Shutdown()

	if err := app.Run(ctx); err != nil {
		log.Error("Session ended with error", "error", err)
		os.Exit(1)
	}
}

// parseFlags layers command line flags over the file and environment
// configuration.
func parseFlags() (config.Config, error) {
	configPath := flag.String("config", "kotone.yaml", "Path to the YAML configuration file")
	debug := flag.Bool("debug", false, "Enable verbose debug logging")
	sttEngine := flag.String("stt", "", "Transcriber engine: openai, google, whispercpp, realtime")
	backend := flag.String("backend", "", "Audio backend: auto, alsa, mock")
	device := flag.String("device", "", "ALSA device identifier (e.g. hw:1,0)")
	threshold := flag.Int("threshold", 0, "Speech amplitude threshold (1-32767)")
	voice := flag.String("voice", "", "Synthesis voice name")
	facePort := flag.String("face-port", "", "Face server port (empty uses config)")
	noFace := flag.Bool("no-face", false, "Disable the browser face server")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return config.Config{}, err
	}

	if *debug {
		cfg.LogLevel = "debug"
	}
	if *sttEngine != "" {
		cfg.STT.Engine = *sttEngine
	}
	if *backend != "" {
		cfg.Audio.Backend = *backend
	}
	if *device != "" {
		cfg.Audio.Device = *device
	}
	if *threshold > 0 {
		cfg.Segmenter.AmplitudeThreshold = *threshold
	}
	if *voice != "" {
		cfg.TTS.Voice = *voice
	}
	if *facePort != "" {
		cfg.Face.Port = *facePort
	}
	if *noFace {
		cfg.Face.Enabled = false
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

//go:build linux

package audioio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"sync"
	"sync/atomic"
)

// ALSASource captures audio through arecord.
// This is the production implementation for the Raspberry Pi; running the
// capture through the ALSA userspace tools avoids a CGO dependency and
// matches how playback is handled on the device.
type ALSASource struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	closed  bool
	cmd     *exec.Cmd
	stdout  io.ReadCloser

	framesRead  atomic.Int64
	samplesRead atomic.Int64
}

// newALSASource creates a new ALSA audio source.
func newALSASource(cfg Config, logger *slog.Logger) (*ALSASource, error) {
	if _, err := exec.LookPath("arecord"); err != nil {
		return nil, fmt.Errorf("alsa: arecord not found: %w", err)
	}

	s := &ALSASource{
		cfg:    cfg,
		logger: logger,
	}

	logger.Info("ALSA source created",
		"device", cfg.Device,
		"sample_rate", cfg.SampleRate,
		"channels", cfg.Channels,
	)

	return s, nil
}

// Start begins audio capture.
func (s *ALSASource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if s.running {
		return nil
	}

	args := []string{
		"-q",
		"-t", "raw",
		"-f", "S16_LE",
		"-r", strconv.Itoa(s.cfg.SampleRate),
		"-c", strconv.Itoa(s.cfg.Channels),
	}
	if s.cfg.Device != "" {
		args = append(args, "-D", s.cfg.Device)
	}

	cmd := exec.Command("arecord", args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("alsa: stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("alsa: start arecord: %w", err)
	}

	s.cmd = cmd
	s.stdout = stdout
	s.running = true

	s.logger.Info("ALSA audio source started", "device", s.cfg.Device)
	return nil
}

// Read reads the next audio frame, blocking until a full frame is captured.
// Returns io.EOF after Stop.
func (s *ALSASource) Read(ctx context.Context) (Frame, error) {
	s.mu.Lock()
	stdout := s.stdout
	running := s.running
	s.mu.Unlock()

	if !running || stdout == nil {
		return Frame{}, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}

	buf := make([]byte, s.cfg.FrameBytes())
	if _, err := io.ReadFull(stdout, buf); err != nil {
		s.mu.Lock()
		stopped := !s.running
		s.mu.Unlock()
		if stopped {
			return Frame{}, io.EOF
		}
		return Frame{}, fmt.Errorf("alsa: read: %w", err)
	}

	frame := FrameFromBytes(buf, s.cfg.SampleRate, s.cfg.Channels)
	s.framesRead.Add(1)
	s.samplesRead.Add(int64(len(frame.Samples)))
	return frame, nil
}

// Stop halts audio capture.
func (s *ALSASource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false

	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
		_ = s.cmd.Wait()
	}
	s.cmd = nil
	s.stdout = nil

	s.logger.Info("ALSA audio source stopped")
	return nil
}

// Config returns the audio configuration.
func (s *ALSASource) Config() Config {
	return s.cfg
}

// Name returns "alsa".
func (s *ALSASource) Name() string {
	return "alsa"
}

// Close releases resources.
func (s *ALSASource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	return s.Stop()
}

// Stats returns source statistics.
func (s *ALSASource) Stats() SourceStats {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	return SourceStats{
		FramesRead:  s.framesRead.Load(),
		SamplesRead: s.samplesRead.Load(),
		Running:     running,
		Backend:     "alsa",
	}
}

var _ SourceWithStats = (*ALSASource)(nil)

// ALSASink plays audio through aplay. Each playback spawns one aplay
// process; Flush closes its stdin and waits for the buffered audio to
// finish, so a Write+Flush pair blocks for the full playback duration.
type ALSASink struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	closed  bool
	cmd     *exec.Cmd
	stdin   io.WriteCloser

	bytesWritten atomic.Int64
	flushes      atomic.Int64
}

// newALSASink creates a new ALSA audio sink.
func newALSASink(cfg Config, logger *slog.Logger) (*ALSASink, error) {
	if _, err := exec.LookPath("aplay"); err != nil {
		return nil, fmt.Errorf("alsa: aplay not found: %w", err)
	}
	return &ALSASink{cfg: cfg, logger: logger}, nil
}

// Start prepares the sink. The aplay process is spawned lazily on the
// first Write so an idle sink holds no device handle.
func (s *ALSASink) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	s.running = true
	return nil
}

// Write sends PCM16 bytes to aplay.
func (s *ALSASink) Write(ctx context.Context, pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || !s.running {
		return io.ErrClosedPipe
	}
	if s.stdin == nil {
		if err := s.spawnLocked(); err != nil {
			return err
		}
	}

	if _, err := s.stdin.Write(pcm); err != nil {
		s.reapLocked()
		return fmt.Errorf("alsa: write: %w", err)
	}
	s.bytesWritten.Add(int64(len(pcm)))
	return nil
}

// spawnLocked starts a fresh aplay process. Caller holds s.mu.
func (s *ALSASink) spawnLocked() error {
	args := []string{
		"-q",
		"-t", "raw",
		"-f", "S16_LE",
		"-r", strconv.Itoa(s.cfg.SampleRate),
		"-c", strconv.Itoa(s.cfg.Channels),
	}
	if s.cfg.Device != "" {
		args = append(args, "-D", s.cfg.Device)
	}

	cmd := exec.Command("aplay", args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("alsa: stdin pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("alsa: start aplay: %w", err)
	}
	s.cmd = cmd
	s.stdin = stdin
	return nil
}

// Flush closes the playback stream and blocks until aplay has drained.
func (s *ALSASink) Flush(ctx context.Context) error {
	s.mu.Lock()
	cmd, stdin := s.cmd, s.stdin
	s.cmd, s.stdin = nil, nil
	s.mu.Unlock()

	if cmd == nil {
		return nil
	}
	_ = stdin.Close()

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-done
		return ctx.Err()
	case err := <-done:
		s.flushes.Add(1)
		if err != nil {
			return fmt.Errorf("alsa: aplay: %w", err)
		}
		return nil
	}
}

// Clear kills any in-flight playback immediately.
func (s *ALSASink) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reapLocked()
	return nil
}

// reapLocked kills the current aplay process. Caller holds s.mu.
func (s *ALSASink) reapLocked() {
	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
		_ = s.cmd.Wait()
	}
	s.cmd = nil
	s.stdin = nil
}

// Stop halts playback.
func (s *ALSASink) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false
	s.reapLocked()

	s.logger.Info("ALSA audio sink stopped")
	return nil
}

// Config returns the audio configuration.
func (s *ALSASink) Config() Config {
	return s.cfg
}

// Name returns "alsa".
func (s *ALSASink) Name() string {
	return "alsa"
}

// Close releases resources.
func (s *ALSASink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	return s.Stop()
}

// Stats returns sink statistics.
func (s *ALSASink) Stats() SinkStats {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	return SinkStats{
		BytesWritten: s.bytesWritten.Load(),
		Flushes:      s.flushes.Load(),
		Running:      running,
		Backend:      "alsa",
	}
}

var _ SinkWithStats = (*ALSASink)(nil)

package audioio

import (
	"context"
	"io"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// MockSource is a mock audio source for testing.
// It serves scripted frames first, then synthetic audio (silence or a sine
// wave). Without pacing enabled, Read returns immediately so tests run fast.
type MockSource struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	closed  bool
	queue   []Frame

	// Synthetic audio generation once the queue is drained
	phase     float64
	frequency float64 // Hz, 0 = silence
	amplitude float64 // 0.0 to 1.0

	// Pacing
	realtime bool

	framesRead  atomic.Int64
	samplesRead atomic.Int64
}

// MockSourceOption configures a MockSource.
type MockSourceOption func(*MockSource)

// WithSineWave configures the mock to generate a sine wave after the
// scripted queue is drained.
func WithSineWave(frequency, amplitude float64) MockSourceOption {
	return func(m *MockSource) {
		m.frequency = frequency
		m.amplitude = amplitude
	}
}

// WithRealtime makes Read pace frames at their nominal duration.
func WithRealtime() MockSourceOption {
	return func(m *MockSource) {
		m.realtime = true
	}
}

// NewMockSource creates a new mock audio source.
func NewMockSource(cfg Config, logger *slog.Logger, opts ...MockSourceOption) *MockSource {
	if logger == nil {
		logger = slog.Default()
	}

	m := &MockSource{
		cfg:       cfg,
		logger:    logger,
		amplitude: 0.5,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Enqueue appends a scripted frame to be served before synthetic audio.
func (m *MockSource) Enqueue(frame Frame) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, frame)
}

// EnqueueConstant appends n scripted frames whose samples all have the
// given amplitude. Useful for driving voice-activity tests.
func (m *MockSource) EnqueueConstant(amplitude int16, n int) {
	for i := 0; i < n; i++ {
		samples := make([]int16, m.cfg.FrameSize*m.cfg.Channels)
		for j := range samples {
			samples[j] = amplitude
		}
		m.Enqueue(Frame{Samples: samples, SampleRate: m.cfg.SampleRate, Channels: m.cfg.Channels})
	}
}

// Start begins serving audio.
func (m *MockSource) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return io.ErrClosedPipe
	}
	m.running = true

	m.logger.Info("mock audio source started",
		"sample_rate", m.cfg.SampleRate,
		"queued", len(m.queue),
	)
	return nil
}

// Read returns the next frame: scripted if queued, synthetic otherwise.
// Returns io.EOF after Stop.
func (m *MockSource) Read(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}

	m.mu.Lock()
	if m.closed || !m.running {
		m.mu.Unlock()
		return Frame{}, io.EOF
	}

	var frame Frame
	if len(m.queue) > 0 {
		frame = m.queue[0]
		m.queue = m.queue[1:]
	} else {
		frame = m.generateFrame()
	}
	realtime := m.realtime
	m.mu.Unlock()

	if realtime {
		select {
		case <-ctx.Done():
			return Frame{}, ctx.Err()
		case <-time.After(m.cfg.FrameDuration()):
		}
	}

	m.framesRead.Add(1)
	m.samplesRead.Add(int64(len(frame.Samples)))
	return frame, nil
}

// generateFrame produces a sine or silence frame. Caller holds m.mu.
func (m *MockSource) generateFrame() Frame {
	samples := make([]int16, m.cfg.FrameSize*m.cfg.Channels)

	if m.frequency > 0 {
		for i := 0; i < m.cfg.FrameSize; i++ {
			sample := m.amplitude * math.Sin(2*math.Pi*m.frequency*m.phase/float64(m.cfg.SampleRate))
			sampleInt := int16(sample * 32767)

			for ch := 0; ch < m.cfg.Channels; ch++ {
				samples[i*m.cfg.Channels+ch] = sampleInt
			}

			m.phase++
			if m.phase >= float64(m.cfg.SampleRate) {
				m.phase = 0
			}
		}
	}
	// else: samples are already zero (silence)

	return Frame{
		Samples:    samples,
		SampleRate: m.cfg.SampleRate,
		Channels:   m.cfg.Channels,
	}
}

// Stop halts audio serving.
func (m *MockSource) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil
	}
	m.running = false

	m.logger.Info("mock audio source stopped")
	return nil
}

// Config returns the audio configuration.
func (m *MockSource) Config() Config {
	return m.cfg
}

// Name returns "mock".
func (m *MockSource) Name() string {
	return "mock"
}

// Close releases resources.
func (m *MockSource) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	return m.Stop()
}

// Stats returns source statistics.
func (m *MockSource) Stats() SourceStats {
	m.mu.Lock()
	running := m.running
	m.mu.Unlock()

	return SourceStats{
		FramesRead:  m.framesRead.Load(),
		SamplesRead: m.samplesRead.Load(),
		Running:     running,
		Backend:     "mock",
	}
}

// Ensure MockSource implements SourceWithStats.
var _ SourceWithStats = (*MockSource)(nil)

// MockSink is a mock audio sink for testing.
// It records written audio and tracks statistics.
type MockSink struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	closed  bool
	written []byte

	bytesWritten atomic.Int64
	flushes      atomic.Int64
}

// NewMockSink creates a new mock audio sink.
func NewMockSink(cfg Config, logger *slog.Logger) *MockSink {
	if logger == nil {
		logger = slog.Default()
	}

	return &MockSink{
		cfg:    cfg,
		logger: logger,
	}
}

// Start begins accepting audio.
func (m *MockSink) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return io.ErrClosedPipe
	}
	m.running = true
	return nil
}

// Stop halts audio acceptance.
func (m *MockSink) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = false
	return nil
}

// Write records PCM bytes.
func (m *MockSink) Write(ctx context.Context, pcm []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed || !m.running {
		return io.ErrClosedPipe
	}

	m.written = append(m.written, pcm...)
	m.bytesWritten.Add(int64(len(pcm)))
	return nil
}

// Flush simulates waiting for playback with a token delay.
func (m *MockSink) Flush(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(time.Millisecond):
	}
	m.flushes.Add(1)
	return nil
}

// Clear discards recorded audio.
func (m *MockSink) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.written = m.written[:0]
	return nil
}

// Written returns a copy of all PCM bytes written so far.
func (m *MockSink) Written() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]byte, len(m.written))
	copy(out, m.written)
	return out
}

// Config returns the audio configuration.
func (m *MockSink) Config() Config {
	return m.cfg
}

// Name returns "mock".
func (m *MockSink) Name() string {
	return "mock"
}

// Close releases resources.
func (m *MockSink) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	return m.Stop()
}

// Stats returns sink statistics.
func (m *MockSink) Stats() SinkStats {
	m.mu.Lock()
	running := m.running
	m.mu.Unlock()

	return SinkStats{
		BytesWritten: m.bytesWritten.Load(),
		Flushes:      m.flushes.Load(),
		Running:      running,
		Backend:      "mock",
	}
}

// Ensure MockSink implements SinkWithStats.
var _ SinkWithStats = (*MockSink)(nil)

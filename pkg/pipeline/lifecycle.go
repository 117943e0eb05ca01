package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kotonebot/go-kotone/internal/log"
	"github.com/kotonebot/go-kotone/pkg/chat"
	"github.com/kotonebot/go-kotone/pkg/stt"
	"github.com/kotonebot/go-kotone/pkg/tts"
)

// ReadinessState tracks background engine initialization.
// Transitions are monotonic: NotStarted -> Initializing -> Ready | Failed.
type ReadinessState int

const (
	// StateNotStarted means Start has not been called.
	StateNotStarted ReadinessState = iota
	// StateInitializing means the background build is running.
	StateInitializing
	// StateReady means all engines are available.
	StateReady
	// StateFailed means initialization failed; there is no retry.
	StateFailed
)

// String returns the state name.
func (s ReadinessState) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Engines bundles the external engines one session talks to.
type Engines struct {
	Transcriber stt.Transcriber
	Replier     chat.Replier
	Synthesizer tts.Provider
}

// Close closes all engines, returning the first error.
func (e *Engines) Close() error {
	var first error
	if e.Transcriber != nil {
		if err := e.Transcriber.Close(); err != nil && first == nil {
			first = err
		}
	}
	if e.Replier != nil {
		if err := e.Replier.Close(); err != nil && first == nil {
			first = err
		}
	}
	if e.Synthesizer != nil {
		if err := e.Synthesizer.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// EngineBuilder constructs the engines. It may be slow (model loading,
// credential exchange); the lifecycle runs it off the critical path.
type EngineBuilder func(ctx context.Context) (*Engines, error)

// Lifecycle decouples expensive engine construction from session start.
// Create returns immediately; Start kicks off the build in the
// background; AwaitReady blocks callers until the build finishes.
type Lifecycle struct {
	build  EngineBuilder
	logger *slog.Logger

	mu      sync.Mutex
	state   ReadinessState
	started time.Time
	elapsed time.Duration
	engines *Engines
	initErr error

	ready chan struct{}
}

// NewLifecycle creates a lifecycle manager. Nothing runs until Start.
func NewLifecycle(build EngineBuilder, logger *slog.Logger) *Lifecycle {
	if logger == nil {
		logger = log.Component("lifecycle")
	}
	return &Lifecycle{
		build:  build,
		logger: logger,
		state:  StateNotStarted,
		ready:  make(chan struct{}),
	}
}

// Start launches the background build. It returns immediately; calling
// it more than once is a no-op.
func (l *Lifecycle) Start(ctx context.Context) {
	l.mu.Lock()
	if l.state != StateNotStarted {
		l.mu.Unlock()
		return
	}
	l.state = StateInitializing
	l.started = time.Now()
	l.mu.Unlock()

	l.logger.Info("Engine initialization started")

	go func() {
		engines, err := l.build(ctx)

		l.mu.Lock()
		l.elapsed = time.Since(l.started)
		if err != nil {
			l.state = StateFailed
			l.initErr = err
		} else {
			l.state = StateReady
			l.engines = engines
		}
		l.mu.Unlock()
		close(l.ready)

		if err != nil {
			l.logger.Error("Engine initialization failed",
				"error", err,
				"elapsed", l.elapsed)
			return
		}
		l.logger.Info("Engines ready", "elapsed", l.elapsed)
	}()
}

// AwaitReady blocks until the engines are ready, initialization fails,
// or the timeout elapses. A zero timeout waits on ctx alone.
func (l *Lifecycle) AwaitReady(ctx context.Context, timeout time.Duration) (*Engines, error) {
	var expire <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expire = timer.C
	}

	select {
	case <-l.ready:
	case <-expire:
		return nil, ErrNotReady
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == StateFailed {
		return nil, l.initErr
	}
	return l.engines, nil
}

// Status returns the current state and the elapsed initialization time.
// While initializing the elapsed time grows; afterwards it is fixed at
// the total build duration.
func (l *Lifecycle) Status() (ReadinessState, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case StateInitializing:
		return l.state, time.Since(l.started)
	default:
		return l.state, l.elapsed
	}
}

// Close closes the engines if they were built.
func (l *Lifecycle) Close() error {
	l.mu.Lock()
	engines := l.engines
	l.engines = nil
	l.mu.Unlock()

	if engines != nil {
		return engines.Close()
	}
	return nil
}

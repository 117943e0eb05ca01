package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kotonebot/go-kotone/pkg/chat"
	"github.com/kotonebot/go-kotone/pkg/stt"
	"github.com/kotonebot/go-kotone/pkg/tts"
)

func mockEngines() *Engines {
	return &Engines{
		Transcriber: stt.NewMock(),
		Replier:     chat.NewMock(),
		Synthesizer: tts.NewMock(),
	}
}

func TestLifecycle_AwaitReadyBeforeFinish(t *testing.T) {
	release := make(chan struct{})
	lc := NewLifecycle(func(ctx context.Context) (*Engines, error) {
		<-release
		return mockEngines(), nil
	}, nil)

	lc.Start(context.Background())
	defer lc.Close()

	if state, _ := lc.Status(); state != StateInitializing {
		t.Fatalf("Expected initializing, got %v", state)
	}

	// Release the build while a caller is already waiting
	go func() {
		time.Sleep(10 * time.Millisecond)
		close(release)
	}()

	engines, err := lc.AwaitReady(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("AwaitReady failed: %v", err)
	}
	if engines == nil || engines.Transcriber == nil {
		t.Fatal("Expected built engines")
	}

	state, elapsed := lc.Status()
	if state != StateReady {
		t.Errorf("Expected ready, got %v", state)
	}
	if elapsed <= 0 {
		t.Errorf("Expected positive init time, got %v", elapsed)
	}
}

func TestLifecycle_AwaitReadyTimeout(t *testing.T) {
	lc := NewLifecycle(func(ctx context.Context) (*Engines, error) {
		time.Sleep(time.Second)
		return mockEngines(), nil
	}, nil)

	lc.Start(context.Background())
	defer lc.Close()

	_, err := lc.AwaitReady(context.Background(), 10*time.Millisecond)
	if !errors.Is(err, ErrNotReady) {
		t.Errorf("Expected ErrNotReady, got %v", err)
	}
}

func TestLifecycle_InitFailure(t *testing.T) {
	buildErr := errors.New("model load failed")
	lc := NewLifecycle(func(ctx context.Context) (*Engines, error) {
		return nil, buildErr
	}, nil)

	lc.Start(context.Background())

	_, err := lc.AwaitReady(context.Background(), time.Second)
	if !errors.Is(err, buildErr) {
		t.Errorf("Expected build error, got %v", err)
	}

	if state, _ := lc.Status(); state != StateFailed {
		t.Errorf("Expected failed state, got %v", state)
	}
}

func TestLifecycle_StartIsIdempotent(t *testing.T) {
	var builds int
	lc := NewLifecycle(func(ctx context.Context) (*Engines, error) {
		builds++
		return mockEngines(), nil
	}, nil)

	lc.Start(context.Background())
	lc.Start(context.Background())
	defer lc.Close()

	if _, err := lc.AwaitReady(context.Background(), time.Second); err != nil {
		t.Fatalf("AwaitReady failed: %v", err)
	}
	if builds != 1 {
		t.Errorf("Expected 1 build, got %d", builds)
	}
}

func TestLifecycle_NotStartedStatus(t *testing.T) {
	lc := NewLifecycle(func(ctx context.Context) (*Engines, error) {
		return mockEngines(), nil
	}, nil)

	if state, elapsed := lc.Status(); state != StateNotStarted || elapsed != 0 {
		t.Errorf("Expected not_started with zero elapsed, got %v %v", state, elapsed)
	}
}

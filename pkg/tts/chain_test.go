package tts

import (
	"context"
	"errors"
	"testing"
)

func TestChain_RequiresProvider(t *testing.T) {
	_, err := NewChain()
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Errorf("Expected ErrProviderUnavailable, got %v", err)
	}
}

func TestChain_FirstProviderWins(t *testing.T) {
	primary := NewMock()
	fallback := NewMock()
	chain, err := NewChain(primary, fallback)
	if err != nil {
		t.Fatalf("NewChain failed: %v", err)
	}

	result, err := chain.Synthesize(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if result.CharCount != 5 {
		t.Errorf("Expected CharCount 5, got %d", result.CharCount)
	}
	if fallback.CallCount("Synthesize") != 0 {
		t.Error("Fallback should not be called when primary succeeds")
	}
}

func TestChain_FallsBackOnError(t *testing.T) {
	primary := WithError(errors.New("quota exceeded"))
	fallback := NewMock()
	chain, err := NewChain(primary, fallback)
	if err != nil {
		t.Fatalf("NewChain failed: %v", err)
	}

	result, err := chain.Synthesize(context.Background(), "fallback path")
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if result == nil {
		t.Fatal("Expected result from fallback provider")
	}
	if fallback.CallCount("Synthesize") != 1 {
		t.Errorf("Expected 1 fallback call, got %d", fallback.CallCount("Synthesize"))
	}
}

func TestChain_AllProvidersFail(t *testing.T) {
	last := errors.New("second down")
	chain, err := NewChain(
		WithError(errors.New("first down")),
		WithError(last),
	)
	if err != nil {
		t.Fatalf("NewChain failed: %v", err)
	}

	_, err = chain.Synthesize(context.Background(), "hello")
	var chainErr *ChainError
	if !errors.As(err, &chainErr) {
		t.Fatalf("Expected ChainError, got %v", err)
	}
	if len(chainErr.Errors) != 2 {
		t.Errorf("Expected 2 aggregated errors, got %d", len(chainErr.Errors))
	}
	if !errors.Is(err, last) {
		t.Error("Expected Unwrap to surface the last provider error")
	}
}

func TestChain_ContextCancelStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	primary := NewMock()
	primary.SynthesizeFunc = func(ctx context.Context, text string) (*AudioResult, error) {
		cancel()
		return nil, errors.New("interrupted")
	}
	fallback := NewMock()
	chain, err := NewChain(primary, fallback)
	if err != nil {
		t.Fatalf("NewChain failed: %v", err)
	}

	_, err = chain.Synthesize(ctx, "hello")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if fallback.CallCount("Synthesize") != 0 {
		t.Error("Fallback should not run after cancellation")
	}
}

func TestChain_HealthRequiresOneHealthy(t *testing.T) {
	chain, err := NewChain(WithError(errors.New("down")), NewMock())
	if err != nil {
		t.Fatalf("NewChain failed: %v", err)
	}
	if err := chain.Health(context.Background()); err != nil {
		t.Errorf("Expected healthy chain, got %v", err)
	}

	allDown, err := NewChain(WithError(errors.New("down")))
	if err != nil {
		t.Fatalf("NewChain failed: %v", err)
	}
	if err := allDown.Health(context.Background()); err == nil {
		t.Error("Expected error when every provider is unhealthy")
	}
}

package chat

import (
	"context"
	"sync"
)

// Mock implements Replier for testing.
type Mock struct {
	// ReplyFunc is called when Reply is invoked.
	// If nil, echoes the input.
	ReplyFunc func(ctx context.Context, text string) (string, error)

	mu     sync.Mutex
	inputs []string
	resets int
}

// NewMock creates a mock replier that echoes its input.
func NewMock() *Mock {
	return &Mock{}
}

// Reply calls ReplyFunc and records the input.
func (m *Mock) Reply(ctx context.Context, text string) (string, error) {
	m.mu.Lock()
	m.inputs = append(m.inputs, text)
	m.mu.Unlock()

	if m.ReplyFunc != nil {
		return m.ReplyFunc(ctx, text)
	}
	return "echo: " + text, nil
}

// Reset records the reset call.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets++
}

// Close releases resources.
func (m *Mock) Close() error {
	return nil
}

// Inputs returns all recorded Reply inputs.
func (m *Mock) Inputs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.inputs))
	copy(out, m.inputs)
	return out
}

// Resets returns how many times Reset was called.
func (m *Mock) Resets() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resets
}

// Verify Mock implements Replier at compile time.
var _ Replier = (*Mock)(nil)

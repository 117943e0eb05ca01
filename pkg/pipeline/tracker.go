package pipeline

import (
	"sync"
	"time"
)

// Stats is an immutable snapshot of pipeline performance counters.
type Stats struct {
	// Turns is the number of completed conversation turns.
	Turns int64 `json:"turns"`

	// TotalLatency is the cumulative turn latency.
	TotalLatency time.Duration `json:"total_latency"`

	// AverageLatency is TotalLatency divided by Turns.
	AverageLatency time.Duration `json:"average_latency"`

	// InitTime is how long background engine initialization took.
	InitTime time.Duration `json:"init_time"`
}

// Tracker maintains running per-turn statistics. Turns may complete out
// of submission order because playback overlaps the next capture, so all
// updates go through a lock. Snapshot never blocks producers for long;
// the critical section is a few field reads.
type Tracker struct {
	mu       sync.Mutex
	turns    int64
	total    time.Duration
	initTime time.Duration
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Record adds one completed turn's latency.
func (t *Tracker) Record(latency time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.turns++
	t.total += latency
}

// RecordInit stores the engine initialization duration.
func (t *Tracker) RecordInit(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.initTime = d
}

// Snapshot returns a copy of the current counters.
func (t *Tracker) Snapshot() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := Stats{
		Turns:        t.turns,
		TotalLatency: t.total,
		InitTime:     t.initTime,
	}
	if t.turns > 0 {
		s.AverageLatency = t.total / time.Duration(t.turns)
	}
	return s
}

// Reset clears the turn counters. Only an explicit operator action calls
// this; normal operation never resets.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.turns = 0
	t.total = 0
}

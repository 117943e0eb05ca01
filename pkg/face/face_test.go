package face

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kotonebot/go-kotone/pkg/audioio"
	"github.com/kotonebot/go-kotone/pkg/pipeline"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestServerStatusEndpoint(t *testing.T) {
	s := NewServer("0", WithReadiness(func() (pipeline.ReadinessState, time.Duration) {
		return pipeline.StateReady, 1500 * time.Millisecond
	}))

	req := httptest.NewRequest("GET", "/api/status", nil)
	resp, err := s.app.Test(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}

	if body["state"] != "idle" {
		t.Errorf("Expected idle state, got %v", body["state"])
	}
	if body["engines"] != "ready" {
		t.Errorf("Expected ready engines, got %v", body["engines"])
	}
	if body["engine_elapsed_ms"] != float64(1500) {
		t.Errorf("Expected 1500ms elapsed, got %v", body["engine_elapsed_ms"])
	}
}

func TestServerStatsEndpoint(t *testing.T) {
	tracker := pipeline.NewTracker()
	tracker.Record(2 * time.Second)
	tracker.Record(4 * time.Second)

	s := NewServer("0", WithStats(tracker.Snapshot))

	req := httptest.NewRequest("GET", "/api/stats", nil)
	resp, err := s.app.Test(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	var stats pipeline.Stats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if stats.Turns != 2 {
		t.Errorf("Expected 2 turns, got %d", stats.Turns)
	}
	if stats.AverageLatency != 3*time.Second {
		t.Errorf("Expected 3s average, got %v", stats.AverageLatency)
	}
}

func TestServerStatsNotConfigured(t *testing.T) {
	s := NewServer("0")

	req := httptest.NewRequest("GET", "/api/stats", nil)
	resp, err := s.app.Test(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != 404 {
		t.Errorf("Expected 404 without a stats source, got %d", resp.StatusCode)
	}
}

func TestServerIndexServesFace(t *testing.T) {
	s := NewServer("0")

	req := httptest.NewRequest("GET", "/", nil)
	resp, err := s.app.Test(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "/ws/state") {
		t.Error("Face page does not connect to the state feed")
	}
}

func TestServerStateTransitions(t *testing.T) {
	s := NewServer("0")
	go s.hub.run()
	defer s.hub.stop()

	if s.CurrentState() != StateIdle {
		t.Fatalf("Expected initial idle, got %v", s.CurrentState())
	}

	s.Listening()
	if s.CurrentState() != StateListening {
		t.Errorf("Expected listening, got %v", s.CurrentState())
	}

	s.Speaking()
	if s.CurrentState() != StateSpeaking {
		t.Errorf("Expected speaking, got %v", s.CurrentState())
	}

	s.Error()
	if s.CurrentState() != StateError {
		t.Errorf("Expected error, got %v", s.CurrentState())
	}

	s.Idle()
	if s.CurrentState() != StateIdle {
		t.Errorf("Expected idle, got %v", s.CurrentState())
	}
}

func TestHubBroadcastToClients(t *testing.T) {
	h := newHub(testLogger())
	go h.run()
	defer h.stop()

	c := &client{hub: h, send: make(chan []byte, 4)}
	h.register <- c

	deadline := time.After(time.Second)
	for h.clientCount() != 1 {
		select {
		case <-deadline:
			t.Fatal("Client never registered")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	h.broadcastJSON(stateUpdate{State: StateSpeaking})

	select {
	case msg := <-c.send:
		var update stateUpdate
		if err := json.Unmarshal(msg, &update); err != nil {
			t.Fatalf("Invalid JSON broadcast: %v", err)
		}
		if update.State != StateSpeaking {
			t.Errorf("Expected speaking, got %v", update.State)
		}
	case <-time.After(time.Second):
		t.Fatal("Broadcast never arrived")
	}
}

func TestToneShape(t *testing.T) {
	samples := Tone(440, 100*time.Millisecond, 16000)

	if len(samples) != 1600 {
		t.Fatalf("Expected 1600 samples, got %d", len(samples))
	}
	// Fades pin both ends to zero
	if samples[0] != 0 {
		t.Errorf("Expected silent start, got %d", samples[0])
	}

	var peak int16
	for _, v := range samples {
		if v > peak {
			peak = v
		}
	}
	if peak < 5000 || peak > 12000 {
		t.Errorf("Tone peak out of range: %d", peak)
	}
}

func TestBeeperWritesCue(t *testing.T) {
	sink := audioio.NewMockSink(audioio.DefaultConfig(), nil)
	sink.Start(context.Background())

	b := NewBeeper(sink, nil)
	b.Listening()

	deadline := time.After(time.Second)
	for len(sink.Written()) == 0 {
		select {
		case <-deadline:
			t.Fatal("Cue never reached the sink")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	// 120ms at 16kHz, two bytes per sample
	if got := len(sink.Written()); got != 1920*2 {
		t.Errorf("Unexpected cue length: %d bytes", got)
	}
}

func TestBeeperSpeakingIsSilent(t *testing.T) {
	sink := audioio.NewMockSink(audioio.DefaultConfig(), nil)
	sink.Start(context.Background())

	b := NewBeeper(sink, nil)
	b.Speaking()

	time.Sleep(10 * time.Millisecond)
	if len(sink.Written()) != 0 {
		t.Error("Speaking cue should not write audio")
	}
}

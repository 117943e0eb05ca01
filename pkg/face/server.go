// Package face serves the browser face: a small fiber app that renders
// an animated face and pushes pipeline state changes to it over a
// websocket, plus JSON endpoints for status and per-turn statistics.
package face

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/kotonebot/go-kotone/internal/log"
	"github.com/kotonebot/go-kotone/pkg/pipeline"
)

// State is what the face is currently showing.
type State string

const (
	StateIdle      State = "idle"
	StateListening State = "listening"
	StateSpeaking  State = "speaking"
	StateError     State = "error"
)

// Server hosts the face page and its state feed.
type Server struct {
	app    *fiber.App
	port   string
	hub    *hub
	logger *slog.Logger

	// stats and readiness back the JSON endpoints; either may be nil.
	stats     func() pipeline.Stats
	readiness func() (pipeline.ReadinessState, time.Duration)

	mu    sync.RWMutex
	state State
	since time.Time
}

var _ pipeline.Feedback = (*Server)(nil)

// Option configures the server.
type Option func(*Server)

// WithStats wires the /api/stats endpoint to a snapshot source.
func WithStats(fn func() pipeline.Stats) Option {
	return func(s *Server) { s.stats = fn }
}

// WithReadiness wires engine readiness into /api/status.
func WithReadiness(fn func() (pipeline.ReadinessState, time.Duration)) Option {
	return func(s *Server) { s.readiness = fn }
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// NewServer builds the face server. Call Start (or StartAsync) to begin
// listening.
func NewServer(port string, opts ...Option) *Server {
	s := &Server{
		port:  port,
		state: StateIdle,
		since: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.Component("face")
	}
	s.hub = newHub(s.logger)

	app := fiber.New(fiber.Config{
		AppName:               "Kotone Face",
		DisableStartupMessage: true,
	})
	app.Use(cors.New())

	app.Get("/", s.handleIndex)

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/stats", s.handleStats)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/state", websocket.New(s.handleStateWS))

	s.app = app
	return s
}

// Start runs the hub and listens. It blocks until Shutdown.
func (s *Server) Start() error {
	go s.hub.run()
	s.logger.Info("Face available", "url", "http://localhost:"+s.port)
	return s.app.Listen(":" + s.port)
}

// StartAsync starts the server in a goroutine.
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			s.logger.Error("Face server stopped", "error", err)
		}
	}()
}

// Shutdown stops the listener and disconnects all clients.
func (s *Server) Shutdown() error {
	s.hub.stop()
	return s.app.Shutdown()
}

// stateUpdate is the websocket payload for one state change.
type stateUpdate struct {
	State State  `json:"state"`
	Since string `json:"since"`
}

// SetState records and broadcasts a face state change.
func (s *Server) SetState(state State) {
	s.mu.Lock()
	if s.state == state {
		s.mu.Unlock()
		return
	}
	s.state = state
	s.since = time.Now()
	update := stateUpdate{State: state, Since: s.since.Format(time.RFC3339)}
	s.mu.Unlock()

	s.hub.broadcastJSON(update)
}

// CurrentState returns what the face is showing now.
func (s *Server) CurrentState() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Pipeline cues map straight onto face states.

func (s *Server) Listening() { s.SetState(StateListening) }
func (s *Server) Speaking()  { s.SetState(StateSpeaking) }
func (s *Server) Idle()      { s.SetState(StateIdle) }
func (s *Server) Error()     { s.SetState(StateError) }

func (s *Server) handleIndex(c *fiber.Ctx) error {
	c.Set("Content-Type", "text/html; charset=utf-8")
	return c.SendString(facePage)
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	s.mu.RLock()
	state := s.state
	since := s.since
	s.mu.RUnlock()

	payload := fiber.Map{
		"state":   state,
		"since":   since.Format(time.RFC3339),
		"clients": s.hub.clientCount(),
	}
	if s.readiness != nil {
		ready, elapsed := s.readiness()
		payload["engines"] = ready.String()
		payload["engine_elapsed_ms"] = elapsed.Milliseconds()
	}
	return c.JSON(payload)
}

func (s *Server) handleStats(c *fiber.Ctx) error {
	if s.stats == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "stats not configured",
		})
	}
	return c.JSON(s.stats())
}

func (s *Server) handleStateWS(conn *websocket.Conn) {
	cl := newClient(s.hub, conn)

	// New clients get the current state immediately.
	s.mu.RLock()
	update := stateUpdate{State: s.state, Since: s.since.Format(time.RFC3339)}
	s.mu.RUnlock()
	conn.WriteJSON(update)

	cl.serve()
}

package face

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// hub fans state updates out to every connected browser. Clients that
// cannot keep up are dropped rather than allowed to stall the
// broadcaster.
type hub struct {
	logger *slog.Logger

	clients    map[*client]bool
	broadcast  chan []byte
	register   chan *client
	unregister chan *client
	done       chan struct{}

	mu sync.RWMutex
}

func newHub(logger *slog.Logger) *hub {
	return &hub{
		logger:     logger,
		clients:    make(map[*client]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
	}
}

// run is the hub's main loop. Call it in a goroutine.
func (h *hub) run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("Face client connected", "clients", count)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("Face client disconnected", "clients", count)

		case msg := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// Slow client: drop it instead of blocking the hub.
					close(c.send)
					delete(h.clients, c)
					h.logger.Warn("Dropped slow face client")
				}
			}
			h.mu.RUnlock()
		}
	}
}

func (h *hub) stop() {
	close(h.done)
}

// broadcastJSON encodes v and queues it for every client. A full queue
// drops the update; the browser will catch up on the next one.
func (h *hub) broadcastJSON(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		h.logger.Error("Failed to encode face update", "error", err)
		return
	}
	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn("Face broadcast queue full, dropping update")
	}
}

func (h *hub) clientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

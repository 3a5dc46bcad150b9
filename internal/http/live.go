package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"metronome-ingress-service/internal/observability/logging"
	"metronome-ingress-service/internal/observability/metrics"
)

const writeWait = 5 * time.Second

// LiveMessage is the envelope sent to WebSocket subscribers.
type LiveMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Hub fans published events out to WebSocket clients.
type Hub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan LiveMessage
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	done       chan struct{}
	mu         sync.RWMutex
	metrics    *metrics.Metrics
	log        zerolog.Logger
}

// NewHub creates a hub. Call Run to start it.
func NewHub(m *metrics.Metrics) *Hub {
	if m == nil {
		m = metrics.DefaultMetrics
	}
	return &Hub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan LiveMessage, 100),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		metrics:    m,
		log:        logging.WithComponent("live"),
	}
}

// Run serves registrations and broadcasts until ctx is done, then closes
// every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for conn := range h.clients {
				conn.Close()
				delete(h.clients, conn)
			}
			h.mu.Unlock()
			h.metrics.SetLiveClients(0)
			return

		case conn := <-h.register:
			h.mu.Lock()
			h.clients[conn] = true
			n := len(h.clients)
			h.mu.Unlock()
			h.metrics.SetLiveClients(n)
			h.log.Info().Int("clients", n).Msg("Live client connected")

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.metrics.SetLiveClients(n)
			h.log.Info().Int("clients", n).Msg("Live client disconnected")

		case msg := <-h.broadcast:
			h.mu.Lock()
			for conn := range h.clients {
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteJSON(msg); err != nil {
					h.log.Warn().Err(err).Msg("Live write failed")
					conn.Close()
					delete(h.clients, conn)
				}
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.metrics.SetLiveClients(n)
		}
	}
}

// Broadcast queues an event for every client. It never blocks; events are
// dropped when the hub is saturated.
func (h *Hub) Broadcast(eventType string, payload any) {
	select {
	case h.broadcast <- LiveMessage{Type: eventType, Data: payload}:
	default:
		h.log.Warn().Str("type", eventType).Msg("Live broadcast dropped")
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // read-only feed
	},
}

// ServeWS upgrades the request and registers the connection.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	select {
	case h.register <- conn:
	case <-r.Context().Done():
		conn.Close()
		return
	case <-h.done:
		conn.Close()
		return
	}

	// Reads only detect disconnects
	go func() {
		defer func() {
			select {
			case h.unregister <- conn:
			case <-h.done:
			}
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

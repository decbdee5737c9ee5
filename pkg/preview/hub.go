package preview

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/otherjamesbrown/speech-bubbles/pkg/logging"
	"github.com/otherjamesbrown/speech-bubbles/pkg/observability"
)

const writeWait = 5 * time.Second

// ReloadEvent tells browsers that a note changed. An empty Path reloads every page.
type ReloadEvent struct {
	Type string `json:"type"`
	Path string `json:"path,omitempty"`
}

// Hub manages live reload websocket connections.
type Hub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan ReloadEvent
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	done       chan struct{}
	mu         sync.RWMutex

	upgrader websocket.Upgrader
	metrics  *observability.RenderMetrics
	logger   logging.Logger
}

// NewHub creates a hub. Call Run to start delivering events.
func NewHub(metrics *observability.RenderMetrics, logger logging.Logger) *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan ReloadEvent, 100),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // local preview only
			},
		},
		metrics: metrics,
		logger:  logger,
	}
}

// Run delivers events until ctx is done, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for conn := range h.clients {
				conn.Close()
				delete(h.clients, conn)
			}
			h.mu.Unlock()
			h.setGauge()
			return

		case conn := <-h.register:
			h.mu.Lock()
			h.clients[conn] = true
			h.mu.Unlock()
			h.setGauge()
			h.logger.Debug("Live reload client connected", logging.F("clients", h.ClientCount()))

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
			h.mu.Unlock()
			h.setGauge()
			h.logger.Debug("Live reload client disconnected", logging.F("clients", h.ClientCount()))

		case event := <-h.broadcast:
			h.mu.Lock()
			for conn := range h.clients {
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteJSON(event); err != nil {
					h.logger.Warn("Live reload write failed", logging.Err(err))
					conn.Close()
					delete(h.clients, conn)
				}
			}
			h.mu.Unlock()
			h.setGauge()
		}
	}
}

// Broadcast queues a reload event. It drops the event when the queue is full.
func (h *Hub) Broadcast(event ReloadEvent) {
	if event.Type == "" {
		event.Type = "reload"
	}
	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn("Live reload queue full, dropping event", logging.F("path", event.Path))
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) setGauge() {
	if h.metrics != nil {
		h.metrics.LiveReloadClients.Set(float64(h.ClientCount()))
	}
}

// ServeWS upgrades the request and registers the connection.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", logging.Err(err))
		return
	}
	select {
	case h.register <- conn:
	case <-h.done:
		conn.Close()
		return
	}

	// Read until the client goes away.
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

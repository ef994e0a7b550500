package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"

	"zendesk-feedback-monitor/internal/metrics"
)

const (
	heartbeatInterval = 5 * time.Second
	writeTimeout      = 5 * time.Second
)

// WebSocketHub fans monitor events out to connected dashboard clients
type WebSocketHub struct {
	clients   map[*websocket.Conn]bool
	broadcast chan []byte
	mutex     sync.RWMutex
	logger    arbor.ILogger
}

// NewWebSocketHub creates a hub. Nothing is delivered until Serve runs.
func NewWebSocketHub(logger arbor.ILogger) *WebSocketHub {
	return &WebSocketHub{
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan []byte, 256),
		logger:    logger,
	}
}

func (h *WebSocketHub) String() string {
	return "websocket-hub"
}

// Serve manages client connections and broadcasts until ctx is cancelled
func (h *WebSocketHub) Serve(ctx context.Context) error {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	defer h.closeAll()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case message := <-h.broadcast:
			h.deliver(message)

		case <-ticker.C:
			h.SendStatus("online")
		}
	}
}

// ClientCount returns the number of connected clients
func (h *WebSocketHub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// SendStatus broadcasts the heartbeat status message
func (h *WebSocketHub) SendStatus(status string) {
	h.enqueue(map[string]interface{}{
		"type":      "status",
		"status":    status,
		"timestamp": time.Now().Unix(),
	})
}

// SendEvent broadcasts a monitor event. It never blocks the caller; events
// are dropped when the buffer is full.
func (h *WebSocketHub) SendEvent(eventType string, data interface{}) {
	h.enqueue(map[string]interface{}{
		"type":      eventType,
		"data":      data,
		"timestamp": time.Now().Unix(),
	})
}

func (h *WebSocketHub) enqueue(msg map[string]interface{}) {
	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.Warn().Err(err).Msg("Failed to encode WebSocket message")
		return
	}

	select {
	case h.broadcast <- payload:
	default:
		h.logger.Warn().Msg("WebSocket broadcast buffer full, dropping message")
	}
}

func (h *WebSocketHub) deliver(message []byte) {
	h.mutex.RLock()
	clients := make([]*websocket.Conn, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mutex.RUnlock()

	for _, client := range clients {
		client.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
			h.logger.Warn().Err(err).Msg("Failed to send WebSocket message")
			h.remove(client)
		}
	}
}

func (h *WebSocketHub) add(client *websocket.Conn) {
	h.mutex.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mutex.Unlock()
	metrics.WebSocketClients.Set(float64(count))
	h.logger.Debug().Int("clients", count).Msg("WebSocket client connected")
}

func (h *WebSocketHub) remove(client *websocket.Conn) {
	h.mutex.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		client.Close()
	}
	count := len(h.clients)
	h.mutex.Unlock()
	metrics.WebSocketClients.Set(float64(count))
}

func (h *WebSocketHub) closeAll() {
	h.mutex.Lock()
	for client := range h.clients {
		client.Close()
		delete(h.clients, client)
	}
	h.mutex.Unlock()
	metrics.WebSocketClients.Set(0)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler upgrades the request and registers the connection
func (h *WebSocketHub) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	h.add(conn)

	// Reads only detect disconnects; clients never send commands.
	go func() {
		defer func() {
			h.remove(conn)
			h.logger.Debug().Msg("WebSocket client disconnected")
		}()

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

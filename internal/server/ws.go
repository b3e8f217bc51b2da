package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// Hub fans dashboard updates out to connected websocket clients. Clients that
// fail a write are dropped; there is no per-client queue.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]bool
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*websocket.Conn]bool)}
}

func (h *Hub) add(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[conn] = true
	slog.Info("websocket client connected", "clients", len(h.clients))
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[conn] {
		delete(h.clients, conn)
		_ = conn.Close()
	}
	slog.Info("websocket client disconnected", "clients", len(h.clients))
}

// Broadcast sends a JSON event to every connected client.
func (h *Hub) Broadcast(event string, data any) {
	payload, err := json.Marshal(map[string]any{"type": event, "data": data})
	if err != nil {
		slog.Error("websocket marshal", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			slog.Warn("websocket write failed, dropping client", "error", err)
			delete(h.clients, conn)
			_ = conn.Close()
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

func (h *handler) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade", "error", err)
		return
	}

	h.hub.add(conn)

	// Drain incoming frames so pings and close frames are processed; drop
	// the client when the read loop ends.
	go func() {
		defer h.hub.remove(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

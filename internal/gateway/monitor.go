package gateway

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okovalenko/tgrelay/internal/logging"
)

// MonitorEvent is a message-processing notification pushed to monitor
// clients.
type MonitorEvent struct {
	Type           string    `json:"type"`
	ConversationID string    `json:"conversationId"`
	Version        int64     `json:"version"`
	Degraded       bool      `json:"degraded,omitempty"`
	Timestamp      time.Time `json:"ts"`
}

// MonitorHub broadcasts relay activity to connected WebSocket clients.
// Access requires the configured monitor token; with no token set the
// endpoint is disabled.
type MonitorHub struct {
	token    string
	log      *logging.Logger
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*websocket.Conn]bool
}

// NewMonitorHub creates a hub gated by the given token.
func NewMonitorHub(token string, log *logging.Logger) *MonitorHub {
	return &MonitorHub{
		token: token,
		log:   log.Sub("monitor"),
		conns: make(map[*websocket.Conn]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ClientCount returns the number of connected monitor clients.
func (h *MonitorHub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Publish sends an event to every connected client. Clients that fail
// to accept the write are dropped.
func (h *MonitorHub) Publish(event MonitorEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to marshal monitor event")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.log.Debug().Err(err).Msg("dropping slow monitor client")
			conn.Close()
			delete(h.conns, conn)
		}
	}
}

// CloseAll disconnects every monitor client.
func (h *MonitorHub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		conn.Close()
		delete(h.conns, conn)
	}
}

func (h *MonitorHub) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if h.token == "" {
		handleNotFound(w, r)
		return
	}
	token := r.URL.Query().Get("token")
	if subtle.ConstantTimeCompare([]byte(token), []byte(h.token)) != 1 {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("monitor upgrade failed")
		return
	}
	conn.SetReadLimit(4096)

	h.mu.Lock()
	h.conns[conn] = true
	h.mu.Unlock()
	h.log.Debug().Str("remote", r.RemoteAddr).Msg("monitor client connected")

	// Drain inbound frames so pings and close messages are handled;
	// monitor clients are listen-only.
	go func() {
		defer func() {
			h.mu.Lock()
			delete(h.conns, conn)
			h.mu.Unlock()
			conn.Close()
			h.log.Debug().Msg("monitor client disconnected")
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

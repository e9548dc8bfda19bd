package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/flemzord/aether/internal/chat"
)

const (
	clientBuffer = 16
	writeTimeout = 5 * time.Second
)

// Hub fans chat events out to connected pages over websockets. A slow
// client misses events instead of blocking the sender.
type Hub struct {
	logger *slog.Logger

	mu      sync.Mutex
	clients map[*wsClient]struct{}
	closed  bool
	onCount func(int)
}

type wsClient struct {
	send chan []byte
	done chan struct{}
}

var _ chat.Notifier = (*Hub)(nil)

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger:  logger,
		clients: make(map[*wsClient]struct{}),
	}
}

// observeCount registers fn to be called with the client count on change.
func (h *Hub) observeCount(fn func(int)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onCount = fn
	fn(len(h.clients))
}

// Notify implements chat.Notifier.
func (h *Hub) Notify(e chat.Event) {
	data, err := json.Marshal(e)
	if err != nil {
		h.logger.Error("encoding event", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.logger.Debug("websocket client lagging, event dropped", "type", e.Type)
		}
	}
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		close(c.done)
		delete(h.clients, c)
	}
	h.countChanged()
}

func (h *Hub) add(c *wsClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	h.countChanged()
	return true
}

func (h *Hub) remove(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.done)
		h.countChanged()
	}
}

// countChanged is called with h.mu held.
func (h *Hub) countChanged() {
	if h.onCount != nil {
		h.onCount(len(h.clients))
	}
}

// ServeHTTP upgrades the request and streams events until either side
// goes away. Incoming messages are ignored.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket accept failed", "error", err)
		return
	}
	defer func() { _ = conn.CloseNow() }()

	c := &wsClient{
		send: make(chan []byte, clientBuffer),
		done: make(chan struct{}),
	}
	if !h.add(c) {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	defer h.remove(c)

	ctx := conn.CloseRead(r.Context())
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
			return
		case data := <-c.send:
			if err := write(ctx, conn, data); err != nil {
				h.logger.Debug("websocket write failed", "error", err)
				return
			}
		}
	}
}

func write(ctx context.Context, conn *websocket.Conn, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}

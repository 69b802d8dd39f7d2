package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"monitoring-service/internal/logging"
	"monitoring-service/internal/models"
)

const (
	maxStreamClients = 32
	sendBufferSize   = 16
	writeTimeout     = 5 * time.Second
)

// client pairs a connection with its bounded outbound queue. All writes
// happen on the client's own pump goroutine, never under the hub lock.
type client struct {
	conn *websocket.Conn
	send chan models.TransitionEvent
}

// Hub pushes transition events to connected websocket clients. A slow
// or broken client is dropped, never waited on.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *logging.Logger

	mu      sync.Mutex
	clients map[*client]bool
}

func NewHub(logger *logging.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger:  logger,
		clients: make(map[*client]bool),
	}
}

// Serve upgrades the request, registers the connection, and starts its
// write pump.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Errorf("websocket upgrade failed: %v", err)
		return
	}

	c := &client{conn: conn, send: make(chan models.TransitionEvent, sendBufferSize)}
	h.mu.Lock()
	if len(h.clients) >= maxStreamClients {
		h.mu.Unlock()
		h.logger.Warnf("max websocket clients reached, rejecting connection")
		conn.Close()
		return
	}
	h.clients[c] = true
	total := len(h.clients)
	h.mu.Unlock()
	h.logger.Infof("websocket client connected (total: %d)", total)

	go h.writePump(c)
}

// writePump drains the client's queue onto the wire. Every write carries
// a deadline so a peer that stops reading cannot park the pump forever.
func (h *Hub) writePump(c *client) {
	defer c.conn.Close()
	for ev := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteJSON(ev); err != nil {
			h.logger.Errorf("websocket write failed, dropping client: %v", err)
			h.drop(c)
			return
		}
	}
}

// Broadcast queues a transition event for every connected client. A
// client whose queue is already full is dropped on the spot; Broadcast
// itself never blocks on a connection.
func (h *Hub) Broadcast(ev models.TransitionEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- ev:
		default:
			h.logger.Warnf("websocket client not keeping up, dropping")
			h.dropLocked(c)
		}
	}
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(c)
}

// dropLocked unregisters the client and closes its queue, which ends the
// write pump. Safe to call twice; only the first call closes the channel.
func (h *Hub) dropLocked(c *client) {
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// Close disconnects all clients.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.dropLocked(c)
	}
}

// server/internal/socket/hub.go
// Package socket keeps track of websocket clients of the live point feed.
package socket

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const writeWait = 10 * time.Second

var ErrClientNotFound = eris.New("socket: client not found")

// Gauge is fed the number of connected clients. prometheus.Gauge satisfies it.
type Gauge interface {
	Set(float64)
}

type client struct {
	conn *websocket.Conn
	// gorilla connections support one concurrent writer
	writeMu sync.Mutex
}

func (c *client) write(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, data)
}

// Hub holds every connected websocket client, keyed by a generated id.
type Hub struct {
	clients map[string]*client
	mu      sync.RWMutex
	gauge   Gauge
}

func NewHub(gauge Gauge) *Hub {
	return &Hub{clients: make(map[string]*client), gauge: gauge}
}

// Register adds conn and returns the id it is known by.
func (h *Hub) Register(conn *websocket.Conn) string {
	id := uuid.NewString()
	h.mu.Lock()
	h.clients[id] = &client{conn: conn}
	n := len(h.clients)
	h.mu.Unlock()
	h.report(n)
	zap.L().Debug("socket: client registered", zap.String("client", id), zap.Int("clients", n))
	return id
}

// Unregister removes the client. The connection itself is closed by its handler.
func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	_, ok := h.clients[id]
	delete(h.clients, id)
	n := len(h.clients)
	h.mu.Unlock()
	if ok {
		h.report(n)
		zap.L().Debug("socket: client unregistered", zap.String("client", id), zap.Int("clients", n))
	}
}

// Send writes one text message to a client. Writes to the same client are serialized.
func (h *Hub) Send(id string, message []byte) error {
	h.mu.RLock()
	c, ok := h.clients[id]
	h.mu.RUnlock()
	if !ok {
		return ErrClientNotFound
	}
	return eris.Wrap(c.write(websocket.TextMessage, message), "socket: send")
}

// Broadcast sends message to every client and returns how many writes failed.
func (h *Hub) Broadcast(message []byte) int {
	h.mu.RLock()
	targets := make(map[string]*client, len(h.clients))
	for id, c := range h.clients {
		targets[id] = c
	}
	h.mu.RUnlock()

	failed := 0
	for id, c := range targets {
		if err := c.write(websocket.TextMessage, message); err != nil {
			failed++
			zap.L().Debug("socket: broadcast write failed", zap.String("client", id), zap.Error(err))
		}
	}
	return failed
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// CloseAll sends a close frame to every client and drops them. Used on shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[string]*client)
	h.mu.Unlock()

	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	for _, c := range clients {
		_ = c.write(websocket.CloseMessage, msg)
		_ = c.conn.Close()
	}
	h.report(0)
	if len(clients) > 0 {
		zap.L().Info("socket: closed all clients", zap.Int("clients", len(clients)))
	}
}

func (h *Hub) report(n int) {
	if h.gauge != nil {
		h.gauge.Set(float64(n))
	}
}

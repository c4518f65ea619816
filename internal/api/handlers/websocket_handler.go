// server/internal/api/handlers/websocket_handler.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"spotmytrash-api-server/internal/garbage"
	"spotmytrash-api-server/internal/socket"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Longest silence accepted from a client before the connection is dropped.
const pongWait = 60 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// feedMessage is what a websocket client receives: a full snapshot or the
// error that ended its subscription.
type feedMessage struct {
	Type  string `json:"type"`
	Error string `json:"error,omitempty"`
	garbage.Update
}

type WebSocketHandler struct {
	Hub    *socket.Hub
	Points *GarbagePointHandler
}

// ServeWs streams the live point set. Each connection owns one subscription,
// released when the connection ends.
func (h *WebSocketHandler) ServeWs(c *gin.Context) {
	repo, err := h.Points.Repository(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		zap.L().Warn("ws: upgrade failed", zap.Error(err))
		return
	}
	id := h.Hub.Register(conn)
	defer func() {
		h.Hub.Unregister(id)
		conn.Close()
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates, release, err := repo.Subscribe(ctx)
	if err != nil {
		h.send(id, feedMessage{Type: "error", Error: err.Error()})
		return
	}
	defer release()

	// The read loop only notices the client leaving; clients send nothing else.
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(time.Second))
	})
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					zap.L().Debug("ws: unexpected close", zap.String("client", id), zap.Error(err))
				}
				return
			}
			conn.SetReadDeadline(time.Now().Add(pongWait))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			msg := feedMessage{Type: "snapshot", Update: u}
			if u.Err != nil {
				msg = feedMessage{Type: "error", Error: u.Err.Error(), Update: garbage.Update{At: u.At}}
			}
			if !h.send(id, msg) || u.Err != nil {
				return
			}
		}
	}
}

func (h *WebSocketHandler) send(id string, msg feedMessage) bool {
	data, err := json.Marshal(msg)
	if err != nil {
		zap.L().Error("ws: encode message", zap.Error(err))
		return false
	}
	if err := h.Hub.Send(id, data); err != nil {
		zap.L().Debug("ws: send failed", zap.String("client", id), zap.Error(err))
		return false
	}
	return true
}

package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/threatlens/console-backend/internal/notify"
)

// WebSocket message types for the event feed
const (
	MsgTypePing = "ping"
	MsgTypePong = "pong"
)

type controlMessage struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

// WebSocketHandler serves the console's live event feed. Connected clients
// receive notification, progress, and state events broadcast by the hub.
type WebSocketHandler struct {
	hub      *notify.Hub
	upgrader websocket.Upgrader
}

// NewWebSocketHandler creates a new event feed handler
func NewWebSocketHandler(hub *notify.Hub) *WebSocketHandler {
	return &WebSocketHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Allow connections from dev server
				return true
			},
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
		},
	}
}

// HandleEventFeed upgrades the connection and keeps it registered with the
// hub until the client disconnects
func (wsh *WebSocketHandler) HandleEventFeed(c echo.Context) error {
	ws, err := wsh.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	wsh.hub.Register(ws)
	defer wsh.hub.Unregister(ws)

	// The feed is one-way; the read loop only services keepalive pings and
	// detects the close.
	for {
		var msg controlMessage
		if err := ws.ReadJSON(&msg); err != nil {
			return nil
		}
		if msg.Type == MsgTypePing {
			wsh.hub.SendControl(ws, &controlMessage{
				Type:      MsgTypePong,
				Timestamp: time.Now().UnixMilli(),
			})
		}
	}
}

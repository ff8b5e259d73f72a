package notify

import (
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/threatlens/console-backend/internal/logging"
	"github.com/threatlens/console-backend/internal/models"
)

// progressLimit caps progress broadcasts per session. Notifications and
// state changes always pass.
const progressLimit = rate.Limit(20)

// Hub holds console WebSocket connections and broadcasts session events to
// all of them. Each connection carries its own write lock; gorilla permits
// only one concurrent writer per connection.
type Hub struct {
	mu       sync.RWMutex
	conns    map[*websocket.Conn]*sync.Mutex
	limiters map[string]*rate.Limiter
	logger   *log.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *log.Logger) *Hub {
	if logger == nil {
		logger = logging.Default
	}
	return &Hub{
		conns:    make(map[*websocket.Conn]*sync.Mutex),
		limiters: make(map[string]*rate.Limiter),
		logger:   logger,
	}
}

// Register adds a console connection to the hub.
func (h *Hub) Register(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[conn] = &sync.Mutex{}
}

// Unregister removes a console connection from the hub.
func (h *Hub) Unregister(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, conn)
}

// ConnCount returns the number of connected consoles.
func (h *Hub) ConnCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Notify implements Sink by broadcasting a notification event.
func (h *Hub) Notify(message, key string) {
	h.Broadcast(&models.Event{
		Type:      models.EventTypeNotification,
		Key:       key,
		Message:   message,
		Timestamp: time.Now().UnixMilli(),
	})
}

// Broadcast sends the event as JSON to every registered connection.
// Progress events are throttled per session; dropping some is fine since
// each carries the cumulative percentage.
func (h *Hub) Broadcast(event *models.Event) {
	if event == nil {
		return
	}
	if event.Type == models.EventTypeProgress && !h.allowProgress(event.SessionID) {
		return
	}

	payload, err := sonic.Marshal(event)
	if err != nil {
		h.logger.Error("failed to marshal event", "err", err)
		return
	}

	h.mu.RLock()
	conns := make(map[*websocket.Conn]*sync.Mutex, len(h.conns))
	for c, wl := range h.conns {
		conns[c] = wl
	}
	h.mu.RUnlock()

	for conn, wl := range conns {
		wl.Lock()
		err := conn.WriteMessage(websocket.TextMessage, payload)
		wl.Unlock()
		if err != nil {
			h.logger.Debug("dropping console connection", "err", err)
			h.Unregister(conn)
			_ = conn.Close()
		}
	}
}

// SendControl writes a control payload to a single connection, serialized
// against broadcasts.
func (h *Hub) SendControl(conn *websocket.Conn, v interface{}) error {
	h.mu.RLock()
	wl, ok := h.conns[conn]
	h.mu.RUnlock()
	if !ok {
		return websocket.ErrCloseSent
	}

	payload, err := sonic.Marshal(v)
	if err != nil {
		return err
	}

	wl.Lock()
	defer wl.Unlock()
	return conn.WriteMessage(websocket.TextMessage, payload)
}

func (h *Hub) allowProgress(sessionID string) bool {
	h.mu.Lock()
	limiter, ok := h.limiters[sessionID]
	if !ok {
		limiter = rate.NewLimiter(progressLimit, 1)
		h.limiters[sessionID] = limiter
	}
	h.mu.Unlock()
	return limiter.Allow()
}

// DropSession discards the progress limiter for a finished session.
func (h *Hub) DropSession(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.limiters, sessionID)
}

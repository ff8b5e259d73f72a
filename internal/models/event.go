package models

// Event types broadcast to connected consoles.
const (
	EventTypeNotification = "notification"
	EventTypeProgress     = "progress"
	EventTypeState        = "state"
)

// Event is a single message pushed over the console event feed.
type Event struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	Key       string `json:"key,omitempty"`
	Message   string `json:"message,omitempty"`
	Status    string `json:"status,omitempty"`
	Progress  int    `json:"progress"`
	Timestamp int64  `json:"timestamp"`
}

package models

import "time"

// FileInfo represents metadata about a file spooled to local storage.
type FileInfo struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	ContentType string    `json:"contentType,omitempty"`
	Size        int64     `json:"size"`
	ReceivedAt  time.Time `json:"receivedAt"`
}

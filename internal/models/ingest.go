package models

// IngestStatus represents the status of a file tracked by an upload session.
type IngestStatus string

const (
	IngestStatusReady     IngestStatus = "ready"
	IngestStatusUploading IngestStatus = "uploading"
	IngestStatusDone      IngestStatus = "done"
	IngestStatusFailure   IngestStatus = "failure"
)

// FileForIngest is the single file tracked by an upload session, from intake
// until it is cleared. Status is mutated in place; identity never changes
// within one session, which is what stale-callback checks key on.
type FileForIngest struct {
	ID          string       `json:"id" msgpack:"id"`
	Name        string       `json:"name" msgpack:"name"`
	ContentType string       `json:"contentType,omitempty" msgpack:"contentType,omitempty"`
	Size        int64        `json:"size" msgpack:"size"`
	Status      IngestStatus `json:"status" msgpack:"status"`
}

// SessionSnapshot is the externally visible state of an upload session.
type SessionSnapshot struct {
	SessionID string         `json:"sessionId" msgpack:"sessionId"`
	HasFile   bool           `json:"hasFile" msgpack:"hasFile"`
	File      *FileForIngest `json:"file,omitempty" msgpack:"file,omitempty"`
	Progress  int            `json:"progress" msgpack:"progress"`
}

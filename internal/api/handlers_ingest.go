// handlers_ingest.go - Upload session operation handlers
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/threatlens/console-backend/internal/ingest"
	"github.com/threatlens/console-backend/internal/models"
	"github.com/threatlens/console-backend/internal/notify"
	"github.com/threatlens/console-backend/internal/session"
	"github.com/threatlens/console-backend/internal/storage"
	"github.com/threatlens/console-backend/internal/transport"
)

// sniffLen is how many leading bytes are read for MIME detection when the
// browser declared no content type.
const sniffLen = 3072

// IngestHandlerImpl implements the IngestHandler interface
type IngestHandlerImpl struct {
	store    storage.Store
	registry *session.Registry
	hub      *notify.Hub
}

// NewIngestHandler creates a new ingest handler instance
func NewIngestHandler(store storage.Store, registry *session.Registry, hub *notify.Hub) IngestHandler {
	return &IngestHandlerImpl{
		store:    store,
		registry: registry,
		hub:      hub,
	}
}

// HandleCreateSession creates a new upload session
func (h *IngestHandlerImpl) HandleCreateSession(c echo.Context) error {
	ctrl := h.registry.Create()

	if h.hub != nil {
		ctrl.OnChange(h.broadcastSnapshot)
	}

	return c.JSON(http.StatusCreated, ctrl.Snapshot())
}

// HandleIntake receives a drop as multipart form data. Zero parts leave the
// session untouched; one part becomes the tracked file; more than one is
// rejected and emits a notification.
func (h *IngestHandlerImpl) HandleIntake(c echo.Context) error {
	ctrl, err := h.resolve(c)
	if err != nil {
		return err
	}

	form, err := c.MultipartForm()
	if err != nil {
		return NewBadRequestError("invalid multipart form", err)
	}
	parts := form.File["files"]

	if len(parts) == 0 {
		ctrl.Intake(nil)
		return c.JSON(http.StatusOK, ctrl.Snapshot())
	}

	if len(parts) > 1 {
		// The controller owns rejection and the notification; nothing is
		// spooled for a multi-file drop.
		dropped := make([]*models.FileForIngest, 0, len(parts))
		for _, p := range parts {
			dropped = append(dropped, &models.FileForIngest{Name: p.Filename, Size: p.Size})
		}
		ctrl.Intake(dropped)
		return NewBadRequestError(ingest.MultipleFilesMessage, nil)
	}

	part := parts[0]
	src, err := part.Open()
	if err != nil {
		return NewInternalError("failed to open uploaded file", err)
	}
	defer src.Close()

	contentType := part.Header.Get(echo.HeaderContentType)
	info, err := h.store.Save(part.Filename, contentType, src)
	if err != nil {
		return NewInternalError("failed to spool file", err)
	}

	if info.ContentType == "" {
		info.ContentType = h.sniffContentType(info.ID)
	}

	prior := ctrl.Snapshot()
	ctrl.Intake([]*models.FileForIngest{{
		ID:          info.ID,
		Name:        info.Name,
		ContentType: info.ContentType,
		Size:        info.Size,
	}})

	// A replaced file's spool entry is dead; the controller only tracks the
	// newest one.
	if prior.HasFile && prior.File.ID != "" && prior.File.ID != info.ID {
		_ = h.store.Delete(prior.File.ID)
	}

	return c.JSON(http.StatusCreated, ctrl.Snapshot())
}

// HandleUpload starts the transfer of the staged file
func (h *IngestHandlerImpl) HandleUpload(c echo.Context) error {
	ctrl, err := h.resolve(c)
	if err != nil {
		return err
	}

	snap := ctrl.Snapshot()
	if !snap.HasFile {
		return NewConflictError("no file staged for upload")
	}
	if snap.File.Status == models.IngestStatusUploading {
		return NewConflictError("a transfer is already in flight")
	}

	// The transfer outlives this request; it must not inherit its context.
	ctrl.Upload(context.Background())

	return c.JSON(http.StatusAccepted, ctrl.Snapshot())
}

// HandleRetry restarts the transfer after a failure
func (h *IngestHandlerImpl) HandleRetry(c echo.Context) error {
	ctrl, err := h.resolve(c)
	if err != nil {
		return err
	}

	snap := ctrl.Snapshot()
	if !snap.HasFile || snap.File.Status != models.IngestStatusFailure {
		return NewConflictError("retry is only available after a failed upload")
	}

	ctrl.Retry(context.Background())

	return c.JSON(http.StatusAccepted, ctrl.Snapshot())
}

// HandleReset clears the session unconditionally
func (h *IngestHandlerImpl) HandleReset(c echo.Context) error {
	ctrl, err := h.resolve(c)
	if err != nil {
		return err
	}

	snap := ctrl.Snapshot()
	ctrl.Reset()

	// Best-effort spool cleanup; the session is already cleared.
	if snap.HasFile && snap.File.ID != "" {
		_ = h.store.Delete(snap.File.ID)
	}
	if h.hub != nil {
		h.hub.DropSession(ctrl.SessionID())
	}

	return c.NoContent(http.StatusNoContent)
}

// HandleGetSession returns the session snapshot as JSON
func (h *IngestHandlerImpl) HandleGetSession(c echo.Context) error {
	ctrl, err := h.resolve(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ctrl.Snapshot())
}

// HandleGetSessionMsgpack returns the session snapshot msgpack-encoded for
// the console's binary polling path
func (h *IngestHandlerImpl) HandleGetSessionMsgpack(c echo.Context) error {
	ctrl, err := h.resolve(c)
	if err != nil {
		return err
	}

	data, err := msgpack.Marshal(ctrl.Snapshot())
	if err != nil {
		return NewInternalError("failed to encode snapshot", err)
	}
	return c.Blob(http.StatusOK, "application/x-msgpack", data)
}

// HandleProgressStream streams session snapshots via SSE until the transfer
// settles or the client disconnects
func (h *IngestHandlerImpl) HandleProgressStream(c echo.Context) error {
	ctrl, err := h.resolve(c)
	if err != nil {
		return err
	}

	c.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().WriteHeader(http.StatusOK)

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	var last models.SessionSnapshot
	first := true
	for {
		select {
		case <-c.Request().Context().Done():
			return nil
		case <-ticker.C:
			snap := ctrl.Snapshot()
			if !first && snapshotEqual(snap, last) {
				continue
			}
			first = false
			last = snap

			if err := writeSSE(c.Response(), snap); err != nil {
				return nil
			}

			if snap.HasFile && (snap.File.Status == models.IngestStatusDone ||
				snap.File.Status == models.IngestStatusFailure) {
				return nil
			}
		}
	}
}

func (h *IngestHandlerImpl) resolve(c echo.Context) (*ingest.Controller, error) {
	id := c.Param("id")
	if id == "" {
		return nil, NewValidationError("id")
	}
	ctrl, ok := h.registry.Get(id)
	if !ok {
		return nil, NewNotFoundError("session", id)
	}
	return ctrl, nil
}

func (h *IngestHandlerImpl) sniffContentType(fileID string) string {
	rc, err := h.store.Open(fileID)
	if err != nil {
		return transport.FallbackContentType
	}
	defer rc.Close()

	head := make([]byte, sniffLen)
	n, _ := io.ReadFull(rc, head)
	return transport.DetectContentType("", head[:n])
}

func (h *IngestHandlerImpl) broadcastSnapshot(snap models.SessionSnapshot) {
	event := &models.Event{
		Type:      models.EventTypeState,
		SessionID: snap.SessionID,
		Progress:  snap.Progress,
		Timestamp: time.Now().UnixMilli(),
	}
	if snap.HasFile {
		event.Status = string(snap.File.Status)
		if snap.File.Status == models.IngestStatusUploading {
			event.Type = models.EventTypeProgress
		}
	}
	h.hub.Broadcast(event)
}

func snapshotEqual(a, b models.SessionSnapshot) bool {
	if a.HasFile != b.HasFile || a.Progress != b.Progress {
		return false
	}
	if !a.HasFile {
		return true
	}
	return a.File.Status == b.File.Status && a.File.ID == b.File.ID
}

func writeSSE(w http.ResponseWriter, snap models.SessionSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}

// Package ingest owns the lifecycle of a single file selected for upload:
// intake, validation, progress-tracked transfer, completion, retry, reset.
package ingest

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/threatlens/console-backend/internal/logging"
	"github.com/threatlens/console-backend/internal/models"
	"github.com/threatlens/console-backend/internal/notify"
	"github.com/threatlens/console-backend/internal/transport"
)

// MultipleFilesMessage is the notification emitted when a drop contains more
// than one file.
const MultipleFilesMessage = "Only one file can be uploaded at a time"

// PayloadOpener provides the spooled payload bytes for a tracked file.
type PayloadOpener interface {
	Open(id string) (io.ReadCloser, error)
}

// Listener receives a snapshot whenever controller state changes.
type Listener func(models.SessionSnapshot)

// Controller tracks at most one file through the upload lifecycle. All state
// is guarded by a single mutex; callbacks arriving after a Reset are gated by
// an identity check against the currently tracked file, so a late transfer
// cannot resurrect a cleared session.
type Controller struct {
	sessionID string
	transport transport.Ingest
	sink      notify.Sink
	opener    PayloadOpener
	logger    *log.Logger

	mu        sync.Mutex
	current   *models.FileForIngest
	progress  int
	inflight  chan struct{}
	listeners []Listener
}

// New creates a controller for one console session.
func New(sessionID string, t transport.Ingest, sink notify.Sink, opener PayloadOpener, logger *log.Logger) *Controller {
	if logger == nil {
		logger = logging.Default
	}
	return &Controller{
		sessionID: sessionID,
		transport: t,
		sink:      sink,
		opener:    opener,
		logger:    logger,
	}
}

// SessionID returns the session this controller belongs to.
func (c *Controller) SessionID() string { return c.sessionID }

// OnChange registers a listener for state snapshots.
func (c *Controller) OnChange(fn Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Intake accepts the result of a drop event. An empty drop changes nothing.
// A single file becomes the tracked file in ready status with progress reset
// to zero. A multi-file drop is rejected: state is untouched and one
// notification is emitted. The return value reports whether a file was
// accepted.
func (c *Controller) Intake(dropped []*models.FileForIngest) bool {
	if len(dropped) == 0 {
		return false
	}
	if len(dropped) > 1 {
		c.logger.Warn("rejected multi-file drop", "session", c.sessionID, "count", len(dropped))
		c.sink.Notify(MultipleFilesMessage, notify.KeyMultipleFiles)
		return false
	}

	f := dropped[0]
	f.Status = models.IngestStatusReady

	c.mu.Lock()
	c.current = f
	c.progress = 0
	c.inflight = nil
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.logger.Info("file ready for ingest", "session", c.sessionID, "file", f.Name, "size", f.Size)
	c.publish(snap)
	return true
}

// Upload starts the asynchronous transfer of the tracked file and returns a
// channel that closes when the attempt finishes. Absent file: the returned
// channel is already closed and nothing happens. A call made while a
// transfer is in flight does not start a second one; it returns the handle
// of the running attempt.
//
// The transfer's outcome is surfaced only through state and notifications;
// Upload never exposes the transfer error to its caller.
func (c *Controller) Upload(ctx context.Context) <-chan struct{} {
	c.mu.Lock()
	if c.current == nil {
		c.mu.Unlock()
		return closedDone
	}
	if c.current.Status == models.IngestStatusUploading && c.inflight != nil {
		done := c.inflight
		c.mu.Unlock()
		return done
	}

	f := c.current
	c.progress = 0
	f.Status = models.IngestStatusUploading
	done := make(chan struct{})
	c.inflight = done
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.logger.Info("starting upload", "session", c.sessionID, "file", f.Name)
	c.publish(snap)

	go c.run(ctx, f, done)
	return done
}

// Retry restarts the transfer after a failure. It is the same code path as
// Upload; callers gate it on failure status.
func (c *Controller) Retry(ctx context.Context) <-chan struct{} {
	return c.Upload(ctx)
}

// Reset clears the tracked file and progress unconditionally. An in-flight
// transfer is not cancelled; its callbacks fail the identity check and are
// discarded.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.current = nil
	c.progress = 0
	c.inflight = nil
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.publish(snap)
}

// Snapshot returns the current session state.
func (c *Controller) Snapshot() models.SessionSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) run(ctx context.Context, f *models.FileForIngest, done chan struct{}) {
	defer close(done)

	if err := c.send(ctx, f); err != nil {
		c.finishFailure(f, err)
		return
	}
	c.finishSuccess(f)
}

func (c *Controller) send(ctx context.Context, f *models.FileForIngest) error {
	body, err := c.opener.Open(f.ID)
	if err != nil {
		return err
	}
	defer body.Close()

	contentType := f.ContentType
	if contentType == "" {
		contentType = transport.FallbackContentType
	}

	return c.transport.Send(ctx, &transport.SendRequest{
		Body:        body,
		Size:        f.Size,
		Name:        f.Name,
		ContentType: contentType,
		OnProgress: func(sent, total int64) {
			c.applyProgress(f, sent, total)
		},
	})
}

func (c *Controller) applyProgress(f *models.FileForIngest, sent, total int64) {
	c.mu.Lock()
	if c.current != f {
		c.mu.Unlock()
		return
	}
	p := Percent(sent, total)
	if p == c.progress {
		c.mu.Unlock()
		return
	}
	c.progress = p
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.publish(snap)
}

func (c *Controller) finishSuccess(f *models.FileForIngest) {
	c.mu.Lock()
	if c.current != f {
		c.mu.Unlock()
		return
	}
	f.Status = models.IngestStatusDone
	c.inflight = nil
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.logger.Info("upload complete", "session", c.sessionID, "file", f.Name)
	c.publish(snap)
}

func (c *Controller) finishFailure(f *models.FileForIngest, err error) {
	c.mu.Lock()
	if c.current != f {
		c.mu.Unlock()
		return
	}
	f.Status = models.IngestStatusFailure
	c.progress = 0
	c.inflight = nil
	snap := c.snapshotLocked()
	c.mu.Unlock()

	message := FailureMessage(err)
	c.logger.Error("upload failed", "session", c.sessionID, "file", f.Name, "err", err)
	c.publish(snap)
	c.sink.Notify(message, notify.KeyUploadFailed)
}

func (c *Controller) snapshotLocked() models.SessionSnapshot {
	// Copy the file so snapshots stay stable after the lock is released.
	var file *models.FileForIngest
	if c.current != nil {
		cp := *c.current
		file = &cp
	}
	return models.SessionSnapshot{
		SessionID: c.sessionID,
		HasFile:   file != nil,
		File:      file,
		Progress:  c.progress,
	}
}

func (c *Controller) publish(snap models.SessionSnapshot) {
	c.mu.Lock()
	listeners := make([]Listener, len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
}

// Percent converts cumulative bytes into an integer percentage, rounded
// down. A zero or unknown total reports zero.
func Percent(sent, total int64) int {
	if total <= 0 || sent <= 0 {
		return 0
	}
	return int(sent * 100 / total)
}

// FailureMessage derives the user-facing message for a failed transfer: the
// first server-provided message when the failure is structured, else a
// generic string carrying the transport error text, else "Unknown error".
func FailureMessage(err error) string {
	var terr *transport.TransferError
	if errors.As(err, &terr) {
		if m := terr.FirstMessage(); m != "" {
			return m
		}
	}
	if err != nil {
		return "Upload failed: " + err.Error()
	}
	return "Unknown error"
}

var closedDone = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

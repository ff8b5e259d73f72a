// Package notify delivers session notifications to connected consoles.
package notify

import (
	"github.com/charmbracelet/log"

	"github.com/threatlens/console-backend/internal/logging"
)

// Sink receives user-facing notifications. Calls are fire-and-forget; the
// sender never inspects delivery results.
type Sink interface {
	Notify(message, key string)
}

// Notification keys emitted by the upload session controller.
const (
	KeyMultipleFiles = "ingest-multiple-files"
	KeyUploadFailed  = "ingest-upload-failed"
)

// LogSink writes notifications to the application log. Used for headless
// runs and as the fallback when no console is connected.
type LogSink struct {
	logger *log.Logger
}

// NewLogSink creates a log-backed sink.
func NewLogSink(logger *log.Logger) *LogSink {
	if logger == nil {
		logger = logging.Default
	}
	return &LogSink{logger: logger}
}

// Notify implements Sink.
func (s *LogSink) Notify(message, key string) {
	s.logger.Warn("notification", "key", key, "message", message)
}

type multiSink []Sink

// Tee fans a notification out to several sinks.
func Tee(sinks ...Sink) Sink {
	return multiSink(sinks)
}

// Notify implements Sink.
func (m multiSink) Notify(message, key string) {
	for _, s := range m {
		s.Notify(message, key)
	}
}

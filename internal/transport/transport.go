// Package transport implements the ingest collaborators that receive
// uploaded payloads: a remote HTTP ingest API and an S3 bucket.
package transport

import (
	"context"
	"fmt"
	"io"

	"github.com/gabriel-vasile/mimetype"
)

// FallbackContentType is used when a dropped file declares no MIME type and
// detection fails.
const FallbackContentType = "application/octet-stream"

// ProgressFunc receives cumulative transfer progress. total is the payload
// length in bytes; sent is how many have been transferred so far.
type ProgressFunc func(sent, total int64)

// Ingest transfers a payload to the remote ingest collaborator. Structured
// server failures are returned as *TransferError; anything else is opaque.
type Ingest interface {
	Send(ctx context.Context, req *SendRequest) error
}

// SendRequest describes one transfer.
type SendRequest struct {
	Body        io.Reader
	Size        int64
	Name        string
	ContentType string
	OnProgress  ProgressFunc
}

// ErrorDetail is a single entry in a structured ingest error response.
type ErrorDetail struct {
	Message string `json:"message"`
}

// TransferError is a structured failure reported by the ingest collaborator.
type TransferError struct {
	StatusCode int           `json:"-"`
	Errors     []ErrorDetail `json:"errors"`
}

// Error implements the error interface.
func (e *TransferError) Error() string {
	if m := e.FirstMessage(); m != "" {
		return fmt.Sprintf("ingest rejected upload: %s", m)
	}
	return fmt.Sprintf("ingest rejected upload (status %d)", e.StatusCode)
}

// FirstMessage returns the first server-provided message, or "".
func (e *TransferError) FirstMessage() string {
	if len(e.Errors) == 0 {
		return ""
	}
	return e.Errors[0].Message
}

// DetectContentType returns the declared type when present, sniffs the first
// bytes of data otherwise, and falls back to application/octet-stream.
func DetectContentType(declared string, data []byte) string {
	if declared != "" {
		return declared
	}
	if len(data) > 0 {
		if mt := mimetype.Detect(data); mt != nil {
			return mt.String()
		}
	}
	return FallbackContentType
}

// progressReader counts bytes as they are consumed and reports cumulative
// progress through fn.
type progressReader struct {
	r     io.Reader
	total int64
	sent  int64
	fn    ProgressFunc
}

func newProgressReader(r io.Reader, total int64, fn ProgressFunc) *progressReader {
	return &progressReader{r: r, total: total, fn: fn}
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	if n > 0 {
		p.sent += int64(n)
		if p.fn != nil {
			p.fn(p.sent, p.total)
		}
	}
	return n, err
}

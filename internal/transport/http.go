package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPIngest sends payloads to a remote ingest API as a raw PUT with the
// payload bytes in the request body.
type HTTPIngest struct {
	endpoint string
	token    string
	client   *http.Client
}

// NewHTTPIngest creates an ingest transport targeting the given endpoint.
// token, when non-empty, is sent as a bearer token.
func NewHTTPIngest(endpoint, token string, timeout time.Duration) *HTTPIngest {
	return &HTTPIngest{
		endpoint: endpoint,
		token:    token,
		client:   &http.Client{Timeout: timeout},
	}
}

// Send implements Ingest.
func (t *HTTPIngest) Send(ctx context.Context, req *SendRequest) error {
	body := newProgressReader(req.Body, req.Size, req.OnProgress)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPut, t.endpoint, body)
	if err != nil {
		return fmt.Errorf("building ingest request: %w", err)
	}
	httpReq.ContentLength = req.Size
	httpReq.Header.Set("Content-Type", req.ContentType)
	httpReq.Header.Set("X-File-Name", req.Name)
	if t.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+t.token)
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("sending to ingest: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	return decodeTransferError(resp)
}

// decodeTransferError reads a non-2xx ingest response. Structured bodies of
// the form {"errors":[{"message":...}]} become a *TransferError carrying the
// server messages; anything else becomes a *TransferError with the status
// code only.
func decodeTransferError(resp *http.Response) error {
	terr := &TransferError{StatusCode: resp.StatusCode}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil || len(data) == 0 {
		return terr
	}

	var parsed struct {
		Errors []ErrorDetail `json:"errors"`
	}
	if err := json.Unmarshal(data, &parsed); err == nil {
		terr.Errors = parsed.Errors
	}
	return terr
}

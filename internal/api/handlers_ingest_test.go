package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/threatlens/console-backend/internal/ingest"
	"github.com/threatlens/console-backend/internal/models"
	"github.com/threatlens/console-backend/internal/session"
	"github.com/threatlens/console-backend/internal/testutil"
)

type ingestFixture struct {
	e       *echo.Echo
	store   *testutil.MockStorage
	tr      *testutil.MockTransport
	sink    *testutil.MockSink
	handler IngestHandler
}

func newIngestFixture(t *testing.T) *ingestFixture {
	t.Helper()

	store := testutil.NewMockStorage()
	tr := &testutil.MockTransport{Progress: [][2]int64{{50, 100}, {100, 100}}}
	sink := &testutil.MockSink{}
	registry := session.NewRegistry(tr, sink, store, time.Minute)

	return &ingestFixture{
		e:       echo.New(),
		store:   store,
		tr:      tr,
		sink:    sink,
		handler: NewIngestHandler(store, registry, nil),
	}
}

func (f *ingestFixture) createSession(t *testing.T) string {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/api/ingest/sessions", nil)
	rec := httptest.NewRecorder()
	c := f.e.NewContext(req, rec)
	if err := f.handler.HandleCreateSession(c); err != nil {
		t.Fatalf("create session: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("create session status = %d", rec.Code)
	}

	var snap models.SessionSnapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.SessionID == "" {
		t.Fatal("expected a session ID")
	}
	return snap.SessionID
}

func (f *ingestFixture) intakeContext(id string, names ...string) (echo.Context, *httptest.ResponseRecorder) {
	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)
	for _, name := range names {
		part, _ := writer.CreateFormFile("files", name)
		part.Write([]byte("alert data for " + name))
	}
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/ingest/sessions/"+id+"/files", body)
	req.Header.Set(echo.HeaderContentType, writer.FormDataContentType())
	rec := httptest.NewRecorder()
	c := f.e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(id)
	return c, rec
}

func (f *ingestFixture) sessionContext(method, id, tail string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, "/api/ingest/sessions/"+id+tail, nil)
	rec := httptest.NewRecorder()
	c := f.e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(id)
	return c, rec
}

func (f *ingestFixture) snapshot(t *testing.T, id string) models.SessionSnapshot {
	t.Helper()

	c, rec := f.sessionContext(http.MethodGet, id, "")
	if err := f.handler.HandleGetSession(c); err != nil {
		t.Fatalf("get session: %v", err)
	}
	var snap models.SessionSnapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	return snap
}

func (f *ingestFixture) waitForStatus(t *testing.T, id string, want models.IngestStatus) models.SessionSnapshot {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		snap := f.snapshot(t, id)
		if snap.HasFile && snap.File.Status == want {
			return snap
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("session never reached status %q", want)
	return models.SessionSnapshot{}
}

func TestIntakeSingleFileSpoolsAndStages(t *testing.T) {
	f := newIngestFixture(t)
	id := f.createSession(t)

	c, rec := f.intakeContext(id, "alerts.csv")
	if assert.NoError(t, f.handler.HandleIntake(c)) {
		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Contains(t, rec.Body.String(), `"status":"ready"`)
		assert.Contains(t, rec.Body.String(), `"name":"alerts.csv"`)
	}
	assert.Equal(t, 1, f.store.FileCount())
}

func TestIntakeReplacementReleasesPriorSpool(t *testing.T) {
	f := newIngestFixture(t)
	id := f.createSession(t)

	c, _ := f.intakeContext(id, "first.csv")
	if err := f.handler.HandleIntake(c); err != nil {
		t.Fatalf("first intake: %v", err)
	}
	assert.Equal(t, 1, f.store.FileCount())

	c, rec := f.intakeContext(id, "second.csv")
	if assert.NoError(t, f.handler.HandleIntake(c)) {
		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Contains(t, rec.Body.String(), `"name":"second.csv"`)
	}

	// Only the replacement's spool entry survives.
	assert.Equal(t, 1, f.store.FileCount())
	snap := f.snapshot(t, id)
	if assert.True(t, snap.HasFile) {
		if _, err := f.store.Get(snap.File.ID); err != nil {
			t.Errorf("current file missing from spool: %v", err)
		}
	}
}

func TestIntakeMultipleFilesRejected(t *testing.T) {
	f := newIngestFixture(t)
	id := f.createSession(t)

	c, _ := f.intakeContext(id, "a.csv", "b.csv")
	err := f.handler.HandleIntake(c)
	var apiErr *APIError
	if assert.ErrorAs(t, err, &apiErr) {
		assert.Equal(t, http.StatusBadRequest, apiErr.Status)
		assert.Equal(t, ingest.MultipleFilesMessage, apiErr.Message)
	}

	// The rejection notifies once and nothing is spooled.
	notes := f.sink.Notifications()
	if assert.Len(t, notes, 1) {
		assert.Equal(t, "ingest-multiple-files", notes[0].Key)
	}
	assert.Equal(t, 0, f.store.FileCount())

	snap := f.snapshot(t, id)
	assert.False(t, snap.HasFile)
}

func TestIntakeEmptyFormIsNoOp(t *testing.T) {
	f := newIngestFixture(t)
	id := f.createSession(t)

	c, rec := f.intakeContext(id)
	if assert.NoError(t, f.handler.HandleIntake(c)) {
		assert.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Empty(t, f.sink.Notifications())
}

func TestUploadLifecycle(t *testing.T) {
	f := newIngestFixture(t)
	id := f.createSession(t)

	c, _ := f.intakeContext(id, "alerts.csv")
	if err := f.handler.HandleIntake(c); err != nil {
		t.Fatalf("intake: %v", err)
	}

	c, rec := f.sessionContext(http.MethodPost, id, "/upload")
	if assert.NoError(t, f.handler.HandleUpload(c)) {
		assert.Equal(t, http.StatusAccepted, rec.Code)
	}

	snap := f.waitForStatus(t, id, models.IngestStatusDone)
	assert.Equal(t, 100, snap.Progress)
	assert.Equal(t, 1, f.tr.SendCount())
}

func TestUploadWithoutStagedFile(t *testing.T) {
	f := newIngestFixture(t)
	id := f.createSession(t)

	c, _ := f.sessionContext(http.MethodPost, id, "/upload")
	err := f.handler.HandleUpload(c)
	var apiErr *APIError
	if assert.ErrorAs(t, err, &apiErr) {
		assert.Equal(t, http.StatusConflict, apiErr.Status)
	}
	assert.Equal(t, 0, f.tr.SendCount())
}

func TestRetryRequiresFailure(t *testing.T) {
	f := newIngestFixture(t)
	f.tr.Err = errors.New("collector unreachable")
	id := f.createSession(t)

	c, _ := f.intakeContext(id, "alerts.csv")
	if err := f.handler.HandleIntake(c); err != nil {
		t.Fatalf("intake: %v", err)
	}

	// Retry before any upload is rejected.
	c, _ = f.sessionContext(http.MethodPost, id, "/retry")
	err := f.handler.HandleRetry(c)
	var apiErr *APIError
	if assert.ErrorAs(t, err, &apiErr) {
		assert.Equal(t, http.StatusConflict, apiErr.Status)
	}

	c, _ = f.sessionContext(http.MethodPost, id, "/upload")
	if err := f.handler.HandleUpload(c); err != nil {
		t.Fatalf("upload: %v", err)
	}
	f.waitForStatus(t, id, models.IngestStatusFailure)

	// Now let the retry succeed.
	f.tr.Err = nil
	c, rec := f.sessionContext(http.MethodPost, id, "/retry")
	if assert.NoError(t, f.handler.HandleRetry(c)) {
		assert.Equal(t, http.StatusAccepted, rec.Code)
	}
	f.waitForStatus(t, id, models.IngestStatusDone)
	assert.Equal(t, 2, f.tr.SendCount())
}

func TestResetClearsSessionAndSpool(t *testing.T) {
	f := newIngestFixture(t)
	id := f.createSession(t)

	c, _ := f.intakeContext(id, "alerts.csv")
	if err := f.handler.HandleIntake(c); err != nil {
		t.Fatalf("intake: %v", err)
	}
	assert.Equal(t, 1, f.store.FileCount())

	c, rec := f.sessionContext(http.MethodDelete, id, "/file")
	if assert.NoError(t, f.handler.HandleReset(c)) {
		assert.Equal(t, http.StatusNoContent, rec.Code)
	}
	assert.Equal(t, 0, f.store.FileCount())

	snap := f.snapshot(t, id)
	assert.False(t, snap.HasFile)
	assert.Equal(t, 0, snap.Progress)

	// Reset with nothing staged still succeeds.
	c, rec = f.sessionContext(http.MethodDelete, id, "/file")
	if assert.NoError(t, f.handler.HandleReset(c)) {
		assert.Equal(t, http.StatusNoContent, rec.Code)
	}
}

func TestGetSessionUnknownID(t *testing.T) {
	f := newIngestFixture(t)

	c, _ := f.sessionContext(http.MethodGet, "no-such-session", "")
	err := f.handler.HandleGetSession(c)
	var apiErr *APIError
	if assert.ErrorAs(t, err, &apiErr) {
		assert.Equal(t, http.StatusNotFound, apiErr.Status)
	}
}

func TestGetSessionMsgpack(t *testing.T) {
	f := newIngestFixture(t)
	id := f.createSession(t)

	c, _ := f.intakeContext(id, "alerts.csv")
	if err := f.handler.HandleIntake(c); err != nil {
		t.Fatalf("intake: %v", err)
	}

	c, rec := f.sessionContext(http.MethodGet, id, "/msgpack")
	if assert.NoError(t, f.handler.HandleGetSessionMsgpack(c)) {
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/x-msgpack", rec.Header().Get(echo.HeaderContentType))
	}

	var snap models.SessionSnapshot
	if err := msgpack.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode msgpack snapshot: %v", err)
	}
	assert.Equal(t, id, snap.SessionID)
	assert.True(t, snap.HasFile)
	assert.Equal(t, models.IngestStatusReady, snap.File.Status)

	// The binary payload uses the same camelCase keys as the JSON one.
	var raw map[string]interface{}
	if err := msgpack.Unmarshal(rec.Body.Bytes(), &raw); err != nil {
		t.Fatalf("decode raw msgpack: %v", err)
	}
	file, ok := raw["file"].(map[string]interface{})
	if assert.True(t, ok, "expected a file map under the \"file\" key") {
		assert.Contains(t, file, "id")
		assert.Contains(t, file, "contentType")
		assert.Contains(t, file, "status")
	}
}

func TestUploadFailureStateVisibleOverAPI(t *testing.T) {
	f := newIngestFixture(t)
	f.tr.Err = &ingestRejection{msg: "index is read-only"}
	id := f.createSession(t)

	c, _ := f.intakeContext(id, "alerts.csv")
	if err := f.handler.HandleIntake(c); err != nil {
		t.Fatalf("intake: %v", err)
	}
	c, _ = f.sessionContext(http.MethodPost, id, "/upload")
	if err := f.handler.HandleUpload(c); err != nil {
		t.Fatalf("upload: %v", err)
	}

	snap := f.waitForStatus(t, id, models.IngestStatusFailure)
	assert.Equal(t, 0, snap.Progress)

	found := false
	for _, n := range f.sink.Notifications() {
		if n.Key == "ingest-upload-failed" {
			found = true
		}
	}
	assert.True(t, found, "expected a failure notification")
}

// ingestRejection is a plain error; the controller wraps it for the sink.
type ingestRejection struct{ msg string }

func (e *ingestRejection) Error() string { return e.msg }

package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/threatlens/console-backend/internal/models"
	"github.com/threatlens/console-backend/internal/testutil"
)

const testSchemaYAML = `name: dns_events
version: "1.2"
description: DNS query log schema
fields:
  - name: timestamp
    type: timestamp
    required: true
  - name: query
    type: string
    required: true
  - name: client_ip
    type: ip
`

func schemaUploadContext(e *echo.Echo, filename, content string) (echo.Context, *httptest.ResponseRecorder) {
	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)
	part, _ := writer.CreateFormFile("file", filename)
	part.Write([]byte(content))
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/schemas", body)
	req.Header.Set(echo.HeaderContentType, writer.FormDataContentType())
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestUploadSchema(t *testing.T) {
	e := echo.New()
	store := testutil.NewMockStorage()
	h := NewSchemaHandler(store)

	c, rec := schemaUploadContext(e, "dns_events.yaml", testSchemaYAML)
	if assert.NoError(t, h.HandleUploadSchema(c)) {
		assert.Equal(t, http.StatusCreated, rec.Code)
	}

	var info models.SchemaInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatalf("decode schema info: %v", err)
	}
	assert.Equal(t, "dns_events", info.Name)
	assert.Equal(t, "1.2", info.Version)
	assert.Equal(t, 3, info.FieldCount)
	assert.False(t, info.UploadedAt.IsZero())
	assert.Equal(t, 1, store.FileCount())
}

func TestUploadSchemaInvalid(t *testing.T) {
	e := echo.New()
	store := testutil.NewMockStorage()
	h := NewSchemaHandler(store)

	c, _ := schemaUploadContext(e, "broken.yaml", "name: broken\nversion: \"1\"\nfields: []\n")
	err := h.HandleUploadSchema(c)
	var apiErr *APIError
	if assert.ErrorAs(t, err, &apiErr) {
		assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	}
	assert.Equal(t, 0, store.FileCount())
}

func TestRecentSchemasFiltersAndLimits(t *testing.T) {
	e := echo.New()
	store := testutil.NewMockStorage()
	h := NewSchemaHandler(store)

	store.SaveBytes("dns_events.yaml", "application/yaml", []byte(testSchemaYAML))
	store.SaveBytes("proxy_events.yml", "application/yaml", []byte(testSchemaYAML))
	store.SaveBytes("alerts.csv", "text/csv", []byte("a,b\n"))

	req := httptest.NewRequest(http.MethodGet, "/api/schemas/recent?limit=1", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if assert.NoError(t, h.HandleRecentSchemas(c)) {
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	var files []*models.FileInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &files); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if assert.Len(t, files, 1) {
		assert.True(t, isSchemaFile(files[0].Name))
	}

	// Bad limit is rejected.
	req = httptest.NewRequest(http.MethodGet, "/api/schemas/recent?limit=zero", nil)
	c = e.NewContext(req, httptest.NewRecorder())
	err := h.HandleRecentSchemas(c)
	var apiErr *APIError
	if assert.ErrorAs(t, err, &apiErr) {
		assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	}
}

// handlers_schema.go - Detection schema upload and listing handlers
package api

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/threatlens/console-backend/internal/models"
	"github.com/threatlens/console-backend/internal/schema"
	"github.com/threatlens/console-backend/internal/storage"
)

const defaultRecentSchemas = 20

// SchemaHandlerImpl implements the SchemaHandler interface
type SchemaHandlerImpl struct {
	store storage.Store
}

// NewSchemaHandler creates a new schema handler instance
func NewSchemaHandler(store storage.Store) SchemaHandler {
	return &SchemaHandlerImpl{store: store}
}

// HandleUploadSchema validates and stores an event schema document
func (h *SchemaHandlerImpl) HandleUploadSchema(c echo.Context) error {
	part, err := c.FormFile("file")
	if err != nil {
		return NewValidationError("file")
	}

	src, err := part.Open()
	if err != nil {
		return NewInternalError("failed to open uploaded schema", err)
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return NewInternalError("failed to read uploaded schema", err)
	}

	doc, err := schema.ParseFromBytes(data)
	if err != nil {
		return NewBadRequestError("invalid schema document", err)
	}

	info, err := h.store.SaveBytes(part.Filename, "application/yaml", data)
	if err != nil {
		return NewInternalError("failed to store schema", err)
	}

	return c.JSON(http.StatusCreated, &models.SchemaInfo{
		ID:         info.ID,
		Name:       doc.Name,
		Version:    doc.Version,
		FieldCount: len(doc.Fields),
		UploadedAt: info.ReceivedAt,
	})
}

// HandleRecentSchemas lists recently uploaded schema documents
func (h *SchemaHandlerImpl) HandleRecentSchemas(c echo.Context) error {
	limit := defaultRecentSchemas
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return NewValidationError("limit")
		}
		limit = parsed
	}

	files, err := h.store.List(0)
	if err != nil {
		return NewInternalError("failed to list schemas", err)
	}

	recent := make([]*models.FileInfo, 0, limit)
	for _, f := range files {
		if !isSchemaFile(f.Name) {
			continue
		}
		recent = append(recent, f)
		if len(recent) == limit {
			break
		}
	}

	return c.JSON(http.StatusOK, recent)
}

func isSchemaFile(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml")
}

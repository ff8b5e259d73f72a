// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"github.com/labstack/echo/v4"
)

// IngestHandler handles upload session operations
type IngestHandler interface {
	HandleCreateSession(c echo.Context) error
	HandleIntake(c echo.Context) error
	HandleUpload(c echo.Context) error
	HandleRetry(c echo.Context) error
	HandleReset(c echo.Context) error
	HandleGetSession(c echo.Context) error
	HandleGetSessionMsgpack(c echo.Context) error
	HandleProgressStream(c echo.Context) error
}

// SchemaHandler handles detection-schema upload operations
type SchemaHandler interface {
	HandleUploadSchema(c echo.Context) error
	HandleRecentSchemas(c echo.Context) error
}

// ExtensionHandler handles console extension management
type ExtensionHandler interface {
	HandleListExtensions(c echo.Context) error
	HandleEnableExtension(c echo.Context) error
	HandleDisableExtension(c echo.Context) error
}

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

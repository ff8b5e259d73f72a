// routes.go - Route registration helpers
// This file provides a clean way to register all API routes
package api

import (
	"github.com/labstack/echo/v4"

	"github.com/threatlens/console-backend/internal/extension"
	"github.com/threatlens/console-backend/internal/notify"
	"github.com/threatlens/console-backend/internal/session"
	"github.com/threatlens/console-backend/internal/storage"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Store      storage.Store
	Sessions   *session.Registry
	Extensions *extension.Registry
	Hub        *notify.Hub
}

// Handlers holds all handler instances
type Handlers struct {
	Health    HealthHandler
	Ingest    IngestHandler
	Schema    SchemaHandler
	Extension ExtensionHandler
	EventFeed *WebSocketHandler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	return &Handlers{
		Health:    NewHealthHandler(),
		Ingest:    NewIngestHandler(deps.Store, deps.Sessions, deps.Hub),
		Schema:    NewSchemaHandler(deps.Store),
		Extension: NewExtensionHandler(deps.Extensions),
		EventFeed: NewWebSocketHandler(deps.Hub),
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	// Health check
	e.GET("/health", handlers.Health.HandleHealth)

	// Upload session routes
	sessionGroup := e.Group("/api/ingest/sessions")
	sessionGroup.POST("", handlers.Ingest.HandleCreateSession)
	sessionGroup.POST("/:id/files", handlers.Ingest.HandleIntake)
	sessionGroup.POST("/:id/upload", handlers.Ingest.HandleUpload)
	sessionGroup.POST("/:id/retry", handlers.Ingest.HandleRetry)
	sessionGroup.DELETE("/:id/file", handlers.Ingest.HandleReset)
	sessionGroup.GET("/:id", handlers.Ingest.HandleGetSession)
	sessionGroup.GET("/:id/msgpack", handlers.Ingest.HandleGetSessionMsgpack)
	sessionGroup.GET("/:id/progress", handlers.Ingest.HandleProgressStream)

	// Event schema routes
	schemaGroup := e.Group("/api/schemas")
	schemaGroup.POST("", handlers.Schema.HandleUploadSchema)
	schemaGroup.GET("/recent", handlers.Schema.HandleRecentSchemas)

	// Analysis extension routes
	extGroup := e.Group("/api/extensions")
	extGroup.GET("", handlers.Extension.HandleListExtensions)
	extGroup.POST("/:name/enable", handlers.Extension.HandleEnableExtension)
	extGroup.POST("/:name/disable", handlers.Extension.HandleDisableExtension)
}

// RegisterWebSocketRoutes registers WebSocket routes
func RegisterWebSocketRoutes(e *echo.Echo, handlers *Handlers) {
	e.GET("/api/ws/events", handlers.EventFeed.HandleEventFeed)
}

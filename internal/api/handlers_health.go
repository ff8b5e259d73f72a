// handlers_health.go - Health check handler
package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Version is the server version reported by the health endpoint
const Version = "1.0.0"

// HealthHandlerImpl implements the HealthHandler interface
type HealthHandlerImpl struct {
	startTime time.Time
}

// NewHealthHandler creates a new health handler instance
func NewHealthHandler() HealthHandler {
	return &HealthHandlerImpl{startTime: time.Now()}
}

// HandleHealth returns server health status
func (h *HealthHandlerImpl) HandleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"version": Version,
		"uptime":  time.Since(h.startTime).Round(time.Second).String(),
	})
}

// handlers_extension.go - Analysis extension toggle handlers
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/threatlens/console-backend/internal/extension"
)

// ExtensionHandlerImpl implements the ExtensionHandler interface
type ExtensionHandlerImpl struct {
	registry *extension.Registry
}

// NewExtensionHandler creates a new extension handler instance
func NewExtensionHandler(registry *extension.Registry) ExtensionHandler {
	return &ExtensionHandlerImpl{registry: registry}
}

// HandleListExtensions returns all registered analysis extensions
func (h *ExtensionHandlerImpl) HandleListExtensions(c echo.Context) error {
	return c.JSON(http.StatusOK, h.registry.List())
}

// HandleEnableExtension turns an extension on
func (h *ExtensionHandlerImpl) HandleEnableExtension(c echo.Context) error {
	return h.setEnabled(c, true)
}

// HandleDisableExtension turns an extension off
func (h *ExtensionHandlerImpl) HandleDisableExtension(c echo.Context) error {
	return h.setEnabled(c, false)
}

func (h *ExtensionHandlerImpl) setEnabled(c echo.Context, enabled bool) error {
	name := c.Param("name")
	if name == "" {
		return NewValidationError("name")
	}

	info, err := h.registry.SetEnabled(name, enabled)
	if err != nil {
		return NewNotFoundError("extension", name)
	}
	return c.JSON(http.StatusOK, info)
}

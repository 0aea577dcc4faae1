package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Version is a string type for dependency injection of the build version.
type Version string

// HealthHandler serves health and status endpoints.
type HealthHandler struct {
	gateway Gateway
	version Version
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(gw Gateway, v Version) *HealthHandler {
	return &HealthHandler{gateway: gw, version: v}
}

// Healthz returns a simple OK response for liveness probes.
func (h *HealthHandler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// statusResponse is the body of GET /gateway/status.
type statusResponse struct {
	Status  string   `json:"status"`
	Version string   `json:"version"`
	Mode    string   `json:"mode"`
	Routes  []string `json:"routes"`
}

// Status returns gateway status information. Backend URLs and injected
// headers are never exposed.
func (h *HealthHandler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, statusResponse{
		Status:  "ok",
		Version: string(h.version),
		Mode:    h.gateway.Mode(),
		Routes:  h.gateway.Routes(),
	})
}

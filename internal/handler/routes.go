package handler

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"edge-gateway/internal/config"
	"edge-gateway/internal/metrics"
)

// tokenGuard is implemented by gateways whose route names are only shown
// to authenticated callers.
type tokenGuard interface {
	RequireToken() echo.MiddlewareFunc
}

// RegisterRoutes wires all route handlers onto the Echo instance. The
// gateway catch-all is registered last; Echo prefers static routes, so the
// health and metrics endpoints are never forwarded. /healthz stays open in
// every mode; status and metrics both reveal route names, so they need the
// bearer secret whenever the gateway does.
func RegisterRoutes(e *echo.Echo, gw Gateway, health *HealthHandler, m *metrics.Metrics, cfg *config.Config) {
	e.GET("/healthz", health.Healthz)

	var guard []echo.MiddlewareFunc
	if g, ok := gw.(tokenGuard); ok {
		guard = append(guard, g.RequireToken())
	}
	e.GET("/gateway/status", health.Status, guard...)

	if cfg.Metrics.Enabled {
		e.GET(cfg.Metrics.Path, echo.WrapHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})), guard...)
	}

	e.Any("/", gw.Handle)
	e.Any("/*", gw.Handle)
}

package handler

import (
	"log/slog"

	"github.com/labstack/echo/v4"

	"edge-gateway/internal/config"
	"edge-gateway/internal/service"
)

// tenantService is a gateway whose callers carry the shared bearer secret.
type tenantService interface {
	service.Gateway
	Authenticate(header string) error
}

// TenantHandler serves the token-gated gateway. It adds no CORS headers.
type TenantHandler struct {
	service tenantService
	logger  *slog.Logger
}

// NewTenantHandler creates a TenantHandler.
func NewTenantHandler(svc tenantService, logger *slog.Logger) *TenantHandler {
	return &TenantHandler{
		service: svc,
		logger:  logger.With("component", "tenant_handler"),
	}
}

// Handle forwards the request and streams the upstream response back verbatim.
func (h *TenantHandler) Handle(c echo.Context) error {
	resp, err := h.service.Forward(newProxyRequest(c.Request()))
	if err != nil {
		return writeError(c, h.logger, err)
	}
	defer func() { _ = resp.Body.Close() }()

	copyHeaders(c.Response().Header(), resp.Header)
	stream(c, resp, h.logger)
	return nil
}

// RequireToken rejects requests without the bearer secret, answering
// 401 or 403 exactly as Handle does.
func (h *TenantHandler) RequireToken() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := h.service.Authenticate(c.Request().Header.Get(echo.HeaderAuthorization)); err != nil {
				return writeError(c, h.logger, err)
			}
			return next(c)
		}
	}
}

// Routes lists the route keys as paths.
func (h *TenantHandler) Routes() []string { return h.service.Routes() }

// Mode reports config.ModeTenant.
func (h *TenantHandler) Mode() string { return config.ModeTenant }

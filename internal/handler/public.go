package handler

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"edge-gateway/internal/config"
	"edge-gateway/internal/cors"
	"edge-gateway/internal/service"
)

// PublicHandler serves the open gateway: CORS preflights are answered
// locally, everything else is forwarded by exact path.
type PublicHandler struct {
	service service.Gateway
	cors    *cors.Policy
	logger  *slog.Logger
}

// NewPublicHandler creates a PublicHandler.
func NewPublicHandler(svc service.Gateway, policy *cors.Policy, logger *slog.Logger) *PublicHandler {
	return &PublicHandler{
		service: svc,
		cors:    policy,
		logger:  logger.With("component", "public_handler"),
	}
}

// Handle answers preflights, forwards the request and relays the response.
// Locally generated responses carry the full CORS header set; relayed
// responses keep the upstream headers with Access-Control-Allow-Origin
// overwritten.
func (h *PublicHandler) Handle(c echo.Context) error {
	req := c.Request()
	origin := req.Header.Get(echo.HeaderOrigin)

	if req.Method == http.MethodOptions {
		h.cors.Apply(c.Response().Header(), origin)
		return c.NoContent(http.StatusNoContent)
	}

	resp, err := h.service.Forward(newProxyRequest(req))
	if err != nil {
		h.cors.Apply(c.Response().Header(), origin)
		return writeError(c, h.logger, err)
	}
	defer func() { _ = resp.Body.Close() }()

	header := c.Response().Header()
	copyHeaders(header, resp.Header)
	header.Set(echo.HeaderAccessControlAllowOrigin, h.cors.AllowOrigin(origin))

	stream(c, resp, h.logger)
	return nil
}

// Routes lists the forwarded paths.
func (h *PublicHandler) Routes() []string { return h.service.Routes() }

// Mode reports config.ModePublic.
func (h *PublicHandler) Mode() string { return config.ModePublic }

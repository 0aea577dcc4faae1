package service

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"edge-gateway/internal/auth"
	"edge-gateway/internal/client"
	"edge-gateway/internal/config"
	"edge-gateway/internal/model"
	"edge-gateway/internal/rewrite"
	"edge-gateway/internal/router"
)

// TenantService authenticates requests with the shared bearer secret and
// forwards them to the backend selected by the first path segment.
type TenantService struct {
	client *client.UpstreamClient
	auth   *auth.Authenticator
	router *router.Prefix
	logger *slog.Logger
}

// NewTenantService creates a TenantService from tenant.bearer_token and tenant.routes.
func NewTenantService(c *client.UpstreamClient, cfg *config.Config, logger *slog.Logger) (*TenantService, error) {
	a, err := auth.New(cfg.Tenant.BearerToken)
	if err != nil {
		return nil, err
	}
	r, err := router.NewPrefix(cfg.Tenant.Routes)
	if err != nil {
		return nil, fmt.Errorf("tenant routes: %w", err)
	}
	return &TenantService{
		client: c,
		auth:   a,
		router: r,
		logger: logger.With("component", "tenant_service"),
	}, nil
}

// Forward authenticates pr, resolves its route and sends it upstream.
//
// Errors before the upstream call are auth.ErrMissingCredential,
// auth.ErrInvalidCredential or a *router.NotFoundError. The caller is
// responsible for closing the response body.
func (s *TenantService) Forward(pr *model.ProxyRequest) (*model.ProxyResponse, error) {
	if err := s.Authenticate(pr.Header.Get(echo.HeaderAuthorization)); err != nil {
		return nil, err
	}

	m, err := s.router.Resolve(pr.Path)
	if err != nil {
		return nil, err
	}

	body, length := bodyFor(pr, http.MethodGet, http.MethodHead)
	out := &model.OutboundRequest{
		Route:         m.Key,
		Method:        pr.Method,
		URL:           withQuery(strings.TrimSuffix(m.Backend.URL, "/")+m.Rest, pr.RawQuery),
		Header:        rewrite.Tenant(pr.Header, m.Backend.Headers, m.Host),
		Body:          body,
		ContentLength: length,
	}

	s.logger.Debug("forwarding request",
		"method", pr.Method,
		"route", m.Key,
		"path", m.Rest,
	)

	return send(pr.Ctx, s.client, out)
}

// Authenticate checks a raw Authorization header value against the secret.
func (s *TenantService) Authenticate(header string) error {
	return s.auth.Authenticate(header)
}

// Routes returns the route keys as paths ("/files").
func (s *TenantService) Routes() []string {
	keys := s.router.Keys()
	for i, k := range keys {
		keys[i] = "/" + k
	}
	return keys
}

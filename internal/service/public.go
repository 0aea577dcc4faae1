package service

import (
	"fmt"
	"log/slog"
	"net/http"

	"edge-gateway/internal/client"
	"edge-gateway/internal/config"
	"edge-gateway/internal/model"
	"edge-gateway/internal/rewrite"
	"edge-gateway/internal/router"
)

// PublicService forwards requests on fixed paths to fixed backends. It does
// no authentication; CORS is handled by the HTTP layer.
type PublicService struct {
	client *client.UpstreamClient
	router *router.Fixed
	logger *slog.Logger
}

// NewPublicService creates a PublicService from public.routes.
func NewPublicService(c *client.UpstreamClient, cfg *config.Config, logger *slog.Logger) (*PublicService, error) {
	r, err := router.NewFixed(cfg.Public.Routes)
	if err != nil {
		return nil, fmt.Errorf("public routes: %w", err)
	}
	return &PublicService{
		client: c,
		router: r,
		logger: logger.With("component", "public_service"),
	}, nil
}

// Forward sends pr to the backend registered for its exact path.
// The request carries only a Content-Type header and, unless it is a GET,
// the original body. The caller is responsible for closing the response body.
func (s *PublicService) Forward(pr *model.ProxyRequest) (*model.ProxyResponse, error) {
	m, err := s.router.Resolve(pr.Path)
	if err != nil {
		return nil, err
	}

	body, length := bodyFor(pr, http.MethodGet)
	out := &model.OutboundRequest{
		Route:         m.Key,
		Method:        pr.Method,
		URL:           withQuery(m.Backend.URL, pr.RawQuery),
		Header:        rewrite.Public(pr.Header),
		Body:          body,
		ContentLength: length,
	}

	s.logger.Debug("forwarding request",
		"method", pr.Method,
		"route", m.Key,
	)

	return send(pr.Ctx, s.client, out)
}

// Routes returns the configured paths.
func (s *PublicService) Routes() []string {
	return s.router.Paths()
}

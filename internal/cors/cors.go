// Package cors computes the cross-origin headers the public gateway attaches
// to its responses.
package cors

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

const (
	allowMethods = "GET, POST, OPTIONS"
	allowHeaders = "Content-Type"
	maxAge       = "86400"
)

// Policy holds the ordered allow-list of origins. The first origin is
// returned for callers whose Origin is not on the list.
type Policy struct {
	origins []string
	allowed map[string]bool
}

// NewPolicy creates a Policy. At least one origin is required.
func NewPolicy(origins []string) (*Policy, error) {
	if len(origins) == 0 {
		return nil, errors.New("cors: at least one allowed origin is required")
	}
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return &Policy{
		origins: append([]string(nil), origins...),
		allowed: allowed,
	}, nil
}

// AllowOrigin returns origin when it is allowed, otherwise the default origin.
func (p *Policy) AllowOrigin(origin string) string {
	if p.allowed[origin] {
		return origin
	}
	return p.origins[0]
}

// Apply sets all four CORS headers on h for the given request Origin.
func (p *Policy) Apply(h http.Header, origin string) {
	h.Set(echo.HeaderAccessControlAllowOrigin, p.AllowOrigin(origin))
	h.Set(echo.HeaderAccessControlAllowMethods, allowMethods)
	h.Set(echo.HeaderAccessControlAllowHeaders, allowHeaders)
	h.Set(echo.HeaderAccessControlMaxAge, maxAge)
}

// Origins returns a copy of the allow-list.
func (p *Policy) Origins() []string {
	return append([]string(nil), p.origins...)
}

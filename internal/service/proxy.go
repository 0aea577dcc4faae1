// Package service implements the routing and forwarding logic of both gateway modes.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"edge-gateway/internal/client"
	"edge-gateway/internal/model"
)

// ErrUpstreamUnreachable wraps transport failures: the backend could not be
// reached or did not answer in time. Upstream HTTP error statuses are not errors.
var ErrUpstreamUnreachable = errors.New("upstream unreachable")

// Gateway is implemented by both gateway modes.
type Gateway interface {
	// Forward routes, rewrites and sends pr. The caller closes the response body.
	Forward(pr *model.ProxyRequest) (*model.ProxyResponse, error)
	// Routes lists the paths the gateway serves, sorted.
	Routes() []string
}

func send(ctx context.Context, c *client.UpstreamClient, out *model.OutboundRequest) (*model.ProxyResponse, error) {
	resp, err := c.DoStream(ctx, out)
	if err != nil {
		return nil, fmt.Errorf("%w: route %s: %w", ErrUpstreamUnreachable, out.Route, err)
	}
	return resp, nil
}

// withQuery appends the client's raw query string, if any.
func withQuery(target, rawQuery string) string {
	if rawQuery == "" {
		return target
	}
	return target + "?" + rawQuery
}

// bodyFor returns the request body unless method is one of the bodiless methods.
func bodyFor(pr *model.ProxyRequest, bodiless ...string) (io.Reader, int64) {
	for _, m := range bodiless {
		if pr.Method == m {
			return nil, 0
		}
	}
	if pr.Body == nil || pr.Body == http.NoBody {
		return nil, 0
	}
	return pr.Body, pr.ContentLength
}

// Package model defines shared types for the gateway.
package model

import (
	"context"
	"io"
	"net/http"
)

// Backend is one upstream target and the headers the gateway injects on its behalf.
type Backend struct {
	URL     string            `json:"url" toml:"url"`
	Headers map[string]string `json:"headers,omitempty" toml:"headers"`
}

// RouteTable maps a route key (first path segment) to its backend.
type RouteTable map[string]Backend

// ProxyRequest represents a client request to be forwarded upstream.
type ProxyRequest struct {
	Ctx           context.Context
	Method        string
	Path          string // escaped form, as sent by the client
	RawQuery      string
	Header        http.Header
	Body          io.ReadCloser
	ContentLength int64
}

// OutboundRequest is the rewritten request sent to a backend.
type OutboundRequest struct {
	Route         string
	Method        string
	URL           string
	Header        http.Header
	Body          io.Reader // nil when the method must not carry a body
	ContentLength int64
}

// ProxyResponse represents the upstream response to be streamed back.
type ProxyResponse struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
}

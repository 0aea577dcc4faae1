// Package router resolves request paths to upstream backends.
package router

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"edge-gateway/internal/model"
)

// ErrRouteNotFound is returned when no backend matches the request path.
var ErrRouteNotFound = errors.New("route not found")

// NotFoundError reports a prefix miss together with the keys that would have matched.
type NotFoundError struct {
	Prefix    string
	Available []string
}

func (e *NotFoundError) Error() string {
	paths := make([]string, len(e.Available))
	for i, k := range e.Available {
		paths[i] = "/" + k
	}
	return fmt.Sprintf("Unknown route: /%s. Available: %s", e.Prefix, strings.Join(paths, ", "))
}

func (e *NotFoundError) Unwrap() error { return ErrRouteNotFound }

// Match is the result of a successful resolution.
type Match struct {
	Key     string
	Backend model.Backend
	Host    string // host[:port] of Backend.URL
	Rest    string // path left after the matched prefix; always starts with "/"
}

type entry struct {
	backend model.Backend
	host    string
}

func newEntry(backend model.Backend) (entry, error) {
	u, err := ParseBackendURL(backend.URL)
	if err != nil {
		return entry{}, err
	}
	return entry{backend: backend, host: u.Host}, nil
}

// ParseBackendURL parses raw and requires an absolute http(s) URL.
func ParseBackendURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid backend url %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("backend url %q must use http or https", raw)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("backend url %q has no host", raw)
	}
	return u, nil
}

// Fixed matches request paths exactly against a static path → URL map.
type Fixed struct {
	routes map[string]entry
}

// NewFixed builds a Fixed router. Keys are full paths such as "/chat".
func NewFixed(targets map[string]string) (*Fixed, error) {
	routes := make(map[string]entry, len(targets))
	for path, target := range targets {
		e, err := newEntry(model.Backend{URL: target})
		if err != nil {
			return nil, fmt.Errorf("route %s: %w", path, err)
		}
		routes[path] = e
	}
	return &Fixed{routes: routes}, nil
}

// Resolve returns the backend registered for exactly path.
func (f *Fixed) Resolve(path string) (Match, error) {
	e, ok := f.routes[path]
	if !ok {
		return Match{}, ErrRouteNotFound
	}
	return Match{Key: path, Backend: e.backend, Host: e.host, Rest: "/"}, nil
}

// Paths returns the registered paths in sorted order.
func (f *Fixed) Paths() []string {
	paths := make([]string, 0, len(f.routes))
	for p := range f.routes {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Prefix selects a backend by the first non-empty path segment.
type Prefix struct {
	routes map[string]entry
	keys   []string
}

// NewPrefix builds a Prefix router from a route table.
func NewPrefix(table model.RouteTable) (*Prefix, error) {
	routes := make(map[string]entry, len(table))
	keys := make([]string, 0, len(table))
	for key, backend := range table {
		e, err := newEntry(backend)
		if err != nil {
			return nil, fmt.Errorf("route %s: %w", key, err)
		}
		routes[key] = e
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return &Prefix{routes: routes, keys: keys}, nil
}

// Resolve splits the escaped path into segments and looks up the first one.
// Empty segments are dropped, so "/files//a/" yields key "files" and rest "/a".
func (p *Prefix) Resolve(escapedPath string) (Match, error) {
	var segments []string
	for _, s := range strings.Split(escapedPath, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}

	if len(segments) == 0 {
		return Match{}, &NotFoundError{Available: p.Keys()}
	}

	// Keys are matched against the segment as it appears on the wire.
	prefix := segments[0]

	e, ok := p.routes[prefix]
	if !ok {
		return Match{}, &NotFoundError{Prefix: prefix, Available: p.Keys()}
	}

	return Match{
		Key:     prefix,
		Backend: e.backend,
		Host:    e.host,
		Rest:    "/" + strings.Join(segments[1:], "/"),
	}, nil
}

// Keys returns the route keys in sorted order.
func (p *Prefix) Keys() []string {
	return append([]string(nil), p.keys...)
}

package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"

	"edge-gateway/internal/auth"
	"edge-gateway/internal/model"
	"edge-gateway/internal/router"
)

// Gateway is the mode-specific catch-all handler mounted on "/*".
type Gateway interface {
	Handle(c echo.Context) error
	Routes() []string
	Mode() string
}

func newProxyRequest(req *http.Request) *model.ProxyRequest {
	return &model.ProxyRequest{
		Ctx:           req.Context(),
		Method:        req.Method,
		Path:          req.URL.EscapedPath(),
		RawQuery:      req.URL.RawQuery,
		Header:        req.Header,
		Body:          req.Body,
		ContentLength: req.ContentLength,
	}
}

// copyHeaders replaces dst's values with the upstream ones, key by key.
func copyHeaders(dst, src http.Header) {
	for key, vals := range src {
		dst[key] = append([]string(nil), vals...)
	}
}

// stream writes the status and then the upstream body to the client.
//
// If the copy fails mid-stream (e.g. client disconnect), the status code has
// already been sent and the client receives a truncated response; the error
// is only logged.
func stream(c echo.Context, resp *model.ProxyResponse, logger *slog.Logger) {
	w := c.Response()
	w.WriteHeader(resp.StatusCode)

	var err error
	if isEventStream(resp.Header) {
		err = copyFlushing(w, resp.Body)
	} else {
		_, err = io.Copy(w, resp.Body)
	}
	if err != nil {
		logger.Error("streaming response body",
			"err", err,
			"path", c.Request().URL.Path,
		)
	}
}

func isEventStream(h http.Header) bool {
	return strings.HasPrefix(h.Get(echo.HeaderContentType), "text/event-stream")
}

// copyFlushing copies src to w, flushing after every chunk.
func copyFlushing(w *echo.Response, src io.Reader) error {
	buf := make([]byte, 32*1024)
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return werr
			}
			w.Flush()
		}
		if rerr == io.EOF {
			return nil
		}
		if rerr != nil {
			return rerr
		}
	}
}

// errorStatus maps a Forward error to a status code and client-facing message.
func errorStatus(err error) (int, string) {
	var nf *router.NotFoundError
	switch {
	case errors.Is(err, auth.ErrMissingCredential):
		return http.StatusUnauthorized, "Missing or invalid Authorization header"
	case errors.Is(err, auth.ErrInvalidCredential):
		return http.StatusForbidden, "Invalid token"
	case errors.As(err, &nf):
		return http.StatusNotFound, nf.Error()
	case errors.Is(err, router.ErrRouteNotFound):
		return http.StatusNotFound, "Not found"
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout, "upstream request timed out"
	}
	if errors.Is(err, context.Canceled) {
		return http.StatusBadGateway, "client disconnected"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return http.StatusGatewayTimeout, "upstream request timed out"
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return http.StatusBadGateway, "upstream host unreachable"
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return http.StatusBadGateway, "upstream connection failed"
	}
	return http.StatusBadGateway, "upstream request failed"
}

// writeError renders err as {"error": message} with no trailing newline.
// Client errors are expected traffic and logged at debug; upstream failures
// at error.
func writeError(c echo.Context, logger *slog.Logger, err error) error {
	status, msg := errorStatus(err)

	if status >= http.StatusInternalServerError {
		logger.Error("proxy error",
			"err", err,
			"status", status,
			"path", c.Request().URL.Path,
		)
	} else {
		logger.Debug("request rejected",
			"err", err,
			"status", status,
			"path", c.Request().URL.Path,
		)
	}

	body, err := json.Marshal(errorBody{Error: msg})
	if err != nil {
		return err
	}
	return c.Blob(status, echo.MIMEApplicationJSON, body)
}

// errorBody is the JSON shape of every locally generated error.
type errorBody struct {
	Error string `json:"error"`
}
